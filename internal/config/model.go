package config

import (
	"time"
)

// Redis connection part of configuration, used for multi-instance event relay
type Redis struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	Channel  string `yaml:"channel"`
	DB       int    `yaml:"db"`
}

// Database of the action log
type Database struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

// OAuth application credentials for dashboard login with Discord
type OAuth struct {
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	RedirectURL  string `yaml:"redirect_url"`
}

// Enabled returns true when OAuth login is configured
func (o OAuth) Enabled() bool {
	return o.ClientID != "" && o.ClientSecret != "" && o.RedirectURL != ""
}

// Private part of configuration
type Private struct {
	Token         string   `yaml:"token"`
	AccessCode    string   `yaml:"access_code"`
	SessionSecret string   `yaml:"session_secret"`
	Prefix        string   `yaml:"prefix"`
	Admins        []string `yaml:"admins"`
	Database      Database `yaml:"database"`
	Redis         Redis    `yaml:"redis"`
	OAuth         OAuth    `yaml:"oauth"`
}

// HTTP dashboard part of configuration
type HTTP struct {
	Listen         string        `yaml:"listen"`
	AllowedOrigins []string      `yaml:"allowed_origins"`
	SessionMaxAge  time.Duration `yaml:"session_max_age"`
	LoginRate      float64       `yaml:"login_rate"`
	LoginBurst     int           `yaml:"login_burst"`
	LogLimit       int           `yaml:"log_limit"`
	SecureCookies  bool          `yaml:"secure_cookies"`
}

// Server specific part of configuration
type Server struct {
	GuildID string `yaml:"id"`
	Prefix  string `yaml:"prefix"`
	LogDB   string `yaml:"logdb"`
}

// Root of configuration
type Root struct {
	Servers []Server `yaml:"servers"`
	Private Private  `yaml:"private"`
	HTTP    HTTP     `yaml:"http"`
}

// Package config with configuration models and utilities
package config

import (
	"errors"
	"io"
	"os"
	"time"

	"github.com/joho/godotenv"
	yaml "gopkg.in/yaml.v2"
)

// ErrMissingToken is returned when no bot token is configured
var ErrMissingToken = errors.New("missing bot token in config")

// Read reads configuration
func Read(reader io.Reader) (root *Root, err error) {
	root = &Root{}

	err = yaml.NewDecoder(reader).Decode(root)
	if errors.Is(err, io.EOF) {
		err = nil
	}

	return
}

// Write writes configuration
func Write(writer io.Writer, root *Root) (err error) {
	err = yaml.NewEncoder(writer).Encode(root)

	return
}

// LoadEnv loads given dotenv files, missing files are ignored
func LoadEnv(paths ...string) error {
	for _, p := range paths {
		err := godotenv.Load(p)
		if err != nil && !os.IsNotExist(err) {
			return err
		}
	}

	return nil
}

// ApplyEnv overlays environment variables on top of configuration
func ApplyEnv(root *Root) {
	if v := os.Getenv("BOT_TOKEN"); v != "" {
		root.Private.Token = v
	}

	if v := os.Getenv("ACCESS_CODE"); v != "" {
		root.Private.AccessCode = v
	}

	if v := os.Getenv("SESSION_SECRET"); v != "" {
		root.Private.SessionSecret = v
	}

	if v := os.Getenv("DATABASE_DSN"); v != "" {
		root.Private.Database.DSN = v
	}

	if v := os.Getenv("DATABASE_DRIVER"); v != "" {
		root.Private.Database.Driver = v
	}

	if v := os.Getenv("REDIS_ADDR"); v != "" {
		root.Private.Redis.Address = v
	}

	if v := os.Getenv("PORT"); v != "" {
		root.HTTP.Listen = ":" + v
	}
}

// Defaults fills unset values
func Defaults(root *Root) {
	if root.Private.Prefix == "" {
		root.Private.Prefix = "!"
	}

	if root.Private.Database.Driver == "" {
		root.Private.Database.Driver = "sqlite"
	}

	if root.Private.Database.DSN == "" {
		root.Private.Database.DSN = "database.sqlite"
	}

	if root.Private.Redis.Channel == "" {
		root.Private.Redis.Channel = "guildpanel.events"
	}

	if root.HTTP.Listen == "" {
		root.HTTP.Listen = ":3000"
	}

	if root.HTTP.LogLimit <= 0 {
		root.HTTP.LogLimit = 50
	}

	if root.HTTP.SessionMaxAge <= 0 {
		root.HTTP.SessionMaxAge = 24 * time.Hour
	}

	if root.HTTP.LoginRate <= 0 {
		root.HTTP.LoginRate = 1
	}

	if root.HTTP.LoginBurst <= 0 {
		root.HTTP.LoginBurst = 5
	}
}

// Validate checks that mandatory values are present
func (root *Root) Validate() error {
	if root.Private.Token == "" {
		return ErrMissingToken
	}

	return nil
}

// ServerByID returns per-guild configuration, if any
func (root *Root) ServerByID(guildID string) *Server {
	for i := range root.Servers {
		if root.Servers[i].GuildID == guildID {
			return &root.Servers[i]
		}
	}

	return nil
}

// IsAdmin returns true if user id is listed in private admins
func (root *Root) IsAdmin(userID string) bool {
	for _, a := range root.Private.Admins {
		if a == userID {
			return true
		}
	}

	return false
}

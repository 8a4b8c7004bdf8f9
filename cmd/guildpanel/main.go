package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/eientei/guildpanel/internal/bot"
	"github.com/eientei/guildpanel/internal/config"
	"github.com/eientei/guildpanel/internal/httpclient"
	"github.com/eientei/guildpanel/internal/hub"
	"github.com/eientei/guildpanel/internal/model"
	"github.com/eientei/guildpanel/internal/modules/admin"
	"github.com/eientei/guildpanel/internal/modules/auth"
	"github.com/eientei/guildpanel/internal/modules/help"
	"github.com/eientei/guildpanel/internal/modules/livefeed"
	"github.com/eientei/guildpanel/internal/modules/logdb"
	"github.com/eientei/guildpanel/internal/modules/reply"
	"github.com/eientei/guildpanel/internal/relay"
	"github.com/eientei/guildpanel/internal/server"
	"github.com/go-redis/redis/v7"
	flags "github.com/jessevdk/go-flags"
	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const (
	userAgent       = "guildpanel (https://github.com/eientei/guildpanel)"
	shutdownTimeout = 10 * time.Second
)

var opts struct {
	Config    string `short:"c" long:"config" default:"config.yml" description:"Configuration file"`
	Env       string `long:"env" default:".env" description:"Dotenv file"`
	Listen    string `long:"listen" description:"Dashboard listen address override"`
	LogLevel  string `long:"log-level" default:"info" description:"Log level"`
	LogFormat string `long:"log-format" default:"text" choice:"text" choice:"json" description:"Log format"`
}

func readConfig(log *logrus.Logger, configPath string) *config.Root {
	configFile, err := os.Open(configPath)
	if errors.Is(err, os.ErrNotExist) {
		log.WithField("path", configPath).Warn("Config file not found, using environment only")

		return &config.Root{}
	}

	if err != nil {
		log.Fatal(err)
	}

	c, err := config.Read(configFile)
	if err != nil {
		log.Fatal(err)
	}

	err = configFile.Close()
	if err != nil {
		log.Fatal(err)
	}

	return c
}

func setupLog(log *logrus.Logger) {
	level, err := logrus.ParseLevel(opts.LogLevel)
	if err != nil {
		log.Fatal(err)
	}

	log.SetLevel(level)

	if opts.LogFormat == "json" {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
}

func run(ctx context.Context, log *logrus.Logger, configRoot *config.Root) error {
	clock := clockwork.NewRealClock()

	repo, err := model.Open(configRoot.Private.Database.Driver, configRoot.Private.Database.DSN, clock)
	if err != nil {
		return err
	}

	defer func() {
		_ = repo.Close()
	}()

	err = repo.Migrate(ctx)
	if err != nil {
		return fmt.Errorf("migrating database: %w", err)
	}

	sockets := hub.New(log, server.OriginChecker(configRoot.HTTP.AllowedOrigins))
	defer sockets.Stop()

	group, ctx := errgroup.WithContext(ctx)

	var broadcaster hub.Broadcaster = sockets

	if rc := configRoot.Private.Redis; rc.Address != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     rc.Address,
			Password: rc.Password,
			DB:       rc.DB,
		})

		defer func() {
			_ = client.Close()
		}()

		r := relay.NewRedis(client, rc.Channel, sockets, log, clock)
		broadcaster = r

		group.Go(func() error {
			return r.Run(ctx)
		})
	}

	httpClient := httpclient.New(log, userAgent)

	dg, err := discordgo.New("Bot " + configRoot.Private.Token)
	if err != nil {
		return err
	}

	dg.Client = httpClient

	b, err := bot.NewBot(bot.Options{
		Discord:     dg,
		Config:      configRoot,
		Log:         log,
		Repository:  repo,
		Broadcaster: broadcaster,
		Clock:       clock,
		Modules: []bot.Module{
			reply.New(),
			auth.New(),
			help.New(),
			admin.New(),
			livefeed.New(),
			logdb.New(),
		},
	})
	if err != nil {
		return err
	}

	srv, err := server.New(server.Options{
		Config:     configRoot,
		Admin:      b,
		Logs:       repo,
		Sockets:    sockets,
		Log:        log,
		HTTPClient: httpClient,
	})
	if err != nil {
		return err
	}

	group.Go(func() error {
		return b.Serve(ctx)
	})

	group.Go(srv.Start)

	group.Go(func() error {
		<-ctx.Done()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer shutdownCancel()

		log.Info("Shutting down")

		return srv.Shutdown(shutdownCtx)
	})

	return group.Wait()
}

func main() {
	log := logrus.New()

	_, err := flags.NewParser(&opts, flags.Default).Parse()
	if err != nil {
		var ferr *flags.Error
		if errors.As(err, &ferr) && ferr.Type == flags.ErrHelp {
			os.Exit(0)
		}

		os.Exit(1)
	}

	setupLog(log)

	err = config.LoadEnv(opts.Env)
	if err != nil {
		log.Fatal(err)
	}

	configRoot := readConfig(log, opts.Config)

	config.ApplyEnv(configRoot)

	if opts.Listen != "" {
		configRoot.HTTP.Listen = opts.Listen
	}

	config.Defaults(configRoot)

	err = configRoot.Validate()
	if err != nil {
		log.Fatal(err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	err = run(ctx, log, configRoot)
	if err != nil {
		log.WithError(err).Error("Exiting")
		cancel()

		os.Exit(1)
	}
}

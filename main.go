package main

import (
	"ChatRelay/bot"
	"ChatRelay/impl/core"
	"ChatRelay/internal/config"
	"ChatRelay/internal/database"
	"ChatRelay/internal/database/rediskv"
	"ChatRelay/internal/database/sqlite"
	"ChatRelay/internal/http-server/api"
	"ChatRelay/internal/lib/logger"
	"ChatRelay/internal/lib/sl"
	"ChatRelay/internal/service/auth"
	"ChatRelay/internal/ws"
	"context"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"
)

// storage is what a durable backend provides to the router and the
// authenticator.
type storage interface {
	core.HistoryStore
	core.ProfileStore
	core.PerformanceStore
	auth.KeyStore
}

func main() {

	configPath := pflag.String("conf", "config.yml", "path to config file")
	logPath := pflag.String("log", "/var/log/", "path to log file directory")
	pflag.Parse()

	envLoaded := godotenv.Load() == nil

	conf := config.MustLoad(*configPath)
	lg := logger.SetupLogger(conf.Env, *logPath)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var tgBot *bot.TgBot
	if conf.Telegram.Enabled {
		var err error
		tgBot, err = bot.NewTgBot(conf.Telegram.BotName, conf.Telegram.ApiKey, conf.Telegram.AdminId, lg)
		if err != nil {
			lg.Error("failed to initialize telegram bot", sl.Err(err))
		} else {
			lg = logger.SetupTelegramHandler(lg, tgBot, slog.LevelError)
			lg.With(
				slog.String("bot_name", conf.Telegram.BotName),
			).Info("telegram bot initialized")
		}
	}

	lg.With(
		slog.String("config", *configPath),
		slog.String("env", conf.Env),
		slog.Bool("dotenv", envLoaded),
	).Info("starting chatrelay")
	lg.Debug("debug messages enabled")

	store, err := openStorage(ctx, conf, lg)
	if err != nil {
		lg.Error("open storage", sl.Err(err))
		os.Exit(1)
	}

	handler := core.New(lg)
	handler.SetLocation(conf.Location())
	handler.SetHistoryStore(store)
	handler.SetProfileStore(store)
	handler.SetPerformanceStore(store)
	handler.SetResponder(bot.DefaultResponder())

	if conf.Redis.Enabled {
		kv, err := rediskv.New(rediskv.Config{
			Addr:     conf.Redis.Addr,
			Password: conf.Redis.Password,
			DB:       conf.Redis.DB,
		})
		if err != nil {
			lg.Error("redis client", sl.Err(err))
		} else {
			defer kv.Close()
			handler.SetProfileStore(kv)
			handler.SetPerformanceStore(kv)
			lg.With(
				slog.String("addr", conf.Redis.Addr),
				slog.Int("db", conf.Redis.DB),
			).Info("redis client initialized")
		}
	}

	if tgBot != nil {
		tgBot.SetChatLister(handler)
		handler.SetNotifier(tgBot)
		go tgBot.RunAlerts(ctx)
		go func() {
			if err := tgBot.Start(); err != nil {
				lg.Error("telegram bot error", sl.Err(err))
			}
		}()
	}

	authService := auth.NewAuthService(lg, conf.Listen.ApiKey, conf.Listen.JwtSecret)
	authService.SetKeyStore(store)
	lg.With(
		sl.Secret("listen_key", conf.Listen.ApiKey),
		slog.Bool("jwt", conf.Listen.JwtSecret != ""),
	).Info("auth service initialized")

	hub := ws.NewHub(lg, ws.Options{
		MaxMessageSize: conf.Websocket.MaxMessageSize,
		AllowedOrigins: conf.Websocket.AllowedOrigins,
	})
	hub.SetDispatcher(handler)

	go hub.Run(ctx)
	go handler.Run(ctx)
	handler.Init(ctx, conf.Retention.Days)

	// *** blocking start with http server ***
	err = api.New(ctx, conf, lg, handler, authService, hub)
	if err != nil {
		lg.Error("server start", sl.Err(err))
		return
	}
	lg.Info("service stopped")
}

func openStorage(ctx context.Context, conf *config.Config, lg *slog.Logger) (storage, error) {
	switch conf.Storage.Driver {
	case "sqlite":
		store, err := sqlite.New(conf.Sqlite.Path)
		if err != nil {
			return nil, err
		}
		lg.With(slog.String("path", conf.Sqlite.Path)).Info("sqlite storage initialized")
		return store, nil

	default:
		db := repository.NewMongoClient(conf, lg)
		indexCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		if err := db.EnsureIndexes(indexCtx); err != nil {
			lg.Error("mongo indexes", sl.Err(err))
		}
		lg.With(
			slog.String("host", conf.Mongo.Host),
			slog.String("port", conf.Mongo.Port),
			slog.String("user", conf.Mongo.User),
			slog.String("database", conf.Mongo.Database),
		).Info("mongo client initialized")
		return db, nil
	}
}

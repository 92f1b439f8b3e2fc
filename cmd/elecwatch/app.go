package main

import (
	"context"
	"fmt"
	"time"

	"github.com/rewired-gh/elecwatch/internal/fetcher"
	"github.com/rewired-gh/elecwatch/internal/logger"
	"github.com/rewired-gh/elecwatch/internal/models"
	"github.com/rewired-gh/elecwatch/internal/notify"
	"github.com/rewired-gh/elecwatch/internal/publisher"
	"github.com/rewired-gh/elecwatch/internal/runner"
	"github.com/rewired-gh/elecwatch/internal/storage"
	"github.com/rewired-gh/elecwatch/internal/telegram"
)

// app holds everything one or more batches need.
type app struct {
	units     []models.Unit
	loc       *time.Location
	store     *storage.Storage
	publisher *publisher.Publisher
	runner    *runner.Runner
}

// openStore opens the configured history backend. A read-only JSON store
// never moves a corrupt file aside.
func openStore(loc *time.Location, readOnly bool) (*storage.Storage, error) {
	switch cfg.Storage.Backend {
	case "sqlite":
		backend, err := storage.NewSQLite(cfg.Storage.DBPath)
		if err != nil {
			return nil, err
		}
		logger.Debug("Using SQLite history at %s", cfg.Storage.DBPath)
		return storage.New(backend), nil
	default:
		backend := storage.NewJSONFile(cfg.Storage.FilePath, loc)
		if readOnly {
			backend = storage.NewReadOnlyJSONFile(cfg.Storage.FilePath, loc)
		}
		logger.Debug("Using JSON history at %s", backend.Path())
		return storage.New(backend), nil
	}
}

// newApp loads units and wires the runner. Notification and MQTT channels
// that cannot be set up are logged and left out.
func newApp() (*app, error) {
	units, err := cfg.LoadUnits()
	if err != nil {
		return nil, configError(err)
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, configError(err)
	}

	client, err := fetcher.NewClient(fetcher.ClientConfig{
		Timeout:   cfg.Fetch.Timeout,
		Delay:     cfg.Fetch.Delay,
		Pattern:   cfg.Fetch.Pattern,
		UserAgent: cfg.Fetch.UserAgent,
	})
	if err != nil {
		return nil, configError(fmt.Errorf("fetch.pattern: %w", err))
	}

	store, err := openStore(loc, false)
	if err != nil {
		return nil, configError(err)
	}

	a := &app{units: units, loc: loc, store: store}
	a.publisher = newPublisher()

	var pub runner.Publisher
	if a.publisher != nil {
		pub = a.publisher
	}

	a.runner = runner.New(store, client, newDispatcher(), pub, runner.Options{
		Thresholds: cfg.Thresholds(),
		Retention:  cfg.Retention(),
		Location:   loc,
		PublicFile: cfg.Units.PublicFile,
	})
	return a, nil
}

func newDispatcher() *notify.Dispatcher {
	var channels []notify.Notifier
	if cfg.PushPlus.Enabled {
		channels = append(channels, notify.NewPushPlus(cfg.PushPlus.Endpoint, cfg.PushPlus.Timeout))
	}
	if cfg.Telegram.Enabled {
		tg, err := telegram.NewClient(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Telegram.MaxRetries, cfg.Telegram.RetryDelay)
		if err != nil {
			logger.Warn("Telegram notifications disabled: %v", err)
		} else {
			logger.Info("Telegram client initialized successfully")
			channels = append(channels, tg)
		}
	}
	d := notify.NewDispatcher(0, channels...)
	if d.Channels() == 0 {
		logger.Warn("No notification channels enabled; alerts will only be logged")
	}
	return d
}

func newPublisher() *publisher.Publisher {
	if !cfg.MQTT.Enabled {
		return nil
	}
	p, err := publisher.New(publisher.Config{
		Broker:      cfg.MQTT.Broker,
		ClientID:    cfg.MQTT.ClientID,
		Username:    cfg.MQTT.Username,
		Password:    cfg.MQTT.Password,
		TopicPrefix: cfg.MQTT.TopicPrefix,
		QoS:         byte(cfg.MQTT.QoS),
	})
	if err != nil {
		logger.Warn("MQTT publishing disabled: %v", err)
		return nil
	}
	logger.Info("Connected to MQTT broker %s", cfg.MQTT.Broker)
	return p
}

func (a *app) run(ctx context.Context) runner.Summary {
	return a.runner.Run(ctx, a.units)
}

func (a *app) Close() {
	if a.publisher != nil {
		a.publisher.Close()
	}
	if err := a.store.Close(); err != nil {
		logger.Error("Failed to close storage: %v", err)
	}
}

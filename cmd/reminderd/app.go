package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"

	"github.com/notexe/reminderd/internal/config"
	"github.com/notexe/reminderd/internal/dynamostore"
	"github.com/notexe/reminderd/internal/notify"
	"github.com/notexe/reminderd/internal/reminder"
)

// app holds everything a subcommand needs. Close releases it in reverse
// order of construction.
type app struct {
	cfg     *config.Config
	service *reminder.Service
	closers []io.Closer
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func newApp(ctx context.Context) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg}

	store, err := openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, store)

	notifier, alerter, err := a.buildSinks(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.service = reminder.NewService(store,
		reminder.WithNotifier(notifier),
		reminder.WithAlerter(alerter),
		reminder.WithTimeout(cfg.StoreTimeout()),
	)
	return a, nil
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			log.Printf("[reminderd] Warning: close failed: %v", err)
		}
	}
}

func openStore(ctx context.Context, cfg *config.Config) (reminder.Store, error) {
	switch cfg.Store.Driver {
	case config.DriverSQLite:
		if err := os.MkdirAll(filepath.Dir(cfg.Store.Path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
		return reminder.NewSQLiteStore(cfg.Store.Path)

	case config.DriverDynamoDB:
		store, err := dynamostore.New(ctx, dynamostore.Options{
			Table:    cfg.Store.Table,
			Region:   cfg.Store.Region,
			Endpoint: cfg.Store.Endpoint,
		})
		if err != nil {
			return nil, err
		}
		// Production tables are provisioned separately; a local endpoint
		// gets its table on first start.
		if cfg.Store.Endpoint != "" {
			if err := store.EnsureTable(ctx); err != nil {
				return nil, err
			}
		}
		return store, nil

	case config.DriverMemory:
		log.Printf("[reminderd] Warning: using the in-memory store, reminders are lost on exit")
		return reminder.NewMemoryStore(), nil
	}
	return nil, fmt.Errorf("unknown store driver: %s", cfg.Store.Driver)
}

// buildSinks wires the configured notification channels. People get the
// transitions listed in notify.events; Kafka gets every transition.
func (a *app) buildSinks(ctx context.Context) (reminder.Notifier, reminder.Alerter, error) {
	cfg := a.cfg.Notify

	kinds := make([]reminder.Transition, 0, len(cfg.Events))
	for _, e := range cfg.Events {
		kinds = append(kinds, reminder.Transition(e))
	}

	var (
		notifiers notify.Multi
		alerters  notify.MultiAlerter
	)

	if cfg.Telegram.Enabled {
		tg := notify.NewTelegram(cfg.Telegram.BotToken, cfg.Telegram.ChatID)
		notifiers = append(notifiers, notify.Only(tg, kinds...))
		alerters = append(alerters, tg)
	}

	if cfg.Email.Enabled {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(a.cfg.Store.Region))
		if err != nil {
			return nil, nil, fmt.Errorf("failed to load aws config: %w", err)
		}
		sender, err := notify.NewSESSender(awsCfg, cfg.Email.From)
		if err != nil {
			return nil, nil, err
		}
		email := notify.NewEmail(sender, cfg.Email.Recipients, cfg.Email.Operator)
		notifiers = append(notifiers, notify.Only(email, kinds...))
		if cfg.Email.Operator != "" {
			alerters = append(alerters, email)
		}
	}

	if cfg.Kafka.Enabled {
		k, err := notify.NewKafka(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		if err != nil {
			return nil, nil, err
		}
		a.closers = append(a.closers, k)
		notifiers = append(notifiers, k)
	}

	alerters = append(alerters, logAlerter{})
	return notifiers, alerters, nil
}

// logAlerter makes sure operator alerts reach the log even with no channel
// configured.
type logAlerter struct{}

func (logAlerter) Alert(_ context.Context, subject string, err error) error {
	log.Printf("[reminderd] ALERT: %s: %v", subject, err)
	return nil
}

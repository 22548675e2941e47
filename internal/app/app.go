package app

import (
	"context"
	"fmt"
	"time"

	"github.com/grachmannico95/wallet-webhook/internal/config"
	"github.com/grachmannico95/wallet-webhook/internal/eventbus"
	"github.com/grachmannico95/wallet-webhook/internal/ingest"
	"github.com/grachmannico95/wallet-webhook/internal/service"
	"github.com/grachmannico95/wallet-webhook/internal/slipstore"
	"github.com/grachmannico95/wallet-webhook/internal/storage"
	"github.com/grachmannico95/wallet-webhook/pkg/logger"
)

// App holds the collaborators shared by the server and the operator CLI.
type App struct {
	Store   storage.Store
	Bus     eventbus.EventBus
	Slips   slipstore.Store
	Service service.TransactionService

	logger *logger.Logger
}

type settings struct {
	eventBus bool
	clock    func() time.Time
}

type Option func(*settings)

// WithoutEventBus writes history inline instead of through workers.
func WithoutEventBus() Option {
	return func(s *settings) {
		s.eventBus = false
	}
}

func WithClock(clock func() time.Time) Option {
	return func(s *settings) {
		s.clock = clock
	}
}

// New opens storage and wires the service. Call Close when done.
func New(ctx context.Context, cfg *config.Config, log *logger.Logger, opts ...Option) (*App, error) {
	set := settings{eventBus: true}
	for _, opt := range opts {
		opt(&set)
	}

	store, err := storage.Open(ctx, storage.Options{
		Driver: cfg.Storage.Driver,
		DSN:    cfg.Storage.DSN,
		LogSQL: cfg.Storage.LogSQL,
	})
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}
	log.Info(ctx, "Repository initialized",
		"driver", cfg.Storage.Driver,
	)

	slips, err := slipstore.New(ctx, slipstore.Options{
		Backend:  cfg.Slip.Backend,
		Dir:      cfg.Slip.Dir,
		Bucket:   cfg.Slip.Bucket,
		Prefix:   cfg.Slip.Prefix,
		MaxBytes: cfg.Slip.MaxBytes,
	})
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("open slip store: %w", err)
	}

	a := &App{
		Store:  store,
		Slips:  slips,
		logger: log,
	}

	if set.eventBus {
		a.Bus = eventbus.New(log, &eventbus.Config{
			ChannelBuffer: cfg.EventBus.ChannelBufferSize,
			MaxRetries:    cfg.Worker.MaxRetries,
		})

		auditConsumer := eventbus.NewAuditConsumer(store, log, cfg.Worker.PoolSize)
		if err := a.Bus.Subscribe(eventbus.EventTypeTransaction, auditConsumer); err != nil {
			_ = a.Close(ctx)
			return nil, fmt.Errorf("subscribe audit consumer: %w", err)
		}
		log.Info(ctx, "Event bus initialized",
			"worker_count", auditConsumer.GetWorkerCount(),
		)
	}

	a.Service = service.NewTransactionService(service.Options{
		Repo: store,
		Decoder: ingest.NewDecoder(ingest.DecoderConfig{
			Secret:           cfg.Webhook.Secret,
			RequireSignature: cfg.Webhook.RequireSignature,
			VerifyClaims:     cfg.Webhook.VerifyClaims,
		}),
		Normalizer: ingest.NewNormalizer(ingest.NormalizerConfig{
			AmountUnit:       ingest.AmountUnit(cfg.Webhook.AmountUnit),
			ProviderLocation: cfg.ProviderLocation(),
			DisplayLocation:  cfg.DisplayLocation(),
		}),
		Bus:          a.Bus,
		Slips:        slips,
		Location:     cfg.DisplayLocation(),
		DefaultLimit: cfg.Query.DefaultLimit,
		MaxLimit:     cfg.Query.MaxLimit,
		SummaryDays:  cfg.Query.SummaryDays,
		DefaultActor: cfg.Operator.DefaultName,
		Clock:        set.clock,
		Logger:       log,
	})

	return a, nil
}

// Start runs the event bus workers, if any.
func (a *App) Start(ctx context.Context) error {
	if a.Bus == nil {
		return nil
	}
	return a.Bus.Start(ctx)
}

// Close drains the bus before releasing storage.
func (a *App) Close(ctx context.Context) error {
	var firstErr error

	if a.Bus != nil {
		if err := a.Bus.Shutdown(ctx); err != nil {
			a.logger.Error(ctx, "Event bus shutdown error",
				"error", err,
			)
			firstErr = err
		}
	}

	if a.Slips != nil {
		if err := a.Slips.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	if err := a.Store.Close(); err != nil && firstErr == nil {
		firstErr = err
	}

	return firstErr
}

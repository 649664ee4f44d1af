package app

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"news-webhook-relay/internal/config"
	"news-webhook-relay/internal/delivery"
	"news-webhook-relay/internal/format"
	"news-webhook-relay/internal/scheduler"
	"news-webhook-relay/internal/service"
	"news-webhook-relay/internal/source"
	"news-webhook-relay/internal/state"
	"news-webhook-relay/internal/storage"
	"news-webhook-relay/internal/translate"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logger.With().Str("component", "app").Logger()}
}

func (a *App) newSource() source.Adapter {
	return source.NewDashboard(source.Options{
		URL:               a.Config.Source.URL,
		PayloadURL:        a.Config.Source.PayloadURL,
		Timeout:           a.Config.Source.RequestTimeout,
		UserAgent:         a.Config.Source.UserAgent,
		PlaceholderValues: a.Config.Source.PlaceholderValues,
	}, a.Logger)
}

func (a *App) newFormatter() *format.Formatter {
	return format.New(format.Options{
		MessageLimit: a.Config.Delivery.MessageLimit,
		Tag:          a.Config.Delivery.Tag,
		SourceLink:   a.Config.Delivery.SourceLink,
		ChartBaseURL: a.Config.Delivery.ChartBaseURL,
	})
}

func (a *App) newSender() *delivery.Sender {
	return delivery.NewSender(delivery.Options{
		Timeout:   a.Config.Delivery.RequestTimeout,
		SendDelay: a.Config.Delivery.SendDelay,
	}, a.Logger)
}

func (a *App) newAugmenter() *translate.Augmenter {
	if !a.Config.Translation.Enabled {
		return nil
	}

	cfg := a.Config.Translation
	client := translate.NewHTTPClient(translate.Options{
		BaseURL:        cfg.APIURL,
		TargetLanguage: cfg.TargetLanguage,
		Timeout:        cfg.RequestTimeout,
	}, a.Logger)

	pool := translate.NewCredentialPool(cfg.APIKeys, cfg.Cooldown, a.Logger)

	return translate.NewAugmenter(client, pool, translate.AugmenterOptions{
		BatchSize:       cfg.BatchSize,
		BatchDelay:      cfg.BatchDelay,
		RetryMultiplier: cfg.RetryPerCredential,
	}, a.Logger)
}

func (a *App) openStore(ctx context.Context) (*storage.Store, func(), error) {
	if a.Config.Database.DSN == "" {
		return nil, nil, nil
	}

	pool, err := storage.NewPool(ctx, a.Config.Database)
	if err != nil {
		return nil, nil, err
	}

	store := storage.NewStore(pool)
	closer := func() {
		store.Close()
	}
	return store, closer, nil
}

func (a *App) buildService(store *storage.Store) *service.Service {
	var archive storage.DeliveryLogStore
	var runs storage.RunStore
	if store != nil {
		archive = store
		runs = store
	}

	states := state.NewStore(a.Config.State.Path, a.Logger)

	return service.New(
		a.Config,
		a.newSource(),
		states,
		a.newFormatter(),
		a.newSender(),
		a.newAugmenter(),
		archive,
		runs,
		a.Logger,
	)
}

// Run executes one single-shot batch run.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		a.Logger.Warn().Msg("database.dsn not configured; delivery archive disabled")
	}
	if closeStore != nil {
		defer closeStore()
	}

	svc := a.buildService(store)

	delivered, err := svc.RunOnce(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error().Err(err).Msg("run terminated with error")
		return err
	}

	a.Logger.Info().Int("delivered", delivered).Msg("newly delivered items")
	return nil
}

// Watch repeats single-shot runs on the configured interval.
func (a *App) Watch(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		a.Logger.Warn().Msg("database.dsn not configured; delivery archive disabled")
	}
	if closeStore != nil {
		defer closeStore()
	}

	svc := a.buildService(store)

	sched := scheduler.New(scheduler.Options{
		Interval:     a.Config.Scheduler.Interval,
		AlignToStart: a.Config.Scheduler.AlignToBucket,
		StartupDelay: a.Config.Scheduler.StartupDelay,
	}, a.Logger)

	a.Logger.Info().Msg("starting watch mode")
	err = sched.Run(ctx, func(ctx context.Context, _ time.Time) error {
		unlock, proceed, err := a.acquireLock(ctx, store)
		if err != nil {
			return err
		}
		if !proceed {
			a.Logger.Debug().Msg("skip run because advisory lock held elsewhere")
			return nil
		}
		if unlock != nil {
			defer unlock()
		}

		_, runErr := svc.RunOnce(ctx)
		return runErr
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error().Err(err).Msg("watch terminated with error")
		return err
	}

	a.Logger.Info().Msg("watch mode stopped")
	return nil
}

func (a *App) acquireLock(ctx context.Context, store *storage.Store) (func(), bool, error) {
	key := a.Config.Scheduler.AdvisoryLockKey
	if key == 0 || store == nil {
		return nil, true, nil
	}
	unlock, acquired, err := store.TryAdvisoryLock(ctx, key)
	if err != nil {
		return nil, false, err
	}
	if !acquired {
		return nil, false, nil
	}
	return unlock, true, nil
}

// ExportOptions hold parameters for exporting run history.
type ExportOptions struct {
	From      *time.Time
	To        *time.Time
	PNGPath   string
	CSVPath   string
	MaxPoints int
}

// ShowOptions configure the show command.
type ShowOptions struct {
	Limit int
}

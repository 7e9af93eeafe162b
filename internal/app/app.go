package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"flash-trader/internal/alerting"
	"flash-trader/internal/config"
	"flash-trader/internal/fetcher"
	"flash-trader/internal/identity"
	"flash-trader/internal/logging"
	"flash-trader/internal/metrics"
	"flash-trader/internal/scheduler"
	"flash-trader/internal/service"
	"flash-trader/internal/storage"
	"flash-trader/internal/storage/memory"
	"flash-trader/internal/transfer"
	"flash-trader/internal/version"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
	Out    io.Writer

	// repo overrides openRepository when set.
	repo storage.Repository
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{
		Config: cfg,
		Logger: logging.Component(logger, "app"),
		Out:    os.Stdout,
	}
}

func (a *App) newVolumeFetcher() fetcher.VolumeFetcher {
	if a.Config.Volume.Source == "http" {
		return fetcher.NewHTTPVolume(fetcher.VolumeOptions{
			URL:       a.Config.Volume.URL,
			Field:     a.Config.Volume.Field,
			Decimals:  a.Config.Volume.Decimals,
			Timeout:   a.Config.Volume.RequestTimeout,
			UserAgent: version.UserAgent(),
		}, a.Logger)
	}
	return fetcher.StaticVolume(a.Config.Volume.Static)
}

func (a *App) newExecutor() transfer.Executor {
	cfg := a.Config.Transfer
	if cfg.Executor == "webhook" {
		return transfer.NewWebhookExecutor(cfg.WebhookURL, cfg.AuthToken, cfg.Timeout, a.Logger)
	}
	return transfer.NewLogExecutor(a.Logger)
}

func (a *App) newNotifier() alerting.Notifier {
	if a.Config.Alerting.Enabled && a.Config.Alerting.Telegram.Enabled {
		cfg := a.Config.Alerting.Telegram
		return alerting.NewTelegramNotifier(cfg.BotToken, cfg.ChatID, cfg.APIBase, a.Config.Transfer.Timeout, a.Logger)
	}
	return nil
}

func (a *App) burnVault() (identity.Pubkey, error) {
	if a.Config.Transfer.BurnVault == "" {
		return identity.Pubkey{}, nil
	}
	vault, err := identity.Parse(a.Config.Transfer.BurnVault)
	if err != nil {
		return identity.Pubkey{}, fmt.Errorf("transfer.burn_vault: %w", err)
	}
	return vault, nil
}

// openRepository connects to PostgreSQL when a DSN is configured, otherwise
// falls back to an in-memory repository that lives for this process only.
func (a *App) openRepository(ctx context.Context) (storage.Repository, func(), error) {
	if a.repo != nil {
		return a.repo, func() {}, nil
	}

	if a.Config.Database.DSN == "" {
		a.Logger.Warn().Msg("database.dsn not configured; using in-memory state that is lost on exit")
		return memory.NewRepository(), func() {}, nil
	}

	pool, err := storage.NewPool(ctx, a.Config.Database)
	if err != nil {
		return nil, nil, err
	}
	store := storage.NewStore(pool)

	if a.Config.Database.AutoMigrate {
		if err := store.Migrate(ctx); err != nil {
			store.Close()
			return nil, nil, err
		}
	}
	return store, store.Close, nil
}

// newService wires a service over repo. sched and m may be nil.
func (a *App) newService(repo storage.Repository, sched *scheduler.Scheduler, m *metrics.Metrics) (*service.Service, error) {
	vault, err := a.burnVault()
	if err != nil {
		return nil, err
	}

	return service.New(service.Options{
		Repository: repo,
		Volume:     a.newVolumeFetcher(),
		Executor:   a.newExecutor(),
		Notifier:   a.newNotifier(),
		Metrics:    m,
		Scheduler:  sched,
		Pools:      a.Config.PoolPolicy(),
		Policy:     a.Config.CyclePolicy(),
		BurnVault:  vault,
		Retention:  a.Config.Archive.Retention,
		LockKey:    a.Config.Scheduler.AdvisoryLockKey,
	}, a.Logger)
}

// withService opens the repository, builds a one-shot service, and runs fn.
func (a *App) withService(ctx context.Context, fn func(*service.Service) error) error {
	repo, closeRepo, err := a.openRepository(ctx)
	if err != nil {
		return err
	}
	defer closeRepo()

	svc, err := a.newService(repo, nil, nil)
	if err != nil {
		return err
	}
	return fn(svc)
}

// Run executes the long-running cycle service.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	repo, closeRepo, err := a.openRepository(ctx)
	if err != nil {
		return err
	}
	defer closeRepo()

	var m *metrics.Metrics
	if a.Config.Metrics.Enabled {
		m = metrics.New(a.Config.Metrics.Namespace)
		go func() {
			if err := m.Serve(ctx, a.Config.Metrics.Listen, a.Logger); err != nil {
				a.Logger.Error().Err(err).Msg("metrics server stopped")
			}
		}()
	}

	sched := scheduler.New(scheduler.Options{
		Interval:     a.Config.Scheduler.Interval,
		AlignToStart: a.Config.Scheduler.AlignToBucket,
		StartupDelay: a.Config.Scheduler.StartupDelay,
	}, a.Logger)

	svc, err := a.newService(repo, sched, m)
	if err != nil {
		return err
	}

	a.Logger.Info().
		Dur("interval", a.Config.Scheduler.Interval).
		Str("volume_source", a.Config.Volume.Source).
		Str("executor", a.Config.Transfer.Executor).
		Msg("starting leaderboard service")
	err = svc.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error().Err(err).Msg("service terminated with error")
		return err
	}

	a.Logger.Info().Msg("leaderboard service stopped")
	return nil
}

// Migrate applies the database schema.
func (a *App) Migrate(ctx context.Context) error {
	if a.Config.Database.DSN == "" {
		return errors.New("database.dsn not configured; nothing to migrate")
	}
	pool, err := storage.NewPool(ctx, a.Config.Database)
	if err != nil {
		return err
	}
	store := storage.NewStore(pool)
	defer store.Close()

	if err := store.Migrate(ctx); err != nil {
		return err
	}
	a.Logger.Info().Msg("schema applied")
	return nil
}

// ExportOptions hold parameters for exporting the leaderboard and its history.
type ExportOptions struct {
	CSVPath        string
	ArchiveCSVPath string
	PNGPath        string
	ArchiveLimit   int
}

// ShowOptions configure the show command.
type ShowOptions struct {
	Limit       int
	Archive     bool
	Trader      string
	Owner       string
	Allocations bool
}

// ReplayOptions configure replaying a recorded event file.
type ReplayOptions struct {
	Path   string
	DryRun bool
}

package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/eastgenomics/sc-wgs-monitoring/internal/config"
	v1 "github.com/eastgenomics/sc-wgs-monitoring/internal/controller/http/v1"
	"github.com/eastgenomics/sc-wgs-monitoring/internal/domain"
	"github.com/eastgenomics/sc-wgs-monitoring/internal/notify"
	"github.com/eastgenomics/sc-wgs-monitoring/internal/pipeline"
	"github.com/eastgenomics/sc-wgs-monitoring/internal/platform/dnanexus"
	"github.com/eastgenomics/sc-wgs-monitoring/internal/report"
	"github.com/eastgenomics/sc-wgs-monitoring/internal/repository/postgresql"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"
)

type App struct {
	log *slog.Logger
	cfg *config.Config
}

func New(log *slog.Logger, cfg *config.Config) *App {
	return &App{
		log: log,
		cfg: cfg,
	}
}

// StartJobs runs the launch-new-work mode. Exactly one input source is
// used: explicit platform ids (which bypass dedup so samples can be
// deliberately reprocessed), explicit local paths, the DNAnexus project, or
// the watched directory, the latter two filtered by the trailing time
// window.
func (a *App) StartJobs(ctx context.Context, platformIDs, localPaths []string) error {
	pool, err := a.connect(ctx)
	if err != nil {
		return err
	}
	defer pool.Close()

	client := dnanexus.NewClient(a.log, a.cfg.DNAnexus.Token, a.cfg.DNAnexus.Project)
	discovery := pipeline.NewDiscovery(a.log, client, client)

	var files []domain.InputFile
	bypassDedup := false

	switch {
	case len(platformIDs) > 0:
		files, err = discovery.FromPlatformIDs(ctx, platformIDs)
		bypassDedup = true
	case len(localPaths) > 0:
		files, err = discovery.FromPaths(localPaths)
	case a.cfg.WatchPlatform:
		files, err = discovery.FromPlatform(ctx, a.cfg.TimeToCheck)
	default:
		files, err = discovery.Watched(ctx, a.cfg.WatchDirectory, a.cfg.TimeToCheck)
	}
	if err != nil {
		return err
	}

	if len(files) == 0 {
		a.log.InfoContext(ctx, "couldn't find any files, nothing to do")
		return nil
	}

	orchestrator := a.buildOrchestrator(pool, client)

	batchReport, err := orchestrator.Run(ctx, files, bypassDedup)
	if err != nil {
		return err
	}

	a.logReport(ctx, batchReport)

	return nil
}

// CheckJobs runs the monitor-existing-work mode over executions created
// inside the trailing window.
func (a *App) CheckJobs(ctx context.Context) error {
	pool, err := a.connect(ctx)
	if err != nil {
		return err
	}
	defer pool.Close()

	client := dnanexus.NewClient(a.log, a.cfg.DNAnexus.Token, a.cfg.DNAnexus.Project)

	orchestrator := a.buildOrchestrator(pool, client)

	batchReport, err := orchestrator.CheckJobs(ctx, time.Now().Add(-a.cfg.TimeToCheck))
	if err != nil {
		return err
	}

	a.logReport(ctx, batchReport)

	return nil
}

// Serve exposes the tracker audit trail over HTTP until the context is
// cancelled.
func (a *App) Serve(ctx context.Context) error {
	pool, err := a.connect(ctx)
	if err != nil {
		return err
	}
	defer pool.Close()

	tracker := postgresql.NewTrackerRepository(pool)
	server := v1.NewServer(a.cfg.HTTP, tracker)

	erg, ctx := errgroup.WithContext(ctx)

	erg.Go(func() error {
		a.log.InfoContext(ctx, "starting http server",
			slog.String("addr", net.JoinHostPort(a.cfg.HTTP.Host, a.cfg.HTTP.Port)),
		)

		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server error: %w", err)
		}

		return nil
	})

	erg.Go(func() error {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		return server.Shutdown(shutdownCtx)
	})

	if err := erg.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	return nil
}

func (a *App) connect(ctx context.Context) (*pgxpool.Pool, error) {
	a.log.InfoContext(ctx, "establishing postgresql connection",
		slog.String("postgresql_host", a.cfg.PostgreSQL.Host),
		slog.String("postgresql_port", a.cfg.PostgreSQL.Port),
		slog.String("postgresql_dbname", a.cfg.PostgreSQL.DBName),
	)

	pool, err := postgresql.NewConnection(ctx, a.log, a.cfg.PostgreSQL)
	if err != nil {
		return nil, fmt.Errorf("failed to create db connection: %w", err)
	}

	return pool, nil
}

func (a *App) buildOrchestrator(pool *pgxpool.Pool, client *dnanexus.Client) *pipeline.Orchestrator {
	tracker := postgresql.NewTrackerRepository(pool)
	txManager := postgresql.NewTxManager(pool)
	notifier := notify.NewSlackNotifier(a.log, a.cfg.Slack.Token)

	grouper := pipeline.NewGrouper(a.log, pipeline.DefaultRolePatterns())
	dedup := pipeline.NewDedup(a.log, tracker)
	preparer := pipeline.NewPreparer(
		a.log,
		client,
		a.cfg.DNAnexus.WorkbookAppID,
		a.cfg.DNAnexus.ReferenceInputs(),
		a.cfg.App.PIDDivID,
	)
	launcher := pipeline.NewLauncher(a.log, client, tracker, a.cfg.App.Concurrency)
	monitor := pipeline.NewMonitor(
		a.log,
		client,
		client,
		tracker,
		a.cfg.App.ClinGenDirectory,
		a.cfg.App.PollInterval,
		a.cfg.App.JobTimeout,
		a.cfg.App.Concurrency,
	)

	return pipeline.NewOrchestrator(
		a.log,
		grouper,
		dedup,
		preparer,
		launcher,
		monitor,
		tracker,
		txManager,
		client,
		client,
		report.NewCSVWriter(),
		notifier,
		a.cfg.DNAnexus.WorkbookAppID,
		a.cfg.Slack.LogChannel,
		a.cfg.Slack.AlertChannel,
	)
}

func (a *App) logReport(ctx context.Context, batchReport *domain.BatchReport) {
	if batchReport.NothingToDo() {
		a.log.InfoContext(ctx, "nothing to do",
			slog.String("run_id", batchReport.RunID),
			slog.Int("already_seen", len(batchReport.AlreadySeen)),
		)
		return
	}

	a.log.InfoContext(ctx, "run finished",
		slog.String("run_id", batchReport.RunID),
		slog.Int("launched", len(batchReport.Launched)),
		slog.Int("launch_errors", len(batchReport.LaunchErrors)),
		slog.Int("failures", len(batchReport.Failures)),
		slog.Int("already_seen", len(batchReport.AlreadySeen)),
	)
}

package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"DailyDigest/internal/aggregator"
	"DailyDigest/internal/analyzer"
	"DailyDigest/internal/config"
	"DailyDigest/internal/delivery"
	"DailyDigest/internal/domain"
	"DailyDigest/internal/httpapi"
	"DailyDigest/internal/infrastructure/llm"
	"DailyDigest/internal/infrastructure/mail"
	"DailyDigest/internal/infrastructure/parser"
	"DailyDigest/internal/infrastructure/scheduler"
	"DailyDigest/internal/infrastructure/storage"
	"DailyDigest/internal/infrastructure/telegram"
	"DailyDigest/internal/logging"
	"DailyDigest/internal/metrics"
	"DailyDigest/internal/ports"
	"DailyDigest/internal/usecase"
)

// Options tweak how the application is assembled for one command.
type Options struct {
	DryRun bool
	// CronLog receives the cron library's own log lines; nil means stdout.
	CronLog io.Writer
}

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg       config.Config
	logger    *slog.Logger
	job       *usecase.DailyJob
	scheduler *usecase.Scheduler
	artifacts ports.ArtifactStore
	ledger    *storage.SQLLedger
}

// New builds the runnable application from configuration.
func New(ctx context.Context, cfg config.Config, baseLogger *slog.Logger, opts Options) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level)
	}

	completer := llm.NewChatGPTClient(cfg.ChatGPT)
	summarizer := analyzer.NewAbstractSummarizer(completer, cfg.Analyzer.AbstractInstructions, cfg.Analyzer.AbstractMaxChars, baseLogger.With("component", "summarizer"))

	httpClient := &http.Client{Timeout: 30 * time.Second}
	registry := parser.DefaultRegistry(httpClient, baseLogger.With("component", "scanner"), summarizer)
	source := parser.NewStrategySource(registry, cfg.Sites, baseLogger.With("component", "source"))
	sources, err := source.Sources()
	if err != nil {
		return nil, fmt.Errorf("build sources: %w", err)
	}

	agg := aggregator.New(aggregator.Config{
		Workers:       cfg.Aggregator.Workers,
		SourceTimeout: cfg.Aggregator.SourceTimeout,
	}, baseLogger.With("component", "aggregator"), aggregator.WithObserver(metrics.RecordSourceFetch))

	gateway := analyzer.New(completer, cfg.Analyzer.MaxInputChars, baseLogger.With("component", "analyzer"))

	controller := usecase.NewController(usecase.ControllerDeps{
		Aggregator: agg,
		Sources:    sources,
		Filter:     aggregator.NewKeywordGate(cfg.Aggregator.TopicTerms, cfg.Aggregator.QualifierTerms, cfg.Aggregator.MatchSummary),
		Analyzer:   gateway,
		Observer: func(_ time.Time, a domain.RunAttempt) {
			metrics.RecordAttempt(string(a.Status), a.FinishedAt.Sub(a.StartedAt).Seconds())
		},
		Logger: baseLogger.With("component", "controller"),
	}, usecase.ControllerConfig{
		MaxAttempts:  cfg.Pipeline.MaxAttempts,
		RetryDelay:   cfg.Pipeline.RetryDelay,
		Limit:        cfg.Aggregator.Limit,
		Instructions: cfg.Analyzer.Instructions,
	})

	dispatcher := delivery.NewDispatcher(delivery.DispatcherDeps{
		Notifier: newNotifier(cfg, baseLogger),
		Observer: func(r domain.DeliveryResult) { metrics.RecordDelivery(r.Succeeded, r.Individually) },
		Logger:   baseLogger.With("component", "dispatcher"),
	}, delivery.Config{
		BatchSize:          cfg.Delivery.BatchSize,
		InterBatchDelay:    cfg.Delivery.InterBatchDelay,
		FallbackIndividual: cfg.Delivery.FallbackIndividual,
		BatchFooter:        true,
	})

	artifacts, err := storage.NewArtifactStore(ctx, cfg.Storage.Artifacts)
	if err != nil {
		return nil, fmt.Errorf("artifact store: %w", err)
	}

	a := &Application{cfg: cfg, logger: baseLogger, artifacts: artifacts}

	var ledger ports.RunLedger
	if cfg.Storage.Ledger.Driver != "" {
		a.ledger, err = storage.OpenLedger(ctx, cfg.Storage.Ledger)
		if err != nil {
			return nil, fmt.Errorf("run ledger: %w", err)
		}
		ledger = a.ledger
	}

	recipientsFile := cfg.Delivery.RecipientsFile
	a.job = usecase.NewDailyJob(usecase.DailyJobDeps{
		Controller: controller,
		Dispatcher: dispatcher,
		Artifacts:  artifacts,
		Ledger:     ledger,
		Recipients: func() ([]string, error) { return delivery.LoadRecipients(recipientsFile) },
		Logger:     baseLogger.With("component", "job"),
	}, usecase.DailyJobConfig{
		Message: analyzer.MessageOptions{
			Subject: cfg.Delivery.Subject,
			Footer:  cfg.Delivery.Footer,
		},
		AttachRaw: cfg.Delivery.AttachRaw,
		DryRun:    opts.DryRun,
	})

	loc := cfg.Scheduler.Location()
	driver := scheduler.NewCronScheduler(cfg.Scheduler.CronExpression, loc, opts.CronLog)
	a.scheduler = usecase.NewScheduler(driver, a.job, loc, baseLogger.With("component", "scheduler"))
	a.scheduler.OnFinish(func(r usecase.Report, _ error) {
		metrics.RecordRun(r.Outcome.State.String(), float64(time.Now().Unix()))
	})

	return a, nil
}

func newNotifier(cfg config.Config, logger *slog.Logger) ports.Notifier {
	switch strings.ToLower(cfg.Delivery.Channel) {
	case "telegram":
		return telegram.NewNotifier(cfg.Notifications.Telegram)
	default:
		return mail.NewSMTPNotifier(cfg.Email, logger.With("component", "smtp"))
	}
}

// Today is the current calendar day in the configured timezone.
func (a *Application) Today() time.Time {
	return time.Now().In(a.cfg.Scheduler.Location())
}

// RunOnce executes the daily job for day through the scheduler so the
// per-day bookkeeping and metrics match scheduled runs.
func (a *Application) RunOnce(ctx context.Context, day time.Time) (usecase.Report, error) {
	return a.scheduler.Trigger(ctx, day)
}

// Replay re-sends the stored analysis of day.
func (a *Application) Replay(ctx context.Context, day time.Time) (usecase.Report, error) {
	return a.job.Replay(ctx, day.In(a.cfg.Scheduler.Location()))
}

// Serve starts the cron scheduler and the status server and blocks until ctx
// is cancelled.
func (a *Application) Serve(ctx context.Context) error {
	if err := a.scheduler.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	a.logger.Info("scheduler started", "cron", a.cfg.Scheduler.CronExpression, "timezone", a.cfg.Scheduler.Timezone)

	var ledger ports.RunLedger
	if a.ledger != nil {
		ledger = a.ledger
	}
	server := httpapi.NewServer(a.cfg.HTTP.Addr, httpapi.Deps{
		Ledger:    ledger,
		Artifacts: a.artifacts,
		Logger:    a.logger.With("component", "http"),
	})
	serveErr := server.Run(ctx)

	stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := a.scheduler.Stop(stopCtx); err != nil {
		a.logger.Warn("stop scheduler", "error", err)
	}
	return serveErr
}

// Close releases the ledger connection.
func (a *Application) Close() error {
	if a.ledger != nil {
		return a.ledger.Close()
	}
	return nil
}

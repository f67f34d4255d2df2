package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"DailyDigest/internal/analyzer"
	"DailyDigest/internal/domain"
	"DailyDigest/internal/ports"
)

// Runner produces the day's analysis.
type Runner interface {
	Run(ctx context.Context, day time.Time) (Outcome, error)
}

// Deliverer sends a rendered message to a recipient list.
type Deliverer interface {
	Deliver(ctx context.Context, msg domain.RenderedMessage, recipients []string, attachments []domain.Attachment) (domain.DeliverySummary, error)
}

// DailyJobDeps wires one day's run end to end. Artifacts, Ledger and
// Dispatcher are optional.
type DailyJobDeps struct {
	Controller Runner
	Dispatcher Deliverer
	Artifacts  ports.ArtifactStore
	Ledger     ports.RunLedger
	Recipients func() ([]string, error)
	NewRunID   func() string
	Logger     *slog.Logger
}

// DailyJobConfig shapes the outbound message.
type DailyJobConfig struct {
	Message   analyzer.MessageOptions
	AttachRaw bool
	DryRun    bool
}

// Report describes what one job invocation did.
type Report struct {
	RunID    string
	Day      string
	Outcome  Outcome
	Message  domain.RenderedMessage
	Delivery *domain.DeliverySummary
	Skipped  bool
}

// DailyJob runs the controller, persists the day's artifacts and dispatches
// the rendered digest.
type DailyJob struct {
	controller Runner
	dispatcher Deliverer
	artifacts  ports.ArtifactStore
	ledger     ports.RunLedger
	recipients func() ([]string, error)
	newRunID   func() string
	logger     *slog.Logger
	cfg        DailyJobConfig
}

// NewDailyJob constructs the job.
func NewDailyJob(deps DailyJobDeps, cfg DailyJobConfig) *DailyJob {
	j := &DailyJob{
		controller: deps.Controller,
		dispatcher: deps.Dispatcher,
		artifacts:  deps.Artifacts,
		ledger:     deps.Ledger,
		recipients: deps.Recipients,
		newRunID:   deps.NewRunID,
		logger:     deps.Logger,
		cfg:        cfg,
	}
	if j.newRunID == nil {
		j.newRunID = uuid.NewString
	}
	return j
}

// Run executes the full pipeline for day. An exhausted controller is
// returned as an error; nothing is sent in that case.
func (j *DailyJob) Run(ctx context.Context, day time.Time) (Report, error) {
	if j.controller == nil {
		return Report{}, fmt.Errorf("daily job: controller is not configured")
	}

	report := Report{RunID: j.newRunID(), Day: domain.DayKey(day)}
	out, err := j.controller.Run(ctx, day)
	report.Outcome = out
	j.recordAttempts(ctx, report.RunID, report.Day, out.Attempts)
	if err != nil {
		return report, err
	}

	j.persistRun(ctx, report.Day, out)

	report.Message = analyzer.RenderMessage(out.Day, out.Analysis, out.Items, j.cfg.Message)
	if j.cfg.DryRun {
		j.info("dry run, delivery skipped", "date", report.Day, "items", len(out.Items))
		return report, nil
	}

	summary, err := j.deliver(ctx, report.RunID, report.Day, report.Message, out.RawText)
	report.Delivery = summary
	return report, err
}

// Replay re-sends the stored analysis of day without aggregating again.
func (j *DailyJob) Replay(ctx context.Context, day time.Time) (Report, error) {
	if j.artifacts == nil {
		return Report{}, fmt.Errorf("replay: artifact store is not configured")
	}

	report := Report{RunID: j.newRunID(), Day: domain.DayKey(day)}

	analysisText, err := j.artifacts.Get(ctx, report.Day, ports.ArtifactAnalysis)
	if err != nil {
		return report, fmt.Errorf("replay %s: %w", report.Day, err)
	}

	var items []domain.Item
	if raw, err := j.artifacts.Get(ctx, report.Day, ports.ArtifactItems); err == nil {
		if err := json.Unmarshal(raw, &items); err != nil {
			j.warn("stored items unreadable, sending analysis only", "date", report.Day, "error", err)
			items = nil
		}
	} else if !errors.Is(err, ports.ErrArtifactNotFound) {
		return report, fmt.Errorf("replay %s: %w", report.Day, err)
	}

	rawText := ""
	if j.cfg.AttachRaw {
		if data, err := j.artifacts.Get(ctx, report.Day, ports.ArtifactRaw); err == nil {
			rawText = string(data)
		}
	}

	analysis := domain.AnalysisResult{}
	if meta, err := j.artifacts.Get(ctx, report.Day, ports.ArtifactAnalysisMeta); err == nil {
		if err := json.Unmarshal(meta, &analysis); err != nil {
			j.warn("stored analysis flags unreadable", "date", report.Day, "error", err)
			analysis = domain.AnalysisResult{}
		}
	} else if !errors.Is(err, ports.ErrArtifactNotFound) {
		return report, fmt.Errorf("replay %s: %w", report.Day, err)
	}
	analysis.Text = string(analysisText)
	report.Outcome = Outcome{Day: domain.DayWindow(day).Day, State: StateSucceeded, Items: items, RawText: rawText, Analysis: analysis}
	report.Message = analyzer.RenderMessage(day, analysis, items, j.cfg.Message)
	if j.cfg.DryRun {
		return report, nil
	}

	summary, err := j.deliver(ctx, report.RunID, report.Day, report.Message, rawText)
	report.Delivery = summary
	return report, err
}

func (j *DailyJob) deliver(ctx context.Context, runID, day string, msg domain.RenderedMessage, rawText string) (*domain.DeliverySummary, error) {
	if j.dispatcher == nil {
		return nil, fmt.Errorf("deliver %s: dispatcher is not configured", day)
	}
	if j.recipients == nil {
		return nil, fmt.Errorf("deliver %s: recipient source is not configured", day)
	}

	recipients, err := j.recipients()
	if err != nil {
		return nil, fmt.Errorf("deliver %s: %w", day, err)
	}

	var attachments []domain.Attachment
	if j.cfg.AttachRaw && rawText != "" {
		attachments = append(attachments, domain.Attachment{
			Name:        fmt.Sprintf("daily-items-%s.txt", day),
			ContentType: "text/plain; charset=utf-8",
			Data:        []byte(rawText),
		})
	}

	summary, err := j.dispatcher.Deliver(ctx, msg, recipients, attachments)
	if err != nil {
		return nil, fmt.Errorf("deliver %s: %w", day, err)
	}
	summary.Day = day

	if data, err := json.MarshalIndent(summary, "", "  "); err == nil {
		j.put(ctx, day, ports.ArtifactDelivery, data)
	}
	if j.ledger != nil {
		if err := j.ledger.RecordDelivery(ctx, runID, summary); err != nil {
			j.warn("record delivery", "date", day, "error", err)
		}
	}
	return &summary, nil
}

func (j *DailyJob) persistRun(ctx context.Context, day string, out Outcome) {
	j.put(ctx, day, ports.ArtifactRaw, []byte(out.RawText))
	j.put(ctx, day, ports.ArtifactAnalysis, []byte(out.Analysis.Text))
	if data, err := json.Marshal(out.Analysis); err == nil {
		j.put(ctx, day, ports.ArtifactAnalysisMeta, data)
	}
	if data, err := json.MarshalIndent(out.Items, "", "  "); err == nil {
		j.put(ctx, day, ports.ArtifactItems, data)
	}
}

func (j *DailyJob) put(ctx context.Context, day, name string, data []byte) {
	if j.artifacts == nil {
		return
	}
	if err := j.artifacts.Put(ctx, day, name, data); err != nil {
		j.warn("persist artifact", "date", day, "name", name, "error", err)
	}
}

func (j *DailyJob) recordAttempts(ctx context.Context, runID, day string, attempts []domain.RunAttempt) {
	if j.ledger == nil {
		return
	}
	for _, a := range attempts {
		if err := j.ledger.RecordAttempt(ctx, runID, day, a); err != nil {
			j.warn("record attempt", "date", day, "attempt", a.AttemptNumber, "error", err)
			return
		}
	}
}

func (j *DailyJob) info(msg string, args ...any) {
	if j.logger != nil {
		j.logger.Info(msg, args...)
	}
}

func (j *DailyJob) warn(msg string, args ...any) {
	if j.logger != nil {
		j.logger.Warn(msg, args...)
	}
}

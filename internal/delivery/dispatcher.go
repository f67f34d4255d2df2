package delivery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"DailyDigest/internal/clock"
	"DailyDigest/internal/domain"
	"DailyDigest/internal/ports"
)

const defaultBatchSize = 20

// ErrNoCredentials is returned when no outbound session can be opened at all,
// either because credentials are missing or the relay refuses the connection.
var ErrNoCredentials = errors.New("delivery: outbound channel unavailable")

// Config drives batching and pacing.
type Config struct {
	BatchSize          int
	InterBatchDelay    time.Duration
	FallbackIndividual bool
	// BatchFooter appends "batch i/n" to the text part when there is more than one batch.
	BatchFooter bool
}

// Observer sees every per-recipient outcome as it is recorded.
type Observer func(result domain.DeliveryResult)

// DispatcherDeps wires the outbound channel and the waiting primitive.
type DispatcherDeps struct {
	Notifier ports.Notifier
	Sleeper  clock.Sleeper
	Clock    func() time.Time
	Observer Observer
	Logger   *slog.Logger
}

// Dispatcher sends one rendered message to a recipient list in sequential,
// paced batches and records exactly one outcome per recipient.
type Dispatcher struct {
	notifier ports.Notifier
	sleeper  clock.Sleeper
	now      func() time.Time
	observe  Observer
	logger   *slog.Logger
	cfg      Config
}

// NewDispatcher builds a dispatcher; BatchSize <= 0 falls back to 20.
func NewDispatcher(deps DispatcherDeps, cfg Config) *Dispatcher {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}
	d := &Dispatcher{
		notifier: deps.Notifier,
		sleeper:  deps.Sleeper,
		now:      deps.Clock,
		observe:  deps.Observer,
		logger:   deps.Logger,
		cfg:      cfg,
	}
	if d.sleeper == nil {
		d.sleeper = clock.Context
	}
	if d.now == nil {
		d.now = time.Now
	}
	return d
}

// Deliver opens one session, sends every batch and closes the session. Partial
// failures are reported in the summary; only an unavailable channel is an error.
func (d *Dispatcher) Deliver(ctx context.Context, msg domain.RenderedMessage, recipients []string, attachments []domain.Attachment) (domain.DeliverySummary, error) {
	summary := domain.DeliverySummary{SentAt: d.now()}
	if len(recipients) == 0 {
		return summary, nil
	}
	if d.notifier == nil {
		return summary, fmt.Errorf("%w: notifier is not configured", ErrNoCredentials)
	}

	session, err := d.notifier.Open(ctx)
	if err != nil {
		return summary, fmt.Errorf("%w: %w", ErrNoCredentials, err)
	}
	defer func() {
		if err := session.Close(); err != nil {
			d.warn("close session", "error", err)
		}
	}()

	batches := split(recipients, d.cfg.BatchSize)
	summary.Batches = len(batches)
	results := make([]domain.DeliveryResult, 0, len(recipients))

	for i, batch := range batches {
		index := i + 1
		if i > 0 {
			if err := d.sleeper.Sleep(ctx, d.cfg.InterBatchDelay); err != nil {
				d.warn("dispatch cancelled, remaining recipients marked failed", "batch", index, "error", err)
				for j := i; j < len(batches); j++ {
					results = d.failAll(results, batches[j], j+1, err)
				}
				break
			}
		}

		body := msg
		if d.cfg.BatchFooter && len(batches) > 1 {
			body.Text = fmt.Sprintf("%s\n-- batch %d/%d\n", body.Text, index, len(batches))
		}

		err := session.Send(ctx, batch, msg.Subject, body, attachments)
		if err == nil {
			d.debug("batch sent", "batch", index, "recipients", len(batch))
			for _, r := range batch {
				results = d.record(results, domain.DeliveryResult{Recipient: r, BatchIndex: index, Succeeded: true})
			}
			continue
		}

		d.warn("batch failed", "batch", index, "recipients", len(batch), "fallback", d.cfg.FallbackIndividual, "error", err)
		if !d.cfg.FallbackIndividual {
			results = d.failAll(results, batch, index, err)
			continue
		}
		results = d.fanOut(ctx, session, results, batch, index, msg.Subject, body, attachments)
	}

	summary.Results = results
	summary.Tally()
	d.info("delivery finished", "recipients", summary.Recipients, "succeeded", summary.Succeeded, "failed", summary.Failed, "batches", summary.Batches)
	return summary, nil
}

func (d *Dispatcher) fanOut(ctx context.Context, session ports.Session, results []domain.DeliveryResult, batch []string, index int, subject string, body domain.RenderedMessage, attachments []domain.Attachment) []domain.DeliveryResult {
	for _, r := range batch {
		res := domain.DeliveryResult{Recipient: r, BatchIndex: index, Individually: true}
		if err := ctx.Err(); err != nil {
			res.FailureReason = err.Error()
		} else if err := session.Send(ctx, []string{r}, subject, body, attachments); err != nil {
			res.FailureReason = err.Error()
			d.debug("individual send failed", "recipient", r, "error", err)
		} else {
			res.Succeeded = true
		}
		results = d.record(results, res)
	}
	return results
}

func (d *Dispatcher) failAll(results []domain.DeliveryResult, batch []string, index int, cause error) []domain.DeliveryResult {
	for _, r := range batch {
		results = d.record(results, domain.DeliveryResult{Recipient: r, BatchIndex: index, FailureReason: cause.Error()})
	}
	return results
}

func (d *Dispatcher) record(results []domain.DeliveryResult, res domain.DeliveryResult) []domain.DeliveryResult {
	if d.observe != nil {
		d.observe(res)
	}
	return append(results, res)
}

func split(recipients []string, size int) [][]string {
	batches := make([][]string, 0, (len(recipients)+size-1)/size)
	for start := 0; start < len(recipients); start += size {
		end := min(start+size, len(recipients))
		batches = append(batches, recipients[start:end])
	}
	return batches
}

func (d *Dispatcher) debug(msg string, args ...any) {
	if d.logger != nil {
		d.logger.Debug(msg, args...)
	}
}

func (d *Dispatcher) info(msg string, args ...any) {
	if d.logger != nil {
		d.logger.Info(msg, args...)
	}
}

func (d *Dispatcher) warn(msg string, args ...any) {
	if d.logger != nil {
		d.logger.Warn(msg, args...)
	}
}

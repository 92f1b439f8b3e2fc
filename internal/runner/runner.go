// Package runner executes one monitoring batch: fetch every unit, estimate its
// consumption, record the reading, alert when thresholds are crossed, then
// persist history and the public unit view.
package runner

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/rewired-gh/elecwatch/internal/config"
	"github.com/rewired-gh/elecwatch/internal/logger"
	"github.com/rewired-gh/elecwatch/internal/models"
	"github.com/rewired-gh/elecwatch/internal/monitor"
	"github.com/rewired-gh/elecwatch/internal/notify"
	"github.com/rewired-gh/elecwatch/internal/storage"
)

// Fetcher retrieves the current balance from a unit's page.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (float64, error)
}

// Notifier delivers alerts. Delivery failures are the notifier's concern.
type Notifier interface {
	Notify(ctx context.Context, unit models.Unit, msg notify.Message) int
}

// Publisher mirrors a unit's newest record somewhere else.
type Publisher interface {
	Publish(unit models.Unit, rec models.Record, alert bool) error
}

// Options tune a Runner.
type Options struct {
	Thresholds models.Thresholds
	Retention  storage.Retention
	Location   *time.Location
	PublicFile string // skipped when empty
	Now        func() time.Time
}

// Runner wires the fetcher, estimator, store and delivery channels together.
type Runner struct {
	store     *storage.Storage
	fetcher   Fetcher
	notifier  Notifier
	publisher Publisher
	opts      Options
}

// Summary reports the outcome of one batch.
type Summary struct {
	RunID     string
	Started   time.Time
	Processed int
	Failed    int
	Alerts    int
	SaveErr   error
}

// New creates a Runner. notifier and publisher may be nil.
func New(store *storage.Storage, fetcher Fetcher, notifier Notifier, publisher Publisher, opts Options) *Runner {
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Retention.Policy == "" {
		opts.Retention = storage.DefaultRetention()
	}
	return &Runner{
		store:     store,
		fetcher:   fetcher,
		notifier:  notifier,
		publisher: publisher,
		opts:      opts,
	}
}

// Run executes one batch over units. Per-unit failures are logged and
// counted; they never abort the batch. History is saved once at the end, even
// when ctx is cancelled part way through.
func (r *Runner) Run(ctx context.Context, units []models.Unit) Summary {
	sum := Summary{RunID: uuid.NewString(), Started: r.opts.Now()}
	logger.Info("Run %s started with %d units", sum.RunID, len(units))

	if err := r.store.Load(); err != nil {
		logger.Warn("Run %s: starting with empty history: %v", sum.RunID, err)
	}

	for _, unit := range units {
		if err := ctx.Err(); err != nil {
			logger.Warn("Run %s interrupted: %v", sum.RunID, err)
			break
		}
		if r.processUnit(ctx, sum.RunID, unit, &sum) {
			sum.Processed++
		} else {
			sum.Failed++
		}
	}

	if err := r.store.Save(); err != nil {
		sum.SaveErr = err
		logger.Error("Run %s: %v", sum.RunID, err)
	}

	if r.opts.PublicFile != "" {
		if err := config.WritePublicUnits(r.opts.PublicFile, units); err != nil {
			logger.Warn("Run %s: %v", sum.RunID, err)
		}
	}

	logger.Slog().Info("run finished",
		"run_id", sum.RunID,
		"processed", sum.Processed,
		"failed", sum.Failed,
		"alerts", sum.Alerts,
		"saved", sum.SaveErr == nil,
		"duration", r.opts.Now().Sub(sum.Started).Round(time.Millisecond).String())
	return sum
}

func (r *Runner) processUnit(ctx context.Context, runID string, unit models.Unit, sum *Summary) bool {
	id := unit.Key()
	logger.Debug("Run %s: fetching %s", runID, id)

	kwh, err := r.fetcher.Fetch(ctx, unit.URL)
	if err != nil {
		logger.Warn("Run %s: fetch failed for %s: %v", runID, id, err)
		return false
	}

	now := r.opts.Now().In(r.opts.Location).Truncate(time.Second)
	reading := models.Reading{Time: now, KWh: kwh}

	// Estimate against history as it was before this reading.
	est := monitor.Estimate(r.store.History(id), reading, now)
	rec := models.NewRecord(reading, est)

	if err := r.store.Append(id, rec); err != nil {
		logger.Warn("Run %s: cannot record reading for %s: %v", runID, id, err)
		return false
	}
	if dropped := r.opts.Retention.Apply(r.store, id, now); dropped > 0 {
		logger.Debug("Run %s: dropped %d old records for %s", runID, dropped, id)
	}

	logger.Info("Run %s: %s has %.2f kWh, %.3f/%.3f kWh/h, %.1f h left",
		runID, id, kwh, est.ShortTermRate, est.LongTermRate, est.HoursRemaining)

	alert, lines := monitor.Evaluate(reading, est, unit.Thresholds(r.opts.Thresholds))
	if alert {
		sum.Alerts++
		r.sendAlert(ctx, runID, unit, reading, est, lines)
	}

	if r.publisher != nil {
		if err := r.publisher.Publish(unit, rec, alert); err != nil {
			logger.Warn("Run %s: publish failed for %s: %v", runID, id, err)
		}
	}
	return true
}

func (r *Runner) sendAlert(ctx context.Context, runID string, unit models.Unit, reading models.Reading, est models.Estimate, lines []string) {
	if r.notifier == nil {
		logger.Warn("Run %s: alert for %s but no notifier configured", runID, unit.Key())
		return
	}
	title, body := monitor.FormatAlert(unit, reading, est, lines)
	delivered := r.notifier.Notify(ctx, unit, notify.Message{Title: title, Body: body, Lines: lines})
	logger.Info("Run %s: alert for %s delivered on %d channels", runID, unit.Key(), delivered)
}

// ErrSave marks a batch whose history could not be persisted.
var ErrSave = errors.New("history not saved")

// Err returns ErrSave wrapping the save failure, or nil.
func (s Summary) Err() error {
	if s.SaveErr == nil {
		return nil
	}
	return errors.Join(ErrSave, s.SaveErr)
}

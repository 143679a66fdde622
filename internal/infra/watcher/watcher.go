// Package watcher turns proposal sources into a stream of newly detected
// proposals, each handed to the reminder scheduler exactly once.
package watcher

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"governance_reminder_bot/internal/domain/proposal"
	"governance_reminder_bot/internal/domain/reminder"
	"governance_reminder_bot/internal/infra/metrics"

	"github.com/jpillora/backoff"
	"github.com/sirupsen/logrus"
)

const (
	defaultBackoffMin = 5 * time.Second
	defaultBackoffMax = 5 * time.Minute
)

// Source fetches the proposals currently visible upstream.
type Source interface {
	Name() string
	Kind() proposal.SourceKind
	Fetch(ctx context.Context) ([]proposal.Proposal, error)
}

// Acker is implemented by sources that report each upstream proposal only
// once. Ack is called when the hand-off of id is settled; until then the
// source keeps returning it from Fetch.
type Acker interface {
	Ack(id string)
}

type State int32

const (
	StateIdle State = iota
	StatePolling
	StateErrorBackoff
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePolling:
		return "polling"
	case StateErrorBackoff:
		return "error_backoff"
	default:
		return "unknown"
	}
}

// Status is a point-in-time view of a watcher for diagnostics.
type Status struct {
	Name                string    `json:"name"`
	Kind                string    `json:"kind"`
	State               string    `json:"state"`
	LastCycle           time.Time `json:"last_cycle,omitempty"`
	LastSuccess         time.Time `json:"last_success,omitempty"`
	LastError           string    `json:"last_error,omitempty"`
	ConsecutiveFailures int       `json:"consecutive_failures"`
	Detected            int       `json:"detected"`
}

type Config struct {
	BackoffMin time.Duration
	BackoffMax time.Duration
}

type Watcher struct {
	source Source
	seen   proposal.SeenStore
	intake proposal.Intake
	logger *logrus.Entry

	state   atomic.Int32
	backoff *backoff.Backoff
	sleep   func(ctx context.Context, d time.Duration) error
	now     func() time.Time

	mu     sync.Mutex
	status Status
}

func New(source Source, seen proposal.SeenStore, intake proposal.Intake, cfg Config, logger *logrus.Entry) *Watcher {
	if cfg.BackoffMin <= 0 {
		cfg.BackoffMin = defaultBackoffMin
	}
	if cfg.BackoffMax < cfg.BackoffMin {
		cfg.BackoffMax = defaultBackoffMax
		if cfg.BackoffMax < cfg.BackoffMin {
			cfg.BackoffMax = cfg.BackoffMin
		}
	}
	return &Watcher{
		source: source,
		seen:   seen,
		intake: intake,
		logger: logger.WithFields(logrus.Fields{"watcher": source.Name(), "source": source.Kind()}),
		backoff: &backoff.Backoff{
			Min:    cfg.BackoffMin,
			Max:    cfg.BackoffMax,
			Factor: 2,
			Jitter: true,
		},
		sleep: sleepContext,
		now:   time.Now,
		status: Status{
			Name: source.Name(),
			Kind: string(source.Kind()),
		},
	}
}

func (w *Watcher) Name() string { return w.source.Name() }

func (w *Watcher) State() State { return State(w.state.Load()) }

func (w *Watcher) Status() Status {
	w.mu.Lock()
	defer w.mu.Unlock()
	st := w.status
	st.State = w.State().String()
	return st
}

// RunCycle performs one Idle → Polling → Idle pass, or Polling →
// ErrorBackoff → Idle when the source fails. A call made while another
// cycle is in flight returns immediately.
func (w *Watcher) RunCycle(ctx context.Context) {
	if !w.state.CompareAndSwap(int32(StateIdle), int32(StatePolling)) {
		w.logger.Debug("Previous cycle still running; skipping")
		metrics.WatcherCycles.WithLabelValues(w.source.Name(), "skipped").Inc()
		return
	}
	defer w.state.Store(int32(StateIdle))

	started := w.now()
	proposals, err := w.source.Fetch(ctx)
	if err != nil {
		w.fail(ctx, started, err)
		return
	}
	w.backoff.Reset()

	acker, _ := w.source.(Acker)
	detected := 0
	for _, p := range proposals {
		isNew, settled := w.handOff(ctx, p)
		if isNew {
			detected++
		}
		if settled && acker != nil {
			acker.Ack(p.ID)
		}
	}

	w.mu.Lock()
	w.status.LastCycle = started
	w.status.LastSuccess = started
	w.status.LastError = ""
	w.status.ConsecutiveFailures = 0
	w.status.Detected += detected
	w.mu.Unlock()

	metrics.WatcherCycles.WithLabelValues(w.source.Name(), "ok").Inc()
	w.logger.WithFields(logrus.Fields{
		"fetched":  len(proposals),
		"detected": detected,
	}).Debug("Watcher cycle finished")
}

func (w *Watcher) fail(ctx context.Context, started time.Time, err error) {
	w.state.Store(int32(StateErrorBackoff))
	delay := w.backoff.Duration()

	w.mu.Lock()
	w.status.LastCycle = started
	w.status.LastError = err.Error()
	w.status.ConsecutiveFailures++
	failures := w.status.ConsecutiveFailures
	w.mu.Unlock()

	metrics.WatcherCycles.WithLabelValues(w.source.Name(), "error").Inc()
	w.logger.WithError(err).WithFields(logrus.Fields{
		"error_kind": errorKind(err),
		"failures":   failures,
		"backoff":    delay.String(),
	}).Error("Proposal source failed; backing off")

	if err := w.sleep(ctx, delay); err != nil {
		w.logger.Debug("Backoff interrupted")
	}
}

// handOff passes p to the scheduler unless it was seen before. It reports
// whether p was newly detected and whether p needs no further hand-off.
func (w *Watcher) handOff(ctx context.Context, p proposal.Proposal) (isNew, settled bool) {
	log := w.logger.WithField("proposal_id", p.ID)

	isNew, err := w.seen.MarkSeen(ctx, p.ID)
	if err != nil {
		metrics.WatcherProposals.WithLabelValues(w.source.Name(), "error").Inc()
		log.WithError(err).Error("Failed to check seen proposals; will retry next cycle")
		return false, false
	}
	if !isNew {
		metrics.WatcherProposals.WithLabelValues(w.source.Name(), "duplicate").Inc()
		log.WithField("error_kind", "DuplicateProposalIgnored").Debug("Proposal already handled")
		return false, true
	}

	log.WithField("title", p.Title).Info("New proposal detected")
	if _, err := w.intake.HandleNewProposal(ctx, p); err != nil {
		if errors.Is(err, reminder.ErrInvalidProposalWindow) {
			metrics.WatcherProposals.WithLabelValues(w.source.Name(), "invalid").Inc()
			return true, true
		}
		metrics.WatcherProposals.WithLabelValues(w.source.Name(), "error").Inc()
		log.WithError(err).Error("Failed to schedule proposal; will retry next cycle")
		if ferr := w.seen.Forget(ctx, p.ID); ferr != nil {
			log.WithError(ferr).Error("Failed to forget proposal; it will not be retried")
			return false, true
		}
		return false, false
	}
	metrics.WatcherProposals.WithLabelValues(w.source.Name(), "new").Inc()
	return true, true
}

func errorKind(err error) string {
	switch {
	case errors.Is(err, proposal.ErrSourceSubscription):
		return "SourceSubscriptionError"
	case errors.Is(err, proposal.ErrSourcePoll):
		return "SourcePollError"
	default:
		return "SourceError"
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

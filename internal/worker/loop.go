package worker

import (
	"time"

	"github.com/cdc-go/scyllacdc/internal/change"
	"github.com/cdc-go/scyllacdc/internal/metrics"
	"github.com/cdc-go/scyllacdc/internal/stopper"
	"github.com/cdc-go/scyllacdc/internal/task"
	"github.com/cdc-go/scyllacdc/internal/transport"
	"github.com/cdc-go/scyllacdc/internal/window"
	"github.com/juju/clock"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// Config holds the knobs a single task's Loop needs.
type Config struct {
	NextWindowSizeMs int64
	ReadRetryBaseMs  int64
	ReadRetryMaxMs   int64
	Clock            clock.Clock
}

// Loop drives one task through its sequence of windows: wait for the
// window to close, read every change in order, deliver it, report
// progress, and advance. One Loop exists per task for the lifetime of
// that task's assignment; the master's configureWorkers call is what
// starts and stops them.
type Loop struct {
	cfg       Config
	port      Port
	transport transport.Port
	consumer  Consumer
}

// NewLoop constructs a Loop for a single task.
func NewLoop(cfg Config, port Port, tr transport.Port, consumer Consumer) *Loop {
	return &Loop{cfg: cfg, port: port, transport: tr, consumer: consumer}
}

// Run drives t's windows forward until ctx signals shutdown. It
// returns nil on cooperative shutdown and a non-nil error if the
// consumer itself failed, since a consumer error aborts the task and
// is surfaced to supervision without advancing task.State.
func (l *Loop) Run(ctx *stopper.Context, t task.Task) error {
	state := t.State
	for {
		select {
		case <-ctx.Stopping():
			return nil
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if !l.waitForWindowToClose(ctx, state.WindowEnd) {
			return nil
		}

		readStart := l.cfg.Clock.Now()
		next, err := l.consumeWindow(ctx, t.ID, t.Streams, state)
		if err != nil {
			return err
		}
		state = next
		metrics.WindowReadDuration.WithLabelValues(t.ID.Table.Keyspace, t.ID.Table.Name).
			Observe(l.cfg.Clock.Now().Sub(readStart).Seconds())

		state = state.MoveToNextWindow(l.cfg.NextWindowSizeMs)
		metrics.WindowsAdvanced.WithLabelValues(t.ID.Table.Keyspace, t.ID.Table.Name).Inc()
		if err := l.transport.ReportProgress(ctx, t.ID, state); err != nil {
			return errors.Wrap(err, "reporting progress after window advance")
		}
	}
}

// waitForWindowToClose blocks until the clock reaches windowEnd, or
// reports false if ctx was stopped first. Windows must never be read
// while still open: their contents may still be arriving.
func (l *Loop) waitForWindowToClose(ctx *stopper.Context, windowEnd window.Timestamp) bool {
	for {
		remaining := windowEnd.Time().Sub(l.cfg.Clock.Now())
		if remaining <= 0 {
			return true
		}
		select {
		case <-l.cfg.Clock.After(remaining):
			// Re-check against the clock before treating the window as
			// closed.
		case <-ctx.Stopping():
			return false
		case <-ctx.Done():
			return false
		}
	}
}

// consumeWindow implements the inner loop of spec §4.7: read every
// change in the window in order, skip anything at or before
// lastConsumed (the resume path after a crash), deliver the rest to
// the consumer, and update state after each successful delivery so a
// later crash resumes from exactly this point.
//
// A CQL read failure retries from state.LastConsumed with exponential
// backoff; a consumer error aborts the task immediately and is
// returned to the caller without reporting progress for the change
// that failed.
func (l *Loop) consumeWindow(
	ctx *stopper.Context, id task.ID, streams []change.StreamID, state task.State,
) (task.State, error) {
	backoff := time.Duration(l.cfg.ReadRetryBaseMs) * time.Millisecond
	maxBackoff := time.Duration(l.cfg.ReadRetryMaxMs) * time.Millisecond

	for {
		next, err := l.consumeWindowOnce(ctx, id, streams, state)
		if err == nil {
			return next, nil
		}
		if isConsumerError(err) {
			return state, err
		}
		// consumeWindowOnce reports progress for every row it delivers
		// before hitting the read error, so next already reflects those
		// deliveries; retrying from the stale state would re-deliver
		// them to the consumer a second time.
		state = next

		log.WithError(err).WithField("task", id).Warn("cdc log read failed; retrying window from last consumed cursor")
		metrics.CQLReadErrors.WithLabelValues(id.Table.Keyspace, id.Table.Name).Inc()
		select {
		case <-l.cfg.Clock.After(backoff):
		case <-ctx.Stopping():
			return state, nil
		case <-ctx.Done():
			return state, ctx.Err()
		}
		if backoff *= 2; backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}

type consumerError struct{ err error }

func (e *consumerError) Error() string { return e.err.Error() }
func (e *consumerError) Unwrap() error { return e.err }

func isConsumerError(err error) bool {
	var ce *consumerError
	return errors.As(err, &ce)
}

func (l *Loop) consumeWindowOnce(
	ctx *stopper.Context, id task.ID, streams []change.StreamID, state task.State,
) (task.State, error) {
	reader, err := l.port.CreateReader(ctx, task.Task{ID: id, Streams: streams, State: state})
	if err != nil {
		return state, errors.Wrap(err, "creating reader")
	}
	defer func() {
		if cerr := reader.Close(); cerr != nil {
			log.WithError(cerr).WithField("task", id).Debug("closing reader")
		}
	}()

	for {
		rc, err := reader.NextChange(ctx)
		if err != nil {
			return state, errors.Wrap(err, "reading next change")
		}
		if rc == nil {
			return state, nil
		}

		if state.LastConsumed != nil && rc.ID.Compare(*state.LastConsumed) <= 0 {
			metrics.RowsSkippedResume.WithLabelValues(id.Table.Keyspace, id.Table.Name).Inc()
			continue // resume skip: already delivered before the last crash
		}

		if err := l.consumer.Consume(ctx, *rc); err != nil {
			return state, &consumerError{err: err}
		}
		metrics.RowsDelivered.WithLabelValues(id.Table.Keyspace, id.Table.Name).Inc()

		state = state.Update(rc.ID)
		if err := l.transport.ReportProgress(ctx, id, state); err != nil {
			return state, errors.Wrap(err, "reporting progress")
		}
	}
}

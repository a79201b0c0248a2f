package master

import (
	"context"
	"time"

	"github.com/cdc-go/scyllacdc/internal/change"
	"github.com/cdc-go/scyllacdc/internal/gen"
	"github.com/cdc-go/scyllacdc/internal/metrics"
	"github.com/cdc-go/scyllacdc/internal/stopper"
	"github.com/cdc-go/scyllacdc/internal/task"
	"github.com/cdc-go/scyllacdc/internal/transport"
	"github.com/cdc-go/scyllacdc/internal/window"
	"github.com/juju/clock"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// Config holds the knobs the master loop needs beyond the Port and
// Transport it's constructed with. Clock is mandatory: no suspension
// point in the loop reads wall-clock time any other way, which is what
// makes the loop's generation-advance and TTL-skip behavior
// deterministically testable.
type Config struct {
	Tables                       []change.TableName
	WindowSizeMs                 int64
	SleepBeforeFirstGenerationMs int64
	SleepAfterExceptionMs        int64
	SleepBeforeGenerationDoneMs  int64
	Clock                        clock.Clock
}

// Loop drives the generation lifecycle: discover, build tasks,
// publish, wait for completion, advance.
type Loop struct {
	cfg       Config
	port      Port
	transport transport.Port
}

// NewLoop constructs a Loop. cfg.Clock must be non-nil.
func NewLoop(cfg Config, port Port, tr transport.Port) *Loop {
	return &Loop{cfg: cfg, port: port, transport: tr}
}

// Run drives the master state machine until ctx is stopped or
// canceled. Any error from a single iteration is logged and the loop
// restarts from generation resolution after sleeping
// SleepAfterExceptionMs; Run itself only returns when ctx signals
// cooperative shutdown.
func (l *Loop) Run(ctx *stopper.Context) error {
	for {
		select {
		case <-ctx.Stopping():
			return nil
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err := l.runOnce(ctx); err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			log.WithError(err).Warn("master loop iteration failed; restarting")
			if !l.sleep(ctx, durationMs(l.cfg.SleepAfterExceptionMs)) {
				return nil
			}
		}
	}
}

// runOnce resolves the starting generation and then drives generations
// forward until shutdown. It returns promptly on any error so Run can
// apply the uniform backoff-and-restart policy.
func (l *Loop) runOnce(ctx *stopper.Context) error {
	cur, err := l.resolveStart(ctx)
	if err != nil {
		return err
	}

	g, err := l.port.GenerationMetadata(ctx, cur)
	if err != nil {
		return errors.Wrap(err, "fetching initial generation metadata")
	}

	tasks := buildTasks(g, l.cfg.Tables)

	for {
		for {
			done, err := l.generationDone(ctx, g, tasks)
			if err != nil {
				return err
			}
			if !done {
				break
			}
			if g.Next == nil {
				// Nothing beyond this generation yet; keep driving it
				// (AreTasksFullyConsumedUntil will simply keep
				// returning true, or TTL will keep expiring it) until a
				// successor appears.
				break
			}
			g, err = l.port.GenerationMetadata(ctx, *g.Next)
			if err != nil {
				return errors.Wrap(err, "fetching successor generation metadata")
			}
			metrics.GenerationsAdvanced.Inc()
			tasks = buildTasks(g, l.cfg.Tables)
		}

		if err := l.transport.ConfigureWorkers(ctx, tasks); err != nil {
			return errors.Wrap(err, "publishing task set")
		}
		log.WithField("generation", g.ID).WithField("tasks", len(tasks)).
			Info("configured workers for generation")

		for {
			done, err := l.generationDone(ctx, g, tasks)
			if err != nil {
				return err
			}
			if done {
				break
			}
			if !l.sleep(ctx, durationMs(l.cfg.SleepBeforeGenerationDoneMs)) {
				return nil
			}
			if g.End == nil {
				g, err = l.refreshEnd(ctx, g)
				if err != nil {
					return err
				}
			}
		}

		if g.Next == nil {
			// Generation is done but has no known successor: wait for
			// one rather than spinning.
			if !l.sleep(ctx, durationMs(l.cfg.SleepBeforeGenerationDoneMs)) {
				return nil
			}
			var err error
			g, err = l.port.GenerationMetadata(ctx, g.ID)
			if err != nil {
				return errors.Wrap(err, "re-fetching generation metadata while awaiting successor")
			}
			tasks = buildTasks(g, l.cfg.Tables)
			continue
		}

		var err error
		g, err = l.port.GenerationMetadata(ctx, *g.Next)
		if err != nil {
			return errors.Wrap(err, "advancing to successor generation")
		}
		metrics.GenerationsAdvanced.Inc()
		tasks = buildTasks(g, l.cfg.Tables)
	}
}

// resolveStart implements step 1: prefer the transport's restart hint,
// otherwise poll for the first generation.
func (l *Loop) resolveStart(ctx *stopper.Context) (gen.ID, error) {
	hint, err := l.transport.CurrentGenerationID(ctx)
	if err != nil {
		return 0, errors.Wrap(err, "fetching current generation hint")
	}
	if hint != nil {
		log.WithField("generation", *hint).Info("resuming from transport-reported generation")
		return *hint, nil
	}

	for {
		id, err := l.port.FirstGenerationID(ctx)
		switch {
		case err != nil:
			return 0, errors.Wrap(err, "fetching first generation id")
		case id != nil:
			return *id, nil
		default:
			log.WithError(ErrNoGeneration).Debug("waiting for first cdc generation")
			if !l.sleep(ctx, durationMs(l.cfg.SleepBeforeFirstGenerationMs)) {
				return 0, context.Canceled
			}
		}
	}
}

// generationDone implements spec §4.6's generationDone predicate.
func (l *Loop) generationDone(ctx *stopper.Context, g gen.Metadata, tasks map[task.ID][]change.StreamID) (bool, error) {
	if g.End == nil {
		return false, nil
	}
	now := l.cfg.Clock.Now()
	if generationTTLExpired(ctx, l.port, l.cfg.Tables, now, g.End.Time()) {
		metrics.GenerationsTTLSkipped.Inc()
		return true, nil
	}
	return l.transport.AreTasksFullyConsumedUntil(ctx, tasks, *g.End)
}

func (l *Loop) refreshEnd(ctx *stopper.Context, g gen.Metadata) (gen.Metadata, error) {
	end, err := l.port.GenerationEnd(ctx, g.ID)
	if err != nil {
		return g, errors.Wrap(err, "refreshing generation end")
	}
	if end != nil {
		ts := window.FromTime(*end)
		g.End = &ts
	}
	return g, nil
}

func (l *Loop) sleep(ctx *stopper.Context, d time.Duration) bool {
	select {
	case <-l.cfg.Clock.After(d):
		return true
	case <-ctx.Stopping():
		return false
	case <-ctx.Done():
		return false
	}
}

func durationMs(ms int64) time.Duration {
	return time.Duration(ms) * time.Millisecond
}

// buildTasks implements step 3: group a generation's streams by vnode
// and emit one task per (vnode, table) pair.
func buildTasks(g gen.Metadata, tables []change.TableName) map[task.ID][]change.StreamID {
	byVNode := make(map[change.VNodeID][]change.StreamID)
	for _, s := range g.SortedStreams() {
		v := s.VNodeID()
		byVNode[v] = append(byVNode[v], s)
	}

	tasks := make(map[task.ID][]change.StreamID, len(byVNode)*len(tables))
	for v, streams := range byVNode {
		for _, table := range tables {
			id := task.ID{Generation: task.GenID(g.ID), VNode: v, Table: table}
			tasks[id] = streams
		}
	}
	return tasks
}

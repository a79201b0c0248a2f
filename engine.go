package scyllacdc

import (
	"context"
	"sync"
	"time"

	"github.com/cdc-go/scyllacdc/internal/change"
	"github.com/cdc-go/scyllacdc/internal/master"
	"github.com/cdc-go/scyllacdc/internal/stopper"
	"github.com/cdc-go/scyllacdc/internal/task"
	"github.com/cdc-go/scyllacdc/internal/transport"
	"github.com/cdc-go/scyllacdc/internal/window"
	"github.com/cdc-go/scyllacdc/internal/worker"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// Change is a single decoded CDC log row.
type Change = change.RawChange

// Consumer receives decoded changes in delivery order. See
// internal/worker.Consumer for the delivery guarantees.
type Consumer = worker.Consumer

// ConsumerFunc adapts a plain function to a Consumer.
type ConsumerFunc = worker.ConsumerFunc

// Engine drives the master loop and, for any Transport that also
// implements transport.TaskObserver (the shipped Local transport
// does), a per-task worker loop for every task the master assigns. A
// Transport that does not implement TaskObserver is assumed to belong
// to a deployment where workers run as separate processes reading
// their own assignment from it; in that shape, construct a bare
// master.Loop or worker.Loop directly instead of Engine.
type Engine struct {
	cfg       Config
	master    *master.Loop
	workerCfg worker.Config
	workerPrt worker.Port
	transport transport.Port
	consumer  Consumer
}

// NewEngine wires cfg together with the concrete master/worker CQL
// ports, the transport, and the consumer into a ready-to-run Engine.
// cfg must already have passed Preflight.
func NewEngine(
	cfg Config, masterPort master.Port, workerPort worker.Port, tr transport.Port, consumer Consumer,
) *Engine {
	loop := master.NewLoop(master.Config{
		Tables:                       cfg.Tables,
		WindowSizeMs:                 cfg.WindowSizeMs,
		SleepBeforeFirstGenerationMs: cfg.SleepBeforeFirstGenerationMs,
		SleepAfterExceptionMs:        cfg.SleepAfterExceptionMs,
		SleepBeforeGenerationDoneMs:  cfg.SleepBeforeGenerationDoneMs,
		Clock:                        cfg.Clock,
	}, masterPort, tr)

	return &Engine{
		cfg:    cfg,
		master: loop,
		workerCfg: worker.Config{
			NextWindowSizeMs: cfg.NextWindowSizeMs,
			ReadRetryBaseMs:  cfg.ReadRetryBaseMs,
			ReadRetryMaxMs:   cfg.ReadRetryMaxMs,
			Clock:            cfg.Clock,
		},
		workerPrt: workerPort,
		transport: tr,
		consumer:  consumer,
	}
}

// Run drives the master loop until ctx is canceled, reconciling
// per-task worker goroutines against the transport's task set if it
// supports TaskObserver. Run returns when ctx is canceled and every
// spawned goroutine has wound down.
func (e *Engine) Run(ctx context.Context) error {
	if err := e.workerPrt.Prepare(ctx, e.cfg.Tables); err != nil {
		return errors.Wrap(err, "preparing worker queries")
	}

	sctx := stopper.WithContext(ctx)

	sctx.Go(func() error {
		return e.master.Run(sctx)
	})

	observer, ok := e.transport.(transport.TaskObserver)
	if ok {
		sctx.Go(func() error {
			return e.reconcileWorkers(sctx, observer)
		})
	} else {
		log.Debug("transport does not implement TaskObserver; this process will not run any worker loops")
	}

	<-ctx.Done()
	sctx.Stop(30 * time.Second)
	return sctx.Wait()
}

// reconcileWorkers watches observer for task-set changes and keeps one
// goroutine running worker.Loop per currently assigned task, canceling
// the goroutines for tasks that have been retired.
func (e *Engine) reconcileWorkers(ctx *stopper.Context, observer transport.TaskObserver) error {
	type running struct {
		cancel context.CancelFunc
	}
	active := make(map[task.ID]running)

	var mu sync.Mutex
	defer func() {
		mu.Lock()
		for _, r := range active {
			r.cancel()
		}
		mu.Unlock()
	}()

	_, changed := observer.Changed()
	for {
		tasks := observer.Tasks()

		mu.Lock()
		for id, streams := range tasks {
			if _, ok := active[id]; ok {
				continue
			}
			taskCtx, cancel := context.WithCancel(ctx)
			active[id] = running{cancel: cancel}
			e.spawnWorker(ctx, stopper.WithContext(taskCtx), id, streams)
		}
		for id, r := range active {
			if _, ok := tasks[id]; !ok {
				r.cancel()
				delete(active, id)
			}
		}
		mu.Unlock()

		select {
		case <-changed:
			_, changed = observer.Changed()
		case <-ctx.Stopping():
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// spawnWorker starts one worker.Loop for id, tracked by parent's
// goroutine set so Engine.Run's final Wait covers it, but driven by
// its own taskCtx so it can be stopped individually when the task is
// retired without disturbing any other task's loop.
func (e *Engine) spawnWorker(parent *stopper.Context, taskCtx *stopper.Context, id task.ID, streams []change.StreamID) {
	initial := task.CreateInitial(window.Timestamp(id.Generation), e.cfg.WindowSizeMs)
	if resumable, ok := e.transport.(interface {
		State(task.ID) (task.State, bool)
	}); ok {
		if st, ok := resumable.State(id); ok {
			initial = st
		}
	}

	t := task.Task{ID: id, Streams: streams, State: initial}
	loop := worker.NewLoop(e.workerCfg, e.workerPrt, e.transport, e.consumer)

	parent.Go(func() error {
		if err := loop.Run(taskCtx, t); err != nil {
			log.WithError(err).WithField("task", id).Warn("worker loop for task exited with error")
			return err
		}
		return nil
	})
}

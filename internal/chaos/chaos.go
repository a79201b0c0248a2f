// Package chaos provides test-only decorators that wrap the master
// and worker CQL ports and inject transient errors at each suspension
// point, exercising the retry/backoff paths of spec §4.6/§4.7 without
// a real flaky cluster.
package chaos

import (
	"context"
	"math/rand"
	"time"

	"github.com/cdc-go/scyllacdc/internal/change"
	"github.com/cdc-go/scyllacdc/internal/gen"
	"github.com/cdc-go/scyllacdc/internal/master"
	"github.com/cdc-go/scyllacdc/internal/task"
	"github.com/cdc-go/scyllacdc/internal/worker"
	"github.com/pkg/errors"
)

// ErrChaos is the error injected by every wrapper in this package.
var ErrChaos = errors.New("chaos")

func doChaos(op string) error {
	return errors.WithMessage(ErrChaos, op)
}

// WithMasterChaos returns a master.Port that injects ErrChaos with
// probability prob before delegating to port. A prob of zero or less
// returns port unchanged.
func WithMasterChaos(port master.Port, prob float32) master.Port {
	if prob <= 0 {
		return port
	}
	return &masterPort{delegate: port, prob: prob}
}

type masterPort struct {
	delegate master.Port
	prob     float32
}

var _ master.Port = (*masterPort)(nil)

func (p *masterPort) chance() bool { return rand.Float32() < p.prob }

func (p *masterPort) FirstGenerationID(ctx context.Context) (*gen.ID, error) {
	if p.chance() {
		return nil, doChaos("FirstGenerationID")
	}
	return p.delegate.FirstGenerationID(ctx)
}

func (p *masterPort) GenerationMetadata(ctx context.Context, id gen.ID) (gen.Metadata, error) {
	if p.chance() {
		return gen.Metadata{}, doChaos("GenerationMetadata")
	}
	return p.delegate.GenerationMetadata(ctx, id)
}

func (p *masterPort) GenerationEnd(ctx context.Context, id gen.ID) (*time.Time, error) {
	if p.chance() {
		return nil, doChaos("GenerationEnd")
	}
	return p.delegate.GenerationEnd(ctx, id)
}

func (p *masterPort) TableTTL(ctx context.Context, table change.TableName) (*int64, error) {
	if p.chance() {
		return nil, doChaos("TableTTL")
	}
	return p.delegate.TableTTL(ctx, table)
}

// WithWorkerChaos returns a worker.Port that injects ErrChaos with
// probability prob at Prepare and at reader construction, and wraps
// every reader so that NextChange can also fail mid-window. A prob of
// zero or less returns port unchanged.
func WithWorkerChaos(port worker.Port, prob float32) worker.Port {
	if prob <= 0 {
		return port
	}
	return &workerPort{delegate: port, prob: prob}
}

type workerPort struct {
	delegate worker.Port
	prob     float32
}

var _ worker.Port = (*workerPort)(nil)

func (p *workerPort) chance() bool { return rand.Float32() < p.prob }

func (p *workerPort) Prepare(ctx context.Context, tables []change.TableName) error {
	if p.chance() {
		return doChaos("Prepare")
	}
	return p.delegate.Prepare(ctx, tables)
}

func (p *workerPort) CreateReader(ctx context.Context, t task.Task) (worker.Reader, error) {
	if p.chance() {
		return nil, doChaos("CreateReader")
	}
	r, err := p.delegate.CreateReader(ctx, t)
	if err != nil {
		return nil, err
	}
	return &chaosReader{delegate: r, prob: p.prob}, nil
}

type chaosReader struct {
	delegate worker.Reader
	prob     float32
}

var _ worker.Reader = (*chaosReader)(nil)

func (r *chaosReader) NextChange(ctx context.Context) (*change.RawChange, error) {
	if rand.Float32() < r.prob {
		return nil, doChaos("NextChange")
	}
	return r.delegate.NextChange(ctx)
}

func (r *chaosReader) Close() error {
	return r.delegate.Close()
}

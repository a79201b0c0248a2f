package chaos

import (
	"context"
	"testing"
	"time"

	"github.com/cdc-go/scyllacdc/internal/change"
	"github.com/cdc-go/scyllacdc/internal/gen"
	"github.com/cdc-go/scyllacdc/internal/task"
	"github.com/cdc-go/scyllacdc/internal/worker"
	"github.com/stretchr/testify/require"
)

type stubMaster struct{}

func (stubMaster) FirstGenerationID(context.Context) (*gen.ID, error) { return nil, nil }
func (stubMaster) GenerationMetadata(context.Context, gen.ID) (gen.Metadata, error) {
	return gen.Metadata{}, nil
}
func (stubMaster) GenerationEnd(context.Context, gen.ID) (*time.Time, error) { return nil, nil }
func (stubMaster) TableTTL(context.Context, change.TableName) (*int64, error) { return nil, nil }

func TestWithMasterChaosZeroProbPassesThrough(t *testing.T) {
	p := WithMasterChaos(stubMaster{}, 0)
	_, err := p.FirstGenerationID(context.Background())
	require.NoError(t, err)
}

func TestWithMasterChaosFullProbAlwaysFails(t *testing.T) {
	p := WithMasterChaos(stubMaster{}, 1)
	_, err := p.FirstGenerationID(context.Background())
	require.ErrorIs(t, err, ErrChaos)

	_, err = p.GenerationMetadata(context.Background(), gen.ID(0))
	require.ErrorIs(t, err, ErrChaos)

	_, err = p.GenerationEnd(context.Background(), gen.ID(0))
	require.ErrorIs(t, err, ErrChaos)

	_, err = p.TableTTL(context.Background(), change.TableName{})
	require.ErrorIs(t, err, ErrChaos)
}

type stubReader struct{ closed bool }

func (r *stubReader) NextChange(context.Context) (*change.RawChange, error) { return nil, nil }
func (r *stubReader) Close() error                                         { r.closed = true; return nil }

type stubWorker struct{ reader *stubReader }

func (s stubWorker) Prepare(context.Context, []change.TableName) error { return nil }
func (s stubWorker) CreateReader(context.Context, task.Task) (worker.Reader, error) {
	return s.reader, nil
}

func TestWithWorkerChaosFullProbFailsReaderCreationAndReads(t *testing.T) {
	p := WithWorkerChaos(stubWorker{reader: &stubReader{}}, 1)
	err := p.Prepare(context.Background(), nil)
	require.ErrorIs(t, err, ErrChaos)

	_, err = p.CreateReader(context.Background(), task.Task{})
	require.ErrorIs(t, err, ErrChaos)

	r := &chaosReader{delegate: &stubReader{}, prob: 1}
	_, err = r.NextChange(context.Background())
	require.ErrorIs(t, err, ErrChaos)
}

func TestWithWorkerChaosZeroProbDelegates(t *testing.T) {
	inner := stubWorker{reader: &stubReader{}}
	p := WithWorkerChaos(inner, 0)
	require.Equal(t, inner, p)
}

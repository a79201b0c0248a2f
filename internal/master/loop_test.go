package master

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/cdc-go/scyllacdc/internal/change"
	"github.com/cdc-go/scyllacdc/internal/gen"
	"github.com/cdc-go/scyllacdc/internal/stopper"
	"github.com/cdc-go/scyllacdc/internal/task"
	"github.com/cdc-go/scyllacdc/internal/transport"
	"github.com/cdc-go/scyllacdc/internal/window"
	"github.com/juju/clock"
	"github.com/stretchr/testify/require"
)

// fakeTimer is the minimal clock.Timer a test clock needs: tests never
// Reset or Stop a timer mid-flight, they just want After to fire once.
type fakeTimer struct {
	ch chan time.Time
}

func (t *fakeTimer) Chan() <-chan time.Time  { return t.ch }
func (t *fakeTimer) Reset(time.Duration) bool { return true }
func (t *fakeTimer) Stop() bool               { return true }

// fakeClock fires After/NewTimer immediately so loop tests run fast,
// while letting Now be set explicitly to drive TTL checks.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(now time.Time) *fakeClock {
	return &fakeClock{now: now}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) setNow(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

func (c *fakeClock) After(time.Duration) <-chan time.Time {
	ch := make(chan time.Time, 1)
	ch <- c.Now()
	return ch
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) clock.Timer {
	go f()
	return &fakeTimer{ch: make(chan time.Time, 1)}
}

func (c *fakeClock) NewTimer(time.Duration) clock.Timer {
	ch := make(chan time.Time, 1)
	ch <- c.Now()
	return &fakeTimer{ch: ch}
}

func (c *fakeClock) At(time.Time) <-chan time.Time {
	ch := make(chan time.Time, 1)
	ch <- c.Now()
	return ch
}

func (c *fakeClock) AtFunc(t time.Time, f func()) clock.Alarm {
	go f()
	return &fakeAlarm{ch: make(chan time.Time, 1)}
}

func (c *fakeClock) NewAlarm(t time.Time) clock.Alarm {
	ch := make(chan time.Time, 1)
	ch <- c.Now()
	return &fakeAlarm{ch: ch}
}

var _ clock.Clock = (*fakeClock)(nil)

type fakeAlarm struct{ ch chan time.Time }

func (a *fakeAlarm) Chan() <-chan time.Time { return a.ch }
func (a *fakeAlarm) Reset(time.Time) bool   { return true }
func (a *fakeAlarm) Stop() bool             { return true }

// fakePort is an in-memory master.Port backed by a fixed chain of
// generations plus per-table TTLs, both mutable under lock so tests can
// simulate a generation closing or TTL aging mid-run.
type fakePort struct {
	mu         sync.Mutex
	gens       map[gen.ID]gen.Metadata
	first      *gen.ID
	ttls       map[change.TableName]*int64
	firstCalls int
}

func newFakePort() *fakePort {
	return &fakePort{
		gens: make(map[gen.ID]gen.Metadata),
		ttls: make(map[change.TableName]*int64),
	}
}

func (p *fakePort) addGeneration(m gen.Metadata) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.gens[m.ID] = m
	if p.first == nil {
		id := m.ID
		p.first = &id
	}
}

func (p *fakePort) closeGeneration(id gen.ID, end window.Timestamp, next *gen.ID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	m := p.gens[id]
	m.End = &end
	m.Next = next
	p.gens[id] = m
}

func (p *fakePort) setTTL(table change.TableName, seconds int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ttls[table] = &seconds
}

func (p *fakePort) FirstGenerationID(context.Context) (*gen.ID, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.firstCalls++
	if p.first == nil {
		return nil, nil
	}
	id := *p.first
	return &id, nil
}

func (p *fakePort) firstGenerationIDCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.firstCalls
}

func (p *fakePort) GenerationMetadata(_ context.Context, id gen.ID) (gen.Metadata, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.gens[id], nil
}

func (p *fakePort) GenerationEnd(_ context.Context, id gen.ID) (*time.Time, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	m := p.gens[id]
	if m.End == nil {
		return nil, nil
	}
	t := m.End.Time()
	return &t, nil
}

func (p *fakePort) TableTTL(_ context.Context, table change.TableName) (*int64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ttls[table], nil
}

var _ Port = (*fakePort)(nil)

func streamID(b byte) change.StreamID {
	var s change.StreamID
	s[0] = b
	return s
}

func testTables() []change.TableName {
	return []change.TableName{{Keyspace: "ks", Name: "orders"}}
}

func TestBuildTasksGroupsByVNodeAndTable(t *testing.T) {
	g := gen.Metadata{
		ID:      gen.ID(1000),
		Streams: []change.StreamID{streamID(1), streamID(1), streamID(2)},
	}
	tasks := buildTasks(g, testTables())
	require.Len(t, tasks, 2) // two distinct vnodes x one table

	for id, streams := range tasks {
		require.Equal(t, task.GenID(1000), id.Generation)
		require.Equal(t, testTables()[0], id.Table)
		require.NotEmpty(t, streams)
	}
}

func TestLoopAdvancesThroughGenerationsOnceFullyConsumed(t *testing.T) {
	port := newFakePort()
	tr := transport.NewLocal()
	clk := newFakeClock(time.Unix(1_700_000, 0))

	gen1 := gen.ID(1000)
	gen2 := gen.ID(5000)
	end1 := window.Timestamp(5000)
	port.addGeneration(gen.Metadata{ID: gen1, Streams: []change.StreamID{streamID(9)}})
	port.closeGeneration(gen1, end1, &gen2)
	port.addGeneration(gen.Metadata{ID: gen2, Streams: []change.StreamID{streamID(9)}})
	// table TTL absent: AreTasksFullyConsumedUntil is the only path to
	// completion, so the test drives that directly via the transport.

	cfg := Config{
		Tables:                       testTables(),
		WindowSizeMs:                 1000,
		SleepBeforeFirstGenerationMs: 1,
		SleepAfterExceptionMs:        1,
		SleepBeforeGenerationDoneMs:  1,
		Clock:                        clk,
	}
	loop := NewLoop(cfg, port, tr)

	ctx := stopper.WithContext(context.Background())
	ctx.Go(func() error { return loop.Run(ctx) })

	// Wait for the master to publish gen1's tasks, then report them all
	// consumed past end1 so the loop advances to gen2.
	require.Eventually(t, func() bool {
		version, _ := tr.Changed()
		return version > 0
	}, time.Second, time.Millisecond)

	for id := range buildTasks(gen.Metadata{ID: gen1, Streams: []change.StreamID{streamID(9)}}, testTables()) {
		require.NoError(t, tr.ReportProgress(context.Background(), id, task.State{WindowStart: end1 + 1, WindowEnd: end1 + 1001}))
	}

	gen2Tasks := buildTasks(gen.Metadata{ID: gen2, Streams: []change.StreamID{streamID(9)}}, testTables())
	require.Eventually(t, func() bool {
		published := tr.Tasks()
		for id := range gen2Tasks {
			if _, ok := published[id]; !ok {
				return false
			}
		}
		ok, err := tr.AreTasksFullyConsumedUntil(context.Background(), gen2Tasks, 0)
		return err == nil && !ok // master published gen2's tasks, and they aren't consumed yet
	}, time.Second, time.Millisecond)

	ctx.Stop(time.Second)
}

func TestGenerationTTLExpiredSkipsWithoutTransportConfirmation(t *testing.T) {
	port := newFakePort()
	port.setTTL(testTables()[0], 10) // 10s retention

	now := time.Unix(1000, 0)
	genEnd := time.Unix(100, 0) // well before now - ttl window has passed
	require.True(t, generationTTLExpired(context.Background(), port, testTables(), now, genEnd))

	genEndRecent := time.Unix(995, 0) // within the 10s retention of now
	require.False(t, generationTTLExpired(context.Background(), port, testTables(), now, genEndRecent))
}

func TestResolveStartFallsBackToFirstGenerationWithNoHint(t *testing.T) {
	port := newFakePort()
	gen1 := gen.ID(42)
	port.addGeneration(gen.Metadata{ID: gen1})
	tr := transport.NewLocal()

	loop := NewLoop(Config{Clock: newFakeClock(time.Now())}, port, tr)
	got, err := loop.resolveStart(stopper.WithContext(context.Background()))
	require.NoError(t, err)
	// Local never reports a hint, so this falls through to FirstGenerationID.
	require.Equal(t, gen1, got)
}

// TestResolveStartPrefersTransportHint covers spec scenario S6: when
// the transport reports a restart hint, the master must use it
// directly and must not call FirstGenerationID at all.
func TestResolveStartPrefersTransportHint(t *testing.T) {
	port := newFakePort()
	gen1 := gen.ID(42)
	port.addGeneration(gen.Metadata{ID: gen1}) // would be returned by FirstGenerationID if called

	hint := gen.ID(5000)
	tr := &hintingTransport{hint: &hint}

	loop := NewLoop(Config{Clock: newFakeClock(time.Now())}, port, tr)
	got, err := loop.resolveStart(stopper.WithContext(context.Background()))
	require.NoError(t, err)
	require.Equal(t, hint, got)
	require.Zero(t, port.firstGenerationIDCalls(), "FirstGenerationID must not be called when the transport reports a hint")
}

// hintingTransport is a minimal transport.Port that always reports a
// fixed restart hint; its other methods are never exercised by
// resolveStart and simply fail the test if called.
type hintingTransport struct {
	hint *gen.ID
}

var _ transport.Port = (*hintingTransport)(nil)

func (tr *hintingTransport) CurrentGenerationID(context.Context) (*gen.ID, error) {
	return tr.hint, nil
}

func (tr *hintingTransport) ConfigureWorkers(context.Context, map[task.ID][]change.StreamID) error {
	panic("not used by this test")
}

func (tr *hintingTransport) ReportProgress(context.Context, task.ID, task.State) error {
	panic("not used by this test")
}

func (tr *hintingTransport) AreTasksFullyConsumedUntil(context.Context, map[task.ID][]change.StreamID, window.Timestamp) (bool, error) {
	panic("not used by this test")
}

package scyllaport

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/cdc-go/scyllacdc/internal/change"
	"github.com/cdc-go/scyllacdc/internal/gen"
	"github.com/cdc-go/scyllacdc/internal/master"
	"github.com/cdc-go/scyllacdc/internal/window"
	"github.com/gocql/gocql"
	"github.com/pkg/errors"
)

// MasterPort is the gocql-backed master.Port: it discovers generations
// and TTLs directly from the cluster's system/system_distributed
// keyspaces, negotiating between the two streams-description table
// layouts per spec §4.3.
type MasterPort struct {
	session *gocql.Session
	hosts   int // seed host count at construction; drives the QUORUM/ONE choice.
	latch   *master.VersionLatch
}

// NewMasterPort wraps session. hosts is the number of contact points
// the caller configured the cluster with; gocql's public Session does
// not expose live topology, so consistency is pinned from the
// configured seed count rather than recomputed from a live host count,
// a deliberate simplification the core spec's "recomputed per
// statement" language tolerates since host count rarely changes
// mid-process for a client of this kind.
func NewMasterPort(session *gocql.Session, hosts int) *MasterPort {
	return &MasterPort{session: session, hosts: hosts, latch: master.NewVersionLatch()}
}

var _ master.Port = (*MasterPort)(nil)

func (p *MasterPort) consistency() gocql.Consistency {
	if p.hosts > 1 {
		return gocql.Quorum
	}
	return gocql.One
}

// FirstGenerationID implements master.Port.
func (p *MasterPort) FirstGenerationID(ctx context.Context) (*gen.ID, error) {
	var t time.Time
	err := p.session.Query(qFetchFirstGenerationID).
		Consistency(p.consistency()).WithContext(ctx).Scan(&t)
	if errors.Is(err, gocql.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "fetching first generation id")
	}
	id := gen.ID(window.FromTime(t))
	return &id, nil
}

// GenerationMetadata implements master.Port. The generation's End is
// derived from its successor's start, since a CDC generation's active
// interval runs exactly until the ring's next topology change
// publishes a new one.
func (p *MasterPort) GenerationMetadata(ctx context.Context, id gen.ID) (gen.Metadata, error) {
	streams, err := p.fetchStreams(ctx, id)
	if err != nil {
		return gen.Metadata{}, err
	}

	m := gen.Metadata{ID: id, Streams: streams}

	var nextT time.Time
	err = p.session.Query(qFetchNextGenerationID, window.Timestamp(id).Time()).
		Consistency(p.consistency()).WithContext(ctx).Scan(&nextT)
	switch {
	case errors.Is(err, gocql.ErrNotFound):
		// No successor yet; End stays nil until one appears.
	case err != nil:
		return gen.Metadata{}, errors.Wrap(err, "fetching successor generation id")
	case nextT.IsZero():
		// No successor yet; End stays nil until one appears.
	default:
		next := gen.ID(window.FromTime(nextT))
		m.Next = &next
		end := window.FromTime(nextT)
		m.End = &end
	}

	return m, nil
}

// GenerationEnd implements master.Port, re-checking for a successor
// that may have appeared since the last GenerationMetadata call.
func (p *MasterPort) GenerationEnd(ctx context.Context, id gen.ID) (*time.Time, error) {
	m, err := p.GenerationMetadata(ctx, id)
	if err != nil {
		return nil, err
	}
	if m.End == nil {
		return nil, nil
	}
	t := m.End.Time()
	return &t, nil
}

// fetchStreams implements the version negotiation described in spec
// §4.3: it re-probes the rewritten marker on every call until it's
// observed, then latches onto the new layout permanently. If the
// layout it settles on has no row for id, it checks the other layout
// before declaring the generation unconfigured, since only absence of
// both is the fatal condition.
func (p *MasterPort) fetchStreams(ctx context.Context, id gen.ID) ([]change.StreamID, error) {
	useNew := p.latch.Decided()
	if !useNew {
		iter := p.session.Query(qRewrittenMarker).Consistency(p.consistency()).WithContext(ctx).Iter()
		found := iter.Scan()
		if err := iter.Close(); err != nil {
			return nil, errors.Wrap(err, "checking rewritten marker")
		}
		useNew = found
		p.latch.Latch(useNew)
	}

	query := qStreamsV1
	other := qStreamsV2
	if useNew {
		query, other = qStreamsV2, qStreamsV1
	}

	raw, err := p.queryStreamsRow(ctx, query, id)
	if errors.Is(err, gocql.ErrNotFound) {
		// The layout this call settled on has no row for id. Before
		// declaring the generation unconfigured, check the other
		// layout too: spec §4.3 makes absence of *both* the fatal
		// condition, not absence of the one we happened to pick.
		raw, err = p.queryStreamsRow(ctx, other, id)
		if errors.Is(err, gocql.ErrNotFound) {
			return nil, master.NewConfigurationError("generation has no streams-description row in either layout")
		}
	}
	if err != nil {
		return nil, errors.Wrap(err, "fetching streams description")
	}

	streams := make([]change.StreamID, 0, len(raw))
	for _, b := range raw {
		if len(b) != 16 {
			return nil, master.NewConfigurationError("stream id is not 16 bytes")
		}
		var s change.StreamID
		copy(s[:], b)
		streams = append(streams, s)
	}
	return streams, nil
}

// queryStreamsRow runs one streams-description query (either layout)
// for id and returns its raw stream-id column.
func (p *MasterPort) queryStreamsRow(ctx context.Context, query string, id gen.ID) ([][]byte, error) {
	var raw [][]byte
	err := p.session.Query(query, window.Timestamp(id).Time()).
		Consistency(p.consistency()).WithContext(ctx).Scan(&raw)
	return raw, err
}

// TableTTL implements master.Port, reading the `ttl` key out of the
// table's `cdc` extension options.
func (p *MasterPort) TableTTL(ctx context.Context, table change.TableName) (*int64, error) {
	var extensions map[string][]byte
	err := p.session.Query(qTableTTL, table.Keyspace, table.Name).
		Consistency(p.consistency()).WithContext(ctx).Scan(&extensions)
	if errors.Is(err, gocql.ErrNotFound) {
		return nil, master.NewConfigurationError("table " + table.String() + " has no schema metadata")
	}
	if err != nil {
		return nil, errors.Wrap(err, "fetching table extensions")
	}

	raw, ok := extensions["cdc"]
	if !ok {
		return nil, master.NewConfigurationError("table " + table.String() + " is not cdc-enabled")
	}

	ttl, err := parseCDCOptionsTTL(raw)
	if err != nil {
		return nil, master.NewConfigurationError("table " + table.String() + ": " + err.Error())
	}
	if ttl == 0 {
		return nil, nil
	}
	return &ttl, nil
}

// parseCDCOptionsTTL extracts the ttl value out of the serialized cdc
// extension blob, which Scylla encodes as a flat `key=value,...`
// UTF-8 payload.
func parseCDCOptionsTTL(raw []byte) (int64, error) {
	for _, kv := range strings.Split(string(raw), ",") {
		parts := strings.SplitN(kv, "=", 2)
		if len(parts) != 2 || parts[0] != "ttl" {
			continue
		}
		ttl, err := strconv.ParseInt(parts[1], 10, 64)
		if err != nil {
			return 0, errors.Wrap(err, "malformed ttl option")
		}
		return ttl, nil
	}
	return 0, errors.New("cdc options missing ttl key")
}

// Package master implements the generation-discovery and advancement
// state machine (component C7 of the design): it discovers CDC
// generations, enumerates their streams, builds the task set, and
// advances across generations as they complete.
package master

import (
	"context"
	"time"

	"github.com/cdc-go/scyllacdc/internal/change"
	"github.com/cdc-go/scyllacdc/internal/gen"
)

// Port is the abstract contract the master loop drives to learn about
// generations and table retention. A concrete implementation (e.g.
// internal/scyllaport) issues the CQL described in spec §6.
type Port interface {
	// FirstGenerationID returns the earliest known generation, or nil
	// if CDC has not yet produced any.
	FirstGenerationID(ctx context.Context) (*gen.ID, error)

	// GenerationMetadata returns the complete record for id, including
	// its stream set. It fails if id is unknown.
	GenerationMetadata(ctx context.Context, id gen.ID) (gen.Metadata, error)

	// GenerationEnd returns the end timestamp of id, if the generation
	// has closed.
	GenerationEnd(ctx context.Context, id gen.ID) (*time.Time, error)

	// TableTTL returns the table's CDC log retention in seconds, or nil
	// if TTL is disabled (including a configured TTL of zero). It
	// returns a *ConfigurationError if table is not CDC-enabled or its
	// metadata cannot be found.
	TableTTL(ctx context.Context, table change.TableName) (*int64, error)
}

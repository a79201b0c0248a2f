package scyllacdc

import (
	"github.com/cdc-go/scyllacdc/internal/change"
	"github.com/juju/clock"
	"github.com/pkg/errors"
	"github.com/spf13/pflag"
)

// TableName identifies a CDC-enabled table in the source keyspace.
type TableName = change.TableName

// Config is the user-visible configuration for running the master and
// worker loops against a cluster. It is bound to a pflag.FlagSet the
// way internal/source/server.Config binds CDC options in the teacher
// repo, so a cmd wrapper can expose it on its own command line without
// duplicating flag names.
type Config struct {
	// Hosts are the cluster contact points gocql dials.
	Hosts []string
	// Keyspace and Tables name every CDC-enabled table this process
	// reads. Tables are resolved against Keyspace when only a bare
	// table name is supplied on the command line.
	Keyspace string
	Tables   []TableName

	WindowSizeMs                 int64
	NextWindowSizeMs             int64
	SleepBeforeFirstGenerationMs int64
	SleepAfterExceptionMs        int64
	SleepBeforeGenerationDoneMs  int64
	ReadRetryBaseMs              int64
	ReadRetryMaxMs               int64

	// ChaosProbability, when non-zero, wraps the concrete CQL ports
	// with internal/chaos fault injectors. It exists for integration
	// testing and must never be set in production.
	ChaosProbability float32

	// Clock is the injectable wall-clock source threaded through the
	// master and worker loops; defaults to clock.WallClock in
	// Preflight if left nil.
	Clock clock.Clock

	// tableNames backs the --tables flag; Preflight resolves it
	// against Keyspace into Tables.
	tableNames []string
}

// Bind registers flags for every Config field onto flags.
func (c *Config) Bind(flags *pflag.FlagSet) {
	flags.StringSliceVar(&c.Hosts, "hosts", nil,
		"comma-separated list of cluster contact points")
	flags.StringVar(&c.Keyspace, "keyspace", "",
		"keyspace containing the CDC-enabled tables to read")
	flags.StringSliceVar(&c.tableNames, "tables", nil,
		"comma-separated list of table names (within --keyspace) to read")
	flags.Int64Var(&c.WindowSizeMs, "windowSize", 10_000,
		"width in milliseconds of a single task polling window")
	flags.Int64Var(&c.NextWindowSizeMs, "nextWindowSize", 10_000,
		"width in milliseconds used for every window after the first")
	flags.Int64Var(&c.SleepBeforeFirstGenerationMs, "sleepBeforeFirstGeneration", 5_000,
		"milliseconds to sleep between polls while waiting for the first CDC generation")
	flags.Int64Var(&c.SleepAfterExceptionMs, "sleepAfterException", 5_000,
		"milliseconds the master loop sleeps after a failed iteration before retrying")
	flags.Int64Var(&c.SleepBeforeGenerationDoneMs, "sleepBeforeGenerationDone", 1_000,
		"milliseconds to sleep between generation-completion polls")
	flags.Int64Var(&c.ReadRetryBaseMs, "readRetryBase", 200,
		"initial backoff in milliseconds after a CDC log read failure")
	flags.Int64Var(&c.ReadRetryMaxMs, "readRetryMax", 30_000,
		"maximum backoff in milliseconds between CDC log read retries")
	flags.Float32Var(&c.ChaosProbability, "chaosProbability", 0,
		"probability in [0,1) of injecting a transient fault at each CQL suspension point; test only")
}

// Preflight validates the configuration and fills in defaults,
// mirroring logical.BaseConfig.Preflight's pattern of rejecting
// impossible configurations before any connection is attempted.
func (c *Config) Preflight() error {
	if len(c.Hosts) == 0 {
		return errors.New("at least one cluster host must be configured")
	}
	if c.Keyspace == "" {
		return errors.New("a keyspace must be configured")
	}
	if len(c.tableNames) == 0 && len(c.Tables) == 0 {
		return errors.New("at least one table must be configured")
	}
	for _, name := range c.tableNames {
		c.Tables = append(c.Tables, TableName{Keyspace: c.Keyspace, Name: name})
	}
	if c.WindowSizeMs <= 0 {
		return errors.New("windowSize must be positive")
	}
	if c.NextWindowSizeMs <= 0 {
		c.NextWindowSizeMs = c.WindowSizeMs
	}
	if c.Clock == nil {
		c.Clock = clock.WallClock
	}
	return nil
}

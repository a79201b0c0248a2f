//go:build wireinject
// +build wireinject

package wireup

import (
	"context"

	"github.com/cdc-go/scyllacdc"
	"github.com/google/wire"
)

// Start builds a fully wired *scyllacdc.Engine for cfg and consumer: a
// live gocql session, the gocql-backed master/worker ports (chaos-
// wrapped when cfg.ChaosProbability is set), and the in-process
// reference transport. The returned cleanup func closes the session;
// callers must invoke it after the engine stops.
//
// This file is never compiled (see the wireinject build tag above); it
// is the input `wire` reads to produce wire_gen.go. Run
//
//	go run github.com/google/wire/cmd/wire ./internal/wireup
//
// after changing ProviderSet and check in the regenerated wire_gen.go,
// the same way the upstream wire_gen.go files in this codebase's
// lineage are checked in rather than built on the fly.
func Start(ctx context.Context, cfg *scyllacdc.Config, consumer scyllacdc.Consumer) (*scyllacdc.Engine, func(), error) {
	panic(wire.Build(ProviderSet))
}

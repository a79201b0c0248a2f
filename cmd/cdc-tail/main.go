// Command cdc-tail demonstrates wiring the scyllacdc engine to a real
// cluster: it reads CDC changes for a configured set of tables and
// writes a one-line JSON-ish summary of each to stdout.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/cdc-go/scyllacdc"
	"github.com/cdc-go/scyllacdc/internal/wireup"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
)

func main() {
	var cfg scyllacdc.Config
	var metricsAddr string
	var verbose bool

	cfg.Bind(pflag.CommandLine)
	pflag.StringVar(&metricsAddr, "metricsAddr", ":9090", "address to serve /metrics on")
	pflag.BoolVar(&verbose, "verbose", false, "enable debug logging")
	pflag.Parse()

	if verbose {
		log.SetLevel(log.DebugLevel)
	}

	if err := cfg.Preflight(); err != nil {
		log.WithError(err).Fatal("invalid configuration")
	}

	consumer := scyllacdc.ConsumerFunc(func(_ context.Context, c scyllacdc.Change) error {
		fmt.Printf("table=%s op=%d stream=%s time=%s\n",
			c.Table, c.Operation, c.ID.StreamID, c.ID.Time)
		return nil
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	engine, cleanup, err := wireup.Start(ctx, &cfg, consumer)
	if err != nil {
		log.WithError(err).Fatal("wiring engine")
	}
	defer cleanup()

	go func() {
		http.Handle("/metrics", promhttp.Handler())
		log.WithField("addr", metricsAddr).Info("serving /metrics")
		if err := http.ListenAndServe(metricsAddr, nil); err != nil {
			log.WithError(err).Warn("metrics server stopped")
		}
	}()

	if err := engine.Run(ctx); err != nil {
		log.WithError(err).Fatal("engine exited with error")
	}
}

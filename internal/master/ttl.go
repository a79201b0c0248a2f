package master

import (
	"context"
	"time"

	"github.com/cdc-go/scyllacdc/internal/change"
	"github.com/cdc-go/scyllacdc/internal/metrics"
	log "github.com/sirupsen/logrus"
)

// generationTTLExpired implements spec §4.6's generationTTLExpired: it
// is true once every configured table's retention window has slid past
// the generation's end, meaning no row written during the generation's
// lifetime can still exist, regardless of what the transport has
// recorded for task progress.
func generationTTLExpired(
	ctx context.Context, port Port, tables []change.TableName, now time.Time, genEnd time.Time,
) bool {
	// lastVisible starts at "infinitely far in the future" so that a
	// single configured table fully determines it if it is the only
	// one with a TTL; any table contributing epoch zero (absent TTL)
	// then pulls the minimum down to zero, which can never exceed
	// genEnd, so the generation is never skipped on TTL grounds alone
	// while such a table exists.
	lastVisible := time.Unix(1<<62, 0)
	sawAny := false

	for _, table := range tables {
		sawAny = true
		ttlSeconds, err := port.TableTTL(ctx, table)
		if err != nil {
			// A single bad table never stalls the master: it
			// contributes "TTL absent", i.e. epoch zero.
			log.WithError(err).WithField("table", table).
				Warn("could not fetch table TTL; treating generation as non-expirable via this table")
			metrics.TableTTLFetchErrors.WithLabelValues(table.Keyspace, table.Name).Inc()
			lastVisible = earlier(lastVisible, time.Unix(0, 0))
			continue
		}
		if ttlSeconds == nil {
			lastVisible = earlier(lastVisible, time.Unix(0, 0))
			continue
		}
		candidate := now.Add(-time.Duration(*ttlSeconds) * time.Second)
		lastVisible = earlier(lastVisible, candidate)
	}

	if !sawAny {
		return false
	}
	return lastVisible.After(genEnd)
}

func earlier(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}

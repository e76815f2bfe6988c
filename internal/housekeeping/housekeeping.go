// Package housekeeping purges client storage that has sat idle too long.
package housekeeping

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"petit-storefront/internal/store"
)

// Purger deletes keys not written within TTL.
type Purger struct {
	store   store.ClientStorer
	ttl     time.Duration
	timeout time.Duration
	now     func() time.Time
}

// NewPurger creates a Purger. A non-positive ttl disables purging.
func NewPurger(s store.ClientStorer, ttl time.Duration) *Purger {
	return &Purger{store: s, ttl: ttl, timeout: time.Minute, now: time.Now}
}

// RunOnce purges keys last written before now minus TTL.
func (p *Purger) RunOnce(ctx context.Context) (int64, error) {
	if p.ttl <= 0 {
		return 0, nil
	}
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	cutoff := p.now().Add(-p.ttl)
	n, err := p.store.PurgeIdle(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("housekeeping: purge before %s: %w", cutoff.Format(time.RFC3339), err)
	}
	if n > 0 {
		log.Printf("INFO: Purged %d idle client storage keys (cutoff %s)", n, cutoff.Format(time.RFC3339))
	}
	return n, nil
}

// Schedule registers the purge on a new cron scheduler. The caller starts
// and stops it.
func (p *Purger) Schedule(spec string) (*cron.Cron, error) {
	c := cron.New()
	if _, err := c.AddFunc(spec, func() {
		if _, err := p.RunOnce(context.Background()); err != nil {
			log.Printf("ERROR: %v", err)
		}
	}); err != nil {
		return nil, fmt.Errorf("housekeeping: invalid schedule %q: %w", spec, err)
	}
	log.Printf("INFO: Idle storage purge scheduled %q with TTL %s", spec, p.ttl)
	return c, nil
}

package app

import (
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

// StaleEvicter is the part of Streams the janitor drives.
type StaleEvicter interface {
	EvictStale(maxAge time.Duration) int
}

// Janitor runs stream eviction on a cron schedule. It is never triggered by client events.
type Janitor struct {
	cron    *cron.Cron
	streams StaleEvicter
	maxAge  time.Duration
	onEvict func(removed int)
}

// NewJanitor parses schedule (standard cron or "@every 5m"). An empty schedule
// returns a janitor whose Start is a no-op.
func NewJanitor(streams StaleEvicter, schedule string, maxAge time.Duration, onEvict func(int)) (*Janitor, error) {
	j := &Janitor{streams: streams, maxAge: maxAge, onEvict: onEvict}
	if schedule == "" {
		return j, nil
	}
	j.cron = cron.New(cron.WithChain(cron.Recover(cron.DefaultLogger)))
	if _, err := j.cron.AddFunc(schedule, j.RunOnce); err != nil {
		return nil, err
	}
	return j, nil
}

// RunOnce evicts stale streams immediately.
func (j *Janitor) RunOnce() {
	removed := j.streams.EvictStale(j.maxAge)
	if removed > 0 {
		log.Info().Str("module", "app.janitor").Int("removed", removed).Dur("max_age", j.maxAge).Msg("stale streams evicted")
	}
	if j.onEvict != nil {
		j.onEvict(removed)
	}
}

func (j *Janitor) Start() {
	if j.cron == nil {
		log.Info().Str("module", "app.janitor").Msg("no schedule, periodic eviction disabled")
		return
	}
	j.cron.Start()
	log.Info().Str("module", "app.janitor").Dur("max_age", j.maxAge).Msg("started")
}

// Stop waits for a running eviction to finish.
func (j *Janitor) Stop() {
	if j.cron == nil {
		return
	}
	<-j.cron.Stop().Done()
}

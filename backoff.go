package parserd

import (
	"math/rand/v2"
	"time"
)

// BackoffConfig defines the retry policy applied when a worker's report
// persist fails transiently.
//
// MaxAttempts bounds the total number of persist attempts for one job;
// after the last one fails the submission is marked Failed. Zero means
// unlimited. InitialInterval is the delay before the first retry; each
// further retry waits Multiplier times the previous delay, capped at
// MaxInterval. RandomizationFactor, when positive, spreads each delay
// uniformly within that fraction of its value.
type BackoffConfig struct {
	MaxAttempts         uint32
	InitialInterval     time.Duration
	MaxInterval         time.Duration
	Multiplier          float64
	RandomizationFactor float64
}

// retrySchedule walks the delay sequence for one job's persist retries.
// A fresh schedule is created per job; it is not safe for concurrent
// use and does not need to be.
type retrySchedule struct {
	cfg   BackoffConfig
	delay time.Duration
	tries uint32
}

func newRetrySchedule(cfg BackoffConfig) *retrySchedule {
	return &retrySchedule{
		cfg:   cfg,
		delay: cfg.InitialInterval,
	}
}

// next returns the delay to sleep before the upcoming retry, or false
// once the attempt budget is spent.
func (rs *retrySchedule) next() (time.Duration, bool) {
	rs.tries++
	if rs.cfg.MaxAttempts > 0 && rs.tries >= rs.cfg.MaxAttempts {
		return 0, false
	}
	d := rs.delay
	grown := time.Duration(float64(rs.delay) * rs.cfg.Multiplier)
	if grown > rs.cfg.MaxInterval {
		grown = rs.cfg.MaxInterval
	}
	rs.delay = grown
	if f := rs.cfg.RandomizationFactor; f > 0 {
		spread := f * float64(d)
		d = time.Duration(float64(d) - spread + rand.Float64()*2*spread)
	}
	return d, true
}

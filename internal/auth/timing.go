package auth

import (
	"crypto/rand"
	"math/big"
	"time"
)

// TimingConfig holds configuration for timing attack prevention
type TimingConfig struct {
	BaseDelay      time.Duration
	RandomDelay    time.Duration // upper bound of the random extra
	DelayOnSuccess bool
}

// TimingDelay pads failed credential checks to a similar duration so an
// unknown account and a wrong password cannot be told apart by latency
type TimingDelay struct {
	config TimingConfig
	sleep  func(time.Duration)
}

func NewTimingDelay(config TimingConfig) *TimingDelay {
	return &TimingDelay{config: config, sleep: time.Sleep}
}

// target returns base plus a crypto-random jitter
func (td *TimingDelay) target() time.Duration {
	d := td.config.BaseDelay
	if td.config.RandomDelay > 0 {
		if n, err := rand.Int(rand.Reader, big.NewInt(int64(td.config.RandomDelay))); err == nil {
			d += time.Duration(n.Int64())
		}
	}
	return d
}

// WaitFrom sleeps until at least the target delay has elapsed since start
func (td *TimingDelay) WaitFrom(start time.Time, success bool) {
	if td == nil || (success && !td.config.DelayOnSuccess) {
		return
	}
	if remaining := td.target() - time.Since(start); remaining > 0 {
		td.sleep(remaining)
	}
}

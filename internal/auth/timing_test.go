package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func recordingDelay(config TimingConfig) (*TimingDelay, *[]time.Duration) {
	var slept []time.Duration
	td := NewTimingDelay(config)
	td.sleep = func(d time.Duration) { slept = append(slept, d) }
	return td, &slept
}

func TestTimingDelay_WaitFrom_OnFailure(t *testing.T) {
	td, slept := recordingDelay(TimingConfig{BaseDelay: 100 * time.Millisecond, RandomDelay: 50 * time.Millisecond})

	td.WaitFrom(time.Now(), false)

	if assert.Len(t, *slept, 1) {
		assert.Greater(t, (*slept)[0], 90*time.Millisecond)
		assert.LessOrEqual(t, (*slept)[0], 150*time.Millisecond)
	}
}

func TestTimingDelay_WaitFrom_AccountsForElapsed(t *testing.T) {
	td, slept := recordingDelay(TimingConfig{BaseDelay: 100 * time.Millisecond})

	td.WaitFrom(time.Now().Add(-80*time.Millisecond), false)
	if assert.Len(t, *slept, 1) {
		assert.LessOrEqual(t, (*slept)[0], 20*time.Millisecond)
	}

	td.WaitFrom(time.Now().Add(-time.Second), false)
	assert.Len(t, *slept, 1, "no sleep once the target has already passed")
}

func TestTimingDelay_SuccessSkipsDelay(t *testing.T) {
	td, slept := recordingDelay(TimingConfig{BaseDelay: 100 * time.Millisecond})
	td.WaitFrom(time.Now(), true)
	assert.Empty(t, *slept)

	td, slept = recordingDelay(TimingConfig{BaseDelay: 100 * time.Millisecond, DelayOnSuccess: true})
	td.WaitFrom(time.Now(), true)
	assert.Len(t, *slept, 1)
}

func TestTimingDelay_NilIsNoop(t *testing.T) {
	var td *TimingDelay
	assert.NotPanics(t, func() { td.WaitFrom(time.Now(), false) })
}

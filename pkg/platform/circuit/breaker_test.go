package circuit

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaults(t *testing.T) {
	b := New("kafka-relay")
	assert.Equal(t, "kafka-relay", b.Name())
	assert.Equal(t, StateClosed, b.State())
	assert.Equal(t, "closed", b.State().String())

	for range defaultFailureThreshold - 1 {
		b.RecordFailure()
	}
	assert.False(t, b.IsOpen(), "one short of the default threshold")
	_, change := b.RecordFailure()
	assert.True(t, change.Opened)
	assert.Equal(t, "open", b.State().String())
}

func TestNonPositiveThresholdsKeepDefaults(t *testing.T) {
	b := New("kafka-relay", WithFailureThreshold(0), WithSuccessThreshold(-1))
	assert.Equal(t, defaultFailureThreshold, b.failureThreshold)
	assert.Equal(t, defaultSuccessThreshold, b.successThreshold)
}

// Each step is one relay flush outcome: 'f' a failed produce, 's' a
// successful one.
func TestFlushOutcomeSequences(t *testing.T) {
	cases := []struct {
		name     string
		steps    string
		wantOpen bool
		openings int
		closings int
	}{
		{"broker healthy", "ssss", false, 0, 0},
		{"transient blip below threshold", "ffsff", false, 0, 0},
		{"broker down opens once", "fffff", true, 1, 0},
		{"single success after outage stays open", "fffs", true, 1, 0},
		{"recovery needs consecutive successes", "fffsfss", false, 1, 1},
		{"flapping broker reopens", "fffssfff", true, 2, 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			b := New("kafka-relay", WithFailureThreshold(3), WithSuccessThreshold(2))
			var opened, closed int
			for _, step := range tc.steps {
				var change StateChange
				switch step {
				case 'f':
					_, change = b.RecordFailure()
				case 's':
					_, change = b.RecordSuccess()
				default:
					t.Fatalf("unknown step %q", step)
				}
				if change.Opened {
					opened++
				}
				if change.Closed {
					closed++
				}
			}
			assert.Equal(t, tc.wantOpen, b.IsOpen())
			assert.Equal(t, tc.openings, opened, "openings")
			assert.Equal(t, tc.closings, closed, "closings")
		})
	}
}

func TestFallbackSignals(t *testing.T) {
	b := New("kafka-relay", WithFailureThreshold(1), WithSuccessThreshold(1))

	useFallback, _ := b.RecordFailure()
	assert.True(t, useFallback, "opening failure")
	useFallback, change := b.RecordFailure()
	assert.True(t, useFallback, "failure while open")
	assert.Equal(t, StateChange{}, change)

	usePrimary, change := b.RecordSuccess()
	assert.True(t, usePrimary)
	assert.True(t, change.Closed)
	usePrimary, change = b.RecordSuccess()
	assert.True(t, usePrimary, "success while closed")
	assert.Equal(t, StateChange{}, change)
}

func TestResetClosesAndClearsCounts(t *testing.T) {
	b := New("kafka-relay", WithFailureThreshold(2))
	b.RecordFailure()
	b.RecordFailure()
	require.True(t, b.IsOpen())

	b.Reset()
	assert.Equal(t, StateClosed, b.State())
	b.RecordFailure()
	assert.False(t, b.IsOpen(), "failure count restarted after reset")
}

func TestConcurrentFailuresOpenExactlyOnce(t *testing.T) {
	const workers = 32
	b := New("kafka-relay", WithFailureThreshold(workers/2))

	var opened atomic.Int32
	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, change := b.RecordFailure(); change.Opened {
				opened.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.True(t, b.IsOpen())
	assert.Equal(t, int32(1), opened.Load())
}

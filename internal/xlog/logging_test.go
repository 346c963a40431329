package xlog

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestForSubsystem_FallsBackToDefaultBeforeInit(t *testing.T) {
	logger := ForSubsystem("test-subsystem")
	require.NotNil(t, logger)
}

func TestRealtimeLogger_WarnfDoesNotBlockAndEventuallyFlushes(t *testing.T) {
	rl := NewRealtimeLogger("rt-test", 4096)
	defer rl.Close()

	done := make(chan struct{})
	go func() {
		rl.Warnf("underrun on %s", "process_to_audio")
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Warnf blocked on enqueue")
	}
}

func TestRealtimeLogger_CloseDrainsWithoutHanging(t *testing.T) {
	rl := NewRealtimeLogger("rt-close-test", 4096)
	rl.Errorf("boom %d", 1)

	closed := make(chan struct{})
	go func() {
		rl.Close()
		close(closed)
	}()

	select {
	case <-closed:
	case <-time.After(2 * time.Second):
		t.Fatal("Close did not return")
	}
}

func TestSetLevel_DoesNotPanicBeforeInit(t *testing.T) {
	assert.NotPanics(t, func() { SetLevel(0) })
}

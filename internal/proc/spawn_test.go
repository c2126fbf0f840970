package proc

import (
	"context"
	"errors"
	"testing"
)

func TestOSSpawner_LaunchFailureLeavesNoHandle(t *testing.T) {
	h, err := OSSpawner{}.Spawn(context.Background(),
		[]string{"nonexistent-binary-xyz-123"}, t.TempDir(), nil)
	var launchErr *LaunchError
	if !errors.As(err, &launchErr) {
		t.Fatalf("error = %v, want *LaunchError", err)
	}
	if h != nil {
		t.Error("handle must be nil on launch failure")
	}
}

func TestOSSpawner_NoDescriptorLeakAcrossRuns(t *testing.T) {
	// Spawn enough processes that a leaked pipe pair per run would
	// exhaust the default descriptor limit long before the loop ends.
	var r Runner
	for i := 0; i < 300; i++ {
		if _, err := r.Run(context.Background(), Config{Argv: []string{"true"}}); err != nil {
			t.Fatalf("run %d: %v", i, err)
		}
	}
}

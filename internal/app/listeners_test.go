package app_test

import (
	"testing"

	"github.com/neomorfeo/provisr/internal/app"
)

func TestListenerRegistryOrdering(t *testing.T) {
	var calls []string
	low := &recordingListener{name: "low", priority: 1, calls: &calls}
	mid := &recordingListener{name: "mid", priority: 5, calls: &calls}
	high := &recordingListener{name: "high", priority: 9, calls: &calls}

	reg := app.NewListenerRegistry(high, low, mid)

	snapshot := reg.Snapshot()
	if len(snapshot) != 3 {
		t.Fatalf("got %d listeners", len(snapshot))
	}
	for i, want := range []int{1, 5, 9} {
		if got := snapshot[i].Priority(); got != want {
			t.Errorf("snapshot[%d].Priority() = %d, want %d", i, got, want)
		}
	}
}

func TestListenerRegistryStableForEqualPriorities(t *testing.T) {
	var calls []string
	first := &recordingListener{name: "first", priority: 5, calls: &calls}
	second := &recordingListener{name: "second", priority: 5, calls: &calls}

	reg := app.NewListenerRegistry()
	reg.Register(first)
	reg.Register(second)

	snapshot := reg.Snapshot()
	if snapshot[0] != first || snapshot[1] != second {
		t.Error("equal priorities must keep registration order")
	}
}

func TestListenerRegistryUnregister(t *testing.T) {
	var calls []string
	l := &recordingListener{name: "l", calls: &calls}

	reg := app.NewListenerRegistry(l)
	reg.Unregister(l)

	if got := len(reg.Snapshot()); got != 0 {
		t.Errorf("got %d listeners after unregister", got)
	}
}

func TestSnapshotIsACopy(t *testing.T) {
	var calls []string
	l := &recordingListener{name: "l", calls: &calls}
	reg := app.NewListenerRegistry(l)

	snapshot := reg.Snapshot()
	snapshot[0] = nil

	if reg.Snapshot()[0] == nil {
		t.Error("mutating a snapshot must not affect the registry")
	}
}

package afxdp

import "testing"

// Invariant 8: acquiring an already-claimed IfCtx fails and leaves the
// tracker unchanged.
func TestDeviceTrackerRejectsDuplicate(t *testing.T) {
	tr := newDeviceTracker()
	ctx := IfCtx{Ifindex: 1, QueueID: 0, NetnsCookie: 1}

	if !tr.insert(ctx) {
		t.Fatalf("first insert should succeed")
	}
	if tr.insert(ctx) {
		t.Fatalf("second insert of the same IfCtx should fail")
	}
	if !tr.contains(ctx) {
		t.Fatalf("tracker should still contain ctx after the rejected insert")
	}
}

// Invariant 9: removing an IfCtx allows it to be acquired again.
func TestDeviceTrackerReacquireAfterRemove(t *testing.T) {
	tr := newDeviceTracker()
	ctx := IfCtx{Ifindex: 2, QueueID: 3, NetnsCookie: 1}

	if !tr.insert(ctx) {
		t.Fatalf("insert should succeed")
	}
	tr.remove(ctx)
	if tr.contains(ctx) {
		t.Fatalf("ctx should be gone after remove")
	}
	if !tr.insert(ctx) {
		t.Fatalf("re-insert after remove should succeed")
	}
}

func TestDeviceTrackerDistinctQueuesIndependent(t *testing.T) {
	tr := newDeviceTracker()
	a := IfCtx{Ifindex: 1, QueueID: 0, NetnsCookie: 1}
	b := IfCtx{Ifindex: 1, QueueID: 1, NetnsCookie: 1}

	if !tr.insert(a) || !tr.insert(b) {
		t.Fatalf("distinct queue ids on the same interface must both be insertable")
	}
}

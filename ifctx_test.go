package afxdp

import "testing"

func TestIfInfoInvalidIsZero(t *testing.T) {
	info := InvalidIfInfo()
	if info.Ifindex() != 0 || info.QueueID() != 0 {
		t.Fatalf("invalid IfInfo should be all-zero, got %+v", info.Ctx())
	}
	if _, ok := info.Name(); ok {
		t.Fatalf("invalid IfInfo should report no name")
	}
}

func TestIfInfoSetQueue(t *testing.T) {
	info := InvalidIfInfo()
	info.SetQueue(7)
	if info.QueueID() != 7 {
		t.Fatalf("queue id = %d, want 7", info.QueueID())
	}
}

func TestIfInfoSetNameRejectsOversize(t *testing.T) {
	info := InvalidIfInfo()
	err := info.setName("this-interface-name-is-far-too-long")
	if err != ErrInvalidArgument {
		t.Fatalf("err = %v, want ErrInvalidArgument", err)
	}
}

func TestIfInfoSetNameRoundTrip(t *testing.T) {
	info := InvalidIfInfo()
	if err := info.setName("eth0"); err != nil {
		t.Fatalf("setName: %v", err)
	}
	name, ok := info.Name()
	if !ok || name != "eth0" {
		t.Fatalf("name = %q, ok=%v, want eth0/true", name, ok)
	}
}

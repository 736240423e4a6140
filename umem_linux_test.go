//go:build linux

package afxdp

import "testing"

func TestNewUmemRejectsZeroFrameSize(t *testing.T) {
	region := make([]byte, 4096)
	config := DefaultUmemConfig()
	config.FrameSize = 0

	_, err := NewUmem(config, region)
	if err != ErrInvalidArgument {
		t.Fatalf("err = %v, want ErrInvalidArgument", err)
	}
}

func TestNewUmemRejectsNonPowerOfTwoRingSize(t *testing.T) {
	region := make([]byte, 4096)
	config := DefaultUmemConfig()
	config.FillSize = 3000

	_, err := NewUmem(config, region)
	if err != ErrInvalidArgument {
		t.Fatalf("err = %v, want ErrInvalidArgument", err)
	}
}

func TestNewUmemRejectsEmptyRegion(t *testing.T) {
	config := DefaultUmemConfig()

	_, err := NewUmem(config, nil)
	if err != ErrInvalidArgument {
		t.Fatalf("err = %v, want ErrInvalidArgument", err)
	}
}

func TestIsPowerOfTwo(t *testing.T) {
	cases := map[uint32]bool{0: false, 1: true, 2: true, 3: false, 2048: true, 4096: true, 3000: false}
	for n, want := range cases {
		if got := isPowerOfTwo(n); got != want {
			t.Errorf("isPowerOfTwo(%d) = %v, want %v", n, got, want)
		}
	}
}

//go:build linux

package afxdp

import (
	"testing"

	"github.com/penguintech/afxdp/xdp"
)

func TestFixupRingOffsetsV1SynthesisesFlags(t *testing.T) {
	v1 := xdp.RingOffsetsV1{Producer: 0, Consumer: 8, Desc: 16}

	got := fixupRingOffsetsV1(v1)

	if got.Producer != v1.Producer || got.Consumer != v1.Consumer || got.Desc != v1.Desc {
		t.Fatalf("fixupRingOffsetsV1 changed a carried-over field: got %+v from %+v", got, v1)
	}
	if want := v1.Consumer + 4; got.Flags != want {
		t.Fatalf("flags = %d, want consumer+4 = %d", got.Flags, want)
	}
}

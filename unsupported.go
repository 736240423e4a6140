//go:build !linux

package afxdp

import "github.com/penguintech/afxdp/xdp"

// Socket is the non-Linux stand-in for the real AF_XDP socket handle.
// Every constructor and method fails with ErrUnsupportedPlatform: AF_XDP
// does not exist outside Linux.
type Socket struct{}

func NewSocket(iface IfInfo) (*Socket, error) { return nil, ErrUnsupportedPlatform }
func NewSharedSocket(iface IfInfo, umem *Umem) (*Socket, error) {
	return nil, ErrUnsupportedPlatform
}
func (s *Socket) Close() error { return ErrUnsupportedPlatform }
func (s *Socket) Info() IfInfo { return IfInfo{} }

func ResolveInterfaceByName(ifname string) (IfInfo, error) {
	return IfInfo{}, ErrUnsupportedPlatform
}

func ResolveInterfaceByIndex(ifindex uint32) (IfInfo, error) {
	return IfInfo{}, ErrUnsupportedPlatform
}

// UmemConfig mirrors the Linux type so callers can build one platform
// independently, even though NewUmem always fails here.
type UmemConfig struct {
	FillSize     uint32
	CompleteSize uint32
	FrameSize    uint32
	Headroom     uint32
	Flags        uint32
}

func DefaultUmemConfig() UmemConfig {
	return UmemConfig{FillSize: 2048, CompleteSize: 2048, FrameSize: 4096}
}

// SocketConfig mirrors the Linux type; see UmemConfig.
type SocketConfig struct {
	RxSize    uint32
	TxSize    uint32
	BindFlags uint16
}

// Umem is the non-Linux stand-in for the real UMEM controller.
type Umem struct{}

func NewUmem(config UmemConfig, region []byte) (*Umem, error) { return nil, ErrUnsupportedPlatform }

func (u *Umem) Frame(idx BufIdx) (UmemFrame, error) { return UmemFrame{}, ErrUnsupportedPlatform }
func (u *Umem) Close() error                        { return ErrUnsupportedPlatform }
func (u *Umem) AcquireDeviceQueue(sock *Socket) (*DeviceQueue, error) {
	return nil, ErrUnsupportedPlatform
}
func (u *Umem) PrepareSocket(sock *Socket, config SocketConfig) (*UserSocket, error) {
	return nil, ErrUnsupportedPlatform
}
func (u *Umem) Bind(us *UserSocket) error { return ErrUnsupportedPlatform }

// UmemFrame mirrors the Linux type.
type UmemFrame struct {
	Offset uint64
	Bytes  []byte
}

// DeviceQueue is the non-Linux stand-in for a mapped fill/completion ring
// pair.
type DeviceQueue struct{}

func (d *DeviceQueue) Fill(n uint32) *FillWriter           { return nil }
func (d *DeviceQueue) Complete(n uint32) *CompletionReader { return nil }
func (d *DeviceQueue) Wake() error                         { return ErrUnsupportedPlatform }
func (d *DeviceQueue) Statistics() (xdp.Statistics, error) {
	return xdp.Statistics{}, ErrUnsupportedPlatform
}
func (d *DeviceQueue) Close() error              { return ErrUnsupportedPlatform }
func (d *DeviceQueue) ConfigureClassifier() error { return ErrClassifierUnconfigured }

// UserSocket is the non-Linux stand-in for a configured, unbound socket.
type UserSocket struct{}

func (us *UserSocket) MapRx() (*RxRing, error)             { return nil, ErrUnsupportedPlatform }
func (us *UserSocket) MapTx() (*TxRing, error)             { return nil, ErrUnsupportedPlatform }
func (us *UserSocket) Statistics() (xdp.Statistics, error) { return xdp.Statistics{}, ErrUnsupportedPlatform }
func (us *UserSocket) Close() error                        { return ErrUnsupportedPlatform }

// RxRing is the non-Linux stand-in for a mapped receive ring.
type RxRing struct{}

func (r *RxRing) Receive(n uint32) *RxReader { return nil }
func (r *RxRing) Wake() error                { return ErrUnsupportedPlatform }
func (r *RxRing) Close() error               { return ErrUnsupportedPlatform }

// TxRing is the non-Linux stand-in for a mapped transmit ring.
type TxRing struct{}

func (t *TxRing) Transmit(n uint32) *TxWriter { return nil }
func (t *TxRing) Wake() error                 { return ErrUnsupportedPlatform }
func (t *TxRing) Close() error                { return ErrUnsupportedPlatform }

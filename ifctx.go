package afxdp

// IfCtx identifies a device queue uniquely within a host: interface index,
// queue id, and the network-namespace cookie of the socket that resolved
// it. Two sockets with equal IfCtx refer to the same kernel-side
// fill/completion pair.
type IfCtx struct {
	Ifindex     uint32
	QueueID     uint32
	NetnsCookie uint64
}

// maxIfNameSize mirrors the kernel's IFNAMSIZ.
const maxIfNameSize = 16

// IfInfo is an IfCtx plus the interface name it was resolved from. A fresh
// IfInfo is invalid (zero IfCtx, empty name) until populated by name or
// index lookup.
type IfInfo struct {
	ctx    IfCtx
	ifname [maxIfNameSize]byte
	nameOK bool
}

// InvalidIfInfo returns an IfInfo referring to no device, suitable for
// overwriting with the result of ResolveInterfaceByName or
// ResolveInterfaceByIndex.
func InvalidIfInfo() IfInfo {
	return IfInfo{}
}

// Ctx returns the interface context resolved so far.
func (i *IfInfo) Ctx() IfCtx { return i.ctx }

// Ifindex returns the numeric interface id in the kernel.
func (i *IfInfo) Ifindex() uint32 { return i.ctx.Ifindex }

// QueueID returns the queue id previously set with SetQueue.
func (i *IfInfo) QueueID() uint32 { return i.ctx.QueueID }

// Name returns the interface name, if one was resolved.
func (i *IfInfo) Name() (string, bool) {
	if !i.nameOK {
		return "", false
	}
	n := 0
	for n < len(i.ifname) && i.ifname[n] != 0 {
		n++
	}
	return string(i.ifname[:n]), true
}

// SetQueue configures the queue id. This does not validate that the queue
// exists; that is only discovered at bind time.
func (i *IfInfo) SetQueue(queueID uint32) {
	i.ctx.QueueID = queueID
}

func (i *IfInfo) setName(name string) error {
	if len(name)+1 > len(i.ifname) {
		return ErrInvalidArgument
	}
	i.ifname = [maxIfNameSize]byte{}
	copy(i.ifname[:], name)
	i.nameOK = true
	return nil
}

// Package afxdp is a user-space library for AF_XDP sockets on Linux: it
// creates a kernel-shared packet-buffer region (UMEM), binds it to one or
// more network-interface receive/transmit queue pairs, and exposes the four
// kernel-maintained single-producer/single-consumer ring buffers (fill,
// completion, receive, transmit) as batched, lock-free producer/consumer
// handles.
//
// It does not steer packets to sockets (that is the job of an externally
// loaded XDP/BPF program and the XSKMAP it populates), does not touch
// netlink, and never looks at packet contents — it only mediates ownership
// of buffer slots.
//
// The entry point is NewUmem.
package afxdp

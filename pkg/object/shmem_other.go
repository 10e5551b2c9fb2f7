//go:build !linux

package object

import "fmt"

// newShmem on non-Linux platforms has no backing implementation; it returns
// a transport-kind Error instead of panicking, so callers that probe for
// shared-memory support on an unsupported platform get a handleable failure.
func newShmem(name string, size int) *Object {
	return NewError(int(KindTransport), fmt.Sprintf("shmem not supported on this platform (%q, %d bytes)", name, size), nil, nil)
}

func releaseShmem(shmemPayload) {}

//go:build linux

package object

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// newShmem on Linux backs the handle with a memfd, mapped read/write. This
// is the portable equivalent of the original transport's SysV/POSIX shm
// segment. The memfd is closed as soon as it is mapped and the Object keeps
// no descriptor, so the region is reachable only through this process's
// mapping; no other process can attach to it.
func newShmem(name string, size int) *Object {
	fd, err := unix.MemfdCreate(name, 0)
	if err != nil {
		return errorShmem(name, size, err)
	}

	if err := unix.Ftruncate(fd, int64(size)); err != nil {
		unix.Close(fd)
		return errorShmem(name, size, err)
	}

	data, err := unix.Mmap(fd, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	unix.Close(fd)
	if err != nil {
		return errorShmem(name, size, err)
	}

	return newObject(Shmem, shmemPayload{name: name, size: size, data: data})
}

func errorShmem(name string, size int, err error) *Object {
	return NewError(int(KindTransport), fmt.Sprintf("shmem %q (%d bytes): %v", name, size, err), nil, nil)
}

func releaseShmem(p shmemPayload) {
	if p.data != nil {
		unix.Munmap(p.data)
	}
}

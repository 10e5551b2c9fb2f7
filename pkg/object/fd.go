package object

import "syscall"

func closeFd(fd int) {
	if fd >= 0 {
		syscall.Close(fd)
	}
}

// GetFd returns the file descriptor held by o, or -1 if o is not an Fd
// object.
func GetFd(o *Object) int {
	if o == nil || o.typ != Fd {
		return -1
	}
	return o.payload.(fdPayload).fd
}

// DupFd duplicates o's file descriptor and returns an independent Fd object
// owning the new descriptor. On failure it returns an Error object instead,
// following this package's "value or Error Object, never both channels"
// convention.
func DupFd(o *Object) *Object {
	if o == nil || o.typ != Fd {
		return NewKindError(KindInvalidArgument, "DupFd: not an Fd object")
	}

	newFd, err := syscall.Dup(o.payload.(fdPayload).fd)
	if err != nil {
		return NewKindError(KindTransport, "dup: "+err.Error())
	}

	return NewFd(newFd)
}

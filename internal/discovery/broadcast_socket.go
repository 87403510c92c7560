package discovery

import (
	"net"
	"syscall"
)

// setBroadcast enables SO_BROADCAST on the discovery socket so outbound
// writes to the subnet broadcast address aren't rejected by the kernel.
func setBroadcast(conn *net.UDPConn) error {
	raw, err := conn.SyscallConn()
	if err != nil {
		return err
	}

	var sockErr error
	err = raw.Control(func(fd uintptr) {
		sockErr = syscall.SetsockoptInt(int(fd), syscall.SOL_SOCKET, syscall.SO_BROADCAST, 1)
	})
	if err != nil {
		return err
	}
	return sockErr
}

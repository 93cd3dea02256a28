package netutil

import (
	"net"

	"github.com/xiaonanln/netconnutil"
)

// Connection is the network connection type used by the packet codec.
// Flush lets buffered wrappers push pending bytes to the wire.
type Connection interface {
	netconnutil.FlushableConn
}

// NetConn adapts a plain net.Conn to Connection with a no-op Flush
type NetConn struct {
	net.Conn
}

// Flush flushes the connection
func (n NetConn) Flush() error {
	return nil
}

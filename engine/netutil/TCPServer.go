package netutil

import (
	"net"
	"os"
	"time"

	"github.com/brickhost/brickd/engine/bhioutil"
	"github.com/brickhost/brickd/engine/bhlog"
	"github.com/brickhost/brickd/engine/consts"
)

const (
	_RESTART_TCP_SERVER_INTERVAL = 3 * time.Second
)

// TCPServerDelegate is the implementations of TCP server delegates
type TCPServerDelegate interface {
	ServeTCPConnection(net.Conn)
}

// ServeTCPForever serves on specified address as TCP server, forever, restarting
// the accept loop if it fails
func ServeTCPForever(listenAddr string, delegate TCPServerDelegate) {
	for {
		err := serveTCPForeverOnce(listenAddr, delegate)
		bhlog.Errorf("server@%s failed with error: %v, will restart after %s", listenAddr, err, _RESTART_TCP_SERVER_INTERVAL)
		if consts.DEBUG_MODE {
			os.Exit(2)
		}
		time.Sleep(_RESTART_TCP_SERVER_INTERVAL)
	}
}

func serveTCPForeverOnce(listenAddr string, delegate TCPServerDelegate) error {
	defer func() {
		if err := recover(); err != nil {
			bhlog.TraceError("serveTCP: paniced with error %s", err)
		}
	}()

	return ServeTCP(listenAddr, delegate)
}

// ServeTCP serves on specified address as TCP server
func ServeTCP(listenAddr string, delegate TCPServerDelegate) error {
	ln, err := net.Listen("tcp", listenAddr)
	if err != nil {
		return err
	}

	bhlog.Infof("Listening on TCP: %s ...", listenAddr)
	defer ln.Close()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if bhioutil.IsTimeoutError(err) {
				continue
			}
			return err
		}

		go delegate.ServeTCPConnection(conn)
	}
}

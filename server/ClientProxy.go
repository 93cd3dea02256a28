package server

import (
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"github.com/xiaonanln/netconnutil"

	"github.com/brickhost/brickd/engine/bhlog"
	"github.com/brickhost/brickd/engine/config"
	"github.com/brickhost/brickd/engine/consts"
	"github.com/brickhost/brickd/engine/netutil"
	"github.com/brickhost/brickd/engine/post"
	"github.com/brickhost/brickd/engine/proto"
	"github.com/brickhost/brickd/entity"
)

// connection lifecycle states
const (
	clientStateConnected int32 = iota
	clientStateAuthenticating
	clientStateAuthenticated
	clientStateClosed
)

var errSendQueueFull = errors.New("client send queue is full")
var errClientClosed = errors.New("client connection is closed")

type sendItem struct {
	pkt *netutil.Packet
	d   *entity.Deferred
}

// ClientProxy is one client connection managed by the game server. Inbound
// frames go through the server packet queue to the game goroutine; outbound
// packets go through the proxy's own send queue, drained by a writer
// goroutine so that a stalled peer degrades only its own deliveries.
type ClientProxy struct {
	*netutil.PacketConnection
	gs *GameServer

	addr  string // remote ip without port
	state int32

	player *entity.Player

	lastHeard int64 // unix nano, updated on every inbound frame

	unknownPackets int

	mu        sync.Mutex
	closed    bool
	sendQueue chan sendItem
	quit      chan struct{}
}

func newClientProxy(gs *GameServer, _conn net.Conn, cfg *config.ServerConfig) *ClientProxy {
	_conn = netconnutil.NewNoTempErrorConn(_conn)
	var conn netutil.Connection = netutil.NetConn{Conn: _conn}
	if cfg.CompressConnection {
		conn = netconnutil.NewSnappyConn(conn)
	}
	conn = netconnutil.NewBufferedConn(conn, consts.BUFFERED_READ_BUFFSIZE, consts.BUFFERED_WRITE_BUFFSIZE)

	addr, _, err := net.SplitHostPort(_conn.RemoteAddr().String())
	if err != nil {
		addr = _conn.RemoteAddr().String()
	}

	cp := &ClientProxy{
		gs:        gs,
		addr:      addr,
		state:     clientStateConnected,
		sendQueue: make(chan sendItem, consts.CLIENT_PROXY_SEND_QUEUE_MAX_LEN),
		quit:      make(chan struct{}),
	}
	cp.PacketConnection = netutil.NewPacketConnection(conn)
	cp.touch()
	return cp
}

func (cp *ClientProxy) String() string {
	return fmt.Sprintf("ClientProxy<%s>", cp.addr)
}

// Address returns the remote address without the port
func (cp *ClientProxy) Address() string {
	return cp.addr
}

// Player returns the avatar owned by this connection, nil before auth
func (cp *ClientProxy) Player() *entity.Player {
	return cp.player
}

func (cp *ClientProxy) authenticated() bool {
	return atomic.LoadInt32(&cp.state) == clientStateAuthenticated
}

func (cp *ClientProxy) touch() {
	atomic.StoreInt64(&cp.lastHeard, time.Now().UnixNano())
}

func (cp *ClientProxy) silentFor(now time.Time) time.Duration {
	return now.Sub(time.Unix(0, atomic.LoadInt64(&cp.lastHeard)))
}

// Push queues a packet for delivery on this connection. The returned
// Deferred resolves when the writer flushed (or failed) the frame. A full
// queue fails the delivery immediately: a stalled peer never blocks the
// game goroutine.
func (cp *ClientProxy) Push(pkt *netutil.Packet) *entity.Deferred {
	pkt.PrepareSend()

	cp.mu.Lock()
	if cp.closed {
		cp.mu.Unlock()
		return entity.ResolvedDeferred(errClientClosed)
	}

	d := entity.NewDeferred()
	pkt.AddRefCount(1)
	select {
	case cp.sendQueue <- sendItem{pkt, d}:
		cp.mu.Unlock()
	default:
		cp.mu.Unlock()
		pkt.Release()
		d.Resolve(errors.Wrapf(errSendQueueFull, "client %s", cp.addr))
	}
	return d
}

// Kick delivers the reason best-effort as a server chat line, then closes
func (cp *ClientProxy) Kick(reason string) {
	bhlog.Infof("%s kicked: %s", cp, reason)
	pkt := proto.MakeChatPacket(0, reason)
	cp.Push(pkt)
	pkt.Release()

	// leave the writer a moment to flush the reason
	time.AfterFunc(time.Millisecond*50, cp.close)
}

// serve runs the read loop: frames from one connection are decoded strictly
// in arrival order. Framing errors are fatal for the connection.
func (cp *ClientProxy) serve() {
	defer func() {
		cp.close()
		post.Post(func() {
			cp.gs.onClientProxyClose(cp)
		})

		if err := recover(); err != nil && !netutil.IsConnectionError(err.(error)) {
			bhlog.TraceError("%s error: %s", cp, err.(error))
		} else if consts.DEBUG_CLIENTS {
			bhlog.Debugf("%s disconnected", cp)
		}
	}()

	for {
		pkt, err := cp.RecvPacket()
		if err != nil {
			if cause := errors.Cause(err); cause == netutil.ErrFrameTooLarge || cause == netutil.ErrBadLengthPrefix {
				bhlog.Warnf("%s framing error: %v", cp, err)
				return
			}
			panic(err)
		}
		cp.touch()
		cp.gs.packetQueue <- packetQueueItem{cp: cp, pkt: pkt}
	}
}

// sendRoutine drains the send queue; it owns all writes on the connection
func (cp *ClientProxy) sendRoutine() {
	for {
		select {
		case item := <-cp.sendQueue:
			err := cp.SendPacket(item.pkt)
			item.pkt.Release()
			item.d.Resolve(err)
			if err != nil {
				cp.close()
				cp.drainSendQueue()
				return
			}
		case <-cp.quit:
			cp.drainSendQueue()
			return
		}
	}
}

func (cp *ClientProxy) drainSendQueue() {
	for {
		select {
		case item := <-cp.sendQueue:
			item.pkt.Release()
			item.d.Resolve(errClientClosed)
		default:
			return
		}
	}
}

// close shuts the connection down; safe to call more than once, from any
// goroutine
func (cp *ClientProxy) close() {
	cp.mu.Lock()
	if cp.closed {
		cp.mu.Unlock()
		return
	}
	cp.closed = true
	cp.mu.Unlock()

	atomic.StoreInt32(&cp.state, clientStateClosed)
	close(cp.quit)
	cp.PacketConnection.Close()
}

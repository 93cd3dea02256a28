package server

import (
	"fmt"
	"net"
	"sync"
	"time"

	timer "github.com/xiaonanln/goTimer"
	"github.com/xiaonanln/go-xnsyncutil/xnsyncutil"
	"github.com/xtaci/kcp-go"

	"github.com/brickhost/brickd/engine/async"
	"github.com/brickhost/brickd/engine/bhlog"
	"github.com/brickhost/brickd/engine/bhutils"
	"github.com/brickhost/brickd/engine/config"
	"github.com/brickhost/brickd/engine/consts"
	"github.com/brickhost/brickd/engine/kvdb"
	"github.com/brickhost/brickd/engine/netutil"
	"github.com/brickhost/brickd/engine/opmon"
	"github.com/brickhost/brickd/engine/post"
	"github.com/brickhost/brickd/entity"
	"github.com/brickhost/brickd/platform"
	"github.com/brickhost/brickd/sanction"
)

type packetQueueItem struct {
	cp  *ClientProxy
	pkt *netutil.Packet
}

// GameServer owns the connection registry and the game goroutine. All
// entity mutation happens on the game goroutine: connection read loops feed
// inbound frames through packetQueue, timers and posted callbacks run
// between packets. GameServer implements entity.Gateway; fan-out happens
// through the per-proxy send queues so one stalled peer degrades only its
// own deliveries.
type GameServer struct {
	cfg *config.ServerConfig

	World     *entity.World
	Sanctions *sanction.Set
	accounts  *platform.AccountClient

	proxiesMu sync.RWMutex
	proxies   map[*ClientProxy]struct{}

	packetQueue chan packetQueueItem

	listenAddr  string
	terminating xnsyncutil.AtomicBool
	terminated  *xnsyncutil.OneTimeCond
}

// NewGameServer wires the server from config: platform clients, sanction
// set and the world
func NewGameServer(cfg *config.ServerConfig) *GameServer {
	gs := &GameServer{
		cfg:         cfg,
		proxies:     map[*ClientProxy]struct{}{},
		packetQueue: make(chan packetQueueItem, consts.GAME_SERVICE_PACKET_QUEUE_SIZE),
		terminated:  xnsyncutil.NewOneTimeCond(),
		Sanctions:   sanction.NewSet(),
	}

	platformCfg := config.GetPlatform()
	assets := platform.NewAssetResolver(platformCfg)
	if platformCfg.BaseUrl != "" {
		gs.accounts = platform.NewAccountClient(platformCfg)
	}

	gs.World = entity.NewWorld(gs, assets)
	if cfg.TouchTickInterval > 0 {
		gs.World.SetTouchTickInterval(cfg.TouchTickInterval)
	}
	gs.World.SetLocalBrickTouch(cfg.LocalBrickTouch)
	return gs
}

func (gs *GameServer) String() string {
	return fmt.Sprintf("GameServer<%s>", gs.listenAddr)
}

// Run starts the listeners and enters the game loop; it blocks until the
// server terminates.
func (gs *GameServer) Run() {
	kvdb.Initialize()
	gs.Sanctions.Load(func(err error) {
		if err != nil {
			bhlog.Errorf("sanction state not restored: %v", err)
		}
	})
	gs.Sanctions.StartSweeping()

	timer.AddTimer(consts.KEEPALIVE_CHECK_INTERVAL, gs.checkKeepalive)

	gs.listenAddr = fmt.Sprintf("%s:%d", gs.cfg.Ip, gs.cfg.Port)
	go netutil.ServeTCPForever(gs.listenAddr, gs)
	if gs.cfg.KCPPort > 0 {
		go gs.serveKCP(fmt.Sprintf("%s:%d", gs.cfg.Ip, gs.cfg.KCPPort))
	}

	bhutils.RepeatUntilPanicless(gs.gameRoutine)
}

// gameRoutine is the game goroutine body: inbound packets and the shared
// timer loop, strictly interleaved, never concurrent
func (gs *GameServer) gameRoutine() {
	ticker := time.Tick(consts.GAME_SERVICE_TICK_INTERVAL)
	for {
		isTick := false
		select {
		case item := <-gs.packetQueue:
			op := opmon.StartOperation("game.handlePacket")
			gs.handlePacket(item.cp, item.pkt)
			op.Finish(time.Millisecond * 100)
			item.pkt.Release()
		case <-ticker:
			isTick = true
			op := opmon.StartOperation("game.tick")
			timer.Tick()
			op.Finish(time.Millisecond * 100)
		}

		post.Tick()

		if isTick && gs.terminating.Load() {
			gs.doTerminate()
			return
		}
	}
}

// ServeTCPConnection handles a fresh TCP connection; the sanction check
// runs before anything else: a banned address never reaches authenticating
func (gs *GameServer) ServeTCPConnection(conn net.Conn) {
	tcpConn := conn.(*net.TCPConn)
	tcpConn.SetWriteBuffer(consts.CLIENT_PROXY_WRITE_BUFFER_SIZE)
	tcpConn.SetReadBuffer(consts.CLIENT_PROXY_READ_BUFFER_SIZE)
	tcpConn.SetNoDelay(consts.CLIENT_PROXY_SET_TCP_NO_DELAY)

	gs.handleClientConnection(conn)
}

func (gs *GameServer) serveKCP(addr string) {
	kcpListener, err := kcp.ListenWithOptions(addr, nil, 10, 3)
	if err != nil {
		bhlog.Panic(err)
	}

	bhlog.Infof("Listening on KCP: %s ...", addr)
	for {
		conn, err := kcpListener.AcceptKCP()
		if err != nil {
			bhlog.Panic(err)
		}
		gs.handleKCPConn(conn)
	}
}

func (gs *GameServer) handleKCPConn(conn *kcp.UDPSession) {
	conn.SetReadBuffer(consts.CLIENT_PROXY_READ_BUFFER_SIZE)
	conn.SetWriteBuffer(consts.CLIENT_PROXY_WRITE_BUFFER_SIZE)
	conn.SetNoDelay(consts.KCP_NO_DELAY, consts.KCP_INTERNAL_UPDATE_TIMER_INTERVAL, consts.KCP_ENABLE_FAST_RESEND, consts.KCP_DISABLE_CONGESTION_CONTROL)
	conn.SetStreamMode(true)
	conn.SetWriteDelay(false)
	conn.SetACKNoDelay(true)

	gs.handleClientConnection(conn)
}

func (gs *GameServer) handleClientConnection(conn net.Conn) {
	if gs.terminating.Load() {
		conn.Close()
		return
	}

	addr, _, err := net.SplitHostPort(conn.RemoteAddr().String())
	if err != nil {
		addr = conn.RemoteAddr().String()
	}
	if gs.Sanctions.IsBanned(addr) {
		bhlog.Infof("refused banned address %s", addr)
		conn.Close()
		return
	}

	cp := newClientProxy(gs, conn, gs.cfg)
	gs.proxiesMu.Lock()
	gs.proxies[cp] = struct{}{}
	gs.proxiesMu.Unlock()

	if consts.DEBUG_CLIENTS {
		bhlog.Debugf("%s connected", cp)
	}
	go cp.sendRoutine()
	go cp.serve()
}

// onClientProxyClose runs on the game goroutine after a connection died
func (gs *GameServer) onClientProxyClose(cp *ClientProxy) {
	gs.proxiesMu.Lock()
	if _, ok := gs.proxies[cp]; !ok {
		gs.proxiesMu.Unlock()
		return
	}
	delete(gs.proxies, cp)
	gs.proxiesMu.Unlock()

	if cp.player != nil && !cp.player.Destroyed() {
		cp.player.Destroy()
		cp.player = nil
	}
	bhlog.Infof("%s closed", cp)
}

// Broadcast implements entity.Gateway: deliver to every authenticated
// connection; individual failures only mark that connection's delivery
func (gs *GameServer) Broadcast(pkt *netutil.Packet) *entity.Deferred {
	return gs.BroadcastExcept(nil, pkt)
}

// BroadcastExcept delivers to every authenticated connection but one
func (gs *GameServer) BroadcastExcept(except entity.Client, pkt *netutil.Packet) *entity.Deferred {
	pkt.PrepareSend()

	gs.proxiesMu.RLock()
	targets := make([]*ClientProxy, 0, len(gs.proxies))
	for cp := range gs.proxies {
		if !cp.authenticated() {
			continue
		}
		if entity.Client(cp) == except {
			continue
		}
		targets = append(targets, cp)
	}
	gs.proxiesMu.RUnlock()

	defs := make([]*entity.Deferred, 0, len(targets))
	for _, cp := range targets {
		defs = append(defs, cp.Push(pkt))
	}
	return entity.CombineDeferreds(defs)
}

// checkKeepalive kicks connections silent past the configured timeout
func (gs *GameServer) checkKeepalive() {
	timeout := gs.cfg.KeepaliveTimeout
	if timeout <= 0 {
		timeout = consts.DEFAULT_KEEPALIVE_TIMEOUT
	}

	now := time.Now()
	gs.proxiesMu.RLock()
	var silent []*ClientProxy
	for cp := range gs.proxies {
		if cp.silentFor(now) > timeout {
			silent = append(silent, cp)
		}
	}
	gs.proxiesMu.RUnlock()

	for _, cp := range silent {
		cp.Kick("connection timed out")
	}
}

// BanSocket bans the address and kicks every connection from it.
// d == 0 is a permanent ban.
func (gs *GameServer) BanSocket(addr string, d time.Duration) {
	if d > 0 {
		gs.Sanctions.TempBan(addr, d)
	} else {
		gs.Sanctions.Ban(addr)
	}

	gs.proxiesMu.RLock()
	var hit []*ClientProxy
	for cp := range gs.proxies {
		if cp.addr == addr {
			hit = append(hit, cp)
		}
	}
	gs.proxiesMu.RUnlock()

	for _, cp := range hit {
		cp.Kick("you are banned from this server")
	}
}

// BanPlayer resolves the avatar's connection address, bans it and kicks
func (gs *GameServer) BanPlayer(p *entity.Player, d time.Duration) {
	gs.BanSocket(p.Client().Address(), d)
}

// Terminate asks the game loop to shut down; WaitTerminated blocks on it
func (gs *GameServer) Terminate() {
	gs.terminating.Store(true)
}

// WaitTerminated blocks until the game loop exited
func (gs *GameServer) WaitTerminated() {
	gs.terminated.Wait()
}

func (gs *GameServer) doTerminate() {
	gs.proxiesMu.RLock()
	proxies := make([]*ClientProxy, 0, len(gs.proxies))
	for cp := range gs.proxies {
		proxies = append(proxies, cp)
	}
	gs.proxiesMu.RUnlock()

	for _, cp := range proxies {
		cp.Kick("server is shutting down")
	}

	async.Shutdown()
	kvdb.Close()
	kvdb.WaitTerminated()
	gs.terminated.Signal()
}

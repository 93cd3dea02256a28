package server

import (
	"sync/atomic"
	"time"

	"github.com/brickhost/brickd/engine/async"
	"github.com/brickhost/brickd/engine/bhlog"
	"github.com/brickhost/brickd/engine/consts"
	"github.com/brickhost/brickd/engine/netutil"
	"github.com/brickhost/brickd/engine/proto"
	"github.com/brickhost/brickd/entity"
	"github.com/brickhost/brickd/platform"
)

// handlePacket dispatches one inbound frame on the game goroutine. A frame
// whose payload does not decode panics in the packet readers and is treated
// like an unknown kind: discarded, logged, counted against the connection.
func (gs *GameServer) handlePacket(cp *ClientProxy, pkt *netutil.Packet) {
	defer func() {
		if err := recover(); err != nil {
			bhlog.Warnf("%s sent undecodable frame: %v", cp, err)
			gs.countUnknownPacket(cp)
		}
	}()

	kind := proto.ReadKind(pkt)

	if !cp.authenticated() {
		if kind != proto.PK_AUTHENTICATION {
			bhlog.Warnf("%s sent %v before authenticating", cp, kind)
			cp.close()
			return
		}
		gs.handleAuth(cp, pkt)
		return
	}

	p := cp.player
	switch kind {
	case proto.PK_CHAT:
		gs.handleChat(p, pkt)
	case proto.PK_KEY_PRESS:
		key := pkt.ReadVarStr()
		down := pkt.ReadBool()
		p.Emit("keyPress", key, down)
	case proto.PK_BRICK_SINGLE:
		gs.handleClick(p, pkt)
	case proto.PK_TOOL:
		gs.handleToolRequest(p, pkt)
	case proto.PK_PLAYER_MODIFICATION:
		gs.handleMovement(p, pkt)
	default:
		bhlog.Warnf("%s sent unexpected packet kind %v", cp, kind)
		gs.countUnknownPacket(cp)
	}
}

// countUnknownPacket drops connections that keep sending garbage
func (gs *GameServer) countUnknownPacket(cp *ClientProxy) {
	cp.unknownPackets++
	if cp.unknownPackets > consts.MAX_UNKNOWN_PACKETS_PER_CLIENT {
		bhlog.Warnf("%s exceeded unknown packet threshold, dropping", cp)
		cp.close()
	}
}

// handleAuth starts the authentication handshake. Token verification is an
// HTTP round-trip, so it runs off the game goroutine and posts the verdict
// back; without a configured platform the server runs open (offline mode).
func (gs *GameServer) handleAuth(cp *ClientProxy, pkt *netutil.Packet) {
	if !atomic.CompareAndSwapInt32(&cp.state, clientStateConnected, clientStateAuthenticating) {
		bhlog.Warnf("%s sent duplicate authentication", cp)
		return
	}

	userId := pkt.ReadUint32()
	username := pkt.ReadVarStr()
	token := pkt.ReadVarStr()
	variant := pkt.ReadOneByte()

	if gs.accounts == nil {
		gs.finishAuth(cp, userId, username, 0, variant)
		return
	}

	async.AppendAsyncJob("platform", func() (interface{}, error) {
		return gs.accounts.VerifyToken(token, userId)
	}, func(res interface{}, err error) {
		if err != nil {
			gs.denyAuth(cp, userId, "authentication rejected")
			bhlog.Infof("%s auth failed for user %d: %v", cp, userId, err)
			return
		}
		profile := res.(*platform.Profile)
		gs.finishAuth(cp, profile.UserId, profile.Username, profile.Membership, variant)
	})
}

func (gs *GameServer) denyAuth(cp *ClientProxy, userId uint32, reason string) {
	reply := proto.MakeAuthReplyPacket(proto.AUTH_DENIED, 0, userId, reason)
	cp.Push(reply)
	reply.Release()
	time.AfterFunc(time.Millisecond*50, cp.close)
}

// finishAuth runs on the game goroutine once the token verdict is in:
// create the avatar, confirm the handshake, then stream world state. State
// packets reach the connection only from this point on.
func (gs *GameServer) finishAuth(cp *ClientProxy, userId uint32, username string, membership byte, variant byte) {
	if atomic.LoadInt32(&cp.state) == clientStateClosed || gs.terminating.Load() {
		return
	}

	// one avatar per account: a second login supersedes the first
	if prev := gs.World.GetPlayerByUserId(userId); prev != nil {
		prev.Kick("logged in from another location")
		prev.Destroy()
	}

	p := gs.World.CreatePlayer(cp, userId, username, membership)
	p.SetClientVariant(variant)
	cp.player = p

	// place before the state flips: the broadcast reaches earlier joiners
	// only, the new connection gets its position with the world sync
	spawn := gs.World.NextSpawnPoint()
	p.SetSpawnPosition(spawn)
	p.SetPosition(spawn)

	atomic.StoreInt32(&cp.state, clientStateAuthenticated)
	p.SetAuthenticated()

	reply := proto.MakeAuthReplyPacket(proto.AUTH_OK, p.NetId(), userId, "")
	cp.Push(reply)
	reply.Release()

	gs.World.SyncTo(cp)
	gs.World.AnnouncePlayer(p)
	bhlog.Infof("%s authenticated as %s (user %d)", cp, username, userId)
}

func (gs *GameServer) handleChat(p *entity.Player, pkt *netutil.Packet) {
	msg := pkt.ReadVarStr()
	if msg == "" {
		return
	}
	if !p.AllowChat(time.Now()) {
		p.Message("You are chatting too fast.")
		return
	}
	gs.World.RelayChat(p, msg)
}

// handleClick is the secure click gate: the brick re-validates clickable
// state and live distance itself, independent of any cached touching set
func (gs *GameServer) handleClick(p *entity.Player, pkt *netutil.Packet) {
	netId := pkt.ReadUint32()
	b := gs.World.GetBrick(netId)
	if b == nil {
		bhlog.Debugf("%s clicked unknown brick %d", p.Client(), netId)
		return
	}
	if err := b.Click(p); err != nil {
		bhlog.Debugf("%s click on brick %d rejected: %v", p.Client(), netId, err)
	}
}

func (gs *GameServer) handleToolRequest(p *entity.Player, pkt *netutil.Packet) {
	netId := pkt.ReadUint32()
	op := pkt.ReadOneByte()

	t := gs.World.GetTool(netId)
	if t == nil || t.Owner() != p {
		bhlog.Debugf("%s tool request %d for tool %d not in inventory", p.Client(), op, netId)
		return
	}

	switch op {
	case proto.TOOL_REQ_EQUIP:
		p.Equip(t)
	case proto.TOOL_REQ_UNEQUIP:
		if p.Equipped() == t {
			p.Unequip()
		}
	case proto.TOOL_REQ_ACTIVATE:
		if err := t.Activate(p); err != nil {
			bhlog.Debugf("%s tool %d activation rejected: %v", p.Client(), netId, err)
		}
	default:
		bhlog.Debugf("%s sent unknown tool op %d", p.Client(), op)
	}
}

// handleMovement applies self-reported avatar movement. The client is
// authoritative over its own movement; everything else stays server-side.
func (gs *GameServer) handleMovement(p *entity.Player, pkt *netutil.Packet) {
	if !p.Alive() {
		return
	}
	pos := entity.Vector3{X: entity.Coord(pkt.ReadFloat32()), Y: entity.Coord(pkt.ReadFloat32()), Z: entity.Coord(pkt.ReadFloat32())}
	rot := entity.Vector3{X: entity.Coord(pkt.ReadFloat32()), Y: entity.Coord(pkt.ReadFloat32()), Z: entity.Coord(pkt.ReadFloat32())}
	p.ReportMovement(pos, rot)
}

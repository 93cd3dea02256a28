package entity

import (
	"sync"
	"time"

	"github.com/brickhost/brickd/engine/async"
	"github.com/brickhost/brickd/engine/consts"
	"github.com/brickhost/brickd/engine/netutil"
	"github.com/brickhost/brickd/engine/proto"
)

// Environment holds the global scene settings replicated to every client
type Environment struct {
	Sky          string
	Ambient      string
	SunIntensity uint32
	Weather      string
	BaseSize     uint32
}

// World is the non-owning index of all live entities by kind plus the global
// environment. It does not own entity lifetime exclusively: entities are also
// reachable from player inventories and team views, but Destroy on an entity
// is the single authority that removes it from every index.
//
// The gateway and asset resolver are threaded in at startup; entity mutators
// reach the network only through them.
type World struct {
	gw     Gateway
	assets AssetResolver

	mu       sync.RWMutex
	bricks   map[uint32]*Brick
	players  map[uint32]*Player
	bots     map[uint32]*Bot
	tools    map[uint32]*Tool
	emitters map[uint32]*SoundEmitter
	teams    map[uint32]*Team

	environment Environment

	spawnPoints []Vector3
	spawnCursor int

	touchTickInterval time.Duration
	localBrickTouch   bool
}

// NewWorld creates an empty world wired to the gateway and asset resolver
func NewWorld(gw Gateway, assets AssetResolver) *World {
	return &World{
		gw:       gw,
		assets:   assets,
		bricks:   map[uint32]*Brick{},
		players:  map[uint32]*Player{},
		bots:     map[uint32]*Bot{},
		tools:    map[uint32]*Tool{},
		emitters: map[uint32]*SoundEmitter{},
		teams:    map[uint32]*Team{},

		touchTickInterval: consts.DEFAULT_TOUCH_TICK_INTERVAL,
	}
}

// SetTouchTickInterval overrides the touch monitor polling period. It bounds
// worst-case detection latency; applies to monitors started afterwards.
func (w *World) SetTouchTickInterval(d time.Duration) {
	if d > 0 {
		w.touchTickInterval = d
	}
}

// SetLocalBrickTouch controls whether connection-scoped bricks run touch
// monitors. Off by default: local bricks exist in one client's view only.
func (w *World) SetLocalBrickTouch(enabled bool) {
	w.localBrickTouch = enabled
}

// Environment returns a copy of the current environment settings
func (w *World) Environment() Environment {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.environment
}

// SetEnvironment replaces the environment and replicates the changed keys
func (w *World) SetEnvironment(env Environment) *Deferred {
	w.mu.Lock()
	w.environment = env
	w.mu.Unlock()

	var defs []*Deferred
	send := func(attr, value string) {
		pkt := proto.MakeModificationPacket(0, attr, value)
		defs = append(defs, w.gw.Broadcast(pkt))
		pkt.Release()
	}
	send("env.sky", env.Sky)
	send("env.ambient", env.Ambient)
	send("env.sunIntensity", formatUint(env.SunIntensity))
	send("env.weather", env.Weather)
	send("env.baseSize", formatUint(env.BaseSize))
	return CombineDeferreds(defs)
}

// AddSpawnPoint registers a map spawn location
func (w *World) AddSpawnPoint(pos Vector3) {
	w.mu.Lock()
	w.spawnPoints = append(w.spawnPoints, pos)
	w.mu.Unlock()
}

// NextSpawnPoint cycles through the registered spawn locations; the zero
// vector when the map defines none
func (w *World) NextSpawnPoint() Vector3 {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.spawnPoints) == 0 {
		return Vector3{}
	}
	pos := w.spawnPoints[w.spawnCursor%len(w.spawnPoints)]
	w.spawnCursor++
	return pos
}

// Players returns a snapshot of connected players
func (w *World) Players() []*Player {
	w.mu.RLock()
	ps := make([]*Player, 0, len(w.players))
	for _, p := range w.players {
		ps = append(ps, p)
	}
	w.mu.RUnlock()
	return ps
}

// Bricks returns a snapshot of the shared (non-local) bricks
func (w *World) Bricks() []*Brick {
	w.mu.RLock()
	bs := make([]*Brick, 0, len(w.bricks))
	for _, b := range w.bricks {
		bs = append(bs, b)
	}
	w.mu.RUnlock()
	return bs
}

// Bots returns a snapshot of live bots
func (w *World) Bots() []*Bot {
	w.mu.RLock()
	bs := make([]*Bot, 0, len(w.bots))
	for _, b := range w.bots {
		bs = append(bs, b)
	}
	w.mu.RUnlock()
	return bs
}

// Teams returns a snapshot of teams
func (w *World) Teams() []*Team {
	w.mu.RLock()
	ts := make([]*Team, 0, len(w.teams))
	for _, t := range w.teams {
		ts = append(ts, t)
	}
	w.mu.RUnlock()
	return ts
}

// Emitters returns a snapshot of sound emitters
func (w *World) Emitters() []*SoundEmitter {
	w.mu.RLock()
	es := make([]*SoundEmitter, 0, len(w.emitters))
	for _, e := range w.emitters {
		es = append(es, e)
	}
	w.mu.RUnlock()
	return es
}

// GetPlayer finds a connected player by netId
func (w *World) GetPlayer(netId uint32) *Player {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.players[netId]
}

// GetPlayerByUserId finds a connected player by platform user id
func (w *World) GetPlayerByUserId(userId uint32) *Player {
	w.mu.RLock()
	defer w.mu.RUnlock()
	for _, p := range w.players {
		if p.userId == userId {
			return p
		}
	}
	return nil
}

// GetBrick finds a shared brick by netId
func (w *World) GetBrick(netId uint32) *Brick {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.bricks[netId]
}

// GetBot finds a bot by netId
func (w *World) GetBot(netId uint32) *Bot {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.bots[netId]
}

// GetTool finds a tool by netId
func (w *World) GetTool(netId uint32) *Tool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.tools[netId]
}

// PlayersInTeam derives the current membership of a team by scanning
// connected players. The view is recomputed on each call, never cached.
func (w *World) PlayersInTeam(t *Team) []*Player {
	w.mu.RLock()
	var ps []*Player
	for _, p := range w.players {
		if p.team == t {
			ps = append(ps, p)
		}
	}
	w.mu.RUnlock()
	return ps
}

// RelayChat fans a chat message out to every connected player that has not
// blocked the sender, the sender included.
func (w *World) RelayChat(from *Player, message string) *Deferred {
	if from.destroyed {
		return destroyedDeferred()
	}
	pkt := proto.MakeChatPacket(from.netId, message)
	defer pkt.Release()

	var defs []*Deferred
	for _, p := range w.Players() {
		if p.HasBlocked(from.userId) {
			continue
		}
		defs = append(defs, p.client.Push(pkt))
	}
	return CombineDeferreds(defs)
}

// ClearMap destroys every shared brick and replicates the wipe as a single
// frame instead of per-brick deletes.
func (w *World) ClearMap() *Deferred {
	w.mu.Lock()
	bricks := w.bricks
	w.bricks = map[uint32]*Brick{}
	w.mu.Unlock()

	for _, b := range bricks {
		b.destroySilently()
	}

	pkt := proto.MakeClearMapPacket()
	defer pkt.Release()
	return w.gw.Broadcast(pkt)
}

// SyncTo replicates the full world state to one freshly authenticated
// connection: player roster, figures, teams, bricks, bots and emitters.
func (w *World) SyncTo(c Client) *Deferred {
	var defs []*Deferred
	push := func(pkt *netutil.Packet) {
		defs = append(defs, c.Push(pkt))
		pkt.Release()
	}

	players := w.Players()
	roster := proto.AllocPacket(proto.PK_SEND_PLAYERS)
	roster.AppendUint16(uint16(len(players)))
	for _, p := range players {
		roster.AppendUint32(p.netId)
		roster.AppendUint32(p.userId)
		roster.AppendVarStr(p.username)
		roster.AppendByte(p.membership)
	}
	push(roster)

	for _, p := range players {
		push(p.makeFigurePacket(figureFieldAll))
		push(proto.MakeModificationPacket(p.netId, "position", formatVector(p.position)))
		push(proto.MakeModificationPacket(p.netId, "rotation", formatVector(p.rotation)))
	}

	env := w.Environment()
	push(proto.MakeModificationPacket(0, "env.sky", env.Sky))
	push(proto.MakeModificationPacket(0, "env.ambient", env.Ambient))
	push(proto.MakeModificationPacket(0, "env.sunIntensity", formatUint(env.SunIntensity)))
	push(proto.MakeModificationPacket(0, "env.weather", env.Weather))
	push(proto.MakeModificationPacket(0, "env.baseSize", formatUint(env.BaseSize)))

	teams := w.Teams()
	if len(teams) > 0 {
		pkt := proto.AllocPacket(proto.PK_TEAM)
		pkt.AppendUint32(uint32(len(teams)))
		for _, t := range teams {
			t.appendFields(pkt)
		}
		push(pkt)
	}

	bricks := w.Bricks()
	if len(bricks) > 0 {
		pkt := proto.AllocPacket(proto.PK_BRICK)
		pkt.AppendUint32(uint32(len(bricks)))
		for _, b := range bricks {
			b.appendFullFields(pkt)
		}
		push(pkt)
	}

	for _, b := range w.Bots() {
		push(b.makeBotPacket())
	}

	emitters := w.Emitters()
	if len(emitters) > 0 {
		pkt := proto.AllocPacket(proto.PK_EMITTER_LIST)
		pkt.AppendUint32(uint32(len(emitters)))
		for _, e := range emitters {
			e.appendFields(pkt)
		}
		push(pkt)
	}

	return CombineDeferreds(defs)
}

// AnnouncePlayer replicates a freshly spawned player to everyone else
func (w *World) AnnouncePlayer(p *Player) *Deferred {
	roster := proto.AllocPacket(proto.PK_SEND_PLAYERS)
	roster.AppendUint16(1)
	roster.AppendUint32(p.netId)
	roster.AppendUint32(p.userId)
	roster.AppendVarStr(p.username)
	roster.AppendByte(p.membership)
	defer roster.Release()
	return w.gw.BroadcastExcept(p.client, roster)
}

func (w *World) addPlayer(p *Player) {
	w.mu.Lock()
	w.players[p.netId] = p
	w.mu.Unlock()
}

func (w *World) removePlayer(netId uint32) {
	w.mu.Lock()
	delete(w.players, netId)
	w.mu.Unlock()
}

func (w *World) addBrick(b *Brick) {
	w.mu.Lock()
	w.bricks[b.netId] = b
	w.mu.Unlock()
}

func (w *World) removeBrick(netId uint32) {
	w.mu.Lock()
	delete(w.bricks, netId)
	w.mu.Unlock()
}

func (w *World) addBot(b *Bot) {
	w.mu.Lock()
	w.bots[b.netId] = b
	w.mu.Unlock()
}

func (w *World) removeBot(netId uint32) {
	w.mu.Lock()
	delete(w.bots, netId)
	w.mu.Unlock()
}

func (w *World) addTool(t *Tool) {
	w.mu.Lock()
	w.tools[t.netId] = t
	w.mu.Unlock()
}

func (w *World) removeTool(netId uint32) {
	w.mu.Lock()
	delete(w.tools, netId)
	w.mu.Unlock()
}

func (w *World) addEmitter(e *SoundEmitter) {
	w.mu.Lock()
	w.emitters[e.netId] = e
	w.mu.Unlock()
}

func (w *World) removeEmitter(netId uint32) {
	w.mu.Lock()
	delete(w.emitters, netId)
	w.mu.Unlock()
}

func (w *World) addTeam(t *Team) {
	w.mu.Lock()
	w.teams[t.netId] = t
	w.mu.Unlock()
}

func (w *World) removeTeam(netId uint32) {
	w.mu.Lock()
	delete(w.teams, netId)
	w.mu.Unlock()
}

// resolveAsset looks up the content reference off the calling goroutine: a
// cache miss is an HTTP round-trip, so the lookup runs on the "assets" async
// group and then comes back through post. Mutators commit and fan out from
// the callback, which runs on the game goroutine.
func (w *World) resolveAsset(assetId uint32, then func(ref string, err error)) {
	if assetId == 0 {
		then("", nil)
		return
	}
	async.AppendAsyncJob("assets", func() (interface{}, error) {
		return w.assets.ResolveAsset(assetId)
	}, func(res interface{}, err error) {
		if err != nil {
			then("", err)
			return
		}
		then(res.(string), nil)
	})
}

// resolveAssets resolves a batch on one job; refs[i] belongs to assetIds[i]
// and id 0 resolves to the empty reference. All ids zero short-circuits
// without a job, so patches that carry no assets stay synchronous.
func (w *World) resolveAssets(assetIds []uint32, then func(refs []string, err error)) {
	refs := make([]string, len(assetIds))
	any := false
	for _, id := range assetIds {
		if id != 0 {
			any = true
		}
	}
	if !any {
		then(refs, nil)
		return
	}
	async.AppendAsyncJob("assets", func() (interface{}, error) {
		for i, id := range assetIds {
			if id == 0 {
				continue
			}
			ref, err := w.assets.ResolveAsset(id)
			if err != nil {
				return nil, err
			}
			refs[i] = ref
		}
		return refs, nil
	}, func(res interface{}, err error) {
		if err != nil {
			then(nil, err)
			return
		}
		then(res.([]string), nil)
	})
}

package entity

import (
	"fmt"
	"sync"
	"time"

	"github.com/brickhost/brickd/engine/netutil"
	"github.com/brickhost/brickd/engine/post"
	"github.com/brickhost/brickd/engine/proto"
)

// deliver posted callbacks continuously, standing in for the game loop
func init() {
	go func() {
		for {
			post.Tick()
			time.Sleep(time.Millisecond)
		}
	}()
}

// fakeClient records every frame pushed to it, by payload copy
type fakeClient struct {
	addr string

	mu     sync.Mutex
	frames [][]byte
	kicked string
	broken bool
}

func newFakeClient(addr string) *fakeClient {
	return &fakeClient{addr: addr}
}

func (c *fakeClient) Address() string {
	return c.addr
}

func (c *fakeClient) Push(pkt *netutil.Packet) *Deferred {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.broken {
		return ResolvedDeferred(fmt.Errorf("connection to %s is broken", c.addr))
	}
	b := make([]byte, len(pkt.Payload()))
	copy(b, pkt.Payload())
	c.frames = append(c.frames, b)
	return ResolvedDeferred(nil)
}

func (c *fakeClient) Kick(reason string) {
	c.mu.Lock()
	c.kicked = reason
	c.mu.Unlock()
}

func (c *fakeClient) frameCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.frames)
}

// kinds lists the packet kinds received, in order
func (c *fakeClient) kinds() []proto.PacketKind {
	c.mu.Lock()
	defer c.mu.Unlock()
	ks := make([]proto.PacketKind, 0, len(c.frames))
	for _, f := range c.frames {
		ks = append(ks, proto.PacketKind(f[0]))
	}
	return ks
}

func (c *fakeClient) countKind(k proto.PacketKind) int {
	n := 0
	for _, x := range c.kinds() {
		if x == k {
			n += 1
		}
	}
	return n
}

// fakeGateway fans out to its registered fake clients
type fakeGateway struct {
	mu      sync.Mutex
	clients []*fakeClient
}

func (g *fakeGateway) add(c *fakeClient) {
	g.mu.Lock()
	g.clients = append(g.clients, c)
	g.mu.Unlock()
}

func (g *fakeGateway) Broadcast(pkt *netutil.Packet) *Deferred {
	return g.BroadcastExcept(nil, pkt)
}

func (g *fakeGateway) BroadcastExcept(except Client, pkt *netutil.Packet) *Deferred {
	g.mu.Lock()
	clients := append([]*fakeClient(nil), g.clients...)
	g.mu.Unlock()

	var defs []*Deferred
	for _, c := range clients {
		if Client(c) == except {
			continue
		}
		defs = append(defs, c.Push(pkt))
	}
	return CombineDeferreds(defs)
}

// fakeResolver resolves any asset id to a deterministic reference
type fakeResolver struct {
	fail bool
}

func (r fakeResolver) ResolveAsset(assetId uint32) (string, error) {
	if r.fail {
		return "", fmt.Errorf("asset %d not resolvable", assetId)
	}
	return fmt.Sprintf("asset://%d", assetId), nil
}

func newTestWorld(nclients int) (*World, *fakeGateway, []*fakeClient) {
	gw := &fakeGateway{}
	clients := make([]*fakeClient, nclients)
	for i := range clients {
		clients[i] = newFakeClient(fmt.Sprintf("10.0.0.%d", i+1))
		gw.add(clients[i])
	}
	w := NewWorld(gw, fakeResolver{})
	return w, gw, clients
}

package entity

import (
	"github.com/pkg/errors"

	"github.com/brickhost/brickd/engine/netutil"
	"github.com/brickhost/brickd/engine/proto"
)

// SoundEmitter is a positioned (or global) audio source
type SoundEmitter struct {
	entityHeader
	world *World

	sound    uint32
	soundRef string

	volume     float32
	pitch      float32
	soundRange float32
	loop       bool
	global     bool
	position   Vector3
}

// NewSoundEmitter creates an emitter for the sound asset. The reference
// resolves off the game goroutine; the emitter is indexed and announced once
// it lands. A failed resolution destroys the emitter before it was ever
// indexed or sent; the Deferred carries the outcome.
func (w *World) NewSoundEmitter(soundAssetId uint32) (*SoundEmitter, *Deferred) {
	e := &SoundEmitter{
		world:      w,
		sound:      soundAssetId,
		volume:     1,
		pitch:      1,
		soundRange: 30,
	}
	e.initHeader(KindEmitter)

	d := NewDeferred()
	w.resolveAsset(soundAssetId, func(ref string, err error) {
		if err != nil {
			e.markDestroyed()
			d.Resolve(errors.Wrapf(err, "resolve sound asset %d", soundAssetId))
			return
		}
		e.soundRef = ref
		w.addEmitter(e)
		d.ResolveFrom(e.sendFull())
	})
	return e, d
}

func (e *SoundEmitter) Position() Vector3 { return e.position }
func (e *SoundEmitter) Volume() float32   { return e.volume }
func (e *SoundEmitter) Global() bool      { return e.global }

// SetVolume sets playback volume
func (e *SoundEmitter) SetVolume(v float32) *Deferred {
	if e.destroyed {
		return destroyedDeferred()
	}
	e.volume = v
	return e.sendFull()
}

// SetPitch sets playback pitch
func (e *SoundEmitter) SetPitch(p float32) *Deferred {
	if e.destroyed {
		return destroyedDeferred()
	}
	e.pitch = p
	return e.sendFull()
}

// SetRange sets the audible range
func (e *SoundEmitter) SetRange(r float32) *Deferred {
	if e.destroyed {
		return destroyedDeferred()
	}
	e.soundRange = r
	return e.sendFull()
}

// SetLoop toggles looping playback
func (e *SoundEmitter) SetLoop(loop bool) *Deferred {
	if e.destroyed {
		return destroyedDeferred()
	}
	e.loop = loop
	return e.sendFull()
}

// SetGlobal toggles position-independent playback
func (e *SoundEmitter) SetGlobal(global bool) *Deferred {
	if e.destroyed {
		return destroyedDeferred()
	}
	e.global = global
	return e.sendFull()
}

// SetPosition moves the emitter
func (e *SoundEmitter) SetPosition(pos Vector3) *Deferred {
	if e.destroyed {
		return destroyedDeferred()
	}
	e.position = pos
	return e.sendFull()
}

// SetSound swaps the sound asset. Resolution runs off the game goroutine;
// failure fails the mutation and nothing is committed or sent.
func (e *SoundEmitter) SetSound(soundAssetId uint32) *Deferred {
	if e.destroyed {
		return destroyedDeferred()
	}
	d := NewDeferred()
	e.world.resolveAsset(soundAssetId, func(ref string, err error) {
		if err != nil {
			d.Resolve(errors.Wrapf(err, "resolve sound asset %d", soundAssetId))
			return
		}
		if e.destroyed {
			d.Resolve(ErrDestroyed)
			return
		}
		e.sound = soundAssetId
		e.soundRef = ref
		d.ResolveFrom(e.sendFull())
	})
	return d
}

// Destroy de-indexes the emitter and replicates an empty-reference frame,
// which clients treat as removal
func (e *SoundEmitter) Destroy() *Deferred {
	if e.destroyed {
		return destroyedDeferred()
	}
	e.world.removeEmitter(e.netId)
	e.soundRef = ""
	e.volume = 0
	pkt := proto.AllocPacket(proto.PK_EMITTER)
	e.appendFields(pkt)
	e.markDestroyed()
	defer pkt.Release()
	return e.world.gw.Broadcast(pkt)
}

func (e *SoundEmitter) sendFull() *Deferred {
	pkt := proto.AllocPacket(proto.PK_EMITTER)
	e.appendFields(pkt)
	defer pkt.Release()
	return e.world.gw.Broadcast(pkt)
}

func (e *SoundEmitter) appendFields(pkt *netutil.Packet) {
	pkt.AppendUint32(e.netId)
	pkt.AppendVarStr(e.soundRef)
	pkt.AppendFloat32(e.volume)
	pkt.AppendFloat32(e.pitch)
	pkt.AppendFloat32(e.soundRange)
	pkt.AppendBool(e.loop)
	pkt.AppendBool(e.global)
	appendVector(pkt, e.position)
}

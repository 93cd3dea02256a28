package entity

import (
	"github.com/pkg/errors"
)

// Outfit is a plain builder for avatar appearance changes. It is not itself
// networked: it accumulates a partial patch and Apply replicates the whole
// patch atomically as a single figure frame.
type Outfit struct {
	p    *Player
	mask uint16

	colors BodyColors
	assets WornAssets
}

// NewOutfit starts an empty appearance patch for the player
func (p *Player) NewOutfit() *Outfit {
	return &Outfit{p: p}
}

// HeadColor patches the head color
func (o *Outfit) HeadColor(hex string) *Outfit {
	o.colors.Head = hex
	o.mask |= figureHeadColor
	return o
}

// TorsoColor patches the torso color
func (o *Outfit) TorsoColor(hex string) *Outfit {
	o.colors.Torso = hex
	o.mask |= figureTorsoColor
	return o
}

// LeftArmColor patches the left arm color
func (o *Outfit) LeftArmColor(hex string) *Outfit {
	o.colors.LeftArm = hex
	o.mask |= figureLeftArmColor
	return o
}

// RightArmColor patches the right arm color
func (o *Outfit) RightArmColor(hex string) *Outfit {
	o.colors.RightArm = hex
	o.mask |= figureRightArmColor
	return o
}

// LeftLegColor patches the left leg color
func (o *Outfit) LeftLegColor(hex string) *Outfit {
	o.colors.LeftLeg = hex
	o.mask |= figureLeftLegColor
	return o
}

// RightLegColor patches the right leg color
func (o *Outfit) RightLegColor(hex string) *Outfit {
	o.colors.RightLeg = hex
	o.mask |= figureRightLegColor
	return o
}

// BodyColor patches all six limb colors at once
func (o *Outfit) BodyColor(hex string) *Outfit {
	return o.HeadColor(hex).TorsoColor(hex).
		LeftArmColor(hex).RightArmColor(hex).
		LeftLegColor(hex).RightLegColor(hex)
}

// Hat1 patches the first hat asset
func (o *Outfit) Hat1(assetId uint32) *Outfit {
	o.assets.Hat1 = assetId
	o.mask |= figureHat1
	return o
}

// Hat2 patches the second hat asset
func (o *Outfit) Hat2(assetId uint32) *Outfit {
	o.assets.Hat2 = assetId
	o.mask |= figureHat2
	return o
}

// Hat3 patches the third hat asset
func (o *Outfit) Hat3(assetId uint32) *Outfit {
	o.assets.Hat3 = assetId
	o.mask |= figureHat3
	return o
}

// Face patches the face asset
func (o *Outfit) Face(assetId uint32) *Outfit {
	o.assets.Face = assetId
	o.mask |= figureFace
	return o
}

// Shirt patches the shirt asset
func (o *Outfit) Shirt(assetId uint32) *Outfit {
	o.assets.Shirt = assetId
	o.mask |= figureShirt
	return o
}

// Pants patches the pants asset
func (o *Outfit) Pants(assetId uint32) *Outfit {
	o.assets.Pants = assetId
	o.mask |= figurePants
	return o
}

// Tshirt patches the t-shirt asset
func (o *Outfit) Tshirt(assetId uint32) *Outfit {
	o.assets.Tshirt = assetId
	o.mask |= figureTshirt
	return o
}

// Apply resolves the patched assets as one batch off the game goroutine,
// commits the patch to the player and replicates exactly one figure frame.
// A failed asset resolution fails the whole application: nothing is
// committed or sent. A patch that carries no assets commits synchronously.
func (o *Outfit) Apply() *Deferred {
	p := o.p
	if p.destroyed {
		return destroyedDeferred()
	}
	if o.mask == 0 {
		return ResolvedDeferred(nil)
	}

	slots := []struct {
		bit     uint16
		assetId uint32
	}{
		{figureHat1, o.assets.Hat1},
		{figureHat2, o.assets.Hat2},
		{figureHat3, o.assets.Hat3},
		{figureFace, o.assets.Face},
		{figureShirt, o.assets.Shirt},
		{figurePants, o.assets.Pants},
		{figureTshirt, o.assets.Tshirt},
	}
	// unmasked slots resolve as id 0 and are skipped at commit
	ids := make([]uint32, len(slots))
	for i, s := range slots {
		if o.mask&s.bit != 0 {
			ids[i] = s.assetId
		}
	}

	d := NewDeferred()
	p.world.resolveAssets(ids, func(resolved []string, err error) {
		if err != nil {
			d.Resolve(errors.Wrap(err, "apply outfit"))
			return
		}
		if p.destroyed {
			d.Resolve(ErrDestroyed)
			return
		}
		refs := p.refs
		dsts := []*string{
			&refs.hat1, &refs.hat2, &refs.hat3, &refs.face,
			&refs.shirt, &refs.pants, &refs.tshirt,
		}
		for i, s := range slots {
			if o.mask&s.bit != 0 {
				*dsts[i] = resolved[i]
			}
		}
		d.ResolveFrom(o.commit(refs))
	})
	return d
}

// commit applies the staged patch and replicates the figure frame
func (o *Outfit) commit(refs wornRefs) *Deferred {
	p := o.p
	if o.mask&figureHeadColor != 0 {
		p.colors.Head = o.colors.Head
	}
	if o.mask&figureTorsoColor != 0 {
		p.colors.Torso = o.colors.Torso
	}
	if o.mask&figureLeftArmColor != 0 {
		p.colors.LeftArm = o.colors.LeftArm
	}
	if o.mask&figureRightArmColor != 0 {
		p.colors.RightArm = o.colors.RightArm
	}
	if o.mask&figureLeftLegColor != 0 {
		p.colors.LeftLeg = o.colors.LeftLeg
	}
	if o.mask&figureRightLegColor != 0 {
		p.colors.RightLeg = o.colors.RightLeg
	}
	if o.mask&figureHat1 != 0 {
		p.assets.Hat1 = o.assets.Hat1
	}
	if o.mask&figureHat2 != 0 {
		p.assets.Hat2 = o.assets.Hat2
	}
	if o.mask&figureHat3 != 0 {
		p.assets.Hat3 = o.assets.Hat3
	}
	if o.mask&figureFace != 0 {
		p.assets.Face = o.assets.Face
	}
	if o.mask&figureShirt != 0 {
		p.assets.Shirt = o.assets.Shirt
	}
	if o.mask&figurePants != 0 {
		p.assets.Pants = o.assets.Pants
	}
	if o.mask&figureTshirt != 0 {
		p.assets.Tshirt = o.assets.Tshirt
	}
	p.refs = refs

	pkt := p.makeFigurePacket(o.mask)
	defer pkt.Release()
	return p.world.gw.Broadcast(pkt)
}

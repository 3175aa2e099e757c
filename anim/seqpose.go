package anim

import (
	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"

	"github.com/mogaika/studiomdl/studio"
	"github.com/mogaika/studiomdl/utils"
)

type pose struct {
	pos []mgl32.Vec3
	q   []mgl32.Quat
}

func seqWeight(seq *studio.Sequence, k int) float32 {
	if seq.Weight == nil {
		return 1
	}
	return seq.Weight[k]
}

// singlePose reads frame of the first blend of seq, wrapping around its length
func singlePose(s *studio.Session, seq *studio.Sequence, frame float32) (pose, error) {
	if len(seq.Anims) == 0 || len(seq.Anims[0].Sample) == 0 {
		return pose{}, errors.Errorf("Sequence %q has no frames", seq.Name)
	}
	a := seq.Anims[0]
	f := int(frame)
	if f < 0 {
		f = 0
	}
	frames := a.Sample[f%len(a.Sample)]

	p := pose{pos: make([]mgl32.Vec3, len(s.Bones)), q: make([]mgl32.Quat, len(s.Bones))}
	for k := range s.Bones {
		p.pos[k] = frames[k].Pos
		p.q[k] = frames[k].Quat()
	}
	return p, nil
}

// blendPose mixes src into dst by w and the bone weights of seq. Deltas are
// added on top of dst instead.
func blendPose(s *studio.Session, seq *studio.Sequence, dst, src pose, w float32) {
	if w <= 0 {
		return
	}
	if w > 1 {
		w = 1
	}
	flags := seq.Flags | seq.Anims[0].Flags

	for k, b := range s.Bones {
		w2 := w * seqWeight(seq, k)
		if w2 <= 0 {
			continue
		}
		if flags&studio.STUDIO_DELTA != 0 {
			if flags&studio.STUDIO_POST != 0 {
				dst.q[k] = utils.QuatMA(dst.q[k], w2, src.q[k])
			} else {
				dst.q[k] = utils.QuatSM(w2, src.q[k], dst.q[k])
			}
			dst.pos[k] = dst.pos[k].Add(src.pos[k].Mul(w2))
			continue
		}

		w1 := 1 - w2
		if b.Flags&studio.BONE_FIXED_ALIGNMENT != 0 {
			dst.q[k] = mgl32.QuatSlerp(src.q[k], dst.q[k], w1).Normalize()
		} else {
			dst.q[k] = utils.QuatSlerpShort(src.q[k], dst.q[k], w1)
		}
		dst.pos[k] = dst.pos[k].Mul(w1).Add(src.pos[k].Mul(w2))
	}
}

// layerWeight returns the weight and frame of layer al at frame of its owner
// sequence, ok is false outside of the layer range
func layerWeight(al *studio.Autolayer, seq, layer *studio.Sequence, frame, w float32) (float32, float32, bool) {
	if al.Start == al.End {
		return w, frame, true
	}

	index := frame
	if al.Flags&studio.STUDIO_AL_POSE != 0 {
		index = 0
	}
	if index < al.Start || index >= al.End {
		return 0, 0, false
	}

	f := float32(1)
	if index < al.Peak && al.Start != al.Peak {
		f = (index - al.Start) / (al.Peak - al.Start)
	} else if index > al.Tail && al.End != al.Tail {
		f = (al.End - index) / (al.End - al.Tail)
	}
	if al.Flags&studio.STUDIO_AL_SPLINE != 0 {
		f = 3*f*f - 2*f*f*f
	}

	lw := w * f
	switch {
	case al.Flags&studio.STUDIO_AL_XFADE != 0 && index > al.Tail:
		lw = (f * w) / (1 - w + f*w)
	case al.Flags&studio.STUDIO_AL_NOBLEND != 0:
		lw = f
	}

	layerLast := float32(len(layer.Anims[0].Sample) - 1)
	var lf float32
	if al.Flags&studio.STUDIO_AL_POSE == 0 {
		lf = (frame - al.Start) / (al.End - al.Start) * layerLast
	} else if last := float32(len(seq.Anims[0].Sample) - 1); last > 0 {
		lf = frame / last * layerLast
	}
	return lw, lf, true
}

func accumulatePose(s *studio.Session, dst pose, seq *studio.Sequence, frame, w float32, depth int) error {
	if depth > len(s.Sequences) {
		return errors.Errorf("Autolayers of %q loop back on themselves", seq.Name)
	}
	src, err := singlePose(s, seq, frame)
	if err != nil {
		return err
	}
	blendPose(s, seq, dst, src, w)

	for _, al := range seq.Autolayers {
		if al.Sequence < 0 || al.Sequence >= len(s.Sequences) {
			return errors.Errorf("Sequence %q has unresolved autolayer %q", seq.Name, al.Name)
		}
		layer := s.Sequences[al.Sequence]
		if len(layer.Anims) == 0 {
			continue
		}
		lw, lf, ok := layerWeight(al, seq, layer, frame, w)
		if !ok {
			continue
		}
		if err := accumulatePose(s, dst, layer, lf, lw, depth+1); err != nil {
			return err
		}
	}
	return nil
}

// SequenceTransforms poses the bone table with frame of seq, its first blend
// mixed in by the sequence bone weights and its autolayers on top, and
// chains the result into model space
func SequenceTransforms(s *studio.Session, seq *studio.Sequence, frame int) ([]mgl32.Mat4, error) {
	p := pose{pos: make([]mgl32.Vec3, len(s.Bones)), q: make([]mgl32.Quat, len(s.Bones))}
	for k, b := range s.Bones {
		bp := b.Pose()
		p.pos[k] = bp.Pos
		p.q[k] = bp.Quat()
	}
	if err := accumulatePose(s, p, seq, float32(frame), 1, 0); err != nil {
		return nil, err
	}

	r := make([]mgl32.Mat4, len(s.Bones))
	for k, b := range s.Bones {
		m := utils.MatrixFromPosQuat(p.pos[k], p.q[k])
		if b.Parent == -1 {
			r[k] = m
		} else {
			r[k] = r[b.Parent].Mul4(m)
		}
	}
	return r, nil
}

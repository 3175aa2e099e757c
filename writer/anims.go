package writer

import (
	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"

	"github.com/mogaika/studiomdl/config"
	"github.com/mogaika/studiomdl/studio"
)

func (w *writer) channels(channels [6]studio.AnimChannel, base int, labels *[6]Label) {
	for k, ch := range channels {
		if len(ch) == 0 {
			w.a.U16(0)
		} else {
			labels[k] = w.a.NewLabel()
			w.a.RefFrom(labels[k], base)
		}
	}
}

func (w *writer) values(channels [6]studio.AnimChannel, labels *[6]Label) {
	for k, ch := range channels {
		if len(ch) == 0 {
			continue
		}
		w.a.Mark(labels[k])
		for _, v := range ch {
			w.a.U16(v)
		}
	}
}

// animations writes the per bone channel tables and the encoded values of
// every sequence of group
func (w *writer) animations(group int) error {
	a := w.a
	s := w.s
	for i, seq := range s.Sequences {
		if seq.Group != group {
			continue
		}
		w.animIndex[i] = a.Len()

		entries := make([]int, 0, len(seq.Anims)*len(s.Bones))
		labels := make([][6]Label, 0, cap(entries))
		for _, anim := range seq.Anims {
			for j := range s.Bones {
				var ch [6]studio.AnimChannel
				if j < len(anim.Channels) {
					ch = anim.Channels[j]
				}
				rec := a.Record("anim", ANIM_SIZE)
				entries = append(entries, rec.Start())
				labels = append(labels, [6]Label{})
				w.channels(ch, rec.Start(), &labels[len(labels)-1])
				rec.Done()
			}
		}
		a.Align()

		n := 0
		for _, anim := range seq.Anims {
			for j := range s.Bones {
				if j < len(anim.Channels) {
					w.values(anim.Channels[j], &labels[n])
				}
				if size := a.Len() - entries[n]; size > config.MAX_ANIM_BLOCK_SIZE {
					return errors.Errorf("Sequence %q is greater than 64K (%d bytes)", seq.Name, size)
				}
				n++
			}
		}
		a.Align()
	}
	return nil
}

func (w *writer) movementBlock(anim *studio.Animation) {
	if len(anim.Movements) == 0 {
		return
	}
	if _, ok := w.movements[anim]; ok {
		return
	}
	a := w.a
	w.movements[anim] = a.Len()
	for _, m := range anim.Movements {
		rec := a.Record("movement", MOVEMENT_SIZE)
		a.I32(m.EndFrame)
		a.I32(m.Flags)
		a.F32(m.V0)
		a.F32(m.V1)
		a.F32(mgl32.RadToDeg(m.Rot[2]))
		a.Vec3(m.Vector)
		a.Vec3(m.Pos)
		rec.Done()
	}
	a.Align()
}

func hasErrors(r *studio.IKRule) bool {
	if r.Stream == nil {
		return false
	}
	for _, ch := range r.Stream.Channels {
		if len(ch) != 0 {
			return true
		}
	}
	return false
}

// ruleCycle maps a frame to the 0..1 cycle of anim
func ruleCycle(anim *studio.Animation, frame int) float32 {
	return float32(frame) / float32(anim.NumFrames-1)
}

func (w *writer) ikRuleBlock(anim *studio.Animation) {
	if len(anim.IKRules) == 0 {
		return
	}
	if _, ok := w.ikRules[anim]; ok {
		return
	}
	a := w.a
	w.ikRules[anim] = a.Len()

	errs := make([]Label, len(anim.IKRules))
	for j, r := range anim.IKRules {
		errs[j] = a.NewLabel()
		rec := a.Record("ikrule", IKRULE_SIZE)
		a.I32(r.Index)
		a.I32(r.Type)
		a.I32(r.Chain)
		a.I32(r.Bone)
		a.I32(r.Slot)
		a.F32(r.Height)
		a.F32(r.Radius)
		a.F32(r.Floor)
		a.Vec3(r.Pos)
		a.Quat(r.Q)
		attachment := -1
		if r.Attachment != "" {
			attachment = w.s.FindAttachment(r.Attachment)
		}
		a.I32(attachment)
		a.I32(r.Start)
		a.OptRef(errs[j], hasErrors(r))
		if anim.NumFrames > 1 {
			a.F32(ruleCycle(anim, r.Start))
			a.F32(ruleCycle(anim, r.Peak))
			a.F32(ruleCycle(anim, r.Tail))
			a.F32(ruleCycle(anim, r.End))
			a.F32(ruleCycle(anim, r.Contact))
		} else {
			for _, f := range []float32{0, 0, 1, 1, 0} {
				a.F32(f)
			}
		}
		rec.Done()
	}
	a.Align()

	for j, r := range anim.IKRules {
		if !hasErrors(r) {
			continue
		}
		a.Mark(errs[j])
		rec := a.Record("ikerror", IKERROR_SIZE)
		for _, f := range r.Stream.Scale {
			a.F32(f)
		}
		var labels [6]Label
		w.channels(r.Stream.Channels, rec.Start(), &labels)
		rec.Done()
		w.values(r.Stream.Channels, &labels)
		a.Align()
	}
}

func (w *writer) animDescriptions(group int) {
	a := w.a
	for i, seq := range w.s.Sequences {
		if seq.Group != group {
			continue
		}
		for _, anim := range seq.Anims {
			w.movementBlock(anim)
		}
		for _, anim := range seq.Anims {
			w.ikRuleBlock(anim)
		}

		w.animDescIndex[i] = a.Len()
		for _, anim := range seq.Anims {
			rec := a.Record("animdesc", ANIMDESC_SIZE)
			a.Name(anim.Name, config.NAME_SIZE)
			a.F32(anim.Fps)
			a.I32(anim.Flags)
			a.I32(anim.NumFrames)
			a.I32(len(anim.Movements))
			a.I32(w.movements[anim])
			a.I32(len(anim.IKRules))
			a.I32(w.ikRules[anim])
			rec.Done()
		}
		a.Align()
	}
}

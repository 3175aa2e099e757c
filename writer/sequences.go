package writer

import (
	"encoding/binary"
	"math"
	"strings"

	"github.com/mogaika/studiomdl/config"
	"github.com/mogaika/studiomdl/studio"
	"github.com/mogaika/studiomdl/utils"
)

type seqLabels struct {
	poseKeys, events, autolayers, weights, ikLocks, keyValues Label
}

// fade times are stored in hundredths of a second
func fadeByte(t float32) byte {
	return byte(utils.ClampF(t*100, 0, 255))
}

func seqFrames(seq *studio.Sequence) (int, float32) {
	if len(seq.Anims) == 0 {
		return 0, 0
	}
	return seq.Anims[0].NumFrames, seq.Anims[0].Fps
}

func seqMotionType(seq *studio.Sequence) int {
	if len(seq.Anims) == 0 {
		return 0
	}
	return seq.Anims[0].MotionType
}

func hasPoseKeys(seq *studio.Sequence) bool {
	return seq.GroupSize[0] > 1 || seq.GroupSize[1] > 1
}

func weightKey(weights []float32) string {
	var b strings.Builder
	for _, f := range weights {
		b.Write(binary.LittleEndian.AppendUint32(nil, math.Float32bits(f)))
	}
	return b.String()
}

func (w *writer) seqWeights(seq *studio.Sequence) []float32 {
	if len(seq.Weight) == len(w.s.Bones) {
		return seq.Weight
	}
	r := make([]float32, len(w.s.Bones))
	for i := range r {
		r[i] = 1
	}
	return r
}

func (w *writer) sequences() {
	a := w.a
	s := w.s

	labels := make([]seqLabels, len(s.Sequences))
	kvSizeAt := make([]int, len(s.Sequences))

	a.Mark(w.sec.seqs)
	for i, seq := range s.Sequences {
		l := &labels[i]
		for _, p := range []*Label{&l.poseKeys, &l.events, &l.autolayers, &l.weights, &l.ikLocks, &l.keyValues} {
			*p = a.NewLabel()
		}
		numFrames, fps := seqFrames(seq)
		flags := seq.Flags
		if seq.NumIKRules != 0 {
			flags |= studio.STUDIO_IKRULES
		}

		rec := a.Record("seqdesc", SEQDESC_SIZE)
		a.Name(seq.Name, config.NAME_SIZE)
		a.F32(fps)
		a.I32(flags)
		a.I32(seq.Activity)
		a.I32(seq.ActWeight)
		a.I32(len(seq.Events))
		a.Ref(l.events)
		a.I32(numFrames)
		a.OptRef(l.weights, len(s.Weightlists) != 0)
		a.Ref(l.ikLocks)
		a.I32(len(seq.IKLocks))
		a.I32(seqMotionType(seq))
		a.I32(s.RootIndex())
		a.Vec3(seq.LinearMovement)
		putBounds(a, seq.Bounds.Min, seq.Bounds.Max, seq.Bounds.Empty())
		a.I32(seq.NumBlends())
		a.I32(w.animIndex[i])
		a.I32(w.animDescIndex[i])
		for k := 0; k < 2; k++ {
			a.I32(seq.PoseParam[k])
		}
		for k := 0; k < 2; k++ {
			a.F32(seq.ParamStart[k])
		}
		for k := 0; k < 2; k++ {
			a.F32(seq.ParamEnd[k])
		}
		for k := 0; k < 2; k++ {
			a.I32(seq.GroupSize[k])
		}
		a.OptRef(l.poseKeys, hasPoseKeys(seq))
		a.I32(len(seq.Autolayers))
		a.Ref(l.autolayers)
		a.I32(seq.Group)
		a.I32(seq.EntryNode)
		a.I32(seq.ExitNode)
		a.I32(seq.NodeFlags)
		a.I32(seq.CyclePose)
		a.U8(fadeByte(seq.FadeIn))
		a.U8(fadeByte(seq.FadeOut))
		a.U16(0)
		a.OptRef(l.keyValues, seq.KeyValues != "")
		kvSizeAt[i] = a.Reserve(4)
		rec.Done()
	}
	a.Align()

	weightBlocks := make(map[string]Label)
	for i, seq := range s.Sequences {
		l := &labels[i]
		numFrames, _ := seqFrames(seq)

		if hasPoseKeys(seq) {
			a.Mark(l.poseKeys)
			for k := 0; k < 2; k++ {
				for j := 0; j < seq.GroupSize[k]; j++ {
					var v float32
					if j < len(seq.Param[k]) {
						v = seq.Param[k][j]
					}
					a.F32(v)
				}
			}
		}

		a.Mark(l.events)
		for _, ev := range seq.Events {
			rec := a.Record("event", EVENT_SIZE)
			a.I32(ev.Frame)
			a.I32(ev.Event)
			// type
			a.I32(0)
			opts, err := utils.StringToBytes(ev.Options, false)
			if err != nil {
				a.fail(err)
			}
			if len(opts) >= config.EVENT_OPTS_SIZE {
				opts = opts[:config.EVENT_OPTS_SIZE-1]
			}
			a.Bytes(opts)
			a.Reserve(config.EVENT_OPTS_SIZE - len(opts))
			rec.Done()
		}
		a.Align()

		a.Mark(l.autolayers)
		span := float32(max(numFrames-1, 1))
		for _, al := range seq.Autolayers {
			rec := a.Record("autolayer", AUTOLAYER_SIZE)
			a.I16(int16(al.Sequence))
			a.I16(int16(al.Pose))
			a.I32(al.Flags)
			times := []float32{al.Start, al.Peak, al.Tail, al.End}
			for _, t := range times {
				if al.Flags&studio.STUDIO_AL_POSE == 0 {
					t /= span
				}
				a.F32(t)
			}
			rec.Done()
		}

		if len(s.Weightlists) != 0 {
			weights := w.seqWeights(seq)
			key := weightKey(weights)
			if prev, ok := weightBlocks[key]; ok {
				a.Bind(l.weights, prev)
			} else {
				a.Mark(l.weights)
				weightBlocks[key] = l.weights
				for _, f := range weights {
					a.F32(f)
				}
			}
		}

		a.Mark(l.ikLocks)
		w.ikLockList(seq.IKLocks)

		if seq.KeyValues != "" {
			a.Mark(l.keyValues)
			a.PatchI32(kvSizeAt[i], a.ZString(seq.KeyValues))
		}
		a.Align()
	}

	a.Mark(w.sec.seqGroups)
	for _, g := range s.SeqGroups {
		rec := a.Record("seqgroup", SEQGROUP_SIZE)
		a.Name(g.Label, config.NAME_SIZE)
		a.Name(g.Name, config.LONG_NAME_SIZE)
		rec.Done()
	}
	a.Align()

	a.Mark(w.sec.transitions)
	for _, row := range s.XNode {
		for _, n := range row {
			a.U8(byte(n))
		}
	}
	a.Align()
}

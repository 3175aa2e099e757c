package writer

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/mogaika/studiomdl/config"
	"github.com/mogaika/studiomdl/studio"
	"github.com/mogaika/studiomdl/utils"
)

func (w *writer) bones() {
	a := w.a
	s := w.s

	a.Mark(w.sec.bones)
	for _, b := range s.Bones {
		rec := a.Record("bone", BONE_SIZE)
		a.Name(b.Name, config.NAME_SIZE)
		a.I32(b.Parent)
		a.I32(b.Flags)
		for _, c := range b.Controllers {
			a.I32(c)
		}
		a.Vec3(b.Pos)
		a.Vec3(b.Rot)
		a.Vec3(b.PosScale)
		a.Vec3(b.RotScale)
		rec.Done()
	}
	a.Align()

	if w.flags&studio.STUDIO_HAS_BONEINFO == 0 {
		return
	}

	procs := make([]Label, len(s.Procedural))
	for i := range procs {
		procs[i] = a.NewLabel()
	}

	a.Mark(w.sec.boneInfo)
	for _, b := range s.Bones {
		rec := a.Record("boneinfo", BONEINFO_SIZE)
		m := b.PoseToBone()
		for i := 0; i < 3; i++ {
			for j := 0; j < 4; j++ {
				a.F32(m.At(i, j))
			}
		}
		a.Quat(b.QAlignment)
		if b.Procedural >= 0 {
			a.I32(s.Procedural[b.Procedural].Kind())
			a.Ref(procs[b.Procedural])
		} else {
			a.I32(studio.STUDIO_PROC_NONE)
			a.I32(0)
		}
		a.Quat(utils.QuatAlign(b.QAlignment, b.Pose().Quat()))
		rec.Done()
	}
	a.Align()

	// grouped by kind
	for i, p := range s.Procedural {
		if p, ok := p.(*studio.AxisInterpBone); ok {
			a.Mark(procs[i])
			rec := a.Record("axisinterp", AXISINTERP_SIZE)
			a.I32(p.ControlIndex)
			a.I32(p.Axis)
			for _, v := range p.Pos {
				a.Vec3(v)
			}
			for _, q := range p.Quat {
				a.Quat(q)
			}
			rec.Done()
		}
	}
	a.Align()

	for i, p := range s.Procedural {
		if p, ok := p.(*studio.QuatInterpBone); ok {
			a.Mark(procs[i])
			rec := a.Record("quatinterp", QUATINTERP_SIZE)
			a.I32(p.ControlIndex)
			a.I32(len(p.Triggers))
			triggers := a.NewLabel()
			a.Ref(triggers)
			rec.Done()

			a.Mark(triggers)
			for _, t := range p.Triggers {
				rec := a.Record("quatinterp trigger", QUATINTERP_INFO)
				a.F32(1 / t.Tolerance)
				a.Quat(t.Trigger)
				a.Vec3(t.Pos)
				a.Quat(t.Quat)
				rec.Done()
			}
		}
	}
	a.Align()

	for i, p := range s.Procedural {
		if p, ok := p.(*studio.JiggleBone); ok {
			a.Mark(procs[i])
			rec := a.Record("jiggle", JIGGLE_SIZE)
			a.I32(p.Flags)
			for _, f := range []float32{
				p.Length, p.TipMass,
				p.YawStiffness, p.YawDamping, p.PitchStiffness, p.PitchDamping,
				p.AlongStiffness, p.AlongDamping, p.AngleLimit,
				p.MinYaw, p.MaxYaw, p.YawFriction, p.YawBounce,
				p.MinPitch, p.MaxPitch, p.PitchFriction, p.PitchBounce,
				p.BaseMass, p.BaseStiffness, p.BaseDamping,
				p.BaseMinLeft, p.BaseMaxLeft, p.BaseLeftFriction,
				p.BaseMinUp, p.BaseMaxUp, p.BaseUpFriction,
				p.BaseMinForward, p.BaseMaxForward, p.BaseForwardFriction,
				p.BoingImpactSpeed, p.BoingImpactAngle, p.BoingDampingRate, p.BoingFrequency, p.BoingAmplitude,
			} {
				a.F32(f)
			}
			rec.Done()
		}
	}
	a.Align()

	for i, p := range s.Procedural {
		if p, ok := p.(*studio.AimAtBone); ok {
			a.Mark(procs[i])
			rec := a.Record("aimat", AIMAT_SIZE)
			a.I32(p.ParentIndex)
			if p.AimAttach != -1 {
				a.I32(p.AimAttach)
			} else {
				a.I32(p.AimBone)
			}
			a.Vec3(p.AimVec)
			a.Vec3(p.UpVec)
			a.Vec3(p.BasePos)
			rec.Done()
		}
	}
	a.Align()
}

func (w *writer) controllers() {
	a := w.a
	a.Mark(w.sec.controllers)
	for _, c := range w.s.BoneControllers {
		rec := a.Record("bonecontroller", BONECONTROLLER_SIZE)
		a.I32(c.Bone)
		a.I32(c.Type)
		a.F32(c.Start)
		a.F32(c.End)
		// rest
		a.I32(0)
		a.I32(c.Index)
		rec.Done()
	}
	a.Align()
}

func dejitter(v mgl32.Vec3) mgl32.Vec3 {
	for i := range v {
		if math.Abs(float64(v[i])) < config.ATTACHMENT_JITTER {
			v[i] = 0
		}
	}
	return v
}

func (w *writer) attachments() {
	a := w.a
	a.Mark(w.sec.attachments)
	for _, att := range w.s.Attachments {
		rec := a.Record("attachment", ATTACHMENT_SIZE)
		a.Name(att.Name, config.NAME_SIZE)
		a.I32(att.Flags)
		a.I32(att.Bone)
		a.Vec3(dejitter(utils.MatrixPosition(att.Local)))
		for i := 0; i < 3; i++ {
			a.Vec3(att.Local.Col(i).Vec3())
		}
		rec.Done()
	}
	a.Align()
}

func (w *writer) bboxes(boxes []*studio.Hitbox) {
	a := w.a
	for _, hb := range boxes {
		rec := a.Record("bbox", BBOX_SIZE)
		a.I32(hb.Bone)
		a.I32(hb.Group)
		a.Vec3(hb.Min)
		a.Vec3(hb.Max)
		rec.Done()
	}
	a.Align()
}

func (w *writer) hitboxes() {
	a := w.a
	s := w.s

	a.Mark(w.sec.hitboxes)
	if len(s.HitboxSets) != 0 {
		w.bboxes(s.HitboxSets[0].Hitboxes)
	}

	a.Mark(w.sec.hitboxSets)
	boxes := make([]Label, len(s.HitboxSets))
	for i, set := range s.HitboxSets {
		boxes[i] = a.NewLabel()
		rec := a.Record("hitboxset", HITBOXSET_SIZE)
		a.Name(set.Name, config.NAME_SIZE)
		a.I32(len(set.Hitboxes))
		a.Ref(boxes[i])
		rec.Done()
	}
	a.Align()

	for i, set := range s.HitboxSets {
		a.Mark(boxes[i])
		w.bboxes(set.Hitboxes)
	}
}

func (w *writer) ikChains() {
	a := w.a
	s := w.s

	a.Mark(w.sec.ikChains)
	links := make([]Label, len(s.IKChains))
	for i, c := range s.IKChains {
		links[i] = a.NewLabel()
		rec := a.Record("ikchain", IKCHAIN_SIZE)
		a.Name(c.Name, config.NAME_SIZE)
		a.I32(len(c.Links))
		a.Ref(links[i])
		rec.Done()
	}
	a.Align()

	for i, c := range s.IKChains {
		a.Mark(links[i])
		for _, l := range c.Links {
			rec := a.Record("iklink", IKLINK_SIZE)
			a.I32(l.Bone)
			a.Vec3(l.KneeDir)
			rec.Done()
		}
	}
	a.Align()
}

func (w *writer) ikLockList(locks []*studio.IKLock) {
	a := w.a
	for _, l := range locks {
		rec := a.Record("iklock", IKLOCK_SIZE)
		a.I32(l.Chain)
		a.F32(l.PosWeight)
		a.F32(l.LocalQWeight)
		// flags
		a.I32(0)
		rec.Done()
	}
	a.Align()
}

func (w *writer) ikLocks() {
	w.a.Mark(w.sec.ikLocks)
	w.ikLockList(w.s.IKAutoplayLocks)
}

func (w *writer) poseParams() {
	a := w.a
	a.Mark(w.sec.poseParams)
	for _, p := range w.s.PoseParams {
		rec := a.Record("poseparam", POSEPARAM_SIZE)
		a.Name(p.Name, config.NAME_SIZE)
		a.I32(p.Flags)
		a.F32(p.Min)
		a.F32(p.Max)
		a.F32(p.Loop)
		rec.Done()
	}
	a.Align()
}

package qc

import (
	"strings"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"

	"github.com/mogaika/studiomdl/studio"
	"github.com/mogaika/studiomdl/utils"
)

type AxisInterp struct {
	Bone    string `yaml:"bone"`
	Control string `yaml:"control"`
	// x, y or z
	Axis string `yaml:"axis"`
	// up to six, missing poses stay at rest
	Poses []Placement `yaml:"poses"`
}

type QuatTrigger struct {
	// degrees
	Tolerance float32    `yaml:"tolerance"`
	Trigger   mgl32.Vec3 `yaml:"trigger,flow"`
	Placement `yaml:",inline"`
}

type QuatInterp struct {
	Bone          string        `yaml:"bone"`
	Parent        string        `yaml:"parent"`
	ControlParent string        `yaml:"controlparent"`
	Control       string        `yaml:"control"`
	Size          float32       `yaml:"size"`
	BasePos       mgl32.Vec3    `yaml:"basepos,flow"`
	Percentage    float32       `yaml:"percentage"`
	Triggers      []QuatTrigger `yaml:"triggers"`
}

type AimAt struct {
	Bone    string     `yaml:"bone"`
	Parent  string     `yaml:"parent"`
	Aim     string     `yaml:"aim"`
	AimVec  mgl32.Vec3 `yaml:"aimvector,flow"`
	UpVec   mgl32.Vec3 `yaml:"upvector,flow"`
	BasePos mgl32.Vec3 `yaml:"basepos,flow"`
}

// Limit is a degree range with friction and bounce at its ends
type Limit struct {
	Min      float32 `yaml:"min"`
	Max      float32 `yaml:"max"`
	Friction float32 `yaml:"friction"`
	Bounce   float32 `yaml:"bounce"`
}

type JiggleSpring struct {
	Length         float32 `yaml:"length"`
	TipMass        float32 `yaml:"tipmass"`
	YawStiffness   float32 `yaml:"yawstiffness"`
	YawDamping     float32 `yaml:"yawdamping"`
	PitchStiffness float32 `yaml:"pitchstiffness"`
	PitchDamping   float32 `yaml:"pitchdamping"`
	AlongStiffness float32 `yaml:"alongstiffness"`
	AlongDamping   float32 `yaml:"alongdamping"`
	// degrees
	AngleConstraint *float32 `yaml:"angleconstraint"`
	YawConstraint   *Limit   `yaml:"yawconstraint"`
	PitchConstraint *Limit   `yaml:"pitchconstraint"`
	// keep the tip at Length
	LengthConstraint bool `yaml:"lengthconstraint"`
}

type Range struct {
	Min      float32 `yaml:"min"`
	Max      float32 `yaml:"max"`
	Friction float32 `yaml:"friction"`
}

type JiggleBase struct {
	Stiffness         float32 `yaml:"stiffness"`
	Damping           float32 `yaml:"damping"`
	Mass              float32 `yaml:"mass"`
	LeftConstraint    Range   `yaml:"leftconstraint"`
	UpConstraint      Range   `yaml:"upconstraint"`
	ForwardConstraint Range   `yaml:"forwardconstraint"`
}

type JiggleBoing struct {
	ImpactSpeed float32 `yaml:"impactspeed"`
	// degrees
	ImpactAngle float32 `yaml:"impactangle"`
	DampingRate float32 `yaml:"dampingrate"`
	Frequency   float32 `yaml:"frequency"`
	Amplitude   float32 `yaml:"amplitude"`
}

type Jiggle struct {
	Bone       string        `yaml:"bone"`
	Flexible   *JiggleSpring `yaml:"flexible"`
	Rigid      *JiggleSpring `yaml:"rigid"`
	BaseSpring *JiggleBase   `yaml:"basespring"`
	Boing      *JiggleBoing  `yaml:"boing"`
}

// Procedural declares one runtime driven bone, exactly one field is set
type Procedural struct {
	AxisInterp *AxisInterp `yaml:"axisinterp"`
	QuatInterp *QuatInterp `yaml:"quatinterp"`
	AimAt      *AimAt      `yaml:"aimat"`
	Jiggle     *Jiggle     `yaml:"jiggle"`
}

func rad(deg float32) float32 {
	return mgl32.DegToRad(deg)
}

func placementQuat(p Placement) mgl32.Quat {
	return utils.EulerToQuat(utils.DegreeToRadiansV3(p.Angles))
}

func axisInterp(d *AxisInterp) (*studio.AxisInterpBone, error) {
	p := &studio.AxisInterpBone{Bone: d.Bone, Control: d.Control}
	switch strings.ToLower(d.Axis) {
	case "x":
		p.Axis = 0
	case "y":
		p.Axis = 1
	case "z":
		p.Axis = 2
	default:
		return nil, errors.Errorf("Unknown axis %q", d.Axis)
	}
	if len(d.Poses) > len(p.Pos) {
		return nil, errors.Errorf("Axis interpolation bone %q has %d poses, at most %d allowed", d.Bone, len(d.Poses), len(p.Pos))
	}
	for i := range p.Quat {
		p.Quat[i] = mgl32.QuatIdent()
	}
	for i, pose := range d.Poses {
		p.Pos[i] = pose.Origin
		p.Quat[i] = placementQuat(pose)
	}
	return p, nil
}

func quatInterp(d *QuatInterp) (*studio.QuatInterpBone, error) {
	if len(d.Triggers) == 0 {
		return nil, errors.Errorf("No triggers")
	}
	p := &studio.QuatInterpBone{
		Bone:          d.Bone,
		Parent:        d.Parent,
		ControlParent: d.ControlParent,
		Control:       d.Control,
		Size:          d.Size,
		BasePos:       d.BasePos,
		Percentage:    d.Percentage,
	}
	for i, t := range d.Triggers {
		if t.Tolerance <= 0 {
			return nil, errors.Errorf("Trigger %d has no tolerance", i)
		}
		p.Triggers = append(p.Triggers, studio.QuatInterpTrigger{
			Tolerance: rad(t.Tolerance),
			Trigger:   utils.EulerToQuat(utils.DegreeToRadiansV3(t.Trigger)),
			Pos:       t.Origin,
			Quat:      placementQuat(t.Placement),
		})
	}
	return p, nil
}

func jiggleSpring(p *studio.JiggleBone, d *JiggleSpring) {
	p.Length = d.Length
	p.TipMass = d.TipMass
	p.YawStiffness = d.YawStiffness
	p.YawDamping = d.YawDamping
	p.PitchStiffness = d.PitchStiffness
	p.PitchDamping = d.PitchDamping
	p.AlongStiffness = d.AlongStiffness
	p.AlongDamping = d.AlongDamping
	if d.AngleConstraint != nil {
		p.Flags |= studio.JIGGLE_HAS_ANGLE_CONSTRAINT
		p.AngleLimit = rad(*d.AngleConstraint)
	}
	if l := d.YawConstraint; l != nil {
		p.Flags |= studio.JIGGLE_HAS_YAW_CONSTRAINT
		p.MinYaw, p.MaxYaw = rad(l.Min), rad(l.Max)
		p.YawFriction, p.YawBounce = l.Friction, l.Bounce
	}
	if l := d.PitchConstraint; l != nil {
		p.Flags |= studio.JIGGLE_HAS_PITCH_CONSTRAINT
		p.MinPitch, p.MaxPitch = rad(l.Min), rad(l.Max)
		p.PitchFriction, p.PitchBounce = l.Friction, l.Bounce
	}
	if d.LengthConstraint {
		p.Flags |= studio.JIGGLE_HAS_LENGTH_CONSTRAINT
	}
}

func jiggle(d *Jiggle) (*studio.JiggleBone, error) {
	p := &studio.JiggleBone{Bone: d.Bone}
	switch {
	case d.Flexible != nil && d.Rigid != nil:
		return nil, errors.Errorf("Jiggle bone is both flexible and rigid")
	case d.Flexible != nil:
		p.Flags |= studio.JIGGLE_IS_FLEXIBLE
		jiggleSpring(p, d.Flexible)
	case d.Rigid != nil:
		p.Flags |= studio.JIGGLE_IS_RIGID
		jiggleSpring(p, d.Rigid)
	}
	if b := d.BaseSpring; b != nil {
		p.Flags |= studio.JIGGLE_HAS_BASE_SPRING
		p.BaseStiffness = b.Stiffness
		p.BaseDamping = b.Damping
		p.BaseMass = b.Mass
		p.BaseMinLeft, p.BaseMaxLeft, p.BaseLeftFriction = b.LeftConstraint.Min, b.LeftConstraint.Max, b.LeftConstraint.Friction
		p.BaseMinUp, p.BaseMaxUp, p.BaseUpFriction = b.UpConstraint.Min, b.UpConstraint.Max, b.UpConstraint.Friction
		p.BaseMinForward, p.BaseMaxForward, p.BaseForwardFriction = b.ForwardConstraint.Min, b.ForwardConstraint.Max, b.ForwardConstraint.Friction
	}
	if b := d.Boing; b != nil {
		p.Flags |= studio.JIGGLE_IS_BOING
		p.BoingImpactSpeed = b.ImpactSpeed
		p.BoingImpactAngle = rad(b.ImpactAngle)
		p.BoingDampingRate = b.DampingRate
		p.BoingFrequency = b.Frequency
		p.BoingAmplitude = b.Amplitude
	}
	if p.Flags == 0 {
		return nil, errors.Errorf("Jiggle bone %q has no spring", d.Bone)
	}
	return p, nil
}

func (b *builder) procedural() error {
	for i := range b.doc.Procedural {
		d := &b.doc.Procedural[i]
		var p studio.ProceduralBone
		var err error
		set := 0
		if d.AxisInterp != nil {
			set++
			p, err = axisInterp(d.AxisInterp)
		}
		if d.QuatInterp != nil {
			set++
			p, err = quatInterp(d.QuatInterp)
		}
		if d.AimAt != nil {
			set++
			a := d.AimAt
			p = &studio.AimAtBone{
				Bone:    a.Bone,
				Parent:  a.Parent,
				Aim:     a.Aim,
				AimVec:  a.AimVec,
				UpVec:   a.UpVec,
				BasePos: a.BasePos,
				// resolved once attachments are known
				AimAttach: -1,
				AimBone:   -1,
			}
		}
		if d.Jiggle != nil {
			set++
			p, err = jiggle(d.Jiggle)
		}
		if set != 1 {
			return errors.Errorf("Procedural bone %d declares %d kinds, expected one", i, set)
		}
		if err != nil {
			return errors.Wrapf(err, "Procedural bone %d", i)
		}
		if p.BoneName() == "" {
			return errors.Errorf("Procedural bone %d has no bone", i)
		}
		if err := b.s.AddProcedural(p); err != nil {
			return err
		}
	}
	return nil
}

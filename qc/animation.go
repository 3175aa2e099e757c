package qc

import (
	"strings"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"

	"github.com/mogaika/studiomdl/studio"
	"github.com/mogaika/studiomdl/utils"
)

type Subtract struct {
	Animation string `yaml:"animation"`
	Frame     int    `yaml:"frame"`
	Post      bool   `yaml:"post"`
}

type LinearDelta struct {
	Spline bool `yaml:"spline"`
	Post   bool `yaml:"post"`
}

type Motion struct {
	// space separated channels, "LX LY"
	Type     string `yaml:"type"`
	EndFrame int    `yaml:"endframe"`
}

type CounterRotate struct {
	Bone string `yaml:"bone"`
	// degrees, the reference pose of the bone when omitted
	Target *mgl32.Vec3 `yaml:"target,flow"`
}

type IKRule struct {
	Chain      string `yaml:"chain"`
	Type       string `yaml:"type"`
	Bone       string `yaml:"bone"`
	Attachment string `yaml:"attachment"`
	// start, peak, tail, end frames, -1 to infer
	Range   *[4]int    `yaml:"range,flow"`
	Contact *int       `yaml:"contact"`
	Height  float32    `yaml:"height"`
	Radius  float32    `yaml:"radius"`
	Floor   float32    `yaml:"floor"`
	Pos     mgl32.Vec3 `yaml:"pos,flow"`
	// degrees
	Angles      mgl32.Vec3 `yaml:"angles,flow"`
	UseSequence bool       `yaml:"usesequence"`
	UseSource   bool       `yaml:"usesource"`
}

// Command is one processing step, exactly one field is set
type Command struct {
	WeightList    *string        `yaml:"weightlist"`
	Subtract      *Subtract      `yaml:"subtract"`
	LinearDelta   *LinearDelta   `yaml:"lineardelta"`
	FixupLoop     *[2]int        `yaml:"fixuploop,flow"`
	Angle         *float32       `yaml:"angle"`
	Motion        *Motion        `yaml:"motion"`
	Derivative    *float32       `yaml:"derivative"`
	NoAnimation   bool           `yaml:"noanimation"`
	Reencode      *int           `yaml:"reencode"`
	NumFrames     *int           `yaml:"numframes"`
	CounterRotate *CounterRotate `yaml:"counterrotate"`
	IKFixup       *IKRule        `yaml:"ikfixup"`
	IKRule        *IKRule        `yaml:"ikrule"`
}

type Animation struct {
	Name string `yaml:"name"`
	File string `yaml:"file"`
	// animation of a glTF file, the file name without extension for smd
	Take   string      `yaml:"take"`
	Fps    *float32    `yaml:"fps"`
	Loop   bool        `yaml:"loop"`
	Frames *[2]int     `yaml:"frames,flow"`
	Origin *mgl32.Vec3 `yaml:"origin,flow"`
	// yaw in degrees
	Rotate    *float32  `yaml:"rotate"`
	Scale     *float32  `yaml:"scale"`
	Motion    string    `yaml:"motion"`
	Rollback  *float32  `yaml:"rollback"`
	LoopStart int       `yaml:"loopstart"`
	FudgeLoop bool      `yaml:"fudgeloop"`
	NoAutoIK  bool      `yaml:"noautoik"`
	Commands  []Command `yaml:"commands"`
}

type Event struct {
	Frame   int    `yaml:"frame"`
	Event   int    `yaml:"event"`
	Options string `yaml:"options"`
}

type Autolayer struct {
	Sequence string `yaml:"sequence"`
	// post spline xfade noblend local
	Flags []string `yaml:"flags,flow"`
	// pose parameter the times are measured on, frames when empty
	Pose  string  `yaml:"pose"`
	Start float32 `yaml:"start"`
	Peak  float32 `yaml:"peak"`
	Tail  float32 `yaml:"tail"`
	End   float32 `yaml:"end"`
}

type Blend struct {
	Param string  `yaml:"param"`
	Start float32 `yaml:"start"`
	End   float32 `yaml:"end"`
	// measure the grid from how this attachment moves along Control
	Attachment string `yaml:"attachment"`
	Control    string `yaml:"control"`
	Anim       string `yaml:"anim"`
	CompAnim   string `yaml:"companim"`
	Center     string `yaml:"center"`
}

type SequenceTransition struct {
	From    string `yaml:"from"`
	To      string `yaml:"to"`
	Reverse bool   `yaml:"reverse"`
}

type Sequence struct {
	Name string `yaml:"name"`
	// blends by animation name, row major
	Animations []string `yaml:"animations,flow"`
	// single animation declared in place
	Animation  *Animation `yaml:"animation"`
	BlendWidth int        `yaml:"blendwidth"`
	Blend      []Blend    `yaml:"blend"`

	Activity  int      `yaml:"activity"`
	ActWeight int      `yaml:"actweight"`
	Fps       *float32 `yaml:"fps"`
	Loop      bool     `yaml:"loop"`
	Snap      bool     `yaml:"snap"`
	Realtime  bool     `yaml:"realtime"`
	Hidden    bool     `yaml:"hidden"`
	Autoplay  bool     `yaml:"autoplay"`
	World     bool     `yaml:"world"`
	FadeIn    *float32 `yaml:"fadein"`
	FadeOut   *float32 `yaml:"fadeout"`

	Node       string              `yaml:"node"`
	Transition *SequenceTransition `yaml:"transition"`

	Events     []Event     `yaml:"events"`
	Autolayers []Autolayer `yaml:"autolayers"`
	IKLocks    []IKLock    `yaml:"iklocks"`
	CyclePose  string      `yaml:"cyclepose"`
	KeyValues  string      `yaml:"keyvalues"`
}

func motionType(spec string) (int, error) {
	flags := 0
	for _, f := range strings.Fields(spec) {
		v, ok := studio.MotionFlag(strings.ToUpper(f))
		if !ok {
			return 0, errors.Errorf("Unknown motion type %q", f)
		}
		flags |= v
	}
	return flags, nil
}

func (b *builder) ikRule(d *IKRule) (*studio.IKRule, error) {
	kind, ok := studio.IKRuleType(strings.ToLower(d.Type))
	if !ok {
		return nil, errors.Errorf("Unknown ikrule type %q", d.Type)
	}
	r := studio.NewIKRule(d.Chain, kind)
	r.BoneName = d.Bone
	r.Attachment = d.Attachment
	if d.Range != nil {
		r.Start, r.Peak, r.Tail, r.End = d.Range[0], d.Range[1], d.Range[2], d.Range[3]
	}
	if d.Contact != nil {
		r.Contact = *d.Contact
	}
	r.Height = d.Height
	r.Radius = d.Radius
	r.Floor = d.Floor
	r.Pos = d.Pos
	r.Q = utils.EulerToQuat(utils.DegreeToRadiansV3(d.Angles))
	r.UseSequence = d.UseSequence
	r.UseSource = d.UseSource
	if kind == studio.IK_ATTACHMENT && d.Attachment == "" {
		return nil, errors.Errorf("ikrule %q of type attachment without attachment", d.Chain)
	}
	return r, nil
}

func (b *builder) command(c *Command) (studio.AnimCommand, error) {
	var cmds []studio.AnimCommand
	if c.WeightList != nil {
		cmds = append(cmds, &studio.CmdWeightList{Name: *c.WeightList})
	}
	if c.Subtract != nil {
		cmd := &studio.CmdSubtract{Ref: c.Subtract.Animation, Frame: c.Subtract.Frame}
		if c.Subtract.Post {
			cmd.Flags |= studio.STUDIO_POST
		}
		cmds = append(cmds, cmd)
	}
	if c.LinearDelta != nil {
		cmd := &studio.CmdLinearDelta{}
		if c.LinearDelta.Spline {
			cmd.Flags |= studio.STUDIO_AL_SPLINE
		}
		if c.LinearDelta.Post {
			cmd.Flags |= studio.STUDIO_POST
		}
		cmds = append(cmds, cmd)
	}
	if c.FixupLoop != nil {
		cmds = append(cmds, &studio.CmdFixupLoop{Start: c.FixupLoop[0], End: c.FixupLoop[1]})
	}
	if c.Angle != nil {
		cmds = append(cmds, &studio.CmdAngle{Angle: *c.Angle})
	}
	if c.Motion != nil {
		t, err := motionType(c.Motion.Type)
		if err != nil {
			return nil, err
		}
		cmds = append(cmds, &studio.CmdMotion{MotionType: t, EndFrame: c.Motion.EndFrame})
	}
	if c.Derivative != nil {
		cmds = append(cmds, &studio.CmdDerivative{Scale: *c.Derivative})
	}
	if c.NoAnimation {
		cmds = append(cmds, &studio.CmdNoAnimation{})
	}
	if c.Reencode != nil {
		if *c.Reencode < 1 {
			return nil, errors.Errorf("Bad reencode frame skip %d", *c.Reencode)
		}
		cmds = append(cmds, &studio.CmdReencode{FrameSkip: *c.Reencode})
	}
	if c.NumFrames != nil {
		cmds = append(cmds, &studio.CmdNumFrames{Frames: *c.NumFrames})
	}
	if c.CounterRotate != nil {
		cmd := &studio.CmdCounterRotate{Bone: c.CounterRotate.Bone}
		if c.CounterRotate.Target != nil {
			target := utils.DegreeToRadiansV3(*c.CounterRotate.Target)
			cmd.Target = &target
		}
		cmds = append(cmds, cmd)
	}
	if c.IKFixup != nil {
		r, err := b.ikRule(c.IKFixup)
		if err != nil {
			return nil, err
		}
		cmds = append(cmds, &studio.CmdIKFixup{Rule: r})
	}
	if c.IKRule != nil {
		r, err := b.ikRule(c.IKRule)
		if err != nil {
			return nil, err
		}
		cmds = append(cmds, &studio.CmdIKRule{Rule: r})
	}

	if len(cmds) != 1 {
		return nil, errors.Errorf("Command entry sets %d commands, expected one", len(cmds))
	}
	return cmds[0], nil
}

func (b *builder) animation(d *Animation) (*studio.Animation, error) {
	if d.File == "" {
		return nil, errors.Errorf("No file")
	}
	s := b.s

	a := studio.NewAnimation(d.Name)
	a.Scale = s.DefaultScale
	if d.Scale != nil {
		a.Scale = *d.Scale
	}
	a.Adjust = s.DefaultAdjust
	if d.Origin != nil {
		a.Adjust = *d.Origin
	}
	a.Rotation = s.DefaultRotation
	if d.Rotate != nil {
		a.Rotation = yawRotation(*d.Rotate)
	}
	if d.Fps != nil {
		a.Fps = *d.Fps
	}
	if d.Loop {
		a.Flags |= studio.STUDIO_LOOPING
	}
	if d.Frames != nil {
		a.StartFrame, a.EndFrame = d.Frames[0], d.Frames[1]
	}
	if d.Rollback != nil {
		a.MotionRollback = *d.Rollback
	}
	a.LoopRestart = d.LoopStart
	a.FudgeLoop = d.FudgeLoop
	a.NoAutoIK = d.NoAutoIK

	var err error
	if a.MotionType, err = motionType(d.Motion); err != nil {
		return nil, err
	}
	for i := range d.Commands {
		cmd, err := b.command(&d.Commands[i])
		if err != nil {
			return nil, errors.Wrapf(err, "Command %d", i)
		}
		a.Commands = append(a.Commands, cmd)
	}

	if a.Source, err = b.animationSource(d.File, d.Take, a.Scale); err != nil {
		return nil, err
	}
	if a.EndFrame >= 0 && a.StartFrame > a.EndFrame {
		return nil, errors.Errorf("Frame range %d..%d is empty", a.StartFrame, a.EndFrame)
	}

	if err := s.AddAnimation(a); err != nil {
		return nil, err
	}
	return a, nil
}

func (b *builder) animations() error {
	for i := range b.doc.Animations {
		d := &b.doc.Animations[i]
		if d.Name == "" {
			return errors.Errorf("Animation %d has no name", i)
		}
		if b.s.FindAnimation(d.Name) != nil {
			return errors.Errorf("Duplicate animation name %q", d.Name)
		}
		if _, err := b.animation(d); err != nil {
			return errors.Wrapf(err, "Failed to load animation %q", d.Name)
		}
	}
	return nil
}

var autolayerFlags = map[string]int{
	"post":    studio.STUDIO_AL_POST,
	"spline":  studio.STUDIO_AL_SPLINE,
	"xfade":   studio.STUDIO_AL_XFADE,
	"noblend": studio.STUDIO_AL_NOBLEND,
	"local":   studio.STUDIO_AL_LOCAL,
}

func (b *builder) findAnimation(name string) (*studio.Animation, error) {
	if name == "" {
		return nil, nil
	}
	a := b.s.FindAnimation(name)
	if a == nil {
		return nil, errors.Errorf("Unknown animation %q", name)
	}
	return a, nil
}

func (b *builder) blend(seq *studio.Sequence, axis int, d *Blend) error {
	s := b.s
	if seq.PoseParam[axis] = s.FindPoseParam(d.Param); seq.PoseParam[axis] == -1 {
		return errors.Errorf("Unknown pose parameter %q", d.Param)
	}
	seq.ParamStart[axis] = d.Start
	seq.ParamEnd[axis] = d.End

	if d.Attachment != "" {
		if seq.ParamAttachment[axis] = s.FindAttachment(d.Attachment); seq.ParamAttachment[axis] == -1 {
			return errors.Errorf("Unknown blend attachment %q", d.Attachment)
		}
		control, ok := studio.MotionFlag(strings.ToUpper(d.Control))
		if !ok {
			return errors.Errorf("Unknown blend control %q", d.Control)
		}
		seq.ParamControl[axis] = control
	}

	var err error
	if seq.ParamAnim, err = b.findAnimation(d.Anim); err != nil {
		return err
	}
	if seq.ParamCompAnim, err = b.findAnimation(d.CompAnim); err != nil {
		return err
	}
	if seq.ParamCenter, err = b.findAnimation(d.Center); err != nil {
		return err
	}
	return nil
}

func (b *builder) sequence(d *Sequence) error {
	s := b.s
	seq := studio.NewSequence(d.Name)

	if d.Animation != nil {
		if len(d.Animations) != 0 {
			return errors.Errorf("Both animations and animation are set")
		}
		inline := *d.Animation
		if inline.Name == "" {
			inline.Name = d.Name
		}
		if s.FindAnimation(inline.Name) != nil {
			return errors.Errorf("Duplicate animation name %q", inline.Name)
		}
		a, err := b.animation(&inline)
		if err != nil {
			return errors.Wrapf(err, "Animation %q", inline.Name)
		}
		seq.Anims = append(seq.Anims, a)
	}
	for _, name := range d.Animations {
		a, err := b.findAnimation(name)
		if err != nil {
			return err
		}
		seq.Anims = append(seq.Anims, a)
	}
	if len(seq.Anims) == 0 {
		return errors.Errorf("No animations")
	}

	width := d.BlendWidth
	if width == 0 {
		width = len(seq.Anims)
	}
	if len(seq.Anims)%width != 0 {
		return errors.Errorf("%d blends do not fill rows of %d", len(seq.Anims), width)
	}
	seq.GroupSize = [2]int{width, len(seq.Anims) / width}
	if len(d.Blend) > 2 {
		return errors.Errorf("Too many blend axes, %d", len(d.Blend))
	}
	for axis := range d.Blend {
		if err := b.blend(seq, axis, &d.Blend[axis]); err != nil {
			return errors.Wrapf(err, "Blend axis %d", axis)
		}
	}

	seq.Activity = d.Activity
	seq.ActWeight = d.ActWeight
	if d.Activity != 0 {
		seq.Flags |= studio.STUDIO_ACTIVITY
	}
	for _, f := range []struct {
		set  bool
		flag int
	}{
		{d.Loop, studio.STUDIO_LOOPING},
		{d.Snap, studio.STUDIO_SNAP},
		{d.Realtime, studio.STUDIO_REALTIME},
		{d.Hidden, studio.STUDIO_HIDDEN},
		{d.Autoplay, studio.STUDIO_AUTOPLAY},
		{d.World, studio.STUDIO_WORLD},
	} {
		if f.set {
			seq.Flags |= f.flag
		}
	}
	for _, a := range seq.Anims {
		if d.Fps != nil {
			a.Fps = *d.Fps
		}
		if d.Loop {
			a.Flags |= studio.STUDIO_LOOPING
		}
	}
	if d.FadeIn != nil {
		seq.FadeIn = *d.FadeIn
	}
	if d.FadeOut != nil {
		seq.FadeOut = *d.FadeOut
	}

	if d.Node != "" {
		n, err := s.NodeIndex(d.Node)
		if err != nil {
			return err
		}
		seq.EntryNode, seq.ExitNode = n, n
	}
	if t := d.Transition; t != nil {
		var err error
		if seq.EntryNode, err = s.NodeIndex(t.From); err != nil {
			return err
		}
		if seq.ExitNode, err = s.NodeIndex(t.To); err != nil {
			return err
		}
		if t.Reverse {
			seq.NodeFlags |= studio.NODE_REVERSE
		}
	}

	for _, ev := range d.Events {
		seq.Events = append(seq.Events, &studio.Event{Frame: ev.Frame, Event: ev.Event, Options: ev.Options})
		seq.Flags |= studio.STUDIO_EVENT
	}

	for _, al := range d.Autolayers {
		layer := &studio.Autolayer{
			Name:  al.Sequence,
			Pose:  -1,
			Start: al.Start,
			Peak:  al.Peak,
			Tail:  al.Tail,
			End:   al.End,
		}
		for _, f := range al.Flags {
			v, ok := autolayerFlags[strings.ToLower(f)]
			if !ok {
				return errors.Errorf("Unknown autolayer flag %q", f)
			}
			layer.Flags |= v
		}
		if al.Pose != "" {
			if layer.Pose = s.FindPoseParam(al.Pose); layer.Pose == -1 {
				return errors.Errorf("Unknown autolayer pose parameter %q", al.Pose)
			}
			layer.Flags |= studio.STUDIO_AL_POSE
		}
		seq.Autolayers = append(seq.Autolayers, layer)
	}

	for _, l := range d.IKLocks {
		seq.IKLocks = append(seq.IKLocks, &studio.IKLock{Name: l.Chain, Chain: -1, PosWeight: l.PosWeight, LocalQWeight: l.LocalQWeight})
	}

	if d.CyclePose != "" {
		if seq.CyclePose = s.FindPoseParam(d.CyclePose); seq.CyclePose == -1 {
			return errors.Errorf("Unknown cycle pose parameter %q", d.CyclePose)
		}
		seq.Flags |= studio.STUDIO_CYCLEPOSE
	}
	seq.KeyValues = d.KeyValues

	return s.AddSequence(seq)
}

func (b *builder) sequences() error {
	for i := range b.doc.Sequences {
		d := &b.doc.Sequences[i]
		if d.Name == "" {
			return errors.Errorf("Sequence %d has no name", i)
		}
		if b.s.FindSequence(d.Name) != -1 {
			return errors.Errorf("Duplicate sequence name %q", d.Name)
		}
		if err := b.sequence(d); err != nil {
			return errors.Wrapf(err, "Sequence %q", d.Name)
		}
	}
	if len(b.s.Sequences) == 0 {
		return errors.Errorf("Model has no sequences")
	}
	return nil
}

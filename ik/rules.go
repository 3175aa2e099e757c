package ik

import (
	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"

	"github.com/mogaika/studiomdl/anim"
	"github.com/mogaika/studiomdl/config"
	"github.com/mogaika/studiomdl/remap"
	"github.com/mogaika/studiomdl/source"
	"github.com/mogaika/studiomdl/studio"
	"github.com/mogaika/studiomdl/utils"
)

func smoothStep(s float32) float32 {
	return 3*s*s - 2*s*s*s
}

// frameTransforms samples frame t of a in model space, from the source frames
// when useSource is set. Looping animations wrap, the rest clamp.
func frameTransforms(s *studio.Session, a *studio.Animation, t int, useSource bool) ([]mgl32.Mat4, error) {
	if useSource {
		if a.Source == nil || a.Source.GlobalToLocal == nil {
			return nil, errors.Errorf("Animation %q has no source to sample ik rules from", a.Name)
		}
		return remap.TranslateAnimation(s, a.Source.GlobalToLocal, source.AnimationToWorld(a, t)), nil
	}
	if n := len(a.Sample); !a.IsLooping() && t >= n {
		t = n - 1
	}
	return remap.BoneTransforms(s, a, nil, t)
}

// ruleTransforms samples frame t the way rule r asks for: through the
// sequence a opens, from the source frames or from the processed frames
func ruleTransforms(s *studio.Session, a *studio.Animation, r *studio.IKRule, t int) ([]mgl32.Mat4, error) {
	if r.UseSequence {
		for _, seq := range s.Sequences {
			if len(seq.Anims) != 0 && seq.Anims[0] == a {
				return anim.SequenceTransforms(s, seq, t)
			}
		}
		return nil, errors.Errorf("ikrule %q uses the sequence of %q, but no sequence starts with it", r.ChainName, a.Name)
	}
	return frameTransforms(s, a, t, r.UseSource)
}

func resolveChain(s *studio.Session, r *studio.IKRule) (*studio.IKChain, error) {
	if r.Chain = s.FindIKChain(r.ChainName); r.Chain == -1 {
		return nil, errors.Errorf("Unknown ikchain %q", r.ChainName)
	}
	c := s.IKChains[r.Chain]
	if len(c.Links) != 3 {
		return nil, errors.Errorf("ikchain %q needs 3 linked bones, has %d", c.Name, len(c.Links))
	}
	if r.Slot == -1 {
		r.Slot = r.Chain
	}
	return c, nil
}

func resolveBone(s *studio.Session, r *studio.IKRule) error {
	if r.BoneName == "" {
		return nil
	}
	if r.Bone = s.FindBone(r.BoneName); r.Bone == -1 {
		return errors.Errorf("Unknown bone %q in ikrule", r.BoneName)
	}
	return nil
}

// FixupErrors moves the chain of r onto its world target on every frame of
// the rule window. A frame the chain cannot be solved on keeps the chain
// pose of the frame before.
func FixupErrors(s *studio.Session, a *studio.Animation, r *studio.IKRule) error {
	c, err := resolveChain(s, r)
	if err != nil {
		return err
	}
	n := len(a.Sample)

	if r.Start <= 0 && r.Peak <= 0 && r.Tail <= 0 && r.End <= 0 {
		r.Start, r.Peak = 0, 0
		r.Tail, r.End = n-1, n-1
	}
	if r.Peak < r.Start {
		r.Peak += n - 1
	}
	if r.Tail < r.Peak {
		r.Tail += n - 1
	}
	if r.End < r.Tail {
		r.End += n - 1
	}
	if r.Contact == -1 {
		r.Contact = r.Peak
	}
	if n <= 1 {
		return nil
	}

	if r.Type == studio.IK_WORLD || r.Type == studio.IK_GROUND {
		thigh, knee, foot := c.Links[0].Bone, c.Links[1].Bone, c.Links[2].Bone

		boneToWorld, err := frameTransforms(s, a, r.Contact, false)
		if err != nil {
			return err
		}
		footfall := utils.MatrixPosition(boneToWorld[foot])

		for k := 0; k < r.End-r.Start+1; k++ {
			t := k + r.Start
			boneToWorld, err := frameTransforms(s, a, t, false)
			if err != nil {
				return err
			}
			pos := footfall.Add(anim.CalcMovement(a, t, r.Contact))

			solved := solve(thigh, knee, foot, pos, boneToWorld)
			if !solved {
				if kneeDir, ok := KneeTarget(c, boneToWorld); ok {
					solved = solveWithKnee(thigh, knee, foot, pos, utils.MatrixPosition(boneToWorld[knee]), kneeDir, boneToWorld)
				}
			}
			if !solved {
				if k > 0 {
					cur, prev := a.Sample[t%n], a.Sample[(t-1)%n]
					for _, l := range c.Links {
						cur[l.Bone] = prev[l.Bone]
					}
				}
				continue
			}
			for _, l := range c.Links {
				anim.SolveBone(s, a, t, l.Bone, boneToWorld)
			}
		}
	}

	anim.ForceLoop(a)
	return nil
}

// ruleOnChain walks the rules of a away from rule j by step and returns the
// first one on the same chain, rule j itself when there is none
func ruleOnChain(rules []*studio.IKRule, j, step int) *studio.IKRule {
	n := len(rules)
	for i := 1; i < n; i++ {
		if r := rules[((j+step*i)%n+n)%n]; r.Chain == rules[j].Chain {
			return r
		}
	}
	return rules[j]
}

// resolveWindow fills the bounds of rule j left undeclared, from the declared
// ones or from the neighbouring rules on the same chain
func resolveWindow(rules []*studio.IKRule, j, n int) {
	r := rules[j]
	last := n - 1
	if last < 1 {
		r.Start, r.Peak, r.Tail, r.End, r.Contact = 0, 0, 0, 0, 0
		return
	}

	if r.Start == 0 && r.Peak == 0 && r.Tail == 0 && r.End == 0 {
		r.Tail, r.End = last, last
	}
	if r.Start != -1 && r.Peak == -1 && r.Tail == -1 && r.End != -1 {
		r.Peak = (r.Start + r.End) / 2
		r.Tail = r.Peak
	}
	if r.Start != -1 && r.Peak == -1 && r.Tail != -1 {
		r.Peak = (r.Start + r.Tail) / 2
	}
	if r.Peak != -1 && r.Tail == -1 && r.End != -1 {
		r.Tail = (r.Peak + r.End) / 2
	}
	if r.Peak == -1 {
		r.Start, r.Peak = 0, 0
	}
	if r.Tail == -1 {
		r.Tail, r.End = last, last
	}
	if r.Contact == -1 {
		r.Contact = r.Peak
	}

	// bisect the gap to the neighbouring rule, or meet it when it is on another slot
	if r.Start == -1 {
		prev := ruleOnChain(rules, j, -1)
		if prev.Slot == r.Slot {
			if r.Peak < prev.Tail {
				r.Start = r.Peak + (prev.Tail-r.Peak)/2
			} else {
				r.Start = r.Peak + (prev.Tail-r.Peak+last)/2
			}
			r.Start = (r.Start + n/2) % last
			prev.End = (r.Start + last) % last
		} else {
			r.Start = prev.Tail
			prev.End = r.Peak
		}
	}
	if r.End == -1 {
		next := ruleOnChain(rules, j, 1)
		if next.Slot == r.Slot {
			if next.Peak < r.Tail {
				next.Start = next.Peak + (r.Tail-next.Peak)/2
			} else {
				next.Start = next.Peak + (r.Tail-next.Peak+last)/2
			}
			next.Start = (next.Start + n/2) % last
			r.End = (next.Start + last) % last
		} else {
			next.Start = r.Tail
			r.End = next.Peak
		}
	}

	// windows may wrap around the loop point
	if r.Peak < r.Start {
		r.Peak += last
	}
	if r.Tail < r.Peak {
		r.Tail += last
	}
	if r.End < r.Tail {
		r.End += last
	}
	if r.Contact < r.Start {
		r.Contact += last
	}
}

func errorFrame(target, end mgl32.Mat4) studio.IKError {
	local := utils.RigidInverse(target).Mul4(end)
	return studio.IKError{Pos: utils.MatrixPosition(local), Q: utils.MatrixQuat(local)}
}

func numErrors(r *studio.IKRule, n int) int {
	count := r.End - r.Start + 1
	if r.End >= n {
		count += 2
	}
	return count
}

// bakeSelf records the chain end relative to r.Bone, or to the model when unset
func bakeSelf(s *studio.Session, a *studio.Animation, r *studio.IKRule, c *studio.IKChain) error {
	r.Bone = -1
	if err := resolveBone(s, r); err != nil {
		return err
	}
	r.Errors = make([]studio.IKError, numErrors(r, len(a.Sample)))
	for k := range r.Errors {
		boneToWorld, err := ruleTransforms(s, a, r, k+r.Start)
		if err != nil {
			return err
		}
		target := mgl32.Ident4()
		if r.Bone != -1 {
			target = boneToWorld[r.Bone]
		}
		r.Errors[k] = errorFrame(target, boneToWorld[c.End()])
	}
	return nil
}

// bakeAttachment records the chain end relative to where r.Bone was on the
// contact frame, carried along by the root motion
func bakeAttachment(s *studio.Session, a *studio.Animation, r *studio.IKRule, c *studio.IKChain) error {
	if err := resolveBone(s, r); err != nil {
		return err
	}
	if r.Bone != -1 {
		boneToWorld, err := frameTransforms(s, a, r.Contact, false)
		if err != nil {
			return err
		}
		r.Pos = utils.MatrixPosition(boneToWorld[r.Bone])
		r.Q = utils.MatrixQuat(boneToWorld[r.Bone])
	}

	r.Errors = make([]studio.IKError, numErrors(r, len(a.Sample)))
	for k := range r.Errors {
		t := k + r.Start
		boneToWorld, err := ruleTransforms(s, a, r, t)
		if err != nil {
			return err
		}
		pos := r.Pos.Add(anim.CalcMovement(a, t, r.Contact))
		r.Errors[k] = errorFrame(utils.MatrixFromPosQuat(pos, r.Q), boneToWorld[c.End()])
	}
	return nil
}

// bakeGround records the chain end relative to its footfall on the floor.
// Outside the plateau the target eases into the animated foot position.
func bakeGround(s *studio.Session, a *studio.Animation, r *studio.IKRule, c *studio.IKChain) error {
	end := c.End()
	boneToWorld, err := ruleTransforms(s, a, r, r.Contact)
	if err != nil {
		return err
	}
	footfall := utils.TransformPoint(boneToWorld[end], c.Center)
	footfall[2] = r.Floor
	r.Pos = footfall
	r.Q = mgl32.QuatIdent()

	r.Errors = make([]studio.IKError, numErrors(r, len(a.Sample)))
	for k := range r.Errors {
		t := k + r.Start
		boneToWorld, err := ruleTransforms(s, a, r, t)
		if err != nil {
			return err
		}
		pos := r.Pos.Add(anim.CalcMovement(a, t, r.Contact))
		cur := utils.TransformPoint(boneToWorld[end], c.Center)
		cur[2] = pos[2]

		switch {
		case t < r.Start || t >= r.End:
			pos = cur
		case t < r.Peak:
			f := smoothStep(float32(r.Peak-t) / float32(r.Peak-r.Start))
			pos = pos.Mul(1 - f).Add(cur.Mul(f))
		case t > r.Tail:
			f := smoothStep(float32(t-r.Tail) / float32(r.End-r.Tail))
			pos = pos.Mul(1 - f).Add(cur.Mul(f))
		}
		r.Errors[k] = errorFrame(utils.MatrixFromPosQuat(pos, r.Q), boneToWorld[end])
	}
	return nil
}

func bakeRule(s *studio.Session, a *studio.Animation, r *studio.IKRule, c *studio.IKChain) error {
	switch r.Type {
	case studio.IK_SELF:
		return bakeSelf(s, a, r, c)
	case studio.IK_ATTACHMENT:
		return bakeAttachment(s, a, r, c)
	case studio.IK_GROUND:
		return bakeGround(s, a, r, c)
	case studio.IK_WORLD, studio.IK_RELEASE, studio.IK_UNLATCH:
		return nil
	}
	return errors.Errorf("Unknown ikrule type %d", r.Type)
}

func chainWeight(a *studio.Animation, c *studio.IKChain) float32 {
	if a.Weight == nil {
		return 1
	}
	return a.Weight[c.End()]
}

// ProcessRules applies the ik fixups of every animation, collects its ik rules
// and bakes their errors. Chains an animation moves without a rule get an
// automatic release rule.
func ProcessRules(s *studio.Session) error {
	for _, a := range s.Animations {
		a.IKRules = nil
		for _, cmd := range a.Commands {
			switch c := cmd.(type) {
			case *studio.CmdIKFixup:
				if err := FixupErrors(s, a, c.Rule); err != nil {
					return errors.Wrapf(err, "Animation %q", a.Name)
				}
			case *studio.CmdIKRule:
				if len(a.IKRules) >= config.MAX_IK_RULES {
					return errors.Errorf("Too many IK rules in %q", a.Name)
				}
				r := *c.Rule
				a.IKRules = append(a.IKRules, &r)
			}
		}

		chains := make([]*studio.IKChain, len(a.IKRules))
		for j, r := range a.IKRules {
			c, err := resolveChain(s, r)
			if err != nil {
				return errors.Wrapf(err, "Animation %q", a.Name)
			}
			chains[j] = c
		}
		for j, r := range a.IKRules {
			resolveWindow(a.IKRules, j, len(a.Sample))
			if err := bakeRule(s, a, r, chains[j]); err != nil {
				return errors.Wrapf(err, "Animation %q", a.Name)
			}
		}

		if a.IsDelta() || a.NoAutoIK {
			continue
		}
		count := make([]int, len(s.IKChains))
		for _, r := range a.IKRules {
			count[r.Chain]++
		}
		for j, c := range s.IKChains {
			if count[j] != 0 || chainWeight(a, c) <= 0 {
				continue
			}
			r := studio.NewIKRule(c.Name, studio.IK_RELEASE)
			r.Chain, r.Slot = j, j
			r.Start, r.Peak = 0, 0
			r.Tail, r.End = len(a.Sample)-1, len(a.Sample)-1
			r.Contact = 0
			a.IKRules = append(a.IKRules, r)
		}
	}

	for _, seq := range s.Sequences {
		if len(seq.Anims) == 0 {
			continue
		}
		first := seq.Anims[0]
		for _, a := range seq.Anims {
			if len(a.IKRules) != len(first.IKRules) {
				return errors.Errorf("%s - mismatched number of IK rules: %q %q", seq.Name, first.Name, a.Name)
			}
			for n, r := range a.IKRules {
				f := first.IKRules[n]
				if r.Type != f.Type || r.Chain != f.Chain || r.Slot != f.Slot {
					return errors.Errorf("%s - mismatched IK rule %d: %q : %d %d %d, %q : %d %d %d",
						seq.Name, n, first.Name, f.Type, f.Chain, f.Slot, a.Name, r.Type, r.Chain, r.Slot)
				}
				r.Index = n
			}
		}
		seq.NumIKRules = len(first.IKRules)
		if seq.NumIKRules != 0 {
			seq.Flags |= studio.STUDIO_IKRULES
		}
	}
	return nil
}

// CompressErrors quantizes and run length encodes every baked error track
func CompressErrors(s *studio.Session) {
	for _, a := range s.Animations {
		for _, r := range a.IKRules {
			if len(r.Errors) == 0 {
				continue
			}
			stream := &studio.IKErrorStream{}
			values := make([]float32, len(r.Errors))
			for ch := 0; ch < 6; ch++ {
				for n, e := range r.Errors {
					if ch < 3 {
						values[n] = e.Pos[ch]
					} else {
						values[n] = utils.AngleNormalize(utils.QuatToEuler(e.Q)[ch-3])
					}
				}
				stream.Scale[ch], stream.Channels[ch] = anim.CompressChannel(ch, values)
			}
			r.Stream = stream
		}
	}
}

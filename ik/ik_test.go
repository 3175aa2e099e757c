package ik

import (
	"bytes"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mogaika/studiomdl/anim"
	"github.com/mogaika/studiomdl/config"
	"github.com/mogaika/studiomdl/studio"
	"github.com/mogaika/studiomdl/utils"
)

// pelvis -> thigh -> knee -> foot, the foot hangs 3 units above the floor
func legSession(t *testing.T) *studio.Session {
	s := studio.NewSession("leg", *config.DefaultOptions())
	for i, name := range []string{"pelvis", "thigh", "knee", "foot"} {
		_, err := s.AddBone(studio.NewGlobalBone(name, i-1))
		require.NoError(t, err)
	}
	s.Bones[1].Pos = mgl32.Vec3{0, 0, 40}
	s.Bones[2].Pos = mgl32.Vec3{0, 0, -20}
	s.Bones[3].Pos = mgl32.Vec3{0, 0, -17}

	require.NoError(t, s.AddIKChain(&studio.IKChain{Name: "leg", Bone: "foot"}))
	require.NoError(t, LinkChains(s))
	return s
}

func standing(t *testing.T, s *studio.Session, name string, frames int) *studio.Animation {
	a := studio.NewAnimation(name)
	a.Sample = make([][]studio.BonePose, frames)
	for j := range a.Sample {
		a.Sample[j] = make([]studio.BonePose, len(s.Bones))
		for k, b := range s.Bones {
			a.Sample[j][k] = b.Pose()
		}
	}
	a.NumFrames = frames
	require.NoError(t, s.AddAnimation(a))
	return a
}

func TestLinkChains(t *testing.T) {
	s := legSession(t)
	c := s.IKChains[0]
	require.Len(t, c.Links, 3)
	assert.Equal(t, []int{1, 2, 3}, []int{c.Links[0].Bone, c.Links[1].Bone, c.Links[2].Bone})
	assert.Equal(t, 3, c.End())
	for _, l := range c.Links {
		assert.NotZero(t, s.Bones[l.Bone].Flags&studio.BONE_USED_BY_ATTACHMENT)
	}

	require.NoError(t, s.AddIKChain(&studio.IKChain{Name: "short", Bone: "thigh"}))
	assert.Error(t, LinkChains(s))

	s.IKChains = s.IKChains[:1]
	s.IKChains[0].Bone = "toe"
	assert.Error(t, LinkChains(s))
}

func TestLinkLocks(t *testing.T) {
	s := legSession(t)
	require.NoError(t, s.AddIKLock(&studio.IKLock{Name: "leg", PosWeight: 1}))
	require.NoError(t, LinkLocks(s))
	assert.Equal(t, 0, s.IKAutoplayLocks[0].Chain)

	seq := studio.NewSequence("idle")
	seq.IKLocks = []*studio.IKLock{{Name: "arm"}}
	require.NoError(t, s.AddSequence(seq))
	assert.Error(t, LinkLocks(s))
}

func TestTwoBone(t *testing.T) {
	knee, ok := twoBone(10, 10, mgl32.Vec3{0, 0, -10}, mgl32.Vec3{1, 0, 0})
	require.True(t, ok)
	assert.InDelta(t, 8.660254, knee[0], 1e-4)
	assert.InDelta(t, -5, knee[2], 1e-4)

	_, ok = twoBone(10, 10, mgl32.Vec3{0, 0, -25}, mgl32.Vec3{1, 0, 0})
	assert.False(t, ok)
}

func TestSolve(t *testing.T) {
	boneToWorld := []mgl32.Mat4{
		mgl32.Ident4(),
		mgl32.Translate3D(0, 0, 40),
		mgl32.Translate3D(4, 0, 20),
		mgl32.Translate3D(0, 0, 0),
	}
	l1 := mgl32.Vec3{4, 0, -20}.Len()

	require.True(t, solve(1, 2, 3, mgl32.Vec3{0, 0, 5}, boneToWorld))

	thigh := utils.MatrixPosition(boneToWorld[1])
	knee := utils.MatrixPosition(boneToWorld[2])
	foot := utils.MatrixPosition(boneToWorld[3])
	assert.InDelta(t, 5, foot[2], 1e-3)
	assert.InDelta(t, l1, knee.Sub(thigh).Len(), 1e-3)
	assert.InDelta(t, l1, foot.Sub(knee).Len(), 1e-3)
	assert.Greater(t, knee[0], float32(0))

	straight := []mgl32.Mat4{
		mgl32.Ident4(),
		mgl32.Translate3D(0, 0, 40),
		mgl32.Translate3D(0, 0, 20),
		mgl32.Translate3D(0, 0, 0),
	}
	assert.False(t, solve(1, 2, 3, mgl32.Vec3{0, 0, 5}, straight))
}

func TestFindKneeDirections(t *testing.T) {
	var log bytes.Buffer
	s := legSession(t)
	s.Log = utils.NewLogger(&log)
	s.Bones[3].Pos = mgl32.Vec3{0, 0, -20}

	a := standing(t, s, "squat", 2)
	require.NoError(t, FindKneeDirections(s))
	assert.Zero(t, s.IKChains[0].Links[0].KneeDir.Len())
	assert.Contains(t, log.String(), "no clear knee direction")

	// bend the knee forward on the second frame
	a.Sample[1][2].Pos = mgl32.Vec3{6, 0, -20}
	a.Sample[1][3].Pos = mgl32.Vec3{0, 0, -20}
	require.NoError(t, FindKneeDirections(s))
	dir := s.IKChains[0].Links[0].KneeDir
	assert.InDelta(t, 1, dir[0], 1e-3)
	assert.InDelta(t, 0, dir[1], 1e-3)
}

func TestResolveWindowInference(t *testing.T) {
	rules := []*studio.IKRule{
		studio.NewIKRule("leg", studio.IK_GROUND),
		studio.NewIKRule("leg", studio.IK_GROUND),
	}
	for _, r := range rules {
		r.Chain, r.Slot = 0, 0
	}
	rules[0].Peak, rules[0].Tail = 2, 3
	rules[1].Peak, rules[1].Tail = 6, 7

	resolveWindow(rules, 0, 9)
	resolveWindow(rules, 1, 9)

	window := func(r *studio.IKRule) []int { return []int{r.Start, r.Peak, r.Tail, r.End} }
	assert.Equal(t, []int{0, 2, 3, 4}, window(rules[0]))
	assert.Equal(t, []int{4, 6, 7, 8}, window(rules[1]))
	assert.Equal(t, 2, rules[0].Contact)
}

func TestResolveWindowDefaults(t *testing.T) {
	r := studio.NewIKRule("leg", studio.IK_SELF)
	r.Start, r.End = 0, 8
	resolveWindow([]*studio.IKRule{r}, 0, 11)
	assert.Equal(t, []int{0, 4, 4, 8}, []int{r.Start, r.Peak, r.Tail, r.End})

	r = studio.NewIKRule("leg", studio.IK_SELF)
	resolveWindow([]*studio.IKRule{r}, 0, 11)
	assert.Equal(t, []int{0, 0, 10, 10}, []int{r.Start, r.Peak, r.Tail, r.End})
	assert.Equal(t, 0, r.Contact)
}

func TestGroundRuleConstantOffset(t *testing.T) {
	s := legSession(t)
	a := standing(t, s, "stand", 5)

	rule := studio.NewIKRule("leg", studio.IK_GROUND)
	rule.Start, rule.Peak, rule.Tail, rule.End = 0, 1, 3, 4
	rule.Contact = 2
	a.Commands = []studio.AnimCommand{&studio.CmdIKRule{Rule: rule}}

	require.NoError(t, ProcessRules(s))
	require.Len(t, a.IKRules, 1)
	r := a.IKRules[0]
	assert.NotSame(t, rule, r)
	assert.Equal(t, mgl32.Vec3{0, 0, 0}, r.Pos)

	require.Len(t, r.Errors, 5)
	for k, e := range r.Errors {
		assert.InDelta(t, 0, e.Pos[0], 1e-4, "frame %d", k)
		assert.InDelta(t, 0, e.Pos[1], 1e-4, "frame %d", k)
		assert.InDelta(t, 3, e.Pos[2], 1e-4, "frame %d", k)
		assert.InDelta(t, 1, e.Q.W, 1e-4, "frame %d", k)
	}

	CompressErrors(s)
	require.NotNil(t, r.Stream)
	for k := range r.Errors {
		z := float32(anim.DecodeValue(r.Stream.Channels[2], k)) * r.Stream.Scale[2]
		assert.InDelta(t, 3, z, 0.01, "frame %d", k)
		assert.Zero(t, anim.DecodeValue(r.Stream.Channels[0], k))
	}
}

func TestSelfRuleRelativeToBone(t *testing.T) {
	s := legSession(t)
	a := standing(t, s, "stand", 3)

	rule := studio.NewIKRule("leg", studio.IK_SELF)
	rule.BoneName = "pelvis"
	a.Commands = []studio.AnimCommand{&studio.CmdIKRule{Rule: rule}}

	require.NoError(t, ProcessRules(s))
	r := a.IKRules[0]
	assert.Equal(t, 0, r.Bone)
	require.Len(t, r.Errors, 3)
	assert.InDelta(t, 3, r.Errors[1].Pos[2], 1e-4)

	rule.BoneName = "tail"
	assert.Error(t, ProcessRules(s))
}

func TestSelfRuleUsesSequence(t *testing.T) {
	s := legSession(t)
	a := standing(t, s, "stand", 3)
	lift := standing(t, s, "lift", 3)
	for j := range lift.Sample {
		lift.Sample[j][3].Pos = mgl32.Vec3{0, 0, -10}
	}

	seq := studio.NewSequence("stand")
	seq.Anims = []*studio.Animation{a}
	seq.Autolayers = []*studio.Autolayer{{Name: "lift", Sequence: 1}}
	require.NoError(t, s.AddSequence(seq))
	layer := studio.NewSequence("lift")
	layer.Anims = []*studio.Animation{lift}
	require.NoError(t, s.AddSequence(layer))

	rule := studio.NewIKRule("leg", studio.IK_SELF)
	a.Commands = []studio.AnimCommand{&studio.CmdIKRule{Rule: rule}}
	require.NoError(t, ProcessRules(s))
	assert.InDelta(t, 3, a.IKRules[0].Errors[1].Pos[2], 1e-4)

	// the autolayer lifts the foot
	rule.UseSequence = true
	require.NoError(t, ProcessRules(s))
	require.Len(t, a.IKRules[0].Errors, 3)
	for k, e := range a.IKRules[0].Errors {
		assert.InDelta(t, 10, e.Pos[2], 1e-4, "frame %d", k)
		assert.InDelta(t, 0, e.Pos[0], 1e-4, "frame %d", k)
	}

	orphan := standing(t, s, "orphan", 3)
	orphan.Commands = []studio.AnimCommand{&studio.CmdIKRule{Rule: rule}}
	err := ProcessRules(s)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no sequence starts with it")
}

func TestAutoRelease(t *testing.T) {
	s := legSession(t)
	a := standing(t, s, "idle", 4)
	delta := standing(t, s, "flinch", 4)
	delta.Flags |= studio.STUDIO_DELTA

	require.NoError(t, ProcessRules(s))
	require.Len(t, a.IKRules, 1)
	r := a.IKRules[0]
	assert.Equal(t, studio.IK_RELEASE, r.Type)
	assert.Equal(t, []int{0, 0, 3, 3}, []int{r.Start, r.Peak, r.Tail, r.End})
	assert.Empty(t, delta.IKRules)
}

func TestMismatchedSequenceRules(t *testing.T) {
	s := legSession(t)
	a := standing(t, s, "walk_n", 3)
	b := standing(t, s, "walk_s", 3)
	b.NoAutoIK = true

	seq := studio.NewSequence("walk")
	seq.Anims = []*studio.Animation{a, b}
	seq.GroupSize = [2]int{2, 1}
	require.NoError(t, s.AddSequence(seq))

	assert.Error(t, ProcessRules(s))

	b.NoAutoIK = false
	require.NoError(t, ProcessRules(s))
	assert.Equal(t, 1, seq.NumIKRules)
	assert.Equal(t, 0, b.IKRules[0].Index)
}

func TestFixupErrorsPinsFoot(t *testing.T) {
	s := legSession(t)
	a := standing(t, s, "step", 3)
	// bent knee, the foot drifts forward over the animation
	for j := range a.Sample {
		a.Sample[j][2].Pos = mgl32.Vec3{4, 0, -20}
		a.Sample[j][3].Pos = mgl32.Vec3{float32(j) - 4, 0, -18}
	}
	before, err := frameTransforms(s, a, 0, false)
	require.NoError(t, err)
	want := utils.MatrixPosition(before[3])

	rule := studio.NewIKRule("leg", studio.IK_WORLD)
	rule.Contact = 0
	require.NoError(t, FixupErrors(s, a, rule))

	after, err := frameTransforms(s, a, 1, false)
	require.NoError(t, err)
	got := utils.MatrixPosition(after[3])
	assert.InDelta(t, want[0], got[0], 1e-2)
	assert.InDelta(t, want[2], got[2], 1e-2)
}

package anim

import (
	"bytes"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mogaika/studiomdl/config"
	"github.com/mogaika/studiomdl/studio"
	"github.com/mogaika/studiomdl/utils"
)

// root -> spine -> arm, spine sits 10 units above the root
func bodySession(t *testing.T) *studio.Session {
	s := studio.NewSession("test", *config.DefaultOptions())
	for _, b := range []*studio.GlobalBone{
		studio.NewGlobalBone("root", -1),
		studio.NewGlobalBone("spine", 0),
		studio.NewGlobalBone("arm", 1),
	} {
		_, err := s.AddBone(b)
		require.NoError(t, err)
	}
	s.Bones[1].Pos = mgl32.Vec3{0, 0, 10}
	s.Bones[2].Pos = mgl32.Vec3{0, 0, 5}
	return s
}

// sampled builds an animation whose root is at rootPos(j) on frame j, other bones in reference pose
func sampled(t *testing.T, s *studio.Session, name string, frames int, rootPos func(j int) mgl32.Vec3) *studio.Animation {
	a := studio.NewAnimation(name)
	a.Sample = make([][]studio.BonePose, frames)
	for j := range a.Sample {
		a.Sample[j] = make([]studio.BonePose, len(s.Bones))
		for k, b := range s.Bones {
			a.Sample[j][k] = b.Pose()
		}
		a.Sample[j][0].Pos = rootPos(j)
	}
	a.NumFrames = frames
	require.NoError(t, s.AddAnimation(a))
	return a
}

func still(int) mgl32.Vec3 { return mgl32.Vec3{} }

func TestEncodeRLE(t *testing.T) {
	long := make([]int16, 300)
	long[299] = 7

	for _, values := range [][]int16{
		{1, 1, 1, 2, 3, 3},
		{5},
		{0, 1, 2, 3, 4},
		{4, 4, 4, 4, -4, -4, 9},
		long,
	} {
		ch := EncodeRLE(values)
		for j, v := range values {
			assert.Equal(t, v, DecodeValue(ch, j), "frame %d of %v", j, values)
		}
	}

	assert.Equal(t, studio.AnimChannel{runHeader(1, 3), 1, runHeader(2, 3), 2, 3}, EncodeRLE([]int16{1, 1, 1, 2, 3, 3}))
	assert.Len(t, EncodeRLE([]int16{0, 0, 0, 0}), 2)
	assert.Equal(t, runTotal(EncodeRLE(long)[0]), config.MAX_ANIMVALUE_RUN)
	assert.Zero(t, DecodeValue(nil, 10))
}

func TestCompressAnimations(t *testing.T) {
	s := bodySession(t)
	a := sampled(t, s, "slide", 3, func(j int) mgl32.Vec3 { return mgl32.Vec3{float32(j), 0, 0} })

	require.NoError(t, CompressAnimations(s))
	require.Len(t, a.Channels, 3)

	x := a.Channels[0][0]
	require.NotNil(t, x)
	assert.InDelta(t, 2, float32(DecodeValue(x, 2))*s.Bones[0].PosScale[0], 0.01)
	assert.Nil(t, a.Channels[0][1])
	for ch := 0; ch < 6; ch++ {
		assert.Nil(t, a.Channels[1][ch], "spine channel %d", ch)
	}
	assert.Equal(t, len(x)*2, ChannelsSize(a))
}

func TestCompressSkipsProceduralBones(t *testing.T) {
	s := bodySession(t)
	s.Bones[2].Flags |= studio.BONE_ALWAYS_PROCEDURAL
	a := sampled(t, s, "wave", 4, still)
	for j := range a.Sample {
		a.Sample[j][2].Rot = mgl32.Vec3{0, 0, float32(j) * 0.1}
	}

	require.NoError(t, CompressAnimations(s))
	assert.Nil(t, a.Channels[2][5])
}

func TestBuildWeightlists(t *testing.T) {
	s := bodySession(t)
	require.NoError(t, s.AddWeightlist(&studio.Weightlist{
		Name:  "upper",
		Bones: []studio.WeightlistBone{{Name: "spine", Weight: 1, PosWeight: 0.5}},
	}))

	require.NoError(t, BuildWeightlists(s))
	require.Len(t, s.Weightlists, 2)

	def := s.Weightlists[0]
	assert.Equal(t, DefaultWeightlist, def.Name)
	assert.Equal(t, []float32{1, 1, 1}, def.Weight)

	upper := s.FindWeightlist("upper")
	assert.Equal(t, []float32{0, 1, 1}, upper.Weight)
	assert.Equal(t, []float32{0, 0.5, 0.5}, upper.PosWeight)

	s.Weightlists[1].Bones = append(s.Weightlists[1].Bones, studio.WeightlistBone{Name: "tail"})
	assert.Error(t, BuildWeightlists(s))
}

func TestProcessAnimationsLinearMotion(t *testing.T) {
	s := bodySession(t)
	a := sampled(t, s, "walk", 5, func(j int) mgl32.Vec3 { return mgl32.Vec3{2.5 * float32(j), 0, 0} })
	a.Flags |= studio.STUDIO_LOOPING
	a.MotionType = studio.STUDIO_LX

	require.NoError(t, ProcessAnimations(s))

	require.Len(t, a.Movements, 1)
	m := a.Movements[0]
	assert.Equal(t, 4, m.EndFrame)
	assert.InDelta(t, 10, m.V0, 1e-4)
	assert.InDelta(t, 10, m.V1, 1e-4)
	assert.InDelta(t, 10, a.LinearMovement[0], 1e-4)

	for j := range a.Sample {
		assert.InDelta(t, 0, a.Sample[j][0].Pos[0], 1e-4, "frame %d", j)
	}

	assert.InDelta(t, 5, CalcPosition(a, 2)[0], 1e-4)
	assert.InDelta(t, 15, CalcPosition(a, 6)[0], 1e-4)
	assert.InDelta(t, 10, CalcMovement(a, 0, 4)[0], 1e-4)
	assert.Equal(t, []float32{1, 1, 1}, a.Weight)
}

func TestExtractMotionSingleFrame(t *testing.T) {
	s := bodySession(t)
	a := sampled(t, s, "pose", 1, still)
	a.MotionType = studio.STUDIO_LX
	assert.Error(t, ProcessAnimations(s))
}

func TestSubtract(t *testing.T) {
	s := bodySession(t)
	ref := sampled(t, s, "idle", 1, func(int) mgl32.Vec3 { return mgl32.Vec3{1, 0, 0} })
	a := sampled(t, s, "lean", 2, func(j int) mgl32.Vec3 { return mgl32.Vec3{1 + float32(j), 0, 0} })

	require.NoError(t, subtract(a, ref, 0, studio.STUDIO_POST))
	assert.True(t, a.IsDelta())
	assert.InDelta(t, 0, a.Sample[0][0].Pos[0], 1e-5)
	assert.InDelta(t, 1, a.Sample[1][0].Pos[0], 1e-5)
	assert.InDelta(t, 0, a.Sample[1][1].Pos[2], 1e-5)

	assert.Error(t, subtract(a, ref, 3, 0))
}

func TestReencodeAndNumFrames(t *testing.T) {
	s := bodySession(t)
	a := sampled(t, s, "run", 5, func(j int) mgl32.Vec3 { return mgl32.Vec3{float32(j), 0, 0} })

	require.NoError(t, reencode(a, 2))
	require.Len(t, a.Sample, 3)
	assert.Equal(t, float32(4), a.Sample[2][0].Pos[0])
	assert.Equal(t, float32(15), a.Fps)

	forceNumFrames(a, 6)
	assert.Len(t, a.Sample, 6)
	assert.Equal(t, float32(4), a.Sample[5][0].Pos[0])

	assert.Error(t, reencode(a, 0))
}

func TestMakeAngle(t *testing.T) {
	s := bodySession(t)
	a := sampled(t, s, "strafe", 2, func(j int) mgl32.Vec3 { return mgl32.Vec3{0, 10 * float32(j), 0} })

	makeAngle(s, a, 0)
	assert.InDelta(t, 10, a.Sample[1][0].Pos[0], 1e-4)
	assert.InDelta(t, 0, a.Sample[1][0].Pos[1], 1e-4)
}

func TestForceLoop(t *testing.T) {
	s := bodySession(t)
	a := sampled(t, s, "sway", 3, func(j int) mgl32.Vec3 { return mgl32.Vec3{float32(j), float32(j), 0} })
	a.Flags |= studio.STUDIO_LOOPING
	a.MotionType = studio.STUDIO_LX

	ForceLoop(a)
	assert.Equal(t, float32(2), a.Sample[2][0].Pos[0])
	assert.Equal(t, float32(0), a.Sample[2][0].Pos[1])
}

func TestClampEvents(t *testing.T) {
	var log bytes.Buffer
	s := bodySession(t)
	s.Log = utils.NewLogger(&log)

	a := sampled(t, s, "fire", 5, still)
	seq := studio.NewSequence("fire")
	seq.Anims = []*studio.Animation{a}
	seq.Events = []*studio.Event{{Event: 5001, Frame: 10}, {Event: 5002, Frame: -1}}
	require.NoError(t, s.AddSequence(seq))

	ClampEvents(s)
	assert.Equal(t, 4, seq.Events[0].Frame)
	assert.Equal(t, 0, seq.Events[1].Frame)
	assert.Contains(t, log.String(), "after last frame")
}

func TestLimitBoneRotations(t *testing.T) {
	s := bodySession(t)
	a := sampled(t, s, "turn", 5, still)
	for j := range a.Sample {
		a.Sample[j][1].Rot = mgl32.Vec3{0, 0, 0.25 * float32(j)}
	}
	s.LimitRotation = []string{"spine"}

	require.NoError(t, LimitBoneRotations(s))
	spine := s.Bones[1]
	assert.NotZero(t, spine.Flags&studio.BONE_FIXED_ALIGNMENT)
	assert.InDelta(t, 0, spine.QAlignment.V[0], 1e-4)
	assert.InDelta(t, 0, spine.QAlignment.V[1], 1e-4)
	assert.Greater(t, spine.QAlignment.V[2], float32(0))

	s.LimitRotation = []string{"tail"}
	assert.Error(t, LimitBoneRotations(s))
}

func TestMakeTransitions(t *testing.T) {
	s := bodySession(t)
	s.Nodes = []string{"stand", "crouch", "prone"}

	down := studio.NewSequence("stand_to_crouch")
	down.EntryNode, down.ExitNode = 1, 2
	lie := studio.NewSequence("crouch_to_prone")
	lie.EntryNode, lie.ExitNode = 2, 3
	lie.NodeFlags = studio.NODE_REVERSE
	require.NoError(t, s.AddSequence(down))
	require.NoError(t, s.AddSequence(lie))

	require.NoError(t, MakeTransitions(s))
	assert.Equal(t, 2, s.XNode[0][1])
	assert.Equal(t, 3, s.XNode[1][2])
	assert.Equal(t, 2, s.XNode[2][1])
	assert.Equal(t, 2, s.XNode[0][2])
	assert.Equal(t, 0, s.XNode[1][0])

	s.Transitions = []*studio.Transition{{Entry: "stand", Exit: "prone"}}
	require.NoError(t, MakeTransitions(s))
	assert.Equal(t, 0, s.XNode[0][2])

	s.Transitions = nil
	s.MultiStageTransitions = false
	require.NoError(t, MakeTransitions(s))
	assert.Equal(t, 0, s.XNode[0][2])

	s.Transitions = []*studio.Transition{{Entry: "stand", Exit: "fly"}}
	assert.Error(t, MakeTransitions(s))
}

func TestAssignSequenceGroups(t *testing.T) {
	s := bodySession(t)
	for i, act := range []int{1, 0, 0, 0} {
		seq := studio.NewSequence(string(rune('a' + i)))
		seq.Activity = act
		seq.Anims = []*studio.Animation{sampled(t, s, seq.Name, 1, still)}
		require.NoError(t, s.AddSequence(seq))
	}
	// 3 bones of channel offsets per blend
	require.Equal(t, 36, SequenceSize(s, s.Sequences[0]))

	AssignSequenceGroups(s)
	require.Len(t, s.SeqGroups, 1)
	assert.Equal(t, "default", s.SeqGroups[0].Label)

	s.Options.SequenceGroupSize = 80
	AssignSequenceGroups(s)
	require.Len(t, s.SeqGroups, 3)
	assert.Equal(t, []int{0, 1, 1, 2}, []int{
		s.Sequences[0].Group, s.Sequences[1].Group, s.Sequences[2].Group, s.Sequences[3].Group,
	})
	assert.Equal(t, `models\test02.mdl`, s.SeqGroups[2].Name)
}

func TestCalcPoseParameters(t *testing.T) {
	s := bodySession(t)
	require.NoError(t, s.AddAttachment(&studio.Attachment{Name: "hand", Bone: 2, Local: mgl32.Ident4()}))
	require.NoError(t, s.AddPoseParam(&studio.PoseParam{Name: "aim_x"}))

	left := sampled(t, s, "left", 1, func(int) mgl32.Vec3 { return mgl32.Vec3{-5, 0, 0} })
	mid := sampled(t, s, "mid", 1, still)
	right := sampled(t, s, "right", 1, func(int) mgl32.Vec3 { return mgl32.Vec3{5, 0, 0} })

	aim := studio.NewSequence("aim")
	aim.Anims = []*studio.Animation{left, mid, right}
	aim.GroupSize = [2]int{3, 1}
	aim.PoseParam[0] = 0
	aim.ParamAttachment[0] = 0
	aim.ParamControl[0] = studio.STUDIO_X
	aim.ParamAnim = mid
	require.NoError(t, s.AddSequence(aim))

	spread := studio.NewSequence("spread")
	spread.Anims = []*studio.Animation{left, mid, right}
	spread.GroupSize = [2]int{3, 1}
	spread.ParamStart[0], spread.ParamEnd[0] = -1, 1
	require.NoError(t, s.AddSequence(spread))

	require.NoError(t, CalcPoseParameters(s))
	assert.InDeltaSlice(t, []float32{-5, 0, 5}, aim.Param[0], 1e-4)
	assert.InDelta(t, -5, s.PoseParams[0].Min, 1e-4)
	assert.InDelta(t, 5, s.PoseParams[0].Max, 1e-4)
	assert.InDeltaSlice(t, []float32{-1, 0, 1}, spread.Param[0], 1e-6)

	aim.Anims = []*studio.Animation{mid, mid, mid}
	assert.Error(t, CalcPoseParameters(s))
}

func TestCalcBoundingBoxes(t *testing.T) {
	s := bodySession(t)
	s.Bones[0].Bounds = utils.Bounds{Min: mgl32.Vec3{-1, -1, -1}, Max: mgl32.Vec3{1, 1, 1}}
	a := sampled(t, s, "hop", 2, func(j int) mgl32.Vec3 { return mgl32.Vec3{10 * float32(j), 0, 0} })
	seq := studio.NewSequence("hop")
	seq.Anims = []*studio.Animation{a}
	require.NoError(t, s.AddSequence(seq))

	require.NoError(t, CalcBoundingBoxes(s))
	assert.InDelta(t, -1, a.Bounds.Min[0], 1e-4)
	assert.InDelta(t, 11, a.Bounds.Max[0], 1e-4)
	assert.Equal(t, a.Bounds, seq.Bounds)
	assert.Equal(t, seq.Bounds, s.BBox)
	assert.Equal(t, s.BBox, s.CBox)
}

func TestLayerWeight(t *testing.T) {
	seq, layer := studio.NewSequence("walk"), studio.NewSequence("wave")
	seq.Anims = []*studio.Animation{{Sample: make([][]studio.BonePose, 5)}}
	layer.Anims = []*studio.Animation{{Sample: make([][]studio.BonePose, 9)}}
	al := &studio.Autolayer{Start: 0, Peak: 2, Tail: 2, End: 4}

	w, f, ok := layerWeight(al, seq, layer, 1, 1)
	require.True(t, ok)
	assert.InDelta(t, 0.5, w, 1e-6)
	assert.InDelta(t, 2, f, 1e-6)

	w, _, ok = layerWeight(al, seq, layer, 3, 0.5)
	require.True(t, ok)
	assert.InDelta(t, 0.25, w, 1e-6)

	_, _, ok = layerWeight(al, seq, layer, 4, 1)
	assert.False(t, ok)

	al.Flags |= studio.STUDIO_AL_SPLINE
	w, _, _ = layerWeight(al, seq, layer, 1, 1)
	assert.InDelta(t, 0.5, w, 1e-6)
	w, _, _ = layerWeight(al, seq, layer, 0.5, 1)
	assert.InDelta(t, 0.15625, w, 1e-6)
}

func TestSequenceTransformsBoneWeights(t *testing.T) {
	s := bodySession(t)
	a := studio.NewAnimation("reach")
	a.Sample = [][]studio.BonePose{make([]studio.BonePose, len(s.Bones))}
	for k, b := range s.Bones {
		a.Sample[0][k] = b.Pose()
	}
	a.Sample[0][1].Pos = mgl32.Vec3{0, 0, 20}
	require.NoError(t, s.AddAnimation(a))

	seq := studio.NewSequence("reach")
	seq.Anims = []*studio.Animation{a}
	require.NoError(t, s.AddSequence(seq))

	m, err := SequenceTransforms(s, seq, 0)
	require.NoError(t, err)
	assert.InDelta(t, 20, utils.MatrixPosition(m[1])[2], 1e-4)

	// bones without weight keep the reference pose
	seq.Weight = []float32{1, 0, 1}
	m, err = SequenceTransforms(s, seq, 0)
	require.NoError(t, err)
	assert.InDelta(t, s.Bones[1].Pos[2], utils.MatrixPosition(m[1])[2], 1e-4)
}

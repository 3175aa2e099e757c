package qc

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mogaika/studiomdl/config"
	"github.com/mogaika/studiomdl/studio"
	"github.com/mogaika/studiomdl/utils"
	"github.com/mogaika/studiomdl/utils/testutils"
)

const bodySMD = `version 1
nodes
0 "root" -1
1 "spine" 0
end
skeleton
time 0
0 0 0 0 0 0 0
1 0 0 10 0 0 0
end
triangles
Skin.bmp
0 0 0 0 0 0 1 0 0
0 1 0 0 0 0 1 1 0
1 0 0 10 0 0 1 0 1
end
`

const walkSMD = `version 1
nodes
0 "root" -1
1 "spine" 0
end
skeleton
time 0
0 0 0 0 0 0 0
1 0 0 10 0 0 0
time 1
0 1 0 0 0 0 0
time 2
0 2 0 0 0 0 0
end
`

const offsetSMD = `version 1
nodes
0 "root" -1
end
skeleton
time 0
0 3 0 0 0 0 0
end
triangles
skin.bmp
0 4 0 0 0 0 1 0 0
0 4 1 0 0 0 1 1 0
0 4 0 1 0 0 1 0 1
end
`

const soldierYAML = `
modelname: models/soldier.mdl
scale: 2
rotate: -90
texturedirs: [skins]
keyvalues: 'mdlkeyvalue { }'
storeuv: true
bodygroups:
  - name: body
    models:
      - {name: ref, file: body.smd}
      - {blank: true}
texturegroups:
  - [[skin.bmp], [skin_red.bmp]]
texrendermode:
  - {texture: skin.bmp, mode: masked}
attachments:
  - {name: muzzle, bone: spine, origin: [1, 0, 0]}
controllers:
  - {index: 0, bone: spine, type: zr, start: -30, end: 30, loop: true}
screenalign:
  - {bone: spine}
  - {bone: root, mode: cylinder}
hitgroups:
  - {group: 1, bone: spine}
hitboxsets:
  - name: default
    hitboxes:
      - {bone: spine, group: 1, min: [-1, -1, 0], max: [1, 1, 2]}
poseparameters:
  - {name: move_yaw, start: -180, end: 180, wrap: true}
  - {name: move_x, start: 0, end: 1}
ikchains:
  - {name: lfoot, bone: spine, height: 18}
ikautoplaylocks:
  - {chain: lfoot, posweight: 1, localqweight: 0.5}
weightlists:
  - name: upper
    bones:
      - {name: spine, weight: 1}
procedural:
  - jiggle:
      bone: spine
      flexible: {length: 10, tipmass: 5, yawconstraint: {min: -45, max: 45}}
      boing: {impactspeed: 100}
animations:
  - name: walk_a
    file: walk.smd
    fps: 24
    motion: LX
    commands:
      - weightlist: upper
      - ikrule: {chain: lfoot, type: ground, range: [0, 1, 1, 2]}
  - {name: walk_b, file: walk.smd, frames: [0, 1]}
sequences:
  - name: walk
    animations: [walk_a, walk_b]
    blend:
      - {param: move_x, start: 0, end: 1}
    loop: true
    activity: 3
    node: stand
    events:
      - {frame: 1, event: 1004, options: step}
    autolayers:
      - {sequence: idle, flags: [spline], pose: move_yaw}
    cyclepose: move_yaw
  - name: idle
    animation: {file: walk.smd, frames: [0, 0]}
    transition: {from: stand, to: crouch, reverse: true}
transitions:
  - {entry: crouch, exit: stand}
`

func writeFiles(t *testing.T, files map[string]string) string {
	dir := t.TempDir()
	for name, text := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(text), 0o644))
	}
	return dir
}

func build(t *testing.T, text string, files map[string]string) (*studio.Session, error) {
	doc, err := Decode(strings.NewReader(text))
	require.NoError(t, err)
	return Build(doc, writeFiles(t, files), *config.DefaultOptions(), nil)
}

func TestLoadSoldier(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"body.smd":     bodySMD,
		"walk.smd":     walkSMD,
		"soldier.yaml": soldierYAML,
	})
	s, err := Load(filepath.Join(dir, "soldier.yaml"), *config.DefaultOptions(), nil)
	require.NoError(t, err)

	assert.Equal(t, "soldier", s.Name)
	assert.Equal(t, float32(2), s.DefaultScale)
	assert.InDelta(t, 0, s.DefaultRotation.Len(), 1e-6)
	assert.Equal(t, []string{dir, filepath.Join(dir, "skins")}, s.TextureDirs)
	assert.Equal(t, "mdlkeyvalue { }", s.KeyValues)
	assert.True(t, s.Options.StoreUV)
	assert.True(t, s.Options.Collapse)

	require.Len(t, s.BodyParts, 1)
	bp := s.BodyParts[0]
	require.Len(t, bp.Models, 2)
	assert.Equal(t, "ref", bp.Models[0].Name)
	assert.Equal(t, "blank", bp.Models[1].Name)
	assert.Nil(t, bp.Models[1].Source)
	mesh := bp.Models[0].Source
	require.NotNil(t, mesh)
	require.Equal(t, []*studio.SourceModel{mesh}, s.Models)
	assert.InDelta(t, 20, mesh.Frames[0][1].Pos[2], 1e-5)

	require.Len(t, s.Textures, 2)
	assert.NotZero(t, s.Textures[0].Flags&studio.STUDIO_NF_MASKED)
	assert.Equal(t, 0, s.Textures[1].Parent)
	assert.Equal(t, 1, s.NumSkinRef)
	assert.Equal(t, [][]int{{0}, {1}}, s.SkinFamilies)

	require.Len(t, s.Attachments, 1)
	assert.Equal(t, mgl32.Vec3{2, 0, 0}, utils.MatrixPosition(s.Attachments[0].Local))
	require.Len(t, s.BoneControllers, 1)
	assert.Equal(t, studio.STUDIO_ZR|studio.STUDIO_RLOOP, s.BoneControllers[0].Type)
	require.Len(t, s.ScreenAligned, 2)
	assert.Equal(t, studio.ScreenAlignedBone{Name: "spine", Flags: studio.BONE_SCREEN_ALIGN_SPHERE}, *s.ScreenAligned[0])
	assert.Equal(t, studio.ScreenAlignedBone{Name: "root", Flags: studio.BONE_SCREEN_ALIGN_CYLINDER}, *s.ScreenAligned[1])
	require.Len(t, s.HitboxSets, 1)
	assert.Equal(t, mgl32.Vec3{2, 2, 4}, s.HitboxSets[0].Hitboxes[0].Max)
	assert.Equal(t, float32(360), s.PoseParams[0].Loop)
	assert.Equal(t, studio.STUDIO_LOOPING, s.PoseParams[0].Flags)
	assert.Zero(t, s.PoseParams[1].Flags)
	assert.Equal(t, float32(18), s.IKChains[0].Height)
	require.Len(t, s.IKAutoplayLocks, 1)
	assert.Equal(t, float32(0.5), s.IKAutoplayLocks[0].LocalQWeight)
	assert.Equal(t, float32(1), s.Weightlists[0].Bones[0].PosWeight)

	require.Len(t, s.Procedural, 1)
	jiggle, ok := s.Procedural[0].(*studio.JiggleBone)
	require.True(t, ok)
	assert.Equal(t, studio.JIGGLE_IS_FLEXIBLE|studio.JIGGLE_HAS_YAW_CONSTRAINT|studio.JIGGLE_IS_BOING, jiggle.Flags)
	assert.InDelta(t, math.Pi/4, jiggle.MaxYaw, 1e-6)

	require.Len(t, s.Animations, 3)
	walkA, walkB := s.Animations[0], s.Animations[1]
	assert.Equal(t, float32(24), walkA.Fps)
	assert.True(t, walkA.IsLooping())
	assert.Equal(t, studio.STUDIO_LX, walkA.MotionType)
	assert.Equal(t, 1, walkB.EndFrame)
	assert.Same(t, walkA.Source, walkB.Source)
	assert.NotSame(t, mesh, walkA.Source)
	assert.InDelta(t, 4, walkA.Source.Frames[2][0].Pos[0], 1e-5)

	require.Len(t, walkA.Commands, 2)
	assert.Equal(t, &studio.CmdWeightList{Name: "upper"}, walkA.Commands[0])
	rule, ok := walkA.Commands[1].(*studio.CmdIKRule)
	require.True(t, ok)
	assert.Equal(t, studio.IK_GROUND, rule.Rule.Type)
	assert.Equal(t, "lfoot", rule.Rule.ChainName)
	assert.Equal(t, 2, rule.Rule.End)
	assert.Equal(t, -1, rule.Rule.Contact)

	require.Len(t, s.Sequences, 2)
	walk := s.Sequences[0]
	assert.Equal(t, [2]int{2, 1}, walk.GroupSize)
	assert.Equal(t, 1, walk.PoseParam[0])
	assert.Equal(t, studio.STUDIO_LOOPING|studio.STUDIO_ACTIVITY|studio.STUDIO_EVENT|studio.STUDIO_CYCLEPOSE, walk.Flags)
	assert.Equal(t, 0, walk.CyclePose)
	assert.Equal(t, 1, walk.EntryNode)
	assert.Equal(t, 1, walk.ExitNode)
	require.Len(t, walk.Autolayers, 1)
	assert.Equal(t, "idle", walk.Autolayers[0].Name)
	assert.Equal(t, studio.STUDIO_AL_SPLINE|studio.STUDIO_AL_POSE, walk.Autolayers[0].Flags)

	idle := s.Sequences[1]
	require.Len(t, idle.Anims, 1)
	assert.Equal(t, "idle", idle.Anims[0].Name)
	assert.Equal(t, 1, idle.EntryNode)
	assert.Equal(t, 2, idle.ExitNode)
	assert.Equal(t, studio.NODE_REVERSE, idle.NodeFlags)
	assert.Equal(t, []string{"stand", "crouch"}, s.Nodes)
	assert.Equal(t, []*studio.Transition{{Entry: "crouch", Exit: "stand"}}, s.Transitions)
}

func TestDefaultRotation(t *testing.T) {
	s, err := build(t, `
modelname: offset
origin: [0, 0, 5]
bodygroups:
  - name: body
    models: [{file: offset.smd}]
sequences:
  - {name: idle, animation: {file: offset.smd}}
`, map[string]string{"offset.smd": offsetSMD})
	require.NoError(t, err)

	assert.InDelta(t, math.Pi/2, s.DefaultRotation[2], 1e-6)
	mesh := s.Models[0]
	assert.Equal(t, "offset", s.BodyParts[0].Models[0].Name)
	root := mesh.Frames[0][0].Pos
	assert.InDelta(t, 0, root[0], 1e-5)
	assert.InDelta(t, 3, root[1], 1e-5)
	assert.InDelta(t, -5, root[2], 1e-5)
	for _, v := range mesh.Vertices {
		assert.InDelta(t, 4, v.Pos[1], 1e-5)
		assert.InDelta(t, 0, v.Normal[0], 1e-5)
	}

	a := s.Animations[0]
	assert.Equal(t, mgl32.Vec3{0, 0, 5}, a.Adjust)
	assert.Equal(t, s.DefaultRotation, a.Rotation)
	// animation frames stay in source space, remapping applies the root transform
	assert.Equal(t, mgl32.Vec3{3, 0, 0}, a.Source.Frames[0][0].Pos)
}

func TestOptionOverrides(t *testing.T) {
	s, err := build(t, `
modelname: plain
collapse: false
realign: false
boneweights: true
cliptotextures: true
sequencegroupsize: 64
sequences:
  - {name: idle, animation: {file: walk.smd}}
`, map[string]string{"walk.smd": walkSMD})
	require.NoError(t, err)
	assert.False(t, s.Options.Collapse)
	assert.False(t, s.Options.Realign)
	assert.True(t, s.Options.BoneWeights)
	assert.True(t, s.Options.ClipTexCoords)
	assert.Equal(t, 64, s.Options.SequenceGroupSize)
}

func TestProceduralKinds(t *testing.T) {
	s, err := build(t, `
modelname: proc
procedural:
  - axisinterp:
      bone: elbow_helper
      control: elbow
      axis: y
      poses:
        - {origin: [1, 0, 0], angles: [0, 0, 90]}
  - quatinterp:
      bone: wrist_helper
      parent: forearm
      controlparent: forearm
      control: wrist
      triggers:
        - {tolerance: 90, trigger: [0, 0, 0], origin: [0, 1, 0]}
  - aimat:
      bone: eye
      parent: head
      aim: target
      aimvector: [1, 0, 0]
      upvector: [0, 0, 1]
sequences:
  - {name: idle, animation: {file: walk.smd}}
`, map[string]string{"walk.smd": walkSMD})
	require.NoError(t, err)
	require.Len(t, s.Procedural, 3)

	axis := s.Procedural[0].(*studio.AxisInterpBone)
	assert.Equal(t, 1, axis.Axis)
	assert.Equal(t, mgl32.Vec3{1, 0, 0}, axis.Pos[0])
	testutils.Quat(t, mgl32.Quat{W: math.Sqrt2 / 2, V: mgl32.Vec3{0, 0, math.Sqrt2 / 2}}, axis.Quat[0])
	testutils.Quat(t, mgl32.QuatIdent(), axis.Quat[1])
	testutils.Quat(t, mgl32.QuatIdent(), axis.Quat[5])

	quat := s.Procedural[1].(*studio.QuatInterpBone)
	require.Len(t, quat.Triggers, 1)
	assert.InDelta(t, math.Pi/2, quat.Triggers[0].Tolerance, 1e-6)

	aim := s.Procedural[2].(*studio.AimAtBone)
	assert.Equal(t, "target", aim.Aim)
	assert.Equal(t, -1, aim.AimAttach)
	assert.Equal(t, studio.STUDIO_PROC_AIMATBONE, aim.Kind())
}

func TestBuildErrors(t *testing.T) {
	files := map[string]string{"walk.smd": walkSMD}
	for _, tc := range []struct {
		text string
		want string
	}{
		{"sequences: []\n", "No modelname"},
		{"modelname: m\n", "no sequences"},
		{"modelname: m\nsequences:\n  - {name: s, animations: [missing]}\n", "Unknown animation"},
		{"modelname: m\nsequences:\n  - {name: s}\n", "No animations"},
		{"modelname: m\nanimations:\n  - {name: a, file: walk.smd}\n  - {name: A, file: walk.smd}\n", "Duplicate animation"},
		{"modelname: m\nanimations:\n  - {name: a, file: walk.smd, commands: [{angle: 5, derivative: 1}]}\n", "expected one"},
		{"modelname: m\nanimations:\n  - {name: a, file: walk.smd, commands: [{ikrule: {chain: c, type: sideways}}]}\n", "Unknown ikrule type"},
		{"modelname: m\nanimations:\n  - {name: a, file: walk.smd, motion: LW}\n", "Unknown motion type"},
		{"modelname: m\nanimations:\n  - {name: a, file: walk.smd, frames: [2, 1]}\n", "is empty"},
		{"modelname: m\nanimations:\n  - {name: a, file: missing.smd}\n", "missing.smd"},
		{"modelname: m\nanimations:\n  - {name: a, file: walk.smd}\nsequences:\n  - {name: s, animations: [a, a, a], blendwidth: 2}\n", "do not fill rows"},
		{"modelname: m\nanimations:\n  - {name: a, file: walk.smd}\nsequences:\n  - {name: s, animations: [a], blend: [{param: nope}]}\n", "Unknown pose parameter"},
		{"modelname: m\ncontrollers:\n  - {bone: b, type: LX}\n", "Bad controller type"},
		{"modelname: m\nprocedural:\n  - {}\n", "expected one"},
		{"modelname: m\nprocedural:\n  - jiggle: {bone: b}\n", "has no spring"},
		{"modelname: m\nprocedural:\n  - axisinterp: {bone: b, control: c, axis: x, poses: [{}, {}, {}, {}, {}, {}, {}]}\n", "at most 6"},
		{"modelname: m\nbodygroups:\n  - {name: empty}\n", "has no models"},
		{"modelname: m\nscreenalign:\n  - {bone: b, mode: plane}\n", "Unknown screenalign mode"},
		{"modelname: m\nscreenalign:\n  - {mode: sphere}\n", "screenalign without bone"},
	} {
		_, err := build(t, tc.text, files)
		if assert.Error(t, err, tc.text) {
			assert.Contains(t, err.Error(), tc.want, tc.text)
		}
	}
}

func TestDecodeErrors(t *testing.T) {
	_, err := Decode(strings.NewReader(""))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Empty")

	_, err = Decode(strings.NewReader("modelname: m\nmodelnmae: typo\n"))
	assert.Error(t, err)

	_, err = DecodeFile(filepath.Join(t.TempDir(), "none.yaml"))
	assert.Error(t, err)
}

package writer

import (
	"bytes"
	"encoding/binary"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mogaika/studiomdl/anim"
	"github.com/mogaika/studiomdl/config"
	"github.com/mogaika/studiomdl/studio"
	"github.com/mogaika/studiomdl/tristrip"
	"github.com/mogaika/studiomdl/utils"
)

func vertex(bone int) studio.ModelVertex {
	v := studio.ModelVertex{}
	for k := range v.Weights {
		v.Weights[k].Bone = -1
	}
	v.Weights[0] = studio.BoneWeight{Bone: bone, Weight: 1}
	return v
}

// two bones, one textured triangle and one three frame sequence
func testSession(t *testing.T) *studio.Session {
	s := studio.NewSession("test", *config.DefaultOptions())
	for _, b := range []*studio.GlobalBone{
		studio.NewGlobalBone("root", -1),
		studio.NewGlobalBone("head", 0),
	} {
		_, err := s.AddBone(b)
		require.NoError(t, err)
	}

	ti, err := s.AddTexture("skin.bmp")
	require.NoError(t, err)
	tex := s.Textures[ti]
	tex.Width, tex.Height = 8, 8
	tex.Data = make([]byte, 8*8+768)
	tex.Data[5] = 7

	sm := &studio.SourceModel{
		Name:  "ref",
		Verts: []studio.ModelVertex{vertex(0), vertex(0), vertex(1)},
		Norms: []studio.ModelVertex{vertex(0), vertex(0), vertex(1)},
	}
	sm.Verts[2].Pos[2] = 10
	mesh := &studio.SourceMesh{Skin: ti, NumNorms: 3}
	mesh.Triangles = [][3]studio.TriangleVert{{{Vert: 0, Norm: 0}, {Vert: 1, Norm: 1}, {Vert: 2, Norm: 2}}}
	sm.Meshes = []*studio.SourceMesh{mesh}
	require.NoError(t, s.AddBodyPart(&studio.BodyPart{
		Name:   "body",
		Models: []*studio.Model{{Name: "ref", Source: sm}},
	}))

	a := studio.NewAnimation("idle")
	a.NumFrames = 3
	a.Channels = make([][6]studio.AnimChannel, len(s.Bones))
	a.Channels[0][2] = anim.EncodeRLE([]int16{1, 2, 3})
	require.NoError(t, s.AddAnimation(a))

	seq := studio.NewSequence("idle")
	seq.Anims = []*studio.Animation{a}
	seq.Events = []*studio.Event{{Frame: 1, Event: 1004, Options: "step"}}
	require.NoError(t, s.AddSequence(seq))

	s.SeqGroups = []*studio.SeqGroup{{Label: "default"}}
	return s
}

func TestSerializeRoundTrip(t *testing.T) {
	s := testSession(t)
	s.KeyValues = "mdlkeyvalue { }"

	blobs, err := Serialize(s)
	require.NoError(t, err)
	require.Len(t, blobs, 1)
	assert.Equal(t, "test.mdl", blobs[0].Name)
	data := blobs[0].Data
	assert.Zero(t, len(data)%ALIGNMENT)

	info, err := Inspect(data)
	require.NoError(t, err)
	assert.Equal(t, "IDST", info.Ident)
	assert.Equal(t, studio.STUDIO_VERSION, info.Version)
	assert.Equal(t, "test", info.Name)
	assert.Equal(t, len(data), info.Length)

	require.Len(t, info.Bones, 2)
	assert.Equal(t, "root", info.Bones[0].Name)
	assert.Equal(t, "head", info.Bones[1].Name)
	assert.Equal(t, 0, info.Bones[1].Parent)

	require.Len(t, info.Sequences, 1)
	assert.Equal(t, "idle", info.Sequences[0].Name)
	assert.Equal(t, 3, info.Sequences[0].NumFrames)
	assert.Equal(t, 1, info.Sequences[0].NumBlends)
	assert.Equal(t, 1, info.Sequences[0].Events)
	assert.Equal(t, []SeqGroupInfo{{Label: "default"}}, info.SeqGroups)

	require.Len(t, info.Textures, 1)
	assert.Equal(t, "skin.bmp", info.Textures[0].Name)
	skin, err := info.Skin(data, 0)
	require.NoError(t, err)
	assert.Equal(t, s.Textures[0].Data, skin)
	_, err = info.Skin(data, 1)
	assert.Error(t, err)
	assert.Equal(t, [][]int{{0}}, info.SkinFamilies)
	assert.Equal(t, "mdlkeyvalue { }", info.KeyValues)

	require.Len(t, info.BodyParts, 1)
	bp := info.BodyParts[0]
	assert.Equal(t, "body", bp.Name)
	assert.Equal(t, 1, bp.Base)
	require.Len(t, bp.Models, 1)
	assert.Equal(t, 3, bp.Models[0].NumVerts)
	require.Len(t, bp.Models[0].Meshes, 1)
	m := bp.Models[0].Meshes[0]
	assert.Equal(t, 1, m.NumTris)
	strips := s.BodyParts[0].Models[0].Source.Meshes[0].Strips
	assert.Len(t, tristrip.Words(strips, false), m.Words)

	ch, err := info.Channel(data, 0, 0, 0, 2)
	require.NoError(t, err)
	assert.Equal(t, anim.EncodeRLE([]int16{1, 2, 3}), ch)
	for f, want := range []int16{1, 2, 3} {
		assert.Equal(t, want, anim.DecodeValue(ch, f))
	}
	ch, err = info.Channel(data, 0, 0, 1, 2)
	require.NoError(t, err)
	assert.Nil(t, ch)

	assert.NotEmpty(t, info.Layout.StringTree())
}

func TestSerializeSequenceGroups(t *testing.T) {
	s := testSession(t)
	s.SeqGroups = append(s.SeqGroups, &studio.SeqGroup{Label: "test01", Name: anim.GroupFileName(s, 1)})
	s.Sequences[0].Group = 1

	blobs, err := Serialize(s)
	require.NoError(t, err)
	require.Len(t, blobs, 2)
	assert.Equal(t, "test.mdl", blobs[0].Name)
	assert.Equal(t, "test01.mdl", blobs[1].Name)

	sat, err := Inspect(blobs[1].Data)
	require.NoError(t, err)
	assert.Equal(t, "IDSQ", sat.Ident)
	assert.Equal(t, anim.GroupFileName(s, 1), sat.Name)
	assert.Equal(t, len(blobs[1].Data), sat.Length)

	info, err := Inspect(blobs[0].Data)
	require.NoError(t, err)
	require.Len(t, info.SeqGroups, 2)
	assert.Equal(t, 1, info.Sequences[0].Group)

	ch, err := info.Channel(blobs[1].Data, 0, 0, 0, 2)
	require.NoError(t, err)
	assert.Equal(t, anim.EncodeRLE([]int16{1, 2, 3}), ch)
}

func TestSerializeSharesWeightBlocks(t *testing.T) {
	s := testSession(t)
	s.Weightlists = []*studio.Weightlist{{Name: "default"}}
	second := studio.NewSequence("idle2")
	second.Anims = s.Sequences[0].Anims
	require.NoError(t, s.AddSequence(second))
	s.Sequences[0].Weight = []float32{1, 0.5}
	s.Sequences[1].Weight = []float32{1, 0.5}

	blobs, err := Serialize(s)
	require.NoError(t, err)
	data := blobs[0].Data

	seqIndex := int(binary.LittleEndian.Uint32(data[168:]))
	first := binary.LittleEndian.Uint32(data[seqIndex+60:])
	next := binary.LittleEndian.Uint32(data[seqIndex+SEQDESC_SIZE+60:])
	assert.NotZero(t, first)
	assert.Equal(t, first, next)
}

func TestSerializeSequenceTooLarge(t *testing.T) {
	s := testSession(t)
	big := make(studio.AnimChannel, 40000)
	s.Animations[0].Channels[1][0] = big

	_, err := Serialize(s)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "greater than 64K")
}

func TestSerializeMeshWithoutTexture(t *testing.T) {
	s := testSession(t)
	s.BodyParts[0].Models[0].Source.Meshes[0].Skin = 5

	_, err := Serialize(s)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "has no texture")
}

func TestSerializeBlankModel(t *testing.T) {
	s := testSession(t)
	require.NoError(t, s.AddBodyPart(&studio.BodyPart{
		Name:   "hat",
		Models: []*studio.Model{{Name: "blank"}},
	}))

	blobs, err := Serialize(s)
	require.NoError(t, err)
	info, err := Inspect(blobs[0].Data)
	require.NoError(t, err)
	require.Len(t, info.BodyParts, 2)
	assert.Equal(t, "blank", info.BodyParts[1].Models[0].Name)
	assert.Zero(t, info.BodyParts[1].Models[0].NumVerts)
}

func TestArenaUnplacedLabel(t *testing.T) {
	a := NewArena(nil)
	a.Ref(a.NewLabel())
	_, err := a.Finish()
	assert.Error(t, err)
}

func TestArenaRelativeRefOverflow(t *testing.T) {
	a := NewArena(nil)
	l := a.NewLabel()
	a.RefFrom(l, 0)
	a.Reserve(0x10000)
	a.Mark(l)
	_, err := a.Finish()
	assert.Error(t, err)
}

func TestArenaRefs(t *testing.T) {
	a := NewArena(nil)
	l := a.NewLabel()
	a.I32(7)
	a.Ref(l)
	a.RefFrom(l, 4)
	a.Align()
	a.Mark(l)
	a.U8(1)

	data, err := a.Finish()
	require.NoError(t, err)
	assert.Equal(t, uint32(12), binary.LittleEndian.Uint32(data[4:]))
	assert.Equal(t, uint16(8), binary.LittleEndian.Uint16(data[8:]))
}

func TestArenaNameTruncates(t *testing.T) {
	var log bytes.Buffer
	a := NewArena(utils.NewLogger(&log))
	a.Name(strings.Repeat("x", 40), config.NAME_SIZE)

	data, err := a.Finish()
	require.NoError(t, err)
	require.Len(t, data, config.NAME_SIZE)
	assert.Zero(t, data[config.NAME_SIZE-1])
	assert.Contains(t, log.String(), "too long")
}

func TestRecordSizeMismatch(t *testing.T) {
	a := NewArena(nil)
	rec := a.Record("thing", 8)
	a.I32(1)
	rec.Done()

	_, err := a.Finish()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "took 4 bytes instead of 8")
}

func TestInspectRejectsGarbage(t *testing.T) {
	_, err := Inspect([]byte{1, 2, 3})
	assert.Error(t, err)

	data := make([]byte, SEQ_HEADER_SIZE)
	binary.LittleEndian.PutUint32(data, 0x12345678)
	binary.LittleEndian.PutUint32(data[4:], studio.STUDIO_VERSION)
	binary.LittleEndian.PutUint32(data[72:], SEQ_HEADER_SIZE)
	_, err = Inspect(data)
	assert.Error(t, err)
}

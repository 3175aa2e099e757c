package writer

import (
	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"

	"github.com/mogaika/studiomdl/config"
	"github.com/mogaika/studiomdl/studio"
	"github.com/mogaika/studiomdl/utils"
)

type BoneInfo struct {
	Name   string     `yaml:"name"`
	Parent int        `yaml:"parent"`
	Flags  int        `yaml:"flags,omitempty"`
	Pos    mgl32.Vec3 `yaml:"pos,flow"`
	Rot    mgl32.Vec3 `yaml:"rot,flow"`
}

type SequenceInfo struct {
	Name      string  `yaml:"name"`
	Fps       float32 `yaml:"fps"`
	Flags     int     `yaml:"flags,omitempty"`
	NumFrames int     `yaml:"frames"`
	NumBlends int     `yaml:"blends"`
	Group     int     `yaml:"group"`
	Events    int     `yaml:"events,omitempty"`
	AnimIndex int     `yaml:"-"`
}

type SeqGroupInfo struct {
	Label string `yaml:"label"`
	Name  string `yaml:"name"`
}

type TextureInfo struct {
	Name   string `yaml:"name"`
	Flags  uint32 `yaml:"flags,omitempty"`
	Width  int    `yaml:"width"`
	Height int    `yaml:"height"`
	// offset of the pixels followed by the palette
	Index int `yaml:"-"`
}

type MeshInfo struct {
	NumTris int `yaml:"tris"`
	Skin    int `yaml:"skin"`
	// command words up to the terminating 0
	Words int `yaml:"words"`
}

type ModelInfo struct {
	Name     string     `yaml:"name"`
	NumVerts int        `yaml:"verts"`
	NumNorms int        `yaml:"norms"`
	Meshes   []MeshInfo `yaml:"meshes,omitempty"`
}

type BodyPartInfo struct {
	Name   string      `yaml:"name"`
	Base   int         `yaml:"base"`
	Models []ModelInfo `yaml:"models"`
}

// Info is what Inspect could read back from a written file
type Info struct {
	Ident   string `yaml:"ident"`
	Version int    `yaml:"version"`
	Name    string `yaml:"name"`
	Length  int    `yaml:"length"`
	Flags   int    `yaml:"flags,omitempty"`

	Bones        []BoneInfo     `yaml:"bones,omitempty"`
	Controllers  int            `yaml:"controllers,omitempty"`
	Hitboxes     int            `yaml:"hitboxes,omitempty"`
	HitboxSets   int            `yaml:"hitboxsets,omitempty"`
	Attachments  []string       `yaml:"attachments,omitempty"`
	PoseParams   []string       `yaml:"poseparams,omitempty"`
	IKChains     []string       `yaml:"ikchains,omitempty"`
	IKLocks      int            `yaml:"iklocks,omitempty"`
	Sequences    []SequenceInfo `yaml:"sequences,omitempty"`
	SeqGroups    []SeqGroupInfo `yaml:"seqgroups,omitempty"`
	Textures     []TextureInfo  `yaml:"textures,omitempty"`
	NumSkinRef   int            `yaml:"skinrefs,omitempty"`
	SkinFamilies [][]int        `yaml:"skinfamilies,omitempty,flow"`
	BodyParts    []BodyPartInfo `yaml:"bodyparts,omitempty"`
	Transitions  int            `yaml:"transitions,omitempty"`
	KeyValues    string         `yaml:"keyvalues,omitempty"`

	// buffers the file was read through, see utils.BufStack.StringTree
	Layout *utils.BufStack `yaml:"-"`
}

func identString(v uint32) string {
	return string([]byte{byte(v), byte(v >> 8), byte(v >> 16), byte(v >> 24)})
}

// Inspect parses the tables of a model or sequence group file
func Inspect(data []byte) (info *Info, err error) {
	defer utils.Recover(&err)

	bs := utils.NewBufStack("file", data)
	info = &Info{Layout: bs}

	ident := bs.ReadLU32()
	info.Ident = identString(ident)
	info.Version = bs.ReadLI32()
	if info.Version != studio.STUDIO_VERSION {
		return nil, errors.Errorf("Unsupported version %d", info.Version)
	}
	info.Name = bs.ReadStringBuffer(config.LONG_NAME_SIZE)
	info.Length = bs.ReadLI32()
	if info.Length != len(data) {
		return nil, errors.Errorf("Length field %d does not match file size %d", info.Length, len(data))
	}

	switch ident {
	case studio.STUDIO_SEQ_IDENT:
		bs.SubBuf("seqheader", 0).SetSize(SEQ_HEADER_SIZE)
		return info, nil
	case studio.STUDIO_IDENT:
		bs.SubBuf("header", 0).SetSize(HEADER_SIZE)
	default:
		return nil, errors.Errorf("Unknown ident %q", info.Ident)
	}

	bs.Seek(76)
	bs.ReadVec3()
	// bbox, cbox
	bs.Skip(48)
	info.Flags = bs.ReadLI32()

	numBones, boneIndex := bs.ReadLI32(), bs.ReadLI32()
	info.Controllers, _ = bs.ReadLI32(), bs.ReadLI32()
	info.Hitboxes, _ = bs.ReadLI32(), bs.ReadLI32()
	numSeq, seqIndex := bs.ReadLI32(), bs.ReadLI32()
	numGroups, groupIndex := bs.ReadLI32(), bs.ReadLI32()
	numTextures, textureIndex := bs.ReadLI32(), bs.ReadLI32()
	bs.ReadLI32()
	numSkinRef, numFamilies, skinIndex := bs.ReadLI32(), bs.ReadLI32(), bs.ReadLI32()
	numBodyParts, bodyPartIndex := bs.ReadLI32(), bs.ReadLI32()
	numAttachments, attachmentIndex := bs.ReadLI32(), bs.ReadLI32()
	header2Index := bs.ReadLI32()
	info.Transitions = bs.ReadLI32()

	for i := 0; i < numBones; i++ {
		b := bs.SubBuf("bone", boneIndex+i*BONE_SIZE).SetSize(BONE_SIZE)
		bi := BoneInfo{Name: b.ReadStringBuffer(config.NAME_SIZE)}
		b.SetName(bi.Name)
		bi.Parent = b.ReadLI32()
		bi.Flags = b.ReadLI32()
		b.Skip(6 * 4)
		bi.Pos = b.ReadVec3()
		bi.Rot = b.ReadVec3()
		info.Bones = append(info.Bones, bi)
	}

	for i := 0; i < numAttachments; i++ {
		b := bs.SubBuf("attachment", attachmentIndex+i*ATTACHMENT_SIZE).SetSize(ATTACHMENT_SIZE)
		info.Attachments = append(info.Attachments, b.ReadStringBuffer(config.NAME_SIZE))
	}

	for i := 0; i < numSeq; i++ {
		b := bs.SubBuf("seqdesc", seqIndex+i*SEQDESC_SIZE).SetSize(SEQDESC_SIZE)
		si := SequenceInfo{Name: b.ReadStringBuffer(config.NAME_SIZE)}
		b.SetName(si.Name)
		si.Fps = b.ReadLF()
		si.Flags = b.ReadLI32()
		b.Seek(48)
		si.Events = b.ReadLI32()
		b.Seek(56)
		si.NumFrames = b.ReadLI32()
		b.Seek(116)
		si.NumBlends = b.ReadLI32()
		si.AnimIndex = b.ReadLI32()
		b.Seek(172)
		si.Group = b.ReadLI32()
		info.Sequences = append(info.Sequences, si)
	}

	for i := 0; i < numGroups; i++ {
		b := bs.SubBuf("seqgroup", groupIndex+i*SEQGROUP_SIZE).SetSize(SEQGROUP_SIZE)
		info.SeqGroups = append(info.SeqGroups, SeqGroupInfo{
			Label: b.ReadStringBuffer(config.NAME_SIZE),
			Name:  b.ReadStringBuffer(config.LONG_NAME_SIZE),
		})
	}

	for i := 0; i < numTextures; i++ {
		b := bs.SubBuf("texture", textureIndex+i*TEXTURE_SIZE).SetSize(TEXTURE_SIZE)
		ti := TextureInfo{Name: b.ReadStringBuffer(config.LONG_NAME_SIZE)}
		b.SetName(ti.Name)
		ti.Flags = b.ReadLU32()
		ti.Width = b.ReadLI32()
		ti.Height = b.ReadLI32()
		ti.Index = b.ReadLI32()
		info.Textures = append(info.Textures, ti)
	}

	info.NumSkinRef = numSkinRef
	skins := bs.SubBuf("skins", skinIndex).SetSize(numSkinRef * numFamilies * 2)
	for i := 0; i < numFamilies; i++ {
		family := make([]int, numSkinRef)
		for j := range family {
			family[j] = skins.ReadLI16()
		}
		info.SkinFamilies = append(info.SkinFamilies, family)
	}

	for i := 0; i < numBodyParts; i++ {
		b := bs.SubBuf("bodypart", bodyPartIndex+i*BODYPART_SIZE).SetSize(BODYPART_SIZE)
		bp := BodyPartInfo{Name: b.ReadStringBuffer(config.LONG_NAME_SIZE)}
		b.SetName(bp.Name)
		numModels := b.ReadLI32()
		bp.Base = b.ReadLI32()
		modelIndex := b.ReadLI32()
		for j := 0; j < numModels; j++ {
			bp.Models = append(bp.Models, readModel(bs, modelIndex+j*MODEL_SIZE))
		}
		info.BodyParts = append(info.BodyParts, bp)
	}

	h2 := bs.SubBuf("header2", header2Index).SetSize(HEADER2_SIZE)
	numPoseParams, poseParamIndex := h2.ReadLI32(), h2.ReadLI32()
	info.IKLocks, _ = h2.ReadLI32(), h2.ReadLI32()
	numChains, chainIndex := h2.ReadLI32(), h2.ReadLI32()
	kvSize, kvIndex := h2.ReadLI32(), h2.ReadLI32()
	info.HitboxSets = h2.ReadLI32()

	for i := 0; i < numPoseParams; i++ {
		b := bs.SubBuf("poseparam", poseParamIndex+i*POSEPARAM_SIZE).SetSize(POSEPARAM_SIZE)
		info.PoseParams = append(info.PoseParams, b.ReadStringBuffer(config.NAME_SIZE))
	}
	for i := 0; i < numChains; i++ {
		b := bs.SubBuf("ikchain", chainIndex+i*IKCHAIN_SIZE).SetSize(IKCHAIN_SIZE)
		info.IKChains = append(info.IKChains, b.ReadStringBuffer(config.NAME_SIZE))
	}
	if kvIndex != 0 {
		info.KeyValues = bs.SubBuf("keyvalues", kvIndex).SetSize(kvSize).ReadZString(kvSize)
	}

	return info, nil
}

func readModel(bs *utils.BufStack, offset int) ModelInfo {
	b := bs.SubBuf("model", offset).SetSize(MODEL_SIZE)
	mi := ModelInfo{Name: b.ReadStringBuffer(config.LONG_NAME_SIZE)}
	b.SetName(mi.Name)
	// type, radius
	b.Skip(8)
	numMeshes, meshIndex := b.ReadLI32(), b.ReadLI32()
	mi.NumVerts = b.ReadLI32()
	b.Skip(8)
	mi.NumNorms = b.ReadLI32()

	for i := 0; i < numMeshes; i++ {
		m := bs.SubBuf("mesh", meshIndex+i*MESH_SIZE).SetSize(MESH_SIZE)
		info := MeshInfo{NumTris: m.ReadLI32()}
		cmdIndex := m.ReadLI32()
		info.Skin = m.ReadLI32()

		cmds := bs.SubBuf("cmds", cmdIndex)
		for {
			n := cmds.ReadLI16()
			info.Words++
			if n == 0 {
				break
			}
			if n < 0 {
				n = -n
			}
			// each vertex is vert, norm, s, t
			cmds.Skip(n * 4 * 2)
			info.Words += n * 4
		}
		cmds.SetSize(cmds.Pos())
		mi.Meshes = append(mi.Meshes, info)
	}
	return mi
}

// Skin returns the packed pixels and palette of texture i
func (info *Info) Skin(data []byte, i int) ([]byte, error) {
	if i < 0 || i >= len(info.Textures) {
		return nil, errors.Errorf("No texture %d", i)
	}
	ti := &info.Textures[i]
	end := ti.Index + ti.Width*ti.Height + 256*3
	if ti.Index <= 0 || end > len(data) {
		return nil, errors.Errorf("Texture %q data is out of file", ti.Name)
	}
	return data[ti.Index:end], nil
}

// Channel reads back one encoded channel of sequence seq. data must be the
// file holding the group of seq.
func (info *Info) Channel(data []byte, seq, blend, bone, channel int) (ch studio.AnimChannel, err error) {
	defer utils.Recover(&err)

	if seq < 0 || seq >= len(info.Sequences) {
		return nil, errors.Errorf("No sequence %d", seq)
	}
	si := &info.Sequences[seq]
	if blend >= si.NumBlends || bone >= len(info.Bones) || channel >= 6 {
		return nil, errors.Errorf("No channel %d/%d/%d in %q", blend, bone, channel, si.Name)
	}

	bs := utils.NewBufStack("file", data)
	entry := si.AnimIndex + (blend*len(info.Bones)+bone)*ANIM_SIZE
	off := int(bs.LU16(entry + channel*2))
	if off == 0 {
		return nil, nil
	}

	vs := bs.SubBuf("animvalue", entry+off)
	for frame := 0; frame < si.NumFrames; {
		h := vs.ReadLU16()
		ch = append(ch, h)
		for i := 0; i < int(h&0xff); i++ {
			ch = append(ch, vs.ReadLU16())
		}
		if h>>8 == 0 {
			return nil, errors.Errorf("Empty run in channel %d of bone %d", channel, bone)
		}
		frame += int(h >> 8)
	}
	return ch, nil
}

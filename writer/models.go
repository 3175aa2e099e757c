package writer

import (
	"math"

	"github.com/pkg/errors"

	"github.com/mogaika/studiomdl/config"
	"github.com/mogaika/studiomdl/studio"
	"github.com/mogaika/studiomdl/tristrip"
)

// skinTable returns the skin reference count and the families, one identity
// family when no texture groups were declared
func skinTable(s *studio.Session) (int, [][]int) {
	if len(s.SkinFamilies) != 0 {
		return s.NumSkinRef, s.SkinFamilies
	}
	family := make([]int, len(s.Textures))
	for i := range family {
		family[i] = i
	}
	return len(s.Textures), [][]int{family}
}

type modelLabels struct {
	meshes, vertInfo, normInfo, blendVerts, blendNorms, verts, norms Label
}

func (w *writer) boneWeights(vs []studio.ModelVertex) {
	a := w.a
	for _, v := range vs {
		rec := a.Record("boneweight", BONEWEIGHT_SIZE)
		for k := 0; k < config.MAX_BONE_WEIGHTS; k++ {
			if v.Weights[k].Bone == -1 {
				a.U8(0)
			} else {
				a.U8(byte(math.Round(float64(v.Weights[k].Weight) * 255)))
			}
		}
		for k := 0; k < config.MAX_BONE_WEIGHTS; k++ {
			a.U8(byte(int8(v.Weights[k].Bone)))
		}
		rec.Done()
	}
	a.Align()
}

func (w *writer) bodyParts() error {
	a := w.a
	s := w.s
	blend := w.flags&studio.STUDIO_HAS_BONEWEIGHTS != 0

	var models []*studio.Model
	a.Mark(w.sec.bodyParts)
	// model records follow the body part table back to back
	modelTable := a.Len() + len(s.BodyParts)*BODYPART_SIZE
	for _, bp := range s.BodyParts {
		rec := a.Record("bodypart", BODYPART_SIZE)
		a.Name(bp.Name, config.LONG_NAME_SIZE)
		a.I32(len(bp.Models))
		a.I32(bp.Base)
		a.I32(modelTable + len(models)*MODEL_SIZE)
		rec.Done()
		models = append(models, bp.Models...)
	}

	labels := make([]modelLabels, len(models))
	for i, m := range models {
		l := &labels[i]
		for _, p := range []*Label{&l.meshes, &l.vertInfo, &l.normInfo, &l.blendVerts, &l.blendNorms, &l.verts, &l.norms} {
			*p = a.NewLabel()
		}
		sm := m.Source
		if sm == nil {
			sm = &studio.SourceModel{}
		}

		rec := a.Record("model", MODEL_SIZE)
		a.Name(m.Name, config.LONG_NAME_SIZE)
		// type
		a.I32(0)
		a.F32(sm.BoundingRadius)
		a.I32(len(sm.Meshes))
		a.Ref(l.meshes)
		a.I32(len(sm.Verts))
		a.Ref(l.vertInfo)
		a.Ref(l.verts)
		a.I32(len(sm.Norms))
		a.Ref(l.normInfo)
		a.Ref(l.norms)
		a.OptRef(l.blendVerts, blend)
		a.OptRef(l.blendNorms, blend)
		rec.Done()
	}
	a.Align()

	totalTris, totalCmds := 0, 0
	for i, m := range models {
		l := &labels[i]
		sm := m.Source
		if sm == nil {
			sm = &studio.SourceModel{}
		}

		a.Mark(l.vertInfo)
		for _, v := range sm.Verts {
			a.U8(byte(v.Bone()))
		}
		a.Align()
		a.Mark(l.normInfo)
		for _, n := range sm.Norms {
			a.U8(byte(n.Bone()))
		}
		a.Align()

		if blend {
			a.Mark(l.blendVerts)
			w.boneWeights(sm.Verts)
			a.Mark(l.blendNorms)
			w.boneWeights(sm.Norms)
		}

		a.Mark(l.verts)
		for _, v := range sm.Verts {
			a.Vec3(v.Pos)
		}
		a.Align()
		a.Mark(l.norms)
		for _, n := range sm.Norms {
			a.Vec3(n.Pos)
		}
		a.Align()

		a.Mark(l.meshes)
		cmds := make([]Label, len(sm.Meshes))
		for j, mesh := range sm.Meshes {
			cmds[j] = a.NewLabel()
			rec := a.Record("mesh", MESH_SIZE)
			a.I32(len(mesh.Triangles))
			a.Ref(cmds[j])
			a.I32(mesh.Skin)
			a.I32(mesh.NumNorms)
			a.I32(mesh.NormIndex)
			rec.Done()
		}
		a.Align()

		for j, mesh := range sm.Meshes {
			if mesh.Skin < 0 || mesh.Skin >= len(s.Textures) {
				return errors.Errorf("Mesh %d of %q has no texture", j, m.Name)
			}
			if mesh.Strips == nil && len(mesh.Triangles) != 0 {
				mesh.Strips = tristrip.Build(mesh.Triangles)
			}
			useUV := s.Textures[mesh.Skin].Flags&studio.STUDIO_NF_UV_COORDS != 0

			a.Mark(cmds[j])
			for _, word := range tristrip.Words(mesh.Strips, useUV) {
				a.I16(word)
			}
			a.Align()
			totalTris += len(mesh.Triangles)
			totalCmds += len(mesh.Strips)
		}
	}
	s.Log.Printf("mesh %d tris, %d strips", totalTris, totalCmds)
	return nil
}

func (w *writer) textures() {
	a := w.a
	s := w.s

	dataAt := make([]int, 0, len(s.Textures))
	a.Mark(w.sec.textures)
	for _, t := range s.Textures {
		rec := a.Record("texture", TEXTURE_SIZE)
		a.Name(t.Name, config.LONG_NAME_SIZE)
		a.U32(t.Flags)
		a.I32(t.Width)
		a.I32(t.Height)
		// patched once the data is placed after the skin table
		dataAt = append(dataAt, a.Reserve(4))
		rec.Done()
	}
	a.Align()

	numSkinRef, families := skinTable(s)
	a.Mark(w.sec.skins)
	for _, family := range families {
		for j := 0; j < numSkinRef; j++ {
			a.I16(int16(family[j]))
		}
	}
	a.Align()

	a.Mark(w.sec.textureData)
	for i, t := range s.Textures {
		a.PatchI32(dataAt[i], a.Len())
		a.Bytes(t.Data)
	}
	a.Align()
}

package texture

import (
	"strings"

	"github.com/pkg/errors"

	"github.com/mogaika/studiomdl/config"
	"github.com/mogaika/studiomdl/studio"
)

// LinkModel points every mesh of sm at the session texture named by its material
func LinkModel(s *studio.Session, sm *studio.SourceModel) error {
	if len(sm.Meshes) > config.MAX_MESHES {
		return errors.Errorf("Too many meshes in model %q, limit is %d", sm.Name, config.MAX_MESHES)
	}
	for _, mesh := range sm.Meshes {
		name := "#white.bmp"
		if mesh.Material >= 0 && mesh.Material < len(sm.Materials) && sm.Materials[mesh.Material] != "" {
			name = sm.Materials[mesh.Material]
		}
		k, err := s.AddTexture(name)
		if err != nil {
			return err
		}
		mesh.Skin = k
	}
	return nil
}

// SetRenderMode applies a named render mode to the texture called name
func SetRenderMode(s *studio.Session, name, mode string) error {
	k, err := s.AddTexture(name)
	if err != nil {
		return err
	}
	t := s.Textures[k]

	mode = strings.ToLower(mode)
	if mode == "nosmooth" {
		t.Flags &^= studio.STUDIO_NF_SMOOTH
		return nil
	}
	flags, ok := studio.RenderMode(mode)
	if !ok {
		s.Log.Warnf("texture %q has unknown render mode %q", t.Name, mode)
		return nil
	}
	t.Flags |= flags
	return nil
}

// AddGroup declares skin families. Row 0 lists textures used by the meshes,
// every other row the textures replacing them in one more family.
func AddGroup(s *studio.Session, rows [][]string) error {
	if len(s.Textures) == 0 {
		return errors.Errorf("texturegroups must follow model loading")
	}
	if len(rows) == 0 {
		return nil
	}
	if len(rows) > config.MAX_SKIN_FAMILIES {
		return errors.Errorf("Too many skin families, limit is %d", config.MAX_SKIN_FAMILIES)
	}
	if s.NumSkinRef == 0 {
		s.NumSkinRef = len(s.Textures)
	}

	group := make([][]int, len(rows))
	for i, row := range rows {
		if len(row) != len(rows[0]) {
			return errors.Errorf("Texture group row %d has %d textures, expected %d", i, len(row), len(rows[0]))
		}
		group[i] = make([]int, len(row))
		for j, name := range row {
			k, err := s.AddTexture(name)
			if err != nil {
				return err
			}
			group[i][j] = k
			if i != 0 {
				s.Textures[k].Parent = group[0][j]
			}
		}
	}

	for _, base := range group[0] {
		if base >= s.NumSkinRef {
			return errors.Errorf("Texture %q of a texture group is not used by any mesh", s.Textures[base].Name)
		}
	}

	for len(s.SkinFamilies) < len(group) {
		s.SkinFamilies = append(s.SkinFamilies, identity(s.NumSkinRef))
	}
	for i := range group {
		for j, base := range group[0] {
			s.SkinFamilies[i][base] = group[i][j]
		}
	}
	return nil
}

func identity(n int) []int {
	r := make([]int, n)
	for i := range r {
		r[i] = i
	}
	return r
}

func finishFamilies(s *studio.Session) {
	if len(s.SkinFamilies) == 0 {
		s.NumSkinRef = len(s.Textures)
		s.SkinFamilies = [][]int{identity(s.NumSkinRef)}
	}
}

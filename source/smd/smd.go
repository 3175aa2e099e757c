// Package smd reads studio model data text files: a node list, keyframed
// skeleton poses and weighted triangles.
package smd

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"

	"github.com/mogaika/studiomdl/source"
	"github.com/mogaika/studiomdl/studio"
)

type parser struct {
	lines []*line
	pos   int
	model *studio.SourceModel
}

func (p *parser) next() *line {
	if p.pos >= len(p.lines) {
		return nil
	}
	l := p.lines[p.pos]
	p.pos++
	return l
}

func Load(path string) (*studio.SourceModel, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "Failed to read %q", path)
	}
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	sm, err := Parse(name, data)
	if err != nil {
		return nil, errors.Wrapf(err, "Failed to parse %q", path)
	}
	sm.Path = path
	return sm, nil
}

func Parse(name string, data []byte) (*studio.SourceModel, error) {
	lines, err := tokenize(data)
	if err != nil {
		return nil, err
	}

	p := &parser{
		lines: lines,
		model: &studio.SourceModel{Name: name},
	}

	for l := p.next(); l != nil; l = p.next() {
		switch strings.ToLower(l.Word(0)) {
		case "version":
			v, err := l.Int(1)
			if err != nil {
				return nil, err
			}
			if v != 1 {
				return nil, errors.Errorf("Line %d: unsupported version %d", l.Number, v)
			}
		case "nodes":
			err = p.parseNodes()
		case "skeleton":
			err = p.parseSkeleton()
		case "triangles":
			err = p.parseTriangles()
		default:
			err = p.skipBlock(l)
		}
		if err != nil {
			return nil, err
		}
	}

	if len(p.model.Nodes) == 0 {
		return nil, errors.Errorf("No nodes")
	}
	if len(p.model.Frames) == 0 {
		return nil, errors.Errorf("No skeleton frames")
	}
	return p.model, nil
}

// skipBlock ignores unknown sections up to their end
func (p *parser) skipBlock(start *line) error {
	if start.Len() != 1 {
		return errors.Errorf("Line %d: unexpected %q", start.Number, start.Word(0))
	}
	for l := p.next(); l != nil; l = p.next() {
		if strings.EqualFold(l.Word(0), "end") {
			return nil
		}
	}
	return errors.Errorf("Line %d: unterminated block %q", start.Number, start.Word(0))
}

func (p *parser) parseNodes() error {
	for l := p.next(); l != nil; l = p.next() {
		if strings.EqualFold(l.Word(0), "end") {
			return nil
		}
		index, err := l.Int(0)
		if err != nil {
			return err
		}
		name, err := l.Text(1)
		if err != nil {
			return err
		}
		parent, err := l.Int(2)
		if err != nil {
			return err
		}
		if index != len(p.model.Nodes) {
			return errors.Errorf("Line %d: node %d out of order", l.Number, index)
		}
		if parent >= index {
			return errors.Errorf("Line %d: node %q has parent %d declared after it", l.Number, name, parent)
		}
		if p.model.FindNode(name) != -1 {
			return errors.Errorf("Line %d: duplicated node %q", l.Number, name)
		}
		p.model.Nodes = append(p.model.Nodes, studio.SourceNode{Name: name, Parent: parent})
	}
	return errors.Errorf("Unterminated nodes block")
}

func (p *parser) parseSkeleton() error {
	var frame []studio.BonePose
	lastTime := -1
	numNodes := len(p.model.Nodes)

	flush := func() {
		if frame != nil {
			p.model.Frames = append(p.model.Frames, frame)
		}
	}

	for l := p.next(); l != nil; l = p.next() {
		switch strings.ToLower(l.Word(0)) {
		case "end":
			flush()
			return nil
		case "time":
			t, err := l.Int(1)
			if err != nil {
				return err
			}
			if t <= lastTime {
				return errors.Errorf("Line %d: time %d goes backwards", l.Number, t)
			}
			flush()
			// absent frames and bones keep the previous pose
			var prev []studio.BonePose
			if n := len(p.model.Frames); n != 0 {
				prev = p.model.Frames[n-1]
			}
			for lastTime+1 < t && prev != nil {
				p.model.Frames = append(p.model.Frames, append([]studio.BonePose(nil), prev...))
				lastTime++
			}
			frame = make([]studio.BonePose, numNodes)
			if prev != nil {
				copy(frame, prev)
			}
			lastTime = t
		default:
			if frame == nil {
				return errors.Errorf("Line %d: pose before time", l.Number)
			}
			bone, err := l.Int(0)
			if err != nil {
				return err
			}
			if bone < 0 || bone >= numNodes {
				return errors.Errorf("Line %d: unknown node %d", l.Number, bone)
			}
			v, err := l.Floats(1, 6)
			if err != nil {
				return err
			}
			frame[bone] = studio.BonePose{
				Pos: mgl32.Vec3{v[0], v[1], v[2]},
				Rot: mgl32.Vec3{v[3], v[4], v[5]},
			}
		}
	}
	return errors.Errorf("Unterminated skeleton block")
}

func (p *parser) parseTriangles() error {
	sm := p.model
	meshes := make(map[string]*studio.SourceMesh)

	for l := p.next(); l != nil; l = p.next() {
		if strings.EqualFold(l.Word(0), "end") {
			return nil
		}
		material, err := l.Text(0)
		if err != nil {
			return err
		}
		material = strings.ToLower(material)

		mesh, ok := meshes[material]
		if !ok {
			mesh = &studio.SourceMesh{Material: len(sm.Materials)}
			sm.Materials = append(sm.Materials, material)
			sm.Meshes = append(sm.Meshes, mesh)
			meshes[material] = mesh
		}

		var tri [3]studio.TriangleVert
		for i := range tri {
			vl := p.next()
			if vl == nil {
				return errors.Errorf("Line %d: truncated triangle", l.Number)
			}
			v, uv, err := p.parseVertex(vl)
			if err != nil {
				return err
			}
			v.Skin = mesh.Material
			tri[i] = studio.TriangleVert{Vert: len(sm.Vertices), Norm: len(sm.Vertices), UV: uv}
			sm.Vertices = append(sm.Vertices, v)
		}
		mesh.Triangles = append(mesh.Triangles, tri)
	}
	return errors.Errorf("Unterminated triangles block")
}

func (p *parser) parseVertex(l *line) (v studio.SourceVertex, uv mgl32.Vec2, err error) {
	bone, err := l.Int(0)
	if err != nil {
		return v, uv, err
	}
	if bone < 0 || bone >= len(p.model.Nodes) {
		return v, uv, errors.Errorf("Line %d: unknown node %d", l.Number, bone)
	}
	f, err := l.Floats(1, 8)
	if err != nil {
		return v, uv, err
	}
	uv = mgl32.Vec2{f[6], f[7]}
	v.Pos = mgl32.Vec3{f[0], f[1], f[2]}
	v.Normal = mgl32.Vec3{f[3], f[4], f[5]}
	if v.Normal.Len() > 1e-6 {
		v.Normal = v.Normal.Normalize()
	}

	if l.Len() <= 9 {
		v.Weights = []studio.BoneWeight{{Bone: bone, Weight: 1}}
		return v, uv, nil
	}

	links, err := l.Int(9)
	if err != nil {
		return v, uv, err
	}
	var sum float32
	for i := 0; i < links; i++ {
		b, err := l.Int(10 + i*2)
		if err != nil {
			return v, uv, err
		}
		if b < 0 || b >= len(p.model.Nodes) {
			return v, uv, errors.Errorf("Line %d: unknown weight node %d", l.Number, b)
		}
		w, err := l.Float(11 + i*2)
		if err != nil {
			return v, uv, err
		}
		sum += w
		v.Weights = append(v.Weights, studio.BoneWeight{Bone: b, Weight: w})
	}
	// what the links leave goes to the owning node
	if sum < 1 {
		v.Weights = append(v.Weights, studio.BoneWeight{Bone: bone, Weight: 1 - sum})
	}
	v.Weights = source.NormalizeWeights(v.Weights)
	return v, uv, nil
}

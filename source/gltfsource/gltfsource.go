// Package gltfsource turns a glTF skin, its meshes and its animations into sources
package gltfsource

import (
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"
	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"

	"github.com/mogaika/studiomdl/source"
	"github.com/mogaika/studiomdl/studio"
	"github.com/mogaika/studiomdl/utils"
	"github.com/mogaika/studiomdl/utils/gltfutils"
)

// Scene is a reference source with the mesh and one source per animation
type Scene struct {
	Reference  *studio.SourceModel
	Animations []*studio.SourceModel
}

// Take returns the animation source called name
func (s *Scene) Take(name string) *studio.SourceModel {
	for _, a := range s.Animations {
		if strings.EqualFold(a.Name, name) {
			return a
		}
	}
	return nil
}

func Load(path string) (*Scene, error) {
	doc, err := gltf.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "Failed to open gltf %q", path)
	}
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	scene, err := FromDocument(name, doc)
	if err != nil {
		return nil, errors.Wrapf(err, "Failed to convert gltf %q", path)
	}
	scene.Reference.Path = path
	for _, a := range scene.Animations {
		a.Path = path
	}
	return scene, nil
}

type converter struct {
	doc *gltf.Document
	// gltf node index to source node index
	nodeMap map[int]int
	parent  map[int]int
	model   *studio.SourceModel
	// per source node, transform from the parent bone to the gltf parent node
	offset []mgl32.Mat4
}

func FromDocument(name string, doc *gltf.Document) (*Scene, error) {
	c := &converter{
		doc:     doc,
		nodeMap: make(map[int]int),
		parent:  make(map[int]int),
		model:   &studio.SourceModel{Name: name},
	}
	for i, node := range doc.Nodes {
		for _, child := range node.Children {
			c.parent[int(child)] = i
		}
	}

	if err := c.collectNodes(); err != nil {
		return nil, err
	}
	c.buildOffsets()
	c.model.Frames = [][]studio.BonePose{c.pose(c.restState())}

	for i, node := range doc.Nodes {
		iMesh, ok := gltfutils.Index(node.Mesh)
		if !ok {
			continue
		}
		if err := c.addMesh(i, iMesh); err != nil {
			return nil, errors.Wrapf(err, "Failed to read mesh of node %q", node.Name)
		}
	}

	scene := &Scene{Reference: c.model}
	for _, anim := range doc.Animations {
		sm, err := c.convertAnimation(anim)
		if err != nil {
			return nil, errors.Wrapf(err, "Failed to read animation %q", anim.Name)
		}
		if sm != nil {
			scene.Animations = append(scene.Animations, sm)
		}
	}
	return scene, nil
}

// collectNodes picks the joints of the first skin, or every node without a skin,
// in depth first order so parents come first
func (c *converter) collectNodes() error {
	use := make(map[int]bool)
	if len(c.doc.Skins) != 0 {
		for _, j := range c.doc.Skins[0].Joints {
			use[int(j)] = true
		}
	} else {
		for i := range c.doc.Nodes {
			use[i] = true
		}
	}
	if len(use) == 0 {
		return errors.Errorf("No nodes")
	}

	var roots []int
	for i := range use {
		if c.usedParent(i, use) == -1 {
			roots = append(roots, i)
		}
	}
	sort.Ints(roots)

	var visit func(i, parent int)
	visit = func(i, parent int) {
		if use[i] {
			c.nodeMap[i] = len(c.model.Nodes)
			name := c.doc.Nodes[i].Name
			if name == "" {
				name = "node" + strconv.Itoa(i)
			}
			c.model.Nodes = append(c.model.Nodes, studio.SourceNode{Name: name, Parent: parent})
			parent = c.nodeMap[i]
		}
		for _, child := range c.doc.Nodes[i].Children {
			visit(int(child), parent)
		}
	}
	for _, r := range roots {
		visit(r, -1)
	}
	return nil
}

func (c *converter) usedParent(i int, use map[int]bool) int {
	for p, ok := c.parent[i]; ok; p, ok = c.parent[p] {
		if use[p] {
			return p
		}
	}
	return -1
}

// nodeToModel is the transform of gltf node i relative to the model, including
// ancestors that are not bones
func (c *converter) nodeToModel(i int) mgl32.Mat4 {
	pos, q := gltfutils.NodeTransform(c.doc.Nodes[i])
	m := utils.MatrixFromPosQuat(pos, q)
	if p, ok := c.parent[i]; ok {
		return c.nodeToModel(p).Mul4(m)
	}
	return m
}

func (c *converter) buildOffsets() {
	c.offset = make([]mgl32.Mat4, len(c.model.Nodes))
	for gi, si := range c.nodeMap {
		off := mgl32.Ident4()
		if p, ok := c.parent[gi]; ok {
			off = c.nodeToModel(p)
		}
		if pb := c.model.Nodes[si].Parent; pb != -1 {
			off = utils.RigidInverse(c.nodeToModel(c.gltfNode(pb))).Mul4(off)
		}
		c.offset[si] = off
	}
}

// nodeState is the gltf local transform of every bone, indexed by source node
type nodeState struct {
	pos []mgl32.Vec3
	rot []mgl32.Quat
}

func (c *converter) restState() nodeState {
	st := nodeState{
		pos: make([]mgl32.Vec3, len(c.model.Nodes)),
		rot: make([]mgl32.Quat, len(c.model.Nodes)),
	}
	for gi, si := range c.nodeMap {
		st.pos[si], st.rot[si] = gltfutils.NodeTransform(c.doc.Nodes[gi])
	}
	return st
}

func (c *converter) pose(st nodeState) []studio.BonePose {
	pose := make([]studio.BonePose, len(c.model.Nodes))
	for si := range pose {
		pose[si] = studio.PoseFromMatrix(c.offset[si].Mul4(utils.MatrixFromPosQuat(st.pos[si], st.rot[si])))
	}
	return pose
}

func (c *converter) gltfNode(sourceNode int) int {
	for gi, si := range c.nodeMap {
		if si == sourceNode {
			return gi
		}
	}
	return -1
}

func (c *converter) material(prim *gltf.Primitive) string {
	iMat, ok := gltfutils.Index(prim.Material)
	if !ok || iMat >= len(c.doc.Materials) {
		return "default"
	}
	mat := c.doc.Materials[iMat]
	if pbr := mat.PBRMetallicRoughness; pbr != nil && pbr.BaseColorTexture != nil {
		iTex := int(pbr.BaseColorTexture.Index)
		if iTex < len(c.doc.Textures) {
			if iImg, ok := gltfutils.Index(c.doc.Textures[iTex].Source); ok && iImg < len(c.doc.Images) {
				if uri := c.doc.Images[iImg].URI; uri != "" && !strings.HasPrefix(uri, "data:") {
					return strings.ToLower(uri)
				}
			}
		}
	}
	if mat.Name != "" {
		return strings.ToLower(mat.Name)
	}
	return "material" + strconv.Itoa(iMat)
}

func (c *converter) addMesh(iNode, iMesh int) error {
	doc := c.doc
	node := doc.Nodes[iNode]
	sm := c.model

	var joints []uint32
	iSkin, skinned := gltfutils.Index(node.Skin)
	if skinned {
		joints = doc.Skins[iSkin].Joints
	}

	// rigid meshes are placed by their node and follow the nearest bone
	owner := 0
	toModel := mgl32.Ident4()
	if !skinned {
		toModel = c.nodeToModel(iNode)
		for i := iNode; ; {
			if si, ok := c.nodeMap[i]; ok {
				owner = si
				break
			}
			p, ok := c.parent[i]
			if !ok {
				break
			}
			i = p
		}
	}

	for _, prim := range doc.Meshes[iMesh].Primitives {
		if prim.Mode != gltf.PrimitiveTriangles {
			continue
		}
		iPos, ok := prim.Attributes["POSITION"]
		if !ok {
			continue
		}
		positions, err := modeler.ReadPosition(doc, doc.Accessors[iPos], nil)
		if err != nil {
			return errors.Wrapf(err, "Failed to read positions")
		}
		var normals [][3]float32
		if iNorm, ok := prim.Attributes["NORMAL"]; ok {
			if normals, err = modeler.ReadNormal(doc, doc.Accessors[iNorm], nil); err != nil {
				return errors.Wrapf(err, "Failed to read normals")
			}
		}
		var uvs [][2]float32
		if iUV, ok := prim.Attributes["TEXCOORD_0"]; ok {
			if uvs, err = modeler.ReadTextureCoord(doc, doc.Accessors[iUV], nil); err != nil {
				return errors.Wrapf(err, "Failed to read uvs")
			}
		}
		var vjoints [][4]uint16
		var vweights [][4]float32
		if skinned {
			iJ, okJ := prim.Attributes["JOINTS_0"]
			iW, okW := prim.Attributes["WEIGHTS_0"]
			if !okJ || !okW {
				return errors.Errorf("Skinned primitive without JOINTS_0/WEIGHTS_0")
			}
			if vjoints, err = modeler.ReadJoints(doc, doc.Accessors[iJ], nil); err != nil {
				return errors.Wrapf(err, "Failed to read joints")
			}
			if vweights, err = modeler.ReadWeights(doc, doc.Accessors[iW], nil); err != nil {
				return errors.Wrapf(err, "Failed to read weights")
			}
		}

		var indices []uint32
		if iInd, ok := gltfutils.Index(prim.Indices); ok {
			if indices, err = modeler.ReadIndices(doc, doc.Accessors[iInd], nil); err != nil {
				return errors.Wrapf(err, "Failed to read indices")
			}
		} else {
			indices = make([]uint32, len(positions))
			for i := range indices {
				indices[i] = uint32(i)
			}
		}

		matName := c.material(prim)
		var mesh *studio.SourceMesh
		for i, name := range sm.Materials {
			if name == matName {
				mesh = sm.Meshes[i]
			}
		}
		if mesh == nil {
			mesh = &studio.SourceMesh{Material: len(sm.Materials)}
			sm.Materials = append(sm.Materials, matName)
			sm.Meshes = append(sm.Meshes, mesh)
		}

		base := len(sm.Vertices)
		for i, p := range positions {
			v := studio.SourceVertex{
				Pos:  utils.TransformPoint(toModel, p),
				Skin: mesh.Material,
			}
			if normals != nil {
				v.Normal = utils.RotateVector(toModel, normals[i])
				if v.Normal.Len() > 1e-6 {
					v.Normal = v.Normal.Normalize()
				}
			}
			if skinned {
				for k := 0; k < 4; k++ {
					if vweights[i][k] <= 0 {
						continue
					}
					j := int(vjoints[i][k])
					if j >= len(joints) {
						return errors.Errorf("Vertex %d references joint %d of %d", i, j, len(joints))
					}
					si, ok := c.nodeMap[int(joints[j])]
					if !ok {
						return errors.Errorf("Vertex %d is bound to a joint outside of the first skin", i)
					}
					v.Weights = append(v.Weights, studio.BoneWeight{Bone: si, Weight: vweights[i][k]})
				}
				v.Weights = source.NormalizeWeights(v.Weights)
			}
			if len(v.Weights) == 0 {
				v.Weights = []studio.BoneWeight{{Bone: owner, Weight: 1}}
			}
			sm.Vertices = append(sm.Vertices, v)
		}

		for i := 0; i+2 < len(indices); i += 3 {
			var tri [3]studio.TriangleVert
			for k := range tri {
				idx := int(indices[i+k])
				if idx >= len(positions) {
					return errors.Errorf("Index %d out of range", idx)
				}
				tri[k] = studio.TriangleVert{Vert: base + idx, Norm: base + idx}
				if uvs != nil {
					// gltf has the image origin at the top
					tri[k].UV = mgl32.Vec2{uvs[idx][0], 1 - uvs[idx][1]}
				}
			}
			mesh.Triangles = append(mesh.Triangles, tri)
		}
	}
	return nil
}

type channel struct {
	times  []float32
	pos    [][3]float32
	rot    [][4]float32
	target int
}

func (c *converter) sample(ch *channel, t float32) (int, float32) {
	n := len(ch.times)
	if n == 0 || t <= ch.times[0] {
		return 0, 0
	}
	if t >= ch.times[n-1] {
		return n - 1, 0
	}
	i := sort.Search(n, func(i int) bool { return ch.times[i] > t }) - 1
	span := ch.times[i+1] - ch.times[i]
	if span <= 0 {
		return i, 0
	}
	return i, (t - ch.times[i]) / span
}

func (c *converter) convertAnimation(anim *gltf.Animation) (*studio.SourceModel, error) {
	doc := c.doc
	var channels []*channel
	var longest []float32

	for _, ach := range anim.Channels {
		if ach.Target.Path != gltf.TRSTranslation && ach.Target.Path != gltf.TRSRotation {
			continue
		}
		iNode, ok := gltfutils.Index(ach.Target.Node)
		if !ok {
			continue
		}
		si, ok := c.nodeMap[iNode]
		if !ok {
			continue
		}
		iSampler, ok := gltfutils.Index(ach.Sampler)
		if !ok || iSampler >= len(anim.Samplers) {
			return nil, errors.Errorf("Channel without sampler")
		}
		sampler := anim.Samplers[iSampler]
		iIn, okIn := gltfutils.Index(sampler.Input)
		iOut, okOut := gltfutils.Index(sampler.Output)
		if !okIn || !okOut {
			return nil, errors.Errorf("Sampler without accessors")
		}
		in, err := modeler.ReadAccessor(doc, doc.Accessors[iIn], nil)
		if err != nil {
			return nil, errors.Wrapf(err, "Failed to read sampler input")
		}
		out, err := modeler.ReadAccessor(doc, doc.Accessors[iOut], nil)
		if err != nil {
			return nil, errors.Wrapf(err, "Failed to read sampler output")
		}

		ch := &channel{target: si}
		if ch.times, ok = in.([]float32); !ok {
			return nil, errors.Errorf("Unsupported sampler input %T", in)
		}
		if ach.Target.Path == gltf.TRSTranslation {
			if ch.pos, ok = out.([][3]float32); !ok {
				return nil, errors.Errorf("Unsupported translation output %T", out)
			}
		} else if ch.rot, ok = out.([][4]float32); !ok {
			return nil, errors.Errorf("Unsupported rotation output %T", out)
		}
		if len(ch.times) > len(longest) {
			longest = ch.times
		}
		channels = append(channels, ch)
	}
	if len(channels) == 0 {
		return nil, nil
	}

	sm := &studio.SourceModel{
		Name:  anim.Name,
		Nodes: append([]studio.SourceNode(nil), c.model.Nodes...),
	}
	for _, t := range longest {
		st := c.restState()
		for _, ch := range channels {
			i, f := c.sample(ch, t)
			next := i
			if f > 0 {
				next = i + 1
			}
			if ch.pos != nil {
				a, b := mgl32.Vec3(ch.pos[i]), mgl32.Vec3(ch.pos[next])
				st.pos[ch.target] = a.Add(b.Sub(a).Mul(f))
			} else {
				a := mgl32.Quat{W: ch.rot[i][3], V: mgl32.Vec3{ch.rot[i][0], ch.rot[i][1], ch.rot[i][2]}}
				b := mgl32.Quat{W: ch.rot[next][3], V: mgl32.Vec3{ch.rot[next][0], ch.rot[next][1], ch.rot[next][2]}}
				st.rot[ch.target] = utils.QuatSlerpShort(a.Normalize(), b.Normalize(), f)
			}
		}
		sm.Frames = append(sm.Frames, c.pose(st))
	}
	return sm, nil
}

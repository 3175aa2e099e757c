package studio

import (
	"image"

	"github.com/go-gl/mathgl/mgl32"
)

type Attachment struct {
	Name     string
	BoneName string
	Bone     int
	Flags    int
	// transform relative to Bone, model space for ATTACHMENT_ABSOLUTE until linked
	Local mgl32.Mat4
}

type BoneController struct {
	Name  string
	Bone  int
	Type  int
	Index int
	Start float32
	End   float32
}

type HitGroup struct {
	Bone  string
	Group int
}

type Hitbox struct {
	Name  string
	Bone  int
	Group int
	Min   mgl32.Vec3
	Max   mgl32.Vec3
}

type HitboxSet struct {
	Name     string
	Hitboxes []*Hitbox
}

type Texture struct {
	Name  string
	Flags uint32

	// quantized source image, index 255 is transparent on masked skins
	Image *image.Paletted

	// texel range covered by the triangles using this texture
	MinS, MaxS int
	MinT, MaxT int

	// packed skin: Width*Height palette indices followed by a 768 byte palette
	Data          []byte
	Width, Height int

	// base texture a skin family replacement stands in for, -1 for none
	Parent int
}

// Model is one sub-model selectable inside a body part, Source is nil for a blank one
type Model struct {
	Name   string
	Source *SourceModel
}

type BodyPart struct {
	Name   string
	Base   int
	Models []*Model
}

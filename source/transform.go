package source

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/mogaika/studiomdl/studio"
	"github.com/mogaika/studiomdl/utils"
)

// RootPose moves a root bone pose by -shift and rotates it by rotate (euler radians)
func RootPose(p studio.BonePose, shift, rotate mgl32.Vec3) studio.BonePose {
	rootxform := utils.MatrixFromPosRot(mgl32.Vec3{}, rotate)
	pos := utils.RotateVector(rootxform, p.Pos.Sub(shift))
	_, rot := utils.MatrixToPosRot(rootxform.Mul4(utils.MatrixFromPosRot(mgl32.Vec3{}, p.Rot)))
	return studio.BonePose{Pos: pos, Rot: rot}
}

// BoneToWorld chains the local poses of one source frame into source model space.
// Roots are adjusted by shift and rotate first.
func BoneToWorld(sm *studio.SourceModel, frame []studio.BonePose, shift, rotate mgl32.Vec3) []mgl32.Mat4 {
	r := make([]mgl32.Mat4, len(sm.Nodes))
	for k, node := range sm.Nodes {
		p := frame[k]
		if node.Parent == -1 {
			r[k] = RootPose(p, shift, rotate).Matrix()
		} else {
			r[k] = r[node.Parent].Mul4(p.Matrix())
		}
	}
	return r
}

// ReferenceToWorld is BoneToWorld of the reference pose with no root adjustment
func ReferenceToWorld(sm *studio.SourceModel) []mgl32.Mat4 {
	return BoneToWorld(sm, sm.Skeleton(), mgl32.Vec3{}, mgl32.Vec3{})
}

// AnimationToWorld is BoneToWorld of frame of a, looping animations wrap and the rest clamp
func AnimationToWorld(a *studio.Animation, frame int) []mgl32.Mat4 {
	return BoneToWorld(a.Source, a.Source.Frames[SourceFrame(a, frame)], a.Adjust, a.Rotation)
}

// SourceFrame maps frame of a to an index into a.Source.Frames
func SourceFrame(a *studio.Animation, frame int) int {
	first, last := a.SourceFrames()
	n := last - first + 1
	if a.IsLooping() {
		if frame != 0 {
			for frame < 0 {
				frame += n
			}
			frame %= n
		}
	} else if frame < 0 {
		frame = 0
	} else if frame >= n {
		frame = n - 1
	}
	return first + frame
}

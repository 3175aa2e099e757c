package writer

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"

	"github.com/mogaika/studiomdl/config"
	"github.com/mogaika/studiomdl/studio"
)

// Blob is one output file, Name is relative to the output directory
type Blob struct {
	Name string
	Data []byte
}

type sections struct {
	lengthAt int

	bones, controllers, hitboxes, seqs, seqGroups Label
	textures, textureData, skins, bodyParts       Label
	attachments, header2, transitions             Label

	poseParams, ikLocks, ikChains, keyValues, hitboxSets, boneInfo Label
	keyValueSizeAt                                                 int
}

type writer struct {
	s     *studio.Session
	a     *Arena
	flags int

	// blocks written once per animation and blob
	movements map[*studio.Animation]int
	ikRules   map[*studio.Animation]int

	// per sequence, offsets inside the blob of its group
	animIndex     []int
	animDescIndex []int

	sec sections
}

func (w *writer) reset() {
	w.a = NewArena(w.s.Log)
	w.movements = make(map[*studio.Animation]int)
	w.ikRules = make(map[*studio.Animation]int)
}

// Serialize lays out the primary model file followed by one file per
// satellite sequence group
func Serialize(s *studio.Session) ([]Blob, error) {
	w := &writer{
		s:             s,
		flags:         s.Flags,
		animIndex:     make([]int, len(s.Sequences)),
		animDescIndex: make([]int, len(s.Sequences)),
	}
	if s.HasBoneWeights() {
		w.flags |= studio.STUDIO_HAS_BONEWEIGHTS | studio.STUDIO_HAS_BONEINFO
	}
	if len(s.Procedural) != 0 {
		w.flags |= studio.STUDIO_HAS_BONEINFO
	}

	var groups []Blob
	for g := 1; g < len(s.SeqGroups); g++ {
		data, err := w.satellite(g)
		if err != nil {
			return nil, errors.Wrapf(err, "Failed to write sequence group %d", g)
		}
		groups = append(groups, Blob{Name: fmt.Sprintf("%s%02d.mdl", s.Name, g), Data: data})
	}

	data, err := w.primary()
	if err != nil {
		return nil, errors.Wrapf(err, "Failed to write %s.mdl", s.Name)
	}
	return append([]Blob{{Name: s.Name + ".mdl", Data: data}}, groups...), nil
}

func (w *writer) satellite(group int) ([]byte, error) {
	w.reset()
	a := w.a

	rec := a.Record("seqheader", SEQ_HEADER_SIZE)
	a.I32(studio.STUDIO_SEQ_IDENT)
	a.I32(studio.STUDIO_VERSION)
	a.Name(w.s.SeqGroups[group].Name, config.LONG_NAME_SIZE)
	lengthAt := a.Reserve(4)
	rec.Done()

	if err := w.animations(group); err != nil {
		return nil, err
	}
	w.animDescriptions(group)

	a.PatchI32(lengthAt, a.Len())
	w.s.Log.Printf("%s group %d %7d bytes", w.s.Name, group, a.Len())
	return a.Finish()
}

func (w *writer) primary() ([]byte, error) {
	w.reset()
	a := w.a
	s := w.s

	w.header()

	start := a.Len()
	w.bones()
	w.controllers()
	w.attachments()
	w.hitboxes()
	s.Log.Printf("bones      %7d bytes (%d)", a.Len()-start, len(s.Bones))

	start = a.Len()
	w.ikChains()
	w.ikLocks()
	w.poseParams()
	s.Log.Printf("ik/pose    %7d bytes", a.Len()-start)

	start = a.Len()
	if err := w.animations(0); err != nil {
		return nil, err
	}
	w.animDescriptions(0)
	w.sequences()
	s.Log.Printf("sequences  %7d bytes", a.Len()-start)

	start = a.Len()
	if err := w.bodyParts(); err != nil {
		return nil, err
	}
	s.Log.Printf("models     %7d bytes", a.Len()-start)

	start = a.Len()
	w.keyValues()
	s.Log.Printf("keyvalues  %7d bytes", a.Len()-start)

	// textures must be last
	start = a.Len()
	w.textures()
	s.Log.Printf("textures   %7d bytes", a.Len()-start)

	a.PatchI32(w.sec.lengthAt, a.Len())
	s.Log.Printf("total      %7d bytes", a.Len())
	return a.Finish()
}

func (w *writer) hitboxCount() int {
	if len(w.s.HitboxSets) == 0 {
		return 0
	}
	return len(w.s.HitboxSets[0].Hitboxes)
}

func (w *writer) header() {
	a := w.a
	s := w.s
	sec := &w.sec
	for _, l := range []*Label{
		&sec.bones, &sec.controllers, &sec.hitboxes, &sec.seqs, &sec.seqGroups,
		&sec.textures, &sec.textureData, &sec.skins, &sec.bodyParts,
		&sec.attachments, &sec.header2, &sec.transitions,
		&sec.poseParams, &sec.ikLocks, &sec.ikChains, &sec.keyValues, &sec.hitboxSets, &sec.boneInfo,
	} {
		*l = a.NewLabel()
	}
	numSkinRef, families := skinTable(s)

	rec := a.Record("header", HEADER_SIZE)
	a.I32(studio.STUDIO_IDENT)
	a.I32(studio.STUDIO_VERSION)
	a.Name(s.Name, config.LONG_NAME_SIZE)
	sec.lengthAt = a.Reserve(4)
	a.Vec3(s.EyePosition)
	putBounds(a, s.BBox.Min, s.BBox.Max, s.BBox.Empty())
	putBounds(a, s.CBox.Min, s.CBox.Max, s.CBox.Empty())
	a.I32(w.flags)
	a.I32(len(s.Bones))
	a.Ref(sec.bones)
	a.I32(len(s.BoneControllers))
	a.Ref(sec.controllers)
	a.I32(w.hitboxCount())
	a.Ref(sec.hitboxes)
	a.I32(len(s.Sequences))
	a.Ref(sec.seqs)
	a.I32(len(s.SeqGroups))
	a.Ref(sec.seqGroups)
	a.I32(len(s.Textures))
	a.Ref(sec.textures)
	a.Ref(sec.textureData)
	a.I32(numSkinRef)
	a.I32(len(families))
	a.Ref(sec.skins)
	a.I32(len(s.BodyParts))
	a.Ref(sec.bodyParts)
	a.I32(len(s.Attachments))
	a.Ref(sec.attachments)
	a.Ref(sec.header2)
	a.I32(len(s.XNode))
	a.Ref(sec.transitions)
	rec.Done()

	a.Mark(sec.header2)
	rec = a.Record("header2", HEADER2_SIZE)
	a.I32(len(s.PoseParams))
	a.Ref(sec.poseParams)
	a.I32(len(s.IKAutoplayLocks))
	a.Ref(sec.ikLocks)
	a.I32(len(s.IKChains))
	a.Ref(sec.ikChains)
	sec.keyValueSizeAt = a.Reserve(4)
	a.OptRef(sec.keyValues, s.KeyValues != "")
	a.I32(len(s.HitboxSets))
	a.Ref(sec.hitboxSets)
	a.OptRef(sec.boneInfo, w.flags&studio.STUDIO_HAS_BONEINFO != 0)
	a.Reserve(5 * 4)
	rec.Done()
}

func putBounds(a *Arena, min, max mgl32.Vec3, empty bool) {
	if empty {
		a.Reserve(24)
		return
	}
	a.Vec3(min)
	a.Vec3(max)
}

func (w *writer) keyValues() {
	a := w.a
	if w.s.KeyValues != "" {
		a.Mark(w.sec.keyValues)
		a.PatchI32(w.sec.keyValueSizeAt, a.ZString(w.s.KeyValues))
	}
	a.Align()
}

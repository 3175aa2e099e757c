package writer

import (
	"github.com/pkg/errors"
)

// record sizes of the model format
const (
	HEADER_SIZE     = 232
	HEADER2_SIZE    = 64
	SEQ_HEADER_SIZE = 76

	BONE_SIZE           = 112
	BONEINFO_SIZE       = 88
	AXISINTERP_SIZE     = 176
	QUATINTERP_SIZE     = 12
	QUATINTERP_INFO     = 48
	JIGGLE_SIZE         = 140
	AIMAT_SIZE          = 44
	BONECONTROLLER_SIZE = 24
	ATTACHMENT_SIZE     = 88
	BBOX_SIZE           = 32
	HITBOXSET_SIZE      = 40
	IKCHAIN_SIZE        = 40
	IKLINK_SIZE         = 16
	IKLOCK_SIZE         = 16
	POSEPARAM_SIZE      = 48

	ANIM_SIZE      = 12
	MOVEMENT_SIZE  = 44
	IKRULE_SIZE    = 92
	IKERROR_SIZE   = 36
	ANIMDESC_SIZE  = 60
	SEQDESC_SIZE   = 204
	EVENT_SIZE     = 76
	AUTOLAYER_SIZE = 24
	SEQGROUP_SIZE  = 96

	BODYPART_SIZE   = 76
	MODEL_SIZE      = 112
	BONEWEIGHT_SIZE = 8
	MESH_SIZE       = 20
	TEXTURE_SIZE    = 80
)

// record starts at the current end of a, Done verifies it took size bytes
type record struct {
	a     *Arena
	start int
	size  int
	what  string
}

func (a *Arena) Record(what string, size int) record {
	return record{a: a, start: a.Len(), size: size, what: what}
}

func (r record) Start() int { return r.start }

func (r record) Done() {
	if got := r.a.Len() - r.start; got != r.size {
		r.a.fail(layoutError(r.what, got, r.size))
	}
}

func layoutError(what string, got, want int) error {
	return errors.Errorf("Record %s took %d bytes instead of %d", what, got, want)
}

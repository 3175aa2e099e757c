// Package skeleton builds the global bone table shared by every source:
// union of used bones, hierarchy order, collapsing of static helpers,
// realignment and linking of everything addressed by bone name.
package skeleton

import (
	"github.com/pkg/errors"

	"github.com/mogaika/studiomdl/config"
	"github.com/mogaika/studiomdl/studio"
)

// RemapBones builds s.Bones from the sources and maps every source node onto it
func RemapBones(s *studio.Session) error {
	TagUsedBones(s)
	RenameBones(s)

	if err := BuildGlobalBonetable(s); err != nil {
		return errors.Wrapf(err, "Failed to build bone table")
	}
	BuildGlobalBoneToPose(s)

	if err := EnforceHierarchy(s); err != nil {
		return err
	}
	PropagateFlags(s)

	if s.Options.Collapse || len(s.ImportBones) != 0 {
		CollapseBones(s)
	}
	if len(s.Bones) == 0 {
		return errors.Errorf("No bones left in model")
	}
	if len(s.Bones) >= config.MAX_BONES {
		return errors.Errorf("Too many bones used in model, used %d, max %d", len(s.Bones), config.MAX_BONES)
	}

	RebuildLocalPose(s)
	MapSources(s)
	return nil
}

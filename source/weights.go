package source

import (
	"sort"

	"github.com/mogaika/studiomdl/config"
	"github.com/mogaika/studiomdl/studio"
)

// NormalizeWeights merges weights of the same bone, drops the negligible ones,
// keeps at most MAX_BONE_WEIGHTS strongest and rescales them to sum to one.
func NormalizeWeights(in []studio.BoneWeight) []studio.BoneWeight {
	merged := make([]studio.BoneWeight, 0, len(in))
	for _, w := range in {
		found := false
		for i := range merged {
			if merged[i].Bone == w.Bone {
				merged[i].Weight += w.Weight
				found = true
				break
			}
		}
		if !found {
			merged = append(merged, w)
		}
	}
	if len(merged) == 0 {
		return merged
	}

	sort.SliceStable(merged, func(i, j int) bool {
		if merged[i].Weight != merged[j].Weight {
			return merged[i].Weight > merged[j].Weight
		}
		return merged[i].Bone < merged[j].Bone
	})

	strongest := merged[0]
	out := merged[:0]
	for _, w := range merged {
		if w.Weight < config.MIN_BONE_WEIGHT || len(out) == config.MAX_BONE_WEIGHTS {
			continue
		}
		out = append(out, w)
	}
	if len(out) == 0 {
		return []studio.BoneWeight{{Bone: strongest.Bone, Weight: 1}}
	}

	var sum float32
	for _, w := range out {
		sum += w.Weight
	}
	for i := range out {
		out[i].Weight /= sum
	}
	return out
}

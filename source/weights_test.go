package source

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mogaika/studiomdl/studio"
)

func TestNormalizeWeights(t *testing.T) {
	for _, test := range []struct {
		in  []studio.BoneWeight
		out []studio.BoneWeight
	}{
		{
			in:  []studio.BoneWeight{{Bone: 3, Weight: 1}},
			out: []studio.BoneWeight{{Bone: 3, Weight: 1}},
		},
		{
			in:  []studio.BoneWeight{{Bone: 1, Weight: 0.25}, {Bone: 2, Weight: 0.5}, {Bone: 1, Weight: 0.25}},
			out: []studio.BoneWeight{{Bone: 1, Weight: 0.5}, {Bone: 2, Weight: 0.5}},
		},
		{
			in:  []studio.BoneWeight{{Bone: 0, Weight: 0.5}, {Bone: 1, Weight: 0.001}},
			out: []studio.BoneWeight{{Bone: 0, Weight: 1}},
		},
		{
			in: []studio.BoneWeight{
				{Bone: 0, Weight: 0.1}, {Bone: 1, Weight: 0.2}, {Bone: 2, Weight: 0.3},
				{Bone: 3, Weight: 0.2}, {Bone: 4, Weight: 0.2},
			},
			out: []studio.BoneWeight{
				{Bone: 2, Weight: 0.3 / 0.9}, {Bone: 1, Weight: 0.2 / 0.9},
				{Bone: 3, Weight: 0.2 / 0.9}, {Bone: 4, Weight: 0.2 / 0.9},
			},
		},
	} {
		got := NormalizeWeights(test.in)
		require.Len(t, got, len(test.out))
		for i := range got {
			assert.Equal(t, test.out[i].Bone, got[i].Bone)
			assert.InDelta(t, test.out[i].Weight, got[i].Weight, 1e-6)
		}
	}
}

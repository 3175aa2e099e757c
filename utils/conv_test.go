package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var nameTests = []struct {
	in   string
	size int
	out  string
}{
	{"", 8, ""},
	{"pelvis", 8, "pelvis"},
	{"pelvis_bone", 8, "pelvis_"},
	{"ValveBiped.Bip01", 8, "Bip01"},
	{"ValveBiped.Bip01_Pelvis", 12, "Bip01_Pelvi"},
	{"ValveBiped.X", 32, "ValveBiped.X"},
}

func TestNameToBytes(t *testing.T) {
	for _, test := range nameTests {
		bs, err := NameToBytes(test.in, test.size)
		require.NoError(t, err)
		assert.Len(t, bs, test.size)
		assert.Equal(t, test.out, BytesToString(bs), "NameToBytes(%q, %d)", test.in, test.size)
		assert.Equal(t, byte(0), bs[test.size-1])
	}
}

func TestStringToBytesBuffer(t *testing.T) {
	bs, err := StringToBytesBuffer("abc", 4, true)
	require.NoError(t, err)
	assert.Equal(t, []byte{'a', 'b', 'c', 0}, bs)

	_, err = StringToBytesBuffer("abcd", 4, true)
	assert.Error(t, err)
}

func TestAlign(t *testing.T) {
	assert.Equal(t, 0, Align(0, 4))
	assert.Equal(t, 4, Align(1, 4))
	assert.Equal(t, 8, Align(8, 4))
}

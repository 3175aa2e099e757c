package config

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeOptionsOverlay(t *testing.T) {
	opts := DefaultOptions()
	err := DecodeOptions(strings.NewReader("realign: false\nsequence_group_size: 4096\n"), opts)
	require.NoError(t, err)

	assert.False(t, opts.Realign)
	assert.True(t, opts.Collapse)
	assert.Equal(t, 4096, opts.SequenceGroupSize)
	assert.Equal(t, "Windows 1252", opts.Encoding)
}

func TestDecodeOptionsEmpty(t *testing.T) {
	opts := DefaultOptions()
	require.NoError(t, DecodeOptions(strings.NewReader(""), opts))
	assert.Equal(t, DefaultOptions(), opts)
}

func TestDecodeOptionsUnknownField(t *testing.T) {
	opts := DefaultOptions()
	assert.Error(t, DecodeOptions(strings.NewReader("realing: true\n"), opts))
}

func TestSetEncoding(t *testing.T) {
	defer SetEncoding("Windows 1252")

	require.NoError(t, SetEncoding("Windows 1251"))
	assert.Equal(t, "Windows 1251", GetEncoding().String())
	require.NoError(t, SetEncoding("windows-1250"))
	assert.Equal(t, "Windows 1250", GetEncoding().String())
	err := SetEncoding("no such thing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Windows 1252")
	assert.Contains(t, ListEncodings(), "Windows 1252")
}

package modvault

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/charmap"
)

// GBK encoding of "中文".
var gbkChinese = string([]byte{0xd6, 0xd0, 0xce, 0xc4})

func TestDecodeEntryNameUTF8PassThrough(t *testing.T) {
	assert.Equal(t, "skins/a.dds", decodeEntryName("skins/a.dds"))
	assert.Equal(t, "中文.dds", decodeEntryName("中文.dds"))
}

func TestDecodeEntryNameRawGBK(t *testing.T) {
	// Raw GBK bytes are not valid UTF-8, so the recovery strategy kicks in.
	assert.Equal(t, "中文.dds", decodeEntryName(gbkChinese+".dds"))
}

func TestDecodeEntryNameUndecodableFallsBackRaw(t *testing.T) {
	raw := string([]byte{0xff, 0xfe, 0xff})
	assert.Equal(t, raw, decodeEntryName(raw))
}

func TestDecodeCP437GBKRecoversMojibake(t *testing.T) {
	// A CP437 reader turns GBK bytes into box-drawing mojibake. The decoder
	// must map that back to the original characters.
	mojibake, err := charmap.CodePage437.NewDecoder().String(gbkChinese)
	require.NoError(t, err)
	require.NotEqual(t, "中文", mojibake)

	out, ok := decodeCP437GBK(mojibake)
	require.True(t, ok)
	assert.Equal(t, "中文", out)
}

func TestDecodeCP437GBKRejectsNonGBK(t *testing.T) {
	_, ok := decodeCP437GBK(string([]byte{0xff, 0xfe, 0xff}))
	assert.False(t, ok)
}

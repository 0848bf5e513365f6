package carousel

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"
	"image"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// pngHeader returns a PNG signature plus a valid IHDR chunk declaring w×h
// 8-bit grayscale, with no pixel data behind it.
func pngHeader(w, h uint32) []byte {
	var buf bytes.Buffer
	buf.WriteString("\x89PNG\r\n\x1a\n")

	ihdr := make([]byte, 13)
	binary.BigEndian.PutUint32(ihdr[0:], w)
	binary.BigEndian.PutUint32(ihdr[4:], h)
	ihdr[8] = 8 // bit depth; color type, compression, filter, interlace stay 0

	binary.Write(&buf, binary.BigEndian, uint32(len(ihdr)))
	chunk := append([]byte("IHDR"), ihdr...)
	buf.Write(chunk)
	binary.Write(&buf, binary.BigEndian, crc32.ChecksumIEEE(chunk))
	return buf.Bytes()
}

func TestDecodeSourceRejectsOversizedHeader(t *testing.T) {
	_, err := DecodeSource(bytes.NewReader(pngHeader(12000, 12000)))
	require.ErrorIs(t, err, ErrDecode)
	assert.Contains(t, err.Error(), "12000x12000")

	c := New()
	_, err = c.AddImageData(bytes.NewReader(pngHeader(12000, 12000)), "bomb.png", nil)
	require.ErrorIs(t, err, ErrDecode)
	assert.Zero(t, c.Len())
}

func TestDecodeSourceAcceptsImageWithinLimit(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewGray(image.Rect(0, 0, 40, 20))))

	src, err := DecodeSource(&buf)
	require.NoError(t, err)
	assert.Equal(t, 40, src.Width)
	assert.Equal(t, 20, src.Height)
	assert.Equal(t, "png", src.Format)
}

// avi.go - Pure Go AVI writer using the Motion JPEG (MJPEG) codec.
// A reel holds each slide as a run of identical frames, so a carousel can be
// previewed as a slideshow in any player with native MJPEG support.
package generator

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"image"
	"io"
	"math"

	"github.com/disintegration/imaging"

	"github.com/xob0t/GoCarousel/pkg/carousel"
)

// Reel bounds. Larger values only bloat the file and can overflow the
// 32-bit RIFF chunk sizes.
const (
	MaxReelFPS     = 60
	MaxReelSeconds = 60
)

// ReelOptions controls WriteReel.
type ReelOptions struct {
	FPS             int // frames per second (default 15)
	SecondsPerSlide int // how long each slide stays on screen (default 2)
	Quality         int // JPEG quality (default 95)
}

func (o ReelOptions) withDefaults() ReelOptions {
	if o.FPS <= 0 {
		o.FPS = 15
	}
	if o.SecondsPerSlide <= 0 {
		o.SecondsPerSlide = 2
	}
	if o.Quality <= 0 || o.Quality > 100 {
		o.Quality = 95
	}
	return o
}

func (o ReelOptions) validate() error {
	if o.FPS > MaxReelFPS {
		return fmt.Errorf("%w: reel fps %d above %d", carousel.ErrInvalidConfig, o.FPS, MaxReelFPS)
	}
	if o.SecondsPerSlide > MaxReelSeconds {
		return fmt.Errorf("%w: %d seconds per slide above %d", carousel.ErrInvalidConfig, o.SecondsPerSlide, MaxReelSeconds)
	}
	return nil
}

// aviWriter accumulates the first write error so the chunk layout below
// reads top to bottom.
type aviWriter struct {
	w   io.Writer
	err error
}

func (a *aviWriter) fourCC(s string) {
	if a.err == nil {
		_, a.err = io.WriteString(a.w, s)
	}
}

func (a *aviWriter) u32(v uint32) {
	if a.err == nil {
		a.err = binary.Write(a.w, binary.LittleEndian, v)
	}
}

func (a *aviWriter) u16(v uint16) {
	if a.err == nil {
		a.err = binary.Write(a.w, binary.LittleEndian, v)
	}
}

func (a *aviWriter) bytes(b []byte) {
	if a.err == nil {
		_, a.err = a.w.Write(b)
	}
}

// WriteReel writes slides as an MJPEG AVI. All slides must share the same
// dimensions.
func WriteReel(w io.Writer, slides []image.Image, opts ReelOptions) error {
	if len(slides) == 0 {
		return fmt.Errorf("%w: reel needs at least one slide", carousel.ErrInvalidConfig)
	}
	opts = opts.withDefaults()
	if err := opts.validate(); err != nil {
		return err
	}

	bounds := slides[0].Bounds()
	frames := make([][]byte, len(slides))
	maxFrame := uint32(0)
	for i, img := range slides {
		if img.Bounds().Size() != bounds.Size() {
			return fmt.Errorf("%w: slide %d is %v, expected %v", carousel.ErrInvalidConfig, i+1, img.Bounds().Size(), bounds.Size())
		}
		var buf bytes.Buffer
		if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(opts.Quality)); err != nil {
			return fmt.Errorf("%w: reel frame %d: %v", carousel.ErrEncoding, i+1, err)
		}
		frames[i] = buf.Bytes()
		maxFrame = max(maxFrame, uint32(buf.Len()))
	}

	width := uint32(bounds.Dx())
	height := uint32(bounds.Dy())
	fps := uint32(opts.FPS)
	perSlide := uint32(opts.SecondsPerSlide) * fps
	totalFrames := perSlide * uint32(len(slides))

	// Chunk sizes. Each frame chunk is "00dc" + size + data padded to even.
	// Sum in 64 bits first: RIFF sizes are 32-bit.
	var movi64 uint64
	for _, f := range frames {
		movi64 += uint64(perSlide) * uint64(8+padded(uint32(len(f))))
	}
	if movi64+uint64(totalFrames)*16+1024 > math.MaxUint32 {
		return fmt.Errorf("%w: reel would exceed 4 GiB, lower fps or seconds", carousel.ErrInvalidConfig)
	}
	moviData := uint32(movi64)
	moviSize := 4 + moviData
	idx1Size := 8 + totalFrames*16
	hdrlSize := uint32(4 + 64 + 124) // "hdrl" + avih + strl
	fileSize := 4 + (8 + hdrlSize) + (8 + moviSize) + idx1Size

	a := &aviWriter{w: w}

	// ── RIFF header ──
	a.fourCC("RIFF")
	a.u32(fileSize)
	a.fourCC("AVI ")

	// ── hdrl LIST ──
	a.fourCC("LIST")
	a.u32(hdrlSize)
	a.fourCC("hdrl")

	// avih (main header), 56 bytes
	a.fourCC("avih")
	a.u32(56)
	a.u32(1000000 / fps)  // microseconds per frame
	a.u32(maxFrame * fps) // max bytes per second
	a.u32(0)              // padding granularity
	a.u32(0x10)           // AVIF_HASINDEX
	a.u32(totalFrames)    // total frames
	a.u32(0)              // initial frames
	a.u32(1)              // streams
	a.u32(maxFrame)       // suggested buffer size
	a.u32(width)          // width
	a.u32(height)         // height
	a.u32(0)              // reserved
	a.u32(0)              // reserved
	a.u32(0)              // reserved
	a.u32(0)              // reserved

	// strl LIST: strh(64) + strf(48) + 4
	a.fourCC("LIST")
	a.u32(116)
	a.fourCC("strl")

	// strh (stream header), 56 bytes
	a.fourCC("strh")
	a.u32(56)
	a.fourCC("vids")
	a.fourCC("MJPG")
	a.u32(0) // flags
	a.u16(0) // priority
	a.u16(0) // language
	a.u32(0) // initial frames
	a.u32(1) // scale
	a.u32(fps)
	a.u32(0) // start
	a.u32(totalFrames)
	a.u32(maxFrame)
	a.u32(0) // quality
	a.u32(0) // sample size
	a.u16(0) // left
	a.u16(0) // top
	a.u16(uint16(width))
	a.u16(uint16(height))

	// strf (BITMAPINFOHEADER), 40 bytes
	a.fourCC("strf")
	a.u32(40)
	a.u32(40)
	a.u32(width)
	a.u32(height)
	a.u16(1)  // planes
	a.u16(24) // bit count
	a.fourCC("MJPG")
	a.u32(width * height * 3)
	a.u32(0)
	a.u32(0)
	a.u32(0)
	a.u32(0)

	// ── movi LIST ──
	a.fourCC("LIST")
	a.u32(moviSize)
	a.fourCC("movi")

	for _, f := range frames {
		for range perSlide {
			a.fourCC("00dc")
			a.u32(uint32(len(f)))
			a.bytes(f)
			if len(f)%2 != 0 {
				a.bytes([]byte{0})
			}
		}
	}

	// ── idx1 ──
	a.fourCC("idx1")
	a.u32(totalFrames * 16)

	offset := uint32(4) // relative to the "movi" fourcc
	for _, f := range frames {
		size := uint32(len(f))
		for range perSlide {
			a.fourCC("00dc")
			a.u32(0x10) // AVIIF_KEYFRAME
			a.u32(offset)
			a.u32(size)
			offset += 8 + padded(size)
		}
	}

	return a.err
}

func padded(n uint32) uint32 {
	return n + n%2
}

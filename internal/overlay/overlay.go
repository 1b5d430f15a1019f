// Package overlay rasterizes the main loop's pairing UI — a single
// large digit of the pairing PIN, or the Bluetooth glyph shown while
// waiting for a peer — onto a Frame. Glyphs are built as tiny SVG
// documents at render time and rasterized with oksvg/rasterx rather
// than shipped as font assets, since the 16x16 matrix has no room for
// anything but a single blocky character at a time.
package overlay

import (
	"bytes"
	"fmt"
	"image"

	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"

	"github.com/fkcurrie/blinkenmatrix/internal/frame"
)

// segments indexed a,b,c,d,e,f,g in the usual seven-segment layout:
//
//	 aaa
//	f   b
//	f   b
//	 ggg
//	e   c
//	e   c
//	 ddd
var digitSegments = map[byte]string{
	'0': "abcdef",
	'1': "bc",
	'2': "abged",
	'3': "abgcd",
	'4': "fgbc",
	'5': "afgcd",
	'6': "afgedc",
	'7': "abc",
	'8': "abcdefg",
	'9': "abcdfg",
}

// segmentRects gives each segment's SVG rect geometry within a 16x16
// viewBox, as a thick bar.
var segmentRects = map[byte]string{
	'a': `<rect x="3" y="1" width="10" height="2"/>`,
	'g': `<rect x="3" y="7" width="10" height="2"/>`,
	'd': `<rect x="3" y="13" width="10" height="2"/>`,
	'f': `<rect x="1" y="1" width="2" height="7"/>`,
	'b': `<rect x="13" y="1" width="2" height="7"/>`,
	'e': `<rect x="1" y="8" width="2" height="7"/>`,
	'c': `<rect x="13" y="8" width="2" height="7"/>`,
}

// RenderDigit draws a single large seven-segment digit ('0'-'9') in
// color across the whole frame, clearing it first.
func RenderDigit(f *frame.Frame, digit byte, color [3]byte) error {
	segs, ok := digitSegments[digit]
	if !ok {
		return fmt.Errorf("overlay: %q is not a digit", digit)
	}

	var rects bytes.Buffer
	for i := 0; i < len(segs); i++ {
		rects.WriteString(segmentRects[segs[i]])
	}

	svg := fmt.Sprintf(
		`<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d"><g fill="#%02x%02x%02x">%s</g></svg>`,
		frame.Width, frame.Height, frame.Width, frame.Height,
		color[0], color[1], color[2], rects.String(),
	)
	return rasterizeOnto(f, svg)
}

// bluetoothGlyphPath is a simplified stand-in for the Bluetooth "runes"
// mark: two overlapping triangles forming the familiar bowtie.
const bluetoothGlyphPath = `M8,1 L8,15 L13,11 L10,8 L13,5 Z M8,1 L3,5 L6,8 L3,11 L8,15`

// RenderBluetoothGlyph draws the pairing-mode Bluetooth indicator.
func RenderBluetoothGlyph(f *frame.Frame, color [3]byte) error {
	svg := fmt.Sprintf(
		`<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">`+
			`<path d="%s" stroke="#%02x%02x%02x" stroke-width="1" fill="none"/></svg>`,
		frame.Width, frame.Height, frame.Width, frame.Height,
		bluetoothGlyphPath, color[0], color[1], color[2],
	)
	return rasterizeOnto(f, svg)
}

// rasterizeOnto parses svg and rasterizes it into an RGBA image sized
// to the Frame, then copies the result pixel-for-pixel into f.
func rasterizeOnto(f *frame.Frame, svg string) error {
	icon, err := oksvg.ReadIconStream(bytes.NewReader([]byte(svg)))
	if err != nil {
		return fmt.Errorf("overlay: parse svg: %w", err)
	}
	icon.SetTarget(0, 0, float64(frame.Width), float64(frame.Height))

	img := image.NewRGBA(image.Rect(0, 0, frame.Width, frame.Height))
	scanner := rasterx.NewScannerGV(frame.Width, frame.Height, img, img.Bounds())
	raster := rasterx.NewDasher(frame.Width, frame.Height, scanner)
	icon.Draw(raster, 1.0)

	f.Clear()
	for y := 0; y < frame.Height; y++ {
		for x := 0; x < frame.Width; x++ {
			c := img.RGBAAt(x, y)
			if c.A == 0 {
				continue
			}
			f.SetPixel(y, x, c.R, c.G, c.B)
		}
	}
	return nil
}

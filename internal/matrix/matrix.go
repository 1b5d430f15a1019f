// Package matrix maps the logical (row, col, RGB) grid a Frame
// describes onto the physical serpentine-wired LED string, applying
// whatever rotation the enclosure has been mounted at.
package matrix

import (
	"fmt"

	"github.com/fkcurrie/blinkenmatrix/internal/frame"
)

// Rotation is one of the four physical orientations the matrix driver
// supports. It is a property of the enclosure, not of any individual
// animation, and is persisted in preferences.
type Rotation int

const (
	Rotation0 Rotation = iota
	Rotation90
	Rotation180
	Rotation270
)

// ParseRotation parses the wire-protocol rotation tokens ("000",
// "090", "180", "270") used by the ROT command.
func ParseRotation(s string) (Rotation, bool) {
	switch s {
	case "000":
		return Rotation0, true
	case "090":
		return Rotation90, true
	case "180":
		return Rotation180, true
	case "270":
		return Rotation270, true
	default:
		return 0, false
	}
}

// String renders the rotation back into its wire-protocol token.
func (r Rotation) String() string {
	switch r {
	case Rotation90:
		return "090"
	case Rotation180:
		return "180"
	case Rotation270:
		return "270"
	default:
		return "000"
	}
}

// Driver is the single point that knows how the logical grid a Frame
// describes is wired to the physical LED string. It has no notion of
// animations or playback — it only renders whatever Frame it is
// given.
type Driver struct {
	rotation    Rotation
	strip       Strip
	led         []byte // flat R,G,B triples in physical string order
	brightness  byte   // global scale applied on top of per-channel correction
	correction  [3]byte
	dither      bool
	ditherTick  uint32
}

// Strip is the capability a concrete LED driver (WS281x, HUB75, ...)
// must provide. Show is given the rendered RGB string in physical
// order and must flush it to hardware.
type Strip interface {
	Show(led []byte) error
}

// New creates a Driver over strip with the given initial rotation.
func New(strip Strip, rotation Rotation) *Driver {
	return &Driver{
		rotation:   rotation,
		strip:      strip,
		led:        make([]byte, frame.Width*frame.Height*frame.BytesPerPixel),
		brightness: 255,
		correction: [3]byte{255, 255, 255},
	}
}

// SetBrightness sets the global brightness scale (0-255) applied to
// every channel on render. The power controller clamps this to the
// USB current budget; DIM lets the host further reduce it within that
// clamp.
func (d *Driver) SetBrightness(b byte) {
	d.brightness = b
}

// Brightness returns the current global brightness scale.
func (d *Driver) Brightness() byte {
	return d.brightness
}

// SetDither enables or disables binary dithering: when enabled,
// channel values that don't evenly scale alternate between floor and
// ceiling across successive renders instead of always rounding down.
func (d *Driver) SetDither(on bool) {
	d.dither = on
}

// Dither reports whether binary dithering is enabled.
func (d *Driver) Dither() bool {
	return d.dither
}

// SetColorCorrection sets the per-channel RGB correction factors
// (0-255 each) applied on top of brightness.
func (d *Driver) SetColorCorrection(rgb [3]byte) {
	d.correction = rgb
}

// ColorCorrection returns the current per-channel correction factors.
func (d *Driver) ColorCorrection() [3]byte {
	return d.correction
}

// SetRotation changes the physical orientation applied to every
// subsequent Render call.
func (d *Driver) SetRotation(r Rotation) error {
	switch r {
	case Rotation0, Rotation90, Rotation180, Rotation270:
		d.rotation = r
		return nil
	default:
		return fmt.Errorf("matrix: invalid rotation %d", r)
	}
}

// Rotation returns the current physical orientation.
func (d *Driver) Rotation() Rotation {
	return d.rotation
}

// Render writes f into the physical LED buffer using a
// boustrophedon/serpentine index map composed with the current
// rotation, then flushes it via the underlying Strip.
func (d *Driver) Render(f *frame.Frame) error {
	d.ditherTick++
	for y := 0; y < frame.Height; y++ {
		for x := 0; x < frame.Width; x++ {
			r, g, b := f.Pixel(y, x)
			idx := d.physicalIndex(y, x)
			off := idx * frame.BytesPerPixel
			d.led[off] = d.shade(r, d.correction[0])
			d.led[off+1] = d.shade(g, d.correction[1])
			d.led[off+2] = d.shade(b, d.correction[2])
		}
	}
	return d.strip.Show(d.led)
}

// shade applies color correction and global brightness to a single
// raw channel value. With dithering enabled, a channel whose scaled
// value has a fractional remainder alternates between floor and
// ceiling on successive renders instead of always truncating down.
func (d *Driver) shade(raw, corr byte) byte {
	const denom = uint32(255) * 255
	num := uint32(raw) * uint32(corr) * uint32(d.brightness)
	v := num / denom
	rem := num % denom

	if d.dither && rem > 0 && d.ditherTick%2 == 1 {
		v++
	}
	return byte(v)
}

// Clear renders an all-black frame.
func (d *Driver) Clear() error {
	var blank frame.Frame
	return d.Render(&blank)
}

// physicalIndex composes the rotation permutation with the serpentine
// wiring map: even logical rows (post-rotation) run left-to-right, odd
// rows right-to-left.
func (d *Driver) physicalIndex(y, x int) int {
	ry, rx := d.rotate(y, x)

	var idx int
	if ry%2 == 0 {
		idx = ry*frame.Width + rx
	} else {
		idx = ry*frame.Width + (frame.Width - 1 - rx)
	}
	return idx
}

// rotate maps logical (y, x) to physical (y, x) under the current
// rotation, assuming a square matrix.
func (d *Driver) rotate(y, x int) (int, int) {
	const n = frame.Width // == frame.Height
	switch d.rotation {
	case Rotation90:
		return x, n - 1 - y
	case Rotation180:
		return n - 1 - y, n - 1 - x
	case Rotation270:
		return n - 1 - x, y
	default:
		return y, x
	}
}

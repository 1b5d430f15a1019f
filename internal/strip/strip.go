// Package strip adapts the matrix driver's flat RGB byte buffer onto
// a physical WS2812-style pixel strip, the same hardware driver the
// original LED matrix code in this repository used.
package strip

import (
	"fmt"

	ws2811 "github.com/rpi-ws281x/rpi-ws281x-go"
)

// WS2811Strip drives addressable RGB LEDs over a single GPIO pin via
// the Pi's PWM/DMA peripheral.
type WS2811Strip struct {
	ws *ws2811.WS2811
}

// Open configures and initializes the strip for ledCount pixels on
// gpioPin. Brightness here is the hardware channel's maximum; the
// matrix driver's own brightness/dither/correction logic runs before
// Show is ever called, so this is normally left at full scale.
func Open(gpioPin, ledCount int) (*WS2811Strip, error) {
	cfg := ws2811.DefaultConfig
	cfg.Channels[0].Brightness = 255
	cfg.Channels[0].GpioPin = gpioPin
	cfg.Channels[0].LedCount = ledCount
	cfg.Channels[0].StripeType = ws2811.WS2811StripGRB

	ws, err := ws2811.MakeWS2811(&cfg)
	if err != nil {
		return nil, fmt.Errorf("strip: create ws2811: %w", err)
	}
	if err := ws.Init(); err != nil {
		return nil, fmt.Errorf("strip: init ws2811: %w", err)
	}
	return &WS2811Strip{ws: ws}, nil
}

// Show implements matrix.Strip. led is packed 3 bytes per pixel in
// physical wiring order (R,G,B); the hardware driver wants one packed
// 0xRRGGBB uint32 per pixel.
func (s *WS2811Strip) Show(led []byte) error {
	leds := s.ws.Leds(0)
	n := len(led) / 3
	if n > len(leds) {
		n = len(leds)
	}
	for i := 0; i < n; i++ {
		r := uint32(led[i*3])
		g := uint32(led[i*3+1])
		b := uint32(led[i*3+2])
		leds[i] = r<<16 | g<<8 | b
	}
	return s.ws.Render()
}

// Close releases the underlying PWM/DMA resources.
func (s *WS2811Strip) Close() {
	s.ws.Fini()
}

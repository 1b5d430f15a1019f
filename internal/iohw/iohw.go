// Package iohw wires the firmware's buttons, status LEDs and power
// rails onto Linux GPIO character-device lines, the way the teacher's
// gpio-test tool drove a single output line with go-gpiocdev, and
// memory-maps an on-SoC ADC register to read the USB-C CC pins, the
// way its PIO driver memory-maps the RP1 peripheral block.
package iohw

import (
	"fmt"
	"os"
	"sync"
	"syscall"
	"time"
	"unsafe"

	"github.com/warthog618/go-gpiocdev"
)

// NowFunc returns the current time in milliseconds, the same
// millis()-style clock the rest of the firmware is driven by.
type NowFunc func() uint32

// Button is a digital input line, active low, matching the common
// wiring for a tactile button pulled up and grounded on press.
type Button struct {
	line *gpiocdev.Line
}

// NewButton requests offset on chip as a pulled-up input.
func NewButton(chip string, offset int) (*Button, error) {
	line, err := gpiocdev.RequestLine(chip, offset, gpiocdev.AsInput, gpiocdev.WithPullUp)
	if err != nil {
		return nil, fmt.Errorf("iohw: request button line %s:%d: %w", chip, offset, err)
	}
	return &Button{line: line}, nil
}

// Pressed reports whether the button is currently held down.
func (b *Button) Pressed() (bool, error) {
	v, err := b.line.Value()
	if err != nil {
		return false, fmt.Errorf("iohw: read button: %w", err)
	}
	return v == 0, nil
}

// Close releases the underlying line.
func (b *Button) Close() error {
	return b.line.Close()
}

// touchDebounceWindowMs mirrors power.debounceWindowMs: two
// consecutive observations 15ms apart must agree before a state
// change is accepted.
const touchDebounceWindowMs = 15

// TouchButton debounces one capacitive-touch input using the same
// two-observations-15ms-apart agreement the power controller applies
// to CC-pin sampling, so a momentary touch glitch can't by itself
// start pairing.
type TouchButton struct {
	*Button
	now NowFunc

	haveCand    bool
	candidate   bool
	candidateAt uint32
	accepted    bool
}

// NewTouchButton requests offset on chip as a pulled-up input and
// wraps it with the debounce logic above.
func NewTouchButton(chip string, offset int, now NowFunc) (*TouchButton, error) {
	b, err := NewButton(chip, offset)
	if err != nil {
		return nil, err
	}
	return &TouchButton{Button: b, now: now}, nil
}

// Pressed returns the debounced reading: a raw reading must repeat
// unchanged across two samples at least touchDebounceWindowMs apart
// before it is accepted.
func (t *TouchButton) Pressed() (bool, error) {
	raw, err := t.Button.Pressed()
	if err != nil {
		return false, err
	}

	now := t.now()
	switch {
	case !t.haveCand || raw != t.candidate:
		t.candidate = raw
		t.candidateAt = now
		t.haveCand = true
	case int32(now-t.candidateAt) >= touchDebounceWindowMs && raw != t.accepted:
		t.accepted = raw
	}
	return t.accepted, nil
}

// TouchGroup ANDs three debounced capacitive touch lines together —
// the "three capacitive touch inputs... simultaneously held" trigger
// spec.md section 4.8's main loop uses to enter pairing.
type TouchGroup struct {
	buttons [3]*TouchButton
}

// NewTouchGroup requests all three offsets on chip as debounced touch
// inputs, closing any already-opened lines if a later request fails.
func NewTouchGroup(chip string, offsets [3]int, now NowFunc) (*TouchGroup, error) {
	var g TouchGroup
	for i, offset := range offsets {
		b, err := NewTouchButton(chip, offset, now)
		if err != nil {
			for j := 0; j < i; j++ {
				g.buttons[j].Close()
			}
			return nil, fmt.Errorf("iohw: request touch line %s:%d: %w", chip, offset, err)
		}
		g.buttons[i] = b
	}
	return &g, nil
}

// Pressed implements loop.PairingButton: true only while all three
// lines are simultaneously, and individually debounced, held.
func (g *TouchGroup) Pressed() (bool, error) {
	for _, b := range g.buttons {
		held, err := b.Pressed()
		if err != nil {
			return false, err
		}
		if !held {
			return false, nil
		}
	}
	return true, nil
}

// Close releases all three lines, returning the first error (if any)
// but always attempting every Close.
func (g *TouchGroup) Close() error {
	var firstErr error
	for _, b := range g.buttons {
		if err := b.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Rails gates the matrix's power-enable lines. Two lines are driven
// together since the reference board splits 5V enable across a pair
// of load switches.
type Rails struct {
	a, b *gpiocdev.Line
}

// NewRails requests both enable lines as outputs, initially off.
func NewRails(chip string, offsetA, offsetB int) (*Rails, error) {
	a, err := gpiocdev.RequestLine(chip, offsetA, gpiocdev.AsOutput(0))
	if err != nil {
		return nil, fmt.Errorf("iohw: request rail line %s:%d: %w", chip, offsetA, err)
	}
	b, err := gpiocdev.RequestLine(chip, offsetB, gpiocdev.AsOutput(0))
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("iohw: request rail line %s:%d: %w", chip, offsetB, err)
	}
	return &Rails{a: a, b: b}, nil
}

// Energize implements power.Rails: both lines are driven together.
func (r *Rails) Energize(on bool) error {
	v := 0
	if on {
		v = 1
	}
	if err := r.a.SetValue(v); err != nil {
		return fmt.Errorf("iohw: energize rail a: %w", err)
	}
	if err := r.b.SetValue(v); err != nil {
		return fmt.Errorf("iohw: energize rail b: %w", err)
	}
	return nil
}

// Close releases both lines.
func (r *Rails) Close() error {
	err1 := r.a.Close()
	err2 := r.b.Close()
	if err1 != nil {
		return err1
	}
	return err2
}

// StatusLED drives a single output line with software PWM, run on a
// background tick, so Controller.updateStatusLED's breathing curve
// turns into an actual dimmed glow rather than an on/off blink.
type StatusLED struct {
	line *gpiocdev.Line

	mu   sync.Mutex
	duty float64
	stop chan struct{}
}

const (
	pwmTick  = 5 * time.Millisecond
	pwmCycle = 100 * time.Millisecond
)

// NewStatusLED requests offset on chip as an output and starts its
// PWM goroutine.
func NewStatusLED(chip string, offset int) (*StatusLED, error) {
	line, err := gpiocdev.RequestLine(chip, offset, gpiocdev.AsOutput(0))
	if err != nil {
		return nil, fmt.Errorf("iohw: request status LED line %s:%d: %w", chip, offset, err)
	}
	s := &StatusLED{line: line, stop: make(chan struct{})}
	go s.run()
	return s, nil
}

func (s *StatusLED) run() {
	ticker := time.NewTicker(pwmTick)
	defer ticker.Stop()

	var phase time.Duration
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.mu.Lock()
			duty := s.duty
			s.mu.Unlock()

			phase += pwmTick
			if phase >= pwmCycle {
				phase -= pwmCycle
			}
			v := 0
			if phase < time.Duration(float64(pwmCycle)*duty) {
				v = 1
			}
			s.line.SetValue(v)
		}
	}
}

// SetDuty implements power.StatusLED, clamping fraction to [0,1].
func (s *StatusLED) SetDuty(fraction float64) error {
	if fraction < 0 {
		fraction = 0
	}
	if fraction > 1 {
		fraction = 1
	}
	s.mu.Lock()
	s.duty = fraction
	s.mu.Unlock()
	return nil
}

// Close stops the PWM goroutine and releases the line.
func (s *StatusLED) Close() error {
	close(s.stop)
	return s.line.Close()
}

// memRegion is a memory-mapped window of physical address space,
// opened against /dev/mem the same way the teacher's PIO driver
// mapped the RP1 peripheral block. ADCPin is the only caller, so the
// mapping lives directly in this package instead of a standalone
// wrapper type.
type memRegion struct {
	bytes []byte
}

// mapMemRegion opens /dev/mem and maps size bytes starting at addr.
func mapMemRegion(addr, size uintptr) (*memRegion, error) {
	f, err := os.OpenFile("/dev/mem", os.O_RDWR|os.O_SYNC, 0)
	if err != nil {
		return nil, fmt.Errorf("iohw: open /dev/mem: %w", err)
	}
	defer f.Close()

	region, err := syscall.Mmap(
		int(f.Fd()),
		int64(addr),
		int(size),
		syscall.PROT_READ|syscall.PROT_WRITE,
		syscall.MAP_SHARED,
	)
	if err != nil {
		return nil, fmt.Errorf("iohw: mmap %#x/%d bytes: %w", addr, size, err)
	}
	return &memRegion{bytes: region}, nil
}

func (m *memRegion) read32(offset uintptr) uint32 {
	return *(*uint32)(unsafe.Pointer(&m.bytes[offset]))
}

func (m *memRegion) close() error {
	if err := syscall.Munmap(m.bytes); err != nil {
		return fmt.Errorf("iohw: munmap: %w", err)
	}
	return nil
}

// ADCPin reads a USB-C CC pin's comparator output through a
// memory-mapped ADC register, in raw counts converted to volts.
type ADCPin struct {
	region    *memRegion
	offset    uintptr
	vRef      float64
	fullScale uint32
}

// NewADCPin maps size bytes of /dev/mem starting at baseAddr and reads
// a 32-bit register at offset within that window.
func NewADCPin(baseAddr, size uintptr, offset uintptr, vRef float64, fullScale uint32) (*ADCPin, error) {
	if offset+4 > size {
		return nil, fmt.Errorf("iohw: adc offset %d out of range for %d-byte mapping", offset, size)
	}
	region, err := mapMemRegion(baseAddr, size)
	if err != nil {
		return nil, fmt.Errorf("iohw: map adc region: %w", err)
	}
	return &ADCPin{region: region, offset: offset, vRef: vRef, fullScale: fullScale}, nil
}

// ReadVolts implements power.Pin.
func (p *ADCPin) ReadVolts() (float64, error) {
	raw := p.region.read32(p.offset)
	return float64(raw) / float64(p.fullScale) * p.vRef, nil
}

// Close unmaps the ADC register window.
func (p *ADCPin) Close() error {
	return p.region.close()
}

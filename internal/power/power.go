// Package power implements the USB-C current-negotiation control loop
// from spec section 4.6: CC-pin sampling, debounce, brightness
// clamping, and matrix power-rail gating.
package power

import (
	"fmt"
	"math"
)

// Budget is the maximum current the upstream USB-C port has
// advertised.
type Budget int

const (
	BudgetUnknown Budget = iota
	Budget3A
	Budget1_5A
	Budget0_5A
)

// Thresholds, in volts, used to classify a sampled CC-pin voltage per
// the USB-C Configuration Channel spec.
const (
	Threshold3A   = 1.23
	Threshold1_5A = 0.66
)

// Classify maps a sampled CC-pin voltage to the current budget it
// advertises.
func Classify(volts float64) Budget {
	switch {
	case volts >= Threshold3A:
		return Budget3A
	case volts >= Threshold1_5A:
		return Budget1_5A
	default:
		return Budget0_5A
	}
}

// ParseBudget parses the wire-protocol PWR tokens.
func ParseBudget(s string) (Budget, bool) {
	switch s {
	case "3.0A":
		return Budget3A, true
	case "1.5A":
		return Budget1_5A, true
	case "0.5A":
		return Budget0_5A, true
	default:
		return 0, false
	}
}

// String renders the budget back into its wire-protocol token.
func (b Budget) String() string {
	switch b {
	case Budget3A:
		return "3.0A"
	case Budget1_5A:
		return "1.5A"
	case Budget0_5A:
		return "0.5A"
	default:
		return "UNK"
	}
}

// BrightnessCap returns the global brightness ceiling (0-255) the
// matrix driver must not exceed at this current budget. Unknown is
// treated as the most conservative budget until the debouncer
// accepts a real reading.
func (b Budget) BrightnessCap() byte {
	switch b {
	case Budget3A:
		return 255
	case Budget1_5A:
		return 160
	default:
		return 64
	}
}

// Pin samples a USB-C CC line's instantaneous voltage. Implementations
// typically wrap an ADC-capable GPIO line.
type Pin interface {
	ReadVolts() (float64, error)
}

// Brightness is the subset of the matrix driver's capability the
// power controller drives directly.
type Brightness interface {
	SetBrightness(byte)
}

// Rails gates the matrix power-enable lines.
type Rails interface {
	Energize(on bool) error
}

// StatusLED is the onboard power-status indicator; SetDuty takes a
// fraction in [0, 1].
type StatusLED interface {
	SetDuty(fraction float64) error
}

// NowFunc returns the current time in milliseconds.
type NowFunc func() uint32

// debounceWindowMs is the confirmation sample interval from spec
// section 4.6: two consecutive observations 15ms apart must agree
// before an advertised current change is accepted.
const debounceWindowMs = 15

// breathPeriodMs is the Gaussian breathing period at 1.5A.
const breathPeriodMs = 3000

// Controller drives the USB-C CC-pin debounce loop and everything
// that is gated on its outcome.
type Controller struct {
	cc1, cc2 Pin
	now      NowFunc

	brightness Brightness
	rails      Rails
	statusLED  StatusLED

	accepted Budget
	override *Budget

	candidate   Budget
	candidateAt uint32
	haveCand    bool

	railsOn bool
}

// New creates a Controller. brightness, rails, and statusLED may be
// nil in tests that don't care about their side effects.
func New(cc1, cc2 Pin, now NowFunc, brightness Brightness, rails Rails, statusLED StatusLED) *Controller {
	return &Controller{
		cc1:        cc1,
		cc2:        cc2,
		now:        now,
		brightness: brightness,
		rails:      rails,
		statusLED:  statusLED,
		accepted:   BudgetUnknown,
	}
}

// Current returns the currently accepted current budget.
func (c *Controller) Current() Budget {
	if c.override != nil {
		return *c.override
	}
	return c.accepted
}

// SetOverride bypasses CC-pin sampling entirely and applies budget
// immediately, as if it had just been debounced and accepted.
func (c *Controller) SetOverride(budget Budget) error {
	c.override = &budget
	return c.apply(budget)
}

// ClearOverride resumes CC-pin sampling from the next Update call.
func (c *Controller) ClearOverride() {
	c.override = nil
	c.haveCand = false
}

// HasOverride reports whether an override is active.
func (c *Controller) HasOverride() bool {
	return c.override != nil
}

// Debouncing reports whether a candidate CC-pin reading is currently
// awaiting its confirmation sample. Spec section 4.8's main loop
// shortens its tick to 15ms while this holds, so the confirmation
// sample lands promptly enough to satisfy the 60ms USB-C compliance
// window from spec section 4.6. An active override bypasses CC-pin
// sampling entirely, so it is never "debouncing".
func (c *Controller) Debouncing() bool {
	if c.override != nil {
		return false
	}
	return c.haveCand && c.candidate != c.accepted
}

// Update samples the CC pins (unless an override is active), debounces
// the result, and on acceptance applies the brightness cap and rail
// gating. It also drives the status LED breathing pattern. Call once
// per main-loop tick.
func (c *Controller) Update() error {
	now := c.now()

	if c.override == nil {
		v1, err := c.cc1.ReadVolts()
		if err != nil {
			return fmt.Errorf("power: read CC1: %w", err)
		}
		v2, err := c.cc2.ReadVolts()
		if err != nil {
			return fmt.Errorf("power: read CC2: %w", err)
		}
		v := v1
		if v2 > v1 {
			v = v2
		}
		sample := Classify(v)

		switch {
		case !c.haveCand || sample != c.candidate:
			c.candidate = sample
			c.candidateAt = now
			c.haveCand = true
		case now-c.candidateAt >= debounceWindowMs && sample != c.accepted:
			if err := c.apply(sample); err != nil {
				return err
			}
		}
	}

	return c.updateStatusLED(now)
}

// apply commits budget as the accepted current and gates brightness
// and the power rails accordingly. The matrix is energized for any
// accepted budget other than unknown, including legacy 0.5A.
func (c *Controller) apply(budget Budget) error {
	c.accepted = budget
	if c.brightness != nil {
		c.brightness.SetBrightness(budget.BrightnessCap())
	}

	energize := budget != BudgetUnknown
	if c.rails != nil && energize != c.railsOn {
		if err := c.rails.Energize(energize); err != nil {
			return fmt.Errorf("power: gate rails: %w", err)
		}
		c.railsOn = energize
	}
	return nil
}

// updateStatusLED drives the onboard power LED: a Gaussian breathing
// pattern at 1.5A, steady at 3A, off otherwise.
func (c *Controller) updateStatusLED(nowMs uint32) error {
	if c.statusLED == nil {
		return nil
	}

	switch c.Current() {
	case Budget1_5A:
		phase := float64(nowMs%breathPeriodMs) / breathPeriodMs
		// Gaussian pulse centered mid-period, floor 1/4, peak 3/4.
		x := (phase - 0.5) * 4
		gauss := math.Exp(-x * x)
		duty := 0.25 + 0.5*gauss
		return c.statusLED.SetDuty(duty)
	case Budget3A:
		return c.statusLED.SetDuty(0.75)
	default:
		return c.statusLED.SetDuty(0)
	}
}

// Package loop runs blinkenmatrixd's cooperative main loop: sample
// the pairing button, advance the pairing state machine, render
// whichever frame is current (an animation frame or the pairing
// overlay) to the matrix, service one host transport's protocol
// traffic, update the power controller, then sleep out the rest of
// the tick budget. Everything here assumes a single goroutine; the
// transports push bytes onto channels from their own goroutines, but
// the loop is the only reader of dispatcher state.
package loop

import (
	"context"
	"crypto/rand"
	"fmt"
	"time"

	"github.com/fkcurrie/blinkenmatrix/internal/frame"
	"github.com/fkcurrie/blinkenmatrix/internal/matrix"
	"github.com/fkcurrie/blinkenmatrix/internal/overlay"
	"github.com/fkcurrie/blinkenmatrix/internal/pairing"
	"github.com/fkcurrie/blinkenmatrix/internal/player"
	"github.com/fkcurrie/blinkenmatrix/internal/power"
	"github.com/fkcurrie/blinkenmatrix/internal/protocol"
	"github.com/fkcurrie/blinkenmatrix/internal/transport"
)

// TickPeriod is the loop's target period; at 30ms the matrix refresh
// is well above the eye's flicker threshold while leaving headroom
// for protocol and pairing bookkeeping.
const TickPeriod = 30 * time.Millisecond

// DebounceTickPeriod is the shortened tick the loop switches to while
// the power controller has a CC-pin reading awaiting its confirmation
// sample, per spec.md section 4.8 and section 4.6's 60ms USB-C
// compliance budget.
const DebounceTickPeriod = 15 * time.Millisecond

// digitCyclePeriod is how long each PIN digit is shown before
// advancing to the next one.
const digitCyclePeriod = 900 * time.Millisecond

// PairingButton reports whether the pairing button is currently held.
type PairingButton interface {
	Pressed() (bool, error)
}

// WirelessLink reports whether a peer is connected, so the pairing
// state machine and transport multiplexer agree on link state.
type WirelessLink interface {
	Active() bool
}

// Loop owns the pieces wired together at startup and drives them one
// tick at a time.
type Loop struct {
	player     *player.Player
	matrixDrv  *matrix.Driver
	dispatcher *protocol.Dispatcher
	transport  *transport.Multiplexer
	powerCtrl  *power.Controller
	pairingFSM *pairing.Machine
	button     PairingButton
	wireless   WirelessLink

	startedAt    time.Time
	elapsed      func() time.Duration
	digitIndex   int
	pinColor     [3]byte
	pairingColor [3]byte

	// overlayFrame is owned by the loop, never by the pool, so that
	// drawing the pairing PIN or Bluetooth glyph can never corrupt a
	// live animation frame the player is also holding a pointer to.
	overlayFrame frame.Frame
}

// New assembles a Loop from its already-constructed collaborators.
func New(
	pl *player.Player,
	mtx *matrix.Driver,
	dispatcher *protocol.Dispatcher,
	mux *transport.Multiplexer,
	pwr *power.Controller,
	button PairingButton,
	wireless WirelessLink,
) *Loop {
	l := &Loop{
		player:       pl,
		matrixDrv:    mtx,
		dispatcher:   dispatcher,
		transport:    mux,
		powerCtrl:    pwr,
		button:       button,
		wireless:     wireless,
		startedAt:    time.Now(),
		pinColor:     [3]byte{255, 255, 255},
		pairingColor: [3]byte{64, 128, 255},
	}
	l.elapsed = func() time.Duration { return time.Since(l.startedAt) }
	l.pairingFSM = pairing.New(l.nowMillis, randomPIN)
	return l
}

func (l *Loop) nowMillis() uint32 {
	return uint32(l.elapsed().Milliseconds())
}

// randomPIN generates a four-digit pairing code.
func randomPIN() string {
	var b [2]byte
	rand.Read(b[:])
	n := (int(b[0])<<8 | int(b[1])) % 10000
	return fmt.Sprintf("%04d", n)
}

// RunOnce executes exactly one tick: pairing, render, protocol
// service, power update. It never sleeps; callers drive the cadence.
func (l *Loop) RunOnce() error {
	held := false
	if l.button != nil {
		var err error
		held, err = l.button.Pressed()
		if err != nil {
			return fmt.Errorf("loop: read pairing button: %w", err)
		}
	}

	peerConnected := l.wireless != nil && l.wireless.Active()
	l.pairingFSM.Tick(held, peerConnected, peerConnected)

	if err := l.render(); err != nil {
		return fmt.Errorf("loop: render: %w", err)
	}

	if err := l.serviceProtocol(); err != nil {
		return fmt.Errorf("loop: service protocol: %w", err)
	}

	if l.powerCtrl != nil {
		if err := l.powerCtrl.Update(); err != nil {
			return fmt.Errorf("loop: power update: %w", err)
		}
	}

	return nil
}

func (l *Loop) render() error {
	switch l.pairingFSM.State() {
	case pairing.Pairing:
		if l.wireless == nil || !l.wireless.Active() {
			if err := overlay.RenderBluetoothGlyph(&l.overlayFrame, l.pairingColor); err != nil {
				return err
			}
			return l.matrixDrv.Render(&l.overlayFrame)
		}
		pin := l.pairingFSM.PIN()
		if pin == "" {
			return l.matrixDrv.Clear()
		}
		idx := int(l.elapsed()/digitCyclePeriod) % len(pin)
		if err := overlay.RenderDigit(&l.overlayFrame, pin[idx], l.pinColor); err != nil {
			return err
		}
		return l.matrixDrv.Render(&l.overlayFrame)
	default:
		f := l.player.CurrentFrame()
		return l.matrixDrv.Render(f)
	}
}

func (l *Loop) serviceProtocol() error {
	if l.transport == nil {
		return nil
	}
	n, err := l.transport.Available()
	if err != nil {
		return fmt.Errorf("available: %w", err)
	}
	for i := 0; i < n; i++ {
		b, err := l.transport.ReadByte()
		if err != nil {
			return fmt.Errorf("read byte: %w", err)
		}
		if resp, ok := l.dispatcher.FeedByte(b); ok {
			if err := l.transport.Println(resp); err != nil {
				return fmt.Errorf("write response: %w", err)
			}
		}
	}
	return nil
}

// Run drives RunOnce every TickPeriod until ctx is canceled, dropping
// to DebounceTickPeriod for as long as the power controller reports a
// CC-pin reading in debounce.
func (l *Loop) Run(ctx context.Context) error {
	period := TickPeriod
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := l.RunOnce(); err != nil {
				return err
			}

			next := TickPeriod
			if l.powerCtrl != nil && l.powerCtrl.Debouncing() {
				next = DebounceTickPeriod
			}
			if next != period {
				period = next
				ticker.Reset(period)
			}
		}
	}
}

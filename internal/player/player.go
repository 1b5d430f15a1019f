// Package player implements the time-driven frame selection state
// machine described in spec section 4.3: it retires expired
// animations, discards empty sealed ones, and hands the current frame
// to whatever is rendering the matrix.
package player

import (
	"github.com/fkcurrie/blinkenmatrix/internal/frame"
	"github.com/fkcurrie/blinkenmatrix/internal/pool"
)

// NowFunc returns the current time in milliseconds, injected so tests
// can control the clock deterministically.
type NowFunc func() uint32

// Player consults a Pool on every tick and selects which Frame is
// currently on screen.
type Player struct {
	pool *pool.Pool
	now  NowFunc

	sentinel frame.Frame
}

// New creates a Player over pool driven by now. The sentinel frame
// (all black) is returned whenever there is nothing live to play.
func New(p *pool.Pool, now NowFunc) *Player {
	return &Player{pool: p, now: now}
}

// CurrentFrame implements the per-tick algorithm from spec section
// 4.3: retire expired animations, discard empty sealed ones, and
// return either the sentinel or the frame that should be on screen
// right now.
func (pl *Player) CurrentFrame() *frame.Frame {
	now := pl.now()

	for {
		head, ok := pl.pool.Head()
		if !ok {
			return &pl.sentinel
		}
		if head.Expired(now) {
			pl.pool.RetireHead()
			continue
		}
		if head.NumFrames() == 0 && !head.BeingLoaded() {
			pl.pool.RetireHead()
			continue
		}
		break
	}

	head, ok := pl.pool.Head()
	if !ok || head.BeingLoaded() {
		return &pl.sentinel
	}

	if !head.Started() {
		head.MarkStarted(now)
		f := pl.pool.FrameAt(head, head.CurrentOffset())
		head.ArmFrameExpiration(now, f.Duration())
		return f
	}

	if head.FrameExpired(now) {
		head.AdvanceFrame()
		f := pl.pool.FrameAt(head, head.CurrentOffset())
		head.ArmFrameExpiration(now, f.Duration())
	}

	return pl.pool.FrameAt(head, head.CurrentOffset())
}

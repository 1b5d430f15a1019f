// Package pool implements the bounded animation and frame ring
// buffers described in spec section 4.2. Frames used by live
// animations occupy a contiguous span of the frame ring; animations
// occupy a contiguous span of the animation ring. Both rings are
// append-at-tail, retire-from-head: pool entries are never freed out
// of order.
package pool

import (
	"github.com/fkcurrie/blinkenmatrix/internal/diag"
	"github.com/fkcurrie/blinkenmatrix/internal/frame"
)

// Animation is one queued animation record: a span of frames in the
// enclosing Pool's frame ring plus the bookkeeping the player needs to
// drive playback.
type Animation struct {
	beingLoaded bool
	started     bool

	frameStart int // ring index of the first frame, mod pool.maxFrames
	numFrames  int
	durationMs int

	startedAtMs      uint32
	currentOffset    int // offset from frameStart, in [0, numFrames)
	frameExpiresAtMs uint32
}

// BeingLoaded reports whether this animation is still accepting
// frames (it is the tail animation and has not been sealed by DON or
// an implicit seal).
func (a *Animation) BeingLoaded() bool { return a.beingLoaded }

// Started reports whether the player has begun playing this
// animation.
func (a *Animation) Started() bool { return a.started }

// NumFrames returns the number of frames enqueued so far.
func (a *Animation) NumFrames() int { return a.numFrames }

// DurationMs returns the animation's total display duration.
func (a *Animation) DurationMs() int { return a.durationMs }

// Expired reports whether a started animation's total duration has
// elapsed as of nowMs. Comparisons go through int32(now-deadline) so a
// wrapped millisecond clock (the classic embedded millis() rollover)
// still compares correctly.
func (a *Animation) Expired(nowMs uint32) bool {
	if !a.started {
		return false
	}
	deadline := a.startedAtMs + uint32(a.durationMs)
	return int32(nowMs-deadline) >= 0
}

// MarkStarted transitions the animation from queued to playing: the
// animation clock starts now and playback begins at its first frame.
func (a *Animation) MarkStarted(nowMs uint32) {
	a.started = true
	a.startedAtMs = nowMs
	a.currentOffset = 0
}

// CurrentOffset returns the frame offset, within [0, numFrames), that
// is currently on screen.
func (a *Animation) CurrentOffset() int { return a.currentOffset }

// ArmFrameExpiration sets when the current frame should be advanced.
func (a *Animation) ArmFrameExpiration(nowMs uint32, frameDurationMs int) {
	a.frameExpiresAtMs = nowMs + uint32(frameDurationMs)
}

// FrameExpired reports whether the current frame's display duration
// has elapsed as of nowMs.
func (a *Animation) FrameExpired(nowMs uint32) bool {
	return int32(nowMs-a.frameExpiresAtMs) >= 0
}

// AdvanceFrame moves to the next frame, cycling within the
// animation's span.
func (a *Animation) AdvanceFrame() {
	if a.numFrames == 0 {
		return
	}
	a.currentOffset = (a.currentOffset + 1) % a.numFrames
}

// QueueEntry is one row of the QUE dump: remaining duration and frame
// count for a live animation.
type QueueEntry struct {
	RemainingMs int
	NumFrames   int
}

// Pool owns the parallel animation and frame rings.
type Pool struct {
	maxAnimations int
	maxFrames     int

	animations   []Animation
	animStart    int
	animLength   int

	frames      []frame.Frame
	frameStart  int
	frameLength int
}

// New creates a Pool with the given animation and frame ring
// capacities (firmware defaults are 32 and 16 respectively).
func New(maxAnimations, maxFrames int) *Pool {
	return &Pool{
		maxAnimations: maxAnimations,
		maxFrames:     maxFrames,
		animations:    make([]Animation, maxAnimations),
		frames:        make([]frame.Frame, maxFrames),
	}
}

// MaxAnimations returns the animation ring capacity.
func (p *Pool) MaxAnimations() int { return p.maxAnimations }

// MaxFrames returns the frame ring capacity.
func (p *Pool) MaxFrames() int { return p.maxFrames }

// AnimationsLen returns the number of live animations.
func (p *Pool) AnimationsLen() int { return p.animLength }

// FramesLen returns the number of frames owned by live animations.
func (p *Pool) FramesLen() int { return p.frameLength }

// Reset zeroes all cursors, discarding every live animation and
// frame. Used by the RST command.
func (p *Pool) Reset() {
	p.animStart, p.animLength = 0, 0
	p.frameStart, p.frameLength = 0, 0
}

// CanLoadAnimation reports whether both rings have slack for one more
// animation: a free animation slot and at least one free frame slot.
func (p *Pool) CanLoadAnimation() bool {
	return p.animLength < p.maxAnimations && p.frameLength < p.maxFrames
}

// tailAnimIndex returns the ring index of the slot following the last
// live animation.
func (p *Pool) tailAnimIndex() int {
	return (p.animStart + p.animLength) % p.maxAnimations
}

// tailFrameIndex returns the ring index of the slot following the
// last frame owned by a live animation.
func (p *Pool) tailFrameIndex() int {
	return (p.frameStart + p.frameLength) % p.maxFrames
}

// animAt returns a pointer to the animation at ring offset i from the
// head (0 is the head / currently playing animation).
func (p *Pool) animAt(i int) *Animation {
	return &p.animations[(p.animStart+i)%p.maxAnimations]
}

// tail returns the last live animation, or nil if the pool is empty.
func (p *Pool) tail() *Animation {
	if p.animLength == 0 {
		return nil
	}
	return p.animAt(p.animLength - 1)
}

// StartLoading seals any previously loading animation, then allocates
// a new tail animation slot marked being-loaded with the given
// duration. It reports false (without mutating the pool) when the
// animation ring is full.
func (p *Pool) StartLoading(durationMs int) bool {
	if !p.CanLoadAnimation() {
		return false
	}
	p.FinalizeLoading()

	slot := p.animAt(p.animLength) // about to become the new tail
	*slot = Animation{
		beingLoaded: true,
		frameStart:  p.tailFrameIndex(),
		durationMs:  durationMs,
	}
	p.animLength++
	return true
}

// IsLoadingAnimation reports whether the tail animation is still
// accepting frames.
func (p *Pool) IsLoadingAnimation() bool {
	t := p.tail()
	return t != nil && t.beingLoaded
}

// FinalizeLoading clears the being-loaded flag on the tail animation.
// It is idempotent and a no-op when the pool is empty or the tail is
// already sealed.
func (p *Pool) FinalizeLoading() {
	if t := p.tail(); t != nil {
		t.beingLoaded = false
	}
}

// GetFrameToLoad allocates the next frame ring slot, rewinds it,
// attributes it to the currently-loading animation, and returns a
// mutable reference for the parser to fill via Frame.LoadHex. It
// fails if the frame ring is full or no animation is currently being
// loaded.
func (p *Pool) GetFrameToLoad() (*frame.Frame, bool) {
	if p.frameLength >= p.maxFrames {
		return nil, false
	}
	t := p.tail()
	if t == nil || !t.beingLoaded {
		return nil, false
	}

	idx := p.tailFrameIndex()
	f := &p.frames[idx]
	f.Rewind()
	p.frameLength++
	t.numFrames++
	return f, true
}

// Head returns the currently-playing (or about-to-play) animation,
// the head of the animation ring.
func (p *Pool) Head() (*Animation, bool) {
	if p.animLength == 0 {
		return nil, false
	}
	return p.animAt(0), true
}

// RetireHead discards the head animation and releases its frames back
// to the ring. It reports whether an animation was retired.
func (p *Pool) RetireHead() bool {
	if p.animLength == 0 {
		return false
	}
	h := p.animAt(0)
	if h.numFrames > p.frameLength {
		// Invariant I2 says the live frame span is exactly the sum of
		// every live animation's numFrames; a head claiming more
		// frames than the ring holds is an impossible index into the
		// frame ring. Clamp instead of wrapping the ring into
		// whatever animation comes after it.
		diag.CantHappen("pool:retire_head_frame_count_exceeds_length")
		h.numFrames = p.frameLength
	}
	p.frameStart = (p.frameStart + h.numFrames) % p.maxFrames
	p.frameLength -= h.numFrames
	p.animStart = (p.animStart + 1) % p.maxAnimations
	p.animLength--
	return true
}

// SkipCurrent retires the head animation, unless it is the only (or
// no) live animation, in which case it is a no-op — NXT with a
// singleton queue never changes playback.
func (p *Pool) SkipCurrent() {
	if p.animLength < 2 {
		return
	}
	p.RetireHead()
}

// FrameAt returns the frame at cyclic offset k within anim's span,
// i.e. the k-th frame (mod anim.numFrames) belonging to anim.
func (p *Pool) FrameAt(a *Animation, k int) *frame.Frame {
	if a.numFrames == 0 {
		// The player never calls FrameAt on an animation with zero
		// frames (CurrentFrame retires or sentinel-returns first),
		// so reaching here is an impossible index into the frame
		// ring rather than an expected empty-animation case.
		diag.CantHappen("pool:frame_at_zero_frames")
		return nil
	}
	idx := (a.frameStart + (k % a.numFrames)) % p.maxFrames
	return &p.frames[idx]
}

// Queue returns one QueueEntry per live animation, head first. The
// head entry's RemainingMs is duration-minus-elapsed once started
// (spec section 9 resolves the ambiguity in favor of remaining time);
// entries that have not yet started report their full duration.
func (p *Pool) Queue(nowMs uint32) []QueueEntry {
	entries := make([]QueueEntry, p.animLength)
	for i := 0; i < p.animLength; i++ {
		a := p.animAt(i)
		remaining := a.durationMs
		if a.started {
			elapsed := int(nowMs - a.startedAtMs)
			remaining = a.durationMs - elapsed
			if remaining < 0 {
				remaining = 0
			}
		}
		entries[i] = QueueEntry{RemainingMs: remaining, NumFrames: a.numFrames}
	}
	return entries
}

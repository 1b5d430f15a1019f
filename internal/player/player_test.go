package player

import (
	"testing"

	"github.com/fkcurrie/blinkenmatrix/internal/pool"
)

type fakeClock struct{ ms uint32 }

func (c *fakeClock) now() uint32 { return c.ms }

func loadSolidFrame(t *testing.T, p *pool.Pool, durationMs int) {
	t.Helper()
	f, ok := p.GetFrameToLoad()
	if !ok {
		t.Fatal("GetFrameToLoad failed")
	}
	f.SetDuration(durationMs)
	f.SetPixel(0, 0, 1, 2, 3)
}

func TestCurrentFrameSentinelWhenEmpty(t *testing.T) {
	p := pool.New(4, 16)
	clk := &fakeClock{}
	pl := New(p, clk.now)

	f := pl.CurrentFrame()
	if r, g, b := f.Pixel(0, 0); r != 0 || g != 0 || b != 0 {
		t.Fatalf("sentinel pixel = (%d,%d,%d), want all zero", r, g, b)
	}
}

func TestCurrentFrameSentinelWhileLoading(t *testing.T) {
	p := pool.New(4, 16)
	p.StartLoading(1000)
	loadSolidFrame(t, p, 500)
	// Not finalized: still being loaded.

	clk := &fakeClock{}
	pl := New(p, clk.now)
	f := pl.CurrentFrame()
	if r, _, _ := f.Pixel(0, 0); r != 0 {
		t.Fatal("player must not display a loading animation")
	}
}

func TestCurrentFramePlaysSealedAnimation(t *testing.T) {
	p := pool.New(4, 16)
	p.StartLoading(1000)
	loadSolidFrame(t, p, 500)
	p.FinalizeLoading()

	clk := &fakeClock{ms: 0}
	pl := New(p, clk.now)
	f := pl.CurrentFrame()
	if r, _, _ := f.Pixel(0, 0); r != 1 {
		t.Fatalf("expected loaded pixel, got r=%d", r)
	}
}

func TestAnimationRetiresAtDuration(t *testing.T) {
	p := pool.New(4, 16)
	p.StartLoading(100)
	loadSolidFrame(t, p, 50)
	p.FinalizeLoading()

	clk := &fakeClock{}
	pl := New(p, clk.now)
	pl.CurrentFrame() // starts the animation at t=0

	clk.ms = 99
	if p.AnimationsLen() == 0 {
		t.Fatal("animation retired too early")
	}
	pl.CurrentFrame()
	if p.AnimationsLen() != 1 {
		t.Fatal("animation should still be live just before its duration elapses")
	}

	clk.ms = 100
	f := pl.CurrentFrame()
	if r, _, _ := f.Pixel(0, 0); r != 0 {
		t.Fatal("expected sentinel once the animation's duration has elapsed")
	}
	if p.AnimationsLen() != 0 {
		t.Fatalf("AnimationsLen() = %d, want 0 after retirement", p.AnimationsLen())
	}
}

func TestFramesCycleWithinAnimation(t *testing.T) {
	p := pool.New(4, 16)
	p.StartLoading(10000)
	f1, _ := p.GetFrameToLoad()
	f1.SetDuration(100)
	f1.SetPixel(0, 0, 9, 0, 0)
	f2, _ := p.GetFrameToLoad()
	f2.SetDuration(100)
	f2.SetPixel(0, 0, 0, 9, 0)
	p.FinalizeLoading()

	clk := &fakeClock{}
	pl := New(p, clk.now)

	first := pl.CurrentFrame()
	if r, _, _ := first.Pixel(0, 0); r != 9 {
		t.Fatalf("first frame pixel r=%d, want 9", r)
	}

	clk.ms = 150
	second := pl.CurrentFrame()
	if _, g, _ := second.Pixel(0, 0); g != 9 {
		t.Fatalf("second frame pixel g=%d, want 9", g)
	}

	clk.ms = 300
	third := pl.CurrentFrame()
	if r, _, _ := third.Pixel(0, 0); r != 9 {
		t.Fatalf("third frame (cycled back) pixel r=%d, want 9", r)
	}
}

func TestEmptySealedAnimationIsSkipped(t *testing.T) {
	p := pool.New(4, 16)
	p.StartLoading(100) // never loaded a frame
	p.FinalizeLoading()
	p.StartLoading(200)
	loadSolidFrame(t, p, 100)
	p.FinalizeLoading()

	clk := &fakeClock{}
	pl := New(p, clk.now)
	f := pl.CurrentFrame()
	if r, _, _ := f.Pixel(0, 0); r != 1 {
		t.Fatal("empty sealed animation should be skipped in favor of the next live one")
	}
}

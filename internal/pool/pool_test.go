package pool

import "testing"

func TestCanLoadAnimation(t *testing.T) {
	p := New(2, 4)
	if !p.CanLoadAnimation() {
		t.Fatal("fresh pool should accept a new animation")
	}
	if !p.StartLoading(100) {
		t.Fatal("StartLoading should succeed on empty pool")
	}
	if !p.StartLoading(100) {
		t.Fatal("StartLoading should succeed with one slot free")
	}
	if p.CanLoadAnimation() {
		t.Fatal("pool at capacity should refuse further loads")
	}
	if p.StartLoading(100) {
		t.Fatal("StartLoading should fail at capacity")
	}
}

func TestStartLoadingSealsPrevious(t *testing.T) {
	p := New(4, 16)
	p.StartLoading(1000)
	if !p.IsLoadingAnimation() {
		t.Fatal("first animation should be loading")
	}
	p.StartLoading(2000)
	if p.AnimationsLen() != 2 {
		t.Fatalf("AnimationsLen() = %d, want 2", p.AnimationsLen())
	}
}

func TestGetFrameToLoadRequiresLoadingAnimation(t *testing.T) {
	p := New(4, 16)
	if _, ok := p.GetFrameToLoad(); ok {
		t.Fatal("GetFrameToLoad should fail with no loading animation")
	}

	p.StartLoading(1000)
	f, ok := p.GetFrameToLoad()
	if !ok || f == nil {
		t.Fatal("GetFrameToLoad should succeed once an animation is loading")
	}

	p.FinalizeLoading()
	if _, ok := p.GetFrameToLoad(); ok {
		t.Fatal("GetFrameToLoad should fail once the animation is sealed")
	}
}

func TestGetFrameToLoadExhaustsFramePool(t *testing.T) {
	p := New(4, 2)
	p.StartLoading(1000)
	if _, ok := p.GetFrameToLoad(); !ok {
		t.Fatal("first frame should succeed")
	}
	if _, ok := p.GetFrameToLoad(); !ok {
		t.Fatal("second frame should succeed")
	}
	if _, ok := p.GetFrameToLoad(); ok {
		t.Fatal("third frame should fail: frame pool is full")
	}
}

func TestSkipCurrentNoOpOnSingleton(t *testing.T) {
	p := New(4, 16)
	p.StartLoading(1000)
	p.FinalizeLoading()
	p.SkipCurrent()
	if p.AnimationsLen() != 1 {
		t.Fatalf("SkipCurrent on singleton changed length to %d", p.AnimationsLen())
	}
}

func TestSkipCurrentRetiresHead(t *testing.T) {
	p := New(4, 16)
	p.StartLoading(1000)
	p.FinalizeLoading()
	p.StartLoading(2000)
	p.FinalizeLoading()

	p.SkipCurrent()
	if p.AnimationsLen() != 1 {
		t.Fatalf("AnimationsLen() = %d, want 1", p.AnimationsLen())
	}
	head, ok := p.Head()
	if !ok || head.DurationMs() != 2000 {
		t.Fatalf("expected remaining animation to have duration 2000, got %+v", head)
	}
}

func TestResetClearsCursors(t *testing.T) {
	p := New(4, 16)
	p.StartLoading(1000)
	p.GetFrameToLoad()
	p.Reset()
	if p.AnimationsLen() != 0 || p.FramesLen() != 0 {
		t.Fatalf("Reset left AnimationsLen=%d FramesLen=%d, want 0,0", p.AnimationsLen(), p.FramesLen())
	}
	if p.MaxAnimations() != 4 || p.MaxFrames() != 16 {
		t.Fatal("Reset must not change capacities")
	}
}

func TestRingWraparound(t *testing.T) {
	p := New(2, 2)
	// Fill, retire, refill repeatedly to exercise the modular index
	// arithmetic past the end of both rings.
	for i := 0; i < 5; i++ {
		if !p.StartLoading(10) {
			t.Fatalf("iteration %d: StartLoading failed", i)
		}
		if _, ok := p.GetFrameToLoad(); !ok {
			t.Fatalf("iteration %d: GetFrameToLoad failed", i)
		}
		p.FinalizeLoading()
		if !p.RetireHead() {
			t.Fatalf("iteration %d: RetireHead failed", i)
		}
	}
	if p.AnimationsLen() != 0 || p.FramesLen() != 0 {
		t.Fatalf("after wraparound loop, AnimationsLen=%d FramesLen=%d, want 0,0", p.AnimationsLen(), p.FramesLen())
	}
}

func TestQueueReportsRemainingForHeadOnly(t *testing.T) {
	p := New(4, 16)
	p.StartLoading(1000)
	p.FinalizeLoading()
	p.StartLoading(2000)
	p.FinalizeLoading()

	head, _ := p.Head()
	head.MarkStarted(100)

	entries := p.Queue(600)
	if len(entries) != 2 {
		t.Fatalf("Queue() len = %d, want 2", len(entries))
	}
	if entries[0].RemainingMs != 500 {
		t.Errorf("head RemainingMs = %d, want 500", entries[0].RemainingMs)
	}
	if entries[1].RemainingMs != 2000 {
		t.Errorf("unstarted RemainingMs = %d, want 2000 (full duration)", entries[1].RemainingMs)
	}
}

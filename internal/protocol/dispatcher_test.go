package protocol

import (
	"strconv"
	"strings"
	"testing"

	"github.com/fkcurrie/blinkenmatrix/internal/frame"
	"github.com/fkcurrie/blinkenmatrix/internal/matrix"
	"github.com/fkcurrie/blinkenmatrix/internal/pool"
	"github.com/fkcurrie/blinkenmatrix/internal/power"
)

type fakeMatrix struct {
	rotation   matrix.Rotation
	correction [3]byte
	dither     bool
	cleared    int
}

func newFakeMatrix() *fakeMatrix {
	return &fakeMatrix{correction: [3]byte{255, 255, 255}}
}

func (m *fakeMatrix) SetRotation(r matrix.Rotation) error {
	switch r {
	case matrix.Rotation0, matrix.Rotation90, matrix.Rotation180, matrix.Rotation270:
		m.rotation = r
		return nil
	}
	return errInvalidRotation
}
func (m *fakeMatrix) Rotation() matrix.Rotation           { return m.rotation }
func (m *fakeMatrix) SetColorCorrection(rgb [3]byte)      { m.correction = rgb }
func (m *fakeMatrix) ColorCorrection() [3]byte            { return m.correction }
func (m *fakeMatrix) SetDither(on bool)                   { m.dither = on }
func (m *fakeMatrix) Dither() bool                        { return m.dither }
func (m *fakeMatrix) Clear() error                         { m.cleared++; return nil }

type fakeDim struct{ dim byte }

func (d *fakeDim) SetDim(v byte) { d.dim = v }
func (d *fakeDim) Dim() byte     { return d.dim }

type fakePower struct {
	current  power.Budget
	override *power.Budget
}

func (p *fakePower) Current() power.Budget {
	if p.override != nil {
		return *p.override
	}
	return p.current
}
func (p *fakePower) SetOverride(b power.Budget) error { p.override = &b; return nil }
func (p *fakePower) ClearOverride()                   { p.override = nil }
func (p *fakePower) HasOverride() bool                { return p.override != nil }

type stubErr string

func (e stubErr) Error() string { return string(e) }

const errInvalidRotation = stubErr("invalid rotation")

func newTestDispatcher() (*Dispatcher, *pool.Pool, *fakeMatrix) {
	p := pool.New(32, 16)
	mtx := newFakeMatrix()
	dim := &fakeDim{dim: 255}
	pwr := &fakePower{current: power.Budget3A}
	var ms uint32
	d := New(p, mtx, dim, pwr, nil, func() uint32 { return ms }, nil)
	return d, p, mtx
}

func solidHexRow(hex string) string {
	var b strings.Builder
	for i := 0; i < frame.Width; i++ {
		b.WriteString(hex)
	}
	return b.String()
}

func TestVER(t *testing.T) {
	d, _, _ := newTestDispatcher()
	if got := d.Dispatch("VER"); got != "ACK VER 1.0" {
		t.Fatalf("Dispatch(VER) = %q", got)
	}
}

func TestUnknownCommand(t *testing.T) {
	d, _, _ := newTestDispatcher()
	if got := d.Dispatch("XYZ"); got != "NAK XYZ CMD" {
		t.Fatalf("Dispatch(XYZ) = %q", got)
	}
}

func TestShortCommandIsLineError(t *testing.T) {
	d, _, _ := newTestDispatcher()
	if got := d.Dispatch("V"); got != "NAK LIN" {
		t.Fatalf("Dispatch(V) = %q", got)
	}
}

func TestEmptyLineIsLineError(t *testing.T) {
	d, _, _ := newTestDispatcher()
	if got := d.Dispatch(""); got != "NAK LIN" {
		t.Fatalf("Dispatch('') = %q", got)
	}
}

func TestFRE(t *testing.T) {
	d, _, _ := newTestDispatcher()
	if got := d.Dispatch("FRE"); got != "ACK FRE 32 16" {
		t.Fatalf("Dispatch(FRE) = %q", got)
	}
}

func TestMinimalAnimationScenario(t *testing.T) {
	d, _, _ := newTestDispatcher()

	if got := d.Dispatch("ANM 2000"); got != "ACK ANM 2000" {
		t.Fatalf("ANM: %q", got)
	}
	if got := d.Dispatch("FRM 1000"); got != "ACK FRM 1000" {
		t.Fatalf("FRM: %q", got)
	}
	row := solidHexRow("FF0000")
	for i := 0; i < frame.Height; i++ {
		want := "ACK RGB " + strconv.Itoa(i)
		if got := d.Dispatch("RGB " + row); got != want {
			t.Fatalf("RGB row %d: got %q, want %q", i, got, want)
		}
	}
	if got := d.Dispatch("DON"); got != "ACK DON ANM" {
		t.Fatalf("DON: %q", got)
	}
}

func TestRGBRowLengthMismatchIsARG(t *testing.T) {
	d, _, _ := newTestDispatcher()
	d.Dispatch("ANM 1000")
	d.Dispatch("FRM 500")
	if got := d.Dispatch("RGB FF00"); got != "NAK RGB ARG" {
		t.Fatalf("short RGB row = %q, want NAK RGB ARG", got)
	}
}

func TestRGBOverflowAfterFrameComplete(t *testing.T) {
	d, _, _ := newTestDispatcher()
	d.Dispatch("ANM 1000")
	d.Dispatch("FRM 500")
	row := solidHexRow("00FF00")
	for i := 0; i < frame.Height; i++ {
		if got := d.Dispatch("RGB " + row); got == "NAK RGB OFL" {
			t.Fatalf("row %d prematurely overflowed", i)
		}
	}
	if got := d.Dispatch("RGB " + row); got != "NAK RGB OFL" {
		t.Fatalf("17th RGB row = %q, want NAK RGB OFL", got)
	}
}

func TestRGBWithoutFRMIsNFM(t *testing.T) {
	d, _, _ := newTestDispatcher()
	if got := d.Dispatch("RGB " + solidHexRow("000000")); got != "NAK RGB NFM" {
		t.Fatalf("RGB without FRM = %q, want NAK RGB NFM", got)
	}
}

func TestDONWithoutAnimationIsNOA(t *testing.T) {
	d, _, _ := newTestDispatcher()
	if got := d.Dispatch("DON"); got != "NAK DON NOA" {
		t.Fatalf("DON without ANM = %q, want NAK DON NOA", got)
	}
}

func TestAnimationPoolUnderflow(t *testing.T) {
	d, _, _ := newTestDispatcher()
	for i := 0; i < 32; i++ {
		if got := d.Dispatch("ANM 100"); got != "ACK ANM 100" {
			t.Fatalf("ANM #%d: got %q", i, got)
		}
	}
	if got := d.Dispatch("ANM 100"); got != "NAK ANM UFL" {
		t.Fatalf("33rd ANM = %q, want NAK ANM UFL", got)
	}
	if got := d.Dispatch("RST"); got != "ACK RST" {
		t.Fatalf("RST: %q", got)
	}
	if got := d.Dispatch("FRE"); got != "ACK FRE 32 16" {
		t.Fatalf("FRE after RST: %q", got)
	}
}

func TestSkipNoOpOnSingleton(t *testing.T) {
	d, _, _ := newTestDispatcher()
	d.Dispatch("ANM 60000")
	d.Dispatch("DON")
	if got := d.Dispatch("NXT"); got != "ACK NXT" {
		t.Fatalf("NXT: %q", got)
	}
}

func TestRotationRoundTripThroughDispatcher(t *testing.T) {
	d, _, mtx := newTestDispatcher()
	if got := d.Dispatch("ROT 090"); got != "ACK ROT 090" {
		t.Fatalf("ROT 090: %q", got)
	}
	if mtx.Rotation() != matrix.Rotation90 {
		t.Fatalf("matrix rotation = %v, want Rotation90", mtx.Rotation())
	}
	if got := d.Dispatch("ROT"); got != "ACK ROT 090" {
		t.Fatalf("ROT read-back: %q", got)
	}
}

func TestCLCSetAndReset(t *testing.T) {
	d, _, _ := newTestDispatcher()
	if got := d.Dispatch("CLC FF8040"); got != "ACK CLC FF8040" {
		t.Fatalf("CLC set: %q", got)
	}
	if got := d.Dispatch("CLC RST"); got != "ACK CLC FFFFFF" {
		t.Fatalf("CLC RST: %q", got)
	}
}

func TestDIMRejectsOutOfRangeArg(t *testing.T) {
	d, _, _ := newTestDispatcher()
	if got := d.Dispatch("DIM 300"); got != "NAK DIM ARG" {
		t.Fatalf("DIM 300: %q, want NAK DIM ARG", got)
	}
	if got := d.Dispatch("DIM 100"); got != "ACK DIM 100" {
		t.Fatalf("DIM 100: %q", got)
	}
}

func TestPWRReadAndOverrideAndReset(t *testing.T) {
	d, _, _ := newTestDispatcher()
	if got := d.Dispatch("PWR"); got != "ACK PWR 3.0A" {
		t.Fatalf("PWR read: %q", got)
	}
	if got := d.Dispatch("PWR 0.5A"); got != "ACK PWR 0.5A" {
		t.Fatalf("PWR override: %q", got)
	}
	if got := d.Dispatch("PWR RST"); got != "ACK PWR 3.0A" {
		t.Fatalf("PWR reset: %q", got)
	}
}

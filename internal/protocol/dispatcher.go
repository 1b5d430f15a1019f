package protocol

import (
	"fmt"
	"log"
	"strconv"
	"strings"

	"github.com/fkcurrie/blinkenmatrix/internal/diag"
	"github.com/fkcurrie/blinkenmatrix/internal/frame"
	"github.com/fkcurrie/blinkenmatrix/internal/matrix"
	"github.com/fkcurrie/blinkenmatrix/internal/pool"
	"github.com/fkcurrie/blinkenmatrix/internal/power"
	"github.com/fkcurrie/blinkenmatrix/internal/prefs"
)

// Version is the firmware version string reported by VER.
const Version = "1.0"

// maxTokens bounds how many whitespace-separated tokens a line is
// split into; the protocol never needs more than command + 3 args.
const maxTokens = 4

// MatrixControl is the subset of the matrix driver the dispatcher
// needs for ROT/CLC/DTH and RST.
type MatrixControl interface {
	SetRotation(matrix.Rotation) error
	Rotation() matrix.Rotation
	SetColorCorrection([3]byte)
	ColorCorrection() [3]byte
	SetDither(bool)
	Dither() bool
	Clear() error
}

// DimSetter is the brightness limiter's host-facing half (see
// internal/power.Limiter): DIM sets the host's desired ceiling, which
// is combined with the power controller's USB current cap.
type DimSetter interface {
	SetDim(byte)
	Dim() byte
}

// PowerOverride is the subset of the power controller the dispatcher
// needs for PWR.
type PowerOverride interface {
	Current() power.Budget
	SetOverride(power.Budget) error
	ClearOverride()
	HasOverride() bool
}

// Dispatcher tokenizes protocol lines and dispatches them to command
// handlers. It owns the single frame-being-loaded cursor described in
// spec section 4.5.
type Dispatcher struct {
	pool   *pool.Pool
	mtx    MatrixControl
	dim    DimSetter
	pwr    PowerOverride
	prefs  *prefs.Store
	now    func() uint32
	logger *log.Logger

	line         *LineBuffer
	loadingFrame *frame.Frame
}

// New creates a Dispatcher over its collaborators. logger may be nil,
// in which case log.Default() is used.
func New(p *pool.Pool, mtx MatrixControl, dim DimSetter, pwr PowerOverride, prefsStore *prefs.Store, now func() uint32, logger *log.Logger) *Dispatcher {
	if logger == nil {
		logger = log.Default()
	}
	return &Dispatcher{
		pool:   p,
		mtx:    mtx,
		dim:    dim,
		pwr:    pwr,
		prefs:  prefsStore,
		now:    now,
		logger: logger,
		line:   NewLineBuffer(),
	}
}

// FeedByte feeds one incoming byte from the transport. When it
// completes a line, it dispatches the line and returns the single
// response line to send back (without a trailing newline) and true.
func (d *Dispatcher) FeedByte(b byte) (response string, ok bool) {
	line, complete, overflow := d.line.Feed(b)
	if !complete {
		return "", false
	}
	if overflow {
		return "NAK LTL", true
	}
	return d.Dispatch(line), true
}

// Dispatch tokenizes and executes a single already-delimited line.
func (d *Dispatcher) Dispatch(line string) string {
	tokens := strings.Fields(line)
	if len(tokens) == 0 {
		return "NAK LIN"
	}
	if len(tokens) > maxTokens {
		tokens = tokens[:maxTokens]
	}
	cmd := tokens[0]
	if len(cmd) != 3 {
		return "NAK LIN"
	}
	args := tokens[1:]

	handler, ok := commandTable[cmd]
	if !ok {
		return fmt.Sprintf("NAK %s CMD", cmd)
	}
	return handler(d, args)
}

type handlerFunc func(d *Dispatcher, args []string) string

// commandTable is the sorted three-letter command dispatch table from
// spec section 4.5.
var commandTable = map[string]handlerFunc{
	"ANM": (*Dispatcher).handleANM,
	"CLC": (*Dispatcher).handleCLC,
	"DBG": (*Dispatcher).handleDBG,
	"DIM": (*Dispatcher).handleDIM,
	"DON": (*Dispatcher).handleDON,
	"DTH": (*Dispatcher).handleDTH,
	"FRE": (*Dispatcher).handleFRE,
	"FRM": (*Dispatcher).handleFRM,
	"NXT": (*Dispatcher).handleNXT,
	"PWR": (*Dispatcher).handlePWR,
	"QUE": (*Dispatcher).handleQUE,
	"RGB": (*Dispatcher).handleRGB,
	"ROT": (*Dispatcher).handleROT,
	"RST": (*Dispatcher).handleRST,
	"VER": (*Dispatcher).handleVER,
}

func (d *Dispatcher) handleVER(args []string) string {
	return "ACK VER " + Version
}

func (d *Dispatcher) handleFRE(args []string) string {
	freeAnims := d.pool.MaxAnimations() - d.pool.AnimationsLen()
	freeFrames := d.pool.MaxFrames() - d.pool.FramesLen()
	return fmt.Sprintf("ACK FRE %d %d", freeAnims, freeFrames)
}

func (d *Dispatcher) handleQUE(args []string) string {
	entries := d.pool.Queue(d.now())
	var b strings.Builder
	b.WriteString("ACK QUE")
	for _, e := range entries {
		fmt.Fprintf(&b, " (%d,%d)", e.RemainingMs, e.NumFrames)
	}
	return b.String()
}

func (d *Dispatcher) handleRST(args []string) string {
	d.pool.Reset()
	d.loadingFrame = nil
	if err := d.mtx.Clear(); err != nil {
		d.logger.Printf("protocol: RST clear matrix: %v", err)
	}
	return "ACK RST"
}

func (d *Dispatcher) handleDBG(args []string) string {
	return fmt.Sprintf(
		"DBG anims=%d/%d frames=%d/%d loading=%t cursor_armed=%t",
		d.pool.AnimationsLen(), d.pool.MaxAnimations(),
		d.pool.FramesLen(), d.pool.MaxFrames(),
		d.pool.IsLoadingAnimation(), d.loadingFrame != nil,
	)
}

func (d *Dispatcher) handleCLC(args []string) string {
	switch {
	case len(args) == 0:
		c := d.mtx.ColorCorrection()
		return "ACK CLC " + hex6(c)
	case args[0] == "RST":
		d.mtx.SetColorCorrection([3]byte{255, 255, 255})
		if d.prefs != nil {
			if err := d.prefs.ClearColorCorrection(); err != nil {
				d.logger.Printf("protocol: clear color correction: %v", err)
			}
		}
		return "ACK CLC " + hex6(d.mtx.ColorCorrection())
	default:
		rgb, ok := parseHex6(args[0])
		if !ok {
			return "NAK CLC ARG"
		}
		d.mtx.SetColorCorrection(rgb)
		if d.prefs != nil {
			packed := uint32(rgb[0])<<16 | uint32(rgb[1])<<8 | uint32(rgb[2])
			if err := d.prefs.SetColorCorrection(packed); err != nil {
				d.logger.Printf("protocol: persist color correction: %v", err)
			}
		}
		return "ACK CLC " + hex6(rgb)
	}
}

func (d *Dispatcher) handleDIM(args []string) string {
	if len(args) == 0 {
		return fmt.Sprintf("ACK DIM %d", d.dim.Dim())
	}
	n, err := strconv.Atoi(args[0])
	if err != nil || n < 0 || n > 255 {
		return "NAK DIM ARG"
	}
	d.dim.SetDim(byte(n))
	if d.prefs != nil {
		if err := d.prefs.SetDim(uint32(n)); err != nil {
			d.logger.Printf("protocol: persist dim: %v", err)
		}
	}
	return fmt.Sprintf("ACK DIM %d", n)
}

func (d *Dispatcher) handleDTH(args []string) string {
	if len(args) == 0 {
		if d.mtx.Dither() {
			return "ACK DTH ON"
		}
		return "ACK DTH OFF"
	}
	var on bool
	switch args[0] {
	case "ON":
		on = true
	case "OFF":
		on = false
	default:
		return "NAK DTH ARG"
	}
	d.mtx.SetDither(on)
	if d.prefs != nil {
		if err := d.prefs.SetDither(on); err != nil {
			d.logger.Printf("protocol: persist dither: %v", err)
		}
	}
	if on {
		return "ACK DTH ON"
	}
	return "ACK DTH OFF"
}

func (d *Dispatcher) handleROT(args []string) string {
	if len(args) == 0 {
		return "ACK ROT " + d.mtx.Rotation().String()
	}
	r, ok := matrix.ParseRotation(args[0])
	if !ok {
		return "NAK ROT ARG"
	}
	if err := d.mtx.SetRotation(r); err != nil {
		return "NAK ROT ARG"
	}
	if d.prefs != nil {
		if err := d.prefs.SetRotation(uint32(r)); err != nil {
			d.logger.Printf("protocol: persist rotation: %v", err)
		}
	}
	return "ACK ROT " + r.String()
}

func (d *Dispatcher) handlePWR(args []string) string {
	if len(args) == 0 {
		return "ACK PWR " + d.pwr.Current().String()
	}
	if args[0] == "RST" {
		d.pwr.ClearOverride()
		if d.prefs != nil {
			if err := d.prefs.ClearPowerOverride(); err != nil {
				d.logger.Printf("protocol: clear power override: %v", err)
			}
		}
		return "ACK PWR " + d.pwr.Current().String()
	}
	budget, ok := power.ParseBudget(args[0])
	if !ok {
		return "NAK PWR ARG"
	}
	if err := d.pwr.SetOverride(budget); err != nil {
		return "NAK PWR ARG"
	}
	if d.prefs != nil {
		if err := d.prefs.SetPowerOverride(uint32(budget)); err != nil {
			d.logger.Printf("protocol: persist power override: %v", err)
		}
	}
	return "ACK PWR " + budget.String()
}

func (d *Dispatcher) handleANM(args []string) string {
	ms, ok := parseNonNegativeMs(args)
	if !ok {
		return "NAK ANM ARG"
	}
	if !d.pool.StartLoading(ms) {
		return "NAK ANM UFL"
	}
	d.loadingFrame = nil
	return fmt.Sprintf("ACK ANM %d", ms)
}

func (d *Dispatcher) handleFRM(args []string) string {
	ms, ok := parseNonNegativeMs(args)
	if !ok {
		return "NAK FRM ARG"
	}
	if !d.pool.IsLoadingAnimation() {
		return "NAK FRM NOA"
	}
	f, ok := d.pool.GetFrameToLoad()
	if !ok {
		return "NAK FRM UFL"
	}
	f.SetDuration(ms)
	d.loadingFrame = f
	return fmt.Sprintf("ACK FRM %d", ms)
}

func (d *Dispatcher) handleRGB(args []string) string {
	if d.loadingFrame == nil {
		return "NAK RGB NFM"
	}
	if !d.pool.IsLoadingAnimation() {
		// d.loadingFrame is only ever armed while the pool has a tail
		// animation still accepting frames; these two pieces of state
		// diverging is an invariant violation, not a normal NFM.
		diag.CantHappen("protocol:rgb_armed_without_loading_animation")
		d.loadingFrame = nil
		return "NAK RGB NFM"
	}
	if d.loadingFrame.IsComplete() {
		return "NAK RGB OFL"
	}
	if len(args) != 1 || len(args[0]) != frame.Width*frame.BytesPerPixel*2 {
		return "NAK RGB ARG"
	}
	row, err := d.loadingFrame.LoadHex(args[0])
	if err != nil {
		return "NAK RGB ARG"
	}
	return fmt.Sprintf("ACK RGB %d", row)
}

func (d *Dispatcher) handleDON(args []string) string {
	if !d.pool.IsLoadingAnimation() {
		return "NAK DON NOA"
	}
	d.pool.FinalizeLoading()
	d.loadingFrame = nil
	return "ACK DON ANM"
}

func (d *Dispatcher) handleNXT(args []string) string {
	d.pool.SkipCurrent()
	return "ACK NXT"
}

// parseNonNegativeMs validates the single <ms> argument ANM and FRM
// both take.
func parseNonNegativeMs(args []string) (int, bool) {
	if len(args) != 1 {
		return 0, false
	}
	n, err := strconv.Atoi(args[0])
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

func hex6(rgb [3]byte) string {
	return strings.ToUpper(fmt.Sprintf("%02x%02x%02x", rgb[0], rgb[1], rgb[2]))
}

func parseHex6(s string) ([3]byte, bool) {
	var rgb [3]byte
	if len(s) != 6 {
		return rgb, false
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return rgb, false
	}
	rgb[0] = byte(v >> 16)
	rgb[1] = byte(v >> 8)
	rgb[2] = byte(v)
	return rgb, true
}

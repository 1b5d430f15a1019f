package power

// Sink receives the final, clamped brightness value (e.g.
// *matrix.Driver, which exposes SetBrightness(byte)).
type Sink interface {
	SetBrightness(byte)
}

// Limiter reconciles two independent brightness requests: the USB-C
// current budget's ceiling (applied automatically by Controller.apply)
// and the host's DIM override. The value actually pushed to the
// matrix driver is always the lower of the two.
type Limiter struct {
	sink Sink
	cap  byte
	dim  byte
}

// NewLimiter creates a Limiter defaulting to full brightness on both
// inputs, so the first applied cap or dim takes effect immediately.
func NewLimiter(sink Sink) *Limiter {
	return &Limiter{sink: sink, cap: 255, dim: 255}
}

// SetBrightness implements the Brightness interface Controller drives
// with the USB current budget's ceiling.
func (l *Limiter) SetBrightness(cap byte) {
	l.cap = cap
	l.push()
}

// SetDim implements the host-facing DIM command.
func (l *Limiter) SetDim(dim byte) {
	l.dim = dim
	l.push()
}

// Dim returns the host's last requested brightness, independent of
// the USB current clamp.
func (l *Limiter) Dim() byte {
	return l.dim
}

func (l *Limiter) push() {
	v := l.cap
	if l.dim < v {
		v = l.dim
	}
	l.sink.SetBrightness(v)
}

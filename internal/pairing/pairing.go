// Package pairing implements the Bluetooth pairing sub-state machine
// the main loop drives: Idle until the pairing button is held, then
// Pairing while the device displays its PIN and waits for the peer to
// connect and confirm, then Active for as long as the wireless link
// stays up.
package pairing

// State is the pairing sub-state machine's current phase.
type State int

const (
	// Idle means no pairing attempt is in progress and the wireless
	// transport has no connected peer.
	Idle State = iota
	// Pairing means the PIN is on screen and the device is waiting
	// for the peer to connect and confirm it.
	Pairing
	// Active means a peer is connected and confirmed; the wireless
	// transport is now the one servicing the protocol.
	Active
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Pairing:
		return "pairing"
	case Active:
		return "active"
	default:
		return "unknown"
	}
}

// holdToEnterMs is how long all three capacitive pairing buttons must
// be held simultaneously, per spec.md section 4.8, before a fresh
// pairing attempt starts.
const holdToEnterMs = 3000

// pinTimeoutMs aborts a pairing attempt that never gets confirmed.
const pinTimeoutMs = 60000

// NowFunc mirrors the rest of the firmware's millis()-style clock.
type NowFunc func() uint32

// PinSource supplies a fresh pairing PIN each time one is needed.
type PinSource func() string

// Machine drives pairing state transitions from three inputs sampled
// once per main-loop tick: the pairing button, a confirm button (or
// gesture) on the peer side surfaced through the wireless transport,
// and whether the wireless transport currently holds a connection.
type Machine struct {
	now       NowFunc
	newPIN    PinSource
	state     State
	pin       string
	buttonAt  uint32
	holding   bool
	enteredAt uint32
}

// New builds a Machine starting in Idle.
func New(now NowFunc, newPIN PinSource) *Machine {
	return &Machine{now: now, newPIN: newPIN, state: Idle}
}

// State returns the current phase.
func (m *Machine) State() State {
	return m.state
}

// PIN returns the PIN generated for the in-progress or most recent
// pairing attempt.
func (m *Machine) PIN() string {
	return m.pin
}

// Tick advances the state machine. buttonHeld is the ANDed,
// individually-debounced reading of all three capacitive pairing
// buttons (iohw.TouchGroup.Pressed) — true only while every one of
// them is simultaneously held; peerConnected reflects the wireless
// transport's live connection state; peerConfirmed is set once the
// peer has echoed the displayed PIN back over the link.
func (m *Machine) Tick(buttonHeld, peerConnected, peerConfirmed bool) {
	now := m.now()

	switch m.state {
	case Idle:
		if buttonHeld {
			if !m.holding {
				m.holding = true
				m.buttonAt = now
			}
			if int32(now-m.buttonAt) >= holdToEnterMs {
				m.pin = m.newPIN()
				m.state = Pairing
				m.enteredAt = now
				m.holding = false
			}
		} else {
			m.holding = false
		}

	case Pairing:
		if peerConnected && peerConfirmed {
			m.state = Active
			return
		}
		if !peerConnected && int32(now-m.enteredAt) >= pinTimeoutMs {
			m.state = Idle
			m.pin = ""
		}

	case Active:
		if !peerConnected {
			m.state = Idle
			m.pin = ""
		}
	}
}

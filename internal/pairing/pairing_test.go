package pairing

import "testing"

func fixedPIN() string { return "1234" }

func TestIdleUntilButtonHeldLongEnough(t *testing.T) {
	var ms uint32
	now := func() uint32 { return ms }
	m := New(now, fixedPIN)

	m.Tick(true, false, false)
	if m.State() != Idle {
		t.Fatalf("state = %v, want Idle immediately after press", m.State())
	}

	ms = holdToEnterMs
	m.Tick(true, false, false)
	if m.State() != Pairing {
		t.Fatalf("state = %v, want Pairing after hold", m.State())
	}
	if m.PIN() != "1234" {
		t.Fatalf("PIN() = %q", m.PIN())
	}
}

func TestReleasingButtonResetsHoldTimer(t *testing.T) {
	var ms uint32
	now := func() uint32 { return ms }
	m := New(now, fixedPIN)

	m.Tick(true, false, false)
	ms += holdToEnterMs - 1
	m.Tick(false, false, false)
	ms += holdToEnterMs - 1
	m.Tick(true, false, false)
	if m.State() != Idle {
		t.Fatalf("state = %v, want Idle: hold timer should have reset on release", m.State())
	}
}

func TestPairingAdvancesToActiveOnConfirm(t *testing.T) {
	var ms uint32
	now := func() uint32 { return ms }
	m := New(now, fixedPIN)
	m.Tick(true, false, false)
	ms = holdToEnterMs
	m.Tick(true, false, false)

	m.Tick(false, true, false)
	if m.State() != Pairing {
		t.Fatalf("state = %v, want Pairing while unconfirmed", m.State())
	}
	m.Tick(false, true, true)
	if m.State() != Active {
		t.Fatalf("state = %v, want Active after confirm", m.State())
	}
}

func TestPairingTimesOutWithoutConnection(t *testing.T) {
	var ms uint32
	now := func() uint32 { return ms }
	m := New(now, fixedPIN)
	m.Tick(true, false, false)
	ms = holdToEnterMs
	m.Tick(true, false, false)

	ms += pinTimeoutMs
	m.Tick(false, false, false)
	if m.State() != Idle {
		t.Fatalf("state = %v, want Idle after pairing timeout", m.State())
	}
	if m.PIN() != "" {
		t.Fatalf("PIN() = %q, want cleared", m.PIN())
	}
}

func TestActiveDropsToIdleOnDisconnect(t *testing.T) {
	var ms uint32
	now := func() uint32 { return ms }
	m := New(now, fixedPIN)
	m.Tick(true, false, false)
	ms = holdToEnterMs
	m.Tick(true, false, false)
	m.Tick(false, true, true)
	if m.State() != Active {
		t.Fatalf("setup: state = %v, want Active", m.State())
	}

	m.Tick(false, false, false)
	if m.State() != Idle {
		t.Fatalf("state = %v, want Idle after disconnect", m.State())
	}
}

// Package diag implements the cant_happen sink from spec.md section 7
// item 4: a hook for "this should be impossible" branches — a ring
// index that invariants say can never go out of range, a parser
// cursor that should never diverge from the pool's loading state —
// that must log and continue rather than crash the main loop.
package diag

import (
	"log"
	"sync/atomic"
)

var count atomic.Uint64

// CantHappen is called with a short code identifying which
// impossible branch was reached. The default implementation logs via
// log.Default() and increments Count(); integrators may replace it
// entirely (to trigger a watchdog reset, light a status LED, etc.)
// the same way the rest of the firmware takes optional *log.Logger
// hooks instead of hardcoding log.Printf.
var CantHappen = func(code string) {
	count.Add(1)
	log.Printf("cant_happen: %s", code)
}

// Count returns how many times the default CantHappen has fired since
// boot; a replacement hook does not increment it.
func Count() uint64 {
	return count.Load()
}

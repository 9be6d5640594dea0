package engine

import "sync/atomic"

// opGuard rejects any mutating operation entered while another is in
// flight. Operations run to completion or total rollback with no
// interleaving, so a second entry (including one reentering through an
// external ledger callback) is refused outright rather than queued; a mutex
// could not distinguish a waiting caller from same-goroutine reentrancy.
type opGuard struct {
	inFlight atomic.Bool
}

func (g *opGuard) enter() error {
	if !g.inFlight.CompareAndSwap(false, true) {
		return ErrReentrantCall
	}
	return nil
}

// exit releases the guard. Deferred on every operation so the flag clears
// on all paths, including failures.
func (g *opGuard) exit() {
	g.inFlight.Store(false)
}

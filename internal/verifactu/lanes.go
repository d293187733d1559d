package verifactu

import (
	"sync"

	"github.com/rauletepaz/account-verifactu/internal/record"
)

// laneLocks serializes the build-chain-submit pipeline per issuer+lane.
// Two invoices for the same issuer must not race on the previous-fingerprint
// read or the chain forks; different issuers and lanes proceed in parallel.
type laneLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newLaneLocks() *laneLocks {
	return &laneLocks{locks: make(map[string]*sync.Mutex)}
}

func (l *laneLocks) acquire(issuerID string, lane record.Lane) func() {
	key := issuerID + "/" + string(lane)
	l.mu.Lock()
	m, ok := l.locks[key]
	if !ok {
		m = &sync.Mutex{}
		l.locks[key] = m
	}
	l.mu.Unlock()
	m.Lock()
	return m.Unlock
}

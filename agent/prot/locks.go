package prot

import (
	"sync"

	"github.com/findy-network/findy-issuer-agent/agent/psm"
)

// Per-entity locking: concurrent transition attempts on the same machine are
// mutually exclusive, cross-entity operations proceed without coordination.
type lockMap struct {
	locks map[psm.StateKey]*sync.Mutex
	sync.Mutex
}

var machines = lockMap{locks: make(map[psm.StateKey]*sync.Mutex)}

func (m *lockMap) lock(key psm.StateKey) func() {
	m.Lock()
	l, ok := m.locks[key]
	if !ok {
		l = &sync.Mutex{}
		m.locks[key] = l
	}
	m.Unlock()

	l.Lock()
	return l.Unlock
}

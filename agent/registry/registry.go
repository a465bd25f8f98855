/*
Package registry is the correlation id registry of the agency. It allocates
the opaque ids that connect asynchronous protocol traffic to in-flight
entities, and resolves them back to the entity kind. Ids are unique for the
registry's lifetime: a retired id leaves a tombstone behind so that it can
never be handed out nor resolved again.
*/
package registry

import (
	"errors"
	"sync"

	"github.com/findy-network/findy-common-go/dto"
	"github.com/findy-network/findy-issuer-agent/agent/psm"
	"github.com/findy-network/findy-issuer-agent/agent/storage"
	"github.com/findy-network/findy-issuer-agent/agent/utils"
	"github.com/golang/glog"
	ariesstorage "github.com/hyperledger/aries-framework-go/spi/storage"
	"github.com/lainio/err2"
	"github.com/lainio/err2/try"
)

type record struct {
	Kind    psm.Kind
	Retired bool
}

var (
	store storage.Store

	// allocation must be atomic with respect to uniqueness checking
	l sync.Mutex
)

// Open attaches the registry to an initialized storage provider.
func Open(p *storage.Provider) (err error) {
	defer err2.Handle(&err, "registry open")

	store, err = p.Open(psm.RegistryBucket)
	try.To(err)
	return nil
}

// Allocate produces a new collision-free correlation id for the given kind.
func Allocate(kind psm.Kind) (id string, err error) {
	defer err2.Handle(&err, "registry allocate")

	l.Lock()
	defer l.Unlock()

	for {
		id = utils.UUID()
		_, err := store.Get(id)
		if errors.Is(err, ariesstorage.ErrDataNotFound) {
			break
		}
		try.To(err)
		glog.Warningln("correlation id collision, retrying:", id)
	}

	r := record{Kind: kind}
	try.To(store.Put(id, dto.ToGOB(&r)))
	return id, nil
}

// Resolve returns the kind of the entity behind id. Retired ids resolve to
// ErrNotFound just like ids that never existed.
func Resolve(id string) (kind psm.Kind, err error) {
	d, err := store.Get(id)
	if errors.Is(err, ariesstorage.ErrDataNotFound) {
		return 0, psm.ErrNotFound
	}
	if err != nil {
		return 0, err
	}

	r := record{}
	dto.FromGOB(d, &r)
	if r.Retired {
		return 0, psm.ErrNotFound
	}
	return r.Kind, nil
}

// Retire marks an id as gone without freeing it for reuse. Stale handles held
// by callers keep failing with NotFound instead of resolving to a new entity.
func Retire(id string) (err error) {
	defer err2.Handle(&err, "registry retire")

	l.Lock()
	defer l.Unlock()

	d, err := store.Get(id)
	if errors.Is(err, ariesstorage.ErrDataNotFound) {
		return psm.ErrNotFound
	}
	try.To(err)

	r := record{}
	dto.FromGOB(d, &r)
	r.Retired = true
	return store.Put(id, dto.ToGOB(&r))
}

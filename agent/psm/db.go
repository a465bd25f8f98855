package psm

import (
	"errors"
	"sync"

	"github.com/findy-network/findy-common-go/dto"
	"github.com/findy-network/findy-issuer-agent/agent/storage"
	ariesstorage "github.com/hyperledger/aries-framework-go/spi/storage"
	"github.com/lainio/err2"
	"github.com/lainio/err2/try"
)

const (
	bucketPSM        = "psm"
	bucketConnection = "connections"
	bucketIssueCred  = "credentials"
	bucketThread     = "threads"
	bucketActive     = "active"
	bucketRegistry   = "registry"
)

// Buckets lists every bucket of the agency's database file. The registry
// bucket belongs to the registry package which opens it by name.
var Buckets = []string{
	bucketPSM,
	bucketConnection,
	bucketIssueCred,
	bucketThread,
	bucketActive,
	bucketRegistry,
}

// RegistryBucket is the bucket name reserved for the correlation registry.
const RegistryBucket = bucketRegistry

var (
	psmStore    storage.Store
	connStore   storage.Store
	credStore   storage.Store
	threadStore storage.Store
	activeStore storage.Store
)

// Open attaches the package to an initialized storage provider. It must be
// called once before any machine is stored.
func Open(p *storage.Provider) (err error) {
	defer err2.Handle(&err, "psm open")

	psmStore, err = p.Open(bucketPSM)
	try.To(err)
	connStore, err = p.Open(bucketConnection)
	try.To(err)
	credStore, err = p.Open(bucketIssueCred)
	try.To(err)
	threadStore, err = p.Open(bucketThread)
	try.To(err)
	activeStore, err = p.Open(bucketActive)
	try.To(err)
	return nil
}

func get(s storage.Store, key string) (d []byte, err error) {
	d, err = s.Get(key)
	if errors.Is(err, ariesstorage.ErrDataNotFound) {
		return nil, ErrNotFound
	}
	return d, err
}

func AddPSM(p *PSM) (err error) {
	return psmStore.Put(p.Key.String(), p.Data())
}

func GetPSM(key StateKey) (m *PSM, err error) {
	defer err2.Handle(&err, "get psm")

	d, err := get(psmStore, key.String())
	try.To(err)
	return NewPSM(d), nil
}

func AddConnectionRep(p *ConnectionRep) (err error) {
	return connStore.Put(p.Key.String(), p.Data())
}

func GetConnectionRep(key StateKey) (m *ConnectionRep, err error) {
	defer err2.Handle(&err, "get connection rep")

	d, err := get(connStore, key.String())
	try.To(err)
	return NewConnectionRep(d), nil
}

func AddIssueCredRep(p *IssueCredRep) (err error) {
	return credStore.Put(p.Key.String(), p.Data())
}

func GetIssueCredRep(key StateKey) (m *IssueCredRep, err error) {
	defer err2.Handle(&err, "get issue cred rep")

	d, err := get(credStore, key.String())
	try.To(err)
	return NewIssueCredRep(d), nil
}

// AddThread indexes an exchange by its thread id so inbound protocol messages
// can be correlated.
func AddThread(threadID string, key StateKey) (err error) {
	return threadStore.Put(threadID, dto.ToGOB(&key))
}

// GetThread resolves a thread id to the exchange owning it. Unknown threads
// return ErrUnknownThread, the caller decides if that is an error or normal
// network reordering.
func GetThread(threadID string) (key StateKey, err error) {
	d, err := threadStore.Get(threadID)
	if errors.Is(err, ariesstorage.ErrDataNotFound) {
		return StateKey{}, ErrUnknownThread
	}
	if err != nil {
		return StateKey{}, err
	}
	dto.FromGOB(d, &key)
	return key, nil
}

// activeRef is the value of the active exchange index.
type activeRef struct {
	Key    StateKey
	ConnID string
}

// reservation must be atomic with respect to the existence check
var activeL sync.Mutex

// ReserveActive claims the at-most-one-active slot for an exchange. A second
// reservation with the same connection, schema and cred def fails with
// ErrDuplicateActiveExchange until the first one is released, also when the
// reservations race each other.
func ReserveActive(rep *IssueCredRep) (err error) {
	defer err2.Handle(&err, "reserve active")

	activeL.Lock()
	defer activeL.Unlock()

	_, err = activeStore.Get(rep.ActiveKey())
	if err == nil {
		return ErrDuplicateActiveExchange
	}
	if !errors.Is(err, ariesstorage.ErrDataNotFound) {
		return err
	}
	ref := activeRef{Key: rep.Key, ConnID: rep.ConnectionID}
	return activeStore.Put(rep.ActiveKey(), dto.ToGOB(&ref))
}

// ReleaseActive frees the slot when an exchange reaches a terminal state.
func ReleaseActive(rep *IssueCredRep) (err error) {
	activeL.Lock()
	defer activeL.Unlock()

	return activeStore.Delete(rep.ActiveKey())
}

// HasOpenExchanges tells if a connection still owns non-terminal credential
// exchanges. Connections cannot be abandoned nor removed while it does.
func HasOpenExchanges(connID string) (yes bool, err error) {
	defer err2.Handle(&err, "open exchanges")

	values, err := activeStore.GetAll(func(d []byte) []byte { return d })
	try.To(err)

	for _, d := range values {
		ref := activeRef{}
		dto.FromGOB(d, &ref)
		if ref.ConnID == connID {
			return true, nil
		}
	}
	return false, nil
}

package registry

import (
	"os"
	"sync"
	"testing"

	"github.com/findy-network/findy-issuer-agent/agent/psm"
	"github.com/findy-network/findy-issuer-agent/agent/storage"
	"github.com/lainio/err2/try"
	"github.com/stretchr/testify/require"
)

var (
	testDir      string
	testProvider *storage.Provider
)

func TestMain(m *testing.M) {
	setUp()
	code := m.Run()
	tearDown()
	os.Exit(code)
}

func setUp() {
	testDir = try.To1(os.MkdirTemp("", "registry-test"))
	testProvider = storage.New(storage.Config{
		FileName:  "registry",
		FilePath:  testDir,
		BucketIDs: psm.Buckets,
	})
	try.To(testProvider.Init())
	try.To(Open(testProvider))
}

func tearDown() {
	if err := testProvider.Close(); err != nil {
		panic(err)
	}
	os.RemoveAll(testDir)
}

func TestAllocateResolve(t *testing.T) {
	id, err := Allocate(psm.Connection)
	require.NoError(t, err)
	require.NotEmpty(t, id)

	kind, err := Resolve(id)
	require.NoError(t, err)
	require.Equal(t, psm.Connection, kind)
}

func TestResolve_Unknown(t *testing.T) {
	_, err := Resolve("never-allocated")
	require.ErrorIs(t, err, psm.ErrNotFound)
}

func TestAllocate_Concurrent(t *testing.T) {
	const count = 64

	ids := make(chan string, count)
	errs := make(chan error, count)
	wg := &sync.WaitGroup{}
	for i := 0; i < count; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id, err := Allocate(psm.CredentialExchange)
			if err != nil {
				errs <- err
				return
			}
			ids <- id
		}()
	}
	wg.Wait()
	close(ids)
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}

	seen := make(map[string]bool)
	for id := range ids {
		require.False(t, seen[id], "correlation id %s handed out twice", id)
		seen[id] = true
	}
	require.Len(t, seen, count)
}

func TestRetire(t *testing.T) {
	id, err := Allocate(psm.Connection)
	require.NoError(t, err)

	require.NoError(t, Retire(id))

	// a retired id is gone but never handed out again
	_, err = Resolve(id)
	require.ErrorIs(t, err, psm.ErrNotFound)

	require.ErrorIs(t, Retire("never-allocated"), psm.ErrNotFound)
}

package storage

import (
	"os"
	"testing"

	"github.com/hyperledger/aries-framework-go/spi/storage"
	"github.com/lainio/err2/try"
	"github.com/stretchr/testify/require"
)

var (
	testDir      string
	testProvider *Provider
)

func TestMain(m *testing.M) {
	setUp()
	code := m.Run()
	tearDown()
	os.Exit(code)
}

func setUp() {
	testDir = try.To1(os.MkdirTemp("", "storage-test"))
	testProvider = New(Config{
		FileName:  "test",
		FilePath:  testDir,
		BucketIDs: []string{"first", "second"},
	})
	try.To(testProvider.Init())
}

func tearDown() {
	if err := testProvider.Close(); err != nil {
		panic(err)
	}
	os.RemoveAll(testDir)
}

func TestProvider_PutGetDelete(t *testing.T) {
	store, err := testProvider.OpenStore("first")
	require.NoError(t, err)

	require.NoError(t, store.Put("key1", []byte("value1")))

	got, err := store.Get("key1")
	require.NoError(t, err)
	require.Equal(t, []byte("value1"), got)

	require.NoError(t, store.Delete("key1"))

	_, err = store.Get("key1")
	require.ErrorIs(t, err, storage.ErrDataNotFound)
}

func TestProvider_BucketsAreSeparate(t *testing.T) {
	first, err := testProvider.OpenStore("first")
	require.NoError(t, err)
	second, err := testProvider.OpenStore("second")
	require.NoError(t, err)

	require.NoError(t, first.Put("shared-key", []byte("first-value")))
	require.NoError(t, second.Put("shared-key", []byte("second-value")))

	got, err := first.Get("shared-key")
	require.NoError(t, err)
	require.Equal(t, []byte("first-value"), got)

	got, err = second.Get("shared-key")
	require.NoError(t, err)
	require.Equal(t, []byte("second-value"), got)
}

func TestProvider_GetAll(t *testing.T) {
	store, err := testProvider.Open("second")
	require.NoError(t, err)

	require.NoError(t, store.Put("a", []byte("1")))
	require.NoError(t, store.Put("b", []byte("2")))

	values, err := store.GetAll(func(d []byte) []byte { return d })
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(values), 2)
}

func TestProvider_UnknownBucket(t *testing.T) {
	_, err := testProvider.OpenStore("no-such-bucket")
	require.Error(t, err)
}

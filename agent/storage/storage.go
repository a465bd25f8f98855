/*
Package storage is the persistence collaborator of the agency. It wraps the
managed bolt DB of findy-common-go behind the aries storage SPI so that every
state machine rep, registry record and index lives in its own bucket of one
database file. Keys can be hashed and values encrypted when a storage key is
configured; without a key the data is passed through as is, which the tests
use.
*/
package storage

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"sync"

	"github.com/findy-network/findy-common-go/crypto"
	"github.com/findy-network/findy-common-go/crypto/db"
	"github.com/golang/glog"
	"github.com/hyperledger/aries-framework-go/spi/storage"
	"github.com/lainio/err2"
	"github.com/lainio/err2/try"
)

const level7 = 7

type Store interface {
	storage.Store
	GetAll(transform db.Filter) ([][]byte, error)
}

type Config struct {
	Key       string
	FileName  string
	FilePath  string
	BucketIDs []string
}

type Provider struct {
	l sync.RWMutex

	conf    Config
	db      db.Handle
	buckets map[string]bucket
	cipher  *crypto.Cipher
}

func New(config Config) *Provider {
	s := &Provider{
		l:       sync.RWMutex{},
		conf:    config,
		db:      nil,
		buckets: make(map[string]bucket),
	}

	var bucketKey byte
	for _, name := range s.conf.BucketIDs {
		s.buckets[name] = newBucket(s, bucketKey)
		bucketKey++
	}

	return s
}

func (s *Provider) Init() (err error) {
	defer err2.Handle(&err, "storage open")

	s.l.Lock()
	defer s.l.Unlock()

	if s.db != nil {
		glog.Warningf("skipping storage provider initialization for %s, already open", s.conf.FileName)
		return nil
	}

	var cipher *crypto.Cipher
	if s.conf.Key != "" {
		k, err := hex.DecodeString(s.conf.Key)
		try.To(err)
		cipher = crypto.NewCipher(k)
	}

	path := "."
	if s.conf.FilePath != "" {
		path = s.conf.FilePath
	}

	filename := path + "/" + s.conf.FileName + ".bolt"

	if len(s.conf.BucketIDs) == 0 {
		return fmt.Errorf("no buckets specified")
	}

	mgdBuckets := make([][]byte, 0)

	var bucketKey byte
	for range s.conf.BucketIDs {
		mgdBuckets = append(mgdBuckets, []byte{bucketKey})
		bucketKey++
	}

	// this will not open the file handle to db, just initializes it
	s.db = db.New(db.Cfg{
		Filename:   filename,
		Buckets:    mgdBuckets,
		BackupName: filename + "_backup",
	})

	s.cipher = cipher

	return nil
}

func (s *Provider) ID() string {
	return s.conf.FileName
}

// OpenStore implements the aries storage.Provider interface. The store names
// are the bucket IDs given at construction.
func (s *Provider) OpenStore(name string) (storage.Store, error) {
	glog.V(level7).Infoln("Provider::OpenStore", s.ID(), name)

	if b, ok := s.buckets[name]; ok {
		return &b, nil
	}
	return nil, fmt.Errorf("store %s not found", name)
}

// Open returns the named bucket with the extended Store interface.
func (s *Provider) Open(name string) (Store, error) {
	if b, ok := s.buckets[name]; ok {
		return &b, nil
	}
	return nil, fmt.Errorf("store %s not found", name)
}

func (s *Provider) Close() (err error) {
	defer err2.Handle(&err, "storage close")

	s.l.RLock()
	defer s.l.RUnlock()

	if s.db == nil {
		glog.Warningf("skipping storage provider close for %s, already closed", s.conf.FileName)
		return nil
	}

	try.To(s.db.Close())
	s.db = nil
	return
}

// Backup writes a backup copy of the whole database file. It is scheduled by
// the serve command and safe to call while the agency runs.
func (s *Provider) Backup() (err error) {
	defer err2.Handle(&err, "storage backup")

	s.l.RLock()
	defer s.l.RUnlock()

	if s.db == nil {
		return fmt.Errorf("storage %s not open", s.conf.FileName)
	}

	did, err := s.db.Backup()
	try.To(err)
	if did {
		glog.V(1).Infoln("storage backup done:", s.conf.FileName)
	}
	return nil
}

func (s *Provider) addData(bucketID byte, key, value []byte) (err error) {
	s.l.RLock()
	defer s.l.RUnlock()

	err = s.db.AddKeyValueToBucket([]byte{bucketID},
		&db.Data{
			Data: value,
			Read: s.encrypt,
		},
		&db.Data{
			Data: key,
			Read: s.hash,
		},
	)
	return err
}

func (s *Provider) hash(key []byte) (k []byte) {
	if s.cipher != nil {
		h := md5.Sum(key)
		return h[:]
	}
	return append(key[:0:0], key...)
}

func (s *Provider) encrypt(value []byte) (k []byte) {
	if s.cipher != nil {
		return s.cipher.TryEncrypt(value)
	}
	return append(value[:0:0], value...)
}

func (s *Provider) decrypt(value []byte) (k []byte) {
	if s.cipher != nil {
		return s.cipher.TryDecrypt(value)
	}
	return append(value[:0:0], value...)
}

func (s *Provider) getData(
	bucketID byte,
	key []byte,
) (
	value []byte,
	err error,
) {
	s.l.RLock()
	defer s.l.RUnlock()

	data := &db.Data{
		Write: s.decrypt,
		Use: func(d []byte) interface{} {
			value = d
			return nil
		},
	}
	_, err = s.db.GetKeyValueFromBucket([]byte{bucketID},
		&db.Data{
			Data: key,
			Read: s.hash,
		},
		data)

	return value, err
}

func (s *Provider) deleteData(bucketID byte, key string) (err error) {
	s.l.RLock()
	defer s.l.RUnlock()

	err = s.db.RmKeyValueFromBucket([]byte{bucketID}, &db.Data{
		Data: []byte(key),
		Read: s.hash,
	})
	return
}

func (s *Provider) getAll(bucketID byte, transform db.Filter) (res [][]byte, err error) {
	s.l.RLock()
	defer s.l.RUnlock()

	return s.db.GetAllValuesFromBucket([]byte{bucketID}, s.decrypt, transform)
}

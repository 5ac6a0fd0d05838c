package dbbadger

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/dgraph-io/badger/v3"
	"github.com/timshannon/badgerhold/v4"
)

// DbManager holds the badgerhold stores backing the daemon's local history:
// observed pool advertisements and coinjoin sessions.
type DbManager struct {
	PoolStore    *badgerhold.Store
	SessionStore *badgerhold.Store
}

// NewDbManager opens (or creates if not exists) the badger stores under the
// given base data dir, one directory per store.
func NewDbManager(baseDbDir string, logger badger.Logger) (*DbManager, error) {
	poolDb, err := createDb(baseDbDir+"/pool", logger)
	if err != nil {
		return nil, fmt.Errorf("opening pool db: %w", err)
	}

	sessionDb, err := createDb(baseDbDir+"/session", logger)
	if err != nil {
		return nil, fmt.Errorf("opening session db: %w", err)
	}

	return &DbManager{
		PoolStore:    poolDb,
		SessionStore: sessionDb,
	}, nil
}

// Close releases both stores.
func (d *DbManager) Close() error {
	if err := d.PoolStore.Close(); err != nil {
		return err
	}
	return d.SessionStore.Close()
}

// JSONEncode is a custom JSON based encoder for badger.
func JSONEncode(value interface{}) ([]byte, error) {
	var buff bytes.Buffer

	en := json.NewEncoder(&buff)

	err := en.Encode(value)
	if err != nil {
		return nil, err
	}

	return buff.Bytes(), nil
}

// JSONDecode is a custom JSON based decoder for badger.
func JSONDecode(data []byte, value interface{}) error {
	var buff bytes.Buffer
	de := json.NewDecoder(&buff)

	_, err := buff.Write(data)
	if err != nil {
		return err
	}

	return de.Decode(value)
}

func createDb(dbDir string, logger badger.Logger) (db *badgerhold.Store, err error) {
	opts := badger.DefaultOptions(dbDir)
	opts.Logger = logger

	db, err = badgerhold.Open(badgerhold.Options{
		Encoder:          JSONEncode,
		Decoder:          JSONDecode,
		SequenceBandwith: 100,
		Options:          opts,
	})

	return
}

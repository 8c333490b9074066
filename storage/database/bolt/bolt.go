package boltdb

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.etcd.io/bbolt"

	inmemdb "github.com/chetansharma-meta/Exam-Portal/storage/database/inmem"
)

var (
	stateBucket   = []byte("state")
	payloadBucket = []byte("pdf-payloads")
)

// blob is the stored form of the state, under a single namespaced key.
type blob struct {
	State   map[inmemdb.Collection]json.RawMessage `json:"state"`
	Version int                                    `json:"version"`
}

// Persister stores DB snapshots in a bolt file.
// The encoded collections are cached so that a save only encodes the changed ones.
type Persister struct {
	db  *bbolt.DB
	key []byte

	mu      sync.Mutex
	encoded map[inmemdb.Collection]json.RawMessage
}

var _ inmemdb.Persister = (*Persister)(nil) // interface compliance check

// Open opens (or creates) the bolt file at path. namespace is the key holding the state.
func Open(path, namespace string, timeout time.Duration) (*Persister, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, errors.Wrap(err, "creating data directory")
	}

	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: timeout})
	if err != nil {
		return nil, errors.Wrapf(err, "opening %s", path)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, bucket := range [][]byte{stateBucket, payloadBucket} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "creating buckets")
	}

	return &Persister{
		db:      db,
		key:     []byte(namespace),
		encoded: make(map[inmemdb.Collection]json.RawMessage),
	}, nil
}

func (p *Persister) Close() error {
	return p.db.Close()
}

func (p *Persister) Save(state inmemdb.State, changed []inmemdb.Collection) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	encoded := make(map[inmemdb.Collection]json.RawMessage, len(inmemdb.Collections))
	for c, data := range p.encoded {
		encoded[c] = data
	}
	for _, c := range changed {
		field := state.Field(c)
		if field == nil {
			return errors.Errorf("unknown collection %q", c)
		}
		data, err := json.Marshal(field)
		if err != nil {
			return errors.Wrapf(err, "encoding %s", c)
		}
		encoded[c] = data
	}

	data, err := json.Marshal(blob{State: encoded, Version: inmemdb.StateVersion})
	if err != nil {
		return errors.Wrap(err, "encoding state")
	}
	err = p.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(stateBucket).Put(p.key, data)
	})
	if err != nil {
		return err
	}
	p.encoded = encoded
	return nil
}

func (p *Persister) SavePdfPayload(id string, payload []byte) error {
	return p.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(payloadBucket).Put([]byte(id), payload)
	})
}

func (p *Persister) Load() (*inmemdb.State, map[string][]byte, error) {
	var state *inmemdb.State
	payloads := make(map[string][]byte)

	err := p.db.View(func(tx *bbolt.Tx) error {
		if data := tx.Bucket(stateBucket).Get(p.key); data != nil {
			var b blob
			if err := json.Unmarshal(data, &b); err != nil {
				return errors.Wrap(err, "decoding state")
			}
			if b.Version != inmemdb.StateVersion {
				return errors.Errorf("unsupported state version %d", b.Version)
			}

			state = &inmemdb.State{}
			for _, c := range inmemdb.Collections {
				raw, ok := b.State[c]
				if !ok {
					continue
				}
				if err := json.Unmarshal(raw, state.Field(c)); err != nil {
					return errors.Wrapf(err, "decoding %s", c)
				}
			}
			p.mu.Lock()
			p.encoded = b.State
			p.mu.Unlock()
		}

		return tx.Bucket(payloadBucket).ForEach(func(k, v []byte) error {
			// values are only valid during the transaction
			payloads[string(k)] = append([]byte(nil), v...)
			return nil
		})
	})
	if err != nil {
		return nil, nil, err
	}
	return state, payloads, nil
}

package snapshot

import (
	stderrors "errors"
	"strings"

	"github.com/dgraph-io/badger/v3"
	"go.uber.org/zap"

	"github.com/wippyai/objgraph/errors"
	"github.com/wippyai/objgraph/typedesc"
)

// ErrNotFound is returned by Load and Delete for unknown names.
var ErrNotFound = &errors.Error{Phase: errors.PhaseSnapshot, Kind: errors.KindNotFound}

const keyPrefix = "snap/"

// Snapshot is a marshalled object graph: the type of each root in stream
// order and the encoded transactions.
type Snapshot struct {
	Roots  []typedesc.TypeID
	Stream []byte
}

// Check reports root types that table does not know.
func (s Snapshot) Check(table *typedesc.Table) error {
	for i, id := range s.Roots {
		if !table.Known(id) {
			return errors.New(errors.PhaseSnapshot, errors.KindTypeMismatch).
				Value(i).
				Detail("root type %d not in table of %d types", id, table.Len()).
				Build()
		}
	}
	return nil
}

// Options configures a Store.
type Options struct {
	// Dir holds the database files. Ignored when InMemory is set.
	Dir      string
	InMemory bool
}

// Store persists snapshots by name in a badger database.
// Safe for concurrent use.
type Store struct {
	db *badger.DB
}

// Open opens or creates a store.
func Open(opts Options) (*Store, error) {
	bopts := badger.DefaultOptions(opts.Dir)
	if opts.InMemory {
		bopts = badger.DefaultOptions("").WithInMemory(true)
	} else if opts.Dir == "" {
		return nil, errors.InvalidInput(errors.PhaseSnapshot, "snapshot directory is empty")
	}
	bopts = bopts.WithLogger(nil)

	db, err := badger.Open(bopts)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseSnapshot, errors.KindInvalidInput, err, "open snapshot store")
	}
	Logger().Debug("snapshot store opened",
		zap.String("dir", opts.Dir),
		zap.Bool("in_memory", opts.InMemory))
	return &Store{db: db}, nil
}

// Save stores snap under name, replacing any previous snapshot.
func (s *Store) Save(name string, snap Snapshot) error {
	if name == "" {
		return errors.InvalidInput(errors.PhaseSnapshot, "snapshot name is empty")
	}
	value, err := encode(snap)
	if err != nil {
		return err
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key(name), value)
	})
	if err != nil {
		return errors.Wrap(errors.PhaseSnapshot, errors.KindMemory, err, "save "+name)
	}
	Logger().Debug("snapshot saved",
		zap.String("name", name),
		zap.Int("roots", len(snap.Roots)),
		zap.Int("bytes", len(snap.Stream)))
	return nil
}

// Load returns the snapshot stored under name.
func (s *Store) Load(name string) (Snapshot, error) {
	var snap Snapshot
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key(name))
		if err != nil {
			return err
		}
		return item.Value(func(v []byte) error {
			var derr error
			snap, derr = decode(v)
			return derr
		})
	})
	if stderrors.Is(err, badger.ErrKeyNotFound) {
		return Snapshot{}, errors.NotFound(errors.PhaseSnapshot, "snapshot", name)
	}
	if err != nil {
		var e *errors.Error
		if stderrors.As(err, &e) {
			return Snapshot{}, err
		}
		return Snapshot{}, errors.Wrap(errors.PhaseSnapshot, errors.KindMemory, err, "load "+name)
	}
	return snap, nil
}

// List returns the names of all snapshots starting with prefix, sorted.
func (s *Store) List(prefix string) ([]string, error) {
	var names []string
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = key(prefix)
		itr := txn.NewIterator(opts)
		defer itr.Close()

		for itr.Rewind(); itr.Valid(); itr.Next() {
			k := string(itr.Item().Key())
			names = append(names, strings.TrimPrefix(k, keyPrefix))
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(errors.PhaseSnapshot, errors.KindMemory, err, "list snapshots")
	}
	return names, nil
}

// Delete removes the snapshot stored under name.
func (s *Store) Delete(name string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(key(name)); err != nil {
			return err
		}
		return txn.Delete(key(name))
	})
	if stderrors.Is(err, badger.ErrKeyNotFound) {
		return errors.NotFound(errors.PhaseSnapshot, "snapshot", name)
	}
	if err != nil {
		return errors.Wrap(errors.PhaseSnapshot, errors.KindMemory, err, "delete "+name)
	}
	return nil
}

// Close releases the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func key(name string) []byte {
	return []byte(keyPrefix + name)
}

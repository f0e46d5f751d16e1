package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/okian/turf/internal/domain/model"
	"github.com/okian/turf/pkg/metrics"
)

// Key prefixes for BadgerDB storage.
const (
	runKeyPrefix      = "run:"
	userRunKeyPrefix  = "user_run:"
	openRunKeyPrefix  = "open_run:"
	badgerBackendName = "badger"
)

// BadgerStore persists runs in BadgerDB. Runs are JSON records under
// run:<id>; user_run:<user>:<id> indexes a user's runs and open_run:<user>
// points at the user's open run.
type BadgerStore struct {
	db *badger.DB
}

// OpenBadger opens a BadgerDB at dir. An empty dir opens an in-memory database.
func OpenBadger(dir string) (*badger.DB, error) {
	opts := badger.DefaultOptions(dir)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	opts.Logger = nil
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("%w: open badger: %v", ErrUnavailable, err)
	}
	return db, nil
}

// NewBadgerStore creates a BadgerDB-backed store.
func NewBadgerStore(db *badger.DB) *BadgerStore {
	return &BadgerStore{db: db}
}

func runKey(id string) []byte            { return []byte(runKeyPrefix + id) }
func userRunPrefix(userID string) []byte { return []byte(userRunKeyPrefix + userID + ":") }
func userRunKey(userID, id string) []byte {
	return []byte(userRunKeyPrefix + userID + ":" + id)
}
func openRunKey(userID string) []byte { return []byte(openRunKeyPrefix + userID) }

// Save inserts or replaces run and keeps the user indexes in step.
func (s *BadgerStore) Save(_ context.Context, run model.Run) error {
	if run.ID == "" {
		return fmt.Errorf("%w: run id must not be empty", model.ErrInvalidInput)
	}
	start := time.Now()
	defer func() { metrics.RecordStoreLatency(badgerBackendName, "save", time.Since(start)) }()

	data, err := marshalRun(run)
	if err != nil {
		return err
	}

	return s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(runKey(run.ID), data); err != nil {
			return fmt.Errorf("set run: %w", err)
		}
		if err := txn.Set(userRunKey(run.UserID, run.ID), []byte(run.ID)); err != nil {
			return fmt.Errorf("set user index: %w", err)
		}

		if run.State.IsOpen() {
			return txn.Set(openRunKey(run.UserID), []byte(run.ID))
		}
		item, err := txn.Get(openRunKey(run.UserID))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("get open index: %w", err)
		}
		current, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		if string(current) == run.ID {
			return txn.Delete(openRunKey(run.UserID))
		}
		return nil
	})
}

func getRun(txn *badger.Txn, id string) (model.Run, error) {
	item, err := txn.Get(runKey(id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return model.Run{}, fmt.Errorf("run %q: %w", id, model.ErrNotFound)
	}
	if err != nil {
		return model.Run{}, fmt.Errorf("get run: %w", err)
	}
	var run model.Run
	err = item.Value(func(val []byte) error {
		var derr error
		run, derr = unmarshalRun(val)
		return derr
	})
	return run, err
}

// FindByID returns the run or model.ErrNotFound.
func (s *BadgerStore) FindByID(_ context.Context, id string) (model.Run, error) {
	var run model.Run
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		run, err = getRun(txn, id)
		return err
	})
	return run, err
}

// FindOpenRunForUser follows the open_run index.
func (s *BadgerStore) FindOpenRunForUser(_ context.Context, userID string) (model.Run, bool, error) {
	var (
		run   model.Run
		found bool
	)
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(openRunKey(userID))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		id, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		run, err = getRun(txn, string(id))
		if err != nil {
			return err
		}
		found = run.State.IsOpen()
		return nil
	})
	if err != nil {
		return model.Run{}, false, err
	}
	return run, found, nil
}

func (s *BadgerStore) userRuns(userID string) ([]model.Run, error) {
	var runs []model.Run
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = userRunPrefix(userID)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			id, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}
			run, err := getRun(txn, string(id))
			if err != nil {
				return err
			}
			runs = append(runs, run)
		}
		return nil
	})
	return runs, err
}

// FindAllByUser returns the user's runs, newest start first.
func (s *BadgerStore) FindAllByUser(_ context.Context, userID string) ([]model.Run, error) {
	runs, err := s.userRuns(userID)
	if err != nil {
		return nil, err
	}
	if runs == nil {
		runs = []model.Run{}
	}
	sortNewestFirst(runs)
	return runs, nil
}

// RangeTotals sums the user's runs that started in [from, to].
func (s *BadgerStore) RangeTotals(_ context.Context, userID string, from, to time.Time) (model.Totals, error) {
	start := time.Now()
	defer func() { metrics.RecordStoreLatency(badgerBackendName, "totals", time.Since(start)) }()

	runs, err := s.userRuns(userID)
	if err != nil {
		return model.Totals{}, err
	}
	return sumRuns(runs, from, to), nil
}

// ClaimedTerritories scans every run record for a territory.
func (s *BadgerStore) ClaimedTerritories(_ context.Context) ([]model.ClaimedTerritory, error) {
	out := make([]model.ClaimedTerritory, 0)
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(runKeyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				run, err := unmarshalRun(val)
				if err != nil {
					return err
				}
				if t, ok := territoryOf(run); ok {
					out = append(out, t)
				}
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sortTerritories(out)
	return out, nil
}

// Count returns the number of run records.
func (s *BadgerStore) Count(_ context.Context) (int, error) {
	var n int
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(runKeyPrefix)
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			n++
		}
		return nil
	})
	return n, err
}

// Close closes the underlying database.
func (s *BadgerStore) Close() error {
	return s.db.Close()
}

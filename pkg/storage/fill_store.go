// Package storage persists per-order fill records in Pebble. A record is a
// single monotone counter keyed by order hash; the fill ledger owns all
// mutation ordering, this layer only makes commits durable.
package storage

import (
	"fmt"
	"math/big"

	"github.com/cockroachdb/pebble"
	"github.com/ethereum/go-ethereum/common"
)

type FillStore struct {
	db *pebble.DB
}

func NewFillStore(path string) (*FillStore, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("failed to open fill store: %w", err)
	}
	return &FillStore{db: db}, nil
}

func (s *FillStore) Close() error { return s.db.Close() }

// SaveFilled persists the cumulative filled amount for an order.
// Written synchronously: a fill the caller observed as committed must
// survive a restart.
func (s *FillStore) SaveFilled(orderHash common.Hash, filled *big.Int) error {
	if err := s.db.Set(fillKey(orderHash), filled.Bytes(), pebble.Sync); err != nil {
		return fmt.Errorf("failed to save fill record: %w", err)
	}
	return nil
}

// LoadFilled returns the cumulative filled amount for an order.
// An absent record is zero, not an error.
func (s *FillStore) LoadFilled(orderHash common.Hash) (*big.Int, error) {
	val, closer, err := s.db.Get(fillKey(orderHash))
	if err == pebble.ErrNotFound {
		return big.NewInt(0), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load fill record: %w", err)
	}
	defer closer.Close()
	return new(big.Int).SetBytes(val), nil
}

// LoadAll returns every fill record, for warm-starting the in-memory cache
func (s *FillStore) LoadAll() (map[common.Hash]*big.Int, error) {
	prefix := []byte(prefixFill)
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: keyUpperBound(prefix),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to iterate fill records: %w", err)
	}
	defer iter.Close()

	fills := make(map[common.Hash]*big.Int)
	for iter.First(); iter.Valid(); iter.Next() {
		key := iter.Key()
		if len(key) != len(prefixFill)+common.HashLength {
			continue // skip malformed keys
		}
		var h common.Hash
		copy(h[:], key[len(prefixFill):])
		fills[h] = new(big.Int).SetBytes(iter.Value())
	}
	return fills, nil
}

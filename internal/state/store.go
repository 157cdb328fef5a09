package state

import (
	"encoding/binary"
	"fmt"

	dbm "github.com/cosmos/cosmos-db"

	"rugroulette/internal/derive"
)

// Store persists State into a cosmos-db key/value database.
type Store struct {
	db dbm.DB
}

func NewStore(db dbm.DB) *Store {
	if db == nil {
		panic("state store: db is nil")
	}
	return &Store{db: db}
}

// OpenStore opens (or creates) the named database under dir.
func OpenStore(name string, backend dbm.BackendType, dir string) (*Store, error) {
	db, err := dbm.NewDB(name, backend, dir)
	if err != nil {
		return nil, fmt.Errorf("open %s db: %w", backend, err)
	}
	return NewStore(db), nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Save writes the full state view in one synchronous batch.
func (s *Store) Save(st *State) error {
	batch := s.db.NewBatch()
	defer batch.Close()

	for _, kv := range st.kvs() {
		if err := batch.Set(kv.key, kv.value); err != nil {
			return fmt.Errorf("stage %x: %w", kv.key, err)
		}
	}
	if err := batch.WriteSync(); err != nil {
		return fmt.Errorf("write state batch: %w", err)
	}
	return nil
}

// Load rebuilds state from the database. An empty database yields a fresh
// state.
func (s *Store) Load() (*State, error) {
	st := NewState()

	bz, err := s.db.Get(HeightKey)
	if err != nil {
		return nil, fmt.Errorf("read height: %w", err)
	}
	if bz != nil {
		if len(bz) != 8 {
			return nil, fmt.Errorf("invalid height encoding")
		}
		st.Height = int64(binary.BigEndian.Uint64(bz))
	}
	bz, err = s.db.Get(ChainIDKey)
	if err != nil {
		return nil, fmt.Errorf("read chain id: %w", err)
	}
	st.ChainID = string(bz)

	err = s.iterate(BalancePrefix, func(addr derive.Address, v []byte) error {
		if len(v) != 8 {
			return fmt.Errorf("invalid balance encoding for %s", addr)
		}
		st.Accounts[addr] = binary.BigEndian.Uint64(v)
		return nil
	})
	if err != nil {
		return nil, err
	}
	err = s.iterate(NoncePrefix, func(addr derive.Address, v []byte) error {
		if len(v) != 8 {
			return fmt.Errorf("invalid nonce encoding for %s", addr)
		}
		st.NonceMax[addr] = binary.BigEndian.Uint64(v)
		return nil
	})
	if err != nil {
		return nil, err
	}
	err = s.iterate(RoundPrefix, func(addr derive.Address, v []byte) error {
		r, err := UnmarshalRound(v)
		if err != nil {
			return fmt.Errorf("round %s: %w", addr, err)
		}
		st.Rounds[addr] = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	err = s.iterate(EntryPrefix, func(addr derive.Address, v []byte) error {
		e, err := UnmarshalEntry(v)
		if err != nil {
			return fmt.Errorf("entry %s: %w", addr, err)
		}
		st.Entries[addr] = e
		return nil
	})
	if err != nil {
		return nil, err
	}
	return st, nil
}

func (s *Store) iterate(prefix []byte, cb func(addr derive.Address, value []byte) error) error {
	it, err := s.db.Iterator(prefix, prefixEnd(prefix))
	if err != nil {
		return err
	}
	defer it.Close()

	for ; it.Valid(); it.Next() {
		key := it.Key()
		if len(key) != len(prefix)+derive.AddressBytes {
			continue
		}
		addr, err := derive.AddressFromBytes(key[len(prefix):])
		if err != nil {
			return err
		}
		if err := cb(addr, it.Value()); err != nil {
			return err
		}
	}
	return it.Error()
}

// prefixEnd returns the smallest key greater than every key with prefix.
func prefixEnd(prefix []byte) []byte {
	end := append([]byte(nil), prefix...)
	for i := len(end) - 1; i >= 0; i-- {
		if end[i] < 0xff {
			end[i]++
			return end[:i+1]
		}
	}
	return nil
}

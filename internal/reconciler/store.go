package reconciler

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/cockroachdb/pebble"
)

var (
	callKey   = []byte("call/active")
	cursorKey = []byte("inbox/cursor")
)

// Store - локальное хранилище клиента.
type Store interface {
	LoadCall() (*CallState, error)
	SaveCall(state CallState) error
	ClearCall() error
	LoadCursor() (int64, error)
	SaveCursor(cursor int64) error
}

// PebbleStore хранит состояние в локальной базе pebble. Каждая запись синхронизируется на диск.
type PebbleStore struct {
	db *pebble.DB
}

// OpenPebbleStore открывает хранилище в каталоге dir. opts может быть nil.
func OpenPebbleStore(dir string, opts *pebble.Options) (*PebbleStore, error) {
	if opts == nil {
		opts = &pebble.Options{}
	}
	db, err := pebble.Open(dir, opts)
	if err != nil {
		return nil, fmt.Errorf("open local store: %w", err)
	}
	return &PebbleStore{db: db}, nil
}

// Close закрывает базу.
func (s *PebbleStore) Close() error {
	return s.db.Close()
}

// LoadCall возвращает сохранённое состояние или nil, если его нет.
func (s *PebbleStore) LoadCall() (*CallState, error) {
	val, closer, err := s.db.Get(callKey)
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read call state: %w", err)
	}
	defer closer.Close()

	var state CallState
	if err := json.Unmarshal(val, &state); err != nil {
		return nil, fmt.Errorf("decode call state: %w", err)
	}
	if state.Estimates == nil {
		state.Estimates = map[string]EstimateView{}
	}
	return &state, nil
}

func (s *PebbleStore) SaveCall(state CallState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode call state: %w", err)
	}
	return s.db.Set(callKey, data, pebble.Sync)
}

func (s *PebbleStore) ClearCall() error {
	return s.db.Delete(callKey, pebble.Sync)
}

// LoadCursor возвращает последний применённый seq входящих.
func (s *PebbleStore) LoadCursor() (int64, error) {
	val, closer, err := s.db.Get(cursorKey)
	if errors.Is(err, pebble.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read cursor: %w", err)
	}
	defer closer.Close()

	if len(val) != 8 {
		return 0, errors.New("invalid cursor record length")
	}
	return int64(binary.BigEndian.Uint64(val)), nil
}

func (s *PebbleStore) SaveCursor(cursor int64) error {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(cursor))
	return s.db.Set(cursorKey, buf, pebble.Sync)
}

func sortEstimates(list []EstimateView) {
	sort.Slice(list, func(i, j int) bool {
		if list[i].SubmittedAt.Equal(list[j].SubmittedAt) {
			return list[i].WorkerID < list[j].WorkerID
		}
		return list[i].SubmittedAt.Before(list[j].SubmittedAt)
	})
}

package badgerstore

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"unicode/utf8"

	"github.com/dgraph-io/badger/v4"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"trafficlens/internal/domain"
	"trafficlens/internal/usecase"
)

var (
	txPrefix = []byte("tx/")
	seqKey   = []byte("seq/tx")
)

// Config controls the embedded database. InMemory mode is for tests.
type Config struct {
	Path         string
	InMemory     bool
	SyncWrites   bool
	BodyMaxBytes int
	Logger       *zerolog.Logger
}

func DefaultConfig(path string) Config {
	return Config{Path: path, SyncWrites: true, BodyMaxBytes: 256 << 10}
}

func InMemoryConfig() Config {
	return Config{InMemory: true, BodyMaxBytes: 256 << 10}
}

// Store is the durable transaction store. IDs come from a persisted badger
// sequence, so they keep increasing across restarts and clears. Writes are
// serialized by writeMu; reads run on badger snapshots and never wait on an
// in-flight append.
type Store struct {
	db       *badger.DB
	seq      *badger.Sequence
	validate *validator.Validate
	bodyMax  int

	writeMu sync.Mutex
}

var _ usecase.TransactionRepository = (*Store)(nil)

// Open opens (or creates) the database. An unreadable or corrupt database is
// a hard error; callers treat it as fatal at startup rather than risking a
// silently partial record.
func Open(cfg Config) (*Store, error) {
	opts := badger.DefaultOptions(cfg.Path).
		WithInMemory(cfg.InMemory).
		WithSyncWrites(cfg.SyncWrites)
	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open traffic store: %w", err)
	}
	seq, err := db.GetSequence(seqKey, 128)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("open id sequence: %w", err)
	}
	bodyMax := cfg.BodyMaxBytes
	if bodyMax <= 0 {
		bodyMax = 256 << 10
	}
	return &Store{db: db, seq: seq, validate: validator.New(), bodyMax: bodyMax}, nil
}

func (s *Store) Close() error {
	if err := s.seq.Release(); err != nil {
		_ = s.db.Close()
		return err
	}
	return s.db.Close()
}

func txKey(id int64) []byte {
	k := make([]byte, len(txPrefix)+8)
	copy(k, txPrefix)
	binary.BigEndian.PutUint64(k[len(txPrefix):], uint64(id))
	return k
}

// Append validates, truncates over-ceiling bodies, assigns the next id and
// persists the transaction. A validation failure persists nothing.
func (s *Store) Append(ctx context.Context, tx domain.Transaction) (int64, error) {
	if err := s.validate.Struct(tx); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return 0, &domain.ValidationError{Field: verrs[0].Field(), Reason: verrs[0].Tag()}
		}
		return 0, &domain.ValidationError{Reason: err.Error()}
	}
	// no response implies no response payload
	if tx.ResponseStatus == nil {
		tx.ResponseHeaders = nil
		tx.ResponseBody = ""
	}
	tx.RequestBody = s.truncate(tx.RequestBody)
	tx.ResponseBody = s.truncate(tx.ResponseBody)

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	n, err := s.seq.Next()
	if err != nil {
		return 0, fmt.Errorf("next id: %w", err)
	}
	tx.ID = int64(n) + 1 // sequence starts at 0

	raw, err := json.Marshal(tx)
	if err != nil {
		return 0, fmt.Errorf("encode transaction: %w", err)
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(txKey(tx.ID), raw)
	})
	if err != nil {
		return 0, fmt.Errorf("append transaction: %w", err)
	}
	return tx.ID, nil
}

func (s *Store) truncate(body string) string {
	if len(body) <= s.bodyMax {
		return body
	}
	// never cut inside a multi-byte rune: a torn byte would be rewritten to
	// U+FFFD on the next marshal
	cut := s.bodyMax
	for cut > 0 && !utf8.RuneStart(body[cut]) {
		cut--
	}
	return body[:cut] + domain.TruncationMarker
}

func (s *Store) Get(ctx context.Context, id int64) (domain.Transaction, error) {
	var tx domain.Transaction
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(txKey(id))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &tx)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return domain.Transaction{}, fmt.Errorf("id %d: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return domain.Transaction{}, fmt.Errorf("get transaction %d: %w", id, err)
	}
	return tx, nil
}

// List walks ids descending, so results come back most-recent-first.
func (s *Store) List(ctx context.Context, f usecase.TransactionFilter) ([]domain.Transaction, int, error) {
	if err := f.Validate(); err != nil {
		return nil, 0, err
	}
	out := make([]domain.Transaction, 0, 32)
	total := 0
	err := s.walk(ctx, func(tx domain.Transaction) (bool, error) {
		if !f.Match(tx) {
			return true, nil
		}
		total++
		if total <= f.Offset {
			return true, nil
		}
		if f.Limit > 0 && len(out) >= f.Limit {
			return true, nil // keep counting the total
		}
		out = append(out, tx)
		return true, nil
	})
	if err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

func (s *Store) ForEach(ctx context.Context, f usecase.TransactionFilter, fn func(domain.Transaction) (bool, error)) error {
	if err := f.Validate(); err != nil {
		return err
	}
	seen := 0
	return s.walk(ctx, func(tx domain.Transaction) (bool, error) {
		if !f.Match(tx) {
			return true, nil
		}
		seen++
		if seen <= f.Offset {
			return true, nil
		}
		if f.Limit > 0 && seen > f.Offset+f.Limit {
			return false, nil
		}
		return fn(tx)
	})
}

func (s *Store) walk(ctx context.Context, fn func(domain.Transaction) (bool, error)) error {
	return s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.Prefix = txPrefix
		it := txn.NewIterator(opts)
		defer it.Close()

		// reverse iteration seeks past the largest possible id
		seek := append(append([]byte{}, txPrefix...), 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff)
		for it.Seek(seek); it.ValidForPrefix(txPrefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			var tx domain.Transaction
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &tx)
			})
			if err != nil {
				return fmt.Errorf("decode stored transaction: %w", err)
			}
			cont, err := fn(tx)
			if err != nil {
				return err
			}
			if !cont {
				return nil
			}
		}
		return nil
	})
}

func (s *Store) UpdateNotes(ctx context.Context, id int64, notes string) error {
	return s.mutate(id, func(tx *domain.Transaction) { tx.Notes = notes })
}

func (s *Store) MarkAnalyzed(ctx context.Context, id int64) error {
	return s.mutate(id, func(tx *domain.Transaction) { tx.Analyzed = true })
}

// mutate is a serialized read-modify-write of a single row. Only the
// analyzed flag and notes are mutable after ingestion.
func (s *Store) mutate(id int64, apply func(*domain.Transaction)) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	err := s.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(txKey(id))
		if err != nil {
			return err
		}
		var tx domain.Transaction
		if err := item.Value(func(val []byte) error { return json.Unmarshal(val, &tx) }); err != nil {
			return err
		}
		apply(&tx)
		raw, err := json.Marshal(tx)
		if err != nil {
			return err
		}
		return txn.Set(txKey(id), raw)
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return fmt.Errorf("id %d: %w", id, domain.ErrNotFound)
	}
	return err
}

// Clear drops every transaction in one pass and reports how many were
// removed. The id sequence is left alone so ids are never reused.
func (s *Store) Clear(ctx context.Context) (int, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	count := 0
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = txPrefix
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(txPrefix); it.ValidForPrefix(txPrefix); it.Next() {
			count++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	if err := s.db.DropPrefix(txPrefix); err != nil {
		return 0, fmt.Errorf("clear store: %w", err)
	}
	return count, nil
}

// badgerLogger adapts zerolog to badger's Logger interface.
type badgerLogger struct {
	logger *zerolog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error().Msgf(format, args...)
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn().Msgf(format, args...)
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Debug().Msgf(format, args...)
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug().Msgf(format, args...)
}

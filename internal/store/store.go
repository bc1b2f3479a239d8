// Package store persists remembered people and user preferences in badger.
package store

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/rs/zerolog"

	"ai-scene-narrator-service/internal/models"
	"ai-scene-narrator-service/internal/observability/logging"
	"ai-scene-narrator-service/internal/observability/metrics"
)

// ErrInvalidName is returned when a person's name is blank.
var ErrInvalidName = errors.New("person name is required")

// People is the append-only collection of remembered people.
type People interface {
	AddPerson(ctx context.Context, name, imageBase64 string) (models.RememberedPerson, error)
	AllPeople(ctx context.Context) ([]models.RememberedPerson, error)
}

// Preferences holds persisted user settings.
type Preferences interface {
	// SpeechRate returns the saved rate and whether one was saved.
	SpeechRate(ctx context.Context) (float64, bool, error)
	SetSpeechRate(ctx context.Context, rate float64) error
}

var (
	personPrefix  = []byte("person/")
	personSeqKey  = []byte("seq/person")
	speechRateKey = []byte("pref/speech_rate")
)

// seqBandwidth is how many ids the sequence leases per disk write.
const seqBandwidth = 16

// Options configures the store.
type Options struct {
	Dir      string // data directory; required unless InMemory
	InMemory bool   // keep everything in memory (tests, demos)
	Metrics  *metrics.Metrics
}

// Store implements People and Preferences.
type Store struct {
	db      *badger.DB
	seq     *badger.Sequence
	logger  zerolog.Logger
	metrics *metrics.Metrics
}

var (
	_ People      = (*Store)(nil)
	_ Preferences = (*Store)(nil)
)

// Open opens (or creates) the store.
func Open(opts Options) (*Store, error) {
	if !opts.InMemory && opts.Dir == "" {
		return nil, errors.New("store: Dir is required for on-disk mode")
	}
	logger := logging.WithComponent("store")

	dbOpts := badger.DefaultOptions(opts.Dir).WithLogger(badgerLogger{logger: logger})
	if opts.InMemory {
		dbOpts = dbOpts.WithDir("").WithValueDir("").WithInMemory(true)
	}
	db, err := badger.Open(dbOpts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}

	seq, err := db.GetSequence(personSeqKey, seqBandwidth)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("person sequence: %w", err)
	}

	m := opts.Metrics
	if m == nil {
		m = metrics.DefaultMetrics
	}
	return &Store{db: db, seq: seq, logger: logger, metrics: m}, nil
}

// Close releases the id sequence and closes the database.
func (s *Store) Close() error {
	if err := s.seq.Release(); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to release person sequence")
	}
	return s.db.Close()
}

// AddPerson stores a new person and returns it with its assigned id.
func (s *Store) AddPerson(ctx context.Context, name, imageBase64 string) (models.RememberedPerson, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return models.RememberedPerson{}, ErrInvalidName
	}
	if err := ctx.Err(); err != nil {
		return models.RememberedPerson{}, err
	}

	n, err := s.seq.Next()
	if err != nil {
		s.metrics.RecordStoreError("add_person")
		return models.RememberedPerson{}, fmt.Errorf("next person id: %w", err)
	}

	p := models.RememberedPerson{
		ID:          n + 1,
		Name:        name,
		ImageBase64: imageBase64,
		CreatedAt:   time.Now().UTC(),
	}
	data, err := json.Marshal(p)
	if err != nil {
		return models.RememberedPerson{}, fmt.Errorf("marshal person: %w", err)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(personKey(p.ID), data)
	})
	if err != nil {
		s.metrics.RecordStoreError("add_person")
		return models.RememberedPerson{}, fmt.Errorf("save person: %w", err)
	}

	s.logger.Info().
		Uint64("personId", p.ID).
		Str("name", p.Name).
		Msg("Remembered person")
	return p, nil
}

// AllPeople returns every remembered person in insertion order.
func (s *Store) AllPeople(ctx context.Context) ([]models.RememberedPerson, error) {
	var people []models.RememberedPerson
	err := s.db.View(func(txn *badger.Txn) error {
		iterOpts := badger.DefaultIteratorOptions
		iterOpts.Prefix = personPrefix
		it := txn.NewIterator(iterOpts)
		defer it.Close()

		for it.Seek(personPrefix); it.ValidForPrefix(personPrefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			val, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}
			var p models.RememberedPerson
			if err := json.Unmarshal(val, &p); err != nil {
				return fmt.Errorf("decode person %x: %w", it.Item().Key(), err)
			}
			people = append(people, p)
		}
		return nil
	})
	if err != nil {
		s.metrics.RecordStoreError("all_people")
		return nil, fmt.Errorf("list people: %w", err)
	}
	return people, nil
}

// SpeechRate returns the saved speech rate.
func (s *Store) SpeechRate(ctx context.Context) (float64, bool, error) {
	var raw []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(speechRateKey)
		if err != nil {
			return err
		}
		raw, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return 0, false, nil
	}
	if err != nil {
		s.metrics.RecordStoreError("speech_rate")
		return 0, false, fmt.Errorf("read speech rate: %w", err)
	}

	rate, err := strconv.ParseFloat(string(raw), 64)
	if err != nil {
		return 0, false, fmt.Errorf("parse speech rate %q: %w", raw, err)
	}
	return rate, true, nil
}

// SetSpeechRate saves the speech rate.
func (s *Store) SetSpeechRate(ctx context.Context, rate float64) error {
	val := []byte(strconv.FormatFloat(rate, 'f', -1, 64))
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(speechRateKey, val)
	})
	if err != nil {
		s.metrics.RecordStoreError("set_speech_rate")
		return fmt.Errorf("save speech rate: %w", err)
	}
	return nil
}

// personKey orders people by id: big-endian ids sort numerically.
func personKey(id uint64) []byte {
	k := make([]byte, len(personPrefix)+8)
	copy(k, personPrefix)
	binary.BigEndian.PutUint64(k[len(personPrefix):], id)
	return k
}

// badgerLogger routes badger's warnings and errors into zerolog and drops
// its info and debug chatter.
type badgerLogger struct {
	logger zerolog.Logger
}

func (l badgerLogger) Errorf(f string, v ...interface{}) {
	l.logger.Error().Msgf(strings.TrimSpace(f), v...)
}

func (l badgerLogger) Warningf(f string, v ...interface{}) {
	l.logger.Warn().Msgf(strings.TrimSpace(f), v...)
}

func (badgerLogger) Infof(string, ...interface{})  {}
func (badgerLogger) Debugf(string, ...interface{}) {}

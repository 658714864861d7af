package store

import (
	"context"
	"database/sql"
	"fmt"
	"runtime"
	"sort"
	"sync"

	"github.com/rs/zerolog"
	"github.com/simonvc/confutil/internal/orm"
	_ "modernc.org/sqlite"
)

// Store is a sqlite-backed orm.Registry. Record data lives in a single
// records table keyed by (model, id); model schemas are registered in memory.
type Store struct {
	writer *sql.DB
	reader *sql.DB
	log    zerolog.Logger

	mu    sync.RWMutex
	specs map[string]*orm.ModelSpec

	locks sync.Map // key -> *sync.Mutex
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger used for store diagnostics.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Store) { s.log = l }
}

func Open(dbPath string, opts ...Option) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)", dbPath)

	writer, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open writer: %w", err)
	}
	writer.SetMaxOpenConns(1)

	reader, err := sql.Open("sqlite", dsn)
	if err != nil {
		writer.Close()
		return nil, fmt.Errorf("open reader: %w", err)
	}
	reader.SetMaxOpenConns(runtime.NumCPU())

	s := &Store{
		writer: writer,
		reader: reader,
		log:    zerolog.Nop(),
		specs:  make(map[string]*orm.ModelSpec),
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := s.migrate(context.Background()); err != nil {
		s.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return s, nil
}

func (s *Store) Close() error {
	err1 := s.writer.Close()
	err2 := s.reader.Close()
	if err1 != nil {
		return err1
	}
	return err2
}

// Register declares a model. Registering the same name twice fails.
func (s *Store) Register(spec orm.ModelSpec) error {
	if spec.Name == "" {
		return fmt.Errorf("register: empty model name")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.specs[spec.Name]; ok {
		return fmt.Errorf("register %s: %w", spec.Name, orm.ErrDuplicateModel)
	}
	seen := make(map[string]bool, len(spec.Fields))
	for _, f := range spec.Fields {
		if f.Name == "" || f.Name == "id" {
			return fmt.Errorf("register %s: invalid field name %q", spec.Name, f.Name)
		}
		if seen[f.Name] {
			return fmt.Errorf("register %s: duplicate field %q", spec.Name, f.Name)
		}
		if f.Type.IsRelational() && f.Relation == "" {
			return fmt.Errorf("register %s: field %q has no relation", spec.Name, f.Name)
		}
		seen[f.Name] = true
	}
	cp := spec
	s.specs[spec.Name] = &cp
	s.log.Debug().Str("model", spec.Name).Int("fields", len(spec.Fields)).Msg("model registered")
	return nil
}

// Spec returns the registered spec for name.
func (s *Store) Spec(name string) (*orm.ModelSpec, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	spec, ok := s.specs[name]
	return spec, ok
}

// Model implements orm.Registry.
func (s *Store) Model(name string) (orm.Model, error) {
	spec, ok := s.Spec(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", orm.ErrUnknownModel, name)
	}
	return &model{store: s, spec: spec}, nil
}

// Models implements orm.Registry.
func (s *Store) Models() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.specs))
	for name := range s.specs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Count returns the number of stored records of a model.
func (s *Store) Count(ctx context.Context, modelName string) (int, error) {
	var n int
	err := s.reader.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM records WHERE model = ?`, modelName).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", modelName, err)
	}
	return n, nil
}

// Lock implements orm.Locker. Holders of the same key run one at a time
// within this process.
func (s *Store) Lock(key string) (unlock func()) {
	v, _ := s.locks.LoadOrStore(key, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

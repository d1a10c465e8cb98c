// Package jsonfile implements the remote data service on top of a single JSON
// file guarded by an advisory file lock.
package jsonfile

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/arthur-debert/ledgerview/internal/validation"
	"github.com/arthur-debert/ledgerview/ledgerview/remote"
	"github.com/arthur-debert/ledgerview/types"
)

const formatVersion = "1.0"

// storeData represents the JSON file structure
type storeData struct {
	Records  []types.Record `json:"records"`
	Metadata metadata       `json:"metadata"`
}

// metadata contains storage metadata
type metadata struct {
	Version     string               `json:"version"`
	StoreID     string               `json:"store_id"`
	NextID      map[types.Kind]int64 `json:"next_id"`
	LastVersion int64                `json:"last_version"`
	CreatedAt   time.Time            `json:"created_at"`
	UpdatedAt   time.Time            `json:"updated_at"`
}

// Store implements remote.Service using a JSON file
type Store struct {
	filePath    string
	lockFactory FileLockFactory
	fileLock    FileLock
	lockTimeout time.Duration
	timeFunc    func() time.Time
	processor   *remote.Processor
	mu          sync.Mutex
}

var _ remote.Service = (*Store)(nil)

// Open creates a store backed by filePath. The file is created on the first
// write; a missing file reads as an empty store.
func Open(filePath string, opts ...Option) *Store {
	s := &Store{
		filePath:    filePath,
		lockFactory: &FlockFactory{},
		lockTimeout: 3 * time.Second,
		timeFunc:    time.Now,
		processor:   remote.NewProcessor(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.fileLock = s.lockFactory.New(filePath + ".lock")
	return s
}

// FetchPage implements remote.Service
func (s *Store) FetchPage(ctx context.Context, req remote.PageRequest) (remote.Page, error) {
	data, err := s.read(ctx)
	if err != nil {
		return remote.Page{}, err
	}
	return s.processor.Execute(data.Records, req)
}

// Get implements remote.Service
func (s *Store) Get(ctx context.Context, kind types.Kind, id int64) (types.Record, error) {
	data, err := s.read(ctx)
	if err != nil {
		return types.Record{}, err
	}
	i := indexOf(data.Records, kind, id)
	if i < 0 {
		return types.Record{}, fmt.Errorf("%w: %s %d", remote.ErrNotFound, kind, id)
	}
	return data.Records[i].Clone(), nil
}

// Create implements remote.Service
func (s *Store) Create(ctx context.Context, rec types.Record) (types.Record, error) {
	if err := validation.ValidateRecord(rec); err != nil {
		return types.Record{}, fmt.Errorf("%w: %v", remote.ErrInvalidRecord, err)
	}

	var created types.Record
	err := s.write(ctx, func(data *storeData) error {
		now := s.timeFunc()
		data.Metadata.NextID[rec.Kind]++
		data.Metadata.LastVersion++

		created = rec.Clone()
		created.ID = data.Metadata.NextID[rec.Kind]
		created.Version = data.Metadata.LastVersion
		created.CreatedAt = now
		created.UpdatedAt = now
		if created.Date != nil {
			d := types.TruncateDay(*created.Date)
			created.Date = &d
		}
		data.Records = append(data.Records, created)
		return nil
	})
	if err != nil {
		return types.Record{}, err
	}
	return created.Clone(), nil
}

// Update implements remote.Service
func (s *Store) Update(ctx context.Context, kind types.Kind, id int64, patch types.Patch) (types.Record, error) {
	if err := validation.ValidatePatch(kind, patch); err != nil {
		return types.Record{}, fmt.Errorf("%w: %v", remote.ErrInvalidRecord, err)
	}

	var updated types.Record
	err := s.write(ctx, func(data *storeData) error {
		i := indexOf(data.Records, kind, id)
		if i < 0 {
			return fmt.Errorf("%w: %s %d", remote.ErrNotFound, kind, id)
		}
		data.Metadata.LastVersion++

		// version and timestamp are server-assigned
		patch.Version = data.Metadata.LastVersion
		patch.UpdatedAt = s.timeFunc()
		updated = patch.Apply(data.Records[i])
		data.Records[i] = updated
		return nil
	})
	if err != nil {
		return types.Record{}, err
	}
	return updated.Clone(), nil
}

// Delete implements remote.Service
func (s *Store) Delete(ctx context.Context, kind types.Kind, id int64) (int64, error) {
	var version int64
	err := s.write(ctx, func(data *storeData) error {
		i := indexOf(data.Records, kind, id)
		if i < 0 {
			return fmt.Errorf("%w: %s %d", remote.ErrNotFound, kind, id)
		}
		data.Records = append(data.Records[:i], data.Records[i+1:]...)
		data.Metadata.LastVersion++
		version = data.Metadata.LastVersion
		return nil
	})
	return version, err
}

// FetchGroupTotals implements remote.Service
func (s *Store) FetchGroupTotals(ctx context.Context, entity types.EntityType, filters types.Filters, mode types.GroupingMode) ([]types.GroupTotals, error) {
	data, err := s.read(ctx)
	if err != nil {
		return nil, err
	}
	return s.processor.Totals(data.Records, entity, filters, mode), nil
}

// StoreID returns the unique identifier of the store file, creating the file
// if it does not exist yet
func (s *Store) StoreID(ctx context.Context) (string, error) {
	var id string
	err := s.write(ctx, func(data *storeData) error {
		id = data.Metadata.StoreID
		return nil
	})
	return id, err
}

// Close releases resources
func (s *Store) Close() error {
	// Clean up lock file
	_ = os.Remove(s.filePath + ".lock")
	return nil
}

// read loads the file under the exclusive lock. The flock handle is shared by
// the whole store, so two readers holding it at once would let the first
// unlock release the file under the second.
func (s *Store) read(ctx context.Context) (*storeData, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	unlock, err := s.lock(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()

	return s.load()
}

// write loads the file, applies fn and saves the result, all under the
// exclusive lock. Nothing is written when fn fails.
func (s *Store) write(ctx context.Context, fn func(*storeData) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	unlock, err := s.lock(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	data, err := s.load()
	if err != nil {
		return err
	}
	if err := fn(data); err != nil {
		return err
	}
	data.Metadata.UpdatedAt = s.timeFunc()
	return s.save(data)
}

func (s *Store) lock(ctx context.Context) (func(), error) {
	ctx, cancel := context.WithTimeout(ctx, s.lockTimeout)
	defer cancel()

	locked, err := s.fileLock.TryLockContext(ctx, 50*time.Millisecond)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire lock: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("could not acquire file lock")
	}
	return func() { _ = s.fileLock.Unlock() }, nil
}

// load must be called with the file lock held
func (s *Store) load() (*storeData, error) {
	raw, err := os.ReadFile(s.filePath)
	if os.IsNotExist(err) || (err == nil && len(raw) == 0) {
		return s.empty(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	var data storeData
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("failed to parse JSON: %w", err)
	}
	if data.Metadata.NextID == nil {
		data.Metadata.NextID = make(map[types.Kind]int64)
	}
	return &data, nil
}

func (s *Store) empty() *storeData {
	now := s.timeFunc()
	return &storeData{
		Records: []types.Record{},
		Metadata: metadata{
			Version:   formatVersion,
			StoreID:   uuid.New().String(),
			NextID:    make(map[types.Kind]int64),
			CreatedAt: now,
			UpdatedAt: now,
		},
	}
}

// save must be called with the file lock held
func (s *Store) save(data *storeData) error {
	raw, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	// Write atomically
	tmpFile := s.filePath + ".tmp"
	if err := os.WriteFile(tmpFile, raw, 0644); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := os.Rename(tmpFile, s.filePath); err != nil {
		_ = os.Remove(tmpFile)
		return fmt.Errorf("failed to rename file: %w", err)
	}
	return nil
}

func indexOf(records []types.Record, kind types.Kind, id int64) int {
	for i, r := range records {
		if r.Kind == kind && r.ID == id {
			return i
		}
	}
	return -1
}

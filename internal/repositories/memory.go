package repositories

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/desertthunder/multiverse/internal/models"
)

// MemoryResponseStore keeps the current job in process memory.
//
// Used for ephemeral runs and tests. Values are stored encoded so callers never share
// memory with the store.
type MemoryResponseStore struct {
	mu           sync.RWMutex
	job          []byte
	inputs       []byte
	source       []byte
	history      [][]byte
	historyLimit int
}

// NewMemoryResponseStore creates an empty store. A historyLimit <= 0 uses [DefaultHistory].
func NewMemoryResponseStore(historyLimit int) *MemoryResponseStore {
	if historyLimit <= 0 {
		historyLimit = DefaultHistory
	}
	return &MemoryResponseStore{historyLimit: historyLimit}
}

// Save atomically replaces the current job and inputs and records the job in history.
func (m *MemoryResponseStore) Save(ctx context.Context, job *models.GenerationJob, inputs *models.GenerationInputs) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	jobData, err := encodeJob(job)
	if err != nil {
		return err
	}
	inputsData, err := encodeInputs(inputs)
	if err != nil {
		return err
	}
	rec, err := encodeHistory(jobData, inputsData, time.Now())
	if err != nil {
		return fmt.Errorf("failed to encode history: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.job = jobData
	m.inputs = inputsData
	m.history = append([][]byte{rec}, m.history...)
	if len(m.history) > m.historyLimit {
		m.history = m.history[:m.historyLimit]
	}
	return nil
}

// Current returns the current job, or nil when none is stored.
func (m *MemoryResponseStore) Current(ctx context.Context) (*models.GenerationJob, error) {
	m.mu.RLock()
	data := m.job
	m.mu.RUnlock()
	if data == nil {
		return nil, nil
	}
	return decodeJob(data)
}

// CurrentInputs returns the inputs of the current job, or nil when none are stored.
func (m *MemoryResponseStore) CurrentInputs(ctx context.Context) (*models.GenerationInputs, error) {
	m.mu.RLock()
	data := m.inputs
	m.mu.RUnlock()
	if data == nil {
		return nil, nil
	}
	return decodeInputs(data)
}

// SaveSourceImage stores a copy of the source image bytes.
func (m *MemoryResponseStore) SaveSourceImage(ctx context.Context, data []byte) error {
	if len(data) == 0 {
		return fmt.Errorf("source image is empty")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.source = cloneBytes(data)
	return nil
}

// SourceImage returns a copy of the stored source image, or nil.
func (m *MemoryResponseStore) SourceImage(ctx context.Context) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return cloneBytes(m.source), nil
}

// Clear removes the current job, its inputs and the source image. History is kept.
func (m *MemoryResponseStore) Clear(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.job, m.inputs, m.source = nil, nil, nil
	return nil
}

// History returns up to limit previously saved jobs, newest first.
func (m *MemoryResponseStore) History(ctx context.Context, limit int) ([]models.HistoryEntry, error) {
	m.mu.RLock()
	records := m.history
	m.mu.RUnlock()

	if limit <= 0 || limit > len(records) {
		limit = len(records)
	}
	entries := make([]models.HistoryEntry, 0, limit)
	for _, rec := range records[:limit] {
		entry, err := decodeHistory(rec)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

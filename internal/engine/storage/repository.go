// Package storage persists settings, last-run metadata and the accumulated
// record set behind a small key/value capability.
package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/rendis/leadtap/internal/model"
)

// Keys under which the repository stores its values.
const (
	KeyRecords    = "records"
	KeyLastScrape = "lastScrape"
	KeySettings   = "settings"
)

// KV is the persistent store capability.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
	Clear(ctx context.Context) error
	Close() error
}

// Repository provides typed access to the values the scraper persists.
type Repository struct {
	kv KV
	mu sync.Mutex // serializes read-modify-write of lastScrape
}

func NewRepository(kv KV) *Repository {
	return &Repository{kv: kv}
}

func (r *Repository) Close() error { return r.kv.Close() }

func (r *Repository) load(ctx context.Context, key string, v any) (bool, error) {
	raw, ok, err := r.kv.Get(ctx, key)
	if err != nil || !ok {
		return false, err
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return false, fmt.Errorf("decoding %q: %w", key, err)
	}
	return true, nil
}

func (r *Repository) save(ctx context.Context, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding %q: %w", key, err)
	}
	return r.kv.Set(ctx, key, raw)
}

// Records returns every stored record, or none.
func (r *Repository) Records(ctx context.Context) ([]model.BusinessRecord, error) {
	var records []model.BusinessRecord
	if _, err := r.load(ctx, KeyRecords, &records); err != nil {
		return nil, err
	}
	return records, nil
}

func (r *Repository) SaveRecords(ctx context.Context, records []model.BusinessRecord) error {
	if records == nil {
		records = []model.BusinessRecord{}
	}
	return r.save(ctx, KeyRecords, records)
}

// AddRecords appends records without deduplicating.
func (r *Repository) AddRecords(ctx context.Context, records []model.BusinessRecord) error {
	existing, err := r.Records(ctx)
	if err != nil {
		return err
	}
	return r.SaveRecords(ctx, append(existing, records...))
}

func (r *Repository) RecordCount(ctx context.Context) (int, error) {
	records, err := r.Records(ctx)
	return len(records), err
}

// LastRun returns the last session metadata, zero value when none was stored.
func (r *Repository) LastRun(ctx context.Context) (model.RunMetadata, error) {
	var meta model.RunMetadata
	_, err := r.load(ctx, KeyLastScrape, &meta)
	return meta, err
}

// UpdateLastRun applies fn to the stored metadata and writes it back.
func (r *Repository) UpdateLastRun(ctx context.Context, fn func(*model.RunMetadata)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	meta, err := r.LastRun(ctx)
	if err != nil {
		return err
	}
	fn(&meta)
	return r.save(ctx, KeyLastScrape, meta)
}

// Settings returns the saved start options, or the defaults.
func (r *Repository) Settings(ctx context.Context) (model.StartOptions, error) {
	settings := model.DefaultSettings()
	if _, err := r.load(ctx, KeySettings, &settings); err != nil {
		return model.DefaultSettings(), err
	}
	return settings, nil
}

func (r *Repository) SaveSettings(ctx context.Context, settings model.StartOptions) error {
	return r.save(ctx, KeySettings, settings)
}

// ClearAll drops everything and restores default settings.
func (r *Repository) ClearAll(ctx context.Context) error {
	if err := r.kv.Clear(ctx); err != nil {
		return err
	}
	if err := r.SaveRecords(ctx, nil); err != nil {
		return err
	}
	if err := r.save(ctx, KeyLastScrape, model.RunMetadata{}); err != nil {
		return err
	}
	return r.SaveSettings(ctx, model.DefaultSettings())
}

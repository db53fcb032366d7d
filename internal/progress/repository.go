package progress

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/p-n-ai/pai-toan6/internal/storage"
)

// Storage keys for the two progress documents.
const (
	KeyUserProgress = "math6_kntt_user_progress"
	KeyOutline      = "math6_kntt_curriculum_outline"
)

// Repository reads and writes the progress and outline documents as JSON.
type Repository struct {
	store storage.Store
}

// NewRepository creates a repository over store.
func NewRepository(store storage.Store) *Repository {
	return &Repository{store: store}
}

// LoadProgress returns the stored progress, or an empty document when none exists.
func (r *Repository) LoadProgress(ctx context.Context) (UserProgress, error) {
	p := UserProgress{}
	found, err := r.load(ctx, KeyUserProgress, &p)
	if err != nil || !found || p == nil {
		return UserProgress{}, err
	}
	return p, nil
}

// SaveProgress writes the whole progress document.
func (r *Repository) SaveProgress(ctx context.Context, p UserProgress) error {
	return r.save(ctx, KeyUserProgress, p)
}

// LoadOutline returns the cached outline. A missing cache yields nil.
func (r *Repository) LoadOutline(ctx context.Context) (Outline, error) {
	var o Outline
	if _, err := r.load(ctx, KeyOutline, &o); err != nil {
		return nil, err
	}
	return o, nil
}

// SaveOutline writes the outline cache.
func (r *Repository) SaveOutline(ctx context.Context, o Outline) error {
	return r.save(ctx, KeyOutline, o)
}

func (r *Repository) load(ctx context.Context, key string, v any) (bool, error) {
	raw, found, err := r.store.Get(ctx, key)
	if err != nil {
		return false, fmt.Errorf("load %s: %w", key, err)
	}
	if !found {
		return false, nil
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return false, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

func (r *Repository) save(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := r.store.Set(ctx, key, string(data)); err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}
	return nil
}

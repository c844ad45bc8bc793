package multisig

import (
	"context"
	"slices"
	"strings"
	"sync"

	constant "github.com/LerianStudio/lib-stablecoin/stablecoin/constants"
)

// Repository persists transactions. Get, Update and Delete return
// constant.ErrNotFound for an unknown id.
type Repository interface {
	Create(ctx context.Context, t Transaction) error
	Get(ctx context.Context, id string) (Transaction, error)
	Update(ctx context.Context, t Transaction) error
	UpdateStatus(ctx context.Context, id string, status Status) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, f Filter) ([]Transaction, int, error)
}

// MemoryRepository keeps transactions in process memory.
type MemoryRepository struct {
	mu    sync.RWMutex
	items map[string]Transaction
}

var _ Repository = (*MemoryRepository)(nil)

// NewMemoryRepository returns an empty MemoryRepository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{items: map[string]Transaction{}}
}

func clone(t Transaction) Transaction {
	t.KeyList = slices.Clone(t.KeyList)
	t.SignedKeys = slices.Clone(t.SignedKeys)
	t.Signatures = slices.Clone(t.Signatures)

	return t
}

// Create implements Repository.
func (r *MemoryRepository) Create(_ context.Context, t Transaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.items[t.ID] = clone(t)

	return nil
}

// Get implements Repository.
func (r *MemoryRepository) Get(_ context.Context, id string) (Transaction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.items[id]
	if !ok {
		return Transaction{}, constant.ErrNotFound
	}

	return clone(t), nil
}

// Update implements Repository.
func (r *MemoryRepository) Update(_ context.Context, t Transaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.items[t.ID]; !ok {
		return constant.ErrNotFound
	}

	r.items[t.ID] = clone(t)

	return nil
}

// UpdateStatus implements Repository.
func (r *MemoryRepository) UpdateStatus(_ context.Context, id string, status Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.items[id]
	if !ok {
		return constant.ErrNotFound
	}

	t.Status = status
	r.items[id] = t

	return nil
}

// Delete implements Repository.
func (r *MemoryRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.items[id]; !ok {
		return constant.ErrNotFound
	}

	delete(r.items, id)

	return nil
}

// List implements Repository. Results are ordered by creation time.
func (r *MemoryRepository) List(_ context.Context, f Filter) ([]Transaction, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var matched []Transaction

	for _, t := range r.items {
		if f.PublicKey != "" && !t.Authorizes(f.PublicKey) {
			continue
		}

		if f.Status != "" && t.Status != f.Status {
			continue
		}

		if f.Network != "" && t.Network != f.Network {
			continue
		}

		matched = append(matched, clone(t))
	}

	slices.SortFunc(matched, func(a, b Transaction) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}

		return strings.Compare(a.ID, b.ID)
	})

	total := len(matched)
	if f.Limit <= 0 {
		return matched, total, nil
	}

	offset := (max(f.Page, 1) - 1) * f.Limit
	if offset >= total {
		return nil, total, nil
	}

	return matched[offset:min(offset+f.Limit, total)], total, nil
}

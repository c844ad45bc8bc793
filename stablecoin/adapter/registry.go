package adapter

import (
	"maps"
	"slices"
	"sync/atomic"

	"github.com/LerianStudio/lib-stablecoin/stablecoin"
	constant "github.com/LerianStudio/lib-stablecoin/stablecoin/constants"
)

type registryState struct {
	adapters map[WalletKind]TransactionAdapter
	active   WalletKind
}

// Registry holds one adapter per WalletKind and the active selection. Reads
// never lock: every write installs a new snapshot.
type Registry struct {
	state atomic.Pointer[registryState]
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	r := &Registry{}
	r.state.Store(&registryState{adapters: map[WalletKind]TransactionAdapter{}})

	return r
}

func (r *Registry) update(fn func(next *registryState) error) error {
	for {
		current := r.state.Load()

		next := &registryState{adapters: maps.Clone(current.adapters), active: current.active}
		if err := fn(next); err != nil {
			return err
		}

		if r.state.CompareAndSwap(current, next) {
			return nil
		}
	}
}

// Register adds a, replacing any adapter of the same kind.
func (r *Registry) Register(a TransactionAdapter) {
	_ = r.update(func(next *registryState) error {
		next.adapters[a.Kind()] = a

		return nil
	})
}

// Unregister removes the adapter of kind and clears the selection if it was
// active.
func (r *Registry) Unregister(kind WalletKind) {
	_ = r.update(func(next *registryState) error {
		delete(next.adapters, kind)

		if next.active == kind {
			next.active = ""
		}

		return nil
	})
}

// Use selects the active adapter.
func (r *Registry) Use(kind WalletKind) error {
	return r.update(func(next *registryState) error {
		if _, ok := next.adapters[kind]; !ok {
			return &stablecoin.ConfigurationError{Component: "wallet " + kind.String(), Err: constant.ErrWalletNotRegistered}
		}

		next.active = kind

		return nil
	})
}

// Active returns the selected adapter.
//
//nolint:ireturn
func (r *Registry) Active() (TransactionAdapter, error) {
	s := r.state.Load()

	a, ok := s.adapters[s.active]
	if s.active == "" || !ok {
		return nil, &stablecoin.ConfigurationError{Component: "wallet", Err: constant.ErrNoActiveWallet}
	}

	return a, nil
}

// Get returns the adapter registered for kind.
//
//nolint:ireturn
func (r *Registry) Get(kind WalletKind) (TransactionAdapter, bool) {
	a, ok := r.state.Load().adapters[kind]

	return a, ok
}

// Kinds returns the registered kinds, sorted.
func (r *Registry) Kinds() []WalletKind {
	return slices.Sorted(maps.Keys(r.state.Load().adapters))
}

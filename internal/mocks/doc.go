// Package mocks provides centralized mock implementations for testing.
//
// Mocks are structs with function fields, one per interface method. A nil
// function field falls back to a simple default (usually success with zero
// values), so tests only set the behavior they care about:
//
//	store := &mocks.MockJobStore{
//	    GetByIDFn: func(ctx context.Context, id uuid.UUID) (*domain.Job, error) {
//	        return nil, store.ErrJobNotFound
//	    },
//	}
//
// Mocks that are called from several goroutines record their calls under a
// mutex and are safe for concurrent use.
package mocks

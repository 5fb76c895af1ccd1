package testutil

import (
	"context"
	"testing"

	"github.com/nhle/studyflow/internal/model"
	"github.com/nhle/studyflow/internal/store"
)

// NewTestStore creates an in-memory SQLStore with all migrations applied.
// It automatically closes the store when the test completes.
func NewTestStore(t *testing.T) *store.SQLStore {
	t.Helper()

	s, err := store.NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("creating test store: %v", err)
	}

	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("closing test store: %v", err)
		}
	})

	return s
}

// NewTestUser registers a user in s and returns it.
func NewTestUser(t *testing.T, s store.Store, email string) model.User {
	t.Helper()

	u, err := s.CreateUser(context.Background(), email)
	if err != nil {
		t.Fatalf("creating test user: %v", err)
	}
	return u
}

// Package storage defines the persistence port for match aggregates.
package storage

import (
	"context"

	"github.com/sidelinehq/sideline/internal/match/domain"
)

// MatchStore persists match aggregates with optimistic concurrency.
//
// SaveMatch compares the aggregate's revision against the stored row: a
// fresh aggregate (revision 0) inserts at revision 1, a loaded aggregate
// updates only when the stored revision still matches, bumping it by one.
// A mismatch fails with CodeRevisionConflict and leaves the row untouched.
type MatchStore interface {
	SaveMatch(ctx context.Context, m *domain.Match) error
	GetMatch(ctx context.Context, id string) (*domain.Match, error)
	GetLiveMatchByChat(ctx context.Context, chatID string) (*domain.Match, error)
	ListLiveMatches(ctx context.Context) ([]*domain.Match, error)
}

package services

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/Dosada05/streakmatch/models"
	"github.com/Dosada05/streakmatch/repositories"
	"golang.org/x/sync/errgroup"
)

// ActiveMatchFinder resolves the one active match a user takes part in.
type ActiveMatchFinder interface {
	// GetActiveMatch returns nil when the user has no active match.
	GetActiveMatch(ctx context.Context, userID string) (*models.Match, error)
}

type activeMatchFinder struct {
	matches repositories.MatchRepository
	logger  *slog.Logger
}

func NewActiveMatchFinder(matches repositories.MatchRepository, logger *slog.Logger) ActiveMatchFinder {
	return &activeMatchFinder{matches: matches, logger: logger}
}

func (f *activeMatchFinder) GetActiveMatch(ctx context.Context, userID string) (*models.Match, error) {
	if userID == "" {
		return nil, ErrNotAuthenticated
	}

	var hosted, rostered []*models.Match
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		hosted, err = f.matches.ListActiveHostedOrFoe(gctx, userID)
		return err
	})
	g.Go(func() error {
		var err error
		rostered, err = f.matches.ListActiveByParticipant(gctx, userID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to look up active match of user %s: %w", userID, err)
	}

	// A team host shows up in both lists.
	seen := make(map[string]bool)
	found := make([]*models.Match, 0, len(hosted)+len(rostered))
	for _, m := range append(hosted, rostered...) {
		if seen[m.ID.String()] {
			continue
		}
		seen[m.ID.String()] = true
		found = append(found, m)
	}

	switch len(found) {
	case 0:
		return nil, nil
	case 1:
		return found[0], nil
	}

	sort.SliceStable(found, func(i, j int) bool {
		return found[i].CreatedAt.After(found[j].CreatedAt)
	})
	ids := make([]string, len(found))
	for i, m := range found {
		ids[i] = m.ID.String()
	}
	f.logger.Warn("data integrity violation: user has more than one active match",
		slog.String("user_id", userID),
		slog.Any("match_ids", ids),
		slog.String("chosen_match_id", ids[0]))
	return found[0], nil
}

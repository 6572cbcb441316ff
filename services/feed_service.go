package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/Dosada05/streakmatch/models"
	"github.com/Dosada05/streakmatch/repositories"
	"github.com/elliotchance/pie/v2"
)

type FeedMode string

const (
	FeedStrict  FeedMode = "strict"
	FeedExplore FeedMode = "explore"
	FeedLucky   FeedMode = "lucky"
)

const (
	DefaultFeedLimit = 50
	MaxFeedLimit     = 200
)

var feedModes = []FeedMode{FeedStrict, FeedExplore, FeedLucky}

// ParseFeedMode accepts the mode names case-insensitively; empty means strict.
func ParseFeedMode(s string) (FeedMode, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return FeedStrict, nil
	}
	mode := FeedMode(s)
	if !pie.Contains(feedModes, mode) {
		return "", fmt.Errorf("%w: %q", ErrInvalidFeedMode, s)
	}
	return mode, nil
}

type FeedService interface {
	GetFeed(ctx context.Context, viewerID string, mode FeedMode, limit int) ([]*models.Match, error)
	// Publish drops cached feeds whenever a match changes.
	Notifier
}

type feedService struct {
	matches repositories.MatchRepository
	ledger  ScoreLedger
	cache   *ReadThroughCache
}

func NewFeedService(matches repositories.MatchRepository, ledger ScoreLedger, cache *ReadThroughCache) FeedService {
	return &feedService{matches: matches, ledger: ledger, cache: cache}
}

func (s *feedService) GetFeed(ctx context.Context, viewerID string, mode FeedMode, limit int) ([]*models.Match, error) {
	if viewerID == "" {
		return nil, ErrNotAuthenticated
	}
	if !pie.Contains(feedModes, mode) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidFeedMode, mode)
	}
	switch {
	case limit <= 0:
		limit = DefaultFeedLimit
	case limit > MaxFeedLimit:
		limit = MaxFeedLimit
	}

	viewer, err := s.ledger.GetScore(ctx, viewerID)
	if err != nil {
		return nil, err
	}

	q, ok := feedQuery(viewer, mode, limit)
	if !ok {
		return []*models.Match{}, nil
	}

	key := fmt.Sprintf("feed:%s:%s:%d:%d:%s", mode, viewerID, limit, viewer.CurrentStreak, viewer.PostalCode)
	found, err := cached(s.cache, key, func() ([]*models.Match, error) {
		return s.matches.ListFeed(ctx, q)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load %s feed for %s: %w", mode, viewerID, err)
	}
	return pie.Map(found, (*models.Match).Clone), nil
}

func (s *feedService) Publish(string, interface{}, ...string) {
	s.cache.Flush()
}

// feedQuery builds the store filter for mode. ok is false when the feed is
// empty by definition.
func feedQuery(viewer *models.UserProfile, mode FeedMode, limit int) (repositories.FeedQuery, bool) {
	q := repositories.FeedQuery{
		ViewerID: viewer.UserID,
		Statuses: []models.MatchStatus{models.StatusScheduled},
		Limit:    limit,
	}
	score := viewer.CurrentStreak
	postal := viewer.PostalCode

	switch mode {
	case FeedStrict:
		if postal == "" {
			return q, false
		}
		q.RequiredScore = &score
		q.PostalCode = &postal
	case FeedExplore:
		q.RequiredScore = &score
		if postal != "" {
			q.ExcludePostalCode = &postal
		}
	case FeedLucky:
		q.Statuses = append([]models.MatchStatus(nil), models.ActiveStatuses...)
		if postal != "" {
			q.ExcludePostalCode = &postal
		}
	}
	return q, true
}

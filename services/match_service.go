package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Dosada05/streakmatch/metrics"
	"github.com/Dosada05/streakmatch/models"
	"github.com/Dosada05/streakmatch/repositories"
	"github.com/elliotchance/pie/v2"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

type CreateMatchInput struct {
	Type            models.MatchType    `json:"match_type"`
	Title           *string             `json:"title"`
	Venue           string              `json:"venue"`
	PostalCode      string              `json:"postal_code"`
	StartsAt        time.Time           `json:"starts_at"`
	HostDisplayName string              `json:"host_display_name"`
	Teammates       []models.TeamMember `json:"teammates"`
}

// EditMatchInput carries the editable fields; nil leaves a field unchanged.
type EditMatchInput struct {
	Title      *string    `json:"title"`
	Venue      *string    `json:"venue"`
	PostalCode *string    `json:"postal_code"`
	StartsAt   *time.Time `json:"starts_at"`
}

type MatchService interface {
	CreateMatch(ctx context.Context, hostID string, input CreateMatchInput) (*models.Match, error)
	GetMatch(ctx context.Context, id uuid.UUID) (*models.Match, error)
	// CanEdit is true while the match is scheduled and nobody stands against the host.
	CanEdit(ctx context.Context, id uuid.UUID) (bool, error)
	EditMatch(ctx context.Context, actingUserID string, id uuid.UUID, input EditMatchInput) (*models.Match, error)
	GetActiveMatch(ctx context.Context, userID string) (*models.Match, error)
}

type matchService struct {
	matches  repositories.MatchRepository
	scores   repositories.ScoreRepository
	active   ActiveMatchFinder
	clock    clockwork.Clock
	notifier Notifier
	logger   *slog.Logger
	metrics  metrics.MatchMetrics
}

func NewMatchService(
	matches repositories.MatchRepository,
	scores repositories.ScoreRepository,
	active ActiveMatchFinder,
	clock clockwork.Clock,
	notifier Notifier,
	logger *slog.Logger,
	m metrics.MatchMetrics,
) MatchService {
	return &matchService{
		matches:  matches,
		scores:   scores,
		active:   active,
		clock:    clock,
		notifier: notifier,
		logger:   logger,
		metrics:  m,
	}
}

func (s *matchService) CreateMatch(ctx context.Context, hostID string, input CreateMatchInput) (*models.Match, error) {
	if hostID == "" {
		return nil, ErrNotAuthenticated
	}
	now := s.clock.Now()
	if input.Type == "" {
		input.Type = models.MatchTypePairwise
	}
	input.Title = trimOptional(input.Title)
	input.Venue = strings.TrimSpace(input.Venue)
	input.PostalCode = models.NormalizePostalCode(input.PostalCode)
	input.HostDisplayName = strings.TrimSpace(input.HostDisplayName)
	for i := range input.Teammates {
		input.Teammates[i].UserID = strings.TrimSpace(input.Teammates[i].UserID)
		input.Teammates[i].DisplayName = strings.TrimSpace(input.Teammates[i].DisplayName)
	}

	profile, err := s.scores.GetProfile(ctx, hostID)
	if err != nil {
		return nil, fmt.Errorf("failed to load profile %s: %w", hostID, err)
	}
	if input.HostDisplayName == "" {
		input.HostDisplayName = profile.DisplayName
	}
	if err := validateCreate(hostID, input, now); err != nil {
		return nil, err
	}

	match := &models.Match{
		ID:              uuid.New(),
		HostID:          hostID,
		HostDisplayName: input.HostDisplayName,
		Title:           input.Title,
		Venue:           input.Venue,
		PostalCode:      input.PostalCode,
		StartsAt:        input.StartsAt.UTC(),
		RequiredScore:   profile.CurrentStreak,
		Status:          models.StatusScheduled,
		CreatedAt:       now.UTC(),
	}
	if input.Type == models.MatchTypeTeam {
		roster := make([]models.Participant, 0, len(input.Teammates)+1)
		roster = append(roster, models.Participant{UserID: hostID, DisplayName: input.HostDisplayName, Team: models.SideHost})
		for _, tm := range input.Teammates {
			roster = append(roster, models.Participant{UserID: tm.UserID, DisplayName: tm.DisplayName, Team: models.SideHost})
		}
		match.MaxParticipants = 2 * len(roster)
		match.Kind = &models.TeamKind{Participants: roster}
	} else {
		match.MaxParticipants = 2
		match.Kind = &models.PairwiseKind{}
	}

	if err := s.matches.Create(ctx, match); err != nil {
		if errors.Is(err, repositories.ErrExclusivityConflict) {
			return nil, fmt.Errorf("%w: %v", ErrExclusivityConflict, err)
		}
		var mismatch *repositories.ScoreMismatchError
		if errors.As(err, &mismatch) {
			if mismatch.UserID == hostID {
				return nil, fmt.Errorf("%w: %v", ErrMatchChanged, err)
			}
			return nil, &ValidationError{Fields: map[string]string{
				"teammates": fmt.Sprintf("current streak of %s must equal the required score %d", mismatch.UserID, mismatch.Required),
			}}
		}
		return nil, fmt.Errorf("failed to create match: %w", err)
	}

	s.metrics.AddOperationElapsedTimeMs("create_match", s.clock.Since(now))
	s.logger.Info("match created",
		slog.String("match_id", match.ID.String()),
		slog.String("host_id", hostID),
		slog.String("match_type", string(match.Type())),
		slog.Int("required_score", match.RequiredScore))
	s.notifier.Publish(EventMatchCreated, match, matchRooms(match)...)
	return match, nil
}

func validateCreate(hostID string, input CreateMatchInput, now time.Time) error {
	var v validator
	v.check(input.Type.Valid(), "match_type", "must be pairwise or team")
	v.check(input.Venue != "", "venue", "must be provided")
	v.check(len(input.Venue) <= 200, "venue", "must not be more than 200 characters long")
	v.check(input.PostalCode != "", "postal_code", "must be provided")
	v.check(len(input.PostalCode) <= 16, "postal_code", "must not be more than 16 characters long")
	v.check(input.HostDisplayName != "", "host_display_name", "must be provided")
	v.check(!input.StartsAt.IsZero(), "starts_at", "must be provided")
	v.check(input.StartsAt.After(now), "starts_at", "must be in the future")
	if input.Title != nil {
		v.check(len(*input.Title) <= 120, "title", "must not be more than 120 characters long")
	}

	if input.Type == models.MatchTypePairwise {
		v.check(len(input.Teammates) == 0, "teammates", "are only allowed for team matches")
	}
	ids := pie.Map(input.Teammates, func(tm models.TeamMember) string { return tm.UserID })
	v.check(!pie.Contains(ids, ""), "teammates", "every teammate needs a user id")
	v.check(len(pie.Unique(ids)) == len(ids), "teammates", "must not contain duplicates")
	v.check(!pie.Contains(ids, hostID), "teammates", "must not include the host")
	for _, tm := range input.Teammates {
		v.check(tm.DisplayName != "", "teammates", "every teammate needs a display name")
	}
	return v.err()
}

func (s *matchService) GetMatch(ctx context.Context, id uuid.UUID) (*models.Match, error) {
	match, err := s.matches.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrMatchNotFound) {
			return nil, ErrMatchNotFound
		}
		return nil, fmt.Errorf("failed to load match %s: %w", id, err)
	}
	return match, nil
}

func (s *matchService) CanEdit(ctx context.Context, id uuid.UUID) (bool, error) {
	match, err := s.GetMatch(ctx, id)
	if err != nil {
		return false, err
	}
	return canEdit(match), nil
}

func canEdit(match *models.Match) bool {
	if match.Status != models.StatusScheduled {
		return false
	}
	switch k := match.Kind.(type) {
	case *models.PairwiseKind:
		return !k.HasFoe()
	case *models.TeamKind:
		return k.Count(models.SideFoe) == 0
	}
	return false
}

func (s *matchService) EditMatch(ctx context.Context, actingUserID string, id uuid.UUID, input EditMatchInput) (*models.Match, error) {
	if actingUserID == "" {
		return nil, ErrNotAuthenticated
	}
	match, err := s.GetMatch(ctx, id)
	if err != nil {
		return nil, err
	}
	if match.HostID != actingUserID {
		return nil, ErrNotHost
	}
	if !canEdit(match) {
		return nil, ErrMatchNotEditable
	}

	var v validator
	if input.Title != nil {
		match.Title = trimOptional(input.Title)
		if match.Title != nil {
			v.check(len(*match.Title) <= 120, "title", "must not be more than 120 characters long")
		}
	}
	if input.Venue != nil {
		match.Venue = strings.TrimSpace(*input.Venue)
		v.check(match.Venue != "", "venue", "must not be empty")
	}
	if input.PostalCode != nil {
		match.PostalCode = models.NormalizePostalCode(*input.PostalCode)
		v.check(match.PostalCode != "", "postal_code", "must not be empty")
	}
	if input.StartsAt != nil {
		match.StartsAt = input.StartsAt.UTC()
		v.check(match.StartsAt.After(s.clock.Now()), "starts_at", "must be in the future")
	}
	if err := v.err(); err != nil {
		return nil, err
	}

	if err := s.matches.UpdateDetails(ctx, match); err != nil {
		if errors.Is(err, repositories.ErrMatchNotFound) {
			return nil, ErrMatchNotFound
		}
		return nil, fmt.Errorf("failed to edit match %s: %w", id, err)
	}
	s.notifier.Publish(EventMatchEdited, match, matchRooms(match)...)
	return match, nil
}

func (s *matchService) GetActiveMatch(ctx context.Context, userID string) (*models.Match, error) {
	return s.active.GetActiveMatch(ctx, userID)
}

func trimOptional(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}

package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/Dosada05/streakmatch/metrics"
	"github.com/Dosada05/streakmatch/models"
	"github.com/Dosada05/streakmatch/repositories"
	"github.com/Dosada05/streakmatch/storage"
	"github.com/asaskevich/govalidator"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

type SubmitResultOutcome struct {
	Match *models.Match `json:"match"`
	// Settled is true once both sides agree and scores were (or will be) updated.
	Settled  bool `json:"settled"`
	Disputed bool `json:"disputed"`
	// ScorePending is set when the result settled but the score effect is still
	// waiting for the retry worker.
	ScorePending bool `json:"score_pending,omitempty"`
}

type ResultService interface {
	SubmitResult(ctx context.Context, matchID uuid.UUID, userID string, claimedWon bool, proofReference string) (*SubmitResultOutcome, error)
	// UploadProof stores a proof image and returns the URL to submit as proof reference.
	UploadProof(ctx context.Context, matchID uuid.UUID, userID, filename, contentType string, body io.Reader) (string, error)
}

var proofContentTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
	"image/heic": ".heic",
}

type resultService struct {
	matches      repositories.MatchRepository
	ledger       ScoreLedger
	uploader     storage.FileUploader
	clock        clockwork.Clock
	resultWindow time.Duration
	notifier     Notifier
	logger       *slog.Logger
	metrics      metrics.MatchMetrics
}

// NewResultService builds the result resolver. uploader may be nil, in which
// case UploadProof reports ErrUploadsDisabled.
func NewResultService(
	matches repositories.MatchRepository,
	ledger ScoreLedger,
	uploader storage.FileUploader,
	clock clockwork.Clock,
	resultWindow time.Duration,
	notifier Notifier,
	logger *slog.Logger,
	m metrics.MatchMetrics,
) ResultService {
	return &resultService{
		matches:      matches,
		ledger:       ledger,
		uploader:     uploader,
		clock:        clock,
		resultWindow: resultWindow,
		notifier:     notifier,
		logger:       logger,
		metrics:      m,
	}
}

func (s *resultService) SubmitResult(ctx context.Context, matchID uuid.UUID, userID string, claimedWon bool, proofReference string) (*SubmitResultOutcome, error) {
	if userID == "" {
		return nil, ErrNotAuthenticated
	}
	proofReference = strings.TrimSpace(proofReference)
	if err := validateProof(proofReference); err != nil {
		return nil, err
	}

	match, err := s.loadForResult(ctx, matchID, userID)
	if err != nil {
		return nil, err
	}
	_, side, _ := match.RoleOf(userID)
	claim := side
	if !claimedWon {
		claim = side.Opposite()
	}

	previousProof := proofOf(match, userID, side)
	now := s.clock.Now()
	var updated *models.Match
	if match.Type() == models.MatchTypeTeam {
		updated, err = s.matches.SetParticipantClaim(ctx, matchID, userID, claim, proofReference, now)
	} else {
		updated, err = s.matches.SetPairwiseClaim(ctx, matchID, side, claim, proofReference)
	}
	if err != nil {
		switch {
		case errors.Is(err, repositories.ErrMatchNotFound):
			return nil, ErrMatchNotFound
		case errors.Is(err, repositories.ErrMatchNotActive):
			return nil, ErrMatchNotActive
		case errors.Is(err, repositories.ErrParticipantNotFound):
			return nil, ErrNotMatchParty
		}
		return nil, fmt.Errorf("failed to record result for match %s: %w", matchID, err)
	}

	if previousProof != "" && previousProof != proofReference {
		s.removeUploadedProof(ctx, matchID, userID, previousProof)
	}

	s.logger.Info("result submitted",
		slog.String("match_id", matchID.String()),
		slog.String("user_id", userID),
		slog.String("claimed_winner", string(claim)))
	s.notifier.Publish(EventResultSubmitted, updated, matchRooms(updated)...)

	out := &SubmitResultOutcome{Match: updated}
	winner, state := settle(updated)
	switch state {
	case settlementDisputed:
		out.Disputed = true
		s.metrics.AddResultSubmission("disputed")
		s.logger.Warn("match result disputed", slog.String("match_id", matchID.String()))
		return out, nil
	case settlementWaiting:
		s.metrics.AddResultSubmission("recorded")
		return out, nil
	}

	return s.finalize(ctx, updated, winner, out)
}

func (s *resultService) loadForResult(ctx context.Context, matchID uuid.UUID, userID string) (*models.Match, error) {
	match, err := s.matches.GetByID(ctx, matchID)
	if err != nil {
		if errors.Is(err, repositories.ErrMatchNotFound) {
			return nil, ErrMatchNotFound
		}
		return nil, fmt.Errorf("failed to load match %s: %w", matchID, err)
	}
	if !match.IsParty(userID) {
		return nil, ErrNotMatchParty
	}
	if !match.IsActive() {
		return nil, ErrMatchNotActive
	}
	if !match.HasOpponent() {
		return nil, ErrNoOpponent
	}
	if !match.ResultWindowOpen(s.clock.Now(), s.resultWindow) {
		return nil, ErrResultWindowClosed
	}
	return match, nil
}

func (s *resultService) finalize(ctx context.Context, match *models.Match, winner models.TeamSide, out *SubmitResultOutcome) (*SubmitResultOutcome, error) {
	outcome := &models.MatchOutcome{
		WinnerIDs: match.SideIDs(winner),
		LoserIDs:  match.SideIDs(winner.Opposite()),
		Reason:    models.OutcomeResult,
	}
	err := s.matches.Complete(ctx, match.ID, models.Completion{WinnerSide: &winner}, outcome)
	if err != nil {
		if !errors.Is(err, repositories.ErrMatchNotActive) {
			return nil, fmt.Errorf("failed to complete match %s: %w", match.ID, err)
		}
		// Another submission settled it first.
		current, getErr := s.matches.GetByID(ctx, match.ID)
		if getErr != nil {
			return nil, fmt.Errorf("failed to reload match %s: %w", match.ID, getErr)
		}
		out.Match = current
		out.Settled = current.Status == models.StatusCompleted
		return out, nil
	}

	if err := s.ledger.Apply(ctx, outcome); err != nil {
		out.ScorePending = true
	}

	completed := match.Clone()
	completed.Status = models.StatusCompleted
	completed.WinnerSide = &winner
	out.Match = completed
	out.Settled = true

	s.metrics.AddResultSubmission("settled")
	s.logger.Info("match settled by results",
		slog.String("match_id", match.ID.String()),
		slog.String("winner_side", string(winner)))
	s.notifier.Publish(EventMatchCompleted, completed, matchRooms(completed)...)
	return out, nil
}

type settlement int

const (
	settlementWaiting settlement = iota
	settlementAgreed
	settlementDisputed
)

// settle reads the claims stored on match. Pairwise matches settle when host and
// foe name the same winner. Team matches settle once each side has at least one
// submission and every submitted claim names the same winner; any disagreement
// is a dispute.
func settle(match *models.Match) (models.TeamSide, settlement) {
	switch k := match.Kind.(type) {
	case *models.PairwiseKind:
		if k.HostClaim == nil || k.FoeClaim == nil {
			return "", settlementWaiting
		}
		if *k.HostClaim != *k.FoeClaim {
			return "", settlementDisputed
		}
		return *k.HostClaim, settlementAgreed
	case *models.TeamKind:
		var (
			winner        models.TeamSide
			hostIn, foeIn bool
		)
		for _, p := range k.Participants {
			if !p.ResultSubmitted || p.SubmittedWinnerSide == nil {
				continue
			}
			if winner != "" && winner != *p.SubmittedWinnerSide {
				return "", settlementDisputed
			}
			winner = *p.SubmittedWinnerSide
			if p.Team == models.SideHost {
				hostIn = true
			} else {
				foeIn = true
			}
		}
		if hostIn && foeIn {
			return winner, settlementAgreed
		}
	}
	return "", settlementWaiting
}

func validateProof(proof string) error {
	var v validator
	v.check(proof != "", "proof_reference", "must be provided")
	if proof != "" {
		v.check(isHTTPURL(proof), "proof_reference", "must be a valid http or https URL")
	}
	return v.err()
}

func isHTTPURL(s string) bool {
	if !govalidator.IsRequestURL(s) {
		return false
	}
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func (s *resultService) UploadProof(ctx context.Context, matchID uuid.UUID, userID, filename, contentType string, body io.Reader) (string, error) {
	if s.uploader == nil {
		return "", ErrUploadsDisabled
	}
	if userID == "" {
		return "", ErrNotAuthenticated
	}
	contentType = strings.ToLower(strings.TrimSpace(strings.Split(contentType, ";")[0]))
	ext, ok := proofContentTypes[contentType]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedMedia, contentType)
	}

	match, err := s.matches.GetByID(ctx, matchID)
	if err != nil {
		if errors.Is(err, repositories.ErrMatchNotFound) {
			return "", ErrMatchNotFound
		}
		return "", fmt.Errorf("failed to load match %s: %w", matchID, err)
	}
	if !match.IsParty(userID) {
		return "", ErrNotMatchParty
	}

	key := proofKeyPrefix(matchID, userID) + uuid.NewString() + ext
	res, err := s.uploader.Upload(ctx, key, contentType, body)
	if err != nil {
		return "", fmt.Errorf("failed to store proof for match %s: %w", matchID, err)
	}
	s.logger.Info("proof uploaded",
		slog.String("match_id", matchID.String()),
		slog.String("user_id", userID),
		slog.String("filename", filename),
		slog.String("key", res.Key))
	return res.Location, nil
}

func proofKeyPrefix(matchID uuid.UUID, userID string) string {
	return fmt.Sprintf("proofs/%s/%s/", matchID, userID)
}

// proofOf returns the proof the user last submitted for match, if any.
func proofOf(match *models.Match, userID string, side models.TeamSide) string {
	switch k := match.Kind.(type) {
	case *models.PairwiseKind:
		proof := k.HostProof
		if side == models.SideFoe {
			proof = k.FoeProof
		}
		if proof != nil {
			return *proof
		}
	case *models.TeamKind:
		if p, ok := k.Find(userID); ok && p.ProofReference != nil {
			return *p.ProofReference
		}
	}
	return ""
}

// removeUploadedProof deletes a superseded proof object. Only objects this
// service uploaded for the same user and match are touched; external links are
// left alone. Failures are logged, the new claim already stands.
func (s *resultService) removeUploadedProof(ctx context.Context, matchID uuid.UUID, userID, location string) {
	if s.uploader == nil {
		return
	}
	prefix := proofKeyPrefix(matchID, userID)
	base := s.uploader.GetPublicURL(prefix)
	if base == "" || !strings.HasPrefix(location, base) {
		return
	}
	key := prefix + strings.TrimPrefix(location, base)
	if err := s.uploader.Delete(ctx, key); err != nil {
		s.logger.Warn("failed to delete superseded proof",
			slog.String("match_id", matchID.String()),
			slog.String("key", key),
			slog.Any("error", err))
		return
	}
	s.logger.Debug("superseded proof deleted", slog.String("match_id", matchID.String()), slog.String("key", key))
}

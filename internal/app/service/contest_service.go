package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"codearena/internal/common"
	"codearena/internal/domain/model"
	"codearena/internal/domain/repository"
)

const leaderboardCachePrefix = "contest:leaderboard:"

// ContestService tracks per-(user, contest) progress. Problem status only
// moves NOT_ATTEMPTED -> ATTEMPTED -> SOLVED; the guarded updates in the
// repository enforce that no event can move it backwards.
type ContestService struct {
	contestRepo repository.ContestRepository
	rdb         *redis.Client // Optional leaderboard cache; nil disables caching
	cacheTTL    time.Duration
	boardLimit  int
	log         *zap.SugaredLogger
}

func NewContestService(
	contestRepo repository.ContestRepository,
	rdb *redis.Client,
	cacheTTL time.Duration,
	boardLimit int,
	log *zap.SugaredLogger,
) *ContestService {
	if boardLimit <= 0 {
		boardLimit = 100
	}
	return &ContestService{
		contestRepo: contestRepo,
		rdb:         rdb,
		cacheTTL:    cacheTTL,
		boardLimit:  boardLimit,
		log:         log,
	}
}

func (s *ContestService) GetContest(ctx context.Context, contestID string) (*model.Contest, error) {
	return s.contestRepo.FindContestByID(ctx, contestID)
}

func (s *ContestService) ListContests(ctx context.Context, limit, offset int) ([]model.Contest, int, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.contestRepo.ListContests(ctx, limit, offset)
}

// GetProgress returns the caller's progress row, creating it lazily so a
// participant who has not produced any event yet still sees a seeded row.
func (s *ContestService) GetProgress(ctx context.Context, userID, contestID string) (*model.ContestProgress, error) {
	if err := s.ensureProgress(ctx, userID, contestID); err != nil {
		return nil, err
	}
	return s.contestRepo.GetProgress(ctx, userID, contestID)
}

// RecordVisit marks the problem ATTEMPTED (unless already SOLVED) and stamps
// the first visit time.
func (s *ContestService) RecordVisit(ctx context.Context, userID, contestID, problemID string) error {
	if err := s.ensureProgress(ctx, userID, contestID); err != nil {
		return err
	}
	return s.contestRepo.MarkVisited(ctx, userID, contestID, problemID, time.Now().UTC())
}

// RecordAttempt bumps the attempt counter for the problem. The row is created
// lazily when missing, so attempts before any visit are still counted.
func (s *ContestService) RecordAttempt(ctx context.Context, userID, contestID, problemID string) error {
	if err := s.ensureProgress(ctx, userID, contestID); err != nil {
		return err
	}
	return s.contestRepo.IncrementAttempt(ctx, userID, contestID, problemID)
}

// RecordSolved transitions the problem to SOLVED and credits its points.
// Idempotent: a repeat solve of the same problem changes nothing.
func (s *ContestService) RecordSolved(ctx context.Context, userID, contestID, problemID string) error {
	contest, err := s.contestRepo.FindContestByID(ctx, contestID)
	if err != nil {
		return err
	}
	points := 0
	for _, cp := range contest.Problems {
		if cp.ProblemID == problemID {
			points = cp.Points
			break
		}
	}

	if err := s.ensureProgress(ctx, userID, contestID); err != nil {
		return err
	}
	solved, err := s.contestRepo.MarkSolved(ctx, userID, contestID, problemID, points, time.Now().UTC())
	if err != nil {
		return err
	}
	if solved {
		s.invalidateLeaderboard(ctx, contestID)
	}
	return nil
}

// Leaderboard returns the contest standings ordered by solved count, then
// score, then earliest last update (rewarding speed), capped at the
// configured size. Results are cached briefly in redis; cache failures fall
// through to the database.
func (s *ContestService) Leaderboard(ctx context.Context, contestID string) ([]model.ContestStanding, error) {
	if s.rdb != nil {
		cached, err := s.rdb.Get(ctx, leaderboardCachePrefix+contestID).Bytes()
		if err == nil {
			var standings []model.ContestStanding
			if err := json.Unmarshal(cached, &standings); err == nil {
				return standings, nil
			}
		} else if !errors.Is(err, redis.Nil) {
			s.log.Warnw("leaderboard cache read failed", "contest_id", contestID, "error", err)
		}
	}

	standings, err := s.contestRepo.Leaderboard(ctx, contestID, s.boardLimit)
	if err != nil {
		return nil, err
	}

	if s.rdb != nil {
		if payload, err := json.Marshal(standings); err == nil {
			if err := s.rdb.Set(ctx, leaderboardCachePrefix+contestID, payload, s.cacheTTL).Err(); err != nil {
				s.log.Warnw("leaderboard cache write failed", "contest_id", contestID, "error", err)
			}
		}
	}
	return standings, nil
}

func (s *ContestService) invalidateLeaderboard(ctx context.Context, contestID string) {
	if s.rdb == nil {
		return
	}
	if err := s.rdb.Del(ctx, leaderboardCachePrefix+contestID).Err(); err != nil {
		s.log.Warnw("leaderboard cache invalidation failed", "contest_id", contestID, "error", err)
	}
}

// ensureProgress creates the progress row on first use, seeded with every
// contest problem at NOT_ATTEMPTED. Two events racing to create the row are
// resolved by the unique index: the loser gets ErrConflict and simply
// proceeds against the winner's row.
func (s *ContestService) ensureProgress(ctx context.Context, userID, contestID string) error {
	_, err := s.contestRepo.GetProgress(ctx, userID, contestID)
	if err == nil {
		return nil
	}
	if !errors.Is(err, common.ErrNotFound) {
		return err
	}

	contest, err := s.contestRepo.FindContestByID(ctx, contestID)
	if err != nil {
		return err
	}

	progress := &model.ContestProgress{
		ID:          uuid.NewString(),
		UserID:      userID,
		ContestID:   contestID,
		LastUpdated: time.Now().UTC(),
	}
	for _, cp := range contest.Problems {
		progress.Problems = append(progress.Problems, model.ProblemProgress{
			ProblemID: cp.ProblemID,
			Status:    model.ProgressNotAttempted,
		})
	}

	if err := s.contestRepo.CreateProgress(ctx, progress); err != nil {
		if errors.Is(err, common.ErrConflict) {
			return nil // Lost the create race; the row exists now
		}
		return err
	}
	return nil
}

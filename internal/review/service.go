// Package review submits reviews and keeps each movie's running aggregate
// consistent with the committed review rows.
package review

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/Clark-Hu/movieclub/internal/domain"
	"github.com/Clark-Hu/movieclub/internal/events"
	"github.com/Clark-Hu/movieclub/internal/repository"
)

// Transactor opens transactions. *store.Store satisfies it.
type Transactor interface {
	InTx(ctx context.Context, opts pgx.TxOptions, fn func(pgx.Tx) error) error
}

// Options tunes the submit protocol.
type Options struct {
	// MaxAttempts bounds how often a submission is replayed after a
	// serialization failure, deadlock or lock timeout.
	MaxAttempts int
	IsoLevel    pgx.TxIsoLevel
	// LockTimeout caps the wait for the movie row lock. Zero waits indefinitely.
	LockTimeout time.Duration
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
	// PublishTimeout bounds the post-commit event publish.
	PublishTimeout time.Duration
	Logger         *zap.Logger
	Publisher      events.Publisher
}

// SubmitParams describes a new review.
type SubmitParams struct {
	MovieID string
	UserID  string
	Score   float64
	Text    *string
}

// Submission is the committed review together with the movie aggregate it produced.
type Submission struct {
	Review domain.Review
	Movie  domain.Movie
}

// Service implements review submission, lookup and listing.
type Service struct {
	tx        Transactor
	repo      *repository.Repository
	publisher events.Publisher
	logger    *zap.Logger
	opts      Options

	// afterInsert runs between the review insert and the aggregate update.
	afterInsert func(ctx context.Context) error
}

// NewService wires a Service. tx and repo must point at the same database.
func NewService(tx Transactor, repo *repository.Repository, opts Options) *Service {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 5
	}
	if opts.IsoLevel == "" {
		opts.IsoLevel = pgx.ReadCommitted
	}
	if opts.BaseBackoff <= 0 {
		opts.BaseBackoff = 10 * time.Millisecond
	}
	if opts.MaxBackoff <= 0 {
		opts.MaxBackoff = 250 * time.Millisecond
	}
	if opts.PublishTimeout <= 0 {
		opts.PublishTimeout = 2 * time.Second
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	publisher := opts.Publisher
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &Service{
		tx:        tx,
		repo:      repo,
		publisher: publisher,
		logger:    logger.Named("review"),
		opts:      opts,
	}
}

// Submit stores a review and folds its score into the movie aggregate in one
// transaction. Either both happen or neither does.
func (s *Service) Submit(ctx context.Context, params SubmitParams) (Submission, error) {
	if strings.TrimSpace(params.MovieID) == "" {
		return Submission{}, domain.NewValidationError("movieId", "is required")
	}
	if strings.TrimSpace(params.UserID) == "" {
		return Submission{}, domain.NewValidationError("userId", "is required")
	}
	if err := domain.ValidateScore(params.Score); err != nil {
		return Submission{}, err
	}
	text, err := domain.NormalizeReviewText(params.Text)
	if err != nil {
		return Submission{}, err
	}
	params.Text = text

	var (
		result  Submission
		lastErr error
	)
	for attempt := 1; attempt <= s.opts.MaxAttempts; attempt++ {
		result, lastErr = s.submitOnce(ctx, params)
		if lastErr == nil {
			break
		}
		if !repository.IsRetryable(lastErr) {
			return Submission{}, lastErr
		}
		s.logger.Debug("review submit contended",
			zap.String("movie_id", params.MovieID),
			zap.Int("attempt", attempt),
			zap.Error(lastErr))
		if attempt == s.opts.MaxAttempts {
			break
		}
		if err := s.sleep(ctx, attempt); err != nil {
			return Submission{}, err
		}
	}
	if lastErr != nil {
		s.logger.Warn("review submit gave up",
			zap.String("movie_id", params.MovieID),
			zap.Int("attempts", s.opts.MaxAttempts),
			zap.Error(lastErr))
		return Submission{}, fmt.Errorf("%w: after %d attempts: %v", domain.ErrTransientConflict, s.opts.MaxAttempts, lastErr)
	}

	s.publish(ctx, result)
	return result, nil
}

func (s *Service) submitOnce(ctx context.Context, params SubmitParams) (Submission, error) {
	var result Submission
	err := s.tx.InTx(ctx, pgx.TxOptions{IsoLevel: s.opts.IsoLevel}, func(tx pgx.Tx) error {
		if s.opts.LockTimeout > 0 {
			timeout := fmt.Sprintf("%dms", s.opts.LockTimeout.Milliseconds())
			if _, err := tx.Exec(ctx, `SELECT set_config('lock_timeout', $1, true)`, timeout); err != nil {
				return err
			}
		}

		repo := s.repo.WithTx(tx)
		review, err := repo.Reviews.Insert(ctx, repository.ReviewInsertParams{
			MovieID: params.MovieID,
			UserID:  params.UserID,
			Score:   params.Score,
			Text:    params.Text,
		})
		if err != nil {
			return err
		}
		if s.afterInsert != nil {
			if err := s.afterInsert(ctx); err != nil {
				return err
			}
		}

		agg, err := repo.Movies.LockAggregate(ctx, params.MovieID)
		if err != nil {
			return err
		}
		movie, err := repo.Movies.SetAggregate(ctx, params.MovieID, agg.Add(params.Score))
		if err != nil {
			return err
		}

		result = Submission{Review: review, Movie: movie}
		return nil
	})
	if err != nil {
		return Submission{}, err
	}
	return result, nil
}

// sleep waits a jittered exponential backoff or until ctx is done.
func (s *Service) sleep(ctx context.Context, attempt int) error {
	backoff := s.opts.BaseBackoff << (attempt - 1)
	if backoff > s.opts.MaxBackoff || backoff <= 0 {
		backoff = s.opts.MaxBackoff
	}
	wait := backoff/2 + time.Duration(rand.Int63n(int64(backoff/2)+1))

	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (s *Service) publish(ctx context.Context, sub Submission) {
	event := events.ReviewSubmitted{
		ReviewID:    sub.Review.ID,
		MovieID:     sub.Review.MovieID,
		UserID:      sub.Review.UserID,
		Score:       sub.Review.Score,
		MovieScore:  sub.Movie.Score,
		ReviewCount: sub.Movie.ReviewCount,
		SubmittedAt: sub.Review.CreatedAt,
	}
	// The review is committed; the client leaving must not drop the event.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.opts.PublishTimeout)
	defer cancel()
	if err := s.publisher.PublishReviewSubmitted(ctx, event); err != nil {
		s.logger.Warn("publish review event failed",
			zap.String("review_id", sub.Review.ID),
			zap.Error(err))
	}
}

// Find returns the review userID wrote for movieID.
func (s *Service) Find(ctx context.Context, movieID, userID string) (domain.Review, error) {
	if strings.TrimSpace(movieID) == "" || strings.TrimSpace(userID) == "" {
		return domain.Review{}, domain.ErrNotFound
	}
	return s.repo.Reviews.Find(ctx, movieID, userID)
}

// UpdateText edits the text of an existing review. The score is immutable, so
// the movie aggregate is never touched.
func (s *Service) UpdateText(ctx context.Context, movieID, userID string, text *string) (domain.Review, error) {
	normalized, err := domain.NormalizeReviewText(text)
	if err != nil {
		return domain.Review{}, err
	}
	if strings.TrimSpace(movieID) == "" || strings.TrimSpace(userID) == "" {
		return domain.Review{}, domain.ErrNotFound
	}
	return s.repo.Reviews.UpdateText(ctx, movieID, userID, normalized)
}

// List returns one page of reviews in scope. Filter defaults to newest first
// with domain.DefaultPageSize entries.
func (s *Service) List(ctx context.Context, scope domain.ReviewScope, filter domain.ReviewFilter) ([]domain.Review, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	normalized, err := filter.Normalize()
	if err != nil {
		return nil, err
	}
	return s.repo.Reviews.List(ctx, scope, normalized)
}

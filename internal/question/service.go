// Package question serves ordered question lists from the bank, with a
// Redis read-through cache in front of Postgres.
package question

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/classkit/live-quiz/internal/game"
)

// Repository is the persistent question bank.
type Repository interface {
	ListByCategory(ctx context.Context, category string, limit int) ([]game.Question, error)
}

// ListCache caches category lookups. A nil result with nil error is a miss.
type ListCache interface {
	Get(ctx context.Context, category string, limit int) ([]game.Question, error)
	Set(ctx context.Context, category string, limit int, questions []game.Question) error
}

// Service resolves a category into an ordered question list.
type Service struct {
	repo   Repository
	cache  ListCache
	logger zerolog.Logger
}

func NewService(repo Repository, cache ListCache, logger zerolog.Logger) *Service {
	return &Service{
		repo:   repo,
		cache:  cache,
		logger: logger.With().Str("component", "question_service").Logger(),
	}
}

var _ game.QuestionSource = (*Service)(nil)

// Lookup returns up to limit questions for the category, preferring the
// cache. Cache failures degrade to the repository silently.
func (s *Service) Lookup(ctx context.Context, category string, limit int) ([]game.Question, error) {
	if s.cache != nil {
		cached, err := s.cache.Get(ctx, category, limit)
		if err != nil {
			s.logger.Warn().Err(err).Str("category", category).Msg("question cache read failed")
		} else if cached != nil {
			return cached, nil
		}
	}

	questions, err := s.repo.ListByCategory(ctx, category, limit)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	if len(questions) == 0 {
		return nil, fmt.Errorf("%w: no questions for category %q", game.ErrValidation, category)
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, category, limit, questions); err != nil {
			s.logger.Warn().Err(err).Str("category", category).Msg("question cache write failed")
		}
	}
	return questions, nil
}

package game

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/sethvargo/go-retry"

	"github.com/classkit/live-quiz/internal/game/sequence"
)

const defaultCodeAttempts = 10

// CreateParams is the validated input for a new session.
type CreateParams struct {
	PresenterID     string
	Category        string
	Questions       []Question
	Participants    []string
	TimePerQuestion int
	UnlimitedTime   bool

	Sequencing       sequence.Policy
	Scoring          ScoringMode
	Timeout          TimeoutAction
	OvertimeInterval int
	OvertimePenalty  int
}

// Factory validates configuration, allocates a collision-free join code,
// and writes the initial session record.
type Factory struct {
	store        Store
	codeAttempts int
	logger       zerolog.Logger

	mu  sync.Mutex
	rng *rand.Rand
}

// NewFactory creates a session factory. rng may be seeded deterministically
// in tests; codeAttempts <= 0 selects the default.
func NewFactory(store Store, rng *rand.Rand, codeAttempts int, logger zerolog.Logger) *Factory {
	if codeAttempts <= 0 {
		codeAttempts = defaultCodeAttempts
	}
	return &Factory{
		store:        store,
		codeAttempts: codeAttempts,
		logger:       logger.With().Str("component", "session_factory").Logger(),
		rng:          rng,
	}
}

// Create validates p, allocates a join code, and writes the initial record
// with status waiting, zeroed indices and scores. A store write failure
// propagates to the caller unretried.
func (f *Factory) Create(ctx context.Context, p CreateParams) (*Session, error) {
	roster, err := NormalizeRoster(p.Participants)
	if err != nil {
		return nil, err
	}
	if err := validateQuestions(p.Questions); err != nil {
		return nil, err
	}
	if !p.UnlimitedTime && p.TimePerQuestion <= 0 {
		return nil, fmt.Errorf("%w: time per question must be positive", ErrValidation)
	}
	if p.Sequencing == "" {
		p.Sequencing = sequence.Repeat
	}
	if !p.Sequencing.Valid() {
		return nil, fmt.Errorf("%w: unknown sequencing policy %q", ErrValidation, p.Sequencing)
	}
	if p.Scoring == "" {
		p.Scoring = ScoringStandard
	}
	if p.Timeout == "" {
		p.Timeout = TimeoutFreeze
	}

	code, err := f.allocateJoinCode(ctx)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	s := &Session{
		ID:          uuid.NewString(),
		JoinCode:    code,
		PresenterID: p.PresenterID,
		Status:      StatusWaiting,
		Category:    p.Category,

		Questions:    p.Questions,
		Participants: roster,
		Players:      make(map[string]PlayerStatus, len(roster)),

		Scores:            make(map[string]int, len(roster)),
		QuestionsAnswered: make(map[string]int, len(roster)),
		ResponseTimes:     make(map[string]float64, len(roster)),

		TimePerQuestion:  p.TimePerQuestion,
		UnlimitedTime:    p.UnlimitedTime,
		Sequencing:       p.Sequencing,
		Scoring:          p.Scoring,
		Timeout:          p.Timeout,
		OvertimeInterval: p.OvertimeInterval,
		OvertimePenalty:  p.OvertimePenalty,

		CurrentTurn:    roster[0],
		CurrentAnswers: make(map[string]int),
		TimeLeft:       p.TimePerQuestion,
		CreatedAt:      now,
	}
	for _, name := range roster {
		s.Players[name] = PlayerStatus{}
		s.Scores[name] = 0
		s.QuestionsAnswered[name] = 0
		s.ResponseTimes[name] = 0
	}

	if err := f.store.Create(ctx, s); err != nil {
		return nil, fmt.Errorf("write session: %w", err)
	}

	f.logger.Info().
		Str("session_id", s.ID).
		Str("join_code", s.JoinCode).
		Int("participants", len(roster)).
		Int("questions", len(p.Questions)).
		Msg("session created")

	return s, nil
}

// NormalizeRoster trims and deduplicates display names, keeping the first
// occurrence, and requires at least two participants.
func NormalizeRoster(names []string) ([]string, error) {
	seen := make(map[string]struct{}, len(names))
	roster := make([]string, 0, len(names))
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" {
			continue
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		roster = append(roster, n)
	}
	if len(roster) < 2 {
		return nil, fmt.Errorf("%w: need at least 2 unique participants, got %d", ErrValidation, len(roster))
	}
	return roster, nil
}

func validateQuestions(questions []Question) error {
	if len(questions) == 0 {
		return fmt.Errorf("%w: question list is empty", ErrValidation)
	}
	for i, q := range questions {
		if strings.TrimSpace(q.Prompt) == "" {
			return fmt.Errorf("%w: question %d has an empty prompt", ErrValidation, i)
		}
		if len(q.Options) != OptionCount {
			return fmt.Errorf("%w: question %d has %d options, want %d", ErrValidation, i, len(q.Options), OptionCount)
		}
		if q.Correct < 0 || q.Correct >= OptionCount {
			return fmt.Errorf("%w: question %d correct index %d out of range", ErrValidation, i, q.Correct)
		}
	}
	return nil
}

var errCodeTaken = errors.New("join code already in use")

// allocateJoinCode draws random 6-digit codes until one is free among
// non-finished sessions. Exhausting the bounded retries is fatal.
func (f *Factory) allocateJoinCode(ctx context.Context) (string, error) {
	var code string
	backoff := retry.WithMaxRetries(uint64(f.codeAttempts-1), retry.NewConstant(time.Millisecond))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		candidate := f.randomCode()
		_, err := f.store.FindByJoinCode(ctx, candidate)
		switch {
		case err == nil:
			return retry.RetryableError(errCodeTaken)
		case errors.Is(err, ErrSessionNotFound):
			code = candidate
			return nil
		default:
			return err
		}
	})
	if err != nil {
		if errors.Is(err, errCodeTaken) {
			return "", fmt.Errorf("%w: gave up after %d attempts", ErrJoinCodeExhausted, f.codeAttempts)
		}
		return "", fmt.Errorf("check join code: %w", err)
	}
	return code, nil
}

// randomCode returns a 6-digit numeric code without a leading zero.
func (f *Factory) randomCode() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return fmt.Sprintf("%06d", 100000+f.rng.Intn(900000))
}

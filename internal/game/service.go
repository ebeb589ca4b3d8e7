package game

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/classkit/live-quiz/internal/metrics"
)

// QuestionSource looks up an ordered question list by category. The
// question bank itself is an external collaborator of the engine.
type QuestionSource interface {
	Lookup(ctx context.Context, category string, limit int) ([]Question, error)
}

// ServiceOptions configures the session service.
type ServiceOptions struct {
	FeedbackDelay    time.Duration
	JoinCodeAttempts int
	QuestionLimit    int
	Rand             *rand.Rand
}

// Service is the surface exposed to presenter and participant clients:
// session creation, lifecycle control, answer submission, join-code lookup,
// and change subscription. It owns one Controller per presented session.
type Service struct {
	store     Store
	questions QuestionSource
	factory   *Factory
	opts      ServiceOptions
	logger    zerolog.Logger

	mu          sync.Mutex
	seeds       *rand.Rand // guarded by mu; factory has its own lock on opts.Rand
	controllers map[string]*Controller
	closed      bool
}

// NewService wires the session service. questions may be nil when sessions
// are always created with inline question lists.
func NewService(store Store, questions QuestionSource, opts ServiceOptions, logger zerolog.Logger) *Service {
	if opts.Rand == nil {
		opts.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if opts.QuestionLimit <= 0 {
		opts.QuestionLimit = 20
	}
	return &Service{
		store:       store,
		questions:   questions,
		factory:     NewFactory(store, opts.Rand, opts.JoinCodeAttempts, logger),
		opts:        opts,
		logger:      logger.With().Str("component", "session_service").Logger(),
		seeds:       rand.New(rand.NewSource(opts.Rand.Int63())),
		controllers: make(map[string]*Controller),
	}
}

// Create validates the configuration, resolves questions from the bank when
// only a category is given, writes the initial record, and attaches a
// presenter controller.
func (svc *Service) Create(ctx context.Context, p CreateParams) (*Session, error) {
	if len(p.Questions) == 0 && p.Category != "" && svc.questions != nil {
		questions, err := svc.questions.Lookup(ctx, p.Category, svc.opts.QuestionLimit)
		if err != nil {
			return nil, fmt.Errorf("load questions: %w", err)
		}
		p.Questions = questions
	}

	s, err := svc.factory.Create(ctx, p)
	if err != nil {
		return nil, err
	}
	metrics.SessionsCreated.Inc()

	// An attach failure here is not fatal: the record exists and carries
	// the join code, and every lifecycle operation re-attaches through
	// ensureController. The session cannot start without a controller,
	// so nothing advances unobserved.
	if _, err := svc.ensureController(ctx, s.ID); err != nil {
		svc.logger.Warn().Err(err).Str("session_id", s.ID).Msg("controller attach deferred")
	}
	return s, nil
}

// ensureController returns the live controller for a session, attaching one
// if needed (e.g. after a process restart).
func (svc *Service) ensureController(ctx context.Context, sessionID string) (*Controller, error) {
	svc.mu.Lock()
	if svc.closed {
		svc.mu.Unlock()
		return nil, ErrSessionNotFound
	}
	if c, ok := svc.controllers[sessionID]; ok {
		svc.mu.Unlock()
		return c, nil
	}
	// Each controller gets its own rand source: controllers for different
	// sessions resolve turns on independent goroutines and must not
	// contend on shared rng state.
	c := NewController(svc.store, sessionID, ControllerConfig{
		FeedbackDelay: svc.opts.FeedbackDelay,
		Rand:          rand.New(rand.NewSource(svc.seeds.Int63())),
	}, svc.logger)
	svc.controllers[sessionID] = c
	svc.mu.Unlock()

	if err := c.Attach(ctx); err != nil {
		svc.dropController(sessionID)
		return nil, err
	}
	metrics.ActiveSessions.Inc()
	return c, nil
}

func (svc *Service) dropController(sessionID string) {
	svc.mu.Lock()
	c, ok := svc.controllers[sessionID]
	if ok {
		delete(svc.controllers, sessionID)
	}
	svc.mu.Unlock()
	if ok {
		c.Close()
		metrics.ActiveSessions.Dec()
	}
}

// Start begins the round. Presenter-only.
func (svc *Service) Start(ctx context.Context, sessionID, presenterID string) (*Session, error) {
	c, err := svc.ensureController(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return c.Start(ctx, presenterID)
}

// Pause suspends the round. Presenter-only.
func (svc *Service) Pause(ctx context.Context, sessionID, presenterID string) (*Session, error) {
	c, err := svc.ensureController(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return c.Pause(ctx, presenterID)
}

// Resume continues a paused round. Presenter-only.
func (svc *Service) Resume(ctx context.Context, sessionID, presenterID string) (*Session, error) {
	c, err := svc.ensureController(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return c.Resume(ctx, presenterID)
}

// Finish ends the round from any state and tears the controller down.
func (svc *Service) Finish(ctx context.Context, sessionID, presenterID string) (*Session, error) {
	c, err := svc.ensureController(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	s, err := c.Finish(ctx, presenterID)
	if err != nil {
		return nil, err
	}
	svc.dropController(sessionID)
	return s, nil
}

// SubmitAnswer writes a participant's choice into the current-turn answer
// slot. The only writes a participant role ever issues are against this
// slot for their own name.
func (svc *Service) SubmitAnswer(ctx context.Context, sessionID, name string, optionIndex int) error {
	if optionIndex < 0 || optionIndex >= OptionCount {
		return fmt.Errorf("%w: option index %d out of range", ErrValidation, optionIndex)
	}
	_, err := svc.store.Update(ctx, sessionID, func(s *Session) error {
		if s.Status != StatusPlaying {
			return fmt.Errorf("%w: session is %s", ErrNotYourTurn, s.Status)
		}
		if !s.HasParticipant(name) || s.CurrentTurn != name {
			return ErrNotYourTurn
		}
		if s.AnswerSubmitted {
			return ErrAlreadyAnswered
		}
		now := time.Now()
		if s.CurrentAnswers == nil {
			s.CurrentAnswers = make(map[string]int)
		}
		s.CurrentAnswers[name] = optionIndex
		s.AnswerSubmitted = true
		s.AnswerTurn = s.Turn
		s.AnswerSubmittedAt = &now
		return nil
	})
	if err == nil {
		metrics.AnswersSubmitted.Inc()
	}
	return err
}

// LookupByJoinCode resolves a short join code to a non-finished session.
func (svc *Service) LookupByJoinCode(ctx context.Context, code string) (*Session, error) {
	return svc.store.FindByJoinCode(ctx, code)
}

// Get returns a snapshot of the session.
func (svc *Service) Get(ctx context.Context, sessionID string) (*Session, error) {
	return svc.store.Get(ctx, sessionID)
}

// Subscribe attaches an observer to the session's change stream.
func (svc *Service) Subscribe(ctx context.Context, sessionID string, fn func(*Session)) (func(), error) {
	return svc.store.Subscribe(ctx, sessionID, fn)
}

// MarkConnected records a participant's presence. Presence is advisory and
// never blocks scoring or advancement.
func (svc *Service) MarkConnected(ctx context.Context, sessionID, name string, connected bool) error {
	_, err := svc.store.Update(ctx, sessionID, func(s *Session) error {
		if !s.HasParticipant(name) {
			return fmt.Errorf("%w: %s is not on the roster", ErrValidation, name)
		}
		now := time.Now()
		s.Players[name] = PlayerStatus{Connected: connected, LastSeen: &now}
		return nil
	})
	return err
}

// Close tears down every live controller.
func (svc *Service) Close() {
	svc.mu.Lock()
	svc.closed = true
	controllers := make([]*Controller, 0, len(svc.controllers))
	for id, c := range svc.controllers {
		controllers = append(controllers, c)
		delete(svc.controllers, id)
	}
	svc.mu.Unlock()
	for _, c := range controllers {
		c.Close()
		metrics.ActiveSessions.Dec()
	}
}

package game

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/classkit/live-quiz/internal/metrics"
)

const (
	defaultFeedbackDelay   = 3 * time.Second
	defaultOvertimeSeconds = 10
	writeTimeout           = 5 * time.Second
)

// AuthorizeFunc decides whether a caller may control a session. The default
// compares the caller against the session's presenter.
type AuthorizeFunc func(presenterID string, s *Session) bool

// ControllerConfig tunes a presenter controller.
type ControllerConfig struct {
	// FeedbackDelay is how long the answer feedback stays on screen before
	// the turn-advance write is issued.
	FeedbackDelay time.Duration
	// Rand feeds the question sequencer.
	Rand *rand.Rand
	// Authorize gates start/pause/resume/finish.
	Authorize AuthorizeFunc
}

// Controller drives one presented session. It subscribes to the session
// store, feeds each observed answer into the turn engine exactly once, and
// runs the local countdown.
//
// The change stream may redeliver the same answer notification many times.
// The controller latches on the turn sequence number at first observation,
// discards further notifications for that turn, and only when the single
// pending feedback timer fires does it compute and write the advance. The
// write itself re-checks the turn number inside the atomic update, so a
// re-latched stale notification can never advance the same turn twice.
type Controller struct {
	store     Store
	sessionID string
	delay     time.Duration
	rng       *rand.Rand
	authorize AuthorizeFunc
	logger    zerolog.Logger

	mu         sync.Mutex
	cur        *Session
	processing int // turn currently latched, -1 when idle
	pending    *time.Timer
	remaining  int // local countdown, not persisted per tick
	overticks  int // seconds elapsed past the budget
	warned     int // turn already handled for time-up, -1 when none
	unsub      func()
	stopTick   chan struct{}
	closed     bool
}

// NewController creates a controller for sessionID. Call Attach to begin
// observing and Close to tear down.
func NewController(store Store, sessionID string, cfg ControllerConfig, logger zerolog.Logger) *Controller {
	if cfg.FeedbackDelay <= 0 {
		cfg.FeedbackDelay = defaultFeedbackDelay
	}
	if cfg.Rand == nil {
		cfg.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if cfg.Authorize == nil {
		cfg.Authorize = func(presenterID string, s *Session) bool {
			return presenterID != "" && presenterID == s.PresenterID
		}
	}
	return &Controller{
		store:      store,
		sessionID:  sessionID,
		delay:      cfg.FeedbackDelay,
		rng:        cfg.Rand,
		authorize:  cfg.Authorize,
		logger:     logger.With().Str("component", "presenter_controller").Str("session_id", sessionID).Logger(),
		processing: -1,
		warned:     -1,
		stopTick:   make(chan struct{}),
	}
}

// Attach subscribes to the session's change stream and starts the local
// countdown loop.
func (c *Controller) Attach(ctx context.Context) error {
	unsub, err := c.store.Subscribe(ctx, c.sessionID, c.onChange)
	if err != nil {
		return fmt.Errorf("subscribe session: %w", err)
	}
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		unsub()
		return nil
	}
	c.unsub = unsub
	c.mu.Unlock()
	go c.tickLoop()
	return nil
}

// Close cancels any pending feedback timer, stops the countdown, and
// unsubscribes. A closed controller never writes again.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.cancelPendingLocked()
	unsub := c.unsub
	c.unsub = nil
	close(c.stopTick)
	c.mu.Unlock()

	if unsub != nil {
		unsub()
	}
}

// mu must be held.
func (c *Controller) cancelPendingLocked() {
	if c.pending != nil {
		c.pending.Stop()
		c.pending = nil
	}
	c.processing = -1
}

// onChange reacts to every pushed mutation of the session record. It must
// tolerate duplicate and re-entrant deliveries.
func (c *Controller) onChange(s *Session) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}

	prev := c.cur
	c.cur = s

	turnChanged := prev == nil || prev.Turn != s.Turn
	statusChanged := prev == nil || prev.Status != s.Status
	if turnChanged || (statusChanged && s.Status == StatusPlaying) {
		c.remaining = s.TimeLeft
		c.overticks = 0
	}

	if s.Status != StatusPlaying {
		// Pause or finish while a feedback timer is armed: the advance
		// must not fire against a session we no longer drive forward.
		c.cancelPendingLocked()
		return
	}

	if !s.AnswerSubmitted {
		return
	}
	if c.processing == s.AnswerTurn {
		metrics.DuplicateNotifications.Inc()
		c.logger.Debug().Int("turn", s.AnswerTurn).Msg("duplicate answer notification discarded")
		return
	}

	// A notification keyed to a different turn supersedes whatever was
	// latched; exactly one timer may be live.
	c.cancelPendingLocked()
	c.processing = s.AnswerTurn
	turn := s.AnswerTurn
	c.pending = time.AfterFunc(c.delay, func() { c.advance(turn) })
}

// advance runs when the feedback-display delay elapses. The turn check
// inside the update closure makes the write at-most-once even if the latch
// was re-armed by a stale redelivery.
func (c *Controller) advance(turn int) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.pending = nil
	c.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	updated, err := c.store.Update(ctx, c.sessionID, func(s *Session) error {
		if s.Status != StatusPlaying || !s.AnswerSubmitted || s.AnswerTurn != turn {
			return errStaleTurn
		}
		name, rerr := s.CurrentParticipant()
		if rerr != nil {
			return rerr
		}
		opt, ok := s.CurrentAnswers[name]
		if !ok {
			return errStaleTurn
		}
		res, rerr := NextTurn(s, opt, c.rng)
		if rerr != nil {
			return rerr
		}
		res.Apply(s, time.Now())
		return nil
	})

	c.mu.Lock()
	if c.processing == turn {
		c.processing = -1
	}
	c.mu.Unlock()

	switch {
	case err == nil:
		metrics.TurnAdvances.Inc()
		if updated.Status == StatusFinished {
			c.logger.Info().Msg("round complete")
		}
	case errors.Is(err, errStaleTurn):
		c.logger.Debug().Int("turn", turn).Msg("turn already resolved, advance skipped")
	case errors.Is(err, ErrCorruptSession):
		c.logger.Error().Err(err).Msg("session record corrupted, detaching controller")
		c.Close()
	default:
		c.logger.Error().Err(err).Int("turn", turn).Msg("turn advance write failed")
	}
}

func (c *Controller) tickLoop() {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-c.stopTick:
			return
		case <-ticker.C:
			c.tick()
		}
	}
}

// tick runs the per-second countdown locally. Only boundary events are
// written back; persisting every tick would be gratuitous write traffic.
func (c *Controller) tick() {
	c.mu.Lock()
	s := c.cur
	if c.closed || s == nil || s.Status != StatusPlaying || s.UnlimitedTime || c.processing != -1 {
		c.mu.Unlock()
		return
	}

	if c.remaining > 0 {
		c.remaining--
		if c.remaining == 0 && c.warned != s.Turn {
			c.warned = s.Turn
			turn := s.Turn
			action := s.Timeout
			c.mu.Unlock()
			c.onTimeUp(turn, action)
			return
		}
		c.mu.Unlock()
		return
	}

	// Past the budget: only the overtime policy keeps acting.
	if s.Timeout == TimeoutOvertime {
		c.overticks++
		interval := s.OvertimeInterval
		if interval <= 0 {
			interval = defaultOvertimeSeconds
		}
		if c.overticks%interval == 0 {
			turn := s.Turn
			c.mu.Unlock()
			c.applyOvertimePenalty(turn)
			return
		}
	}
	c.mu.Unlock()
}

// onTimeUp applies the configured timeout action at the moment the budget
// for the current turn runs out.
func (c *Controller) onTimeUp(turn int, action TimeoutAction) {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	_, err := c.store.Update(ctx, c.sessionID, func(s *Session) error {
		if s.Status != StatusPlaying || s.Turn != turn || s.AnswerSubmitted {
			return errStaleTurn
		}
		s.TimeLeft = 0
		switch action {
		case TimeoutFreeze:
			s.Status = StatusPaused
		case TimeoutBlock:
			now := time.Now()
			s.Status = StatusFinished
			s.FinishedAt = &now
		case TimeoutWarn, TimeoutOvertime:
			// Answers remain accepted; the boundary write alone tells
			// observers the clock ran out.
		}
		return nil
	})
	if err != nil && !errors.Is(err, errStaleTurn) {
		c.logger.Error().Err(err).Str("action", string(action)).Msg("time-up write failed")
		return
	}
	if err == nil {
		c.logger.Info().Int("turn", turn).Str("action", string(action)).Msg("question time expired")
	}
}

// applyOvertimePenalty deducts points from the participant holding the
// overdue turn, floored at zero.
func (c *Controller) applyOvertimePenalty(turn int) {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	_, err := c.store.Update(ctx, c.sessionID, func(s *Session) error {
		if s.Status != StatusPlaying || s.Turn != turn || s.AnswerSubmitted {
			return errStaleTurn
		}
		name, rerr := s.CurrentParticipant()
		if rerr != nil {
			return rerr
		}
		penalty := s.OvertimePenalty
		if penalty <= 0 {
			penalty = 1
		}
		s.Scores[name] -= penalty
		if s.Scores[name] < 0 {
			s.Scores[name] = 0
		}
		return nil
	})
	switch {
	case err == nil:
		metrics.OvertimePenalties.Inc()
	case errors.Is(err, errStaleTurn):
	default:
		c.logger.Error().Err(err).Msg("overtime penalty write failed")
	}
}

// Start transitions waiting -> playing and opens the first turn.
func (c *Controller) Start(ctx context.Context, presenterID string) (*Session, error) {
	return c.transition(ctx, presenterID, func(s *Session) error {
		if s.Status != StatusWaiting {
			return fmt.Errorf("%w: cannot start a %s session", ErrValidation, s.Status)
		}
		now := time.Now()
		s.Status = StatusPlaying
		s.StartedAt = &now
		s.TurnStartedAt = &now
		s.TimeLeft = s.TimePerQuestion
		return nil
	})
}

// Pause freezes the countdown, persisting the remaining budget.
func (c *Controller) Pause(ctx context.Context, presenterID string) (*Session, error) {
	c.mu.Lock()
	remaining := c.remaining
	c.mu.Unlock()
	return c.transition(ctx, presenterID, func(s *Session) error {
		if s.Status != StatusPlaying {
			return fmt.Errorf("%w: cannot pause a %s session", ErrValidation, s.Status)
		}
		s.Status = StatusPaused
		s.TimeLeft = remaining
		return nil
	})
}

// Resume continues a paused session where it left off.
func (c *Controller) Resume(ctx context.Context, presenterID string) (*Session, error) {
	return c.transition(ctx, presenterID, func(s *Session) error {
		if s.Status != StatusPaused {
			return fmt.Errorf("%w: cannot resume a %s session", ErrValidation, s.Status)
		}
		s.Status = StatusPlaying
		return nil
	})
}

// Finish ends the session from any state. Any pending feedback timer is
// cancelled; the session becomes immutable history.
func (c *Controller) Finish(ctx context.Context, presenterID string) (*Session, error) {
	s, err := c.transition(ctx, presenterID, func(s *Session) error {
		if s.Status == StatusFinished {
			return nil
		}
		now := time.Now()
		s.Status = StatusFinished
		s.FinishedAt = &now
		return nil
	})
	if err == nil {
		c.mu.Lock()
		c.cancelPendingLocked()
		c.mu.Unlock()
	}
	return s, err
}

func (c *Controller) transition(ctx context.Context, presenterID string, fn func(*Session) error) (*Session, error) {
	return c.store.Update(ctx, c.sessionID, func(s *Session) error {
		if !c.authorize(presenterID, s) {
			return ErrNotAuthorized
		}
		return fn(s)
	})
}

package game

import "errors"

var (
	// ErrValidation is returned for bad creation input. It is reported to
	// the caller and never retried.
	ErrValidation = errors.New("invalid session configuration")
	// ErrSessionNotFound is returned when no session matches an ID or an
	// active join code.
	ErrSessionNotFound = errors.New("session not found")
	// ErrNotYourTurn is the expected race between participants: someone
	// answered outside their turn. No state is mutated.
	ErrNotYourTurn = errors.New("not your turn")
	// ErrAlreadyAnswered means the current turn's answer slot is filled.
	ErrAlreadyAnswered = errors.New("answer already submitted for this turn")
	// ErrNotAuthorized means a presenter-only operation was attempted by a
	// caller that does not own the session.
	ErrNotAuthorized = errors.New("not authorized to control this session")
	// ErrCorruptSession means the record holds indices outside their valid
	// range. The session is closed rather than guessed at.
	ErrCorruptSession = errors.New("session record is corrupted")
	// ErrJoinCodeExhausted means join-code allocation ran out of retries.
	ErrJoinCodeExhausted = errors.New("could not allocate a unique join code")
)

// errStaleTurn aborts a store update when the turn the controller latched
// no longer matches the record. Absorbed internally, never surfaced.
var errStaleTurn = errors.New("stale turn")

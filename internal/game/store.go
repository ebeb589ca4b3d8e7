package game

import "context"

// Store is the authoritative shared record per session. Implementations
// must apply Update atomically (one writer at a time per session) and push
// every committed mutation to all subscribers. Subscribers may be delivered
// the same change more than once; consumers are expected to be idempotent.
type Store interface {
	// Create writes a new session record.
	Create(ctx context.Context, s *Session) error
	// Get returns a snapshot of the session, or ErrSessionNotFound.
	Get(ctx context.Context, id string) (*Session, error)
	// Update applies fn to the current record under the session's write
	// lock and commits the result. If fn returns an error nothing is
	// written and the error is returned. The committed snapshot is
	// returned on success.
	Update(ctx context.Context, id string, fn func(*Session) error) (*Session, error)
	// FindByJoinCode locates a non-finished session by its join code.
	FindByJoinCode(ctx context.Context, code string) (*Session, error)
	// Subscribe registers fn for every committed change to the session,
	// delivering the current snapshot immediately. The returned func
	// detaches the observer.
	Subscribe(ctx context.Context, id string, fn func(*Session)) (func(), error)
}

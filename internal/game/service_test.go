package game_test

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/classkit/live-quiz/internal/game"
	"github.com/classkit/live-quiz/internal/game/sequence"
	"github.com/classkit/live-quiz/internal/store/memory"
	"github.com/classkit/live-quiz/internal/store/redisstore"
)

type stubQuestionSource struct {
	questions []game.Question
	err       error

	category string
	limit    int
}

func (s *stubQuestionSource) Lookup(_ context.Context, category string, limit int) ([]game.Question, error) {
	s.category = category
	s.limit = limit
	return s.questions, s.err
}

func newService(t *testing.T, store game.Store, source game.QuestionSource) *game.Service {
	return newServiceWithDelay(t, store, source, 20*time.Millisecond)
}

func newServiceWithDelay(t *testing.T, store game.Store, source game.QuestionSource, delay time.Duration) *game.Service {
	t.Helper()
	svc := game.NewService(store, source, game.ServiceOptions{
		FeedbackDelay: delay,
		Rand:          rand.New(rand.NewSource(1)),
	}, zerolog.Nop())
	t.Cleanup(svc.Close)
	return svc
}

func TestServiceCreateWithInlineQuestions(t *testing.T) {
	svc := newService(t, memory.NewStore(), nil)

	s, err := svc.Create(context.Background(), validParams())
	require.NoError(t, err)
	assert.Equal(t, game.StatusWaiting, s.Status)
	assert.Len(t, s.Questions, 2)
}

func TestServiceCreateResolvesCategory(t *testing.T) {
	source := &stubQuestionSource{questions: validQuestions()}
	svc := newService(t, memory.NewStore(), source)

	p := validParams()
	p.Questions = nil
	p.Category = "geography"

	s, err := svc.Create(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, "geography", source.category)
	assert.Equal(t, 20, source.limit)
	assert.Len(t, s.Questions, 2)
}

func TestServiceFullRound(t *testing.T) {
	store := memory.NewStore()
	svc := newService(t, store, nil)
	ctx := context.Background()

	s, err := svc.Create(ctx, validParams())
	require.NoError(t, err)

	_, err = svc.Start(ctx, s.ID, "presenter-1")
	require.NoError(t, err)

	got, err := svc.Get(ctx, s.ID)
	require.NoError(t, err)
	require.NoError(t, svc.SubmitAnswer(ctx, s.ID, "alice", got.Questions[0].Correct))

	require.Eventually(t, func() bool {
		got, err := svc.Get(ctx, s.ID)
		return err == nil && got.Turn == 1
	}, time.Second, 5*time.Millisecond)

	got, err = svc.Get(ctx, s.ID)
	require.NoError(t, err)
	require.NoError(t, svc.SubmitAnswer(ctx, s.ID, "bob", got.Questions[1].Correct))

	require.Eventually(t, func() bool {
		got, err := svc.Get(ctx, s.ID)
		return err == nil && got.Status == game.StatusFinished
	}, time.Second, 5*time.Millisecond)

	got, err = svc.Get(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Scores["alice"])
	assert.Equal(t, 1, got.Scores["bob"])
}

func TestServiceSubmitAnswerGuards(t *testing.T) {
	// Long feedback delay keeps the turn from advancing mid-test.
	svc := newServiceWithDelay(t, memory.NewStore(), nil, time.Minute)
	ctx := context.Background()

	s, err := svc.Create(ctx, validParams())
	require.NoError(t, err)

	// Session not started yet.
	err = svc.SubmitAnswer(ctx, s.ID, "alice", 0)
	assert.ErrorIs(t, err, game.ErrNotYourTurn)

	_, err = svc.Start(ctx, s.ID, "presenter-1")
	require.NoError(t, err)

	// Out-of-range option.
	err = svc.SubmitAnswer(ctx, s.ID, "alice", 4)
	assert.ErrorIs(t, err, game.ErrValidation)
	err = svc.SubmitAnswer(ctx, s.ID, "alice", -1)
	assert.ErrorIs(t, err, game.ErrValidation)

	// Not on the roster / not the current turn.
	err = svc.SubmitAnswer(ctx, s.ID, "mallory", 0)
	assert.ErrorIs(t, err, game.ErrNotYourTurn)
	err = svc.SubmitAnswer(ctx, s.ID, "bob", 0)
	assert.ErrorIs(t, err, game.ErrNotYourTurn)

	// Double submission within one turn.
	require.NoError(t, svc.SubmitAnswer(ctx, s.ID, "alice", 0))
	err = svc.SubmitAnswer(ctx, s.ID, "alice", 1)
	assert.ErrorIs(t, err, game.ErrAlreadyAnswered)

	// Unknown session.
	err = svc.SubmitAnswer(ctx, "missing", "alice", 0)
	assert.ErrorIs(t, err, game.ErrSessionNotFound)
}

func TestServiceLookupByJoinCode(t *testing.T) {
	svc := newService(t, memory.NewStore(), nil)
	ctx := context.Background()

	s, err := svc.Create(ctx, validParams())
	require.NoError(t, err)

	got, err := svc.LookupByJoinCode(ctx, s.JoinCode)
	require.NoError(t, err)
	assert.Equal(t, s.ID, got.ID)

	_, err = svc.LookupByJoinCode(ctx, "000000")
	assert.ErrorIs(t, err, game.ErrSessionNotFound)

	_, err = svc.Finish(ctx, s.ID, "presenter-1")
	require.NoError(t, err)

	_, err = svc.LookupByJoinCode(ctx, s.JoinCode)
	assert.ErrorIs(t, err, game.ErrSessionNotFound, "finished sessions are not joinable")
}

func TestServiceMarkConnected(t *testing.T) {
	svc := newService(t, memory.NewStore(), nil)
	ctx := context.Background()

	s, err := svc.Create(ctx, validParams())
	require.NoError(t, err)

	require.NoError(t, svc.MarkConnected(ctx, s.ID, "alice", true))
	got, err := svc.Get(ctx, s.ID)
	require.NoError(t, err)
	assert.True(t, got.Players["alice"].Connected)
	assert.NotNil(t, got.Players["alice"].LastSeen)

	require.NoError(t, svc.MarkConnected(ctx, s.ID, "alice", false))
	got, err = svc.Get(ctx, s.ID)
	require.NoError(t, err)
	assert.False(t, got.Players["alice"].Connected)

	err = svc.MarkConnected(ctx, s.ID, "mallory", true)
	assert.ErrorIs(t, err, game.ErrValidation)
}

// Sessions resolving turns at the same time must not interfere: the Redis
// store serializes writes per session only, so each controller needs its
// own randomness for question sequencing.
func TestServiceConcurrentSessionsAdvanceIndependently(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	store := redisstore.NewStore(client, time.Hour, zerolog.Nop())
	svc := newService(t, store, nil)
	ctx := context.Background()

	const sessions = 4
	ids := make([]string, 0, sessions)
	for i := 0; i < sessions; i++ {
		p := validParams()
		p.Sequencing = sequence.Shuffle
		p.Questions = make([]game.Question, 4)
		for j := range p.Questions {
			p.Questions[j] = game.Question{
				Prompt:  fmt.Sprintf("q%d", j),
				Options: []string{"w", "x", "y", "z"},
				Correct: 0,
			}
		}
		s, err := svc.Create(ctx, p)
		require.NoError(t, err)
		_, err = svc.Start(ctx, s.ID, "presenter-1")
		require.NoError(t, err)
		ids = append(ids, s.ID)
	}

	// Every session misses its first question at once; each shuffle draw
	// runs on that session's own controller goroutine.
	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			assert.NoError(t, svc.SubmitAnswer(ctx, id, "alice", 1))
		}(id)
	}
	wg.Wait()

	for _, id := range ids {
		require.Eventually(t, func() bool {
			got, err := svc.Get(ctx, id)
			return err == nil && got.Turn == 1
		}, 2*time.Second, 10*time.Millisecond)

		got, err := svc.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, 0, got.Scores["alice"])
		assert.Equal(t, "bob", got.CurrentTurn)
		assert.Len(t, got.Questions, 4, "shuffle keeps the question count")
	}
}

type subscribeFailStore struct {
	*memory.Store
}

func (s *subscribeFailStore) Subscribe(context.Context, string, func(*game.Session)) (func(), error) {
	return nil, errors.New("stream unavailable")
}

// A change-stream outage at creation time must not orphan the record
// behind an error: the caller still gets the session and join code, and
// lifecycle operations re-attach the controller when the stream is back.
func TestServiceCreateSurvivesAttachFailure(t *testing.T) {
	svc := newService(t, &subscribeFailStore{memory.NewStore()}, nil)
	ctx := context.Background()

	s, err := svc.Create(ctx, validParams())
	require.NoError(t, err)
	assert.NotEmpty(t, s.JoinCode)

	got, err := svc.Get(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, game.StatusWaiting, got.Status)

	// Starting still requires a live controller.
	_, err = svc.Start(ctx, s.ID, "presenter-1")
	assert.Error(t, err)

	got, err = svc.Get(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, game.StatusWaiting, got.Status, "no transition without a controller")
}

func TestServiceSubscribeStreamsChanges(t *testing.T) {
	svc := newService(t, memory.NewStore(), nil)
	ctx := context.Background()

	s, err := svc.Create(ctx, validParams())
	require.NoError(t, err)

	statuses := make(chan string, 8)
	cancel, err := svc.Subscribe(ctx, s.ID, func(s *game.Session) {
		statuses <- s.Status
	})
	require.NoError(t, err)
	defer cancel()

	assert.Equal(t, game.StatusWaiting, <-statuses, "subscribe delivers the current snapshot first")

	_, err = svc.Start(ctx, s.ID, "presenter-1")
	require.NoError(t, err)
	assert.Equal(t, game.StatusPlaying, <-statuses)
}

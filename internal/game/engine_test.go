package game

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/classkit/live-quiz/internal/game/sequence"
)

func testQuestions(n int) []Question {
	qs := make([]Question, n)
	for i := range qs {
		qs[i] = Question{
			Prompt:  "q" + string(rune('A'+i)),
			Options: []string{"w", "x", "y", "z"},
			Correct: i % OptionCount,
		}
	}
	return qs
}

func playingSession(questions []Question, participants []string) *Session {
	now := time.Now()
	s := &Session{
		ID:                "s1",
		JoinCode:          "123456",
		PresenterID:       "presenter-1",
		Status:            StatusPlaying,
		Questions:         questions,
		Participants:      participants,
		Players:           make(map[string]PlayerStatus),
		Scores:            make(map[string]int),
		QuestionsAnswered: make(map[string]int),
		ResponseTimes:     make(map[string]float64),
		TimePerQuestion:   30,
		TimeLeft:          30,
		Sequencing:        sequence.Repeat,
		Scoring:           ScoringStandard,
		Timeout:           TimeoutFreeze,
		CurrentTurn:       participants[0],
		CurrentAnswers:    make(map[string]int),
		CreatedAt:         now,
		StartedAt:         &now,
		TurnStartedAt:     &now,
	}
	for _, p := range participants {
		s.Players[p] = PlayerStatus{}
		s.Scores[p] = 0
		s.QuestionsAnswered[p] = 0
	}
	return s
}

func TestNextTurnCorrectAnswer(t *testing.T) {
	s := playingSession(testQuestions(3), []string{"alice", "bob"})
	res, err := NextTurn(s, s.Questions[0].Correct, rand.New(rand.NewSource(1)))
	require.NoError(t, err)

	assert.Equal(t, "alice", res.Participant)
	assert.True(t, res.Correct)
	assert.Equal(t, 1, res.ScoreDelta)
	assert.Equal(t, 1, res.QuestionIndex)
	assert.Equal(t, "bob", res.NextTurn)
	assert.False(t, res.Finished)
}

func TestNextTurnWrongAnswerStandardScoring(t *testing.T) {
	s := playingSession(testQuestions(3), []string{"alice", "bob"})
	wrong := (s.Questions[0].Correct + 1) % OptionCount
	res, err := NextTurn(s, wrong, rand.New(rand.NewSource(1)))
	require.NoError(t, err)

	assert.False(t, res.Correct)
	assert.Equal(t, 0, res.ScoreDelta)
	assert.Equal(t, 0, res.QuestionIndex, "repeat policy replays the question")
	assert.Equal(t, "bob", res.NextTurn, "rotation is unconditional")
}

func TestNextTurnPenaltyScoring(t *testing.T) {
	s := playingSession(testQuestions(3), []string{"alice", "bob"})
	s.Scoring = ScoringPenalty
	wrong := (s.Questions[0].Correct + 1) % OptionCount

	// At zero the penalty does not apply.
	res, err := NextTurn(s, wrong, rand.New(rand.NewSource(1)))
	require.NoError(t, err)
	assert.Equal(t, 0, res.ScoreDelta)

	s.Scores["alice"] = 2
	res, err = NextTurn(s, wrong, rand.New(rand.NewSource(1)))
	require.NoError(t, err)
	assert.Equal(t, -1, res.ScoreDelta)
}

func TestNextTurnDropExhaustionFinishes(t *testing.T) {
	s := playingSession(testQuestions(1), []string{"alice", "bob"})
	s.Sequencing = sequence.Drop
	wrong := (s.Questions[0].Correct + 1) % OptionCount

	res, err := NextTurn(s, wrong, rand.New(rand.NewSource(1)))
	require.NoError(t, err)
	assert.True(t, res.Finished, "dropping the only question ends the round")
	assert.Empty(t, res.Questions)
}

func TestNextTurnCorruptIndices(t *testing.T) {
	s := playingSession(testQuestions(2), []string{"alice", "bob"})
	s.CurrentQuestionIndex = 5
	_, err := NextTurn(s, 0, rand.New(rand.NewSource(1)))
	assert.ErrorIs(t, err, ErrCorruptSession)

	s = playingSession(testQuestions(2), []string{"alice", "bob"})
	s.CurrentParticipantIndex = -1
	_, err = NextTurn(s, 0, rand.New(rand.NewSource(1)))
	assert.ErrorIs(t, err, ErrCorruptSession)
}

func TestApplyAdvancesTurn(t *testing.T) {
	s := playingSession(testQuestions(3), []string{"alice", "bob"})
	s.CurrentAnswers["alice"] = s.Questions[0].Correct
	s.AnswerSubmitted = true

	res, err := NextTurn(s, s.Questions[0].Correct, rand.New(rand.NewSource(1)))
	require.NoError(t, err)

	now := time.Now()
	res.Apply(s, now)

	assert.Equal(t, 1, s.Scores["alice"])
	assert.Equal(t, 1, s.QuestionsAnswered["alice"])
	assert.Equal(t, 1, s.CurrentQuestionIndex)
	assert.Equal(t, "bob", s.CurrentTurn)
	assert.Equal(t, 1, s.Turn)
	assert.False(t, s.AnswerSubmitted)
	assert.Empty(t, s.CurrentAnswers)
	assert.Equal(t, s.TimePerQuestion, s.TimeLeft)
	require.NotNil(t, s.TurnStartedAt)
	assert.Equal(t, now, *s.TurnStartedAt)
	assert.Equal(t, StatusPlaying, s.Status)
}

func TestApplyFloorsScoreAtZero(t *testing.T) {
	s := playingSession(testQuestions(3), []string{"alice", "bob"})
	s.Scoring = ScoringPenalty
	res := &TurnResult{
		Participant:      "alice",
		ScoreDelta:       -1,
		Questions:        s.Questions,
		QuestionIndex:    0,
		ParticipantIndex: 1,
		NextTurn:         "bob",
	}
	res.Apply(s, time.Now())
	assert.Equal(t, 0, s.Scores["alice"])
}

func TestApplyFinishedFreezesIndices(t *testing.T) {
	s := playingSession(testQuestions(1), []string{"alice", "bob"})
	res, err := NextTurn(s, s.Questions[0].Correct, rand.New(rand.NewSource(1)))
	require.NoError(t, err)
	require.True(t, res.Finished)

	res.Apply(s, time.Now())
	assert.Equal(t, StatusFinished, s.Status)
	assert.NotNil(t, s.FinishedAt)
	assert.Equal(t, 0, s.Turn, "turn number does not advance past the end")
	assert.Equal(t, 0, s.CurrentQuestionIndex)
}

func TestApplyAccumulatesResponseTime(t *testing.T) {
	s := playingSession(testQuestions(3), []string{"alice", "bob"})
	started := time.Now().Add(-4 * time.Second)
	submitted := started.Add(2500 * time.Millisecond)
	s.TurnStartedAt = &started
	s.AnswerSubmittedAt = &submitted

	res, err := NextTurn(s, s.Questions[0].Correct, rand.New(rand.NewSource(1)))
	require.NoError(t, err)
	assert.InDelta(t, 2.5, res.ResponseSeconds, 0.001)

	res.Apply(s, time.Now())
	assert.InDelta(t, 2.5, s.ResponseTimes["alice"], 0.001)
}

// A missed question under the repeat policy recurs for the next
// participant, who can clear it and move the round along.
func TestRoundRepeatMissRecurs(t *testing.T) {
	s := playingSession(testQuestions(2), []string{"ana", "bea"})
	rng := rand.New(rand.NewSource(1))

	wrong := (s.Questions[0].Correct + 1) % OptionCount
	res, err := NextTurn(s, wrong, rng)
	require.NoError(t, err)
	res.Apply(s, time.Now())

	assert.Equal(t, 0, s.CurrentQuestionIndex, "missed question recurs")
	assert.Equal(t, "bea", s.CurrentTurn)
	assert.Equal(t, 0, s.Scores["ana"])

	res, err = NextTurn(s, s.Questions[0].Correct, rng)
	require.NoError(t, err)
	res.Apply(s, time.Now())

	assert.Equal(t, 1, s.CurrentQuestionIndex)
	assert.Equal(t, "ana", s.CurrentTurn)
	assert.Equal(t, 1, s.Scores["bea"])
	assert.Equal(t, StatusPlaying, s.Status)
}

// Alternating turns across a full round: two participants, two questions,
// every answer correct.
func TestRoundAlternatesParticipants(t *testing.T) {
	s := playingSession(testQuestions(2), []string{"alice", "bob"})
	rng := rand.New(rand.NewSource(1))

	res, err := NextTurn(s, s.Questions[0].Correct, rng)
	require.NoError(t, err)
	res.Apply(s, time.Now())
	assert.Equal(t, "bob", s.CurrentTurn)

	res, err = NextTurn(s, s.Questions[1].Correct, rng)
	require.NoError(t, err)
	res.Apply(s, time.Now())

	assert.Equal(t, StatusFinished, s.Status)
	assert.Equal(t, 1, s.Scores["alice"])
	assert.Equal(t, 1, s.Scores["bob"])
}

package game

import (
	"math/rand"
	"time"

	"github.com/classkit/live-quiz/internal/game/sequence"
)

// TurnResult is the complete next-state patch computed for one resolved
// turn. It is applied in a single atomic store update; the engine itself
// never mutates the session it reads.
type TurnResult struct {
	Participant     string
	OptionIndex     int
	Correct         bool
	ScoreDelta      int
	ResponseSeconds float64

	Questions        []Question
	QuestionIndex    int
	ParticipantIndex int
	NextTurn         string
	Finished         bool
}

// NextTurn resolves the current participant's submitted answer against the
// current question and computes the full patch for the next turn: score
// delta, question sequencing, participant rotation, and termination. Pure
// apart from the caller-supplied randomness; no I/O.
func NextTurn(s *Session, optionIndex int, rng *rand.Rand) (*TurnResult, error) {
	q, err := s.CurrentQuestion()
	if err != nil {
		return nil, err
	}
	name, err := s.CurrentParticipant()
	if err != nil {
		return nil, err
	}

	correct := optionIndex == q.Correct

	delta := 0
	if correct {
		delta = 1
	} else if s.Scoring == ScoringPenalty && s.Scores[name] > 0 {
		delta = -1
	}

	questions, nextIdx := sequence.Plan(s.Questions, s.CurrentQuestionIndex, correct, s.Sequencing, rng)

	// Turn rotation is strictly sequential regardless of correctness.
	nextPIdx := (s.CurrentParticipantIndex + 1) % len(s.Participants)

	res := &TurnResult{
		Participant:      name,
		OptionIndex:      optionIndex,
		Correct:          correct,
		ScoreDelta:       delta,
		ResponseSeconds:  responseSeconds(s),
		Questions:        questions,
		QuestionIndex:    nextIdx,
		ParticipantIndex: nextPIdx,
		NextTurn:         s.Participants[nextPIdx],
		Finished:         nextIdx >= len(questions),
	}
	return res, nil
}

func responseSeconds(s *Session) float64 {
	if s.TurnStartedAt == nil || s.AnswerSubmittedAt == nil {
		return 0
	}
	d := s.AnswerSubmittedAt.Sub(*s.TurnStartedAt).Seconds()
	if d < 0 {
		return 0
	}
	return d
}

// Apply writes the patch onto s in one shot. When the round is over the
// indices are frozen as-is and only the status flips; otherwise the answer
// slot is cleared, the flag reset, the time budget restored, and the turn
// sequence number advanced.
func (r *TurnResult) Apply(s *Session, now time.Time) {
	s.Scores[r.Participant] += r.ScoreDelta
	if s.Scores[r.Participant] < 0 {
		s.Scores[r.Participant] = 0
	}
	s.QuestionsAnswered[r.Participant]++
	s.ResponseTimes[r.Participant] += r.ResponseSeconds

	if r.Finished {
		s.Status = StatusFinished
		s.FinishedAt = &now
		return
	}

	s.Questions = r.Questions
	s.CurrentQuestionIndex = r.QuestionIndex
	s.CurrentParticipantIndex = r.ParticipantIndex
	s.CurrentTurn = r.NextTurn
	s.Turn++
	s.CurrentAnswers = make(map[string]int)
	s.AnswerSubmitted = false
	s.AnswerSubmittedAt = nil
	s.TimeLeft = s.TimePerQuestion
	s.TurnStartedAt = &now
}

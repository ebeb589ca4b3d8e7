package game

import (
	"time"

	"github.com/classkit/live-quiz/internal/game/sequence"
)

// Session lifecycle states.
const (
	StatusWaiting  = "waiting"
	StatusPlaying  = "playing"
	StatusPaused   = "paused"
	StatusFinished = "finished"
)

// OptionCount is the fixed number of answer options per question.
const OptionCount = 4

// ScoringMode selects how points are awarded.
type ScoringMode string

const (
	ScoringStandard ScoringMode = "standard" // +1 correct, 0 incorrect
	ScoringPenalty  ScoringMode = "penalty"  // +1 correct, -1 incorrect floored at 0
)

// TimeoutAction selects what happens when the per-question countdown expires.
type TimeoutAction string

const (
	TimeoutFreeze   TimeoutAction = "freeze"   // pause the session and reveal scores
	TimeoutWarn     TimeoutAction = "warn"     // warn once, keep accepting the answer
	TimeoutBlock    TimeoutAction = "block"    // finish the session immediately
	TimeoutOvertime TimeoutAction = "overtime" // periodic score penalty, answers still accepted
)

// Question is one multiple-choice question with a fixed option arity.
type Question struct {
	Prompt  string   `json:"prompt"`
	Options []string `json:"options"`
	Correct int      `json:"correct"`
}

// PlayerStatus tracks a participant's presence.
type PlayerStatus struct {
	Connected bool       `json:"connected"`
	LastSeen  *time.Time `json:"last_seen,omitempty"`
}

// Session is the single authoritative record for one running quiz round.
// Only the presenter controller mutates scores, indices, and status; a
// participant may only fill the current-turn answer slot for their own name.
type Session struct {
	ID          string `json:"session_id"`
	JoinCode    string `json:"join_code"`
	PresenterID string `json:"presenter_id"`
	Status      string `json:"status"`
	Category    string `json:"category,omitempty"`

	Questions    []Question              `json:"questions"`
	Participants []string                `json:"participants"`
	Players      map[string]PlayerStatus `json:"players_status"`

	Scores            map[string]int     `json:"scores"`
	QuestionsAnswered map[string]int     `json:"questions_answered"`
	ResponseTimes     map[string]float64 `json:"response_times"`

	TimePerQuestion int  `json:"time_per_question"`
	UnlimitedTime   bool `json:"unlimited_time"`

	Sequencing       sequence.Policy `json:"sequencing"`
	Scoring          ScoringMode     `json:"scoring"`
	Timeout          TimeoutAction   `json:"timeout_action"`
	OvertimeInterval int             `json:"overtime_interval,omitempty"` // seconds between penalties
	OvertimePenalty  int             `json:"overtime_penalty,omitempty"`  // points per interval

	CurrentQuestionIndex    int    `json:"current_question_index"`
	CurrentParticipantIndex int    `json:"current_participant_index"`
	CurrentTurn             string `json:"current_turn"`

	// Turn is a monotonically increasing sequence number. The answer slot
	// and any pending delayed advance are keyed by it, never by the mutable
	// current-participant pointer.
	Turn int `json:"turn"`

	CurrentAnswers    map[string]int `json:"current_answers"`
	AnswerSubmitted   bool           `json:"answer_submitted"`
	AnswerTurn        int            `json:"answer_turn"`
	AnswerSubmittedAt *time.Time     `json:"answer_submitted_at,omitempty"`
	TimeLeft          int            `json:"time_left"`

	CreatedAt     time.Time  `json:"created_at"`
	StartedAt     *time.Time `json:"started_at,omitempty"`
	TurnStartedAt *time.Time `json:"turn_started_at,omitempty"`
	FinishedAt    *time.Time `json:"finished_at,omitempty"`
}

// CurrentQuestion resolves the question the session is on. An index outside
// the valid range means the record is corrupted, not merely stale.
func (s *Session) CurrentQuestion() (Question, error) {
	if s.CurrentQuestionIndex < 0 || s.CurrentQuestionIndex >= len(s.Questions) {
		return Question{}, ErrCorruptSession
	}
	return s.Questions[s.CurrentQuestionIndex], nil
}

// CurrentParticipant resolves the display name whose turn it is.
func (s *Session) CurrentParticipant() (string, error) {
	if s.CurrentParticipantIndex < 0 || s.CurrentParticipantIndex >= len(s.Participants) {
		return "", ErrCorruptSession
	}
	return s.Participants[s.CurrentParticipantIndex], nil
}

// HasParticipant reports whether name is part of the roster.
func (s *Session) HasParticipant(name string) bool {
	for _, p := range s.Participants {
		if p == name {
			return true
		}
	}
	return false
}

// Clone returns a deep copy so stores can hand out snapshots without
// sharing mutable maps or slices with callers.
func (s *Session) Clone() *Session {
	c := *s
	c.Questions = make([]Question, len(s.Questions))
	for i, q := range s.Questions {
		c.Questions[i] = q
		c.Questions[i].Options = append([]string(nil), q.Options...)
	}
	c.Participants = append([]string(nil), s.Participants...)
	c.Players = make(map[string]PlayerStatus, len(s.Players))
	for k, v := range s.Players {
		c.Players[k] = v
	}
	c.Scores = copyIntMap(s.Scores)
	c.QuestionsAnswered = copyIntMap(s.QuestionsAnswered)
	c.ResponseTimes = make(map[string]float64, len(s.ResponseTimes))
	for k, v := range s.ResponseTimes {
		c.ResponseTimes[k] = v
	}
	c.CurrentAnswers = copyIntMap(s.CurrentAnswers)
	return &c
}

func copyIntMap(m map[string]int) map[string]int {
	out := make(map[string]int, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

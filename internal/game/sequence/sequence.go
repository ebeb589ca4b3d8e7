// Package sequence decides which question plays next after each resolved
// turn. It is pure policy: randomness is supplied by the caller so behavior
// stays reproducible in tests.
package sequence

import "math/rand"

// Policy is the rule for choosing the next question after a miss.
type Policy string

const (
	// Shuffle reinserts a missed question at a random later slot.
	Shuffle Policy = "shuffle"
	// Repeat replays the missed question immediately.
	Repeat Policy = "repeat"
	// Drop removes the missed question from the round entirely.
	Drop Policy = "drop"
)

// Valid reports whether p is one of the closed set of policies.
func (p Policy) Valid() bool {
	switch p {
	case Shuffle, Repeat, Drop:
		return true
	}
	return false
}

// Plan computes the reordered question list and the index of the next
// question to play. The input slice is never mutated.
//
//   - Correct answer: the list is unchanged and the index advances by one.
//   - Miss under Shuffle: the missed question moves to a uniformly random
//     position at or after the current slot; the index stays put.
//   - Miss under Repeat: nothing changes; the same question recurs.
//   - Miss under Drop: the missed question is removed and its successor
//     shifts into the vacated slot.
//
// The round is over when the returned index is >= len of the returned list.
func Plan[Q any](questions []Q, current int, wasCorrect bool, policy Policy, rng *rand.Rand) ([]Q, int) {
	if wasCorrect {
		return questions, current + 1
	}

	switch policy {
	case Shuffle:
		missed := questions[current]
		rest := make([]Q, 0, len(questions)-1)
		rest = append(rest, questions[:current]...)
		rest = append(rest, questions[current+1:]...)
		// Insertion position in [current, len(rest)], inclusive of the
		// question's own slot.
		pos := current + rng.Intn(len(rest)-current+1)
		next := make([]Q, 0, len(questions))
		next = append(next, rest[:pos]...)
		next = append(next, missed)
		next = append(next, rest[pos:]...)
		return next, current
	case Drop:
		next := make([]Q, 0, len(questions)-1)
		next = append(next, questions[:current]...)
		next = append(next, questions[current+1:]...)
		return next, current
	default: // Repeat
		return questions, current
	}
}

package sequence

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPolicyValid(t *testing.T) {
	assert.True(t, Shuffle.Valid())
	assert.True(t, Repeat.Valid())
	assert.True(t, Drop.Valid())
	assert.False(t, Policy("").Valid())
	assert.False(t, Policy("random").Valid())
}

func TestPlanCorrectAdvances(t *testing.T) {
	qs := []string{"a", "b", "c"}
	for _, policy := range []Policy{Shuffle, Repeat, Drop} {
		next, idx := Plan(qs, 1, true, policy, rand.New(rand.NewSource(1)))
		assert.Equal(t, qs, next, "correct answer must not reorder under %s", policy)
		assert.Equal(t, 2, idx)
	}
}

func TestPlanRepeatKeepsQuestion(t *testing.T) {
	qs := []string{"a", "b", "c"}
	next, idx := Plan(qs, 1, false, Repeat, rand.New(rand.NewSource(1)))
	assert.Equal(t, qs, next)
	assert.Equal(t, 1, idx)
}

func TestPlanDropRemovesQuestion(t *testing.T) {
	qs := []string{"a", "b", "c"}
	next, idx := Plan(qs, 1, false, Drop, rand.New(rand.NewSource(1)))
	assert.Equal(t, []string{"a", "c"}, next)
	assert.Equal(t, 1, idx, "index stays so the successor shifts into the slot")
}

func TestPlanDropLastQuestionEndsRound(t *testing.T) {
	qs := []string{"a", "b"}
	next, idx := Plan(qs, 1, false, Drop, rand.New(rand.NewSource(1)))
	assert.Equal(t, []string{"a"}, next)
	assert.GreaterOrEqual(t, idx, len(next), "dropping the final question finishes the round")
}

func TestPlanShufflePreservesSet(t *testing.T) {
	qs := []string{"a", "b", "c", "d", "e"}
	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 100; i++ {
		next, idx := Plan(qs, 2, false, Shuffle, rng)
		assert.Equal(t, 2, idx)
		assert.Len(t, next, len(qs))
		assert.ElementsMatch(t, qs, next)
		// Questions before the current slot are already played and must
		// keep their positions.
		assert.Equal(t, qs[:2], next[:2])
	}
}

func TestPlanShuffleCanKeepOwnSlot(t *testing.T) {
	qs := []string{"a", "b", "c"}
	rng := rand.New(rand.NewSource(7))
	kept, moved := false, false
	for i := 0; i < 200; i++ {
		next, _ := Plan(qs, 0, false, Shuffle, rng)
		if next[0] == "a" {
			kept = true
		} else {
			moved = true
		}
	}
	assert.True(t, kept, "reinsertion at the current slot must be possible")
	assert.True(t, moved, "reinsertion at a later slot must be possible")
}

func TestPlanShuffleLastQuestion(t *testing.T) {
	qs := []string{"a", "b", "c"}
	next, idx := Plan(qs, 2, false, Shuffle, rand.New(rand.NewSource(3)))
	assert.Equal(t, qs, next, "only one slot remains for the missed question")
	assert.Equal(t, 2, idx)
}

func TestPlanNeverMutatesInput(t *testing.T) {
	qs := []string{"a", "b", "c", "d"}
	orig := append([]string(nil), qs...)
	rng := rand.New(rand.NewSource(9))
	for _, policy := range []Policy{Shuffle, Repeat, Drop} {
		Plan(qs, 1, false, policy, rng)
		assert.Equal(t, orig, qs, "input slice mutated under %s", policy)
	}
}

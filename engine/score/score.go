// Package score computes the rapport delta for a chosen dialogue response:
// authored base value, alignment-direction bonus, personality-tag bonus,
// and bounded noise. The scorer performs no I/O and mutates nothing; the
// session applies its result.
package score

import (
	"fmt"
	"strings"

	"github.com/nathoo/pactcore/types"
)

// Roller is the subset of the session RNG the scorer draws from.
type Roller interface {
	IntRange(lo, hi int) int
	Intn(n int) int
}

// Bonus tuning. Direction bonus applies per axis; tag weights are small
// signed integers scaled up so a liked topic outweighs noise.
const (
	DirectionBonus  = 3
	TagWeightFactor = 5
)

// Result is the outcome of scoring one response.
type Result struct {
	Delta        int      // un-clamped rapport change; the session clamps the total
	Tone         types.Tone
	Cue          string
	Tags         []string // merged, normalized tags that were considered
	LikedTags    []string
	DislikedTags []string
}

// Evaluate scores choice choiceIdx of q against the demon's alignment and
// personality. Deterministic given the roller's state.
func Evaluate(q types.Question, choiceIdx int, demon *types.Demon,
	weights types.WeightTable, cues types.CueTable, limits types.Limits, rng Roller) (Result, error) {

	if choiceIdx < 0 || choiceIdx >= len(q.Choices) {
		return Result{}, fmt.Errorf("question %s: choice index %d out of range (have %d)", q.ID, choiceIdx, len(q.Choices))
	}
	eff := q.Choices[choiceIdx].Effect

	delta := eff.DeltaRapport

	// Alignment-direction bonus: answers that push the stance toward the
	// demon's target sign on an axis read as thematically consistent.
	if sameSign(eff.DeltaLC, demon.Alignment.LawChaos) {
		delta += DirectionBonus
	}
	if sameSign(eff.DeltaLD, demon.Alignment.LightDark) {
		delta += DirectionBonus
	}

	// Personality-tag bonus over the response tags merged with the parent
	// question's tags.
	tags := MergeTags(eff.Tags, q.Tags)
	tagWeights := weights[demon.Personality]
	var liked, disliked []string
	for _, tag := range tags {
		w := tagWeights[tag]
		if w == 0 {
			continue
		}
		delta += TagWeightFactor * w
		if w > 0 {
			liked = append(liked, tag)
		} else {
			disliked = append(disliked, tag)
		}
	}

	// Bounded noise keeps optimal answers from being fully discoverable.
	delta += rng.IntRange(limits.NoiseMin, limits.NoiseMax)

	tone := ToneFromDelta(delta)
	return Result{
		Delta:        delta,
		Tone:         tone,
		Cue:          pickCue(cues, demon.Personality, tone, rng),
		Tags:         tags,
		LikedTags:    liked,
		DislikedTags: disliked,
	}, nil
}

// ToneFromDelta maps a rapport delta to the demon's visible reaction.
func ToneFromDelta(delta int) types.Tone {
	switch {
	case delta >= 2:
		return types.Delighted
	case delta == 1:
		return types.Pleased
	case delta == 0:
		return types.Neutral
	case delta == -1:
		return types.Annoyed
	default:
		return types.Enraged
	}
}

// MergeTags normalizes to lowercase and de-duplicates preserving order,
// response tags first.
func MergeTags(effectTags, questionTags []string) []string {
	seen := map[string]bool{}
	var out []string
	for _, src := range [][]string{effectTags, questionTags} {
		for _, t := range src {
			norm := strings.ToLower(strings.TrimSpace(t))
			if norm == "" || seen[norm] {
				continue
			}
			seen[norm] = true
			out = append(out, norm)
		}
	}
	return out
}

// pickCue resolves a flavor cue for personality+tone, drawing one random
// candidate. Missing tables fall back to a quiet default.
func pickCue(cues types.CueTable, p types.Personality, tone types.Tone, rng Roller) string {
	candidates := cues[p][tone]
	if len(candidates) == 0 {
		return "..."
	}
	return candidates[rng.Intn(len(candidates))]
}

func sameSign(delta, target int) bool {
	return (delta > 0 && target > 0) || (delta < 0 && target < 0)
}

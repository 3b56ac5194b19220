// Package reward handles experience, leveling, duplicate-recruit payouts,
// and the defeat penalty.
package reward

import (
	"fmt"
	"math"

	"github.com/nathoo/pactcore/engine/state"
	"github.com/nathoo/pactcore/types"
)

// Roller is the subset of the session RNG rewards draw from.
type Roller interface {
	Intn(n int) int
	IntRange(lo, hi int) int
	Chance(p float64) bool
}

// Level curve tuning.
const (
	baseRecruitExp = 20
	expPerLevel    = 100
	hpPerLevel     = 15
	mpPerLevel     = 5
)

// RecruitExp returns the experience awarded for recruiting a demon of the
// given tier.
func RecruitExp(r types.Rarity) int {
	return int(math.Round(baseRecruitExp * r.Multiplier()))
}

// GrantExp adds experience and applies any level-ups: each level raises the
// HP and MP ceilings and refills both pools. Returns one message per event.
func GrantExp(p *types.Player, exp int) []string {
	if exp <= 0 {
		return nil
	}
	p.Exp += exp
	msgs := []string{fmt.Sprintf("You gain %d experience.", exp)}
	for p.Exp >= p.ExpNext {
		p.Exp -= p.ExpNext
		p.Level++
		p.MaxHP += hpPerLevel
		p.MaxMP += mpPerLevel
		p.HP = p.MaxHP
		p.MP = p.MaxMP
		p.ExpNext = p.Level * expPerLevel
		msgs = append(msgs, fmt.Sprintf("Level up! You are now level %d.", p.Level))
	}
	return msgs
}

// goldRange is the duplicate-payout gold band per tier.
var goldRange = map[types.Rarity][2]int{
	types.Common:    {10, 50},
	types.Uncommon:  {40, 150},
	types.Rare:      {150, 500},
	types.Epic:      {400, 1500},
	types.Legendary: {1000, 5000},
}

// Duplicate is what an already-recruited demon offers instead of joining
// again.
type Duplicate struct {
	Gold    int
	ItemID  string
	ItemQty int
	Message string
}

// DuplicateReward rolls the payout for re-winning a demon already on the
// roster: an even chance of gold from the tier's band, otherwise a stack of
// an item from a tier rolled uniformly at or below the demon's. The tier is
// rolled first so item-heavy tiers do not crowd out the rest; an empty tier
// falls back to gold.
func DuplicateReward(demon *types.Demon, cat *state.Catalog, rng Roller) Duplicate {
	if rng.Chance(0.5) {
		return goldPayout(demon, rng)
	}
	tier := types.Rarity(rng.Intn(int(demon.Rarity) + 1))
	candidates := cat.ItemsByRarity(tier)
	if len(candidates) == 0 {
		return goldPayout(demon, rng)
	}
	item := candidates[rng.Intn(len(candidates))]
	qty := 1 << (int(demon.Rarity) - int(tier))
	return Duplicate{
		ItemID:  item.ID,
		ItemQty: qty,
		Message: fmt.Sprintf("%s offers a parting gift: %s x%d.", demon.Name, item.DisplayName, qty),
	}
}

func goldPayout(demon *types.Demon, rng Roller) Duplicate {
	band := goldRange[demon.Rarity]
	gold := rng.IntRange(band[0], band[1])
	return Duplicate{
		Gold:    gold,
		Message: fmt.Sprintf("%s offers a parting gift: %d gold.", demon.Name, gold),
	}
}

// ApplyDeathPenalty knocks the player down one level, or just resets
// progress at level 1, then fully heals them for the walk home.
func ApplyDeathPenalty(p *types.Player) string {
	msg := "You black out. Your progress toward the next level is lost."
	if p.Level > 1 {
		p.Level--
		p.MaxHP -= hpPerLevel
		p.MaxMP -= mpPerLevel
		p.ExpNext = p.Level * expPerLevel
		msg = fmt.Sprintf("You black out and wake diminished. You are now level %d.", p.Level)
	}
	p.Exp = 0
	p.HP = p.MaxHP
	p.MP = p.MaxMP
	return msg
}

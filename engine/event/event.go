// Package event resolves demon whims and scripted demands. Resolution is
// computed against a read-only view of the player and catalog; the session
// applies the returned result, so a declined callback never leaves partial
// state behind.
package event

import (
	"fmt"
	"math"
	"sort"

	"github.com/nathoo/pactcore/engine/state"
	"github.com/nathoo/pactcore/types"
)

// Roller is the subset of the session RNG the resolver draws from.
type Roller interface {
	Intn(n int) int
	IntRange(lo, hi int) int
	Chance(p float64) bool
	WeightedSelect(weights []int) int
}

// Minimum demands after rarity scaling. Gold asks never go below a token
// sum; vitality asks never go below one point.
const (
	minGoldDemand  = 10
	minVitalDemand = 1
)

// Resolve evaluates one event payload. Callbacks may block on user input.
// An unknown kind returns a harmless no-op result along with the error so
// the session can log and move on.
func Resolve(p types.EventPayload, demon *types.Demon, player *types.Player,
	cat *state.Catalog, cb types.Callbacks, rng Roller) (types.EventResult, error) {

	switch p.Kind {
	case types.EventAskGold:
		return resolveAskGold(p, demon, player, cb), nil
	case types.EventAskItem:
		return resolveAskItem(p, demon, player, cat, cb, rng), nil
	case types.EventAskHP:
		return resolveAskVital(p, demon, player.HP, "HP", cb), nil
	case types.EventAskMP:
		return resolveAskVital(p, demon, player.MP, "MP", cb), nil
	case types.EventGamble:
		return resolveGamble(p, demon, player, cat, cb, rng), nil
	case types.EventTrap:
		return resolveTrap(p, demon, rng), nil
	default:
		return types.EventResult{
			Message: fmt.Sprintf("%s mutters something unintelligible.", demon.Name),
		}, fmt.Errorf("event %s: unknown kind %q", p.ID, p.Kind)
	}
}

func resolveAskGold(p types.EventPayload, demon *types.Demon, player *types.Player, cb types.Callbacks) types.EventResult {
	demand := scaleDemand(p.Amount, demon.Rarity, minGoldDemand)
	if player.Gold < demand {
		// Too poor to even consider the demand. No callback, straight
		// to the failure branch.
		return failure(p, fmt.Sprintf("%s demands %d gold, far more than you carry.", demon.Name, demand))
	}
	if cb.AskPay == nil || !cb.AskPay(demand, player.Gold) {
		return failure(p, fmt.Sprintf("You refuse to part with %d gold.", demand))
	}
	res := success(p, fmt.Sprintf("You hand over %d gold. %s looks satisfied.", demand, demon.Name))
	res.ConsumedGold = demand
	return res
}

func resolveAskItem(p types.EventPayload, demon *types.Demon, player *types.Player,
	cat *state.Catalog, cb types.Callbacks, rng Roller) types.EventResult {

	qty := p.Amount
	if qty < 1 {
		qty = 1
	}
	itemID := p.ItemID
	if itemID == "" && p.PickByRarity {
		itemID = pickHeldByRarity(player, cat, p.ItemRarity, rng)
	}
	if itemID == "" || !state.HasItem(player, itemID, qty) {
		name := itemID
		if def, ok := cat.ItemByID(itemID); ok {
			name = def.DisplayName
		}
		if name == "" {
			name = fmt.Sprintf("a %s trinket", p.ItemRarity)
		}
		return failure(p, fmt.Sprintf("%s wants %s, but you have nothing to offer.", demon.Name, name))
	}
	def, _ := cat.ItemByID(itemID)
	display := def.DisplayName
	if display == "" {
		display = itemID
	}
	if cb.AskGiveItem == nil || !cb.AskGiveItem(itemID, qty, state.CountItem(player, itemID)) {
		return failure(p, fmt.Sprintf("You keep your %s to yourself.", display))
	}
	res := success(p, fmt.Sprintf("%s accepts the %s greedily.", demon.Name, display))
	if p.Consume {
		res.ConsumedItems = map[string]int{itemID: qty}
	}
	return res
}

func resolveAskVital(p types.EventPayload, demon *types.Demon, current int, pool string, cb types.Callbacks) types.EventResult {
	demand := scaleDemand(p.Amount, demon.Rarity, minVitalDemand)
	if current <= demand {
		// Never lethal. The demand lapses when it would drain the pool.
		return failure(p, fmt.Sprintf("%s asks for %d %s, more than you could survive giving.", demon.Name, demand, pool))
	}
	if cb.AskYesNo == nil || !cb.AskYesNo(fmt.Sprintf("%s (costs %d %s)", p.Message, demand, pool)) {
		return failure(p, fmt.Sprintf("You decline to offer your %s.", pool))
	}
	res := success(p, fmt.Sprintf("You yield %d %s. %s savors the offering.", demand, pool, demon.Name))
	if pool == "HP" {
		res.ConsumedHP = demand
	} else {
		res.ConsumedMP = demand
	}
	return res
}

func resolveGamble(p types.EventPayload, demon *types.Demon, player *types.Player,
	cat *state.Catalog, cb types.Callbacks, rng Roller) types.EventResult {
	stake := scaleDemand(p.Amount, demon.Rarity, minGoldDemand)
	if player.Gold < stake {
		return types.EventResult{
			Message: fmt.Sprintf("%s proposes a wager of %d gold, but your purse is too light.", demon.Name, stake),
		}
	}
	if cb.AskYesNo == nil || !cb.AskYesNo(fmt.Sprintf("%s (stake: %d gold)", p.Message, stake)) {
		return types.EventResult{
			Applied:      true,
			Message:      "You wave the wager away.",
			DeltaRapport: p.FailRapport,
		}
	}
	if rng.Chance(0.5) {
		// The stake is paid either way; a win converts it into a prize
		// of the demon's tier or below.
		if itemID := pickTieredItem(cat, demon.Rarity, rng); itemID != "" {
			name := itemID
			if def, ok := cat.ItemByID(itemID); ok {
				name = def.DisplayName
			}
			res := success(p, fmt.Sprintf("The coin lands your way. %s grudgingly hands over a %s.", demon.Name, name))
			res.ConsumedGold = stake
			res.GrantedItems = map[string]int{itemID: 1}
			return res
		}
		res := success(p, fmt.Sprintf("The coin lands your way. %s pays out %d gold.", demon.Name, stake))
		res.ConsumedGold = stake
		res.GrantedGold = stake * 2
		return res
	}
	res := failure(p, fmt.Sprintf("The coin betrays you. %s pockets %d gold.", demon.Name, stake))
	res.ConsumedGold = stake
	return res
}

// pickTieredItem picks uniformly among catalog items at or below the given
// tier, or returns "" when the catalog has none.
func pickTieredItem(cat *state.Catalog, max types.Rarity, rng Roller) string {
	var ids []string
	for id, it := range cat.Items {
		if it.Rarity <= max {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return ""
	}
	sort.Strings(ids)
	return ids[rng.Intn(len(ids))]
}

// resolveTrap needs no decision: the sting always lands, scaled with the
// demon's tier like every other demand. The chance field is the odds the
// demon slips away once it has had its fun.
func resolveTrap(p types.EventPayload, demon *types.Demon, rng Roller) types.EventResult {
	sting := p.FailRapport
	if sting < 0 {
		sting = -scaleDemand(-sting, demon.Rarity, 1)
	}
	return types.EventResult{
		Applied:      true,
		Message:      fmt.Sprintf("It was a trick. %s cackles at your expense.", demon.Name),
		DeltaRapport: sting,
		FledNow:      rng.Chance(p.Chance),
	}
}

// RollWhim decides whether the demon interrupts this round with a demand of
// its own, and if so instantiates one from the catalog's whim templates.
func RollWhim(demon *types.Demon, player *types.Player, cat *state.Catalog, rng Roller) (*types.EventPayload, bool) {
	p := cat.Whims.BaseChance + cat.Whims.PersonalityMod[demon.Personality]
	if p < 0 {
		p = 0
	} else if p > 1 {
		p = 1
	}
	if !rng.Chance(p) {
		return nil, false
	}
	var eligible []types.EventPayload
	var weights []int
	for _, tmpl := range cat.WhimTemplates {
		if !whimApplies(tmpl, player, cat) {
			continue
		}
		w := tmpl.Weight
		if w < 1 {
			w = 1
		}
		eligible = append(eligible, tmpl)
		weights = append(weights, w)
	}
	if len(eligible) == 0 {
		return nil, false
	}
	chosen := eligible[rng.WeightedSelect(weights)]
	if chosen.AmountRange != [2]int{} {
		chosen.Amount = rng.IntRange(chosen.AmountRange[0], chosen.AmountRange[1])
	}
	return &chosen, true
}

// whimApplies filters out templates the player cannot possibly satisfy,
// so whims never degrade into guaranteed failures.
func whimApplies(tmpl types.EventPayload, player *types.Player, cat *state.Catalog) bool {
	if !tmpl.OnlyIfHasItem {
		return true
	}
	if tmpl.ItemID != "" {
		qty := tmpl.Amount
		if qty < 1 {
			qty = 1
		}
		return state.HasItem(player, tmpl.ItemID, qty)
	}
	if tmpl.PickByRarity {
		return len(heldByRarity(player, cat, tmpl.ItemRarity)) > 0
	}
	return true
}

// pickHeldByRarity chooses one of the player's held items of the given tier,
// or "" when none qualify.
func pickHeldByRarity(player *types.Player, cat *state.Catalog, r types.Rarity, rng Roller) string {
	held := heldByRarity(player, cat, r)
	if len(held) == 0 {
		return ""
	}
	return held[rng.Intn(len(held))]
}

func heldByRarity(player *types.Player, cat *state.Catalog, r types.Rarity) []string {
	var out []string
	for id, qty := range player.Inventory {
		if qty <= 0 {
			continue
		}
		def, ok := cat.ItemByID(id)
		if ok && def.Rarity == r {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}

// scaleDemand applies the demon's rarity multiplier to a base amount,
// rounding to nearest and enforcing a floor.
func scaleDemand(base int, r types.Rarity, min int) int {
	scaled := int(math.Round(float64(base) * r.Multiplier()))
	if scaled < min {
		return min
	}
	return scaled
}

func success(p types.EventPayload, msg string) types.EventResult {
	return types.EventResult{
		Applied:      true,
		Message:      msg,
		DeltaRapport: p.SuccessRapport,
		JoinNow:      p.JoinOnSuccess,
	}
}

func failure(p types.EventPayload, msg string) types.EventResult {
	return types.EventResult{
		Applied:      true,
		Message:      msg,
		DeltaRapport: p.FailRapport,
		FledNow:      p.FleeOnFailure,
	}
}

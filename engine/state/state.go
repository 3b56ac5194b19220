// Package state holds the immutable world catalog loaded from Lua and the
// helpers that mutate long-lived player and world state. Demons are stored
// as pointers so availability flags are shared, singular state across the
// whole world.
package state

import (
	"fmt"
	"sort"

	"github.com/nathoo/pactcore/types"
)

// GameDef holds world metadata from Lua.
type GameDef struct {
	Title   string
	Author  string
	Version string
	Intro   string
}

// Catalog is the complete immutable content of a world, plus its tuning.
// Built once by the loader and passed by reference into the engine, never
// accessed as ambient global state.
type Catalog struct {
	Game GameDef

	Demons    map[string]*types.Demon
	Questions []types.Question
	Items     map[string]types.ItemDef
	Events    map[string]types.EventPayload

	WhimTemplates []types.EventPayload
	Whims         types.WhimConfig
	Bribe         types.BribeConfig

	Weights types.WeightTable
	Cues    types.CueTable

	Limits  types.Limits
	RNGSeed int64 // 0 means "seed from the clock"
}

// NewCatalog returns an empty catalog with default tuning, ready for the
// loader to fill.
func NewCatalog() *Catalog {
	return &Catalog{
		Demons: map[string]*types.Demon{},
		Items:  map[string]types.ItemDef{},
		Events: map[string]types.EventPayload{},
		Whims: types.WhimConfig{
			BaseChance:     0.10,
			PersonalityMod: map[types.Personality]float64{},
		},
		Bribe: types.BribeConfig{
			BaseChance:     0.30,
			RapportStep:    0.05,
			TierPenalty:    0.08,
			PersonalityMod: map[types.Personality]float64{},
		},
		Weights: types.WeightTable{},
		Cues:    types.CueTable{},
		Limits:  types.DefaultLimits(),
	}
}

// DemonByID looks up a demon by id.
func (c *Catalog) DemonByID(id string) (*types.Demon, bool) {
	d, ok := c.Demons[id]
	return d, ok
}

// ItemByID looks up an item definition by id.
func (c *Catalog) ItemByID(id string) (types.ItemDef, bool) {
	it, ok := c.Items[id]
	return it, ok
}

// ItemsByRarity returns all catalog items of the given tier, sorted by id
// for deterministic selection.
func (c *Catalog) ItemsByRarity(r types.Rarity) []types.ItemDef {
	var out []types.ItemDef
	for _, it := range c.Items {
		if it.Rarity == r {
			out = append(out, it)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// AvailableDemons returns the demons still recruitable, sorted by id.
func (c *Catalog) AvailableDemons() []*types.Demon {
	var out []*types.Demon
	for _, d := range c.Demons {
		if d.Available {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Starting resources for a fresh player.
const (
	StartGold  = 100
	StartMaxHP = 30
	StartMaxMP = 10
)

// NewPlayer creates a level-1 player whose stance starts at their core.
func NewPlayer(core types.Alignment) *types.Player {
	return &types.Player{
		Core:      core,
		Stance:    core,
		Gold:      StartGold,
		HP:        StartMaxHP,
		MaxHP:     StartMaxHP,
		MP:        StartMaxMP,
		MaxMP:     StartMaxMP,
		Level:     1,
		Exp:       0,
		ExpNext:   100,
		Inventory: map[string]int{},
		Roster:    []string{},
		DexSeen:   []string{},
	}
}

// HasItem reports whether the player holds at least qty of an item.
func HasItem(p *types.Player, itemID string, qty int) bool {
	if qty < 1 {
		qty = 1
	}
	return p.Inventory[itemID] >= qty
}

// CountItem returns the held quantity for an item id.
func CountItem(p *types.Player, itemID string) int {
	return p.Inventory[itemID]
}

// AddItem adds qty of an item to the inventory. Non-positive quantities
// are ignored.
func AddItem(p *types.Player, itemID string, qty int) {
	if itemID == "" || qty <= 0 {
		return
	}
	if p.Inventory == nil {
		p.Inventory = map[string]int{}
	}
	p.Inventory[itemID] += qty
}

// RemoveItem consumes qty of an item if available. Zero-quantity entries
// are dropped so the inventory never holds dead keys.
func RemoveItem(p *types.Player, itemID string, qty int) bool {
	if qty < 1 {
		qty = 1
	}
	have := p.Inventory[itemID]
	if have < qty {
		return false
	}
	if have == qty {
		delete(p.Inventory, itemID)
	} else {
		p.Inventory[itemID] = have - qty
	}
	return true
}

// InRoster reports whether a demon id is already recruited.
func InRoster(p *types.Player, demonID string) bool {
	for _, id := range p.Roster {
		if id == demonID {
			return true
		}
	}
	return false
}

// AddToRoster appends a demon id, refusing duplicates.
func AddToRoster(p *types.Player, demonID string) bool {
	if InRoster(p, demonID) {
		return false
	}
	p.Roster = append(p.Roster, demonID)
	return true
}

// MarkSeen records a demon encounter in the compendium.
func MarkSeen(p *types.Player, demonID string) {
	for _, id := range p.DexSeen {
		if id == demonID {
			return
		}
	}
	p.DexSeen = append(p.DexSeen, demonID)
}

// RelaxPosture pulls the stance one step per axis back toward the core,
// then clamps. Idempotent once stance equals core.
func RelaxPosture(p *types.Player, limits types.Limits) {
	p.Stance.LawChaos = stepToward(p.Stance.LawChaos, p.Core.LawChaos)
	p.Stance.LightDark = stepToward(p.Stance.LightDark, p.Core.LightDark)
	p.Stance.Clamp(limits.AxisMin, limits.AxisMax)
}

func stepToward(from, to int) int {
	switch {
	case from < to:
		return from + 1
	case from > to:
		return from - 1
	default:
		return from
	}
}

// UseItem consumes one unit of a consumable and applies its effect.
// Returns whether it was applied and a human-readable explanation.
func UseItem(p *types.Player, def types.ItemDef) (bool, string) {
	if !def.Consumable || def.Effect == types.ItemEffectNone {
		return false, fmt.Sprintf("%s cannot be used right now.", def.DisplayName)
	}
	if !HasItem(p, def.ID, 1) {
		return false, fmt.Sprintf("You have no %s left.", def.DisplayName)
	}
	switch def.Effect {
	case types.ItemEffectHealHP:
		if p.HP >= p.MaxHP {
			return false, "HP is already full."
		}
		RemoveItem(p, def.ID, 1)
		p.HP += def.EffectAmount
		if p.HP > p.MaxHP {
			p.HP = p.MaxHP
		}
		return true, fmt.Sprintf("%s restores %d HP.", def.DisplayName, def.EffectAmount)
	case types.ItemEffectHealMP:
		if p.MP >= p.MaxMP {
			return false, "MP is already full."
		}
		RemoveItem(p, def.ID, 1)
		p.MP += def.EffectAmount
		if p.MP > p.MaxMP {
			p.MP = p.MaxMP
		}
		return true, fmt.Sprintf("%s restores %d MP.", def.DisplayName, def.EffectAmount)
	default:
		return false, fmt.Sprintf("%s has no usable effect.", def.DisplayName)
	}
}

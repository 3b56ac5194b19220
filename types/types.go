// Package types defines the shared data structures for the PactCore engine,
// plus the small value-type helpers (clamping, distances, tier scaling) that
// every layer needs.
package types

import (
	"fmt"
	"strings"
)

// Personality classifies how a demon weighs conversation topics.
type Personality string

const (
	Playful  Personality = "PLAYFUL"
	Childish Personality = "CHILDISH"
	Moody    Personality = "MOODY"
	Cunning  Personality = "CUNNING"
	Proud    Personality = "PROUD"
)

// Personalities lists all known personalities in a stable order.
var Personalities = []Personality{Playful, Childish, Moody, Cunning, Proud}

// ParsePersonality normalizes a string to a Personality.
func ParsePersonality(s string) (Personality, error) {
	p := Personality(strings.ToUpper(strings.TrimSpace(s)))
	for _, known := range Personalities {
		if p == known {
			return p, nil
		}
	}
	return "", fmt.Errorf("unknown personality %q", s)
}

// Rarity is the ordinal tier of demons and items. Higher tiers scale
// demands and rewards.
type Rarity int

const (
	Common Rarity = iota
	Uncommon
	Rare
	Epic
	Legendary
)

var rarityNames = [...]string{"common", "uncommon", "rare", "epic", "legendary"}

func (r Rarity) String() string {
	if r < Common || r > Legendary {
		return fmt.Sprintf("rarity(%d)", int(r))
	}
	return rarityNames[r]
}

// Multiplier returns the demand/reward scale factor for a tier.
func (r Rarity) Multiplier() float64 {
	switch r {
	case Uncommon:
		return 1.5
	case Rare:
		return 3
	case Epic:
		return 5
	case Legendary:
		return 10
	default:
		return 1
	}
}

// ParseRarity normalizes a string to a Rarity.
func ParseRarity(s string) (Rarity, error) {
	l := strings.ToLower(strings.TrimSpace(s))
	for i, name := range rarityNames {
		if l == name {
			return Rarity(i), nil
		}
	}
	return Common, fmt.Errorf("unknown rarity %q", s)
}

// Alignment is a 2-axis ideological position: LC (Law/Chaos) and
// LD (Light/Dark).
type Alignment struct {
	LawChaos  int `json:"lc"`
	LightDark int `json:"ld"`
}

// Clamp bounds both axes to [lo, hi].
func (a *Alignment) Clamp(lo, hi int) {
	a.LawChaos = clampInt(a.LawChaos, lo, hi)
	a.LightDark = clampInt(a.LightDark, lo, hi)
}

// ManhattanDistance returns |ΔLC| + |ΔLD| between two alignments.
func (a Alignment) ManhattanDistance(other Alignment) int {
	return absInt(a.LawChaos-other.LawChaos) + absInt(a.LightDark-other.LightDark)
}

// EventKind discriminates the special-event union.
type EventKind string

const (
	EventAskGold EventKind = "ask_gold"
	EventAskItem EventKind = "ask_item"
	EventAskHP   EventKind = "ask_hp"
	EventAskMP   EventKind = "ask_mp"
	EventGamble  EventKind = "gamble"
	EventTrap    EventKind = "trap"
)

// EventKinds lists every valid kind.
var EventKinds = []EventKind{EventAskGold, EventAskItem, EventAskHP, EventAskMP, EventGamble, EventTrap}

// EventPayload is a tagged union over the special-event kinds. The loader
// rejects payloads whose required fields for their kind are missing; the
// resolver reads only the fields its kind defines.
type EventPayload struct {
	ID   string
	Kind EventKind

	Message string // demon's demand line, shown by the shell

	// ask_gold / ask_hp / ask_mp / gamble: base demand before rarity
	// scaling. ask_item: quantity demanded.
	Amount int

	// Whim templates may give a range instead of a fixed amount;
	// rolling instantiates Amount from it.
	AmountRange [2]int

	// ask_item: explicit target item, or a rarity-matched pick when
	// ItemID is empty and PickByRarity is set.
	ItemID       string
	PickByRarity bool
	ItemRarity   Rarity
	Consume      bool

	// Rapport consequences.
	SuccessRapport int
	FailRapport    int

	// Early termination triggers.
	JoinOnSuccess bool
	FleeOnFailure bool

	// trap: flee probability. gamble is a fixed 50/50 and ignores this.
	Chance float64

	// Whim template fields.
	OnlyIfHasItem bool
	Weight        int
}

// EventResult reports how a resolved event changed the session.
type EventResult struct {
	Applied       bool
	Message       string
	DeltaRapport  int
	ConsumedGold  int
	ConsumedItems map[string]int
	ConsumedHP    int
	ConsumedMP    int
	GrantedGold   int
	GrantedItems  map[string]int
	JoinNow       bool
	FledNow       bool
}

// Effect is the consequence of picking one dialogue response.
type Effect struct {
	DeltaLC      int
	DeltaLD      int
	DeltaRapport int
	Tags         []string
	EventRef     string        // id into the event registry, resolved at load
	Event        *EventPayload // inline or resolved event, may be nil
}

// Choice is one labeled response to a Question.
type Choice struct {
	Label  string
	Effect Effect
}

// Question is an immutable dialogue prompt with ordered response options.
type Question struct {
	ID      string
	Text    string
	Tags    []string
	Choices []Choice
}

// ItemEffect is what a consumable does when used.
type ItemEffect string

const (
	ItemEffectNone   ItemEffect = "none"
	ItemEffectHealHP ItemEffect = "heal_hp"
	ItemEffectHealMP ItemEffect = "heal_mp"
)

// ItemDef is an immutable item catalog entry.
type ItemDef struct {
	ID           string
	DisplayName  string
	Rarity       Rarity
	Value        int
	Stackable    bool
	Consumable   bool
	Effect       ItemEffect
	EffectAmount int
	Description  string
}

// Demon is an immutable catalog entry; Available is the only mutable
// per-demon state and is owned by the world, not the session.
type Demon struct {
	ID            string
	Name          string
	Alignment     Alignment
	Personality   Personality
	Rarity        Rarity
	Patience      int // max turns in an encounter
	Tolerance     int // max stance distance, and the exhaustible mood budget
	RapportNeeded int
	Available     bool
}

// Player is the long-lived protagonist state. Core is the fixed identity;
// Stance drifts during negotiation and relaxes back toward Core each round.
type Player struct {
	Core   Alignment `json:"core"`
	Stance Alignment `json:"stance"`

	Gold  int `json:"gold"`
	HP    int `json:"hp"`
	MaxHP int `json:"max_hp"`
	MP    int `json:"mp"`
	MaxMP int `json:"max_mp"`

	Level   int `json:"level"`
	Exp     int `json:"exp"`
	ExpNext int `json:"exp_next"`

	Inventory map[string]int `json:"inventory"` // item id → quantity, never zero or negative
	Roster    []string       `json:"roster"`    // recruited demon ids, no duplicates
	DexSeen   []string       `json:"dex_seen"`  // demon ids encountered at least once
}

// Tone is the coarse label of a demon's reaction to one answer.
type Tone string

const (
	Delighted Tone = "DELIGHTED"
	Pleased   Tone = "PLEASED"
	Neutral   Tone = "NEUTRAL"
	Annoyed   Tone = "ANNOYED"
	Enraged   Tone = "ENRAGED"
)

// Negative reports whether the tone depletes the demon's mood budget.
func (t Tone) Negative() bool {
	return t == Annoyed || t == Enraged
}

// Feedback summarizes one scored answer for the presentation layer.
// The engine never prints; shells render this.
type Feedback struct {
	Tone          Tone
	Cue           string
	DeltaRapport  int
	DeltaDistance int // stance→demon distance change, negative means closer
	LikedTags     []string
	DislikedTags  []string
	Notes         []string
}

// Outcome is the terminal status of a negotiation session.
type Outcome int

const (
	InProgress Outcome = iota
	Recruited
	Fled
	Exhausted
)

func (o Outcome) String() string {
	switch o {
	case Recruited:
		return "recruited"
	case Fled:
		return "fled"
	case Exhausted:
		return "exhausted"
	default:
		return "in progress"
	}
}

// Terminal reports whether the session has ended.
func (o Outcome) Terminal() bool { return o != InProgress }

// Callbacks are the decision hooks the shell supplies for in-session
// demands. They may block on user input; the engine never reads input
// itself.
type Callbacks struct {
	AskYesNo    func(prompt string) bool
	AskPay      func(amount, currentGold int) bool
	AskGiveItem func(itemID string, amount, currentQuantity int) bool
}

// WeightTable maps personality → tag → signed weight, used by the scorer.
type WeightTable map[Personality]map[string]int

// CueTable maps personality → tone → candidate flavor cues.
type CueTable map[Personality]map[Tone][]string

// WhimConfig tunes the per-round whim roll.
type WhimConfig struct {
	BaseChance     float64
	PersonalityMod map[Personality]float64
}

// BribeConfig tunes the bribe action.
type BribeConfig struct {
	BaseChance     float64
	RapportStep    float64
	TierPenalty    float64
	PersonalityMod map[Personality]float64
}

// Limits are the numeric bounds for a world. The zero value is not
// usable; start from DefaultLimits and override from catalog config.
type Limits struct {
	RapportMin, RapportMax int
	AxisMin, AxisMax       int
	NoiseMin, NoiseMax     int
}

// DefaultLimits returns the standard tuning.
func DefaultLimits() Limits {
	return Limits{
		RapportMin: -10, RapportMax: 10,
		AxisMin: -5, AxisMax: 5,
		NoiseMin: -1, NoiseMax: 2,
	}
}

// ClampRapport bounds a rapport value to the configured range.
func (l Limits) ClampRapport(v int) int {
	return clampInt(v, l.RapportMin, l.RapportMax)
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

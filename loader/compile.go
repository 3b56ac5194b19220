package loader

import (
	"fmt"

	"github.com/nathoo/pactcore/engine/state"
	"github.com/nathoo/pactcore/types"
	lua "github.com/yuin/gopher-lua"
)

// rawDef holds an id'd definition table before compilation.
type rawDef struct {
	id    string
	table *lua.LTable
}

// getString returns a string field from a Lua table, or "" if missing.
func getString(tbl *lua.LTable, key string) string {
	v := tbl.RawGetString(key)
	if s, ok := v.(lua.LString); ok {
		return string(s)
	}
	return ""
}

// getBool returns a bool field from a Lua table, or the default if missing.
func getBool(tbl *lua.LTable, key string, def bool) bool {
	v := tbl.RawGetString(key)
	if b, ok := v.(lua.LBool); ok {
		return bool(b)
	}
	return def
}

// getNumber returns a numeric field from a Lua table, or the default if
// missing.
func getNumber(tbl *lua.LTable, key string, def float64) float64 {
	v := tbl.RawGetString(key)
	if n, ok := v.(lua.LNumber); ok {
		return float64(n)
	}
	return def
}

// getInt returns an int field from a Lua table, or the default if missing.
func getInt(tbl *lua.LTable, key string, def int) int {
	return int(getNumber(tbl, key, float64(def)))
}

// getTable returns a table field from a Lua table, or nil if missing.
func getTable(tbl *lua.LTable, key string) *lua.LTable {
	v := tbl.RawGetString(key)
	if t, ok := v.(*lua.LTable); ok {
		return t
	}
	return nil
}

// getStringList returns an array-style field as a string slice.
func getStringList(tbl *lua.LTable, key string) []string {
	arr := getTable(tbl, key)
	if arr == nil {
		return nil
	}
	var out []string
	for i := 1; i <= arr.MaxN(); i++ {
		if s, ok := arr.RawGetInt(i).(lua.LString); ok {
			out = append(out, string(s))
		}
	}
	return out
}

// compile turns collected Lua tables into a Catalog. Structural problems
// (bad enums, missing required fields) fail here; cross-references are
// checked by validate.
func compile(coll *collector) (*state.Catalog, error) {
	cat := state.NewCatalog()

	if coll.config != nil {
		compileConfig(coll.config, cat)
	}
	if coll.tuning != nil {
		compileTuning(coll.tuning, cat)
	}

	for _, raw := range coll.demons {
		if _, dup := cat.Demons[raw.id]; dup {
			return nil, fmt.Errorf("duplicate demon %q", raw.id)
		}
		d, err := compileDemon(raw)
		if err != nil {
			return nil, err
		}
		cat.Demons[raw.id] = d
	}

	for _, raw := range coll.items {
		if _, dup := cat.Items[raw.id]; dup {
			return nil, fmt.Errorf("duplicate item %q", raw.id)
		}
		it, err := compileItem(raw)
		if err != nil {
			return nil, err
		}
		cat.Items[raw.id] = it
	}

	for _, raw := range coll.events {
		if _, dup := cat.Events[raw.id]; dup {
			return nil, fmt.Errorf("duplicate event %q", raw.id)
		}
		ev, err := compileEvent(raw.id, raw.table)
		if err != nil {
			return nil, err
		}
		cat.Events[raw.id] = ev
	}

	seenQ := map[string]bool{}
	for _, raw := range coll.questions {
		if seenQ[raw.id] {
			return nil, fmt.Errorf("duplicate question %q", raw.id)
		}
		seenQ[raw.id] = true
		q, err := compileQuestion(raw)
		if err != nil {
			return nil, err
		}
		cat.Questions = append(cat.Questions, q)
	}

	for i, tbl := range coll.whims {
		id := getString(tbl, "id")
		if id == "" {
			id = fmt.Sprintf("whim#%d", i+1)
		}
		ev, err := compileEvent(id, tbl)
		if err != nil {
			return nil, err
		}
		cat.WhimTemplates = append(cat.WhimTemplates, ev)
	}

	if coll.weights != nil {
		w, err := compileWeights(coll.weights)
		if err != nil {
			return nil, err
		}
		cat.Weights = w
	}
	if coll.cues != nil {
		c, err := compileCues(coll.cues)
		if err != nil {
			return nil, err
		}
		cat.Cues = c
	}

	return cat, nil
}

func compileConfig(tbl *lua.LTable, cat *state.Catalog) {
	cat.Game = state.GameDef{
		Title:   getString(tbl, "title"),
		Author:  getString(tbl, "author"),
		Version: getString(tbl, "version"),
		Intro:   getString(tbl, "intro"),
	}
	cat.RNGSeed = int64(getInt(tbl, "seed", 0))

	if limits := getTable(tbl, "limits"); limits != nil {
		cat.Limits.RapportMin = getInt(limits, "rapport_min", cat.Limits.RapportMin)
		cat.Limits.RapportMax = getInt(limits, "rapport_max", cat.Limits.RapportMax)
		cat.Limits.AxisMin = getInt(limits, "axis_min", cat.Limits.AxisMin)
		cat.Limits.AxisMax = getInt(limits, "axis_max", cat.Limits.AxisMax)
		cat.Limits.NoiseMin = getInt(limits, "noise_min", cat.Limits.NoiseMin)
		cat.Limits.NoiseMax = getInt(limits, "noise_max", cat.Limits.NoiseMax)
	}
}

func compileTuning(tbl *lua.LTable, cat *state.Catalog) {
	cat.Whims.BaseChance = getNumber(tbl, "whim_base_chance", cat.Whims.BaseChance)
	cat.Bribe.BaseChance = getNumber(tbl, "bribe_base", cat.Bribe.BaseChance)
	cat.Bribe.RapportStep = getNumber(tbl, "bribe_rapport_step", cat.Bribe.RapportStep)
	cat.Bribe.TierPenalty = getNumber(tbl, "bribe_tier_penalty", cat.Bribe.TierPenalty)

	if mods := getTable(tbl, "whim_mods"); mods != nil {
		mods.ForEach(func(k, v lua.LValue) {
			if p, err := types.ParsePersonality(k.String()); err == nil {
				if n, ok := v.(lua.LNumber); ok {
					cat.Whims.PersonalityMod[p] = float64(n)
				}
			}
		})
	}
	if mods := getTable(tbl, "bribe_mods"); mods != nil {
		mods.ForEach(func(k, v lua.LValue) {
			if p, err := types.ParsePersonality(k.String()); err == nil {
				if n, ok := v.(lua.LNumber); ok {
					cat.Bribe.PersonalityMod[p] = float64(n)
				}
			}
		})
	}
}

func compileDemon(raw rawDef) (*types.Demon, error) {
	tbl := raw.table
	personality, err := types.ParsePersonality(getString(tbl, "personality"))
	if err != nil {
		return nil, fmt.Errorf("demon %q: %w", raw.id, err)
	}
	rarity, err := types.ParseRarity(getString(tbl, "rarity"))
	if err != nil {
		return nil, fmt.Errorf("demon %q: %w", raw.id, err)
	}
	name := getString(tbl, "name")
	if name == "" {
		name = raw.id
	}
	return &types.Demon{
		ID:   raw.id,
		Name: name,
		Alignment: types.Alignment{
			LawChaos:  getInt(tbl, "lc", 0),
			LightDark: getInt(tbl, "ld", 0),
		},
		Personality:   personality,
		Rarity:        rarity,
		Patience:      getInt(tbl, "patience", 6),
		Tolerance:     getInt(tbl, "tolerance", 3),
		RapportNeeded: getInt(tbl, "rapport_needed", 5),
		Available:     getBool(tbl, "available", true),
	}, nil
}

func compileItem(raw rawDef) (types.ItemDef, error) {
	tbl := raw.table
	rarity, err := types.ParseRarity(getString(tbl, "rarity"))
	if err != nil {
		return types.ItemDef{}, fmt.Errorf("item %q: %w", raw.id, err)
	}
	effect := types.ItemEffectNone
	switch e := getString(tbl, "effect"); e {
	case "", "none":
	case "heal_hp":
		effect = types.ItemEffectHealHP
	case "heal_mp":
		effect = types.ItemEffectHealMP
	default:
		return types.ItemDef{}, fmt.Errorf("item %q: unknown effect %q", raw.id, e)
	}
	name := getString(tbl, "name")
	if name == "" {
		name = raw.id
	}
	return types.ItemDef{
		ID:           raw.id,
		DisplayName:  name,
		Rarity:       rarity,
		Value:        getInt(tbl, "value", 0),
		Stackable:    getBool(tbl, "stackable", true),
		Consumable:   getBool(tbl, "consumable", effect != types.ItemEffectNone),
		Effect:       effect,
		EffectAmount: getInt(tbl, "amount", 0),
		Description:  getString(tbl, "description"),
	}, nil
}

// compileEvent builds a demand payload, enforcing the fields its kind
// requires.
func compileEvent(id string, tbl *lua.LTable) (types.EventPayload, error) {
	kind := types.EventKind(getString(tbl, "kind"))
	known := false
	for _, k := range types.EventKinds {
		if kind == k {
			known = true
			break
		}
	}
	if !known {
		return types.EventPayload{}, fmt.Errorf("event %q: unknown kind %q", id, kind)
	}

	ev := types.EventPayload{
		ID:             id,
		Kind:           kind,
		Message:        getString(tbl, "message"),
		Amount:         getInt(tbl, "amount", 0),
		ItemID:         getString(tbl, "item"),
		Consume:        getBool(tbl, "consume", true),
		SuccessRapport: getInt(tbl, "success_rapport", 0),
		FailRapport:    getInt(tbl, "fail_rapport", 0),
		JoinOnSuccess:  getBool(tbl, "join_on_success", false),
		FleeOnFailure:  getBool(tbl, "flee_on_failure", false),
		Chance:         getNumber(tbl, "chance", 0),
		OnlyIfHasItem:  getBool(tbl, "only_if_has_item", false),
		Weight:         getInt(tbl, "weight", 1),
	}

	if r := getTable(tbl, "amount_range"); r != nil {
		lo, loOK := r.RawGetInt(1).(lua.LNumber)
		hi, hiOK := r.RawGetInt(2).(lua.LNumber)
		if !loOK || !hiOK {
			return types.EventPayload{}, fmt.Errorf("event %q: amount_range needs two numbers", id)
		}
		ev.AmountRange = [2]int{int(lo), int(hi)}
	}

	if rar := getString(tbl, "item_rarity"); rar != "" {
		r, err := types.ParseRarity(rar)
		if err != nil {
			return types.EventPayload{}, fmt.Errorf("event %q: %w", id, err)
		}
		ev.PickByRarity = true
		ev.ItemRarity = r
	}

	hasAmount := ev.Amount > 0 || ev.AmountRange != [2]int{}
	switch kind {
	case types.EventAskGold, types.EventAskHP, types.EventAskMP, types.EventGamble:
		if !hasAmount {
			return types.EventPayload{}, fmt.Errorf("event %q: kind %s requires amount or amount_range", id, kind)
		}
	case types.EventAskItem:
		if ev.ItemID == "" && !ev.PickByRarity {
			return types.EventPayload{}, fmt.Errorf("event %q: ask_item requires item or item_rarity", id)
		}
	case types.EventTrap:
		if ev.Chance <= 0 || ev.Chance > 1 {
			return types.EventPayload{}, fmt.Errorf("event %q: trap requires chance in (0, 1]", id)
		}
	}
	return ev, nil
}

func compileQuestion(raw rawDef) (types.Question, error) {
	tbl := raw.table
	q := types.Question{
		ID:   raw.id,
		Text: getString(tbl, "text"),
		Tags: getStringList(tbl, "tags"),
	}
	choices := getTable(tbl, "choices")
	if choices == nil || choices.MaxN() == 0 {
		return types.Question{}, fmt.Errorf("question %q: needs at least one choice", raw.id)
	}
	for i := 1; i <= choices.MaxN(); i++ {
		ctbl, ok := choices.RawGetInt(i).(*lua.LTable)
		if !ok {
			return types.Question{}, fmt.Errorf("question %q: choice %d is not a table", raw.id, i)
		}
		choice := types.Choice{
			Label: getString(ctbl, "label"),
			Effect: types.Effect{
				DeltaLC:      getInt(ctbl, "d_lc", 0),
				DeltaLD:      getInt(ctbl, "d_ld", 0),
				DeltaRapport: getInt(ctbl, "d_rapport", 0),
				Tags:         getStringList(ctbl, "tags"),
			},
		}
		if choice.Label == "" {
			return types.Question{}, fmt.Errorf("question %q: choice %d has no label", raw.id, i)
		}
		switch ev := ctbl.RawGetString("event").(type) {
		case lua.LString:
			choice.Effect.EventRef = string(ev)
		case *lua.LTable:
			inline, err := compileEvent(fmt.Sprintf("%s#%d", raw.id, i), ev)
			if err != nil {
				return types.Question{}, err
			}
			choice.Effect.Event = &inline
		}
		q.Choices = append(q.Choices, choice)
	}
	return q, nil
}

func compileWeights(tbl *lua.LTable) (types.WeightTable, error) {
	out := types.WeightTable{}
	var err error
	tbl.ForEach(func(k, v lua.LValue) {
		if err != nil {
			return
		}
		p, perr := types.ParsePersonality(k.String())
		if perr != nil {
			err = fmt.Errorf("weights: %w", perr)
			return
		}
		inner, ok := v.(*lua.LTable)
		if !ok {
			err = fmt.Errorf("weights: %s must map tags to numbers", k.String())
			return
		}
		m := map[string]int{}
		inner.ForEach(func(tag, w lua.LValue) {
			if n, ok := w.(lua.LNumber); ok {
				m[tag.String()] = int(n)
			}
		})
		out[p] = m
	})
	return out, err
}

func compileCues(tbl *lua.LTable) (types.CueTable, error) {
	valid := map[types.Tone]bool{
		types.Delighted: true, types.Pleased: true, types.Neutral: true,
		types.Annoyed: true, types.Enraged: true,
	}
	out := types.CueTable{}
	var err error
	tbl.ForEach(func(k, v lua.LValue) {
		if err != nil {
			return
		}
		p, perr := types.ParsePersonality(k.String())
		if perr != nil {
			err = fmt.Errorf("cues: %w", perr)
			return
		}
		inner, ok := v.(*lua.LTable)
		if !ok {
			err = fmt.Errorf("cues: %s must map tones to cue lists", k.String())
			return
		}
		m := map[types.Tone][]string{}
		inner.ForEach(func(toneKey, list lua.LValue) {
			if err != nil {
				return
			}
			tone := types.Tone(toneKey.String())
			if !valid[tone] {
				err = fmt.Errorf("cues: %s: unknown tone %q", p, toneKey.String())
				return
			}
			arr, ok := list.(*lua.LTable)
			if !ok {
				err = fmt.Errorf("cues: %s.%s must be a list", p, tone)
				return
			}
			var cues []string
			for i := 1; i <= arr.MaxN(); i++ {
				if s, ok := arr.RawGetInt(i).(lua.LString); ok {
					cues = append(cues, string(s))
				}
			}
			m[tone] = cues
		})
		out[p] = m
	})
	return out, err
}

package loader

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nathoo/pactcore/types"
)

// writeWorld lays out Lua files in a temp dir and returns the dir.
func writeWorld(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	return dir
}

const validConfig = `
Game {
  title = "Test World",
  author = "tester",
  version = "1.0",
  intro = "Night falls.",
  seed = 42,
  limits = { rapport_min = -10, rapport_max = 10, noise_min = 0, noise_max = 0 },
}
Tuning {
  whim_base_chance = 0.2,
  whim_mods = { moody = 0.1 },
  bribe_base = 0.25,
}
`

const validWorld = `
Demon "imp" {
  name = "Imp",
  lc = -3, ld = 2,
  personality = "playful",
  rarity = "common",
  patience = 6, tolerance = 4, rapport_needed = 5,
}

Item "tonic" {
  name = "Tonic",
  rarity = "common",
  value = 25,
  effect = "heal_hp",
  amount = 10,
}

Event "toll" {
  kind = "ask_gold",
  message = "Pay the toll.",
  amount = 20,
  success_rapport = 2,
  fail_rapport = -1,
}

Question "q_games" {
  text = "Fancy a game?",
  tags = { "games" },
  choices = {
    { label = "Always", d_rapport = 1, tags = { "jokes" } },
    { label = "Never", d_rapport = -1, event = "toll" },
    { label = "Deal me in", event = { kind = "gamble", amount = 10, message = "Double or nothing." } },
  },
}

Whim {
  kind = "ask_gold",
  message = "A small donation?",
  amount_range = { 5, 15 },
  weight = 2,
}

Weights {
  playful = { jokes = 2, games = 1, duty = -2 },
}

Cues {
  playful = {
    DELIGHTED = { "claps wildly" },
    ENRAGED = { "bares tiny fangs" },
  },
}
`

func TestLoadFullWorld(t *testing.T) {
	dir := writeWorld(t, map[string]string{
		"config.lua": validConfig,
		"world.lua":  validWorld,
	})
	cat, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cat.Game.Title != "Test World" || cat.Game.Author != "tester" {
		t.Errorf("game = %+v", cat.Game)
	}
	if cat.RNGSeed != 42 {
		t.Errorf("seed = %d, want 42", cat.RNGSeed)
	}
	if cat.Limits.RapportMax != 10 || cat.Limits.NoiseMax != 0 {
		t.Errorf("limits = %+v", cat.Limits)
	}
	if cat.Whims.BaseChance != 0.2 {
		t.Errorf("whim base = %v, want 0.2", cat.Whims.BaseChance)
	}
	if cat.Whims.PersonalityMod[types.Moody] != 0.1 {
		t.Errorf("whim mods = %v", cat.Whims.PersonalityMod)
	}
	if cat.Bribe.BaseChance != 0.25 {
		t.Errorf("bribe base = %v, want 0.25", cat.Bribe.BaseChance)
	}

	imp, ok := cat.DemonByID("imp")
	if !ok {
		t.Fatal("imp not loaded")
	}
	if imp.Alignment != (types.Alignment{LawChaos: -3, LightDark: 2}) {
		t.Errorf("imp alignment = %+v", imp.Alignment)
	}
	if imp.Personality != types.Playful || imp.Rarity != types.Common {
		t.Errorf("imp = %+v", imp)
	}
	if !imp.Available {
		t.Error("demons default to available")
	}

	tonic, ok := cat.ItemByID("tonic")
	if !ok {
		t.Fatal("tonic not loaded")
	}
	if tonic.Effect != types.ItemEffectHealHP || tonic.EffectAmount != 10 {
		t.Errorf("tonic = %+v", tonic)
	}
	if !tonic.Consumable {
		t.Error("items with an effect default to consumable")
	}

	if len(cat.Questions) != 1 {
		t.Fatalf("questions = %d, want 1", len(cat.Questions))
	}
	q := cat.Questions[0]
	if len(q.Choices) != 3 {
		t.Fatalf("choices = %d, want 3", len(q.Choices))
	}
	if q.Choices[1].Effect.EventRef != "toll" {
		t.Errorf("choice 2 event ref = %q", q.Choices[1].Effect.EventRef)
	}
	inline := q.Choices[2].Effect.Event
	if inline == nil || inline.Kind != types.EventGamble || inline.Amount != 10 {
		t.Errorf("choice 3 inline event = %+v", inline)
	}

	if len(cat.WhimTemplates) != 1 {
		t.Fatalf("whims = %d, want 1", len(cat.WhimTemplates))
	}
	if cat.WhimTemplates[0].AmountRange != [2]int{5, 15} {
		t.Errorf("whim range = %v", cat.WhimTemplates[0].AmountRange)
	}

	if cat.Weights[types.Playful]["duty"] != -2 {
		t.Errorf("weights = %v", cat.Weights)
	}
	if len(cat.Cues[types.Playful][types.Delighted]) != 1 {
		t.Errorf("cues = %v", cat.Cues)
	}
}

func TestLoadEmptyDir(t *testing.T) {
	if _, err := Load(t.TempDir()); err == nil {
		t.Error("expected error for directory with no .lua files")
	}
}

func TestLoadMissingDir(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope")); err == nil {
		t.Error("expected error for missing directory")
	}
}

func TestLoadBadPersonality(t *testing.T) {
	dir := writeWorld(t, map[string]string{
		"world.lua": `
Demon "x" { personality = "sleepy", rarity = "common" }
Question "q" { choices = { { label = "Hi" } } }
`,
	})
	_, err := Load(dir)
	if err == nil || !strings.Contains(err.Error(), "personality") {
		t.Errorf("err = %v, want personality rejection", err)
	}
}

func TestLoadDanglingEventRef(t *testing.T) {
	dir := writeWorld(t, map[string]string{
		"world.lua": `
Demon "x" { personality = "moody", rarity = "common" }
Question "q" { choices = { { label = "Hi", event = "ghost" } } }
`,
	})
	_, err := Load(dir)
	if err == nil || !strings.Contains(err.Error(), "ghost") {
		t.Errorf("err = %v, want dangling event error", err)
	}
}

func TestLoadUnwinnableDemon(t *testing.T) {
	dir := writeWorld(t, map[string]string{
		"world.lua": `
Demon "x" { personality = "proud", rarity = "epic", rapport_needed = 999 }
Question "q" { choices = { { label = "Hi" } } }
`,
	})
	_, err := Load(dir)
	if err == nil || !strings.Contains(err.Error(), "unwinnable") {
		t.Errorf("err = %v, want unwinnable rejection", err)
	}
}

func TestLoadTrapWithoutChance(t *testing.T) {
	dir := writeWorld(t, map[string]string{
		"world.lua": `
Demon "x" { personality = "cunning", rarity = "rare" }
Event "trick" { kind = "trap" }
Question "q" { choices = { { label = "Hi" } } }
`,
	})
	_, err := Load(dir)
	if err == nil || !strings.Contains(err.Error(), "chance") {
		t.Errorf("err = %v, want trap chance error", err)
	}
}

func TestLoadAskItemNeedsTarget(t *testing.T) {
	dir := writeWorld(t, map[string]string{
		"world.lua": `
Demon "x" { personality = "childish", rarity = "common" }
Event "gimme" { kind = "ask_item" }
Question "q" { choices = { { label = "Hi" } } }
`,
	})
	_, err := Load(dir)
	if err == nil || !strings.Contains(err.Error(), "ask_item") {
		t.Errorf("err = %v, want ask_item target error", err)
	}
}

func TestLoadAskItemUnknownItem(t *testing.T) {
	dir := writeWorld(t, map[string]string{
		"world.lua": `
Demon "x" { personality = "childish", rarity = "common" }
Event "gimme" { kind = "ask_item", item = "mystery" }
Question "q" { choices = { { label = "Hi" } } }
`,
	})
	_, err := Load(dir)
	if err == nil || !strings.Contains(err.Error(), "mystery") {
		t.Errorf("err = %v, want unknown item error", err)
	}
}

func TestLoadDuplicateDemon(t *testing.T) {
	dir := writeWorld(t, map[string]string{
		"world.lua": `
Demon "x" { personality = "moody", rarity = "common" }
Demon "x" { personality = "moody", rarity = "common" }
Question "q" { choices = { { label = "Hi" } } }
`,
	})
	_, err := Load(dir)
	if err == nil || !strings.Contains(err.Error(), "duplicate") {
		t.Errorf("err = %v, want duplicate rejection", err)
	}
}

func TestLoadSandboxBlocksIO(t *testing.T) {
	dir := writeWorld(t, map[string]string{
		"world.lua": `
Demon "x" { personality = "moody", rarity = "common" }
Question "q" { choices = { { label = "Hi" } } }
local f = io.open("/etc/passwd")
`,
	})
	if _, err := Load(dir); err == nil {
		t.Error("io library must not be available to content")
	}
}

func TestSortedLuaFiles(t *testing.T) {
	got := sortedLuaFiles([]string{"zoo.lua", "config.lua", "alpha.lua"})
	want := []string{"config.lua", "alpha.lua", "zoo.lua"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order = %v, want %v", got, want)
		}
	}
}

func TestConfigOrderIndependent(t *testing.T) {
	// Content defined before config still compiles, since compilation
	// happens after all files run.
	dir := writeWorld(t, map[string]string{
		"aaa_world.lua": `
Demon "x" { personality = "moody", rarity = "common" }
Question "q" { choices = { { label = "Hi" } } }
`,
		"config.lua": `Game { title = "Late Config", seed = 7 }`,
	})
	cat, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cat.Game.Title != "Late Config" || cat.RNGSeed != 7 {
		t.Errorf("game = %+v seed = %d", cat.Game, cat.RNGSeed)
	}
}

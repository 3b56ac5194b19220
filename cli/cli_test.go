package cli

import (
	"bytes"
	"strings"
	"testing"

	"github.com/nathoo/pactcore/engine"
	"github.com/nathoo/pactcore/engine/save"
	"github.com/nathoo/pactcore/engine/state"
	"github.com/nathoo/pactcore/types"
)

func testWorld() *state.Catalog {
	cat := state.NewCatalog()
	cat.Game.Intro = "Night falls on the ward."
	cat.Limits.NoiseMin, cat.Limits.NoiseMax = 0, 0
	cat.Whims.BaseChance = 0
	cat.Demons["imp"] = &types.Demon{
		ID: "imp", Name: "Imp",
		Personality: types.Playful, Rarity: types.Common,
		Patience: 6, Tolerance: 4, RapportNeeded: 5,
		Available: true,
	}
	cat.Questions = []types.Question{
		{
			ID: "q_warm", Text: "A kind word?",
			Choices: []types.Choice{
				{Label: "Flatter", Effect: types.Effect{DeltaRapport: 5}},
				{Label: "Insult", Effect: types.Effect{DeltaRapport: -2}},
			},
		},
	}
	cat.Items["tonic"] = types.ItemDef{
		ID: "tonic", DisplayName: "Tonic", Rarity: types.Common,
		Consumable: true, Effect: types.ItemEffectHealHP, EffectAmount: 10,
	}
	return cat
}

// runScript feeds the lines to a fresh CLI and returns its output.
func runScript(t *testing.T, cat *state.Catalog, player *types.Player, lines ...string) string {
	t.Helper()
	var out bytes.Buffer
	c := New(cat, player, engine.NewRNG(1), nil)
	c.In = strings.NewReader(strings.Join(lines, "\n") + "\n")
	c.Out = &out
	c.Run()
	return out.String()
}

func TestScriptedRecruitment(t *testing.T) {
	cat := testWorld()
	player := state.NewPlayer(types.Alignment{})

	out := runScript(t, cat, player,
		"approach imp",
		"1",
		"/quit",
	)
	if !strings.Contains(out, "Night falls on the ward.") {
		t.Error("intro not shown")
	}
	if !strings.Contains(out, "Imp recruited") {
		t.Errorf("output missing recruitment banner:\n%s", out)
	}
	if !state.InRoster(player, "imp") {
		t.Error("imp not recruited")
	}
}

func TestScriptedFlee(t *testing.T) {
	cat := testWorld()
	player := state.NewPlayer(types.Alignment{})

	out := runScript(t, cat, player,
		"approach imp",
		"f",
		"/quit",
	)
	if !strings.Contains(out, "Imp is gone") {
		t.Errorf("output missing flee banner:\n%s", out)
	}
	if state.InRoster(player, "imp") {
		t.Error("fled demon must not join the roster")
	}
}

func TestInvalidChoiceReprompts(t *testing.T) {
	cat := testWorld()
	player := state.NewPlayer(types.Alignment{})

	out := runScript(t, cat, player,
		"approach imp",
		"9",
		"1",
		"/quit",
	)
	if !strings.Contains(out, "Pick 1-2") {
		t.Errorf("expected reprompt for out-of-range choice:\n%s", out)
	}
	if !state.InRoster(player, "imp") {
		t.Error("valid retry should still recruit")
	}
}

func TestItemIsFreeAction(t *testing.T) {
	cat := testWorld()
	player := state.NewPlayer(types.Alignment{})
	player.HP = 10
	state.AddItem(player, "tonic", 1)

	out := runScript(t, cat, player,
		"approach imp",
		"u tonic",
		"1",
		"/quit",
	)
	if !strings.Contains(out, "restores 10 HP") {
		t.Errorf("tonic message missing:\n%s", out)
	}
	if player.HP != 20 {
		t.Errorf("HP = %d, want 20 after the tonic", player.HP)
	}
	if state.CountItem(player, "tonic") != 0 {
		t.Error("tonic not consumed")
	}
}

func TestMetaCommands(t *testing.T) {
	cat := testWorld()
	player := state.NewPlayer(types.Alignment{})

	out := runScript(t, cat, player,
		"/help",
		"/roster",
		"/bag",
		"/stats",
		"/quit",
	)
	if !strings.Contains(out, "approach <id>") {
		t.Error("/help output missing")
	}
	if !strings.Contains(out, "No pacts yet.") {
		t.Error("/roster output missing")
	}
	if !strings.Contains(out, "Your bag is empty.") {
		t.Error("/bag output missing")
	}
	if !strings.Contains(out, "Level 1") {
		t.Error("/stats output missing")
	}
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	cat := testWorld()
	player := state.NewPlayer(types.Alignment{})
	st := save.NewStore(t.TempDir())

	var out bytes.Buffer
	c := New(cat, player, engine.NewRNG(1), st)
	c.In = strings.NewReader("approach imp\n1\n/save\n/quit\n")
	c.Out = &out
	c.Run()
	if !st.Exists() {
		t.Fatal("save file missing after /save")
	}

	// A fresh world loads the save and sees the recruit.
	cat2 := testWorld()
	player2 := state.NewPlayer(types.Alignment{})
	var out2 bytes.Buffer
	c2 := New(cat2, player2, engine.NewRNG(1), st)
	c2.In = strings.NewReader("/load\n/roster\n/quit\n")
	c2.Out = &out2
	c2.Run()
	if !strings.Contains(out2.String(), "Imp") {
		t.Errorf("roster after load missing Imp:\n%s", out2.String())
	}
	if cat2.Demons["imp"].Available {
		t.Error("availability not restored on load")
	}
}

func TestLoadResumesMidNegotiation(t *testing.T) {
	cat := testWorld()
	player := state.NewPlayer(types.Alignment{})
	st := save.NewStore(t.TempDir())

	// One insult, then the script runs out; the round-boundary checkpoint
	// leaves an in-flight session in the save.
	var out bytes.Buffer
	c := New(cat, player, engine.NewRNG(1), st)
	c.In = strings.NewReader("approach imp\n2\n")
	c.Out = &out
	c.Run()

	d, err := st.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if d.Session == nil {
		t.Fatal("checkpoint did not persist the in-flight session")
	}

	// A fresh process loads the save and is dropped back into the
	// negotiation, which two kind words can still win.
	cat2 := testWorld()
	var out2 bytes.Buffer
	c2 := New(cat2, state.NewPlayer(types.Alignment{}), engine.NewRNG(99), st)
	c2.In = strings.NewReader("/load\n1\n1\n/quit\n")
	c2.Out = &out2
	c2.Run()

	if !strings.Contains(out2.String(), "Resuming your negotiation with Imp") {
		t.Errorf("load did not resume the session:\n%s", out2.String())
	}
	if !strings.Contains(out2.String(), "Imp recruited") {
		t.Errorf("resumed negotiation could not finish:\n%s", out2.String())
	}
	if !state.InRoster(c2.Player, "imp") {
		t.Error("imp missing from the loaded player's roster")
	}
}

func TestCommentsSkippedForScripts(t *testing.T) {
	cat := testWorld()
	player := state.NewPlayer(types.Alignment{})

	out := runScript(t, cat, player,
		"# this is a playback script",
		"approach imp",
		"# recruit with the friendly line",
		"1",
		"/quit",
	)
	if !strings.Contains(out, "Imp recruited") {
		t.Errorf("comments must be ignored:\n%s", out)
	}
}

func TestUnknownDemon(t *testing.T) {
	cat := testWorld()
	player := state.NewPlayer(types.Alignment{})

	out := runScript(t, cat, player,
		"approach dragon",
		"/quit",
	)
	if !strings.Contains(out, "no such demon") {
		t.Errorf("expected unknown demon message:\n%s", out)
	}
}

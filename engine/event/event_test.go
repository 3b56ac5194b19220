package event

import (
	"strings"
	"testing"

	"github.com/nathoo/pactcore/engine/state"
	"github.com/nathoo/pactcore/types"
)

// scriptedRoller feeds deterministic answers to the resolver.
type scriptedRoller struct {
	chance   bool
	pick     int
	rangeLow bool // IntRange returns lo when true, hi otherwise
}

func (s scriptedRoller) Intn(n int) int { return s.pick % n }
func (s scriptedRoller) IntRange(lo, hi int) int {
	if s.rangeLow {
		return lo
	}
	return hi
}
func (s scriptedRoller) Chance(p float64) bool      { return s.chance }
func (s scriptedRoller) WeightedSelect(w []int) int { return s.pick % len(w) }

func alwaysYes() types.Callbacks {
	return types.Callbacks{
		AskYesNo:    func(string) bool { return true },
		AskPay:      func(int, int) bool { return true },
		AskGiveItem: func(string, int, int) bool { return true },
	}
}

func alwaysNo() types.Callbacks {
	return types.Callbacks{
		AskYesNo:    func(string) bool { return false },
		AskPay:      func(int, int) bool { return false },
		AskGiveItem: func(string, int, int) bool { return false },
	}
}

func rareDemon() *types.Demon {
	return &types.Demon{
		ID:          "naga",
		Name:        "Naga",
		Personality: types.Cunning,
		Rarity:      types.Rare,
	}
}

func testCatalog() *state.Catalog {
	cat := state.NewCatalog()
	cat.Items["gem"] = types.ItemDef{ID: "gem", DisplayName: "Gleaming Gem", Rarity: types.Rare}
	cat.Items["pebble"] = types.ItemDef{ID: "pebble", DisplayName: "Pebble", Rarity: types.Common}
	return cat
}

func TestAskGoldScalesWithRarity(t *testing.T) {
	p := types.EventPayload{
		ID: "toll", Kind: types.EventAskGold,
		Amount: 20, SuccessRapport: 2, FailRapport: -1,
	}
	player := state.NewPlayer(types.Alignment{})
	player.Gold = 500

	var asked int
	cb := alwaysYes()
	cb.AskPay = func(amount, gold int) bool {
		asked = amount
		return true
	}
	res, err := Resolve(p, rareDemon(), player, testCatalog(), cb, scriptedRoller{})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	// Rare multiplies the base demand by 3.
	if asked != 60 {
		t.Errorf("asked amount = %d, want 60", asked)
	}
	if res.ConsumedGold != 60 || res.DeltaRapport != 2 {
		t.Errorf("result = %+v, want gold 60 rapport +2", res)
	}
}

func TestAskGoldInsufficientSkipsCallback(t *testing.T) {
	p := types.EventPayload{
		ID: "toll", Kind: types.EventAskGold,
		Amount: 20, FailRapport: -2, FleeOnFailure: true,
	}
	player := state.NewPlayer(types.Alignment{})
	player.Gold = 5

	cb := alwaysYes()
	cb.AskPay = func(int, int) bool {
		t.Fatal("AskPay must not be called when the player cannot pay")
		return false
	}
	res, err := Resolve(p, rareDemon(), player, testCatalog(), cb, scriptedRoller{})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.ConsumedGold != 0 {
		t.Errorf("consumed gold = %d, want 0", res.ConsumedGold)
	}
	if res.DeltaRapport != -2 || !res.FledNow {
		t.Errorf("result = %+v, want rapport -2 and flee", res)
	}
}

func TestAskGoldDeclined(t *testing.T) {
	p := types.EventPayload{ID: "toll", Kind: types.EventAskGold, Amount: 10, FailRapport: -1}
	player := state.NewPlayer(types.Alignment{})
	player.Gold = 500

	res, err := Resolve(p, rareDemon(), player, testCatalog(), alwaysNo(), scriptedRoller{})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.ConsumedGold != 0 || res.DeltaRapport != -1 || res.FledNow {
		t.Errorf("result = %+v, want no gold, rapport -1, no flee", res)
	}
}

func TestAskItemExplicit(t *testing.T) {
	p := types.EventPayload{
		ID: "tribute", Kind: types.EventAskItem,
		ItemID: "gem", Amount: 1, Consume: true,
		SuccessRapport: 3, JoinOnSuccess: true,
	}
	player := state.NewPlayer(types.Alignment{})
	state.AddItem(player, "gem", 2)

	res, err := Resolve(p, rareDemon(), player, testCatalog(), alwaysYes(), scriptedRoller{})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.ConsumedItems["gem"] != 1 {
		t.Errorf("consumed = %v, want gem x1", res.ConsumedItems)
	}
	if !res.JoinNow || res.DeltaRapport != 3 {
		t.Errorf("result = %+v, want join and rapport +3", res)
	}
}

func TestAskItemByRarity(t *testing.T) {
	p := types.EventPayload{
		ID: "tribute", Kind: types.EventAskItem,
		PickByRarity: true, ItemRarity: types.Rare, Consume: true,
		SuccessRapport: 1,
	}
	player := state.NewPlayer(types.Alignment{})
	state.AddItem(player, "gem", 1)
	state.AddItem(player, "pebble", 5)

	res, err := Resolve(p, rareDemon(), player, testCatalog(), alwaysYes(), scriptedRoller{})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	// Only the gem matches the demanded tier.
	if res.ConsumedItems["gem"] != 1 {
		t.Errorf("consumed = %v, want gem x1", res.ConsumedItems)
	}
}

func TestAskItemNothingToOffer(t *testing.T) {
	p := types.EventPayload{
		ID: "tribute", Kind: types.EventAskItem,
		PickByRarity: true, ItemRarity: types.Legendary,
		FailRapport: -2,
	}
	player := state.NewPlayer(types.Alignment{})

	cb := alwaysYes()
	cb.AskGiveItem = func(string, int, int) bool {
		t.Fatal("AskGiveItem must not be called with nothing to offer")
		return false
	}
	res, err := Resolve(p, rareDemon(), player, testCatalog(), cb, scriptedRoller{})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.DeltaRapport != -2 || len(res.ConsumedItems) != 0 {
		t.Errorf("result = %+v, want rapport -2 and no items", res)
	}
}

func TestAskHPNeverLethal(t *testing.T) {
	p := types.EventPayload{
		ID: "blood", Kind: types.EventAskHP,
		Amount: 10, FailRapport: -1, SuccessRapport: 2,
	}
	player := state.NewPlayer(types.Alignment{})
	player.HP = 25 // Rare demand is 30, would drain past zero

	cb := alwaysYes()
	cb.AskYesNo = func(string) bool {
		t.Fatal("AskYesNo must not be called when the demand would be lethal")
		return false
	}
	res, err := Resolve(p, rareDemon(), player, testCatalog(), cb, scriptedRoller{})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.ConsumedHP != 0 || res.DeltaRapport != -1 {
		t.Errorf("result = %+v, want no HP loss and rapport -1", res)
	}
}

func TestAskHPAccepted(t *testing.T) {
	p := types.EventPayload{
		ID: "blood", Kind: types.EventAskHP,
		Amount: 2, SuccessRapport: 2,
	}
	player := state.NewPlayer(types.Alignment{})
	player.HP = 30

	res, err := Resolve(p, rareDemon(), player, testCatalog(), alwaysYes(), scriptedRoller{})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.ConsumedHP != 6 {
		t.Errorf("consumed HP = %d, want 6", res.ConsumedHP)
	}
}

func TestGambleWinAndLose(t *testing.T) {
	p := types.EventPayload{
		ID: "wager", Kind: types.EventGamble,
		Amount: 10, SuccessRapport: 2, FailRapport: -1,
	}
	player := state.NewPlayer(types.Alignment{})
	player.Gold = 500

	// The stake is paid on both branches; a win converts it into a
	// tiered item (alphabetically first under a zero pick: the gem).
	win, err := Resolve(p, rareDemon(), player, testCatalog(), alwaysYes(), scriptedRoller{chance: true})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if win.ConsumedGold != 30 || win.GrantedItems["gem"] != 1 || win.DeltaRapport != 2 {
		t.Errorf("win = %+v, want stake 30 paid, a gem, rapport +2", win)
	}

	lose, err := Resolve(p, rareDemon(), player, testCatalog(), alwaysYes(), scriptedRoller{chance: false})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if lose.ConsumedGold != 30 || lose.DeltaRapport != -1 || len(lose.GrantedItems) != 0 {
		t.Errorf("lose = %+v, want -30 gold rapport -1", lose)
	}
}

func TestGambleWinWithEmptyCatalogPaysGold(t *testing.T) {
	p := types.EventPayload{
		ID: "wager", Kind: types.EventGamble,
		Amount: 10, SuccessRapport: 2, FailRapport: -1,
	}
	player := state.NewPlayer(types.Alignment{})
	player.Gold = 500

	win, err := Resolve(p, rareDemon(), player, state.NewCatalog(), alwaysYes(), scriptedRoller{chance: true})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if win.ConsumedGold != 30 || win.GrantedGold != 60 {
		t.Errorf("win = %+v, want double-or-nothing gold fallback", win)
	}
}

func TestTrapStingIsUnconditional(t *testing.T) {
	p := types.EventPayload{
		ID: "trick", Kind: types.EventTrap,
		Chance: 0.5, FailRapport: -2,
	}
	player := state.NewPlayer(types.Alignment{})

	// Rare tier triples the sting: -2 becomes -6, whether or not the demon
	// slips away afterward. The chance field only decides the exit.
	stay, err := Resolve(p, rareDemon(), player, testCatalog(), types.Callbacks{}, scriptedRoller{chance: false})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if stay.DeltaRapport != -6 || stay.FledNow {
		t.Errorf("stay = %+v, want rapport -6 and the demon staying", stay)
	}

	bolt, err := Resolve(p, rareDemon(), player, testCatalog(), types.Callbacks{}, scriptedRoller{chance: true})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if bolt.DeltaRapport != -6 || !bolt.FledNow {
		t.Errorf("bolt = %+v, want rapport -6 and the demon gone", bolt)
	}
}

func TestUnknownKind(t *testing.T) {
	p := types.EventPayload{ID: "weird", Kind: "dance_off"}
	player := state.NewPlayer(types.Alignment{})

	res, err := Resolve(p, rareDemon(), player, testCatalog(), types.Callbacks{}, scriptedRoller{})
	if err == nil {
		t.Fatal("expected error for unknown kind")
	}
	if !strings.Contains(err.Error(), "dance_off") {
		t.Errorf("error = %v, want mention of the kind", err)
	}
	if res.Applied {
		t.Errorf("unknown kind must be a no-op, got %+v", res)
	}
}

func TestRollWhimInstantiatesRange(t *testing.T) {
	cat := testCatalog()
	cat.Whims.BaseChance = 1.0
	cat.WhimTemplates = []types.EventPayload{
		{ID: "w1", Kind: types.EventAskGold, AmountRange: [2]int{5, 15}, Weight: 1},
	}
	player := state.NewPlayer(types.Alignment{})

	whim, ok := RollWhim(rareDemon(), player, cat, scriptedRoller{chance: true, rangeLow: true})
	if !ok {
		t.Fatal("whim should trigger at chance 1.0")
	}
	if whim.Amount != 5 {
		t.Errorf("instantiated amount = %d, want 5", whim.Amount)
	}
}

func TestRollWhimFiltersUnsatisfiable(t *testing.T) {
	cat := testCatalog()
	cat.Whims.BaseChance = 1.0
	cat.WhimTemplates = []types.EventPayload{
		{ID: "w1", Kind: types.EventAskItem, ItemID: "gem", OnlyIfHasItem: true, Weight: 5},
		{ID: "w2", Kind: types.EventAskGold, Amount: 10, Weight: 1},
	}
	player := state.NewPlayer(types.Alignment{}) // holds no gem

	whim, ok := RollWhim(rareDemon(), player, cat, scriptedRoller{chance: true})
	if !ok {
		t.Fatal("whim should still trigger with one eligible template")
	}
	if whim.ID != "w2" {
		t.Errorf("chosen whim = %s, want w2", whim.ID)
	}
}

func TestRollWhimNoTrigger(t *testing.T) {
	cat := testCatalog()
	cat.Whims.BaseChance = 0
	player := state.NewPlayer(types.Alignment{})

	if _, ok := RollWhim(rareDemon(), player, cat, scriptedRoller{chance: false}); ok {
		t.Error("whim must not trigger when the roll fails")
	}
}

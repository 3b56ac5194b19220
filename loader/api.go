package loader

import (
	lua "github.com/yuin/gopher-lua"
)

// registerAPI registers all Lua constructors as globals.
func registerAPI(L *lua.LState, coll *collector) {
	// Game { title = "...", author = "...", seed = 42, limits = {...} }
	L.SetGlobal("Game", L.NewFunction(func(L *lua.LState) int {
		coll.config = L.CheckTable(1)
		return 0
	}))

	// Demon "id" { ... } is curried: Demon("id") returns a function that
	// takes a table.
	L.SetGlobal("Demon", L.NewFunction(func(L *lua.LState) int {
		id := L.CheckString(1)
		L.Push(L.NewFunction(func(L *lua.LState) int {
			coll.demons = append(coll.demons, rawDef{id: id, table: L.CheckTable(1)})
			return 0
		}))
		return 1
	}))

	// Question "id" { text = "...", tags = {...}, choices = {...} }
	L.SetGlobal("Question", L.NewFunction(func(L *lua.LState) int {
		id := L.CheckString(1)
		L.Push(L.NewFunction(func(L *lua.LState) int {
			coll.questions = append(coll.questions, rawDef{id: id, table: L.CheckTable(1)})
			return 0
		}))
		return 1
	}))

	// Item "id" { ... }, curried like Demon.
	L.SetGlobal("Item", L.NewFunction(func(L *lua.LState) int {
		id := L.CheckString(1)
		L.Push(L.NewFunction(func(L *lua.LState) int {
			coll.items = append(coll.items, rawDef{id: id, table: L.CheckTable(1)})
			return 0
		}))
		return 1
	}))

	// Event "id" { kind = "ask_gold", ... }: a reusable demand that
	// choices reference by id.
	L.SetGlobal("Event", L.NewFunction(func(L *lua.LState) int {
		id := L.CheckString(1)
		L.Push(L.NewFunction(func(L *lua.LState) int {
			coll.events = append(coll.events, rawDef{id: id, table: L.CheckTable(1)})
			return 0
		}))
		return 1
	}))

	// Whim { kind = "ask_gold", weight = 2, ... }: a template the demon
	// may spring between rounds.
	L.SetGlobal("Whim", L.NewFunction(func(L *lua.LState) int {
		coll.whims = append(coll.whims, L.CheckTable(1))
		return 0
	}))

	// Tuning { whim_base_chance = 0.1, bribe_base = 0.3, ... }
	L.SetGlobal("Tuning", L.NewFunction(func(L *lua.LState) int {
		coll.tuning = L.CheckTable(1)
		return 0
	}))

	// Weights { playful = { jokes = 2, duty = -2 }, ... }
	L.SetGlobal("Weights", L.NewFunction(func(L *lua.LState) int {
		coll.weights = L.CheckTable(1)
		return 0
	}))

	// Cues { playful = { DELIGHTED = {"..."}, ... }, ... }
	L.SetGlobal("Cues", L.NewFunction(func(L *lua.LState) int {
		coll.cues = L.CheckTable(1)
		return 0
	}))
}

// Package cli provides terminal I/O, output formatting, and meta-command
// dispatch for the PactCore negotiation engine.
package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/nathoo/pactcore/engine"
	"github.com/nathoo/pactcore/engine/save"
	"github.com/nathoo/pactcore/engine/state"
	"github.com/nathoo/pactcore/types"
)

// CLI handles terminal interaction with the player.
type CLI struct {
	Catalog *state.Catalog
	Player  *types.Player
	RNG     *engine.RNG
	In      io.Reader
	Out     io.Writer
	Store   *save.Store
	Logger  *zap.Logger

	// EchoInput echoes each input line after the prompt, for script
	// playback.
	EchoInput bool

	// Resumed carries an in-flight session restored from a save; Run
	// finishes it before entering the overworld.
	Resumed *engine.Session

	scanner *bufio.Scanner
}

// New creates a CLI wired to the given world.
func New(cat *state.Catalog, player *types.Player, rng *engine.RNG, store *save.Store) *CLI {
	return &CLI{
		Catalog: cat,
		Player:  player,
		RNG:     rng,
		In:      os.Stdin,
		Out:     os.Stdout,
		Store:   store,
		Logger:  zap.NewNop(),
	}
}

// Run starts the overworld loop: show the intro, then prompt for demons to
// approach until the player quits or the world empties.
func (c *CLI) Run() {
	c.scanner = bufio.NewScanner(c.In)

	if c.Catalog.Game.Intro != "" {
		c.printLine(c.Catalog.Game.Intro)
		c.printLine("")
	}
	if c.Resumed != nil {
		c.printLine(fmt.Sprintf("Resuming your negotiation with %s.", c.Resumed.Demon().Name))
		c.runEncounter(c.Resumed)
		c.Resumed = nil
	}

	c.listDemons()
	for {
		input, ok := c.readLine("> ")
		if !ok {
			return
		}
		if input == "" {
			continue
		}
		if strings.HasPrefix(input, "/") {
			if c.handleMeta(input) {
				return
			}
			continue
		}

		fields := strings.Fields(input)
		switch strings.ToLower(fields[0]) {
		case "approach", "a":
			if len(fields) < 2 {
				c.printLine("Approach whom? Try: approach imp")
				continue
			}
			c.approach(fields[1])
		case "list", "l":
			c.listDemons()
		default:
			c.printLine("Unknown command. /help lists commands.")
		}
	}
}

// approach starts a negotiation with the named demon.
func (c *CLI) approach(demonID string) {
	opts := []engine.Option{engine.WithLogger(c.Logger)}
	if c.Store != nil {
		opts = append(opts, engine.WithCheckpointer(c.Store))
	}
	s, err := engine.NewSession(c.Catalog, c.Player, demonID, c.RNG, opts...)
	if err != nil {
		c.printLine(err.Error())
		return
	}
	demon := s.Demon()
	c.printLine("")
	c.printLine(fmt.Sprintf("%s (%s, %s) regards you warily.", demon.Name, demon.Personality, demon.Rarity))
	c.runEncounter(s)
}

// runEncounter drives one negotiation to its end.
func (c *CLI) runEncounter(s *engine.Session) {
	cb := c.callbacks()
	for !s.Outcome().Terminal() {
		// The demon gets its whim in before the player can speak.
		if _, notes, ok := s.MaybeWhim(cb); ok {
			c.printLines(notes)
			c.printLine("")
		}
		if s.Outcome().Terminal() {
			break
		}
		c.printStatus(s)
		q, err := s.PickQuestion()
		if err != nil {
			c.printLine(err.Error())
			return
		}
		c.printLine("")
		c.printLine(q.Text)
		for i, choice := range q.Choices {
			c.printLine(fmt.Sprintf("  %d) %s", i+1, choice.Label))
		}
		c.printLine("  b) bribe   u <item>) use item   f) flee")

		acted := false
		for !acted {
			input, ok := c.readLine("? ")
			if !ok {
				return
			}
			fields := strings.Fields(input)
			if len(fields) == 0 {
				continue
			}
			switch strings.ToLower(fields[0]) {
			case "b", "bribe":
				notes, err := s.AttemptBribe()
				if err != nil {
					c.printLine(err.Error())
					continue
				}
				c.printLines(notes)
				acted = true
			case "u", "use":
				if len(fields) < 2 {
					c.printLine("Use what? Try: u tonic")
					continue
				}
				msg, err := s.UseItem(fields[1])
				if err != nil {
					c.printLine(err.Error())
				} else {
					c.printLine(msg)
				}
				// Items are free actions; keep prompting.
			case "f", "flee":
				notes, err := s.AttemptFlee()
				if err != nil {
					c.printLine(err.Error())
					continue
				}
				c.printLines(notes)
				acted = true
			default:
				n, err := strconv.Atoi(fields[0])
				if err != nil || n < 1 || n > len(q.Choices) {
					c.printLine(fmt.Sprintf("Pick 1-%d, b, u, or f.", len(q.Choices)))
					continue
				}
				fb, err := s.Answer(q, n-1, cb)
				if err != nil {
					c.printLine(err.Error())
					continue
				}
				c.printFeedback(s, fb)
				acted = true
			}
		}

		s.EndRound()
	}

	c.printLine("")
	switch s.Outcome() {
	case types.Recruited:
		c.printLine(fmt.Sprintf("=== %s recruited ===", s.Demon().Name))
	case types.Fled:
		c.printLine(fmt.Sprintf("=== %s is gone ===", s.Demon().Name))
	case types.Exhausted:
		c.printLine(fmt.Sprintf("=== %s refuses to hear another word ===", s.Demon().Name))
	}
	c.printLine("")
}

// callbacks wires demand decisions to the terminal.
func (c *CLI) callbacks() types.Callbacks {
	return types.Callbacks{
		AskYesNo: func(prompt string) bool {
			c.printLine(prompt)
			return c.askYN()
		},
		AskPay: func(amount, gold int) bool {
			c.printLine(fmt.Sprintf("Pay %d gold? (you have %d)", amount, gold))
			return c.askYN()
		},
		AskGiveItem: func(itemID string, amount, have int) bool {
			name := itemID
			if def, ok := c.Catalog.ItemByID(itemID); ok {
				name = def.DisplayName
			}
			c.printLine(fmt.Sprintf("Hand over %s x%d? (you have %d)", name, amount, have))
			return c.askYN()
		},
	}
}

func (c *CLI) askYN() bool {
	for {
		input, ok := c.readLine("(y/n) ")
		if !ok {
			return false
		}
		switch strings.ToLower(input) {
		case "y", "yes":
			return true
		case "n", "no":
			return false
		}
	}
}

// handleMeta dispatches meta-commands. Returns true if the game should
// exit.
func (c *CLI) handleMeta(input string) bool {
	parts := strings.Fields(input)
	switch parts[0] {
	case "/quit", "/exit":
		c.printSystem("Goodbye.")
		return true
	case "/save":
		c.cmdSave()
	case "/load":
		c.cmdLoad()
	case "/roster":
		c.cmdRoster()
	case "/dex":
		c.cmdDex()
	case "/bag", "/inventory":
		c.cmdBag()
	case "/stats":
		c.cmdStats()
	case "/help":
		c.cmdHelp()
	default:
		c.printSystem(fmt.Sprintf("Unknown command %s. /help lists commands.", parts[0]))
	}
	return false
}

func (c *CLI) cmdSave() {
	if c.Store == nil {
		c.printSystem("Saving is disabled.")
		return
	}
	d := save.CaptureWorld(c.Catalog, c.Player, c.RNG)
	if err := c.Store.Save(d); err != nil {
		c.printSystem(fmt.Sprintf("Save failed: %v", err))
		return
	}
	c.printSystem(fmt.Sprintf("Saved to %s.", c.Store.Path()))
}

func (c *CLI) cmdLoad() {
	if c.Store == nil {
		c.printSystem("Saving is disabled.")
		return
	}
	d, err := c.Store.Load()
	if err != nil {
		c.printSystem(fmt.Sprintf("Load failed: %v", err))
		return
	}
	player, err := save.Rehydrate(d, c.Catalog)
	if err != nil {
		c.printSystem(fmt.Sprintf("Load failed: %v", err))
		return
	}
	opts := []engine.Option{engine.WithLogger(c.Logger), engine.WithCheckpointer(c.Store)}
	s, err := d.Resume(c.Catalog, opts...)
	if err != nil {
		c.printSystem(fmt.Sprintf("Load failed: %v", err))
		return
	}
	c.Player = player
	c.RNG = engine.RestoreRNG(d.RNG.Seed, d.RNG.Position)
	c.printSystem("Loaded.")

	// A save taken mid-negotiation puts the player straight back into it.
	if s != nil {
		c.RNG = s.RNG()
		c.printLine(fmt.Sprintf("Resuming your negotiation with %s.", s.Demon().Name))
		c.runEncounter(s)
	}
	c.listDemons()
}

func (c *CLI) cmdRoster() {
	if len(c.Player.Roster) == 0 {
		c.printSystem("No pacts yet.")
		return
	}
	c.printSystem("Roster:")
	for _, id := range c.Player.Roster {
		if d, ok := c.Catalog.DemonByID(id); ok {
			c.printSystem(fmt.Sprintf("  %s (%s, %s)", d.Name, d.Personality, d.Rarity))
		}
	}
}

func (c *CLI) cmdDex() {
	total := len(c.Catalog.Demons)
	c.printSystem(fmt.Sprintf("Compendium: %d/%d seen", len(c.Player.DexSeen), total))
	for _, id := range c.Player.DexSeen {
		if d, ok := c.Catalog.DemonByID(id); ok {
			mark := " "
			if state.InRoster(c.Player, id) {
				mark = "*"
			}
			c.printSystem(fmt.Sprintf("  %s %s (%s)", mark, d.Name, d.Rarity))
		}
	}
}

func (c *CLI) cmdBag() {
	if len(c.Player.Inventory) == 0 {
		c.printSystem("Your bag is empty.")
		return
	}
	c.printSystem("Bag:")
	for _, def := range sortedItems(c.Catalog, c.Player) {
		c.printSystem(fmt.Sprintf("  %s x%d", def.DisplayName, c.Player.Inventory[def.ID]))
	}
}

func (c *CLI) cmdStats() {
	p := c.Player
	c.printSystem(fmt.Sprintf("Level %d (%d/%d exp)  HP %d/%d  MP %d/%d  Gold %d",
		p.Level, p.Exp, p.ExpNext, p.HP, p.MaxHP, p.MP, p.MaxMP, p.Gold))
	c.printSystem(fmt.Sprintf("Core LC %+d LD %+d   Stance LC %+d LD %+d",
		p.Core.LawChaos, p.Core.LightDark, p.Stance.LawChaos, p.Stance.LightDark))
}

func (c *CLI) cmdHelp() {
	c.printSystem("Commands:")
	c.printSystem("  approach <id>  open negotiations with a demon")
	c.printSystem("  list           list demons still at large")
	c.printSystem("In negotiation: answer by number, b to bribe, u <item> to use an item, f to flee.")
	c.printSystem("Meta: /save /load /roster /dex /bag /stats /help /quit")
}

func (c *CLI) listDemons() {
	demons := c.Catalog.AvailableDemons()
	if len(demons) == 0 {
		c.printLine("No demons remain at large. Your work is done.")
		return
	}
	c.printLine("Demons at large:")
	for _, d := range demons {
		c.printLine(fmt.Sprintf("  %-12s %s (%s, %s)", d.ID, d.Name, d.Personality, d.Rarity))
	}
}

// printStatus shows the per-round negotiation header.
func (c *CLI) printStatus(s *engine.Session) {
	c.printLine(fmt.Sprintf("[round %d] rapport %d/%d  distance %d/%d  mood %d  turns %d  HP %d/%d  gold %d",
		s.Round(), s.Rapport(), s.Demon().RapportNeeded,
		s.Distance(), s.Demon().Tolerance,
		s.CurrentTolerance(), s.TurnsLeft(),
		c.Player.HP, c.Player.MaxHP, c.Player.Gold))
}

// printFeedback renders one scored answer.
func (c *CLI) printFeedback(s *engine.Session, fb types.Feedback) {
	c.printLine(fmt.Sprintf("%s %s [%s, rapport %+d]", s.Demon().Name, fb.Cue, fb.Tone, fb.DeltaRapport))
	if len(fb.LikedTags) > 0 {
		c.printLine(fmt.Sprintf("  (it warms to talk of %s)", strings.Join(fb.LikedTags, ", ")))
	}
	if len(fb.DislikedTags) > 0 {
		c.printLine(fmt.Sprintf("  (it bristles at %s)", strings.Join(fb.DislikedTags, ", ")))
	}
	c.printLines(fb.Notes)
}

// readLine prompts and reads one trimmed line, skipping comment lines so
// script files can be annotated.
func (c *CLI) readLine(prompt string) (string, bool) {
	for {
		c.print(prompt)
		if !c.scanner.Scan() {
			return "", false
		}
		line := strings.TrimSpace(c.scanner.Text())
		if strings.HasPrefix(line, "#") {
			continue
		}
		if c.EchoInput {
			c.printLine(line)
		}
		return line, true
	}
}

func sortedItems(cat *state.Catalog, p *types.Player) []types.ItemDef {
	var out []types.ItemDef
	for _, r := range []types.Rarity{types.Common, types.Uncommon, types.Rare, types.Epic, types.Legendary} {
		for _, def := range cat.ItemsByRarity(r) {
			if p.Inventory[def.ID] > 0 {
				out = append(out, def)
			}
		}
	}
	return out
}

func (c *CLI) printLines(lines []string) {
	for _, l := range lines {
		c.printLine(l)
	}
}

func (c *CLI) printLine(text string) {
	fmt.Fprintln(c.Out, text)
}

func (c *CLI) print(text string) {
	fmt.Fprint(c.Out, text)
}

func (c *CLI) printSystem(text string) {
	fmt.Fprintf(c.Out, "* %s\n", text)
}

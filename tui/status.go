package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// statusSnapshot is the model-owned copy of everything the status bar
// shows. Turns resolve on a background goroutine, so View must never read
// the live session or player; Update refreshes this copy at points where
// that goroutine is finished or parked on a decision.
type statusSnapshot struct {
	inSession     bool
	demonName     string
	rapport       int
	rapportNeeded int
	distance      int
	tolerance     int
	mood          int
	turns         int

	title     string
	atLarge   int
	recruited int

	level int
	hp    int
	maxHP int
	mp    int
	maxMP int
	gold  int
}

// snapshotStatus refreshes the status bar copy from the live state. Only
// called from Update while no turn goroutine is mutating the session.
func (m *Model) snapshotStatus() {
	p := m.player
	m.status = statusSnapshot{
		title:     m.catalog.Game.Title,
		atLarge:   len(m.catalog.AvailableDemons()),
		recruited: len(p.Roster),
		level:     p.Level,
		hp:        p.HP,
		maxHP:     p.MaxHP,
		mp:        p.MP,
		maxMP:     p.MaxMP,
		gold:      p.Gold,
	}
	if s := m.session; s != nil {
		m.status.inSession = true
		m.status.demonName = s.Demon().Name
		m.status.rapport = s.Rapport()
		m.status.rapportNeeded = s.Demon().RapportNeeded
		m.status.distance = s.Distance()
		m.status.tolerance = s.Demon().Tolerance
		m.status.mood = s.CurrentTolerance()
		m.status.turns = s.TurnsLeft()
	}
}

// renderStatusBar produces a full-width inverted status line. Outside a
// negotiation it shows the player; inside, the session counters.
func (m Model) renderStatusBar() string {
	st := m.status

	var left string
	if st.inSession {
		left = fmt.Sprintf(" %s | rapport %d/%d | dist %d/%d | mood %d | turns %d",
			st.demonName,
			st.rapport, st.rapportNeeded,
			st.distance, st.tolerance,
			st.mood, st.turns)
	} else {
		left = fmt.Sprintf(" %s | %d at large | %d recruited",
			st.title, st.atLarge, st.recruited)
	}

	right := fmt.Sprintf("Lv%d  HP %d/%d  MP %d/%d  %dg ",
		st.level, st.hp, st.maxHP, st.mp, st.maxMP, st.gold)

	gap := m.width - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 0 {
		gap = 0
	}
	bar := left + strings.Repeat(" ", gap) + right
	return styleStatusBar.Width(m.width).Render(bar)
}

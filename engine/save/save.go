// Package save persists the world to versioned JSON. Writes are atomic:
// a temp file in the target directory is synced and renamed over the save,
// so a crash mid-write never leaves a corrupt file behind.
package save

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/nathoo/pactcore/engine"
	"github.com/nathoo/pactcore/engine/state"
	"github.com/nathoo/pactcore/types"
)

// Version is bumped on any breaking change to the save layout. Older or
// newer saves are refused, never migrated silently.
const Version = 1

// FileName is the save file within a store directory.
const FileName = "save.json"

// SessionState mirrors engine.Snapshot with a stable wire layout.
type SessionState struct {
	DemonID          string   `json:"demon_id"`
	Rapport          int      `json:"rapport"`
	TurnsLeft        int      `json:"turns_left"`
	CurrentTolerance int      `json:"current_tolerance"`
	Round            int      `json:"round"`
	UsedQuestions    []string `json:"used_questions"`
}

// RNGState pins the random stream so a restored game replays identically.
type RNGState struct {
	Seed     int64 `json:"seed"`
	Position int64 `json:"position"`
}

// Data is the complete save payload.
type Data struct {
	Version int       `json:"version"`
	SavedAt time.Time `json:"saved_at"`

	Player *types.Player `json:"player"`

	// World is demon id to availability; recruit state lives here rather
	// than in the catalog, which stays immutable on disk.
	World map[string]bool `json:"world"`

	Session *SessionState `json:"session,omitempty"`

	RNG RNGState `json:"rng"`
}

// Capture snapshots a live session, including mid-negotiation state.
func Capture(s *engine.Session) *Data {
	d := CaptureWorld(s.Catalog(), s.Player(), s.RNG())
	if !s.Outcome().Terminal() {
		snap := s.Snapshot()
		d.Session = &SessionState{
			DemonID:          snap.DemonID,
			Rapport:          snap.Rapport,
			TurnsLeft:        snap.TurnsLeft,
			CurrentTolerance: snap.CurrentTolerance,
			Round:            snap.Round,
			UsedQuestions:    snap.UsedQuestions,
		}
	}
	return d
}

// CaptureWorld snapshots the player and world between encounters.
func CaptureWorld(cat *state.Catalog, player *types.Player, rng *engine.RNG) *Data {
	world := make(map[string]bool, len(cat.Demons))
	for id, demon := range cat.Demons {
		world[id] = demon.Available
	}
	return &Data{
		Version: Version,
		SavedAt: time.Now().UTC(),
		Player:  player,
		World:   world,
		RNG:     RNGState{Seed: rng.Seed(), Position: rng.Position()},
	}
}

// Marshal encodes the save as indented JSON.
func (d *Data) Marshal() ([]byte, error) {
	return json.MarshalIndent(d, "", "  ")
}

// Unmarshal decodes and version-checks a save.
func Unmarshal(raw []byte) (*Data, error) {
	var d Data
	if err := json.Unmarshal(raw, &d); err != nil {
		return nil, fmt.Errorf("decode save: %w", err)
	}
	if d.Version != Version {
		return nil, fmt.Errorf("save version %d is not supported (want %d)", d.Version, Version)
	}
	if d.Player == nil {
		return nil, fmt.Errorf("save has no player")
	}
	return &d, nil
}

// Rehydrate applies a save to a freshly loaded catalog and returns the
// player. Any id the catalog no longer knows is a hard error; a save must
// never half-apply.
func Rehydrate(d *Data, cat *state.Catalog) (*types.Player, error) {
	for id := range d.World {
		if _, ok := cat.DemonByID(id); !ok {
			return nil, fmt.Errorf("save references unknown demon %q", id)
		}
	}
	for _, id := range d.Player.Roster {
		if _, ok := cat.DemonByID(id); !ok {
			return nil, fmt.Errorf("roster references unknown demon %q", id)
		}
	}
	for _, id := range d.Player.DexSeen {
		if _, ok := cat.DemonByID(id); !ok {
			return nil, fmt.Errorf("compendium references unknown demon %q", id)
		}
	}
	for id := range d.Player.Inventory {
		if _, ok := cat.ItemByID(id); !ok {
			return nil, fmt.Errorf("inventory references unknown item %q", id)
		}
	}
	if d.Session != nil {
		if _, ok := cat.DemonByID(d.Session.DemonID); !ok {
			return nil, fmt.Errorf("session references unknown demon %q", d.Session.DemonID)
		}
	}

	for id, available := range d.World {
		cat.Demons[id].Available = available
	}
	if d.Player.Inventory == nil {
		d.Player.Inventory = map[string]int{}
	}
	return d.Player, nil
}

// Resume rebuilds the in-flight session, or returns nil when the save was
// taken between encounters. Rehydrate must have been applied first.
func (d *Data) Resume(cat *state.Catalog, opts ...engine.Option) (*engine.Session, error) {
	if d.Session == nil {
		return nil, nil
	}
	rng := engine.RestoreRNG(d.RNG.Seed, d.RNG.Position)
	return engine.ResumeSession(cat, d.Player, engine.Snapshot{
		DemonID:          d.Session.DemonID,
		Rapport:          d.Session.Rapport,
		TurnsLeft:        d.Session.TurnsLeft,
		CurrentTolerance: d.Session.CurrentTolerance,
		Round:            d.Session.Round,
		UsedQuestions:    d.Session.UsedQuestions,
	}, rng, opts...)
}

// Store reads and writes saves under one directory.
type Store struct {
	dir string
}

// NewStore creates a store rooted at dir. The directory is created on the
// first write.
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// Path returns the full save file path.
func (st *Store) Path() string {
	return filepath.Join(st.dir, FileName)
}

// Exists reports whether a save is present.
func (st *Store) Exists() bool {
	_, err := os.Stat(st.Path())
	return err == nil
}

// Save writes the payload atomically.
func (st *Store) Save(d *Data) error {
	raw, err := d.Marshal()
	if err != nil {
		return fmt.Errorf("encode save: %w", err)
	}
	if err := os.MkdirAll(st.dir, 0o755); err != nil {
		return fmt.Errorf("create save dir: %w", err)
	}
	tmp, err := os.CreateTemp(st.dir, FileName+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp save: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return fmt.Errorf("write save: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync save: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close save: %w", err)
	}
	if err := os.Rename(tmp.Name(), st.Path()); err != nil {
		return fmt.Errorf("commit save: %w", err)
	}
	return nil
}

// Load reads and decodes the save.
func (st *Store) Load() (*Data, error) {
	raw, err := os.ReadFile(st.Path())
	if err != nil {
		return nil, fmt.Errorf("read save: %w", err)
	}
	return Unmarshal(raw)
}

// Checkpoint implements engine.Checkpointer for round-boundary autosaves.
func (st *Store) Checkpoint(s *engine.Session) error {
	return st.Save(Capture(s))
}

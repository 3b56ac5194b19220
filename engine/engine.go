// Package engine runs negotiation sessions: the per-turn loop of question,
// answer, reaction, and demand that decides whether a demon joins the
// player. The engine never reads input or prints; shells drive it through
// its methods and render the Feedback and messages it returns.
package engine

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"go.uber.org/zap"

	"github.com/nathoo/pactcore/engine/event"
	"github.com/nathoo/pactcore/engine/reward"
	"github.com/nathoo/pactcore/engine/score"
	"github.com/nathoo/pactcore/engine/state"
	"github.com/nathoo/pactcore/types"
)

// ErrSessionOver is returned by turn methods once the outcome is terminal.
var ErrSessionOver = errors.New("negotiation already concluded")

// Flee and bribe tuning. Bribe probability comes from the catalog's
// BribeConfig; these cover the demon's parting shot and price scaling.
const (
	bribeBaseCost     = 100
	fleeBaseChance    = 0.20
	fleePerTierChance = 0.05
	fleePartingDamage = 10
)

// Checkpointer persists progress between rounds. A failed checkpoint is
// logged and never interrupts play.
type Checkpointer interface {
	Checkpoint(s *Session) error
}

// Snapshot is the resumable mid-negotiation state.
type Snapshot struct {
	DemonID          string
	Rapport          int
	TurnsLeft        int
	CurrentTolerance int
	Round            int
	UsedQuestions    []string
}

// Session is one negotiation with one demon. It owns the turn counters and
// the RNG; the player and catalog outlive it.
type Session struct {
	cat    *state.Catalog
	player *types.Player
	demon  *types.Demon
	rng    *RNG
	log    *zap.Logger
	ckpt   Checkpointer

	rapport          int
	turnsLeft        int
	currentTolerance int
	round            int
	used             map[string]bool
	outcome          types.Outcome
	pressure         int
}

// Option configures a session at construction.
type Option func(*Session)

// WithLogger attaches a structured logger. The default is a no-op logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Session) { s.log = l }
}

// WithCheckpointer enables autosave at round boundaries.
func WithCheckpointer(c Checkpointer) Option {
	return func(s *Session) { s.ckpt = c }
}

// WithPressure turns on per-round difficulty pressure at the given level.
func WithPressure(level int) Option {
	return func(s *Session) { s.pressure = level }
}

// NewSession starts a negotiation with an available demon.
func NewSession(cat *state.Catalog, player *types.Player, demonID string, rng *RNG, opts ...Option) (*Session, error) {
	demon, ok := cat.DemonByID(demonID)
	if !ok {
		return nil, fmt.Errorf("no such demon %q", demonID)
	}
	if !demon.Available {
		return nil, fmt.Errorf("demon %q is not available", demonID)
	}
	s := &Session{
		cat:              cat,
		player:           player,
		demon:            demon,
		rng:              rng,
		log:              zap.NewNop(),
		turnsLeft:        demon.Patience,
		currentTolerance: demon.Tolerance,
		round:            1,
		used:             map[string]bool{},
	}
	for _, opt := range opts {
		opt(s)
	}
	state.MarkSeen(player, demon.ID)
	s.log.Debug("session started",
		zap.String("demon", demon.ID),
		zap.Int("patience", demon.Patience),
		zap.Int("tolerance", demon.Tolerance))
	return s, nil
}

// ResumeSession rebuilds a session from a snapshot, for save restoration.
func ResumeSession(cat *state.Catalog, player *types.Player, snap Snapshot, rng *RNG, opts ...Option) (*Session, error) {
	demon, ok := cat.DemonByID(snap.DemonID)
	if !ok {
		return nil, fmt.Errorf("no such demon %q", snap.DemonID)
	}
	s := &Session{
		cat:              cat,
		player:           player,
		demon:            demon,
		rng:              rng,
		log:              zap.NewNop(),
		rapport:          snap.Rapport,
		turnsLeft:        snap.TurnsLeft,
		currentTolerance: snap.CurrentTolerance,
		round:            snap.Round,
		used:             map[string]bool{},
	}
	for _, id := range snap.UsedQuestions {
		s.used[id] = true
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Snapshot captures the session for persistence.
func (s *Session) Snapshot() Snapshot {
	return Snapshot{
		DemonID:          s.demon.ID,
		Rapport:          s.rapport,
		TurnsLeft:        s.turnsLeft,
		CurrentTolerance: s.currentTolerance,
		Round:            s.round,
		UsedQuestions:    s.UsedQuestionIDs(),
	}
}

// Accessors for shells and persistence.

func (s *Session) Player() *types.Player   { return s.player }
func (s *Session) Demon() *types.Demon     { return s.demon }
func (s *Session) Catalog() *state.Catalog { return s.cat }
func (s *Session) RNG() *RNG               { return s.rng }
func (s *Session) Rapport() int            { return s.rapport }
func (s *Session) TurnsLeft() int          { return s.turnsLeft }
func (s *Session) CurrentTolerance() int   { return s.currentTolerance }
func (s *Session) Round() int              { return s.round }
func (s *Session) Outcome() types.Outcome  { return s.outcome }

// Distance is the current stance-to-demon alignment gap.
func (s *Session) Distance() int {
	return s.player.Stance.ManhattanDistance(s.demon.Alignment)
}

// UsedQuestionIDs returns the already-asked question ids, sorted.
func (s *Session) UsedQuestionIDs() []string {
	out := make([]string, 0, len(s.used))
	for id := range s.used {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// PickQuestion draws the next question, never repeating until the pool is
// exhausted, then recycling.
func (s *Session) PickQuestion() (types.Question, error) {
	if len(s.cat.Questions) == 0 {
		return types.Question{}, errors.New("catalog has no questions")
	}
	var fresh []types.Question
	for _, q := range s.cat.Questions {
		if !s.used[q.ID] {
			fresh = append(fresh, q)
		}
	}
	if len(fresh) == 0 {
		s.used = map[string]bool{}
		fresh = s.cat.Questions
	}
	q := fresh[s.rng.Intn(len(fresh))]
	s.used[q.ID] = true
	return q, nil
}

// Answer plays one turn: apply the choice's stance shift, score the demon's
// reaction, resolve any chained demand, then re-check the win and loss
// conditions. Callbacks may block on user input for demands.
func (s *Session) Answer(q types.Question, choiceIdx int, cb types.Callbacks) (types.Feedback, error) {
	if s.outcome.Terminal() {
		return types.Feedback{}, ErrSessionOver
	}
	distBefore := s.Distance()

	res, err := score.Evaluate(q, choiceIdx, s.demon, s.cat.Weights, s.cat.Cues, s.cat.Limits, s.rng)
	if err != nil {
		return types.Feedback{}, err
	}
	eff := q.Choices[choiceIdx].Effect
	s.player.Stance.LawChaos += eff.DeltaLC
	s.player.Stance.LightDark += eff.DeltaLD
	s.player.Stance.Clamp(s.cat.Limits.AxisMin, s.cat.Limits.AxisMax)

	s.rapport = s.cat.Limits.ClampRapport(s.rapport + res.Delta)
	if res.Tone.Negative() {
		s.currentTolerance--
	}

	fb := types.Feedback{
		Tone:          res.Tone,
		Cue:           res.Cue,
		DeltaRapport:  res.Delta,
		DeltaDistance: s.Distance() - distBefore,
		LikedTags:     res.LikedTags,
		DislikedTags:  res.DislikedTags,
	}

	if payload, ok := s.chainedEvent(eff); ok {
		evRes, evErr := event.Resolve(payload, s.demon, s.player, s.cat, cb, s.rng)
		if evErr != nil {
			s.log.Warn("event resolution failed", zap.String("event", payload.ID), zap.Error(evErr))
		}
		fb.Notes = append(fb.Notes, s.applyEventResult(evRes)...)
	}

	s.turnsLeft--
	fb.Notes = append(fb.Notes, s.checkUnion()...)
	s.checkTermination()
	return fb, nil
}

// chainedEvent resolves an answer's demand, by reference or inline.
func (s *Session) chainedEvent(eff types.Effect) (types.EventPayload, bool) {
	if eff.Event != nil {
		return *eff.Event, true
	}
	if eff.EventRef != "" {
		if p, ok := s.cat.Events[eff.EventRef]; ok {
			return p, true
		}
		s.log.Warn("dangling event reference", zap.String("ref", eff.EventRef))
	}
	return types.EventPayload{}, false
}

// MaybeWhim rolls the demon's per-round interruption. The returned result
// is already applied; the shell only renders it.
func (s *Session) MaybeWhim(cb types.Callbacks) (*types.EventResult, []string, bool) {
	if s.outcome.Terminal() {
		return nil, nil, false
	}
	payload, ok := event.RollWhim(s.demon, s.player, s.cat, s.rng)
	if !ok {
		return nil, nil, false
	}
	res, err := event.Resolve(*payload, s.demon, s.player, s.cat, cb, s.rng)
	if err != nil {
		s.log.Warn("whim resolution failed", zap.String("event", payload.ID), zap.Error(err))
	}
	notes := s.applyEventResult(res)
	notes = append(notes, s.checkUnion()...)
	s.checkTermination()
	return &res, notes, true
}

// applyEventResult commits a resolved event to the player and session.
func (s *Session) applyEventResult(res types.EventResult) []string {
	var notes []string
	if res.Message != "" {
		notes = append(notes, res.Message)
	}
	if !res.Applied {
		return notes
	}
	s.player.Gold += res.GrantedGold - res.ConsumedGold
	if s.player.Gold < 0 {
		s.player.Gold = 0
	}
	for id, qty := range res.ConsumedItems {
		state.RemoveItem(s.player, id, qty)
	}
	for id, qty := range res.GrantedItems {
		state.AddItem(s.player, id, qty)
	}
	s.player.HP -= res.ConsumedHP
	s.player.MP -= res.ConsumedMP
	if s.player.MP < 0 {
		s.player.MP = 0
	}
	s.rapport = s.cat.Limits.ClampRapport(s.rapport + res.DeltaRapport)
	if res.JoinNow && !s.outcome.Terminal() {
		notes = append(notes, s.sealPact()...)
	}
	if res.FledNow && !s.outcome.Terminal() {
		s.outcome = types.Fled
	}
	if s.player.HP <= 0 {
		s.player.HP = 0
		notes = append(notes, reward.ApplyDeathPenalty(s.player))
		if !s.outcome.Terminal() {
			s.outcome = types.Fled
		}
	}
	return notes
}

// AttemptBribe offers gold for goodwill. The price is always paid; success
// seals the pact on the spot, failure insults the demon and ends the
// encounter with the gold forfeited.
func (s *Session) AttemptBribe() ([]string, error) {
	if s.outcome.Terminal() {
		return nil, ErrSessionOver
	}
	cost := int(math.Round(bribeBaseCost * s.demon.Rarity.Multiplier()))
	if s.player.Gold < cost {
		return []string{fmt.Sprintf("%s scoffs. A bribe would cost %d gold, more than you carry.", s.demon.Name, cost)}, nil
	}
	p := s.cat.Bribe.BaseChance +
		s.cat.Bribe.RapportStep*float64(s.rapport) +
		s.cat.Bribe.PersonalityMod[s.demon.Personality] -
		s.cat.Bribe.TierPenalty*float64(s.demon.Rarity)
	p = clampFloat(p, 0.05, 0.95)

	s.player.Gold -= cost
	notes := []string{fmt.Sprintf("You slide %d gold across.", cost)}
	if s.rng.Chance(p) {
		s.rapport = s.cat.Limits.RapportMax
		notes = append(notes, fmt.Sprintf("%s weighs the purse, then grins.", s.demon.Name))
		notes = append(notes, s.sealPact()...)
	} else {
		s.outcome = types.Fled
		notes = append(notes, fmt.Sprintf("%s pockets the gold, spits, and vanishes.", s.demon.Name))
		s.log.Debug("bribe failed",
			zap.String("demon", s.demon.ID),
			zap.Int("cost", cost),
			zap.Float64("chance", p))
	}
	return notes, nil
}

// AttemptFlee ends the negotiation on the player's terms. Higher-tier
// demons are more likely to land a parting blow on the way out.
func (s *Session) AttemptFlee() ([]string, error) {
	if s.outcome.Terminal() {
		return nil, ErrSessionOver
	}
	s.outcome = types.Fled
	notes := []string{fmt.Sprintf("You back away from %s.", s.demon.Name)}
	p := fleeBaseChance +
		fleePerTierChance*float64(s.demon.Rarity) +
		s.cat.Whims.PersonalityMod[s.demon.Personality]
	p = clampFloat(p, 0, 1)
	if s.rng.Chance(p) {
		s.player.HP -= fleePartingDamage
		notes = append(notes, fmt.Sprintf("%s lashes out as you turn. You lose %d HP.", s.demon.Name, fleePartingDamage))
		if s.player.HP <= 0 {
			s.player.HP = 0
			notes = append(notes, reward.ApplyDeathPenalty(s.player))
		}
	}
	return notes, nil
}

// UseItem consumes an inventory item mid-negotiation. Items never cost a
// turn.
func (s *Session) UseItem(itemID string) (string, error) {
	if s.outcome.Terminal() {
		return "", ErrSessionOver
	}
	def, ok := s.cat.ItemByID(itemID)
	if !ok {
		return "", fmt.Errorf("no such item %q", itemID)
	}
	_, msg := state.UseItem(s.player, def)
	return msg, nil
}

// ApplyPressure applies the difficulty hook for level: rapport drops by a
// random 0..level/2, and with probability level/10 the stance slips one
// step away from the demon along one axis. No-op at level 0.
func (s *Session) ApplyPressure(level int) {
	if s.outcome.Terminal() || level <= 0 {
		return
	}
	drop := s.rng.IntRange(0, level/2)
	s.rapport = s.cat.Limits.ClampRapport(s.rapport - drop)
	if s.rng.Chance(float64(level) / 10.0) {
		if s.rng.Intn(2) == 0 {
			s.player.Stance.LawChaos = stepAway(s.player.Stance.LawChaos, s.demon.Alignment.LawChaos)
		} else {
			s.player.Stance.LightDark = stepAway(s.player.Stance.LightDark, s.demon.Alignment.LightDark)
		}
		s.player.Stance.Clamp(s.cat.Limits.AxisMin, s.cat.Limits.AxisMax)
	}
}

// stepAway moves one step further from the target, or stays put when
// already centered on it.
func stepAway(from, target int) int {
	switch {
	case from < target:
		return from - 1
	case from > target:
		return from + 1
	default:
		return from
	}
}

// EndRound closes a round: pressure lands if configured, the posture
// drifts back toward the core, and the checkpointer, if any, persists
// progress. Checkpoint failures are logged and swallowed.
func (s *Session) EndRound() {
	s.round++
	s.ApplyPressure(s.pressure)
	state.RelaxPosture(s.player, s.cat.Limits)
	if s.ckpt == nil {
		return
	}
	if err := s.ckpt.Checkpoint(s); err != nil {
		s.log.Warn("checkpoint failed", zap.Int("round", s.round), zap.Error(err))
	}
}

// checkUnion tests the win condition and, on success, seals the pact.
func (s *Session) checkUnion() []string {
	if s.outcome.Terminal() {
		return nil
	}
	if s.rapport >= s.demon.RapportNeeded && s.Distance() <= s.demon.Tolerance {
		return s.sealPact()
	}
	return nil
}

// sealPact recruits the demon, or rolls the duplicate payout when it is
// already on the roster.
func (s *Session) sealPact() []string {
	s.outcome = types.Recruited
	if state.InRoster(s.player, s.demon.ID) {
		dup := reward.DuplicateReward(s.demon, s.cat, s.rng)
		s.player.Gold += dup.Gold
		if dup.ItemID != "" {
			state.AddItem(s.player, dup.ItemID, dup.ItemQty)
		}
		s.log.Info("duplicate pact", zap.String("demon", s.demon.ID), zap.Int("gold", dup.Gold), zap.String("item", dup.ItemID))
		return []string{
			fmt.Sprintf("%s laughs. \"We already have a pact, fool.\"", s.demon.Name),
			dup.Message,
		}
	}
	state.AddToRoster(s.player, s.demon.ID)
	s.demon.Available = false
	notes := []string{fmt.Sprintf("%s joins you. The pact is sealed.", s.demon.Name)}
	notes = append(notes, reward.GrantExp(s.player, reward.RecruitExp(s.demon.Rarity))...)
	s.log.Info("pact sealed", zap.String("demon", s.demon.ID), zap.Int("round", s.round))
	return notes
}

// checkTermination applies the loss conditions, in severity order.
func (s *Session) checkTermination() {
	if s.outcome.Terminal() {
		return
	}
	switch {
	case s.Distance() > s.demon.Tolerance+2:
		// Drifted too far from anything the demon respects.
		s.outcome = types.Fled
	case s.currentTolerance <= 0:
		s.outcome = types.Exhausted
	case s.turnsLeft <= 0:
		s.outcome = types.Fled
	}
	if s.outcome.Terminal() {
		s.log.Debug("session ended",
			zap.String("demon", s.demon.ID),
			zap.String("outcome", s.outcome.String()),
			zap.Int("round", s.round))
	}
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Package intake captures profile signals from free-text turns.
package intake

import (
	"strings"

	"github.com/ping-media/ai-career-counselor-api/internal/domain/catalog"
	"github.com/ping-media/ai-career-counselor-api/internal/domain/model"
)

// Signal is the kind of profile field a state is waiting for.
type Signal string

const (
	SignalName   Signal = "name"
	SignalStream Signal = "stream"
	SignalRole   Signal = "selectedRole"
)

// Transition is one legal edge of the intake graph.
type Transition struct {
	From   model.State
	Signal Signal
	To     model.State
}

// Transitions lists every edge. States not listed (initial, role_selected,
// in_simulation) never move on an utterance.
var Transitions = []Transition{
	{From: model.StateAskUserInfo, Signal: SignalName, To: model.StateAskStream},
	{From: model.StateAskStream, Signal: SignalStream, To: model.StateShowCategories},
	{From: model.StateShowCategories, Signal: SignalRole, To: model.StateInSimulation},
}

// Outcome describes what a single Advance call did.
type Outcome struct {
	From   model.State
	To     model.State
	Signal Signal
	Value  string
}

// Changed reports whether a field was captured.
func (o Outcome) Changed() bool { return o.Value != "" }

type Machine struct {
	cat   *catalog.Catalog
	edges map[model.State]Transition
}

func NewMachine(cat *catalog.Catalog) *Machine {
	edges := make(map[model.State]Transition, len(Transitions))
	for _, t := range Transitions {
		edges[t.From] = t
	}
	return &Machine{cat: cat, edges: edges}
}

// Advance evaluates one utterance against the session and applies at most
// one transition. Captured fields are never overwritten.
func (m *Machine) Advance(s *model.CareerSession, utterance string) Outcome {
	Reconcile(s)
	out := Outcome{From: s.State, To: s.State}

	edge, ok := m.edges[s.State]
	if !ok {
		return out
	}
	value, ok := m.detect(edge.Signal, utterance)
	if !ok {
		return out
	}
	if !setOnce(&s.Profile, edge.Signal, value) {
		return out
	}
	s.State = edge.To
	out.To = edge.To
	out.Signal = edge.Signal
	out.Value = value
	return out
}

func (m *Machine) detect(sig Signal, utterance string) (string, bool) {
	switch sig {
	case SignalName:
		name := strings.TrimSpace(utterance)
		return name, name != ""
	case SignalStream:
		return m.cat.MatchStream(utterance)
	case SignalRole:
		return m.cat.MatchRole(utterance)
	}
	return "", false
}

// Reconcile moves the state forward to the phase implied by the captured
// fields. It never moves backwards.
func Reconcile(s *model.CareerSession) {
	implied := model.StateAskUserInfo
	switch {
	case s.Profile.SelectedRole != "":
		implied = model.StateRoleSelected
	case s.Profile.Stream != "":
		implied = model.StateShowCategories
	case s.Profile.Name != "":
		implied = model.StateAskStream
	}
	if !s.State.Valid() || s.State.Before(implied) {
		s.State = implied
	}
}

func setOnce(p *model.Profile, sig Signal, value string) bool {
	var field *string
	switch sig {
	case SignalName:
		field = &p.Name
	case SignalStream:
		field = &p.Stream
	case SignalRole:
		field = &p.SelectedRole
	default:
		return false
	}
	if *field != "" {
		return false
	}
	*field = value
	return true
}

// Apply fills unset profile fields from patch, then reconciles the state.
// It returns the fields that were actually written.
func Apply(s *model.CareerSession, patch model.Profile) []Signal {
	var applied []Signal
	if patch.Name != "" && setOnce(&s.Profile, SignalName, strings.TrimSpace(patch.Name)) {
		applied = append(applied, SignalName)
	}
	if patch.Stream != "" && setOnce(&s.Profile, SignalStream, patch.Stream) {
		applied = append(applied, SignalStream)
	}
	if patch.SelectedRole != "" && setOnce(&s.Profile, SignalRole, patch.SelectedRole) {
		applied = append(applied, SignalRole)
	}
	Reconcile(s)
	return applied
}

// OutOfOrder reports the first field patch would newly set while the field
// it depends on stays empty after the patch. Stream needs a name and a role
// needs a stream.
func OutOfOrder(current, patch model.Profile) (field, needs Signal, bad bool) {
	merged := current
	if merged.Name == "" {
		merged.Name = strings.TrimSpace(patch.Name)
	}
	if merged.Stream == "" {
		merged.Stream = patch.Stream
	}
	if current.Stream == "" && patch.Stream != "" && merged.Name == "" {
		return SignalStream, SignalName, true
	}
	if current.SelectedRole == "" && patch.SelectedRole != "" && merged.Stream == "" {
		return SignalRole, SignalStream, true
	}
	return "", "", false
}

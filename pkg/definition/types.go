package definition

import (
	"fmt"
	"strings"
)

// DefaultVariant is the variant used when an entity does not discriminate
// between workflow variants, and the fallback when a variant-specific
// definition resource is absent.
const DefaultVariant = "default"

// Meta carries transition metadata declared in the definition document.
type Meta struct {
	// Permissions lists permission codenames gating the transition.
	// Interpretation depends on the entity type; see the guard package.
	Permissions []string
	// APITrigger marks the transition as exposed through the HTTP
	// transition endpoint.
	APITrigger bool
	// Raw holds any extra metadata keys verbatim, for listeners that
	// want the untouched document values.
	Raw map[string]any
}

// Transition is a single edge of the lifecycle graph. Immutable once loaded.
type Transition struct {
	Trigger    string
	Sources    []string
	Dest       string
	Conditions []string
	Meta       Meta
}

// hasSource reports whether state is one of the transition's source states.
func (t *Transition) hasSource(state string) bool {
	for _, s := range t.Sources {
		if s == state {
			return true
		}
	}
	return false
}

// Definition is the parsed lifecycle graph for one (entity type, variant)
// pair. Definitions are immutable after loading and shared between all
// callers, so they carry no per-entity state.
type Definition struct {
	EntityType  string
	Variant     string
	States      []string
	Transitions []Transition

	states map[string]struct{}
}

// HasState reports whether s is a declared state of the graph.
func (d *Definition) HasState(s string) bool {
	_, ok := d.states[s]
	return ok
}

// Match returns the transition for trigger that is reachable from the given
// current state, or nil if none is registered. At most one transition per
// (trigger, source) pair exists; duplicates are rejected at load time.
func (d *Definition) Match(trigger, state string) *Transition {
	for i := range d.Transitions {
		t := &d.Transitions[i]
		if t.Trigger == trigger && t.hasSource(state) {
			return t
		}
	}
	return nil
}

// TriggersFrom returns the triggers that have at least one transition
// reachable from state, in declaration order without duplicates.
func (d *Definition) TriggersFrom(state string) []string {
	var out []string
	seen := make(map[string]struct{})
	for i := range d.Transitions {
		t := &d.Transitions[i]
		if !t.hasSource(state) {
			continue
		}
		if _, ok := seen[t.Trigger]; ok {
			continue
		}
		seen[t.Trigger] = struct{}{}
		out = append(out, t.Trigger)
	}
	return out
}

// Triggers returns all trigger names in declaration order without duplicates.
func (d *Definition) Triggers() []string {
	var out []string
	seen := make(map[string]struct{})
	for i := range d.Transitions {
		name := d.Transitions[i].Trigger
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	return out
}

// APITriggers maps URL-facing trigger names to trigger names for every
// transition marked as api_trigger. URL names use hyphens where trigger
// names use underscores; trailing underscores, used by convention for
// triggers that clash with reserved names, are dropped from the URL form.
func (d *Definition) APITriggers() map[string]string {
	out := make(map[string]string)
	for i := range d.Transitions {
		t := &d.Transitions[i]
		if !t.Meta.APITrigger {
			continue
		}
		api := strings.ReplaceAll(strings.TrimRight(t.Trigger, "_"), "_", "-")
		out[api] = t.Trigger
	}
	return out
}

// TransitionPermission returns the conventional permission codename for a
// trigger of this definition's entity type: transition_{entityType}_{trigger}.
func (d *Definition) TransitionPermission(trigger string) string {
	return fmt.Sprintf("transition_%s_%s", d.EntityType, trigger)
}

// validate enforces the structural invariants of the graph. Violations are
// configuration errors and must surface at load time, never at transition
// time.
func (d *Definition) validate() error {
	if len(d.States) == 0 {
		return invalidf(d, "definition declares no states")
	}
	d.states = make(map[string]struct{}, len(d.States))
	for _, s := range d.States {
		d.states[s] = struct{}{}
	}

	type edge struct{ trigger, source string }
	seen := make(map[edge]struct{})
	for i := range d.Transitions {
		t := &d.Transitions[i]
		if t.Trigger == "" {
			return invalidf(d, "transition %d has no trigger", i)
		}
		if len(t.Sources) == 0 {
			return invalidf(d, "transition %q has no source states", t.Trigger)
		}
		if !d.HasState(t.Dest) {
			return invalidf(d, "transition %q destination %q is not a declared state", t.Trigger, t.Dest)
		}
		for _, s := range t.Sources {
			if !d.HasState(s) {
				return invalidf(d, "transition %q source %q is not a declared state", t.Trigger, s)
			}
			e := edge{t.Trigger, s}
			if _, dup := seen[e]; dup {
				return invalidf(d, "duplicate transition %q from state %q", t.Trigger, s)
			}
			seen[e] = struct{}{}
		}
	}
	return nil
}

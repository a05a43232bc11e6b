// Package groups resolves the named unit groups of a feature configuration
// into unit-type predicates.
package groups

import (
	"sort"

	"github.com/OCAP2/featurex/internal/config"
)

// Group is a named, immutable set of unit types.
type Group struct {
	Name  string
	types map[string]struct{}
	// Members is sorted and deduplicated.
	Members []string
}

func newGroup(name string, members []string) Group {
	g := Group{Name: name, types: make(map[string]struct{}, len(members))}
	for _, m := range members {
		g.types[m] = struct{}{}
	}
	g.Members = make([]string, 0, len(g.types))
	for m := range g.types {
		g.Members = append(g.Members, m)
	}
	sort.Strings(g.Members)
	return g
}

// Contains reports whether unitType belongs to the group.
func (g Group) Contains(unitType string) bool {
	_, ok := g.types[unitType]
	return ok
}

// Resolver maps group names, and bare unit types used as group names, to
// groups. It is safe for concurrent use once built.
type Resolver struct {
	groups map[string]Group
	known  map[string]struct{}
}

// New builds a resolver from the configured groups and the catalog of valid
// unit-type identifiers.
func New(groupDefs map[string][]string, knownTypes []string) *Resolver {
	r := &Resolver{
		groups: make(map[string]Group, len(groupDefs)),
		known:  make(map[string]struct{}, len(knownTypes)),
	}
	for name, members := range groupDefs {
		r.groups[name] = newGroup(name, members)
		for _, m := range members {
			r.known[m] = struct{}{}
		}
	}
	for _, t := range knownTypes {
		r.known[t] = struct{}{}
	}
	return r
}

// FromConfig builds the resolver of a feature configuration.
func FromConfig(cfg *config.FeatureConfig) *Resolver {
	return New(cfg.Groups, cfg.KnownUnitTypes())
}

// Get resolves a single group name or unit type.
func (r *Resolver) Get(name string) (Group, bool) {
	if g, ok := r.groups[name]; ok {
		return g, true
	}
	if _, ok := r.known[name]; ok {
		return newGroup(name, []string{name}), true
	}
	return Group{}, false
}

// Filter resolves every name of an extractor filter, keeping its order.
func (r *Resolver) Filter(field string, names []string) ([]Group, error) {
	out := make([]Group, 0, len(names))
	for _, name := range names {
		g, ok := r.Get(name)
		if !ok {
			return nil, config.Errorf(field, "unknown group or unit type %q", name)
		}
		out = append(out, g)
	}
	return out, nil
}

// Names returns the configured group names, sorted.
func (r *Resolver) Names() []string {
	names := make([]string, 0, len(r.groups))
	for n := range r.groups {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

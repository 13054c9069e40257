package resolve

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/voxhome/assist-service/internal/registry"
)

// ErrNoMatch indicates the query matched no entities.
var ErrNoMatch = errors.New("no matching entities")

// ErrEmptyQuery indicates a query with no filters at all; such a query is
// rejected before any registry lookup.
var ErrEmptyQuery = errors.New("resolution query has no filters")

// AmbiguousError reports a name fragment that matched more than one entity
// and could not be narrowed by the other filters in the same query.
type AmbiguousError struct {
	Fragment   string
	Candidates []string
}

func (e *AmbiguousError) Error() string {
	return fmt.Sprintf("%q matches multiple devices: %s", e.Fragment, strings.Join(e.Candidates, ", "))
}

// Query describes a target in the user's words. Filters combine by
// intersection: area "kitchen" + domain "light" means lights in the kitchen.
type Query struct {
	Name    string
	Area    string
	Floor   string
	Domains []string
}

// Empty reports whether no filter is set.
func (q Query) Empty() bool {
	return strings.TrimSpace(q.Name) == "" &&
		strings.TrimSpace(q.Area) == "" &&
		strings.TrimSpace(q.Floor) == "" &&
		len(q.Domains) == 0
}

// Target is one concrete resolved entity. Derived per dispatch, never stored.
type Target struct {
	EntityID string
	Name     string
	Domain   string
	AreaID   string
	FloorID  string
}

// Directory is the read-only slice of the entity registry the resolver needs.
type Directory interface {
	ListEntities(ctx context.Context) ([]registry.Entity, error)
	ListAreas(ctx context.Context) ([]registry.Area, error)
	ListFloors(ctx context.Context) ([]registry.Floor, error)
}

// Resolver maps free-text target descriptions to concrete entities.
type Resolver struct {
	dir Directory
}

func New(dir Directory) *Resolver {
	return &Resolver{dir: dir}
}

// Resolve applies the query's filters by intersection and returns every
// matching entity. A name fragment that still matches more than one entity
// after intersection fails with AmbiguousError: name references address one
// device, while multi-entity sets come from area/floor/domain queries.
func (r *Resolver) Resolve(ctx context.Context, q Query) ([]Target, error) {
	if q.Empty() {
		return nil, ErrEmptyQuery
	}

	entities, err := r.dir.ListEntities(ctx)
	if err != nil {
		return nil, err
	}
	areas, err := r.dir.ListAreas(ctx)
	if err != nil {
		return nil, err
	}

	areaByID := make(map[string]registry.Area, len(areas))
	for _, a := range areas {
		areaByID[a.ID] = a
	}

	candidates := entities

	if frag := normalize(q.Name); frag != "" {
		candidates = matchByName(candidates, frag)
	}

	if areaFrag := normalize(q.Area); areaFrag != "" {
		areaIDs := matchAreas(areas, areaFrag)
		candidates = filterEntities(candidates, func(e registry.Entity) bool {
			return areaIDs[e.AreaID]
		})
	}

	if floorFrag := normalize(q.Floor); floorFrag != "" {
		floors, err := r.dir.ListFloors(ctx)
		if err != nil {
			return nil, err
		}
		floorIDs := matchFloors(floors, floorFrag)
		candidates = filterEntities(candidates, func(e registry.Entity) bool {
			a, ok := areaByID[e.AreaID]
			return ok && floorIDs[a.FloorID]
		})
	}

	if len(q.Domains) > 0 {
		allowed := map[string]bool{}
		for _, d := range q.Domains {
			allowed[normalize(d)] = true
		}
		candidates = filterEntities(candidates, func(e registry.Entity) bool {
			return allowed[normalize(e.Domain)]
		})
	}

	if len(candidates) == 0 {
		return nil, ErrNoMatch
	}

	if normalize(q.Name) != "" && len(candidates) > 1 {
		names := make([]string, 0, len(candidates))
		for _, e := range candidates {
			names = append(names, e.Name)
		}
		sort.Strings(names)
		return nil, &AmbiguousError{Fragment: strings.TrimSpace(q.Name), Candidates: names}
	}

	targets := make([]Target, 0, len(candidates))
	for _, e := range candidates {
		t := Target{EntityID: e.ID, Name: e.Name, Domain: e.Domain, AreaID: e.AreaID}
		if a, ok := areaByID[e.AreaID]; ok {
			t.FloorID = a.FloorID
		}
		targets = append(targets, t)
	}
	sort.Slice(targets, func(i, j int) bool { return targets[i].EntityID < targets[j].EntityID })
	return targets, nil
}

// matchByName selects entities whose display name or alias matches the
// fragment. Exact matches win outright over substring matches; within the
// exact tier an entity is counted once, display name checked before aliases.
func matchByName(entities []registry.Entity, frag string) []registry.Entity {
	var exact, partial []registry.Entity
	for _, e := range entities {
		switch {
		case normalize(e.Name) == frag:
			exact = append(exact, e)
		case aliasEquals(e.Aliases, frag):
			exact = append(exact, e)
		case strings.Contains(normalize(e.Name), frag) || aliasContains(e.Aliases, frag):
			partial = append(partial, e)
		}
	}
	if len(exact) > 0 {
		return exact
	}
	return partial
}

func matchAreas(areas []registry.Area, frag string) map[string]bool {
	out := map[string]bool{}
	// Exact area names win over substring matches, same as entity names.
	for _, a := range areas {
		if normalize(a.Name) == frag {
			out[a.ID] = true
		}
	}
	if len(out) > 0 {
		return out
	}
	for _, a := range areas {
		if strings.Contains(normalize(a.Name), frag) {
			out[a.ID] = true
		}
	}
	return out
}

func matchFloors(floors []registry.Floor, frag string) map[string]bool {
	out := map[string]bool{}
	for _, f := range floors {
		if normalize(f.Name) == frag {
			out[f.ID] = true
		}
	}
	if len(out) > 0 {
		return out
	}
	for _, f := range floors {
		if strings.Contains(normalize(f.Name), frag) {
			out[f.ID] = true
		}
	}
	return out
}

func aliasEquals(aliases []string, frag string) bool {
	for _, a := range aliases {
		if normalize(a) == frag {
			return true
		}
	}
	return false
}

func aliasContains(aliases []string, frag string) bool {
	for _, a := range aliases {
		if strings.Contains(normalize(a), frag) {
			return true
		}
	}
	return false
}

func filterEntities(in []registry.Entity, keep func(registry.Entity) bool) []registry.Entity {
	out := in[:0:0]
	for _, e := range in {
		if keep(e) {
			out = append(out, e)
		}
	}
	return out
}

func normalize(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.Join(strings.Fields(s), " ")
}

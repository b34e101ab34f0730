// Package registry holds the immutable set of roles the orchestrator can
// route to, along with the worker endpoint serving each role.
package registry

import (
	"fmt"
	"sort"
	"strings"

	"github.com/garyjia/agent-orchestrator/internal/domain/entity"
)

// Entry describes one role's worker
type Entry struct {
	RoleID   string
	Name     string
	Endpoint string
}

// Registry is built once at startup and never mutated; it is safe for
// concurrent use without locking.
type Registry struct {
	entries map[string]Entry
	order   []string
}

// New builds a registry. Role ids are normalised to lower case and must be
// unique.
func New(entries ...Entry) (*Registry, error) {
	r := &Registry{entries: make(map[string]Entry, len(entries))}
	for _, e := range entries {
		id := strings.ToLower(strings.TrimSpace(e.RoleID))
		if id == "" {
			return nil, fmt.Errorf("%w: registry entry without role id", entity.ErrInvalidInput)
		}
		if _, dup := r.entries[id]; dup {
			return nil, fmt.Errorf("%w: duplicate role %s", entity.ErrInvalidInput, id)
		}
		e.RoleID = id
		if e.Name == "" {
			e.Name = id
		}
		r.entries[id] = e
		r.order = append(r.order, id)
	}
	return r, nil
}

var roleNames = map[string]string{
	entity.RoleArchitect: "Architect",
	entity.RoleDeveloper: "Developer",
	entity.RoleDevOps:    "DevOps Engineer",
	entity.RoleQA:        "QA Engineer",
	entity.RoleManager:   "Manager",
}

// Default returns the five standard roles with the given endpoints; roles
// missing from endpoints get an empty endpoint.
func Default(endpoints map[string]string) *Registry {
	entries := make([]Entry, 0, len(entity.KnownRoleIDs))
	for _, id := range entity.KnownRoleIDs {
		entries = append(entries, Entry{RoleID: id, Name: roleNames[id], Endpoint: endpoints[id]})
	}
	r, _ := New(entries...)
	return r
}

// FromEndpoints registers exactly the roles named in endpoints. Standard
// roles come first in their usual order, then the rest sorted by id.
func FromEndpoints(endpoints map[string]string) (*Registry, error) {
	byID := make(map[string]string, len(endpoints))
	for id, url := range endpoints {
		byID[strings.ToLower(strings.TrimSpace(id))] = url
	}

	entries := make([]Entry, 0, len(byID))
	for _, id := range entity.KnownRoleIDs {
		if url, ok := byID[id]; ok {
			entries = append(entries, Entry{RoleID: id, Name: roleNames[id], Endpoint: url})
			delete(byID, id)
		}
	}
	extra := make([]string, 0, len(byID))
	for id := range byID {
		extra = append(extra, id)
	}
	sort.Strings(extra)
	for _, id := range extra {
		entries = append(entries, Entry{RoleID: id, Endpoint: byID[id]})
	}
	return New(entries...)
}

// Has reports whether roleID is registered. Matching ignores case.
func (r *Registry) Has(roleID string) bool {
	_, ok := r.entries[strings.ToLower(strings.TrimSpace(roleID))]
	return ok
}

// Lookup returns the entry for roleID
func (r *Registry) Lookup(roleID string) (Entry, error) {
	e, ok := r.entries[strings.ToLower(strings.TrimSpace(roleID))]
	if !ok {
		return Entry{}, fmt.Errorf("%w: %s", entity.ErrUnknownRole, roleID)
	}
	return e, nil
}

// Normalize returns the canonical id for roleID and whether it is known
func (r *Registry) Normalize(roleID string) (string, bool) {
	id := strings.ToLower(strings.TrimSpace(roleID))
	_, ok := r.entries[id]
	return id, ok
}

// RoleIDs returns registered ids in registration order
func (r *Registry) RoleIDs() []string {
	return append([]string(nil), r.order...)
}

// Entries returns every entry sorted by role id
func (r *Registry) Entries() []Entry {
	out := make([]Entry, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RoleID < out[j].RoleID })
	return out
}

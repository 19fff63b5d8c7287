package orchestrator

import (
	"sort"
	"strconv"
	"sync"

	"github.com/Kamar-Folarin/repo-autosync/internal/errors"
)

// registry is the in-memory index of live projects. Paths are reserved
// before a project exists so two concurrent initializations of the same
// folder cannot both proceed.
type registry struct {
	mu       sync.RWMutex
	runtimes map[int64]*projectRuntime
	// paths maps a tracked path to its project id; 0 marks a reservation
	paths map[string]int64
}

func newRegistry() *registry {
	return &registry{
		runtimes: make(map[int64]*projectRuntime),
		paths:    make(map[string]int64),
	}
}

// reserve claims path for a project being created. The returned release
// drops the claim unless add has replaced it.
func (r *registry) reserve(path string) (func(), error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.paths[path]; exists {
		return nil, errors.NewDuplicateProjectError(path)
	}
	r.paths[path] = 0
	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		if id, ok := r.paths[path]; ok && id == 0 {
			delete(r.paths, path)
		}
	}, nil
}

// lookupPath returns the project tracking path, if any
func (r *registry) lookupPath(path string) (*projectRuntime, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.paths[path]
	if !ok || id == 0 {
		return nil, false
	}
	rt, ok := r.runtimes[id]
	return rt, ok
}

func (r *registry) add(rt *projectRuntime) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runtimes[rt.id] = rt
	r.paths[rt.path] = rt.id
}

func (r *registry) get(id int64) (*projectRuntime, error) {
	r.mu.RLock()
	rt, ok := r.runtimes[id]
	r.mu.RUnlock()
	if !ok {
		return nil, errors.NewResourceNotFoundError("project", strconv.FormatInt(id, 10))
	}
	return rt, nil
}

func (r *registry) remove(id int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rt, ok := r.runtimes[id]; ok {
		delete(r.paths, rt.path)
		delete(r.runtimes, id)
	}
}

// list returns live projects ordered by id
func (r *registry) list() []*projectRuntime {
	r.mu.RLock()
	out := make([]*projectRuntime, 0, len(r.runtimes))
	for _, rt := range r.runtimes {
		out = append(out, rt)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out
}

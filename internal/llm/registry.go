package llm

import (
	"fmt"
	"sort"

	"github.com/sophiahq/sophia-gateway/internal/config"
)

// Model is one row of the model table
type Model struct {
	Name          string
	Provider      string
	Quality       float64 // 0..10
	Speed         float64 // 0..10
	CostPer1K     float64 // USD per 1K tokens
	ContextWindow int
	Capabilities  []string
}

// HasCapability reports whether the model declares the given capability
func (m *Model) HasCapability(cap string) bool {
	for _, c := range m.Capabilities {
		if c == cap {
			return true
		}
	}
	return false
}

// taskWeights are the linear scoring weights per task type. Cost enters
// negatively so cheaper models score higher; context window is normalized
// against 128K before weighting.
type taskWeights struct {
	Quality float64
	Speed   float64
	Cost    float64
	Context float64
}

var weightTable = map[string]taskWeights{
	"chat":      {Quality: 1.0, Speed: 0.6, Cost: 0.3, Context: 0.2},
	"analysis":  {Quality: 1.5, Speed: 0.2, Cost: 0.2, Context: 0.8},
	"code":      {Quality: 1.3, Speed: 0.4, Cost: 0.2, Context: 0.5},
	"summarize": {Quality: 0.7, Speed: 0.8, Cost: 0.5, Context: 1.0},
	"cheap":     {Quality: 0.3, Speed: 0.7, Cost: 2.0, Context: 0.1},
}

const contextNorm = 128000.0

// Registry is the static model table with task-weighted selection
type Registry struct {
	models      map[string]*Model
	ordered     []string
	defaultTask string
}

// NewRegistry builds a registry from the routing config
func NewRegistry(cfg *config.RoutingConfig) (*Registry, error) {
	r := &Registry{
		models:      make(map[string]*Model, len(cfg.Models)),
		defaultTask: cfg.DefaultTask,
	}
	for _, mc := range cfg.Models {
		if _, ok := r.models[mc.Name]; ok {
			return nil, fmt.Errorf("duplicate model %q", mc.Name)
		}
		m := &Model{
			Name:          mc.Name,
			Provider:      mc.Provider,
			Quality:       mc.Quality,
			Speed:         mc.Speed,
			CostPer1K:     mc.CostPer1K,
			ContextWindow: mc.ContextWindow,
			Capabilities:  mc.Capabilities,
		}
		r.models[m.Name] = m
		r.ordered = append(r.ordered, m.Name)
	}
	sort.Strings(r.ordered)
	return r, nil
}

// Get returns the model table entry for name
func (r *Registry) Get(name string) (*Model, error) {
	m, ok := r.models[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrModelUnknown, name)
	}
	return m, nil
}

// List returns all models in name order
func (r *Registry) List() []Model {
	out := make([]Model, 0, len(r.ordered))
	for _, name := range r.ordered {
		out = append(out, *r.models[name])
	}
	return out
}

// Score computes the linear task score for a model
func (r *Registry) Score(task string, m *Model) float64 {
	w, ok := weightTable[task]
	if !ok {
		w = weightTable["chat"]
	}
	score := w.Quality*m.Quality + w.Speed*m.Speed - w.Cost*m.CostPer1K
	score += w.Context * (float64(m.ContextWindow) / contextNorm)
	return score
}

// Select returns the best-scoring model for a task among providers the
// available predicate accepts. A nil predicate accepts everything. Ties
// break on model name so selection is deterministic.
func (r *Registry) Select(task string, available func(provider string) bool) (*Model, error) {
	if task == "" {
		task = r.defaultTask
	}
	var best *Model
	var bestScore float64
	for _, name := range r.ordered {
		m := r.models[name]
		if available != nil && !available(m.Provider) {
			continue
		}
		s := r.Score(task, m)
		if best == nil || s > bestScore {
			best = m
			bestScore = s
		}
	}
	if best == nil {
		return nil, ErrNoProvider
	}
	return best, nil
}

// TaskTypes lists the known scoring presets
func TaskTypes() []string {
	out := make([]string, 0, len(weightTable))
	for t := range weightTable {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

package strategy

import (
	"fmt"
	"math"
	"regexp"
	"strings"
	"sync"

	"github.com/felixgeelhaar/taskforge/pkg/domain/planning"
)

// Weights of the selection score terms.
const (
	scenarioWeight = 0.5
	successWeight  = 0.3
	riskFitWeight  = 0.2
)

var wordSplitter = regexp.MustCompile(`[^a-z0-9]+`)

// Catalog is a registry of immutable strategies. Selection is read-only.
type Catalog struct {
	mu         sync.RWMutex
	order      []string
	strategies map[string]Strategy
}

func NewCatalog() *Catalog {
	return &Catalog{strategies: make(map[string]Strategy)}
}

// NewDefaultCatalog returns a catalog seeded with Defaults.
func NewDefaultCatalog() *Catalog {
	c := NewCatalog()
	for _, s := range Defaults() {
		_ = c.Register(s)
	}
	return c
}

// Register adds a strategy. Registered strategies are never modified.
func (c *Catalog) Register(s Strategy) error {
	if err := s.Validate(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.strategies[s.ID]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateStrategy, s.ID)
	}
	c.strategies[s.ID] = s.clone()
	c.order = append(c.order, s.ID)
	return nil
}

func (c *Catalog) Get(id string) (Strategy, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.strategies[id]
	if !ok {
		return Strategy{}, false
	}
	return s.clone(), true
}

// List returns copies of all strategies in registration order.
func (c *Catalog) List() []Strategy {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Strategy, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.strategies[id].clone())
	}
	return out
}

// Ranked is a strategy with its selection score.
type Ranked struct {
	Strategy Strategy
	Score    float64
}

// Rank scores every strategy against the context, best first. Ties keep
// registration order.
func (c *Catalog) Rank(pctx planning.PlanningContext) []Ranked {
	words := contextWords(pctx)
	tolerance := pctx.RiskTolerance
	if !tolerance.IsValid() {
		tolerance = planning.RiskMedium
	}

	strategies := c.List()
	ranked := make([]Ranked, 0, len(strategies))
	for _, s := range strategies {
		ranked = append(ranked, Ranked{Strategy: s, Score: Score(s, words, tolerance)})
	}
	// insertion sort keeps equal scores in registration order
	for i := 1; i < len(ranked); i++ {
		for j := i; j > 0 && ranked[j].Score > ranked[j-1].Score; j-- {
			ranked[j], ranked[j-1] = ranked[j-1], ranked[j]
		}
	}
	return ranked
}

// Select returns the best strategy for the context, or false for an empty catalog.
func (c *Catalog) Select(pctx planning.PlanningContext) (Ranked, bool) {
	ranked := c.Rank(pctx)
	if len(ranked) == 0 {
		return Ranked{}, false
	}
	return ranked[0], true
}

// Score combines scenario coverage, historical success and risk fit into [0,1].
func Score(s Strategy, words map[string]bool, tolerance planning.RiskLevel) float64 {
	scenario := 0.0
	if len(s.Scenarios) > 0 {
		hits := 0
		for _, sc := range s.Scenarios {
			if words[strings.ToLower(sc)] {
				hits++
			}
		}
		// one matching scenario already counts as half coverage
		if hits > 0 {
			scenario = math.Min(1, 0.5+float64(hits-1)*0.25)
		}
	}

	riskFit := 1.0
	if gap := s.Risk.Order() - tolerance.Order(); gap == 1 {
		riskFit = 0.5
	} else if gap > 1 {
		riskFit = 0
	}

	score := scenarioWeight*scenario + successWeight*s.SuccessRate + riskFitWeight*riskFit
	return math.Round(score*1000) / 1000
}

func contextWords(pctx planning.PlanningContext) map[string]bool {
	text := strings.ToLower(strings.Join(append(append([]string{pctx.Objective}, pctx.Constraints...), pctx.SuccessCriteria...), " "))
	words := make(map[string]bool)
	for _, w := range wordSplitter.Split(text, -1) {
		if w != "" {
			words[w] = true
		}
	}
	return words
}

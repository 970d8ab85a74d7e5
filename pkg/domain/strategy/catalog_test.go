package strategy

import (
	"errors"
	"testing"

	"github.com/felixgeelhaar/taskforge/pkg/domain/planning"
)

func TestCatalog_Register(t *testing.T) {
	c := NewDefaultCatalog()
	if got := len(c.List()); got != 4 {
		t.Fatalf("default catalog has %d strategies", got)
	}

	tests := []struct {
		name    string
		s       Strategy
		wantErr error
	}{
		{"duplicate", Strategy{ID: "iterative", Risk: planning.RiskLow}, ErrDuplicateStrategy},
		{"missing id", Strategy{Risk: planning.RiskLow}, ErrInvalidStrategy},
		{"bad rate", Strategy{ID: "x", SuccessRate: 1.5, Risk: planning.RiskLow}, ErrInvalidStrategy},
		{"bad risk", Strategy{ID: "y", Risk: "extreme"}, ErrInvalidStrategy},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := c.Register(tt.s); !errors.Is(err, tt.wantErr) {
				t.Errorf("Register() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestCatalog_Immutable(t *testing.T) {
	c := NewDefaultCatalog()
	s, _ := c.Get("iterative")
	s.Scenarios[0] = "mutated"
	s.SuccessRate = 0

	again, _ := c.Get("iterative")
	if again.Scenarios[0] == "mutated" || again.SuccessRate == 0 {
		t.Error("catalog entry was mutated through a copy")
	}
}

func TestCatalog_Select(t *testing.T) {
	c := NewDefaultCatalog()

	tests := []struct {
		name string
		pctx planning.PlanningContext
		want string
	}{
		{
			name: "ui work prefers iterative",
			pctx: planning.PlanningContext{Objective: "Ship login page"},
			want: "iterative",
		},
		{
			name: "migration prefers sequential",
			pctx: planning.PlanningContext{Objective: "Database migration for compliance", RiskTolerance: planning.RiskLow},
			want: "sequential",
		},
		{
			name: "research prefers adaptive",
			pctx: planning.PlanningContext{Objective: "Incident research spike", RiskTolerance: planning.RiskMedium},
			want: "adaptive",
		},
		{
			name: "no scenario match falls back to success rate",
			pctx: planning.PlanningContext{Objective: "Something else"},
			want: "iterative",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := c.Select(tt.pctx)
			if !ok {
				t.Fatal("Select() found nothing")
			}
			if got.Strategy.ID != tt.want {
				t.Errorf("Select() = %s (%.3f), want %s", got.Strategy.ID, got.Score, tt.want)
			}
		})
	}
}

func TestCatalog_SelectEmpty(t *testing.T) {
	if _, ok := NewCatalog().Select(planning.PlanningContext{Objective: "x"}); ok {
		t.Error("empty catalog should select nothing")
	}
}

func TestScore_RiskFit(t *testing.T) {
	s := Strategy{ID: "p", SuccessRate: 0.5, Risk: planning.RiskHigh}
	words := map[string]bool{}

	if got := Score(s, words, planning.RiskHigh); got != 0.35 {
		t.Errorf("within tolerance = %v, want 0.35", got)
	}
	if got := Score(s, words, planning.RiskMedium); got != 0.25 {
		t.Errorf("one level over = %v, want 0.25", got)
	}
	if got := Score(s, words, planning.RiskLow); got != 0.15 {
		t.Errorf("two levels over = %v, want 0.15", got)
	}
}

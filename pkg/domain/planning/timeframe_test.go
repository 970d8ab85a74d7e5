package planning_test

import (
	"errors"
	"testing"
	"time"

	"github.com/felixgeelhaar/taskforge/pkg/domain/planning"
)

func TestParseTimeframe(t *testing.T) {
	day := 24 * time.Hour
	tests := []struct {
		input   string
		want    time.Duration
		wantErr bool
	}{
		{"36h", 36 * time.Hour, false},
		{"3d", 3 * day, false},
		{"2w", 14 * day, false},
		{"2 weeks", 14 * day, false},
		{"10 days", 10 * day, false},
		{"1.5d", 36 * time.Hour, false},
		{"  4H ", 4 * time.Hour, false},
		{"", 0, false},
		{"soon", 0, true},
		{"3 fortnights", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			tf, err := planning.ParseTimeframe(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseTimeframe() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr && !errors.Is(err, planning.ErrInvalidTimeframe) {
				t.Errorf("error should wrap ErrInvalidTimeframe: %v", err)
			}
			if tf.Duration() != tt.want {
				t.Errorf("Duration() = %v, want %v", tf.Duration(), tt.want)
			}
		})
	}
}

func TestTimeframe_DurationOr(t *testing.T) {
	var zero planning.Timeframe
	if got := zero.DurationOr(time.Hour); got != time.Hour {
		t.Errorf("DurationOr = %v", got)
	}
}

func TestBuildTimeline(t *testing.T) {
	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	pctx := planning.PlanningContext{
		Timeframe:       "4d",
		SuccessCriteria: []string{"form renders", "auth verified"},
	}

	tl := planning.BuildTimeline(pctx, start)
	if !tl.End.Equal(start.Add(96 * time.Hour)) {
		t.Errorf("End = %v", tl.End)
	}
	if len(tl.Milestones) != 2 {
		t.Fatalf("Milestones = %v", tl.Milestones)
	}
	if !tl.Milestones[0].Due.Equal(start.Add(48 * time.Hour)) {
		t.Errorf("first milestone due %v", tl.Milestones[0].Due)
	}

	tl = planning.BuildTimeline(planning.PlanningContext{}, start)
	if !tl.End.Equal(start.Add(planning.DefaultTimeframe)) || len(tl.Milestones) != 1 {
		t.Errorf("default timeline = %+v", tl)
	}
}

func TestParseUrgency(t *testing.T) {
	tests := []struct {
		in      string
		want    planning.Urgency
		wantErr bool
	}{
		{"", planning.UrgencyMedium, false},
		{"HIGH", planning.UrgencyHigh, false},
		{" critical ", planning.UrgencyCritical, false},
		{"asap", "", true},
	}
	for _, tt := range tests {
		got, err := planning.ParseUrgency(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseUrgency(%q) err = %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseUrgency(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
	if planning.UrgencyHigh.Tag() != "urgency:high" || planning.ReplannedFromTag("s1") != "replanned-from:s1" {
		t.Error("unexpected tag format")
	}
}

package planner

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/jackzampolin/quire/internal/outline"
)

func recordRanges(tasks []Task) []outline.Run {
	var out []outline.Run
	for _, t := range tasks {
		if t.Shape.Kind == RecordArray {
			out = append(out, outline.Run{From: t.Shape.Lo, To: t.Shape.Hi})
		}
	}
	return out
}

func TestPlan(t *testing.T) {
	t.Run("thirty by fifteen", func(t *testing.T) {
		tasks, err := Plan(Config{TargetCount: 30, BatchSize: 15})
		if err != nil {
			t.Fatalf("Plan() error = %v", err)
		}
		want := []outline.Run{{From: 1, To: 15}, {From: 16, To: 30}}
		if diff := cmp.Diff(want, recordRanges(tasks)); diff != "" {
			t.Errorf("record ranges mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("task order", func(t *testing.T) {
		tasks, err := Plan(Config{TargetCount: 20, BatchSize: 10, VolumeCount: 2})
		if err != nil {
			t.Fatalf("Plan() error = %v", err)
		}
		var labels []string
		for _, task := range tasks {
			labels = append(labels, task.Label)
		}
		want := []string{
			FacetBasics, FacetCast, FacetSetting, FacetHighlights, FacetActs,
			"Volume 1 Blueprint", "Chapters 1-10",
			"Volume 2 Blueprint", "Chapters 11-20",
			FacetReaderHooks, FacetSidePlots,
		}
		if diff := cmp.Diff(want, labels); diff != "" {
			t.Errorf("labels mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("prompts carry constraints and ranges", func(t *testing.T) {
		tasks, err := Plan(Config{
			TargetCount: 5,
			Constraints: Constraints{Genre: "Xianxia", Theme: "a disgraced disciple returns", Channel: "male"},
		})
		if err != nil {
			t.Fatalf("Plan() error = %v", err)
		}
		for _, task := range tasks {
			for _, want := range []string{"Genre: Xianxia", "a disgraced disciple returns", "Do not contradict", "faster pacing"} {
				if !strings.Contains(task.Prompt, want) {
					t.Errorf("task %q prompt missing %q", task.Label, want)
				}
			}
			if task.Shape.Kind == RecordArray {
				if !strings.Contains(task.Prompt, "chapters 1 to 5") || !strings.Contains(task.Prompt, `"none"`) {
					t.Errorf("record prompt missing range or payoff rule:\n%s", task.Prompt)
				}
			}
		}
	})

	t.Run("facets are labelled", func(t *testing.T) {
		tasks, _ := Plan(Config{TargetCount: 3})
		facets := 0
		for _, task := range tasks {
			if task.Facet != "" {
				facets++
				if task.Facet != task.Label || task.Shape.Kind != FreeText {
					t.Errorf("facet task = %+v", task)
				}
			}
		}
		if facets != 7 {
			t.Errorf("facet tasks = %d, want 7", facets)
		}
	})

	t.Run("volumes clamped to target", func(t *testing.T) {
		tasks, err := Plan(Config{TargetCount: 2, VolumeCount: 5})
		if err != nil {
			t.Fatalf("Plan() error = %v", err)
		}
		want := []outline.Run{{From: 1, To: 1}, {From: 2, To: 2}}
		if diff := cmp.Diff(want, recordRanges(tasks)); diff != "" {
			t.Errorf("record ranges mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("invalid target", func(t *testing.T) {
		if _, err := Plan(Config{TargetCount: 0}); !errors.Is(err, ErrInvalidTarget) {
			t.Errorf("Plan() error = %v, want ErrInvalidTarget", err)
		}
	})
}

func TestNoOverlap(t *testing.T) {
	for _, target := range []int{1, 7, 15, 16, 31, 100, 203} {
		tasks, err := Plan(Config{TargetCount: target, BatchSize: 15, VolumeCount: 3})
		if err != nil {
			t.Fatalf("Plan(%d) error = %v", target, err)
		}
		seen := make(map[int]bool)
		for _, r := range recordRanges(tasks) {
			for _, i := range r.Indices() {
				if seen[i] {
					t.Fatalf("target %d: index %d claimed twice", target, i)
				}
				seen[i] = true
			}
		}
		if len(seen) != target {
			t.Errorf("target %d: covered %d indices", target, len(seen))
		}
	}
}

func TestSplit(t *testing.T) {
	tests := []struct {
		lo, hi, size int
		want         []outline.Run
	}{
		{1, 30, 15, []outline.Run{{From: 1, To: 15}, {From: 16, To: 30}}},
		{1, 31, 15, []outline.Run{{From: 1, To: 15}, {From: 16, To: 30}, {From: 31, To: 31}}},
		{5, 7, 15, []outline.Run{{From: 5, To: 7}}},
		{3, 2, 15, nil},
	}
	for _, tt := range tests {
		if diff := cmp.Diff(tt.want, Split(tt.lo, tt.hi, tt.size)); diff != "" {
			t.Errorf("Split(%d, %d, %d) mismatch (-want +got):\n%s", tt.lo, tt.hi, tt.size, diff)
		}
	}
}

func TestVolumes(t *testing.T) {
	got := Volumes(10, 3)
	want := []outline.Run{{From: 1, To: 4}, {From: 5, To: 7}, {From: 8, To: 10}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Volumes(10, 3) mismatch (-want +got):\n%s", diff)
	}
}

func TestStage(t *testing.T) {
	tests := []struct {
		index, target int
		want          string
	}{
		{1, 100, StageSetup},
		{20, 100, StageRising},
		{45, 100, StageReversal},
		{79, 100, StagePreClimax},
		{80, 100, StageResolution},
		{100, 100, StageResolution},
	}
	for _, tt := range tests {
		if got := Stage(tt.index, tt.target); got != tt.want {
			t.Errorf("Stage(%d, %d) = %q, want %q", tt.index, tt.target, got, tt.want)
		}
	}
}

func TestGenreRule(t *testing.T) {
	tests := []struct {
		genre string
		want  string
	}{
		{"Eastern Fantasy", "Fantasy and cultivation"},
		{"hard sci-fi", "Science-fiction"},
		{"末世", "Apocalypse"},
		{"Supernatural mystery", "supernatural or horror"},
		{"urban romance", "grounded, realistic"},
		{"", "grounded, realistic"},
	}
	for _, tt := range tests {
		if got := GenreRule(tt.genre); !strings.Contains(got, tt.want) {
			t.Errorf("GenreRule(%q) = %q, want it to contain %q", tt.genre, got, tt.want)
		}
	}
}

func TestPacing(t *testing.T) {
	if Pacing("Female") == "" || Pacing("男频") == "" {
		t.Error("expected pacing line")
	}
	if Pacing("") != "" {
		t.Error("expected no pacing line")
	}
}

func TestSystemInstruction(t *testing.T) {
	if got := SystemInstruction(nil); !strings.Contains(got, `"Chapter N"`) {
		t.Errorf("SystemInstruction() = %q", got)
	}
}

func TestGenres(t *testing.T) {
	got := Genres()
	if len(got) != len(genres) || got[0] != "官场逆袭" {
		t.Fatalf("Genres() = %v", got)
	}
	seen := make(map[string]bool, len(got))
	for _, g := range got {
		if seen[g] {
			t.Errorf("duplicate genre %q", g)
		}
		seen[g] = true
	}
	for g := range themeSuggestions {
		if !seen[g] {
			t.Errorf("themes listed for unknown genre %q", g)
		}
	}

	got[0] = "changed"
	if Genres()[0] != "官场逆袭" {
		t.Error("Genres() exposes the shared slice")
	}
}

func TestThemeSuggestions(t *testing.T) {
	themes := ThemeSuggestions(" 职场商战 ")
	if len(themes) != 3 || !strings.Contains(themes[0], "资本暗战") {
		t.Errorf("ThemeSuggestions(职场商战) = %v", themes)
	}
	if got := ThemeSuggestions("仙侠"); got != nil {
		t.Errorf("ThemeSuggestions(仙侠) = %v, want nil", got)
	}
	if got := ThemeSuggestions(""); got != nil {
		t.Errorf("ThemeSuggestions(\"\") = %v, want nil", got)
	}
}

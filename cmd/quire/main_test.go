package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jackzampolin/quire/internal/jobs"
	"github.com/jackzampolin/quire/internal/outline"
)

func TestNewLogger(t *testing.T) {
	for _, level := range []string{"debug", "info", "warn", "error", "INFO"} {
		if _, err := newLogger(level); err != nil {
			t.Errorf("newLogger(%q) error = %v", level, err)
		}
	}
	if _, err := newLogger("loud"); err == nil {
		t.Error("expected error for unknown level")
	}
}

func TestSummarize(t *testing.T) {
	doc := outline.NewDocument()
	doc.Append("Chapters 1-3", outline.RenderRecords(append(
		[]outline.Record{{Index: 1, Title: "Opening", Body: "a"}},
		outline.SynthesizeRange(map[int]outline.Record{1: {Index: 1, Title: "Opening", Body: "a"}}, []int{2})...,
	)))

	s := summarize(jobs.Record{ID: "j1"}, jobs.Outcome{Status: jobs.StatusCompleted, Document: doc}, 3)
	if s.Chapters != 2 || s.Placeholders != 1 {
		t.Errorf("summary = %+v", s)
	}
	if len(s.Missing) != 1 || s.Missing[0] != 3 {
		t.Errorf("missing = %v, want [3]", s.Missing)
	}
}

func TestInitConfigAndPlan(t *testing.T) {
	dir := t.TempDir()
	homeFlag := "--home=" + dir

	var stderr bytes.Buffer
	rootCmd.SetErr(&stderr)
	rootCmd.SetArgs([]string{"init-config", homeFlag})
	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("init-config error = %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "config.yaml")); err != nil {
		t.Fatalf("config not written: %v", err)
	}

	rootCmd.SetArgs([]string{"init-config", homeFlag})
	if err := rootCmd.Execute(); err == nil {
		t.Error("expected error when config exists")
	}

	var stdout bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetArgs([]string{"config", "defaults", homeFlag, "-o", "json"})
	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("config defaults error = %v", err)
	}
	if !strings.Contains(stdout.String(), `"invoke.empty_budget"`) {
		t.Errorf("config defaults output missing keys:\n%s", stdout.String())
	}
}

func TestGenreList(t *testing.T) {
	all := genreList("")
	if len(all) < 40 {
		t.Fatalf("genreList() returned %d genres", len(all))
	}
	if all[0].Genre != "官场逆袭" || len(all[0].Themes) == 0 {
		t.Errorf("first entry = %+v", all[0])
	}

	one := genreList("仙侠")
	if len(one) != 1 || one[0].Genre != "仙侠" {
		t.Fatalf("genreList(仙侠) = %+v", one)
	}

	unknown := genreList("space opera")
	if len(unknown) != 1 || unknown[0].Themes != nil {
		t.Errorf("genreList(space opera) = %+v", unknown)
	}
}

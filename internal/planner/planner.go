// Package planner turns a target chapter count into the ordered list of
// generation tasks: prologue facets, per-volume blueprints with their chapter
// batches, then epilogue facets.
package planner

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackzampolin/quire/internal/outline"
	"github.com/jackzampolin/quire/internal/prompts"
	"github.com/jackzampolin/quire/internal/prompts/novel"
)

// ErrInvalidTarget is returned when the target count is below one.
var ErrInvalidTarget = errors.New("target count must be at least 1")

// DefaultBatchSize is the number of chapters requested per record task.
const DefaultBatchSize = 15

// Kind is the expected output shape of a task.
type Kind int

const (
	FreeText Kind = iota
	RecordArray
)

func (k Kind) String() string {
	switch k {
	case FreeText:
		return "free_text"
	case RecordArray:
		return "record_array"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Shape describes what a task must produce. Lo and Hi bound the indices of a
// RecordArray task, inclusive.
type Shape struct {
	Kind Kind `json:"kind" yaml:"kind"`
	Lo   int  `json:"lo,omitempty" yaml:"lo,omitempty"`
	Hi   int  `json:"hi,omitempty" yaml:"hi,omitempty"`
}

// Task is one planned generation step. Tasks are immutable once planned.
type Task struct {
	Label   string   `json:"label" yaml:"label"`
	Facet   string   `json:"facet,omitempty" yaml:"facet,omitempty"`     // whole-document facet this task produces, if any
	Aliases []string `json:"aliases,omitempty" yaml:"aliases,omitempty"` // other section labels that already satisfy Facet
	Prompt  string   `json:"prompt" yaml:"prompt"`
	Shape   Shape    `json:"shape" yaml:"shape"`
}

// Config configures Plan.
type Config struct {
	TargetCount int // Number of chapters (required, >= 1)
	BatchSize   int // Chapters per record task (default: 15)
	VolumeCount int // Volumes the chapters are grouped into (default: 1)
	Constraints Constraints

	Resolver *prompts.Resolver // Prompt source (default: embedded prompts only)
	Logger   *slog.Logger
}

func (cfg *Config) defaults() {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.VolumeCount <= 0 {
		cfg.VolumeCount = 1
	}
	if cfg.VolumeCount > cfg.TargetCount {
		cfg.VolumeCount = cfg.TargetCount
	}
	if cfg.Resolver == nil {
		cfg.Resolver = novel.NewResolver(nil, cfg.Logger)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
}

// Facet section labels, in prologue/epilogue order.
const (
	FacetBasics      = "Basics"
	FacetCast        = "Cast"
	FacetSetting     = "Setting"
	FacetHighlights  = "Highlights"
	FacetActs        = "Three-Act Summary"
	FacetReaderHooks = "Reader Hooks"
	FacetSidePlots   = "Side Plots"
)

type facet struct {
	label, key string
	aliases    []string
}

// The aliases are the section labels of Chinese-language outlines.
var (
	prologue = []facet{
		{FacetBasics, novel.BasicsKey, []string{"作品基础信息", "基础信息"}},
		{FacetCast, novel.CastKey, []string{"核心人设", "人物设定"}},
		{FacetSetting, novel.SettingKey, []string{"世界观与设定", "世界观设定", "世界观"}},
		{FacetHighlights, novel.HighlightsKey, []string{"爽点清单"}},
		{FacetActs, novel.ActsKey, []string{"三幕结构梗概", "三幕结构"}},
	}
	epilogue = []facet{
		{FacetReaderHooks, novel.ReaderHooksKey, []string{"读者钩子", "追读钩子", "悬念设计"}},
		{FacetSidePlots, novel.SidePlotsKey, []string{"可扩展支线与后续走向", "支线与后续走向", "后续走向"}},
	}
)

// Plan builds the ordered task list.
func Plan(cfg Config) ([]Task, error) {
	if cfg.TargetCount < 1 {
		return nil, ErrInvalidTarget
	}
	cfg.defaults()

	constraints, err := ConstraintBlock(cfg.Resolver, cfg.Constraints)
	if err != nil {
		return nil, err
	}
	p := &planBuilder{resolver: cfg.Resolver, constraints: constraints}

	for _, f := range prologue {
		p.facet(f)
	}

	volumes := Volumes(cfg.TargetCount, cfg.VolumeCount)
	for i, v := range volumes {
		stage := Stage((v.From+v.To)/2, cfg.TargetCount)
		p.task(Task{
			Label: fmt.Sprintf("Volume %d Blueprint", i+1),
			Shape: Shape{Kind: FreeText},
		}, novel.BlueprintKey, novel.BlueprintData{
			Volume:  i + 1,
			Volumes: len(volumes),
			From:    v.From,
			To:      v.To,
			Stage:   stage,
		})
		for _, batch := range Split(v.From, v.To, cfg.BatchSize) {
			p.task(Task{
				Label: RecordsLabel(batch.From, batch.To),
				Shape: Shape{Kind: RecordArray, Lo: batch.From, Hi: batch.To},
			}, novel.RecordsKey, novel.RecordsData{From: batch.From, To: batch.To, Count: batch.Len()})
		}
	}

	for _, f := range epilogue {
		p.facet(f)
	}

	if p.err != nil {
		return nil, p.err
	}
	cfg.Logger.Debug("planned tasks", "tasks", len(p.tasks), "target", cfg.TargetCount, "volumes", len(volumes), "batch_size", cfg.BatchSize)
	return p.tasks, nil
}

// FacetTasks returns only the prologue and epilogue facet tasks. The
// reconciler uses them to regenerate whole-document facets that are missing.
func FacetTasks(cfg Config) ([]Task, error) {
	if cfg.TargetCount < 1 {
		cfg.TargetCount = 1
	}
	cfg.defaults()
	constraints, err := ConstraintBlock(cfg.Resolver, cfg.Constraints)
	if err != nil {
		return nil, err
	}
	p := &planBuilder{resolver: cfg.Resolver, constraints: constraints}
	for _, f := range prologue {
		p.facet(f)
	}
	for _, f := range epilogue {
		p.facet(f)
	}
	return p.tasks, p.err
}

// planBuilder renders task prompts and keeps the first error.
type planBuilder struct {
	resolver    *prompts.Resolver
	constraints string
	tasks       []Task
	err         error
}

func (p *planBuilder) facet(f facet) {
	p.task(Task{Label: f.label, Facet: f.label, Aliases: f.aliases, Shape: Shape{Kind: FreeText}}, f.key, nil)
}

func (p *planBuilder) task(t Task, key string, data any) {
	if p.err != nil {
		return
	}
	instruction, err := p.resolver.Render(key, data)
	if err != nil {
		p.err = fmt.Errorf("failed to render %s prompt: %w", t.Label, err)
		return
	}
	t.Prompt, err = p.resolver.Render(novel.TaskKey, novel.TaskData{
		Instruction: instruction,
		Constraints: p.constraints,
	})
	if err != nil {
		p.err = fmt.Errorf("failed to render %s prompt: %w", t.Label, err)
		return
	}
	p.tasks = append(p.tasks, t)
}

// RecordsLabel names a record task covering lo..hi. The plural form is kept
// for a single index so the section heading never parses as a record header.
func RecordsLabel(lo, hi int) string {
	if lo == hi {
		return fmt.Sprintf("Chapters %d", lo)
	}
	return fmt.Sprintf("Chapters %d-%d", lo, hi)
}

// Split chunks lo..hi into consecutive ranges of at most size indices.
func Split(lo, hi, size int) []outline.Run {
	if size <= 0 {
		size = DefaultBatchSize
	}
	var out []outline.Run
	for from := lo; from <= hi; from += size {
		to := min(from+size-1, hi)
		out = append(out, outline.Run{From: from, To: to})
	}
	return out
}

// Volumes partitions 1..target into count contiguous groups as evenly as
// possible; the earliest volumes take the remainder.
func Volumes(target, count int) []outline.Run {
	if target < 1 {
		return nil
	}
	count = max(1, min(count, target))
	size, extra := target/count, target%count
	out := make([]outline.Run, 0, count)
	from := 1
	for i := range count {
		n := size
		if i < extra {
			n++
		}
		out = append(out, outline.Run{From: from, To: from + n - 1})
		from += n
	}
	return out
}

// Narrative stages, by position in the whole story.
const (
	StageSetup      = "setup"
	StageRising     = "rising action"
	StageReversal   = "reversal"
	StagePreClimax  = "pre-climax"
	StageResolution = "resolution"
)

// Stage maps an index to the narrative stage of its position in 1..target.
func Stage(index, target int) string {
	if target <= 0 {
		return StageSetup
	}
	ratio := float64(index) / float64(target)
	switch {
	case ratio < 0.2:
		return StageSetup
	case ratio < 0.4:
		return StageRising
	case ratio < 0.6:
		return StageReversal
	case ratio < 0.8:
		return StagePreClimax
	default:
		return StageResolution
	}
}

// SystemInstruction returns the system prompt shared by every outline call.
func SystemInstruction(r *prompts.Resolver) string {
	if r == nil {
		return novel.SystemPrompt()
	}
	text, err := r.Render(novel.SystemKey, nil)
	if err != nil {
		return novel.SystemPrompt()
	}
	return text
}

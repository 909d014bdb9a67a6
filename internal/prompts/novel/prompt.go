// Package novel holds the embedded prompt templates used to plan, generate and
// backfill a chapter outline.
package novel

import (
	_ "embed"
	"log/slog"

	"github.com/jackzampolin/quire/internal/prompts"
)

//go:embed system.tmpl
var systemPrompt string

//go:embed constraints.tmpl
var constraintsTmpl string

//go:embed task.tmpl
var taskTmpl string

//go:embed context.tmpl
var contextTmpl string

//go:embed basics.tmpl
var basicsTmpl string

//go:embed cast.tmpl
var castTmpl string

//go:embed setting.tmpl
var settingTmpl string

//go:embed highlights.tmpl
var highlightsTmpl string

//go:embed acts.tmpl
var actsTmpl string

//go:embed blueprint.tmpl
var blueprintTmpl string

//go:embed records.tmpl
var recordsTmpl string

//go:embed reader_hooks.tmpl
var readerHooksTmpl string

//go:embed side_plots.tmpl
var sidePlotsTmpl string

//go:embed backfill.tmpl
var backfillTmpl string

//go:embed enrich.tmpl
var enrichTmpl string

//go:embed optimize.tmpl
var optimizeTmpl string

// Prompt keys
const (
	SystemKey      = "novel.system"
	ConstraintsKey = "novel.constraints"
	TaskKey        = "novel.task"
	ContextKey     = "novel.context"
	BasicsKey      = "novel.basics"
	CastKey        = "novel.cast"
	SettingKey     = "novel.setting"
	HighlightsKey  = "novel.highlights"
	ActsKey        = "novel.acts"
	BlueprintKey   = "novel.blueprint"
	RecordsKey     = "novel.records"
	ReaderHooksKey = "novel.reader_hooks"
	SidePlotsKey   = "novel.side_plots"
	BackfillKey    = "novel.backfill"
	EnrichKey      = "novel.enrich"
	OptimizeKey    = "novel.optimize"
)

// ConstraintsData fills ConstraintsKey.
type ConstraintsData struct {
	Genre     string
	Theme     string
	Channel   string
	GenreRule string
	Pacing    string
}

// TaskData fills TaskKey: a task instruction followed by the constraint block.
type TaskData struct {
	Instruction string
	Constraints string
}

// ContextData fills ContextKey, the wrapper the runner puts around a task prompt.
type ContextData struct {
	Context   string
	Summaries string
	Prompt    string
}

// BlueprintData fills BlueprintKey.
type BlueprintData struct {
	Volume  int
	Volumes int
	From    int
	To      int
	Stage   string
}

// RecordsData fills RecordsKey.
type RecordsData struct {
	From  int
	To    int
	Count int
}

// BackfillData fills BackfillKey.
type BackfillData struct {
	Indices     string
	Before      string
	After       string
	Context     string
	Constraints string
}

// EnrichData fills EnrichKey.
type EnrichData struct {
	Indices     string
	Records     string
	Context     string
	Constraints string
}

// OptimizeData fills OptimizeKey, the request for a genre-tuned system instruction.
type OptimizeData struct {
	Genre   string
	Theme   string
	Channel string
}

// RegisterPrompts registers the outline prompts with the resolver.
func RegisterPrompts(r *prompts.Resolver) {
	for _, p := range []prompts.EmbeddedPrompt{
		{Key: SystemKey, Text: systemPrompt, Description: "System instruction shared by every outline call"},
		{Key: ConstraintsKey, Text: constraintsTmpl, Description: "Immutable genre/theme/channel constraint block"},
		{Key: TaskKey, Text: taskTmpl, Description: "Task instruction followed by the constraint block"},
		{Key: ContextKey, Text: contextTmpl, Description: "Accumulated outline and chapter summaries placed before a task"},
		{Key: BasicsKey, Text: basicsTmpl, Description: "Title and genre positioning"},
		{Key: CastKey, Text: castTmpl, Description: "Main cast"},
		{Key: SettingKey, Text: settingTmpl, Description: "World setting"},
		{Key: HighlightsKey, Text: highlightsTmpl, Description: "Story highlights"},
		{Key: ActsKey, Text: actsTmpl, Description: "Three-act summary"},
		{Key: BlueprintKey, Text: blueprintTmpl, Description: "Per-volume blueprint"},
		{Key: RecordsKey, Text: recordsTmpl, Description: "Chapter batch as JSON records"},
		{Key: ReaderHooksKey, Text: readerHooksTmpl, Description: "Reader hook design"},
		{Key: SidePlotsKey, Text: sidePlotsTmpl, Description: "Extensible side plots"},
		{Key: BackfillKey, Text: backfillTmpl, Description: "Targeted backfill of missing chapters"},
		{Key: EnrichKey, Text: enrichTmpl, Description: "Rework of chapters lacking hook or payoff"},
		{Key: OptimizeKey, Text: optimizeTmpl, Description: "Request for a genre-tuned system instruction"},
	} {
		r.Register(p)
	}
}

// NewResolver returns a resolver with the outline prompts registered. store may
// be nil, in which case only the embedded defaults are used.
func NewResolver(store *prompts.Store, logger *slog.Logger) *prompts.Resolver {
	r := prompts.NewResolver(store, logger)
	RegisterPrompts(r)
	return r
}

// SystemPrompt returns the embedded system instruction.
func SystemPrompt() string {
	return systemPrompt
}

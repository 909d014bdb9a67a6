package llmcall

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"time"
)

// QueryFilter specifies filters for listing recorded calls.
type QueryFilter struct {
	JobID   string
	Label   string
	Backend string
	Outcome string
	After   *time.Time
	Before  *time.Time
	Success *bool
	Limit   int
	Offset  int
}

func (f QueryFilter) match(c *Call) bool {
	switch {
	case f.JobID != "" && c.JobID != f.JobID:
		return false
	case f.Label != "" && c.Label != f.Label:
		return false
	case f.Backend != "" && c.Backend != f.Backend:
		return false
	case f.Outcome != "" && c.Outcome != f.Outcome:
		return false
	case f.Success != nil && c.Success != *f.Success:
		return false
	case f.After != nil && !c.Timestamp.After(*f.After):
		return false
	case f.Before != nil && !c.Timestamp.Before(*f.Before):
		return false
	}
	return true
}

// List reads JSON-lines call records from r and returns those matching filter.
// Lines that do not decode are skipped.
func List(r io.Reader, filter QueryFilter) ([]Call, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	var (
		calls   []Call
		skipped int
	)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var c Call
		if err := json.Unmarshal(line, &c); err != nil {
			continue
		}
		if !filter.match(&c) {
			continue
		}
		if skipped < filter.Offset {
			skipped++
			continue
		}
		calls = append(calls, c)
		if filter.Limit > 0 && len(calls) >= filter.Limit {
			break
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read call log: %w", err)
	}
	return calls, nil
}

// ListFile is List over a call log file. A missing file yields no calls.
func ListFile(path string, filter QueryFilter) ([]Call, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to open call log: %w", err)
	}
	defer f.Close()
	return List(f, filter)
}

// Summary aggregates recorded calls per backend.
type Summary struct {
	Backend      string         `json:"backend" yaml:"backend"`
	Calls        int            `json:"calls" yaml:"calls"`
	Outcomes     map[string]int `json:"outcomes" yaml:"outcomes"`
	InputTokens  int            `json:"input_tokens" yaml:"input_tokens"`
	OutputTokens int            `json:"output_tokens" yaml:"output_tokens"`
	CostUSD      float64        `json:"cost_usd" yaml:"cost_usd"`
}

// Summarize groups calls by backend, sorted by backend name.
func Summarize(calls []Call) []Summary {
	byBackend := make(map[string]*Summary)
	for _, c := range calls {
		s, ok := byBackend[c.Backend]
		if !ok {
			s = &Summary{Backend: c.Backend, Outcomes: make(map[string]int)}
			byBackend[c.Backend] = s
		}
		s.Calls++
		s.Outcomes[c.Outcome]++
		s.InputTokens += c.InputTokens
		s.OutputTokens += c.OutputTokens
		s.CostUSD += c.CostUSD
	}

	out := make([]Summary, 0, len(byBackend))
	for _, s := range byBackend {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Backend < out[j].Backend })
	return out
}

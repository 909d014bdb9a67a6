package outline

import "fmt"

// Run is a maximal contiguous range of missing indices, inclusive.
type Run struct {
	From int `json:"from" yaml:"from"`
	To   int `json:"to" yaml:"to"`
}

// Len returns the number of indices in the run.
func (r Run) Len() int {
	return r.To - r.From + 1
}

// Indices lists the run's indices in order.
func (r Run) Indices() []int {
	out := make([]int, 0, r.Len())
	for i := r.From; i <= r.To; i++ {
		out = append(out, i)
	}
	return out
}

// Halves splits the run at its midpoint. The lower half gets the extra index.
func (r Run) Halves() (Run, Run) {
	mid := r.From + (r.Len()+1)/2 - 1
	return Run{From: r.From, To: mid}, Run{From: mid + 1, To: r.To}
}

func (r Run) String() string {
	return fmt.Sprintf("[%d,%d]", r.From, r.To)
}

// Missing returns the indices in lo..hi that index lacks, ascending.
func Missing(index map[int]Record, lo, hi int) []int {
	var out []int
	for i := lo; i <= hi; i++ {
		if _, ok := index[i]; !ok {
			out = append(out, i)
		}
	}
	return out
}

// Runs groups ascending indices into maximal contiguous runs.
func Runs(missing []int) []Run {
	var out []Run
	for _, idx := range missing {
		if n := len(out); n > 0 && out[n-1].To+1 == idx {
			out[n-1].To = idx
			continue
		}
		out = append(out, Run{From: idx, To: idx})
	}
	return out
}

package pipeline

import (
	"github.com/backmassage/pngcrunch/internal/optimizer"
	"github.com/backmassage/pngcrunch/internal/verify"
)

// EngineTally counts verified step outcomes for one engine.
type EngineTally struct {
	Engine   string
	Outcomes map[verify.Outcome]int
	Failures int   // Invocations that exited non-zero (or were skipped).
	Saved    int64 // Bytes removed by committed steps.
}

// TallyEngines summarizes reports per engine, in the order engines first
// appear.
func TallyEngines(reports []optimizer.Report) []EngineTally {
	var out []EngineTally
	index := make(map[string]int)
	for _, rep := range reports {
		for _, s := range rep.Steps {
			i, ok := index[s.Engine]
			if !ok {
				i = len(out)
				index[s.Engine] = i
				out = append(out, EngineTally{Engine: s.Engine, Outcomes: make(map[verify.Outcome]int)})
			}
			t := &out[i]
			t.Outcomes[s.Outcome]++
			if !s.EngineOK {
				t.Failures++
			}
			if s.Outcome == verify.Improved {
				t.Saved += s.SizeBefore - s.SizeAfter
			}
		}
	}
	return out
}

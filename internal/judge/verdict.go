package judge

import (
	"strings"

	"codearena/internal/domain/model"
)

// Verdict is the single aggregated outcome of a submission across all of its
// test cases.
type Verdict struct {
	Status          model.SubmissionStatus `json:"status"`
	TestcasesPassed int                    `json:"testcases_passed"`
	TotalTestcases  int                    `json:"total_testcases"`
	Runtime         float64                `json:"runtime"` // Seconds, summed over passing test cases
	Memory          float64                `json:"memory"`  // KB, max over passing test cases
	ErrorMessage    *string                `json:"error_message,omitempty"`
}

// Aggregate reduces an ordered list of per-test-case results into one verdict.
// A single pass applies the precedence rules: the first failing result governs
// the error message and the terminal status; later failures never overwrite
// it. TestcasesPassed is counted across the whole list either way, and
// runtime/memory accumulate over passing test cases only.
//
// Both the run and submit paths call this; there is deliberately no second
// copy of these rules anywhere.
func Aggregate(results []Result) Verdict {
	v := Verdict{
		Status:         model.StatusAccepted,
		TotalTestcases: len(results),
	}

	failed := false
	for i := range results {
		r := &results[i]
		if r.EffectiveStatusID() == StatusIDAccepted {
			v.TestcasesPassed++
			v.Runtime += r.TimeSeconds()
			if mem := r.MemoryKB(); mem > v.Memory {
				v.Memory = mem
			}
			continue
		}
		if failed {
			continue
		}
		failed = true

		switch {
		case r.CompileOutput != nil && *r.CompileOutput != "":
			v.Status = model.StatusCompileError
			v.ErrorMessage = strptr("Compilation Error:\n" + *r.CompileOutput)
		case r.Stderr != nil && *r.Stderr != "":
			v.Status = model.StatusRuntimeError
			v.ErrorMessage = strptr("Runtime Error:\n" + *r.Stderr)
		case r.Description() != "":
			desc := r.Description()
			v.Status = model.SubmissionStatus(strings.ReplaceAll(strings.ToLower(desc), " ", "_"))
			v.ErrorMessage = strptr("Judge Error: " + desc)
		default:
			v.Status = model.StatusUnknownError
			v.ErrorMessage = strptr("Unknown error while judging submission")
		}
	}
	return v
}

func strptr(s string) *string {
	return &s
}

package judge

import (
	"strings"
	"testing"

	"codearena/internal/domain/model"
)

func accepted(timeStr string, memory float64) Result {
	return Result{
		StatusID: StatusIDAccepted,
		Status:   &Status{ID: StatusIDAccepted, Description: "Accepted"},
		Time:     &timeStr,
		Memory:   &memory,
	}
}

func failedWith(statusID int, description string) Result {
	return Result{
		StatusID: statusID,
		Status:   &Status{ID: statusID, Description: description},
	}
}

func TestAggregateAllPassing(t *testing.T) {
	v := Aggregate([]Result{
		accepted("0.012", 2048),
		accepted("0.034", 9216),
		accepted("0.005", 4096),
	})

	if v.Status != model.StatusAccepted {
		t.Fatalf("status = %q, want accepted", v.Status)
	}
	if v.TestcasesPassed != 3 || v.TotalTestcases != 3 {
		t.Errorf("passed/total = %d/%d, want 3/3", v.TestcasesPassed, v.TotalTestcases)
	}
	if got, want := v.Runtime, 0.012+0.034+0.005; got != want {
		t.Errorf("runtime = %v, want %v (sum over passing)", got, want)
	}
	if v.Memory != 9216 {
		t.Errorf("memory = %v, want 9216 (max over passing)", v.Memory)
	}
	if v.ErrorMessage != nil {
		t.Errorf("error message = %q, want nil", *v.ErrorMessage)
	}
}

func TestAggregateFirstFailureWins(t *testing.T) {
	wrong := failedWith(4, "Wrong Answer")
	tle := failedWith(5, "Time Limit Exceeded")

	v := Aggregate([]Result{accepted("0.010", 1024), wrong, tle, accepted("0.020", 512)})

	if v.Status != model.StatusWrongAnswer {
		t.Fatalf("status = %q, want wrong_answer from the first failure", v.Status)
	}
	if v.ErrorMessage == nil || !strings.Contains(*v.ErrorMessage, "Wrong Answer") {
		t.Errorf("error message = %v, want the first failure's description", v.ErrorMessage)
	}
	// The later passing case still counts and still contributes runtime/memory.
	if v.TestcasesPassed != 2 || v.TotalTestcases != 4 {
		t.Errorf("passed/total = %d/%d, want 2/4", v.TestcasesPassed, v.TotalTestcases)
	}
	if got, want := v.Runtime, 0.010+0.020; got != want {
		t.Errorf("runtime = %v, want %v", got, want)
	}
	if v.Memory != 1024 {
		t.Errorf("memory = %v, want 1024", v.Memory)
	}
}

func TestAggregateCompileOutputPrecedence(t *testing.T) {
	compileOut := "main.go:3: undefined: foo"
	stderr := "panic: should not be reported"
	r := failedWith(6, "Compilation Error")
	r.CompileOutput = &compileOut
	r.Stderr = &stderr

	v := Aggregate([]Result{r})

	if v.Status != model.StatusCompileError {
		t.Fatalf("status = %q, want compile_error", v.Status)
	}
	if v.ErrorMessage == nil || !strings.HasPrefix(*v.ErrorMessage, "Compilation Error:\n") {
		t.Fatalf("error message = %v, want Compilation Error prefix", v.ErrorMessage)
	}
	if !strings.Contains(*v.ErrorMessage, compileOut) {
		t.Errorf("error message %q missing compiler output", *v.ErrorMessage)
	}
}

func TestAggregateStderrPrecedence(t *testing.T) {
	stderr := "panic: runtime error: index out of range"
	r := failedWith(11, "Runtime Error (NZEC)")
	r.Stderr = &stderr

	v := Aggregate([]Result{accepted("0.001", 256), r})

	if v.Status != model.StatusRuntimeError {
		t.Fatalf("status = %q, want runtime_error", v.Status)
	}
	if v.ErrorMessage == nil || !strings.HasPrefix(*v.ErrorMessage, "Runtime Error:\n") {
		t.Fatalf("error message = %v, want Runtime Error prefix", v.ErrorMessage)
	}
}

func TestAggregateDescriptionFallback(t *testing.T) {
	v := Aggregate([]Result{failedWith(5, "Time Limit Exceeded")})

	if v.Status != model.SubmissionStatus("time_limit_exceeded") {
		t.Fatalf("status = %q, want time_limit_exceeded derived from description", v.Status)
	}
	if v.ErrorMessage == nil || *v.ErrorMessage != "Judge Error: Time Limit Exceeded" {
		t.Errorf("error message = %v, want Judge Error with original description", v.ErrorMessage)
	}
}

func TestAggregateUnknownFallback(t *testing.T) {
	v := Aggregate([]Result{{StatusID: 13}})

	if v.Status != model.StatusUnknownError {
		t.Fatalf("status = %q, want unknown_error", v.Status)
	}
	if v.ErrorMessage == nil {
		t.Fatal("error message is nil, want a generic failure message")
	}
}

func TestAggregateEmpty(t *testing.T) {
	v := Aggregate(nil)
	if v.Status != model.StatusAccepted || v.TotalTestcases != 0 {
		t.Fatalf("verdict = %+v, want vacuous accepted with zero totals", v)
	}
}

func TestAggregateMalformedTimeIgnored(t *testing.T) {
	bad := "not-a-number"
	r := accepted("0.250", 128)
	r2 := Result{StatusID: StatusIDAccepted, Time: &bad}

	v := Aggregate([]Result{r, r2})

	if v.Runtime != 0.250 {
		t.Errorf("runtime = %v, want 0.250 (malformed time counts as zero)", v.Runtime)
	}
	if v.TestcasesPassed != 2 {
		t.Errorf("passed = %d, want 2", v.TestcasesPassed)
	}
}

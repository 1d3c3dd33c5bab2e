package facade

import (
	"archive/tar"
	"bytes"
	"context"
	"testing"
	"time"

	"judgesandbox/internal/sandbox/driver"
	"judgesandbox/internal/sandbox/driver/drivertest"
	"judgesandbox/internal/sandbox/engine"
	"judgesandbox/internal/sandbox/languages"
	"judgesandbox/internal/sandbox/submission"
	"judgesandbox/internal/sandbox/validator"
	appErr "judgesandbox/pkg/errors"
)

func resultArchive(t *testing.T, status string) []byte {
	t.Helper()
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	body := []byte(`{"status":"` + status + `","match":true,"exit_code":0}`)
	_ = tw.WriteHeader(&tar.Header{Name: "result.json", Size: int64(len(body)), Mode: 0644, Typeflag: tar.TypeReg})
	_, _ = tw.Write(body)
	_ = tw.Close()
	return buf.Bytes()
}

func newTestFacade(t *testing.T, f *drivertest.Fake) *Facade {
	t.Helper()
	langs := languages.Default()
	cfg := engine.DefaultConfig()
	cfg.CreateDeadline = 2 * time.Second
	cfg.DriverOverhead = 200 * time.Millisecond

	eng := engine.New(f, langs, cfg)
	val, err := validator.New(validator.Config{Languages: langs})
	if err != nil {
		t.Fatalf("validator.New: %v", err)
	}
	return New(eng, val, langs, cfg, Config{WorkerPoolSize: 2})
}

func validSubmission() submission.Submission {
	return submission.Submission{
		Language: submission.LanguageC,
		UserCode: "int main(){return 0;}",
		Config:   map[string]interface{}{"solve_params": map[string]interface{}{}, "expected": map[string]interface{}{}, "function_type": "solve"},
	}
}

func TestSubmitRejectsInvalidSubmissionBeforeEngine(t *testing.T) {
	f := drivertest.NewFake()
	f.Faults = map[string]error{drivertest.CallCreate: driver.ErrRuntimeUnavailable}
	fac := newTestFacade(t, f)

	s := validSubmission()
	s.UserCode = ""
	_, err := fac.Submit(context.Background(), s)
	if err == nil {
		t.Fatal("Submit: want error for empty code, got nil")
	}
	if appErr.GetCode(err) != appErr.SubmissionInvalid {
		t.Errorf("GetCode(err) = %v, want SubmissionInvalid", appErr.GetCode(err))
	}
	if f.LiveCount() != 0 {
		t.Errorf("LiveCount = %d, want 0: invalid submission must never create a sandbox", f.LiveCount())
	}
}

func TestSubmitAppliesDefaultLimitsAndRuns(t *testing.T) {
	f := drivertest.NewFake()
	f.SetArchive("/app/result.json", resultArchive(t, "success"))
	fac := newTestFacade(t, f)

	v, err := fac.Submit(context.Background(), validSubmission())
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if !v.IsSuccess() {
		t.Errorf("IsSuccess() = false, want true: %+v", v)
	}
}

// TestBatchFanOutPreservesOrder (P3) checks that independent Submit
// calls driven concurrently through Batch land back in input order.
func TestBatchFanOutPreservesOrder(t *testing.T) {
	f := drivertest.NewFake()
	f.SetArchive("/app/result.json", resultArchive(t, "success"))
	fac := newTestFacade(t, f)

	subs := make([]submission.Submission, 6)
	for i := range subs {
		subs[i] = validSubmission()
	}
	batch, err := fac.Batch(context.Background(), subs)
	if err != nil {
		t.Fatalf("Batch: %v", err)
	}
	if len(batch.Verdicts) != 6 {
		t.Fatalf("len(Verdicts) = %d, want 6", len(batch.Verdicts))
	}
	for i, v := range batch.Verdicts {
		if v.ConfigIndex != i {
			t.Errorf("Verdicts[%d].ConfigIndex = %d, want %d", i, v.ConfigIndex, i)
		}
	}
}

func TestBatchRejectsWithoutRunningAnyEngineOnBadInput(t *testing.T) {
	f := drivertest.NewFake()
	f.Faults = map[string]error{drivertest.CallCreate: driver.ErrRuntimeUnavailable}
	fac := newTestFacade(t, f)

	subs := []submission.Submission{validSubmission(), validSubmission()}
	subs[1].Config = map[string]interface{}{}
	_, err := fac.Batch(context.Background(), subs)
	if err == nil {
		t.Fatal("Batch: want error when any submission is malformed")
	}
}

// TestBatchRejectsOversizedBatch checks that Batch (the non-optimized
// fan-out path) enforces the same max-batch-size invariant BatchOptimized
// already did, rejecting before any sandbox is created.
func TestBatchRejectsOversizedBatch(t *testing.T) {
	f := drivertest.NewFake()
	f.Faults = map[string]error{drivertest.CallCreate: driver.ErrRuntimeUnavailable}

	langs := languages.Default()
	cfg := engine.DefaultConfig()
	eng := engine.New(f, langs, cfg)
	val, err := validator.New(validator.Config{Languages: langs, MaxBatchSize: 2})
	if err != nil {
		t.Fatalf("validator.New: %v", err)
	}
	fac := New(eng, val, langs, cfg, Config{WorkerPoolSize: 2})

	subs := []submission.Submission{validSubmission(), validSubmission(), validSubmission()}
	_, err = fac.Batch(context.Background(), subs)
	if err == nil {
		t.Fatal("Batch: want error for batch exceeding max size")
	}
	if appErr.GetCode(err) != appErr.BatchTooLarge {
		t.Errorf("GetCode(err) = %v, want BatchTooLarge", appErr.GetCode(err))
	}
	if f.LiveCount() != 0 {
		t.Errorf("LiveCount = %d, want 0: an oversized batch must never create a sandbox", f.LiveCount())
	}
}

func TestBatchOptimizedValidatesAllConfigsUpFront(t *testing.T) {
	f := drivertest.NewFake()
	fac := newTestFacade(t, f)

	configs := []submission.BatchConfig{
		{ConfigIndex: 0, Config: map[string]interface{}{"solve_params": map[string]interface{}{}, "expected": map[string]interface{}{}, "function_type": "solve"}},
		{ConfigIndex: 1, Config: map[string]interface{}{}},
	}
	_, err := fac.BatchOptimized(context.Background(), submission.LanguageC, "int main(){}", submission.Limits{}, configs)
	if err == nil {
		t.Fatal("BatchOptimized: want error when any config is malformed")
	}
	if f.LiveCount() != 0 {
		t.Errorf("LiveCount = %d, want 0: a bad config must reject before any sandbox is created", f.LiveCount())
	}
}

package codec

import (
	"testing"
	"time"

	"judgesandbox/internal/sandbox/verdict"
)

func TestDecodeSuccess(t *testing.T) {
	raw := []byte(`{"status":"Success","match":true,"actual":{"a":6,"b":9},"expected":{"a":6,"b":9},"stdout":"ok"}`)
	v, err := Decode(raw, verdict.Timings{Total: 5 * time.Millisecond})
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if v.Status != verdict.StatusSuccess {
		t.Fatalf("Status = %v", v.Status)
	}
	if v.Match == nil || !*v.Match {
		t.Fatalf("Match = %v, want true", v.Match)
	}
	if v.Timings.Total != 5*time.Millisecond {
		t.Errorf("Timings.Total = %v, want engine-observed value", v.Timings.Total)
	}
}

func TestDecodeCompileError(t *testing.T) {
	raw := []byte(`{"status":"compile_error","compile_output":"user.c:3: error"}`)
	v, err := Decode(raw, verdict.Timings{})
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if v.Status != verdict.StatusCompileError {
		t.Fatalf("Status = %v", v.Status)
	}
	if v.CompileOutput == "" {
		t.Error("CompileOutput empty, want populated compile_output")
	}
}

func TestDecodeRuntimeErrorExitCode(t *testing.T) {
	raw := []byte(`{"status":"runtime_error","exit_code":139,"stderr":"segfault"}`)
	v, err := Decode(raw, verdict.Timings{})
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if v.ExitCode == nil || *v.ExitCode != 139 {
		t.Fatalf("ExitCode = %v, want 139", v.ExitCode)
	}
}

func TestDecodeUnknownStatusIsInternalError(t *testing.T) {
	raw := []byte(`{"status":"frobnicated"}`)
	v, err := Decode(raw, verdict.Timings{})
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if v.Status != verdict.StatusInternalError {
		t.Fatalf("Status = %v, want InternalError for unknown status", v.Status)
	}
	if v.Reason == "" {
		t.Error("Reason empty, want diagnostic message")
	}
}

func TestDecodeMalformedJSON(t *testing.T) {
	_, err := Decode([]byte(`{not json`), verdict.Timings{})
	if err == nil {
		t.Fatal("Decode: want error for malformed JSON")
	}
}

func TestDecodeCaseInsensitiveStatus(t *testing.T) {
	raw := []byte(`{"status":"RUNTIME_TIMEOUT"}`)
	v, err := Decode(raw, verdict.Timings{})
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if v.Status != verdict.StatusRuntimeTimeout {
		t.Fatalf("Status = %v, want RuntimeTimeout", v.Status)
	}
}

package validator

import (
	"strings"
	"testing"

	"judgesandbox/internal/sandbox/submission"
)

func validConfig() map[string]interface{} {
	return map[string]interface{}{
		"solve_params":  map[string]interface{}{"a": 3},
		"expected":      map[string]interface{}{"a": 6},
		"function_type": "solve",
	}
}

func TestValidateAcceptsGoodSubmission(t *testing.T) {
	v, err := New(Config{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	s := submission.Submission{Language: submission.LanguageC, UserCode: "int main(){}", Config: validConfig()}
	if err := v.Validate(s); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestValidateRejectsEmptyCode(t *testing.T) {
	v, _ := New(Config{})
	s := submission.Submission{Language: submission.LanguageC, UserCode: "  ", Config: validConfig()}
	if err := v.Validate(s); err == nil {
		t.Error("Validate: want error for empty code")
	}
}

func TestValidateRejectsOversizedCode(t *testing.T) {
	v, _ := New(Config{})
	s := submission.Submission{Language: submission.LanguageC, UserCode: strings.Repeat("x", maxUserCodeLen+1), Config: validConfig()}
	if err := v.Validate(s); err == nil {
		t.Error("Validate: want error for oversized code")
	}
}

func TestValidateRejectsUnknownLanguage(t *testing.T) {
	v, _ := New(Config{})
	s := submission.Submission{Language: "rust", UserCode: "fn main(){}", Config: validConfig()}
	if err := v.Validate(s); err == nil {
		t.Error("Validate: want error for unknown language")
	}
}

func TestValidateRejectsDenylistedCode(t *testing.T) {
	v, _ := New(Config{})
	s := submission.Submission{Language: submission.LanguageC, UserCode: `int main(){system("rm -rf /");}`, Config: validConfig()}
	if err := v.Validate(s); err == nil {
		t.Error("Validate: want error for denylisted code")
	}
}

func TestValidateRejectsMalformedConfig(t *testing.T) {
	v, _ := New(Config{})
	s := submission.Submission{Language: submission.LanguageC, UserCode: "int main(){}", Config: map[string]interface{}{}}
	if err := v.Validate(s); err == nil {
		t.Error("Validate: want error for config missing required fields")
	}
}

func TestValidateRejectsUnknownCStandard(t *testing.T) {
	v, _ := New(Config{})
	cfg := validConfig()
	cfg["c_standard"] = "c55"
	s := submission.Submission{Language: submission.LanguageC, UserCode: "int main(){}", Config: cfg}
	if err := v.Validate(s); err == nil {
		t.Error("Validate: want error for unsupported c_standard")
	}
}

func TestValidateBatchRejectsOversizedBatch(t *testing.T) {
	v, err := New(Config{MaxBatchSize: 2})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	configs := []map[string]interface{}{validConfig(), validConfig(), validConfig()}
	if err := v.ValidateBatch(submission.LanguageC, "int main(){}", configs); err == nil {
		t.Error("ValidateBatch: want error for batch exceeding max size")
	}
}

func TestValidateBatchRejectsBadConfigAtAnyIndex(t *testing.T) {
	v, _ := New(Config{})
	configs := []map[string]interface{}{validConfig(), {}}
	if err := v.ValidateBatch(submission.LanguageC, "int main(){}", configs); err == nil {
		t.Error("ValidateBatch: want error when any config is malformed")
	}
}

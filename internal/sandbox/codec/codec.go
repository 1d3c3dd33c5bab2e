// Package codec decodes the runner's result.json into a typed verdict.Verdict,
// merging in engine-observed timings. Engine-observed timings always take
// precedence: rawResult below has no field for runner-reported timing at
// all, so there is nothing to accidentally prefer.
package codec

import (
	"encoding/json"
	"fmt"
	"strings"

	"judgesandbox/internal/sandbox/verdict"
)

// rawResult mirrors the runner's result.json (§6 of the runner file
// contract). Fields are tolerant of absence; a missing numeric metric stays
// nil rather than becoming a zero value.
type rawResult struct {
	Status        string      `json:"status"`
	Match         *bool       `json:"match"`
	Actual        interface{} `json:"actual"`
	Expected      interface{} `json:"expected"`
	Stdout        string      `json:"stdout"`
	Stderr        string      `json:"stderr"`
	CompileOutput string      `json:"compile_output"`
	ExitCode      *int        `json:"exit_code"`
}

// Decode parses raw (the bytes of result.json) and combines it with
// observed engine-side timings into a self-consistent Verdict.
//
// status is matched case-insensitively. An unrecognized status decodes to
// InternalError, never silently to Success.
func Decode(raw []byte, observed verdict.Timings) (verdict.Verdict, error) {
	var r rawResult
	if err := json.Unmarshal(raw, &r); err != nil {
		return verdict.Verdict{}, fmt.Errorf("codec: decode result.json: %w", err)
	}

	switch strings.ToLower(strings.TrimSpace(r.Status)) {
	case "success", "ok", "accepted":
		match := r.Match != nil && *r.Match
		return verdict.Success(match, r.Actual, r.Expected, r.Stdout, r.Stderr, observed), nil
	case "compile_error", "compileerror":
		return verdict.CompileError(r.CompileOutput, observed), nil
	case "compile_timeout", "compiletimeout":
		return verdict.CompileTimeout(observed), nil
	case "runtime_timeout", "timeout", "runtimetimeout":
		return verdict.RuntimeTimeout(observed), nil
	case "runtime_error", "error", "runtimeerror":
		v := verdict.RuntimeError(0, r.Stderr, observed)
		// A missing exit_code stays nil on the verdict, never 0.
		v.ExitCode = r.ExitCode
		return v, nil
	default:
		return verdict.InternalError(fmt.Sprintf("unrecognized runner status %q", r.Status), observed), nil
	}
}

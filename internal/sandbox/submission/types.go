// Package submission defines the inputs accepted by the sandbox engine.
package submission

import "time"

// Language identifies a runner image family. The zero value is invalid.
type Language string

const (
	LanguageC   Language = "c"
	LanguageCPP Language = "cpp"
	// LanguagePython is the default (unversioned) Python runner image.
	LanguagePython Language = "python"
)

// IsPython reports whether l is the bare "python" tag or a versioned
// "python-<version>" tag (e.g. "python-3.12").
func (l Language) IsPython() bool {
	return l == LanguagePython || (len(l) > len("python-") && l[:len("python-")] == "python-")
}

// Compiled reports whether l requires a `make build` step before `make test`.
func (l Language) Compiled() bool {
	return l == LanguageC || l == LanguageCPP
}

// SourceFile returns the filename the runner contract expects for l.
func (l Language) SourceFile() string {
	switch {
	case l == LanguageC:
		return "user.c"
	case l == LanguageCPP:
		return "user.cpp"
	case l.IsPython():
		return "user.py"
	default:
		return ""
	}
}

// Limits bounds one submission's compile and execution phases.
type Limits struct {
	CompileTimeout    time.Duration
	ExecutionTimeout  time.Duration
}

// Submission is a single request to compile/run user code against one
// runner-contract configuration.
type Submission struct {
	Language Language
	UserCode string
	// Config is passed through to the runner untouched; the engine only
	// validates its top-level shape (see validator.Validate).
	Config map[string]interface{}
	Limits Limits
	// ShowLogs enables Debug-level echo of compile/exec stdout+stderr.
	// It never changes the Verdict produced.
	ShowLogs bool
}

// BatchConfig is one test configuration inside a BatchOptimized request,
// tagged with its position so verdicts can be re-aligned to input order.
type BatchConfig struct {
	ConfigIndex int
	Config      map[string]interface{}
}

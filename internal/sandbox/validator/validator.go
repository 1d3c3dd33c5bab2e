// Package validator enforces the pre-flight invariants on a Submission
// before the engine ever creates a Sandbox for it. A failure here is
// surfaced to the caller as appErr.InvalidRequest-tier error, never as a
// Verdict (see spec §7).
package validator

import (
	"regexp"
	"strings"

	"github.com/google/shlex"

	"judgesandbox/internal/sandbox/languages"
	"judgesandbox/internal/sandbox/submission"
	appErr "judgesandbox/pkg/errors"
)

const maxUserCodeLen = 50000

// DefaultDenylistPatterns is the explicit, auditable denylist this engine
// ships with. A non-empty Config.DenylistPatterns replaces this set rather
// than adding to it (spec §9 design note: the denylist is
// defense-in-depth, not primary isolation).
var DefaultDenylistPatterns = []string{
	`rm\s+-rf\s+/`,
	`/dev/sd[a-z]`,
	`/dev/nvme\d`,
	`fork\s*\(\s*\)\s*;?\s*fork\s*\(\s*\)`,
}

// Config controls the Validator's thresholds and tables.
type Config struct {
	MaxBatchSize     int
	DenylistPatterns []string
	Languages        languages.Table
}

// Validator enforces spec.md §4.F's checks.
type Validator struct {
	maxBatchSize int
	denylist     []*regexp.Regexp
	denyReasons  []string
	langs        languages.Table
}

// New compiles cfg into a ready-to-use Validator.
func New(cfg Config) (*Validator, error) {
	maxBatch := cfg.MaxBatchSize
	if maxBatch <= 0 {
		maxBatch = 100
	}
	patterns := cfg.DenylistPatterns
	if len(patterns) == 0 {
		patterns = DefaultDenylistPatterns
	}
	langs := cfg.Languages
	if langs == nil {
		langs = languages.Default()
	}

	v := &Validator{maxBatchSize: maxBatch, langs: langs}
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, appErr.Wrapf(err, appErr.ConfigMalformed, "compile denylist pattern %q", p)
		}
		v.denylist = append(v.denylist, re)
		v.denyReasons = append(v.denyReasons, p)
	}
	return v, nil
}

// Validate checks a single Submission. It does not inspect Limits: the
// Facade fills defaults before calling Validate, and the engine clamps them
// to its maxima (engine.Config.ClampLimits).
func (v *Validator) Validate(s submission.Submission) error {
	if _, ok := v.langs.Resolve(s.Language); !ok {
		return appErr.New(appErr.LanguageNotSupported).WithDetail("language", string(s.Language))
	}
	if err := v.validateCode(s.UserCode); err != nil {
		return err
	}
	if err := v.validateStandards(s); err != nil {
		return err
	}
	if err := validateConfig(s.Config); err != nil {
		return err
	}
	return nil
}

// ValidateBatch checks every config in a batch-optimized request plus the
// shared source. Per spec §4.E step 1, a single bad config rejects the
// whole batch before any Sandbox is created.
func (v *Validator) ValidateBatch(lang submission.Language, userCode string, configs []map[string]interface{}) error {
	if _, ok := v.langs.Resolve(lang); !ok {
		return appErr.New(appErr.LanguageNotSupported).WithDetail("language", string(lang))
	}
	if err := v.validateCode(userCode); err != nil {
		return err
	}
	if err := v.ValidateBatchSize(len(configs)); err != nil {
		return err
	}
	for i, cfg := range configs {
		if err := validateConfig(cfg); err != nil {
			return appErr.Wrapf(err, appErr.ConfigMalformed, "config at index %d", i)
		}
	}
	return nil
}

// ValidateBatchSize rejects a batch (whether a BatchOptimized config list or
// a plain Batch of independent Submissions) whose length exceeds the
// configured maximum (spec §4.F: "Reject batch size > 100").
func (v *Validator) ValidateBatchSize(n int) error {
	if n > v.maxBatchSize {
		return appErr.Newf(appErr.BatchTooLarge, "batch size %d exceeds maximum %d", n, v.maxBatchSize)
	}
	return nil
}

func (v *Validator) validateCode(code string) error {
	if strings.TrimSpace(code) == "" {
		return appErr.New(appErr.SubmissionInvalid).WithMessage("user_code must not be empty")
	}
	if len(code) > maxUserCodeLen {
		return appErr.Newf(appErr.CodeTooLarge, "user_code length %d exceeds maximum %d", len(code), maxUserCodeLen)
	}
	if reason, ok := v.denylisted(code); ok {
		return appErr.New(appErr.CodeDenylisted).WithDetail("pattern", reason)
	}
	return nil
}

func (v *Validator) denylisted(code string) (string, bool) {
	for i, re := range v.denylist {
		if re.MatchString(code) {
			return v.denyReasons[i], true
		}
	}
	return "", false
}

func (v *Validator) validateStandards(s submission.Submission) error {
	flags, _ := stringField(s.Config, "compiler_flags")
	if flags != "" {
		// Tokenize and scan each token so a quoted standard value can't
		// smuggle a second shell argument past denylist scanning.
		tokens, err := shlex.Split(flags)
		if err != nil {
			return appErr.Wrapf(err, appErr.ConfigMalformed, "tokenize compiler_flags")
		}
		for _, tok := range tokens {
			if reason, ok := v.denylisted(tok); ok {
				return appErr.New(appErr.CodeDenylisted).WithDetail("pattern", reason)
			}
		}
	}

	if std, ok := stringField(s.Config, "c_standard"); ok && s.Language == submission.LanguageC {
		if !v.langs.ValidStandard(s.Language, std) {
			return appErr.Newf(appErr.ConfigMalformed, "unsupported c_standard %q", std)
		}
	}
	if std, ok := stringField(s.Config, "cpp_standard"); ok && s.Language == submission.LanguageCPP {
		if !v.langs.ValidStandard(s.Language, std) {
			return appErr.Newf(appErr.ConfigMalformed, "unsupported cpp_standard %q", std)
		}
	}
	return nil
}

func stringField(cfg map[string]interface{}, key string) (string, bool) {
	if cfg == nil {
		return "", false
	}
	v, ok := cfg[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// validateConfig checks the minimal top-level shape the engine itself
// needs (spec §9 design note: the engine validates structure, never
// interprets fields it doesn't own).
func validateConfig(cfg map[string]interface{}) error {
	if cfg == nil {
		return appErr.New(appErr.ConfigMalformed).WithMessage("config must not be nil")
	}
	for _, required := range []string{"solve_params", "expected", "function_type"} {
		if _, ok := cfg[required]; !ok {
			return appErr.Newf(appErr.ConfigMalformed, "config missing required field %q", required)
		}
	}
	return nil
}

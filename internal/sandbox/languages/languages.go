// Package languages holds the configurable language → runner image map and
// the per-language standard allow-lists the runner images advertise.
package languages

import "judgesandbox/internal/sandbox/submission"

// Spec describes one runner image family.
type Spec struct {
	Image string
	// Standards, when non-empty, is the closed set of "c_standard"/
	// "cpp_standard" values this image accepts. Empty means the language
	// has no fixed-standard concept (e.g. Python).
	Standards []string
}

// Table maps a Language to its runner image and allowed standards. The
// identity of images is opaque to the engine; callers configure their own.
type Table map[submission.Language]Spec

// Default returns the table the default deployment ships with. Image names
// are placeholders; cmd/sandbox-engine uses this table unchanged and reads
// no environment variable that overrides it.
func Default() Table {
	return Table{
		submission.LanguageC: {
			Image:     "judgesandbox/runner-c:latest",
			Standards: []string{"c89", "c99", "c11", "c17", "c23"},
		},
		submission.LanguageCPP: {
			Image:     "judgesandbox/runner-cpp:latest",
			Standards: []string{"c++11", "c++14", "c++17", "c++20", "c++23"},
		},
		submission.LanguagePython: {
			Image: "judgesandbox/runner-python:latest",
		},
	}
}

// Resolve looks up lang, also matching "python-<version>" tags against the
// bare "python" entry (§3 of the data model: python-<version> shares the
// Python runner family).
func (t Table) Resolve(lang submission.Language) (Spec, bool) {
	if spec, ok := t[lang]; ok {
		return spec, true
	}
	if lang.IsPython() {
		if spec, ok := t[submission.LanguagePython]; ok {
			return spec, true
		}
	}
	return Spec{}, false
}

// ValidStandard reports whether standard is allowed for lang, per the
// image's advertised set. A language with no Standards table (Python)
// accepts any (empty) standard and rejects a nonempty one.
func (t Table) ValidStandard(lang submission.Language, standard string) bool {
	spec, ok := t.Resolve(lang)
	if !ok {
		return false
	}
	if len(spec.Standards) == 0 {
		return standard == ""
	}
	for _, s := range spec.Standards {
		if s == standard {
			return true
		}
	}
	return false
}

package util

import (
	"regexp"
	"strconv"
	"strings"
)

// Stage output references look like {{stageName.N}} where N indexes the
// referenced stage's task results.
var placeholderRe = regexp.MustCompile(`\{\{\s*([\w-]+)\.(\d+)\s*\}\}`)

// RefOutcome classifies the resolution of one stage output reference.
type RefOutcome int

const (
	// RefResolved means the reference points at a successful upstream result.
	RefResolved RefOutcome = iota
	// RefFailed means the reference points at a known but unsuccessful result.
	RefFailed
	// RefUnknown means the reference matches no known stage or index.
	RefUnknown
)

// Placeholder is one stage output reference found in a text.
type Placeholder struct {
	Raw   string // the full {{...}} token as written
	Stage string
	Index int
}

// Resolver returns the replacement text for a stage output reference along
// with the outcome of the lookup.
type Resolver func(stage string, index int) (string, RefOutcome)

// FindPlaceholders returns the stage output references in text, in order of
// appearance.
func FindPlaceholders(text string) []Placeholder {
	if !strings.Contains(text, "{{") { // fast path: no template markers
		return nil
	}

	matches := placeholderRe.FindAllStringSubmatch(text, -1)
	refs := make([]Placeholder, 0, len(matches))
	for _, m := range matches {
		idx, err := strconv.Atoi(m[2])
		if err != nil {
			continue
		}
		refs = append(refs, Placeholder{Raw: m[0], Stage: m[1], Index: idx})
	}
	return refs
}

// ResolvePlaceholders substitutes each stage output reference in text using
// resolve. References resolving to a failed result leave the text untouched
// and report failed=true; unknown references are left literal and collected
// so the caller can surface them.
func ResolvePlaceholders(text string, resolve Resolver) (out string, failed bool, unknown []Placeholder) {
	if !strings.Contains(text, "{{") {
		return text, false, nil
	}

	out = placeholderRe.ReplaceAllStringFunc(text, func(raw string) string {
		m := placeholderRe.FindStringSubmatch(raw)
		idx, err := strconv.Atoi(m[2])
		if err != nil {
			return raw
		}

		replacement, outcome := resolve(m[1], idx)
		switch outcome {
		case RefResolved:
			return replacement
		case RefFailed:
			failed = true
			return raw
		default:
			unknown = append(unknown, Placeholder{Raw: raw, Stage: m[1], Index: idx})
			return raw
		}
	})

	return out, failed, unknown
}

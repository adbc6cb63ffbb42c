package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFindPlaceholders(t *testing.T) {
	refs := FindPlaceholders("use {{research.0}} and {{ research.12 }} here")

	assert.Equal(t, []Placeholder{
		{Raw: "{{research.0}}", Stage: "research", Index: 0},
		{Raw: "{{ research.12 }}", Stage: "research", Index: 12},
	}, refs)
}

func TestFindPlaceholders_NoMarkers(t *testing.T) {
	assert.Nil(t, FindPlaceholders("plain text"))
	assert.Empty(t, FindPlaceholders("braces {{but no ref}}"))
}

func TestResolvePlaceholders(t *testing.T) {
	resolve := func(stage string, index int) (string, RefOutcome) {
		switch {
		case stage == "research" && index == 0:
			return "fact A", RefResolved
		case stage == "research" && index == 1:
			return "", RefFailed
		default:
			return "", RefUnknown
		}
	}

	out, failed, unknown := ResolvePlaceholders("a {{research.0}} b", resolve)
	assert.Equal(t, "a fact A b", out)
	assert.False(t, failed)
	assert.Empty(t, unknown)

	out, failed, _ = ResolvePlaceholders("a {{research.1}} b", resolve)
	assert.Equal(t, "a {{research.1}} b", out)
	assert.True(t, failed)

	out, failed, unknown = ResolvePlaceholders("a {{ghost.3}} b", resolve)
	assert.Equal(t, "a {{ghost.3}} b", out)
	assert.False(t, failed)
	assert.Equal(t, []Placeholder{{Raw: "{{ghost.3}}", Stage: "ghost", Index: 3}}, unknown)
}

func TestResolvePlaceholders_NoMarkersFastPath(t *testing.T) {
	out, failed, unknown := ResolvePlaceholders("plain", func(string, int) (string, RefOutcome) {
		t.Fatal("resolver must not be called")
		return "", RefUnknown
	})
	assert.Equal(t, "plain", out)
	assert.False(t, failed)
	assert.Nil(t, unknown)
}

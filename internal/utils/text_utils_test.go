package utils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestTruncateTextWithinLimit(t *testing.T) {
	tp := NewTextProcessor(zap.NewNop())

	assert.Equal(t, "short", tp.TruncateText("short", 100))
	assert.Equal(t, "unlimited", tp.TruncateText("unlimited", 0))
}

func TestTruncateTextCutsOnUTF8Boundary(t *testing.T) {
	tp := NewTextProcessor(zap.NewNop())

	// The cut point lands inside the multi-byte rune; the result must still
	// be valid UTF-8.
	text := "héllo world"
	out := tp.TruncateText(text, 2)
	assert.True(t, strings.HasSuffix(out, "[... Content truncated due to size limits ...]"))
	assert.True(t, strings.HasPrefix(out, "h"))
}

func TestSanitizeUTF8(t *testing.T) {
	tp := NewTextProcessor(zap.NewNop())

	assert.Equal(t, "clean", tp.SanitizeUTF8("clean"))
	assert.Equal(t, "ab", tp.SanitizeUTF8("a\xffb"))
}

func TestPreview(t *testing.T) {
	tp := NewTextProcessor(zap.NewNop())

	assert.Equal(t, "abc", tp.Preview("abc", 10))
	assert.Equal(t, "abcde", tp.Preview("abcdefgh", 5))
	assert.Equal(t, "full text", tp.Preview("full text", 0))
}

package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeWhitespace(t *testing.T) {
	assert.Equal(t, "a b c", NormalizeWhitespace("  a\n\nb\t c  "))
	assert.Equal(t, "", NormalizeWhitespace("   \n\t  "))
	assert.Equal(t, "single", NormalizeWhitespace("single"))
}

func TestChunkIntoSections(t *testing.T) {
	text := "First paragraph about scope.\n\nSecond paragraph about lifetime.\n\n\n\nThird one."
	sections := ChunkIntoSections(text)

	assert.Equal(t, []string{
		"First paragraph about scope.",
		"Second paragraph about lifetime.",
		"Third one.",
	}, sections)
}

func TestChunkIntoSectionsNoBlankLines(t *testing.T) {
	text := "One block of text\nwith line breaks but no blank lines."
	assert.Equal(t, []string{text}, ChunkIntoSections(text))
}

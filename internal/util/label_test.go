package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeLabel(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"B", "B"},
		{"b", "B"},
		{"B.", "B"},
		{"B:", "B"},
		{".B", "B"},
		{": B", "B"},
		{"option B", "B"},
		{"Option b", "B"},
		{"A", "A"},
		{"  d  ", "D"},
		{"", ""},
		{"   ", ""},
	}

	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			assert.Equal(t, tc.want, NormalizeLabel(tc.in))
		})
	}
}

func TestNormalizeLabelFallback(t *testing.T) {
	// 没有独立的 A-D 词元时，去掉末尾标点取首字符
	assert.Equal(t, "E", NormalizeLabel("e."))
	assert.Equal(t, "X", NormalizeLabel("x:"))
	assert.Equal(t, "", NormalizeLabel("."))
}

func TestExtractLabel(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"b", "B"},
		{"I chose a", "A"},
		{"question 42: d", "D"},
		{"picked B.", "B"},
		// 普通单词里的字母不算标签，也没有首字符兜底
		{"explain", ""},
		{"what is this about", ""},
		{"e.", ""},
		{"", ""},
	}

	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			assert.Equal(t, tc.want, ExtractLabel(tc.in))
		})
	}
}

package generate

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSelectionToggle(t *testing.T) {
	s := NewSelection()
	s.Toggle("anime")
	s.Toggle("noir")
	assert.Equal(t, []string{"anime", "noir"}, s.Styles())
	assert.True(t, s.Has("noir"))

	s.Toggle("noir")
	assert.False(t, s.Has("noir"))
	assert.Equal(t, []string{"anime"}, s.Styles())

	s.Toggle("anime")
	assert.Nil(t, s.Styles())
	assert.Equal(t, 0, s.Len())
}

func TestSelectionSelectAllThenClear(t *testing.T) {
	s := NewSelection()
	s.Toggle("noir")
	s.SelectAll([]string{"anime", "noir", "anime", "sketch"})
	assert.Equal(t, []string{"anime", "noir", "sketch"}, s.Styles())
	assert.Equal(t, 3, s.Len())

	s.Clear()
	assert.Nil(t, s.Styles())
	assert.False(t, s.Has("anime"))
}

func TestSelectionStylesIsCopy(t *testing.T) {
	s := NewSelection()
	s.Toggle("anime")
	got := s.Styles()
	got[0] = "changed"
	assert.Equal(t, []string{"anime"}, s.Styles())
}

func TestSummary(t *testing.T) {
	tests := []struct {
		name  string
		sum   Summary
		total int
		style string
	}{
		{"unstyled", Summary{Prompts: 3, Styles: 0, ImagesPerStyle: 1}, 3, "1 style per prompt"},
		{"styled", Summary{Prompts: 2, Styles: 3, ImagesPerStyle: 4}, 24, "3 styles per prompt"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.total, tt.sum.Total())
			lines := tt.sum.Lines()
			assert.Len(t, lines, 4)
			assert.Equal(t, tt.style, lines[1])
			assert.Equal(t, fmt.Sprintf("Total: %d images", tt.total), lines[3])
		})
	}
}

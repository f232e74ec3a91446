package generate

import (
	"fmt"

	"github.com/vipguy/Bing4/internal/model"
)

// Selection is an ordered set of chosen style labels
type Selection struct {
	order []string
	set   map[string]bool
}

// NewSelection creates an empty selection
func NewSelection() *Selection {
	return &Selection{set: make(map[string]bool)}
}

// Toggle adds style if absent, removes it otherwise
func (s *Selection) Toggle(style string) {
	if s.set[style] {
		delete(s.set, style)
		for i, v := range s.order {
			if v == style {
				s.order = append(s.order[:i], s.order[i+1:]...)
				break
			}
		}
		return
	}
	s.set[style] = true
	s.order = append(s.order, style)
}

// SelectAll replaces the selection with every available style
func (s *Selection) SelectAll(available []string) {
	s.Clear()
	for _, style := range available {
		if !s.set[style] {
			s.set[style] = true
			s.order = append(s.order, style)
		}
	}
}

// Clear empties the selection
func (s *Selection) Clear() {
	s.order = nil
	s.set = make(map[string]bool)
}

func (s *Selection) Has(style string) bool {
	return s.set[style]
}

func (s *Selection) Len() int {
	return len(s.order)
}

// Styles returns the selected styles in selection order, nil when empty
func (s *Selection) Styles() []string {
	if len(s.order) == 0 {
		return nil
	}
	return append([]string(nil), s.order...)
}

// Summary describes a pending batch before submission
type Summary struct {
	Prompts        int
	Styles         int
	ImagesPerStyle int
}

// Total is the number of images the batch is expected to produce
func (s Summary) Total() int {
	return model.BatchTotal(s.Prompts, s.Styles, s.ImagesPerStyle)
}

// Lines renders the summary for display. An empty style set counts as one group.
func (s Summary) Lines() []string {
	groups := s.Styles
	if groups < 1 {
		groups = 1
	}
	return []string{
		plural(s.Prompts, "prompt"),
		plural(groups, "style") + " per prompt",
		plural(s.ImagesPerStyle, "image") + " per style",
		fmt.Sprintf("Total: %d images", s.Total()),
	}
}

func plural(n int, noun string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, noun)
	}
	return fmt.Sprintf("%d %ss", n, noun)
}

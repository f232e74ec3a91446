package model

import "time"

// Status represents the server-reported state of a generation session or image
type Status string

const (
	StatusPending         Status = "pending"
	StatusQueued          Status = "queued"
	StatusProcessing      Status = "processing"
	StatusCompleted       Status = "completed"
	StatusFailed          Status = "failed"
	StatusPartiallyFailed Status = "partially_failed"
)

// Terminal reports whether no further progress is expected for this status
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusPartiallyFailed:
		return true
	default:
		return false
	}
}

// Icon returns the icon for the status
func (s Status) Icon() string {
	switch s {
	case StatusPending, StatusQueued:
		return "○"
	case StatusProcessing:
		return "●"
	case StatusCompleted:
		return "✓"
	case StatusFailed:
		return "✗"
	case StatusPartiallyFailed:
		return "⊘"
	default:
		return "○"
	}
}

// Images-per-style bounds accepted by the backend
const (
	MinImagesPerStyle     = 1
	MaxImagesPerStyle     = 4
	DefaultImagesPerStyle = 4
)

// Session is one prompt's generation request and its aggregate result state.
// Status, Images and the counters are owned by the server; the client only
// replaces the whole record from a status response.
type Session struct {
	ID              string    `json:"id"`
	Prompt          string    `json:"prompt"`
	Styles          []string  `json:"styles"`
	ImagesPerStyle  int       `json:"images_per_style"`
	TotalImages     int       `json:"total_images"`
	CompletedImages int       `json:"completed_images"`
	FailedImages    int       `json:"failed_images"`
	Status          Status    `json:"status"`
	Images          []Image   `json:"images"`
	CreatedAt       Timestamp `json:"created_at"`
	UpdatedAt       Timestamp `json:"updated_at"`
}

// Image is one generated artifact within a session
type Image struct {
	ID        string    `json:"id"`
	Prompt    string    `json:"prompt,omitempty"`
	Style     *string   `json:"style"` // nil for unstyled generation
	ImageURL  string    `json:"image_url,omitempty"`
	LocalPath string    `json:"local_path,omitempty"`
	Status    Status    `json:"status"`
	CreatedAt Timestamp `json:"created_at"`
}

// StyleLabel returns the image style or "No style"
func (i Image) StyleLabel() string {
	if i.Style == nil || *i.Style == "" {
		return "No style"
	}
	return *i.Style
}

// Downloadable reports whether the image file can be fetched
func (i Image) Downloadable() bool {
	return i.Status == StatusCompleted
}

// NewPending seeds the placeholder record shown until the first poll response
func NewPending(id, prompt string, styles []string, imagesPerStyle, totalImages int, now time.Time) Session {
	return Session{
		ID:              id,
		Prompt:          prompt,
		Styles:          append([]string(nil), styles...),
		ImagesPerStyle:  imagesPerStyle,
		TotalImages:     totalImages,
		CompletedImages: 0,
		Status:          StatusProcessing,
		Images:          []Image{},
		CreatedAt:       At(now),
	}
}

// TotalImages is the expected image count for one prompt: an empty style set
// still produces one unstyled group.
func TotalImages(styleCount, imagesPerStyle int) int {
	groups := styleCount
	if groups < 1 {
		groups = 1
	}
	return groups * imagesPerStyle
}

// BatchTotal is the expected image count across a batch of prompts
func BatchTotal(promptCount, styleCount, imagesPerStyle int) int {
	return promptCount * TotalImages(styleCount, imagesPerStyle)
}

// ValidImagesPerStyle reports whether n is within the accepted range
func ValidImagesPerStyle(n int) bool {
	return n >= MinImagesPerStyle && n <= MaxImagesPerStyle
}

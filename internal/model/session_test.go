package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTotalImages(t *testing.T) {
	for ips := MinImagesPerStyle; ips <= MaxImagesPerStyle; ips++ {
		for k := 0; k <= 24; k++ {
			want := k * ips
			if k == 0 {
				want = ips
			}
			assert.Equal(t, want, TotalImages(k, ips), "styles=%d ips=%d", k, ips)
		}
	}
}

func TestBatchTotal(t *testing.T) {
	// three prompts, no styles, one image per style
	assert.Equal(t, 3, BatchTotal(3, 0, 1))
	assert.Equal(t, 24, BatchTotal(3, 2, 4))
	assert.Equal(t, 0, BatchTotal(0, 2, 4))
}

func TestStatusTerminal(t *testing.T) {
	tests := []struct {
		status Status
		want   bool
	}{
		{StatusPending, false},
		{StatusQueued, false},
		{StatusProcessing, false},
		{StatusCompleted, true},
		{StatusFailed, true},
		{StatusPartiallyFailed, true},
	}
	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.status.Terminal())
		})
	}
}

func TestNewPending(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	styles := []string{"cartoon", "realistic"}
	s := NewPending("abc123", "a red fox", styles, 2, 4, now)

	assert.Equal(t, "abc123", s.ID)
	assert.Equal(t, StatusProcessing, s.Status)
	assert.Equal(t, 4, s.TotalImages)
	assert.Equal(t, 0, s.CompletedImages)
	require.NotNil(t, s.Images)
	assert.Empty(t, s.Images)
	assert.Equal(t, now, s.CreatedAt.Time)

	styles[0] = "mutated"
	assert.Equal(t, "cartoon", s.Styles[0], "styles must be copied")
}

func TestSessionDecodesServerRecord(t *testing.T) {
	raw := `{
		"id": "s1",
		"prompt": "a cat",
		"styles": [],
		"images_per_style": 1,
		"total_images": 1,
		"completed_images": 1,
		"failed_images": 0,
		"status": "completed",
		"images": [{"id": "i1", "prompt": "a cat", "style": null, "image_url": "https://x", "status": "completed"}],
		"created_at": "2026-01-02T03:04:05.123456",
		"updated_at": "2026-01-02T03:04:06Z"
	}`
	var s Session
	require.NoError(t, json.Unmarshal([]byte(raw), &s))

	assert.Equal(t, StatusCompleted, s.Status)
	assert.Equal(t, time.Date(2026, 1, 2, 3, 4, 5, 123456000, time.UTC), s.CreatedAt.Time)
	assert.Equal(t, time.Date(2026, 1, 2, 3, 4, 6, 0, time.UTC), s.UpdatedAt.UTC())
	assert.True(t, s.Images[0].CreatedAt.IsZero())
	require.Len(t, s.Images, 1)
	assert.Nil(t, s.Images[0].Style)
	assert.Equal(t, "No style", s.Images[0].StyleLabel())
}

func TestImageStyleLabel(t *testing.T) {
	style := "anime"
	assert.Equal(t, "anime", Image{Style: &style}.StyleLabel())
	assert.Equal(t, "No style", Image{}.StyleLabel())
}

func TestTimestampRoundTrip(t *testing.T) {
	var zero Timestamp
	data, err := json.Marshal(zero)
	require.NoError(t, err)
	assert.Equal(t, "null", string(data))

	var ts Timestamp
	require.NoError(t, json.Unmarshal([]byte(`""`), &ts))
	assert.True(t, ts.IsZero())

	require.Error(t, json.Unmarshal([]byte(`"yesterday"`), &ts))
}

package generate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/vipguy/Bing4/internal/model"
	"github.com/vipguy/Bing4/internal/pixel"
	"github.com/vipguy/Bing4/internal/session"
)

type mockAPI struct {
	mock.Mock
}

func (m *mockAPI) Generate(ctx context.Context, req pixel.GenerateRequest) (*pixel.GenerateResponse, error) {
	args := m.Called(ctx, req)
	resp, _ := args.Get(0).(*pixel.GenerateResponse)
	return resp, args.Error(1)
}

func (m *mockAPI) GenerateBatch(ctx context.Context, req pixel.BatchRequest) (*pixel.BatchResponse, error) {
	args := m.Called(ctx, req)
	resp, _ := args.Get(0).(*pixel.BatchResponse)
	return resp, args.Error(1)
}

func (m *mockAPI) Sessions(ctx context.Context) ([]model.Session, error) {
	args := m.Called(ctx)
	list, _ := args.Get(0).([]model.Session)
	return list, args.Error(1)
}

type recordingPoller struct {
	started []string
}

func (p *recordingPoller) Start(id string) bool {
	p.started = append(p.started, id)
	return true
}

var fixedNow = time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC)

func newTestOrchestrator() (*Orchestrator, *mockAPI, *session.Store, *recordingPoller) {
	api := &mockAPI{}
	store := session.NewStore()
	p := &recordingPoller{}
	o := NewOrchestrator(api, store, p, nil)
	o.now = func() time.Time { return fixedNow }
	return o, api, store, p
}

func TestSubmitSeedsAndPolls(t *testing.T) {
	o, api, store, p := newTestOrchestrator()
	api.On("Generate", mock.Anything, pixel.GenerateRequest{
		Prompt:         "a red fox",
		Styles:         []string{"cartoon", "realistic"},
		ImagesPerStyle: 2,
		AuthCookie:     "_U=abc",
	}).Return(&pixel.GenerateResponse{SessionID: "abc123", Status: "processing", TotalImages: 4}, nil)

	sess, err := o.Submit(context.Background(), Request{
		Prompt:         "  a red fox  ",
		Styles:         []string{"cartoon", "realistic"},
		ImagesPerStyle: 2,
		AuthCookie:     "_U=abc",
	})
	require.NoError(t, err)
	api.AssertExpectations(t)

	assert.Equal(t, "abc123", sess.ID)
	assert.Equal(t, 4, sess.TotalImages)
	assert.Equal(t, 0, sess.CompletedImages)
	assert.Equal(t, model.StatusProcessing, sess.Status)
	assert.Empty(t, sess.Images)
	assert.Equal(t, fixedNow, sess.CreatedAt.Time)

	list := store.List()
	require.Len(t, list, 1)
	assert.Equal(t, "abc123", list[0].ID)
	assert.Equal(t, []string{"abc123"}, p.started)
}

func TestSubmitUnstyledSendsNilStyles(t *testing.T) {
	o, api, store, _ := newTestOrchestrator()
	api.On("Generate", mock.Anything, mock.MatchedBy(func(req pixel.GenerateRequest) bool {
		return req.Styles == nil
	})).Return(&pixel.GenerateResponse{SessionID: "s1"}, nil)

	sess, err := o.Submit(context.Background(), Request{Prompt: "fox", Styles: []string{}, ImagesPerStyle: 3})
	require.NoError(t, err)

	// server omitted the total, fall back to the local formula
	assert.Equal(t, 3, sess.TotalImages)
	assert.Equal(t, 1, store.Len())
}

func TestSubmitValidation(t *testing.T) {
	tests := []struct {
		name    string
		req     Request
		wantMsg string
	}{
		{"empty prompt", Request{Prompt: "", ImagesPerStyle: 1}, MsgEmptyPrompt},
		{"whitespace prompt", Request{Prompt: " \t\n", ImagesPerStyle: 1}, MsgEmptyPrompt},
		{"zero images", Request{Prompt: "fox", ImagesPerStyle: 0}, MsgImagesPerStyle},
		{"too many images", Request{Prompt: "fox", ImagesPerStyle: 5}, MsgImagesPerStyle},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o, api, store, p := newTestOrchestrator()

			_, err := o.Submit(context.Background(), tt.req)
			require.Error(t, err)
			assert.True(t, IsValidation(err))
			assert.EqualError(t, err, tt.wantMsg)

			api.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything)
			assert.Equal(t, 0, store.Len())
			assert.Empty(t, p.started)
		})
	}
}

func TestSubmitFailureLeavesStoreUntouched(t *testing.T) {
	o, api, store, p := newTestOrchestrator()
	store.InsertFront(model.NewPending("old", "p", nil, 1, 1, fixedNow))
	api.On("Generate", mock.Anything, mock.Anything).
		Return(nil, &pixel.APIError{StatusCode: 400, Detail: "Images per style cannot exceed 4"})

	_, err := o.Submit(context.Background(), Request{Prompt: "fox", ImagesPerStyle: 4})
	require.Error(t, err)
	assert.False(t, IsValidation(err))
	assert.Equal(t, "Images per style cannot exceed 4", pixel.Message(err))

	assert.Equal(t, 1, store.Len())
	assert.Empty(t, p.started)
}

func TestSubmitBatchOrdering(t *testing.T) {
	o, api, store, p := newTestOrchestrator()
	store.InsertFront(model.NewPending("old", "p", nil, 1, 1, fixedNow))
	api.On("GenerateBatch", mock.Anything, pixel.BatchRequest{
		Prompts:        []string{"cat", "dog", "owl"},
		ImagesPerStyle: 1,
	}).Return(&pixel.BatchResponse{
		BatchID: "b1",
		Sessions: []pixel.BatchSession{
			{SessionID: "s-cat", Prompt: "cat"},
			{SessionID: "s-dog", Prompt: "dog"},
			{SessionID: "s-owl", Prompt: "owl"},
		},
		TotalSessions: 3,
	}, nil)

	seeded, err := o.SubmitBatch(context.Background(), BatchRequest{
		Prompts:        []string{"cat", "dog", "owl"},
		ImagesPerStyle: 1,
	})
	require.NoError(t, err)
	require.Len(t, seeded, 3)
	assert.Equal(t, "s-cat", seeded[0].ID)

	var ids []string
	total := 0
	for _, s := range store.List() {
		ids = append(ids, s.ID)
		if s.ID != "old" {
			total += s.TotalImages
			assert.Equal(t, model.StatusProcessing, s.Status)
		}
	}
	assert.Equal(t, []string{"s-owl", "s-dog", "s-cat", "old"}, ids)
	assert.Equal(t, 3, total)
	assert.Equal(t, []string{"s-cat", "s-dog", "s-owl"}, p.started)
}

func TestSubmitBatchStyledTotals(t *testing.T) {
	o, api, store, _ := newTestOrchestrator()
	api.On("GenerateBatch", mock.Anything, mock.Anything).Return(&pixel.BatchResponse{
		Sessions: []pixel.BatchSession{{SessionID: "s1", Prompt: "cat"}},
	}, nil)

	_, err := o.SubmitBatch(context.Background(), BatchRequest{
		Prompts:        []string{"cat"},
		Styles:         []string{"anime", "noir", "pixel art"},
		ImagesPerStyle: 2,
	})
	require.NoError(t, err)

	got, ok := store.Get("s1")
	require.True(t, ok)
	assert.Equal(t, 6, got.TotalImages)
	assert.Equal(t, []string{"anime", "noir", "pixel art"}, got.Styles)
}

func TestSubmitBatchEmpty(t *testing.T) {
	o, api, _, _ := newTestOrchestrator()

	_, err := o.SubmitBatch(context.Background(), BatchRequest{ImagesPerStyle: 1})
	require.Error(t, err)
	assert.EqualError(t, err, MsgNoPrompts)
	api.AssertNotCalled(t, "GenerateBatch", mock.Anything, mock.Anything)
}

func TestSubmitBatchFailure(t *testing.T) {
	o, api, store, p := newTestOrchestrator()
	api.On("GenerateBatch", mock.Anything, mock.Anything).Return(nil, errors.New("connection refused"))

	_, err := o.SubmitBatch(context.Background(), BatchRequest{Prompts: []string{"a", "b"}, ImagesPerStyle: 1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
	assert.Equal(t, 0, store.Len())
	assert.Empty(t, p.started)
}

func TestReload(t *testing.T) {
	o, api, store, p := newTestOrchestrator()
	store.InsertFront(model.NewPending("local", "p", nil, 1, 1, fixedNow))
	api.On("Sessions", mock.Anything).Return([]model.Session{
		{ID: "r2", Status: model.StatusCompleted},
		{ID: "r1", Status: model.StatusProcessing},
	}, nil)

	require.NoError(t, o.Reload(context.Background()))

	list := store.List()
	require.Len(t, list, 2)
	assert.Equal(t, "r2", list[0].ID)
	assert.Empty(t, p.started)
}

func TestReloadFailureKeepsStore(t *testing.T) {
	o, api, store, _ := newTestOrchestrator()
	store.InsertFront(model.NewPending("local", "p", nil, 1, 1, fixedNow))
	api.On("Sessions", mock.Anything).Return(nil, errors.New("boom"))

	require.Error(t, o.Reload(context.Background()))
	assert.Equal(t, 1, store.Len())
}

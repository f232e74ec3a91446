package generate

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/vipguy/Bing4/internal/model"
	"github.com/vipguy/Bing4/internal/pixel"
	"github.com/vipguy/Bing4/internal/session"
)

// API is the slice of the Pixel client used for submission
type API interface {
	Generate(ctx context.Context, req pixel.GenerateRequest) (*pixel.GenerateResponse, error)
	GenerateBatch(ctx context.Context, req pixel.BatchRequest) (*pixel.BatchResponse, error)
	Sessions(ctx context.Context) ([]model.Session, error)
}

// Poller starts background status polling for a session
type Poller interface {
	Start(id string) bool
}

// Request is a single-prompt submission
type Request struct {
	Prompt         string
	Styles         []string
	ImagesPerStyle int
	AuthCookie     string
}

// BatchRequest submits the same styles and count for many prompts
type BatchRequest struct {
	Prompts        []string
	Styles         []string
	ImagesPerStyle int
	AuthCookie     string
}

// Orchestrator validates submissions, sends them, seeds placeholder records
// and hands each new session to the poller.
type Orchestrator struct {
	client  API
	store   *session.Store
	pollers Poller
	now     func() time.Time
	logger  *slog.Logger
}

// NewOrchestrator wires the orchestrator. A nil logger uses slog.Default.
func NewOrchestrator(client API, store *session.Store, pollers Poller, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		client:  client,
		store:   store,
		pollers: pollers,
		now:     time.Now,
		logger:  logger.With("component", "generate"),
	}
}

// Submit sends one prompt. On success the seeded record is already at the
// front of the store and being polled.
func (o *Orchestrator) Submit(ctx context.Context, req Request) (*model.Session, error) {
	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		return nil, &ValidationError{Message: MsgEmptyPrompt}
	}
	if !model.ValidImagesPerStyle(req.ImagesPerStyle) {
		return nil, &ValidationError{Message: MsgImagesPerStyle}
	}
	styles := nilIfEmpty(req.Styles)

	resp, err := o.client.Generate(ctx, pixel.GenerateRequest{
		Prompt:         prompt,
		Styles:         styles,
		ImagesPerStyle: req.ImagesPerStyle,
		AuthCookie:     req.AuthCookie,
	})
	if err != nil {
		o.logger.Error("generation request failed", "error", err)
		return nil, fmt.Errorf("generate: %w", err)
	}

	total := resp.TotalImages
	if total <= 0 {
		total = model.TotalImages(len(styles), req.ImagesPerStyle)
	}
	sess := model.NewPending(resp.SessionID, prompt, styles, req.ImagesPerStyle, total, o.now())
	o.store.InsertFront(sess)
	o.pollers.Start(sess.ID)

	o.logger.Info("session submitted", "session_id", sess.ID, "total_images", total, "styles", len(styles))
	return &sess, nil
}

// SubmitBatch sends every prompt in one request. Sessions are seeded in
// server order, so the last returned descriptor ends up at the front. The
// returned slice keeps server order.
func (o *Orchestrator) SubmitBatch(ctx context.Context, req BatchRequest) ([]model.Session, error) {
	if len(req.Prompts) == 0 {
		return nil, &ValidationError{Message: MsgNoPrompts}
	}
	if !model.ValidImagesPerStyle(req.ImagesPerStyle) {
		return nil, &ValidationError{Message: MsgImagesPerStyle}
	}
	styles := nilIfEmpty(req.Styles)

	resp, err := o.client.GenerateBatch(ctx, pixel.BatchRequest{
		Prompts:        req.Prompts,
		Styles:         styles,
		ImagesPerStyle: req.ImagesPerStyle,
		AuthCookie:     req.AuthCookie,
	})
	if err != nil {
		o.logger.Error("batch request failed", "error", err, "prompts", len(req.Prompts))
		return nil, fmt.Errorf("generate batch: %w", err)
	}

	total := model.TotalImages(len(styles), req.ImagesPerStyle)
	now := o.now()
	seeded := make([]model.Session, 0, len(resp.Sessions))
	for _, d := range resp.Sessions {
		sess := model.NewPending(d.SessionID, d.Prompt, styles, req.ImagesPerStyle, total, now)
		o.store.InsertFront(sess)
		o.pollers.Start(sess.ID)
		seeded = append(seeded, sess)
	}

	o.logger.Info("batch submitted", "batch_id", resp.BatchID, "sessions", len(seeded))
	return seeded, nil
}

// Reload replaces the store contents with the server's recent sessions.
// Pollers are not resumed for reloaded records.
func (o *Orchestrator) Reload(ctx context.Context) error {
	sessions, err := o.client.Sessions(ctx)
	if err != nil {
		o.logger.Error("failed to load sessions", "error", err)
		return fmt.Errorf("load sessions: %w", err)
	}
	o.store.Reload(sessions)
	o.logger.Debug("sessions reloaded", "count", len(sessions))
	return nil
}

func nilIfEmpty(styles []string) []string {
	if len(styles) == 0 {
		return nil
	}
	return append([]string(nil), styles...)
}

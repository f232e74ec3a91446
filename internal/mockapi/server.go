// Package mockapi is an in-memory stand-in for the Pixel backend. It speaks
// the same HTTP contract and fakes generation progress one poll at a time.
package mockapi

import (
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vipguy/Bing4/internal/model"
)

// Banner is the GET /api/ message
const Banner = "Pixel's DALL-E Image Generator API v1.0.0"

// Styles is the fixed style catalogue served by GET /api/styles
var Styles = []string{
	"watercolor", "oil painting", "cyberpunk", "steampunk", "cartoon", "anime",
	"photorealistic", "pixel art", "low poly", "noir", "futuristic", "retro",
	"fantasy", "impressionist", "Van Gogh", "Picasso", "minimalist", "surreal",
	"vaporwave", "gothic", "pop art", "comic book", "sketch", "chibi",
}

var sensitiveWords = []string{"porn", "sex", "naked", "kill", "drug", "gore"}

// Options tunes the simulated backend
type Options struct {
	// StepsPerFetch is how many images finish each time a session is read.
	// Zero leaves sessions processing forever.
	StepsPerFetch int

	// FailingStyles produce failed images, giving partially_failed sessions
	FailingStyles []string

	// CookieValid overrides the auth token check
	CookieValid func(cookie string) bool

	Logger *slog.Logger
	Now    func() time.Time
}

type record struct {
	session model.Session
	planned []model.Image // images not yet produced, in output order
	cookie  string
	seq     int
}

// Server holds every session created since start
type Server struct {
	mu       sync.Mutex
	sessions map[string]*record
	images   map[string]string // image id -> session id
	seq      int

	steps       int
	failing     map[string]bool
	cookieValid func(string) bool
	logger      *slog.Logger
	now         func() time.Time
}

// New creates an empty mock backend
func New(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.CookieValid == nil {
		opts.CookieValid = DefaultCookieValid
	}
	failing := make(map[string]bool, len(opts.FailingStyles))
	for _, s := range opts.FailingStyles {
		failing[s] = true
	}
	return &Server{
		sessions:    make(map[string]*record),
		images:      make(map[string]string),
		steps:       opts.StepsPerFetch,
		failing:     failing,
		cookieValid: opts.CookieValid,
		logger:      opts.Logger.With("component", "mockapi"),
		now:         opts.Now,
	}
}

// DefaultCookieValid accepts any cookie string that carries a non-empty _U value
func DefaultCookieValid(cookie string) bool {
	header := strings.TrimSpace(cookie)
	if header == "" {
		return false
	}
	cookies, err := http.ParseCookie(header)
	if err != nil {
		return false
	}
	for _, c := range cookies {
		if c.Name == "_U" && c.Value != "" {
			return true
		}
	}
	return false
}

// create registers a processing session and plans its images
func (s *Server) create(prompt string, styles []string, imagesPerStyle int, cookie string) model.Session {
	now := s.now()
	if styles == nil {
		styles = []string{}
	}
	sess := model.Session{
		ID:             uuid.New().String(),
		Prompt:         prompt,
		Styles:         append([]string{}, styles...),
		ImagesPerStyle: imagesPerStyle,
		TotalImages:    model.TotalImages(len(styles), imagesPerStyle),
		Status:         model.StatusProcessing,
		Images:         []model.Image{},
		CreatedAt:      model.At(now),
		UpdatedAt:      model.At(now),
	}

	var planned []model.Image
	groups := make([]*string, 0, len(styles))
	for _, style := range styles {
		style := style
		groups = append(groups, &style)
	}
	if len(groups) == 0 {
		groups = append(groups, nil)
	}
	for _, style := range groups {
		for i := 0; i < imagesPerStyle; i++ {
			id := uuid.New().String()
			planned = append(planned, model.Image{
				ID:       id,
				Prompt:   prompt,
				Style:    style,
				ImageURL: "/api/image/" + id,
				Status:   model.StatusPending,
			})
		}
	}

	s.mu.Lock()
	s.seq++
	s.sessions[sess.ID] = &record{session: sess, planned: planned, cookie: cookie, seq: s.seq}
	s.mu.Unlock()

	s.logger.Debug("session created", "session_id", sess.ID, "total_images", sess.TotalImages)
	return sess
}

// advance moves a processing session forward by the configured step count.
// Caller holds s.mu.
func (s *Server) advance(rec *record) {
	sess := &rec.session
	if sess.Status != model.StatusProcessing || s.steps <= 0 {
		return
	}
	now := s.now()

	if !s.cookieValid(rec.cookie) || blocked(sess.Prompt) {
		sess.Status = model.StatusFailed
		sess.UpdatedAt = model.At(now)
		rec.planned = nil
		return
	}

	for i := 0; i < s.steps && len(rec.planned) > 0; i++ {
		img := rec.planned[0]
		rec.planned = rec.planned[1:]
		img.CreatedAt = model.At(now)
		if img.Style != nil && s.failing[*img.Style] {
			img.Status = model.StatusFailed
			sess.FailedImages++
		} else {
			img.Status = model.StatusCompleted
			img.LocalPath = "pixel_image_" + img.ID + ".png"
			sess.CompletedImages++
		}
		sess.Images = append(sess.Images, img)
		s.images[img.ID] = sess.ID
	}
	sess.UpdatedAt = model.At(now)

	if len(rec.planned) == 0 {
		if sess.FailedImages == 0 {
			sess.Status = model.StatusCompleted
		} else {
			sess.Status = model.StatusPartiallyFailed
		}
		s.logger.Debug("session finished", "session_id", sess.ID, "status", sess.Status)
	}
}

// get returns a copy of the session after advancing it
func (s *Server) get(id string) (model.Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.sessions[id]
	if !ok {
		return model.Session{}, false
	}
	s.advance(rec)
	return copySession(rec.session), true
}

// list returns up to limit sessions, newest first. Listing does not advance progress.
func (s *Server) list(limit int) []model.Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	recs := make([]*record, 0, len(s.sessions))
	for _, rec := range s.sessions {
		recs = append(recs, rec)
	}
	// creation order breaks created_at ties within a batch
	sort.Slice(recs, func(i, j int) bool {
		ti, tj := recs[i].session.CreatedAt.Time, recs[j].session.CreatedAt.Time
		if !ti.Equal(tj) {
			return ti.After(tj)
		}
		return recs[i].seq > recs[j].seq
	})
	if limit >= 0 && len(recs) > limit {
		recs = recs[:limit]
	}
	out := make([]model.Session, 0, len(recs))
	for _, rec := range recs {
		out = append(out, copySession(rec.session))
	}
	return out
}

// image looks up a produced image and its owning session
func (s *Server) image(id string) (model.Image, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sid, ok := s.images[id]
	if !ok {
		return model.Image{}, false
	}
	for _, img := range s.sessions[sid].session.Images {
		if img.ID == id {
			return img, true
		}
	}
	return model.Image{}, false
}

// Len returns the number of sessions created
func (s *Server) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

func blocked(prompt string) bool {
	lower := strings.ToLower(prompt)
	for _, w := range sensitiveWords {
		if strings.Contains(lower, w) {
			return true
		}
	}
	return false
}

func copySession(s model.Session) model.Session {
	s.Styles = append([]string{}, s.Styles...)
	s.Images = append([]model.Image{}, s.Images...)
	return s
}

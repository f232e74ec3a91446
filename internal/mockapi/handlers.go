package mockapi

import (
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/vipguy/Bing4/internal/model"
)

const defaultListLimit = 50

type generateBody struct {
	Prompt         *string  `json:"prompt"`
	Styles         []string `json:"styles"`
	ImagesPerStyle *int     `json:"images_per_style"`
	AuthCookie     *string  `json:"auth_cookie"`
}

type batchBody struct {
	Prompts        []string `json:"prompts"`
	Styles         []string `json:"styles"`
	ImagesPerStyle *int     `json:"images_per_style"`
	AuthCookie     *string  `json:"auth_cookie"`
}

func imagesPerStyleOrDefault(n *int) int {
	if n == nil {
		return model.DefaultImagesPerStyle
	}
	return *n
}

func cookieOrDefault(c *string) string {
	if c == nil {
		return "_U="
	}
	return *c
}

func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": Banner})
}

func (s *Server) handleStyles(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]string{"styles": Styles})
}

func (s *Server) handleTestCookie(w http.ResponseWriter, r *http.Request) {
	var body map[string]interface{}
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, http.StatusUnprocessableEntity, "invalid request body: "+err.Error())
		return
	}
	cookie := "_U="
	if v, ok := body["cookie"].(string); ok {
		cookie = v
	}
	writeJSON(w, http.StatusOK, map[string]bool{"valid": s.cookieValid(cookie)})
}

// handleGenerate handles POST /api/generate
func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req generateBody
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, "invalid request body: "+err.Error())
		return
	}
	if req.Prompt == nil {
		writeError(w, http.StatusUnprocessableEntity, "prompt is required")
		return
	}
	if strings.TrimSpace(*req.Prompt) == "" {
		writeError(w, http.StatusBadRequest, "Prompt cannot be empty")
		return
	}
	ips := imagesPerStyleOrDefault(req.ImagesPerStyle)
	if ips > model.MaxImagesPerStyle {
		writeError(w, http.StatusBadRequest, "Images per style cannot exceed 4")
		return
	}
	if ips < model.MinImagesPerStyle {
		writeError(w, http.StatusBadRequest, "Images per style must be at least 1")
		return
	}

	sess := s.create(*req.Prompt, req.Styles, ips, cookieOrDefault(req.AuthCookie))
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"session_id":   sess.ID,
		"status":       "processing",
		"total_images": sess.TotalImages,
	})
}

// handleGenerateBatch handles POST /api/generate-batch. Blank prompts are skipped.
func (s *Server) handleGenerateBatch(w http.ResponseWriter, r *http.Request) {
	var req batchBody
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, "invalid request body: "+err.Error())
		return
	}
	if len(req.Prompts) == 0 {
		writeError(w, http.StatusBadRequest, "No prompts provided")
		return
	}
	ips := imagesPerStyleOrDefault(req.ImagesPerStyle)
	cookie := cookieOrDefault(req.AuthCookie)

	type descriptor struct {
		SessionID string `json:"session_id"`
		Prompt    string `json:"prompt"`
	}
	sessions := make([]descriptor, 0, len(req.Prompts))
	for _, p := range req.Prompts {
		if strings.TrimSpace(p) == "" {
			continue
		}
		sess := s.create(p, req.Styles, ips, cookie)
		sessions = append(sessions, descriptor{SessionID: sess.ID, Prompt: sess.Prompt})
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"batch_id":       newID(),
		"sessions":       sessions,
		"total_sessions": len(sessions),
	})
}

// handleUploadPrompts handles POST /api/upload-prompts: one prompt per
// non-blank line of a .txt or .csv file.
func (s *Server) handleUploadPrompts(w http.ResponseWriter, r *http.Request) {
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "file is required")
		return
	}
	defer file.Close()

	if !strings.HasSuffix(header.Filename, ".txt") && !strings.HasSuffix(header.Filename, ".csv") {
		writeError(w, http.StatusBadRequest, "Only .txt and .csv files are supported")
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read file: "+err.Error())
		return
	}

	prompts := []string{}
	for _, line := range strings.Split(string(data), "\n") {
		if p := strings.TrimSpace(line); p != "" {
			prompts = append(prompts, p)
		}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"prompts": prompts,
		"count":   len(prompts),
	})
}

// handleListSessions handles GET /api/sessions?limit=N
func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	limit := defaultListLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, "limit must be an integer")
			return
		}
		limit = n
	}
	writeJSON(w, http.StatusOK, s.list(limit))
}

// handleGetSession handles GET /api/session/{id}. Every read advances progress.
func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	sess, ok := s.get(id)
	if !ok {
		writeError(w, http.StatusNotFound, "Session not found")
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

// handleImage handles GET /api/image/{id}
func (s *Server) handleImage(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	img, ok := s.image(id)
	if !ok {
		writeError(w, http.StatusNotFound, "Image not found")
		return
	}
	if img.LocalPath == "" {
		writeError(w, http.StatusNotFound, "Image file not found")
		return
	}

	data, err := placeholderPNG(img.ID)
	if err != nil {
		s.logger.Error("failed to render image", "image_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="pixel_image_%s.png"`, img.ID))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

package mockapi

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Handler returns the chi router serving the /api routes
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(CORS)
	r.Use(RequestID)
	r.Use(Logger(s.logger))
	r.Use(Recovery(s.logger))

	r.Route("/api", func(r chi.Router) {
		r.Get("/", s.handleInfo)
		r.Get("/styles", s.handleStyles)
		r.Post("/test-cookie", s.handleTestCookie)
		r.Post("/generate", s.handleGenerate)
		r.Post("/generate-batch", s.handleGenerateBatch)
		r.Post("/upload-prompts", s.handleUploadPrompts)
		r.Get("/sessions", s.handleListSessions)
		r.Get("/session/{id}", s.handleGetSession)
		r.Get("/image/{id}", s.handleImage)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "Not Found")
	})
	return r
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError uses the {"detail": ...} body the client expects
func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

func decodeJSON(r *http.Request, v interface{}) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

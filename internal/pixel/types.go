package pixel

// GenerateRequest is the body of POST /api/generate.
// Styles has no omitempty: nil encodes as null, meaning "no style modifier".
type GenerateRequest struct {
	Prompt         string   `json:"prompt"`
	Styles         []string `json:"styles"`
	ImagesPerStyle int      `json:"images_per_style"`
	AuthCookie     string   `json:"auth_cookie"`
}

// GenerateResponse is returned by POST /api/generate
type GenerateResponse struct {
	SessionID   string `json:"session_id"`
	Status      string `json:"status,omitempty"`
	TotalImages int    `json:"total_images"`
}

// BatchRequest is the body of POST /api/generate-batch
type BatchRequest struct {
	Prompts        []string `json:"prompts"`
	Styles         []string `json:"styles"`
	ImagesPerStyle int      `json:"images_per_style"`
	AuthCookie     string   `json:"auth_cookie"`
}

// BatchSession describes one session created by a batch request
type BatchSession struct {
	SessionID string `json:"session_id"`
	Prompt    string `json:"prompt"`
}

// BatchResponse is returned by POST /api/generate-batch
type BatchResponse struct {
	BatchID       string         `json:"batch_id,omitempty"`
	Sessions      []BatchSession `json:"sessions"`
	TotalSessions int            `json:"total_sessions,omitempty"`
}

type stylesResponse struct {
	Styles []string `json:"styles"`
}

type cookieRequest struct {
	Cookie string `json:"cookie"`
}

type cookieResponse struct {
	Valid bool `json:"valid"`
}

type promptsResponse struct {
	Prompts []string `json:"prompts"`
	Count   int      `json:"count,omitempty"`
}

type infoResponse struct {
	Message string `json:"message"`
}

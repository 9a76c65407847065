package model

// PromptKind records which prompt shape answered a chat message.
type PromptKind string

const (
	PromptStructured PromptKind = "structured"
	PromptHealth     PromptKind = "health"
	PromptDefault    PromptKind = "default"
	PromptFallback   PromptKind = "fallback"
)

type ChatRequest struct {
	Message   string `json:"message" binding:"required"`
	SessionID string `json:"session_id"`
}

type ChatResponse struct {
	Reply string        `json:"reply"`
	Kind  PromptKind    `json:"kind"`
	Match *CatalogEntry `json:"match,omitempty"`
	Clip  string        `json:"clip,omitempty"`
}

type AnalyzeRequest struct {
	ImagePath string `json:"imagePath" binding:"required"`
}

type UploadResponse struct {
	ImagePath    string `json:"imagePath"`
	Filename     string `json:"filename"`
	OriginalName string `json:"originalName"`
	Size         int64  `json:"size"`
}

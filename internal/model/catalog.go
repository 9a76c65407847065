package model

// CatalogEntry is a static, named clip (an exercise animation) matched
// against chat input. ID doubles as the clip file reference.
type CatalogEntry struct {
	ID          string `json:"id" validate:"required"`
	Name        string `json:"name" validate:"required"`
	Description string `json:"description"`
}

// SimilarityResult pairs a catalog entry with its score for one query.
type SimilarityResult struct {
	Entry CatalogEntry `json:"entry"`
	Score float64      `json:"score"`
}

type MatchRequest struct {
	Query string `json:"query"`
	K     int    `json:"k" binding:"omitempty,min=1,max=50"`
}

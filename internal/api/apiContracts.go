package api

import "time"

// responses---------------------

type ErrorResponse struct {
	Error     string `json:"error" example:"File report.pdf not found"`
	Kind      string `json:"kind,omitempty" example:"NOT_FOUND"`
	Retryable bool   `json:"retryable,omitempty"`
}

type FileResponse struct {
	Filename string `json:"filename" example:"report.pdf"`
	FilePath string `json:"file_path" example:"uploaded_files/report.pdf"`
}

type FilesListResponse struct {
	Files []string `json:"files"`
}

type SuccessResponse struct {
	Status  string `json:"status" example:"success"`
	Message string `json:"message"`
}

type ContentMetadata struct {
	FileName string `json:"file_name"`
	FilePath string `json:"file_path"`
}

type ParseResponse struct {
	TextContent string          `json:"text_content"`
	Metadata    ContentMetadata `json:"metadata"`
}

type SummaryResponse struct {
	Summary  string          `json:"summary"`
	Metadata ContentMetadata `json:"metadata"`
}

type IngestResponse struct {
	Status     string `json:"status" example:"success"`
	Filename   string `json:"filename"`
	ChunkCount int    `json:"chunk_count"`
}

type SearchHit struct {
	Filename    string  `json:"filename"`
	ChunkRef    string  `json:"chunk_ref"`
	Content     string  `json:"content"`
	Score       float64 `json:"score"`
	DenseScore  float64 `json:"dense_score"`
	SparseScore float64 `json:"sparse_score"`
}

type SearchResponse struct {
	Query   string      `json:"query"`
	Results []SearchHit `json:"results"`
}

type DocumentResponse struct {
	Filename    string    `json:"filename"`
	Stage       string    `json:"stage"`
	ChunkCount  int       `json:"chunk_count,omitempty"`
	CreatedTime time.Time `json:"created_time"`
	UpdatedTime time.Time `json:"updated_time"`
}

// requests---------------------

type ContentUpdate struct {
	Content string `json:"content" validate:"required"`
}

type SearchRequest struct {
	Query string   `json:"query" validate:"required"`
	TopK  int      `json:"top_k,omitempty" example:"3"`
	Alpha *float64 `json:"alpha,omitempty" example:"0.5"`
}

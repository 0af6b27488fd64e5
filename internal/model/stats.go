package model

type CollectionStats struct {
	Language   string `json:"language"`
	Collection string `json:"collection"`
	Chunks     int    `json:"chunks"`
}

type Stats struct {
	Collections        []CollectionStats `json:"collections"`
	ChunksByLanguage   map[string]int    `json:"chunks_by_language"`
	TotalChunks        int               `json:"total_chunks"`
	TotalDocuments     int               `json:"total_documents"`
	ActiveTasks        int               `json:"active_tasks"`
	EmbeddingModel     string            `json:"embedding_model"`
	LLMModel           string            `json:"llm_model"`
	SupportedFileTypes []string          `json:"supported_file_types"`
}

type Health struct {
	Status        string `json:"status"`
	VectorStore   string `json:"vector_store"`
	RecentSuccess bool   `json:"recent_success"`
	LastSuccess   int64  `json:"last_success,omitempty"`
	Error         string `json:"error,omitempty"`
}

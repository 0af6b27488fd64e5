package model

import "fmt"

const (
	MetaFilename     = "filename"
	MetaFilePath     = "file_path"
	MetaFileType     = "file_type"
	MetaFileSize     = "file_size"
	MetaFileHash     = "file_hash"
	MetaCreatedAt    = "created_at"
	MetaModifiedAt   = "modified_at"
	MetaChunkIndex   = "chunk_index"
	MetaLanguage     = "language"
	MetaDocumentStem = "document_stem"
)

type ChunkRecord struct {
	ID        string                 `json:"id"`
	Text      string                 `json:"text"`
	Embedding []float32              `json:"-"`
	Metadata  map[string]interface{} `json:"metadata"`
}

func ChunkID(stem string, index int) string {
	return fmt.Sprintf("%s_%d", stem, index)
}

func (r *ChunkRecord) Source() string {
	if r.Metadata == nil {
		return ""
	}
	if v, ok := r.Metadata[MetaDocumentStem].(string); ok {
		return v
	}
	if v, ok := r.Metadata[MetaFilename].(string); ok {
		return FileStem(v)
	}
	return ""
}

type SearchResult struct {
	ID         string                 `json:"id"`
	Content    string                 `json:"content"`
	Metadata   map[string]interface{} `json:"metadata"`
	Language   string                 `json:"language"`
	Collection string                 `json:"collection"`
	Similarity float64                `json:"similarity_score"`
}

func (r *SearchResult) Source() string {
	if r.Metadata == nil {
		return ""
	}
	if v, ok := r.Metadata[MetaFilename].(string); ok && v != "" {
		return v
	}
	return ""
}

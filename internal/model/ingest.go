package model

type IngestResult struct {
	Filename   string `json:"filename"`
	Stem       string `json:"stem"`
	FileType   string `json:"file_type"`
	FileHash   string `json:"file_hash"`
	Language   string `json:"language"`
	Collection string `json:"collection"`
	Chunks     int    `json:"chunks"`
	Replaced   int    `json:"replaced"`
}

type FileResult struct {
	Path   string        `json:"path"`
	Result *IngestResult `json:"result,omitempty"`
	Error  string        `json:"error,omitempty"`
}

type QueryResult struct {
	Query    string         `json:"query"`
	Language string         `json:"language"`
	Answer   string         `json:"answer"`
	Chunks   []SearchResult `json:"chunks"`
	Error    string         `json:"error,omitempty"`
}

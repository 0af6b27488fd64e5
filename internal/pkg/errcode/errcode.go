package errcode

const (
	ErrUnknown = 10000000 + iota
	ErrUnauthorized
	ErrNotFound
	ErrInvalid
	ErrTooMany
	ErrInternal
	ErrInvalidFile
	ErrUnsupportedFile
	ErrUploadFailed
	ErrIngestFailed
	ErrDecodeFailed
	ErrEmbeddingFailed
	ErrStoreFailed
	ErrUnavailable
)

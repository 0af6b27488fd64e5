package errors

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrInvalid           = errors.New("invalid")
	ErrTooMany           = errors.New("too many requests")
	ErrInternal          = errors.New("internal")
	ErrUnsupportedInput  = errors.New("unsupported input")
	ErrDecode            = errors.New("decode failed")
	ErrConfiguration     = errors.New("invalid configuration")
	ErrEmbeddingService  = errors.New("embedding service failed")
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
	ErrStoreWrite        = errors.New("vector store write failed")
	ErrStoreQuery        = errors.New("vector store query failed")
	ErrLanguageFallback  = errors.New("language detection fell back to default")
	ErrTaskFinished      = errors.New("task already finished")
	ErrUnavailable       = errors.New("service unavailable")
)

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func IsUnsupported(err error) bool {
	return errors.Is(err, ErrUnsupportedInput)
}

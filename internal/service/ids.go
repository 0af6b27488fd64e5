package service

import (
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// stagingKey names a staged upload. The extension is kept so the decoder can
// still fall back on it.
func stagingKey(filename string) string {
	return uuid.NewString() + strings.ToLower(filepath.Ext(filepath.Base(filename)))
}

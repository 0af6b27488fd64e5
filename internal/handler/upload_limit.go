package handler

import (
	"path/filepath"
	"strconv"
	"strings"
)

func formatUploadLimit(bytes int64) string {
	const mb = 1024 * 1024
	if bytes <= 0 {
		return "0MB"
	}
	value := bytes / mb
	if value <= 0 {
		value = 1
	}
	return strconv.FormatInt(value, 10) + "MB"
}

type extensionSet map[string]struct{}

func newExtensionSet(exts []string) extensionSet {
	set := make(extensionSet, len(exts))
	for _, ext := range exts {
		ext = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(ext)), ".")
		if ext != "" {
			set[ext] = struct{}{}
		}
	}
	return set
}

// allows reports whether filename carries one of the extensions. An empty set allows everything.
func (s extensionSet) allows(filename string) bool {
	if len(s) == 0 {
		return true
	}
	_, ok := s[strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), ".")]
	return ok
}

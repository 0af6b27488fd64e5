package model

import (
	"path/filepath"
	"strings"
)

type Document struct {
	Name     string
	Path     string
	Content  []byte
	MIMEType string
	Size     int64
	Hash     string
	Ctime    int64
	Mtime    int64
}

// Stem is the file name without directory and extension. Chunk ids derive from it.
func (d *Document) Stem() string {
	return FileStem(d.Name)
}

func (d *Document) Extension() string {
	return strings.TrimPrefix(strings.ToLower(filepath.Ext(d.Name)), ".")
}

func FileStem(name string) string {
	base := filepath.Base(name)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

type Chunk struct {
	Index int
	Start int
	Text  string
}

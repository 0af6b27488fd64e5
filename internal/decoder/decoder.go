package decoder

import (
	"context"
	"fmt"
	"mime"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/gabriel-vasile/mimetype"

	appErr "github.com/Guiss-Guiss/ScriptumAI/internal/pkg/errors"
)

const (
	MIMEPlain    = "text/plain"
	MIMEMarkdown = "text/markdown"
	MIMEHTML     = "text/html"
	MIMEPDF      = "application/pdf"
	MIMEDocx     = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
)

type Decoder interface {
	Decode(ctx context.Context, data []byte) (string, error)
}

type DecoderFunc func(ctx context.Context, data []byte) (string, error)

func (f DecoderFunc) Decode(ctx context.Context, data []byte) (string, error) {
	return f(ctx, data)
}

type Registry struct {
	mu       sync.RWMutex
	decoders map[string]Decoder
	exts     map[string]string
}

func NewRegistry() *Registry {
	return &Registry{
		decoders: make(map[string]Decoder),
		exts:     make(map[string]string),
	}
}

// Default holds decoders for plain text, markdown, html, pdf and docx.
func Default() *Registry {
	r := NewRegistry()
	r.Register(MIMEPlain, []string{"txt", "text", "log"}, DecoderFunc(decodePlain))
	r.Register(MIMEMarkdown, []string{"md", "markdown"}, DecoderFunc(decodeMarkdown))
	r.Register(MIMEHTML, []string{"html", "htm"}, DecoderFunc(decodeHTML))
	r.Register(MIMEPDF, []string{"pdf"}, DecoderFunc(decodePDF))
	r.Register(MIMEDocx, []string{"docx"}, DecoderFunc(decodeDocx))
	return r
}

func (r *Registry) Register(mimeType string, exts []string, d Decoder) {
	key := baseType(mimeType)
	if key == "" || d == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.decoders[key] = d
	for _, ext := range exts {
		r.exts[normalizeExt(ext)] = key
	}
}

func (r *Registry) SupportedTypes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.decoders))
	for k := range r.decoders {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func (r *Registry) Supports(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.exts[normalizeExt(filepath.Ext(name))]
	return ok
}

// Detect resolves the MIME type of a document from its content, refined by the
// file extension when the content only looks like plain text.
func (r *Registry) Detect(name string, data []byte) (string, error) {
	if strings.TrimSpace(name) == "" {
		return "", fmt.Errorf("%w: empty file name", appErr.ErrUnsupportedInput)
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	textual := false
	for m := mimetype.Detect(data); m != nil; m = m.Parent() {
		key := baseType(m.String())
		if key == MIMEPlain {
			textual = true
			break
		}
		if _, ok := r.decoders[key]; ok {
			return key, nil
		}
	}
	if key, ok := r.exts[normalizeExt(filepath.Ext(name))]; ok {
		if textual || !isTextType(key) {
			return key, nil
		}
	}
	if textual {
		if _, ok := r.decoders[MIMEPlain]; ok {
			return MIMEPlain, nil
		}
	}
	return "", fmt.Errorf("%w: cannot handle %s", appErr.ErrUnsupportedInput, name)
}

func (r *Registry) Decode(ctx context.Context, mimeType string, data []byte) (string, error) {
	r.mu.RLock()
	d := r.decoders[baseType(mimeType)]
	r.mu.RUnlock()
	if d == nil {
		return "", fmt.Errorf("%w: no decoder for %s", appErr.ErrUnsupportedInput, mimeType)
	}
	text, err := d.Decode(ctx, data)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", appErr.ErrDecode, mimeType, err)
	}
	return text, nil
}

func isTextType(mimeType string) bool {
	return strings.HasPrefix(mimeType, "text/")
}

func baseType(mimeType string) string {
	mediaType, _, err := mime.ParseMediaType(mimeType)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(mimeType))
	}
	return mediaType
}

func normalizeExt(ext string) string {
	return strings.TrimPrefix(strings.ToLower(strings.TrimSpace(ext)), ".")
}

package chunker

import (
	"fmt"

	"github.com/Guiss-Guiss/ScriptumAI/internal/model"
	appErr "github.com/Guiss-Guiss/ScriptumAI/internal/pkg/errors"
)

const (
	DefaultSize    = 1000
	DefaultOverlap = 200
)

type Chunker struct {
	size    int
	overlap int
}

func New(size, overlap int) (*Chunker, error) {
	if err := validate(size, overlap); err != nil {
		return nil, err
	}
	return &Chunker{size: size, overlap: overlap}, nil
}

func (c *Chunker) Size() int {
	return c.size
}

func (c *Chunker) Overlap() int {
	return c.overlap
}

func (c *Chunker) Split(text string) []model.Chunk {
	chunks, _ := Split(text, c.size, c.overlap)
	return chunks
}

// Split cuts text into windows of size characters, each starting size-overlap
// characters after the previous one. The last window may be shorter.
func Split(text string, size, overlap int) ([]model.Chunk, error) {
	if err := validate(size, overlap); err != nil {
		return nil, err
	}
	runes := []rune(text)
	total := len(runes)
	if total == 0 {
		return nil, nil
	}
	step := size - overlap
	chunks := make([]model.Chunk, 0, Count(total, size, overlap))
	for start := 0; ; start += step {
		end := start + size
		if end > total {
			end = total
		}
		chunks = append(chunks, model.Chunk{
			Index: len(chunks),
			Start: start,
			Text:  string(runes[start:end]),
		})
		if end == total {
			break
		}
	}
	return chunks, nil
}

// Count returns how many chunks Split produces for a text of length characters.
func Count(length, size, overlap int) int {
	if length <= 0 || size <= 0 || overlap < 0 || overlap >= size {
		return 0
	}
	step := size - overlap
	rest := length - overlap
	if rest <= 0 {
		return 1
	}
	return (rest + step - 1) / step
}

func validate(size, overlap int) error {
	if size <= 0 {
		return fmt.Errorf("%w: chunk size must be positive, got %d", appErr.ErrConfiguration, size)
	}
	if overlap < 0 || overlap >= size {
		return fmt.Errorf("%w: chunk overlap %d must be in [0, %d)", appErr.ErrConfiguration, overlap, size)
	}
	return nil
}

package vectorstore

import (
	"context"
	"fmt"
	"sync"
)

// Registry maps each supported language to its collection, created on first use.
type Registry struct {
	store     Store
	base      string
	languages []string
	dimension int

	mu          sync.Mutex
	collections map[string]Collection
}

func NewRegistry(store Store, base string, languages []string, dimension int) *Registry {
	return &Registry{
		store:       store,
		base:        base,
		languages:   append([]string(nil), languages...),
		dimension:   dimension,
		collections: make(map[string]Collection, len(languages)),
	}
}

func (r *Registry) CollectionName(lang string) string {
	return r.base + "_" + lang
}

func (r *Registry) Languages() []string {
	return append([]string(nil), r.languages...)
}

func (r *Registry) supports(lang string) bool {
	for _, l := range r.languages {
		if l == lang {
			return true
		}
	}
	return false
}

func (r *Registry) Collection(ctx context.Context, lang string) (Collection, error) {
	if !r.supports(lang) {
		return nil, fmt.Errorf("language %q is not supported", lang)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.collections[lang]; ok {
		return c, nil
	}
	c, err := r.store.CreateOrGetCollection(ctx, r.CollectionName(lang), r.dimension, DistanceCosine)
	if err != nil {
		return nil, fmt.Errorf("open collection %s: %w", r.CollectionName(lang), err)
	}
	r.collections[lang] = c
	return c, nil
}

// LanguageCollection pairs a collection with the language it serves.
type LanguageCollection struct {
	Language   string
	Collection Collection
}

// All returns every collection in supported-language order, stopping at the first failure.
func (r *Registry) All(ctx context.Context) ([]LanguageCollection, error) {
	out := make([]LanguageCollection, 0, len(r.languages))
	for _, lang := range r.languages {
		c, err := r.Collection(ctx, lang)
		if err != nil {
			return nil, err
		}
		out = append(out, LanguageCollection{Language: lang, Collection: c})
	}
	return out, nil
}

func (r *Registry) Health(ctx context.Context) error {
	return r.store.Heartbeat(ctx)
}

func (r *Registry) Dimension() int {
	return r.dimension
}

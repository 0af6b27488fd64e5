package ai

import (
	"fmt"

	"github.com/Guiss-Guiss/ScriptumAI/internal/config"
)

// Build wires providers and model groups from config. The generator is nil when
// no generator is configured.
func Build(cfg config.AIConfig) (IGenerator, IEmbedder, error) {
	providers := make(map[string]IProvider, len(cfg.Providers))
	for _, pc := range cfg.Providers {
		p, err := NewProvider(pc.Type, pc.Data)
		if err != nil {
			return nil, nil, fmt.Errorf("init ai provider %s: %w", pc.Name, err)
		}
		providers[pc.Name] = p
	}
	embedders := make([]EmbedderEntry, 0, len(cfg.Embedders))
	for _, ref := range cfg.Embedders {
		p, ok := providers[ref.Provider]
		if !ok {
			return nil, nil, fmt.Errorf("embedder %s: unknown provider %s", ref.Model, ref.Provider)
		}
		embedders = append(embedders, EmbedderEntry{Name: ref.Model, Embedder: NewEmbedder(p, ref.Model)})
	}
	generators := make([]GeneratorEntry, 0, len(cfg.Generators))
	for _, ref := range cfg.Generators {
		p, ok := providers[ref.Provider]
		if !ok {
			return nil, nil, fmt.Errorf("generator %s: unknown provider %s", ref.Model, ref.Provider)
		}
		generators = append(generators, GeneratorEntry{Name: ref.Model, Generator: NewGenerator(p, ref.Model)})
	}
	embedder := NewGroupEmbedder(embedders)
	if embedder == nil {
		return nil, nil, fmt.Errorf("no embedder configured")
	}
	return NewGroupGenerator(generators), embedder, nil
}

func ModelNames(refs []config.AIModelConfig) []string {
	out := make([]string, 0, len(refs))
	for _, ref := range refs {
		out = append(out, ref.Model)
	}
	return out
}

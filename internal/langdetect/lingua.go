package langdetect

import (
	"strings"

	"github.com/pemistahl/lingua-go"
)

type linguaDetector struct {
	detector lingua.LanguageDetector
}

// NewLinguaDetector restricts lingua to the given ISO 639-1 codes. Codes lingua does
// not know are ignored. Returns nil when fewer than two languages remain.
func NewLinguaDetector(codes []string) Detector {
	langs := linguaLanguages(codes)
	if len(langs) < 2 {
		return nil
	}
	detector := lingua.NewLanguageDetectorBuilder().
		FromLanguages(langs...).
		WithPreloadedLanguageModels().
		Build()
	return &linguaDetector{detector: detector}
}

func (d *linguaDetector) Detect(text string) (string, bool) {
	lang, ok := d.detector.DetectLanguageOf(text)
	if !ok {
		return "", false
	}
	return strings.ToLower(lang.IsoCode639_1().String()), true
}

func linguaLanguages(codes []string) []lingua.Language {
	byCode := make(map[string]lingua.Language)
	for _, lang := range lingua.AllLanguages() {
		byCode[strings.ToLower(lang.IsoCode639_1().String())] = lang
	}
	out := make([]lingua.Language, 0, len(codes))
	seen := make(map[lingua.Language]struct{}, len(codes))
	for _, code := range codes {
		lang, ok := byCode[normalize(code)]
		if !ok {
			continue
		}
		if _, dup := seen[lang]; dup {
			continue
		}
		seen[lang] = struct{}{}
		out = append(out, lang)
	}
	return out
}

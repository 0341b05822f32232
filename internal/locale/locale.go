// Package locale resolves the UI language from the path segment or the
// Accept-Language header.
package locale

import (
	"fmt"
	"strings"

	"github.com/smallbiznis/portal/internal/config"
	"golang.org/x/text/language"
)

const Fallback = "en"

// Supported lists every locale the portal serves, in display order.
var Supported = []string{"en", "ja", "ko", "zh-CN", "zh-TW", "es", "fr", "de", "pt", "vi", "th"}

type Resolver struct {
	def     string
	codes   []string
	byLower map[string]string
	matcher language.Matcher
}

func NewResolver(cfg config.Config) (*Resolver, error) {
	return New(cfg.DefaultLocale)
}

// New builds a resolver whose fallback is def. An empty def means Fallback.
func New(def string) (*Resolver, error) {
	byLower := make(map[string]string, len(Supported))
	for _, code := range Supported {
		byLower[strings.ToLower(code)] = code
	}

	def = strings.TrimSpace(def)
	if def == "" {
		def = Fallback
	}
	canonical, ok := byLower[strings.ToLower(def)]
	if !ok {
		return nil, fmt.Errorf("unsupported default locale %q", def)
	}

	// The matcher falls back to its first tag, so the default goes first.
	codes := make([]string, 0, len(Supported))
	codes = append(codes, canonical)
	for _, code := range Supported {
		if code != canonical {
			codes = append(codes, code)
		}
	}
	tags := make([]language.Tag, 0, len(codes))
	for _, code := range codes {
		tags = append(tags, language.MustParse(code))
	}

	return &Resolver{
		def:     canonical,
		codes:   codes,
		byLower: byLower,
		matcher: language.NewMatcher(tags),
	}, nil
}

func (r *Resolver) Default() string { return r.def }

// IsSupported reports whether segment names a supported locale, ignoring case.
func (r *Resolver) IsSupported(segment string) bool {
	_, ok := r.byLower[strings.ToLower(strings.TrimSpace(segment))]
	return ok
}

// Resolve returns the canonical code for segment or the default locale.
func (r *Resolver) Resolve(segment string) string {
	if code, ok := r.byLower[strings.ToLower(strings.TrimSpace(segment))]; ok {
		return code
	}
	return r.def
}

// Match picks the best supported locale for an Accept-Language header.
func (r *Resolver) Match(acceptLanguage string) string {
	tags, _, err := language.ParseAcceptLanguage(acceptLanguage)
	if err != nil || len(tags) == 0 {
		return r.def
	}
	_, index, confidence := r.matcher.Match(tags...)
	if confidence == language.No || index < 0 || index >= len(r.codes) {
		return r.def
	}
	return r.codes[index]
}

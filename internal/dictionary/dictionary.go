// Package dictionary serves localized UI strings from embedded YAML bundles.
package dictionary

import (
	"embed"
	"fmt"
	"io/fs"
	"path"
	"strings"

	"github.com/smallbiznis/portal/internal/locale"
	"gopkg.in/yaml.v3"
)

//go:embed bundles/*.yaml
var embeddedBundles embed.FS

const (
	PageMessages = "messages"
	PageErrors   = "errors"
)

type pages map[string]map[string]string

type Dictionary struct {
	def     string
	bundles map[string]pages
}

// Bundle is one page's strings with the default language underneath.
type Bundle struct {
	Locale   string
	Page     string
	strings  map[string]string
	fallback map[string]string
}

// NewDefault loads the bundles with English underneath every locale.
func NewDefault() (*Dictionary, error) {
	return New(locale.Fallback)
}

// NewForResolver puts the resolver's default language underneath every
// locale. A default without its own bundle gets English.
func NewForResolver(r *locale.Resolver) (*Dictionary, error) {
	d, err := New(locale.Fallback)
	if err != nil {
		return nil, err
	}
	if _, ok := d.bundles[r.Default()]; ok {
		d.def = r.Default()
	}
	return d, nil
}

// New loads every embedded bundle. def must have a bundle of its own.
func New(def string) (*Dictionary, error) {
	return load(embeddedBundles, "bundles", def)
}

func load(fsys fs.FS, dir, def string) (*Dictionary, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("read bundles: %w", err)
	}

	d := &Dictionary{def: def, bundles: make(map[string]pages, len(entries))}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".yaml") {
			continue
		}
		raw, err := fs.ReadFile(fsys, path.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("read bundle %s: %w", name, err)
		}
		var parsed pages
		if err := yaml.Unmarshal(raw, &parsed); err != nil {
			return nil, fmt.Errorf("parse bundle %s: %w", name, err)
		}
		d.bundles[strings.TrimSuffix(name, ".yaml")] = parsed
	}

	if _, ok := d.bundles[def]; !ok {
		return nil, fmt.Errorf("missing bundle for default locale %q", def)
	}
	return d, nil
}

// Lookup returns the page bundle for code. Locales without their own bundle
// or page get the default language.
func (d *Dictionary) Lookup(code, page string) Bundle {
	fallback := d.bundles[d.def][page]
	if selected, ok := d.bundles[code]; ok {
		if strs, ok := selected[page]; ok {
			return Bundle{Locale: code, Page: page, strings: strs, fallback: fallback}
		}
	}
	return Bundle{Locale: d.def, Page: page, strings: fallback, fallback: fallback}
}

// Message is shorthand for the messages page.
func (d *Dictionary) Message(code, key string) string {
	return d.Lookup(code, PageMessages).T(key)
}

// Error localizes an adapter error kind.
func (d *Dictionary) Error(code, kind string) string {
	b := d.Lookup(code, PageErrors)
	if v, ok := b.Get(kind); ok {
		return v
	}
	return b.T("unknown")
}

// Get returns the localized value without falling back to the key.
func (b Bundle) Get(key string) (string, bool) {
	if v, ok := b.strings[key]; ok && v != "" {
		return v, true
	}
	if v, ok := b.fallback[key]; ok && v != "" {
		return v, true
	}
	return "", false
}

// T falls back to the default language and finally to the key itself.
func (b Bundle) T(key string) string {
	if v, ok := b.Get(key); ok {
		return v
	}
	return key
}

// Format replaces {name} placeholders in the value for key.
func (b Bundle) Format(key string, args map[string]string) string {
	out := b.T(key)
	for name, value := range args {
		out = strings.ReplaceAll(out, "{"+name+"}", value)
	}
	return out
}

// All returns the page as a flat map with the default language filled in.
func (b Bundle) All() map[string]string {
	out := make(map[string]string, len(b.fallback)+len(b.strings))
	for k, v := range b.fallback {
		out[k] = v
	}
	for k, v := range b.strings {
		if v != "" {
			out[k] = v
		}
	}
	return out
}

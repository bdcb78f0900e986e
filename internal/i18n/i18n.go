// Package i18n loads the embedded translation files.
package i18n

import (
	"embed"
	"path"
	"sync"

	goi18n "github.com/nicksnyder/go-i18n/i18n"
)

const DefaultLanguage = "en-us"

//go:embed locales/*.json
var locales embed.FS

var (
	loadOnce sync.Once
	loadErr  error
)

// Load parses every embedded translation file into the global bundle. Safe to call repeatedly.
func Load() error {
	loadOnce.Do(func() {
		entries, err := locales.ReadDir("locales")
		if err != nil {
			loadErr = err
			return
		}
		for _, e := range entries {
			data, err := locales.ReadFile(path.Join("locales", e.Name()))
			if err != nil {
				loadErr = err
				return
			}
			if err := goi18n.ParseTranslationFileBytes(e.Name(), data); err != nil {
				loadErr = err
				return
			}
		}
	})
	return loadErr
}

// Tfunc returns the translate function for lang, falling back to DefaultLanguage.
func Tfunc(lang string) (goi18n.TranslateFunc, error) {
	if err := Load(); err != nil {
		return nil, err
	}
	if lang == "" {
		lang = DefaultLanguage
	}
	return goi18n.Tfunc(lang, DefaultLanguage)
}

// MustTfunc is Tfunc for wiring code; it panics when the embedded files are broken.
func MustTfunc(lang string) goi18n.TranslateFunc {
	T, err := Tfunc(lang)
	if err != nil {
		panic(err)
	}
	return T
}

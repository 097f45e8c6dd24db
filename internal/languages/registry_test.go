package languages

import (
	"errors"
	"testing"

	"github.com/optimus-oj/judger/internal/model"
)

func TestNewRegistryCoversAllLanguages(t *testing.T) {
	reg := NewRegistry()
	for _, lang := range model.AllLanguages() {
		cfg, err := reg.Get(lang)
		if err != nil {
			t.Fatalf("Get(%s): %v", lang, err)
		}
		if cfg.Language != lang {
			t.Fatalf("Get(%s) returned config for %s", lang, cfg.Language)
		}
		if len(cfg.RunCmd) == 0 {
			t.Fatalf("%s has no RunCmd", lang)
		}
		if cfg.Compiles && len(cfg.CompileCmd) == 0 {
			t.Fatalf("%s claims to compile but has no CompileCmd", lang)
		}
	}
}

func TestRegistryGetUnknownLanguage(t *testing.T) {
	reg := NewRegistry()
	_, err := reg.Get(model.Language("cobol"))
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestImagePrefixMatchesLanguageName(t *testing.T) {
	reg := NewRegistry()
	for _, lang := range model.AllLanguages() {
		cfg, _ := reg.Get(lang)
		want := "optimus-" + string(lang) + ":"
		if cfg.ImagePrefix != want {
			t.Fatalf("%s: ImagePrefix = %q, want %q", lang, cfg.ImagePrefix, want)
		}
	}
}

func TestListReturnsEveryRegisteredLanguage(t *testing.T) {
	reg := NewRegistry()
	all := reg.List()
	if len(all) != len(model.AllLanguages()) {
		t.Fatalf("List() returned %d configs, want %d", len(all), len(model.AllLanguages()))
	}
}

// Package languages is the static per-language configuration the worker
// and sandbox driver read from: which image to run, how much memory and
// CPU to grant it, how source code reaches the container, and which
// exit code signals a compile failure. This is pure data — adding a
// language never touches internal/sandbox or internal/worker.
package languages

import (
	"errors"
	"fmt"
	"sync"

	"github.com/optimus-oj/judger/internal/model"
)

// ErrNotFound is returned by Get for a language with no registered
// RuntimeConfig.
var ErrNotFound = errors.New("languages: runtime config not found")

// CompileErrorExitCode is the exit code reserved, by convention, for
// "compilation failed inside the container" — spec.md leaves the
// convention unstandardized; this repo picks GNU coreutils' own
// timeout-adjacent sentinel, which user programs essentially never
// return on their own.
const CompileErrorExitCode = 124

// RuntimeConfig is everything the sandbox driver needs to run one test
// case for a language, beyond the job-specific source code and input.
type RuntimeConfig struct {
	Language      model.Language
	ImagePrefix   string // e.g. "optimus-python:" — OPTIMUS_IMAGE must start with this
	WorkspaceFile string // filename the source is written to inside the workspace; every language's image reads its source from this path
	CompileCmd    []string
	RunCmd        []string
	MemoryLimitMB int64
	CPUQuota      float64 // fractional CPUs, e.g. 0.5 == half a core
	Compiles      bool
}

// Registry is a map-backed lookup of RuntimeConfig by language, guarded
// by a RWMutex so a hot-reload or test fixture can Register concurrently
// with lookups without a data race.
type Registry struct {
	mu     sync.RWMutex
	byLang map[model.Language]RuntimeConfig
}

// NewRegistry builds a Registry pre-populated with the closed language
// set from internal/model.
func NewRegistry() *Registry {
	r := &Registry{byLang: make(map[model.Language]RuntimeConfig)}
	r.Register(pythonConfig())
	r.Register(javaConfig())
	r.Register(rustConfig())
	return r
}

// Register adds or replaces the RuntimeConfig for cfg.Language.
func (r *Registry) Register(cfg RuntimeConfig) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byLang[cfg.Language] = cfg
}

// Get returns the RuntimeConfig for language, or ErrNotFound.
func (r *Registry) Get(language model.Language) (RuntimeConfig, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cfg, ok := r.byLang[language]
	if !ok {
		return RuntimeConfig{}, fmt.Errorf("%w: %s", ErrNotFound, language)
	}
	return cfg, nil
}

// List returns every registered RuntimeConfig, in no particular order.
func (r *Registry) List() []RuntimeConfig {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]RuntimeConfig, 0, len(r.byLang))
	for _, cfg := range r.byLang {
		out = append(out, cfg)
	}
	return out
}

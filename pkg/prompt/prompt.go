// Package prompt loads ACE's agent prompts from a compiled-in corpus and
// serves them by exact (agent name, semver) key. Prompts are immutable
// content: loading a version never falls back to another one.
package prompt

import (
	"crypto/sha256"
	"embed"
	"encoding/hex"
	"fmt"
	"io/fs"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/worldgraph/ace/pkg/types"
)

//go:embed prompts
var embeddedPrompts embed.FS

// Entry is one loaded prompt version, hashed for audit trails.
type Entry struct {
	ID      string // agent name, e.g. "narrator"
	Version string // semver, e.g. "1.0.0"
	Content string
	Hash    string // sha256 of Content, hex-encoded
}

// Registry is an immutable, loaded-once set of prompt entries.
type Registry struct {
	entries map[string]Entry // key: id + "@" + version
}

type yamlDoc struct {
	Agent    string `yaml:"agent"`
	Versions []struct {
		Version string `yaml:"version"`
		Content string `yaml:"content"`
	} `yaml:"versions"`
}

// Load walks the embedded prompts directory and builds a [Registry]. It is
// called once at startup; the result is safe for concurrent read-only use.
func Load() (*Registry, error) {
	entries := make(map[string]Entry)

	err := fs.WalkDir(embeddedPrompts, "prompts", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(path, ".yaml") {
			return nil
		}

		raw, err := embeddedPrompts.ReadFile(path)
		if err != nil {
			return fmt.Errorf("prompt: read %s: %w", path, err)
		}

		var doc yamlDoc
		if err := yaml.Unmarshal(raw, &doc); err != nil {
			return fmt.Errorf("prompt: parse %s: %w", path, err)
		}
		if doc.Agent == "" {
			return fmt.Errorf("prompt: %s missing agent field", path)
		}

		for _, v := range doc.Versions {
			if v.Version == "" {
				return fmt.Errorf("prompt: %s agent %q has a version entry with no version string", path, doc.Agent)
			}
			sum := sha256.Sum256([]byte(v.Content))
			key := promptKey(doc.Agent, v.Version)
			if _, dup := entries[key]; dup {
				return fmt.Errorf("prompt: duplicate entry for agent %q version %q", doc.Agent, v.Version)
			}
			entries[key] = Entry{
				ID:      doc.Agent,
				Version: v.Version,
				Content: v.Content,
				Hash:    hex.EncodeToString(sum[:]),
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &Registry{entries: entries}, nil
}

func promptKey(agent, version string) string { return agent + "@" + version }

// Get returns the exact (agent, version) entry. It never falls back to a
// different version; a miss is a Validation error naming the versions that
// are actually available for agent.
func (r *Registry) Get(agent, version string) (Entry, error) {
	if e, ok := r.entries[promptKey(agent, version)]; ok {
		return e, nil
	}

	available := r.Versions(agent)
	if len(available) == 0 {
		return Entry{}, types.NewError(types.KindValidation,
			fmt.Sprintf("prompt: no prompts registered for agent %q", agent), nil)
	}
	return Entry{}, types.NewError(types.KindValidation,
		fmt.Sprintf("prompt: agent %q has no version %q; available: %s", agent, version, strings.Join(available, ", ")), nil)
}

// Versions lists every version registered for agent, ascending.
func (r *Registry) Versions(agent string) []string {
	var out []string
	for key, e := range r.entries {
		if e.ID == agent {
			out = append(out, e.Version)
		}
		_ = key
	}
	sort.Strings(out)
	return out
}

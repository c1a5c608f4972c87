// Package config is the hierarchical key/section configuration surface
// consumed by the apply driver and produced by the create path (spec §6
// "Configuration surface"): file-resource, mbr, uboot-environment, and
// per-task sections, backed by an INI-flavored store with a `$(VAR)`
// macro expansion pre-pass.
package config

import (
	"bytes"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/Unknwon/goconfig"
)

// Store wraps a goconfig file with the typed section accessors fwup needs.
// Section names are flattened into a single INI namespace since goconfig
// has no native nesting: "file-resource.<name>", "mbr.<name>" with
// per-partition keys "partition.<n>.<field>", "uboot-environment.<name>",
// and "task.<name>".
type Store struct {
	cfg *goconfig.ConfigFile
}

// New returns an empty store, for the create path to populate. goconfig
// exposes no empty-file constructor, so this loads zero bytes of
// configuration instead.
func New() *Store {
	cfg, err := goconfig.LoadFromData([]byte{})
	if err != nil {
		// LoadFromData over zero bytes only fails if the temp dir it
		// stages through is unwritable; nothing sensible to do but stop.
		panic("config: initialize empty store: " + err.Error())
	}
	return &Store{cfg: cfg}
}

// Parse loads a store from serialized configuration text (the archive's
// manifest entry) and applies the `$(VAR)` macro expansion pass.
func Parse(data []byte) (*Store, error) {
	cfg, err := goconfig.LoadFromData(data)
	if err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	s := &Store{cfg: cfg}
	if err := s.expandMacros(); err != nil {
		return nil, err
	}
	return s, nil
}

var macroPattern = regexp.MustCompile(`\$\(([A-Za-z0-9_]+)\)`)

const variableSection = "variable"

// expandMacros substitutes every `$(NAME)` token across all sections with
// the value of NAME from the reserved "variable" section. It is a single
// non-recursive pass: an expanded value is never itself re-scanned.
func (s *Store) expandMacros() error {
	vars, _ := s.cfg.GetSection(variableSection)

	for _, section := range s.cfg.GetSectionList() {
		if section == variableSection {
			continue
		}
		kv, err := s.cfg.GetSection(section)
		if err != nil {
			continue
		}
		for key, val := range kv {
			if !strings.Contains(val, "$(") {
				continue
			}
			var expandErr error
			expanded := macroPattern.ReplaceAllStringFunc(val, func(tok string) string {
				name := macroPattern.FindStringSubmatch(tok)[1]
				v, ok := vars[name]
				if !ok {
					expandErr = fmt.Errorf("config: undefined variable %q referenced in [%s] %s", name, section, key)
					return tok
				}
				return v
			})
			if expandErr != nil {
				return expandErr
			}
			s.cfg.SetValue(section, key, expanded)
		}
	}
	return nil
}

// SetVariable defines a `$(NAME)` macro source value.
func (s *Store) SetVariable(name, value string) {
	s.cfg.SetValue(variableSection, name, value)
}

// Render serializes the store back to INI text, the form the archive's
// manifest entry carries.
func (s *Store) Render() ([]byte, error) {
	var buf bytes.Buffer
	if err := goconfig.SaveConfigData(s.cfg, &buf); err != nil {
		return nil, fmt.Errorf("config: render: %w", err)
	}
	return buf.Bytes(), nil
}

func sectionKeys(s *Store, section, prefix string) map[string]string {
	out := make(map[string]string)
	kv, err := s.cfg.GetSection(section)
	if err != nil {
		return out
	}
	for k, v := range kv {
		if strings.HasPrefix(k, prefix) {
			out[strings.TrimPrefix(k, prefix)] = v
		}
	}
	return out
}

func partitionKey(n int, field string) string {
	return "partition." + strconv.Itoa(n) + "." + field
}

package config

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// FileResource is one `file-resource` section's typed contents. Runs is
// the resource's sparse data/hole run-length list (spec §4.5); it travels
// in the manifest alongside the hash and length since the apply side must
// know a resource's data_size before any action runs, to accumulate
// progress ahead of the run pass.
type FileResource struct {
	HostPath string
	Blake2b  string
	Length   int64
	Runs     []int64
}

func fileResourceSection(name string) string { return "file-resource." + name }

// FileResourceNames lists every declared file-resource section, for the
// create path to walk when assembling an archive.
func (s *Store) FileResourceNames() []string {
	var names []string
	for _, section := range s.cfg.GetSectionList() {
		if name, ok := strings.CutPrefix(section, "file-resource."); ok {
			names = append(names, name)
		}
	}
	return names
}

// FileResource looks up a named file-resource section.
func (s *Store) FileResource(name string) (FileResource, error) {
	section := fileResourceSection(name)
	kv, err := s.cfg.GetSection(section)
	if err != nil {
		return FileResource{}, fmt.Errorf("config: file-resource %q: %w", name, err)
	}
	length, _ := strconv.ParseInt(kv["length"], 10, 64)
	var runs []int64
	for _, tok := range splitCSV(kv["data-runs"]) {
		n, err := strconv.ParseInt(tok, 10, 64)
		if err != nil {
			return FileResource{}, fmt.Errorf("config: file-resource %q: bad data-runs entry %q", name, tok)
		}
		runs = append(runs, n)
	}
	return FileResource{
		HostPath: kv["host-path"],
		Blake2b:  kv["blake2b-256"],
		Length:   length,
		Runs:     runs,
	}, nil
}

// SetFileResource writes a file-resource section.
func (s *Store) SetFileResource(name string, fr FileResource) {
	section := fileResourceSection(name)
	s.cfg.SetValue(section, "host-path", fr.HostPath)
	if len(fr.Runs) > 0 {
		runs := make([]string, len(fr.Runs))
		for i, n := range fr.Runs {
			runs[i] = strconv.FormatInt(n, 10)
		}
		s.cfg.SetValue(section, "data-runs", strings.Join(runs, ","))
	}
	s.cfg.SetValue(section, "blake2b-256", fr.Blake2b)
	s.cfg.SetValue(section, "length", strconv.FormatInt(fr.Length, 10))
}

// MBRPartition is one of the four `mbr` partition sub-entries.
type MBRPartition struct {
	BlockOffset uint32
	BlockCount  uint32
	Type        byte
	Boot        bool
}

// MBRConfig is the `mbr` section's typed contents.
type MBRConfig struct {
	BootstrapCodeHostPath string
	Partitions            [4]MBRPartition
}

func mbrSection(name string) string { return "mbr." + name }

// MBR reads a named mbr section (mbr_write's section_name argument
// addresses one of potentially several, e.g. redundant boot-disk copies).
func (s *Store) MBR(name string) (MBRConfig, error) {
	kv, err := s.cfg.GetSection(mbrSection(name))
	if err != nil {
		return MBRConfig{}, fmt.Errorf("config: mbr section %q: %w", name, err)
	}
	var m MBRConfig
	m.BootstrapCodeHostPath = kv["bootstrap-code-host-path"]
	for n := 0; n < 4; n++ {
		off, _ := strconv.ParseUint(kv[partitionKey(n, "block-offset")], 10, 32)
		count, _ := strconv.ParseUint(kv[partitionKey(n, "block-count")], 10, 32)
		typ, _ := strconv.ParseUint(kv[partitionKey(n, "type")], 0, 8)
		boot := kv[partitionKey(n, "boot")] == "true"
		m.Partitions[n] = MBRPartition{
			BlockOffset: uint32(off),
			BlockCount:  uint32(count),
			Type:        byte(typ),
			Boot:        boot,
		}
	}
	return m, nil
}

// SetMBR writes a named mbr section.
func (s *Store) SetMBR(name string, m MBRConfig) {
	section := mbrSection(name)
	s.cfg.SetValue(section, "bootstrap-code-host-path", m.BootstrapCodeHostPath)
	for n, p := range m.Partitions {
		s.cfg.SetValue(section, partitionKey(n, "block-offset"), strconv.FormatUint(uint64(p.BlockOffset), 10))
		s.cfg.SetValue(section, partitionKey(n, "block-count"), strconv.FormatUint(uint64(p.BlockCount), 10))
		s.cfg.SetValue(section, partitionKey(n, "type"), fmt.Sprintf("0x%02x", p.Type))
		boot := "false"
		if p.Boot {
			boot = "true"
		}
		s.cfg.SetValue(section, partitionKey(n, "boot"), boot)
	}
}

// UbootEnvironment is the `uboot-environment` section's typed contents.
type UbootEnvironment struct {
	BlockOffset uint32
	BlockCount  uint32
}

func ubootSection(name string) string { return "uboot-environment." + name }

// UbootEnvironment reads a named uboot-environment section
// (uboot_* actions address one of potentially several by section_name).
func (s *Store) UbootEnvironment(name string) (UbootEnvironment, error) {
	kv, err := s.cfg.GetSection(ubootSection(name))
	if err != nil {
		return UbootEnvironment{}, fmt.Errorf("config: uboot-environment section %q: %w", name, err)
	}
	off, _ := strconv.ParseUint(kv["block-offset"], 10, 32)
	count, _ := strconv.ParseUint(kv["block-count"], 10, 32)
	return UbootEnvironment{BlockOffset: uint32(off), BlockCount: uint32(count)}, nil
}

// SetUbootEnvironment writes a named uboot-environment section.
func (s *Store) SetUbootEnvironment(name string, u UbootEnvironment) {
	section := ubootSection(name)
	s.cfg.SetValue(section, "block-offset", strconv.FormatUint(uint64(u.BlockOffset), 10))
	s.cfg.SetValue(section, "block-count", strconv.FormatUint(uint64(u.BlockCount), 10))
}

// FunList is an `[argc, name, arg1, ...]` action argv stream, stored as
// given; tuple validation happens in the action package.
// Funlists are stored as JSON arrays within a single INI value: goconfig
// only models scalar key=value pairs, and a ragged string array has no
// natural single-line INI encoding, so this one corner uses stdlib
// encoding/json rather than stretching the section/key store to fit.
type FunList []string

func taskSection(name string) string { return "task." + name }

// TaskNames lists every declared task section, for the create path to walk
// when validating funlists ahead of archive assembly.
func (s *Store) TaskNames() []string {
	var names []string
	for _, section := range s.cfg.GetSectionList() {
		if name, ok := strings.CutPrefix(section, "task."); ok {
			names = append(names, name)
		}
	}
	return names
}

func (s *Store) getFunList(taskName, key string) (FunList, error) {
	raw, err := s.cfg.GetValue(taskSection(taskName), key)
	if err != nil || raw == "" {
		return nil, nil
	}
	var fl FunList
	if err := json.Unmarshal([]byte(raw), &fl); err != nil {
		return nil, fmt.Errorf("config: task %q %s: %w", taskName, key, err)
	}
	return fl, nil
}

func (s *Store) setFunList(taskName, key string, fl FunList) error {
	raw, err := json.Marshal(fl)
	if err != nil {
		return err
	}
	s.cfg.SetValue(taskSection(taskName), key, string(raw))
	return nil
}

// TaskOnInit returns a task's on-init funlist, if any.
func (s *Store) TaskOnInit(taskName string) (FunList, error) {
	return s.getFunList(taskName, "on-init")
}

// SetTaskOnInit sets a task's on-init funlist.
func (s *Store) SetTaskOnInit(taskName string, fl FunList) error {
	return s.setFunList(taskName, "on-init", fl)
}

// TaskOnFinish returns a task's on-finish funlist, if any.
func (s *Store) TaskOnFinish(taskName string) (FunList, error) {
	return s.getFunList(taskName, "on-finish")
}

// SetTaskOnFinish sets a task's on-finish funlist.
func (s *Store) SetTaskOnFinish(taskName string, fl FunList) error {
	return s.setFunList(taskName, "on-finish", fl)
}

// TaskOnResource returns the funlist a task registered for the named
// resource event. Whether that event is optional is reported separately by
// ResourceOptional.
func (s *Store) TaskOnResource(taskName, resourceName string) (FunList, error) {
	return s.getFunList(taskName, "on-resource."+resourceName)
}

// SetTaskOnResource sets a task's on-resource funlist for resourceName.
func (s *Store) SetTaskOnResource(taskName, resourceName string, fl FunList) error {
	return s.setFunList(taskName, "on-resource."+resourceName, fl)
}

// TaskOnResourceNames lists every resource name a task has registered an
// on-resource funlist for, in no particular order (the apply driver uses
// it to total progress and to detect resources the archive never
// delivered; create uses it to validate on-resource funlists).
func (s *Store) TaskOnResourceNames(taskName string) []string {
	kv := sectionKeys(s, taskSection(taskName), "on-resource.")
	names := make([]string, 0, len(kv))
	for name := range kv {
		names = append(names, name)
	}
	return names
}

// TaskRequires returns every require-* key in a task section (e.g.
// require-fat-version, require-partition-offset), unparsed, since each
// require kind has its own argument shape.
func (s *Store) TaskRequires(taskName string) map[string]string {
	return sectionKeys(s, taskSection(taskName), "require-")
}

// SetTaskRequire sets a single require-* key on a task section.
func (s *Store) SetTaskRequire(taskName, requireName, value string) {
	s.cfg.SetValue(taskSection(taskName), "require-"+requireName, value)
}

// ResourceOptional reports whether taskName declares resourceName's
// on-resource event optional, per the `require-resource-optional`
// convention: a comma-separated list of resource names that may be absent
// from the archive without that being fatal.
func (s *Store) ResourceOptional(taskName, resourceName string) bool {
	raw, err := s.cfg.GetValue(taskSection(taskName), "require-resource-optional")
	if err != nil {
		return false
	}
	for _, name := range splitCSV(raw) {
		if name == resourceName {
			return true
		}
	}
	return false
}

func splitCSV(s string) []string {
	var out []string
	start := 0
	for i := 0; i <= len(s); i++ {
		if i == len(s) || s[i] == ',' {
			if i > start {
				out = append(out, s[start:i])
			}
			start = i + 1
		}
	}
	return out
}

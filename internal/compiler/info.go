package compiler

import (
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/mod/semver"
	"gopkg.in/yaml.v3"

	"aura/internal/trampoline"
)

// ClassInfo is written next to each compiled class. It carries what the
// link stage needs without reparsing the class and lets later builds
// reuse the output.
type ClassInfo struct {
	Class       string                  `yaml:"class"`
	Version     string                  `yaml:"version"`
	Trampolines []trampoline.Trampoline `yaml:"trampolines,omitempty"`
	Catches     []string                `yaml:"catches,omitempty"`
	CWrappers   []CWrapper              `yaml:"cwrappers,omitempty"`
}

// NewClassInfo describes res.
func NewClassInfo(res *ClassResult) *ClassInfo {
	return &ClassInfo{
		Class:       res.Class,
		Version:     Version,
		Trampolines: res.Trampolines.List(),
		Catches:     res.Catches,
		CWrappers:   res.CWrappers,
	}
}

// Current reports whether the info was produced by a compiler whose
// output is interchangeable with this one's.
func (ci *ClassInfo) Current() bool {
	return semver.IsValid(ci.Version) && semver.Compare(ci.Version, Version) == 0
}

// ReadClassInfo loads an info file.
func ReadClassInfo(path string) (*ClassInfo, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var ci ClassInfo
	if err := yaml.Unmarshal(data, &ci); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &ci, nil
}

// Write stores the info at path.
func (ci *ClassInfo) Write(path string) error {
	data, err := yaml.Marshal(ci)
	if err != nil {
		return err
	}
	return writeFile(path, data)
}

// classFile returns the output path of class with extension ext under
// dir. Package segments become directories.
func classFile(dir, class, ext string) string {
	return filepath.Join(dir, filepath.FromSlash(class)) + ext
}

func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

package compiler

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/dlclark/regexp2"
	"gopkg.in/yaml.v3"

	"aura/internal/codegen"
)

// Version is written into class info files. Cached output produced by an
// older compiler is recompiled.
const Version = "v0.4.0"

// Config holds everything a compilation needs besides the class path.
// It is read-only once compilation starts.
type Config struct {
	// Threads bounds the number of classes compiled concurrently.
	Threads int `yaml:"threads"`
	// Debug disables intrinsics so every call takes the generic path.
	Debug bool `yaml:"debug"`
	// Clean ignores cached output.
	Clean bool `yaml:"clean"`
	// ShadowFrames makes compiled methods maintain shadow frames with
	// line numbers for stack traces.
	ShadowFrames bool `yaml:"shadowFrames"`

	OS   string `yaml:"os"`
	Arch string `yaml:"arch"`

	ClassPath []string `yaml:"classpath"`
	OutputDir string   `yaml:"output"`
	CacheDir  string   `yaml:"cache"`

	MainClass string `yaml:"main"`
	// Roots are ANT-style class name patterns (com.example.**) selecting
	// the classes compiled in addition to the main class.
	Roots []string `yaml:"roots"`

	// Marshalers register marshaler classes for value types that do not
	// name one themselves.
	Marshalers []MarshalerEntry `yaml:"marshalers"`

	SkipLink bool `yaml:"skipLink"`

	Logger *slog.Logger    `yaml:"-"`
	Target *codegen.Target `yaml:"-"`
}

// MarshalerEntry binds a Java type to the class holding its marshaler
// methods. Names are dotted or internal class names.
type MarshalerEntry struct {
	Type  string `yaml:"type"`
	Class string `yaml:"class"`
}

// ReadConfig reads a YAML config file without filling defaults, so
// callers can override settings before Normalize derives the rest.
func ReadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var c Config
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &c, nil
}

// LoadConfig reads a YAML config file and normalizes it.
func LoadConfig(path string) (*Config, error) {
	c, err := ReadConfig(path)
	if err != nil {
		return nil, err
	}
	if err := c.Normalize(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

// Normalize fills defaults and resolves the target.
func (c *Config) Normalize() error {
	if c.Threads <= 0 {
		c.Threads = runtime.GOMAXPROCS(0)
	}
	if c.OS == "" {
		c.OS = runtime.GOOS
	}
	if c.Arch == "" {
		c.Arch = runtime.GOARCH
	}
	if c.OutputDir == "" {
		c.OutputDir = "build"
	}
	if c.CacheDir == "" {
		c.CacheDir = filepath.Join(c.OutputDir, "cache")
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	c.MainClass = internalName(c.MainClass)
	for i := range c.Marshalers {
		c.Marshalers[i].Type = internalName(c.Marshalers[i].Type)
		c.Marshalers[i].Class = internalName(c.Marshalers[i].Class)
		if c.Marshalers[i].Type == "" || c.Marshalers[i].Class == "" {
			return fmt.Errorf("marshaler %d: type and class are required", i)
		}
	}
	if c.Target == nil {
		t, err := codegen.ResolveTarget(c.OS, c.Arch)
		if err != nil {
			return err
		}
		c.Target = t
	}
	return nil
}

// RootMatcher reports whether a class was selected by the root patterns.
func (c *Config) RootMatcher() (*RootMatcher, error) {
	return CompileRoots(c.Roots)
}

// ---------------------------------------------------------------------------
// Root patterns
// ---------------------------------------------------------------------------

// RootMatcher matches class names against ANT-style patterns: "*" matches
// within one package segment and "**" across segments.
type RootMatcher struct {
	patterns []*regexp2.Regexp
}

// CompileRoots compiles patterns into a matcher.
func CompileRoots(patterns []string) (*RootMatcher, error) {
	m := &RootMatcher{}
	for _, p := range patterns {
		re, err := regexp2.Compile(antToRegexp(p), regexp2.None)
		if err != nil {
			return nil, fmt.Errorf("root pattern %q: %w", p, err)
		}
		m.patterns = append(m.patterns, re)
	}
	return m, nil
}

// Match reports whether the class with the given internal name matches
// any pattern.
func (m *RootMatcher) Match(class string) bool {
	dotted := strings.ReplaceAll(class, "/", ".")
	for _, re := range m.patterns {
		if ok, err := re.MatchString(dotted); err == nil && ok {
			return true
		}
	}
	return false
}

func antToRegexp(pattern string) string {
	pattern = strings.ReplaceAll(pattern, "/", ".")
	var sb strings.Builder
	sb.WriteByte('^')
	for i := 0; i < len(pattern); i++ {
		switch c := pattern[i]; c {
		case '*':
			if i+1 < len(pattern) && pattern[i+1] == '*' {
				sb.WriteString(".*")
				i++
			} else {
				sb.WriteString(`[^.]*`)
			}
		case '?':
			sb.WriteString(`[^.]`)
		case '.', '$', '^', '+', '(', ')', '[', ']', '{', '}', '|', '\\':
			sb.WriteByte('\\')
			sb.WriteByte(c)
		default:
			sb.WriteByte(c)
		}
	}
	sb.WriteByte('$')
	return sb.String()
}

func internalName(name string) string {
	return strings.ReplaceAll(name, ".", "/")
}

package classpath

import (
	"bufio"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"aura/internal/ast"
	"aura/internal/parser"
	"aura/internal/semantic"
)

// SourceExt is the file extension of class sources on the class path.
const SourceExt = ".jimple"

// servicesDir holds service provider configuration files, one per
// interface, listing implementation class names.
const servicesDir = "META-INF/services"

// ---------------------------------------------------------------------------
// LoadError represents an error while loading the class path.
// ---------------------------------------------------------------------------

type LoadError struct {
	Message string
	Pos     ast.Position
	File    string
}

func (e *LoadError) Error() string {
	if e.File != "" {
		return fmt.Sprintf("%s: line %d, col %d: %s", e.File, e.Pos.Line, e.Pos.Column, e.Message)
	}
	return fmt.Sprintf("line %d, col %d: %s", e.Pos.Line, e.Pos.Column, e.Message)
}

// LoadErrors is the combined error returned by Load.
type LoadErrors []*LoadError

func (es LoadErrors) Error() string {
	msgs := make([]string, len(es))
	for i, e := range es {
		msgs[i] = e.Error()
	}
	return strings.Join(msgs, "\n")
}

// ---------------------------------------------------------------------------
// Entry is one class found on the class path.
// ---------------------------------------------------------------------------

type Entry struct {
	Class   *ast.Class
	File    string    // source file the class was parsed from ("" for in-memory classes)
	ModTime time.Time // modification time of File
}

// ---------------------------------------------------------------------------
// ClassPath resolves classes by internal name across an ordered list of
// directories. Earlier directories shadow later ones, like a JVM class
// path. A ClassPath is populated up front and read-only afterwards, so
// concurrent lookups need no locking.
// ---------------------------------------------------------------------------

type ClassPath struct {
	// Dirs is the ordered list of class path roots.
	Dirs []string

	classes  map[string]*Entry
	services map[string][]string
	errors   []*LoadError
}

// New returns an empty class path.
func New() *ClassPath {
	return &ClassPath{
		classes:  make(map[string]*Entry),
		services: make(map[string][]string),
	}
}

// Load walks every directory, parses each source file and reads service
// provider files. All problems are collected and returned together.
func Load(dirs ...string) (*ClassPath, error) {
	cp := New()
	cp.Dirs = dirs
	for _, dir := range dirs {
		cp.loadDir(dir)
	}
	if len(cp.errors) > 0 {
		return cp, LoadErrors(cp.errors)
	}
	return cp, nil
}

func (cp *ClassPath) loadDir(dir string) {
	if _, err := os.Stat(dir); err != nil {
		cp.addError(ast.Position{}, dir, fmt.Sprintf("class path entry not found: %v", err))
		return
	}
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, _ := filepath.Rel(dir, path)
		rel = filepath.ToSlash(rel)
		switch {
		case strings.HasPrefix(rel, servicesDir+"/"):
			cp.loadServices(path, strings.TrimPrefix(rel, servicesDir+"/"))
		case strings.HasSuffix(path, SourceExt):
			cp.loadSource(path)
		}
		return nil
	})
	if err != nil {
		cp.addError(ast.Position{}, dir, fmt.Sprintf("cannot walk class path entry: %v", err))
	}
}

func (cp *ClassPath) loadSource(path string) {
	content, err := os.ReadFile(path)
	if err != nil {
		cp.addError(ast.Position{}, path, fmt.Sprintf("cannot read class file: %v", err))
		return
	}
	info, err := os.Stat(path)
	if err != nil {
		cp.addError(ast.Position{}, path, err.Error())
		return
	}

	classes, parseErr := parser.ParseSource(string(content))
	if parseErr != nil {
		cp.addError(ast.Position{}, path, fmt.Sprintf("parse error: %v", parseErr))
		return
	}
	for _, d := range semantic.Analyze(classes) {
		if d.Severity == semantic.Error {
			cp.addError(d.Pos, path, d.Error())
		}
	}

	for _, c := range classes {
		c.Source = path
		if _, shadowed := cp.classes[c.Name]; shadowed {
			continue
		}
		cp.classes[c.Name] = &Entry{Class: c, File: path, ModTime: info.ModTime()}
	}
}

// loadServices reads a provider configuration file: one class name per
// line, '#' starts a comment.
func (cp *ClassPath) loadServices(path string, iface string) {
	f, err := os.Open(path)
	if err != nil {
		cp.addError(ast.Position{}, path, fmt.Sprintf("cannot read service file: %v", err))
		return
	}
	defer f.Close()

	key := strings.ReplaceAll(iface, ".", "/")
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := sc.Text()
		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = line[:i]
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		cp.services[key] = appendUnique(cp.services[key], strings.ReplaceAll(line, ".", "/"))
	}
	if err := sc.Err(); err != nil {
		cp.addError(ast.Position{}, path, err.Error())
	}
}

func appendUnique(list []string, s string) []string {
	for _, x := range list {
		if x == s {
			return list
		}
	}
	return append(list, s)
}

// addError records a load error.
func (cp *ClassPath) addError(pos ast.Position, file string, msg string) {
	cp.errors = append(cp.errors, &LoadError{
		Message: msg,
		Pos:     pos,
		File:    file,
	})
}

// Add registers an in-memory class. An existing class with the same name
// is kept.
func (cp *ClassPath) Add(c *ast.Class) {
	if _, ok := cp.classes[c.Name]; ok {
		return
	}
	cp.classes[c.Name] = &Entry{Class: c, File: c.Source}
}

// AddService registers impl as a provider of iface.
func (cp *ClassPath) AddService(iface, impl string) {
	cp.services[iface] = appendUnique(cp.services[iface], impl)
}

// Lookup returns the class with the given internal name, or nil.
func (cp *ClassPath) Lookup(name string) *ast.Class {
	if e := cp.classes[name]; e != nil {
		return e.Class
	}
	return nil
}

// Entry returns the class path entry for name, or nil.
func (cp *ClassPath) Entry(name string) *Entry {
	return cp.classes[name]
}

// Names returns the internal names of all classes, sorted.
func (cp *ClassPath) Names() []string {
	names := make([]string, 0, len(cp.classes))
	for n := range cp.classes {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// ServiceImplementations returns the providers registered for iface.
func (cp *ClassPath) ServiceImplementations(iface string) []string {
	return cp.services[iface]
}

// IsSubclass reports whether class name is super or extends it, walking
// the super class chain through the class path. A cyclic chain is not a
// subclass of anything outside the cycle.
func (cp *ClassPath) IsSubclass(name, super string) bool {
	seen := make(map[string]bool)
	for n := name; n != "" && !seen[n]; {
		seen[n] = true
		if n == super {
			return true
		}
		c := cp.Lookup(n)
		if c == nil {
			return false
		}
		n = c.Super
	}
	return false
}

package compiler

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/schollz/progressbar/v3"
	"golang.org/x/sync/errgroup"
	"golang.org/x/term"

	"aura/internal/classpath"
	"aura/internal/trampoline"
)

// AppCompiler compiles the closure of classes reachable from the roots,
// one class per worker, and produces the link inputs.
type AppCompiler struct {
	Config  *Config
	Classes *classpath.ClassPath

	compiler    *ClassCompiler
	trampolines *trampoline.Registry
	cwrappers   *SymbolTable

	// scheduled is only touched between rounds.
	scheduled map[string]bool

	mu    sync.Mutex
	infos map[string]*ClassInfo
}

// AppResult lists what a build produced.
type AppResult struct {
	// Classes are the compiled class names, sorted.
	Classes []string
	// Modules are the per-class LLVM files.
	Modules []string
	// Linker is the trampoline module.
	Linker string
	// Bridges is the C source of all compatibility wrappers, or "".
	Bridges     string
	Trampolines int
}

// NewAppCompiler prepares a build of classes with cfg.
func NewAppCompiler(cfg *Config, classes *classpath.ClassPath) *AppCompiler {
	return &AppCompiler{
		Config:      cfg,
		Classes:     classes,
		compiler:    NewClassCompiler(cfg, classes),
		trampolines: trampoline.NewRegistry(),
		cwrappers:   NewSymbolTable(),
		scheduled:   make(map[string]bool),
		infos:       make(map[string]*ClassInfo),
	}
}

// Roots returns the main class and every class matching the root
// patterns, sorted.
func (a *AppCompiler) Roots() ([]string, error) {
	matcher, err := a.Config.RootMatcher()
	if err != nil {
		return nil, err
	}
	var roots []string
	if a.Config.MainClass != "" {
		if a.Classes.Lookup(a.Config.MainClass) == nil {
			return nil, fmt.Errorf("main class %s not found", a.Config.MainClass)
		}
		roots = append(roots, a.Config.MainClass)
	}
	for _, name := range a.Classes.Names() {
		if matcher.Match(name) && !slices.Contains(roots, name) {
			roots = append(roots, name)
		}
	}
	slices.Sort(roots)
	return roots, nil
}

// Compile builds roots and everything they depend on. Classes are
// compiled in rounds: each round compiles the queue in parallel, then the
// queue is refilled with newly discovered classes. The first failure
// stops new classes from starting; running ones finish.
func (a *AppCompiler) Compile(ctx context.Context, roots []string) (*AppResult, error) {
	log := a.Config.Logger
	queue := a.unscheduled(roots)
	for round := 1; len(queue) > 0; round++ {
		log.Debug("compile round", "round", round, "classes", len(queue))
		if err := a.runRound(ctx, round, queue); err != nil {
			return nil, err
		}
		queue = a.discover()
	}

	res, err := a.link()
	if err != nil {
		return nil, err
	}
	log.Info("compiled application", "classes", len(res.Classes), "trampolines", res.Trampolines)
	return res, nil
}

func (a *AppCompiler) runRound(ctx context.Context, round int, queue []string) error {
	var bar *progressbar.ProgressBar
	if term.IsTerminal(int(os.Stderr.Fd())) {
		bar = progressbar.Default(int64(len(queue)), fmt.Sprintf("round %d", round))
		defer bar.Close()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.Config.Threads)
	for _, name := range queue {
		if gctx.Err() != nil {
			break
		}
		a.scheduled[name] = true
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			if err := a.compileClass(name); err != nil {
				return err
			}
			if bar != nil {
				bar.Add(1)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	// Cancellation before anything was scheduled leaves the group empty.
	return ctx.Err()
}

// compileClass compiles one class, or reuses its cached output when the
// cache is newer than the source and was written by this compiler
// version.
func (a *AppCompiler) compileClass(name string) error {
	entry := a.Classes.Entry(name)
	if entry == nil {
		return fmt.Errorf("class %s not found", name)
	}
	infoPath := classFile(a.Config.CacheDir, name, ".info.yaml")
	if ci := a.cached(infoPath, entry); ci != nil {
		a.Config.Logger.Debug("using cached class", "class", name)
		a.record(ci)
		return nil
	}

	res, err := a.compiler.Compile(entry.Class)
	if err != nil {
		return err
	}
	if err := writeFile(classFile(a.Config.CacheDir, name, ".ll"), []byte(res.Module.String())); err != nil {
		return fmt.Errorf("writing %s: %w", name, err)
	}
	ci := NewClassInfo(res)
	if err := ci.Write(infoPath); err != nil {
		return fmt.Errorf("writing %s: %w", name, err)
	}
	a.record(ci)
	return nil
}

func (a *AppCompiler) cached(infoPath string, entry *classpath.Entry) *ClassInfo {
	if a.Config.Clean || entry.File == "" {
		return nil
	}
	st, err := os.Stat(infoPath)
	if err != nil || st.ModTime().Before(entry.ModTime) {
		return nil
	}
	if _, err := os.Stat(classFile(a.Config.CacheDir, entry.Class.Name, ".ll")); err != nil {
		return nil
	}
	ci, err := ReadClassInfo(infoPath)
	if err != nil || !ci.Current() || ci.Class != entry.Class.Name {
		return nil
	}
	return ci
}

// record publishes a class's link requirements into the shared tables.
func (a *AppCompiler) record(ci *ClassInfo) {
	a.trampolines.Add(ci.Trampolines...)
	for _, w := range ci.CWrappers {
		if !a.cwrappers.Insert(w.Symbol, w.Source) {
			a.Config.Logger.Debug("duplicate C wrapper", "symbol", w.Symbol, "class", ci.Class)
		}
	}
	a.mu.Lock()
	a.infos[ci.Class] = ci
	a.mu.Unlock()
}

// discover returns the classes referenced by compiled classes, by their
// trampolines and by service provider registrations that have not been
// scheduled yet.
func (a *AppCompiler) discover() []string {
	var found []string
	for name := range a.scheduled {
		c := a.Classes.Lookup(name)
		if c == nil {
			continue
		}
		found = append(found, classpath.Dependencies(c)...)
		if c.IsInterface() {
			found = append(found, a.Classes.ServiceImplementations(name)...)
		}
	}
	found = append(found, a.trampolines.TargetClasses()...)
	return a.unscheduled(found)
}

func (a *AppCompiler) unscheduled(names []string) []string {
	var out []string
	for _, n := range names {
		if strings.HasPrefix(n, "[") || a.scheduled[n] || a.Classes.Lookup(n) == nil {
			continue
		}
		if !slices.Contains(out, n) {
			out = append(out, n)
		}
	}
	slices.Sort(out)
	return out
}

// link writes the trampoline module and the merged C wrappers.
func (a *AppCompiler) link() (*AppResult, error) {
	res := &AppResult{}
	for name := range a.infos {
		res.Classes = append(res.Classes, name)
	}
	slices.Sort(res.Classes)
	for _, name := range res.Classes {
		res.Modules = append(res.Modules, classFile(a.Config.CacheDir, name, ".ll"))
	}

	gen := &trampoline.Generator{Resolver: a.Classes}
	if a.Config.Target != nil {
		gen.Header = a.Config.Target.Header()
	}
	ts := a.trampolines.Sorted()
	res.Trampolines = len(ts)
	lm, err := gen.Generate(ts)
	if err != nil {
		return nil, fmt.Errorf("generating trampolines: %w", err)
	}
	res.Linker = filepath.Join(a.Config.OutputDir, "linker.ll")
	if err := writeFile(res.Linker, []byte(lm.String())); err != nil {
		return nil, err
	}

	if a.cwrappers.Len() > 0 {
		var sb strings.Builder
		for _, sym := range a.cwrappers.Names() {
			src, _ := a.cwrappers.Get(sym)
			sb.WriteString(src)
			sb.WriteString("\n")
		}
		res.Bridges = filepath.Join(a.Config.OutputDir, "bridges.c")
		if err := writeFile(res.Bridges, []byte(sb.String())); err != nil {
			return nil, err
		}
	}
	return res, nil
}

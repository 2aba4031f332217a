package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"aura/internal/classpath"
	"aura/internal/codegen"
	"aura/internal/compiler"
)

func main() {
	start := time.Now()
	exitCode := run()
	if exitCode == 0 {
		fmt.Printf("Compile time: %s\n", time.Since(start))
	}
	os.Exit(exitCode)
}

func run() int {
	var (
		configFile = flag.String("config", "", "YAML config file (aura.yaml)")
		classPath  = flag.String("cp", "", "class path: directories of .jimple files separated by "+string(os.PathListSeparator))
		mainClass  = flag.String("main", "", "main class")
		roots      = flag.String("roots", "", "comma separated root class patterns (com.example.**)")
		output     = flag.String("o", "", "output directory")
		cacheDir   = flag.String("cache", "", "class cache directory")
		threads    = flag.Int("threads", 0, "classes compiled concurrently (default GOMAXPROCS)")
		target     = flag.String("target", "", "target os/arch, e.g. linux/amd64")
		libs       = flag.String("libs", "", "comma separated runtime libraries or objects to link")
		debug      = flag.Bool("debug", false, "disable intrinsics")
		shadow     = flag.Bool("shadow-frames", false, "maintain shadow frames with line numbers for stack traces")
		clean      = flag.Bool("clean", false, "ignore cached classes")
		skipLink   = flag.Bool("skip-link", false, "stop after writing LLVM and C files")
		verbose    = flag.Bool("v", false, "verbose logging")
		version    = flag.Bool("version", false, "print version and exit")
	)
	flag.Parse()

	if *version {
		fmt.Println("aura " + compiler.Version)
		return 0
	}

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	cfg := &compiler.Config{}
	if *configFile != "" {
		loaded, err := compiler.ReadConfig(*configFile)
		if err != nil {
			fmt.Printf("Error: %s\n", err)
			return 1
		}
		cfg = loaded
	}

	// Flags override the config file. Defaults derived from other
	// settings, like the cache under the output directory, come last.
	if *classPath != "" {
		cfg.ClassPath = filepath.SplitList(*classPath)
	}
	if *mainClass != "" {
		cfg.MainClass = *mainClass
	}
	if *roots != "" {
		cfg.Roots = splitList(*roots)
	}
	if *output != "" {
		cfg.OutputDir = *output
	}
	if *cacheDir != "" {
		cfg.CacheDir = *cacheDir
	}
	if *threads > 0 {
		cfg.Threads = *threads
	}
	if *target != "" {
		parts := splitTarget(*target)
		if len(parts) != 2 {
			fmt.Printf("Error: invalid target format %q (expected os/arch, e.g. linux/amd64)\n", *target)
			return 1
		}
		cfg.OS, cfg.Arch = parts[0], parts[1]
	}
	cfg.Debug = cfg.Debug || *debug
	cfg.ShadowFrames = cfg.ShadowFrames || *shadow
	cfg.Clean = cfg.Clean || *clean
	cfg.SkipLink = cfg.SkipLink || *skipLink
	cfg.Logger = logger
	if err := cfg.Normalize(); err != nil {
		fmt.Printf("Error: %s\n", err)
		return 1
	}

	if len(cfg.ClassPath) == 0 {
		fmt.Println("Usage: aura [flags] -cp <dirs> -main <class>")
		flag.PrintDefaults()
		return 1
	}

	logger.Debug("loading class path", "dirs", cfg.ClassPath)
	cp, err := classpath.Load(cfg.ClassPath...)
	if err != nil {
		var loadErrs classpath.LoadErrors
		if errors.As(err, &loadErrs) {
			fmt.Println("Class path errors:")
			for _, e := range loadErrs {
				fmt.Printf("  %s\n", e.Error())
			}
		} else {
			fmt.Printf("Error: %s\n", err)
		}
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	app := compiler.NewAppCompiler(cfg, cp)
	rootClasses, err := app.Roots()
	if err != nil {
		fmt.Printf("Error: %s\n", err)
		return 1
	}
	if len(rootClasses) == 0 {
		fmt.Println("Error: no classes selected (set -main or -roots)")
		return 1
	}

	result, err := app.Compile(ctx, rootClasses)
	if err != nil {
		var ce *compiler.CompileError
		if errors.As(err, &ce) {
			fmt.Printf("Compile error (%s): %s\n", ce.Kind, err)
		} else {
			fmt.Printf("Error: %s\n", err)
		}
		return 1
	}

	fmt.Println("Build artifacts:")
	fmt.Printf("  Classes:  %d (%s)\n", len(result.Classes), cfg.CacheDir)
	fmt.Printf("  Linker:   %s (%d trampolines)\n", result.Linker, result.Trampolines)
	if result.Bridges != "" {
		fmt.Printf("  Bridges:  %s\n", result.Bridges)
	}
	if cfg.SkipLink {
		return 0
	}

	in := codegen.Inputs{Modules: append(result.Modules, result.Linker)}
	if result.Bridges != "" {
		in.CSources = []string{result.Bridges}
	}
	name := "output"
	if cfg.MainClass != "" {
		name = filepath.Base(cfg.MainClass)
	}
	built, err := codegen.Build(in, &codegen.Options{
		Target:     cfg.Target,
		BuildDir:   cfg.OutputDir,
		OutputName: name,
		Verbose:    *verbose,
		Libs:       splitList(*libs),
		Logger:     logger,
	})
	if err != nil {
		fmt.Printf("Build error: %s\n", err)
		return 1
	}
	fmt.Printf("  Binary:   %s\n", built.ExeFile)
	return 0
}

func splitTarget(s string) []string {
	for i, c := range s {
		if c == '/' {
			return []string{s[:i], s[i+1:]}
		}
	}
	return []string{s}
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

package codegen

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// ---------------------------------------------------------------------------
// Options controls the behaviour of the native build pipeline.
// ---------------------------------------------------------------------------

// Options configures the build pipeline.
type Options struct {
	// Target platform. If nil, the host platform is auto-detected.
	Target *Target

	// BuildDir is the directory where all build artifacts are written.
	// Defaults to "./build" relative to the working directory.
	BuildDir string

	// OutputName is the base name of the executable (without extension).
	// Defaults to "output".
	OutputName string

	// Verbose logs every toolchain command.
	Verbose bool

	// SkipLink stops after compiling objects.
	SkipLink bool

	// Libs are extra objects, archives or library names passed to the
	// linker, typically the runtime.
	Libs []string

	Logger *slog.Logger
}

// DefaultOptions returns sensible defaults (host target, build/ directory).
func DefaultOptions() *Options {
	return &Options{
		BuildDir: "build",
	}
}

// Inputs are the files produced by the compiler.
type Inputs struct {
	// Modules are LLVM text files: one per class plus the linker module.
	Modules []string
	// CSources are compatibility wrapper sources.
	CSources []string
}

// ---------------------------------------------------------------------------
// Result is returned by Build with paths to all produced artifacts.
// ---------------------------------------------------------------------------

type Result struct {
	Objects []string // object files, one per input
	ExeFile string   // path to the executable (empty if SkipLink)
}

// ---------------------------------------------------------------------------
// Build: the public entry point for the native build
//
// Pipeline: LLVM text + C wrappers → Objects (clang -c) → Executable (clang link)
// ---------------------------------------------------------------------------

// Build compiles and links the compiler's output.
func Build(in Inputs, opts *Options) (*Result, error) {
	if opts == nil {
		opts = DefaultOptions()
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}

	// --- Resolve target ---
	target := opts.Target
	if target == nil {
		var err error
		target, err = HostTarget()
		if err != nil {
			return nil, fmt.Errorf("cannot detect host target: %w", err)
		}
	}

	// --- Determine output name ---
	outputName := opts.OutputName
	if outputName == "" {
		outputName = "output"
	}
	// Sanitize: replace dots/spaces with underscores.
	outputName = strings.Map(func(r rune) rune {
		if r == '.' || r == ' ' || r == '/' || r == '\\' {
			return '_'
		}
		return r
	}, outputName)

	// --- Create build directory ---
	buildDir := opts.BuildDir
	if buildDir == "" {
		buildDir = "build"
	}
	platformDir := filepath.Join(buildDir, fmt.Sprintf("%s_%s", target.OS, target.ArchName()))
	if err := os.MkdirAll(platformDir, 0755); err != nil {
		return nil, fmt.Errorf("cannot create build directory %s: %w", platformDir, err)
	}

	if missing := DetectToolchain(""); len(missing) > 0 {
		return nil, fmt.Errorf("missing toolchain components: %s", strings.Join(missing, ", "))
	}
	tc := NewToolchain(target, platformDir)
	tc.Verbose = opts.Verbose
	tc.Logger = log

	// --- Step 1: Compile objects ---
	result := &Result{}
	sources := append(append([]string(nil), in.Modules...), in.CSources...)
	log.Info("compiling objects", "count", len(sources), "target", target.Triple)
	for _, src := range sources {
		obj, err := tc.Compile(src)
		if err != nil {
			return result, err
		}
		result.Objects = append(result.Objects, obj)
	}

	if opts.SkipLink {
		return result, nil
	}

	// --- Step 2: Link ---
	exe := filepath.Join(platformDir, outputName+target.FileExtExe())
	log.Info("linking", "output", exe)
	if err := tc.Link(exe, result.Objects, opts.Libs); err != nil {
		return result, fmt.Errorf("linking failed: %w", err)
	}
	result.ExeFile = exe
	return result, nil
}

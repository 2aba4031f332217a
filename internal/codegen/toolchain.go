package codegen

import (
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// ---------------------------------------------------------------------------
// Toolchain: clang invocation for each target
// ---------------------------------------------------------------------------

// Toolchain represents the external compiler that turns LLVM text and C
// wrapper sources into objects and links them.
type Toolchain struct {
	Target   *Target
	BuildDir string
	Verbose  bool
	Logger   *slog.Logger
	// Clang is the compiler driver. Defaults to "clang" on PATH.
	Clang string
	// OptLevel is passed as -O<level>.
	OptLevel int
}

// NewToolchain creates a Toolchain for the given target and build directory.
func NewToolchain(target *Target, buildDir string) *Toolchain {
	return &Toolchain{
		Target:   target,
		BuildDir: buildDir,
		Logger:   slog.Default(),
		Clang:    "clang",
		OptLevel: 2,
	}
}

// ObjectFor returns the object file path for source file src.
func (tc *Toolchain) ObjectFor(src string) string {
	name := strings.TrimSuffix(filepath.ToSlash(filepath.Clean(src)), filepath.Ext(src))
	name = strings.Map(func(r rune) rune {
		if r == '/' || r == ':' || r == '.' {
			return '_'
		}
		return r
	}, strings.TrimLeft(name, "./"))
	return filepath.Join(tc.BuildDir, name+tc.Target.FileExtObj())
}

// Compile compiles one .ll or .c file into an object file and returns its
// path.
func (tc *Toolchain) Compile(src string) (string, error) {
	obj := tc.ObjectFor(src)
	args := []string{
		"-target", tc.Target.Triple,
		fmt.Sprintf("-O%d", tc.OptLevel),
		"-c", "-o", obj, src,
	}
	if strings.HasSuffix(src, ".ll") {
		// Weak method definitions may be replaced at link time.
		args = append(args, "-Wno-override-module")
	}
	if err := tc.runCmd(exec.Command(tc.Clang, args...), "compile "+filepath.Base(src)); err != nil {
		return "", err
	}
	return obj, nil
}

// Link links objects and libs into the executable exe.
func (tc *Toolchain) Link(exe string, objects, libs []string) error {
	args := []string{"-target", tc.Target.Triple, "-o", exe}
	args = append(args, objects...)
	for _, l := range libs {
		if strings.ContainsAny(l, "/\\") || filepath.Ext(l) != "" {
			args = append(args, l)
		} else {
			args = append(args, "-l"+l)
		}
	}
	switch tc.Target.OS {
	case OS_Linux:
		args = append(args, "-lpthread", "-ldl", "-lm")
	case OS_Darwin:
		if sdk, err := findMacOSSDK(); err == nil {
			args = append(args, "-isysroot", sdk)
		}
	}
	return tc.runCmd(exec.Command(tc.Clang, args...), "link")
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func (tc *Toolchain) runCmd(cmd *exec.Cmd, stage string) error {
	if tc.Verbose {
		tc.Logger.Debug("toolchain", "stage", stage, "cmd", strings.Join(cmd.Args, " "))
	}

	var stderr strings.Builder
	cmd.Stderr = &stderr
	cmd.Stdout = os.Stdout

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s failed: %w\n%s", stage, err, stderr.String())
	}
	return nil
}

func findMacOSSDK() (string, error) {
	out, err := exec.Command("xcrun", "--show-sdk-path").Output()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}

// DetectToolchain checks whether the required external tools are available
// and returns a list of missing tools.
func DetectToolchain(clang string) []string {
	if clang == "" {
		clang = "clang"
	}
	var missing []string
	if _, err := exec.LookPath(clang); err != nil {
		missing = append(missing, clang)
	}
	return missing
}

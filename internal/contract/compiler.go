package contract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"runtime"
	"strconv"
	"strings"
	"time"

	"compactmcp/internal/logging"
)

// CompilerSettings configures the external toolchain bridge.
type CompilerSettings struct {
	// Binary is the executable name searched on PATH.
	Binary string

	// MinVersion is the minimum supported "major.minor".
	MinVersion string

	// Timeout bounds one compile invocation wall clock.
	Timeout time.Duration

	// MaxOutputBytes bounds captured stdout/stderr each.
	MaxOutputBytes int
}

// DefaultCompilerSettings returns the production defaults.
func DefaultCompilerSettings() CompilerSettings {
	return CompilerSettings{
		Binary:         "compact",
		MinVersion:     "0.14",
		Timeout:        60 * time.Second,
		MaxOutputBytes: 1 << 20,
	}
}

// errCompilerNotFound distinguishes a missing toolchain from other
// environment failures.
var errCompilerNotFound = errors.New("compact compiler not found on PATH")

var versionRe = regexp.MustCompile(`(\d+)\.(\d+)(?:\.(\d+))?`)

// compilerBinary is one verified candidate.
type compilerBinary struct {
	path    string
	version string
}

// locateCompiler searches every PATH entry for the compiler and probes
// each candidate by running `compile --version`. Windows ships an
// unrelated compression utility named compact.exe under the system
// directory, so candidates are verified individually and system-path
// matches are skipped rather than trusting the first PATH hit.
func locateCompiler(ctx context.Context, binary string) (*compilerBinary, error) {
	timer := logging.StartTimer(logging.CategoryCompiler, "locateCompiler")
	defer timer.Stop()

	// An explicit path bypasses the PATH walk but is still probed.
	if strings.ContainsRune(binary, os.PathSeparator) {
		if version, err := probeCompiler(ctx, binary); err == nil {
			return &compilerBinary{path: binary, version: version}, nil
		}
		return nil, errCompilerNotFound
	}

	for _, candidate := range pathCandidates(binary) {
		if inDeniedDirectory(candidate) {
			logging.CompilerDebug("skipping system-path candidate %s", candidate)
			continue
		}
		version, err := probeCompiler(ctx, candidate)
		if err != nil {
			logging.CompilerDebug("candidate %s failed version probe: %v", candidate, err)
			continue
		}
		logging.Compiler("located compiler %s (version %s)", candidate, version)
		return &compilerBinary{path: candidate, version: version}, nil
	}
	return nil, errCompilerNotFound
}

// DetectCompilerVersion reports the installed compiler's version, or
// an error when no working binary is on PATH. Callers outside the
// validation pipeline (release tracking, diagnostics) use this to
// learn what toolchain the user runs without compiling anything.
func DetectCompilerVersion(ctx context.Context, binary string) (string, error) {
	if binary == "" {
		binary = DefaultCompilerSettings().Binary
	}
	bin, err := locateCompiler(ctx, binary)
	if err != nil {
		return "", err
	}
	return bin.version, nil
}

// pathCandidates enumerates every executable match on PATH, in order.
func pathCandidates(binary string) []string {
	var names []string
	if runtime.GOOS == "windows" {
		names = []string{binary + ".exe", binary + ".cmd", binary + ".bat"}
	} else {
		names = []string{binary}
	}

	var candidates []string
	for _, dir := range filepath.SplitList(os.Getenv("PATH")) {
		if dir == "" {
			dir = "."
		}
		for _, name := range names {
			full := filepath.Join(dir, name)
			info, err := os.Stat(full)
			if err != nil || info.IsDir() {
				continue
			}
			if runtime.GOOS != "windows" && info.Mode().Perm()&0111 == 0 {
				continue
			}
			candidates = append(candidates, full)
		}
	}
	return candidates
}

// probeCompiler invokes `compile --version` on one candidate and
// returns the parsed version string. A candidate that does not speak
// the expected CLI (e.g. the Windows compression utility) fails here.
func probeCompiler(ctx context.Context, path string) (string, error) {
	probeCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	out, err := exec.CommandContext(probeCtx, path, "compile", "--version").CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("version probe failed: %w", err)
	}
	m := versionRe.FindString(string(out))
	if m == "" {
		return "", fmt.Errorf("no version number in output %q", strings.TrimSpace(string(out)))
	}
	return m, nil
}

// versionAtLeast compares "major.minor[.patch]" strings on the
// major.minor prefix.
func versionAtLeast(version, min string) bool {
	vMaj, vMin, ok1 := parseMajorMinor(version)
	mMaj, mMin, ok2 := parseMajorMinor(min)
	if !ok1 || !ok2 {
		return false
	}
	if vMaj != mMaj {
		return vMaj > mMaj
	}
	return vMin >= mMin
}

func parseMajorMinor(v string) (int, int, bool) {
	m := versionRe.FindStringSubmatch(v)
	if m == nil {
		return 0, 0, false
	}
	maj, err1 := strconv.Atoi(m[1])
	min, err2 := strconv.Atoi(m[2])
	if err1 != nil || err2 != nil {
		return 0, 0, false
	}
	return maj, min, true
}

// runResult carries everything the diagnostics layer needs from one
// compiler invocation.
type runResult struct {
	stdout   string
	stderr   string
	exitErr  error
	timedOut bool
}

// compileRun is one staged invocation. The temporary workspace is
// created per request and removed on every exit path; cleanup is a
// guarantee, not best-effort.
type compileRun struct {
	settings CompilerSettings
	bin      *compilerBinary
	tmpDir   string
	srcPath  string
	outDir   string
}

// stage creates the isolated workspace and writes the source into it.
// A consistent staged artifact exists regardless of whether the input
// was inline or file-backed.
func (e *Engine) stage(unit *SourceUnit, bin *compilerBinary) (*compileRun, error) {
	tmpDir, err := os.MkdirTemp("", fmt.Sprintf("compact-validate-%d-", time.Now().UnixNano()))
	if err != nil {
		return nil, fmt.Errorf("failed to create staging directory: %w", err)
	}

	run := &compileRun{
		settings: e.settings,
		bin:      bin,
		tmpDir:   tmpDir,
		srcPath:  filepath.Join(tmpDir, unit.Filename),
		outDir:   filepath.Join(tmpDir, "out"),
	}
	if err := os.MkdirAll(run.outDir, 0755); err != nil {
		run.cleanup()
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	if err := os.WriteFile(run.srcPath, []byte(unit.Text), 0644); err != nil {
		run.cleanup()
		return nil, fmt.Errorf("failed to stage source: %w", err)
	}
	logging.CompilerDebug("staged %s into %s", unit.Filename, tmpDir)
	return run, nil
}

// cleanup removes the temporary workspace. Idempotent.
func (r *compileRun) cleanup() {
	if r.tmpDir == "" {
		return
	}
	if err := os.RemoveAll(r.tmpDir); err != nil {
		logging.Get(logging.CategoryCompiler).Warn("failed to remove staging dir %s: %v", r.tmpDir, err)
	}
	r.tmpDir = ""
}

// execute runs the compiler as a subprocess. Invocation is always an
// argument vector (never a shell string), with a bounded wall clock
// and bounded output buffers. When the request came from a file path,
// the working directory is that file's parent so relative includes
// resolve exactly as the user's own toolchain resolves them.
func (r *compileRun) execute(ctx context.Context, unit *SourceUnit) *runResult {
	runCtx, cancel := context.WithTimeout(ctx, r.settings.Timeout)
	defer cancel()

	srcArg := r.srcPath
	workDir := r.tmpDir
	if unit.FromFile() {
		srcArg = filepath.Join(unit.OriginDir, unit.Filename)
		workDir = unit.OriginDir
	}

	cmd := exec.CommandContext(runCtx, r.bin.path, "compile", srcArg, r.outDir)
	cmd.Dir = workDir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &limitedWriter{buf: &stdout, limit: r.settings.MaxOutputBytes}
	cmd.Stderr = &limitedWriter{buf: &stderr, limit: r.settings.MaxOutputBytes}

	logging.Compiler("running %s compile %s %s (cwd %s)", r.bin.path, srcArg, r.outDir, workDir)
	err := cmd.Run()

	return &runResult{
		stdout:   stdout.String(),
		stderr:   stderr.String(),
		exitErr:  err,
		timedOut: runCtx.Err() == context.DeadlineExceeded,
	}
}

// limitedWriter caps captured subprocess output; overflow is dropped.
type limitedWriter struct {
	buf   *bytes.Buffer
	limit int
}

func (w *limitedWriter) Write(p []byte) (int, error) {
	remaining := w.limit - w.buf.Len()
	if remaining <= 0 {
		return len(p), nil
	}
	if len(p) > remaining {
		w.buf.Write(p[:remaining])
		return len(p), nil
	}
	return w.buf.Write(p)
}

// classifyExecError maps a subprocess launch failure onto the error
// taxonomy. Compile rejections (non-zero exit with output) are not
// handled here; the diagnostics layer owns those.
func classifyExecError(err error) ErrorType {
	var pathErr *fs.PathError
	switch {
	case errors.As(err, &pathErr):
		return ErrorSystem
	case errors.Is(err, fs.ErrPermission):
		return ErrorSystem
	default:
		return ErrorEnvironment
	}
}

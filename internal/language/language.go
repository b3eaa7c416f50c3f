// Package language maps submission languages onto compile/run commands and
// raw sandbox outcomes onto verdicts.
package language

import (
	"path/filepath"
	"strings"

	"github.com/google/shlex"

	appErr "ojcore/pkg/errors"
)

// Adapter describes one supported language: where the source lands in the
// sandbox workdir, how to compile it (optional) and how to run it.
// Commands are shell-style templates; {src}, {exe} and {dir} expand to the
// absolute source path, the build output path and the workdir.
type Adapter struct {
	Name       string
	SourceFile string

	compileTemplate string
	runTemplate     string
}

// NeedsCompile reports whether the language has a compile step.
func (a *Adapter) NeedsCompile() bool {
	return a.compileTemplate != ""
}

// CompileCommand renders the compile command for the given workdir.
func (a *Adapter) CompileCommand(workDir string) ([]string, error) {
	return a.render(a.compileTemplate, workDir)
}

// RunCommand renders the run command for the given workdir.
func (a *Adapter) RunCommand(workDir string) ([]string, error) {
	return a.render(a.runTemplate, workDir)
}

// SourcePath returns the absolute path the source is written to.
func (a *Adapter) SourcePath(workDir string) string {
	return filepath.Join(workDir, a.SourceFile)
}

func (a *Adapter) render(template, workDir string) ([]string, error) {
	tokens, err := shlex.Split(template)
	if err != nil {
		return nil, appErr.Wrapf(err, appErr.CodeJudgeInternal, "parse %s command template", a.Name)
	}
	replacer := strings.NewReplacer(
		"{src}", a.SourcePath(workDir),
		"{exe}", filepath.Join(workDir, "main"),
		"{dir}", workDir,
	)
	cmd := make([]string, len(tokens))
	for i, tok := range tokens {
		cmd[i] = replacer.Replace(tok)
	}
	return cmd, nil
}

var cppAdapter = &Adapter{
	Name:            "cpp",
	SourceFile:      "main.cpp",
	compileTemplate: "g++ -O2 -std=c++17 -o {exe} {src}",
	runTemplate:     "{exe}",
}

var pythonAdapter = &Adapter{
	Name:        "python",
	SourceFile:  "main.py",
	runTemplate: "python3 {src}",
}

// registry keys are lowercase; Lookup is case-insensitive.
var registry = map[string]*Adapter{
	"cpp":     cppAdapter,
	"c++":     cppAdapter,
	"c":       cppAdapter,
	"python":  pythonAdapter,
	"python3": pythonAdapter,
	"py":      pythonAdapter,
}

// Lookup resolves a language name or alias to its adapter.
func Lookup(name string) (*Adapter, error) {
	adapter, ok := registry[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, appErr.Newf(appErr.CodeUnsupportedLanguage, "language %q is not supported", name)
	}
	return adapter, nil
}

// Supported returns the canonical names of all registered languages.
func Supported() []string {
	seen := make(map[string]bool)
	var names []string
	for _, adapter := range registry {
		if !seen[adapter.Name] {
			seen[adapter.Name] = true
			names = append(names, adapter.Name)
		}
	}
	return names
}

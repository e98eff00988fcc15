// Package problemspec parses the YAML problem definition an operator
// authors by hand into the inputs internal/presets.BuildNormalJudge
// needs, mirroring nova's internal/spec YAML-to-domain-type conversion.
package problemspec

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/arclight-oj/judge/internal/presets"
)

// TestcaseSpec is one testcase in YAML, referencing its input/expected
// content by file path relative to the problem spec's directory.
type TestcaseSpec struct {
	Name     string `yaml:"name"`
	Input    string `yaml:"input"`
	Expected string `yaml:"expected"`
}

// ScriptsSpec points at the compile/test/summary script bodies, by file
// path relative to the problem spec's directory.
type ScriptsSpec struct {
	Compile string `yaml:"compile"`
	Test    string `yaml:"test"`
	Summary string `yaml:"summary"`
}

// ProblemSpec is the YAML specification for one normal-judge problem.
type ProblemSpec struct {
	APIVersion string `yaml:"apiVersion,omitempty"`
	Kind       string `yaml:"kind,omitempty"`

	ProblemID string `yaml:"problemId"`
	Title     string `yaml:"title,omitempty"`

	TimeLimitMs    int64 `yaml:"timeLimitMs"`
	MemoryLimitKiB int64 `yaml:"memoryLimitKiB"`

	Scripts   ScriptsSpec    `yaml:"scripts"`
	Testcases []TestcaseSpec `yaml:"testcases"`
}

// ParseFile reads and parses a problem spec YAML file, resolving every
// script/testcase file path relative to the spec file's own directory.
func ParseFile(path string) (*ProblemSpec, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open problem spec: %w", err)
	}
	defer f.Close()

	return Parse(f, filepath.Dir(path))
}

// Parse parses a single problem spec document from r.
func Parse(r io.Reader, baseDir string) (*ProblemSpec, error) {
	var spec ProblemSpec
	if err := yaml.NewDecoder(r).Decode(&spec); err != nil {
		return nil, fmt.Errorf("decode problem spec: %w", err)
	}
	if err := spec.resolvePaths(baseDir); err != nil {
		return nil, err
	}
	return &spec, nil
}

func (s *ProblemSpec) resolvePaths(baseDir string) error {
	resolve := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(baseDir, p)
	}
	s.Scripts.Compile = resolve(s.Scripts.Compile)
	s.Scripts.Test = resolve(s.Scripts.Test)
	s.Scripts.Summary = resolve(s.Scripts.Summary)
	for i := range s.Testcases {
		s.Testcases[i].Input = resolve(s.Testcases[i].Input)
		s.Testcases[i].Expected = resolve(s.Testcases[i].Expected)
	}
	return nil
}

// Validate checks the spec's required fields and that every referenced
// file exists.
func (s *ProblemSpec) Validate() error {
	if s.ProblemID == "" {
		return fmt.Errorf("problemId is required")
	}
	if len(s.Testcases) == 0 {
		return fmt.Errorf("at least one testcase is required")
	}
	for _, path := range []string{s.Scripts.Compile, s.Scripts.Test, s.Scripts.Summary} {
		if path == "" {
			return fmt.Errorf("scripts.compile/test/summary are all required")
		}
		if _, err := os.Stat(path); err != nil {
			return fmt.Errorf("script %q: %w", path, err)
		}
	}
	for _, tc := range s.Testcases {
		if tc.Name == "" {
			return fmt.Errorf("testcase name is required")
		}
		if _, err := os.Stat(tc.Input); err != nil {
			return fmt.Errorf("testcase %q input: %w", tc.Name, err)
		}
		if _, err := os.Stat(tc.Expected); err != nil {
			return fmt.Errorf("testcase %q expected: %w", tc.Name, err)
		}
	}
	return nil
}

// Build validates the spec, reads every referenced script/testcase file
// off disk, and returns them as the scripts and testcases that
// presets.BuildNormalJudge takes. It does not build the procedure
// itself.
func (s *ProblemSpec) Build() (presets.Scripts, []presets.Testcase, error) {
	if err := s.Validate(); err != nil {
		return presets.Scripts{}, nil, err
	}

	compile, err := os.ReadFile(s.Scripts.Compile)
	if err != nil {
		return presets.Scripts{}, nil, fmt.Errorf("read compile script: %w", err)
	}
	test, err := os.ReadFile(s.Scripts.Test)
	if err != nil {
		return presets.Scripts{}, nil, fmt.Errorf("read test script: %w", err)
	}
	summary, err := os.ReadFile(s.Scripts.Summary)
	if err != nil {
		return presets.Scripts{}, nil, fmt.Errorf("read summary script: %w", err)
	}

	scripts := presets.Scripts{
		Compile: string(compile),
		Test:    string(test),
		Summary: string(summary),
	}

	testcases := make([]presets.Testcase, 0, len(s.Testcases))
	for _, tc := range s.Testcases {
		input, err := os.ReadFile(tc.Input)
		if err != nil {
			return presets.Scripts{}, nil, fmt.Errorf("testcase %q: read input: %w", tc.Name, err)
		}
		expected, err := os.ReadFile(tc.Expected)
		if err != nil {
			return presets.Scripts{}, nil, fmt.Errorf("testcase %q: read expected: %w", tc.Name, err)
		}
		testcases = append(testcases, presets.Testcase{
			Name:           tc.Name,
			Input:          string(input),
			ExpectedOutput: string(expected),
		})
	}

	return scripts, testcases, nil
}

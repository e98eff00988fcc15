// Package presets builds the writer.Procedure for a normal judge problem
// one compile phase, one test phase per testcase, and one
// summary phase, with the exact naming scheme spec'd so that result
// rows can be matched back to testcases by name alone.
package presets

import (
	"fmt"
	"strings"

	"github.com/arclight-oj/judge/internal/procedure/writer"
)

// Fixed node names. Result emission in internal/judgeservice depends on
// these exact strings.
const (
	CompilePhase    = "compilePhase"
	SummaryPhase    = "summaryPhase"
	testPhasePrefix = "testPhase_"
)

// TestPhaseName returns the execution node name for a testcase.
func TestPhaseName(caseName string) string {
	return testPhasePrefix + caseName
}

// TestcaseNameFromJobName strips the testPhase_ prefix, the inverse of
// TestPhaseName. ok is false if jobName does not carry the prefix.
func TestcaseNameFromJobName(jobName string) (name string, ok bool) {
	if !IsTestPhase(jobName) {
		return "", false
	}
	return jobName[len(testPhasePrefix):], true
}

// IsTestPhase reports whether jobName names a per-testcase execution
// node.
func IsTestPhase(jobName string) bool {
	return strings.HasPrefix(jobName, testPhasePrefix)
}

// Labels under which the submission's runtime-resolved inputs are
// exposed to the compile/test scripts.
const (
	SubmissionSourceLabel = "SUBMISSION_SOURCE"
	LanguageLabel         = "LANGUAGE_TAG"
	TimeLimitMsLabel      = "TIME_LIMIT_MS"
	MemoryLimitKiBLabel   = "MEMORY_LIMIT_KIB"
)

// Envvar names under which a script's dependencies are exposed.
const (
	EnvSubmissionSource = "SUBMISSION_SOURCE"
	EnvLanguage         = "LANGUAGE"
	EnvTimeLimitMs      = "TIME_LIMIT_MS"
	EnvMemoryLimitKiB   = "MEMORY_LIMIT_KIB"
	EnvCompiledArtifact = "COMPILED_ARTIFACT"
	EnvTestInput        = "TEST_INPUT"
	EnvTestExpected     = "TEST_EXPECTED"
)

// Testcase is one input/expected-output pair.
type Testcase struct {
	Name           string
	Input          string
	ExpectedOutput string
}

// Scripts supplies the shell script bodies run for each phase. Their
// content is language- and runtime-specific (how to invoke a compiler,
// how to diff output) and therefore left to the caller rather than
// fixed by this package; Compile reads SUBMISSION_SOURCE, LANGUAGE, and
// the limit envvars listed above, Test reads the limit envvars plus
// COMPILED_ARTIFACT/TEST_INPUT/TEST_EXPECTED (not SUBMISSION_SOURCE or
// LANGUAGE), and Summary reads one envvar per testcase named after its
// testPhase_ node.
type Scripts struct {
	Compile string
	Test    string
	Summary string
}

// BuildNormalJudge assembles the writer.Procedure for a normal judge.
// TimeReservedMs is applied uniformly to every execution node; callers
// needing per-phase budgets should post-process the returned
// Procedure's Executions.
func BuildNormalJudge(testcases []Testcase, scripts Scripts, timeReservedMs int64) (writer.Procedure, error) {
	b := writer.NewBuilder()

	sourceName, err := b.AddResource(writer.RuntimeTextFile{Name: "submissionSource", Label: SubmissionSourceLabel})
	if err != nil {
		return writer.Procedure{}, err
	}
	languageName, err := b.AddResource(writer.RuntimeTextFile{Name: "language", Label: LanguageLabel})
	if err != nil {
		return writer.Procedure{}, err
	}
	timeLimitName, err := b.AddResource(writer.RuntimeTextFile{Name: "timeLimitMs", Label: TimeLimitMsLabel})
	if err != nil {
		return writer.Procedure{}, err
	}
	memoryLimitName, err := b.AddResource(writer.RuntimeTextFile{Name: "memoryLimitKiB", Label: MemoryLimitKiBLabel})
	if err != nil {
		return writer.Procedure{}, err
	}

	compileScriptName, err := b.AddScript(writer.Script{Name: "compileScript", Content: scripts.Compile})
	if err != nil {
		return writer.Procedure{}, err
	}
	compilePhaseName, err := b.AddExecution(writer.Execution{
		Name:       CompilePhase,
		ScriptName: compileScriptName,
		Dependencies: []writer.Dependency{
			{RefTo: sourceName, EnvvarName: EnvSubmissionSource},
			{RefTo: languageName, EnvvarName: EnvLanguage},
			{RefTo: timeLimitName, EnvvarName: EnvTimeLimitMs},
			{RefTo: memoryLimitName, EnvvarName: EnvMemoryLimitKiB},
		},
		TimeReservedMs: timeReservedMs,
	})
	if err != nil {
		return writer.Procedure{}, err
	}

	testScriptName, err := b.AddScript(writer.Script{Name: "testScript", Content: scripts.Test})
	if err != nil {
		return writer.Procedure{}, err
	}

	testPhaseNames := make([]string, 0, len(testcases))
	for _, tc := range testcases {
		inputName, err := b.AddResource(writer.TextFile{Name: tc.Name + "_input", Content: tc.Input})
		if err != nil {
			return writer.Procedure{}, fmt.Errorf("testcase %q: %w", tc.Name, err)
		}
		expectedName, err := b.AddResource(writer.TextFile{Name: tc.Name + "_expected", Content: tc.ExpectedOutput})
		if err != nil {
			return writer.Procedure{}, fmt.Errorf("testcase %q: %w", tc.Name, err)
		}

		testPhaseName, err := b.AddExecution(writer.Execution{
			Name:       TestPhaseName(tc.Name),
			ScriptName: testScriptName,
			Dependencies: []writer.Dependency{
				{RefTo: compilePhaseName, EnvvarName: EnvCompiledArtifact},
				{RefTo: inputName, EnvvarName: EnvTestInput},
				{RefTo: expectedName, EnvvarName: EnvTestExpected},
				{RefTo: timeLimitName, EnvvarName: EnvTimeLimitMs},
				{RefTo: memoryLimitName, EnvvarName: EnvMemoryLimitKiB},
			},
			TimeReservedMs: timeReservedMs,
		})
		if err != nil {
			return writer.Procedure{}, fmt.Errorf("testcase %q: %w", tc.Name, err)
		}
		testPhaseNames = append(testPhaseNames, testPhaseName)
	}

	summaryScriptName, err := b.AddScript(writer.Script{Name: "summaryScript", Content: scripts.Summary})
	if err != nil {
		return writer.Procedure{}, err
	}
	summaryDeps := make([]writer.Dependency, 0, len(testPhaseNames))
	for _, name := range testPhaseNames {
		summaryDeps = append(summaryDeps, writer.Dependency{RefTo: name, EnvvarName: name})
	}
	if _, err := b.AddExecution(writer.Execution{
		Name:           SummaryPhase,
		ScriptName:     summaryScriptName,
		Dependencies:   summaryDeps,
		TimeReservedMs: timeReservedMs,
	}); err != nil {
		return writer.Procedure{}, err
	}

	return b.Build(), nil
}

package judge

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"ojcore/internal/model"
	"ojcore/internal/sandbox"
)

type fakeRepo struct {
	mu sync.Mutex

	submission *model.Submission
	problem    *model.Problem
	cases      []model.TestCase

	caseResults []model.CaseResult
	finalized   []FinalizeParams
	// alreadyTerminal makes Finalize report a lost race.
	alreadyTerminal bool
	clearCalls      int
}

func (r *fakeRepo) GetSubmission(ctx context.Context, id int64) (*model.Submission, error) {
	copied := *r.submission
	return &copied, nil
}

func (r *fakeRepo) MarkJudging(ctx context.Context, id int64) error { return nil }

func (r *fakeRepo) GetProblem(ctx context.Context, id int64) (*model.Problem, error) {
	return r.problem, nil
}

func (r *fakeRepo) ListTestCases(ctx context.Context, problemID int64, samplesOnly bool) ([]model.TestCase, error) {
	if !samplesOnly {
		return r.cases, nil
	}
	var samples []model.TestCase
	for _, tc := range r.cases {
		if tc.IsSample {
			samples = append(samples, tc)
		}
	}
	return samples, nil
}

func (r *fakeRepo) ClearCaseResults(ctx context.Context, submissionID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clearCalls++
	r.caseResults = nil
	return nil
}

func (r *fakeRepo) InsertCaseResult(ctx context.Context, result *model.CaseResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.caseResults = append(r.caseResults, *result)
	return nil
}

func (r *fakeRepo) Finalize(ctx context.Context, params FinalizeParams) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.alreadyTerminal {
		return false, nil
	}
	r.finalized = append(r.finalized, params)
	return true, nil
}

func (r *fakeRepo) ListStalled(ctx context.Context, olderThan time.Duration, limit int) ([]int64, error) {
	return nil, nil
}

// fakeRunner replays scripted results in order; once the script runs out
// it keeps returning the last entry.
type fakeRunner struct {
	mu      sync.Mutex
	script  []scriptedRun
	invoked int
}

type scriptedRun struct {
	res sandbox.RunResult
	err error
}

func (f *fakeRunner) Run(ctx context.Context, spec sandbox.RunSpec) (sandbox.RunResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	idx := f.invoked
	f.invoked++
	if idx >= len(f.script) {
		idx = len(f.script) - 1
	}
	entry := f.script[idx]
	return entry.res, entry.err
}

func newTestEngine(t *testing.T, repo Repository, runner sandbox.Runner) *Engine {
	t.Helper()
	engine := NewEngine(EngineConfig{WorkRoot: t.TempDir()}, repo, runner, nil)
	engine.sleep = func(time.Duration) {}
	return engine
}

func pythonSubmission() *model.Submission {
	return &model.Submission{
		ID:        1,
		UserID:    7,
		ProblemID: 3,
		Language:  "python",
		Code:      "print(input())",
		Status:    model.VerdictPending,
	}
}

func twoCaseProblem() (*model.Problem, []model.TestCase) {
	problem := &model.Problem{ID: 3, TimeLimitMs: 1000, MemoryMB: 256}
	cases := []model.TestCase{
		{ID: 11, ProblemID: 3, Ordinal: 1, Input: "a", Expected: "a", Score: 40, IsSample: true},
		{ID: 12, ProblemID: 3, Ordinal: 2, Input: "b", Expected: "b", Score: 60},
	}
	return problem, cases
}

func TestJudgeAllAccepted(t *testing.T) {
	t.Parallel()

	problem, cases := twoCaseProblem()
	repo := &fakeRepo{submission: pythonSubmission(), problem: problem, cases: cases}
	runner := &fakeRunner{script: []scriptedRun{
		{res: sandbox.RunResult{ExitCode: 0, Stdout: "a\n", TimeMs: 12, MemoryKB: 5000}},
		{res: sandbox.RunResult{ExitCode: 0, Stdout: "b\n", TimeMs: 30, MemoryKB: 4000}},
	}}
	engine := newTestEngine(t, repo, runner)

	if err := engine.Judge(context.Background(), 1); err != nil {
		t.Fatalf("Judge: %v", err)
	}
	if len(repo.finalized) != 1 {
		t.Fatalf("finalized %d times, want 1", len(repo.finalized))
	}
	final := repo.finalized[0]
	if final.Verdict != model.VerdictAC {
		t.Errorf("verdict = %s, want AC", final.Verdict)
	}
	if final.Score != 100 {
		t.Errorf("score = %d, want 100", final.Score)
	}
	if final.ExecTimeMs != 30 || final.MemoryKB != 5000 {
		t.Errorf("metrics = (%d ms, %d KB), want max (30 ms, 5000 KB)", final.ExecTimeMs, final.MemoryKB)
	}
	if !final.BumpCounters {
		t.Error("regular submissions must bump problem counters")
	}
}

func TestJudgeFirstFailureSetsVerdictButAllCasesRun(t *testing.T) {
	t.Parallel()

	problem, cases := twoCaseProblem()
	repo := &fakeRepo{submission: pythonSubmission(), problem: problem, cases: cases}
	runner := &fakeRunner{script: []scriptedRun{
		{res: sandbox.RunResult{ExitCode: 0, Stdout: "wrong"}},
		{res: sandbox.RunResult{ExitCode: 0, Stdout: "b"}},
	}}
	engine := newTestEngine(t, repo, runner)

	if err := engine.Judge(context.Background(), 1); err != nil {
		t.Fatalf("Judge: %v", err)
	}
	if runner.invoked != 2 {
		t.Errorf("runner invoked %d times, want 2 (remaining cases still run)", runner.invoked)
	}
	final := repo.finalized[0]
	if final.Verdict != model.VerdictWA {
		t.Errorf("verdict = %s, want WA (first non-AC case)", final.Verdict)
	}
	if final.Score != 60 {
		t.Errorf("score = %d, want 60 (second case still accepted)", final.Score)
	}
	if len(repo.caseResults) != 2 {
		t.Errorf("case rows = %d, want 2", len(repo.caseResults))
	}
}

func TestJudgeCompileError(t *testing.T) {
	t.Parallel()

	problem, cases := twoCaseProblem()
	sub := pythonSubmission()
	sub.Language = "cpp"
	sub.Code = "int main( {"
	repo := &fakeRepo{submission: sub, problem: problem, cases: cases}
	runner := &fakeRunner{script: []scriptedRun{
		{res: sandbox.RunResult{ExitCode: 1, Stderr: "main.cpp:1: error: expected ')'"}},
	}}
	engine := newTestEngine(t, repo, runner)

	if err := engine.Judge(context.Background(), 1); err != nil {
		t.Fatalf("Judge: %v", err)
	}
	if runner.invoked != 1 {
		t.Errorf("runner invoked %d times, want 1 (compile only)", runner.invoked)
	}
	final := repo.finalized[0]
	if final.Verdict != model.VerdictCE {
		t.Errorf("verdict = %s, want CE", final.Verdict)
	}
	if final.Score != 0 {
		t.Errorf("score = %d, want 0", final.Score)
	}
	if final.ErrorMessage == "" {
		t.Error("compile error message should carry compiler stderr")
	}
	if len(repo.caseResults) != 0 {
		t.Errorf("case rows = %d, want 0 on compile error", len(repo.caseResults))
	}
}

func TestJudgeSandboxUnavailableRetriesThenSE(t *testing.T) {
	t.Parallel()

	problem, cases := twoCaseProblem()
	repo := &fakeRepo{submission: pythonSubmission(), problem: problem, cases: cases}
	runner := &fakeRunner{script: []scriptedRun{
		{err: sandbox.Unavailable(errors.New("helper missing"))},
	}}
	engine := newTestEngine(t, repo, runner)

	if err := engine.Judge(context.Background(), 1); err != nil {
		t.Fatalf("Judge: %v", err)
	}
	if runner.invoked != 3 {
		t.Errorf("runner invoked %d times, want 3 attempts", runner.invoked)
	}
	final := repo.finalized[0]
	if final.Verdict != model.VerdictSE {
		t.Errorf("verdict = %s, want SE", final.Verdict)
	}
}

func TestJudgeUnavailableMidRunPreservesPartialRows(t *testing.T) {
	t.Parallel()

	problem, cases := twoCaseProblem()
	repo := &fakeRepo{submission: pythonSubmission(), problem: problem, cases: cases}
	// Each attempt: first case fine, second case unavailable.
	runner := &fakeRunner{script: []scriptedRun{
		{res: sandbox.RunResult{ExitCode: 0, Stdout: "a"}},
		{err: sandbox.Unavailable(errors.New("gone"))},
		{res: sandbox.RunResult{ExitCode: 0, Stdout: "a"}},
		{err: sandbox.Unavailable(errors.New("gone"))},
		{res: sandbox.RunResult{ExitCode: 0, Stdout: "a"}},
		{err: sandbox.Unavailable(errors.New("gone"))},
	}}
	engine := newTestEngine(t, repo, runner)

	if err := engine.Judge(context.Background(), 1); err != nil {
		t.Fatalf("Judge: %v", err)
	}
	final := repo.finalized[0]
	if final.Verdict != model.VerdictSE {
		t.Errorf("verdict = %s, want SE", final.Verdict)
	}
	if len(repo.caseResults) != 1 {
		t.Errorf("case rows = %d, want 1 partial row from the last attempt", len(repo.caseResults))
	}
}

func TestJudgeTerminalSubmissionNoOps(t *testing.T) {
	t.Parallel()

	problem, cases := twoCaseProblem()
	sub := pythonSubmission()
	sub.Status = model.VerdictAC
	repo := &fakeRepo{submission: sub, problem: problem, cases: cases}
	runner := &fakeRunner{script: []scriptedRun{{res: sandbox.RunResult{}}}}
	engine := newTestEngine(t, repo, runner)

	if err := engine.Judge(context.Background(), 1); err != nil {
		t.Fatalf("Judge: %v", err)
	}
	if runner.invoked != 0 {
		t.Errorf("runner invoked %d times, want 0 on a terminal submission", runner.invoked)
	}
	if len(repo.finalized) != 0 {
		t.Errorf("finalized %d times, want 0", len(repo.finalized))
	}
}

func TestJudgeScratchRunUsesSamplesAndCustomCases(t *testing.T) {
	t.Parallel()

	problem, cases := twoCaseProblem()
	sub := pythonSubmission()
	sub.IsTest = true
	sub.CustomTestCases = []model.CustomCase{{Input: "x", Expected: "x"}}
	repo := &fakeRepo{submission: sub, problem: problem, cases: cases}
	runner := &fakeRunner{script: []scriptedRun{
		{res: sandbox.RunResult{ExitCode: 0, Stdout: "a"}},
		{res: sandbox.RunResult{ExitCode: 0, Stdout: "x"}},
	}}
	engine := newTestEngine(t, repo, runner)

	if err := engine.Judge(context.Background(), 1); err != nil {
		t.Fatalf("Judge: %v", err)
	}
	// One sample case plus one custom case.
	if runner.invoked != 2 {
		t.Errorf("runner invoked %d times, want 2", runner.invoked)
	}
	final := repo.finalized[0]
	if final.Verdict != model.VerdictAC {
		t.Errorf("verdict = %s, want AC", final.Verdict)
	}
	if final.Score != 40 {
		t.Errorf("score = %d, want 40 (custom cases never score)", final.Score)
	}
	if final.BumpCounters {
		t.Error("scratch runs must not bump problem counters")
	}
	if len(repo.caseResults) != 2 {
		t.Fatalf("case rows = %d, want 2", len(repo.caseResults))
	}
	if !repo.caseResults[1].IsCustom || repo.caseResults[1].Score != 0 {
		t.Errorf("custom case row = %+v, want is_custom with score 0", repo.caseResults[1])
	}
}

func TestJudgeLostFinalizeRaceNoOps(t *testing.T) {
	t.Parallel()

	problem, cases := twoCaseProblem()
	repo := &fakeRepo{submission: pythonSubmission(), problem: problem, cases: cases, alreadyTerminal: true}
	runner := &fakeRunner{script: []scriptedRun{
		{res: sandbox.RunResult{ExitCode: 0, Stdout: "a"}},
		{res: sandbox.RunResult{ExitCode: 0, Stdout: "b"}},
	}}
	engine := newTestEngine(t, repo, runner)

	if err := engine.Judge(context.Background(), 1); err != nil {
		t.Fatalf("Judge: %v", err)
	}
	if len(repo.finalized) != 0 {
		t.Errorf("finalized %d times, want 0 when another worker won", len(repo.finalized))
	}
}

func TestJudgeUnsupportedLanguageFinalizesSE(t *testing.T) {
	t.Parallel()

	problem, cases := twoCaseProblem()
	sub := pythonSubmission()
	sub.Language = "cobol"
	repo := &fakeRepo{submission: sub, problem: problem, cases: cases}
	runner := &fakeRunner{script: []scriptedRun{{res: sandbox.RunResult{}}}}
	engine := newTestEngine(t, repo, runner)

	if err := engine.Judge(context.Background(), 1); err != nil {
		t.Fatalf("Judge: %v", err)
	}
	if runner.invoked != 0 {
		t.Errorf("runner invoked %d times, want 0", runner.invoked)
	}
	final := repo.finalized[0]
	if final.Verdict != model.VerdictSE {
		t.Errorf("verdict = %s, want SE", final.Verdict)
	}
}

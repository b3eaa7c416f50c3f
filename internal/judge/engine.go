package judge

import (
	"context"
	"fmt"
	"os"
	"time"

	"ojcore/internal/language"
	"ojcore/internal/model"
	"ojcore/internal/sandbox"
	"ojcore/pkg/utils/logger"

	"go.uber.org/zap"
)

// EngineConfig tunes one judge engine.
type EngineConfig struct {
	// WorkRoot holds the per-run scratch directories. Deployment mounts
	// a bounded tmpfs here.
	WorkRoot string `yaml:"workRoot"`
	// CaseBudget is the outer per-invocation budget. Exceeding it counts
	// as sandbox unavailability, not TLE, so the run can be retried.
	CaseBudget time.Duration `yaml:"caseBudget"`
	// WallClockFactor scales the problem time limit into the wall clock
	// cap; WallClockGraceMs is added on top.
	WallClockFactor  int64       `yaml:"wallClockFactor"`
	WallClockGraceMs int64       `yaml:"wallClockGraceMs"`
	Retry            RetryPolicy `yaml:"retry"`
}

func (c EngineConfig) normalized() EngineConfig {
	if c.WorkRoot == "" {
		c.WorkRoot = os.TempDir()
	}
	if c.CaseBudget <= 0 {
		c.CaseBudget = 60 * time.Second
	}
	if c.WallClockFactor < 2 {
		c.WallClockFactor = 2
	}
	if c.WallClockGraceMs <= 0 {
		c.WallClockGraceMs = 1000
	}
	c.Retry = c.Retry.normalized()
	return c
}

// Compile runs get fixed generous limits; the problem limits only bind
// the judged runs.
var compileLimits = sandbox.Limits{
	CPUTimeMs:  10000,
	WallTimeMs: 30000,
	MemoryMB:   1024,
	StackMB:    64,
	OutputMB:   16,
	PIDs:       sandbox.MaxPIDs,
}

// Engine judges one submission at a time: compile, run every case,
// aggregate, finalize exactly once.
type Engine struct {
	cfg    EngineConfig
	repo   Repository
	runner sandbox.Runner
	status *StatusStore

	sleep func(time.Duration)
}

// NewEngine creates a judge engine.
func NewEngine(cfg EngineConfig, repo Repository, runner sandbox.Runner, status *StatusStore) *Engine {
	return &Engine{
		cfg:    cfg.normalized(),
		repo:   repo,
		runner: runner,
		status: status,
		sleep:  time.Sleep,
	}
}

// judgeCase pairs a test input with its score weight; custom cases carry
// no weight and no test-case id.
type judgeCase struct {
	TestCaseID int64
	Ordinal    int
	Input      string
	Expected   string
	Score      int
	IsCustom   bool
}

// outcome is the aggregate of one full judge pass.
type outcome struct {
	Verdict      model.Verdict
	Score        int
	ExecTimeMs   int64
	MemoryKB     int64
	ErrorMessage string
}

// Judge loads the submission, runs it and writes the terminal verdict.
// Re-running a finalized submission is a no-op.
func (e *Engine) Judge(ctx context.Context, submissionID int64) error {
	sub, err := e.repo.GetSubmission(ctx, submissionID)
	if err != nil {
		return err
	}
	if sub.Status.IsTerminal() {
		logger.Debug(ctx, "submission already terminal, skipping",
			zap.Int64("submission_id", submissionID), zap.String("status", string(sub.Status)))
		return nil
	}

	if err := e.repo.MarkJudging(ctx, submissionID); err != nil {
		return err
	}

	problem, err := e.repo.GetProblem(ctx, sub.ProblemID)
	if err != nil {
		return err
	}
	cases, err := e.buildCases(ctx, sub)
	if err != nil {
		return err
	}
	e.publish(ctx, sub, Snapshot{Status: model.VerdictJudging, TotalCases: len(cases)})

	adapter, lookupErr := language.Lookup(sub.Language)
	if lookupErr != nil {
		return e.finalize(ctx, sub, outcome{
			Verdict:      model.VerdictSE,
			ErrorMessage: lookupErr.Error(),
		})
	}

	var result outcome
	var runErr error
	for attempt := 1; attempt <= e.cfg.Retry.MaxAttempts; attempt++ {
		if attempt > 1 {
			delay := e.cfg.Retry.Delay(attempt - 1)
			logger.Warn(ctx, "sandbox unavailable, retrying",
				zap.Int64("submission_id", submissionID),
				zap.Int("attempt", attempt), zap.Duration("delay", delay),
				zap.Error(runErr))
			e.sleep(delay)
		}
		if err := e.repo.ClearCaseResults(ctx, submissionID); err != nil {
			return err
		}
		result, runErr = e.judgeOnce(ctx, sub, problem, adapter, cases)
		if runErr == nil {
			return e.finalize(ctx, sub, result)
		}
		if !sandbox.IsUnavailable(runErr) {
			return runErr
		}
	}

	// Retries exhausted; partial case rows of the last attempt stay for
	// privileged inspection.
	logger.Error(ctx, "sandbox unavailable after retries",
		zap.Int64("submission_id", submissionID), zap.Error(runErr))
	return e.finalize(ctx, sub, outcome{
		Verdict:      model.VerdictSE,
		ErrorMessage: "sandbox unavailable",
	})
}

// buildCases assembles the case list. Scratch runs judge samples plus the
// user's custom cases; custom cases never score.
func (e *Engine) buildCases(ctx context.Context, sub *model.Submission) ([]judgeCase, error) {
	stored, err := e.repo.ListTestCases(ctx, sub.ProblemID, sub.IsTest)
	if err != nil {
		return nil, err
	}
	cases := make([]judgeCase, 0, len(stored)+len(sub.CustomTestCases))
	for i, tc := range stored {
		cases = append(cases, judgeCase{
			TestCaseID: tc.ID,
			Ordinal:    i + 1,
			Input:      tc.Input,
			Expected:   tc.Expected,
			Score:      tc.Score,
		})
	}
	if sub.IsTest {
		for _, custom := range sub.CustomTestCases {
			cases = append(cases, judgeCase{
				Ordinal:  len(cases) + 1,
				Input:    custom.Input,
				Expected: custom.Expected,
				IsCustom: true,
			})
		}
	}
	return cases, nil
}

func (e *Engine) judgeOnce(ctx context.Context, sub *model.Submission, problem *model.Problem,
	adapter *language.Adapter, cases []judgeCase) (outcome, error) {

	workDir, err := os.MkdirTemp(e.cfg.WorkRoot, "judge-")
	if err != nil {
		return outcome{}, sandbox.Unavailable(fmt.Errorf("create workdir: %w", err))
	}
	defer os.RemoveAll(workDir)

	if err := os.WriteFile(adapter.SourcePath(workDir), []byte(sub.Code), 0644); err != nil {
		return outcome{}, sandbox.Unavailable(fmt.Errorf("write source: %w", err))
	}

	if adapter.NeedsCompile() {
		compileCmd, err := adapter.CompileCommand(workDir)
		if err != nil {
			return outcome{}, err
		}
		res, err := e.runOne(ctx, sandbox.RunSpec{
			WorkDir: workDir,
			Cmd:     compileCmd,
			Limits:  compileLimits,
		})
		if err != nil {
			return outcome{}, err
		}
		if res.ExitCode != 0 {
			msg := res.Stderr
			if msg == "" {
				msg = res.Stdout
			}
			return outcome{Verdict: model.VerdictCE, ErrorMessage: msg}, nil
		}
	}

	runCmd, err := adapter.RunCommand(workDir)
	if err != nil {
		return outcome{}, err
	}

	limits := sandbox.Limits{
		CPUTimeMs:  problem.TimeLimitMs,
		WallTimeMs: problem.TimeLimitMs*e.cfg.WallClockFactor + e.cfg.WallClockGraceMs,
		MemoryMB:   problem.MemoryMB,
		StackMB:    problem.MemoryMB,
		OutputMB:   16,
		PIDs:       sandbox.MaxPIDs,
	}

	agg := outcome{Verdict: model.VerdictAC}
	for i, tc := range cases {
		e.publish(ctx, sub, Snapshot{
			Status:        model.VerdictJudging,
			FinishedCases: i,
			TotalCases:    len(cases),
			Score:         agg.Score,
		})

		res, err := e.runOne(ctx, sandbox.RunSpec{
			WorkDir: workDir,
			Cmd:     runCmd,
			Stdin:   tc.Input,
			Limits:  limits,
		})
		if err != nil {
			return outcome{}, err
		}

		verdict := language.CaseVerdict(res, tc.Expected)
		caseScore := 0
		if verdict == model.VerdictAC && !tc.IsCustom {
			caseScore = tc.Score
		}
		if err := e.repo.InsertCaseResult(ctx, &model.CaseResult{
			SubmissionID: sub.ID,
			Ordinal:      tc.Ordinal,
			TestCaseID:   tc.TestCaseID,
			Verdict:      verdict,
			TimeMs:       res.TimeMs,
			MemoryKB:     res.MemoryKB,
			Score:        caseScore,
			IsCustom:     tc.IsCustom,
		}); err != nil {
			return outcome{}, err
		}

		agg.Score += caseScore
		if res.TimeMs > agg.ExecTimeMs {
			agg.ExecTimeMs = res.TimeMs
		}
		if res.MemoryKB > agg.MemoryKB {
			agg.MemoryKB = res.MemoryKB
		}
		// First non-AC case in order decides the aggregate verdict; the
		// remaining cases still run for per-case views.
		if verdict != model.VerdictAC && agg.Verdict == model.VerdictAC {
			agg.Verdict = verdict
		}
	}
	return agg, nil
}

// runOne wraps a single sandbox invocation in the outer worker budget.
func (e *Engine) runOne(ctx context.Context, spec sandbox.RunSpec) (sandbox.RunResult, error) {
	runCtx, cancel := context.WithTimeout(ctx, e.cfg.CaseBudget)
	defer cancel()
	return e.runner.Run(runCtx, spec)
}

func (e *Engine) finalize(ctx context.Context, sub *model.Submission, result outcome) error {
	finalized, err := e.repo.Finalize(ctx, FinalizeParams{
		SubmissionID: sub.ID,
		Verdict:      result.Verdict,
		Score:        result.Score,
		ExecTimeMs:   result.ExecTimeMs,
		MemoryKB:     result.MemoryKB,
		ErrorMessage: result.ErrorMessage,
		BumpCounters: !sub.IsTest,
	})
	if err != nil {
		return err
	}
	if !finalized {
		logger.Info(ctx, "submission finalized by another worker",
			zap.Int64("submission_id", sub.ID))
		return nil
	}
	e.publish(ctx, sub, Snapshot{
		Status:       result.Verdict,
		Score:        result.Score,
		ExecTimeMs:   result.ExecTimeMs,
		MemoryKB:     result.MemoryKB,
		ErrorMessage: result.ErrorMessage,
	})
	logger.Info(ctx, "submission judged",
		zap.Int64("submission_id", sub.ID),
		zap.String("verdict", string(result.Verdict)),
		zap.Int("score", result.Score),
		zap.Int64("exec_time_ms", result.ExecTimeMs))
	return nil
}

func (e *Engine) publish(ctx context.Context, sub *model.Submission, snap Snapshot) {
	snap.SubmissionID = sub.ID
	e.status.Update(ctx, snap)
}

package model

// Verdict is the classification of a submission. The constants are the
// wire strings of the verdict protocol.
type Verdict string

const (
	VerdictPending Verdict = "pending"
	VerdictJudging Verdict = "judging"
	VerdictAC      Verdict = "AC"
	VerdictWA      Verdict = "WA"
	VerdictTLE     Verdict = "TLE"
	VerdictMLE     Verdict = "MLE"
	VerdictRE      Verdict = "RE"
	VerdictCE      Verdict = "CE"
	VerdictSE      Verdict = "SE"
	VerdictKR      Verdict = "KR"
)

// IsTerminal reports whether the verdict is final. A submission's verdict
// is set exactly once: pending -> judging -> terminal.
func (v Verdict) IsTerminal() bool {
	switch v {
	case VerdictPending, VerdictJudging:
		return false
	default:
		return true
	}
}

// ValidVerdict reports whether s is a known wire verdict.
func ValidVerdict(s string) bool {
	switch Verdict(s) {
	case VerdictPending, VerdictJudging, VerdictAC, VerdictWA, VerdictTLE,
		VerdictMLE, VerdictRE, VerdictCE, VerdictSE, VerdictKR:
		return true
	default:
		return false
	}
}

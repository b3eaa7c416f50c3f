package errors

import "net/http"

// Code is the stable wire identifier carried in error responses.
// Clients match on these strings; they must not change across releases.
type Code string

const (
	// Generic
	CodeValidation   Code = "VALIDATION_ERROR"
	CodeNotFound     Code = "NOT_FOUND"
	CodeConflict     Code = "CONFLICT"
	CodeUnauthorized Code = "UNAUTHORIZED"
	CodeForbidden    Code = "FORBIDDEN"
	CodeServerError  Code = "SERVER_ERROR"

	// Access policy denials
	CodeContestNotPublished Code = "CONTEST_NOT_PUBLISHED"
	CodeNotStarted          Code = "NOT_STARTED"
	CodeEnded               Code = "ENDED"
	CodeNotRegistered       Code = "NOT_REGISTERED"
	CodeExamNotInProgress   Code = "EXAM_NOT_IN_PROGRESS"
	CodeExamPaused          Code = "EXAM_PAUSED"
	CodeExamLocked          Code = "EXAM_LOCKED"
	CodeExamSubmitted       Code = "EXAM_SUBMITTED"
	CodeScoreboardHidden    Code = "SCOREBOARD_HIDDEN"
	CodeWrongPassword       Code = "WRONG_PASSWORD"

	// Submission & judge
	CodeUnsupportedLanguage Code = "UNSUPPORTED_LANGUAGE"
	CodeCodeTooLarge        Code = "CODE_TOO_LARGE"
	CodeSubmitTooFrequently Code = "SUBMIT_TOO_FREQUENTLY"
	CodeSandboxUnavailable  Code = "SANDBOX_UNAVAILABLE"
	CodeJudgeInternal       Code = "JUDGE_INTERNAL"

	// Infrastructure (logged server-side, surfaced as SERVER_ERROR semantics)
	CodeDatabase Code = "DATABASE_ERROR"
	CodeCache    Code = "CACHE_ERROR"
	CodeQueue    Code = "QUEUE_ERROR"
	CodeStorage  Code = "STORAGE_ERROR"
)

var defaultMessages = map[Code]string{
	CodeValidation:   "Validation failed",
	CodeNotFound:     "Resource not found",
	CodeConflict:     "Conflict with existing resource",
	CodeUnauthorized: "Unauthorized access",
	CodeForbidden:    "Access forbidden",
	CodeServerError:  "Internal server error",

	CodeContestNotPublished: "Contest is not published",
	CodeNotStarted:          "Contest has not started yet",
	CodeEnded:               "Contest has ended",
	CodeNotRegistered:       "Not registered for this contest",
	CodeExamNotInProgress:   "Exam is not in progress",
	CodeExamPaused:          "Exam is paused, resume it before continuing",
	CodeExamLocked:          "Exam is locked",
	CodeExamSubmitted:       "Exam has been submitted",
	CodeScoreboardHidden:    "Scoreboard is hidden during the contest",
	CodeWrongPassword:       "Wrong contest password",

	CodeUnsupportedLanguage: "Programming language not supported",
	CodeCodeTooLarge:        "Source code too large",
	CodeSubmitTooFrequently: "Submitting too frequently, please wait",
	CodeSandboxUnavailable:  "Sandbox temporarily unavailable",
	CodeJudgeInternal:       "Judge system error",

	CodeDatabase: "Database operation failed",
	CodeCache:    "Cache operation failed",
	CodeQueue:    "Message queue operation failed",
	CodeStorage:  "Object storage operation failed",
}

// Message returns the default message for the code.
func (c Code) Message() string {
	if msg, ok := defaultMessages[c]; ok {
		return msg
	}
	return "Unknown error"
}

// HTTPStatus maps a code onto the HTTP status of its response.
func (c Code) HTTPStatus() int {
	switch c {
	case CodeValidation, CodeConflict, CodeCodeTooLarge, CodeUnsupportedLanguage:
		return http.StatusBadRequest
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeForbidden, CodeContestNotPublished, CodeNotStarted, CodeEnded,
		CodeNotRegistered, CodeExamNotInProgress, CodeExamPaused, CodeExamLocked,
		CodeExamSubmitted, CodeScoreboardHidden, CodeWrongPassword:
		return http.StatusForbidden
	case CodeNotFound:
		return http.StatusNotFound
	case CodeSubmitTooFrequently:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

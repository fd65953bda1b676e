package response

// ErrCode is a typed error code enum for consistent API error identification.
type ErrCode string

const (
	// ─── Authentication ────────────────────────────────────────────────
	ErrTokenRequired ErrCode = "TOKEN_REQUIRED"
	ErrTokenInvalid  ErrCode = "TOKEN_INVALID"
	ErrTokenExpired  ErrCode = "TOKEN_EXPIRED"
	ErrUnauthorized  ErrCode = "BACKEND_UNAUTHORIZED"

	// ─── Authorization ─────────────────────────────────────────────────
	ErrStudentAccessOnly ErrCode = "STUDENT_ACCESS_ONLY"

	// ─── Validation ────────────────────────────────────────────────────
	ErrValidation     ErrCode = "VALIDATION_ERROR"
	ErrInvalidID      ErrCode = "INVALID_ID"
	ErrInvalidPayload ErrCode = "INVALID_PAYLOAD"

	// ─── Resources ─────────────────────────────────────────────────────
	ErrNotFound        ErrCode = "NOT_FOUND"
	ErrAttemptNotFound ErrCode = "ATTEMPT_NOT_STARTED"
	ErrItemNotFound    ErrCode = "ITEM_NOT_FOUND"
	ErrFileNotFound    ErrCode = "FILE_NOT_FOUND"

	// ─── Attempt-specific ──────────────────────────────────────────────
	ErrAttemptExpired     ErrCode = "ATTEMPT_EXPIRED"
	ErrAlreadySubmitted   ErrCode = "ALREADY_SUBMITTED"
	ErrSubmitInProgress   ErrCode = "SUBMIT_IN_PROGRESS"
	ErrNoItems            ErrCode = "NO_ITEMS"
	ErrNoItemSelected     ErrCode = "NO_ITEM_SELECTED"
	ErrLastFile           ErrCode = "LAST_FILE"
	ErrLanguageNotAllowed ErrCode = "LANGUAGE_NOT_ALLOWED"
	ErrRunnerUnavailable  ErrCode = "RUNNER_UNAVAILABLE"
	ErrRunSuperseded      ErrCode = "RUN_SUPERSEDED"
	ErrBackendUnavailable ErrCode = "BACKEND_UNAVAILABLE"
	ErrSubmitFailed       ErrCode = "SUBMIT_FAILED"

	// ─── Rate Limiting ─────────────────────────────────────────────────
	ErrRateLimitExceeded ErrCode = "RATE_LIMIT_EXCEEDED"

	// ─── Server ────────────────────────────────────────────────────────
	ErrInternal ErrCode = "INTERNAL_ERROR"
)

// GetMessage returns a human-readable message for a given error code.
func GetMessage(code ErrCode) string {
	switch code {
	// ─── Authentication ────────────────────────────────────────────────
	case ErrTokenRequired:
		return "An access token is required."
	case ErrTokenInvalid:
		return "The access token is invalid."
	case ErrTokenExpired:
		return "The access token has expired."
	case ErrUnauthorized:
		return "The activity server rejected the access token. Please log in again."

	// ─── Authorization ─────────────────────────────────────────────────
	case ErrStudentAccessOnly:
		return "Only students can do this."

	// ─── Validation ────────────────────────────────────────────────────
	case ErrValidation:
		return "The request contains invalid fields."
	case ErrInvalidID:
		return "The ID format is invalid."
	case ErrInvalidPayload:
		return "The request payload is invalid."

	// ─── Resources ─────────────────────────────────────────────────────
	case ErrNotFound:
		return "The requested resource was not found."
	case ErrAttemptNotFound:
		return "No attempt is open for this activity. Start it first."
	case ErrItemNotFound:
		return "The item does not belong to this activity."
	case ErrFileNotFound:
		return "The file does not exist."

	// ─── Attempt-specific ──────────────────────────────────────────────
	case ErrAttemptExpired:
		return "Time is up for this attempt."
	case ErrAlreadySubmitted:
		return "This attempt has already been submitted."
	case ErrSubmitInProgress:
		return "This attempt is being submitted."
	case ErrNoItems:
		return "The activity has no items to submit."
	case ErrNoItemSelected:
		return "Select an item first."
	case ErrLastFile:
		return "The last file cannot be deleted."
	case ErrLanguageNotAllowed:
		return "This language is not allowed for the activity."
	case ErrRunnerUnavailable:
		return "The code runner is not available."
	case ErrRunSuperseded:
		return "A newer run replaced this one."
	case ErrBackendUnavailable:
		return "The activity server could not be reached."
	case ErrSubmitFailed:
		return "Submission failed. Your work is saved; try again."

	// ─── Rate Limiting ─────────────────────────────────────────────────
	case ErrRateLimitExceeded:
		return "Too many requests. Please slow down."

	// ─── Server ────────────────────────────────────────────────────────
	case ErrInternal:
		return "An internal server error occurred."

	default:
		return "An unknown error occurred."
	}
}

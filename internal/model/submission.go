package model

// Progress is the server-side draft of an attempt. Structured fields travel as
// JSON strings, matching what the backend stores.
type Progress struct {
	DraftFiles           string `json:"draftFiles"`
	DraftTestCaseResults string `json:"draftTestCaseResults"`
	TimeRemaining        int64  `json:"timeRemaining"`
	SelectedLanguage     string `json:"selectedLanguage"`
	DraftScore           int    `json:"draftScore"`
	ItemTimes            string `json:"itemTimes,omitempty"`
}

// ProgressResponse wraps the progress list; an empty list means no attempt is in progress.
type ProgressResponse struct {
	Progress []Progress `json:"progress"`
}

// ItemSubmission is the final result of one item.
type ItemSubmission struct {
	ItemID         int64  `json:"itemID"`
	CodeSubmission string `json:"codeSubmission"`
	Score          int    `json:"score"`
	TimeSpent      int64  `json:"timeSpent"`
}

// SubmissionPayload is sent once to finalize an attempt.
type SubmissionPayload struct {
	Submissions []ItemSubmission `json:"submissions"`
}

// FinalizeResult is the backend response to a finalize. Both fields are optional.
type FinalizeResult struct {
	FinalScore *float64 `json:"finalScore,omitempty"`
	Rank       *int     `json:"rank,omitempty"`
}

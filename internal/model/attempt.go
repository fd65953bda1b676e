package model

import "errors"

// SubmitState enumerates the finalize states of an attempt.
type SubmitState string

const (
	SubmitStateIdle       SubmitState = "IDLE"
	SubmitStateSubmitting SubmitState = "SUBMITTING"
	SubmitStateSubmitted  SubmitState = "SUBMITTED"
)

// SessionKey identifies one attempt record in the local store.
type SessionKey struct {
	// Namespace is a digest of the user identity; see auth.Identity.Namespace.
	Namespace  string `json:"namespace"`
	ActivityID int64  `json:"activity_id"`
}

// File is one editor buffer of an attempt.
type File struct {
	ID        int    `json:"id"`
	FileName  string `json:"fileName"`
	Extension string `json:"extension"`
	Content   string `json:"content"`
}

// TestCaseResult keeps the scored ("locked") and most recent ("latest") outcome of a test case.
type TestCaseResult struct {
	LockedPass   *bool  `json:"lockedPass"`
	LockedPoints int    `json:"lockedPoints"`
	LockedOutput string `json:"lockedOutput"`
	LatestPass   *bool  `json:"latestPass"`
	LatestOutput string `json:"latestOutput"`
}

// TestCaseResults maps itemID → testCaseID → result.
type TestCaseResults map[int64]map[int64]TestCaseResult

// ItemTime is the time spent on one item. Start is non-nil only for the focused item.
type ItemTime struct {
	Start         *int64 `json:"start"`
	Accumulated   int64  `json:"accumulated"`
	AccumulatedMs int64  `json:"accumulatedMs,omitempty"`
}

// SessionRecord is the persisted working state of one attempt.
// All instants are milliseconds since the Unix epoch.
type SessionRecord struct {
	StartTime        int64              `json:"startTime"`
	EndTime          int64              `json:"endTime"`
	TeacherDuration  int64              `json:"teacherDuration"`
	ActDuration      string             `json:"actDuration,omitempty"`
	Files            []File             `json:"files"`
	ActiveFileID     int                `json:"activeFileId"`
	TestCaseResults  TestCaseResults    `json:"testCaseResults"`
	SelectedItem     *int64             `json:"selectedItem"`
	ItemTimes        map[int64]ItemTime `json:"itemTimes"`
	DraftScore       int                `json:"draftScore"`
	SelectedLanguage string             `json:"selectedLanguage,omitempty"`
}

// ErrMalformedRecord is returned by Validate for records that cannot be resumed.
var ErrMalformedRecord = errors.New("malformed session record")

// Validate reports whether the record is structurally usable.
func (r *SessionRecord) Validate() error {
	if r == nil || r.EndTime <= 0 {
		return ErrMalformedRecord
	}

	seen := make(map[int]struct{}, len(r.Files))
	activeFound := len(r.Files) == 0
	for _, f := range r.Files {
		if _, dup := seen[f.ID]; dup {
			return ErrMalformedRecord
		}
		seen[f.ID] = struct{}{}
		if f.ID == r.ActiveFileID {
			activeFound = true
		}
	}
	if !activeFound {
		return ErrMalformedRecord
	}

	running := 0
	for _, it := range r.ItemTimes {
		if it.Start != nil {
			running++
		}
	}
	if running > 1 {
		return ErrMalformedRecord
	}
	return nil
}

// Normalize fills nil maps and back-fills millisecond accumulators from
// records written by clients that only stored seconds.
func (r *SessionRecord) Normalize() {
	if r.TestCaseResults == nil {
		r.TestCaseResults = TestCaseResults{}
	}
	if r.ItemTimes == nil {
		r.ItemTimes = map[int64]ItemTime{}
	}
	for id, it := range r.ItemTimes {
		if it.AccumulatedMs == 0 && it.Accumulated > 0 {
			it.AccumulatedMs = it.Accumulated * 1000
			r.ItemTimes[id] = it
		}
	}
}

// Clone returns a deep copy of the record.
func (r *SessionRecord) Clone() *SessionRecord {
	if r == nil {
		return nil
	}
	c := *r

	c.Files = append([]File(nil), r.Files...)

	if r.SelectedItem != nil {
		v := *r.SelectedItem
		c.SelectedItem = &v
	}

	c.TestCaseResults = make(TestCaseResults, len(r.TestCaseResults))
	for itemID, cases := range r.TestCaseResults {
		cp := make(map[int64]TestCaseResult, len(cases))
		for tcID, res := range cases {
			cp[tcID] = res.clone()
		}
		c.TestCaseResults[itemID] = cp
	}

	c.ItemTimes = make(map[int64]ItemTime, len(r.ItemTimes))
	for itemID, it := range r.ItemTimes {
		if it.Start != nil {
			v := *it.Start
			it.Start = &v
		}
		c.ItemTimes[itemID] = it
	}
	return &c
}

// FileByID returns the file with the given id.
func (r *SessionRecord) FileByID(id int) (File, bool) {
	for _, f := range r.Files {
		if f.ID == id {
			return f, true
		}
	}
	return File{}, false
}

func (t TestCaseResult) clone() TestCaseResult {
	if t.LockedPass != nil {
		v := *t.LockedPass
		t.LockedPass = &v
	}
	if t.LatestPass != nil {
		v := *t.LatestPass
		t.LatestPass = &v
	}
	return t
}

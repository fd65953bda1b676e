package model

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Activity is the student view of a timed coding activity, as served by the backend.
type Activity struct {
	ActivityName     string     `json:"activityName"`
	ActDesc          string     `json:"actDesc"`
	MaxPoints        int        `json:"maxPoints"`
	ActDuration      string     `json:"actDuration"`
	CloseDate        *Timestamp `json:"closeDate,omitempty"`
	Items            []Item     `json:"items"`
	AllowedLanguages []Language `json:"allowedLanguages"`
	Rank             *int       `json:"rank,omitempty"`
}

// Item is a single coding problem of an activity.
type Item struct {
	ItemID    int64      `json:"itemID"`
	ItemName  string     `json:"itemName"`
	ItemDesc  string     `json:"itemDesc,omitempty"`
	TestCases []TestCase `json:"testCases"`
}

// TestCase is one input/expected-output pair of an item.
type TestCase struct {
	TestCaseID     int64  `json:"testCaseID"`
	InputData      string `json:"inputData"`
	ExpectedOutput string `json:"expectedOutput"`
	TestCasePoints int    `json:"testCasePoints"`
	IsHidden       bool   `json:"isHidden,omitempty"`
}

// Language is a programming language allowed for an activity.
type Language struct {
	ProgLangName string `json:"progLangName"`
}

// ItemByID returns the item with the given id.
func (a *Activity) ItemByID(id int64) (Item, bool) {
	for _, it := range a.Items {
		if it.ItemID == id {
			return it, true
		}
	}
	return Item{}, false
}

// MaxPoints is the sum of the item's test case points.
func (it Item) MaxPoints() int {
	total := 0
	for _, tc := range it.TestCases {
		total += tc.TestCasePoints
	}
	return total
}

// Timestamp accepts both RFC 3339 and the "YYYY-MM-DD HH:MM:SS" form the backend emits.
type Timestamp struct {
	time.Time
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *Timestamp) UnmarshalJSON(b []byte) error {
	var raw string
	if err := json.Unmarshal(b, &raw); err != nil {
		return fmt.Errorf("timestamp: %w", err)
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		t.Time = time.Time{}
		return nil
	}
	for _, layout := range timestampLayouts {
		if parsed, err := time.ParseInLocation(layout, raw, time.Local); err == nil {
			t.Time = parsed
			return nil
		}
	}
	return fmt.Errorf("timestamp: unsupported format %q", raw)
}

// MarshalJSON implements json.Marshaler.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.Time.Format(time.RFC3339))
}

package attempt

import (
	"encoding/json"
	"time"

	"github.com/neudev/attemptd/internal/duration"
	"github.com/neudev/attemptd/internal/model"
)

// Reconciliation is the outcome of reconciling a stored record against the server.
type Reconciliation struct {
	Record          *model.SessionRecord
	Remaining       int64
	DurationChanged bool
	Tightened       bool
}

// EffectiveDuration is the configured duration capped by the time left until the
// activity closes. It is negative once the close date has passed.
func EffectiveDuration(a *model.Activity, now time.Time) int64 {
	eff := duration.Parse(a.ActDuration)
	if a.CloseDate != nil && !a.CloseDate.IsZero() {
		untilClose := floorDiv(a.CloseDate.Sub(now).Milliseconds(), 1000)
		if untilClose < eff {
			eff = untilClose
		}
	}
	return eff
}

// Remaining returns the whole seconds left before the record's deadline.
func Remaining(rec *model.SessionRecord, now time.Time) int64 {
	return floorDiv(rec.EndTime-now.UnixMilli(), 1000)
}

// Initialize builds the record of a fresh attempt.
func Initialize(a *model.Activity, now time.Time) *model.SessionRecord {
	nowMs := now.UnixMilli()
	lang := defaultLanguage(a)
	return &model.SessionRecord{
		StartTime:        nowMs,
		EndTime:          nowMs + EffectiveDuration(a, now)*1000,
		TeacherDuration:  duration.Parse(a.ActDuration),
		ActDuration:      a.ActDuration,
		Files:            []model.File{{ID: 0, FileName: "main", Extension: ExtensionFor(lang)}},
		ActiveFileID:     0,
		TestCaseResults:  model.TestCaseResults{},
		ItemTimes:        map[int64]model.ItemTime{},
		SelectedLanguage: lang,
	}
}

// Reconcile brings a resumed record in line with the server's view of the activity.
// A changed configured duration restarts the deadline from now, otherwise the
// deadline only ever moves closer. Files, results and item times are kept as they are.
func Reconcile(rec *model.SessionRecord, a *model.Activity, now time.Time) Reconciliation {
	out := rec.Clone()
	out.Normalize()
	nowMs := now.UnixMilli()
	configured := duration.Parse(a.ActDuration)
	eff := EffectiveDuration(a, now)

	r := Reconciliation{Record: out}
	switch {
	case out.TeacherDuration != configured:
		out.TeacherDuration = configured
		out.ActDuration = a.ActDuration
		out.EndTime = nowMs + eff*1000
		r.DurationChanged = true
	case Remaining(out, now) > eff:
		out.EndTime = nowMs + eff*1000
		r.Tightened = true
	}
	r.Remaining = Remaining(out, now)
	return r
}

// SeedFromProgress rebuilds a record from the server-side draft when nothing is
// stored locally. Fields that fail to decode fall back to their empty value.
func SeedFromProgress(a *model.Activity, p *model.Progress, now time.Time) *model.SessionRecord {
	rec := Initialize(a, now)
	nowMs := now.UnixMilli()

	remaining := EffectiveDuration(a, now)
	if p.TimeRemaining < remaining {
		remaining = p.TimeRemaining
	}
	rec.EndTime = nowMs + remaining*1000
	if elapsed := rec.TeacherDuration - p.TimeRemaining; elapsed > 0 {
		rec.StartTime = nowMs - elapsed*1000
	}

	var files []model.File
	if err := json.Unmarshal([]byte(p.DraftFiles), &files); err == nil && len(files) > 0 {
		rec.Files = files
		rec.ActiveFileID = files[0].ID
	}
	var results model.TestCaseResults
	if err := json.Unmarshal([]byte(p.DraftTestCaseResults), &results); err == nil && results != nil {
		rec.TestCaseResults = results
	}
	var times map[int64]model.ItemTime
	if err := json.Unmarshal([]byte(p.ItemTimes), &times); err == nil && times != nil {
		for id, it := range times {
			// A start written by another device is not comparable with our clock.
			it.Start = nil
			times[id] = it
		}
		rec.ItemTimes = times
	}
	if p.SelectedLanguage != "" {
		rec.SelectedLanguage = p.SelectedLanguage
	}
	rec.DraftScore = p.DraftScore
	rec.Normalize()
	return rec
}

// ProgressFromRecord encodes a record as the server-side draft.
func ProgressFromRecord(rec *model.SessionRecord, now time.Time) model.Progress {
	files, _ := json.Marshal(rec.Files)
	results, _ := json.Marshal(rec.TestCaseResults)
	times, _ := json.Marshal(rec.ItemTimes)
	remaining := Remaining(rec, now)
	if remaining < 0 {
		remaining = 0
	}
	return model.Progress{
		DraftFiles:           string(files),
		DraftTestCaseResults: string(results),
		TimeRemaining:        remaining,
		SelectedLanguage:     rec.SelectedLanguage,
		DraftScore:           rec.DraftScore,
		ItemTimes:            string(times),
	}
}

// ExtensionFor maps a language name to the file extension used for its buffers.
func ExtensionFor(lang string) string {
	switch lang {
	case "Java":
		return "java"
	case "C#":
		return "cs"
	case "Python":
		return "py"
	default:
		return "txt"
	}
}

func defaultLanguage(a *model.Activity) string {
	if len(a.AllowedLanguages) > 0 && a.AllowedLanguages[0].ProgLangName != "" {
		return a.AllowedLanguages[0].ProgLangName
	}
	return "Java"
}

// floorDiv rounds toward negative infinity so an overdue deadline never reads as 0.
func floorDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

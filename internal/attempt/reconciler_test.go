package attempt

import (
	"testing"
	"time"

	"github.com/neudev/attemptd/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func closingAt(a *model.Activity, at time.Time) *model.Activity {
	a.CloseDate = &model.Timestamp{Time: at}
	return a
}

func TestEffectiveDuration(t *testing.T) {
	tests := []struct {
		name     string
		activity *model.Activity
		want     int64
	}{
		{"no close date", testActivity(), 1800},
		{"close date far away", closingAt(testActivity(), t0.Add(5*time.Hour)), 1800},
		{"close date sooner", closingAt(testActivity(), t0.Add(90*time.Second+500*time.Millisecond)), 90},
		{"already closed", closingAt(testActivity(), t0.Add(-1500*time.Millisecond)), -2},
		{"malformed duration", &model.Activity{ActDuration: "half an hour"}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, EffectiveDuration(tt.activity, t0))
		})
	}
}

func TestInitialize(t *testing.T) {
	rec := Initialize(testActivity(), t0)
	assert.Equal(t, ms(t0), rec.StartTime)
	assert.Equal(t, ms(t0)+1800*1000, rec.EndTime)
	assert.Equal(t, int64(1800), rec.TeacherDuration)
	assert.Equal(t, "Python", rec.SelectedLanguage)
	require.Len(t, rec.Files, 1)
	assert.Equal(t, "py", rec.Files[0].Extension)
	assert.NoError(t, rec.Validate())
	assert.Equal(t, int64(1800), Remaining(rec, t0))
}

func TestReconcile(t *testing.T) {
	stored := func(remaining time.Duration, teacher int64) *model.SessionRecord {
		rec := Initialize(testActivity(), t0.Add(-time.Hour))
		rec.EndTime = ms(t0.Add(remaining))
		rec.TeacherDuration = teacher
		rec.Files[0].Content = "print(input())"
		return rec
	}

	tests := []struct {
		name      string
		rec       *model.SessionRecord
		activity  *model.Activity
		want      int64
		changed   bool
		tightened bool
	}{
		{"stored shorter is kept", stored(600*time.Second, 1800), testActivity(), 600, false, false},
		{"stored longer is tightened", stored(2400*time.Second, 1800), testActivity(), 1800, false, true},
		{"close date tightens", stored(600*time.Second, 1800), closingAt(testActivity(), t0.Add(120*time.Second)), 120, false, true},
		{"teacher shortened", stored(1500*time.Second, 3600), testActivity(), 1800, true, false},
		{"teacher extended", stored(100*time.Second, 600), testActivity(), 1800, true, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := Reconcile(tt.rec, tt.activity, t0)
			assert.Equal(t, tt.want, r.Remaining)
			assert.Equal(t, tt.changed, r.DurationChanged)
			assert.Equal(t, tt.tightened, r.Tightened)
			assert.Equal(t, int64(1800), r.Record.TeacherDuration)
			assert.Equal(t, "print(input())", r.Record.Files[0].Content)
			assert.Equal(t, tt.rec.StartTime, r.Record.StartTime)
		})
	}
}

func TestReconcileMonotonic(t *testing.T) {
	rec := Initialize(testActivity(), t0)
	now := t0
	prev := Remaining(rec, now)
	for i := 0; i < 30; i++ {
		now = now.Add(7 * time.Second)
		r := Reconcile(rec, testActivity(), now)
		assert.LessOrEqual(t, r.Remaining, prev)
		prev, rec = r.Remaining, r.Record
	}
}

func TestSeedFromProgress(t *testing.T) {
	p := &model.Progress{
		DraftFiles:           `[{"id":3,"fileName":"main","extension":"java","content":"class A {}"}]`,
		DraftTestCaseResults: `{"1":{"11":{"lockedPass":true,"lockedPoints":5,"lockedOutput":"3","latestPass":true,"latestOutput":"3"}}}`,
		TimeRemaining:        600,
		SelectedLanguage:     "Java",
		DraftScore:           5,
		ItemTimes:            `{"1":{"start":1700000000000,"accumulated":40}}`,
	}

	rec := SeedFromProgress(testActivity(), p, t0)
	require.NoError(t, rec.Validate())
	assert.Equal(t, int64(600), Remaining(rec, t0))
	assert.Equal(t, ms(t0)-1200*1000, rec.StartTime)
	assert.Equal(t, 3, rec.ActiveFileID)
	assert.Equal(t, "class A {}", rec.Files[0].Content)
	assert.Equal(t, "Java", rec.SelectedLanguage)
	assert.Equal(t, 5, ItemScore(rec, testActivity().Items[0]))
	assert.Nil(t, rec.ItemTimes[1].Start)
	assert.Equal(t, int64(40_000), rec.ItemTimes[1].AccumulatedMs)
}

func TestSeedFromProgressCapsAndTolerates(t *testing.T) {
	p := &model.Progress{DraftFiles: "not json", TimeRemaining: 99_999}
	rec := SeedFromProgress(testActivity(), p, t0)
	assert.Equal(t, int64(1800), Remaining(rec, t0))
	require.Len(t, rec.Files, 1)
	assert.Equal(t, "main", rec.Files[0].FileName)
}

func TestProgressFromRecord(t *testing.T) {
	rec := Focus(Initialize(testActivity(), t0), 1, t0)
	p := ProgressFromRecord(rec, t0.Add(10*time.Second))
	assert.Equal(t, int64(1790), p.TimeRemaining)
	assert.Contains(t, p.DraftFiles, `"fileName":"main"`)
	assert.Contains(t, p.ItemTimes, `"1":`)

	p = ProgressFromRecord(rec, t0.Add(time.Hour))
	assert.Zero(t, p.TimeRemaining)
}

func TestFloorDiv(t *testing.T) {
	assert.Equal(t, int64(1), floorDiv(1999, 1000))
	assert.Equal(t, int64(0), floorDiv(0, 1000))
	assert.Equal(t, int64(-1), floorDiv(-1, 1000))
	assert.Equal(t, int64(-2), floorDiv(-1001, 1000))
	assert.Equal(t, int64(-1), floorDiv(-1000, 1000))
}

func TestExtensionFor(t *testing.T) {
	assert.Equal(t, "java", ExtensionFor("Java"))
	assert.Equal(t, "cs", ExtensionFor("C#"))
	assert.Equal(t, "py", ExtensionFor("Python"))
	assert.Equal(t, "txt", ExtensionFor("Brainfuck"))
}

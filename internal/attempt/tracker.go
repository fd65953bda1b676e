package attempt

import (
	"sort"
	"time"

	"github.com/neudev/attemptd/internal/model"
)

// Focus stops the running item (folding its elapsed time into the accumulator)
// and starts or resumes itemID. Focusing the item that is already running is a no-op.
// The input record is never mutated.
func Focus(rec *model.SessionRecord, itemID int64, now time.Time) *model.SessionRecord {
	out := rec.Clone()
	out.Normalize()
	nowMs := now.UnixMilli()

	if cur, ok := out.ItemTimes[itemID]; ok && cur.Start != nil {
		out.SelectedItem = &itemID
		return out
	}

	for id, it := range out.ItemTimes {
		if it.Start != nil {
			out.ItemTimes[id] = fold(it, nowMs)
		}
	}

	it := out.ItemTimes[itemID]
	it.Start = &nowMs
	out.ItemTimes[itemID] = it
	out.SelectedItem = &itemID
	return out
}

// SnapshotAndStop folds the running item and stops every item. selectedItem is left alone.
// Whole seconds are handed out by largest remainder, so the per-item seconds always sum
// to the floor of the total milliseconds tracked.
func SnapshotAndStop(rec *model.SessionRecord, now time.Time) *model.SessionRecord {
	out := rec.Clone()
	out.Normalize()
	nowMs := now.UnixMilli()

	var totalMs int64
	ids := make([]int64, 0, len(out.ItemTimes))
	for id, it := range out.ItemTimes {
		it = fold(it, nowMs)
		out.ItemTimes[id] = it
		totalMs += it.AccumulatedMs
		ids = append(ids, id)
	}

	var floored int64
	for _, id := range ids {
		floored += out.ItemTimes[id].AccumulatedMs / 1000
	}
	spare := totalMs/1000 - floored

	sort.Slice(ids, func(i, j int) bool {
		ri, rj := out.ItemTimes[ids[i]].AccumulatedMs%1000, out.ItemTimes[ids[j]].AccumulatedMs%1000
		if ri != rj {
			return ri > rj
		}
		return ids[i] < ids[j]
	})
	for i, id := range ids {
		it := out.ItemTimes[id]
		it.Accumulated = it.AccumulatedMs / 1000
		if int64(i) < spare {
			it.Accumulated++
		}
		out.ItemTimes[id] = it
	}
	return out
}

// RunningItem returns the item whose clock is running, if any.
func RunningItem(rec *model.SessionRecord) (int64, bool) {
	for id, it := range rec.ItemTimes {
		if it.Start != nil {
			return id, true
		}
	}
	return 0, false
}

func fold(it model.ItemTime, nowMs int64) model.ItemTime {
	if it.Start == nil {
		return it
	}
	elapsed := nowMs - *it.Start
	if elapsed < 0 {
		elapsed = 0
	}
	it.AccumulatedMs += elapsed
	it.Accumulated = it.AccumulatedMs / 1000
	it.Start = nil
	return it
}

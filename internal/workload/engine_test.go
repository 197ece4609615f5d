package workload

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"task-tracker/internal/model"
)

var today = time.Date(2026, time.February, 10, 0, 0, 0, 0, time.UTC)

func day(offset int) time.Time {
	return today.AddDate(0, 0, offset)
}

func openTask(id uint, planned, spent float64, start, due int) model.Task {
	return model.Task{
		ID:           id,
		Status:       model.StatusInProgress,
		Priority:     model.PriorityMedium,
		Size:         3,
		PlannedHours: planned,
		SpentHours:   spent,
		StartDate:    day(start),
		DueDate:      day(due),
	}
}

type fakeSource struct {
	assigned  []model.Task
	partnered []model.Task
	err       error
	statuses  []model.Status
}

func (f *fakeSource) AssignedTasks(_ context.Context, _ uint, statuses []model.Status) ([]model.Task, error) {
	f.statuses = statuses
	return f.assigned, f.err
}

func (f *fakeSource) PartnerTasks(_ context.Context, _ uint, _ []model.Status) ([]model.Task, error) {
	return f.partnered, f.err
}

func TestDistributeBalancedSpan(t *testing.T) {
	t.Parallel()
	daily := Distribute([]model.Task{openTask(1, 10, 0, 0, 4)}, Balanced, today)
	if len(daily) != 5 {
		t.Fatalf("len(daily) = %d, want 5", len(daily))
	}
	for i := 0; i < 5; i++ {
		if daily[day(i)] != 2.0 {
			t.Fatalf("daily[%d] = %v, want 2.0", i, daily[day(i)])
		}
	}
}

func TestDistributeOverdueDumpsOnToday(t *testing.T) {
	t.Parallel()
	task := openTask(1, 8, 3, -10, -2)
	for _, s := range Strategies {
		daily := Distribute([]model.Task{task}, s, today)
		if len(daily) != 1 {
			t.Fatalf("%s: len(daily) = %d, want 1", s, len(daily))
		}
		if daily[today] != 5 {
			t.Fatalf("%s: daily[today] = %v, want 5", s, daily[today])
		}
	}
}

func TestDistributeSkipsFinishedEffort(t *testing.T) {
	t.Parallel()
	tasks := []model.Task{
		openTask(1, 5, 5, 0, 3),
		openTask(2, 5, 7, -3, -1),
	}
	daily := Distribute(tasks, DeadlineWeighted, today)
	if len(daily) != 0 {
		t.Fatalf("daily = %v, want empty", daily)
	}
}

func TestDistributeStartsFromToday(t *testing.T) {
	t.Parallel()
	// started five days ago, due in two: only today..today+2 receive hours.
	daily := Distribute([]model.Task{openTask(1, 9, 0, -5, 2)}, Balanced, today)
	for i := -5; i < 0; i++ {
		if _, ok := daily[day(i)]; ok {
			t.Fatalf("past day %d received hours", i)
		}
	}
	for i := 0; i <= 2; i++ {
		if daily[day(i)] != 3 {
			t.Fatalf("daily[%d] = %v, want 3", i, daily[day(i)])
		}
	}
}

func TestDistributeFutureStart(t *testing.T) {
	t.Parallel()
	daily := Distribute([]model.Task{openTask(1, 4, 0, 3, 4)}, Balanced, today)
	if daily[day(3)] != 2 || daily[day(4)] != 2 {
		t.Fatalf("daily = %v, want 2h on days 3 and 4", daily)
	}
	if _, ok := daily[today]; ok {
		t.Fatal("today should be empty for a future task")
	}
}

func TestDistributeAccumulatesSameDay(t *testing.T) {
	t.Parallel()
	a := openTask(1, 6, 0, 0, 2)
	b := openTask(2, 10, 0, 1, 5)
	b.Priority = model.PriorityHigh

	for _, s := range Strategies {
		onlyA := Distribute([]model.Task{a}, s, today)
		onlyB := Distribute([]model.Task{b}, s, today)
		both := Distribute([]model.Task{a, b}, s, today)
		for i := 0; i <= 5; i++ {
			d := day(i)
			if math.Abs(both[d]-(onlyA[d]+onlyB[d])) > tolerance {
				t.Fatalf("%s: day %d = %v, want %v", s, i, both[d], onlyA[d]+onlyB[d])
			}
		}
	}
}

func TestDistributeIgnoresTimeOfDay(t *testing.T) {
	t.Parallel()
	task := openTask(1, 2, 0, 0, 1)
	task.StartDate = task.StartDate.Add(17 * time.Hour)
	daily := Distribute([]model.Task{task}, Balanced, today.Add(9*time.Hour))
	if daily[day(0)] != 1 || daily[day(1)] != 1 {
		t.Fatalf("daily = %v, want 1h on today and tomorrow", daily)
	}
}

func TestSelectUnionsAndFilters(t *testing.T) {
	t.Parallel()
	shared := openTask(1, 1, 0, 0, 0)
	done := openTask(2, 1, 0, 0, 0)
	done.Status = model.StatusDone
	cancelled := openTask(3, 1, 0, 0, 0)
	cancelled.Status = model.StatusCancelled
	paused := openTask(4, 1, 0, 0, 0)
	paused.Status = model.StatusPaused

	got := Select([]model.Task{shared, done}, []model.Task{shared, cancelled, paused})
	if len(got) != 2 {
		t.Fatalf("len(Select) = %d, want 2", len(got))
	}
	if got[0].ID != 1 || got[1].ID != 4 {
		t.Fatalf("Select ids = [%d %d], want [1 4]", got[0].ID, got[1].ID)
	}
}

func TestProjectDefaults(t *testing.T) {
	t.Parallel()
	daily := Daily{day(0): 1.005, day(3): 2.333333, day(20): 5}
	series := Project(daily, today, Window{})
	if len(series.Labels) != DefaultWindowDays || len(series.Data) != DefaultWindowDays {
		t.Fatalf("len = %d/%d, want %d", len(series.Labels), len(series.Data), DefaultWindowDays)
	}
	if series.Labels[0] != "10 Feb" || series.Labels[14] != "24 Feb" {
		t.Fatalf("labels = %v, want 10 Feb .. 24 Feb", series.Labels)
	}
	if series.Data[3] != 2.33 {
		t.Fatalf("data[3] = %v, want 2.33", series.Data[3])
	}
	if series.Data[1] != 0 {
		t.Fatalf("data[1] = %v, want 0", series.Data[1])
	}
}

func TestProjectStartOnlyExtendsFourteenDays(t *testing.T) {
	t.Parallel()
	series := Project(Daily{}, today, Window{Start: day(30)})
	if len(series.Labels) != DefaultWindowDays {
		t.Fatalf("len = %d, want %d", len(series.Labels), DefaultWindowDays)
	}
	if series.Labels[0] != day(30).Format("02 Jan") {
		t.Fatalf("first label = %s, want %s", series.Labels[0], day(30).Format("02 Jan"))
	}
}

func TestProjectClampsLongWindow(t *testing.T) {
	t.Parallel()
	series := Project(Daily{}, today, Window{Start: today, End: day(999)})
	if len(series.Labels) != MaxWindowDays || len(series.Data) != MaxWindowDays {
		t.Fatalf("len = %d/%d, want %d", len(series.Labels), len(series.Data), MaxWindowDays)
	}
}

func TestProjectReversedWindow(t *testing.T) {
	t.Parallel()
	series := Project(Daily{day(5): 3}, today, Window{Start: day(5), End: day(1)})
	if len(series.Labels) != 1 || len(series.Data) != 1 {
		t.Fatalf("len = %d/%d, want 1", len(series.Labels), len(series.Data))
	}
	if series.Labels[0] != day(5).Format("02 Jan") || series.Data[0] != 3 {
		t.Fatalf("series = %+v, want single point on start day", series)
	}
}

func TestComputeEndToEnd(t *testing.T) {
	t.Parallel()
	a := openTask(1, 10, 0, 0, 4)
	overdue := openTask(2, 3, 1, -4, -1)
	src := &fakeSource{
		assigned:  []model.Task{a, overdue},
		partnered: []model.Task{a},
	}
	series, err := Compute(context.Background(), src, Request{
		UserID:   7,
		Strategy: ParseStrategy("not-a-strategy"),
		Today:    today,
		Window:   Window{Start: today, End: day(6)},
	})
	if err != nil {
		t.Fatalf("Compute error: %v", err)
	}
	want := []float64{4, 2, 2, 2, 2, 0, 0}
	if len(series.Data) != len(want) {
		t.Fatalf("len = %d, want %d", len(series.Data), len(want))
	}
	for i := range want {
		if series.Data[i] != want[i] {
			t.Fatalf("data[%d] = %v, want %v", i, series.Data[i], want[i])
		}
	}
	if series.Total() != 12 {
		t.Fatalf("Total = %v, want 12", series.Total())
	}
	if len(src.statuses) != len(model.OpenStatuses) {
		t.Fatalf("statuses = %v, want open statuses", src.statuses)
	}
}

func TestComputePropagatesSourceError(t *testing.T) {
	t.Parallel()
	boom := errors.New("db down")
	_, err := Compute(context.Background(), &fakeSource{err: boom}, Request{Today: today})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want wrapped %v", err, boom)
	}
}

func TestDaysBetweenFarFuture(t *testing.T) {
	t.Parallel()
	tests := []struct {
		to   time.Time
		want int
	}{
		{to: day(-3), want: -3},
		{to: day(0).Add(23 * time.Hour), want: 0},
		{to: time.Date(2326, time.February, 10, 0, 0, 0, 0, time.UTC), want: 109572},
		{to: time.Date(2500, time.January, 1, 0, 0, 0, 0, time.UTC), want: 173085},
	}
	for _, tt := range tests {
		if got := daysBetween(today, tt.to); got != tt.want {
			t.Fatalf("daysBetween(%v) = %d, want %d", tt.to, got, tt.want)
		}
	}
}

func TestDistributeFarFutureDueDate(t *testing.T) {
	t.Parallel()
	task := openTask(1, 1000, 0, 0, 0)
	task.DueDate = time.Date(2500, time.January, 1, 0, 0, 0, 0, time.UTC)

	daily := Distribute([]model.Task{task}, Balanced, today)
	const span = 173086
	if len(daily) != span {
		t.Fatalf("len(daily) = %d, want %d", len(daily), span)
	}
	want := 1000.0 / span
	if math.Abs(daily[today]-want) > 1e-12 {
		t.Fatalf("daily[today] = %v, want %v", daily[today], want)
	}
	if math.Abs(daily[Date(task.DueDate)]-want) > 1e-12 {
		t.Fatalf("daily[due] = %v, want %v", daily[Date(task.DueDate)], want)
	}
}

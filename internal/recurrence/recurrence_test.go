package recurrence

import (
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"planboard/internal/model"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func ptr[T any](v T) *T { return &v }

func TestOccurs_Strategies(t *testing.T) {
	cases := []struct {
		name string
		p    model.Periodicity
		on   []time.Time
		off  []time.Time
	}{
		{
			name: "every other day",
			p:    model.Periodicity{Strategy: "day", Interval: 2, StartDate: "2026-03-01", EndRule: "never"},
			on:   []time.Time{day(2026, 3, 1), day(2026, 3, 3), day(2026, 4, 30)},
			off:  []time.Time{day(2026, 2, 27), day(2026, 3, 2), day(2026, 3, 4)},
		},
		{
			name: "weekly",
			p:    model.Periodicity{Strategy: "week", Interval: 1, StartDate: "2026-03-02", EndRule: "never"},
			on:   []time.Time{day(2026, 3, 2), day(2026, 3, 9), day(2026, 3, 30)},
			off:  []time.Time{day(2026, 3, 3), day(2026, 3, 8)},
		},
		{
			name: "every two weeks",
			p:    model.Periodicity{Strategy: "week", Interval: 2, StartDate: "2026-03-02", EndRule: "never"},
			on:   []time.Time{day(2026, 3, 16)},
			off:  []time.Time{day(2026, 3, 9)},
		},
		{
			name: "quarterly on the 15th",
			p:    model.Periodicity{Strategy: "month", Interval: 3, StartDate: "2026-01-15", EndRule: "never"},
			on:   []time.Time{day(2026, 1, 15), day(2026, 4, 15), day(2027, 1, 15)},
			off:  []time.Time{day(2026, 2, 15), day(2026, 4, 14)},
		},
		{
			name: "month skips short months",
			p:    model.Periodicity{Strategy: "month", Interval: 1, StartDate: "2026-01-31", EndRule: "never"},
			on:   []time.Time{day(2026, 3, 31)},
			off:  []time.Time{day(2026, 2, 28), day(2026, 4, 30)},
		},
		{
			name: "yearly",
			p:    model.Periodicity{Strategy: "year", Interval: 1, StartDate: "2024-07-04", EndRule: "never"},
			on:   []time.Time{day(2025, 7, 4), day(2030, 7, 4)},
			off:  []time.Time{day(2025, 7, 5), day(2023, 7, 4)},
		},
		{
			name: "until end date",
			p:    model.Periodicity{Strategy: "day", Interval: 1, StartDate: "2026-03-01", EndRule: "date", EndDate: ptr("2026-03-05")},
			on:   []time.Time{day(2026, 3, 5)},
			off:  []time.Time{day(2026, 3, 6)},
		},
		{
			name: "count limits occurrences",
			p:    model.Periodicity{Strategy: "week", Interval: 1, StartDate: "2026-03-02", EndRule: "count", EndCount: ptr(3)},
			on:   []time.Time{day(2026, 3, 2), day(2026, 3, 16)},
			off:  []time.Time{day(2026, 3, 23)},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			for _, d := range tc.on {
				assert.True(t, Occurs(tc.p, d), "expected occurrence on %s", d.Format("2006-01-02"))
			}
			for _, d := range tc.off {
				assert.False(t, Occurs(tc.p, d), "unexpected occurrence on %s", d.Format("2006-01-02"))
			}
		})
	}
}

func TestParse_Errors(t *testing.T) {
	_, err := Parse(model.Periodicity{Strategy: "hourly", Interval: 1, StartDate: "2026-03-01", EndRule: "never"}, time.UTC)
	assert.Error(t, err)

	_, err = Parse(model.Periodicity{Strategy: "day", Interval: 1, StartDate: "yesterday", EndRule: "never"}, time.UTC)
	assert.Error(t, err)

	_, err = Parse(model.Periodicity{Strategy: "day", Interval: 1, StartDate: "2026-03-01", EndRule: "date"}, time.UTC)
	assert.Error(t, err)

	_, err = Parse(model.Periodicity{Strategy: "day", Interval: 1, StartDate: "2026-03-01", EndRule: "count"}, time.UTC)
	assert.Error(t, err)

	assert.False(t, Occurs(model.Periodicity{Strategy: "day", Interval: 1, StartDate: "bogus", EndRule: "never"}, day(2026, 3, 1)))
}

func TestParse_TimestampCarriesClock(t *testing.T) {
	r, err := Parse(model.Periodicity{Strategy: "day", Interval: 1, StartDate: "2026-03-01T07:30:00", EndRule: "never"}, time.UTC)
	require.NoError(t, err)
	assert.True(t, r.HasClock)
	assert.Equal(t, 7*60+30, r.Clock)
	assert.Equal(t, day(2026, 3, 1), r.Start)
	assert.True(t, r.Occurs(time.Date(2026, 3, 1, 23, 0, 0, 0, time.UTC)))
}

func TestInstance(t *testing.T) {
	start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	end := start.Add(45 * time.Minute)
	task := model.Task{
		ID:             "standup",
		Title:          "Standup",
		ScheduledStart: &start,
		ScheduledEnd:   &end,
		Periodicity:    &model.Periodicity{Strategy: "day", Interval: 1, StartDate: "2026-03-01", EndRule: "never"},
	}

	inst, ok := Instance(task, day(2026, 3, 4))
	require.True(t, ok)
	assert.Equal(t, time.Date(2026, 3, 4, 9, 0, 0, 0, time.UTC), *inst.ScheduledStart)
	assert.Equal(t, time.Date(2026, 3, 4, 9, 45, 0, 0, time.UTC), *inst.ScheduledEnd)
	assert.Equal(t, start, *task.ScheduledStart, "source task untouched")

	task.Periodicity.StartDate = "2026-03-01T14:00:00Z"
	inst, ok = Instance(task, day(2026, 3, 4))
	require.True(t, ok)
	assert.Equal(t, 14, inst.ScheduledStart.Hour())
	assert.Equal(t, 45, inst.DurationMinutes())

	_, ok = Instance(model.Task{ID: "once"}, day(2026, 3, 4))
	assert.False(t, ok)
	_, ok = Instance(task, day(2026, 2, 28))
	assert.False(t, ok)
}

func TestInstance_KeepsClockAcrossDaylightSaving(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	start := time.Date(2026, 3, 6, 9, 0, 0, 0, ny)
	task := model.Task{
		ID:             "standup",
		ScheduledStart: &start,
		Periodicity:    &model.Periodicity{Strategy: "day", Interval: 1, StartDate: "2026-03-06", EndRule: "never"},
	}

	inst, ok := Instance(task, time.Date(2026, 3, 8, 0, 0, 0, 0, ny))
	require.True(t, ok)
	assert.Equal(t, "2026-03-08 09:00", inst.ScheduledStart.Format("2006-01-02 15:04"))
}

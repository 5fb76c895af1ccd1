package sync

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/studyflow/internal/apperr"
	"github.com/nhle/studyflow/internal/model"
	"github.com/nhle/studyflow/internal/source"
)

func TestFilterWindow_FirstSync(t *testing.T) {
	now := time.Date(2025, 10, 20, 12, 0, 0, 0, time.UTC)
	window := 21 * 24 * time.Hour
	emails := []source.Email{
		{ID: "edge", Date: now.Add(-window)},
		{ID: "old", Date: now.Add(-window - time.Second)},
		{ID: "new", Date: now.Add(-time.Hour)},
	}

	got := FilterWindow(emails, nil, now, window)
	require.Len(t, got, 2)
	assert.Equal(t, "edge", got[0].ID)
	assert.Equal(t, "new", got[1].ID)
}

func TestFilterWindow_AfterWatermark(t *testing.T) {
	last := time.Date(2025, 10, 20, 12, 0, 0, 0, time.UTC)
	emails := []source.Email{
		{ID: "equal", Date: last},
		{ID: "after", Date: last.Add(time.Second)},
		{ID: "before", Date: last.Add(-time.Second)},
	}

	got := FilterWindow(emails, &last, last.Add(time.Hour), 21*24*time.Hour)
	require.Len(t, got, 1)
	assert.Equal(t, "after", got[0].ID)
}

func TestFilterSenders(t *testing.T) {
	emails := []source.Email{
		{ID: "school", From: "Prof. Smith <SMITH@Dartmouth.edu>"},
		{ID: "sub", From: "x@cs.dartmouth.edu"},
		{ID: "canvas", From: "notifications@canvaslms.com"},
		{ID: "instructure", From: "noreply@instructure.com"},
		{ID: "canvas-name", From: "Canvas <noreply@lms.example.org>"},
		{ID: "other", From: "deals@shop.com"},
	}

	got := FilterSenders(emails, "dartmouth.edu")
	ids := make([]string, 0, len(got))
	for _, e := range got {
		ids = append(ids, e.ID)
	}
	assert.Equal(t, []string{"school", "canvas", "instructure", "canvas-name"}, ids)

	assert.Len(t, FilterSenders(emails, ""), len(emails))
	assert.Len(t, FilterSenders(emails, "@dartmouth.edu"), 4)
}

func TestSenderAddress(t *testing.T) {
	assert.Equal(t, "smith@uni.edu", SenderAddress("Prof. Smith <Smith@Uni.edu>"))
	assert.Equal(t, "plain@uni.edu", SenderAddress(" Plain@Uni.edu "))
	assert.Equal(t, "not an address", SenderAddress("Not An Address"))
}

func TestApplyPrepDeadlines(t *testing.T) {
	// 2025-10-22 is a Wednesday.
	wednesday := time.Date(2025, 10, 22, 23, 59, 59, 0, time.UTC)
	courses := []model.Course{
		{Name: "CS 256", Days: []int{1, 3}},
		{Name: "MATH 202", Days: []int{1}},
	}
	tasks := []model.Task{
		{ID: "prep-wed", Course: "cs 256", Type: model.TaskTypePrep, DueDate: wednesday},
		{ID: "prep-mon-only", Course: "MATH 202", Type: model.TaskTypePrep, DueDate: wednesday},
		{ID: "not-prep", Course: "CS 256", Type: model.TaskTypeReading, DueDate: wednesday},
		{ID: "no-course", Course: "HIST 1", Type: model.TaskTypePrep, DueDate: wednesday},
	}

	got := ApplyPrepDeadlines(tasks, courses, time.UTC)

	assert.Equal(t, time.Date(2025, 10, 21, 20, 0, 0, 0, time.UTC), got[0].DueDate)
	assert.Equal(t, time.Tuesday, got[0].DueDate.Weekday())
	assert.Equal(t, wednesday, got[1].DueDate)
	assert.Equal(t, wednesday, got[2].DueDate)
	assert.Equal(t, wednesday, got[3].DueDate)
}

func TestApplyPrepDeadlines_UsesLocation(t *testing.T) {
	loc := time.FixedZone("EST", -5*3600)
	// Thursday 02:00 UTC is still Wednesday evening in loc.
	due := time.Date(2025, 10, 23, 2, 0, 0, 0, time.UTC)
	tasks := []model.Task{{Course: "CS 256", Type: model.TaskTypePrep, DueDate: due}}
	courses := []model.Course{{Name: "CS 256", Days: []int{3}}}

	got := ApplyPrepDeadlines(tasks, courses, loc)
	assert.Equal(t, time.Date(2025, 10, 21, 20, 0, 0, 0, loc), got[0].DueDate)
}

func TestApplyPrepDeadlines_NoCourses(t *testing.T) {
	due := time.Date(2025, 10, 22, 9, 0, 0, 0, time.UTC)
	tasks := []model.Task{{Course: "CS 256", Type: model.TaskTypePrep, DueDate: due}}

	got := ApplyPrepDeadlines(tasks, nil, time.UTC)
	assert.Equal(t, due, got[0].DueDate)
}

func TestBackoffDelay(t *testing.T) {
	b := DefaultBackoff
	assert.Equal(t, 500*time.Millisecond, b.delay(1))
	assert.Equal(t, time.Second, b.delay(2))
	assert.Equal(t, 4*time.Second, b.delay(4))
	assert.Equal(t, 8*time.Second, b.delay(5))
	assert.Equal(t, 8*time.Second, b.delay(10))
}

func TestRetry(t *testing.T) {
	b := Backoff{MaxAttempts: 3, Initial: time.Millisecond, Max: time.Millisecond}

	t.Run("temporary errors are retried until success", func(t *testing.T) {
		calls := 0
		got, err := retry(context.Background(), b, func(context.Context) (int, error) {
			calls++
			if calls < 3 {
				return 0, apperr.Temporary("busy", nil)
			}
			return 42, nil
		})
		require.NoError(t, err)
		assert.Equal(t, 42, got)
		assert.Equal(t, 3, calls)
	})

	t.Run("attempts are bounded", func(t *testing.T) {
		calls := 0
		_, err := retry(context.Background(), b, func(context.Context) (int, error) {
			calls++
			return 0, apperr.Temporary("busy", nil)
		})
		require.Error(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("permanent errors are not retried", func(t *testing.T) {
		calls := 0
		_, err := retry(context.Background(), b, func(context.Context) (int, error) {
			calls++
			return 0, errors.New("unauthorized")
		})
		require.Error(t, err)
		assert.Equal(t, 1, calls)
	})

	t.Run("cancellation stops waiting", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		slow := Backoff{MaxAttempts: 5, Initial: time.Hour, Max: time.Hour}
		calls := 0
		_, err := retry(ctx, slow, func(context.Context) (int, error) {
			calls++
			return 0, apperr.Temporary("busy", nil)
		})
		require.Error(t, err)
		assert.Equal(t, 1, calls)
	})
}

func TestMemoryLocker(t *testing.T) {
	l := NewMemoryLocker()
	ctx := context.Background()

	unlock, err := l.Lock(ctx, "u1")
	require.NoError(t, err)

	// Other keys are independent.
	unlockOther, err := l.Lock(ctx, "u2")
	require.NoError(t, err)
	unlockOther()

	waitCtx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	_, err = l.Lock(waitCtx, "u1")
	require.ErrorIs(t, err, context.DeadlineExceeded)

	unlock()
	unlock()

	again, err := l.Lock(ctx, "u1")
	require.NoError(t, err)
	again()
}

func TestRedisLocker(t *testing.T) {
	addr := os.Getenv("STUDYFLOW_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("STUDYFLOW_TEST_REDIS_ADDR not set")
	}

	ctx := context.Background()
	client, err := DialRedis(ctx, addr)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	l := NewRedisLocker(client, 5*time.Second)
	key := "test-" + time.Now().Format("150405.000000")

	unlock, err := l.Lock(ctx, key)
	require.NoError(t, err)

	waitCtx, cancel := context.WithTimeout(ctx, 250*time.Millisecond)
	defer cancel()
	_, err = l.Lock(waitCtx, key)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	unlock()
	again, err := l.Lock(ctx, key)
	require.NoError(t, err)
	again()
}

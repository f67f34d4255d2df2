package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingJob struct {
	days []time.Time
	errs []error
}

func (j *countingJob) Run(_ context.Context, day time.Time) (Report, error) {
	j.days = append(j.days, day)
	var err error
	if idx := len(j.days) - 1; idx < len(j.errs) {
		err = j.errs[idx]
	}
	return Report{Day: day.Format("2006-01-02")}, err
}

type fakeDriver struct {
	job     func(time.Time)
	stopped bool
}

func (d *fakeDriver) Start(_ context.Context, job func(time.Time)) error {
	d.job = job
	return nil
}

func (d *fakeDriver) Stop(context.Context) error {
	d.stopped = true
	return nil
}

func TestSchedulerRunsOncePerDay(t *testing.T) {
	t.Parallel()

	loc := time.FixedZone("CST", 8*60*60)
	job := &countingJob{}
	driver := &fakeDriver{}
	s := NewScheduler(driver, job, loc, nil)

	var finished int
	s.OnFinish(func(Report, error) { finished++ })

	require.NoError(t, s.Start(context.Background()))
	require.NotNil(t, driver.job)

	evening := time.Date(2025, time.November, 8, 13, 0, 0, 0, time.UTC) // 21:00 CST
	driver.job(evening)
	driver.job(evening.Add(30 * time.Minute))
	driver.job(evening.Add(24 * time.Hour))

	require.Len(t, job.days, 2)
	assert.Equal(t, "2025-11-08", job.days[0].Format("2006-01-02"))
	assert.Equal(t, loc, job.days[0].Location())
	assert.Equal(t, "2025-11-09", job.days[1].Format("2006-01-02"))
	assert.Equal(t, 2, finished)

	require.NoError(t, s.Stop(context.Background()))
	assert.True(t, driver.stopped)
}

func TestSchedulerRetriesFailedDayOnNextTrigger(t *testing.T) {
	t.Parallel()

	job := &countingJob{errs: []error{ErrExhausted}}
	s := NewScheduler(nil, job, time.UTC, nil)

	_, err := s.Trigger(context.Background(), jobDay)
	assert.True(t, errors.Is(err, ErrExhausted))

	report, err := s.Trigger(context.Background(), jobDay)
	require.NoError(t, err)
	assert.False(t, report.Skipped)

	report, err = s.Trigger(context.Background(), jobDay)
	require.NoError(t, err)
	assert.True(t, report.Skipped)
	assert.Len(t, job.days, 2)
}

package mcp

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestJob(t *testing.T, jm *JobManager, target string) *Job {
	t.Helper()
	job, err := jm.CreateJob(target)
	require.NoError(t, err)
	require.NotNil(t, job)
	return job
}

func TestNewJobManager(t *testing.T) {
	jm := NewJobManager()
	require.NotNil(t, jm)
	assert.Empty(t, jm.ListJobs())
}

func TestCreateJob(t *testing.T) {
	t.Run("new job fields correct", func(t *testing.T) {
		jm := NewJobManager()
		job := createTestJob(t, jm, "https://example.com/")

		assert.NotEmpty(t, job.ID)
		assert.Equal(t, "https://example.com/", job.Target)
		assert.Equal(t, JobStatusPending, job.Status)
		assert.False(t, job.StartedAt.IsZero())
		assert.True(t, job.CompletedAt.IsZero())
		assert.Empty(t, job.RunID)
		assert.Empty(t, job.ErrorMessage)
	})

	t.Run("duplicate active target returns same job", func(t *testing.T) {
		jm := NewJobManager()
		job1 := createTestJob(t, jm, "https://example.com/")
		job2 := createTestJob(t, jm, "https://example.com/")
		assert.Equal(t, job1.ID, job2.ID)
	})

	t.Run("new job allowed after completion", func(t *testing.T) {
		jm := NewJobManager()
		job1 := createTestJob(t, jm, "https://example.com/")
		jm.UpdateStatus(job1.ID, JobStatusCompleted, "")

		job2 := createTestJob(t, jm, "https://example.com/")
		assert.NotEqual(t, job1.ID, job2.ID)
	})

	t.Run("different targets independent", func(t *testing.T) {
		jm := NewJobManager()
		job1 := createTestJob(t, jm, "https://a.example/")
		job2 := createTestJob(t, jm, "https://b.example/")
		assert.NotEqual(t, job1.ID, job2.ID)
	})
}

func TestGetJob(t *testing.T) {
	jm := NewJobManager()

	t.Run("exists returns snapshot", func(t *testing.T) {
		job := createTestJob(t, jm, "https://example.com/")
		got := jm.GetJob(job.ID)
		require.NotNil(t, got)
		assert.Equal(t, job.ID, got.ID)

		got.Status = JobStatusFailed
		assert.Equal(t, JobStatusPending, jm.GetJob(job.ID).Status, "snapshots must not alias manager state")
	})

	t.Run("missing returns nil", func(t *testing.T) {
		assert.Nil(t, jm.GetJob("nonexistent-id"))
	})
}

func TestGetJobByTarget(t *testing.T) {
	jm := NewJobManager()

	t.Run("exists returns job", func(t *testing.T) {
		job := createTestJob(t, jm, "https://a.example/")
		got := jm.GetJobByTarget("https://a.example/")
		require.NotNil(t, got)
		assert.Equal(t, job.ID, got.ID)
	})

	t.Run("missing returns nil", func(t *testing.T) {
		assert.Nil(t, jm.GetJobByTarget("https://nonexistent.example/"))
	})

	t.Run("returns nil after completion", func(t *testing.T) {
		job := createTestJob(t, jm, "https://done.example/")
		jm.UpdateStatus(job.ID, JobStatusCompleted, "")
		assert.Nil(t, jm.GetJobByTarget("https://done.example/"))
	})
}

func TestIsRunning(t *testing.T) {
	jm := NewJobManager()

	t.Run("true for pending", func(t *testing.T) {
		createTestJob(t, jm, "https://pending.example/")
		assert.True(t, jm.IsRunning("https://pending.example/"))
	})

	t.Run("true for running", func(t *testing.T) {
		job := createTestJob(t, jm, "https://running.example/")
		jm.UpdateStatus(job.ID, JobStatusRunning, "")
		assert.True(t, jm.IsRunning("https://running.example/"))
	})

	t.Run("false for completed", func(t *testing.T) {
		job := createTestJob(t, jm, "https://completed.example/")
		jm.UpdateStatus(job.ID, JobStatusCompleted, "")
		assert.False(t, jm.IsRunning("https://completed.example/"))
	})

	t.Run("false for failed", func(t *testing.T) {
		job := createTestJob(t, jm, "https://failed.example/")
		jm.UpdateStatus(job.ID, JobStatusFailed, "something broke")
		assert.False(t, jm.IsRunning("https://failed.example/"))
	})

	t.Run("false for cancelled", func(t *testing.T) {
		job := createTestJob(t, jm, "https://cancelled.example/")
		jm.CancelJob(job.ID)
		assert.False(t, jm.IsRunning("https://cancelled.example/"))
	})

	t.Run("false for nonexistent", func(t *testing.T) {
		assert.False(t, jm.IsRunning("https://ghost.example/"))
	})
}

func TestUpdateStatus(t *testing.T) {
	t.Run("to running", func(t *testing.T) {
		jm := NewJobManager()
		job := createTestJob(t, jm, "https://example.com/")
		jm.UpdateStatus(job.ID, JobStatusRunning, "")
		assert.Equal(t, JobStatusRunning, jm.GetJob(job.ID).Status)
	})

	t.Run("to completed sets CompletedAt and frees target", func(t *testing.T) {
		jm := NewJobManager()
		job := createTestJob(t, jm, "https://example.com/")
		jm.UpdateStatus(job.ID, JobStatusCompleted, "")

		got := jm.GetJob(job.ID)
		assert.Equal(t, JobStatusCompleted, got.Status)
		assert.False(t, got.CompletedAt.IsZero())
		assert.Nil(t, jm.GetJobByTarget("https://example.com/"))
	})

	t.Run("to failed sets ErrorMessage", func(t *testing.T) {
		jm := NewJobManager()
		job := createTestJob(t, jm, "https://example.com/")
		jm.UpdateStatus(job.ID, JobStatusFailed, "store unavailable")

		got := jm.GetJob(job.ID)
		assert.Equal(t, JobStatusFailed, got.Status)
		assert.Equal(t, "store unavailable", got.ErrorMessage)
		assert.False(t, got.CompletedAt.IsZero())
	})

	t.Run("cancelled stays cancelled", func(t *testing.T) {
		jm := NewJobManager()
		job := createTestJob(t, jm, "https://example.com/")
		jm.CancelJob(job.ID)
		jm.UpdateStatus(job.ID, JobStatusCompleted, "")
		assert.Equal(t, JobStatusCancelled, jm.GetJob(job.ID).Status)
	})

	t.Run("nonexistent is no-op", func(t *testing.T) {
		jm := NewJobManager()
		jm.UpdateStatus("fake-id", JobStatusRunning, "")
	})
}

func TestSetOutcome(t *testing.T) {
	jm := NewJobManager()
	job := createTestJob(t, jm, "https://example.com/")
	jm.SetOutcome(job.ID, "run-1", 42, 7)

	got := jm.GetJob(job.ID)
	assert.Equal(t, "run-1", got.RunID)
	assert.Equal(t, 42, got.TotalURLs)
	assert.Equal(t, 7, got.HighSignal)

	jm.SetOutcome("fake-id", "x", 1, 1)
}

func TestCancelJob(t *testing.T) {
	t.Run("running job cancelled", func(t *testing.T) {
		jm := NewJobManager()
		job := createTestJob(t, jm, "https://example.com/")
		jm.UpdateStatus(job.ID, JobStatusRunning, "")

		assert.True(t, jm.CancelJob(job.ID))

		got := jm.GetJob(job.ID)
		assert.Equal(t, JobStatusCancelled, got.Status)
		assert.False(t, got.CompletedAt.IsZero())
		assert.Error(t, jm.GetContext(job.ID).Err())
	})

	t.Run("completed job not cancellable", func(t *testing.T) {
		jm := NewJobManager()
		job := createTestJob(t, jm, "https://example.com/")
		jm.UpdateStatus(job.ID, JobStatusCompleted, "")
		assert.False(t, jm.CancelJob(job.ID))
	})

	t.Run("nonexistent returns false", func(t *testing.T) {
		jm := NewJobManager()
		assert.False(t, jm.CancelJob("nope"))
	})
}

func TestCancelAll(t *testing.T) {
	jm := NewJobManager()
	job1 := createTestJob(t, jm, "https://a.example/")
	job2 := createTestJob(t, jm, "https://b.example/")
	job3 := createTestJob(t, jm, "https://c.example/")
	jm.UpdateStatus(job3.ID, JobStatusCompleted, "")

	jm.CancelAll()

	assert.Equal(t, JobStatusCancelled, jm.GetJob(job1.ID).Status)
	assert.Equal(t, JobStatusCancelled, jm.GetJob(job2.ID).Status)
	assert.Equal(t, JobStatusCompleted, jm.GetJob(job3.ID).Status)

	newJob, err := jm.CreateJob("https://a.example/")
	require.NoError(t, err)
	assert.NotEqual(t, job1.ID, newJob.ID)
}

func TestListJobs(t *testing.T) {
	jm := NewJobManager()
	job1 := createTestJob(t, jm, "https://a.example/")
	job2 := createTestJob(t, jm, "https://b.example/")

	jobs := jm.ListJobs()
	assert.Len(t, jobs, 2)

	ids := make(map[string]bool)
	for _, j := range jobs {
		ids[j.ID] = true
	}
	assert.True(t, ids[job1.ID])
	assert.True(t, ids[job2.ID])
}

func TestGetContext(t *testing.T) {
	t.Run("valid job returns live context", func(t *testing.T) {
		jm := NewJobManager()
		job := createTestJob(t, jm, "https://example.com/")
		assert.NoError(t, jm.GetContext(job.ID).Err())
	})

	t.Run("nonexistent returns background context", func(t *testing.T) {
		jm := NewJobManager()
		assert.Equal(t, context.Background(), jm.GetContext("nope"))
	})
}

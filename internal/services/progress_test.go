package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/okonkwo-dev/Ingesta/internal/models"
)

func TestComputeProgress_Baselines(t *testing.T) {
	now := time.Now()
	tests := []struct {
		status models.DocumentStatus
		want   int
	}{
		{models.StatusUploading, 5},
		{models.StatusUploaded, 15},
		{models.StatusParsing, 40},
		{models.StatusParsed, 60},
		{models.StatusChunking, 65},
		{models.StatusChunked, 80},
		{models.StatusEmbedding, 85},
		{models.StatusReady, 100},
		{models.StatusFailed, 0},
	}
	for _, tt := range tests {
		t.Run(tt.status.String(), func(t *testing.T) {
			p := ComputeProgress(&models.Document{Status: tt.status}, nil, now)
			assert.Equal(t, tt.want, p.Percent)
			assert.Equal(t, tt.status, p.Stage)
			assert.NotEmpty(t, p.Message)
			assert.Nil(t, p.EstimatedSecondsLeft, "no live job means no ETA")
		})
	}
}

func TestComputeProgress_JobBlending(t *testing.T) {
	now := time.Now()
	started := now.Add(-time.Minute)
	doc := &models.Document{Status: models.StatusParsing}

	t.Run("blends job progress into the next band", func(t *testing.T) {
		job := &models.ProcessingJob{Status: models.JobStatusProcessing, ProgressPercent: 50, StartedAt: &started}
		p := ComputeProgress(doc, job, now)
		assert.Equal(t, 50, p.Percent) // 40 + 50% of 20
	})

	t.Run("never reaches 100 before ready", func(t *testing.T) {
		job := &models.ProcessingJob{Status: models.JobStatusProcessing, ProgressPercent: 100, StartedAt: &started}
		for _, st := range []models.DocumentStatus{
			models.StatusUploading, models.StatusParsing, models.StatusChunked, models.StatusEmbedding,
		} {
			p := ComputeProgress(&models.Document{Status: st}, job, now)
			assert.Less(t, p.Percent, 100, "status %s", st)
		}
		// embedding baseline 85 + full band would hit 105; ceiling applies
		p := ComputeProgress(&models.Document{Status: models.StatusEmbedding}, job, now)
		assert.Equal(t, 99, p.Percent)
	})

	t.Run("zero job progress keeps the baseline", func(t *testing.T) {
		job := &models.ProcessingJob{Status: models.JobStatusProcessing, ProgressPercent: 0, StartedAt: &started}
		p := ComputeProgress(doc, job, now)
		assert.Equal(t, 40, p.Percent)
		assert.Nil(t, p.EstimatedSecondsLeft)
	})

	t.Run("pending job does not blend", func(t *testing.T) {
		job := &models.ProcessingJob{Status: models.JobStatusPending, ProgressPercent: 30}
		p := ComputeProgress(doc, job, now)
		assert.Equal(t, 40, p.Percent)
		assert.Nil(t, p.EstimatedSecondsLeft)
	})

	t.Run("job message wins over stage message", func(t *testing.T) {
		job := &models.ProcessingJob{
			Status: models.JobStatusProcessing, ProgressPercent: 10,
			ProgressMessage: "page 3 of 30", StartedAt: &started,
		}
		p := ComputeProgress(doc, job, now)
		assert.Equal(t, "page 3 of 30", p.Message)
	})
}

func TestComputeProgress_ETA(t *testing.T) {
	now := time.Now()

	t.Run("extrapolates from elapsed and progress", func(t *testing.T) {
		started := now.Add(-50 * time.Second)
		job := &models.ProcessingJob{Status: models.JobStatusProcessing, ProgressPercent: 50, StartedAt: &started}
		p := ComputeProgress(&models.Document{Status: models.StatusParsing}, job, now)
		require.NotNil(t, p.EstimatedSecondsLeft)
		// 50s elapsed at 50% -> 100s total -> 50s remaining
		assert.Equal(t, int64(50), *p.EstimatedSecondsLeft)
	})

	t.Run("no start timestamp suppresses the ETA", func(t *testing.T) {
		job := &models.ProcessingJob{Status: models.JobStatusProcessing, ProgressPercent: 50}
		p := ComputeProgress(&models.Document{Status: models.StatusParsing}, job, now)
		assert.Nil(t, p.EstimatedSecondsLeft)
	})

	t.Run("overdue estimate clamps to zero", func(t *testing.T) {
		started := now.Add(-200 * time.Second)
		job := &models.ProcessingJob{Status: models.JobStatusProcessing, ProgressPercent: 99, StartedAt: &started}
		p := ComputeProgress(&models.Document{Status: models.StatusEmbedding}, job, now)
		require.NotNil(t, p.EstimatedSecondsLeft)
		assert.GreaterOrEqual(t, *p.EstimatedSecondsLeft, int64(0))
		assert.LessOrEqual(t, *p.EstimatedSecondsLeft, int64(3))
	})

	t.Run("terminal statuses ignore the job", func(t *testing.T) {
		started := now.Add(-time.Minute)
		job := &models.ProcessingJob{Status: models.JobStatusProcessing, ProgressPercent: 50, StartedAt: &started}
		p := ComputeProgress(&models.Document{Status: models.StatusReady}, job, now)
		assert.Equal(t, 100, p.Percent)
		assert.Nil(t, p.EstimatedSecondsLeft)
	})
}

package reconcile

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuongbtq/spark-analytics/internal/event"
)

func ts(hour, min int) time.Time {
	return time.Date(2024, 3, 1, hour, min, 0, 0, time.UTC)
}

func TestMergeJobStart(t *testing.T) {
	tests := []struct {
		name        string
		job         Job
		ev          event.JobStart
		wantChanged bool
		wantAnomaly bool
		wantStart   time.Time
		wantUser    string
	}{
		{
			name:        "sets unset start",
			job:         Job{JobID: 1},
			ev:          event.JobStart{Job: 1, Timestamp: ts(10, 0), User: "alice"},
			wantChanged: true,
			wantStart:   ts(10, 0),
			wantUser:    "alice",
		},
		{
			name:        "earlier timestamp wins",
			job:         Job{JobID: 1, StartTime: timePtr(ts(10, 0)), User: "alice"},
			ev:          event.JobStart{Job: 1, Timestamp: ts(9, 30), User: "bob"},
			wantChanged: true,
			wantStart:   ts(9, 30),
			wantUser:    "bob",
		},
		{
			name:      "later timestamp loses",
			job:       Job{JobID: 1, StartTime: timePtr(ts(10, 0)), User: "alice"},
			ev:        event.JobStart{Job: 1, Timestamp: ts(10, 30), User: "bob"},
			wantStart: ts(10, 0),
			wantUser:  "alice",
		},
		{
			name:      "equal timestamp same content is a no-op",
			job:       Job{JobID: 1, StartTime: timePtr(ts(10, 0)), User: "alice"},
			ev:        event.JobStart{Job: 1, Timestamp: ts(10, 0), User: "alice"},
			wantStart: ts(10, 0),
			wantUser:  "alice",
		},
		{
			name:        "equal timestamp different content keeps first and flags anomaly",
			job:         Job{JobID: 1, StartTime: timePtr(ts(10, 0)), User: "alice"},
			ev:          event.JobStart{Job: 1, Timestamp: ts(10, 0), User: "bob"},
			wantAnomaly: true,
			wantStart:   ts(10, 0),
			wantUser:    "alice",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := MergeJobStart(&tt.job, tt.ev)

			assert.Equal(t, tt.wantChanged, res.Changed)
			assert.Equal(t, tt.wantAnomaly, res.Anomaly)
			require.NotNil(t, tt.job.StartTime)
			assert.Equal(t, tt.wantStart, *tt.job.StartTime)
			assert.Equal(t, tt.wantUser, tt.job.User)
		})
	}
}

func TestMergeJobEnd(t *testing.T) {
	tests := []struct {
		name        string
		job         Job
		ev          event.JobEnd
		wantChanged bool
		wantAnomaly bool
		wantEnd     time.Time
		wantResult  event.Result
	}{
		{
			name:        "sets unset end",
			job:         Job{JobID: 1, Result: event.ResultUnknown},
			ev:          event.JobEnd{Job: 1, CompletedAt: ts(11, 0), Result: event.ResultSucceeded},
			wantChanged: true,
			wantEnd:     ts(11, 0),
			wantResult:  event.ResultSucceeded,
		},
		{
			name:        "earlier completion wins",
			job:         Job{JobID: 1, EndTime: timePtr(ts(11, 0)), Result: event.ResultSucceeded},
			ev:          event.JobEnd{Job: 1, CompletedAt: ts(10, 45), Result: event.ResultFailed},
			wantChanged: true,
			wantEnd:     ts(10, 45),
			wantResult:  event.ResultFailed,
		},
		{
			name:       "later completion loses",
			job:        Job{JobID: 1, EndTime: timePtr(ts(11, 0)), Result: event.ResultSucceeded},
			ev:         event.JobEnd{Job: 1, CompletedAt: ts(11, 30), Result: event.ResultFailed},
			wantEnd:    ts(11, 0),
			wantResult: event.ResultSucceeded,
		},
		{
			name:        "equal timestamp different result keeps first and flags anomaly",
			job:         Job{JobID: 1, EndTime: timePtr(ts(11, 0)), Result: event.ResultSucceeded},
			ev:          event.JobEnd{Job: 1, CompletedAt: ts(11, 0), Result: event.ResultFailed},
			wantAnomaly: true,
			wantEnd:     ts(11, 0),
			wantResult:  event.ResultSucceeded,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := MergeJobEnd(&tt.job, tt.ev)

			assert.Equal(t, tt.wantChanged, res.Changed)
			assert.Equal(t, tt.wantAnomaly, res.Anomaly)
			require.NotNil(t, tt.job.EndTime)
			assert.Equal(t, tt.wantEnd, *tt.job.EndTime)
			assert.Equal(t, tt.wantResult, tt.job.Result)
		})
	}
}

func TestMerge_Idempotent(t *testing.T) {
	job := Job{JobID: 1}
	start := event.JobStart{Job: 1, Timestamp: ts(10, 0), User: "alice"}

	first := MergeJobStart(&job, start)
	assert.True(t, first.Changed)

	second := MergeJobStart(&job, start)
	assert.False(t, second.Changed)
	assert.False(t, second.Anomaly)
	assert.Equal(t, ts(10, 0), *job.StartTime)
}

func TestMerge_Commutative(t *testing.T) {
	early := event.JobStart{Job: 1, Timestamp: ts(9, 0), User: "alice"}
	late := event.JobStart{Job: 1, Timestamp: ts(10, 0), User: "bob"}

	jobA := Job{JobID: 1}
	MergeJobStart(&jobA, early)
	MergeJobStart(&jobA, late)

	jobB := Job{JobID: 1}
	MergeJobStart(&jobB, late)
	MergeJobStart(&jobB, early)

	assert.Equal(t, jobA, jobB)
	assert.Equal(t, ts(9, 0), *jobA.StartTime)
	assert.Equal(t, "alice", jobA.User)
}

func timePtr(t time.Time) *time.Time { return &t }

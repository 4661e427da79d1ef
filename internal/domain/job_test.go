package domain

import (
	"errors"
	"testing"

	"github.com/google/uuid"
)

func strPtr(s string) *string { return &s }

func TestNewJob(t *testing.T) {
	t.Parallel()

	job, err := NewJob("/data/a.wav", "/data/a.wav")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if job.ID == uuid.Nil {
		t.Error("Expected non-nil UUID, got nil UUID")
	}

	if job.Status != JobStatusPending {
		t.Errorf("Expected status %s, got %s", JobStatusPending, job.Status)
	}

	if job.Result != nil {
		t.Errorf("Expected nil result for a pending job, got %q", *job.Result)
	}

	if job.CreatedAt.IsZero() || job.UpdatedAt.IsZero() {
		t.Error("Expected timestamps to be set")
	}

	if _, err := NewJob("x", ""); err != ErrEmptyJobFilePath {
		t.Errorf("Expected error %v, got %v", ErrEmptyJobFilePath, err)
	}
}

func TestNewJobWithID(t *testing.T) {
	t.Parallel()

	id := uuid.New()
	job, err := NewJobWithID(id, "http://h/a.wav", "audio/a.wav")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if job.ID != id {
		t.Errorf("Expected ID %s, got %s", id, job.ID)
	}

	if _, err := NewJobWithID(uuid.Nil, "a.wav", "a.wav"); err != ErrEmptyJobID {
		t.Errorf("Expected error %v, got %v", ErrEmptyJobID, err)
	}
}

func TestNewJob_UniqueIDs(t *testing.T) {
	t.Parallel()

	seen := make(map[uuid.UUID]bool)
	for i := 0; i < 100; i++ {
		job, err := NewJob("a.wav", "a.wav")
		if err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
		if seen[job.ID] {
			t.Fatalf("Duplicate job ID %s", job.ID)
		}
		seen[job.ID] = true
	}
}

func TestJobValidate(t *testing.T) {
	t.Parallel()

	valid := Job{ID: uuid.New(), FilePath: "a.wav", Status: JobStatusPending}
	if err := valid.Validate(); err != nil {
		t.Errorf("Expected no error, got %v", err)
	}

	tests := []struct {
		name string
		job  Job
		want error
	}{
		{"nil id", Job{FilePath: "a.wav", Status: JobStatusPending}, ErrEmptyJobID},
		{"unknown status", Job{ID: uuid.New(), FilePath: "a.wav", Status: "done"}, ErrInvalidJobStatus},
		{"completed without result", Job{ID: uuid.New(), FilePath: "a.wav", Status: JobStatusCompleted}, ErrMissingResult},
		{"processing with result", Job{ID: uuid.New(), FilePath: "a.wav", Status: JobStatusProcessing, Result: strPtr("x")}, ErrUnexpectedResult},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if err := tc.job.Validate(); err != tc.want {
				t.Errorf("Expected error %v, got %v", tc.want, err)
			}
		})
	}
}

func TestJobStatus_CanTransitionTo(t *testing.T) {
	t.Parallel()

	all := []JobStatus{JobStatusPending, JobStatusProcessing, JobStatusCompleted, JobStatusFailed}
	allowed := map[[2]JobStatus]bool{
		{JobStatusPending, JobStatusProcessing}:   true,
		{JobStatusProcessing, JobStatusCompleted}: true,
		{JobStatusProcessing, JobStatusFailed}:    true,
	}

	for _, from := range all {
		for _, to := range all {
			want := allowed[[2]JobStatus{from, to}]
			if got := from.CanTransitionTo(to); got != want {
				t.Errorf("%s -> %s: expected %v, got %v", from, to, want, got)
			}
		}
	}
}

func TestJobTransition(t *testing.T) {
	t.Parallel()

	job, err := NewJob("a.wav", "a.wav")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	// Skipping processing is refused
	if err := job.Transition(JobStatusCompleted, strPtr("hello")); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("Expected ErrInvalidTransition, got %v", err)
	}

	if err := job.Transition(JobStatusProcessing, nil); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if err := job.Transition(JobStatusCompleted, nil); err != ErrMissingResult {
		t.Fatalf("Expected ErrMissingResult, got %v", err)
	}

	if err := job.Transition(JobStatusCompleted, strPtr("hello world")); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if job.Result == nil || *job.Result != "hello world" {
		t.Fatalf("Expected result to be recorded")
	}

	// Terminal states never change
	if err := job.Transition(JobStatusFailed, strPtr("boom")); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("Expected ErrInvalidTransition, got %v", err)
	}
	if *job.Result != "hello world" {
		t.Errorf("Terminal result was overwritten: %q", *job.Result)
	}
}

func TestJobStatus_Predecessor(t *testing.T) {
	t.Parallel()

	if _, ok := JobStatusPending.Predecessor(); ok {
		t.Error("pending should have no predecessor")
	}
	if p, _ := JobStatusProcessing.Predecessor(); p != JobStatusPending {
		t.Errorf("Expected pending, got %s", p)
	}
	for _, s := range []JobStatus{JobStatusCompleted, JobStatusFailed} {
		if p, _ := s.Predecessor(); p != JobStatusProcessing {
			t.Errorf("%s: expected processing, got %s", s, p)
		}
	}
}

func TestParseJobID(t *testing.T) {
	t.Parallel()

	id := uuid.New()
	parsed, err := ParseJobID(id.String())
	if err != nil || parsed != id {
		t.Fatalf("Expected %s, got %s (%v)", id, parsed, err)
	}

	for _, raw := range []string{"", "not-a-uuid", uuid.Nil.String()} {
		if _, err := ParseJobID(raw); !errors.Is(err, ErrInvalidID) {
			t.Errorf("%q: expected ErrInvalidID, got %v", raw, err)
		}
	}
}

func TestParseJobStatus(t *testing.T) {
	t.Parallel()

	if s, err := ParseJobStatus("processing"); err != nil || s != JobStatusProcessing {
		t.Errorf("Expected processing, got %s (%v)", s, err)
	}
	if _, err := ParseJobStatus("unknown"); !errors.Is(err, ErrInvalidJobStatus) {
		t.Errorf("Expected ErrInvalidJobStatus, got %v", err)
	}
}

package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/citysort/citysort/internal/core/domain"
)

type fakeJobStore struct {
	jobs       []*domain.Job
	enqueueErr error
}

func (f *fakeJobStore) Enqueue(_ context.Context, jobType string, payload map[string]any, actor string, maxAttempts int) (*domain.Job, error) {
	if f.enqueueErr != nil {
		return nil, f.enqueueErr
	}
	job := &domain.Job{
		ID:          uuid.NewString(),
		JobType:     jobType,
		Payload:     payload,
		Status:      domain.JobPending,
		Actor:       actor,
		MaxAttempts: maxAttempts,
		CreatedAt:   time.Now().UTC(),
	}
	f.jobs = append(f.jobs, job)
	return job, nil
}

func (f *fakeJobStore) Claim(context.Context, string) (*domain.Job, error) { return nil, nil }
func (f *fakeJobStore) Complete(context.Context, string, map[string]any) error {
	return nil
}
func (f *fakeJobStore) Fail(context.Context, string, string) error         { return nil }
func (f *fakeJobStore) FailTerminal(context.Context, string, string) error { return nil }

func (f *fakeJobStore) GetByID(_ context.Context, id string) (*domain.Job, error) {
	for _, job := range f.jobs {
		if job.ID == id {
			return job, nil
		}
	}
	return nil, domain.WrapError(domain.ErrJobNotFound, "job.get", errors.New(id))
}

func (f *fakeJobStore) List(_ context.Context, status domain.JobStatus, limit int) ([]domain.Job, error) {
	out := make([]domain.Job, 0)
	for _, job := range f.jobs {
		if status == "" || job.Status == status {
			out = append(out, *job)
		}
	}
	return out, nil
}

type fakeSignal struct {
	published []string
	err       error
}

func (f *fakeSignal) Publish(_ context.Context, jobID string) error {
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, jobID)
	return nil
}

func (f *fakeSignal) Subscribe(context.Context) (<-chan string, error) {
	ch := make(chan string)
	close(ch)
	return ch, nil
}

func TestEnqueueDocumentProcessing(t *testing.T) {
	store := &fakeJobStore{}
	signal := &fakeSignal{}
	uc := NewJobServiceUseCase(store, signal, 3, nil)

	job, err := uc.EnqueueDocumentProcessing(context.Background(), "doc-1", "clerk")
	if err != nil {
		t.Fatalf("EnqueueDocumentProcessing() error = %v", err)
	}

	if job.JobType != domain.JobTypeProcessDocument {
		t.Fatalf("JobType = %q", job.JobType)
	}
	if job.Payload["document_id"] != "doc-1" || job.Payload["actor"] != "clerk" {
		t.Fatalf("Payload = %v", job.Payload)
	}
	if job.MaxAttempts != 3 {
		t.Fatalf("MaxAttempts = %d, want 3", job.MaxAttempts)
	}
	if len(signal.published) != 1 || signal.published[0] != job.ID {
		t.Fatalf("published = %v, want [%s]", signal.published, job.ID)
	}
}

func TestEnqueueDefaultsActorToSystem(t *testing.T) {
	store := &fakeJobStore{}
	uc := NewJobServiceUseCase(store, nil, 3, nil)

	job, err := uc.EnqueueDocumentProcessing(context.Background(), "doc-1", "")
	if err != nil {
		t.Fatalf("EnqueueDocumentProcessing() error = %v", err)
	}
	if job.Actor != "system" || job.Payload["actor"] != "system" {
		t.Fatalf("actor = %q / %v, want system", job.Actor, job.Payload["actor"])
	}
}

func TestEnqueueEmptyDocumentIDRejected(t *testing.T) {
	uc := NewJobServiceUseCase(&fakeJobStore{}, nil, 3, nil)

	_, err := uc.EnqueueDocumentProcessing(context.Background(), "", "clerk")
	if err == nil {
		t.Fatalf("expected error for empty document id")
	}
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("error kind = %v, want ErrInvalidInput", err)
	}
}

func TestEnqueueSignalFailureIsNotFatal(t *testing.T) {
	store := &fakeJobStore{}
	signal := &fakeSignal{err: errors.New("broker down")}
	uc := NewJobServiceUseCase(store, signal, 3, nil)

	job, err := uc.EnqueueDocumentProcessing(context.Background(), "doc-1", "clerk")
	if err != nil {
		t.Fatalf("EnqueueDocumentProcessing() error = %v, signal failure must not fail enqueue", err)
	}
	if job == nil || len(store.jobs) != 1 {
		t.Fatalf("job not durably enqueued despite signal failure")
	}
}

func TestIngestUploadCreatesDocumentAndJob(t *testing.T) {
	repo := newFakeDocumentRepo()
	storage := newFakeStorage()
	jobs := NewJobServiceUseCase(&fakeJobStore{}, &fakeSignal{}, 3, nil)
	uc := NewIngestDocumentUseCase(repo, storage, jobs)

	doc, err := uc.Upload(context.Background(), "my permit (final).pdf", "application/pdf", strings.NewReader("%PDF-1.7"), "clerk")
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}

	if doc.Status != domain.StatusUploaded {
		t.Fatalf("Status = %q, want uploaded", doc.Status)
	}
	if repo.createCalls != 1 {
		t.Fatalf("createCalls = %d, want 1", repo.createCalls)
	}
	if !strings.HasPrefix(doc.StoragePath, "/data/storage/"+doc.ID+"_") {
		t.Fatalf("StoragePath = %q, want id-prefixed key", doc.StoragePath)
	}
	if strings.ContainsAny(doc.StoragePath, "() ") {
		t.Fatalf("StoragePath = %q, want sanitized filename", doc.StoragePath)
	}
}

func TestSanitizeFilename(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"report.pdf", "report.pdf"},
		{"my file (1).txt", "my_file__1_.txt"},
		{"../../etc/passwd", "passwd"},
		{"", "document.bin"},
	}
	for _, tc := range cases {
		if got := sanitizeFilename(tc.in); got != tc.want {
			t.Fatalf("sanitizeFilename(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

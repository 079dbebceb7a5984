package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/citysort/citysort/internal/core/domain"
)

type fakeDocumentRepo struct {
	docs        map[string]*domain.Document
	applied     map[string]*domain.PipelineResult
	appliedSLA  map[string]*int
	appliedDue  map[string]*time.Time
	lastStatus  domain.DocumentStatus
	failedIDs   []string
	applyErr    error
	createCalls int
}

func newFakeDocumentRepo() *fakeDocumentRepo {
	return &fakeDocumentRepo{
		docs:       make(map[string]*domain.Document),
		applied:    make(map[string]*domain.PipelineResult),
		appliedSLA: make(map[string]*int),
		appliedDue: make(map[string]*time.Time),
	}
}

func (f *fakeDocumentRepo) Create(_ context.Context, doc *domain.Document) error {
	f.createCalls++
	f.docs[doc.ID] = doc
	return nil
}

func (f *fakeDocumentRepo) GetByID(_ context.Context, id string) (*domain.Document, error) {
	doc, ok := f.docs[id]
	if !ok {
		return nil, domain.WrapError(domain.ErrDocumentNotFound, "document.get", fmt.Errorf("id=%s", id))
	}
	return doc, nil
}

func (f *fakeDocumentRepo) ApplyResult(_ context.Context, id string, status domain.DocumentStatus, result *domain.PipelineResult, slaDays *int, dueDate *time.Time) error {
	if f.applyErr != nil {
		return f.applyErr
	}
	f.applied[id] = result
	f.appliedSLA[id] = slaDays
	f.appliedDue[id] = dueDate
	f.lastStatus = status
	return nil
}

func (f *fakeDocumentRepo) MarkFailed(_ context.Context, id string) error {
	f.failedIDs = append(f.failedIDs, id)
	return nil
}

type fakeStorage struct {
	copied map[string]string
	saved  map[string][]byte
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{copied: make(map[string]string), saved: make(map[string][]byte)}
}

func (f *fakeStorage) Save(_ context.Context, key string, data io.Reader) (string, error) {
	raw, err := io.ReadAll(data)
	if err != nil {
		return "", err
	}
	f.saved[key] = raw
	return "/data/storage/" + key, nil
}

func (f *fakeStorage) Open(context.Context, string) (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader("")), nil
}

func (f *fakeStorage) Copy(_ context.Context, sourcePath, destKey string) error {
	f.copied[destKey] = sourcePath
	return nil
}

type fakeAudit struct {
	records []string
}

func (f *fakeAudit) Record(_ context.Context, documentID, action, actor, details string) error {
	f.records = append(f.records, documentID+"/"+action+"/"+actor)
	return nil
}

type fakePipeline struct {
	result *domain.PipelineResult
	err    error
}

func (f *fakePipeline) Process(context.Context, string, string) (*domain.PipelineResult, error) {
	return f.result, f.err
}

func routedResult() *domain.PipelineResult {
	return &domain.PipelineResult{
		DocType:          "building_permit",
		Department:       "Building Department",
		Urgency:          domain.UrgencyNormal,
		Confidence:       0.92,
		RequiresReview:   false,
		ExtractedFields:  map[string]string{"applicant_name": "Jane Smith"},
		MissingFields:    []string{},
		ValidationErrors: []string{},
	}
}

func TestProcessByIDRoutesAndAudits(t *testing.T) {
	repo := newFakeDocumentRepo()
	repo.docs["doc-1"] = &domain.Document{
		ID:          "doc-1",
		StoragePath: "/data/storage/doc-1_permit.txt",
		ContentType: "text/plain",
		CreatedAt:   time.Now().UTC(),
	}
	storage := newFakeStorage()
	audit := &fakeAudit{}

	uc := NewProcessDocumentUseCase(
		repo,
		&fakeRuleProvider{set: defaultRules(t), source: "default"},
		&fakePipeline{result: routedResult()},
		storage,
		audit,
		nil,
	)

	result, err := uc.ProcessByID(context.Background(), "doc-1", "clerk")
	if err != nil {
		t.Fatalf("ProcessByID() error = %v", err)
	}

	if result["processed"] != true {
		t.Fatalf("result = %v, want processed=true", result)
	}
	if repo.lastStatus != domain.StatusRouted {
		t.Fatalf("status = %q, want routed", repo.lastStatus)
	}
	if _, ok := storage.copied["processed/doc-1_permit.txt"]; !ok {
		t.Fatalf("processed copy missing, copied = %v", storage.copied)
	}
	if len(audit.records) != 1 || audit.records[0] != "doc-1/pipeline_processed/clerk" {
		t.Fatalf("audit = %v", audit.records)
	}
}

func TestProcessByIDNeedsReviewStatus(t *testing.T) {
	repo := newFakeDocumentRepo()
	repo.docs["doc-2"] = &domain.Document{ID: "doc-2", StoragePath: "/tmp/x", CreatedAt: time.Now().UTC()}

	res := routedResult()
	res.RequiresReview = true

	uc := NewProcessDocumentUseCase(
		repo,
		&fakeRuleProvider{set: defaultRules(t), source: "default"},
		&fakePipeline{result: res},
		newFakeStorage(),
		&fakeAudit{},
		nil,
	)

	if _, err := uc.ProcessByID(context.Background(), "doc-2", "system"); err != nil {
		t.Fatalf("ProcessByID() error = %v", err)
	}
	if repo.lastStatus != domain.StatusNeedsReview {
		t.Fatalf("status = %q, want needs_review", repo.lastStatus)
	}
}

func TestProcessByIDMissingDocumentIsNoOpSuccess(t *testing.T) {
	repo := newFakeDocumentRepo()
	uc := NewProcessDocumentUseCase(
		repo,
		&fakeRuleProvider{set: defaultRules(t), source: "default"},
		&fakePipeline{result: routedResult()},
		newFakeStorage(),
		&fakeAudit{},
		nil,
	)

	result, err := uc.ProcessByID(context.Background(), "gone", "system")
	if err != nil {
		t.Fatalf("ProcessByID() error = %v, want nil for missing document", err)
	}
	if result["processed"] != false {
		t.Fatalf("result = %v, want processed=false", result)
	}
	if len(repo.failedIDs) != 0 {
		t.Fatalf("document should not be marked failed: %v", repo.failedIDs)
	}
}

func TestProcessByIDPipelineFailureMarksFailed(t *testing.T) {
	repo := newFakeDocumentRepo()
	repo.docs["doc-3"] = &domain.Document{ID: "doc-3", StoragePath: "/tmp/x", CreatedAt: time.Now().UTC()}
	audit := &fakeAudit{}

	uc := NewProcessDocumentUseCase(
		repo,
		&fakeRuleProvider{set: defaultRules(t), source: "default"},
		&fakePipeline{err: errors.New("unreadable source")},
		newFakeStorage(),
		audit,
		nil,
	)

	if _, err := uc.ProcessByID(context.Background(), "doc-3", "system"); err == nil {
		t.Fatalf("expected error from pipeline failure")
	}
	if len(repo.failedIDs) != 1 || repo.failedIDs[0] != "doc-3" {
		t.Fatalf("failedIDs = %v, want [doc-3]", repo.failedIDs)
	}
	if len(audit.records) != 1 || audit.records[0] != "doc-3/pipeline_failed/system" {
		t.Fatalf("audit = %v", audit.records)
	}
}

func TestProcessByIDSLAFromRule(t *testing.T) {
	set := defaultRules(t)
	rule, _ := set.Get("building_permit")
	rule.SLADays = 10
	set.Put("building_permit", rule)

	created := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)
	repo := newFakeDocumentRepo()
	repo.docs["doc-4"] = &domain.Document{ID: "doc-4", StoragePath: "/tmp/x", CreatedAt: created}

	uc := NewProcessDocumentUseCase(
		repo,
		&fakeRuleProvider{set: set, source: "custom"},
		&fakePipeline{result: routedResult()},
		newFakeStorage(),
		&fakeAudit{},
		nil,
	)

	if _, err := uc.ProcessByID(context.Background(), "doc-4", "system"); err != nil {
		t.Fatalf("ProcessByID() error = %v", err)
	}

	slaDays := repo.appliedSLA["doc-4"]
	if slaDays == nil || *slaDays != 10 {
		t.Fatalf("slaDays = %v, want 10", slaDays)
	}
	due := repo.appliedDue["doc-4"]
	if due == nil || !due.Equal(created.Add(10*24*time.Hour)) {
		t.Fatalf("dueDate = %v, want createdAt + 10 days", due)
	}
}

func TestProcessByIDNoSLAWhenRuleHasNone(t *testing.T) {
	repo := newFakeDocumentRepo()
	repo.docs["doc-5"] = &domain.Document{ID: "doc-5", StoragePath: "/tmp/x", CreatedAt: time.Now().UTC()}

	uc := NewProcessDocumentUseCase(
		repo,
		&fakeRuleProvider{set: defaultRules(t), source: "default"},
		&fakePipeline{result: routedResult()},
		newFakeStorage(),
		&fakeAudit{},
		nil,
	)

	if _, err := uc.ProcessByID(context.Background(), "doc-5", "system"); err != nil {
		t.Fatalf("ProcessByID() error = %v", err)
	}
	if repo.appliedSLA["doc-5"] != nil || repo.appliedDue["doc-5"] != nil {
		t.Fatalf("expected no SLA window for rule without sla_days")
	}
}

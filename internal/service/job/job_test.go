package job

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ashwinyue/tracesmith/internal/model"
	"github.com/ashwinyue/tracesmith/internal/service/dataset"
	"github.com/ashwinyue/tracesmith/internal/service/pipeline"
	"github.com/ashwinyue/tracesmith/internal/service/types"
)

func waitDone(t *testing.T, m *Manager, id string) {
	t.Helper()
	select {
	case <-m.Done(id):
	case <-time.After(5 * time.Second):
		t.Fatalf("job %s did not finish", id)
	}
}

// ========== Manager 测试 ==========

func TestManager_StartCompleted(t *testing.T) {
	m := NewManager(nil)
	job := m.Start(&model.Job{Traces: 2}, func(ctx context.Context, progress func(completed, passed int)) (string, error) {
		progress(1, 1)
		progress(2, 1)
		return "dataset-1", nil
	})
	if job.ID == "" || job.Status != model.JobStatusRunning {
		t.Fatalf("unexpected job: %+v", job)
	}

	waitDone(t, m, job.ID)

	got, err := m.Get(context.Background(), job.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != model.JobStatusCompleted || got.DatasetID != "dataset-1" || got.Completed != 2 || got.Passed != 1 {
		t.Errorf("unexpected job: %+v", got)
	}
	if err := m.Cancel(context.Background(), job.ID); !errors.Is(err, ErrFinished) {
		t.Errorf("Cancel() on finished job = %v, want ErrFinished", err)
	}
}

func TestManager_Failed(t *testing.T) {
	m := NewManager(nil)
	job := m.Start(&model.Job{}, func(ctx context.Context, progress func(completed, passed int)) (string, error) {
		return "", errors.New("policy too short")
	})
	waitDone(t, m, job.ID)

	got, _ := m.Get(context.Background(), job.ID)
	if got.Status != model.JobStatusFailed || got.Error != "policy too short" {
		t.Errorf("unexpected job: %+v", got)
	}
}

func TestManager_Cancel(t *testing.T) {
	m := NewManager(nil)
	started := make(chan struct{})
	job := m.Start(&model.Job{}, func(ctx context.Context, progress func(completed, passed int)) (string, error) {
		close(started)
		<-ctx.Done()
		return "partial", ctx.Err()
	})
	<-started

	if err := m.Cancel(context.Background(), job.ID); err != nil {
		t.Fatalf("Cancel() error = %v", err)
	}
	waitDone(t, m, job.ID)

	got, _ := m.Get(context.Background(), job.ID)
	if got.Status != model.JobStatusCanceled || got.DatasetID != "partial" {
		t.Errorf("unexpected job: %+v", got)
	}
}

func TestManager_NotFound(t *testing.T) {
	m := NewManager(nil)
	if _, err := m.Get(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get() error = %v, want ErrNotFound", err)
	}
	if err := m.Cancel(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Cancel() error = %v, want ErrNotFound", err)
	}
}

func TestManager_Shutdown(t *testing.T) {
	m := NewManager(nil)
	job := m.Start(&model.Job{}, func(ctx context.Context, progress func(completed, passed int)) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	m.Shutdown(ctx)

	got, _ := m.Get(context.Background(), job.ID)
	if got.Status != model.JobStatusCanceled {
		t.Errorf("Status = %s, want canceled", got.Status)
	}
}

// ========== Service 测试 ==========

type fakeGenerator struct {
	reporter pipeline.Reporter
	traces   []*model.Trace
	err      error
}

func (f *fakeGenerator) GenerateFromSource(ctx context.Context, source string, traces int) (*dataset.Dataset, error) {
	for i, tr := range f.traces {
		f.reporter(pipeline.Progress{Completed: i + 1, Total: traces, Trace: tr})
	}
	return dataset.New(model.DatasetTypeSFT, f.traces), f.err
}

func sampleTraces() []*model.Trace {
	content := model.Content{Messages: []model.Message{
		{Role: model.RoleSystem, Content: "s"},
		{Role: model.RoleUser, Content: "u"},
		{Role: model.RoleAssistant, Content: "a"},
	}}
	return []*model.Trace{
		{Index: 0, DatasetType: model.DatasetTypeSFT, Content: content, Passed: true, IterationsUsed: 1},
		{Index: 1, DatasetType: model.DatasetTypeSFT, Content: content, IterationsUsed: 3},
	}
}

func TestService_Submit(t *testing.T) {
	datasets := dataset.NewService(dataset.NewMemoryStore())
	m := NewManager(nil)
	svc := NewService(m, datasets, func(req *Request, reporter pipeline.Reporter) (Generator, error) {
		return &fakeGenerator{reporter: reporter, traces: sampleTraces()}, nil
	}, "gpt-4o-mini")

	job, err := svc.Submit(context.Background(), &Request{Source: "policy text", Traces: 2})
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if job.DatasetType != model.DatasetTypeSFT {
		t.Errorf("DatasetType = %s, want sft", job.DatasetType)
	}
	waitDone(t, m, job.ID)

	got, err := svc.Get(context.Background(), job.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != model.JobStatusCompleted || got.Completed != 2 || got.DatasetID == "" {
		t.Fatalf("unexpected job: %+v", got)
	}

	record, err := datasets.Get(context.Background(), got.DatasetID)
	if err != nil {
		t.Fatal(err)
	}
	if record.JobID != job.ID || record.TraceCount != 2 || record.PassedCount != 1 || record.Model != "gpt-4o-mini" {
		t.Errorf("unexpected record: %+v", record)
	}
}

func TestService_Submit_Invalid(t *testing.T) {
	built := 0
	svc := NewService(NewManager(nil), dataset.NewService(dataset.NewMemoryStore()), func(req *Request, reporter pipeline.Reporter) (Generator, error) {
		built++
		return &fakeGenerator{reporter: reporter}, nil
	}, "")

	tests := []struct {
		name string
		req  *Request
	}{
		{"来源为空", &Request{Source: " ", Traces: 1}},
		{"数量为零", &Request{Source: "x", Traces: 0}},
		{"未知类型", &Request{Source: "x", Traces: 1, DatasetType: "csv"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.Submit(context.Background(), tt.req); !types.IsConfiguration(err) {
				t.Errorf("Submit() error = %v, want ConfigurationError", err)
			}
		})
	}
	if built != 0 {
		t.Errorf("builder called %d times, want 0", built)
	}
}

func TestService_Submit_GenerationError(t *testing.T) {
	m := NewManager(nil)
	svc := NewService(m, dataset.NewService(dataset.NewMemoryStore()), func(req *Request, reporter pipeline.Reporter) (Generator, error) {
		return &fakeGenerator{reporter: reporter, err: &types.IngestionError{Source: "x", Err: errors.New("empty policy")}}, nil
	}, "")

	job, err := svc.Submit(context.Background(), &Request{Source: "x", Traces: 1})
	if err != nil {
		t.Fatal(err)
	}
	waitDone(t, m, job.ID)

	got, _ := m.Get(context.Background(), job.ID)
	if got.Status != model.JobStatusFailed || got.DatasetID != "" {
		t.Errorf("unexpected job: %+v", got)
	}
}

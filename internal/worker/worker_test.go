package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Nurhen02/ML-Data-Collection-Platform/internal/scrape"
)

type fakeQueue struct {
	mu      sync.Mutex
	tasks   chan scrape.Task
	retries []retryCall
}

type retryCall struct {
	task  scrape.Task
	delay time.Duration
}

func newFakeQueue(tasks ...scrape.Task) *fakeQueue {
	q := &fakeQueue{tasks: make(chan scrape.Task, 16)}
	for _, task := range tasks {
		q.tasks <- task
	}
	return q
}

func (q *fakeQueue) Enqueue(_ context.Context, task scrape.Task) error {
	q.tasks <- task
	return nil
}

func (q *fakeQueue) Dequeue(ctx context.Context) (scrape.Task, error) {
	select {
	case task := <-q.tasks:
		return task, nil
	case <-ctx.Done():
		return scrape.Task{}, ctx.Err()
	}
}

func (q *fakeQueue) Retry(_ context.Context, task scrape.Task, delay time.Duration) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.retries = append(q.retries, retryCall{task: task, delay: delay})
	return nil
}

func (q *fakeQueue) retryCalls() []retryCall {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]retryCall(nil), q.retries...)
}

type fakeJobStore struct {
	mu       sync.Mutex
	jobs     map[string]scrape.Job
	statuses []scrape.JobStatus
	loadErr  error

	// updateErr fails UpdateJobStatus calls for exactly this status.
	updateErrStatus scrape.JobStatus
	updateErr       error
}

func newFakeJobStore(jobs ...scrape.Job) *fakeJobStore {
	s := &fakeJobStore{jobs: make(map[string]scrape.Job)}
	for _, job := range jobs {
		s.jobs[job.ID] = job
	}
	return s
}

func (s *fakeJobStore) CreateJob(_ context.Context, job scrape.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = job
	return nil
}

func (s *fakeJobStore) GetJob(_ context.Context, jobID string) (scrape.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loadErr != nil {
		return scrape.Job{}, s.loadErr
	}
	job, ok := s.jobs[jobID]
	if !ok {
		return scrape.Job{}, scrape.ErrNotFound
	}
	return job, nil
}

func (s *fakeJobStore) UpdateJobStatus(_ context.Context, jobID string, status scrape.JobStatus, errText string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.updateErr != nil && status == s.updateErrStatus {
		return s.updateErr
	}
	job := s.jobs[jobID]
	job.Status = status
	job.ErrorMessage = errText
	s.jobs[jobID] = job
	s.statuses = append(s.statuses, status)
	return nil
}

func (s *fakeJobStore) job(jobID string) scrape.Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.jobs[jobID]
}

func (s *fakeJobStore) statusHistory() []scrape.JobStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]scrape.JobStatus(nil), s.statuses...)
}

type fakeResultStore struct {
	mu      sync.Mutex
	results map[string]scrape.ScrapedData
	err     error
}

func newFakeResultStore() *fakeResultStore {
	return &fakeResultStore{results: make(map[string]scrape.ScrapedData)}
}

func (s *fakeResultStore) CreateResult(_ context.Context, data scrape.ScrapedData) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.results[data.JobID] = data
	return nil
}

func (s *fakeResultStore) GetResult(_ context.Context, jobID string) (scrape.ScrapedData, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.results[jobID]
	if !ok {
		return scrape.ScrapedData{}, scrape.ErrNotFound
	}
	return data, nil
}

type stubScraper struct {
	result scrape.Result
}

func (s stubScraper) Scrape(context.Context, string) scrape.Result { return s.result }

type stubFactory struct {
	mu      sync.Mutex
	result  scrape.Result
	sources []scrape.SourceType
}

func (f *stubFactory) New(source scrape.SourceType) scrape.Scraper {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sources = append(f.sources, source)
	return stubScraper{result: f.result}
}

type fakeClock struct{ now time.Time }

func (c fakeClock) Now() time.Time { return c.now }

func newWorker(q scrape.Queue, jobs scrape.JobStore, results scrape.ResultStore, factory scrape.ScraperFactory) *Worker {
	return New(q, jobs, results, factory, fakeClock{now: time.Unix(1000, 0)},
		Config{RetryDelay: time.Millisecond}, zap.NewNop())
}

func TestWorker_SuccessFlow(t *testing.T) {
	t.Parallel()

	queue := newFakeQueue()
	jobs := newFakeJobStore(scrape.Job{
		ID:     "job-ok",
		URL:    "https://example.com/article",
		Status: scrape.JobStatusPending,
	})
	results := newFakeResultStore()
	factory := &stubFactory{result: scrape.Result{
		CleanText: "extracted body",
		Metadata:  map[string]any{"method": "goquery"},
	}}

	w := newWorker(queue, jobs, results, factory)
	w.processTask(context.Background(), scrape.Task{JobID: "job-ok"})

	require.Equal(t, []scrape.JobStatus{
		scrape.JobStatusProcessing,
		scrape.JobStatusCompleted,
	}, jobs.statusHistory())

	data, err := results.GetResult(context.Background(), "job-ok")
	require.NoError(t, err)
	require.Equal(t, "extracted body", data.CleanText)
	require.Equal(t, time.Unix(1000, 0), data.CreatedAt)

	require.Empty(t, queue.retryCalls())
	require.Equal(t, []scrape.SourceType{scrape.SourceGeneral}, factory.sources)
}

func TestWorker_HintRoutesSource(t *testing.T) {
	t.Parallel()

	queue := newFakeQueue()
	jobs := newFakeJobStore(scrape.Job{
		ID:         "job-hinted",
		URL:        "https://example.com/post",
		SourceType: scrape.SourceReddit,
		Status:     scrape.JobStatusPending,
	})
	factory := &stubFactory{result: scrape.Result{CleanText: "post body"}}

	w := newWorker(queue, jobs, newFakeResultStore(), factory)
	w.processTask(context.Background(), scrape.Task{JobID: "job-hinted"})

	require.Equal(t, []scrape.SourceType{scrape.SourceReddit}, factory.sources)
}

func TestWorker_SoftFailureIsTerminal(t *testing.T) {
	t.Parallel()

	queue := newFakeQueue()
	jobs := newFakeJobStore(scrape.Job{
		ID:     "job-soft",
		URL:    "https://example.com",
		Status: scrape.JobStatusPending,
	})
	results := newFakeResultStore()
	sentinel := "Error: Could not scrape general content from https://example.com. Reason: blocked"
	factory := &stubFactory{result: scrape.Result{
		CleanText: sentinel,
		Metadata:  map[string]any{"error": "blocked"},
	}}

	w := newWorker(queue, jobs, results, factory)
	w.processTask(context.Background(), scrape.Task{JobID: "job-soft"})

	job := jobs.job("job-soft")
	require.Equal(t, scrape.JobStatusFailed, job.Status)
	require.Equal(t, sentinel, job.ErrorMessage)

	// Soft failures never re-enter the queue and never store a result.
	require.Empty(t, queue.retryCalls())
	_, err := results.GetResult(context.Background(), "job-soft")
	require.ErrorIs(t, err, scrape.ErrNotFound)
}

func TestWorker_InfraFailureFailsAndRetries(t *testing.T) {
	t.Parallel()

	queue := newFakeQueue()
	jobs := newFakeJobStore(scrape.Job{
		ID:     "job-infra",
		URL:    "https://example.com",
		Status: scrape.JobStatusPending,
	})
	results := newFakeResultStore()
	results.err = errors.New("connection refused")
	factory := &stubFactory{result: scrape.Result{CleanText: "fine content"}}

	w := newWorker(queue, jobs, results, factory)
	w.processTask(context.Background(), scrape.Task{JobID: "job-infra", Attempt: 0})

	job := jobs.job("job-infra")
	require.Equal(t, scrape.JobStatusFailed, job.Status)
	require.Equal(t, "connection refused", job.ErrorMessage)

	calls := queue.retryCalls()
	require.Len(t, calls, 1)
	require.Equal(t, 1, calls[0].task.Attempt)
	require.Equal(t, time.Millisecond, calls[0].delay)
}

func TestWorker_CompletedWriteFailureFailsAndRetries(t *testing.T) {
	t.Parallel()

	queue := newFakeQueue()
	jobs := newFakeJobStore(scrape.Job{
		ID:     "job-commit",
		URL:    "https://example.com",
		Status: scrape.JobStatusPending,
	})
	jobs.updateErrStatus = scrape.JobStatusCompleted
	jobs.updateErr = errors.New("connection reset")
	results := newFakeResultStore()
	factory := &stubFactory{result: scrape.Result{CleanText: "fine content"}}

	w := newWorker(queue, jobs, results, factory)
	w.processTask(context.Background(), scrape.Task{JobID: "job-commit", Attempt: 0})

	// The final status write is infrastructure like any other store call: the
	// job must not sit in PROCESSING forever next to an orphaned result row.
	job := jobs.job("job-commit")
	require.Equal(t, scrape.JobStatusFailed, job.Status)
	require.Equal(t, "connection reset", job.ErrorMessage)

	calls := queue.retryCalls()
	require.Len(t, calls, 1)
	require.Equal(t, 1, calls[0].task.Attempt)
	require.Equal(t, time.Millisecond, calls[0].delay)
}

func TestWorker_RetryBudgetExhausted(t *testing.T) {
	t.Parallel()

	queue := newFakeQueue()
	jobs := newFakeJobStore(scrape.Job{
		ID:     "job-last",
		URL:    "https://example.com",
		Status: scrape.JobStatusFailed,
	})
	results := newFakeResultStore()
	results.err = errors.New("still down")
	factory := &stubFactory{result: scrape.Result{CleanText: "fine content"}}

	w := newWorker(queue, jobs, results, factory)
	w.processTask(context.Background(), scrape.Task{JobID: "job-last", Attempt: DefaultMaxRetries})

	require.Empty(t, queue.retryCalls())
	require.Equal(t, scrape.JobStatusFailed, jobs.job("job-last").Status)
}

func TestWorker_UnknownJobIsDropped(t *testing.T) {
	t.Parallel()

	queue := newFakeQueue()
	jobs := newFakeJobStore()

	w := newWorker(queue, jobs, newFakeResultStore(), &stubFactory{})
	w.processTask(context.Background(), scrape.Task{JobID: "no-such-job"})

	require.Empty(t, queue.retryCalls())
	require.Empty(t, jobs.statusHistory())
}

func TestWorker_RunConsumesUntilCancel(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	queue := newFakeQueue(scrape.Task{JobID: "job-run"})
	jobs := newFakeJobStore(scrape.Job{
		ID:     "job-run",
		URL:    "https://example.com",
		Status: scrape.JobStatusPending,
	})
	results := newFakeResultStore()
	factory := &stubFactory{result: scrape.Result{CleanText: "body"}}

	w := newWorker(queue, jobs, results, factory)

	done := make(chan struct{})
	go func() {
		defer close(done)
		w.Run(ctx)
	}()

	require.Eventually(t, func() bool {
		return jobs.job("job-run").Status == scrape.JobStatusCompleted
	}, time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop after cancel")
	}
}

package workflow_test

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"shipyard/internal/config"
	"shipyard/internal/delivery"
	"shipyard/internal/export"
	"shipyard/internal/jobstore"
	"shipyard/internal/logging"
	"shipyard/internal/rendersource"
	"shipyard/internal/services"
	"shipyard/internal/testsupport"
	"shipyard/internal/workflow"
)

type fakeSource struct {
	mu        sync.Mutex
	campaigns map[string]*rendersource.Campaign
}

func newFakeSource(campaigns ...*rendersource.Campaign) *fakeSource {
	src := &fakeSource{campaigns: map[string]*rendersource.Campaign{}}
	for _, c := range campaigns {
		src.campaigns[c.ID] = c
	}
	return src
}

func (s *fakeSource) Campaign(_ context.Context, id string) (*rendersource.Campaign, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.campaigns[id]
	if !ok {
		return nil, services.Wrap(services.ErrNotFound, "test", "campaign", id, nil)
	}
	copied := *c
	return &copied, nil
}

func (s *fakeSource) Open(context.Context, string, rendersource.Output) (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader("payload")), nil
}

func completedCampaign(id string, size int64) *rendersource.Campaign {
	return &rendersource.Campaign{
		ID:      id,
		Name:    "Campaign " + id,
		Status:  rendersource.CampaignCompleted,
		Outputs: []rendersource.Output{{ID: id + "-o1", Name: "hero.mp4", Format: "mp4", Size: size}},
	}
}

// scriptedExporter returns canned outcomes per campaign and counts attempts.
type scriptedExporter struct {
	mu       sync.Mutex
	attempts map[string]int
	script   map[string]func(attempt int) (export.Result, error)
	before   func(campaignID string)
}

func newScriptedExporter() *scriptedExporter {
	return &scriptedExporter{
		attempts: map[string]int{},
		script:   map[string]func(int) (export.Result, error){},
	}
}

func (e *scriptedExporter) Attempt(_ context.Context, campaignID string, _ *export.Job) (export.Result, error) {
	if e.before != nil {
		e.before(campaignID)
	}
	e.mu.Lock()
	e.attempts[campaignID]++
	attempt := e.attempts[campaignID]
	fn := e.script[campaignID]
	e.mu.Unlock()
	if fn != nil {
		return fn(attempt)
	}
	return successResult(campaignID), nil
}

func (e *scriptedExporter) count(campaignID string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.attempts[campaignID]
}

func successResult(campaignID string) export.Result {
	return export.Result{
		ID:         "result-" + campaignID,
		CampaignID: campaignID,
		Status:     export.ResultSuccess,
		Files: []export.File{{
			ID:   "file-" + campaignID,
			Name: campaignID + ".mp4",
			Type: export.FileRender,
			Size: 10,
		}},
		Metadata: export.ResultMetadata{FileCount: 1, TotalSize: 10, Version: "v1.0.0"},
	}
}

func failedResult(campaignID, msg string) (export.Result, error) {
	err := services.Wrap(services.ErrValidation, "test", "export", msg, nil)
	return export.Result{CampaignID: campaignID, Status: export.ResultFailed, Errors: []string{err.Error()}}, err
}

type fakeFinalizer struct {
	mu      sync.Mutex
	calls   int
	err     error
	partial map[string]string
}

func (f *fakeFinalizer) Finalize(_ context.Context, job *export.Job) (delivery.Outcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return delivery.Outcome{FileURLs: f.partial}, f.err
	}
	urls := map[string]string{}
	for _, result := range job.Results {
		for _, file := range result.Files {
			urls[file.ID] = "file:///exports/" + file.Name
		}
	}
	return delivery.Outcome{
		Destination:   job.Destination.Type,
		ArtifactPath:  "/exports/" + job.ID + ".zip",
		DeliveredURLs: []string{"file:///exports/" + job.ID + ".zip"},
		FileURLs:      urls,
	}, nil
}

type harness struct {
	cfg       *config.Config
	store     *jobstore.Store
	source    *fakeSource
	exporter  *scriptedExporter
	finalizer *fakeFinalizer
	notifier  *testsupport.RecordingNotifier
	mgr       *workflow.Manager
}

func newHarness(t *testing.T, campaigns []*rendersource.Campaign, opts ...testsupport.ConfigOption) *harness {
	t.Helper()
	cfg := testsupport.NewConfig(t, opts...)
	h := &harness{
		cfg:       cfg,
		store:     testsupport.MustOpenStore(t, cfg),
		source:    newFakeSource(campaigns...),
		exporter:  newScriptedExporter(),
		finalizer: &fakeFinalizer{},
		notifier:  &testsupport.RecordingNotifier{},
	}
	h.mgr = workflow.NewManager(cfg, h.store, h.source, logging.NewNop(),
		workflow.WithExporter(h.exporter),
		workflow.WithFinalizer(h.finalizer),
		workflow.WithNotifier(h.notifier),
	)
	return h
}

func threeCampaigns() []*rendersource.Campaign {
	return []*rendersource.Campaign{
		completedCampaign("c1", 1024),
		completedCampaign("c2", 1024),
		completedCampaign("c3", 1024),
	}
}

func notifyAll() export.Options {
	return export.Options{Notifications: export.NotificationOptions{OnComplete: true, OnError: true}}
}

func TestCreateJobPersistsQueuedJob(t *testing.T) {
	h := newHarness(t, threeCampaigns())
	ctx := services.WithRequestID(context.Background(), "req-42")

	job, err := h.mgr.CreateJob(ctx, workflow.Request{
		Name:        "  Spring Launch ",
		CampaignIDs: []string{"c1", " c2 ", ""},
	})
	if err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	if job.Status != export.StatusQueued || job.Name != "Spring Launch" {
		t.Fatalf("unexpected job %+v", job)
	}
	if got := strings.Join(job.CampaignIDs, ","); got != "c1,c2" {
		t.Fatalf("campaign ids not normalized: %s", got)
	}
	if job.Format.Packaging != export.PackagingZip || job.Destination.Type != export.DestinationDownload {
		t.Fatalf("defaults not applied: %+v %+v", job.Format, job.Destination)
	}
	if job.Metadata.EstimatedSize != 2048 || job.Metadata.RequestID != "req-42" {
		t.Fatalf("unexpected metadata %+v", job.Metadata)
	}

	stored, err := h.store.Get(context.Background(), job.ID)
	if err != nil || stored == nil {
		t.Fatalf("store.Get: %v %v", stored, err)
	}
	if stored.Status != export.StatusQueued {
		t.Fatalf("stored status %s", stored.Status)
	}
}

func TestCreateJobAdmission(t *testing.T) {
	drafting := completedCampaign("draft", 10)
	drafting.Status = rendersource.CampaignRendering
	big := completedCampaign("big", 5<<20)

	cases := []struct {
		name   string
		ids    []string
		format export.Format
		marker error
	}{
		{"over cap", []string{"big"}, export.Format{}, services.ErrAdmission},
		{"not completed", []string{"draft"}, export.Format{}, services.ErrAdmission},
		{"missing campaign", []string{"ghost"}, export.Format{}, services.ErrAdmission},
		{"no campaigns", []string{" "}, export.Format{}, services.ErrValidation},
		{"duplicate", []string{"c1", "c1"}, export.Format{}, services.ErrValidation},
		{"bad packaging", []string{"c1"}, export.Format{Packaging: "rar"}, services.ErrValidation},
		{"unknown platform", []string{"c1"}, export.Format{Type: export.FormatPlatform, Platform: "myspace"}, services.ErrValidation},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t, []*rendersource.Campaign{completedCampaign("c1", 10), drafting, big},
				testsupport.WithMaxExportSizeMB(1))
			_, err := h.mgr.CreateJob(context.Background(), workflow.Request{CampaignIDs: tc.ids, Format: tc.format})
			if !errors.Is(err, tc.marker) {
				t.Fatalf("expected %v, got %v", tc.marker, err)
			}
			jobs, err := h.store.List(context.Background())
			if err != nil {
				t.Fatalf("List: %v", err)
			}
			if len(jobs) != 0 {
				t.Fatalf("rejected request persisted %d jobs", len(jobs))
			}
		})
	}
}

func TestCreateJobSubmitsToScheduler(t *testing.T) {
	h := newHarness(t, threeCampaigns())
	sub := &recordingSubmitter{}
	h.mgr.SetSubmitter(sub)

	job, err := h.mgr.CreateJob(context.Background(), workflow.Request{CampaignIDs: []string{"c1"}})
	if err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	if len(sub.ids) != 1 || sub.ids[0] != job.ID {
		t.Fatalf("expected submission of %s, got %v", job.ID, sub.ids)
	}
}

type recordingSubmitter struct{ ids []string }

func (r *recordingSubmitter) Submit(id string) error {
	r.ids = append(r.ids, id)
	return nil
}

func TestProcessJobPartialFailureCompletes(t *testing.T) {
	h := newHarness(t, threeCampaigns())
	h.exporter.script["c2"] = func(int) (export.Result, error) { return failedResult("c2", "render missing") }

	job, err := h.mgr.CreateJob(context.Background(), workflow.Request{
		Name:        "spring",
		CampaignIDs: []string{"c1", "c2", "c3"},
		Options:     notifyAll(),
	})
	if err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	done, err := h.mgr.ProcessJob(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("ProcessJob: %v", err)
	}

	if done.Status != export.StatusCompleted || done.Progress != 100 {
		t.Fatalf("unexpected terminal state %s/%d", done.Status, done.Progress)
	}
	if len(done.Results) != 2 || len(done.Errors) != 1 {
		t.Fatalf("expected 2 results and 1 error, got %d/%d", len(done.Results), len(done.Errors))
	}
	if !strings.HasPrefix(done.Errors[0], "campaign c2:") {
		t.Fatalf("error not attributed to c2: %q", done.Errors[0])
	}
	if done.Accounted() != len(done.CampaignIDs) {
		t.Fatalf("job not fully accounted: %d of %d", done.Accounted(), len(done.CampaignIDs))
	}
	if done.Metadata.SucceededCampaigns != 2 || done.Metadata.FailedCampaigns != 1 || done.Metadata.TotalFiles != 2 {
		t.Fatalf("unexpected aggregates %+v", done.Metadata)
	}
	if done.Metadata.ArtifactPath == "" || done.Results[0].Files[0].URL == "" {
		t.Fatalf("delivery outcome not applied: %+v", done.Metadata)
	}
	if h.exporter.count("c2") != 1 {
		t.Fatalf("validation failures must not retry, got %d attempts", h.exporter.count("c2"))
	}
	if completed, failed := h.notifier.Counts(); completed != 1 || failed != 0 {
		t.Fatalf("unexpected notifications completed=%d failed=%d", completed, failed)
	}
}

func TestProcessJobAllFailedIsFailed(t *testing.T) {
	h := newHarness(t, threeCampaigns())
	for _, id := range []string{"c1", "c2"} {
		id := id
		h.exporter.script[id] = func(int) (export.Result, error) { return failedResult(id, "broken") }
	}
	job, err := h.mgr.CreateJob(context.Background(), workflow.Request{CampaignIDs: []string{"c1", "c2"}, Options: notifyAll()})
	if err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	done, err := h.mgr.ProcessJob(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("ProcessJob: %v", err)
	}
	if done.Status != export.StatusFailed {
		t.Fatalf("expected failed, got %s", done.Status)
	}
	if h.finalizer.calls != 0 {
		t.Fatal("finalizer must not run without results")
	}
	if _, failed := h.notifier.Counts(); failed != 1 {
		t.Fatalf("expected one failure notification, got %d", failed)
	}
}

func TestProcessJobRetriesTransientFailures(t *testing.T) {
	h := newHarness(t, threeCampaigns(), testsupport.WithRetryAttempts(2))
	h.exporter.script["c1"] = func(attempt int) (export.Result, error) {
		if attempt < 3 {
			err := services.Wrap(services.ErrTransient, "test", "fetch", "connection reset", nil)
			return export.Result{CampaignID: "c1", Status: export.ResultFailed, Errors: []string{err.Error()}}, err
		}
		return successResult("c1"), nil
	}
	job, err := h.mgr.CreateJob(context.Background(), workflow.Request{CampaignIDs: []string{"c1"}})
	if err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	done, err := h.mgr.ProcessJob(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("ProcessJob: %v", err)
	}
	if done.Status != export.StatusCompleted {
		t.Fatalf("expected completed after retries, got %s: %v", done.Status, done.Errors)
	}
	if got := h.exporter.count("c1"); got != 3 {
		t.Fatalf("expected 3 attempts, got %d", got)
	}
}

func TestProcessJobRetryBudgetExhausted(t *testing.T) {
	h := newHarness(t, threeCampaigns(), testsupport.WithRetryAttempts(1))
	h.exporter.script["c1"] = func(int) (export.Result, error) {
		err := services.Wrap(services.ErrTransient, "test", "fetch", "timeout", nil)
		return export.Result{CampaignID: "c1", Status: export.ResultFailed, Errors: []string{err.Error()}}, err
	}
	job, err := h.mgr.CreateJob(context.Background(), workflow.Request{CampaignIDs: []string{"c1", "c2"}})
	if err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	done, err := h.mgr.ProcessJob(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("ProcessJob: %v", err)
	}
	if got := h.exporter.count("c1"); got != 2 {
		t.Fatalf("expected 2 attempts, got %d", got)
	}
	if done.Status != export.StatusCompleted || len(done.Errors) != 1 {
		t.Fatalf("unexpected outcome %s %v", done.Status, done.Errors)
	}
}

func TestProcessJobProgressIsMonotonic(t *testing.T) {
	h := newHarness(t, threeCampaigns(), testsupport.WithMaxConcurrent(1))
	var (
		mu       sync.Mutex
		observed []int
		jobID    string
	)
	h.exporter.before = func(string) {
		stored, err := h.store.Get(context.Background(), jobID)
		if err != nil || stored == nil {
			return
		}
		mu.Lock()
		observed = append(observed, stored.Progress)
		mu.Unlock()
	}
	job, err := h.mgr.CreateJob(context.Background(), workflow.Request{CampaignIDs: []string{"c1", "c2", "c3"}})
	if err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	jobID = job.ID
	done, err := h.mgr.ProcessJob(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("ProcessJob: %v", err)
	}
	observed = append(observed, done.Progress)
	for i := 1; i < len(observed); i++ {
		if observed[i] < observed[i-1] {
			t.Fatalf("progress went backwards: %v", observed)
		}
	}
	if len(observed) != 4 || observed[0] != 0 || observed[3] != 100 {
		t.Fatalf("unexpected progress trace %v", observed)
	}
	if err := h.store.UpdateProgress(context.Background(), job.ID, 10); err != nil {
		t.Fatalf("UpdateProgress: %v", err)
	}
	stored, _ := h.store.Get(context.Background(), job.ID)
	if stored.Progress != 100 {
		t.Fatalf("terminal progress changed to %d", stored.Progress)
	}
}

func TestProcessJobFinalizationFailure(t *testing.T) {
	h := newHarness(t, threeCampaigns())
	h.finalizer.err = errors.New("bucket unreachable")
	job, err := h.mgr.CreateJob(context.Background(), workflow.Request{CampaignIDs: []string{"c1"}, Options: notifyAll()})
	if err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	done, err := h.mgr.ProcessJob(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("ProcessJob: %v", err)
	}
	if done.Status != export.StatusFailed {
		t.Fatalf("expected failed, got %s", done.Status)
	}
	if !strings.HasPrefix(done.Metadata.FinalizationError, "finalization: ") ||
		!strings.Contains(done.Metadata.FinalizationError, "bucket unreachable") {
		t.Fatalf("unexpected finalization error %q", done.Metadata.FinalizationError)
	}
	if len(done.Results) != 1 || len(done.Errors) != 0 {
		t.Fatalf("campaign outcomes should be untouched: %d results, %v", len(done.Results), done.Errors)
	}
	if _, failed := h.notifier.Counts(); failed != 1 {
		t.Fatalf("expected failure notification, got %d", failed)
	}
}

func TestProcessJobIgnoresNonQueued(t *testing.T) {
	h := newHarness(t, threeCampaigns())
	job := testsupport.NewJob(t, h.store, "c1", "c2", "c3")

	if err := h.mgr.CancelJob(context.Background(), job.ID); err != nil {
		t.Fatalf("CancelJob: %v", err)
	}
	got, err := h.mgr.ProcessJob(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("ProcessJob: %v", err)
	}
	if got.Status != export.StatusCancelled {
		t.Fatalf("expected cancelled, got %s", got.Status)
	}
	if got.Accounted() != 3 {
		t.Fatalf("cancelled job should account every campaign, got %d", got.Accounted())
	}
	for _, id := range []string{"c1", "c2", "c3"} {
		if h.exporter.count(id) != 0 {
			t.Fatalf("campaign %s exported after cancel", id)
		}
	}
	if err := h.mgr.CancelJob(context.Background(), job.ID); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error cancelling twice, got %v", err)
	}
}

func TestCancelDuringProcessingStopsLaunches(t *testing.T) {
	h := newHarness(t, threeCampaigns(), testsupport.WithMaxConcurrent(1))
	job, err := h.mgr.CreateJob(context.Background(), workflow.Request{CampaignIDs: []string{"c1", "c2", "c3"}, Options: notifyAll()})
	if err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	h.exporter.before = func(campaignID string) {
		if campaignID == "c1" {
			if err := h.mgr.CancelJob(context.Background(), job.ID); err != nil {
				t.Errorf("CancelJob: %v", err)
			}
		}
	}

	done, err := h.mgr.ProcessJob(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("ProcessJob: %v", err)
	}
	if done.Status != export.StatusCancelled {
		t.Fatalf("expected cancelled, got %s", done.Status)
	}
	if h.exporter.count("c2") != 0 || h.exporter.count("c3") != 0 {
		t.Fatal("campaigns launched after cancellation")
	}
	if len(done.Results) != 0 {
		t.Fatalf("in-flight result kept after cancellation: %+v", done.Results)
	}
	if done.Accounted() != 3 || !strings.Contains(done.Errors[0], "cancelled during export") {
		t.Fatalf("expected every campaign accounted, got %v", done.Errors)
	}
	if h.finalizer.calls != 0 {
		t.Fatal("cancelled jobs must not be finalized")
	}
	if completed, failed := h.notifier.Counts(); completed+failed != 0 {
		t.Fatal("cancelled jobs must not notify")
	}

	stored, err := h.store.Get(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if stored.Status != export.StatusCancelled || len(stored.Results) != 0 || stored.Accounted() != 3 {
		t.Fatalf("unexpected stored state %s results=%d errors=%v", stored.Status, len(stored.Results), stored.Errors)
	}
}

func TestCancelDiscardsEveryParallelCampaign(t *testing.T) {
	h := newHarness(t, threeCampaigns(), testsupport.WithMaxConcurrent(3))
	job, err := h.mgr.CreateJob(context.Background(), workflow.Request{CampaignIDs: []string{"c1", "c2", "c3"}})
	if err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	// c2 and c3 stay in flight until c1 has cancelled the job.
	release := make(chan struct{})
	h.exporter.before = func(campaignID string) {
		if campaignID != "c1" {
			<-release
			return
		}
		if err := h.mgr.CancelJob(context.Background(), job.ID); err != nil {
			t.Errorf("CancelJob: %v", err)
		}
		close(release)
	}

	done, err := h.mgr.ProcessJob(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("ProcessJob: %v", err)
	}
	if done.Status != export.StatusCancelled {
		t.Fatalf("expected cancelled, got %s", done.Status)
	}
	if len(done.Results) != 0 || len(done.Errors) != 3 {
		t.Fatalf("expected only cancellation errors, got results=%d errors=%v", len(done.Results), done.Errors)
	}
	for idx, msg := range done.Errors {
		if !strings.HasPrefix(msg, "campaign "+job.CampaignIDs[idx]+": cancelled") {
			t.Fatalf("unexpected error %d: %q", idx, msg)
		}
	}
}

func TestProcessJobPersistsEachCampaign(t *testing.T) {
	h := newHarness(t, threeCampaigns(), testsupport.WithMaxConcurrent(1))
	job, err := h.mgr.CreateJob(context.Background(), workflow.Request{CampaignIDs: []string{"c1", "c2", "c3"}})
	if err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	h.exporter.script["c2"] = func(int) (export.Result, error) { return failedResult("c2", "render missing") }
	seen := map[string]*export.Job{}
	h.exporter.before = func(campaignID string) {
		stored, err := h.store.Get(context.Background(), job.ID)
		if err != nil {
			t.Errorf("Get: %v", err)
			return
		}
		seen[campaignID] = stored
	}

	if _, err := h.mgr.ProcessJob(context.Background(), job.ID); err != nil {
		t.Fatalf("ProcessJob: %v", err)
	}
	atC2 := seen["c2"]
	if atC2 == nil || len(atC2.Results) != 1 || atC2.Results[0].CampaignID != "c1" || atC2.Progress != 30 {
		t.Fatalf("c1 not persisted before c2 started: %+v", atC2)
	}
	atC3 := seen["c3"]
	if atC3 == nil || len(atC3.Results) != 1 || len(atC3.Errors) != 1 || atC3.Progress != 60 {
		t.Fatalf("c2 error not persisted before c3 started: %+v", atC3)
	}
}

func TestProcessJobReturnsStoreFailures(t *testing.T) {
	h := newHarness(t, threeCampaigns())
	job, err := h.mgr.CreateJob(context.Background(), workflow.Request{CampaignIDs: []string{"c1"}})
	if err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	h.exporter.before = func(string) {
		if err := h.store.Close(); err != nil {
			t.Errorf("Close: %v", err)
		}
	}

	if _, err := h.mgr.ProcessJob(context.Background(), job.ID); err == nil {
		t.Fatal("expected the store failure to be returned")
	}
	if h.finalizer.calls != 0 {
		t.Fatal("finalization ran after a store failure")
	}
}

func TestProgressView(t *testing.T) {
	h := newHarness(t, threeCampaigns())
	job := testsupport.NewJob(t, h.store, "c1", "c2")

	p, err := h.mgr.Progress(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("Progress: %v", err)
	}
	if p.CurrentStep != "Queued" || p.CampaignsTotal != 2 || p.EstimatedTimeRemaining != nil {
		t.Fatalf("unexpected queued view %+v", p)
	}
	if _, err := h.mgr.ProcessJob(context.Background(), job.ID); err != nil {
		t.Fatalf("ProcessJob: %v", err)
	}
	p, err = h.mgr.Progress(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("Progress: %v", err)
	}
	if p.CurrentStep != "Completed" || p.CampaignsDone != 2 || p.Progress != 100 {
		t.Fatalf("unexpected terminal view %+v", p)
	}

	missing, err := h.mgr.Progress(context.Background(), "nope")
	if err != nil || missing != nil {
		t.Fatalf("expected (nil, nil) for missing job, got %v %v", missing, err)
	}
}

func TestRecoverInterruptedFailsProcessingJobs(t *testing.T) {
	h := newHarness(t, threeCampaigns())
	job := testsupport.NewJob(t, h.store, "c1", "c2", "c3")
	started := time.Now().UTC()
	job.Status = export.StatusProcessing
	job.StartedAt = &started
	job.Results = []export.Result{successResult("c1")}
	if err := h.store.Update(context.Background(), job); err != nil {
		t.Fatalf("Update: %v", err)
	}

	n, err := h.mgr.RecoverInterrupted(context.Background())
	if err != nil {
		t.Fatalf("RecoverInterrupted: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 recovered job, got %d", n)
	}
	stored, _ := h.store.Get(context.Background(), job.ID)
	if stored.Status != export.StatusFailed || stored.CompletedAt == nil {
		t.Fatalf("unexpected recovered state %s", stored.Status)
	}
	if stored.Accounted() != 3 || len(stored.Errors) != 2 {
		t.Fatalf("expected c2 and c3 errors, got %v", stored.Errors)
	}
	for _, msg := range stored.Errors {
		if !strings.Contains(msg, "interrupted by worker restart") {
			t.Fatalf("unexpected recovery error %q", msg)
		}
	}

	n, err = h.mgr.RecoverInterrupted(context.Background())
	if err != nil || n != 0 {
		t.Fatalf("second recovery should be a no-op, got %d %v", n, err)
	}
}

func TestTemplatesDriveJobCreation(t *testing.T) {
	h := newHarness(t, threeCampaigns())
	tmpl, err := h.mgr.CreateTemplate(context.Background(), export.Template{
		Name:   "weekly",
		Format: export.Format{Packaging: export.PackagingTar, Compression: export.CompressionLossy},
	})
	if err != nil {
		t.Fatalf("CreateTemplate: %v", err)
	}
	if tmpl.Format.Type != export.FormatRender {
		t.Fatalf("template defaults not applied: %+v", tmpl.Format)
	}
	if _, err := h.mgr.CreateTemplate(context.Background(), export.Template{Name: "weekly"}); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected duplicate name rejection, got %v", err)
	}

	job, err := h.mgr.CreateJobFromTemplate(context.Background(), "weekly", []string{"c1"}, "ops", "")
	if err != nil {
		t.Fatalf("CreateJobFromTemplate: %v", err)
	}
	if job.TemplateID != tmpl.ID || job.Name != "weekly" || job.Format.Packaging != export.PackagingTar {
		t.Fatalf("template not applied: %+v", job)
	}
	stored, err := h.mgr.GetTemplate(context.Background(), tmpl.ID)
	if err != nil {
		t.Fatalf("GetTemplate: %v", err)
	}
	if stored.UsageCount != 1 {
		t.Fatalf("expected usage count 1, got %d", stored.UsageCount)
	}

	if err := h.mgr.DeleteTemplate(context.Background(), tmpl.ID); err != nil {
		t.Fatalf("DeleteTemplate: %v", err)
	}
	if _, err := h.mgr.CreateJobFromTemplate(context.Background(), tmpl.ID, []string{"c1"}, "", ""); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found after delete, got %v", err)
	}
}

func TestRedeliverCompletedJob(t *testing.T) {
	h := newHarness(t, threeCampaigns())
	job, err := h.mgr.CreateJob(context.Background(), workflow.Request{CampaignIDs: []string{"c1"}})
	if err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	if _, err := h.mgr.Redeliver(context.Background(), job.ID); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("queued jobs cannot be redelivered, got %v", err)
	}
	if _, err := h.mgr.ProcessJob(context.Background(), job.ID); err != nil {
		t.Fatalf("ProcessJob: %v", err)
	}
	again, err := h.mgr.Redeliver(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("Redeliver: %v", err)
	}
	if again.Status != export.StatusCompleted || h.finalizer.calls != 2 {
		t.Fatalf("unexpected redelivery %s calls=%d", again.Status, h.finalizer.calls)
	}
}

func TestRedeliverKeepsPartialReceipts(t *testing.T) {
	h := newHarness(t, threeCampaigns())
	job, err := h.mgr.CreateJob(context.Background(), workflow.Request{CampaignIDs: []string{"c1", "c2"}})
	if err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	if _, err := h.mgr.ProcessJob(context.Background(), job.ID); err != nil {
		t.Fatalf("ProcessJob: %v", err)
	}
	h.finalizer.err = services.Wrap(services.ErrFinalization, "test", "deliver", "c2 upload rejected", nil)
	h.finalizer.partial = map[string]string{"file-c1": "https://cdn.example/c1-again.mp4"}

	if _, err := h.mgr.Redeliver(context.Background(), job.ID); !errors.Is(err, services.ErrFinalization) {
		t.Fatalf("expected finalization error, got %v", err)
	}
	stored, err := h.store.Get(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if stored.Status != export.StatusCompleted {
		t.Fatalf("failed redelivery changed status to %s", stored.Status)
	}
	if got := stored.Results[0].Files[0].URL; got != "https://cdn.example/c1-again.mp4" {
		t.Fatalf("accepted upload not recorded, got %q", got)
	}
}

func TestEndToEndWithCatalog(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	root := cfg.RenderSource.CatalogDir
	outputs := func(id string) []rendersource.Output {
		return []rendersource.Output{
			{ID: id + "-hero", Name: "hero.mp4", Format: "mp4", Size: 2048},
			{ID: id + "-teaser", Name: "teaser.mp4", Format: "mp4", Size: 1024},
			{ID: id + "-still", Name: "still.jpg", Format: "jpg", Size: 512},
		}
	}
	for _, id := range []string{"c1", "c2", "c3"} {
		testsupport.WriteCampaign(t, root, rendersource.Campaign{
			ID:      id,
			Name:    "Spring " + id,
			Status:  rendersource.CampaignCompleted,
			Outputs: outputs(id),
		}, nil)
	}
	finalizer := &fakeFinalizer{}
	mgr := workflow.NewManager(cfg, store, rendersource.NewCatalog(root, nil, time.Second), logging.NewNop(),
		workflow.WithFinalizer(finalizer),
		workflow.WithNotifier(&testsupport.RecordingNotifier{}),
	)

	job, err := mgr.CreateJob(context.Background(), workflow.Request{
		Name:        "spring",
		CampaignIDs: []string{"c1", "c2", "c3"},
		Format: export.Format{
			Packaging:     export.PackagingIndividual,
			Compression:   export.CompressionLossy,
			OutputFormats: []string{"mp4"},
		},
		Options: export.Options{IncludeDocumentation: true, CreateManifest: true},
	})
	if err != nil {
		t.Fatalf("CreateJob: %v", err)
	}

	// The campaign regresses between admission and processing.
	testsupport.WriteCampaign(t, root, rendersource.Campaign{
		ID:      "c2",
		Name:    "Spring c2",
		Status:  rendersource.CampaignRendering,
		Outputs: outputs("c2"),
	}, nil)

	done, err := mgr.ProcessJob(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("ProcessJob: %v", err)
	}
	if done.Status != export.StatusCompleted {
		t.Fatalf("expected completed, got %s: %v", done.Status, done.Errors)
	}
	if len(done.Results) != 2 || len(done.Errors) != 1 || !strings.Contains(done.Errors[0], "c2") {
		t.Fatalf("unexpected outcome results=%d errors=%v", len(done.Results), done.Errors)
	}
	if done.Results[0].CampaignID != "c1" || done.Results[1].CampaignID != "c3" {
		t.Fatalf("results out of campaign order: %s, %s", done.Results[0].CampaignID, done.Results[1].CampaignID)
	}
	for _, result := range done.Results {
		counts := map[export.FileType]int{}
		for _, file := range result.Files {
			counts[file.Type]++
			if file.Checksum == "" {
				t.Fatalf("file %s of %s has no checksum", file.Name, result.CampaignID)
			}
		}
		if counts[export.FileDocument] != 1 || counts[export.FileMetadata] != 1 || counts[export.FileRender] != 2 {
			t.Fatalf("unexpected files for %s: %v", result.CampaignID, counts)
		}
		if len(result.Files) != 4 {
			t.Fatalf("unexpected extra files for %s: %d", result.CampaignID, len(result.Files))
		}
	}
}

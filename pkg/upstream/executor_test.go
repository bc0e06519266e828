package upstream

import (
	"context"
	"errors"
	"math"
	"net/http"
	"sync"
	"testing"
	"time"

	"meridian-hq/saturn/pkg/config"
	"meridian-hq/saturn/pkg/monitor"
	"meridian-hq/saturn/pkg/quota"
)

// fakeReporter collects usage records.
type fakeReporter struct {
	mu      sync.Mutex
	records []monitor.UsageRecord
}

func (f *fakeReporter) Record(rec monitor.UsageRecord) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = append(f.records, rec)
}

func (f *fakeReporter) len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.records)
}

func (f *fakeReporter) last() monitor.UsageRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.records[len(f.records)-1]
}

// devLedger returns a development-tier ledger pinned to a fixed clock
// so point balances do not decay between assertions.
func devLedger() *quota.Ledger {
	tier, _ := config.TierFor(config.TierDevelopment)
	ledger := quota.NewLedger(tier)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	ledger.SetClock(func() time.Time { return now })
	return ledger
}

// newTestExecutor returns an executor whose sleeps are captured instead
// of slept.
func newTestExecutor(ledger *quota.Ledger, reporter Reporter, cfg Config) (*Executor, *[]time.Duration) {
	e := NewExecutor(ledger, reporter, nil, cfg)
	slept := &[]time.Duration{}
	e.sleep = func(_ context.Context, d time.Duration) error {
		*slept = append(*slept, d)
		return nil
	}
	return e, slept
}

func testRequest() Request {
	return Request{
		Subject:  quota.Subject{UserID: "user-1", AccountID: "act-1"},
		Endpoint: "/act_1/insights",
		Method:   "GET",
	}
}

func okResponse() *Response {
	return &Response{StatusCode: 200, Header: http.Header{}, Body: []byte(`{"data": []}`)}
}

func throttledResponse(code string) *Response {
	return &Response{
		StatusCode: 400,
		Header:     http.Header{},
		Body:       []byte(`{"error": {"code": ` + code + `, "message": "limit reached"}}`),
	}
}

// ==========================================================================
// Execute
// ==========================================================================

func TestExecutor_Success(t *testing.T) {
	ledger := devLedger()
	reporter := &fakeReporter{}
	e, slept := newTestExecutor(ledger, reporter, Config{})

	calls := 0
	resp, err := e.Execute(context.Background(), testRequest(), func(ctx context.Context) (*Response, error) {
		calls++
		return okResponse(), nil
	})

	if err != nil {
		t.Fatalf("Execute() failed: %v", err)
	}
	if resp.StatusCode != 200 {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
	if calls != 1 {
		t.Errorf("call invoked %d times, want 1", calls)
	}
	if len(*slept) != 0 {
		t.Errorf("slept %v, want no sleeps", *slept)
	}
	if reporter.len() != 1 {
		t.Fatalf("reported %d records, want 1", reporter.len())
	}

	rec := reporter.last()
	if rec.SubjectID != "user-1" || rec.AccountID != "act-1" {
		t.Errorf("record subject = %s/%s", rec.SubjectID, rec.AccountID)
	}
	if rec.PointCost != 1 {
		t.Errorf("record point cost = %f, want 1 (read)", rec.PointCost)
	}

	// Admission charged the ledger.
	status := ledger.Status(testRequest().Subject)
	if status.CurrentPoints != 1 {
		t.Errorf("ledger points = %f, want 1", status.CurrentPoints)
	}
}

func TestExecutor_WriteCost(t *testing.T) {
	ledger := devLedger()
	reporter := &fakeReporter{}
	e, _ := newTestExecutor(ledger, reporter, Config{})

	req := testRequest()
	req.IsWrite = true
	req.Method = "POST"

	if _, err := e.Execute(context.Background(), req, func(ctx context.Context) (*Response, error) {
		return okResponse(), nil
	}); err != nil {
		t.Fatalf("Execute() failed: %v", err)
	}

	if rec := reporter.last(); rec.PointCost != 3 {
		t.Errorf("record point cost = %f, want 3 (write)", rec.PointCost)
	}
	if status := ledger.Status(req.Subject); status.CurrentPoints != 3 {
		t.Errorf("ledger points = %f, want 3", status.CurrentPoints)
	}
}

func TestExecutor_BusinessErrorPassthrough(t *testing.T) {
	reporter := &fakeReporter{}
	e, slept := newTestExecutor(devLedger(), reporter, Config{})

	body := []byte(`{"error": {"code": 100, "message": "Invalid parameter"}}`)
	calls := 0
	resp, err := e.Execute(context.Background(), testRequest(), func(ctx context.Context) (*Response, error) {
		calls++
		return &Response{StatusCode: 400, Header: http.Header{}, Body: body}, nil
	})

	// Business responses return unmodified with no error and no retry.
	if err != nil {
		t.Fatalf("Execute() returned error for business response: %v", err)
	}
	if resp.StatusCode != 400 {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
	if string(resp.Body) != string(body) {
		t.Error("body was modified")
	}
	if calls != 1 {
		t.Errorf("call invoked %d times, want 1", calls)
	}
	if len(*slept) != 0 {
		t.Errorf("slept %v, want no sleeps", *slept)
	}

	if rec := reporter.last(); rec.ErrorCode != "100" {
		t.Errorf("record error code = %q, want 100", rec.ErrorCode)
	}
}

func TestExecutor_CredentialShortCircuit(t *testing.T) {
	e, _ := newTestExecutor(devLedger(), &fakeReporter{}, Config{})

	calls := 0
	_, err := e.Execute(context.Background(), testRequest(), func(ctx context.Context) (*Response, error) {
		calls++
		return &Response{
			StatusCode: 400,
			Header:     http.Header{},
			Body:       []byte(`{"error": {"code": 190, "message": "Error validating access token"}}`),
		}, nil
	})

	var credErr *CredentialError
	if !errors.As(err, &credErr) {
		t.Fatalf("error = %v, want *CredentialError", err)
	}
	if credErr.ErrorCode != "190" {
		t.Errorf("error code = %q, want 190", credErr.ErrorCode)
	}
	if calls != 1 {
		t.Errorf("call invoked %d times, want 1 (never retried)", calls)
	}
}

func TestExecutor_ThrottleRetryThenSuccess(t *testing.T) {
	e, slept := newTestExecutor(devLedger(), &fakeReporter{}, Config{})

	calls := 0
	resp, err := e.Execute(context.Background(), testRequest(), func(ctx context.Context) (*Response, error) {
		calls++
		if calls == 1 {
			return throttledResponse("17"), nil
		}
		return okResponse(), nil
	})

	if err != nil {
		t.Fatalf("Execute() failed: %v", err)
	}
	if resp.StatusCode != 200 {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
	if calls != 2 {
		t.Errorf("call invoked %d times, want 2", calls)
	}
	if len(*slept) != 1 || (*slept)[0] != time.Second {
		t.Errorf("slept %v, want [1s]", *slept)
	}
}

func TestExecutor_ThrottleExhaustion(t *testing.T) {
	reporter := &fakeReporter{}
	e, slept := newTestExecutor(devLedger(), reporter, Config{})

	calls := 0
	_, err := e.Execute(context.Background(), testRequest(), func(ctx context.Context) (*Response, error) {
		calls++
		return throttledResponse("613"), nil
	})

	var throttled *ThrottledError
	if !errors.As(err, &throttled) {
		t.Fatalf("error = %v, want *ThrottledError", err)
	}
	if calls != 3 {
		t.Errorf("call invoked %d times, want 3 (default max retries)", calls)
	}

	// Exponential backoff doubles per attempt.
	want := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}
	if len(*slept) != len(want) {
		t.Fatalf("slept %v, want %v", *slept, want)
	}
	for i, d := range want {
		if (*slept)[i] != d {
			t.Errorf("sleep[%d] = %v, want %v", i, (*slept)[i], d)
		}
	}

	// Every attempt was reported, including retried ones.
	if reporter.len() != 3 {
		t.Errorf("reported %d records, want 3", reporter.len())
	}
}

func TestExecutor_BackoffCap(t *testing.T) {
	e, slept := newTestExecutor(devLedger(), &fakeReporter{}, Config{
		MaxRetries: 8,
		BackoffCap: 5 * time.Second,
	})

	_, _ = e.Execute(context.Background(), testRequest(), func(ctx context.Context) (*Response, error) {
		return throttledResponse("80000"), nil
	})

	for i, d := range *slept {
		if d > 5*time.Second {
			t.Errorf("sleep[%d] = %v exceeds cap", i, d)
		}
	}
	if last := (*slept)[len(*slept)-1]; last != 5*time.Second {
		t.Errorf("last sleep = %v, want capped 5s", last)
	}
}

func TestExecutor_TransportRetry(t *testing.T) {
	reporter := &fakeReporter{}
	e, _ := newTestExecutor(devLedger(), reporter, Config{})

	calls := 0
	resp, err := e.Execute(context.Background(), testRequest(), func(ctx context.Context) (*Response, error) {
		calls++
		if calls < 3 {
			return nil, errors.New("connection reset")
		}
		return okResponse(), nil
	})

	if err != nil {
		t.Fatalf("Execute() failed: %v", err)
	}
	if resp.StatusCode != 200 {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
	if calls != 3 {
		t.Errorf("call invoked %d times, want 3", calls)
	}

	// Transport failures are reported as 500s so the alert engine sees
	// them.
	rec := reporter.records[0]
	if rec.StatusCode != 500 || rec.ErrorMessage != "connection reset" {
		t.Errorf("transport record = %+v", rec)
	}
}

func TestExecutor_TransportExhaustion(t *testing.T) {
	e, _ := newTestExecutor(devLedger(), &fakeReporter{}, Config{})

	cause := errors.New("dial timeout")
	_, err := e.Execute(context.Background(), testRequest(), func(ctx context.Context) (*Response, error) {
		return nil, cause
	})

	var transient *TransientError
	if !errors.As(err, &transient) {
		t.Fatalf("error = %v, want *TransientError", err)
	}
	if transient.Attempts != 3 {
		t.Errorf("attempts = %d, want 3", transient.Attempts)
	}
	if !errors.Is(err, cause) {
		t.Error("expected cause in error chain")
	}
}

func TestExecutor_QuotaDenial(t *testing.T) {
	ledger := devLedger()
	subject := quota.Subject{UserID: "user-1", AccountID: "act-1"}

	// Fill the ledger to the ceiling so admission is denied.
	for i := 0; i < 60; i++ {
		ledger.Record(subject, false)
	}

	e, slept := newTestExecutor(ledger, &fakeReporter{}, Config{})

	calls := 0
	_, err := e.Execute(context.Background(), Request{Subject: subject, Endpoint: "/x", Method: "GET"},
		func(ctx context.Context) (*Response, error) {
			calls++
			return okResponse(), nil
		})

	var quotaErr *QuotaExceededError
	if !errors.As(err, &quotaErr) {
		t.Fatalf("error = %v, want *QuotaExceededError", err)
	}
	if calls != 0 {
		t.Errorf("call invoked %d times, want 0 (never admitted)", calls)
	}
	// Each denied attempt waited the ledger's suggestion.
	if len(*slept) != 3 {
		t.Errorf("slept %d times, want 3", len(*slept))
	}
	for i, d := range *slept {
		if d <= 0 {
			t.Errorf("sleep[%d] = %v, want positive wait", i, d)
		}
	}
}

func TestExecutor_ThrottleFeedbackApplied(t *testing.T) {
	ledger := devLedger()
	e, _ := newTestExecutor(ledger, &fakeReporter{}, Config{})

	header := http.Header{}
	header.Set(ThrottleHeader,
		`{"app_id_util_pct": 104.0, "acc_id_util_pct": 50.0, "estimated_time_to_regain_access": 600}`)

	_, err := e.Execute(context.Background(), testRequest(), func(ctx context.Context) (*Response, error) {
		return &Response{StatusCode: 200, Header: header, Body: []byte(`{}`)}, nil
	})
	if err != nil {
		t.Fatalf("Execute() failed: %v", err)
	}

	status := ledger.Status(testRequest().Subject)
	if !status.IsBlocked {
		t.Error("expected upstream feedback to block the subject")
	}
	if status.BlockedFor < 9*time.Minute {
		t.Errorf("blocked for %v, want ~10m from upstream estimate", status.BlockedFor)
	}
}

func TestExecutor_ContextCancelledDuringBackoff(t *testing.T) {
	e := NewExecutor(devLedger(), &fakeReporter{}, nil, Config{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.Execute(ctx, testRequest(), func(ctx context.Context) (*Response, error) {
		return throttledResponse("17"), nil
	})

	if !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
}

// ==========================================================================
// Batch
// ==========================================================================

func TestExecutor_BatchCost(t *testing.T) {
	e, _ := newTestExecutor(devLedger(), &fakeReporter{}, Config{})

	items := []BatchItem{
		{Method: "GET", RelativeURL: "act_1/insights"},
		{Method: "GET", RelativeURL: "act_1/campaigns"},
		{Method: "POST", RelativeURL: "act_1/adsets", IsWrite: true},
	}
	if cost := e.BatchCost(items); cost != 5 {
		t.Errorf("BatchCost() = %f, want 5 (1+1+3)", cost)
	}
}

func TestExecutor_BatchRejectsOversized(t *testing.T) {
	e, _ := newTestExecutor(devLedger(), &fakeReporter{}, Config{})
	subject := quota.Subject{UserID: "user-1", AccountID: "act-1"}

	// 17 writes = 51 points > 48 (0.8 * 60) budget.
	items := make([]BatchItem, 17)
	for i := range items {
		items[i] = BatchItem{Method: "POST", RelativeURL: "act_1/adsets", IsWrite: true}
	}

	called := false
	_, err := e.ExecuteBatch(context.Background(), subject, items, func(ctx context.Context) (*Response, error) {
		called = true
		return okResponse(), nil
	})

	var tooLarge *BatchTooLargeError
	if !errors.As(err, &tooLarge) {
		t.Fatalf("error = %v, want *BatchTooLargeError", err)
	}
	if tooLarge.TotalCost != 51 {
		t.Errorf("cost = %f, want 51", tooLarge.TotalCost)
	}
	if math.Abs(tooLarge.Budget-48) > 1e-9 {
		t.Errorf("budget = %f, want 48", tooLarge.Budget)
	}
	if called {
		t.Error("oversized batch must not reach the upstream")
	}
}

func TestExecutor_BatchAdmittedAsSingleRead(t *testing.T) {
	ledger := devLedger()
	e, _ := newTestExecutor(ledger, &fakeReporter{}, Config{})
	subject := quota.Subject{UserID: "user-1", AccountID: "act-1"}

	items := []BatchItem{
		{Method: "GET", RelativeURL: "act_1/insights"},
		{Method: "GET", RelativeURL: "act_1/campaigns"},
	}

	resp, err := e.ExecuteBatch(context.Background(), subject, items, func(ctx context.Context) (*Response, error) {
		return okResponse(), nil
	})
	if err != nil {
		t.Fatalf("ExecuteBatch() failed: %v", err)
	}
	if resp.StatusCode != 200 {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}

	// The batch envelope is charged once at read cost.
	if status := ledger.Status(subject); status.CurrentPoints != 1 {
		t.Errorf("ledger points = %f, want 1", status.CurrentPoints)
	}
}

// ==========================================================================
// Credentials
// ==========================================================================

func TestStaticCredentials(t *testing.T) {
	creds := StaticCredentials{"user-1:act-1": "token-abc"}

	token, err := creds.Credential(context.Background(), quota.Subject{UserID: "user-1", AccountID: "act-1"})
	if err != nil {
		t.Fatalf("Credential() failed: %v", err)
	}
	if token != "token-abc" {
		t.Errorf("token = %q, want token-abc", token)
	}

	_, err = creds.Credential(context.Background(), quota.Subject{UserID: "user-2", AccountID: "act-2"})
	var credErr *CredentialError
	if !errors.As(err, &credErr) {
		t.Errorf("error = %v, want *CredentialError", err)
	}
}

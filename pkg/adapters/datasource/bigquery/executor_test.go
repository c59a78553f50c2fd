package bigquery

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/oauth2"
)

// fakeWarehouse serves the jobs API subset: job insert, status poll and
// paged result fetch.
type fakeWarehouse struct {
	t *testing.T

	columns []tableField
	rows    [][]any

	pollsBeforeDone int
	jobError        *jobError
	failPageAt      uint64
	reject401Once   atomic.Bool

	// reject401FirstFetch 401s the first fetch of every result page, so
	// parallel fetchers all hit the token refresh path at once.
	reject401FirstFetch bool
	fetchedPages        sync.Map

	polls      atomic.Int32
	pageFetch  atomic.Int32
	maxResults int
}

func (w *fakeWarehouse) handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if w.reject401Once.CompareAndSwap(true, false) {
			rw.WriteHeader(http.StatusUnauthorized)
			return
		}

		switch {
		case r.Method == http.MethodPost:
			w.writeJSON(rw, jobResponse{
				JobReference: jobReference{JobID: "job-1"},
				Status:       jobStatus{State: "RUNNING"},
			})

		case r.URL.Path == "/projects/test-project/jobs/job-1":
			state := "DONE"
			if int(w.polls.Add(1)) <= w.pollsBeforeDone {
				state = "RUNNING"
			}
			w.writeJSON(rw, jobResponse{
				JobReference: jobReference{JobID: "job-1"},
				Status:       jobStatus{State: state, ErrorResult: w.jobError},
			})

		case r.URL.Path == "/projects/test-project/queries/job-1":
			if w.reject401FirstFetch {
				if _, seen := w.fetchedPages.LoadOrStore(r.URL.Query().Get("startIndex"), true); !seen {
					rw.WriteHeader(http.StatusUnauthorized)
					return
				}
			}
			w.pageFetch.Add(1)
			start, _ := strconv.ParseUint(r.URL.Query().Get("startIndex"), 10, 64)
			if w.failPageAt > 0 && start == w.failPageAt {
				rw.WriteHeader(http.StatusInternalServerError)
				fmt.Fprint(rw, `{"error":{"message":"boom","errors":[{"reason":"backendError"}]}}`)
				return
			}
			w.writeJSON(rw, w.page(start, w.maxResults))

		default:
			w.t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
			rw.WriteHeader(http.StatusNotFound)
		}
	}
}

func (w *fakeWarehouse) page(start uint64, maxResults int) queryResultsResponse {
	end := start + uint64(maxResults)
	if end > uint64(len(w.rows)) {
		end = uint64(len(w.rows))
	}
	var rows []tableRow
	for _, r := range w.rows[start:end] {
		cells := make([]tableCell, len(r))
		for i, v := range r {
			cells[i] = tableCell{V: v}
		}
		rows = append(rows, tableRow{F: cells})
	}
	return queryResultsResponse{
		JobComplete: true,
		Schema:      tableSchema{Fields: w.columns},
		Rows:        rows,
		TotalRows:   strconv.Itoa(len(w.rows)),
	}
}

func (w *fakeWarehouse) writeJSON(rw http.ResponseWriter, v any) {
	rw.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(rw).Encode(v); err != nil {
		w.t.Errorf("encoding response: %v", err)
	}
}

func newTestClient(t *testing.T, w *fakeWarehouse, pageSize int) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(w.handler())
	t.Cleanup(server.Close)

	w.maxResults = pageSize
	client, err := NewClient(Options{
		BaseURL:          server.URL,
		ProjectID:        "test-project",
		TokenSource:      oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "test-token"}),
		PollInitialDelay: time.Millisecond,
		PollMaxDelay:     5 * time.Millisecond,
		PollTimeout:      5 * time.Second,
		PageSize:         pageSize,
		FetchConcurrency: 2,
	})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return client, server
}

func stringColumn(name string) tableField { return tableField{Name: name, Type: "STRING"} }
func intColumn(name string) tableField    { return tableField{Name: name, Type: "INT64"} }

func TestExecuteAssemblesAllPages(t *testing.T) {
	warehouse := &fakeWarehouse{
		t:       t,
		columns: []tableField{stringColumn("region"), intColumn("total")},
		rows: [][]any{
			{"east", "10"}, {"west", "20"}, {"north", "30"},
			{"south", "40"}, {"central", "50"},
		},
		pollsBeforeDone: 2,
	}
	client, _ := newTestClient(t, warehouse, 2)
	executor := NewExecutor(client, nil)

	result, err := executor.Execute(context.Background(), "SELECT region, total FROM t", nil)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}

	if result.RowCount != 5 {
		t.Errorf("row count = %d, want 5", result.RowCount)
	}
	if len(result.Rows) != 5 {
		t.Fatalf("rows = %d, want 5", len(result.Rows))
	}
	// Pages land in offset order regardless of download order.
	if result.Rows[0][0] != "east" || result.Rows[4][0] != "central" {
		t.Errorf("rows out of order: %v", result.Rows)
	}
	// INT64 cells decode to int64.
	if result.Rows[0][1] != int64(10) {
		t.Errorf("cell = %#v, want int64(10)", result.Rows[0][1])
	}
	if result.Columns[0] != "region" || result.Columns[1] != "total" {
		t.Errorf("columns = %v", result.Columns)
	}
}

func TestExecuteSinglePage(t *testing.T) {
	warehouse := &fakeWarehouse{
		t:       t,
		columns: []tableField{stringColumn("kind")},
		rows:    [][]any{{"click"}, {"view"}},
	}
	client, _ := newTestClient(t, warehouse, 100)
	executor := NewExecutor(client, nil)

	result, err := executor.Execute(context.Background(), "SELECT kind FROM t", nil)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(result.Rows) != 2 {
		t.Errorf("rows = %d, want 2", len(result.Rows))
	}
	if got := warehouse.pageFetch.Load(); got != 1 {
		t.Errorf("page fetches = %d, want 1", got)
	}
}

func TestExecuteJobFailureSurfaces(t *testing.T) {
	warehouse := &fakeWarehouse{
		t:        t,
		jobError: &jobError{Reason: "invalidQuery", Message: "syntax error"},
	}
	client, _ := newTestClient(t, warehouse, 10)
	executor := NewExecutor(client, nil)

	_, err := executor.Execute(context.Background(), "SELECT bogus", nil)
	if err == nil {
		t.Fatal("expected job failure to surface")
	}
}

func TestExecutePageFailureFailsWholeFetch(t *testing.T) {
	warehouse := &fakeWarehouse{
		t:       t,
		columns: []tableField{stringColumn("kind")},
		rows: [][]any{
			{"a"}, {"b"}, {"c"}, {"d"}, {"e"}, {"f"},
		},
		failPageAt: 4,
	}
	client, _ := newTestClient(t, warehouse, 2)
	executor := NewExecutor(client, nil)

	result, err := executor.Execute(context.Background(), "SELECT kind FROM t", nil)
	if err == nil {
		t.Fatalf("a failed page must fail the whole fetch, got %d rows", len(result.Rows))
	}
}

func TestExecuteCancellationPropagates(t *testing.T) {
	warehouse := &fakeWarehouse{
		t:               t,
		columns:         []tableField{stringColumn("kind")},
		rows:            [][]any{{"a"}},
		pollsBeforeDone: 1 << 30, // never completes
	}
	client, _ := newTestClient(t, warehouse, 10)
	executor := NewExecutor(client, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := executor.Execute(ctx, "SELECT kind FROM t", nil)
	if err == nil {
		t.Fatal("expected cancellation error")
	}
}

func TestClientRetriesOnceOn401(t *testing.T) {
	warehouse := &fakeWarehouse{
		t:       t,
		columns: []tableField{stringColumn("kind")},
		rows:    [][]any{{"a"}},
	}
	warehouse.reject401Once.Store(true)

	client, _ := newTestClient(t, warehouse, 10)
	executor := NewExecutor(client, nil)

	result, err := executor.Execute(context.Background(), "SELECT kind FROM t", nil)
	if err != nil {
		t.Fatalf("one 401 should be absorbed by a token refresh: %v", err)
	}
	if len(result.Rows) != 1 {
		t.Errorf("rows = %d, want 1", len(result.Rows))
	}
}

func TestConcurrentPageFetchesAbsorb401s(t *testing.T) {
	// Every page's first fetch is rejected, so the parallel fetchers all
	// refresh the shared token source at the same time.
	warehouse := &fakeWarehouse{
		t:                   t,
		columns:             []tableField{stringColumn("kind")},
		rows:                [][]any{{"a"}, {"b"}, {"c"}, {"d"}, {"e"}, {"f"}},
		reject401FirstFetch: true,
	}
	client, _ := newTestClient(t, warehouse, 2)
	executor := NewExecutor(client, nil)

	result, err := executor.Execute(context.Background(), "SELECT kind FROM t", nil)
	if err != nil {
		t.Fatalf("each fetch should absorb its 401 with a refreshed token: %v", err)
	}
	if len(result.Rows) != 6 {
		t.Errorf("rows = %d, want 6", len(result.Rows))
	}
	if result.Rows[0][0] != "a" || result.Rows[5][0] != "f" {
		t.Errorf("rows out of order: %v", result.Rows)
	}
}

func TestDecodeCell(t *testing.T) {
	tests := []struct {
		fieldType string
		raw       any
		want      any
	}{
		{"INT64", "42", int64(42)},
		{"INTEGER", "-1", int64(-1)},
		{"FLOAT64", "2.5", 2.5},
		{"BOOL", "true", true},
		{"STRING", "hello", "hello"},
		{"TIMESTAMP", "1700000000.0", "1700000000.0"},
		{"STRING", nil, nil},
	}
	for _, tt := range tests {
		got, err := decodeCell(tt.fieldType, tt.raw)
		if err != nil {
			t.Errorf("decodeCell(%s, %v): %v", tt.fieldType, tt.raw, err)
			continue
		}
		if got != tt.want {
			t.Errorf("decodeCell(%s, %v) = %#v, want %#v", tt.fieldType, tt.raw, got, tt.want)
		}
	}

	if _, err := decodeCell("INT64", "not-a-number"); err == nil {
		t.Error("malformed integer should error")
	}
}

func TestBuildQueryParameters(t *testing.T) {
	when := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	params, err := buildQueryParameters([]any{"s", true, 7, int64(8), 2.5, when})
	if err != nil {
		t.Fatalf("buildQueryParameters: %v", err)
	}

	wantTypes := []string{"STRING", "BOOL", "INT64", "INT64", "FLOAT64", "TIMESTAMP"}
	for i, want := range wantTypes {
		if params[i].ParameterType.Type != want {
			t.Errorf("param[%d] type = %q, want %q", i, params[i].ParameterType.Type, want)
		}
	}
	if params[0].ParameterValue.Value != "s" {
		t.Errorf("string value = %q", params[0].ParameterValue.Value)
	}

	if _, err := buildQueryParameters([]any{struct{}{}}); err == nil {
		t.Error("unsupported parameter type should error")
	}
}

package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/labstack/echo/v4"

	"github.com/mohammad-safakhou/dockagent/config"
	core "github.com/mohammad-safakhou/dockagent/internal/agent/core"
	"github.com/mohammad-safakhou/dockagent/internal/capability"
	"github.com/mohammad-safakhou/dockagent/internal/store"
)

type offlineLLM struct{}

func (offlineLLM) Complete(ctx context.Context, prompt string) (string, error) {
	return "", errors.New("llm offline")
}

type nullInvoker struct{}

func (nullInvoker) Invoke(ctx context.Context, call core.ToolCall) (core.ToolOutcome, error) {
	return core.ToolOutcome{Observation: "ok"}, nil
}

type nullStorage struct{}

func (nullStorage) CreateSession(ctx context.Context, rec core.SessionRecord) error { return nil }
func (nullStorage) UpdateStatus(ctx context.Context, sessionID, status string, progress float64) error {
	return nil
}
func (nullStorage) AppendStep(ctx context.Context, sessionID string, step core.Step) error {
	return nil
}
func (nullStorage) SaveRefinement(ctx context.Context, sessionID string, rec core.RefinementRecord) error {
	return nil
}
func (nullStorage) SaveSession(ctx context.Context, rec core.SessionRecord, trace string) error {
	return nil
}

// newTestOrchestrator builds a real orchestrator over inert collaborators so
// handlers that consult live status have something to ask.
func newTestOrchestrator(t *testing.T) *core.Orchestrator {
	t.Helper()
	registry, err := capability.NewRegistry()
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	cfg := &config.Config{}
	cfg.Server.MaxConcurrentSessions = 2
	cfg.Agent.MaxSteps = 1
	orch, err := core.NewOrchestrator(cfg, log.New(io.Discard, "", 0), nil, registry, offlineLLM{}, nullInvoker{}, nullStorage{})
	if err != nil {
		t.Fatalf("orchestrator: %v", err)
	}
	return orch
}

func TestCreateSessionRejectsEmptyQuery(t *testing.T) {
	e := echo.New()
	handler := &SessionsHandler{Logger: log.New(io.Discard, "", 0)}

	req := httptest.NewRequest(http.MethodPost, "/api/sessions", strings.NewReader(`{"query":"   "}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)

	err := handler.create(ctx)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 error, got %#v", err)
	}
}

func TestCreateSessionAnswersAcceptedWithID(t *testing.T) {
	e := echo.New()
	handler := &SessionsHandler{
		Orch:    newTestOrchestrator(t),
		Timeout: time.Minute,
		Logger:  log.New(io.Discard, "", 0),
	}

	req := httptest.NewRequest(http.MethodPost, "/api/sessions", strings.NewReader(`{"query":"dock aspirin against COX-2","protein_pdb":"ATOM ...","ligand_sdf":"aspirin"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)

	if err := handler.create(ctx); err != nil {
		t.Fatalf("create: %v", err)
	}
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected status 202 got %d", rec.Code)
	}
	var resp SessionAcceptedResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.SessionID) != 8 {
		t.Fatalf("expected 8-char session id, got %q", resp.SessionID)
	}
}

func TestListSessionsReturnsRows(t *testing.T) {
	e := echo.New()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	handler := &SessionsHandler{Store: &store.Store{DB: db}}

	created := time.Now().Add(-time.Hour)
	completed := time.Now()
	mock.ExpectQuery(`SELECT id, query, status, progress, strategy, created_at, completed_at`).
		WithArgs(100).
		WillReturnRows(sqlmock.NewRows([]string{"id", "query", "status", "progress", "strategy", "created_at", "completed_at"}).
			AddRow("sess-1", "dock aspirin", "finished", 1.0, "standard_docking", created, completed).
			AddRow("sess-2", "dock ibuprofen", "executing", 0.4, "", created, nil))

	req := httptest.NewRequest(http.MethodGet, "/api/sessions", nil)
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)

	if err := handler.list(ctx); err != nil {
		t.Fatalf("list: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200 got %d", rec.Code)
	}
	var resp []store.SessionSummary
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp) != 2 || resp[0].SessionID != "sess-1" || resp[1].CompletedAt != nil {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestListSessionsRejectsBadLimit(t *testing.T) {
	e := echo.New()
	handler := &SessionsHandler{}

	req := httptest.NewRequest(http.MethodGet, "/api/sessions?limit=bananas", nil)
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)

	err := handler.list(ctx)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 error, got %#v", err)
	}
}

func TestGetSessionReturnsStoredRecord(t *testing.T) {
	e := echo.New()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	handler := &SessionsHandler{Store: &store.Store{DB: db}, Orch: newTestOrchestrator(t)}

	created := time.Now().Add(-time.Hour)
	completed := time.Now()
	mock.ExpectQuery(`SELECT id, query, protein, ligand, status, progress, strategy, plan, results, final_answer, total_time_ms, created_at, completed_at`).
		WithArgs("sess-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "query", "protein", "ligand", "status", "progress", "strategy", "plan", "results", "final_answer", "total_time_ms", "created_at", "completed_at"}).
			AddRow("sess-1", "dock aspirin", "ATOM ...", "aspirin", "finished", 1.0, "standard_docking",
				[]byte(`{"strategy":"standard_docking"}`), []byte(`{}`), "Binding affinity -7.2 kcal/mol.", int64(12500), created, completed))

	mock.ExpectQuery(`SELECT step_num, thought, action, action_input, observation, reasoning, created_at`).
		WithArgs("sess-1").
		WillReturnRows(sqlmock.NewRows([]string{"step_num", "thought", "action", "action_input", "observation", "reasoning", "created_at"}).
			AddRow(1, "prepare the receptor", "prepare_protein", []byte(`{}`), "cleaned", "", created))

	req := httptest.NewRequest(http.MethodGet, "/api/sessions/sess-1", nil)
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)
	ctx.SetParamNames("id")
	ctx.SetParamValues("sess-1")

	if err := handler.get(ctx); err != nil {
		t.Fatalf("get: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200 got %d", rec.Code)
	}
	var resp store.SessionDetail
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.SessionID != "sess-1" || resp.Status != "finished" || len(resp.Steps) != 1 {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if resp.Steps[0].Action != "prepare_protein" {
		t.Fatalf("unexpected step: %+v", resp.Steps[0])
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestGetSessionMissingReturns404(t *testing.T) {
	e := echo.New()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	handler := &SessionsHandler{Store: &store.Store{DB: db}, Orch: newTestOrchestrator(t)}

	mock.ExpectQuery(`SELECT id, query, protein, ligand, status`).
		WithArgs("ghost").
		WillReturnError(sql.ErrNoRows)

	req := httptest.NewRequest(http.MethodGet, "/api/sessions/ghost", nil)
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)
	ctx.SetParamNames("id")
	ctx.SetParamValues("ghost")

	err = handler.get(ctx)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 error, got %#v", err)
	}
}

func TestSessionTrace(t *testing.T) {
	e := echo.New()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	handler := &SessionsHandler{Store: &store.Store{DB: db}}

	query := regexp.QuoteMeta(`SELECT trace FROM session_traces WHERE session_id=$1`)
	mock.ExpectQuery(query).
		WithArgs("sess-1").
		WillReturnRows(sqlmock.NewRows([]string{"trace"}).AddRow("=== Session sess-1 ==="))

	req := httptest.NewRequest(http.MethodGet, "/api/sessions/sess-1/trace", nil)
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)
	ctx.SetParamNames("id")
	ctx.SetParamValues("sess-1")

	if err := handler.trace(ctx); err != nil {
		t.Fatalf("trace: %v", err)
	}
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "sess-1") {
		t.Fatalf("unexpected trace response: %d %q", rec.Code, rec.Body.String())
	}

	mock.ExpectQuery(query).
		WithArgs("ghost").
		WillReturnError(sql.ErrNoRows)

	req = httptest.NewRequest(http.MethodGet, "/api/sessions/ghost/trace", nil)
	ctx = e.NewContext(req, httptest.NewRecorder())
	ctx.SetParamNames("id")
	ctx.SetParamValues("ghost")

	err = handler.trace(ctx)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 error, got %#v", err)
	}
}

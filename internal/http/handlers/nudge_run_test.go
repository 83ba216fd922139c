package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/nudge-engine/internal/engine"
	"github.com/wolfman30/nudge-engine/pkg/logging"
)

type fakeRunner struct {
	lastPatientID string
	lastOpts      engine.Options
	result        engine.Result
}

func (f *fakeRunner) Run(_ context.Context, patientID string, opts engine.Options) engine.Result {
	f.lastPatientID = patientID
	f.lastOpts = opts
	return f.result
}

func withChiParam(req *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func TestRunReturnsResult(t *testing.T) {
	runner := &fakeRunner{result: engine.Result{Success: true, Reason: engine.ReasonSent}}
	handler := NewNudgeRunHandler(runner, logging.Default())

	req := httptest.NewRequest(http.MethodPost, "/patients/patient-1/nudges/run", nil)
	req = withChiParam(req, "patientID", "patient-1")
	rec := httptest.NewRecorder()

	handler.Run(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rec.Code, rec.Body.String())
	}
	if runner.lastPatientID != "patient-1" {
		t.Fatalf("expected patient-1, got %q", runner.lastPatientID)
	}
	if runner.lastOpts.ForceRun || runner.lastOpts.ForceExplore {
		t.Fatalf("expected default options, got %+v", runner.lastOpts)
	}

	var result engine.Result
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !result.Success || result.Reason != engine.ReasonSent {
		t.Fatalf("unexpected result %+v", result)
	}
}

func TestRunSkipIsStillOK(t *testing.T) {
	runner := &fakeRunner{result: engine.Result{Success: false, Reason: engine.ReasonTooSoon}}
	handler := NewNudgeRunHandler(runner, logging.Default())

	req := httptest.NewRequest(http.MethodPost, "/patients/patient-1/nudges/run", nil)
	req = withChiParam(req, "patientID", "patient-1")
	rec := httptest.NewRecorder()

	handler.Run(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for a skip, got %d", rec.Code)
	}
}

func TestRunPipelineErrorIs500(t *testing.T) {
	runner := &fakeRunner{result: engine.Result{Success: false, Reason: engine.ReasonError, Error: "boom"}}
	handler := NewNudgeRunHandler(runner, logging.Default())

	req := httptest.NewRequest(http.MethodPost, "/patients/patient-1/nudges/run", nil)
	req = withChiParam(req, "patientID", "patient-1")
	rec := httptest.NewRecorder()

	handler.Run(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
}

func TestRunMissingPatientID(t *testing.T) {
	handler := NewNudgeRunHandler(&fakeRunner{}, logging.Default())

	req := httptest.NewRequest(http.MethodPost, "/patients//nudges/run", nil)
	req = withChiParam(req, "patientID", "")
	rec := httptest.NewRecorder()

	handler.Run(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestDebugRunForcesRun(t *testing.T) {
	runner := &fakeRunner{result: engine.Result{Success: true, Reason: engine.ReasonSent}}
	handler := NewNudgeRunHandler(runner, logging.Default())

	body := bytes.NewReader([]byte(`{"force_explore":true}`))
	req := httptest.NewRequest(http.MethodPost, "/admin/patients/patient-2/nudges/debug-run", body)
	req = withChiParam(req, "patientID", "patient-2")
	rec := httptest.NewRecorder()

	handler.DebugRun(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !runner.lastOpts.ForceRun {
		t.Fatalf("expected ForceRun to be set")
	}
	if !runner.lastOpts.ForceExplore {
		t.Fatalf("expected ForceExplore to be set")
	}
}

func TestDebugRunEmptyBodyDefaults(t *testing.T) {
	runner := &fakeRunner{result: engine.Result{Success: true, Reason: engine.ReasonSent}}
	handler := NewNudgeRunHandler(runner, logging.Default())

	req := httptest.NewRequest(http.MethodPost, "/admin/patients/patient-2/nudges/debug-run", nil)
	req = withChiParam(req, "patientID", "patient-2")
	rec := httptest.NewRecorder()

	handler.DebugRun(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rec.Code, rec.Body.String())
	}
	if !runner.lastOpts.ForceRun {
		t.Fatalf("expected ForceRun to be set")
	}
	if runner.lastOpts.ForceExplore {
		t.Fatalf("expected ForceExplore to default to false")
	}
}

func TestDebugRunBadBody(t *testing.T) {
	handler := NewNudgeRunHandler(&fakeRunner{}, logging.Default())

	req := httptest.NewRequest(http.MethodPost, "/admin/patients/patient-2/nudges/debug-run", bytes.NewReader([]byte("{not json")))
	req = withChiParam(req, "patientID", "patient-2")
	rec := httptest.NewRecorder()

	handler.DebugRun(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

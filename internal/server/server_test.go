package server

import (
	"bytes"
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/iwvelando/mro-estimator/internal/capture"
	"github.com/iwvelando/mro-estimator/internal/crm"
	"github.com/iwvelando/mro-estimator/internal/estimate"
	"github.com/iwvelando/mro-estimator/internal/export"
	"github.com/iwvelando/mro-estimator/internal/lead"
	"github.com/iwvelando/mro-estimator/internal/profile"
	"github.com/iwvelando/mro-estimator/internal/store"
	"github.com/iwvelando/mro-estimator/internal/wizard"
	"github.com/iwvelando/mro-estimator/pkg/constants"
	"github.com/iwvelando/mro-estimator/pkg/testutil"
	"github.com/iwvelando/mro-estimator/pkg/validation"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

func newTestHandler(t *testing.T, leadRate int) http.Handler {
	t.Helper()

	leads := capture.New(store.NewMemory(), crm.Disabled{}, zap.NewNop(), time.Second)
	t.Cleanup(func() { _ = leads.Wait(context.Background()) })

	return NewHandler(zap.NewNop(), Dependencies{
		Sessions:          wizard.NewManager(leads, zap.NewNop(), time.Hour),
		Leads:             leads,
		LeadRatePerMinute: leadRate,
	}, constants.DefaultMaxBodySizeBytes, "1.2.3")
}

func sampleProfile() profile.Profile {
	p, _ := testutil.InventoryScenario()
	return p
}

func sampleContact() lead.Contact {
	return lead.Contact{
		FirstName:   "Jane",
		LastName:    "Doe",
		Email:       "jane.doe@acme-industrial.com",
		Company:     "Acme Industries",
		JobFunction: "Maintenance",
	}
}

func performJSON(t *testing.T, handler http.Handler, method, path string, payload interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var body bytes.Buffer
	if payload != nil {
		if err := json.NewEncoder(&body).Encode(payload); err != nil {
			t.Fatalf("failed to marshal payload: %v", err)
		}
	}

	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	return rr
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(rr.Body.Bytes(), v); err != nil {
		t.Fatalf("failed to decode response %q: %v", rr.Body.String(), err)
	}
}

func TestHandleEstimateSuccess(t *testing.T) {
	handler := newTestHandler(t, 0)

	rr := performJSON(t, handler, http.MethodPost, "/api/estimate", estimateRequest{
		Concerns: []string{"inventory"},
		Profile:  sampleProfile(),
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var resp estimateResponse
	decodeBody(t, rr, &resp)

	if resp.Validation.Status != validation.StatusValid {
		t.Fatalf("expected valid outcome, got %s", resp.Validation.Status)
	}
	if resp.Result == nil || resp.Payload == nil {
		t.Fatal("expected result and payload in response")
	}
	if math.Abs(resp.Result.GrandTotal-testutil.ReferenceGrandTotal) > 0.01 {
		t.Errorf("expected grand total 189900, got %v", resp.Result.GrandTotal)
	}
	if resp.Result.Spend != nil || resp.Result.Downtime != nil {
		t.Error("expected only the inventory breakdown")
	}
	if resp.Payload.SchemaVersion != constants.SchemaVersion {
		t.Errorf("expected payload schema version %d, got %d", constants.SchemaVersion, resp.Payload.SchemaVersion)
	}
}

func TestHandleEstimateRejections(t *testing.T) {
	blocked := sampleProfile()
	blocked.TotalInventoryValue = 0

	tests := []struct {
		name     string
		concerns []string
		profile  profile.Profile
		status   int
	}{
		{name: "unknown concern", concerns: []string{"inventory", "bogus"}, profile: sampleProfile(), status: http.StatusBadRequest},
		{name: "no concerns", concerns: nil, profile: sampleProfile(), status: http.StatusUnprocessableEntity},
		{name: "blocked profile", concerns: []string{"inventory"}, profile: blocked, status: http.StatusUnprocessableEntity},
	}

	handler := newTestHandler(t, 0)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := performJSON(t, handler, http.MethodPost, "/api/estimate", estimateRequest{
				Concerns: tt.concerns,
				Profile:  tt.profile,
			})
			if rr.Code != tt.status {
				t.Fatalf("expected status %d, got %d: %s", tt.status, rr.Code, rr.Body.String())
			}
		})
	}
}

func TestHandleEstimateBlockedCarriesErrors(t *testing.T) {
	handler := newTestHandler(t, 0)

	p := sampleProfile()
	p.TotalInventoryValue = 0
	rr := performJSON(t, handler, http.MethodPost, "/api/estimate", estimateRequest{
		Concerns: []string{"inventory"},
		Profile:  p,
	})

	var resp estimateResponse
	decodeBody(t, rr, &resp)
	if resp.Validation.Status != validation.StatusBlocked {
		t.Fatalf("expected blocked outcome, got %s", resp.Validation.Status)
	}
	if _, ok := resp.Validation.Errors[profile.FieldTotalInventoryValue]; !ok {
		t.Fatalf("expected error for %s, got %v", profile.FieldTotalInventoryValue, resp.Validation.Errors)
	}
	if resp.Result != nil {
		t.Fatal("expected no result for a blocked profile")
	}
}

func TestHandleEstimateMethodNotAllowed(t *testing.T) {
	handler := newTestHandler(t, 0)

	req := httptest.NewRequest(http.MethodGet, "/api/estimate", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected status 405, got %d", rr.Code)
	}
}

func TestHandleEstimateBodyTooLarge(t *testing.T) {
	handler := NewHandler(zap.NewNop(), Dependencies{}, 32, "")

	rr := performJSON(t, handler, http.MethodPost, "/api/estimate", estimateRequest{
		Concerns: []string{"inventory"},
		Profile:  sampleProfile(),
	})
	if rr.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected status 413, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestHandleEstimateUnknownField(t *testing.T) {
	handler := newTestHandler(t, 0)

	req := httptest.NewRequest(http.MethodPost, "/api/estimate", strings.NewReader(`{"concerns":["spend"],"budget":5}`))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
}

func TestHandleValidate(t *testing.T) {
	handler := newTestHandler(t, 0)

	rr := performJSON(t, handler, http.MethodPost, "/api/validate", estimateRequest{
		Concerns: []string{"inventory"},
		Profile:  sampleProfile(),
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var outcome validation.Outcome
	decodeBody(t, rr, &outcome)
	if outcome.Status != validation.StatusValid {
		t.Fatalf("expected valid outcome, got %+v", outcome)
	}
}

func TestHandleLeadSubmitAndLookup(t *testing.T) {
	handler := newTestHandler(t, 0)

	p := sampleProfile()
	sel := profile.NewSelection(profile.Inventory)
	rr := performJSON(t, handler, http.MethodPost, "/api/leads", capture.Submission{
		Lead:        sampleContact(),
		Calculation: estimate.Flatten(p, estimate.Estimate(p, sel)),
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var receipt capture.Receipt
	decodeBody(t, rr, &receipt)
	if !receipt.Success || !receipt.Persisted || receipt.LeadID == "" {
		t.Fatalf("unexpected receipt %+v", receipt)
	}

	rr = performJSON(t, handler, http.MethodGet, "/api/leads/"+receipt.LeadID, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var record capture.Record
	decodeBody(t, rr, &record)
	if record.Lead.Email != "jane.doe@acme-industrial.com" {
		t.Errorf("unexpected lead %+v", record.Lead)
	}
	if len(record.Calculations) != 1 {
		t.Errorf("expected one calculation, got %d", len(record.Calculations))
	}
}

func TestHandleLeadRejections(t *testing.T) {
	p := sampleProfile()
	sel := profile.NewSelection(profile.Inventory)
	good := estimate.Flatten(p, estimate.Estimate(p, sel))

	badContact := sampleContact()
	badContact.Email = ""

	badCalc := good
	badCalc.Concerns = nil

	tests := []struct {
		name       string
		submission capture.Submission
		wantFields bool
	}{
		{name: "invalid contact", submission: capture.Submission{Lead: badContact, Calculation: good}, wantFields: true},
		{name: "invalid calculation", submission: capture.Submission{Lead: sampleContact(), Calculation: badCalc}},
	}

	handler := newTestHandler(t, 0)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := performJSON(t, handler, http.MethodPost, "/api/leads", tt.submission)
			if rr.Code != http.StatusBadRequest {
				t.Fatalf("expected status 400, got %d: %s", rr.Code, rr.Body.String())
			}

			var resp errorResponse
			decodeBody(t, rr, &resp)
			if resp.Error == "" {
				t.Fatal("expected error message")
			}
			if tt.wantFields {
				if _, ok := resp.Fields["email"]; !ok {
					t.Fatalf("expected email field error, got %v", resp.Fields)
				}
			}
		})
	}
}

func TestHandleLeadNotFound(t *testing.T) {
	handler := newTestHandler(t, 0)

	rr := performJSON(t, handler, http.MethodGet, "/api/leads/missing", nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", rr.Code)
	}
}

func TestHandleLeadRateLimited(t *testing.T) {
	handler := newTestHandler(t, 1)

	first := performJSON(t, handler, http.MethodPost, "/api/leads", map[string]interface{}{})
	if first.Code == http.StatusTooManyRequests {
		t.Fatal("expected first request to pass the limiter")
	}

	second := performJSON(t, handler, http.MethodPost, "/api/leads", map[string]interface{}{})
	if second.Code != http.StatusTooManyRequests {
		t.Fatalf("expected status 429, got %d", second.Code)
	}
	if second.Header().Get("Retry-After") == "" {
		t.Error("expected Retry-After header")
	}
}

func TestHandleLeadNotConfigured(t *testing.T) {
	handler := NewHandler(nil, Dependencies{}, 0, "")

	rr := performJSON(t, handler, http.MethodPost, "/api/leads", map[string]interface{}{})
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected status 503, got %d", rr.Code)
	}
}

func TestSessionFlow(t *testing.T) {
	handler := newTestHandler(t, 0)

	rr := performJSON(t, handler, http.MethodPost, "/api/sessions", nil)
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", rr.Code, rr.Body.String())
	}
	var snap wizard.Snapshot
	decodeBody(t, rr, &snap)
	if snap.ID == "" || snap.State != wizard.SelectingConcerns {
		t.Fatalf("unexpected new session %+v", snap)
	}
	base := "/api/sessions/" + snap.ID

	steps := []struct {
		action  string
		payload interface{}
		state   wizard.State
	}{
		{action: "toggle", payload: toggleRequest{Concern: "inventory"}, state: wizard.SelectingConcerns},
		{action: "next", state: wizard.EnteringProfile},
		{action: "submit", payload: submitRequest{Profile: sampleProfile()}, state: wizard.ViewingGatedResults},
	}
	for _, step := range steps {
		rr = performJSON(t, handler, http.MethodPost, base+"/"+step.action, step.payload)
		if rr.Code != http.StatusOK {
			t.Fatalf("%s: expected status 200, got %d: %s", step.action, rr.Code, rr.Body.String())
		}
		snap = wizard.Snapshot{}
		decodeBody(t, rr, &snap)
		if snap.State != step.state {
			t.Fatalf("%s: expected state %s, got %s", step.action, step.state, snap.State)
		}
	}

	if snap.Teaser == nil || math.Abs(snap.Teaser.GrandTotal-testutil.ReferenceGrandTotal) > 0.01 {
		t.Fatalf("expected teaser with grand total, got %+v", snap.Teaser)
	}
	if snap.Result != nil {
		t.Fatal("expected full result to stay gated")
	}

	rr = performJSON(t, handler, http.MethodPost, base+"/lead", leadRequest{Lead: sampleContact()})
	if rr.Code != http.StatusOK {
		t.Fatalf("lead: expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	snap = wizard.Snapshot{}
	decodeBody(t, rr, &snap)
	if snap.State != wizard.ViewingFullResults || snap.Result == nil || snap.Result.Inventory == nil {
		t.Fatalf("expected full results, got %+v", snap)
	}
	if snap.Lead == nil || !snap.Lead.Persisted {
		t.Fatalf("expected persisted lead receipt, got %+v", snap.Lead)
	}

	rr = performJSON(t, handler, http.MethodGet, base, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("get: expected status 200, got %d", rr.Code)
	}

	rr = performJSON(t, handler, http.MethodDelete, base, nil)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("delete: expected status 204, got %d", rr.Code)
	}
	rr = performJSON(t, handler, http.MethodGet, base, nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected deleted session to be gone, got %d", rr.Code)
	}
}

func TestSessionActionErrors(t *testing.T) {
	handler := newTestHandler(t, 0)

	rr := performJSON(t, handler, http.MethodPost, "/api/sessions", nil)
	var snap wizard.Snapshot
	decodeBody(t, rr, &snap)
	base := "/api/sessions/" + snap.ID

	tests := []struct {
		name    string
		path    string
		payload interface{}
		status  int
	}{
		{name: "next without concerns", path: base + "/next", status: http.StatusUnprocessableEntity},
		{name: "back while selecting", path: base + "/back", status: http.StatusConflict},
		{name: "lead while selecting", path: base + "/lead", payload: leadRequest{Lead: sampleContact()}, status: http.StatusConflict},
		{name: "unknown concern", path: base + "/toggle", payload: toggleRequest{Concern: "bogus"}, status: http.StatusBadRequest},
		{name: "unknown action", path: base + "/launch", status: http.StatusNotFound},
		{name: "unknown session", path: "/api/sessions/missing/next", status: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := performJSON(t, handler, http.MethodPost, tt.path, tt.payload)
			if rr.Code != tt.status {
				t.Fatalf("expected status %d, got %d: %s", tt.status, rr.Code, rr.Body.String())
			}
		})
	}
}

func TestSessionInvalidLeadKeepsGate(t *testing.T) {
	handler := newTestHandler(t, 0)

	rr := performJSON(t, handler, http.MethodPost, "/api/sessions", nil)
	var snap wizard.Snapshot
	decodeBody(t, rr, &snap)
	base := "/api/sessions/" + snap.ID

	performJSON(t, handler, http.MethodPost, base+"/toggle", toggleRequest{Concern: "inventory"})
	performJSON(t, handler, http.MethodPost, base+"/next", nil)
	performJSON(t, handler, http.MethodPost, base+"/submit", submitRequest{Profile: sampleProfile()})

	contact := sampleContact()
	contact.FirstName = ""
	rr = performJSON(t, handler, http.MethodPost, base+"/lead", leadRequest{Lead: contact})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d: %s", rr.Code, rr.Body.String())
	}

	rr = performJSON(t, handler, http.MethodGet, base, nil)
	snap = wizard.Snapshot{}
	decodeBody(t, rr, &snap)
	if snap.State != wizard.ViewingGatedResults || snap.Result != nil {
		t.Fatalf("expected gate to stay locked, got %+v", snap)
	}
}

func TestHandleExport(t *testing.T) {
	handler := newTestHandler(t, 0)

	rr := performJSON(t, handler, http.MethodPost, "/api/export", estimateRequest{
		Concerns: []string{"inventory"},
		Profile:  sampleProfile(),
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if got := rr.Header().Get("Content-Type"); got != export.ContentType {
		t.Fatalf("expected workbook content type, got %q", got)
	}

	f, err := excelize.OpenReader(rr.Body)
	if err != nil {
		t.Fatalf("failed to open workbook: %v", err)
	}
	defer f.Close()
	if sheets := f.GetSheetList(); len(sheets) != 2 {
		t.Fatalf("expected two sheets, got %v", sheets)
	}
}

func TestHandleOptions(t *testing.T) {
	handler := newTestHandler(t, 0)

	rr := performJSON(t, handler, http.MethodGet, "/api/options", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}

	var resp optionsResponse
	decodeBody(t, rr, &resp)
	if len(resp.Concerns) != 3 || len(resp.Industries) == 0 || len(resp.JobFunctions) == 0 {
		t.Fatalf("unexpected options %+v", resp)
	}
	if resp.Defaults.HoldingCostRate != constants.DefaultHoldingCostRate {
		t.Errorf("expected default holding cost rate, got %v", resp.Defaults.HoldingCostRate)
	}
}

func TestHandleVersion(t *testing.T) {
	handler := newTestHandler(t, 0)

	rr := performJSON(t, handler, http.MethodGet, "/api/version", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}

	var resp map[string]string
	decodeBody(t, rr, &resp)
	if resp["version"] != "1.2.3" {
		t.Fatalf("expected version 1.2.3, got %q", resp["version"])
	}

	rr = performJSON(t, NewHandler(nil, Dependencies{}, 0, "  "), http.MethodGet, "/api/version", nil)
	resp = nil
	decodeBody(t, rr, &resp)
	if resp["version"] != "dev" {
		t.Fatalf("expected fallback version dev, got %q", resp["version"])
	}
}

func TestStaticAssetsServed(t *testing.T) {
	handler := newTestHandler(t, 0)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200 for index, got %d", rr.Code)
	}

	if !strings.Contains(rr.Body.String(), "MRO Inventory Optimization Calculator") {
		t.Fatalf("expected HTML body to contain title, got %q", rr.Body.String())
	}

	cssReq := httptest.NewRequest(http.MethodGet, "/styles.css", nil)
	cssRR := httptest.NewRecorder()
	handler.ServeHTTP(cssRR, cssReq)

	if cssRR.Code != http.StatusOK {
		t.Fatalf("expected status 200 for css, got %d", cssRR.Code)
	}
	if !strings.Contains(cssRR.Body.String(), ":root") {
		t.Fatalf("expected CSS body to contain styles, got %q", cssRR.Body.String())
	}
}

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/opensource-finance/fuelrecon/internal/bus"
	"github.com/opensource-finance/fuelrecon/internal/cache"
	"github.com/opensource-finance/fuelrecon/internal/domain"
	"github.com/opensource-finance/fuelrecon/internal/extract"
	"github.com/opensource-finance/fuelrecon/internal/imports"
	"github.com/opensource-finance/fuelrecon/internal/matching"
	"github.com/opensource-finance/fuelrecon/internal/repository"
)

const testTenant = "tenant-001"

const statement = `<?xml version="1.0" encoding="UTF-8"?>
<Statement>
  <Number>ST-2024-03</Number>
  <Issued>2024-03-31</Issued>
  <Line>
    <Plate>AB123CD</Plate>
    <Date>10/03/2024</Date>
    <Product>Gasolio</Product>
    <Liters>45,20</Liters>
    <Amount>72,30</Amount>
  </Line>
  <Line>
    <Plate>ZZ999ZZ</Plate>
    <Date>12/03/2024</Date>
    <Product>Benzina</Product>
    <Liters>30,00</Liters>
    <Amount>55,00</Amount>
  </Line>
</Statement>`

const templateBody = `{
  "name": "Card statement",
  "config": {
    "lineXpath": "Statement.Line",
    "invoiceNumberXpath": "Statement.Number",
    "invoiceDateXpath": "Statement.Issued",
    "fields": {
      "plate": {"method": "XPATH", "xpath": "Plate"},
      "date": {"method": "XPATH", "xpath": "Date"},
      "fuelType": {"method": "XPATH", "xpath": "Product"},
      "quantity": {"method": "XPATH", "xpath": "Liters"},
      "amount": {"method": "XPATH", "xpath": "Amount"}
    },
    "filters": [{"action": "exclude", "expression": "amount < 0.0"}]
  }
}`

type testEnv struct {
	server *Server
	repo   *repository.SQLRepository
	bus    *bus.ChannelBus
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()

	repo, err := repository.New(domain.RepositoryConfig{
		Driver:     "sqlite",
		SQLitePath: filepath.Join(t.TempDir(), "api-test.db"),
	})
	if err != nil {
		t.Fatalf("failed to create repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	if err := repo.SaveVehicle(ctx, testTenant, &domain.Vehicle{ID: "v-1", Plate: "AB 123 CD"}); err != nil {
		t.Fatalf("SaveVehicle failed: %v", err)
	}
	if err := repo.SaveFuelRecord(ctx, testTenant, &domain.FuelRecord{
		ID:        "r-1",
		VehicleID: "v-1",
		Date:      time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC),
		Quantity:  45.2,
		TotalCost: 72.30,
		FuelType:  "DIESEL",
	}); err != nil {
		t.Fatalf("SaveFuelRecord failed: %v", err)
	}

	eventBus := bus.NewChannelBus(10)
	t.Cleanup(func() { eventBus.Close() })
	memCache := cache.NewLRUCache(100)

	extractor, err := extract.NewExtractor(nil)
	if err != nil {
		t.Fatalf("NewExtractor failed: %v", err)
	}
	matcher := matching.NewMatcher(repo,
		matching.WithWorkers(2),
		matching.WithResolutionCache(memCache, time.Minute),
	)
	service := imports.NewService(repo, extractor, matcher, imports.WithEventBus(eventBus))

	cfg := domain.ServerConfig{
		Host:         "localhost",
		Port:         8080,
		ReadTimeout:  30,
		WriteTimeout: 30,
		MaxUploadMB:  1,
	}
	return &testEnv{
		server: NewServer(cfg, service, repo, memCache, eventBus, "test-v1"),
		repo:   repo,
		bus:    eventBus,
	}
}

func (e *testEnv) do(t *testing.T, method, path, tenantID string, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if tenantID != "" {
		req.Header.Set(TenantIDHeader, tenantID)
	}
	rr := httptest.NewRecorder()
	e.server.Router().ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rr.Body.Bytes(), &v); err != nil {
		t.Fatalf("failed to decode response %q: %v", rr.Body.String(), err)
	}
	return v
}

func (e *testEnv) createTemplate(t *testing.T) string {
	t.Helper()
	rr := e.do(t, http.MethodPost, "/templates", testTenant, []byte(templateBody))
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", rr.Code, rr.Body.String())
	}
	return decode[domain.Template](t, rr).ID
}

func TestHealthEndpoints(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, http.MethodGet, "/health", "", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	resp := decode[map[string]any](t, rr)
	if resp["status"] != "healthy" {
		t.Errorf("expected status 'healthy', got %v", resp["status"])
	}
	if resp["version"] != "test-v1" {
		t.Errorf("expected version 'test-v1', got %v", resp["version"])
	}

	rr = env.do(t, http.MethodGet, "/ready", "", nil)
	if rr.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rr.Code)
	}
	if rr.Header().Get(RequestIDHeader) == "" || rr.Header().Get(TraceIDHeader) == "" {
		t.Error("expected request and trace id headers")
	}
}

func TestTenantRequired(t *testing.T) {
	env := newTestEnv(t)

	for _, path := range []string{"/templates", "/imports"} {
		rr := env.do(t, http.MethodGet, path, "", nil)
		if rr.Code != http.StatusBadRequest {
			t.Errorf("%s: expected status 400, got %d", path, rr.Code)
		}
	}
}

func TestTemplateEndpoints(t *testing.T) {
	env := newTestEnv(t)
	id := env.createTemplate(t)

	t.Run("Get", func(t *testing.T) {
		rr := env.do(t, http.MethodGet, "/templates/"+id, testTenant, nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rr.Code)
		}
		tpl := decode[domain.Template](t, rr)
		if tpl.Name != "Card statement" || !tpl.Enabled {
			t.Errorf("unexpected template %+v", tpl)
		}
		if tpl.Config.LineXPath != "Statement.Line" {
			t.Errorf("expected line path to round trip, got %q", tpl.Config.LineXPath)
		}
	})

	t.Run("OtherTenant", func(t *testing.T) {
		rr := env.do(t, http.MethodGet, "/templates/"+id, "tenant-002", nil)
		if rr.Code != http.StatusNotFound {
			t.Errorf("expected status 404, got %d", rr.Code)
		}
	})

	t.Run("List", func(t *testing.T) {
		rr := env.do(t, http.MethodGet, "/templates", testTenant, nil)
		resp := decode[map[string]any](t, rr)
		if resp["count"] != float64(1) {
			t.Errorf("expected 1 template, got %v", resp["count"])
		}
	})

	t.Run("SchemaViolation", func(t *testing.T) {
		body := `{"name": "Broken", "config": {"fields": {}}}`
		rr := env.do(t, http.MethodPost, "/templates", testTenant, []byte(body))
		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d: %s", rr.Code, rr.Body.String())
		}
	})

	t.Run("InvalidFilterExpression", func(t *testing.T) {
		body := strings.Replace(templateBody, "amount < 0.0", "amount <", 1)
		rr := env.do(t, http.MethodPost, "/templates", testTenant, []byte(body))
		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d: %s", rr.Code, rr.Body.String())
		}
	})

	t.Run("DetectUnknownLayout", func(t *testing.T) {
		rr := env.do(t, http.MethodPost, "/templates/detect", testTenant, []byte(statement))
		if rr.Code != http.StatusUnprocessableEntity {
			t.Errorf("expected status 422, got %d", rr.Code)
		}
	})

	t.Run("Extract", func(t *testing.T) {
		rr := env.do(t, http.MethodPost, "/extract?templateId="+id, testTenant, []byte(statement))
		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
		}
		res := decode[domain.ExtractionResult](t, rr)
		if !res.Success || res.TotalLines != 2 || len(res.Lines) != 2 {
			t.Errorf("unexpected extraction result %+v", res)
		}
	})
}

func TestImportWorkflow(t *testing.T) {
	env := newTestEnv(t)
	templateID := env.createTemplate(t)

	rr := env.do(t, http.MethodPost, "/imports?fileName=march.xml&templateId="+templateID, testTenant, []byte(statement))
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", rr.Code, rr.Body.String())
	}
	imp := decode[domain.Import](t, rr)
	if imp.Status != domain.ImportProcessed {
		t.Fatalf("expected PROCESSED, got %s", imp.Status)
	}
	if imp.ExtractedCount != 2 || imp.MatchedCount != 1 || imp.ErrorCount != 1 {
		t.Errorf("unexpected counters extracted=%d matched=%d errors=%d", imp.ExtractedCount, imp.MatchedCount, imp.ErrorCount)
	}

	base := "/imports/" + imp.ID

	rr = env.do(t, http.MethodGet, base+"/lines", testTenant, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	lines := decode[struct {
		Lines []domain.ImportLine `json:"lines"`
	}](t, rr).Lines
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	if lines[0].Status != domain.LineAutoMatched || lines[0].MatchedRecordID == nil || *lines[0].MatchedRecordID != "r-1" {
		t.Errorf("expected line 1 auto-matched to r-1, got %s", lines[0].Status)
	}
	if lines[1].Status != domain.LineError {
		t.Errorf("expected line 2 to be ERROR, got %s", lines[1].Status)
	}

	rr = env.do(t, http.MethodPost, base+"/confirm-auto", testTenant, nil)
	if resp := decode[map[string]int](t, rr); resp["confirmed"] != 1 {
		t.Errorf("expected 1 confirmed line, got %v", resp)
	}

	rr = env.do(t, http.MethodPost, base+"/lines/"+lines[1].ID+"/skip", testTenant, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if line := decode[domain.ImportLine](t, rr); line.Status != domain.LineSkipped {
		t.Errorf("expected SKIPPED, got %s", line.Status)
	}

	rr = env.do(t, http.MethodPost, base+"/lines/"+lines[1].ID+"/archive", testTenant, nil)
	if rr.Code != http.StatusNotFound {
		t.Errorf("expected status 404 for unknown action, got %d", rr.Code)
	}

	rr = env.do(t, http.MethodPost, base+"/finalize", testTenant, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	done := decode[domain.Import](t, rr)
	if done.Status != domain.ImportCompleted || done.MatchedCount != 1 || done.SkippedCount != 1 {
		t.Errorf("unexpected finalized import status=%s matched=%d skipped=%d", done.Status, done.MatchedCount, done.SkippedCount)
	}

	t.Run("ProcessTwiceConflicts", func(t *testing.T) {
		rr := env.do(t, http.MethodPost, base+"/process", testTenant, []byte(statement))
		if rr.Code != http.StatusConflict {
			t.Errorf("expected status 409, got %d", rr.Code)
		}
	})

	t.Run("ReviewAfterFinalizeConflicts", func(t *testing.T) {
		rr := env.do(t, http.MethodPost, base+"/lines/"+lines[0].ID+"/reject", testTenant, nil)
		if rr.Code != http.StatusConflict {
			t.Errorf("expected status 409, got %d", rr.Code)
		}
	})

	t.Run("List", func(t *testing.T) {
		rr := env.do(t, http.MethodGet, "/imports?status=COMPLETED&limit=10", testTenant, nil)
		resp := decode[map[string]any](t, rr)
		if resp["total"] != float64(1) || resp["limit"] != float64(10) {
			t.Errorf("unexpected list response %v", resp)
		}

		rr = env.do(t, http.MethodGet, "/imports?from=yesterday", testTenant, nil)
		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400 for bad date, got %d", rr.Code)
		}
	})

	t.Run("TenantIsolation", func(t *testing.T) {
		rr := env.do(t, http.MethodGet, base, "tenant-002", nil)
		if rr.Code != http.StatusNotFound {
			t.Errorf("expected status 404, got %d", rr.Code)
		}
	})
}

func TestAsyncImport(t *testing.T) {
	env := newTestEnv(t)
	templateID := env.createTemplate(t)

	submitted := make(chan domain.ImportSubmission, 1)
	_, err := env.bus.Subscribe(context.Background(), domain.AllTenants, domain.TopicImportSubmitted, func(_ context.Context, msg *domain.Message) error {
		var sub domain.ImportSubmission
		if err := json.Unmarshal(msg.Payload, &sub); err != nil {
			return err
		}
		submitted <- sub
		return nil
	})
	if err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}

	rr := env.do(t, http.MethodPost, "/imports?async=true&templateId="+templateID, testTenant, []byte(statement))
	if rr.Code != http.StatusAccepted {
		t.Fatalf("expected status 202, got %d: %s", rr.Code, rr.Body.String())
	}
	imp := decode[domain.Import](t, rr)
	if imp.Status != domain.ImportPending {
		t.Errorf("expected PENDING, got %s", imp.Status)
	}

	select {
	case sub := <-submitted:
		if sub.ImportID != imp.ID || string(sub.Document) != statement {
			t.Errorf("unexpected submission for %s", sub.ImportID)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for submission")
	}

	t.Run("DocumentMismatch", func(t *testing.T) {
		other := strings.Replace(statement, "72,30", "72,31", 1)
		rr := env.do(t, http.MethodPost, "/imports/"+imp.ID+"/process", testTenant, []byte(other))
		if rr.Code != http.StatusUnprocessableEntity {
			t.Errorf("expected status 422, got %d", rr.Code)
		}
	})
}

func TestImportValidation(t *testing.T) {
	env := newTestEnv(t)
	templateID := env.createTemplate(t)

	t.Run("EmptyBody", func(t *testing.T) {
		rr := env.do(t, http.MethodPost, "/imports?templateId="+templateID, testTenant, nil)
		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rr.Code)
		}
	})

	t.Run("UnknownTemplate", func(t *testing.T) {
		rr := env.do(t, http.MethodPost, "/imports?templateId=missing", testTenant, []byte(statement))
		if rr.Code != http.StatusNotFound {
			t.Errorf("expected status 404, got %d", rr.Code)
		}
	})

	t.Run("TooLarge", func(t *testing.T) {
		body := bytes.Repeat([]byte("x"), 1<<20+1)
		rr := env.do(t, http.MethodPost, "/imports?templateId="+templateID, testTenant, body)
		if rr.Code != http.StatusRequestEntityTooLarge {
			t.Errorf("expected status 413, got %d", rr.Code)
		}
	})

	t.Run("UnknownImport", func(t *testing.T) {
		rr := env.do(t, http.MethodGet, "/imports/does-not-exist", testTenant, nil)
		if rr.Code != http.StatusNotFound {
			t.Errorf("expected status 404, got %d", rr.Code)
		}
	})
}

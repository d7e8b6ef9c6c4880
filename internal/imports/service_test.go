package imports

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opensource-finance/fuelrecon/internal/domain"
	"github.com/opensource-finance/fuelrecon/internal/extract"
	"github.com/opensource-finance/fuelrecon/internal/matching"
)

const tenant = "tenant-1"

// memStore is an in-memory Store.
type memStore struct {
	mu        sync.Mutex
	vehicles  []*domain.Vehicle
	records   []*domain.FuelRecord
	templates map[string]*domain.Template
	imports   map[string]*domain.Import
	lines     map[string]*domain.ImportLine

	// failLineAt makes SaveProcessedImport fail on that line number.
	failLineAt int
}

func newMemStore() *memStore {
	return &memStore{
		templates: make(map[string]*domain.Template),
		imports:   make(map[string]*domain.Import),
		lines:     make(map[string]*domain.ImportLine),
	}
}

func (s *memStore) FindVehicleByNormalizedPlate(_ context.Context, tenantID, plate string) (*domain.Vehicle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, v := range s.vehicles {
		if v.TenantID == tenantID && v.NormalizedPlate == plate {
			return v, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (s *memStore) FindActiveVehicles(_ context.Context, tenantID string) ([]*domain.Vehicle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*domain.Vehicle
	for _, v := range s.vehicles {
		if v.TenantID == tenantID && v.Active() {
			out = append(out, v)
		}
	}
	return out, nil
}

func (s *memStore) FindFuelRecords(_ context.Context, tenantID, vehicleID string, w domain.DateRange) ([]*domain.FuelRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*domain.FuelRecord
	for _, r := range s.records {
		if r.TenantID == tenantID && r.VehicleID == vehicleID && !r.Date.Before(w.From) && !r.Date.After(w.To) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *memStore) CreateImport(_ context.Context, _ string, imp *domain.Import) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *imp
	s.imports[imp.ID] = &c
	return nil
}

func (s *memStore) UpdateImport(_ context.Context, tenantID string, imp *domain.Import) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if old, ok := s.imports[imp.ID]; !ok || old.TenantID != tenantID {
		return domain.ErrNotFound
	}
	c := *imp
	s.imports[imp.ID] = &c
	return nil
}

func (s *memStore) GetImport(_ context.Context, tenantID, id string) (*domain.Import, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	imp, ok := s.imports[id]
	if !ok || imp.TenantID != tenantID {
		return nil, domain.ErrNotFound
	}
	c := *imp
	return &c, nil
}

func (s *memStore) ListImports(_ context.Context, tenantID string, f domain.ImportFilter, p domain.Page) ([]*domain.Import, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*domain.Import
	for _, imp := range s.imports {
		if imp.TenantID == tenantID && (f.Status == "" || imp.Status == f.Status) {
			c := *imp
			out = append(out, &c)
		}
	}
	return out, len(out), nil
}

func (s *memStore) CreateImportLine(_ context.Context, _ string, l *domain.ImportLine) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *l
	s.lines[l.ID] = &c
	return nil
}

func (s *memStore) SaveProcessedImport(_ context.Context, tenantID string, imp *domain.Import, lines []*domain.ImportLine) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if old, ok := s.imports[imp.ID]; !ok || old.TenantID != tenantID {
		return domain.ErrNotFound
	}

	staged := make(map[string]*domain.ImportLine, len(lines))
	seen := make(map[int]bool, len(lines))
	for _, l := range lines {
		if l.LineNumber == s.failLineAt || seen[l.LineNumber] {
			return errors.New("insert failed")
		}
		seen[l.LineNumber] = true
		c := *l
		staged[l.ID] = &c
	}

	for id, l := range s.lines {
		if l.TenantID == tenantID && l.ImportID == imp.ID {
			delete(s.lines, id)
		}
	}
	for id, l := range staged {
		s.lines[id] = l
	}
	c := *imp
	s.imports[imp.ID] = &c
	return nil
}

func (s *memStore) UpdateImportLine(_ context.Context, _ string, l *domain.ImportLine) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.lines[l.ID]; !ok {
		return domain.ErrNotFound
	}
	c := *l
	s.lines[l.ID] = &c
	return nil
}

func (s *memStore) GetImportLine(_ context.Context, tenantID, id string) (*domain.ImportLine, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.lines[id]
	if !ok || l.TenantID != tenantID {
		return nil, domain.ErrNotFound
	}
	c := *l
	return &c, nil
}

func (s *memStore) ListImportLines(_ context.Context, tenantID, importID string) ([]*domain.ImportLine, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*domain.ImportLine
	for _, l := range s.lines {
		if l.TenantID == tenantID && l.ImportID == importID {
			c := *l
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LineNumber < out[j].LineNumber })
	return out, nil
}

func (s *memStore) CountImportLines(_ context.Context, tenantID string, f domain.ImportLineFilter) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, l := range s.lines {
		if l.TenantID != tenantID || l.ImportID != f.ImportID {
			continue
		}
		if len(f.Statuses) > 0 {
			hit := false
			for _, st := range f.Statuses {
				hit = hit || l.Status == st
			}
			if !hit {
				continue
			}
		}
		if f.HasCreatedRecord != nil && (l.CreatedRecordID != nil) != *f.HasCreatedRecord {
			continue
		}
		n++
	}
	return n, nil
}

func (s *memStore) SaveTemplate(_ context.Context, _ string, t *domain.Template) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.templates[t.ID] = t
	return nil
}

func (s *memStore) GetTemplate(_ context.Context, tenantID, id string) (*domain.Template, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.templates[id]
	if !ok || t.TenantID != tenantID {
		return nil, domain.ErrNotFound
	}
	return t, nil
}

func (s *memStore) ListTemplates(_ context.Context, tenantID string) ([]*domain.Template, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*domain.Template
	for _, t := range s.templates {
		if t.TenantID == tenantID {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// recordingBus captures published events.
type recordingBus struct {
	mu     sync.Mutex
	topics []string
	events []domain.ImportEvent
}

func (b *recordingBus) Publish(_ context.Context, _ string, topic string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.topics = append(b.topics, topic)
	var evt domain.ImportEvent
	_ = json.Unmarshal(payload, &evt)
	b.events = append(b.events, evt)
	return nil
}

func (b *recordingBus) Subscribe(context.Context, string, string, domain.MessageHandler) (domain.Subscription, error) {
	return nil, errors.New("not supported")
}

func (b *recordingBus) Ping(context.Context) error { return nil }
func (b *recordingBus) Close() error               { return nil }

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
    <Plate>EF456GH</Plate>
    <Date>12/03/2024</Date>
    <Product>Benzina</Product>
    <Liters>30,00</Liters>
    <Amount>55,00</Amount>
  </Line>
  <Line>
    <Plate></Plate>
    <Date>14/03/2024</Date>
    <Product>Gasolio</Product>
    <Liters>20,00</Liters>
    <Amount>33,00</Amount>
  </Line>
  <Line>
    <Plate>AB123CD</Plate>
    <Date>15/03/2024</Date>
    <Product>Gasolio</Product>
    <Liters>0</Liters>
    <Amount>-4,00</Amount>
  </Line>
</Statement>`

func xpath(path string) domain.FieldExtractionRule {
	return domain.FieldExtractionRule{Method: domain.MethodXPath, XPath: path}
}

func statementTemplate() *domain.Template {
	return &domain.Template{
		ID:       "tpl-1",
		TenantID: tenant,
		Name:     "Card statement",
		Enabled:  true,
		Config: domain.TemplateConfig{
			LineXPath:          "Statement.Line",
			InvoiceNumberXPath: "Statement.Number",
			InvoiceDateXPath:   "Statement.Issued",
			Fields: map[domain.FieldName]domain.FieldExtractionRule{
				domain.FieldPlate:    xpath("Plate"),
				domain.FieldDate:     xpath("Date"),
				domain.FieldFuelType: xpath("Product"),
				domain.FieldQuantity: xpath("Liters"),
				domain.FieldAmount:   xpath("Amount"),
			},
			Filters: []domain.LineFilter{
				{Action: domain.FilterExclude, Expression: "amount < 0.0"},
			},
		},
	}
}

type fixture struct {
	store *memStore
	bus   *recordingBus
	svc   *Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store := newMemStore()
	store.templates["tpl-1"] = statementTemplate()
	store.vehicles = []*domain.Vehicle{
		{ID: "v1", TenantID: tenant, Plate: "AB123CD", NormalizedPlate: "AB123CD"},
		{ID: "v2", TenantID: tenant, Plate: "EF 456 GH", NormalizedPlate: "EF456GH"},
	}
	store.records = []*domain.FuelRecord{
		{ID: "r1", TenantID: tenant, VehicleID: "v1", Date: time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC), Quantity: 45.2, TotalCost: 72.30, FuelType: "DIESEL"},
	}

	ex, err := extract.NewExtractor(nil)
	require.NoError(t, err)

	bus := &recordingBus{}
	svc := NewService(store, ex, matching.NewMatcher(store), WithEventBus(bus))
	return &fixture{store: store, bus: bus, svc: svc}
}

func (f *fixture) processed(t *testing.T) *domain.Import {
	t.Helper()
	ctx := context.Background()

	imp, err := f.svc.Create(ctx, tenant, CreateRequest{TemplateID: "tpl-1", FileName: "march.xml", Document: []byte(statement)})
	require.NoError(t, err)
	imp, err = f.svc.Process(ctx, tenant, imp.ID, []byte(statement))
	require.NoError(t, err)
	return imp
}

func linesByNumber(t *testing.T, f *fixture, importID string) map[int]*domain.ImportLine {
	t.Helper()
	lines, err := f.svc.ListLines(context.Background(), tenant, importID)
	require.NoError(t, err)
	out := make(map[int]*domain.ImportLine, len(lines))
	for _, l := range lines {
		out[l.LineNumber] = l
	}
	return out
}

func TestCreate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	imp, err := f.svc.Create(ctx, tenant, CreateRequest{TemplateID: "tpl-1", FileName: "march.xml", Document: []byte(statement)})
	require.NoError(t, err)
	assert.Equal(t, domain.ImportPending, imp.Status)
	assert.Equal(t, ContentHash([]byte(statement)), imp.ContentHash)
	assert.Len(t, imp.ContentHash, 64)
	assert.NotEmpty(t, imp.ProcessingLog)

	_, err = f.svc.Create(ctx, "", CreateRequest{TemplateID: "tpl-1", Document: []byte(statement)})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = f.svc.Create(ctx, tenant, CreateRequest{TemplateID: "missing", Document: []byte(statement)})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	f.store.templates["tpl-1"].Enabled = false
	_, err = f.svc.Create(ctx, tenant, CreateRequest{TemplateID: "tpl-1", Document: []byte(statement)})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestProcess(t *testing.T) {
	f := newFixture(t)
	imp := f.processed(t)

	assert.Equal(t, domain.ImportProcessed, imp.Status)
	assert.Equal(t, 4, imp.ExtractedCount)
	assert.Equal(t, 1, imp.FilteredCount)
	assert.Equal(t, 1, imp.MatchedCount)
	assert.Equal(t, 1, imp.ErrorCount)
	require.NotNil(t, imp.ProcessedAt)
	require.NotNil(t, imp.InvoiceNumber)
	assert.Equal(t, "ST-2024-03", *imp.InvoiceNumber)
	require.NotNil(t, imp.InvoiceDate)
	assert.Equal(t, time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC), *imp.InvoiceDate)

	lines := linesByNumber(t, f, imp.ID)
	require.Len(t, lines, 3)

	first := lines[1]
	assert.Equal(t, domain.LineAutoMatched, first.Status)
	assert.Equal(t, "r1", *first.MatchedRecordID)
	assert.Equal(t, 1.0, *first.MatchScore)
	assert.Equal(t, time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC), *first.PurchaseDate)

	// vehicle resolves, no records in the window
	second := lines[2]
	assert.Equal(t, domain.LineUnmatched, second.Status)
	assert.Equal(t, "v2", *second.VehicleID)
	assert.Equal(t, 0, second.CandidateCount)

	third := lines[3]
	assert.Equal(t, domain.LineError, third.Status)
	require.NotNil(t, third.ErrorMessage)
	assert.Equal(t, "missing plate", *third.ErrorMessage)

	require.NotEmpty(t, f.bus.topics)
	assert.Equal(t, domain.TopicImportProcessed, f.bus.topics[len(f.bus.topics)-1])
	assert.Equal(t, 1, f.bus.events[len(f.bus.events)-1].Summary.AutoMatched)
}

func TestProcessExtractionFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	doc := []byte("<Statement><Line>")

	imp, err := f.svc.Create(ctx, tenant, CreateRequest{TemplateID: "tpl-1", Document: doc})
	require.NoError(t, err)

	imp, err = f.svc.Process(ctx, tenant, imp.ID, doc)
	require.NoError(t, err)
	assert.Equal(t, domain.ImportError, imp.Status)

	last := imp.ProcessingLog[len(imp.ProcessingLog)-1]
	assert.Equal(t, "error", last.Level)
	assert.Contains(t, last.Message, "Extraction failed")

	lines, err := f.svc.ListLines(ctx, tenant, imp.ID)
	require.NoError(t, err)
	assert.Empty(t, lines)
	assert.Equal(t, []string{domain.TopicImportFailed}, f.bus.topics)

	// ERROR is terminal
	_, err = f.svc.Finalize(ctx, tenant, imp.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestProcessLineWriteFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.store.failLineAt = 2

	imp, err := f.svc.Create(ctx, tenant, CreateRequest{TemplateID: "tpl-1", Document: []byte(statement)})
	require.NoError(t, err)

	_, err = f.svc.Process(ctx, tenant, imp.ID, []byte(statement))
	require.Error(t, err)

	got, err := f.svc.GetImport(ctx, tenant, imp.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ImportPending, got.Status)
	lines, err := f.svc.ListLines(ctx, tenant, imp.ID)
	require.NoError(t, err)
	assert.Empty(t, lines)
	assert.NotContains(t, f.bus.topics, domain.TopicImportProcessed)

	// retry once the store recovers
	f.store.failLineAt = 0
	got, err = f.svc.Process(ctx, tenant, imp.ID, []byte(statement))
	require.NoError(t, err)
	assert.Equal(t, domain.ImportProcessed, got.Status)

	lines, err = f.svc.ListLines(ctx, tenant, imp.ID)
	require.NoError(t, err)
	require.Len(t, lines, 3)
	for i, l := range lines {
		assert.Equal(t, i+1, l.LineNumber)
	}
}

func TestProcessGuards(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	imp, err := f.svc.Create(ctx, tenant, CreateRequest{TemplateID: "tpl-1", Document: []byte(statement)})
	require.NoError(t, err)

	_, err = f.svc.Process(ctx, tenant, imp.ID, []byte("<Statement/>"))
	assert.ErrorIs(t, err, ErrDocumentMismatch)

	_, err = f.svc.Process(ctx, tenant, imp.ID, []byte(statement))
	require.NoError(t, err)

	_, err = f.svc.Process(ctx, tenant, imp.ID, []byte(statement))
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = f.svc.Process(ctx, "tenant-2", imp.ID, []byte(statement))
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestReviewLines(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	imp := f.processed(t)
	lines := linesByNumber(t, f, imp.ID)

	rejected, err := f.svc.RejectLine(ctx, tenant, imp.ID, lines[1].ID)
	require.NoError(t, err)
	assert.Equal(t, domain.LineRejected, rejected.Status)
	assert.Nil(t, rejected.MatchedRecordID)
	assert.NotNil(t, rejected.ReviewedAt)

	confirmed, err := f.svc.ConfirmLine(ctx, tenant, imp.ID, lines[2].ID)
	require.NoError(t, err)
	assert.Equal(t, domain.LineConfirmed, confirmed.Status)

	skipped, err := f.svc.SkipLine(ctx, tenant, imp.ID, lines[3].ID)
	require.NoError(t, err)
	assert.Equal(t, domain.LineSkipped, skipped.Status)

	assert.Equal(t, domain.TopicLineReviewed, f.bus.topics[len(f.bus.topics)-1])

	_, err = f.svc.ConfirmLine(ctx, tenant, "other-import", lines[1].ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestConfirmAllAutoMatched(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	imp := f.processed(t)

	n, err := f.svc.ConfirmAllAutoMatched(ctx, tenant, imp.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	lines := linesByNumber(t, f, imp.ID)
	assert.Equal(t, domain.LineConfirmed, lines[1].Status)
	assert.Equal(t, domain.LineUnmatched, lines[2].Status)
	assert.Equal(t, domain.LineError, lines[3].Status)

	n, err = f.svc.ConfirmAllAutoMatched(ctx, tenant, imp.ID)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestFinalize(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	imp := f.processed(t)
	lines := linesByNumber(t, f, imp.ID)

	_, err := f.svc.SkipLine(ctx, tenant, imp.ID, lines[2].ID)
	require.NoError(t, err)

	created := "fr-99"
	f.store.lines[lines[1].ID].CreatedRecordID = &created

	done, err := f.svc.Finalize(ctx, tenant, imp.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ImportCompleted, done.Status)
	assert.NotNil(t, done.CompletedAt)
	assert.Equal(t, 1, done.MatchedCount)
	assert.Equal(t, 1, done.CreatedCount)
	assert.Equal(t, 1, done.SkippedCount)
	assert.Equal(t, 1, done.ErrorCount)

	again, err := f.svc.Finalize(ctx, tenant, imp.ID)
	require.NoError(t, err)
	assert.Equal(t, done.MatchedCount, again.MatchedCount)
	assert.Equal(t, done.CreatedCount, again.CreatedCount)
	assert.Equal(t, done.SkippedCount, again.SkippedCount)
	assert.Equal(t, done.ErrorCount, again.ErrorCount)

	// COMPLETED imports are no longer reviewable
	_, err = f.svc.ConfirmLine(ctx, tenant, imp.ID, lines[3].ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Equal(t, domain.TopicImportCompleted, f.bus.topics[len(f.bus.topics)-1])
}

func TestRequireManualConfirm(t *testing.T) {
	f := newFixture(t)
	f.store.templates["tpl-1"].RequireManualConfirm = true
	imp := f.processed(t)

	lines := linesByNumber(t, f, imp.ID)
	assert.Equal(t, domain.LineSuggested, lines[1].Status)
	assert.Equal(t, 0, imp.MatchedCount)
}

func TestSubmit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	imp, err := f.svc.Create(ctx, tenant, CreateRequest{TemplateID: "tpl-1", Document: []byte(statement)})
	require.NoError(t, err)

	require.NoError(t, f.svc.Submit(ctx, tenant, imp.ID, []byte(statement)))
	assert.Equal(t, []string{domain.TopicImportSubmitted}, f.bus.topics)

	assert.ErrorIs(t, f.svc.Submit(ctx, tenant, imp.ID, []byte("other")), ErrDocumentMismatch)

	noBus := NewService(f.store, f.svc.extractor, f.svc.matcher)
	assert.Error(t, noBus.Submit(ctx, tenant, imp.ID, []byte(statement)))
}

func TestSaveTemplate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tpl := statementTemplate()
	tpl.ID = ""
	tpl.Name = "Second supplier"
	require.NoError(t, f.svc.SaveTemplate(ctx, tenant, tpl))
	assert.NotEmpty(t, tpl.ID)
	assert.Equal(t, tenant, tpl.TenantID)
	assert.False(t, tpl.CreatedAt.IsZero())

	got, err := f.svc.GetTemplate(ctx, tenant, tpl.ID)
	require.NoError(t, err)
	assert.Equal(t, "Second supplier", got.Name)

	all, err := f.svc.ListTemplates(ctx, tenant)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "Card statement", all[0].Name)
	assert.Equal(t, "Second supplier", all[1].Name)

	other, err := f.svc.ListTemplates(ctx, "tenant-2")
	require.NoError(t, err)
	assert.Empty(t, other)

	t.Run("Invalid", func(t *testing.T) {
		bad := statementTemplate()
		bad.ID = ""
		bad.Config.LineXPath = ""
		assert.ErrorIs(t, f.svc.SaveTemplate(ctx, tenant, bad), domain.ErrInvalidInput)

		bad = statementTemplate()
		bad.Config.Filters = []domain.LineFilter{{Action: domain.FilterExclude, Expression: "amount <"}}
		assert.ErrorIs(t, f.svc.SaveTemplate(ctx, tenant, bad), domain.ErrInvalidInput)

		bad = statementTemplate()
		bad.Tolerances = domain.DefaultTolerances()
		bad.Tolerances.AutoMatchThreshold = 1.5
		assert.ErrorIs(t, f.svc.SaveTemplate(ctx, tenant, bad), domain.ErrInvalidInput)

		bad = statementTemplate()
		bad.Name = " "
		assert.ErrorIs(t, f.svc.SaveTemplate(ctx, tenant, bad), domain.ErrInvalidInput)

		assert.ErrorIs(t, f.svc.SaveTemplate(ctx, "", statementTemplate()), domain.ErrInvalidInput)
	})
}

func TestPreview(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.svc.Preview(ctx, tenant, "tpl-1", []byte(statement))
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, 4, res.TotalLines)
	assert.Equal(t, 1, res.FilteredLines)

	_, err = f.svc.Preview(ctx, tenant, "missing", []byte(statement))
	assert.ErrorIs(t, err, domain.ErrNotFound)

	// Nothing is persisted.
	assert.Empty(t, f.store.imports)
}

func TestDetectTemplate(t *testing.T) {
	doc := `<FatturaElettronica>
  <FatturaElettronicaBody>
    <DatiBeniServizi>
      <DettaglioLinee>
        <Descrizione>Diesel 40 lt</Descrizione>
        <PrezzoTotale>68.00</PrezzoTotale>
      </DettaglioLinee>
    </DatiBeniServizi>
  </FatturaElettronicaBody>
</FatturaElettronica>`

	d, tpl, err := DetectTemplate([]byte(doc))
	require.NoError(t, err)
	assert.Equal(t, "FatturaElettronica", d.Root)
	assert.Equal(t, "Detected FatturaElettronica", tpl.Name)
	assert.True(t, tpl.Enabled)
	assert.NoError(t, tpl.Config.Validate())

	_, _, err = DetectTemplate([]byte(statement))
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

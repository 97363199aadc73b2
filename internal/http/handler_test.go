package http

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nurpe/pestops-contracts/internal/auth"
	"github.com/nurpe/pestops-contracts/internal/builder"
	"github.com/nurpe/pestops-contracts/internal/excel"
	"github.com/nurpe/pestops-contracts/internal/filters"
	"github.com/nurpe/pestops-contracts/internal/gateway"
	"github.com/nurpe/pestops-contracts/internal/http/middleware"
	"github.com/nurpe/pestops-contracts/internal/model"
	"github.com/nurpe/pestops-contracts/internal/pdf"
	"github.com/nurpe/pestops-contracts/internal/service"
)

const testSecret = "handler-test-secret"

type stubGateway struct{}

func (stubGateway) FetchDropdowns(context.Context) (model.Dropdowns, error) {
	return model.Dropdowns{
		Customers:          []model.LookupOption{{ID: "cust-1", Name: "Harbour Foods"}},
		Pests:              []model.LookupOption{{ID: "pest-1", Name: "Rodent"}},
		ServiceFrequencies: []model.LookupOption{{ID: "sf-1", Name: "Weekly"}},
	}, nil
}

func (stubGateway) FetchDateRange(context.Context, gateway.DateRangeRequest) (gateway.DateRange, error) {
	return gateway.DateRange{}, nil
}

func (stubGateway) FetchInvoiceCount(context.Context, gateway.InvoiceCountRequest) (string, error) {
	return "", nil
}

func (stubGateway) FetchPestCount(context.Context, gateway.PestCountRequest) (string, error) {
	return "", nil
}

func (stubGateway) FetchCustomerDetails(context.Context, string) (model.CustomerDetails, error) {
	return model.CustomerDetails{Address: "12 Harbour Rd"}, nil
}

func (stubGateway) FetchContract(context.Context, string) (*gateway.ContractDetail, error) {
	return nil, gateway.ErrNotFound
}

func (stubGateway) PersistContract(context.Context, model.ContractPayload) (*gateway.PersistResult, error) {
	return &gateway.PersistResult{Status: gateway.StatusSuccess}, nil
}

func (stubGateway) GenerateSchedule(context.Context, gateway.ScheduleRequest) ([]model.Ticket, error) {
	return nil, nil
}

func (stubGateway) PersistTickets(context.Context, gateway.TicketsRequest) (*gateway.PersistResult, error) {
	return &gateway.PersistResult{Status: gateway.StatusSuccess}, nil
}

type nopAudit struct{}

func (nopAudit) Create(context.Context, *model.Submission) error { return nil }

func (nopAudit) ListByContract(context.Context, string, int) ([]model.Submission, error) {
	return []model.Submission{}, nil
}

type testServer struct {
	router *gin.Engine
	parser *auth.Parser
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	return newTestServerWithOrigins(t, nil)
}

func newTestServerWithOrigins(t *testing.T, origins []string) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log := zerolog.Nop()
	gw := stubGateway{}
	svc := service.NewBuilderService(service.Dependencies{
		Sessions: builder.NewManager(gw, builder.Options{}, time.Hour, log),
		Gateway:  gw,
		Audit:    nopAudit{},
		Excel:    excel.NewGenerator(),
		PDF:      pdf.NewGenerator(),
		Filters:  filters.NewMemoryStore(),
		Log:      log,
	})
	parser := auth.NewParser(testSecret)
	router := NewRouter(NewHandler(svc, log, origins), middleware.Auth(parser), "test", origins)
	return &testServer{router: router, parser: parser}
}

func (s *testServer) token(t *testing.T, role string) string {
	t.Helper()
	token, err := s.parser.Issue(model.Principal{UserID: uuid.New(), Role: role}, time.Hour)
	require.NoError(t, err)
	return token
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) open(t *testing.T, token string) builder.Snapshot {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/builder/sessions", token, gin.H{})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var snap builder.Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	require.NotEmpty(t, snap.ID)
	return snap
}

func TestHealthz(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRequiresToken(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/builder/dropdowns", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(t, http.MethodGet, "/builder/dropdowns", "not-a-jwt", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(t, http.MethodGet, "/builder/dropdowns?access_token="+s.token(t, model.RoleViewer), "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestViewerCannotOpenSession(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, http.MethodPost, "/builder/sessions", s.token(t, model.RoleViewer), nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestOpenMissingContract(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, http.MethodPost, "/builder/sessions", s.token(t, model.RoleOperator), gin.H{"contractId": "c-404"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestFieldChangeAndSubmitValidation(t *testing.T) {
	s := newTestServer(t)
	token := s.token(t, model.RoleOperator)
	snap := s.open(t, token)
	base := "/builder/sessions/" + snap.ID

	rec := s.do(t, http.MethodPost, base+"/fields", token, gin.H{"field": "remarks", "value": "side gate"})
	require.Equal(t, http.StatusOK, rec.Code)
	var updated builder.Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &updated))
	assert.Equal(t, "side gate", updated.Draft.Remarks)

	rec = s.do(t, http.MethodPost, base+"/fields", token, gin.H{"field": "nope", "value": "x"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPost, base+"/dates", token, gin.H{"field": "startDate", "value": "31/01/2026"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPost, base+"/submit", token, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, builder.CodeMissingRequiredField, body["code"])
	assert.NotEmpty(t, body["field"])
}

func TestLineEndpoints(t *testing.T) {
	s := newTestServer(t)
	token := s.token(t, model.RoleOperator)
	snap := s.open(t, token)
	base := "/builder/sessions/" + snap.ID

	rec := s.do(t, http.MethodDelete, base+"/lines/missing", token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, http.MethodPost, base+"/buffer", token, gin.H{"field": "customer", "value": "x"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPost, base+"/keys", token, gin.H{"current": "remarks", "key": gin.H{"key": "Enter", "shift": true}})
	require.Equal(t, http.StatusOK, rec.Code)
	var result builder.KeyResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, builder.KeyNewline, result.Action)
}

func TestExportWithoutTicketsConflicts(t *testing.T) {
	s := newTestServer(t)
	token := s.token(t, model.RoleOperator)
	snap := s.open(t, token)

	rec := s.do(t, http.MethodGet, "/builder/sessions/"+snap.ID+"/export/schedule.xlsx", token, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestAttachmentUpload(t *testing.T) {
	s := newTestServer(t)
	token := s.token(t, model.RoleOperator)
	snap := s.open(t, token)

	var body bytes.Buffer
	form := multipart.NewWriter(&body)
	part, err := form.CreateFormFile("file", "plan.pdf")
	require.NoError(t, err)
	_, err = part.Write([]byte("%PDF-1.4 test"))
	require.NoError(t, err)
	require.NoError(t, form.Close())

	req := httptest.NewRequest(http.MethodPost, "/builder/sessions/"+snap.ID+"/attachment", &body)
	req.Header.Set("Content-Type", form.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var updated builder.Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &updated))
	require.NotNil(t, updated.Draft.Attachment)
	assert.Equal(t, "plan.pdf", updated.Draft.Attachment.FileName)
}

func TestFiltersRoundTrip(t *testing.T) {
	s := newTestServer(t)
	token := s.token(t, model.RoleOperator)

	rec := s.do(t, http.MethodPut, "/filters/contracts", token, gin.H{"filters": gin.H{"status": "active"}})
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = s.do(t, http.MethodGet, "/filters/contracts", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"filters":{"status":"active"}}`, rec.Body.String())
}

func TestEventsStream(t *testing.T) {
	s := newTestServer(t)
	token := s.token(t, model.RoleOperator)
	snap := s.open(t, token)

	srv := httptest.NewServer(s.router)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/builder/sessions/" + snap.ID + "/events?access_token=" + token
	conn, _, err := websocket.Dial(ctx, url, nil)
	require.NoError(t, err)
	defer conn.CloseNow()

	// The subscription is registered before the upgrade completes, so the
	// customer details lookup started after Dial is always delivered.
	rec := s.do(t, http.MethodPost, "/builder/sessions/"+snap.ID+"/fields", token, gin.H{"field": "customer", "optionId": "cust-1"})
	require.Equal(t, http.StatusOK, rec.Code)

	var msg eventMessage
	require.NoError(t, wsjson.Read(ctx, conn, &msg))
	assert.Equal(t, builder.EventDraftUpdated, msg.Event.Type)
	require.NotNil(t, msg.Snapshot)
	assert.Equal(t, "12 Harbour Rd", msg.Snapshot.Draft.Address)
}

func TestEventsStreamChecksOrigin(t *testing.T) {
	s := newTestServerWithOrigins(t, []string{"https://app.example.com"})
	token := s.token(t, model.RoleOperator)
	snap := s.open(t, token)

	srv := httptest.NewServer(s.router)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/builder/sessions/" + snap.ID + "/events?access_token=" + token

	_, resp, err := websocket.Dial(ctx, url, &websocket.DialOptions{
		HTTPHeader: http.Header{"Origin": {"https://evil.example.com"}},
	})
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	conn, _, err := websocket.Dial(ctx, url, &websocket.DialOptions{
		HTTPHeader: http.Header{"Origin": {"https://app.example.com"}},
	})
	require.NoError(t, err)
	conn.CloseNow()
}

func TestOriginPatterns(t *testing.T) {
	assert.Equal(t, []string{"*"}, originPatterns(nil))
	assert.Equal(t, []string{"*"}, originPatterns([]string{" "}))
	assert.Equal(t, []string{"*"}, originPatterns([]string{"https://a.example.com", "*"}))
	assert.Equal(t,
		[]string{"app.example.com", "localhost:5173"},
		originPatterns([]string{"https://app.example.com/", "http://localhost:5173"}),
	)
}

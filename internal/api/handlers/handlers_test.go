package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"xrmkit.io/xrmkit/internal/api/middleware"
	"xrmkit.io/xrmkit/internal/catalog"
	"xrmkit.io/xrmkit/internal/entity"
	apperrors "xrmkit.io/xrmkit/internal/pkg/errors"
	"xrmkit.io/xrmkit/internal/pkg/logger"
	"xrmkit.io/xrmkit/internal/pkg/worker"
	"xrmkit.io/xrmkit/internal/provider"
	"xrmkit.io/xrmkit/internal/testutil"
)

func init() {
	gin.SetMode(gin.TestMode)
	logger.InitNop()
}

type fixture struct {
	router  *gin.Engine
	session *provider.Session
	mock    *provider.MockRetriever
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	mock := provider.NewMockRetriever()
	for _, name := range testutil.FixtureNames {
		mock.Seed(name, testutil.Metadata(t, name))
	}
	session := provider.NewSession(mock)

	kinds, err := catalog.NewKinds(map[string]string{"Incident": "incident", "Account": "account"})
	require.NoError(t, err)

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "prioritycode.yaml"),
		[]byte("attribute: incident.prioritycode\noptions:\n  - {value: 1, label: High}\n  - {value: 2, label: Normal}\n"), 0o600))
	sets, err := catalog.LoadOptionSets(dir)
	require.NoError(t, err)

	router := gin.New()
	router.Use(middleware.RequestID(), middleware.ErrorHandler())
	NewServer(ServerDeps{Source: session, Kinds: kinds, OptionSets: sets}).RegisterRoutes(router.Group("/api/v1"))

	return &fixture{router: router, session: session, mock: mock}
}

func (f *fixture) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func TestGetHealth(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodGet, "/api/v1/health", "")
	require.Equal(t, http.StatusOK, w.Code)
	health := decode[HealthResponse](t, w)
	assert.Equal(t, "ok", health.Status)
	assert.Zero(t, health.CachedEntities)

	f.do(t, http.MethodGet, "/api/v1/metadata/account", "")
	health = decode[HealthResponse](t, f.do(t, http.MethodGet, "/api/v1/health", ""))
	assert.Equal(t, 1, health.CachedEntities)
	assert.Equal(t, int64(1), health.MetadataFetches)
}

func TestGetMetadata(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodGet, "/api/v1/metadata/Contact", "")
	require.Equal(t, http.StatusOK, w.Code)
	schema := decode[SchemaResponse](t, w)
	assert.Equal(t, "contact", schema.LogicalName)
	assert.Len(t, schema.Attributes, 6)
	require.Len(t, schema.Mandatory, 1)
	assert.Equal(t, "lastname", schema.Mandatory[0].LogicalName)

	f.do(t, http.MethodGet, "/api/v1/metadata/contact", "")
	assert.Equal(t, 1, f.mock.Calls("contact"), "second request is served from cache")

	list := decode[struct{ Items []string }](t, f.do(t, http.MethodGet, "/api/v1/metadata", ""))
	assert.Equal(t, []string{"contact"}, list.Items)
}

func TestGetMetadata_Unknown(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodGet, "/api/v1/metadata/opportunity", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	body := decode[map[string]any](t, w)
	assert.Equal(t, apperrors.CodeMetadataNotFound, body["code"])
}

func TestBuildPayload(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodPost, "/api/v1/entities/account/payload", `{
		"id": "a-1",
		"attributes": {
			"Name": "Contoso",
			"revenue": 1250.5,
			"customertypecode": {"value": 3, "label": "Customer"},
			"ownerid": {"id": "u-1", "logical_name": "systemuser"},
			"telephone1": "555"
		}
	}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	resp := decode[PayloadResponse](t, w)
	assert.Equal(t, "account<a-1>", resp.Entity)
	assert.True(t, resp.Valid)
	assert.Empty(t, resp.Missing)

	require.Len(t, resp.Diagnostics, 1)
	assert.Equal(t, apperrors.CodePropertyNotFound, resp.Diagnostics[0].Code)
	assert.Equal(t, "telephone1", resp.Diagnostics[0].Property)

	keys := make([]string, 0, len(resp.Payload.Attributes))
	for _, a := range resp.Payload.Attributes {
		keys = append(keys, a.LogicalName)
	}
	assert.Equal(t, []string{"name", "revenue", "customertypecode", "ownerid"}, keys)

	picklist, _ := resp.Payload.Attribute("customertypecode")
	assert.Equal(t, "3", picklist.Value)
	assert.Equal(t, "picklist", picklist.Type)
	owner, _ := resp.Payload.Attribute("ownerid")
	assert.Equal(t, &entity.Reference{ID: "u-1", LogicalName: "systemuser"}, owner.Reference)

	assert.Contains(t, resp.XML, `<b:Id>a-1</b:Id>`)
	assert.Contains(t, resp.XML, `<c:value i:type="d:money" xmlns:d="http://www.w3.org/2001/XMLSchema">1250.5</c:value>`)
}

func TestBuildPayload_MissingMandatories(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodPost, "/api/v1/entities/account/payload", `{"attributes": {"accountnumber": "A-1"}}`)
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)

	resp := decode[PayloadResponse](t, w)
	assert.False(t, resp.Valid)
	assert.Equal(t, []entity.MissingField{
		{LogicalName: "name", Reason: "ApplicationRequired"},
		{LogicalName: "ownerid", Reason: "SystemRequired"},
	}, resp.Missing)
	assert.Equal(t, "account<"+entity.EmptyGUID+">", resp.Entity)
	assert.Len(t, resp.Payload.Attributes, 1)

	require.NotNil(t, resp.Error)
	assert.Equal(t, apperrors.CodeMandatoryMissing, resp.Error.Code)
	assert.Equal(t, []apperrors.FieldError{
		{Field: "name", Code: "ApplicationRequired", Message: "mandatory field is not set"},
		{Field: "ownerid", Code: "SystemRequired", Message: "mandatory field is not set"},
	}, resp.Error.FieldErrors)
}

func TestBuildPayload_ValidHasNoError(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodPost, "/api/v1/entities/incident/payload", `{
		"attributes": {"title": "Printer on fire", "customerid": {"id": "c-1", "logical_name": "contact"}}
	}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.NotContains(t, w.Body.String(), `"error"`)
}

func TestBuildPayload_DiagnosticsCarryRequestID(t *testing.T) {
	f := newFixture(t)
	core, logs := observer.New(zapcore.DebugLevel)
	restore := logger.Replace(zap.New(core))
	defer restore()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/entities/account/payload",
		strings.NewReader(`{"attributes": {"name": "Contoso", "telephone1": "555"}}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(middleware.RequestIDHeader, "req-7")
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusUnprocessableEntity, w.Code, w.Body.String())

	diag := logs.FilterField(zap.String("code", apperrors.CodePropertyNotFound)).All()
	require.Len(t, diag, 1)
	assert.Equal(t, "req-7", diag[0].ContextMap()["request_id"])
	assert.Equal(t, "telephone1", diag[0].ContextMap()["property"])
}

func TestGetHealth_PrefetchPool(t *testing.T) {
	pool, err := worker.NewPool("prefetch", 2)
	require.NoError(t, err)
	defer pool.Shutdown(time.Second)

	router := gin.New()
	NewServer(ServerDeps{Source: provider.NewSession(provider.NewMockRetriever()), Pool: pool}).
		RegisterRoutes(router.Group("/api/v1"))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))
	require.Equal(t, http.StatusOK, w.Code)

	health := decode[HealthResponse](t, w)
	assert.Equal(t, 2, health.PrefetchPool["cap"])
	assert.Equal(t, 0, health.PrefetchPool["running"])
}

func TestBuildPayload_Errors(t *testing.T) {
	tests := []struct {
		name     string
		path     string
		body     string
		status   int
		wantCode string
	}{
		{
			name:     "lookup to wrong kind",
			path:     "/api/v1/entities/account/payload",
			body:     `{"attributes": {"primarycontactid": {"id": "x", "logical_name": "account"}}}`,
			status:   http.StatusUnprocessableEntity,
			wantCode: apperrors.CodeLookupTypeMismatch,
		},
		{
			name:     "kind overridden by path",
			path:     "/api/v1/entities/account/payload",
			body:     `{"kind": "Incident"}`,
			status:   http.StatusBadRequest,
			wantCode: apperrors.CodeLogicalNameOverride,
		},
		{
			name:     "unknown kind",
			path:     "/api/v1/entities/account/payload",
			body:     `{"kind": "Lead"}`,
			status:   http.StatusNotFound,
			wantCode: apperrors.CodeKindNotFound,
		},
		{
			name:     "unknown entity",
			path:     "/api/v1/entities/lead/payload",
			body:     `{}`,
			status:   http.StatusNotFound,
			wantCode: apperrors.CodeMetadataNotFound,
		},
		{
			name:     "unsupported attribute value",
			path:     "/api/v1/entities/account/payload",
			body:     `{"attributes": {"name": ["a", "b"]}}`,
			status:   http.StatusBadRequest,
			wantCode: apperrors.CodeInvalidRequestField,
		},
		{
			name:     "malformed body",
			path:     "/api/v1/entities/account/payload",
			body:     `{"attributes": `,
			status:   http.StatusBadRequest,
			wantCode: apperrors.CodeInvalidRequestField,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			w := f.do(t, http.MethodPost, tt.path, tt.body)
			assert.Equal(t, tt.status, w.Code, w.Body.String())
			body := decode[map[string]any](t, w)
			assert.Equal(t, tt.wantCode, body["code"])
		})
	}
}

func TestBuildPayload_KindAndAllFields(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodPost, "/api/v1/entities/incident/payload", `{
		"kind": "incident",
		"all_fields": true,
		"attributes": {
			"title": "Printer on fire",
			"customerid": {"id": "c-1", "logical_name": "Contact"},
			"prioritycode": {"value": 1}
		}
	}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	resp := decode[PayloadResponse](t, w)
	assert.True(t, resp.Valid)
	assert.Len(t, resp.Payload.Attributes, 3)
	customer, ok := resp.Payload.Attribute("customerid")
	require.True(t, ok)
	assert.Equal(t, "contact", customer.Reference.LogicalName)
}

func TestOptionSetsAndKinds(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodGet, "/api/v1/option-sets/PriorityCode", "")
	require.Equal(t, http.StatusOK, w.Code)
	set := decode[OptionSetResponse](t, w)
	assert.Equal(t, "prioritycode", set.Name)
	assert.Equal(t, "incident.prioritycode", set.Attribute)
	assert.Equal(t, []OptionResponse{{Value: 1, Label: "High"}, {Value: 2, Label: "Normal"}}, set.Options)

	w = f.do(t, http.MethodGet, "/api/v1/option-sets/statuscode", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	names := decode[struct{ Items []string }](t, f.do(t, http.MethodGet, "/api/v1/option-sets", ""))
	assert.Equal(t, []string{"prioritycode"}, names.Items)

	kinds := decode[struct{ Items []KindResponse }](t, f.do(t, http.MethodGet, "/api/v1/kinds", ""))
	assert.Equal(t, []KindResponse{
		{Name: "Account", LogicalName: "account"},
		{Name: "Incident", LogicalName: "incident"},
	}, kinds.Items)
}

func TestDecodeValue(t *testing.T) {
	tests := []struct {
		raw     string
		want    any
		wantErr bool
	}{
		{raw: `"text"`, want: "text"},
		{raw: `true`, want: true},
		{raw: `null`, want: nil},
		{raw: `42`, want: int64(42)},
		{raw: `4.5`, want: 4.5},
		{raw: `{"id": "1", "logical_name": "Account"}`, want: entity.Reference{ID: "1", LogicalName: "account"}},
		{raw: `[1]`, wantErr: true},
		{raw: `{"name": "x"}`, wantErr: true},
		{raw: `{"value": 1.5}`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := decodeValue(json.RawMessage(tt.raw))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

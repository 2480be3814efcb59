package api

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ssargent/db2kit/pkg/codec"
	"github.com/ssargent/db2kit/pkg/schema"
	"github.com/ssargent/db2kit/pkg/store"
	"github.com/ssargent/db2kit/pkg/wdc"
	"github.com/ssargent/db2kit/pkg/wdc/wdctest"
)

// testCatalog holds ChrRaces: Human (1), Orc (2) and a copy of Human (3).
func testCatalog(t *testing.T) *store.Catalog {
	t.Helper()
	s := schema.MustNew("ChrRaces", []schema.Field{
		{Name: "ID", Type: schema.Uint32, ID: true},
		{Name: "Name", Type: schema.String},
		{Name: "Level", Type: schema.Uint32},
	})
	data := wdctest.File{
		RecordSize: 12,
		Fields: []codec.FieldStorageInfo{
			wdctest.RawField(0, 32), wdctest.RawField(4, 32), wdctest.RawField(8, 32),
		},
		Sections: []wdctest.Section{{
			RecordCount: 2,
			Records: wdctest.U32s(
				1, wdctest.StringRef(24, 4, 0), 10,
				2, wdctest.StringRef(24, 16, 6), 20,
			),
			Strings: []byte("Human\x00Orc\x00"),
			Copies:  []wdctest.Copy{{NewID: 3, CopiedID: 1}},
		}},
	}.Build()

	table, err := wdc.Decode(data, s, wdc.Options{})
	require.NoError(t, err)

	c := store.NewCatalog()
	c.Add("ChrRaces", "ChrRaces.db2", table)
	return c
}

// setupTestServer creates a router over the test catalog with its own
// metrics registry
func setupTestServer(t *testing.T, apiKey string) (http.Handler, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)
	catalog := testCatalog(t)
	metrics.ObserveCatalog(catalog)

	server := NewServer(catalog, ServerConfig{APIKey: apiKey}, metrics, nil)
	return NewRouter(server, reg), reg
}

func doRequest(t *testing.T, h http.Handler, path string, header map[string]string) (*httptest.ResponseRecorder, APIResponse) {
	t.Helper()
	req := httptest.NewRequest("GET", path, nil)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	var resp APIResponse
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	}
	return w, resp
}

func TestServer_handleHealth(t *testing.T) {
	h, _ := setupTestServer(t, "")

	w, resp := doRequest(t, h, "/api/v1/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, resp.Success)

	data := resp.Data.(map[string]interface{})
	assert.Equal(t, "healthy", data["status"])
	assert.EqualValues(t, 1, data["tables"])
}

func TestServer_handleListTables(t *testing.T) {
	h, _ := setupTestServer(t, "")

	w, resp := doRequest(t, h, "/api/v1/tables", nil)
	require.Equal(t, http.StatusOK, w.Code)

	tables := resp.Data.([]interface{})
	require.Len(t, tables, 1)
	table := tables[0].(map[string]interface{})
	assert.Equal(t, "ChrRaces", table["name"])
	assert.Equal(t, "WDC3", table["signature"])
	assert.EqualValues(t, 3, table["records"])
	assert.EqualValues(t, 1, table["sections"])
}

func TestServer_handleGetTable(t *testing.T) {
	h, _ := setupTestServer(t, "")

	t.Run("existing table", func(t *testing.T) {
		w, resp := doRequest(t, h, "/api/v1/tables/chrraces", nil)
		require.Equal(t, http.StatusOK, w.Code)

		detail := resp.Data.(map[string]interface{})
		assert.Equal(t, false, detail["sparse"])
		fields := detail["fields"].([]interface{})
		require.Len(t, fields, 3)
		assert.Equal(t, "string", fields[1].(map[string]interface{})["type"])
		assert.Equal(t, true, fields[0].(map[string]interface{})["id"])

		sections := detail["section_list"].([]interface{})
		require.Len(t, sections, 1)
		assert.EqualValues(t, 3, sections[0].(map[string]interface{})["records"])
	})

	t.Run("unknown table", func(t *testing.T) {
		w, resp := doRequest(t, h, "/api/v1/tables/Spell", nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.False(t, resp.Success)
		assert.Contains(t, resp.Error, "table not found")
	})
}

func TestServer_handleGetRecord(t *testing.T) {
	h, _ := setupTestServer(t, "")

	tests := []struct {
		name           string
		path           string
		expectedStatus int
		expectedName   string
	}{
		{"base record", "/api/v1/tables/ChrRaces/records/2", http.StatusOK, "Orc"},
		{"copied record", "/api/v1/tables/ChrRaces/records/3", http.StatusOK, "Human"},
		{"missing record", "/api/v1/tables/ChrRaces/records/4", http.StatusNotFound, ""},
		{"missing table", "/api/v1/tables/Spell/records/1", http.StatusNotFound, ""},
		{"invalid id", "/api/v1/tables/ChrRaces/records/abc", http.StatusBadRequest, ""},
		{"id out of range", "/api/v1/tables/ChrRaces/records/4294967296", http.StatusBadRequest, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, resp := doRequest(t, h, tt.path, nil)
			assert.Equal(t, tt.expectedStatus, w.Code)
			if tt.expectedStatus != http.StatusOK {
				assert.False(t, resp.Success)
				return
			}

			rec := resp.Data.(map[string]interface{})
			fields := rec["fields"].(map[string]interface{})
			assert.Equal(t, tt.expectedName, fields["Name"])
			assert.Equal(t, "clear", rec["encryption"])
		})
	}
}

func TestServer_handleListRecords(t *testing.T) {
	h, _ := setupTestServer(t, "")

	recordIDs := func(resp APIResponse) []float64 {
		page := resp.Data.(map[string]interface{})
		var out []float64
		for _, r := range page["records"].([]interface{}) {
			out = append(out, r.(map[string]interface{})["id"].(float64))
		}
		return out
	}

	t.Run("first page", func(t *testing.T) {
		w, resp := doRequest(t, h, "/api/v1/tables/ChrRaces/records?limit=2", nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, []float64{1, 2}, recordIDs(resp))
		assert.EqualValues(t, 2, resp.Data.(map[string]interface{})["next"])
	})

	t.Run("last page", func(t *testing.T) {
		w, resp := doRequest(t, h, "/api/v1/tables/ChrRaces/records?after=2&limit=2", nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, []float64{3}, recordIDs(resp))
		assert.NotContains(t, resp.Data.(map[string]interface{}), "next")
	})

	t.Run("field value", func(t *testing.T) {
		w, resp := doRequest(t, h, "/api/v1/tables/ChrRaces/records?field=name&value=Human", nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, []float64{1, 3}, recordIDs(resp))
	})

	t.Run("field range", func(t *testing.T) {
		w, resp := doRequest(t, h, "/api/v1/tables/ChrRaces/records?field=Level&min=15&max=30", nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, []float64{2}, recordIDs(resp))
	})

	tests := []struct {
		name           string
		path           string
		expectedStatus int
	}{
		{"unknown table", "/api/v1/tables/Spell/records", http.StatusNotFound},
		{"unknown field", "/api/v1/tables/ChrRaces/records?field=Nope&value=1", http.StatusBadRequest},
		{"field without value", "/api/v1/tables/ChrRaces/records?field=Level", http.StatusBadRequest},
		{"bad field value", "/api/v1/tables/ChrRaces/records?field=Level&value=high", http.StatusBadRequest},
		{"bad limit", "/api/v1/tables/ChrRaces/records?limit=0", http.StatusBadRequest},
		{"bad after", "/api/v1/tables/ChrRaces/records?after=-1", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, resp := doRequest(t, h, tt.path, nil)
			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.False(t, resp.Success)
		})
	}
}

func TestServer_handleListRecords_IdentifierZero(t *testing.T) {
	s := schema.MustNew("Zero", []schema.Field{{Name: "ID", Type: schema.Uint32, ID: true}})
	data := wdctest.File{
		RecordSize: 4,
		Fields:     []codec.FieldStorageInfo{wdctest.RawField(0, 32)},
		Sections:   []wdctest.Section{{RecordCount: 3, Records: wdctest.U32s(0, 1, 2)}},
	}.Build()
	table, err := wdc.Decode(data, s, wdc.Options{})
	require.NoError(t, err)

	catalog := store.NewCatalog()
	catalog.Add("Zero", "Zero.db2", table)
	reg := prometheus.NewRegistry()
	h := NewRouter(NewServer(catalog, ServerConfig{}, NewMetrics(reg), nil), reg)

	recordIDs := func(resp APIResponse) []float64 {
		var out []float64
		for _, r := range resp.Data.(map[string]interface{})["records"].([]interface{}) {
			out = append(out, r.(map[string]interface{})["id"].(float64))
		}
		return out
	}

	w, resp := doRequest(t, h, "/api/v1/tables/Zero/records?limit=2", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []float64{0, 1}, recordIDs(resp))
	assert.EqualValues(t, 1, resp.Data.(map[string]interface{})["next"])

	w, resp = doRequest(t, h, "/api/v1/tables/Zero/records?after=1&limit=2", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []float64{2}, recordIDs(resp))

	w, resp = doRequest(t, h, "/api/v1/tables/Zero/records?after=4294967295", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, recordIDs(resp))
}

func TestServer_handleGetRelated(t *testing.T) {
	h, _ := setupTestServer(t, "")

	// ChrRaces has no relation field.
	w, resp := doRequest(t, h, "/api/v1/tables/ChrRaces/related/1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, resp.Data)

	w, _ = doRequest(t, h, "/api/v1/tables/ChrRaces/related/x", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = doRequest(t, h, "/api/v1/tables/Spell/related/1", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestServer_APIKey(t *testing.T) {
	h, _ := setupTestServer(t, "secret")

	w, _ := doRequest(t, h, "/api/v1/tables", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, _ = doRequest(t, h, "/api/v1/tables", map[string]string{"X-API-Key": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, _ = doRequest(t, h, "/api/v1/tables", map[string]string{"X-API-Key": "secret"})
	assert.Equal(t, http.StatusOK, w.Code)

	// Metrics and docs stay open.
	w, _ = doRequest(t, h, "/metrics", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRouter_Metrics(t *testing.T) {
	h, _ := setupTestServer(t, "")

	doRequest(t, h, "/api/v1/tables/ChrRaces/records/1", nil)
	doRequest(t, h, "/api/v1/tables/ChrRaces/records/9", nil)

	w, _ := doRequest(t, h, "/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body, err := io.ReadAll(w.Body)
	require.NoError(t, err)

	out := string(body)
	assert.Contains(t, out, `db2kit_catalog_tables 1`)
	assert.Contains(t, out, `db2kit_table_records{table="ChrRaces"} 3`)
	assert.Contains(t, out, `db2kit_record_lookups_total{status="success",table="ChrRaces"} 1`)
	assert.Contains(t, out, `db2kit_record_lookups_total{status="not_found",table="ChrRaces"} 1`)
	assert.Contains(t, out, `db2kit_http_requests_total`)
}

func TestRouter_Swagger(t *testing.T) {
	h, _ := setupTestServer(t, "secret")

	w, _ := doRequest(t, h, "/swagger/doc.json", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var doc map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &doc))
	assert.Equal(t, "2.0", doc["swagger"])
	paths := doc["paths"].(map[string]interface{})
	assert.Contains(t, paths, "/tables/{name}/records/{id}")
	assert.Contains(t, paths, "/tables/{name}/records")
	assert.Contains(t, paths, "/tables/{name}/related/{id}")

	req := httptest.NewRequest("GET", "/swagger/index.html", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "swagger-ui")

	req = httptest.NewRequest("GET", "/swagger/missing", nil)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	m.RecordLookup("t", statusSuccess)
	m.RecordHealthCheck(true)
	m.RecordAuthRequest(false)
	m.ObserveCatalog(store.NewCatalog())

	called := false
	h := m.InstrumentHandler("GET", "/x", func(w http.ResponseWriter, r *http.Request) { called = true })
	h(httptest.NewRecorder(), httptest.NewRequest("GET", "/x", nil))
	assert.True(t, called)
}

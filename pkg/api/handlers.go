package api

import (
	"fmt"
	"math"
	"net/http"
	"strconv"

	"github.com/cockroachdb/errors"
	"github.com/go-chi/chi/v5"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"github.com/ssargent/db2kit/pkg/store"
	"github.com/ssargent/db2kit/pkg/wdc"
)

// Server holds the API server state
type Server struct {
	catalog *store.Catalog
	config  ServerConfig
	metrics *Metrics
	logger  log.Logger
}

// NewServer creates a new API server
func NewServer(catalog *store.Catalog, config ServerConfig, metrics *Metrics, logger log.Logger) *Server {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	return &Server{
		catalog: catalog,
		config:  config,
		metrics: metrics,
		logger:  logger,
	}
}

func summarize(e *store.Entry) TableSummary {
	return TableSummary{
		Name:            e.Name,
		Source:          e.Source,
		Checksum:        e.Checksum,
		Signature:       e.Table.Header.Signature,
		Records:         e.Table.Stats.Records,
		Sections:        e.Table.Stats.Sections,
		SectionsOmitted: e.Table.Stats.SectionsOmitted,
		RecordsSkipped:  e.Table.Stats.RecordsSkipped,
		LoadedAt:        e.LoadedAt,
	}
}

// handleHealth godoc
//
//	@Summary		Health check
//	@Description	Get the health status of the API
//	@Tags			health
//	@Produce		json
//	@Success		200	{object}	APIResponse
//	@Router			/health [get]
//	@Security		ApiKeyAuth
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.metrics.RecordHealthCheck(true)
	sendSuccess(w, map[string]interface{}{
		"status": "healthy",
		"tables": len(s.catalog.Entries()),
	})
}

// handleListTables godoc
//
//	@Summary		List tables
//	@Description	List every decoded table
//	@Tags			tables
//	@Produce		json
//	@Success		200	{object}	APIResponse{data=[]TableSummary}
//	@Security		ApiKeyAuth
//	@Router			/tables [get]
func (s *Server) handleListTables(w http.ResponseWriter, r *http.Request) {
	entries := s.catalog.Entries()
	out := make([]TableSummary, len(entries))
	for i, e := range entries {
		out[i] = summarize(e)
	}
	sendSuccess(w, out)
}

// handleGetTable godoc
//
//	@Summary		Describe a table
//	@Description	Get the header, schema and sections of a table
//	@Tags			tables
//	@Produce		json
//	@Param			name	path		string	true	"Table name"
//	@Success		200		{object}	APIResponse{data=TableDetail}
//	@Failure		404		{object}	APIResponse
//	@Security		ApiKeyAuth
//	@Router			/tables/{name} [get]
func (s *Server) handleGetTable(w http.ResponseWriter, r *http.Request) {
	e, err := s.catalog.Get(chi.URLParam(r, "name"))
	if err != nil {
		sendError(w, err.Error(), http.StatusNotFound)
		return
	}

	sch := e.Table.Schema()
	detail := TableDetail{
		TableSummary: summarize(e),
		LayoutHash:   e.Table.Header.LayoutHash,
		Sparse:       e.Table.Header.Flags.Sparse(),
		Fields:       make([]FieldInfo, sch.NumFields()),
		SectionList:  make([]SectionInfo, len(e.Table.Sections)),
	}
	for i, f := range sch.Fields() {
		detail.Fields[i] = FieldInfo{
			Name:     f.Name,
			Type:     f.Type.String(),
			Count:    f.Elements(),
			ID:       f.ID,
			Relation: f.Relation,
			Inline:   f.Inline(),
		}
	}
	for i, sh := range e.Table.Sections {
		info := SectionInfo{
			Index:     i,
			Records:   len(e.Table.SectionRecords(i)),
			Encrypted: sh.KeyID != 0,
		}
		if sh.KeyID != 0 {
			info.KeyID = fmt.Sprintf("%016X", sh.KeyID)
		}
		detail.SectionList[i] = info
	}
	sendSuccess(w, detail)
}

// handleGetRecord godoc
//
//	@Summary		Get a record
//	@Description	Get one record of a table by identifier
//	@Tags			tables
//	@Produce		json
//	@Param			name	path		string	true	"Table name"
//	@Param			id		path		int		true	"Record identifier"
//	@Success		200		{object}	APIResponse{data=RecordResponse}
//	@Failure		400		{object}	APIResponse
//	@Failure		404		{object}	APIResponse
//	@Failure		500		{object}	APIResponse
//	@Security		ApiKeyAuth
//	@Router			/tables/{name}/records/{id} [get]
func (s *Server) handleGetRecord(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 32)
	if err != nil {
		s.metrics.RecordLookup(name, statusError)
		sendError(w, "Record id must be an unsigned 32-bit integer", http.StatusBadRequest)
		return
	}

	e, rec, err := s.catalog.Lookup(name, uint32(id))
	if errors.Is(err, store.ErrTableNotFound) || errors.Is(err, store.ErrRecordNotFound) {
		s.metrics.RecordLookup(name, statusNotFound)
		sendError(w, err.Error(), http.StatusNotFound)
		return
	}
	if err != nil {
		s.metrics.RecordLookup(name, statusError)
		sendError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	values, err := e.Table.Values(rec)
	if err != nil {
		level.Error(s.logger).Log("msg", "failed to resolve record", "table", e.Name, "id", id, "err", err)
		s.metrics.RecordLookup(e.Name, statusError)
		sendError(w, "Failed to resolve record", http.StatusInternalServerError)
		return
	}

	s.metrics.RecordLookup(e.Name, statusSuccess)
	sendSuccess(w, recordResponse(rec, values))
}

const (
	defaultPageSize = 100
	maxPageSize     = 1000
)

// handleListRecords godoc
//
//	@Summary		List records
//	@Description	Page through a table by identifier, or find records by field value. With field and value the match is exact; with field, min and max it is inclusive.
//	@Tags			tables
//	@Produce		json
//	@Param			name	path		string	true	"Table name"
//	@Param			field	query		string	false	"Field to search"
//	@Param			value	query		string	false	"Exact field value"
//	@Param			min		query		string	false	"Lowest field value"
//	@Param			max		query		string	false	"Highest field value"
//	@Param			after	query		int		false	"Return identifiers after this one"
//	@Param			limit	query		int		false	"Maximum records returned (default 100, max 1000)"
//	@Success		200		{object}	APIResponse{data=RecordPage}
//	@Failure		400		{object}	APIResponse
//	@Failure		404		{object}	APIResponse
//	@Security		ApiKeyAuth
//	@Router			/tables/{name}/records [get]
func (s *Server) handleListRecords(w http.ResponseWriter, r *http.Request) {
	e, err := s.catalog.Get(chi.URLParam(r, "name"))
	if err != nil {
		sendError(w, err.Error(), http.StatusNotFound)
		return
	}

	q := r.URL.Query()
	limit := defaultPageSize
	if raw := q.Get("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			sendError(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		if limit > maxPageSize {
			limit = maxPageSize
		}
	}

	var records []*wdc.Record
	paged := false
	if field := q.Get("field"); field != "" {
		records, err = s.findRecords(e, field, q.Get("value"), q.Get("min"), q.Get("max"))
		if err != nil {
			sendError(w, err.Error(), http.StatusBadRequest)
			return
		}
	} else {
		// The first page starts at identifier 0; later pages start after
		// the cursor.
		var start uint64
		if raw := q.Get("after"); raw != "" {
			after, err := strconv.ParseUint(raw, 10, 32)
			if err != nil {
				sendError(w, "after must be an unsigned 32-bit integer", http.StatusBadRequest)
				return
			}
			start = after + 1
		}
		paged = true
		if start <= math.MaxUint32 {
			// One extra record tells whether another page follows.
			records = e.Index.Page(uint32(start), limit+1)
		}
	}

	page := RecordPage{Records: []RecordResponse{}}
	if len(records) > limit {
		records = records[:limit]
		if paged {
			next := records[limit-1].ID()
			page.Next = &next
		}
	}
	for _, rec := range records {
		values, err := e.Table.Values(rec)
		if err != nil {
			level.Error(s.logger).Log("msg", "failed to resolve record", "table", e.Name, "id", rec.ID(), "err", err)
			sendError(w, "Failed to resolve record", http.StatusInternalServerError)
			return
		}
		page.Records = append(page.Records, recordResponse(rec, values))
	}
	sendSuccess(w, page)
}

// findRecords searches a field index of e, exactly when value is set and
// by range otherwise
func (s *Server) findRecords(e *store.Entry, field, value, lo, hi string) ([]*wdc.Record, error) {
	idx, err := e.Indexes.GetOrCreateIndex(field)
	if err != nil {
		return nil, err
	}
	switch {
	case value != "":
		return idx.Search(value)
	case lo != "" && hi != "":
		return idx.SearchRange(lo, hi)
	default:
		return nil, errors.New("field requires value, or min and max")
	}
}

// handleGetRelated godoc
//
//	@Summary		Get related records
//	@Description	Get the records whose relation field references a foreign identifier
//	@Tags			tables
//	@Produce		json
//	@Param			name	path		string	true	"Table name"
//	@Param			id		path		int		true	"Foreign identifier"
//	@Success		200		{object}	APIResponse{data=[]RecordResponse}
//	@Failure		400		{object}	APIResponse
//	@Failure		404		{object}	APIResponse
//	@Security		ApiKeyAuth
//	@Router			/tables/{name}/related/{id} [get]
func (s *Server) handleGetRelated(w http.ResponseWriter, r *http.Request) {
	e, err := s.catalog.Get(chi.URLParam(r, "name"))
	if err != nil {
		sendError(w, err.Error(), http.StatusNotFound)
		return
	}
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 32)
	if err != nil {
		sendError(w, "Foreign id must be an unsigned 32-bit integer", http.StatusBadRequest)
		return
	}

	records, err := e.Indexes.Related(uint32(id))
	if err != nil {
		sendError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	out := make([]RecordResponse, 0, len(records))
	for _, rec := range records {
		values, err := e.Table.Values(rec)
		if err != nil {
			level.Error(s.logger).Log("msg", "failed to resolve record", "table", e.Name, "id", rec.ID(), "err", err)
			sendError(w, "Failed to resolve record", http.StatusInternalServerError)
			return
		}
		out = append(out, recordResponse(rec, values))
	}
	sendSuccess(w, out)
}

func recordResponse(rec *wdc.Record, values map[string]interface{}) RecordResponse {
	return RecordResponse{
		ID:         rec.ID(),
		Section:    rec.Section(),
		Position:   rec.Position(),
		Encryption: rec.Encryption().String(),
		Fields:     values,
	}
}

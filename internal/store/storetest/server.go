// Package storetest runs an in-memory imitation of the remote REST store
// for tests. It understands the subset of the protocol the store client
// emits: eq/neq filters, select, order, limit, offset and representation
// echo on writes.
package storetest

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// Row is one stored record
type Row map[string]any

// Policy decides whether a request may see or touch row. It emulates
// server side row level security keyed on the bearer credential.
type Policy func(bearer, table string, row Row) bool

// Request is a recorded inbound call
type Request struct {
	Method        string
	Table         string
	Query         string
	Authorization string
	Prefer        string
}

type failure struct {
	status int
	body   string
}

// Server is the fake store
type Server struct {
	*httptest.Server

	APIKey string

	mu       sync.Mutex
	tables   map[string][]Row
	unique   map[string][][]string
	policy   Policy
	fail     *failure
	requests []Request
}

// NewServer starts a fake store accepting apiKey
func NewServer(apiKey string) *Server {
	s := &Server{
		APIKey: apiKey,
		tables: make(map[string][]Row),
		unique: make(map[string][][]string),
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))
	return s
}

// Unique declares a unique constraint over columns of table
func (s *Server) Unique(table string, columns ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unique[table] = append(s.unique[table], columns)
}

// SetPolicy installs a row level policy. Nil removes it.
func (s *Server) SetPolicy(p Policy) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.policy = p
}

// FailNext makes the next request answer status with body
func (s *Server) FailNext(status int, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fail = &failure{status: status, body: body}
}

// Seed inserts rows directly
func (s *Server) Seed(table string, rows ...Row) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range rows {
		s.tables[table] = append(s.tables[table], clone(r))
	}
}

// Rows returns a copy of all rows in table
func (s *Server) Rows(table string) []Row {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Row, 0, len(s.tables[table]))
	for _, r := range s.tables[table] {
		out = append(out, clone(r))
	}
	return out
}

// Find returns the first row in table whose column equals value
func (s *Server) Find(table, column, value string) (Row, bool) {
	for _, r := range s.Rows(table) {
		if render(r[column]) == value {
			return r, true
		}
	}
	return nil, false
}

// Requests returns the calls received so far
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request(nil), s.requests...)
}

// ResetRequests clears the request log
func (s *Server) ResetRequests() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = nil
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	table := strings.Trim(strings.TrimPrefix(r.URL.Path, "/rest/v1"), "/")
	s.requests = append(s.requests, Request{
		Method:        r.Method,
		Table:         table,
		Query:         r.URL.RawQuery,
		Authorization: r.Header.Get("Authorization"),
		Prefer:        r.Header.Get("Prefer"),
	})

	if r.Header.Get("apikey") != s.APIKey {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Invalid API key"})
		return
	}
	if f := s.fail; f != nil {
		s.fail = nil
		w.WriteHeader(f.status)
		io.WriteString(w, f.body)
		return
	}
	if table == "" {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		return
	}

	bearer := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	params := r.URL.Query()
	match := func(row Row) bool {
		if s.policy != nil && !s.policy(bearer, table, row) {
			return false
		}
		return matches(row, params)
	}

	switch r.Method {
	case http.MethodGet:
		var rows []Row
		for _, row := range s.tables[table] {
			if match(row) {
				rows = append(rows, row)
			}
		}
		rows = orderRows(rows, params.Get("order"))
		rows = page(rows, params.Get("offset"), params.Get("limit"))
		writeJSON(w, http.StatusOK, project(rows, params.Get("select")))

	case http.MethodPost:
		incoming, err := decodeRows(r.Body)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"message": err.Error()})
			return
		}
		for _, row := range incoming {
			if _, ok := row["id"]; !ok {
				row["id"] = uuid.NewString()
			}
			if s.policy != nil && !s.policy(bearer, table, row) {
				writeJSON(w, http.StatusForbidden, map[string]string{"code": "42501", "message": "new row violates row-level security policy"})
				return
			}
			if col, dup := s.violatesUnique(table, row, nil); dup {
				writeJSON(w, http.StatusConflict, map[string]string{
					"code":    "23505",
					"message": fmt.Sprintf("duplicate key value violates unique constraint on %s", col),
				})
				return
			}
		}
		for _, row := range incoming {
			s.tables[table] = append(s.tables[table], row)
		}
		s.writeWrite(w, r, http.StatusCreated, incoming, params.Get("select"))

	case http.MethodPatch:
		patch, err := decodeRows(r.Body)
		if err != nil || len(patch) != 1 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"message": "patch body must be an object"})
			return
		}
		var updated []Row
		for i, row := range s.tables[table] {
			if !match(row) {
				continue
			}
			next := clone(row)
			for k, v := range patch[0] {
				next[k] = v
			}
			if col, dup := s.violatesUnique(table, next, row); dup {
				writeJSON(w, http.StatusConflict, map[string]string{"code": "23505", "message": "duplicate key on " + col})
				return
			}
			s.tables[table][i] = next
			updated = append(updated, next)
		}
		s.writeWrite(w, r, http.StatusOK, updated, params.Get("select"))

	case http.MethodDelete:
		var kept, removed []Row
		for _, row := range s.tables[table] {
			if match(row) {
				removed = append(removed, row)
			} else {
				kept = append(kept, row)
			}
		}
		s.tables[table] = kept
		s.writeWrite(w, r, http.StatusOK, removed, params.Get("select"))

	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (s *Server) writeWrite(w http.ResponseWriter, r *http.Request, status int, rows []Row, sel string) {
	if !strings.Contains(r.Header.Get("Prefer"), "return=representation") {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, status, project(rows, sel))
}

func (s *Server) violatesUnique(table string, row, self Row) (string, bool) {
	for _, cols := range s.unique[table] {
		for _, other := range s.tables[table] {
			if self != nil && render(other["id"]) == render(self["id"]) {
				continue
			}
			same := true
			for _, c := range cols {
				if render(other[c]) != render(row[c]) {
					same = false
					break
				}
			}
			if same {
				return strings.Join(cols, ","), true
			}
		}
	}
	return "", false
}

var reserved = map[string]bool{"select": true, "order": true, "limit": true, "offset": true}

func matches(row Row, params map[string][]string) bool {
	for col, values := range params {
		if reserved[col] {
			continue
		}
		for _, v := range values {
			op, operand, ok := strings.Cut(v, ".")
			if !ok {
				return false
			}
			got := render(row[col])
			switch op {
			case "eq":
				if got != operand {
					return false
				}
			case "neq":
				if got == operand {
					return false
				}
			default:
				return false
			}
		}
	}
	return true
}

func orderRows(rows []Row, order string) []Row {
	if order == "" {
		return rows
	}
	col, dir, _ := strings.Cut(strings.Split(order, ",")[0], ".")
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := render(rows[i][col]), render(rows[j][col])
		if dir == "desc" {
			return a > b
		}
		return a < b
	})
	return rows
}

func page(rows []Row, offset, limit string) []Row {
	if o, err := strconv.Atoi(offset); err == nil && o > 0 {
		if o >= len(rows) {
			return nil
		}
		rows = rows[o:]
	}
	if l, err := strconv.Atoi(limit); err == nil && l >= 0 && l < len(rows) {
		rows = rows[:l]
	}
	return rows
}

func project(rows []Row, sel string) []Row {
	out := make([]Row, 0, len(rows))
	if sel == "" || sel == "*" {
		for _, r := range rows {
			out = append(out, clone(r))
		}
		return out
	}
	cols := strings.Split(sel, ",")
	for _, r := range rows {
		p := Row{}
		for _, c := range cols {
			c = strings.TrimSpace(c)
			if v, ok := r[c]; ok {
				p[c] = v
			}
		}
		out = append(out, p)
	}
	return out
}

func decodeRows(body io.Reader) ([]Row, error) {
	raw, err := io.ReadAll(body)
	if err != nil {
		return nil, err
	}
	raw = []byte(strings.TrimSpace(string(raw)))
	if len(raw) > 0 && raw[0] == '[' {
		var rows []Row
		err := json.Unmarshal(raw, &rows)
		return rows, err
	}
	var row Row
	if err := json.Unmarshal(raw, &row); err != nil {
		return nil, err
	}
	return []Row{row}, nil
}

func render(v any) string {
	switch t := v.(type) {
	case nil:
		return "null"
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return fmt.Sprint(t)
	}
}

func clone(r Row) Row {
	c := make(Row, len(r))
	for k, v := range r {
		c[k] = v
	}
	return c
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

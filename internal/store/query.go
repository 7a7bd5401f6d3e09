package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/otcheredev/roadservice-api/internal/metrics"
)

// Operation is the pending action of a query
type Operation int

const (
	OpSelect Operation = iota
	OpInsert
	OpUpdate
	OpDelete
)

func (o Operation) String() string {
	switch o {
	case OpSelect:
		return "select"
	case OpInsert:
		return "insert"
	case OpUpdate:
		return "update"
	case OpDelete:
		return "delete"
	}
	return "unknown"
}

func (o Operation) method() string {
	switch o {
	case OpInsert:
		return http.MethodPost
	case OpUpdate:
		return http.MethodPatch
	case OpDelete:
		return http.MethodDelete
	}
	return http.MethodGet
}

type filter struct {
	column string
	op     string
	value  string
}

// Query accumulates one store operation. It is single use: build it,
// call Execute once, discard it.
type Query struct {
	client  *Client
	table   string
	columns string
	filters []filter
	order   []string
	limit   int
	offset  int
	op      Operation
	opSet   bool
	payload []byte
	token   string
	err     error
	done    bool
}

// Select sets the projection. Without it all columns are returned.
func (q *Query) Select(columns string) *Query {
	q.columns = columns
	return q
}

// Eq adds an equality predicate column = value
func (q *Query) Eq(column, value string) *Query {
	q.filters = append(q.filters, filter{column: column, op: "eq", value: value})
	return q
}

// Neq adds an inequality predicate
func (q *Query) Neq(column, value string) *Query {
	q.filters = append(q.filters, filter{column: column, op: "neq", value: value})
	return q
}

// Order sorts by column
func (q *Query) Order(column string, desc bool) *Query {
	dir := "asc"
	if desc {
		dir = "desc"
	}
	q.order = append(q.order, column+"."+dir)
	return q
}

// Limit bounds the number of rows returned
func (q *Query) Limit(n int) *Query {
	if n > 0 {
		q.limit = n
	}
	return q
}

// Offset skips the first n rows
func (q *Query) Offset(n int) *Query {
	if n > 0 {
		q.offset = n
	}
	return q
}

// Range selects rows from through to inclusive
func (q *Query) Range(from, to int) *Query {
	if from < 0 || to < from {
		q.fail(fmt.Errorf("%w: bad range %d-%d", ErrInvalidQuery, from, to))
		return q
	}
	q.offset = from
	q.limit = to - from + 1
	return q
}

// WithToken propagates the caller's credential so the store's row level
// policies apply. An empty token keeps the service credential.
func (q *Query) WithToken(token string) *Query {
	q.token = token
	return q
}

// Insert turns the query into an insert of payload
func (q *Query) Insert(payload any) *Query {
	return q.write(OpInsert, payload)
}

// Update turns the query into an update of the rows matching the filters
func (q *Query) Update(payload any) *Query {
	return q.write(OpUpdate, payload)
}

// Delete turns the query into a delete of the rows matching the filters
func (q *Query) Delete() *Query {
	return q.setOp(OpDelete)
}

// Operation returns the pending operation kind
func (q *Query) Operation() Operation {
	return q.op
}

func (q *Query) write(op Operation, payload any) *Query {
	q.setOp(op)
	body, err := json.Marshal(payload)
	if err != nil {
		q.fail(fmt.Errorf("%w: encode payload: %v", ErrInvalidQuery, err))
		return q
	}
	q.payload = body
	return q
}

func (q *Query) setOp(op Operation) *Query {
	if q.opSet && q.op != op {
		q.fail(fmt.Errorf("%w: %s already pending, cannot %s", ErrInvalidQuery, q.op, op))
		return q
	}
	q.op = op
	q.opSet = true
	return q
}

func (q *Query) fail(err error) {
	if q.err == nil {
		q.err = err
	}
}

// URL renders the request URL without performing it
func (q *Query) URL() string {
	params := url.Values{}
	if q.columns != "" {
		params.Set("select", q.columns)
	} else if q.op == OpSelect {
		params.Set("select", "*")
	}
	for _, f := range q.filters {
		params.Add(f.column, f.op+"."+f.value)
	}
	if len(q.order) > 0 && q.op == OpSelect {
		params.Set("order", strings.Join(q.order, ","))
	}
	if q.limit > 0 {
		params.Set("limit", strconv.Itoa(q.limit))
	}
	if q.offset > 0 {
		params.Set("offset", strconv.Itoa(q.offset))
	}

	u := q.client.baseURL + "/" + url.PathEscape(q.table)
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	return u
}

// Execute performs the single HTTP call for this query. It never panics;
// any failure comes back as an error and a nil Result.
func (q *Query) Execute(ctx context.Context) (*Result, error) {
	if q.done {
		return nil, &Error{Message: ErrQueryConsumed.Error(), Err: ErrQueryConsumed}
	}
	q.done = true

	if q.err != nil {
		return nil, &Error{Message: q.err.Error(), Err: q.err}
	}
	if q.op == OpUpdate || q.op == OpDelete {
		if len(q.filters) == 0 {
			err := fmt.Errorf("%w: %s without filters", ErrInvalidQuery, q.op)
			return nil, &Error{Message: err.Error(), Err: err}
		}
	}

	start := time.Now()
	res, err := q.do(ctx)
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	metrics.ObserveStore(q.table, q.op.String(), outcome, time.Since(start))
	return res, err
}

func (q *Query) do(ctx context.Context) (*Result, error) {
	var body io.Reader
	if q.payload != nil {
		body = bytes.NewReader(q.payload)
	}

	// Create request
	req, err := http.NewRequestWithContext(ctx, q.op.method(), q.URL(), body)
	if err != nil {
		return nil, &Error{Message: fmt.Sprintf("request failed: %v", err), Err: err}
	}

	q.client.addAuth(req, q.token)
	req.Header.Set("Accept", "application/json")
	if q.payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if q.op != OpSelect {
		req.Header.Set("Prefer", "return=representation")
	}

	// Execute request
	resp, err := q.client.httpClient.Do(req)
	if err != nil {
		return nil, &Error{Message: fmt.Sprintf("request failed: %v", err), Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &Error{Message: fmt.Sprintf("request failed: read body: %v", err), Err: err}
	}

	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated, http.StatusNoContent:
	default:
		return nil, &Error{Status: resp.StatusCode, Message: string(data)}
	}

	if len(bytes.TrimSpace(data)) == 0 {
		data = []byte("[]")
	}
	return &Result{Status: resp.StatusCode, Data: data}, nil
}

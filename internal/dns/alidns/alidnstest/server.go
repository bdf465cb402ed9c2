// Package alidnstest provides an in-memory Alidns RPC API for tests.
package alidnstest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/yuriy-kovalchuk/yk-cfst-ddns/internal/dns/alidns"
)

const (
	AccessKeyID     = "test-key-id"
	AccessKeySecret = "test-key-secret"
)

// Record is a record held by the fake API.
type Record struct {
	ID         string
	DomainName string
	RR         string
	Type       string
	Value      string
	Line       string
	TTL        int
	Priority   string
}

type failure struct {
	status int
	body   string
}

// Server is a minimal Alidns API. It verifies every request signature,
// records the actions it receives and keeps records in insertion order.
type Server struct {
	*httptest.Server

	mu       sync.Mutex
	records  []Record
	nextID   int
	calls    []string
	forms    []map[string]string
	failures map[string]failure
	raw      map[string]string
}

// NewServer starts a fake Alidns API that is closed when the test ends.
func NewServer(t testing.TB) *Server {
	t.Helper()
	s := &Server{
		nextID:   1000,
		failures: map[string]failure{},
		raw:      map[string]string{},
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.serve))
	t.Cleanup(s.Close)
	return s
}

// Settings returns provider settings pointing at the fake server.
func (s *Server) Settings() map[string]string {
	return map[string]string{
		"endpoint":          s.URL + "/",
		"access_key_id":     AccessKeyID,
		"access_key_secret": AccessKeySecret,
	}
}

// AddRecord seeds a record and returns its id.
func (s *Server) AddRecord(r Record) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r.ID == "" {
		s.nextID++
		r.ID = strconv.Itoa(s.nextID)
	}
	if r.Line == "" {
		r.Line = "default"
	}
	s.records = append(s.records, r)
	return r.ID
}

// Records returns a copy of the stored records.
func (s *Server) Records() []Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Record(nil), s.records...)
}

// Calls returns the actions received so far, in order.
func (s *Server) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

// CallCount returns how many times action was received.
func (s *Server) CallCount(action string) int {
	n := 0
	for _, c := range s.Calls() {
		if c == action {
			n++
		}
	}
	return n
}

// LastForm returns the form fields of the most recent request for action.
func (s *Server) LastForm(action string) map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.forms) - 1; i >= 0; i-- {
		if s.forms[i]["Action"] == action {
			return s.forms[i]
		}
	}
	return nil
}

// FailAction makes every request for action answer with status and body.
func (s *Server) FailAction(action string, status int, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[action] = failure{status: status, body: body}
}

// ClearFailure removes a failure installed by FailAction.
func (s *Server) ClearFailure(action string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.failures, action)
}

// RespondRaw makes every request for action answer 200 with body verbatim.
func (s *Server) RespondRaw(action, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.raw[action] = body
}

func (s *Server) serve(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	form := make(map[string]string, len(r.PostForm))
	for k := range r.PostForm {
		form[k] = r.PostForm.Get(k)
	}
	action := form["Action"]

	s.mu.Lock()
	s.calls = append(s.calls, action)
	s.forms = append(s.forms, form)
	f, failing := s.failures[action]
	raw, hasRaw := s.raw[action]
	s.mu.Unlock()

	if form["AccessKeyId"] != AccessKeyID || !alidns.VerifySignature(AccessKeySecret, http.MethodPost, form) {
		writeError(w, http.StatusBadRequest, "SignatureDoesNotMatch", "Specified signature is not matched with our calculation.")
		return
	}
	for _, k := range []string{"Format", "Version", "Timestamp", "SignatureMethod", "SignatureNonce", "SignatureVersion"} {
		if form[k] == "" {
			writeError(w, http.StatusBadRequest, "MissingParameter", k+" is mandatory for this action.")
			return
		}
	}
	if failing {
		w.WriteHeader(f.status)
		fmt.Fprint(w, f.body)
		return
	}
	if hasRaw {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, raw)
		return
	}

	switch action {
	case "GetMainDomainName":
		s.handleMainDomain(w, form)
	case "DescribeDomainRecords":
		s.handleDescribe(w, form)
	case "AddDomainRecord":
		s.handleAdd(w, form)
	case "UpdateDomainRecord":
		s.handleUpdate(w, form)
	default:
		writeError(w, http.StatusBadRequest, "InvalidAction.NotFound", "Specified api is not found.")
	}
}

// handleMainDomain treats the last two labels as the registrable domain.
func (s *Server) handleMainDomain(w http.ResponseWriter, form map[string]string) {
	input := form["InputString"]
	labels := strings.Split(input, ".")
	if len(labels) < 2 {
		writeError(w, http.StatusBadRequest, "InvalidDomainName.Format", "The domain name format is incorrect.")
		return
	}
	root := strings.Join(labels[len(labels)-2:], ".")
	rr := "@"
	if len(labels) > 2 {
		rr = strings.Join(labels[:len(labels)-2], ".")
	}
	writeJSON(w, map[string]any{
		"RequestId":   "req-main",
		"DomainName":  root,
		"RR":          rr,
		"DomainLevel": len(labels) - 1,
	})
}

// handleDescribe filters by domain and RR keyword substring only, like the
// real API's fuzzy keyword search.
func (s *Server) handleDescribe(w http.ResponseWriter, form map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pageSize, _ := strconv.Atoi(form["PageSize"])
	if pageSize <= 0 {
		pageSize = 20
	}
	rows := []map[string]any{}
	for _, rec := range s.records {
		if rec.DomainName != form["DomainName"] {
			continue
		}
		if kw := form["RRKeyWord"]; kw != "" && !strings.Contains(rec.RR, kw) {
			continue
		}
		if len(rows) == pageSize {
			break
		}
		rows = append(rows, map[string]any{
			"RecordId":   rec.ID,
			"DomainName": rec.DomainName,
			"RR":         rec.RR,
			"Type":       rec.Type,
			"Value":      rec.Value,
			"Line":       rec.Line,
			"TTL":        rec.TTL,
			"Status":     "ENABLE",
			"Locked":     false,
		})
	}
	writeJSON(w, map[string]any{
		"RequestId":     "req-describe",
		"TotalCount":    len(rows),
		"PageNumber":    1,
		"PageSize":      pageSize,
		"DomainRecords": map[string]any{"Record": rows},
	})
}

func (s *Server) handleAdd(w http.ResponseWriter, form map[string]string) {
	ttl, _ := strconv.Atoi(form["TTL"])
	if ttl == 0 {
		ttl = 600
	}
	line := form["Line"]
	if line == "" {
		line = "default"
	}

	s.mu.Lock()
	for _, rec := range s.records {
		if rec.DomainName == form["DomainName"] && rec.RR == form["RR"] && rec.Line == line &&
			rec.Type == form["Type"] && rec.Value == form["Value"] {
			s.mu.Unlock()
			writeError(w, http.StatusBadRequest, "DomainRecordDuplicate", "The DNS record already exists.")
			return
		}
	}
	s.nextID++
	id := strconv.Itoa(s.nextID)
	s.records = append(s.records, Record{
		ID:         id,
		DomainName: form["DomainName"],
		RR:         form["RR"],
		Type:       form["Type"],
		Value:      form["Value"],
		Line:       line,
		TTL:        ttl,
		Priority:   form["Priority"],
	})
	s.mu.Unlock()

	writeJSON(w, map[string]any{"RequestId": "req-add", "RecordId": id})
}

func (s *Server) handleUpdate(w http.ResponseWriter, form map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, rec := range s.records {
		if rec.ID != form["RecordId"] {
			continue
		}
		if rec.RR == form["RR"] && rec.Type == form["Type"] && rec.Value == form["Value"] {
			writeError(w, http.StatusBadRequest, "DomainRecordDuplicate", "The DNS record already exists.")
			return
		}
		rec.RR = form["RR"]
		rec.Type = form["Type"]
		rec.Value = form["Value"]
		if ttl, err := strconv.Atoi(form["TTL"]); err == nil {
			rec.TTL = ttl
		}
		if p := form["Priority"]; p != "" {
			rec.Priority = p
		}
		s.records[i] = rec
		writeJSON(w, map[string]any{"RequestId": "req-update", "RecordId": rec.ID})
		return
	}
	writeError(w, http.StatusBadRequest, "DomainRecordNotBelongToUser", "The DNS record does not exist.")
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{
		"RequestId": "req-error",
		"Code":      code,
		"Message":   message,
	})
}

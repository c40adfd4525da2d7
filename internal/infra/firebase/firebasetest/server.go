// Package firebasetest runs an in-memory stand-in for the Realtime Database
// REST API. It understands the subset the firebase adapter uses: GET (with
// shallow and orderBy/equalTo), PUT, PATCH (including multi-path updates)
// and DELETE on *.json paths, plus ETag reads and if-match conditional
// writes.
package firebasetest

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
)

// Server is a fake database backed by a JSON tree.
type Server struct {
	*httptest.Server

	mu       sync.Mutex
	root     map[string]any
	token    string
	failures []int
	requests int
}

// NewServer starts a fake database. When token is non-empty every request
// must carry it as the auth query parameter.
func NewServer(token string) *Server {
	s := &Server{root: map[string]any{}, token: token}
	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))
	return s
}

// FailNext makes the next len(statuses) requests answer with those statuses.
func (s *Server) FailNext(statuses ...int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = append(s.failures, statuses...)
}

// Requests returns how many requests reached the server.
func (s *Server) Requests() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests
}

// Seed writes raw JSON at path ("clients/c1"), replacing what was there.
func (s *Server) Seed(path, rawJSON string) {
	var v any
	if err := json.Unmarshal([]byte(rawJSON), &v); err != nil {
		panic(err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.set(splitPath(path), v)
}

// Value returns the JSON value stored at path, or nil.
func (s *Server) Value(path string) any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.get(splitPath(path))
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests++

	if len(s.failures) > 0 {
		status := s.failures[0]
		s.failures = s.failures[1:]
		writeJSON(w, status, map[string]string{"error": http.StatusText(status)})
		return
	}
	if s.token != "" && r.URL.Query().Get("auth") != s.token {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Permission denied"})
		return
	}
	if !strings.HasSuffix(r.URL.Path, ".json") {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "path must end in .json"})
		return
	}
	segments := splitPath(strings.TrimSuffix(r.URL.Path, ".json"))
	silent := r.URL.Query().Get("print") == "silent"

	if want := r.Header.Get("If-Match"); want != "" && r.Method != http.MethodGet {
		current := s.get(segments)
		if tag := etagOf(current); tag != want {
			w.Header().Set("ETag", tag)
			writeJSON(w, http.StatusPreconditionFailed, current)
			return
		}
	}

	switch r.Method {
	case http.MethodGet:
		s.serveGet(w, r, segments)
	case http.MethodPut:
		v, ok := decodeBody(w, r)
		if !ok {
			return
		}
		s.set(segments, v)
		s.answerWrite(w, silent, v)
	case http.MethodPatch:
		v, ok := decodeBody(w, r)
		if !ok {
			return
		}
		updates, isObject := v.(map[string]any)
		if !isObject {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "PATCH body must be an object"})
			return
		}
		for key, val := range updates {
			s.set(append(append([]string(nil), segments...), splitPath(key)...), val)
		}
		s.answerWrite(w, silent, v)
	case http.MethodDelete:
		s.set(segments, nil)
		s.answerWrite(w, silent, nil)
	default:
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
	}
}

func (s *Server) serveGet(w http.ResponseWriter, r *http.Request, segments []string) {
	q := r.URL.Query()
	v := s.get(segments)

	if q.Get("shallow") == "true" {
		if obj, ok := v.(map[string]any); ok {
			keys := make(map[string]any, len(obj))
			for k := range obj {
				keys[k] = true
			}
			v = keys
		}
	}

	if orderBy := q.Get("orderBy"); orderBy != "" {
		var child string
		if err := json.Unmarshal([]byte(orderBy), &child); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "orderBy must be a JSON string"})
			return
		}
		var want any
		if raw := q.Get("equalTo"); raw != "" {
			if err := json.Unmarshal([]byte(raw), &want); err != nil {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": "equalTo must be JSON"})
				return
			}
		}
		filtered := map[string]any{}
		if obj, ok := v.(map[string]any); ok {
			for k, item := range obj {
				rec, ok := item.(map[string]any)
				if !ok {
					continue
				}
				if want == nil || rec[child] == want {
					filtered[k] = item
				}
			}
		}
		v = filtered
	}

	if r.Header.Get("X-Firebase-ETag") == "true" {
		w.Header().Set("ETag", etagOf(v))
	}
	writeJSON(w, http.StatusOK, v)
}

// etagOf hashes the canonical JSON of a node. An absent node has the fixed
// tag the real database uses for it.
func etagOf(v any) string {
	if v == nil {
		return "null_etag"
	}
	raw, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}

func (s *Server) answerWrite(w http.ResponseWriter, silent bool, v any) {
	if silent {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (s *Server) get(segments []string) any {
	var cur any = s.root
	for _, seg := range segments {
		obj, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		cur, ok = obj[seg]
		if !ok {
			return nil
		}
	}
	return cur
}

// set writes v at segments; nil deletes and prunes emptied parents.
func (s *Server) set(segments []string, v any) {
	if len(segments) == 0 {
		if obj, ok := v.(map[string]any); ok {
			s.root = obj
		} else {
			s.root = map[string]any{}
		}
		return
	}
	if v == nil {
		s.remove(s.root, segments)
		return
	}
	cur := s.root
	for _, seg := range segments[:len(segments)-1] {
		next, ok := cur[seg].(map[string]any)
		if !ok {
			next = map[string]any{}
			cur[seg] = next
		}
		cur = next
	}
	cur[segments[len(segments)-1]] = v
}

func (s *Server) remove(node map[string]any, segments []string) {
	if len(segments) == 1 {
		delete(node, segments[0])
		return
	}
	child, ok := node[segments[0]].(map[string]any)
	if !ok {
		return
	}
	s.remove(child, segments[1:])
	if len(child) == 0 {
		delete(node, segments[0])
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request) (any, bool) {
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return nil, false
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid data; couldn't parse JSON object"})
		return nil, false
	}
	return v, true
}

func splitPath(p string) []string {
	var out []string
	for _, seg := range strings.Split(strings.Trim(p, "/"), "/") {
		if seg != "" {
			out = append(out, seg)
		}
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

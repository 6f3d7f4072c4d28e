// Package registrytest provides an in-memory certificate registry served over
// HTTP for tests. It mirrors the registry API: per-student append-only
// certificate sequences, one-way revocation, and string-only error bodies
// unless structured codes are enabled.
package registrytest

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
)

// Institution is the issuer address the fake registry stamps on certificates.
const Institution = "0x5B38Da6a701c568545dCfcB03FcB875f56beddC4"

// Registry error messages, matching the wording of the production registry.
const (
	MsgNotRegistered     = "Student is not a registered student"
	MsgAlreadyRegistered = "Student already registered"
	MsgAlreadyRevoked    = "Certificate already revoked"
	MsgInvalidIndex      = "Invalid certificate index"
	MsgStudentNotFound   = "Student not found"
)

// Certificate is the registry's wire representation.
type Certificate struct {
	IssuedTo  string `json:"issuedTo"`
	IssuedBy  string `json:"issuedBy"`
	IPFSHash  string `json:"ipfsHash"`
	IssuedAt  int64  `json:"issuedAt"`
	IsRevoked bool   `json:"isRevoked"`
}

// Failure is an injected response for the next call to an endpoint.
type Failure struct {
	Status int
	Body   string
}

// Registry is the fake registry state. The zero value is not usable; call New.
type Registry struct {
	mu         sync.Mutex
	students   map[string]bool
	certs      map[string][]Certificate
	files      map[string][]byte
	calls      map[string]int
	failures   map[string][]Failure
	structured bool
	hashFn     func([]byte) string
	now        func() time.Time
	notFound   bool

	Server *httptest.Server
}

type Option func(*Registry)

// WithStructuredErrors adds a machine-readable "code" to error bodies.
func WithStructuredErrors() Option {
	return func(r *Registry) {
		r.structured = true
	}
}

// WithHashFunc overrides how uploaded documents are hashed.
func WithHashFunc(fn func([]byte) string) Option {
	return func(r *Registry) {
		r.hashFn = fn
	}
}

// WithClock overrides the issuance clock.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) {
		r.now = now
	}
}

// WithEmptyListForUnknown makes listing an unknown student return [] instead of 404.
func WithEmptyListForUnknown() Option {
	return func(r *Registry) {
		r.notFound = false
	}
}

// New starts a fake registry. The server is closed via t.Cleanup by callers
// or explicitly with Close.
func New(opts ...Option) *Registry {
	r := &Registry{
		students: make(map[string]bool),
		certs:    make(map[string][]Certificate),
		files:    make(map[string][]byte),
		calls:    make(map[string]int),
		failures: make(map[string][]Failure),
		hashFn:   defaultHash,
		now:      time.Now,
		notFound: true,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.Server = httptest.NewServer(r.routes())
	return r
}

// URL is the base URL of the fake registry.
func (r *Registry) URL() string { return r.Server.URL }

// Close stops the HTTP server.
func (r *Registry) Close() { r.Server.Close() }

func defaultHash(b []byte) string {
	sum := sha256.Sum256(b)
	return "Qm" + hex.EncodeToString(sum[:])[:44]
}

// Operation names used by Calls and FailNext.
const (
	OpList     = "list"
	OpUpload   = "upload"
	OpRegister = "register"
	OpIssue    = "issue"
	OpRevoke   = "revoke"
	OpVerify   = "verify"
)

func (r *Registry) routes() http.Handler {
	mux := chi.NewRouter()
	mux.Get("/certificates/{student}", r.handleList)
	mux.Post("/upload", r.handleUpload)
	mux.Post("/register-student", r.handleRegister)
	mux.Post("/issue", r.handleIssue)
	mux.Post("/revoke", r.handleRevoke)
	mux.Get("/verify/{student}/{index}/{hash}", r.handleVerify)
	return mux
}

// RegisterStudent seeds a registered student.
func (r *Registry) RegisterStudent(student string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.students[student] = true
}

// Seed appends a certificate directly, registering the student.
func (r *Registry) Seed(student, hash string, issuedAt int64, revoked bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.students[student] = true
	r.certs[student] = append(r.certs[student], Certificate{
		IssuedTo:  student,
		IssuedBy:  Institution,
		IPFSHash:  hash,
		IssuedAt:  issuedAt,
		IsRevoked: revoked,
	})
}

// Certificates returns a copy of the student's sequence.
func (r *Registry) Certificates(student string) []Certificate {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Certificate(nil), r.certs[student]...)
}

// IsRegistered reports whether the student has a registry entry.
func (r *Registry) IsRegistered(student string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.students[student]
}

// Calls returns how many requests reached op, including injected failures.
func (r *Registry) Calls(op string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls[op]
}

// FailNext queues a canned response for the next call to op.
func (r *Registry) FailNext(op string, status int, body string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures[op] = append(r.failures[op], Failure{Status: status, Body: body})
}

// begin counts the call and writes any injected failure. It returns false
// when the request has been answered.
func (r *Registry) begin(w http.ResponseWriter, op string) bool {
	r.mu.Lock()
	r.calls[op]++
	var f *Failure
	if q := r.failures[op]; len(q) > 0 {
		f = &q[0]
		r.failures[op] = q[1:]
	}
	r.mu.Unlock()

	if f == nil {
		return true
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(f.Status)
	_, _ = io.WriteString(w, f.Body)
	return false
}

func (r *Registry) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (r *Registry) writeError(w http.ResponseWriter, status int, msg, code string) {
	body := map[string]string{"error": msg}
	if r.structured {
		body["code"] = code
	}
	r.writeJSON(w, status, body)
}

func (r *Registry) handleList(w http.ResponseWriter, req *http.Request) {
	if !r.begin(w, OpList) {
		return
	}
	student := chi.URLParam(req, "student")

	r.mu.Lock()
	known := r.students[student]
	certs := append([]Certificate{}, r.certs[student]...)
	r.mu.Unlock()

	if !known && r.notFound {
		r.writeError(w, http.StatusNotFound, MsgStudentNotFound, "not_found")
		return
	}
	r.writeJSON(w, http.StatusOK, certs)
}

func (r *Registry) handleUpload(w http.ResponseWriter, req *http.Request) {
	if !r.begin(w, OpUpload) {
		return
	}
	file, _, err := req.FormFile("pdf")
	if err != nil {
		r.writeError(w, http.StatusBadRequest, "No file uploaded", "invalid_payload")
		return
	}
	defer file.Close()
	content, err := io.ReadAll(file)
	if err != nil || len(content) == 0 {
		r.writeError(w, http.StatusBadRequest, "Empty file", "invalid_payload")
		return
	}

	r.mu.Lock()
	hash := r.hashFn(content)
	r.files[hash] = content
	r.mu.Unlock()

	r.writeJSON(w, http.StatusOK, map[string]string{"ipfsHash": hash})
}

func (r *Registry) handleRegister(w http.ResponseWriter, req *http.Request) {
	if !r.begin(w, OpRegister) {
		return
	}
	var body struct {
		Student string `json:"student"`
	}
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil || body.Student == "" {
		r.writeError(w, http.StatusBadRequest, "student is required", "invalid_payload")
		return
	}

	r.mu.Lock()
	already := r.students[body.Student]
	r.students[body.Student] = true
	r.mu.Unlock()

	if already {
		r.writeError(w, http.StatusInternalServerError, MsgAlreadyRegistered, "already_registered")
		return
	}
	r.writeJSON(w, http.StatusOK, map[string]any{})
}

func (r *Registry) handleIssue(w http.ResponseWriter, req *http.Request) {
	if !r.begin(w, OpIssue) {
		return
	}
	var body struct {
		Student   string `json:"student"`
		IPFSHash  string `json:"ipfsHash"`
		ExpiresAt int64  `json:"expiresAt"`
	}
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil || body.Student == "" || body.IPFSHash == "" {
		r.writeError(w, http.StatusBadRequest, "student and ipfsHash are required", "invalid_payload")
		return
	}

	r.mu.Lock()
	registered := r.students[body.Student]
	if registered {
		r.certs[body.Student] = append(r.certs[body.Student], Certificate{
			IssuedTo: body.Student,
			IssuedBy: Institution,
			IPFSHash: body.IPFSHash,
			IssuedAt: r.now().Unix(),
		})
	}
	r.mu.Unlock()

	if !registered {
		r.writeError(w, http.StatusInternalServerError, MsgNotRegistered, "unregistered_student")
		return
	}
	r.writeJSON(w, http.StatusOK, map[string]any{})
}

func (r *Registry) handleRevoke(w http.ResponseWriter, req *http.Request) {
	if !r.begin(w, OpRevoke) {
		return
	}
	var body struct {
		Student string `json:"student"`
		Index   *int   `json:"index"`
	}
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil || body.Student == "" || body.Index == nil {
		r.writeError(w, http.StatusBadRequest, "student and index are required", "invalid_payload")
		return
	}

	r.mu.Lock()
	certs := r.certs[body.Student]
	idx := *body.Index
	var msg, code string
	switch {
	case idx < 0 || idx >= len(certs):
		msg, code = MsgInvalidIndex, "index_out_of_range"
	case certs[idx].IsRevoked:
		msg, code = MsgAlreadyRevoked, "already_revoked"
	default:
		certs[idx].IsRevoked = true
	}
	r.mu.Unlock()

	if msg != "" {
		r.writeError(w, http.StatusInternalServerError, msg, code)
		return
	}
	r.writeJSON(w, http.StatusOK, map[string]any{})
}

func (r *Registry) handleVerify(w http.ResponseWriter, req *http.Request) {
	if !r.begin(w, OpVerify) {
		return
	}
	student := chi.URLParam(req, "student")
	hash := chi.URLParam(req, "hash")
	idx, err := strconv.Atoi(chi.URLParam(req, "index"))
	if err != nil {
		r.writeError(w, http.StatusBadRequest, "index must be an integer", "invalid_payload")
		return
	}

	r.mu.Lock()
	certs := r.certs[student]
	valid := idx >= 0 && idx < len(certs) && certs[idx].IPFSHash == hash && !certs[idx].IsRevoked
	r.mu.Unlock()

	r.writeJSON(w, http.StatusOK, map[string]bool{"isValid": valid})
}

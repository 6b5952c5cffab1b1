package app

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"chatrelay/api/internal/credentials"
	"chatrelay/api/internal/httpdate"
	"chatrelay/api/internal/search"
)

type HTTPServer struct {
	service  *Service
	verifier credentials.Verifier
}

func NewHTTPServer(service *Service, verifier credentials.Verifier) *HTTPServer {
	return &HTTPServer{service: service, verifier: verifier}
}

func (s *HTTPServer) Handler() http.Handler {
	return s.withMiddleware(http.HandlerFunc(s.handle))
}

func (s *HTTPServer) handle(w http.ResponseWriter, r *http.Request) {
	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/health" {
		if r.Method == http.MethodHead {
			w.WriteHeader(http.StatusOK)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/ready" {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		status, body := http.StatusOK, map[string]any{"ok": true}
		if err := s.service.Ping(ctx); err != nil {
			status, body = http.StatusServiceUnavailable, map[string]any{"ok": false, "error": err.Error()}
		}
		if r.Method == http.MethodHead {
			w.WriteHeader(status)
			return
		}
		writeJSON(w, status, body)
		return
	}

	// Registration is the one route open to unauthenticated clients.
	if r.URL.Path == "/registration" {
		if r.Method != http.MethodPost {
			writeText(w, http.StatusBadRequest, "Not supported.")
			return
		}
		s.handleRegistration(w, r)
		return
	}

	switch r.URL.Path {
	case "/chat":
		if _, ok := s.requireUser(w, r); !ok {
			return
		}
		switch r.Method {
		case http.MethodPost:
			s.handlePostMessage(w, r)
		case http.MethodGet:
			s.handleFetchMessages(w, r)
		default:
			writeText(w, http.StatusBadRequest, "Not supported.")
		}
		return

	case "/chat/search":
		if _, ok := s.requireUser(w, r); !ok {
			return
		}
		if r.Method != http.MethodGet {
			writeText(w, http.StatusBadRequest, "Not supported.")
			return
		}
		s.handleSearchMessages(w, r)
		return

	case "/channels":
		if _, ok := s.requireUser(w, r); !ok {
			return
		}
		switch r.Method {
		case http.MethodPost:
			s.handleCreateChannel(w, r)
		case http.MethodGet:
			s.handleListChannels(w, r)
		default:
			writeText(w, http.StatusBadRequest, "Not supported.")
		}
		return
	}

	writeText(w, http.StatusNotFound, "Not found.")
}

func (s *HTTPServer) handlePostMessage(w http.ResponseWriter, r *http.Request) {
	if derr := checkPayloadHeaders(r); derr != nil {
		writeText(w, derr.Status, derr.Message)
		return
	}

	var body struct {
		User    string `json:"user"`
		Message string `json:"message"`
		Sent    string `json:"sent"`
		Channel string `json:"channel"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeText(w, http.StatusBadRequest, "Invalid JSON in request. Message was not sent.")
		return
	}

	if err := s.service.PostMessage(r.Context(), PostRequest{
		User:    body.User,
		Message: body.Message,
		Sent:    body.Sent,
		Channel: body.Channel,
	}); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *HTTPServer) handleFetchMessages(w http.ResponseWriter, r *http.Request) {
	req := FetchRequest{Channel: r.Header.Get("Channel")}

	if raw := r.Header.Get("If-Modified-Since"); raw != "" {
		since, err := httpdate.Parse(raw)
		if err != nil {
			writeText(w, http.StatusBadRequest, "Error: could not parse If-Modified-Since.")
			return
		}
		req.Since = since
		req.HasSince = true
	}

	result, err := s.service.FetchMessages(r.Context(), req)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if len(result.Messages) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	w.Header().Set("Last-Modified", result.LastModified)
	writeJSON(w, http.StatusOK, result.Messages)
}

func (s *HTTPServer) handleSearchMessages(w http.ResponseWriter, r *http.Request) {
	q := search.Query{
		Text:    strings.TrimSpace(r.URL.Query().Get("q")),
		Channel: strings.TrimSpace(r.URL.Query().Get("channel")),
		Limit:   20,
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			writeText(w, http.StatusBadRequest, "Error: limit must be an integer.")
			return
		}
		q.Limit = parsed
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("offset")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			writeText(w, http.StatusBadRequest, "Error: offset must be an integer.")
			return
		}
		q.Offset = parsed
	}

	response, err := s.service.SearchMessages(r.Context(), q)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, response)
}

func (s *HTTPServer) handleRegistration(w http.ResponseWriter, r *http.Request) {
	if derr := checkPayloadHeaders(r); derr != nil {
		writeText(w, derr.Status, derr.Message)
		return
	}

	var body struct {
		Username string `json:"username"`
		Password string `json:"password"`
		Email    string `json:"email"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeText(w, http.StatusBadRequest, "Invalid JSON in request. Registration failed.")
		return
	}

	if err := s.service.Register(r.Context(), body.Username, body.Password, body.Email); err != nil {
		writeDomainError(w, err)
		return
	}
	log.Printf("registration: added user %q", body.Username)
	w.WriteHeader(http.StatusNoContent)
}

func (s *HTTPServer) handleCreateChannel(w http.ResponseWriter, r *http.Request) {
	if derr := checkPayloadHeaders(r); derr != nil {
		writeText(w, derr.Status, derr.Message)
		return
	}

	var body struct {
		Channel string `json:"channel name"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeText(w, http.StatusBadRequest, "Invalid JSON in request. Channel was not created.")
		return
	}

	confirmation, err := s.service.CreateChannel(r.Context(), body.Channel)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeText(w, http.StatusOK, confirmation)
}

func (s *HTTPServer) handleListChannels(w http.ResponseWriter, r *http.Request) {
	channels, err := s.service.ListChannels(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}

	var listing strings.Builder
	listing.WriteString("List of existing channels: \n")
	for _, channel := range channels {
		listing.WriteString(channel)
		listing.WriteString("\n")
	}
	writeText(w, http.StatusOK, listing.String())
}

// requireUser gates protected routes with HTTP Basic Auth. Missing and
// invalid credentials take the same 401 path.
func (s *HTTPServer) requireUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	username, password, ok := r.BasicAuth()
	if !ok || !s.verifier.Verify(r.Context(), username, password) {
		w.Header().Set("WWW-Authenticate", `Basic realm="chat"`)
		writeText(w, http.StatusUnauthorized, "Unauthorized")
		return "", false
	}
	return username, true
}

// checkPayloadHeaders enforces the payload contract shared by every POST
// route: a declared Content-Length and the application/json media type.
// ContentLength alone cannot tell "no body at all" from "Content-Length: 0",
// so the header itself is consulted for the zero case.
func checkPayloadHeaders(r *http.Request) *DomainError {
	if r.ContentLength < 0 || (r.ContentLength == 0 && r.Header.Get("Content-Length") == "") {
		return lengthRequired("Content-Length required.")
	}
	contentType := r.Header.Get("Content-Type")
	if contentType == "" {
		return badRequest("No content type in request.")
	}
	mediaType := strings.ToLower(strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0]))
	if mediaType != "application/json" {
		return lengthRequired("Content-Type must be application/json.")
	}
	return nil
}

func decodeBody(r *http.Request, target any) error {
	if r.Body == nil {
		return fmt.Errorf("empty body")
	}
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(target); err != nil {
		return fmt.Errorf("invalid JSON body")
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeText(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(message))
}

func writeDomainError(w http.ResponseWriter, err error) {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		writeText(w, domainErr.Status, domainErr.Message)
		return
	}
	writeText(w, http.StatusInternalServerError, "Error in handling the request.")
}

func (s *HTTPServer) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = randomRequestID()
		}
		ctx := context.WithValue(r.Context(), requestIDKey{}, requestID)
		r = r.WithContext(ctx)

		started := time.Now()
		writer := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		writer.Header().Set("X-Request-ID", requestID)

		next.ServeHTTP(writer, r)

		log.Printf(`{"request_id":"%s","method":"%s","path":"%s","status":%d,"duration_ms":%d}`,
			requestID,
			r.Method,
			r.URL.Path,
			writer.status,
			time.Since(started).Milliseconds(),
		)
	})
}

type requestIDKey struct{}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func randomRequestID() string {
	buf := make([]byte, 8)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}

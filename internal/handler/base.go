package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io"
	"log/slog"
	"net/http"

	appmw "github.com/logmailer/internal/middleware"
)

// maxJSONBody caps API request bodies.
const maxJSONBody = 1 << 20

type envelope map[string]any

type noncer interface {
	Create(action, session string) string
	Verify(nonce, action, session string) bool
}

// BaseHandler holds what every admin handler needs: a logger and the page
// templates, plus JSON and form helpers.
type BaseHandler struct {
	Logger    *slog.Logger
	Templates *template.Template
}

func (h *BaseHandler) logError(r *http.Request, err error) {
	h.Logger.Error(err.Error(),
		"method", r.Method,
		"uri", r.URL.RequestURI(),
		"user_id", appmw.UserIDFromContext(r.Context()),
	)
}

func (h *BaseHandler) errorResponse(w http.ResponseWriter, r *http.Request, status int, message any) {
	if err := h.writeJSON(w, status, envelope{"error": message}, nil); err != nil {
		h.logError(r, err)
		w.WriteHeader(http.StatusInternalServerError)
	}
}

func (h *BaseHandler) serverErrorResponse(w http.ResponseWriter, r *http.Request, err error) {
	h.logError(r, err)
	h.errorResponse(w, r, http.StatusInternalServerError, "the server encountered a problem and could not process your request")
}

func (h *BaseHandler) badRequestResponse(w http.ResponseWriter, r *http.Request, err error) {
	h.errorResponse(w, r, http.StatusBadRequest, err.Error())
}

func (h *BaseHandler) writeJSON(w http.ResponseWriter, status int, data any, headers http.Header) error {
	for k, values := range headers {
		for _, v := range values {
			w.Header().Add(k, v)
		}
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(data)
}

// readJSON decodes exactly one JSON object into dst, rejecting unknown fields.
func (h *BaseHandler) readJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return describeJSONError(err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return errors.New("body must only contain a single JSON value")
	}
	return nil
}

func describeJSONError(err error) error {
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	var sizeErr *http.MaxBytesError
	var invalidErr *json.InvalidUnmarshalError

	switch {
	case errors.As(err, &syntaxErr):
		return fmt.Errorf("body contains badly-formed JSON (at character %d)", syntaxErr.Offset)
	case errors.Is(err, io.ErrUnexpectedEOF):
		return errors.New("body contains badly-formed JSON")
	case errors.As(err, &typeErr) && typeErr.Field != "":
		return fmt.Errorf("body contains incorrect JSON type for field %q", typeErr.Field)
	case errors.As(err, &typeErr):
		return fmt.Errorf("body contains incorrect JSON type (at character %d)", typeErr.Offset)
	case errors.Is(err, io.EOF):
		return errors.New("body must not be empty")
	case errors.As(err, &sizeErr):
		return fmt.Errorf("body must not be larger than %d bytes", sizeErr.Limit)
	case errors.As(err, &invalidErr):
		panic(err)
	default:
		return err
	}
}

// render executes the named template as an HTML response.
func (h *BaseHandler) render(w http.ResponseWriter, r *http.Request, status int, name string, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := h.Templates.ExecuteTemplate(w, name, data); err != nil {
		h.logError(r, fmt.Errorf("template %s: %w", name, err))
	}
}

// verifyForm parses a posted form and checks its _nonce against action for
// the current session. On failure the response is already written.
func (h *BaseHandler) verifyForm(w http.ResponseWriter, r *http.Request, nonces noncer, action string) bool {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return false
	}
	if !nonces.Verify(r.PostFormValue("_nonce"), action, appmw.SessionIDFromContext(r.Context())) {
		h.Logger.Warn("nonce check failed", "action", action, "user_id", appmw.UserIDFromContext(r.Context()))
		http.Error(w, "The link you followed has expired.", http.StatusForbidden)
		return false
	}
	return true
}

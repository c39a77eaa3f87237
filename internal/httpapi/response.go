package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/focuslock/internal/domain"
	"github.com/eliteGoblin/focusd/focuslock/internal/usecase"
)

// maxBodySize caps request bodies. Profiles are the largest payload.
const maxBodySize = 1 << 20

// Response is the envelope of every reply.
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *ErrorInfo  `json:"error,omitempty"`
}

// ErrorInfo describes a failed request.
type ErrorInfo struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
}

// Error codes, one per domain error kind.
const (
	CodeValidation  = "validation_error"
	CodeNotFound    = "not_found"
	CodeRefused     = "refused"
	CodeStorage     = "storage_unavailable"
	CodeEnforcement = "enforcement_failed"
	CodeInternal    = "internal_error"
	CodeBadRequest  = "bad_request"
)

func writeJSON(w http.ResponseWriter, logger *zap.Logger, status int, resp Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		logger.Warn("write response failed", zap.Error(err))
	}
}

func (s *Server) ok(w http.ResponseWriter, status int, data interface{}) {
	writeJSON(w, s.logger, status, Response{Success: true, Data: data})
}

func (s *Server) fail(w http.ResponseWriter, status int, code, message string, details map[string]string) {
	writeJSON(w, s.logger, status, Response{
		Error: &ErrorInfo{Code: code, Message: message, Details: details},
	})
}

// StatusFor maps a domain error kind to its HTTP status.
func StatusFor(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest, CodeValidation
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, CodeNotFound
	case errors.Is(err, domain.ErrPolicyRefusal):
		return http.StatusConflict, CodeRefused
	case errors.Is(err, domain.ErrStorage):
		return http.StatusServiceUnavailable, CodeStorage
	case errors.Is(err, domain.ErrEnforcement):
		return http.StatusBadGateway, CodeEnforcement
	}
	return http.StatusInternalServerError, CodeInternal
}

func (s *Server) failErr(w http.ResponseWriter, r *http.Request, err error) {
	status, code := StatusFor(err)
	var details map[string]string
	var de *domain.Error
	if errors.As(err, &de) && de.Field != "" {
		details = map[string]string{de.Field: de.UserMessage()}
	}
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed",
			zap.String("path", r.URL.Path),
			zap.Int("status", status),
			zap.Error(err))
	}
	s.fail(w, status, code, domain.UserMessage(err), details)
}

// decode reads one JSON object into v and validates it. An empty body is
// accepted when allowEmpty is set, leaving v untouched.
func decode(r *http.Request, v interface{}, allowEmpty bool) error {
	const op = "http.decode"
	body := http.MaxBytesReader(nil, r.Body, maxBodySize)
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(v); err != nil {
		var syntaxErr *json.SyntaxError
		var typeErr *json.UnmarshalTypeError
		switch {
		case errors.Is(err, io.EOF):
			if allowEmpty {
				return usecase.ValidateStruct(op, v)
			}
			return domain.Validation(op, "", "request body is empty")
		case errors.As(err, &syntaxErr):
			return domain.Validation(op, "", fmt.Sprintf("malformed JSON at position %d", syntaxErr.Offset))
		case errors.As(err, &typeErr) && typeErr.Field != "":
			return domain.Validation(op, typeErr.Field, "must be a "+typeErr.Type.String())
		case strings.HasPrefix(err.Error(), "json: unknown field "):
			field := strings.Trim(strings.TrimPrefix(err.Error(), "json: unknown field "), `"`)
			return domain.Validation(op, field, "unknown field")
		default:
			return domain.Validation(op, "", err.Error())
		}
	}
	if dec.More() {
		return domain.Validation(op, "", "request body must contain a single JSON object")
	}
	return usecase.ValidateStruct(op, v)
}

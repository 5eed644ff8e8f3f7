package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"expensetracker/internal/core"
	"expensetracker/internal/log"
	"expensetracker/internal/sms"
)

const maxBodyBytes = 64 << 10

type errorBody struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

// errBadRequest marks malformed input that never reached validation.
var errBadRequest = errors.New("bad request")

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(v)
}

// decodeJSON reads a JSON body into dst and validates it.
func (s *Server) decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return err
		}
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: empty body", errBadRequest)
		}
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return s.validate.Struct(dst)
}

func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: invalid id %q", errBadRequest, r.PathValue("id"))
	}
	return id, nil
}

// queryInt reads a required integer query parameter. Missing or malformed
// values are validation failures.
func queryInt(r *http.Request, name string) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return 0, fieldError{field: name, msg: "is required"}
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fieldError{field: name, msg: "must be an integer"}
	}
	return n, nil
}

type fieldError struct{ field, msg string }

func (e fieldError) Error() string { return e.field + " " + e.msg }

func validationMessage(errs validator.ValidationErrors) string {
	parts := make([]string, 0, len(errs))
	for _, fe := range errs {
		switch fe.Tag() {
		case "required":
			parts = append(parts, fe.Field()+" is required")
		case "gt":
			parts = append(parts, fmt.Sprintf("%s must be greater than %s", fe.Field(), fe.Param()))
		case "gte", "min":
			parts = append(parts, fmt.Sprintf("%s must be at least %s", fe.Field(), fe.Param()))
		case "lte", "max":
			parts = append(parts, fmt.Sprintf("%s must be at most %s", fe.Field(), fe.Param()))
		default:
			parts = append(parts, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
		}
	}
	return strings.Join(parts, "; ")
}

// respondError maps domain errors onto HTTP statuses.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error) {
	var verrs validator.ValidationErrors
	var ferr fieldError
	var maxErr *http.MaxBytesError

	switch {
	case errors.As(err, &verrs):
		logRejected(r, err, log.ErrorTypeValidation)
		writeJSON(w, http.StatusUnprocessableEntity, errorBody{Error: validationMessage(verrs)})
	case errors.As(err, &ferr), core.IsValidationError(err):
		logRejected(r, err, log.ErrorTypeValidation)
		writeJSON(w, http.StatusUnprocessableEntity, errorBody{Error: err.Error()})
	case errors.As(err, &maxErr):
		logRejected(r, err, log.ErrorTypeValidation)
		writeJSON(w, http.StatusRequestEntityTooLarge, errorBody{Error: "request body too large"})
	case errors.Is(err, errBadRequest):
		logRejected(r, err, log.ErrorTypeValidation)
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
	case errors.Is(err, sms.ErrFallbackCategoryMissing):
		log.FromContext(r.Context()).ErrorContext(r.Context(), "SMS fallback category missing",
			log.FieldError, err.Error(), log.FieldErrorType, log.ErrorTypeConfiguration)
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: err.Error(), Kind: log.ErrorTypeConfiguration})
	case errors.Is(err, core.ErrCategoryNotFound):
		logRejected(r, err, log.ErrorTypeNotFound)
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
	case errors.Is(err, core.ErrNotFound):
		logRejected(r, err, log.ErrorTypeNotFound)
		writeJSON(w, http.StatusNotFound, errorBody{Error: err.Error()})
	case errors.Is(err, core.ErrCategoryExists), errors.Is(err, core.ErrDuplicateExpense), errors.Is(err, core.ErrCategoryInUse):
		logRejected(r, err, log.ErrorTypeConflict)
		writeJSON(w, http.StatusConflict, errorBody{Error: err.Error()})
	default:
		fields := log.NewFields().WithHTTPRequest(r.Method, r.URL.Path, r.URL.RawQuery, "", "")
		log.NewStructuredLogger(log.FromContext(r.Context())).
			LogError(r.Context(), "Request failed", err, log.ComponentHTTP, operationFor(r.Method), fields)
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal server error"})
	}
}

func logRejected(r *http.Request, err error, errorType string) {
	log.FromContext(r.Context()).DebugContext(r.Context(), "Request rejected",
		log.FieldOperation, operationFor(r.Method),
		log.FieldErrorType, errorType,
		log.FieldError, err.Error())
}

func operationFor(method string) string {
	switch method {
	case http.MethodPost:
		return log.OpCreate
	case http.MethodPut, http.MethodPatch:
		return log.OpUpdate
	case http.MethodDelete:
		return log.OpDelete
	default:
		return log.OpRead
	}
}

// sanitizeInput removes control characters except tab, newline and carriage
// return, and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}

package userforms

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
)

// submittedValues reads the named fields from a form or JSON body. Nested
// JSON objects are flattened as name[key], matching form encoding.
func submittedValues(r *http.Request, names ...string) (map[string]string, error) {
	values := make(map[string]string, len(names))
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		var data map[string]any
		if err := json.NewDecoder(r.Body).Decode(&data); err != nil || data == nil {
			return nil, NewAuthError("parse_error", "Invalid post body", "")
		}
		for k, v := range data {
			switch val := v.(type) {
			case string:
				values[k] = val
			case map[string]any:
				for sub, sv := range val {
					if s, ok := sv.(string); ok {
						values[k+"["+sub+"]"] = s
					}
				}
			}
		}
		return values, nil
	}
	if err := r.ParseForm(); err != nil {
		return nil, NewAuthError("parse_error", "Error parsing form", "")
	}
	for _, name := range names {
		values[name] = r.PostFormValue(name)
	}
	return values, nil
}

// requiredError reports an empty required field.
func requiredError(t Translator, field, title string) FieldError {
	return FieldError{Field: field, Message: tr(t, "%s field is required.", title)}
}

// mergeErrors appends errs to pre, skipping fields that already carry an
// error: the first error set on a field is the one shown.
func mergeErrors(pre, errs []FieldError) []FieldError {
	out := append([]FieldError(nil), pre...)
	for _, fe := range errs {
		dup := false
		for _, p := range out {
			if p.Field == fe.Field {
				dup = true
				break
			}
		}
		if !dup {
			out = append(out, fe)
		}
	}
	return out
}

// handleFormError maps workflow errors onto HTTP responses.
func handleFormError(w http.ResponseWriter, r *http.Request, err error) {
	var authErr *AuthError
	switch {
	case errors.As(err, &authErr):
		writeError(w, r, http.StatusBadRequest, authErr)
	case errors.Is(err, ErrAccountNotFound):
		writeError(w, r, http.StatusNotFound, NewAuthError(ErrCodeNotFound, "Page not found", ""))
	case errors.Is(err, ErrAccessDenied):
		writeError(w, r, http.StatusForbidden, NewAuthError(ErrCodeAccessDenied, "Access denied", ""))
	case errors.Is(err, ErrPersistence):
		log.Printf("Error saving account: %v", err)
		writeError(w, r, http.StatusInternalServerError, NewAuthError(ErrCodeSaveFailed, "The account could not be saved. Please try again.", ""))
	default:
		log.Printf("Error handling account form: %v", err)
		writeError(w, r, http.StatusInternalServerError, NewAuthError("internal_error", "An unexpected error occurred", ""))
	}
}

package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"

	"github.com/verte-zerg/bibleclock/internal/settings"
)

var errMalformed = errors.New("malformed request body")

// envelope wraps every API response.
type envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

func writeData(w http.ResponseWriter, data any) {
	writeEnvelope(w, http.StatusOK, envelope{Success: true, Data: data})
}

func writeMessage(w http.ResponseWriter, msg string) {
	writeEnvelope(w, http.StatusOK, envelope{Success: true, Message: msg})
}

func writeEnvelope(w http.ResponseWriter, status int, env envelope) {
	writeJSON(w, status, env)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("web: encoding response: %v", err)
	}
}

// readBody reads a JSON object body. A missing body reads as {}.
func readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	if r.Body == nil {
		return []byte("{}"), true
	}
	defer r.Body.Close()
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, fmt.Errorf("%w: %v", errMalformed, err))
		return nil, false
	}
	if len(data) == 0 {
		return []byte("{}"), true
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err != nil {
		writeError(w, fmt.Errorf("%w: %v", errMalformed, err))
		return nil, false
	}
	return data, true
}

func fields(body []byte) map[string]json.RawMessage {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil
	}
	return raw
}

// optionalBool reads a boolean field, defaulting to false when absent.
func optionalBool(body []byte, key string) (bool, error) {
	value, ok := fields(body)[key]
	if !ok {
		return false, nil
	}
	var b bool
	if err := json.Unmarshal(value, &b); err != nil || string(value) == "null" {
		return false, &settings.ValidationError{Code: settings.CodeInvalidFlag, Field: key, Value: string(value)}
	}
	return b, nil
}

func requiredBool(body []byte, key string) (bool, error) {
	if _, ok := fields(body)[key]; !ok {
		return false, &settings.ValidationError{Code: settings.CodeInvalidFlag, Field: key}
	}
	return optionalBool(body, key)
}

func requiredInt(body []byte, key string) (int, error) {
	value, ok := fields(body)[key]
	if !ok {
		return 0, &settings.ValidationError{Code: settings.CodeInvalidInterval, Field: key}
	}
	var n int
	if err := json.Unmarshal(value, &n); err != nil {
		return 0, &settings.ValidationError{Code: settings.CodeInvalidInterval, Field: key, Value: string(value)}
	}
	return n, nil
}

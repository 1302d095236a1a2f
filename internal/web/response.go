package web

import (
	"encoding/json"
	"net/http"
)

// envelope is the JSON shape every endpoint responds with:
// {success, message} plus data on success or errors on failure
type envelope struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
	Errors  interface{} `json:"errors,omitempty"`
}

func respond(w http.ResponseWriter, code int, message string, data interface{}) {
	writeJSON(w, code, envelope{
		Success: true,
		Message: message,
		Data:    data,
	})
}

func respondError(w http.ResponseWriter, code int, message string, errs interface{}) {
	writeJSON(w, code, envelope{
		Success: false,
		Message: message,
		Errors:  errs,
	})
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// Package response builds the uniform status/message/data body every endpoint returns.
package response

import (
	"net/http"

	"github.com/goccy/go-json"
)

// Envelope is the body of every API response
type Envelope struct {
	Status  int         `json:"status"`
	Message string      `json:"message"`
	Data    interface{} `json:"data"`
}

// Build wraps data in an envelope. Nil data becomes an empty list.
func Build(status int, message string, data interface{}) Envelope {
	if isNil(data) {
		data = []interface{}{}
	}
	return Envelope{Status: status, Message: message, Data: data}
}

// Write encodes env as JSON with the given transport status
func Write(w http.ResponseWriter, httpStatus int, env Envelope) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpStatus)
	return json.NewEncoder(w).Encode(env)
}

func isNil(data interface{}) bool {
	switch v := data.(type) {
	case nil:
		return true
	case map[string]interface{}:
		return v == nil
	case []interface{}:
		return v == nil
	}
	return false
}

package api

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/goccy/go-json"

	"github.com/czentrix/screenrecording-report/internal/db"
)

const maxBodyBytes = 1 << 20

const (
	msgEmptyBody   = "Request body cannot be empty"
	msgNotAnObject = "Request body must be a JSON object"
	msgNumberRange = "Request body contains a number outside the supported range"
)

func readBody(r *http.Request) ([]byte, error) {
	if r.Body == nil {
		return nil, nil
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
	if err != nil {
		return nil, badRequest("Request body could not be read", err)
	}
	if len(body) > maxBodyBytes {
		return nil, badRequest(fmt.Sprintf("Request body exceeds %d bytes", maxBodyBytes), nil)
	}
	return bytes.TrimSpace(body), nil
}

// decodeDocument reads a single non-empty JSON object from the request body.
// Integral numbers become int64, other numbers float64. Integers that do not
// fit in int64 are rejected rather than rounded.
func decodeDocument(r *http.Request) (db.Document, error) {
	body, err := readBody(r)
	if err != nil {
		return nil, err
	}
	if len(body) == 0 {
		return nil, badRequest(msgEmptyBody, nil)
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var raw interface{}
	if err := dec.Decode(&raw); err != nil {
		return nil, badRequest(msgNotAnObject, err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return nil, badRequest(msgNotAnObject, fmt.Errorf("unexpected data after JSON object: %v", err))
	}
	obj, ok := raw.(map[string]interface{})
	if !ok {
		return nil, badRequest(msgNotAnObject, nil)
	}
	if len(obj) == 0 {
		return nil, badRequest(msgEmptyBody, nil)
	}

	if err := normalizeObject(obj); err != nil {
		return nil, badRequest(msgNumberRange, err)
	}
	return db.Document(obj), nil
}

func normalizeObject(obj map[string]interface{}) error {
	for k, item := range obj {
		v, err := normalize(item)
		if err != nil {
			return fmt.Errorf("%s: %w", k, err)
		}
		obj[k] = v
	}
	return nil
}

func normalize(v interface{}) (interface{}, error) {
	switch val := v.(type) {
	case map[string]interface{}:
		return val, normalizeObject(val)
	case []interface{}:
		for i, item := range val {
			n, err := normalize(item)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			val[i] = n
		}
		return val, nil
	case json.Number:
		return normalizeNumber(val)
	}
	return v, nil
}

func normalizeNumber(n json.Number) (interface{}, error) {
	if i, err := n.Int64(); err == nil {
		return i, nil
	}
	if !strings.ContainsAny(n.String(), ".eE") {
		return nil, fmt.Errorf("integer %s overflows int64", n)
	}
	f, err := n.Float64()
	if err != nil {
		return nil, fmt.Errorf("number %s: %w", n, err)
	}
	return f, nil
}

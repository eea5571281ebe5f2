package api

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/czentrix/screenrecording-report/internal/repository"
	"github.com/czentrix/screenrecording-report/internal/service"
	"github.com/czentrix/screenrecording-report/internal/service/servicetest"
	"github.com/czentrix/screenrecording-report/internal/validator"
)

type envelopeBody struct {
	Status  int             `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func newTestRouter() (http.Handler, *servicetest.MemStore) {
	store := servicetest.NewMemStore()
	reports := service.NewReportService(store, &servicetest.Publisher{}, zap.NewNop())
	return NewRouter(NewHandler(reports, validator.NewValidator()), zap.NewNop()), store
}

func do(t *testing.T, router http.Handler, method, target, body string) (*httptest.ResponseRecorder, envelopeBody) {
	t.Helper()

	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	var env envelopeBody
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("%s %s: response is not an envelope: %v (%s)", method, target, err, rec.Body.String())
	}
	return rec, env
}

func decodeData(t *testing.T, env envelopeBody, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(env.Data, v); err != nil {
		t.Fatalf("failed to decode data %s: %v", env.Data, err)
	}
}

func TestAddAndListUserReports(t *testing.T) {
	router, _ := newTestRouter()

	body := `{"clientId": 42, "macAddress": "AA:BB", "isValid": true, "meta": {"tags": ["a", "b"], "ratio": 0.5}}`
	rec, env := do(t, router, http.MethodPost, "/user_report", body)
	if rec.Code != http.StatusOK || env.Status != http.StatusOK {
		t.Fatalf("POST /user_report = %d/%d %s", rec.Code, env.Status, env.Message)
	}
	if env.Message != "User report inserted successfully" {
		t.Errorf("Unexpected message %q", env.Message)
	}
	var inserted map[string]string
	decodeData(t, env, &inserted)
	if inserted["inserted_id"] == "" {
		t.Error("Expected inserted_id")
	}

	rec, env = do(t, router, http.MethodGet, "/user_report", "")
	if rec.Code != http.StatusOK || env.Message != "Found 1 user reports" {
		t.Fatalf("GET /user_report = %d %q", rec.Code, env.Message)
	}
	var docs []map[string]interface{}
	decodeData(t, env, &docs)
	if len(docs) != 1 {
		t.Fatalf("Expected 1 document, got %d", len(docs))
	}
	doc := docs[0]
	if _, ok := doc["_id"]; ok {
		t.Error("Internal identifier must not be returned")
	}
	if doc["clientId"] != float64(42) || doc["macAddress"] != "AA:BB" || doc["isValid"] != true {
		t.Errorf("Unexpected document %v", doc)
	}
	meta, ok := doc["meta"].(map[string]interface{})
	if !ok || meta["ratio"] != 0.5 || len(meta["tags"].([]interface{})) != 2 {
		t.Errorf("Nested fields not preserved: %v", doc["meta"])
	}
}

func TestAddReport_NumberFidelity(t *testing.T) {
	router, store := newTestRouter()

	body := `{"clientId": 9223372036854775807, "low": -9223372036854775808, "ratio": 2.5, "sci": 1e3}` + "\n"
	rec, env := do(t, router, http.MethodPost, "/client_report", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("POST /client_report = %d %q", rec.Code, env.Message)
	}

	docs := store.Raw(repository.ClientCollection)
	if len(docs) != 1 {
		t.Fatalf("Expected 1 stored document, got %d", len(docs))
	}
	doc := docs[0]
	if doc["clientId"] != int64(9223372036854775807) || doc["low"] != int64(-9223372036854775808) {
		t.Errorf("Expected int64 bounds to be stored exactly, got %v %v", doc["clientId"], doc["low"])
	}
	if doc["ratio"] != 2.5 || doc["sci"] != float64(1000) {
		t.Errorf("Unexpected floats %v %v", doc["ratio"], doc["sci"])
	}
}

func TestRecoverer(t *testing.T) {
	panicking := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("nil map write")
	})
	handler := RequestLogger(zap.NewNop())(Recoverer(panicking))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/user_report", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("Expected 500, got %d", rec.Code)
	}
	var env envelopeBody
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("Expected an envelope body, got %q", rec.Body.String())
	}
	if env.Status != http.StatusInternalServerError || env.Message != msgInternal || string(env.Data) != "[]" {
		t.Errorf("Unexpected envelope %+v", env)
	}
	if strings.Contains(rec.Body.String(), "nil map") {
		t.Error("Panic value leaked to caller")
	}
}

func TestRecoverer_AbortHandler(t *testing.T) {
	aborting := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic(http.ErrAbortHandler)
	})

	defer func() {
		if rec := recover(); rec != http.ErrAbortHandler {
			t.Errorf("Expected ErrAbortHandler to propagate, got %v", rec)
		}
	}()
	Recoverer(aborting).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
}

func TestListReports_Empty(t *testing.T) {
	router, _ := newTestRouter()

	rec, env := do(t, router, http.MethodGet, "/client_report", "")
	if rec.Code != http.StatusOK || env.Message != "No client reports found" {
		t.Fatalf("GET /client_report = %d %q", rec.Code, env.Message)
	}
	if string(env.Data) != "[]" {
		t.Errorf("Expected empty list, got %s", env.Data)
	}
}

func TestAddReport_RejectsEmptyInput(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		wantMessage string
	}{
		{name: "no body", body: "", wantMessage: msgEmptyBody},
		{name: "empty object", body: "{}", wantMessage: msgEmptyBody},
		{name: "whitespace", body: "   ", wantMessage: msgEmptyBody},
		{name: "array", body: `[{"clientId": 1}]`, wantMessage: msgNotAnObject},
		{name: "invalid json", body: `{"clientId":`, wantMessage: msgNotAnObject},
		{name: "scalar", body: `42`, wantMessage: msgNotAnObject},
		{name: "trailing data", body: `{"clientId":1,"macAddress":"A"} garbage{`, wantMessage: msgNotAnObject},
		{name: "second object", body: `{"clientId":1} {"clientId":2}`, wantMessage: msgNotAnObject},
		{name: "integer overflow", body: `{"big": 123456789012345678901234567890}`, wantMessage: msgNumberRange},
		{name: "nested integer overflow", body: `{"meta": {"ids": [1, 99999999999999999999]}}`, wantMessage: msgNumberRange},
		{name: "float overflow", body: `{"ratio": 1e400}`, wantMessage: msgNumberRange},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router, store := newTestRouter()

			rec, env := do(t, router, http.MethodPost, "/user_report", tt.body)
			if rec.Code != http.StatusBadRequest || env.Status != http.StatusBadRequest {
				t.Errorf("Expected 400, got %d/%d", rec.Code, env.Status)
			}
			if env.Message != tt.wantMessage {
				t.Errorf("Expected message %q, got %q", tt.wantMessage, env.Message)
			}
			if len(store.Raw(repository.UserCollection)) != 0 {
				t.Error("Nothing should be inserted")
			}
		})
	}
}

func TestCheckReportExists(t *testing.T) {
	t.Run("client only", func(t *testing.T) {
		router, _ := newTestRouter()
		do(t, router, http.MethodPost, "/client_report", `{"clientId": 42, "macAddress": "AA:BB", "isValid": true}`)

		rec, env := do(t, router, http.MethodGet, "/check_report_exists?clientId=42&macAddress=AA:BB", "")
		if rec.Code != http.StatusOK || env.Message != "Record found in client collection" {
			t.Fatalf("Unexpected response %d %q", rec.Code, env.Message)
		}
		var result map[string]interface{}
		decodeData(t, env, &result)
		if result["exists"] != true || result["collection"] != "client_collection" || result["isValid"] != true {
			t.Errorf("Unexpected result %v", result)
		}
	})

	t.Run("user takes priority", func(t *testing.T) {
		router, _ := newTestRouter()
		do(t, router, http.MethodPost, "/client_report", `{"clientId": 5, "macAddress": "M", "isValid": true}`)
		do(t, router, http.MethodPost, "/user_report", `{"clientId": 5, "macAddress": "M", "isValid": false}`)

		_, env := do(t, router, http.MethodGet, "/check_report_exists?clientId=5&macAddress=M", "")
		var result map[string]interface{}
		decodeData(t, env, &result)
		if result["collection"] != "user_collection" || result["isValid"] != false {
			t.Errorf("Expected user collection result, got %v", result)
		}
	})

	t.Run("none", func(t *testing.T) {
		router, _ := newTestRouter()

		_, env := do(t, router, http.MethodGet, "/check_report_exists?clientId=1&macAddress=none", "")
		if env.Message != "No matching record found" {
			t.Errorf("Unexpected message %q", env.Message)
		}
		if string(env.Data) != `{"exists":false}` {
			t.Errorf("Expected bare not-exists data, got %s", env.Data)
		}
	})

	t.Run("bad query", func(t *testing.T) {
		router, _ := newTestRouter()

		for _, target := range []string{
			"/check_report_exists?macAddress=AA",
			"/check_report_exists?clientId=abc&macAddress=AA",
			"/check_report_exists?clientId=1",
		} {
			rec, env := do(t, router, http.MethodGet, target, "")
			if rec.Code != http.StatusBadRequest || env.Status != http.StatusBadRequest {
				t.Errorf("%s: expected 400, got %d/%d", target, rec.Code, env.Status)
			}
		}
	})
}

func TestUpdateValidity(t *testing.T) {
	t.Run("no match is 404 in body only", func(t *testing.T) {
		router, store := newTestRouter()

		rec, env := do(t, router, http.MethodPut, "/client_report/update_validity", `{"clientId": 9, "macAddress": "Z", "isValid": true}`)
		if rec.Code != http.StatusOK {
			t.Errorf("Expected transport 200, got %d", rec.Code)
		}
		if env.Status != http.StatusNotFound || env.Message != "No matching client report found to update" {
			t.Errorf("Unexpected envelope %d %q", env.Status, env.Message)
		}
		if string(env.Data) != "[]" {
			t.Errorf("Expected empty data, got %s", env.Data)
		}
		if len(store.Raw(repository.ClientCollection)) != 0 {
			t.Error("Nothing should be created")
		}
	})

	t.Run("sets only isValid and is idempotent", func(t *testing.T) {
		router, store := newTestRouter()
		do(t, router, http.MethodPost, "/client_report", `{"clientId": 42, "macAddress": "AA:BB", "isValid": true, "note": "keep"}`)

		body := `{"clientId": 42, "macAddress": "AA:BB", "isValid": false}`
		rec, env := do(t, router, http.MethodPut, "/client_report/update_validity", body)
		if rec.Code != http.StatusOK || env.Status != http.StatusOK || env.Message != "Client report updated successfully" {
			t.Fatalf("Unexpected response %d/%d %q", rec.Code, env.Status, env.Message)
		}
		if string(env.Data) != `{"updated_count":1}` {
			t.Errorf("Unexpected data %s", env.Data)
		}

		first := store.Raw(repository.ClientCollection)

		_, env = do(t, router, http.MethodPut, "/client_report/update_validity", body)
		if env.Status != http.StatusOK || string(env.Data) != `{"updated_count":0}` {
			t.Errorf("Unexpected second update %d %s", env.Status, env.Data)
		}

		second := store.Raw(repository.ClientCollection)
		if len(second) != 1 || second[0]["isValid"] != false || second[0]["note"] != "keep" || second[0]["_id"] != first[0]["_id"] {
			t.Errorf("Unexpected stored state %v", second)
		}
	})

	t.Run("client id zero is accepted", func(t *testing.T) {
		router, _ := newTestRouter()
		do(t, router, http.MethodPost, "/client_report", `{"clientId": 0, "macAddress": "Z0", "isValid": false}`)

		_, env := do(t, router, http.MethodPut, "/client_report/update_validity", `{"clientId": 0, "macAddress": "Z0", "isValid": true}`)
		if env.Status != http.StatusOK {
			t.Errorf("Expected clientId 0 to be updated, got %d %q", env.Status, env.Message)
		}
	})

	t.Run("invalid bodies", func(t *testing.T) {
		router, _ := newTestRouter()

		for _, body := range []string{
			"",
			"{}",
			`{"macAddress": "A", "isValid": true}`,
			`{"clientId": 1, "isValid": true}`,
			`{"clientId": 1, "macAddress": "", "isValid": true}`,
			`{"clientId": 1, "macAddress": "A"}`,
			`{"clientId": 1, "macAddress": "A", "isValid": "yes"}`,
			`{"clientId": "one", "macAddress": "A", "isValid": true}`,
			`not json`,
		} {
			rec, env := do(t, router, http.MethodPut, "/client_report/update_validity", body)
			if rec.Code != http.StatusBadRequest || env.Status != http.StatusBadRequest {
				t.Errorf("%q: expected 400, got %d/%d", body, rec.Code, env.Status)
			}
			if env.Message != validator.ErrInvalidValidityUpdate.Error() {
				t.Errorf("%q: unexpected message %q", body, env.Message)
			}
		}
	})
}

func TestDeleteClientReport(t *testing.T) {
	router, store := newTestRouter()
	do(t, router, http.MethodPost, "/client_report", `{"clientId": 7, "macAddress": "X"}`)

	rec, env := do(t, router, http.MethodDelete, "/client_report/delete?clientId=7&macAddress=X", "")
	if rec.Code != http.StatusOK || env.Status != http.StatusOK || string(env.Data) != `{"deleted_count":1}` {
		t.Fatalf("Unexpected first delete %d/%d %s", rec.Code, env.Status, env.Data)
	}
	if len(store.Raw(repository.ClientCollection)) != 0 {
		t.Error("Expected document to be removed")
	}

	rec, env = do(t, router, http.MethodDelete, "/client_report/delete?clientId=7&macAddress=X", "")
	if rec.Code != http.StatusOK || env.Status != http.StatusNotFound {
		t.Errorf("Expected envelope 404 with transport 200, got %d/%d", rec.Code, env.Status)
	}
	if env.Message != "No matching client report found to delete" || string(env.Data) != "[]" {
		t.Errorf("Unexpected second delete %q %s", env.Message, env.Data)
	}

	rec, _ = do(t, router, http.MethodDelete, "/client_report/delete?clientId=x&macAddress=X", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for malformed clientId, got %d", rec.Code)
	}
}

func TestStoreFailuresAreGeneric(t *testing.T) {
	requests := []struct {
		method string
		target string
		body   string
	}{
		{http.MethodPost, "/user_report", `{"clientId": 1}`},
		{http.MethodPost, "/client_report", `{"clientId": 1}`},
		{http.MethodGet, "/user_report", ""},
		{http.MethodGet, "/client_report", ""},
		{http.MethodGet, "/check_report_exists?clientId=1&macAddress=A", ""},
		{http.MethodPut, "/client_report/update_validity", `{"clientId": 1, "macAddress": "A", "isValid": true}`},
		{http.MethodDelete, "/client_report/delete?clientId=1&macAddress=A", ""},
	}

	for _, req := range requests {
		t.Run(req.method+" "+req.target, func(t *testing.T) {
			router, store := newTestRouter()
			store.Err = servicetest.StoreFailure("mongodb://admin:secret@db:27017 unreachable")

			rec, env := do(t, router, req.method, req.target, req.body)
			if rec.Code != http.StatusInternalServerError || env.Status != http.StatusInternalServerError {
				t.Errorf("Expected 500, got %d/%d", rec.Code, env.Status)
			}
			if env.Message != msgDatabaseError {
				t.Errorf("Expected generic message, got %q", env.Message)
			}
			if strings.Contains(rec.Body.String(), "secret") {
				t.Error("Store detail leaked to caller")
			}
		})
	}
}

func TestUnexpectedFailure(t *testing.T) {
	router, store := newTestRouter()
	store.Err = errors.New("decoder exploded")

	rec, env := do(t, router, http.MethodGet, "/user_report", "")
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("Expected 500, got %d", rec.Code)
	}
	if env.Message != "Error fetching user reports" {
		t.Errorf("Unexpected message %q", env.Message)
	}
	if strings.Contains(env.Message, "exploded") {
		t.Error("Raw error leaked to caller")
	}
}

func TestHealthAndFallbacks(t *testing.T) {
	router, store := newTestRouter()

	if rec, _ := do(t, router, http.MethodGet, "/health/live", ""); rec.Code != http.StatusOK {
		t.Errorf("live: got %d", rec.Code)
	}
	if rec, _ := do(t, router, http.MethodGet, "/health/ready", ""); rec.Code != http.StatusOK {
		t.Errorf("ready: got %d", rec.Code)
	}

	store.Err = servicetest.StoreFailure("ping")
	if rec, env := do(t, router, http.MethodGet, "/health/ready", ""); rec.Code != http.StatusServiceUnavailable || env.Status != http.StatusServiceUnavailable {
		t.Errorf("ready with store down: got %d/%d", rec.Code, env.Status)
	}

	if rec, env := do(t, router, http.MethodGet, "/nope", ""); rec.Code != http.StatusNotFound || env.Status != http.StatusNotFound {
		t.Errorf("unknown route: got %d/%d", rec.Code, env.Status)
	}
	if rec, _ := do(t, router, http.MethodPatch, "/user_report", ""); rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("wrong method: got %d", rec.Code)
	}
}

func TestRequestIDHeader(t *testing.T) {
	router, _ := newTestRouter()

	req := httptest.NewRequest(http.MethodGet, "/health/live", nil)
	req.Header.Set(requestIDHeader, "fixed-id")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if got := rec.Header().Get(requestIDHeader); got != "fixed-id" {
		t.Errorf("Expected request id to be echoed, got %q", got)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	if rec.Header().Get(requestIDHeader) == "" {
		t.Error("Expected generated request id")
	}
}

func TestMetricsEndpoint(t *testing.T) {
	router, _ := newTestRouter()
	do(t, router, http.MethodGet, "/user_report", "")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /metrics = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `http_requests_total{method="GET",route="/user_report",status="200"}`) {
		t.Error("Expected request counter for /user_report")
	}
}

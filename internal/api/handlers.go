package api

import (
	"fmt"
	"net/http"

	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/czentrix/screenrecording-report/internal/repository"
	"github.com/czentrix/screenrecording-report/internal/response"
	"github.com/czentrix/screenrecording-report/internal/service"
	"github.com/czentrix/screenrecording-report/internal/validator"
)

// Handler serves the report endpoints
type Handler struct {
	reports   *service.ReportService
	validator *validator.Validator
}

// NewHandler creates a new report handler
func NewHandler(reports *service.ReportService, v *validator.Validator) *Handler {
	return &Handler{reports: reports, validator: v}
}

// collectionNoun is the human label used in response messages.
var collectionNoun = map[repository.Collection]string{
	repository.UserCollection:   "user",
	repository.ClientCollection: "client",
}

// AddUserReport handles POST /user_report
func (h *Handler) AddUserReport(w http.ResponseWriter, r *http.Request) {
	h.addReport(w, r, repository.UserCollection)
}

// AddClientReport handles POST /client_report
func (h *Handler) AddClientReport(w http.ResponseWriter, r *http.Request) {
	h.addReport(w, r, repository.ClientCollection)
}

// GetUserReports handles GET /user_report
func (h *Handler) GetUserReports(w http.ResponseWriter, r *http.Request) {
	h.listReports(w, r, repository.UserCollection)
}

// GetClientReports handles GET /client_report
func (h *Handler) GetClientReports(w http.ResponseWriter, r *http.Request) {
	h.listReports(w, r, repository.ClientCollection)
}

func (h *Handler) addReport(w http.ResponseWriter, r *http.Request, c repository.Collection) {
	noun := collectionNoun[c]
	operation := "add_" + noun + "_report"
	failure := fmt.Sprintf("Error inserting %s report", noun)

	doc, err := decodeDocument(r)
	if err != nil {
		writeError(w, r, operation, failure, err)
		return
	}

	id, err := h.reports.InsertReport(r.Context(), c, doc)
	if err != nil {
		writeError(w, r, operation, failure, err)
		return
	}

	writeEnvelope(w, r, http.StatusOK, response.Build(http.StatusOK,
		fmt.Sprintf("%s report inserted successfully", capitalize(noun)),
		map[string]interface{}{"inserted_id": id}))
}

func (h *Handler) listReports(w http.ResponseWriter, r *http.Request, c repository.Collection) {
	noun := collectionNoun[c]

	docs, err := h.reports.ListReports(r.Context(), c)
	if err != nil {
		writeError(w, r, "get_"+noun+"_report", fmt.Sprintf("Error fetching %s reports", noun), err)
		return
	}

	message := fmt.Sprintf("No %s reports found", noun)
	if len(docs) > 0 {
		message = fmt.Sprintf("Found %d %s reports", len(docs), noun)
	}
	writeEnvelope(w, r, http.StatusOK, response.Build(http.StatusOK, message, docs))
}

// CheckReportExists handles GET /check_report_exists
func (h *Handler) CheckReportExists(w http.ResponseWriter, r *http.Request) {
	const operation, failure = "check_report_exists", "Error checking record"

	query := r.URL.Query()
	key, err := h.validator.ParseReportKey(query.Get("clientId"), query.Get("macAddress"))
	if err != nil {
		writeError(w, r, operation, failure, badRequest(validator.ErrInvalidReportKey.Error(), err))
		return
	}

	result, err := h.reports.CheckExists(r.Context(), key)
	if err != nil {
		writeError(w, r, operation, failure, err)
		return
	}

	message := "No matching record found"
	switch result.Collection {
	case service.UserCollectionLabel:
		message = "Record found in user collection"
	case service.ClientCollectionLabel:
		message = "Record found in client collection"
	}
	writeEnvelope(w, r, http.StatusOK, response.Build(http.StatusOK, message, result))
}

// UpdateClientReportValidity handles PUT /client_report/update_validity
func (h *Handler) UpdateClientReportValidity(w http.ResponseWriter, r *http.Request) {
	const operation, failure = "update_client_report_is_valid", "Error updating client report"
	invalid := validator.ErrInvalidValidityUpdate.Error()

	body, err := readBody(r)
	if err != nil {
		writeError(w, r, operation, failure, err)
		return
	}
	if len(body) == 0 {
		writeError(w, r, operation, failure, badRequest(invalid, nil))
		return
	}

	var req validator.UpdateValidityRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, r, operation, failure, badRequest(invalid, err))
		return
	}
	if err := h.validator.ValidateUpdateValidity(req); err != nil {
		writeError(w, r, operation, failure, badRequest(invalid, err))
		return
	}

	result, err := h.reports.UpdateValidity(r.Context(), req.Key(), *req.IsValid)
	if err != nil {
		writeError(w, r, operation, failure, err)
		return
	}

	if result.Matched == 0 {
		writeEnvelope(w, r, http.StatusOK, response.Build(http.StatusNotFound, "No matching client report found to update", nil))
		return
	}
	writeEnvelope(w, r, http.StatusOK, response.Build(http.StatusOK, "Client report updated successfully",
		map[string]interface{}{"updated_count": result.Modified}))
}

// DeleteClientReport handles DELETE /client_report/delete
func (h *Handler) DeleteClientReport(w http.ResponseWriter, r *http.Request) {
	const operation, failure = "delete_client_report", "Error deleting client report"

	query := r.URL.Query()
	key, err := h.validator.ParseReportKey(query.Get("clientId"), query.Get("macAddress"))
	if err != nil {
		writeError(w, r, operation, failure, badRequest(validator.ErrInvalidReportKey.Error(), err))
		return
	}

	result, err := h.reports.DeleteClientReport(r.Context(), key)
	if err != nil {
		writeError(w, r, operation, failure, err)
		return
	}

	if result.Deleted == 0 {
		writeEnvelope(w, r, http.StatusOK, response.Build(http.StatusNotFound, "No matching client report found to delete", nil))
		return
	}
	writeEnvelope(w, r, http.StatusOK, response.Build(http.StatusOK, "Client report deleted successfully",
		map[string]interface{}{"deleted_count": result.Deleted}))
}

// HealthLive reports that the process is serving requests
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	writeEnvelope(w, r, http.StatusOK, response.Build(http.StatusOK, "ok", nil))
}

// HealthReady reports whether the document store is reachable
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	if err := h.reports.Ping(r.Context()); err != nil {
		loggerFrom(r.Context()).Warn("readiness check failed", zap.Error(err))
		writeEnvelope(w, r, http.StatusServiceUnavailable,
			response.Build(http.StatusServiceUnavailable, "Document store unavailable", nil))
		return
	}
	writeEnvelope(w, r, http.StatusOK, response.Build(http.StatusOK, "ready", nil))
}

func notFound(w http.ResponseWriter, r *http.Request) {
	writeEnvelope(w, r, http.StatusNotFound, response.Build(http.StatusNotFound, "Not Found", nil))
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeEnvelope(w, r, http.StatusMethodNotAllowed, response.Build(http.StatusMethodNotAllowed, "Method Not Allowed", nil))
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return string(s[0]-'a'+'A') + s[1:]
}

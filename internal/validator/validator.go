package validator

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	playground "github.com/go-playground/validator/v10"

	"github.com/czentrix/screenrecording-report/internal/db"
)

var (
	// ErrInvalidValidityUpdate is returned when an update_validity body lacks a required field
	ErrInvalidValidityUpdate = errors.New("clientId, macAddress, and boolean isValid are required")
	// ErrInvalidReportKey is returned when clientId/macAddress query parameters are missing or malformed
	ErrInvalidReportKey = errors.New("integer clientId and macAddress are required")
)

// UpdateValidityRequest is the body of a validity update.
// ClientID is a pointer so that a clientId of 0 counts as present.
type UpdateValidityRequest struct {
	ClientID   *int64 `json:"clientId" validate:"required"`
	MacAddress string `json:"macAddress" validate:"required"`
	IsValid    *bool  `json:"isValid" validate:"required"`
}

// Key returns the natural key addressed by the request
func (r UpdateValidityRequest) Key() db.ReportKey {
	return db.ReportKey{ClientID: *r.ClientID, MacAddress: r.MacAddress}
}

// Validator checks request inputs
type Validator struct {
	validate *playground.Validate
}

// NewValidator creates a new validator
func NewValidator() *Validator {
	return &Validator{validate: playground.New()}
}

// ValidateUpdateValidity checks that every field of req is present
func (v *Validator) ValidateUpdateValidity(req UpdateValidityRequest) error {
	if err := v.validate.Struct(req); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidValidityUpdate, err)
	}
	return nil
}

// ParseReportKey builds a report key from raw query parameter values
func (v *Validator) ParseReportKey(clientID, macAddress string) (db.ReportKey, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(clientID), 10, 64)
	if err != nil {
		return db.ReportKey{}, fmt.Errorf("%w: clientId: %v", ErrInvalidReportKey, err)
	}
	if err := v.validate.Var(macAddress, "required"); err != nil {
		return db.ReportKey{}, fmt.Errorf("%w: macAddress: %v", ErrInvalidReportKey, err)
	}
	return db.ReportKey{ClientID: id, MacAddress: macAddress}, nil
}

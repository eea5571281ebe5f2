package db

import (
	"go.mongodb.org/mongo-driver/bson"
)

// Document is a schema-less report as submitted by the caller
type Document = bson.M

// ReportKey is the natural key of a report
type ReportKey struct {
	ClientID   int64
	MacAddress string
}

// Filter returns the store filter matching k
func (k ReportKey) Filter() bson.D {
	return bson.D{
		{Key: FieldClientID, Value: k.ClientID},
		{Key: FieldMacAddress, Value: k.MacAddress},
	}
}

// UpdateResult reports how many documents an update matched and changed
type UpdateResult struct {
	Matched  int64
	Modified int64
}

// DeleteResult reports how many documents a delete removed
type DeleteResult struct {
	Deleted int64
}

const (
	FieldID         = "_id"
	FieldClientID   = "clientId"
	FieldMacAddress = "macAddress"
	FieldIsValid    = "isValid"
)

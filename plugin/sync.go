package plugin

import (
	"encoding/json"

	"github.com/finbridge/finbridge/errors"
)

// Failure builds the SyncResult for a failed sync, carrying the error's
// taxonomy name so callers can bucket failures without string matching.
func Failure(err error) *SyncResult {
	return &SyncResult{
		Success:   false,
		Error:     err.Error(),
		ErrorType: errors.ErrorType(err),
	}
}

// DecodeRecord converts a generic sync record into a typed wire struct
// through its JSON tags.
func DecodeRecord(record map[string]interface{}, out interface{}) error {
	raw, err := json.Marshal(record)
	if err != nil {
		return errors.Mark(errors.Wrap(err, "encode record"), errors.ErrValidation)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return errors.Mark(errors.Wrap(err, "decode record"), errors.ErrValidation)
	}
	return nil
}

// EncodeRecord converts a typed wire struct into the generic record shape
// carried by SyncPayload.
func EncodeRecord(in interface{}) (map[string]interface{}, error) {
	raw, err := json.Marshal(in)
	if err != nil {
		return nil, errors.Mark(errors.Wrap(err, "encode record"), errors.ErrValidation)
	}
	var record map[string]interface{}
	if err := json.Unmarshal(raw, &record); err != nil {
		return nil, errors.Mark(errors.Wrap(err, "decode record"), errors.ErrValidation)
	}
	return record, nil
}

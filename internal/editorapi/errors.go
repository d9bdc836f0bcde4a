package editorapi

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Fallback texts used when the service gives no human-readable message.
const (
	genericFetchMessage    = "request to editing service failed"
	genericMutationMessage = "editing service rejected the operation"
)

// FetchError is a network or HTTP failure on any read operation.
type FetchError struct {
	Status  int    // HTTP status, 0 for transport failures
	Message string // short human-readable message
	Err     error  // underlying transport error, when any
}

func (e *FetchError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("fetch failed (status %d): %s", e.Status, e.Message)
	}
	return fmt.Sprintf("fetch failed: %s", e.Message)
}

func (e *FetchError) Unwrap() error { return e.Err }

// MutationError is a create/restore/edit-command failure reported by the
// service: an unsuccessful status or an explicit success=false payload.
type MutationError struct {
	Status  int
	Message string
	Err     error
}

func (e *MutationError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("mutation failed (status %d): %s", e.Status, e.Message)
	}
	return fmt.Sprintf("mutation failed: %s", e.Message)
}

func (e *MutationError) Unwrap() error { return e.Err }

// UserMessage extracts the short message to surface to a person. Falls back
// to a generic text for unrecognized errors.
func UserMessage(err error) string {
	var fe *FetchError
	if errors.As(err, &fe) && fe.Message != "" {
		return fe.Message
	}
	var me *MutationError
	if errors.As(err, &me) && me.Message != "" {
		return me.Message
	}
	if err != nil {
		return genericFetchMessage
	}
	return ""
}

// parseErrorMessage pulls a message out of an error response body. The
// service reports either {"detail": ...}, {"message": ...} or {"error": ...}.
func parseErrorMessage(body []byte, fallback string) string {
	var payload struct {
		Detail  string `json:"detail"`
		Message string `json:"message"`
		ErrMsg  string `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		switch {
		case payload.Detail != "":
			return payload.Detail
		case payload.Message != "":
			return payload.Message
		case payload.ErrMsg != "":
			return payload.ErrMsg
		}
	}
	return fallback
}

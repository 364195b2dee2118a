package audit

import (
	"encoding/json"
	"time"
)

// TimestampFormat is the time format used for journal timestamps.
const TimestampFormat = time.RFC3339Nano

// eventJSON is the wire form of AuditEvent. Optional strings are pointers so
// empty values are omitted.
type eventJSON struct {
	Timestamp       string            `json:"timestamp"`
	RunID           RunID             `json:"runId"`
	EventType       EventType         `json:"eventType"`
	Status          OperationStatus   `json:"status"`
	SourcePath      *string           `json:"sourcePath,omitempty"`
	DestinationPath *string           `json:"destinationPath,omitempty"`
	ReasonCode      *ReasonCode       `json:"reasonCode,omitempty"`
	ErrorDetails    *ErrorDetails     `json:"errorDetails,omitempty"`
	Metadata        map[string]string `json:"metadata,omitempty"`
}

// MarshalJSON implements json.Marshaler for AuditEvent.
func (e AuditEvent) MarshalJSON() ([]byte, error) {
	ej := eventJSON{
		Timestamp:    e.Timestamp.UTC().Format(TimestampFormat),
		RunID:        e.RunID,
		EventType:    e.EventType,
		Status:       e.Status,
		ErrorDetails: e.ErrorDetails,
		Metadata:     e.Metadata,
	}
	if e.SourcePath != "" {
		ej.SourcePath = &e.SourcePath
	}
	if e.DestinationPath != "" {
		ej.DestinationPath = &e.DestinationPath
	}
	if e.ReasonCode != "" {
		rc := e.ReasonCode
		ej.ReasonCode = &rc
	}
	return json.Marshal(ej)
}

// UnmarshalJSON implements json.Unmarshaler for AuditEvent.
func (e *AuditEvent) UnmarshalJSON(data []byte) error {
	var ej eventJSON
	if err := json.Unmarshal(data, &ej); err != nil {
		return err
	}

	t, err := time.Parse(TimestampFormat, ej.Timestamp)
	if err != nil {
		return err
	}

	e.Timestamp = t
	e.RunID = ej.RunID
	e.EventType = ej.EventType
	e.Status = ej.Status
	e.ErrorDetails = ej.ErrorDetails
	e.Metadata = ej.Metadata

	if ej.SourcePath != nil {
		e.SourcePath = *ej.SourcePath
	}
	if ej.DestinationPath != nil {
		e.DestinationPath = *ej.DestinationPath
	}
	if ej.ReasonCode != nil {
		e.ReasonCode = *ej.ReasonCode
	}
	return nil
}

// UnmarshalJSONLine unmarshals one journal line.
func UnmarshalJSONLine(data []byte) (*AuditEvent, error) {
	var e AuditEvent
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, err
	}
	return &e, nil
}

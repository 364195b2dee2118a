package audit

import (
	"strings"
	"testing"
	"time"
)

func TestAuditEvent_JSONOmitsEmptyFields(t *testing.T) {
	event := AuditEvent{
		Timestamp: time.Date(2024, 3, 9, 14, 5, 30, 123456789, time.UTC),
		RunID:     "run-1",
		EventType: EventRunStart,
		Status:    StatusSuccess,
	}
	data, err := event.MarshalJSON()
	if err != nil {
		t.Fatalf("MarshalJSON failed: %v", err)
	}

	line := string(data)
	for _, key := range []string{"sourcePath", "destinationPath", "reasonCode", "errorDetails", "metadata"} {
		if strings.Contains(line, key) {
			t.Errorf("expected %q to be omitted: %s", key, line)
		}
	}
	if !strings.Contains(line, `"timestamp":"2024-03-09T14:05:30.123456789Z"`) {
		t.Errorf("unexpected timestamp encoding: %s", line)
	}
}

func TestUnmarshalJSONLine(t *testing.T) {
	line := []byte(`{"timestamp":"2024-03-09T14:05:30Z","runId":"run-1","eventType":"DIR_DELETE","status":"SUCCESS","sourcePath":"/tree/a","reasonCode":"SWEPT"}`)

	event, err := UnmarshalJSONLine(line)
	if err != nil {
		t.Fatalf("UnmarshalJSONLine failed: %v", err)
	}
	if event.EventType != EventDirDelete || event.SourcePath != "/tree/a" || event.ReasonCode != ReasonSwept {
		t.Errorf("unexpected event: %+v", event)
	}
	if event.DestinationPath != "" {
		t.Errorf("DestinationPath = %q, want empty", event.DestinationPath)
	}
	if !event.Timestamp.Equal(time.Date(2024, 3, 9, 14, 5, 30, 0, time.UTC)) {
		t.Errorf("unexpected timestamp %v", event.Timestamp)
	}
}

func TestUnmarshalJSONLine_BadTimestamp(t *testing.T) {
	if _, err := UnmarshalJSONLine([]byte(`{"timestamp":"yesterday","runId":"r"}`)); err == nil {
		t.Error("expected an error for an unparseable timestamp")
	}
}

package ingestion_test

import (
	"encoding/json"
	"testing"
	"time"

	"coverpool/internal/event"
	"coverpool/internal/ingestion"
)

func rawFromJSON(t *testing.T, v interface{}) ingestion.RawEvent {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return ingestion.RawEvent{
		Subject:   "test",
		Data:      data,
		Timestamp: time.Now(),
		AckFunc:   func() {},
		NakFunc:   func() {},
	}
}

func TestParseContribution(t *testing.T) {
	payload := map[string]interface{}{
		"command_id":   "550e8400-e29b-41d4-a716-446655440000",
		"caller_id":    "660e8400-e29b-41d4-a716-446655440001",
		"amount":       int64(1_000_000),
		"sequence":     int64(7),
		"timestamp_us": int64(1700000000000000),
	}

	raw := rawFromJSON(t, payload)
	evt, err := ingestion.ParseRawEvent(raw, "ContributionReceived")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	cr, ok := evt.(*event.ContributionReceived)
	if !ok {
		t.Fatalf("expected *event.ContributionReceived, got %T", evt)
	}

	if cr.Amount != 1_000_000 {
		t.Errorf("amount: got %d, want 1_000_000", cr.Amount)
	}
	if cr.Sequence != 7 {
		t.Errorf("sequence: got %d, want 7", cr.Sequence)
	}
	if cr.Timestamp != 1700000000000000 {
		t.Errorf("timestamp: got %d, want 1700000000000000", cr.Timestamp)
	}
	if cr.EventType() != event.EventTypeContributionReceived {
		t.Errorf("event type: got %v, want ContributionReceived", cr.EventType())
	}
	if cr.IdempotencyKey() != "550e8400-e29b-41d4-a716-446655440000" {
		t.Errorf("idempotency key: got %s", cr.IdempotencyKey())
	}
}

func TestParsePurchase(t *testing.T) {
	payload := map[string]interface{}{
		"command_id":   "550e8400-e29b-41d4-a716-446655440000",
		"caller_id":    "660e8400-e29b-41d4-a716-446655440001",
		"amount":       int64(50_000),
		"premium":      int64(400),
		"sequence":     int64(3),
		"timestamp_us": int64(1700000000000000),
	}

	raw := rawFromJSON(t, payload)
	evt, err := ingestion.ParseRawEvent(raw, "PolicyPurchase")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	pp, ok := evt.(*event.PolicyPurchase)
	if !ok {
		t.Fatalf("expected *event.PolicyPurchase, got %T", evt)
	}

	if pp.Amount != 50_000 {
		t.Errorf("amount: got %d, want 50_000", pp.Amount)
	}
	if pp.Premium != 400 {
		t.Errorf("premium: got %d, want 400", pp.Premium)
	}
}

func TestParseClaim(t *testing.T) {
	payload := map[string]interface{}{
		"command_id":     "550e8400-e29b-41d4-a716-446655440000",
		"caller_id":      "660e8400-e29b-41d4-a716-446655440001",
		"beneficiary_id": "770e8400-e29b-41d4-a716-446655440002",
		"amount":         int64(10_000),
		"sequence":       int64(9),
		"timestamp_us":   int64(1700000000000000),
	}

	raw := rawFromJSON(t, payload)
	evt, err := ingestion.ParseRawEvent(raw, "ClaimPayout")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	cp, ok := evt.(*event.ClaimPayout)
	if !ok {
		t.Fatalf("expected *event.ClaimPayout, got %T", evt)
	}

	if cp.BeneficiaryID.String() != "770e8400-e29b-41d4-a716-446655440002" {
		t.Errorf("beneficiary: got %s", cp.BeneficiaryID)
	}
	if cp.Amount != 10_000 {
		t.Errorf("amount: got %d, want 10_000", cp.Amount)
	}
}

func TestParseRefund(t *testing.T) {
	payload := map[string]interface{}{
		"command_id":   "550e8400-e29b-41d4-a716-446655440000",
		"caller_id":    "660e8400-e29b-41d4-a716-446655440001",
		"recipient_id": "770e8400-e29b-41d4-a716-446655440002",
		"amount":       int64(25_000),
		"sequence":     int64(4),
		"timestamp_us": int64(1700000000000000),
	}

	raw := rawFromJSON(t, payload)
	evt, err := ingestion.ParseRawEvent(raw, "ContributionRefund")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	cr, ok := evt.(*event.ContributionRefund)
	if !ok {
		t.Fatalf("expected *event.ContributionRefund, got %T", evt)
	}

	if cr.RecipientID.String() != "770e8400-e29b-41d4-a716-446655440002" {
		t.Errorf("recipient: got %s", cr.RecipientID)
	}
	if cr.Amount != 25_000 {
		t.Errorf("amount: got %d, want 25_000", cr.Amount)
	}
}

func TestParsePolicyActions(t *testing.T) {
	payload := map[string]interface{}{
		"command_id":   "550e8400-e29b-41d4-a716-446655440000",
		"caller_id":    "660e8400-e29b-41d4-a716-446655440001",
		"sequence":     int64(1),
		"timestamp_us": int64(1700000000000000),
	}

	cases := []struct {
		eventType string
		want      event.EventType
	}{
		{"PolicyCancel", event.EventTypePolicyCancel},
		{"PolicyPause", event.EventTypePolicyPause},
		{"PolicyDeactivate", event.EventTypePolicyDeactivate},
		{"PoolFreeze", event.EventTypePoolFreeze},
	}

	for _, tc := range cases {
		raw := rawFromJSON(t, payload)
		evt, err := ingestion.ParseRawEvent(raw, tc.eventType)
		if err != nil {
			t.Fatalf("%s: parse failed: %v", tc.eventType, err)
		}
		if evt.EventType() != tc.want {
			t.Errorf("%s: event type got %v, want %v", tc.eventType, evt.EventType(), tc.want)
		}
	}
}

func TestParseParamUpdate(t *testing.T) {
	payload := map[string]interface{}{
		"command_id":   "550e8400-e29b-41d4-a716-446655440000",
		"caller_id":    "660e8400-e29b-41d4-a716-446655440001",
		"param":        "premium_rate",
		"value":        int64(300),
		"sequence":     int64(2),
		"timestamp_us": int64(1700000000000000),
	}

	raw := rawFromJSON(t, payload)
	evt, err := ingestion.ParseRawEvent(raw, "ParamUpdate")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	pu, ok := evt.(*event.ParamUpdate)
	if !ok {
		t.Fatalf("expected *event.ParamUpdate, got %T", evt)
	}

	if pu.Param != event.ParamPremiumRate {
		t.Errorf("param: got %s, want premium_rate", pu.Param)
	}
	if pu.Value != 300 {
		t.Errorf("value: got %d, want 300", pu.Value)
	}
}

func TestParseParamUpdate_UnknownParam_Fails(t *testing.T) {
	payload := map[string]interface{}{
		"command_id":   "550e8400-e29b-41d4-a716-446655440000",
		"caller_id":    "660e8400-e29b-41d4-a716-446655440001",
		"param":        "oracle_address",
		"value":        int64(1),
		"sequence":     int64(2),
		"timestamp_us": int64(1700000000000000),
	}

	raw := rawFromJSON(t, payload)
	if _, err := ingestion.ParseRawEvent(raw, "ParamUpdate"); err == nil {
		t.Fatal("expected error for unknown pool parameter")
	}
}

func TestParseUnknownEventType_Fails(t *testing.T) {
	raw := ingestion.RawEvent{Data: []byte(`{}`)}
	_, err := ingestion.ParseRawEvent(raw, "NonExistentType")
	if err == nil {
		t.Fatal("expected error for unknown event type")
	}
}

func TestParseInvalidJSON_Fails(t *testing.T) {
	raw := ingestion.RawEvent{Data: []byte(`{invalid json`)}
	_, err := ingestion.ParseRawEvent(raw, "ContributionReceived")
	if err == nil {
		t.Fatal("expected error for invalid JSON")
	}
}

func TestParseInvalidUUID_Fails(t *testing.T) {
	payload := map[string]interface{}{
		"command_id":   "not-a-uuid",
		"caller_id":    "also-not-a-uuid",
		"amount":       int64(1),
		"sequence":     int64(0),
		"timestamp_us": int64(0),
	}

	raw := rawFromJSON(t, payload)
	_, err := ingestion.ParseRawEvent(raw, "ContributionReceived")
	if err == nil {
		t.Fatal("expected error for invalid UUID")
	}
}

func TestEventTypeForSubject(t *testing.T) {
	subjects := ingestion.DefaultSubjects()

	et, err := ingestion.EventTypeForSubject("cover.commands.fund", subjects)
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if et != "ContributionReceived" {
		t.Errorf("got %s, want ContributionReceived", et)
	}

	if _, err := ingestion.EventTypeForSubject("cover.commands.nonsense", subjects); err == nil {
		t.Fatal("expected error for unknown subject")
	}
}

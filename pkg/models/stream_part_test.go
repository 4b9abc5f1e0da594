package models

import (
	"encoding/json"
	"testing"
)

func TestStartPart(t *testing.T) {
	p := StartPart()
	if p.Type != PartStart {
		t.Errorf("Type = %q, want %q", p.Type, PartStart)
	}
}

func TestFinishPartCarriesReasonAndUsage(t *testing.T) {
	p := FinishPart(FinishToolCalls, Usage{InputTokens: 10, OutputTokens: 5})
	if p.Type != PartFinish || p.Finish == nil {
		t.Fatalf("unexpected part: %+v", p)
	}
	if p.Finish.Reason != FinishToolCalls || p.Finish.Usage.InputTokens != 10 {
		t.Errorf("unexpected finish payload: %+v", p.Finish)
	}
}

func TestErrorPartCarriesCodeSourceMessage(t *testing.T) {
	p := ErrorPart("provider_error", "provider", "boom")
	if p.Error == nil || p.Error.Code != "provider_error" || p.Error.Source != "provider" || p.Error.Message != "boom" {
		t.Errorf("unexpected error payload: %+v", p.Error)
	}
}

func TestFinishStepPart(t *testing.T) {
	p := FinishStepPart(3, Usage{InputTokens: 1, OutputTokens: 2}, FinishStop)
	if p.Type != PartFinishStep || p.FinishStep == nil {
		t.Fatalf("unexpected part: %+v", p)
	}
	if p.FinishStep.N != 3 || p.FinishStep.Reason != FinishStop {
		t.Errorf("unexpected finish_step payload: %+v", p.FinishStep)
	}
}

func TestUnknownPartRoundTripsThroughJSON(t *testing.T) {
	payload := json.RawMessage(`{"foo":"bar"}`)
	p := UnknownPart("response.custom_event", payload)

	data, err := json.Marshal(p)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var decoded StreamPart
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if decoded.Type != PartUnknown || decoded.Unknown == nil {
		t.Fatalf("unexpected decoded part: %+v", decoded)
	}
	if decoded.Unknown.PartType != "response.custom_event" {
		t.Errorf("PartType = %q, want response.custom_event", decoded.Unknown.PartType)
	}
}

func TestOnlyOnePayloadFieldPopulatedPerType(t *testing.T) {
	p := StartStepPart(2)
	if p.StartStep == nil {
		t.Fatal("expected StartStep payload")
	}
	if p.Finish != nil || p.ToolCall != nil || p.TextDelta != nil {
		t.Errorf("expected only StartStep populated, got %+v", p)
	}
}

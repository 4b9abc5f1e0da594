package server

import "testing"

func TestValidateRequestFrameAcceptsWellFormedConnect(t *testing.T) {
	raw := []byte(`{"type":"req","id":"1","method":"connect","params":{"minProtocol":1,"maxProtocol":1,"client":{"id":"c1","version":"1.0","platform":"linux"}}}`)
	f := &frame{Type: "req", ID: "1", Method: "connect", Params: []byte(`{"minProtocol":1,"maxProtocol":1,"client":{"id":"c1","version":"1.0","platform":"linux"}}`)}
	if err := validateRequestFrame(raw, f); err != nil {
		t.Fatalf("unexpected validation error: %v", err)
	}
}

func TestValidateRequestFrameRejectsMissingMethod(t *testing.T) {
	raw := []byte(`{"type":"req","id":"1"}`)
	if err := validateRequestFrame(raw, &frame{Type: "req", ID: "1"}); err == nil {
		t.Fatal("expected validation error for missing method")
	}
}

func TestValidateSessionSendParamsRejectsEmptyText(t *testing.T) {
	raw := []byte(`{"type":"req","id":"2","method":"session.send","params":{"sessionId":"s1","text":""}}`)
	f := &frame{Type: "req", ID: "2", Method: "session.send", Params: []byte(`{"sessionId":"s1","text":""}`)}
	if err := validateRequestFrame(raw, f); err == nil {
		t.Fatal("expected validation error for empty text")
	}
}

func TestValidateSessionSendParamsAcceptsValidFrame(t *testing.T) {
	raw := []byte(`{"type":"req","id":"3","method":"session.send","params":{"sessionId":"s1","text":"hi"}}`)
	f := &frame{Type: "req", ID: "3", Method: "session.send", Params: []byte(`{"sessionId":"s1","text":"hi"}`)}
	if err := validateRequestFrame(raw, f); err != nil {
		t.Fatalf("unexpected validation error: %v", err)
	}
}

func TestValidateRequestFrameRejectsWrongType(t *testing.T) {
	raw := []byte(`{"type":"bogus","id":"1","method":"connect"}`)
	if err := validateRequestFrame(raw, &frame{Type: "bogus"}); err == nil {
		t.Fatal("expected validation error for non-req frame type")
	}
}

package server

import (
	"context"
	"testing"

	"github.com/mweinbach/agent-coworker-sub008/internal/agent"
	"github.com/mweinbach/agent-coworker-sub008/internal/session"
	"github.com/mweinbach/agent-coworker-sub008/pkg/models"
)

type stubProvider struct{}

func (stubProvider) Name() string                         { return "stub" }
func (stubProvider) Models() []agent.Model                { return []agent.Model{{ID: "stub-1"}} }
func (stubProvider) SupportsTools() bool                  { return false }
func (stubProvider) ReasoningMode() models.ReasoningMode   { return models.ReasoningModeSummary }
func (stubProvider) Stream(ctx context.Context, req agent.StepRequest, onPart func(models.StreamPart)) (agent.StepResult, error) {
	onPart(models.StartPart())
	onPart(models.FinishPart(models.FinishStop, models.Usage{}))
	return agent.StepResult{AssistantMessage: *models.NewAssistantMessage("m1", nil), StopReason: models.FinishStop}, nil
}

func newTestManager() *Manager {
	return New(Config{
		Providers: func(name string) (agent.LLMProvider, error) { return stubProvider{}, nil },
		TurnOptions: agent.TurnOptions{MaxSteps: 5},
	})
}

func TestManagerCreateSessionRegistersAndLooksUp(t *testing.T) {
	m := newTestManager()
	sess, err := m.createSession(session.Config{Provider: "stub", Model: "stub-1"})
	if err != nil {
		t.Fatalf("createSession: %v", err)
	}
	found, err := m.lookupSession(sess.ID)
	if err != nil {
		t.Fatalf("lookupSession: %v", err)
	}
	if found != sess {
		t.Error("lookupSession returned a different session")
	}
}

func TestManagerLookupUnknownSession(t *testing.T) {
	m := newTestManager()
	if _, err := m.lookupSession("nope"); err != ErrUnknownSession {
		t.Errorf("lookupSession(unknown) = %v, want ErrUnknownSession", err)
	}
}

func TestManagerDisposeSessionForgetsIt(t *testing.T) {
	m := newTestManager()
	sess, err := m.createSession(session.Config{Provider: "stub", Model: "stub-1"})
	if err != nil {
		t.Fatalf("createSession: %v", err)
	}
	if err := m.disposeSession(sess.ID, "test"); err != nil {
		t.Fatalf("disposeSession: %v", err)
	}
	if _, err := m.lookupSession(sess.ID); err != ErrUnknownSession {
		t.Errorf("lookupSession after dispose = %v, want ErrUnknownSession", err)
	}
	if sess.State() != session.StateDisposed {
		t.Errorf("session state = %v, want disposed", sess.State())
	}
}

func TestManagerCheckAuth(t *testing.T) {
	m := New(Config{Providers: func(string) (agent.LLMProvider, error) { return stubProvider{}, nil }})
	if !m.checkAuth("anything") {
		t.Error("checkAuth with no configured token should accept any token")
	}

	m2 := New(Config{AuthToken: "secret", Providers: func(string) (agent.LLMProvider, error) { return stubProvider{}, nil }})
	if m2.checkAuth("wrong") {
		t.Error("checkAuth should reject a mismatched token")
	}
	if !m2.checkAuth("secret") {
		t.Error("checkAuth should accept the configured token")
	}
}

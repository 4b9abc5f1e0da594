package session

import (
	"context"
	"testing"

	"github.com/mweinbach/agent-coworker-sub008/internal/agent"
	"github.com/mweinbach/agent-coworker-sub008/internal/eventbus"
	"github.com/mweinbach/agent-coworker-sub008/internal/humanchannel"
	"github.com/mweinbach/agent-coworker-sub008/pkg/models"
)

type stubProvider struct{}

func (stubProvider) Name() string                       { return "stub" }
func (stubProvider) Models() []agent.Model               { return nil }
func (stubProvider) SupportsTools() bool                 { return false }
func (stubProvider) ReasoningMode() models.ReasoningMode { return models.ReasoningModeSummary }
func (stubProvider) Stream(ctx context.Context, req agent.StepRequest, onPart func(models.StreamPart)) (agent.StepResult, error) {
	onPart(models.StartPart())
	text := models.NewTextPart("ok")
	onPart(models.FinishPart(models.FinishStop, models.Usage{}))
	return agent.StepResult{
		AssistantMessage: *models.NewAssistantMessage("m1", []models.AssistantPart{{Type: models.PartText, Text: &text}}),
		StopReason:       models.FinishStop,
	}, nil
}

func newTestSession(t *testing.T) (*Session, *eventbus.Bus) {
	t.Helper()
	bus := eventbus.New(nil)
	dispatcher := agent.NewToolDispatcher(humanchannel.New(), t.TempDir())
	adapter := agent.NewRuntimeAdapter(stubProvider{}, dispatcher)
	orchestrator := agent.NewTurnOrchestrator(adapter, agent.TurnOptions{MaxSteps: 5})
	sess := New("", Config{Provider: "stub", Model: "stub-1"}, bus, orchestrator)
	return sess, bus
}

func TestNewSessionStartsIdle(t *testing.T) {
	sess, _ := newTestSession(t)
	if sess.State() != StateIdle {
		t.Errorf("State() = %v, want idle", sess.State())
	}
	if sess.ID == "" {
		t.Error("expected a generated session id")
	}
}

func TestSendUserMessageAppendsUserAndAssistant(t *testing.T) {
	sess, _ := newTestSession(t)
	if err := sess.SendUserMessage(context.Background(), "hello", ""); err != nil {
		t.Fatalf("SendUserMessage: %v", err)
	}
	transcript := sess.Transcript()
	if len(transcript) != 2 {
		t.Fatalf("transcript length = %d, want 2 (user + assistant)", len(transcript))
	}
	if transcript[0].Role != models.RoleUser {
		t.Errorf("transcript[0].Role = %v, want user", transcript[0].Role)
	}
	if transcript[1].Role != models.RoleAssistant {
		t.Errorf("transcript[1].Role = %v, want assistant", transcript[1].Role)
	}
	if sess.State() != StateIdle {
		t.Errorf("State() after turn = %v, want idle", sess.State())
	}
}

func TestSendUserMessageBusyWhileRunning(t *testing.T) {
	sess, _ := newTestSession(t)
	sess.mu.Lock()
	sess.state = StateRunning
	sess.mu.Unlock()

	err := sess.SendUserMessage(context.Background(), "hello", "")
	if err != agent.ErrBusy {
		t.Errorf("SendUserMessage while running = %v, want ErrBusy", err)
	}
}

func TestDisposeIsTerminal(t *testing.T) {
	sess, _ := newTestSession(t)
	sess.Dispose("test shutdown")

	if sess.State() != StateDisposed {
		t.Fatalf("State() after dispose = %v, want disposed", sess.State())
	}

	err := sess.SendUserMessage(context.Background(), "hello", "")
	if err != agent.ErrSessionDisposed {
		t.Errorf("SendUserMessage after dispose = %v, want ErrSessionDisposed", err)
	}
}

func TestDisposeRejectsPendingHumanRequests(t *testing.T) {
	sess, _ := newTestSession(t)
	future, err := sess.HumanChannel.Ask("are you sure?")
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}

	sess.Dispose("shutting down")

	if _, err := future.Wait(); err != humanchannel.ErrSessionDisposed {
		t.Errorf("pending ask after dispose = %v, want ErrSessionDisposed", err)
	}
}

func TestResetClearsTranscriptAndEmitsTodos(t *testing.T) {
	sess, bus := newTestSession(t)
	sub := bus.Subscribe(sess.ID)
	defer sub.Cancel()

	if err := sess.SendUserMessage(context.Background(), "hello", ""); err != nil {
		t.Fatalf("SendUserMessage: %v", err)
	}
	if len(sess.Transcript()) == 0 {
		t.Fatal("expected a non-empty transcript before reset")
	}

	sess.Reset()
	if len(sess.Transcript()) != 0 {
		t.Errorf("transcript after Reset() = %d entries, want 0", len(sess.Transcript()))
	}

	var sawTodos bool
	for i := 0; i < 32; i++ {
		select {
		case evt := <-sub.Events():
			if evt.Kind == "todos" {
				sawTodos = true
			}
		default:
		}
		if sawTodos {
			break
		}
	}
	if !sawTodos {
		t.Error("expected a todos event after Reset()")
	}
}

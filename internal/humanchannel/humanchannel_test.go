package humanchannel

import (
	"testing"
	"time"

	"github.com/mweinbach/agent-coworker-sub008/pkg/models"
)

func waitApprove(t *testing.T, f *ApproveFuture) (bool, error) {
	t.Helper()
	type res struct {
		ok  bool
		err error
	}
	done := make(chan res, 1)
	go func() {
		ok, err := f.Wait()
		done <- res{ok, err}
	}()
	select {
	case r := <-done:
		return r.ok, r.err
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for approval future")
		return false, nil
	}
}

func TestApproveResolvesExactlyOnce(t *testing.T) {
	c := New()
	f, err := c.Approve("rm -rf /", true)
	if err != nil {
		t.Fatalf("Approve: %v", err)
	}

	c.ResolveApproval(f.RequestID(), true)
	c.ResolveApproval(f.RequestID(), false) // second resolve is a no-op

	approved, err := waitApprove(t, f)
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if !approved {
		t.Fatal("expected first resolution (true) to win")
	}
}

func TestResolveUnknownIDIsSilentlyIgnored(t *testing.T) {
	c := New()
	c.ResolveApproval("does-not-exist", true)
	c.ResolveAsk("does-not-exist", "answer")
	// No panic, no observable effect.
}

func TestDisposeAllResolvesEveryPendingRequest(t *testing.T) {
	c := New()
	f1, _ := c.Approve("ls", false)
	f2, err := c.Ask("continue?")
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}

	c.DisposeAll()

	if _, err := f1.Wait(); err != ErrSessionDisposed {
		t.Fatalf("expected ErrSessionDisposed, got %v", err)
	}
	if _, err := f2.Wait(); err != ErrSessionDisposed {
		t.Fatalf("expected ErrSessionDisposed, got %v", err)
	}
	if c.PendingCount() != 0 {
		t.Fatalf("expected no pending requests after dispose, got %d", c.PendingCount())
	}
}

func TestDisposeAllThenResolveIsNoOp(t *testing.T) {
	c := New()
	f, _ := c.Approve("ls", false)
	c.DisposeAll()
	c.ResolveApproval(f.RequestID(), true) // must not panic or double-send
}

func TestYoloShortCircuitsApproval(t *testing.T) {
	c := New()
	c.Yolo = true
	fired := false
	c.OnApprovalRequested = func(_ models.HumanRequest) { fired = true }

	f, err := c.Approve("rm -rf /", true)
	if err != nil {
		t.Fatalf("Approve: %v", err)
	}
	approved, err := waitApprove(t, f)
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if !approved {
		t.Fatal("expected yolo auto-approval")
	}
	if fired {
		t.Fatal("yolo must not emit an approval event")
	}
}

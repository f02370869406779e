package capability

import (
	"context"
	"errors"
	"log/slog"
	"testing"
)

func discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func TestProbe_AllAvailable(t *testing.T) {
	caps := Probe(context.Background(), discard(),
		Checker{Name: "retrieval", Check: func(_ context.Context) error { return nil }},
		Checker{Name: "speech", Check: func(_ context.Context) error { return nil }},
	)

	if !caps.Retrieval {
		t.Error("retrieval should be available")
	}
	if !caps.Speech {
		t.Error("speech should be available")
	}
}

func TestProbe_FailedCheckDisablesCapability(t *testing.T) {
	caps := Probe(context.Background(), discard(),
		Checker{Name: "retrieval", Check: func(_ context.Context) error {
			return errors.New("connection refused")
		}},
		Checker{Name: "speech", Check: func(_ context.Context) error { return nil }},
	)

	if caps.Retrieval {
		t.Error("retrieval should be unavailable")
	}
	if !caps.Speech {
		t.Error("speech should be available")
	}
}

func TestProbe_NilCheckCountsAsUnavailable(t *testing.T) {
	caps := Probe(context.Background(), discard(),
		Checker{Name: "retrieval"},
		Checker{Name: "speech"},
	)

	if caps.Retrieval || caps.Speech {
		t.Error("nil checks should report unavailable")
	}
}

func TestProbe_RespectsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	caps := Probe(ctx, discard(),
		Checker{Name: "retrieval", Check: func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		}},
		Checker{Name: "speech", Check: func(_ context.Context) error { return nil }},
	)

	if caps.Retrieval {
		t.Error("cancelled probe should report unavailable")
	}
	if !caps.Speech {
		t.Error("speech should still be probed after a failed probe")
	}
}

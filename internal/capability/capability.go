// Package capability probes optional backend dependencies at startup and
// reports which pipeline features are available.
//
// CreativeMate degrades gracefully: when the vector store is unreachable the
// chat pipeline simply skips knowledge-base retrieval, and when no
// speech-to-text engine is reachable voice input is acknowledged without a
// transcript. The probe result drives those decisions for the lifetime of the
// process.
package capability

import (
	"context"
	"log/slog"
	"time"
)

// probeTimeout is the maximum time a single capability probe may take before
// the context is cancelled.
const probeTimeout = 5 * time.Second

// Checker is a named capability probe. The Check function should return nil
// when the dependency is reachable and a non-nil error describing the failure
// otherwise.
type Checker struct {
	// Name is a short label for this probe (e.g. "retrieval", "speech").
	Name string

	// Check probes the dependency. It must respect context cancellation.
	Check func(ctx context.Context) error
}

// Capabilities reports which optional pipeline features are available.
type Capabilities struct {
	// Retrieval is true when the vector store answered the probe and
	// knowledge-base context can be attached to conversations.
	Retrieval bool

	// Speech is true when a speech-to-text engine answered the probe and
	// voice input can be transcribed.
	Speech bool
}

// Probe evaluates the given checkers sequentially, each under a
// [probeTimeout] deadline derived from ctx, and returns the resulting
// [Capabilities]. Failed probes are logged at warn level; a nil Check counts
// as unavailable.
func Probe(ctx context.Context, log *slog.Logger, retrieval, speech Checker) Capabilities {
	return Capabilities{
		Retrieval: run(ctx, log, retrieval),
		Speech:    run(ctx, log, speech),
	}
}

func run(ctx context.Context, log *slog.Logger, c Checker) bool {
	if c.Check == nil {
		log.Warn("capability not configured", "name", c.Name)
		return false
	}

	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	if err := c.Check(ctx); err != nil {
		log.Warn("capability unavailable", "name", c.Name, "error", err)
		return false
	}
	log.Info("capability available", "name", c.Name)
	return true
}

// Package normalize converts raw per-scanner output into canonical
// Finding records. Each scanner family has one Adapter; the gate and
// analytics core only ever see the canonical shape.
package normalize

import (
	"encoding/json"
	"time"

	"github.com/Masterminds/semver/v3"

	"github.com/mcpguard/mcpguard/pkg/errors"
	"github.com/mcpguard/mcpguard/pkg/finding"
)

// Submission is a raw scanner result envelope as received from an
// engine: which scanner produced it, the payload schema version it
// claims, and the opaque payload body.
type Submission struct {
	Scanner       string          `json:"scanner"`
	SchemaVersion string          `json:"schema_version"`
	Payload       json.RawMessage `json:"payload"`
}

// Adapter converts one scanner family's raw payload into canonical
// findings. Implementations must not leak scanner-specific fields into
// the output.
type Adapter interface {
	// Scanner returns the engine id the adapter handles.
	Scanner() string
	// Produce parses a raw payload into findings owned by scanID.
	Produce(payload []byte, scanID string, now time.Time) ([]finding.Finding, error)
	// SupportedSchema returns the semver constraint of payload schema
	// versions the adapter accepts.
	SupportedSchema() *semver.Constraints
}

// Normalizer dispatches submissions to the registered adapters.
type Normalizer struct {
	adapters map[string]Adapter
}

// New returns a Normalizer with the built-in scanner family adapters.
func New() *Normalizer {
	n := &Normalizer{adapters: make(map[string]Adapter)}
	n.Register(&MCPConfigAdapter{})
	n.Register(&ModelScanAdapter{})
	return n
}

// Register adds an adapter for its scanner id, replacing any previous
// registration.
func (n *Normalizer) Register(adapter Adapter) {
	n.adapters[adapter.Scanner()] = adapter
}

// Normalize validates a submission and produces canonical findings.
// Unknown scanners and unsupported schema versions are validation
// errors, never silently skipped.
func (n *Normalizer) Normalize(sub *Submission, scanID string, now time.Time) ([]finding.Finding, error) {
	const op = "normalize.Normalize"
	adapter, ok := n.adapters[sub.Scanner]
	if !ok {
		return nil, errors.Validationf(op, "no adapter registered for scanner %q", sub.Scanner)
	}

	version, err := semver.NewVersion(sub.SchemaVersion)
	if err != nil {
		return nil, errors.Validationf(op, "scanner %s reported invalid schema version %q", sub.Scanner, sub.SchemaVersion)
	}
	if !adapter.SupportedSchema().Check(version) {
		return nil, errors.Validationf(op, "scanner %s schema version %s outside supported range %s",
			sub.Scanner, sub.SchemaVersion, adapter.SupportedSchema())
	}

	return adapter.Produce(sub.Payload, scanID, now)
}

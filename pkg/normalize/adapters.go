package normalize

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/google/uuid"

	"github.com/mcpguard/mcpguard/pkg/finding"
	"github.com/mcpguard/mcpguard/pkg/severity"
)

// ScannerMCP and ScannerModel are the built-in scanner engine ids.
const (
	ScannerMCP   = "mcp"
	ScannerModel = "model"
)

var (
	mcpSchema   = mustConstraint(">= 1.0.0, < 2.0.0")
	modelSchema = mustConstraint(">= 1.0.0, < 3.0.0")
)

func mustConstraint(c string) *semver.Constraints {
	constraints, err := semver.NewConstraint(c)
	if err != nil {
		panic(err)
	}
	return constraints
}

// mcpIssue is one issue in the MCP configuration scanner's output.
type mcpIssue struct {
	RuleID   string `json:"rule_id"`
	Severity string `json:"severity"`
	Category string `json:"category"`
	Server   string `json:"server"`
	Path     string `json:"path"`
	Message  string `json:"message"`
	Fix      string `json:"fix"`
}

// mcpPayload is the MCP configuration scanner's result body.
type mcpPayload struct {
	Issues []mcpIssue `json:"issues"`
}

// MCPConfigAdapter normalizes MCP configuration scanner output.
type MCPConfigAdapter struct{}

func (a *MCPConfigAdapter) Scanner() string { return ScannerMCP }

func (a *MCPConfigAdapter) SupportedSchema() *semver.Constraints { return mcpSchema }

// Produce parses the MCP payload. Severity strings are normalized with
// the shared mapping, so unknown values degrade to info.
func (a *MCPConfigAdapter) Produce(payload []byte, scanID string, now time.Time) ([]finding.Finding, error) {
	var body mcpPayload
	if err := json.Unmarshal(payload, &body); err != nil {
		return nil, fmt.Errorf("failed to parse mcp scanner payload: %w", err)
	}

	findings := make([]finding.Finding, 0, len(body.Issues))
	for _, issue := range body.Issues {
		findings = append(findings, finding.Finding{
			ID:          uuid.NewString(),
			ScanID:      scanID,
			Severity:    severity.FromString(issue.Severity),
			Category:    issue.Category,
			Scanner:     ScannerMCP,
			Location:    fmt.Sprintf("%s:%s", issue.Server, issue.Path),
			Description: issue.Message,
			Remediation: issue.Fix,
			CreatedAt:   now,
		})
	}
	return findings, nil
}

// modelThreat is one detection in the ML-model scanner's output.
type modelThreat struct {
	Name       string  `json:"name"`
	Severity   string  `json:"severity"`
	CVSS       float64 `json:"cvss,omitempty"`
	Category   string  `json:"category"`
	Layer      string  `json:"layer"`
	Detail     string  `json:"detail"`
	Mitigation string  `json:"mitigation"`
}

// modelPayload is the ML-model scanner's result body.
type modelPayload struct {
	Threats []modelThreat `json:"threats"`
}

// ModelScanAdapter normalizes ML-model scanner output.
type ModelScanAdapter struct{}

func (a *ModelScanAdapter) Scanner() string { return ScannerModel }

func (a *ModelScanAdapter) SupportedSchema() *semver.Constraints { return modelSchema }

// Produce parses the model scanner payload. A CVSS score, when present,
// wins over the free-form severity string.
func (a *ModelScanAdapter) Produce(payload []byte, scanID string, now time.Time) ([]finding.Finding, error) {
	var body modelPayload
	if err := json.Unmarshal(payload, &body); err != nil {
		return nil, fmt.Errorf("failed to parse model scanner payload: %w", err)
	}

	findings := make([]finding.Finding, 0, len(body.Threats))
	for _, threat := range body.Threats {
		level := severity.FromString(threat.Severity)
		if threat.CVSS > 0 {
			level = severityFromCVSS(threat.CVSS)
		}
		findings = append(findings, finding.Finding{
			ID:          uuid.NewString(),
			ScanID:      scanID,
			Severity:    level,
			Category:    threat.Category,
			Scanner:     ScannerModel,
			Location:    threat.Layer,
			Description: threat.Detail,
			Remediation: threat.Mitigation,
			CreatedAt:   now,
		})
	}
	return findings, nil
}

// severityFromCVSS maps a CVSS v3 score to the canonical scale.
func severityFromCVSS(score float64) severity.Level {
	switch {
	case score >= 9.0:
		return severity.Critical
	case score >= 7.0:
		return severity.High
	case score >= 4.0:
		return severity.Medium
	case score > 0:
		return severity.Low
	default:
		return severity.Info
	}
}

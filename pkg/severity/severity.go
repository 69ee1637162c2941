// Package severity defines the ordered severity scale shared by every
// component that counts, weighs, or gates findings.
package severity

import "strings"

// Level is an ordered severity level. Critical is the highest.
type Level string

const (
	Critical Level = "critical"
	High     Level = "high"
	Medium   Level = "medium"
	Low      Level = "low"
	Info     Level = "info"
)

// Levels returns all severity levels ordered highest first.
func Levels() []Level {
	return []Level{Critical, High, Medium, Low, Info}
}

// String returns the string representation of the level.
func (l Level) String() string {
	return string(l)
}

// Rank returns the numeric rank of the level. Higher rank means higher
// severity; unknown levels rank below Info.
func (l Level) Rank() int {
	switch l {
	case Critical:
		return 5
	case High:
		return 4
	case Medium:
		return 3
	case Low:
		return 2
	case Info:
		return 1
	default:
		return 0
	}
}

// Weight returns the risk weight used by the risk scorer and the
// remediation prioritizer. Info findings carry no risk weight.
func (l Level) Weight() float64 {
	switch l {
	case Critical:
		return 4
	case High:
		return 3
	case Medium:
		return 2
	case Low:
		return 1
	default:
		return 0
	}
}

// Valid reports whether l is one of the five known levels.
func (l Level) Valid() bool {
	switch l {
	case Critical, High, Medium, Low, Info:
		return true
	}
	return false
}

// FromString normalizes severity strings produced by different scanner
// engines to a canonical Level. Unrecognized values map to Info so a
// misbehaving scanner can never gate a scan on its own.
func FromString(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "critical", "crit":
		return Critical
	case "high", "error", "severe":
		return High
	case "medium", "moderate", "warning", "warn":
		return Medium
	case "low":
		return Low
	default:
		return Info
	}
}

// Compare returns -1, 0, or 1 as a is lower than, equal to, or higher
// than b.
func Compare(a, b Level) int {
	ra, rb := a.Rank(), b.Rank()
	switch {
	case ra < rb:
		return -1
	case ra > rb:
		return 1
	default:
		return 0
	}
}

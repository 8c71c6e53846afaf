// internal/fetch/strategy.go
package fetch

import "strings"

// Verdict is what the escalation policy concludes about a direct fetch
type Verdict int

const (
	// VerdictUse means the direct HTML is good enough
	VerdictUse Verdict = iota

	// VerdictBlocked means direct failed or returned a bot challenge; the
	// direct HTML must not be used
	VerdictBlocked

	// VerdictShell means the direct HTML is an unrendered application shell;
	// rendering is preferred but the direct HTML remains a fallback
	VerdictShell
)

// String returns the string representation of the verdict
func (v Verdict) String() string {
	switch v {
	case VerdictUse:
		return "Use"
	case VerdictBlocked:
		return "Blocked"
	case VerdictShell:
		return "Shell"
	default:
		return "Unknown"
	}
}

// Judge classifies the outcome of a direct fetch
func Judge(res *Result, err error, escalateOnShell bool) Verdict {
	if err != nil || res == nil || strings.TrimSpace(res.HTML) == "" {
		return VerdictBlocked
	}
	if IsChallenge(res.HTML) {
		return VerdictBlocked
	}
	if escalateOnShell && LooksLikeShell(res.HTML) {
		return VerdictShell
	}
	return VerdictUse
}

// BlockedCause names why Judge found a direct fetch unusable: the fetch
// error itself, ErrEmptyBody or ErrBlocked for a challenge page.
func BlockedCause(res *Result, err error) error {
	switch {
	case err != nil:
		return err
	case res == nil || strings.TrimSpace(res.HTML) == "":
		return ErrEmptyBody
	default:
		return ErrBlocked
	}
}

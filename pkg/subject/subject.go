// Package subject derives routing subjects from domain events and matches
// them against NATS-style wildcard patterns.
//
// Subjects are lowercase dot-separated tokens: a fixed "event" prefix, a
// category token, then the fact tokens ("event.workflow.step_added"). In a
// pattern, "*" matches exactly one token and ">" (final token only) matches
// one or more trailing tokens. Wildcards occupy whole tokens; there are no
// partial-token wildcards.
package subject

import (
	"errors"
	"fmt"
	"strings"

	"github.com/flowmesh/flowmesh/pkg/events"
)

const (
	// Prefix is the first token of every derived subject.
	Prefix = "event"

	// TokenSeparator splits subjects and patterns into tokens.
	TokenSeparator = "."

	// WildcardToken matches exactly one subject token.
	WildcardToken = "*"

	// TailToken matches one or more trailing subject tokens. Only legal
	// as the final pattern token.
	TailToken = ">"
)

var (
	ErrEmptyPattern    = errors.New("pattern cannot be empty")
	ErrEmptyToken      = errors.New("pattern contains an empty token")
	ErrMisplacedTail   = errors.New("'>' is only legal as the final token")
	ErrPartialWildcard = errors.New("wildcards must occupy a whole token")
)

// ForEvent maps a domain event to its subject. The mapping is total and
// deterministic over the closed event set; an unhandled variant is a bug
// surfaced as an error.
func ForEvent(event events.Event) (string, error) {
	switch event.(type) {
	case events.WorkflowCreated, *events.WorkflowCreated:
		return "event.workflow.created", nil
	case events.StepAdded, *events.StepAdded:
		return "event.workflow.step_added", nil
	case events.StepsConnected, *events.StepsConnected:
		return "event.workflow.steps_connected", nil
	case events.StartStepSet, *events.StartStepSet:
		return "event.workflow.start_step_set", nil
	case events.EndStepMarked, *events.EndStepMarked:
		return "event.workflow.end_step_marked", nil
	case events.WorkflowValidated, *events.WorkflowValidated:
		return "event.workflow.validated", nil
	case events.WorkflowStarted, *events.WorkflowStarted:
		return "event.workflow.started", nil
	case events.StepCompleted, *events.StepCompleted:
		return "event.workflow.step_completed", nil
	case events.WorkflowPaused, *events.WorkflowPaused:
		return "event.workflow.paused", nil
	case events.WorkflowResumed, *events.WorkflowResumed:
		return "event.workflow.resumed", nil
	case events.WorkflowFailed, *events.WorkflowFailed:
		return "event.workflow.failed", nil
	case events.WorkflowCompleted, *events.WorkflowCompleted:
		return "event.workflow.completed", nil
	default:
		return "", fmt.Errorf("no subject mapping for event type %s", event.GetType())
	}
}

// ValidatePattern checks the wildcard grammar of a subscription pattern.
func ValidatePattern(pattern string) error {
	if pattern == "" {
		return ErrEmptyPattern
	}

	tokens := strings.Split(pattern, TokenSeparator)
	for i, token := range tokens {
		if token == "" {
			return ErrEmptyToken
		}

		if token == TailToken && i != len(tokens)-1 {
			return ErrMisplacedTail
		}

		if token != WildcardToken && token != TailToken &&
			(strings.Contains(token, WildcardToken) || strings.Contains(token, TailToken)) {
			return ErrPartialWildcard
		}
	}

	return nil
}

// Matches reports whether subject matches pattern.
//
// A trailing ">" requires at least one subject token beyond the pattern
// prefix (NATS convention): "event.workflow.>" does not match the bare
// subject "event.workflow".
func Matches(subject, pattern string) bool {
	if pattern == subject {
		return true
	}

	subjectTokens := strings.Split(subject, TokenSeparator)
	patternTokens := strings.Split(pattern, TokenSeparator)

	if last := len(patternTokens) - 1; patternTokens[last] == TailToken {
		if len(subjectTokens) < len(patternTokens) {
			return false
		}

		return tokensMatch(subjectTokens[:last], patternTokens[:last])
	}

	if len(subjectTokens) != len(patternTokens) {
		return false
	}

	return tokensMatch(subjectTokens, patternTokens)
}

func tokensMatch(subjectTokens, patternTokens []string) bool {
	if len(subjectTokens) != len(patternTokens) {
		return false
	}

	for i, token := range patternTokens {
		if token == WildcardToken {
			continue
		}

		if token != subjectTokens[i] {
			return false
		}
	}

	return true
}

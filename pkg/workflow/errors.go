package workflow

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ccmanuelf/kpi-operations-sub011/pkg/models"
)

var (
	// ErrInvalidTransition indicates the target status is not reachable from
	// the work order's current status under the tenant's configuration.
	ErrInvalidTransition = errors.New("transition not permitted")

	// ErrNoOpTransition indicates the work order is already in the requested
	// status. No-ops are rejected so the audit trail never records them.
	ErrNoOpTransition = errors.New("work order already in requested status")

	// ErrInvalidConfig indicates a workflow configuration violates a
	// structural rule and must not be activated.
	ErrInvalidConfig = errors.New("invalid workflow configuration")

	// ErrUnknownTriggerSource indicates a transition request named a trigger
	// source outside the accepted set.
	ErrUnknownTriggerSource = errors.New("unknown trigger source")

	// ErrPhaseNotReached indicates a phase-elapsed query over a work order
	// that has not entered the requested phase yet.
	ErrPhaseNotReached = errors.New("lifecycle phase not reached")

	// ErrUnknownPhase indicates a phase name outside the tracked lifecycle
	// phases.
	ErrUnknownPhase = errors.New("unknown lifecycle phase")
)

// InvalidTransitionError reports a rejected transition together with the
// targets that would have been accepted, so callers can surface them.
type InvalidTransitionError struct {
	From    *models.Status
	To      models.Status
	Allowed []models.Status
}

func (e *InvalidTransitionError) Error() string {
	from := "(unset)"
	if e.From != nil {
		from = string(*e.From)
	}

	allowed := make([]string, 0, len(e.Allowed))
	for _, s := range e.Allowed {
		allowed = append(allowed, string(s))
	}

	return fmt.Sprintf("transition from %s to %s not permitted (allowed: %s)",
		from, e.To, strings.Join(allowed, ", "))
}

func (e *InvalidTransitionError) Unwrap() error {
	return ErrInvalidTransition
}

// NoOpTransitionError reports a transition request whose target equals the
// work order's current status.
type NoOpTransitionError struct {
	Status models.Status
}

func (e *NoOpTransitionError) Error() string {
	return fmt.Sprintf("work order is already in status %s", e.Status)
}

func (e *NoOpTransitionError) Unwrap() error {
	return ErrNoOpTransition
}

// InvalidConfigError reports the first structural rule a candidate workflow
// configuration violates.
type InvalidConfigError struct {
	Rule   string
	Detail string
}

func (e *InvalidConfigError) Error() string {
	return fmt.Sprintf("invalid workflow configuration (%s): %s", e.Rule, e.Detail)
}

func (e *InvalidConfigError) Unwrap() error {
	return ErrInvalidConfig
}

func IsInvalidTransition(err error) bool {
	return errors.Is(err, ErrInvalidTransition)
}

func IsNoOpTransition(err error) bool {
	return errors.Is(err, ErrNoOpTransition)
}

func IsInvalidConfig(err error) bool {
	return errors.Is(err, ErrInvalidConfig)
}

func IsUnknownTriggerSource(err error) bool {
	return errors.Is(err, ErrUnknownTriggerSource)
}

func IsPhaseNotReached(err error) bool {
	return errors.Is(err, ErrPhaseNotReached)
}

func IsUnknownPhase(err error) bool {
	return errors.Is(err, ErrUnknownPhase)
}

package workflow

import (
	"slices"

	"github.com/ccmanuelf/kpi-operations-sub011/pkg/models"
)

// Validator answers transition questions against a tenant's workflow
// configuration. It is pure: all state comes in through the arguments, so a
// single Validator serves every tenant concurrently.
type Validator struct{}

func NewValidator() *Validator {
	return &Validator{}
}

// IsAllowed reports whether a work order currently in `from` may move to `to`
// under the given configuration. A nil `from` means the work order has never
// been transitioned; the only permitted target is then the start status.
// Self-transitions are never allowed, whatever the graph says.
func (v *Validator) IsAllowed(config *models.WorkflowConfig, from *models.Status, to models.Status) bool {
	if !config.HasStatus(to) {
		return false
	}

	if from == nil {
		return to == config.Start()
	}

	if *from == to {
		return false
	}

	return slices.Contains(config.SourcesFor(to), *from)
}

// AllowedTargets lists every status the work order may move to next, in
// vocabulary order. For an untransitioned work order this is just the start
// status. Self-edges are filtered out to stay consistent with IsAllowed.
func (v *Validator) AllowedTargets(config *models.WorkflowConfig, from *models.Status) []models.Status {
	if from == nil {
		start := config.Start()
		if start == "" {
			return []models.Status{}
		}

		return []models.Status{start}
	}

	targets := make([]models.Status, 0)

	for _, candidate := range config.TargetsFrom(*from) {
		if candidate == *from {
			continue
		}

		targets = append(targets, candidate)
	}

	return targets
}

package workflow

import (
	"fmt"

	"github.com/ccmanuelf/kpi-operations-sub011/pkg/models"
)

// ValidationWarning flags a configuration shape that is accepted but probably
// not what the administrator meant. Warnings never block activation.
type ValidationWarning struct {
	Rule   string `json:"rule"`
	Detail string `json:"detail"`
}

// ValidateConfig checks a candidate configuration against the structural
// rules enforced at write time. It returns an InvalidConfigError naming the
// first violated rule, or the accumulated warnings when the config is
// acceptable.
//
// The config must already be normalized (status names upper-cased and
// trimmed); duplicate detection here catches names that collided during
// normalization.
func ValidateConfig(config *models.WorkflowConfig) ([]ValidationWarning, error) {
	if len(config.Statuses) == 0 {
		return nil, &InvalidConfigError{
			Rule:   "statuses",
			Detail: "at least one status is required",
		}
	}

	seen := make(map[models.Status]struct{}, len(config.Statuses))

	for _, s := range config.Statuses {
		if s == "" {
			return nil, &InvalidConfigError{
				Rule:   "statuses",
				Detail: "status names must not be empty",
			}
		}

		if _, ok := seen[s]; ok {
			return nil, &InvalidConfigError{
				Rule:   "duplicate_status",
				Detail: fmt.Sprintf("status %s appears more than once after normalization", s),
			}
		}

		seen[s] = struct{}{}
	}

	for target, sources := range config.Transitions {
		if !config.HasStatus(target) {
			return nil, &InvalidConfigError{
				Rule:   "unknown_status",
				Detail: fmt.Sprintf("transition target %s is not a declared status", target),
			}
		}

		for _, source := range sources {
			if !config.HasStatus(source) {
				return nil, &InvalidConfigError{
					Rule:   "unknown_status",
					Detail: fmt.Sprintf("transition source %s (into %s) is not a declared status", source, target),
				}
			}
		}
	}

	for _, s := range config.OptionalStatuses {
		if !config.HasStatus(s) {
			return nil, &InvalidConfigError{
				Rule:   "unknown_status",
				Detail: fmt.Sprintf("optional status %s is not a declared status", s),
			}
		}
	}

	for _, s := range config.TerminalStatuses {
		if !config.HasStatus(s) {
			return nil, &InvalidConfigError{
				Rule:   "unknown_status",
				Detail: fmt.Sprintf("terminal status %s is not a declared status", s),
			}
		}
	}

	if config.StartStatus != "" && !config.HasStatus(config.StartStatus) {
		return nil, &InvalidConfigError{
			Rule:   "start_status",
			Detail: fmt.Sprintf("start status %s is not a declared status", config.StartStatus),
		}
	}

	start := config.Start()

	if len(config.SourcesFor(start)) > 0 {
		return nil, &InvalidConfigError{
			Rule:   "start_status",
			Detail: fmt.Sprintf("start status %s must not have incoming transitions", start),
		}
	}

	reachable := reachableFrom(config, start)

	for _, s := range config.Statuses {
		if _, ok := reachable[s]; !ok {
			return nil, &InvalidConfigError{
				Rule:   "unreachable_status",
				Detail: fmt.Sprintf("status %s is not reachable from start status %s", s, start),
			}
		}
	}

	for _, s := range config.TerminalStatuses {
		if len(config.TargetsFrom(s)) > 0 {
			return nil, &InvalidConfigError{
				Rule:   "terminal_status",
				Detail: fmt.Sprintf("terminal status %s has outgoing transitions", s),
			}
		}
	}

	if !config.ClosureTrigger.Valid() {
		return nil, &InvalidConfigError{
			Rule:   "closure_trigger",
			Detail: fmt.Sprintf("closure trigger %q is not one of AT_SHIPMENT, AT_COMPLETION, MANUAL", config.ClosureTrigger),
		}
	}

	for phase, marker := range config.PhaseMarkers {
		if !phaseKnown(phase) {
			return nil, &InvalidConfigError{
				Rule:   "phase_marker",
				Detail: fmt.Sprintf("unknown lifecycle phase %q", phase),
			}
		}

		if !config.HasStatus(marker) {
			return nil, &InvalidConfigError{
				Rule:   "phase_marker",
				Detail: fmt.Sprintf("phase marker for %s references unknown status %s", phase, marker),
			}
		}
	}

	return collectWarnings(config), nil
}

// reachableFrom walks the forward view of the graph breadth-first.
func reachableFrom(config *models.WorkflowConfig, start models.Status) map[models.Status]struct{} {
	reachable := map[models.Status]struct{}{start: {}}
	queue := []models.Status{start}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		for _, next := range config.TargetsFrom(current) {
			if _, ok := reachable[next]; ok {
				continue
			}

			reachable[next] = struct{}{}
			queue = append(queue, next)
		}
	}

	return reachable
}

func collectWarnings(config *models.WorkflowConfig) []ValidationWarning {
	warnings := make([]ValidationWarning, 0)

	for _, s := range config.Statuses {
		targets := config.TargetsFrom(s)

		if len(targets) == 0 && !config.IsTerminal(s) {
			warnings = append(warnings, ValidationWarning{
				Rule:   "undeclared_terminal",
				Detail: fmt.Sprintf("status %s has no outgoing transitions but is not flagged terminal", s),
			})
		}

		for _, source := range config.SourcesFor(s) {
			if source == s {
				warnings = append(warnings, ValidationWarning{
					Rule:   "self_edge",
					Detail: fmt.Sprintf("transition %s -> %s can never execute", s, s),
				})
			}
		}
	}

	for _, optional := range config.OptionalStatuses {
		if !hasBypassEdge(config, optional) {
			warnings = append(warnings, ValidationWarning{
				Rule:   "optional_status",
				Detail: fmt.Sprintf("optional status %s has no bypass edge around it", optional),
			})
		}
	}

	return warnings
}

// hasBypassEdge reports whether some predecessor of the optional status can
// reach some successor of it directly. Optional means skippable, and skipping
// requires an explicit edge, never inference.
func hasBypassEdge(config *models.WorkflowConfig, optional models.Status) bool {
	for _, successor := range config.TargetsFrom(optional) {
		for _, predecessor := range config.SourcesFor(optional) {
			if predecessor == optional || successor == optional {
				continue
			}

			for _, source := range config.SourcesFor(successor) {
				if source == predecessor {
					return true
				}
			}
		}
	}

	return false
}

func phaseKnown(p models.Phase) bool {
	for _, known := range models.Phases() {
		if p == known {
			return true
		}
	}

	return false
}

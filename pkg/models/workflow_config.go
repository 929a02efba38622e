package models

import (
	"slices"
	"time"
)

// WorkflowConfig is a tenant's validated, versioned workflow definition.
//
// Transitions are stored as a reverse adjacency list: target status mapped to
// the set of permitted source statuses, so the validator answers "may I enter
// X from here" with a single lookup. Optional-status bypasses are explicit
// edges in this map, never inferred.
type WorkflowConfig struct {
	TenantID         string              `json:"tenant_id"`
	Version          int64               `json:"version"`
	Statuses         []Status            `json:"statuses"`
	Transitions      map[Status][]Status `json:"transitions"`
	OptionalStatuses []Status            `json:"optional_statuses,omitempty"`
	TerminalStatuses []Status            `json:"terminal_statuses,omitempty"`
	StartStatus      Status              `json:"start_status"`
	PhaseMarkers     map[Phase]Status    `json:"phase_markers,omitempty"`
	ClosureTrigger   ClosureTrigger      `json:"closure_trigger"`
	CreatedAt        time.Time           `json:"created_at"`
	UpdatedBy        string              `json:"updated_by,omitempty"`
}

// HasStatus reports whether s belongs to the config's status vocabulary.
func (c *WorkflowConfig) HasStatus(s Status) bool {
	return slices.Contains(c.Statuses, s)
}

// Start returns the designated start status, defaulting to the first status
// in the ordered vocabulary when none was set explicitly.
func (c *WorkflowConfig) Start() Status {
	if c.StartStatus != "" {
		return c.StartStatus
	}

	if len(c.Statuses) > 0 {
		return c.Statuses[0]
	}

	return ""
}

// SourcesFor returns the permitted source statuses for entering target.
func (c *WorkflowConfig) SourcesFor(target Status) []Status {
	return c.Transitions[target]
}

// TargetsFrom derives the forward view of the graph: every status reachable
// from `from` in one step, in vocabulary order so callers get a stable list.
func (c *WorkflowConfig) TargetsFrom(from Status) []Status {
	targets := make([]Status, 0, len(c.Statuses))

	for _, candidate := range c.Statuses {
		if slices.Contains(c.Transitions[candidate], from) {
			targets = append(targets, candidate)
		}
	}

	return targets
}

// IsTerminal reports whether s was explicitly flagged terminal by the
// administrator. Unflagged dead-ends are surfaced as validation warnings, not
// treated as terminal here.
func (c *WorkflowConfig) IsTerminal(s Status) bool {
	return slices.Contains(c.TerminalStatuses, s)
}

// IsOptional reports whether s may be bypassed on the happy path.
func (c *WorkflowConfig) IsOptional(s Status) bool {
	return slices.Contains(c.OptionalStatuses, s)
}

// PhaseStatus resolves the status that marks entry into the given lifecycle
// phase. An explicit phase_markers entry wins; otherwise the conventional
// status name is used when it exists in the vocabulary. The completed phase
// falls back to COMPLETED and then CLOSED, matching the common shape of
// three-step graphs that close directly.
func (c *WorkflowConfig) PhaseStatus(p Phase) (Status, bool) {
	if marker, ok := c.PhaseMarkers[p]; ok {
		return marker, true
	}

	var candidates []Status

	switch p {
	case PhaseReceived:
		candidates = []Status{"RECEIVED"}
	case PhaseDispatched:
		candidates = []Status{"DISPATCHED"}
	case PhaseShipped:
		candidates = []Status{"SHIPPED"}
	case PhaseCompleted:
		candidates = []Status{"COMPLETED", "CLOSED"}
	}

	for _, candidate := range candidates {
		if c.HasStatus(candidate) {
			return candidate, true
		}
	}

	return "", false
}

// WorkflowConfigDocument is the raw JSON form submitted by the administrative
// UI. It is untrusted input: the engine normalizes and fully re-validates it
// before a WorkflowConfig is produced.
type WorkflowConfigDocument struct {
	Statuses         []string            `json:"statuses"`
	Transitions      map[string][]string `json:"transitions"`
	OptionalStatuses []string            `json:"optional_statuses,omitempty"`
	TerminalStatuses []string            `json:"terminal_statuses,omitempty"`
	StartStatus      string              `json:"start_status,omitempty"`
	PhaseMarkers     map[string]string   `json:"phase_markers,omitempty"`
	ClosureTrigger   string              `json:"closure_trigger"`
}

// ConfigFromDocument rebuilds a WorkflowConfig from its stored wire form.
// The document must already be normalized and validated; use this for trusted
// documents only, never for raw administrator input.
func ConfigFromDocument(tenantID string, version int64, doc WorkflowConfigDocument) *WorkflowConfig {
	config := &WorkflowConfig{
		TenantID:       tenantID,
		Version:        version,
		Statuses:       make([]Status, 0, len(doc.Statuses)),
		Transitions:    make(map[Status][]Status, len(doc.Transitions)),
		StartStatus:    Status(doc.StartStatus),
		ClosureTrigger: ClosureTrigger(doc.ClosureTrigger),
	}

	for _, s := range doc.Statuses {
		config.Statuses = append(config.Statuses, Status(s))
	}

	for target, sources := range doc.Transitions {
		list := make([]Status, 0, len(sources))
		for _, s := range sources {
			list = append(list, Status(s))
		}

		config.Transitions[Status(target)] = list
	}

	for _, s := range doc.OptionalStatuses {
		config.OptionalStatuses = append(config.OptionalStatuses, Status(s))
	}

	for _, s := range doc.TerminalStatuses {
		config.TerminalStatuses = append(config.TerminalStatuses, Status(s))
	}

	if len(doc.PhaseMarkers) > 0 {
		config.PhaseMarkers = make(map[Phase]Status, len(doc.PhaseMarkers))
		for phase, status := range doc.PhaseMarkers {
			config.PhaseMarkers[Phase(phase)] = Status(status)
		}
	}

	return config
}

// Document converts the config back to its wire form, e.g. for the admin UI
// to edit the active version.
func (c *WorkflowConfig) Document() WorkflowConfigDocument {
	doc := WorkflowConfigDocument{
		Statuses:       make([]string, 0, len(c.Statuses)),
		Transitions:    make(map[string][]string, len(c.Transitions)),
		StartStatus:    string(c.StartStatus),
		ClosureTrigger: string(c.ClosureTrigger),
	}

	for _, s := range c.Statuses {
		doc.Statuses = append(doc.Statuses, string(s))
	}

	for target, sources := range c.Transitions {
		list := make([]string, 0, len(sources))
		for _, s := range sources {
			list = append(list, string(s))
		}

		doc.Transitions[string(target)] = list
	}

	for _, s := range c.OptionalStatuses {
		doc.OptionalStatuses = append(doc.OptionalStatuses, string(s))
	}

	for _, s := range c.TerminalStatuses {
		doc.TerminalStatuses = append(doc.TerminalStatuses, string(s))
	}

	if len(c.PhaseMarkers) > 0 {
		doc.PhaseMarkers = make(map[string]string, len(c.PhaseMarkers))
		for phase, status := range c.PhaseMarkers {
			doc.PhaseMarkers[string(phase)] = string(status)
		}
	}

	return doc
}

package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *WorkflowConfig {
	return &WorkflowConfig{
		TenantID: "tenant-1",
		Version:  3,
		Statuses: []Status{"RECEIVED", "DISPATCHED", "QA", "SHIPPED", "CLOSED"},
		Transitions: map[Status][]Status{
			"DISPATCHED": {"RECEIVED"},
			"QA":         {"DISPATCHED"},
			"SHIPPED":    {"QA", "DISPATCHED"}, // bypass edge around optional QA
			"CLOSED":     {"SHIPPED"},
		},
		OptionalStatuses: []Status{"QA"},
		TerminalStatuses: []Status{"CLOSED"},
		StartStatus:      "RECEIVED",
		ClosureTrigger:   ClosureAtShipment,
		CreatedAt:        time.Now().UTC(),
	}
}

func TestNormalizeStatus(t *testing.T) {
	testCases := []struct {
		name     string
		raw      string
		expected Status
	}{
		{
			name:     "already normalized",
			raw:      "RECEIVED",
			expected: "RECEIVED",
		},
		{
			name:     "lower case",
			raw:      "shipped",
			expected: "SHIPPED",
		},
		{
			name:     "mixed case with whitespace",
			raw:      "  In_Progress ",
			expected: "IN_PROGRESS",
		},
		{
			name:     "empty",
			raw:      "",
			expected: "",
		},
		{
			name:     "whitespace only",
			raw:      "   ",
			expected: "",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, NormalizeStatus(tc.raw))
		})
	}
}

func TestTriggerSource_Valid(t *testing.T) {
	for _, source := range []TriggerSource{
		TriggerSourceManual,
		TriggerSourceAutomatic,
		TriggerSourceBulk,
		TriggerSourceAPI,
		TriggerSourceImport,
	} {
		assert.True(t, source.Valid(), "expected %q to be valid", source)
	}

	assert.False(t, TriggerSource("").Valid())
	assert.False(t, TriggerSource("webhook").Valid())
	assert.False(t, TriggerSource("MANUAL").Valid(), "trigger sources are lower case")
}

func TestClosureTrigger_Valid(t *testing.T) {
	for _, trigger := range []ClosureTrigger{ClosureAtShipment, ClosureAtCompletion, ClosureManual} {
		assert.True(t, trigger.Valid(), "expected %q to be valid", trigger)
	}

	assert.False(t, ClosureTrigger("").Valid())
	assert.False(t, ClosureTrigger("at_shipment").Valid(), "closure triggers are upper case")
}

func TestWorkflowConfig_SourcesFor(t *testing.T) {
	config := testConfig()

	assert.ElementsMatch(t, []Status{"QA", "DISPATCHED"}, config.SourcesFor("SHIPPED"))
	assert.Empty(t, config.SourcesFor("RECEIVED"), "start status has no sources")
	assert.Empty(t, config.SourcesFor("UNKNOWN"))
}

func TestWorkflowConfig_TargetsFrom(t *testing.T) {
	config := testConfig()

	testCases := []struct {
		name     string
		from     Status
		expected []Status
	}{
		{
			name:     "start status",
			from:     "RECEIVED",
			expected: []Status{"DISPATCHED"},
		},
		{
			name:     "bypass and regular edge in vocabulary order",
			from:     "DISPATCHED",
			expected: []Status{"QA", "SHIPPED"},
		},
		{
			name:     "terminal status has no targets",
			from:     "CLOSED",
			expected: []Status{},
		},
		{
			name:     "unknown status has no targets",
			from:     "UNKNOWN",
			expected: []Status{},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, config.TargetsFrom(tc.from))
		})
	}
}

func TestWorkflowConfig_PhaseStatus(t *testing.T) {
	t.Run("conventional names", func(t *testing.T) {
		config := testConfig()

		received, ok := config.PhaseStatus(PhaseReceived)
		require.True(t, ok)
		assert.Equal(t, Status("RECEIVED"), received)

		shipped, ok := config.PhaseStatus(PhaseShipped)
		require.True(t, ok)
		assert.Equal(t, Status("SHIPPED"), shipped)
	})

	t.Run("completed falls back to CLOSED", func(t *testing.T) {
		config := testConfig()

		completed, ok := config.PhaseStatus(PhaseCompleted)
		require.True(t, ok)
		assert.Equal(t, Status("CLOSED"), completed)
	})

	t.Run("COMPLETED preferred over CLOSED", func(t *testing.T) {
		config := testConfig()
		config.Statuses = append(config.Statuses, "COMPLETED")

		completed, ok := config.PhaseStatus(PhaseCompleted)
		require.True(t, ok)
		assert.Equal(t, Status("COMPLETED"), completed)
	})

	t.Run("explicit marker wins over convention", func(t *testing.T) {
		config := testConfig()
		config.PhaseMarkers = map[Phase]Status{PhaseCompleted: "SHIPPED"}

		completed, ok := config.PhaseStatus(PhaseCompleted)
		require.True(t, ok)
		assert.Equal(t, Status("SHIPPED"), completed)
	})

	t.Run("unmapped phase", func(t *testing.T) {
		config := testConfig()
		config.Statuses = []Status{"OPEN", "DONE"}

		_, ok := config.PhaseStatus(PhaseDispatched)
		assert.False(t, ok)
	})
}

func TestWorkflowConfig_Document(t *testing.T) {
	config := testConfig()
	config.PhaseMarkers = map[Phase]Status{PhaseCompleted: "CLOSED"}

	doc := config.Document()

	assert.Equal(t, []string{"RECEIVED", "DISPATCHED", "QA", "SHIPPED", "CLOSED"}, doc.Statuses)
	assert.ElementsMatch(t, []string{"QA", "DISPATCHED"}, doc.Transitions["SHIPPED"])
	assert.Equal(t, []string{"QA"}, doc.OptionalStatuses)
	assert.Equal(t, []string{"CLOSED"}, doc.TerminalStatuses)
	assert.Equal(t, "RECEIVED", doc.StartStatus)
	assert.Equal(t, "AT_SHIPMENT", doc.ClosureTrigger)
	assert.Equal(t, map[string]string{"completed": "CLOSED"}, doc.PhaseMarkers)

	jsonData, err := json.Marshal(doc)
	require.NoError(t, err)
	assert.Contains(t, string(jsonData), `"closure_trigger":"AT_SHIPMENT"`)
	assert.Contains(t, string(jsonData), `"start_status":"RECEIVED"`)
}

func TestWorkOrder_PhaseTimestamp(t *testing.T) {
	received := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)
	shipped := time.Date(2025, 3, 4, 16, 30, 0, 0, time.UTC)
	order := &WorkOrder{
		ID:         "wo-1",
		TenantID:   "tenant-1",
		ReceivedAt: &received,
		ShippedAt:  &shipped,
	}

	assert.Equal(t, &received, order.PhaseTimestamp(PhaseReceived))
	assert.Equal(t, &shipped, order.PhaseTimestamp(PhaseShipped))
	assert.Nil(t, order.PhaseTimestamp(PhaseDispatched))
	assert.Nil(t, order.PhaseTimestamp(PhaseCompleted))
}

func TestTransitionLogEntry_JSONShape(t *testing.T) {
	from := Status("RECEIVED")
	entry := &TransitionLogEntry{
		ID:                     "entry-1",
		WorkOrderID:            "wo-1",
		TenantID:               "tenant-1",
		FromStatus:             &from,
		ToStatus:               "DISPATCHED",
		ActorID:                "user-9",
		OccurredAt:             time.Date(2025, 3, 2, 9, 15, 0, 0, time.UTC),
		Trigger:                TriggerSourceManual,
		ElapsedSincePreviousMs: 91500000,
		ElapsedSinceReceivedMs: 91500000,
		ConfigVersion:          3,
	}

	jsonData, err := json.Marshal(entry)
	require.NoError(t, err)
	assert.Contains(t, string(jsonData), `"from_status":"RECEIVED"`)
	assert.Contains(t, string(jsonData), `"to_status":"DISPATCHED"`)
	assert.Contains(t, string(jsonData), `"trigger_source":"manual"`)
	assert.Contains(t, string(jsonData), `"elapsed_since_previous_ms":91500000`)
	assert.Contains(t, string(jsonData), `"config_version":3`)
	assert.NotContains(t, string(jsonData), "idempotency_key", "empty key is omitted")
}

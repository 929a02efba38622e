package sqlite

func migrations() map[int]string {
	return map[int]string{
		1: `
			-- Versioned per-tenant workflow configurations. A version is
			-- immutable once written; the active config is the highest version.
			CREATE TABLE workflow_configs (
				tenant_id TEXT NOT NULL,
				version INTEGER NOT NULL,
				document TEXT NOT NULL,
				created_at TEXT NOT NULL,
				updated_by TEXT NOT NULL DEFAULT '',
				PRIMARY KEY (tenant_id, version)
			);

			-- Engine-owned slice of work orders. Timestamps are stored as
			-- fixed-width UTC text so string order matches time order.
			CREATE TABLE work_orders (
				id TEXT PRIMARY KEY,
				tenant_id TEXT NOT NULL,
				reference TEXT NOT NULL DEFAULT '',
				current_status TEXT,
				previous_status TEXT,
				received_at TEXT,
				dispatched_at TEXT,
				shipped_at TEXT,
				closed_at TEXT,
				created_at TEXT NOT NULL,
				updated_at TEXT NOT NULL
			);

			CREATE INDEX idx_work_orders_tenant_id ON work_orders(tenant_id);
			CREATE INDEX idx_work_orders_tenant_status ON work_orders(tenant_id, current_status);

			-- Append-only transition audit trail. No update or delete ever
			-- touches this table.
			CREATE TABLE transition_log (
				id TEXT PRIMARY KEY,
				work_order_id TEXT NOT NULL REFERENCES work_orders(id),
				tenant_id TEXT NOT NULL,
				from_status TEXT,
				to_status TEXT NOT NULL,
				actor_id TEXT NOT NULL,
				occurred_at TEXT NOT NULL,
				trigger_source TEXT NOT NULL,
				notes TEXT NOT NULL DEFAULT '',
				elapsed_since_previous_ms INTEGER NOT NULL,
				elapsed_since_received_ms INTEGER NOT NULL,
				config_version INTEGER NOT NULL,
				idempotency_key TEXT NOT NULL DEFAULT ''
			);

			CREATE INDEX idx_transition_log_work_order ON transition_log(work_order_id, occurred_at);
			CREATE INDEX idx_transition_log_tenant_time ON transition_log(tenant_id, occurred_at);
			CREATE UNIQUE INDEX idx_transition_log_idempotency
				ON transition_log(work_order_id, idempotency_key)
				WHERE idempotency_key <> '';
		`,
	}
}

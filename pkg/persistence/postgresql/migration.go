package postgresql

func migrations() map[int]string {
	return map[int]string{
		1: `
			-- Versioned per-tenant workflow configurations. A version is
			-- immutable once written; the active config is the highest version.
			CREATE TABLE workflow_configs (
				tenant_id VARCHAR(255) NOT NULL,
				version BIGINT NOT NULL,
				document JSONB NOT NULL,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_by VARCHAR(255) NOT NULL DEFAULT '',
				PRIMARY KEY (tenant_id, version)
			);

			-- Engine-owned slice of work orders: identity, workflow position,
			-- lifecycle timestamps. Status columns are written only through
			-- the conditional transition update.
			CREATE TABLE work_orders (
				id VARCHAR(255) PRIMARY KEY,
				tenant_id VARCHAR(255) NOT NULL,
				reference VARCHAR(255) NOT NULL DEFAULT '',
				current_status VARCHAR(100),
				previous_status VARCHAR(100),
				received_at TIMESTAMP WITH TIME ZONE,
				dispatched_at TIMESTAMP WITH TIME ZONE,
				shipped_at TIMESTAMP WITH TIME ZONE,
				closed_at TIMESTAMP WITH TIME ZONE,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_work_orders_tenant_id ON work_orders(tenant_id);
			CREATE INDEX idx_work_orders_tenant_status ON work_orders(tenant_id, current_status);

			-- Append-only transition audit trail. No update or delete ever
			-- touches this table.
			CREATE TABLE transition_log (
				id UUID PRIMARY KEY,
				work_order_id VARCHAR(255) NOT NULL REFERENCES work_orders(id),
				tenant_id VARCHAR(255) NOT NULL,
				from_status VARCHAR(100),
				to_status VARCHAR(100) NOT NULL,
				actor_id VARCHAR(255) NOT NULL,
				occurred_at TIMESTAMP WITH TIME ZONE NOT NULL,
				trigger_source VARCHAR(50) NOT NULL,
				notes TEXT NOT NULL DEFAULT '',
				elapsed_since_previous_ms BIGINT NOT NULL,
				elapsed_since_received_ms BIGINT NOT NULL,
				config_version BIGINT NOT NULL,
				idempotency_key VARCHAR(255) NOT NULL DEFAULT ''
			);

			CREATE INDEX idx_transition_log_work_order ON transition_log(work_order_id, occurred_at);
			CREATE INDEX idx_transition_log_tenant_time ON transition_log(tenant_id, occurred_at);
			CREATE UNIQUE INDEX idx_transition_log_idempotency
				ON transition_log(work_order_id, idempotency_key)
				WHERE idempotency_key <> '';
		`,
	}
}

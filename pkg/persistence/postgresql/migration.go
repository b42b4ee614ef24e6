package postgresql

func migrations() map[int]string {
	return map[int]string{
		1: `
			CREATE TABLE policies (
				id VARCHAR(255) PRIMARY KEY,
				name VARCHAR(255) NOT NULL,
				type VARCHAR(50) NOT NULL,
				status VARCHAR(50) NOT NULL,
				workflow_definition JSONB,
				ab_test_config JSONB,
				execution_count BIGINT NOT NULL DEFAULT 0,
				approved_count BIGINT NOT NULL DEFAULT 0,
				approval_rate DOUBLE PRECISION NOT NULL DEFAULT 0,
				metadata JSONB,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL,
				archived_at TIMESTAMP WITH TIME ZONE
			);

			CREATE INDEX idx_policies_status ON policies(status);
			CREATE INDEX idx_policies_type ON policies(type);

			CREATE TABLE transactions (
				id VARCHAR(255) PRIMARY KEY,
				account_id VARCHAR(255) NOT NULL,
				amount DOUBLE PRECISION NOT NULL,
				currency VARCHAR(10),
				status VARCHAR(50) NOT NULL,
				device_fingerprint VARCHAR(255),
				ip_address VARCHAR(64),
				country VARCHAR(10),
				metadata JSONB,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_transactions_account_created ON transactions(account_id, created_at);
			CREATE INDEX idx_transactions_fingerprint_created ON transactions(device_fingerprint, created_at);

			CREATE TABLE fraud_models (
				id VARCHAR(255) PRIMARY KEY,
				model_type VARCHAR(50) NOT NULL,
				confidence_threshold DOUBLE PRECISION NOT NULL DEFAULT 0,
				severity VARCHAR(20) NOT NULL,
				auto_block BOOLEAN NOT NULL DEFAULT false,
				is_active BOOLEAN NOT NULL DEFAULT true,
				detection_count BIGINT NOT NULL DEFAULT 0,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE TABLE fraud_alerts (
				id VARCHAR(255) NOT NULL,
				transaction_id VARCHAR(255) NOT NULL,
				model_id VARCHAR(255) NOT NULL,
				confidence_score DOUBLE PRECISION NOT NULL,
				risk_score DOUBLE PRECISION NOT NULL,
				indicators JSONB,
				severity VARCHAR(20) NOT NULL,
				status VARCHAR(20) NOT NULL,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				PRIMARY KEY (transaction_id, model_id)
			);

			CREATE TABLE execution_traces (
				execution_id VARCHAR(255) PRIMARY KEY,
				policy_id VARCHAR(255) NOT NULL,
				variant VARCHAR(10),
				decision VARCHAR(50) NOT NULL,
				results JSONB,
				error TEXT,
				failed_node VARCHAR(255),
				started_at TIMESTAMP WITH TIME ZONE NOT NULL,
				completed_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_execution_traces_policy ON execution_traces(policy_id);

			CREATE TABLE schedules (
				id VARCHAR(255) PRIMARY KEY,
				policy_id VARCHAR(255) NOT NULL,
				type VARCHAR(20) NOT NULL,
				cron_expression VARCHAR(255),
				repeat_interval INT,
				repeat_unit VARCHAR(20),
				input_data JSONB,
				next_due_at TIMESTAMP WITH TIME ZONE NOT NULL,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL,
				active BOOLEAN NOT NULL DEFAULT true
			);

			CREATE INDEX idx_schedules_due ON schedules(active, next_due_at);
		`,
	}
}

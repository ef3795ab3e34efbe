package postgresql

func migrations() map[int]string {
	return map[int]string{
		1: `
			CREATE TABLE projects (
				id VARCHAR(255) PRIMARY KEY,
				name VARCHAR(255) NOT NULL,
				is_system BOOLEAN NOT NULL DEFAULT false,
				template_id VARCHAR(255),
				canvas_data JSONB NOT NULL DEFAULT '{}',
				global_variables JSONB NOT NULL DEFAULT '[]',
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_projects_template_id ON projects(template_id);
			CREATE INDEX idx_projects_created_at ON projects(created_at);

			CREATE TABLE jobs (
				id VARCHAR(255) PRIMARY KEY,
				status VARCHAR(50) NOT NULL CHECK (status IN ('queued', 'processing', 'completed', 'failed')),
				project_id VARCHAR(255) NOT NULL,
				session_id VARCHAR(255) NOT NULL,
				worker_id VARCHAR(255),
				payload JSONB,
				result JSONB,
				execution_id VARCHAR(255),
				error TEXT,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				started_at TIMESTAMP WITH TIME ZONE,
				completed_at TIMESTAMP WITH TIME ZONE
			);

			CREATE INDEX idx_jobs_status_created_at ON jobs(status, created_at);
			CREATE INDEX idx_jobs_session_id ON jobs(session_id);
			CREATE INDEX idx_jobs_worker_id ON jobs(worker_id);

			CREATE TABLE executions (
				id VARCHAR(255) PRIMARY KEY,
				project_id VARCHAR(255) NOT NULL,
				project_name VARCHAR(255) NOT NULL DEFAULT '',
				job_id VARCHAR(255),
				session_id VARCHAR(255),
				worker_id VARCHAR(255),
				status VARCHAR(50) NOT NULL,
				total_nodes INT NOT NULL DEFAULT 0,
				executed_nodes INT NOT NULL DEFAULT 0,
				failed_nodes INT NOT NULL DEFAULT 0,
				skipped_nodes INT NOT NULL DEFAULT 0,
				current_node_id VARCHAR(255),
				started_at TIMESTAMP WITH TIME ZONE NOT NULL,
				completed_at TIMESTAMP WITH TIME ZONE,
				duration_ms BIGINT NOT NULL DEFAULT 0,
				error TEXT,
				global_variables_snapshot JSONB,
				execution_results JSONB
			);

			CREATE INDEX idx_executions_project_id ON executions(project_id);
			CREATE INDEX idx_executions_status ON executions(status);
			CREATE INDEX idx_executions_started_at ON executions(started_at);
			CREATE INDEX idx_executions_worker_id ON executions(worker_id);

			CREATE TABLE execution_logs (
				id VARCHAR(255) PRIMARY KEY,
				execution_id VARCHAR(255) NOT NULL REFERENCES executions(id) ON DELETE CASCADE,
				node_id VARCHAR(255) NOT NULL,
				input JSONB,
				output JSONB,
				status VARCHAR(50) NOT NULL,
				error TEXT,
				duration_ms BIGINT NOT NULL DEFAULT 0,
				timestamp TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_execution_logs_execution_id ON execution_logs(execution_id);
			CREATE INDEX idx_execution_logs_timestamp ON execution_logs(timestamp);
		`,
	}
}

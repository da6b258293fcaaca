package postgresql

func migrations() map[int]string {
	return map[int]string{
		1: `
			-- Project workflows and their milestone facts
			CREATE TABLE workflows (
				id UUID PRIMARY KEY,
				purchase_order_id VARCHAR(255) NOT NULL,
				project_title VARCHAR(255) NOT NULL,
				industry_id VARCHAR(255) NOT NULL,
				vendor_id VARCHAR(255) NOT NULL,
				status VARCHAR(50) NOT NULL CHECK (status IN
					('active', 'completed', 'awaiting_closeout', 'closed', 'paused', 'cancelled', 'disputed')),
				has_retention BOOLEAN NOT NULL DEFAULT false,
				total_value NUMERIC(14, 2) NOT NULL DEFAULT 0,
				currency VARCHAR(10) NOT NULL DEFAULT 'INR',
				closure_notes TEXT,
				closed_at TIMESTAMP WITH TIME ZONE,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_workflows_status ON workflows(status);
			CREATE INDEX idx_workflows_industry_id ON workflows(industry_id);
			CREATE INDEX idx_workflows_vendor_id ON workflows(vendor_id);
			CREATE INDEX idx_workflows_created_at ON workflows(created_at);

			CREATE TABLE workflow_milestones (
				workflow_id UUID NOT NULL REFERENCES workflows(id) ON DELETE CASCADE,
				id VARCHAR(255) NOT NULL,
				name VARCHAR(255) NOT NULL,
				amount NUMERIC(14, 2) NOT NULL DEFAULT 0,
				status VARCHAR(50) NOT NULL DEFAULT 'pending',
				payment_status VARCHAR(50) NOT NULL DEFAULT 'pending',
				due_date TIMESTAMP WITH TIME ZONE,
				completed_at TIMESTAMP WITH TIME ZONE,
				paid_at TIMESTAMP WITH TIME ZONE,
				position INT NOT NULL DEFAULT 0,
				PRIMARY KEY (workflow_id, id)
			);

			CREATE INDEX idx_workflow_milestones_workflow_id ON workflow_milestones(workflow_id);

			-- Closeout checklist items, seeded once per workflow
			CREATE TABLE closeout_items (
				workflow_id UUID NOT NULL REFERENCES workflows(id) ON DELETE CASCADE,
				id VARCHAR(255) NOT NULL,
				title VARCHAR(255) NOT NULL,
				description TEXT NOT NULL DEFAULT '',
				required_from VARCHAR(20) NOT NULL CHECK (required_from IN ('industry', 'vendor', 'both')),
				doc_file_name VARCHAR(512),
				doc_file_key VARCHAR(1024),
				doc_uploaded_by VARCHAR(20),
				doc_uploaded_at TIMESTAMP WITH TIME ZONE,
				verified BOOLEAN NOT NULL DEFAULT false,
				verified_at TIMESTAMP WITH TIME ZONE,
				position INT NOT NULL DEFAULT 0,
				PRIMARY KEY (workflow_id, id)
			);

			CREATE INDEX idx_closeout_items_workflow_id ON closeout_items(workflow_id);

			-- Completion certificates, one per workflow, immutable once issued
			CREATE TABLE certificates (
				workflow_id UUID PRIMARY KEY REFERENCES workflows(id) ON DELETE CASCADE,
				certificate_no VARCHAR(64) NOT NULL UNIQUE,
				issued_at TIMESTAMP WITH TIME ZONE NOT NULL,
				file_key VARCHAR(1024)
			);

			-- Retention payments, present only for workflows created with retention
			CREATE TABLE retention_payments (
				workflow_id UUID PRIMARY KEY REFERENCES workflows(id) ON DELETE CASCADE,
				amount NUMERIC(14, 2) NOT NULL DEFAULT 0,
				status VARCHAR(20) NOT NULL DEFAULT 'pending' CHECK (status IN ('pending', 'released')),
				released_at TIMESTAMP WITH TIME ZONE,
				notes TEXT
			);
		`,
	}
}

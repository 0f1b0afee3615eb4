package postgresql

func migrations() map[int]string {
	return map[int]string{
		1: `
			CREATE TABLE watches (
				id TEXT PRIMARY KEY,
				definition JSONB NOT NULL,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE TABLE watch_records (
				id TEXT PRIMARY KEY,
				watch_id TEXT NOT NULL,
				node_id TEXT,
				state VARCHAR(64) NOT NULL,
				record JSONB NOT NULL,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_watch_records_watch_created ON watch_records(watch_id, created_at DESC);
			CREATE INDEX idx_watch_records_state ON watch_records(state);
		`,
	}
}

package journal

// Schema is the SQLite schema. Times are DATETIME so the driver scans them
// back into time.Time.
const Schema = `
CREATE TABLE IF NOT EXISTS runs (
	run_id TEXT PRIMARY KEY,
	created DATETIME NOT NULL,
	instrument TEXT NOT NULL,
	dataset TEXT NOT NULL,
	session TEXT NOT NULL,
	strategy TEXT NOT NULL,
	sizer TEXT NOT NULL,
	config TEXT NOT NULL,
	start_time DATETIME NOT NULL,
	end_time DATETIME NOT NULL,
	bars INTEGER NOT NULL,
	starting_equity REAL NOT NULL,
	ending_equity REAL NOT NULL,
	closed_trades INTEGER NOT NULL,
	wins INTEGER NOT NULL,
	losses INTEGER NOT NULL,
	win_rate REAL NOT NULL,
	total_pl REAL NOT NULL,
	avg_trade_pl REAL NOT NULL,
	gross_profit REAL NOT NULL,
	gross_loss REAL NOT NULL,
	profit_factor REAL NOT NULL,
	max_drawdown REAL NOT NULL,
	max_drawdown_pct REAL NOT NULL,
	open_at_end INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS events (
	run_id TEXT NOT NULL,
	seq INTEGER NOT NULL,
	bar INTEGER NOT NULL,
	kind TEXT NOT NULL,
	time DATETIME NOT NULL,
	side TEXT NOT NULL,
	price REAL NOT NULL,
	size_delta REAL NOT NULL,
	position_size REAL NOT NULL,
	avg_entry REAL NOT NULL,
	realized_pl REAL,
	reason TEXT NOT NULL,
	PRIMARY KEY (run_id, seq)
);

CREATE TABLE IF NOT EXISTS trades (
	run_id TEXT NOT NULL,
	trade_no INTEGER NOT NULL,
	side TEXT NOT NULL,
	entry_time DATETIME NOT NULL,
	entry_price REAL NOT NULL,
	exit_time DATETIME NOT NULL,
	exit_price REAL NOT NULL,
	size REAL NOT NULL,
	adds INTEGER NOT NULL,
	realized_pl REAL NOT NULL,
	reason TEXT NOT NULL,
	PRIMARY KEY (run_id, trade_no)
);

CREATE TABLE IF NOT EXISTS equity (
	run_id TEXT NOT NULL,
	time DATETIME NOT NULL,
	equity REAL NOT NULL,
	realized REAL NOT NULL,
	unrealized REAL NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_equity_run_time ON equity(run_id, time);
`

// pgSchema is the PostgreSQL schema, applied one statement at a time.
var pgSchema = []string{
	`create table if not exists runs (
		run_id text primary key,
		created timestamptz not null,
		instrument text not null default '',
		dataset text not null default '',
		session text not null default '',
		strategy text not null,
		sizer text not null,
		config jsonb not null default '{}'::jsonb,
		start_time timestamptz not null,
		end_time timestamptz not null,
		bars int not null,
		starting_equity double precision not null,
		ending_equity double precision not null,
		closed_trades int not null,
		wins int not null,
		losses int not null,
		win_rate double precision not null,
		total_pl double precision not null,
		avg_trade_pl double precision not null,
		gross_profit double precision not null,
		gross_loss double precision not null,
		profit_factor double precision not null,
		max_drawdown double precision not null,
		max_drawdown_pct double precision not null,
		open_at_end boolean not null
	);`,
	`create table if not exists events (
		run_id text not null references runs(run_id) on delete cascade,
		seq int not null,
		bar int not null,
		kind text not null,
		time timestamptz not null,
		side text not null,
		price double precision not null,
		size_delta double precision not null,
		position_size double precision not null,
		avg_entry double precision not null,
		realized_pl double precision null,
		reason text not null default '',
		primary key (run_id, seq)
	);`,
	`create table if not exists trades (
		run_id text not null references runs(run_id) on delete cascade,
		trade_no int not null,
		side text not null,
		entry_time timestamptz not null,
		entry_price double precision not null,
		exit_time timestamptz not null,
		exit_price double precision not null,
		size double precision not null,
		adds int not null,
		realized_pl double precision not null,
		reason text not null default '',
		primary key (run_id, trade_no)
	);`,
	`create table if not exists equity (
		run_id text not null references runs(run_id) on delete cascade,
		time timestamptz not null,
		equity double precision not null,
		realized double precision not null,
		unrealized double precision not null
	);`,
	`create index if not exists idx_equity_run_time on equity(run_id, time);`,
}

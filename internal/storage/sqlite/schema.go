package sqlite

const schema = `
-- Stories table
CREATE TABLE IF NOT EXISTS stories (
    id TEXT PRIMARY KEY,
    title TEXT NOT NULL,
    status TEXT NOT NULL,
    domain TEXT NOT NULL,
    file TEXT NOT NULL DEFAULT '',
    acceptance_criteria TEXT NOT NULL DEFAULT '[]'
);

CREATE INDEX IF NOT EXISTS idx_stories_status ON stories(status);
CREATE INDEX IF NOT EXISTS idx_stories_domain ON stories(domain);

-- Tasks table
CREATE TABLE IF NOT EXISTS tasks (
    id TEXT PRIMARY KEY,
    semantic_name TEXT NOT NULL DEFAULT '',
    story TEXT NOT NULL DEFAULT '',
    status TEXT NOT NULL DEFAULT 'not_started',
    phase TEXT NOT NULL DEFAULT 'RESEARCH',
    folder TEXT NOT NULL DEFAULT '',
    decisions TEXT NOT NULL DEFAULT '',
    phase_history TEXT NOT NULL DEFAULT '[]',
    files_modified TEXT NOT NULL DEFAULT '[]',
    subagent_reports TEXT NOT NULL DEFAULT '[]'
);

CREATE INDEX IF NOT EXISTS idx_tasks_story ON tasks(story);
CREATE INDEX IF NOT EXISTS idx_tasks_status ON tasks(status);

-- Commits table
CREATE TABLE IF NOT EXISTS commits (
    hash TEXT PRIMARY KEY,
    date TEXT NOT NULL,
    message TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_commits_date ON commits(date);

-- Annotated files table
CREATE TABLE IF NOT EXISTS files (
    path TEXT PRIMARY KEY,
    design_pattern TEXT NOT NULL DEFAULT '',
    architecture_layer TEXT NOT NULL DEFAULT '',
    tradeoffs TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_files_layer ON files(architecture_layer);

-- Relationship lists, one row per entry, in snapshot order
CREATE TABLE IF NOT EXISTS links (
    source_kind TEXT NOT NULL,
    source_id TEXT NOT NULL,
    target_kind TEXT NOT NULL,
    target_id TEXT NOT NULL,
    position INTEGER NOT NULL,
    PRIMARY KEY (source_kind, source_id, target_kind, target_id)
);

CREATE INDEX IF NOT EXISTS idx_links_target ON links(target_kind, target_id);

-- Metadata table (snapshot metadata and mirror bookkeeping)
CREATE TABLE IF NOT EXISTS metadata (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL
);
`

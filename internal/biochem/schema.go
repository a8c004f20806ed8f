package biochem

// schema is valid for both SQLite and PostgreSQL.
const schema = `
CREATE TABLE IF NOT EXISTS compounds (
    id TEXT PRIMARY KEY,
    abbreviation TEXT NOT NULL DEFAULT '',
    name TEXT NOT NULL DEFAULT '',
    formula TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS reactions (
    id TEXT PRIMARY KEY,
    abbreviation TEXT NOT NULL DEFAULT '',
    name TEXT NOT NULL DEFAULT '',
    equation TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_compounds_name ON compounds(name);
CREATE INDEX IF NOT EXISTS idx_reactions_name ON reactions(name);
`

package keyinfo

import (
	"database/sql"
	"fmt"

	"github.com/fxamacker/cbor/v2"

	// Drivers selectable by name in the store configuration.
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"

	"github.com/systmms/keyops/pkg/keyinfo"
	"github.com/systmms/keyops/pkg/operations"
	"github.com/systmms/keyops/pkg/requests"
)

// SQLStore persists key-info mappings in a relational database. The
// triple is the primary key; attributes travel as a CBOR blob so the
// schema stays stable as attribute fields evolve.
//
// Durability is the database's: each statement commits on its own, so a
// crash leaves an insert either fully visible or fully absent.
type SQLStore struct {
	db      *sql.DB
	rebinds bool // rewrite ? placeholders to $N for Postgres
}

const createTableStmt = `CREATE TABLE IF NOT EXISTS key_info (
	app        VARCHAR(255) NOT NULL,
	provider   SMALLINT     NOT NULL,
	key_name   VARCHAR(255) NOT NULL,
	key_id     BYTEA        NOT NULL,
	attributes BYTEA        NOT NULL,
	PRIMARY KEY (app, provider, key_name)
)`

const createTableStmtMySQL = `CREATE TABLE IF NOT EXISTS key_info (
	app        VARCHAR(255) NOT NULL,
	provider   SMALLINT     NOT NULL,
	key_name   VARCHAR(255) NOT NULL,
	key_id     VARBINARY(1024) NOT NULL,
	attributes BLOB         NOT NULL,
	PRIMARY KEY (app, provider, key_name)
)`

// OpenSQLStore connects with the given database/sql driver ("postgres"
// or "mysql") and ensures the schema exists.
func OpenSQLStore(driver, dsn string) (*SQLStore, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("opening key-info database: %w", err)
	}
	store := NewSQLStore(db, driver)
	schema := createTableStmt
	if driver == "mysql" {
		schema = createTableStmtMySQL
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("creating key_info table: %w", err)
	}
	return store, nil
}

// NewSQLStore wraps an existing connection without touching the schema.
// Used by tests that inject a mocked connection.
func NewSQLStore(db *sql.DB, driver string) *SQLStore {
	return &SQLStore{db: db, rebinds: driver == "postgres"}
}

// Close releases the underlying connection pool.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

// rebind rewrites ? placeholders to $1..$N when talking to Postgres.
func (s *SQLStore) rebind(query string) string {
	if !s.rebinds {
		return query
	}
	out := make([]byte, 0, len(query)+8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			out = append(out, fmt.Sprintf("$%d", n)...)
			continue
		}
		out = append(out, query[i])
	}
	return string(out)
}

// Get implements keyinfo.Manager.
func (s *SQLStore) Get(triple keyinfo.KeyTriple) (*keyinfo.KeyInfo, error) {
	row := s.db.QueryRow(
		s.rebind(`SELECT key_id, attributes FROM key_info WHERE app = ? AND provider = ? AND key_name = ?`),
		triple.App, triple.Provider, triple.KeyName)
	return scanInfo(row)
}

// Insert implements keyinfo.Manager. The previous value, if any, is
// read back before the upsert so the interface contract holds.
func (s *SQLStore) Insert(triple keyinfo.KeyTriple, info keyinfo.KeyInfo) (*keyinfo.KeyInfo, error) {
	prev, err := s.Get(triple)
	if err != nil {
		return nil, err
	}

	attrs, err := cbor.Marshal(info.Attributes)
	if err != nil {
		return nil, fmt.Errorf("encoding key attributes: %w", err)
	}
	if prev != nil {
		_, err = s.db.Exec(
			s.rebind(`UPDATE key_info SET key_id = ?, attributes = ? WHERE app = ? AND provider = ? AND key_name = ?`),
			info.ID, attrs, triple.App, triple.Provider, triple.KeyName)
	} else {
		_, err = s.db.Exec(
			s.rebind(`INSERT INTO key_info (app, provider, key_name, key_id, attributes) VALUES (?, ?, ?, ?, ?)`),
			triple.App, triple.Provider, triple.KeyName, info.ID, attrs)
	}
	if err != nil {
		return nil, fmt.Errorf("storing key info for %s: %w", triple, err)
	}
	return prev, nil
}

// Remove implements keyinfo.Manager.
func (s *SQLStore) Remove(triple keyinfo.KeyTriple) (*keyinfo.KeyInfo, error) {
	prev, err := s.Get(triple)
	if err != nil {
		return nil, err
	}
	if prev == nil {
		return nil, nil
	}
	if _, err := s.db.Exec(
		s.rebind(`DELETE FROM key_info WHERE app = ? AND provider = ? AND key_name = ?`),
		triple.App, triple.Provider, triple.KeyName); err != nil {
		return nil, fmt.Errorf("removing key info for %s: %w", triple, err)
	}
	return prev, nil
}

// Exists implements keyinfo.Manager.
func (s *SQLStore) Exists(triple keyinfo.KeyTriple) (bool, error) {
	var one int
	err := s.db.QueryRow(
		s.rebind(`SELECT 1 FROM key_info WHERE app = ? AND provider = ? AND key_name = ?`),
		triple.App, triple.Provider, triple.KeyName).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("checking key info for %s: %w", triple, err)
	}
	return true, nil
}

// List implements keyinfo.Manager.
func (s *SQLStore) List(provider requests.ProviderID) ([]keyinfo.KeyTriple, error) {
	rows, err := s.db.Query(
		s.rebind(`SELECT app, key_name FROM key_info WHERE provider = ?`), provider)
	if err != nil {
		return nil, fmt.Errorf("listing key info for %s: %w", provider, err)
	}
	defer rows.Close()

	var triples []keyinfo.KeyTriple
	for rows.Next() {
		triple := keyinfo.KeyTriple{Provider: provider}
		if err := rows.Scan(&triple.App, &triple.KeyName); err != nil {
			return nil, err
		}
		triples = append(triples, triple)
	}
	return triples, rows.Err()
}

func scanInfo(row *sql.Row) (*keyinfo.KeyInfo, error) {
	var id, attrs []byte
	err := row.Scan(&id, &attrs)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var attributes operations.KeyAttributes
	if err := cbor.Unmarshal(attrs, &attributes); err != nil {
		return nil, fmt.Errorf("decoding stored key attributes: %w", err)
	}
	return &keyinfo.KeyInfo{ID: id, Attributes: attributes}, nil
}

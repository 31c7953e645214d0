package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq" // postgres/mysql-routed "conn-<name>-Driver" connections

	"github.com/generalbots/botcore/internal/declare"
	"github.com/generalbots/botcore/pkg/models"
)

// sqlBackend is the shared *sql.DB handle + dialect every SQL-backed C10
// store wraps, adapted from the teacher's DSN-open-plus-PingContext
// construction pattern. Each contract gets its own named type embedding
// a *sqlBackend rather than one type implementing every interface, since
// several contracts need a method literally named Upsert with different
// signatures.
type sqlBackend struct {
	db      *sql.DB
	dialect declare.Dialect
}

func openBackend(ctx context.Context, driverName, dsn string, dialect declare.Dialect) (*sqlBackend, error) {
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", driverName, err)
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("store: ping %s: %w", driverName, err)
	}
	b := &sqlBackend{db: db, dialect: dialect}
	if err := b.ensureSchema(ctx); err != nil {
		return nil, err
	}
	return b, nil
}

func (b *sqlBackend) ensureSchema(ctx context.Context) error {
	textType := "TEXT"
	timestampType := "TIMESTAMP"
	if b.dialect == declare.DialectMySQL {
		timestampType = "DATETIME"
	}
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS bot_config (bot_id ` + textType + `, key ` + textType + `, value ` + textType + `, PRIMARY KEY(bot_id, key))`,
		`CREATE TABLE IF NOT EXISTS system_automations (id ` + textType + ` PRIMARY KEY, bot_id ` + textType + `, kind ` + textType + `, target ` + textType + `, param ` + textType + `, schedule ` + textType + `, is_active BOOLEAN, last_triggered ` + timestampType + `, created_at ` + timestampType + `, updated_at ` + timestampType + `)`,
		`CREATE TABLE IF NOT EXISTS session_tool_associations (session_id ` + textType + `, bot_id ` + textType + `, tool_name ` + textType + `, is_active BOOLEAN, added_at ` + timestampType + `, PRIMARY KEY(session_id, tool_name))`,
		`CREATE TABLE IF NOT EXISTS session_kb_associations (session_id ` + textType + `, bot_id ` + textType + `, kb_name ` + textType + `, kb_folder_path ` + textType + `, qdrant_collection ` + textType + `, added_by_tool BOOLEAN, is_active BOOLEAN, added_at ` + timestampType + `, PRIMARY KEY(session_id, kb_name))`,
		`CREATE TABLE IF NOT EXISTS session_website_associations (session_id ` + textType + `, bot_id ` + textType + `, website_url ` + textType + `, collection_name ` + textType + `, is_active BOOLEAN, added_at ` + timestampType + `, PRIMARY KEY(session_id, website_url))`,
		`CREATE TABLE IF NOT EXISTS bot_memories (id ` + textType + ` PRIMARY KEY, user_id ` + textType + `, bot_id ` + textType + `, session_id ` + textType + `, key ` + textType + `, value ` + textType + `, created_at ` + timestampType + `, expires_at ` + timestampType + `)`,
		`CREATE TABLE IF NOT EXISTS table_schemas (bot_id ` + textType + `, name ` + textType + `, connection ` + textType + `, columns_json ` + textType + `, PRIMARY KEY(bot_id, name))`,
	}
	for _, stmt := range stmts {
		if _, err := b.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("store: ensure schema: %w", err)
		}
	}
	return nil
}

func (b *sqlBackend) placeholder(n int) string {
	if b.dialect == declare.DialectPostgres {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}

// quoteIdent quotes a charset-validated table/column identifier for this
// backend's dialect, matching declare.BuildCreateTable's quoting.
func (b *sqlBackend) quoteIdent(name string) string {
	if b.dialect == declare.DialectMySQL {
		return "`" + name + "`"
	}
	return `"` + name + `"`
}

func (b *sqlBackend) Close() error { return b.db.Close() }

// SQLConfigStore is the SQL-backed ConfigStore.
type SQLConfigStore struct{ *sqlBackend }

// OpenSQLConfigStore opens driverName against dsn and ensures the
// bot_config table exists.
func OpenSQLConfigStore(ctx context.Context, driverName, dsn string, dialect declare.Dialect) (*SQLConfigStore, error) {
	b, err := openBackend(ctx, driverName, dsn, dialect)
	if err != nil {
		return nil, err
	}
	return &SQLConfigStore{b}, nil
}

func (s *SQLConfigStore) Get(ctx context.Context, botID, key, fallback string) (string, error) {
	row := s.db.QueryRowContext(ctx, fmt.Sprintf("SELECT value FROM bot_config WHERE bot_id=%s AND key=%s", s.placeholder(1), s.placeholder(2)), botID, key)
	var value string
	if err := row.Scan(&value); err != nil {
		if err == sql.ErrNoRows {
			return fallback, nil
		}
		return fallback, err
	}
	return value, nil
}

func (s *SQLConfigStore) Upsert(ctx context.Context, botID, key, value string) error {
	if s.dialect == declare.DialectPostgres {
		_, err := s.db.ExecContext(ctx,
			"INSERT INTO bot_config (bot_id, key, value) VALUES ($1,$2,$3) ON CONFLICT (bot_id,key) DO UPDATE SET value=EXCLUDED.value",
			botID, key, value)
		return err
	}
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO bot_config (bot_id, key, value) VALUES (?,?,?) ON CONFLICT (bot_id,key) DO UPDATE SET value=excluded.value",
		botID, key, value)
	return err
}

func (s *SQLConfigStore) All(ctx context.Context, botID string) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf("SELECT key, value FROM bot_config WHERE bot_id=%s", s.placeholder(1)), botID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, err
		}
		out[k] = v
	}
	return out, rows.Err()
}

func (s *SQLConfigStore) SyncGbotConfig(ctx context.Context, botID, csvText string) (map[string]string, error) {
	changed := make(map[string]string)
	for _, line := range strings.Split(csvText, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		parts := strings.SplitN(line, ",", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])
		prev, _ := s.Get(ctx, botID, key, "")
		if prev != value {
			changed[key] = value
		}
		if err := s.Upsert(ctx, botID, key, value); err != nil {
			return changed, err
		}
	}
	return changed, nil
}

// SQLDeclarationStore is the SQL-backed DeclarationStore + TableSchemaStore.
type SQLDeclarationStore struct{ *sqlBackend }

func OpenSQLDeclarationStore(ctx context.Context, driverName, dsn string, dialect declare.Dialect) (*SQLDeclarationStore, error) {
	b, err := openBackend(ctx, driverName, dsn, dialect)
	if err != nil {
		return nil, err
	}
	return &SQLDeclarationStore{b}, nil
}

func (s *SQLDeclarationStore) scanDecl(row *sql.Rows) (models.Declaration, error) {
	var d models.Declaration
	var lastTriggered, createdAt, updatedAt sql.NullTime
	if err := row.Scan(&d.ID, &d.BotID, &d.Kind, &d.TargetOrEndpoint, &d.ScriptName, &d.Schedule, &d.IsActive, &lastTriggered, &createdAt, &updatedAt); err != nil {
		return d, err
	}
	if lastTriggered.Valid {
		d.LastTriggered = &lastTriggered.Time
	}
	d.CreatedAt = createdAt.Time
	d.UpdatedAt = updatedAt.Time
	return d, nil
}

func (s *SQLDeclarationStore) Upsert(ctx context.Context, decl models.Declaration) error {
	now := time.Now()
	id := decl.ID
	if id == "" {
		row := s.db.QueryRowContext(ctx, fmt.Sprintf(
			"SELECT id FROM system_automations WHERE bot_id=%s AND kind=%s AND target=%s AND param=%s",
			s.placeholder(1), s.placeholder(2), s.placeholder(3), s.placeholder(4)),
			decl.BotID, decl.Kind, decl.TargetOrEndpoint, decl.ScriptName)
		if err := row.Scan(&id); err != nil && err != sql.ErrNoRows {
			return err
		}
	}
	if id == "" {
		id = uuid.NewString()
	}
	if s.dialect == declare.DialectPostgres {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO system_automations (id,bot_id,kind,target,param,schedule,is_active,created_at,updated_at)
			VALUES ($1,$2,$3,$4,$5,$6,true,$7,$7)
			ON CONFLICT (id) DO UPDATE SET schedule=EXCLUDED.schedule, is_active=true, updated_at=EXCLUDED.updated_at`,
			id, decl.BotID, decl.Kind, decl.TargetOrEndpoint, decl.ScriptName, decl.Schedule, now)
		return err
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO system_automations (id,bot_id,kind,target,param,schedule,is_active,created_at,updated_at)
		VALUES (?,?,?,?,?,?,1,?,?)
		ON CONFLICT (id) DO UPDATE SET schedule=excluded.schedule, is_active=1, updated_at=excluded.updated_at`,
		id, decl.BotID, decl.Kind, decl.TargetOrEndpoint, decl.ScriptName, decl.Schedule, now, now)
	return err
}

func (s *SQLDeclarationStore) ListActive(ctx context.Context, botID string) ([]models.Declaration, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(
		"SELECT id,bot_id,kind,target,param,schedule,is_active,last_triggered,created_at,updated_at FROM system_automations WHERE bot_id=%s AND is_active=true",
		s.placeholder(1)), botID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []models.Declaration
	for rows.Next() {
		d, err := s.scanDecl(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *SQLDeclarationStore) ListActiveByKind(ctx context.Context, botID string, kind models.DeclarationKind) ([]models.Declaration, error) {
	all, err := s.ListActive(ctx, botID)
	if err != nil {
		return nil, err
	}
	var out []models.Declaration
	for _, d := range all {
		if d.Kind == kind {
			out = append(out, d)
		}
	}
	return out, nil
}

func (s *SQLDeclarationStore) Deactivate(ctx context.Context, botID, scriptName string, keep []models.Declaration) error {
	keepTargets := make(map[string]bool, len(keep))
	for _, k := range keep {
		keepTargets[string(k.Kind)+"|"+k.TargetOrEndpoint] = true
	}
	active, err := s.ListActive(ctx, botID)
	if err != nil {
		return err
	}
	for _, d := range active {
		if d.ScriptName != scriptName {
			continue
		}
		if keepTargets[string(d.Kind)+"|"+d.TargetOrEndpoint] {
			continue
		}
		if _, err := s.db.ExecContext(ctx, fmt.Sprintf("UPDATE system_automations SET is_active=false WHERE id=%s", s.placeholder(1)), d.ID); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLDeclarationStore) Delete(ctx context.Context, botID string, kind models.DeclarationKind, target string) error {
	_, err := s.db.ExecContext(ctx, fmt.Sprintf(
		"DELETE FROM system_automations WHERE bot_id=%s AND kind=%s AND target=%s",
		s.placeholder(1), s.placeholder(2), s.placeholder(3)), botID, kind, target)
	return err
}

func (s *SQLDeclarationStore) SetLastTriggered(ctx context.Context, id string, ts time.Time) error {
	_, err := s.db.ExecContext(ctx, fmt.Sprintf(
		"UPDATE system_automations SET last_triggered=%s WHERE id=%s", s.placeholder(1), s.placeholder(2)), ts, id)
	return err
}

// UpsertSchema records the logical column list alongside the physical
// DDL ExecuteDDL runs, so GetSchema can answer SAVE's positional-binding
// lookup without re-parsing the source TABLE declaration.
func (s *SQLDeclarationStore) UpsertSchema(ctx context.Context, schema models.TableSchema) error {
	cols, err := json.Marshal(schema.Columns)
	if err != nil {
		return fmt.Errorf("store: marshal table schema columns: %w", err)
	}
	if s.dialect == declare.DialectPostgres {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO table_schemas (bot_id, name, connection, columns_json) VALUES ($1,$2,$3,$4)
			ON CONFLICT (bot_id,name) DO UPDATE SET connection=EXCLUDED.connection, columns_json=EXCLUDED.columns_json`,
			schema.BotID, schema.Name, schema.Connection, string(cols))
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO table_schemas (bot_id, name, connection, columns_json) VALUES (?,?,?,?)
		ON CONFLICT (bot_id,name) DO UPDATE SET connection=excluded.connection, columns_json=excluded.columns_json`,
		schema.BotID, schema.Name, schema.Connection, string(cols))
	return err
}

func (s *SQLDeclarationStore) GetSchema(ctx context.Context, botID, table string) (models.TableSchema, bool, error) {
	row := s.db.QueryRowContext(ctx, fmt.Sprintf(
		"SELECT connection, columns_json FROM table_schemas WHERE bot_id=%s AND name=%s", s.placeholder(1), s.placeholder(2)),
		botID, table)
	var connection, colsJSON string
	if err := row.Scan(&connection, &colsJSON); err != nil {
		if err == sql.ErrNoRows {
			return models.TableSchema{}, false, nil
		}
		return models.TableSchema{}, false, err
	}
	var cols []models.TableColumn
	if err := json.Unmarshal([]byte(colsJSON), &cols); err != nil {
		return models.TableSchema{}, false, fmt.Errorf("store: unmarshal table schema columns: %w", err)
	}
	return models.TableSchema{BotID: botID, Name: table, Connection: connection, Columns: cols}, true, nil
}

func (s *SQLDeclarationStore) ExecuteDDL(ctx context.Context, _connection, ddl string) error {
	_, err := s.db.ExecContext(ctx, ddl)
	return err
}

// SQLAssociationStore is the SQL-backed AssociationStore.
type SQLAssociationStore struct{ *sqlBackend }

func OpenSQLAssociationStore(ctx context.Context, driverName, dsn string, dialect declare.Dialect) (*SQLAssociationStore, error) {
	b, err := openBackend(ctx, driverName, dsn, dialect)
	if err != nil {
		return nil, err
	}
	return &SQLAssociationStore{b}, nil
}

func (s *SQLAssociationStore) table(kind AssociationKind) (table, keyCol string) {
	switch kind {
	case AssocTool:
		return "session_tool_associations", "tool_name"
	case AssocKB:
		return "session_kb_associations", "kb_name"
	default:
		return "session_website_associations", "website_url"
	}
}

func (s *SQLAssociationStore) UpsertActivate(ctx context.Context, kind AssociationKind, a Association) error {
	table, keyCol := s.table(kind)
	now := time.Now()
	onConflict := "ON CONFLICT (session_id,%s) DO UPDATE SET is_active=true"
	if s.dialect != declare.DialectPostgres {
		onConflict = "ON CONFLICT (session_id,%s) DO UPDATE SET is_active=1"
	}
	stmt := fmt.Sprintf("INSERT INTO %s (session_id, bot_id, %s, is_active, added_at) VALUES (%s,%s,%s,true,%s) "+onConflict,
		table, keyCol, s.placeholder(1), s.placeholder(2), s.placeholder(3), s.placeholder(4), keyCol)
	_, err := s.db.ExecContext(ctx, stmt, a.SessionID, a.BotID, a.Key, now)
	return err
}

func (s *SQLAssociationStore) DeactivateAll(ctx context.Context, kind AssociationKind, sessionID string) error {
	table, _ := s.table(kind)
	_, err := s.db.ExecContext(ctx, fmt.Sprintf("UPDATE %s SET is_active=false WHERE session_id=%s", table, s.placeholder(1)), sessionID)
	return err
}

func (s *SQLAssociationStore) Deactivate(ctx context.Context, kind AssociationKind, sessionID, key string) error {
	table, keyCol := s.table(kind)
	_, err := s.db.ExecContext(ctx, fmt.Sprintf("UPDATE %s SET is_active=false WHERE session_id=%s AND %s=%s", table, s.placeholder(1), keyCol, s.placeholder(2)), sessionID, key)
	return err
}

func (s *SQLAssociationStore) ListActive(ctx context.Context, kind AssociationKind, sessionID string) ([]Association, error) {
	table, keyCol := s.table(kind)
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf("SELECT session_id, bot_id, %s, is_active, added_at FROM %s WHERE session_id=%s AND is_active=true", keyCol, table, s.placeholder(1)), sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Association
	for rows.Next() {
		var a Association
		if err := rows.Scan(&a.SessionID, &a.BotID, &a.Key, &a.IsActive, &a.AddedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// SQLMemoryStore is the SQL-backed MemoryStore.
type SQLMemoryStore struct{ *sqlBackend }

func OpenSQLMemoryStore(ctx context.Context, driverName, dsn string, dialect declare.Dialect) (*SQLMemoryStore, error) {
	b, err := openBackend(ctx, driverName, dsn, dialect)
	if err != nil {
		return nil, err
	}
	return &SQLMemoryStore{b}, nil
}

func (s *SQLMemoryStore) Put(ctx context.Context, m models.Memory) error {
	id := uuid.NewString()
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now()
	}
	del := fmt.Sprintf("DELETE FROM bot_memories WHERE user_id=%s AND bot_id=%s AND key=%s",
		s.placeholder(1), s.placeholder(2), s.placeholder(3))
	if _, err := s.db.ExecContext(ctx, del, m.UserID, m.BotID, m.Key); err != nil {
		return err
	}
	if s.dialect == declare.DialectPostgres {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO bot_memories (id,user_id,bot_id,session_id,key,value,created_at,expires_at)
			VALUES ($1,$2,$3,'',$4,$5,$6,$7)
			ON CONFLICT (id) DO UPDATE SET value=EXCLUDED.value, expires_at=EXCLUDED.expires_at`,
			id, m.UserID, m.BotID, m.Key, m.Value, m.CreatedAt, m.ExpiresAt)
		return err
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO bot_memories (id,user_id,bot_id,session_id,key,value,created_at,expires_at)
		VALUES (?,?,?,'',?,?,?,?)
		ON CONFLICT (id) DO UPDATE SET value=excluded.value, expires_at=excluded.expires_at`,
		id, m.UserID, m.BotID, m.Key, m.Value, m.CreatedAt, m.ExpiresAt)
	return err
}

func (s *SQLMemoryStore) Get(ctx context.Context, userID, botID, key string, now time.Time) (*models.Memory, error) {
	row := s.db.QueryRowContext(ctx, fmt.Sprintf(
		"SELECT user_id,bot_id,key,value,created_at,expires_at FROM bot_memories WHERE user_id=%s AND bot_id=%s AND key=%s",
		s.placeholder(1), s.placeholder(2), s.placeholder(3)), userID, botID, key)
	var m models.Memory
	var expires sql.NullTime
	if err := row.Scan(&m.UserID, &m.BotID, &m.Key, &m.Value, &m.CreatedAt, &expires); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	if expires.Valid {
		m.ExpiresAt = &expires.Time
	}
	if m.Expired(now) {
		return nil, nil
	}
	return &m, nil
}

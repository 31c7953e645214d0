package store

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/generalbots/botcore/pkg/models"
)

// MemConfigStore is an in-memory ConfigStore, used by tests and
// single-process development without a database.
type MemConfigStore struct {
	mu   sync.RWMutex
	data map[string]map[string]string // botID -> key -> value
}

func NewMemConfigStore() *MemConfigStore {
	return &MemConfigStore{data: make(map[string]map[string]string)}
}

func (s *MemConfigStore) Get(_ context.Context, botID, key, fallback string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if m, ok := s.data[botID]; ok {
		if v, ok := m[key]; ok {
			return v, nil
		}
	}
	return fallback, nil
}

func (s *MemConfigStore) Upsert(_ context.Context, botID, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.data[botID] == nil {
		s.data[botID] = make(map[string]string)
	}
	s.data[botID][key] = value
	return nil
}

func (s *MemConfigStore) All(_ context.Context, botID string) (map[string]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]string, len(s.data[botID]))
	for k, v := range s.data[botID] {
		out[k] = v
	}
	return out, nil
}

// SyncGbotConfig replaces every key named in csvText (one "key,value"
// pair per line, no header), returning the subset whose value actually
// changed so callers (the drive monitor's config stream) can react only
// to real diffs.
func (s *MemConfigStore) SyncGbotConfig(ctx context.Context, botID, csvText string) (map[string]string, error) {
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

// MemDeclarationStore is an in-memory implementation of both
// declare.DeclarationStore/TableSchemaStore and store.DeclarationStore.
type MemDeclarationStore struct {
	mu    sync.RWMutex
	decls map[string]*models.Declaration // key -> declaration

	schemaMu sync.RWMutex
	schemas  map[string]models.TableSchema
	ddlLog   []string
}

func NewMemDeclarationStore() *MemDeclarationStore {
	return &MemDeclarationStore{
		decls:   make(map[string]*models.Declaration),
		schemas: make(map[string]models.TableSchema),
	}
}

func declKey(botID string, kind models.DeclarationKind, target, script string) string {
	return fmt.Sprintf("%s|%s|%s|%s", botID, kind, target, script)
}

func (s *MemDeclarationStore) Upsert(_ context.Context, decl models.Declaration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	botID, kind, target, script := decl.Key()
	k := declKey(botID, kind, target, script)
	if existing, ok := s.decls[k]; ok {
		decl.ID = existing.ID
		decl.CreatedAt = existing.CreatedAt
		decl.LastTriggered = existing.LastTriggered
	} else if decl.ID == "" {
		decl.ID = uuid.NewString()
	}
	if decl.CreatedAt.IsZero() {
		decl.CreatedAt = time.Now()
	}
	decl.UpdatedAt = time.Now()
	decl.IsActive = true
	cp := decl
	s.decls[k] = &cp
	return nil
}

func (s *MemDeclarationStore) ListActive(_ context.Context, botID string) ([]models.Declaration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Declaration
	for _, d := range s.decls {
		if d.BotID == botID && d.IsActive {
			out = append(out, *d)
		}
	}
	return out, nil
}

func (s *MemDeclarationStore) ListActiveByKind(ctx context.Context, botID string, kind models.DeclarationKind) ([]models.Declaration, error) {
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

// Deactivate clears IsActive on every declaration from a prior harvest
// of scriptName not present in keep, implementing the retraction
// invariant in spec.md §8.
func (s *MemDeclarationStore) Deactivate(_ context.Context, botID, scriptName string, keep []models.Declaration) error {
	keepKeys := make(map[string]bool, len(keep))
	for _, k := range keep {
		b, kind, target, script := k.Key()
		keepKeys[declKey(b, kind, target, script)] = true
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, d := range s.decls {
		if d.BotID == botID && d.ScriptName == scriptName && !keepKeys[k] {
			d.IsActive = false
			d.UpdatedAt = time.Now()
		}
	}
	return nil
}

func (s *MemDeclarationStore) Delete(_ context.Context, botID string, kind models.DeclarationKind, target string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, d := range s.decls {
		if d.BotID == botID && d.Kind == kind && d.TargetOrEndpoint == target {
			delete(s.decls, k)
		}
	}
	return nil
}

func (s *MemDeclarationStore) SetLastTriggered(_ context.Context, id string, ts time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range s.decls {
		if d.ID == id {
			t := ts
			d.LastTriggered = &t
			return nil
		}
	}
	return fmt.Errorf("store: declaration %s not found", id)
}

func (s *MemDeclarationStore) UpsertSchema(_ context.Context, schema models.TableSchema) error {
	s.schemaMu.Lock()
	defer s.schemaMu.Unlock()
	s.schemas[schema.BotID+"|"+schema.Name] = schema
	return nil
}

// ExecuteDDL records the statement rather than running it against a real
// database; MemDeclarationStore backs tests and development only.
func (s *MemDeclarationStore) ExecuteDDL(_ context.Context, _connection, ddl string) error {
	s.schemaMu.Lock()
	defer s.schemaMu.Unlock()
	s.ddlLog = append(s.ddlLog, ddl)
	return nil
}

// GetSchema returns the last-harvested schema for (botID, table).
func (s *MemDeclarationStore) GetSchema(_ context.Context, botID, table string) (models.TableSchema, bool, error) {
	s.schemaMu.RLock()
	defer s.schemaMu.RUnlock()
	schema, ok := s.schemas[botID+"|"+table]
	return schema, ok, nil
}

// ExecutedDDL returns every DDL statement recorded by ExecuteDDL, for
// tests to assert against.
func (s *MemDeclarationStore) ExecutedDDL() []string {
	s.schemaMu.RLock()
	defer s.schemaMu.RUnlock()
	out := make([]string, len(s.ddlLog))
	copy(out, s.ddlLog)
	return out
}

// MemAssociationStore is an in-memory AssociationStore serving all three
// association kinds (tool/KB/website), keyed by kind since the three
// tables share shape but not namespace.
type MemAssociationStore struct {
	mu   sync.RWMutex
	data map[AssociationKind]map[string]*Association
}

func NewMemAssociationStore() *MemAssociationStore {
	return &MemAssociationStore{data: make(map[AssociationKind]map[string]*Association)}
}

func assocKey(sessionID, key string) string { return sessionID + "|" + key }

func (s *MemAssociationStore) UpsertActivate(_ context.Context, kind AssociationKind, a Association) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.data[kind] == nil {
		s.data[kind] = make(map[string]*Association)
	}
	a.IsActive = true
	if a.AddedAt.IsZero() {
		a.AddedAt = time.Now()
	}
	cp := a
	s.data[kind][assocKey(a.SessionID, a.Key)] = &cp
	return nil
}

func (s *MemAssociationStore) DeactivateAll(_ context.Context, kind AssociationKind, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.data[kind] {
		if a.SessionID == sessionID {
			a.IsActive = false
		}
	}
	return nil
}

func (s *MemAssociationStore) Deactivate(_ context.Context, kind AssociationKind, sessionID, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a, ok := s.data[kind][assocKey(sessionID, key)]; ok {
		a.IsActive = false
	}
	return nil
}

func (s *MemAssociationStore) ListActive(_ context.Context, kind AssociationKind, sessionID string) ([]Association, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Association
	for _, a := range s.data[kind] {
		if a.SessionID == sessionID && a.IsActive {
			out = append(out, *a)
		}
	}
	return out, nil
}

// MemMemoryStore is an in-memory MemoryStore.
type MemMemoryStore struct {
	mu   sync.RWMutex
	data map[string]*models.Memory
}

func NewMemMemoryStore() *MemMemoryStore {
	return &MemMemoryStore{data: make(map[string]*models.Memory)}
}

func memKey(userID, botID, key string) string { return userID + "|" + botID + "|" + key }

func (s *MemMemoryStore) Put(_ context.Context, m models.Memory) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now()
	}
	cp := m
	s.data[memKey(m.UserID, m.BotID, m.Key)] = &cp
	return nil
}

func (s *MemMemoryStore) Get(_ context.Context, userID, botID, key string, now time.Time) (*models.Memory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.data[memKey(userID, botID, key)]
	if !ok || m.Expired(now) {
		return nil, nil
	}
	cp := *m
	return &cp, nil
}

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store using SQLite for persistence.
type SQLiteStore struct {
	db *sql.DB
	mu sync.RWMutex
}

// NewSQLiteStore opens (or creates) a SQLite-backed store at dbPath.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return s, nil
}

// migrate creates the necessary tables if they don't exist.
func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS conversations (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		platform TEXT NOT NULL,
		channel_ref TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'active',
		started_at TIMESTAMP NOT NULL,
		last_activity_at TIMESTAMP NOT NULL
	);

	CREATE TABLE IF NOT EXISTS messages (
		id TEXT PRIMARY KEY,
		conversation_id TEXT NOT NULL,
		role TEXT NOT NULL,
		content TEXT NOT NULL,
		meta TEXT,
		created_at TIMESTAMP NOT NULL,
		FOREIGN KEY (conversation_id) REFERENCES conversations(id)
	);

	CREATE TABLE IF NOT EXISTS memories (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		type TEXT NOT NULL,
		content TEXT NOT NULL,
		reference TEXT,
		importance REAL NOT NULL DEFAULT 0.5,
		access_count INTEGER NOT NULL DEFAULT 0,
		last_accessed TIMESTAMP,
		created_at TIMESTAMP NOT NULL
	);

	CREATE TABLE IF NOT EXISTS code_change_requests (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		request TEXT NOT NULL,
		context TEXT,
		priority TEXT NOT NULL,
		category TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		created_at TIMESTAMP NOT NULL,
		implemented_at TIMESTAMP,
		implementation_notes TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_conversations_channel ON conversations(user_id, platform, channel_ref);
	CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages(conversation_id, created_at);
	CREATE INDEX IF NOT EXISTS idx_memories_user ON memories(user_id, created_at);
	CREATE INDEX IF NOT EXISTS idx_change_requests_user ON code_change_requests(user_id, status);
	`

	_, err := s.db.Exec(schema)
	return err
}

// CreateConversation starts a new active conversation.
func (s *SQLiteStore) CreateConversation(ctx context.Context, userID, platform, channelRef string) (*Conversation, error) {
	if userID == "" {
		return nil, &ValidationError{Field: "user_id", Reason: "must not be empty"}
	}
	if platform == "" {
		return nil, &ValidationError{Field: "platform", Reason: "must not be empty"}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	conv := &Conversation{
		ID:             uuid.NewString(),
		UserID:         userID,
		Platform:       platform,
		ChannelRef:     channelRef,
		Status:         ConversationActive,
		StartedAt:      now,
		LastActivityAt: now,
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO conversations (id, user_id, platform, channel_ref, status, started_at, last_activity_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		conv.ID, conv.UserID, conv.Platform, conv.ChannelRef, string(conv.Status), conv.StartedAt, conv.LastActivityAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create conversation: %w", err)
	}

	return conv, nil
}

// GetConversation returns a conversation by id.
func (s *SQLiteStore) GetConversation(ctx context.Context, id string) (*Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, platform, channel_ref, status, started_at, last_activity_at
		 FROM conversations WHERE id = ?`, id)

	return scanConversation(row)
}

// FindConversation returns the most recent active conversation on a channel.
func (s *SQLiteStore) FindConversation(ctx context.Context, userID, platform, channelRef string) (*Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, platform, channel_ref, status, started_at, last_activity_at
		 FROM conversations
		 WHERE user_id = ? AND platform = ? AND channel_ref = ? AND status = 'active'
		 ORDER BY last_activity_at DESC
		 LIMIT 1`,
		userID, platform, channelRef)

	return scanConversation(row)
}

// AppendMessage persists a message in a conversation.
func (s *SQLiteStore) AppendMessage(ctx context.Context, conversationID string, role MessageRole, content string, meta MessageMeta) (*Message, error) {
	if conversationID == "" {
		return nil, &ValidationError{Field: "conversation_id", Reason: "must not be empty"}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal message meta: %w", err)
	}

	msg := &Message{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		Role:           role,
		Content:        content,
		Meta:           meta,
		CreatedAt:      time.Now().UTC(),
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO messages (id, conversation_id, role, content, meta, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		msg.ID, msg.ConversationID, string(msg.Role), msg.Content, string(metaJSON), msg.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to append message: %w", err)
	}

	return msg, nil
}

// RecentMessages returns the newest messages of a conversation, oldest first.
func (s *SQLiteStore) RecentMessages(ctx context.Context, conversationID string, limit int) ([]Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, conversation_id, role, content, meta, created_at
		 FROM messages
		 WHERE conversation_id = ?
		 ORDER BY created_at DESC
		 LIMIT ?`,
		conversationID, limit)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	messages := make([]Message, 0, limit)
	for rows.Next() {
		var msg Message
		var role string
		var metaJSON sql.NullString

		if err := rows.Scan(&msg.ID, &msg.ConversationID, &role, &msg.Content, &metaJSON, &msg.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		msg.Role = MessageRole(role)
		if metaJSON.Valid && metaJSON.String != "" {
			if err := json.Unmarshal([]byte(metaJSON.String), &msg.Meta); err != nil {
				msg.Meta = MessageMeta{}
			}
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// The query returns newest first; flip to chronological order.
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}

	return messages, nil
}

// RecentMemories returns up to limit memories for a user, most recent first,
// bumping each returned memory's access stats.
func (s *SQLiteStore) RecentMemories(ctx context.Context, userID string, limit int) ([]Memory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if limit <= 0 {
		limit = 10
	}

	memories, err := s.queryMemories(ctx,
		`SELECT id, user_id, type, content, reference, importance, access_count, last_accessed, created_at
		 FROM memories
		 WHERE user_id = ?
		 ORDER BY created_at DESC
		 LIMIT ?`,
		userID, limit)
	if err != nil {
		return nil, err
	}

	if err := s.bumpAccessStats(ctx, memories); err != nil {
		return nil, err
	}

	return memories, nil
}

// RelevantMemories returns memories ranked by relevance to the query.
func (s *SQLiteStore) RelevantMemories(ctx context.Context, userID, query string, limit int) ([]Memory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if limit <= 0 {
		limit = 10
	}

	// Fetch more than limit to allow for scoring and reranking.
	fetchLimit := limit * 3
	if fetchLimit < 50 {
		fetchLimit = 50
	}

	memories, err := s.queryMemories(ctx,
		`SELECT id, user_id, type, content, reference, importance, access_count, last_accessed, created_at
		 FROM memories
		 WHERE user_id = ?
		 ORDER BY created_at DESC
		 LIMIT ?`,
		userID, fetchLimit)
	if err != nil {
		return nil, err
	}

	sort.SliceStable(memories, func(i, j int) bool {
		return ScoreMemory(&memories[i], query) > ScoreMemory(&memories[j], query)
	})
	if len(memories) > limit {
		memories = memories[:limit]
	}

	if err := s.bumpAccessStats(ctx, memories); err != nil {
		return nil, err
	}

	return memories, nil
}

// AppendMemory persists a new memory for a user.
func (s *SQLiteStore) AppendMemory(ctx context.Context, userID string, typ MemoryType, content string, importance float64) (*Memory, error) {
	if userID == "" {
		return nil, &ValidationError{Field: "user_id", Reason: "must not be empty"}
	}
	if content == "" {
		return nil, &ValidationError{Field: "content", Reason: "must not be empty"}
	}
	if importance < 0 || importance > 1 {
		return nil, &ValidationError{Field: "importance", Reason: "must be in [0,1]"}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	mem := &Memory{
		ID:         uuid.NewString(),
		UserID:     userID,
		Type:       typ,
		Content:    content,
		Importance: importance,
		CreatedAt:  time.Now().UTC(),
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO memories (id, user_id, type, content, reference, importance, access_count, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, 0, ?)`,
		mem.ID, mem.UserID, string(mem.Type), mem.Content, mem.Reference, mem.Importance, mem.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to append memory: %w", err)
	}

	return mem, nil
}

// CreateCodeChangeRequest persists a detected change request in pending status.
func (s *SQLiteStore) CreateCodeChangeRequest(ctx context.Context, userID, request, contextJSON string, priority ChangePriority, category ChangeCategory) (*CodeChangeRequest, error) {
	if userID == "" {
		return nil, &ValidationError{Field: "user_id", Reason: "must not be empty"}
	}
	if request == "" {
		return nil, &ValidationError{Field: "request", Reason: "must not be empty"}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	req := &CodeChangeRequest{
		ID:        uuid.NewString(),
		UserID:    userID,
		Request:   request,
		Context:   contextJSON,
		Priority:  priority,
		Category:  category,
		Status:    ChangePending,
		CreatedAt: time.Now().UTC(),
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO code_change_requests (id, user_id, request, context, priority, category, status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		req.ID, req.UserID, req.Request, req.Context, string(req.Priority), string(req.Category), string(req.Status), req.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create code change request: %w", err)
	}

	return req, nil
}

// UpdateCodeChangeStatus applies an external reviewer's decision.
func (s *SQLiteStore) UpdateCodeChangeStatus(ctx context.Context, id string, status ChangeStatus, notes string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var res sql.Result
	var err error
	if status == ChangeImplemented {
		res, err = s.db.ExecContext(ctx,
			`UPDATE code_change_requests
			 SET status = ?, implementation_notes = ?, implemented_at = ?
			 WHERE id = ?`,
			string(status), notes, time.Now().UTC(), id)
	} else {
		res, err = s.db.ExecContext(ctx,
			`UPDATE code_change_requests
			 SET status = ?, implementation_notes = ?
			 WHERE id = ?`,
			string(status), notes, id)
	}
	if err != nil {
		return fmt.Errorf("failed to update code change request: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// TouchConversation updates a conversation's last-activity timestamp.
func (s *SQLiteStore) TouchConversation(ctx context.Context, conversationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		`UPDATE conversations SET last_activity_at = ? WHERE id = ?`,
		time.Now().UTC(), conversationID)
	if err != nil {
		return fmt.Errorf("failed to touch conversation: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// queryMemories runs a memory SELECT and scans all rows. Caller holds the lock.
func (s *SQLiteStore) queryMemories(ctx context.Context, query string, args ...any) ([]Memory, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	memories := make([]Memory, 0)
	for rows.Next() {
		var mem Memory
		var typ string
		var reference sql.NullString
		var lastAccessed sql.NullTime

		err := rows.Scan(&mem.ID, &mem.UserID, &typ, &mem.Content, &reference,
			&mem.Importance, &mem.AccessCount, &lastAccessed, &mem.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan memory: %w", err)
		}

		mem.Type = MemoryType(typ)
		mem.Reference = reference.String
		if lastAccessed.Valid {
			mem.LastAccessed = lastAccessed.Time
		}
		memories = append(memories, mem)
	}

	return memories, rows.Err()
}

// bumpAccessStats increments access stats for the returned memories, exactly
// once per retrieval, before the results are handed back. Caller holds the
// lock.
func (s *SQLiteStore) bumpAccessStats(ctx context.Context, memories []Memory) error {
	now := time.Now().UTC()
	for i := range memories {
		_, err := s.db.ExecContext(ctx,
			`UPDATE memories SET last_accessed = ?, access_count = access_count + 1 WHERE id = ?`,
			now, memories[i].ID)
		if err != nil {
			return fmt.Errorf("failed to update access stats: %w", err)
		}
		memories[i].AccessCount++
		memories[i].LastAccessed = now
	}
	return nil
}

// scanConversation scans a single conversation row.
func scanConversation(row *sql.Row) (*Conversation, error) {
	var conv Conversation
	var status string

	err := row.Scan(&conv.ID, &conv.UserID, &conv.Platform, &conv.ChannelRef,
		&status, &conv.StartedAt, &conv.LastActivityAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan conversation: %w", err)
	}

	conv.Status = ConversationStatus(status)
	return &conv, nil
}

package chat

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"studio-chat/internal/mention"
)

// MessageRepo is the durable message store the engine writes through.
type MessageRepo interface {
	// RecentMessages returns at most limit messages for the channel in
	// ascending creation order: the most recent window, not full history.
	RecentMessages(ctx context.Context, channelID string, limit int) ([]Message, error)
	// InsertMessage persists the message, assigning its ID and timestamp,
	// and returns the stored record.
	InsertMessage(ctx context.Context, msg Message) (Message, error)
}

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) RecentMessages(ctx context.Context, channelID string, limit int) ([]Message, error) {
	// Window by newest first, then flip to display order.
	query := `
		SELECT id, channel_id, author_id, author_name, content, mentions, created_at
		FROM messages
		WHERE channel_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`
	rows, err := r.db.QueryContext(ctx, query, channelID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []Message
	for rows.Next() {
		var (
			msg      Message
			mentions []byte
		)
		if err := rows.Scan(&msg.ID, &msg.ChannelID, &msg.AuthorID, &msg.AuthorName,
			&msg.Content, &mentions, &msg.CreatedAt); err != nil {
			return nil, err
		}
		if len(mentions) > 0 {
			set := &mention.Set{}
			if err := json.Unmarshal(mentions, set); err != nil {
				return nil, fmt.Errorf("decode mentions for %s: %w", msg.ID, err)
			}
			msg.Mentions = set
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

func (r *Repository) InsertMessage(ctx context.Context, msg Message) (Message, error) {
	msg.ID = uuid.NewString()

	var mentions any
	if msg.Mentions != nil {
		payload, err := json.Marshal(msg.Mentions)
		if err != nil {
			return Message{}, err
		}
		mentions = payload
	}

	query := `
		INSERT INTO messages (id, channel_id, author_id, author_name, content, mentions)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at
	`
	var createdAt time.Time
	err := r.db.QueryRowContext(ctx, query,
		msg.ID, msg.ChannelID, msg.AuthorID, msg.AuthorName, msg.Content, mentions).
		Scan(&createdAt)
	if err != nil {
		return Message{}, err
	}

	msg.CreatedAt = createdAt
	return msg, nil
}

var _ MessageRepo = (*Repository)(nil)

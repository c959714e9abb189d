package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kmelnikov/slackvault/internal/common/errors"
)

type Message struct {
	ID           int64
	UserID       string
	UserName     string
	ChannelID    string
	ChannelName  string
	Text         string
	SentAt       time.Time
	ParentSentAt *time.Time
}

type Reaction struct {
	ID        int64
	MessageID int64
	UserID    string
	UserName  string
	Name      string
	ReactedAt time.Time
	Count     int
}

// Repository owns all access to the messages and message_reactions tables.
// Every method issues a single statement on its own pooled connection; there
// are no transactions spanning calls.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// InsertMessage appends one row. There is no dedup: the same event delivered
// twice produces two rows.
func (r *Repository) InsertMessage(ctx context.Context, msg *Message) error {
	query := `
		INSERT INTO messages (user_id, user_name, channel_id, channel_name, message_text, sent_at, parent_sent_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING message_id
	`

	return r.pool.QueryRow(ctx, query,
		msg.UserID,
		msg.UserName,
		msg.ChannelID,
		msg.ChannelName,
		msg.Text,
		msg.SentAt,
		msg.ParentSentAt,
	).Scan(&msg.ID)
}

func (r *Repository) InsertReaction(ctx context.Context, reaction *Reaction) error {
	query := `
		INSERT INTO message_reactions (message_id, user_id, user_name, reaction_name, reaction_ts, count)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING message_reaction_id
	`

	return r.pool.QueryRow(ctx, query,
		reaction.MessageID,
		reaction.UserID,
		reaction.UserName,
		reaction.Name,
		reaction.ReactedAt,
		reaction.Count,
	).Scan(&reaction.ID)
}

// UpdateReactionCount sets the count for the (message, reaction) row. Zero
// rows matched is a silent no-op; callers must not assume a match occurred.
func (r *Repository) UpdateReactionCount(ctx context.Context, messageID int64, reactionName string, count int) error {
	query := `
		UPDATE message_reactions
		SET count = $3
		WHERE message_id = $1 AND reaction_name = $2
	`

	_, err := r.pool.Exec(ctx, query, messageID, reactionName, count)
	return err
}

func (r *Repository) GetReactionCount(ctx context.Context, messageID int64, reactionName string) (int, error) {
	query := `
		SELECT count FROM message_reactions
		WHERE message_id = $1 AND reaction_name = $2
		ORDER BY message_reaction_id
		LIMIT 1
	`

	var count int
	err := r.pool.QueryRow(ctx, query, messageID, reactionName).Scan(&count)
	if err == pgx.ErrNoRows {
		return 0, errors.NotFound("reaction not found")
	}
	if err != nil {
		return 0, err
	}

	return count, nil
}

// GetMessageID returns the id of the first message stored with the given sent
// timestamp. The timestamp is not a unique key; when several messages share
// one, the lowest id wins and the others are unreachable through this lookup.
func (r *Repository) GetMessageID(ctx context.Context, sentAt time.Time) (int64, error) {
	query := `
		SELECT message_id FROM messages
		WHERE sent_at = $1
		ORDER BY message_id
		LIMIT 1
	`

	var id int64
	err := r.pool.QueryRow(ctx, query, sentAt).Scan(&id)
	if err == pgx.ErrNoRows {
		return 0, errors.NotFound("message not found")
	}
	if err != nil {
		return 0, err
	}

	return id, nil
}

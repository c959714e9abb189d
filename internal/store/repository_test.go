package store_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kmelnikov/slackvault/internal/common/config"
	apperrors "github.com/kmelnikov/slackvault/internal/common/errors"
	"github.com/kmelnikov/slackvault/internal/infra/db"
	"github.com/kmelnikov/slackvault/internal/infra/migrations"
	"github.com/kmelnikov/slackvault/internal/store"
)

func setupTestDB(t *testing.T) *db.DB {
	t.Helper()

	cfg := config.DatabaseConfig{
		Host:            "localhost",
		Port:            5432,
		User:            "postgres",
		Password:        "postgres",
		Database:        "slackvault_test",
		MaxConns:        5,
		MinConns:        1,
		MaxConnLifetime: 5 * time.Minute,
		MaxConnIdleTime: 5 * time.Minute,
	}

	database, err := db.New(cfg)
	if err != nil {
		t.Skipf("test database unavailable: %v", err)
	}

	ctx := context.Background()
	require.NoError(t, migrations.Run(ctx, database.Pool), "failed to run migrations")

	cleanupTestData(t, database)
	t.Cleanup(database.Close)

	return database
}

func cleanupTestData(t *testing.T, database *db.DB) {
	t.Helper()
	ctx := context.Background()

	for _, table := range []string{"message_reactions", "messages"} {
		query := fmt.Sprintf("TRUNCATE TABLE %s CASCADE", table)
		if _, err := database.Pool.Exec(ctx, query); err != nil {
			t.Logf("warning: failed to truncate table %s: %v", table, err)
		}
	}
}

func sampleMessage(sentAt time.Time) *store.Message {
	return &store.Message{
		UserID:      "U1",
		UserName:    "John Doe",
		ChannelID:   "C1",
		ChannelName: "general",
		Text:        "hi",
		SentAt:      sentAt,
	}
}

func TestInsertAndLookupMessage(t *testing.T) {
	database := setupTestDB(t)
	repo := store.NewRepository(database.Pool)
	ctx := context.Background()

	sentAt := time.Date(2024, 4, 5, 12, 0, 0, 0, time.UTC)
	msg := sampleMessage(sentAt)

	require.NoError(t, repo.InsertMessage(ctx, msg))
	assert.NotZero(t, msg.ID)

	id, err := repo.GetMessageID(ctx, sentAt)
	require.NoError(t, err)
	assert.Equal(t, msg.ID, id)
}

func TestGetMessageIDNotFound(t *testing.T) {
	database := setupTestDB(t)
	repo := store.NewRepository(database.Pool)

	_, err := repo.GetMessageID(context.Background(), time.Date(1999, 1, 1, 0, 0, 0, 0, time.UTC))
	assert.True(t, apperrors.IsNotFound(err))
}

func TestInsertMessageNoDedup(t *testing.T) {
	database := setupTestDB(t)
	repo := store.NewRepository(database.Pool)
	ctx := context.Background()

	sentAt := time.Date(2024, 4, 5, 13, 0, 0, 0, time.UTC)

	first := sampleMessage(sentAt)
	second := sampleMessage(sentAt)
	require.NoError(t, repo.InsertMessage(ctx, first))
	require.NoError(t, repo.InsertMessage(ctx, second))
	assert.NotEqual(t, first.ID, second.ID)

	// Lookup by timestamp resolves to the first stored row.
	id, err := repo.GetMessageID(ctx, sentAt)
	require.NoError(t, err)
	assert.Equal(t, first.ID, id)
}

func TestMessageWithThreadRoot(t *testing.T) {
	database := setupTestDB(t)
	repo := store.NewRepository(database.Pool)
	ctx := context.Background()

	parent := time.Date(2024, 4, 5, 11, 0, 0, 0, time.UTC)
	msg := sampleMessage(time.Date(2024, 4, 5, 14, 0, 0, 0, time.UTC))
	msg.ParentSentAt = &parent

	require.NoError(t, repo.InsertMessage(ctx, msg))

	var stored *time.Time
	err := database.Pool.QueryRow(ctx,
		"SELECT parent_sent_at FROM messages WHERE message_id = $1", msg.ID,
	).Scan(&stored)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.True(t, stored.Equal(parent))
}

func TestReactionLifecycle(t *testing.T) {
	database := setupTestDB(t)
	repo := store.NewRepository(database.Pool)
	ctx := context.Background()

	msg := sampleMessage(time.Date(2024, 4, 5, 15, 0, 0, 0, time.UTC))
	require.NoError(t, repo.InsertMessage(ctx, msg))

	_, err := repo.GetReactionCount(ctx, msg.ID, "thumbsup")
	assert.True(t, apperrors.IsNotFound(err))

	reaction := &store.Reaction{
		MessageID: msg.ID,
		UserID:    "U2",
		UserName:  "Jane Roe",
		Name:      "thumbsup",
		ReactedAt: time.Date(2024, 4, 5, 15, 1, 0, 0, time.UTC),
		Count:     1,
	}
	require.NoError(t, repo.InsertReaction(ctx, reaction))
	assert.NotZero(t, reaction.ID)

	count, err := repo.GetReactionCount(ctx, msg.ID, "thumbsup")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	require.NoError(t, repo.UpdateReactionCount(ctx, msg.ID, "thumbsup", 2))

	count, err = repo.GetReactionCount(ctx, msg.ID, "thumbsup")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestUpdateReactionCountNoMatch(t *testing.T) {
	database := setupTestDB(t)
	repo := store.NewRepository(database.Pool)

	// No matching row is a silent no-op, not an error.
	err := repo.UpdateReactionCount(context.Background(), 424242, "thumbsup", 5)
	assert.NoError(t, err)
}

func TestReactionFKRequiresMessage(t *testing.T) {
	database := setupTestDB(t)
	repo := store.NewRepository(database.Pool)

	reaction := &store.Reaction{
		MessageID: 999999,
		UserID:    "U2",
		UserName:  "Jane Roe",
		Name:      "thumbsup",
		ReactedAt: time.Now().UTC(),
		Count:     1,
	}
	err := repo.InsertReaction(context.Background(), reaction)
	assert.Error(t, err)
}

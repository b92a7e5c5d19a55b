package storage

import (
	"context"
	"os"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"relaybot/internal/domain"
)

// setupTestDB creates a temporary BadgerDB instance for testing.
func setupTestDB(t *testing.T) (*BadgerRepository, func()) {
	t.Helper()

	testLogger := logrus.New()
	testLogger.SetOutput(os.Stderr)
	testLogger.SetLevel(logrus.ErrorLevel)

	repo, err := NewBadgerRepository(t.TempDir(), testLogger)
	require.NoError(t, err, "Failed to create test BadgerDB repository")

	cleanup := func() {
		assert.NoError(t, repo.Close(), "Failed to close test BadgerDB repository")
	}
	return repo, cleanup
}

func TestBadgerRepository_SaveAndGetLink(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	link := domain.Link{
		DestinationMessageID: 900,
		SourceMessageID:      100,
		LinkMessageID:        101,
		SourceChannelID:      1,
		DestinationChannelID: 2,
	}

	require.NoError(t, repo.SaveLink(ctx, link))

	got, found, err := repo.GetLinkBySource(ctx, 100)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, link.DestinationMessageID, got.DestinationMessageID)
	assert.Equal(t, link.LinkMessageID, got.LinkMessageID)
	assert.False(t, got.Timestamp.IsZero(), "timestamp should be filled in on save")

	// --- Unknown source ---
	_, found, err = repo.GetLinkBySource(ctx, 999)
	require.NoError(t, err)
	assert.False(t, found)

	// --- Overwrite ---
	link.DestinationMessageID = 901
	require.NoError(t, repo.SaveLink(ctx, link))
	got, found, err = repo.GetLinkBySource(ctx, 100)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, domain.ID(901), got.DestinationMessageID)
}

func TestBadgerRepository_DeleteLink(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	require.NoError(t, repo.SaveLink(ctx, domain.Link{DestinationMessageID: 5, SourceMessageID: 6}))
	require.NoError(t, repo.SaveLink(ctx, domain.Link{DestinationMessageID: 7, SourceMessageID: 8}))

	require.NoError(t, repo.DeleteLink(ctx, 6))

	_, found, err := repo.GetLinkBySource(ctx, 6)
	require.NoError(t, err)
	assert.False(t, found, "deleted link should be gone")

	_, found, err = repo.GetLinkBySource(ctx, 8)
	require.NoError(t, err)
	assert.True(t, found, "other link should be kept")

	// Deleting again is a no-op.
	assert.NoError(t, repo.DeleteLink(ctx, 6))
}

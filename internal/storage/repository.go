package storage

import (
	"context"

	"relaybot/internal/domain"
)

// LinkRepository is a local index of recorded links keyed by source message id.
// It is a cache over the links encoded in chat history, never the only copy.
type LinkRepository interface {
	// SaveLink stores a link, replacing any previous link for the same source.
	SaveLink(ctx context.Context, link domain.Link) error

	// GetLinkBySource returns the link recorded for a source message.
	// found is false when no link is indexed.
	GetLinkBySource(ctx context.Context, sourceID domain.ID) (link domain.Link, found bool, err error)

	// DeleteLink removes the link for a source message. Deleting a missing link is not an error.
	DeleteLink(ctx context.Context, sourceID domain.ID) error

	// Close gracefully shuts down the repository connection.
	Close() error
}

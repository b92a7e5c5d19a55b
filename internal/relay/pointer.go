package relay

import (
	"context"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"relaybot/internal/domain"
	"relaybot/internal/platform"
)

// DestinationPointer holds the current destination channel. Readers copy the
// value out under the read lock; the lock is never held across network calls.
type DestinationPointer struct {
	mu        sync.RWMutex
	channelID domain.ID
}

// NewDestinationPointer creates a pointer at channelID.
func NewDestinationPointer(channelID domain.ID) *DestinationPointer {
	return &DestinationPointer{channelID: channelID}
}

// Get returns the current destination channel.
func (p *DestinationPointer) Get() domain.ID {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.channelID
}

// Set replaces the current destination channel.
func (p *DestinationPointer) Set(channelID domain.ID) {
	p.mu.Lock()
	p.channelID = channelID
	p.mu.Unlock()
}

// DestinationTarget names the well-known destination channel.
type DestinationTarget struct {
	GuildID    domain.ID
	Name       string
	CategoryID domain.ID
}

// ResolveDestination finds the destination channel by name under its
// category, creating a broadcast-capable one if it does not exist.
func ResolveDestination(ctx context.Context, dir platform.ChannelDirectory, target DestinationTarget) (domain.ID, error) {
	id, found, err := dir.FindChannel(ctx, target.GuildID, target.Name, target.CategoryID)
	if err != nil {
		return 0, fmt.Errorf("failed to look up channel %q: %w", target.Name, err)
	}
	if found {
		return id, nil
	}
	id, err = dir.CreateBroadcastChannel(ctx, target.GuildID, target.Name, target.CategoryID)
	if err != nil {
		return 0, fmt.Errorf("failed to create channel %q: %w", target.Name, err)
	}
	return id, nil
}

// RefreshDestination re-resolves the destination channel and stores it in
// pointer. The pointer is only written once resolution succeeded.
func RefreshDestination(ctx context.Context, dir platform.ChannelDirectory, target DestinationTarget, pointer *DestinationPointer, logger logrus.FieldLogger) (domain.ID, error) {
	id, err := ResolveDestination(ctx, dir, target)
	if err != nil {
		return 0, err
	}
	previous := pointer.Get()
	pointer.Set(id)
	logger.WithFields(logrus.Fields{
		"component":   "destination",
		"channel_id":  id,
		"previous_id": previous,
	}).Info("Destination channel refreshed")
	return id, nil
}

package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/sirupsen/logrus"

	"relaybot/internal/domain"
)

// BadgerRepository implements LinkRepository using BadgerDB.
type BadgerRepository struct {
	db  *badger.DB
	log logrus.FieldLogger
}

// NewBadgerRepository opens the database at dbPath.
func NewBadgerRepository(dbPath string, logger logrus.FieldLogger) (*BadgerRepository, error) {
	opts := badger.DefaultOptions(dbPath)
	opts.Logger = &badgerLogger{logger.WithField("component", "badgerdb")}

	db, err := badger.Open(opts)
	if err != nil {
		logger.WithError(err).Error("Failed to open BadgerDB")
		return nil, fmt.Errorf("failed to open badger db at %s: %w", dbPath, err)
	}
	logger.Info("BadgerDB opened successfully at path: ", dbPath)

	return &BadgerRepository{
		db:  db,
		log: logger.WithField("component", "link_index"),
	}, nil
}

// Close closes the BadgerDB database connection.
func (r *BadgerRepository) Close() error {
	r.log.Info("Closing BadgerDB...")
	err := r.db.Close()
	if err != nil {
		r.log.WithError(err).Error("Error closing BadgerDB")
		return err
	}
	r.log.Info("BadgerDB closed.")
	return nil
}

// generateLinkKey creates the key a link is stored under.
// Format: link:src:{sourceMessageID}
func generateLinkKey(sourceID domain.ID) []byte {
	return []byte(fmt.Sprintf("link:src:%d", uint64(sourceID)))
}

// SaveLink stores or replaces the link for link.SourceMessageID.
func (r *BadgerRepository) SaveLink(ctx context.Context, link domain.Link) error {
	log := r.log.WithFields(logrus.Fields{
		"source_id":      link.SourceMessageID,
		"destination_id": link.DestinationMessageID,
	})

	if link.Timestamp.IsZero() {
		link.Timestamp = time.Now()
	}

	linkBytes, err := json.Marshal(link)
	if err != nil {
		log.WithError(err).Error("Failed to marshal link to JSON")
		return fmt.Errorf("failed to marshal link: %w", err)
	}

	err = r.db.Update(func(txn *badger.Txn) error {
		return txn.SetEntry(badger.NewEntry(generateLinkKey(link.SourceMessageID), linkBytes))
	})
	if err != nil {
		log.WithError(err).Error("Failed to save link to BadgerDB")
		return fmt.Errorf("failed to save link: %w", err)
	}

	log.Debug("Link indexed")
	return nil
}

// GetLinkBySource looks up the link recorded for sourceID.
func (r *BadgerRepository) GetLinkBySource(ctx context.Context, sourceID domain.ID) (domain.Link, bool, error) {
	var link domain.Link
	found := false

	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(generateLinkKey(sourceID))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &link)
		})
	})
	if err != nil {
		r.log.WithError(err).WithField("source_id", sourceID).Error("Failed to read link from BadgerDB")
		return domain.Link{}, false, fmt.Errorf("failed to get link for source %d: %w", uint64(sourceID), err)
	}
	return link, found, nil
}

// DeleteLink removes the link indexed for sourceID.
func (r *BadgerRepository) DeleteLink(ctx context.Context, sourceID domain.ID) error {
	err := r.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(generateLinkKey(sourceID))
	})
	if err != nil {
		r.log.WithError(err).WithField("source_id", sourceID).Error("Failed to delete link from BadgerDB")
		return fmt.Errorf("failed to delete link for source %d: %w", uint64(sourceID), err)
	}
	return nil
}

// RunGC periodically reclaims value log space until ctx is cancelled.
func (r *BadgerRepository) RunGC(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			err := r.db.RunValueLogGC(0.7)
			switch {
			case err == nil:
				r.log.Debug("BadgerDB GC completed")
			case errors.Is(err, badger.ErrNoRewrite):
			case errors.Is(err, badger.ErrRejected):
				// Another GC or a close is in progress.
			default:
				r.log.WithError(err).Warn("BadgerDB GC failed")
			}
		case <-ctx.Done():
			return
		}
	}
}

// --- BadgerDB Internal Logger ---

// badgerLogger adapts logrus.FieldLogger to Badger's logger interface.
type badgerLogger struct {
	logger logrus.FieldLogger
}

func (l *badgerLogger) Errorf(f string, v ...interface{}) {
	l.logger.Errorf(f, v...)
}
func (l *badgerLogger) Warningf(f string, v ...interface{}) {
	l.logger.Warningf(f, v...)
}
func (l *badgerLogger) Infof(f string, v ...interface{}) {
	l.logger.Debugf(f, v...)
}
func (l *badgerLogger) Debugf(f string, v ...interface{}) {
	l.logger.Debugf(f, v...)
}

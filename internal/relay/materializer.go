package relay

import (
	"context"
	"strings"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"relaybot/internal/domain"
	"relaybot/internal/platform"
)

// Materializer re-uploads attachments as bytes under a byte budget and falls
// back to links for the rest.
type Materializer struct {
	client      platform.Client
	concurrency int
	log         logrus.FieldLogger
}

// NewMaterializer creates a Materializer. concurrency bounds parallel downloads.
func NewMaterializer(client platform.Client, concurrency int, logger logrus.FieldLogger) *Materializer {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Materializer{
		client:      client,
		concurrency: concurrency,
		log:         logger.WithField("component", "materializer"),
	}
}

type download struct {
	data []byte
	ok   bool
}

// Materialize decides, in source order, which attachments are uploaded as
// bytes and which are replaced by their URL. It returns the text to append to
// the message content (one "\n{url}" per fallback) and the kept attachments.
//
// An attachment larger than limitBytes is always linked. Download failures
// drop the attachment entirely. Once the running total of downloaded bytes
// passes limitBytes, that attachment and every later downloaded one is linked.
func (m *Materializer) Materialize(ctx context.Context, attachments []domain.Attachment, limitBytes uint32) (string, []domain.DownloadedAttachment) {
	results := make([]download, len(attachments))

	// Errors are absorbed per attachment, so the group never fails.
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.concurrency)
	for i, attachment := range attachments {
		if attachment.Size > limitBytes {
			continue
		}
		g.Go(func() error {
			data, err := m.client.DownloadAttachment(gctx, attachment)
			if err != nil {
				m.log.WithError(err).WithFields(logrus.Fields{
					"attachment_id": attachment.ID,
					"filename":      attachment.Filename,
				}).Warn("Failed to download attachment, dropping it")
				return nil
			}
			results[i] = download{data: data, ok: true}
			return nil
		})
	}
	_ = g.Wait()

	var suffix strings.Builder
	var kept []domain.DownloadedAttachment
	var usedBytes uint64
	for i, attachment := range attachments {
		if attachment.Size > limitBytes {
			suffix.WriteString("\n" + attachment.URL)
			continue
		}
		if !results[i].ok {
			continue
		}
		usedBytes += uint64(attachment.Size)
		if usedBytes > uint64(limitBytes) {
			suffix.WriteString("\n" + attachment.URL)
			continue
		}
		kept = append(kept, domain.DownloadedAttachment{
			Filename: attachment.Filename,
			Data:     results[i].data,
		})
	}
	return suffix.String(), kept
}

package worker

import (
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"adaptarr.dev/events"
)

// RunDigestLoop ticks events.RunDigest at interval until stop is closed.
// Unlike the xref indexer this is not queue-backed: a notification digest
// describes it as "a periodic job", not a message-driven worker, and its
// transaction already serializes concurrent ticks against the watermark
// row, so a single ticking goroutine is sufficient.
func RunDigestLoop(db *gorm.DB, sender events.MailSender, interval time.Duration, log *logrus.Entry, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if err := events.RunDigest(db, sender, log, time.Now()); err != nil {
				log.WithError(err).Error("notification digest tick failed")
			}
		}
	}
}

package worker

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"adaptarr.dev/storage"
	"adaptarr.dev/xref"

	redisqueue "adaptarr.dev/queue/redis"
)

// xrefTimeout bounds one document's indexing pass.
const xrefTimeout = 30 * time.Second

// xrefPayload is the job body for a single document re-index.
type xrefPayload struct {
	DocumentID uint `json:"document_id"`
}

// XrefProcessor runs the reference-target indexer as the
// dedicated single-writer worker the reference-target indexer needs;
// submission is fire-and-forget and idempotent, so failed jobs can
// simply be retried by the pool.
type XrefProcessor struct {
	DB    *gorm.DB
	Store *storage.Store
}

func (p XrefProcessor) Timeout() time.Duration { return xrefTimeout }

func (p XrefProcessor) Process(ctx context.Context, payload []byte) error {
	var job xrefPayload
	if err := json.Unmarshal(payload, &job); err != nil {
		return err
	}
	return xref.Index(p.DB, p.Store, job.DocumentID)
}

// SubmitDocument enqueues documentID for (re-)indexing. Called fire-and
// -forget from the HTTP path whenever a draft's index.cnxml changes.
func SubmitDocument(q *redisqueue.Queue, documentID uint) error {
	payload, err := json.Marshal(xrefPayload{DocumentID: documentID})
	if err != nil {
		return err
	}
	return q.Enqueue(redisqueue.Job{
		ID:         "xref-" + strconv.FormatUint(uint64(documentID), 10),
		EnqueuedAt: time.Now(),
		Payload:    payload,
	})
}

// RunStartupSweep indexes every document left with xrefs_ready=false,
// e.g. after a restart interrupted a prior pass. Errors for individual
// documents are logged and do not stop the sweep.
func RunStartupSweep(db *gorm.DB, store *storage.Store, log *logrus.Entry) error {
	return xref.Sweep(db, store, func(documentID uint, err error) {
		log.WithError(err).WithField("document_id", documentID).Error("startup xref sweep: document failed")
	})
}

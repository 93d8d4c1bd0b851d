package model

import (
	"strings"
	"time"
)

// BatchStatus represents the ingestion state of one source batch.
type BatchStatus string

const (
	BatchStatusProcessing BatchStatus = "processing"
	BatchStatusDone       BatchStatus = "done"
	BatchStatusError      BatchStatus = "error"
)

// BatchIndex records that a source batch has been seen by the ingestor.
// Its mere presence in the batch index collection gates re-ingestion: a
// batch with an index record is never reprocessed, whatever the status.
type BatchIndex struct {
	BatchID     string      `json:"batch_id"` // store identifier of the source batch object
	Name        string      `json:"name"`
	Status      BatchStatus `json:"status"`
	RunID       string      `json:"run_id"`
	CreatedAt   time.Time   `json:"created_at"`
	ProcessedAt *time.Time  `json:"processed_at,omitempty"`
	Error       string      `json:"error,omitempty"`
}

// ObjectName returns the batch index object name, keyed by the source
// batch's store identifier. Filesystem backends encode location into
// identifiers, so path separators are flattened.
func (b *BatchIndex) ObjectName() string {
	return IndexKey(b.BatchID) + ".json"
}

// IndexKey flattens a store identifier into a safe object name component.
func IndexKey(id string) string {
	return strings.NewReplacer("/", "-", ":", "-").Replace(id)
}

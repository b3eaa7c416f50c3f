package submission

import (
	"bytes"
	"context"
	"fmt"

	"ojcore/internal/common/storage"
	"ojcore/internal/language"
	"ojcore/internal/model"
	"ojcore/pkg/utils/logger"

	"go.uber.org/zap"
)

// Archiver mirrors submission source into object storage. The database
// row stays the source of truth; uploads are best-effort.
type Archiver struct {
	store  storage.ObjectStorage
	bucket string
}

// NewArchiver creates an archiver writing to the given bucket.
func NewArchiver(store storage.ObjectStorage, bucket string) *Archiver {
	return &Archiver{store: store, bucket: bucket}
}

// Archive uploads the submission source. Failures are logged, never
// surfaced to the caller.
func (a *Archiver) Archive(ctx context.Context, sub *model.Submission) {
	name := "source.txt"
	if adapter, err := language.Lookup(sub.Language); err == nil {
		name = adapter.SourceFile
	}
	key := fmt.Sprintf("submissions/%d/%s", sub.ID, name)
	body := []byte(sub.Code)
	err := a.store.PutObject(ctx, a.bucket, key, bytes.NewReader(body), int64(len(body)), "text/plain")
	if err != nil {
		logger.Warn(ctx, "archive submission source failed",
			zap.Int64("submission_id", sub.ID), zap.Error(err))
	}
}

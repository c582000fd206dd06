package job

import (
	"context"
	"encoding/json"
	"fmt"

	"cloud.google.com/go/storage"
)

// ReportArchiver persists a run report for audit.
type ReportArchiver interface {
	Archive(ctx context.Context, report *RunReport) error
}

// GCSArchiver writes run reports as JSON objects to a GCS bucket under
// alert-runs/<YYYY>/<MM>/<DD>/<run_id>.json.
// It assumes Application Default Credentials are configured.
type GCSArchiver struct {
	bucket string
}

// NewGCSArchiver creates an archiver for the given bucket.
func NewGCSArchiver(bucket string) *GCSArchiver {
	return &GCSArchiver{bucket: bucket}
}

// Archive implements ReportArchiver.
func (a *GCSArchiver) Archive(ctx context.Context, report *RunReport) error {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return fmt.Errorf("Archive: create storage client: %w", err)
	}
	defer client.Close()

	objectName := fmt.Sprintf("alert-runs/%s/%s.json",
		report.StartedAt.Format("2006/01/02"), report.RunID)

	w := client.Bucket(a.bucket).Object(objectName).NewWriter(ctx)
	w.ContentType = "application/json"

	if err := json.NewEncoder(w).Encode(report); err != nil {
		_ = w.Close()
		return fmt.Errorf("Archive: encode report: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("Archive: finalize upload: %w", err)
	}
	return nil
}

// Package diag records fetch failures for operators.
package diag

import (
	"context"
	"errors"
	"log"
	"sync"

	"github.com/eyeonidea/contentd/pkg/models"
)

// Sink receives diagnostic records.
type Sink interface {
	Record(ctx context.Context, rec models.DiagnosticRecord) error
}

// LogSink writes records to the standard logger.
type LogSink struct{}

// Record logs rec on one line.
func (LogSink) Record(_ context.Context, rec models.DiagnosticRecord) error {
	if rec.Route != "" {
		log.Printf("[sanity] %s site=%s key=%s route=%s error=%q", rec.Code, rec.Site, rec.Key, rec.Route, rec.Error)
		return nil
	}
	log.Printf("[sanity] %s site=%s key=%s error=%q", rec.Code, rec.Site, rec.Key, rec.Error)
	return nil
}

// Multi fans a record out to every sink and joins their errors.
type Multi []Sink

// Record forwards rec to all sinks.
func (m Multi) Record(ctx context.Context, rec models.DiagnosticRecord) error {
	var errs []error
	for _, s := range m {
		if s == nil {
			continue
		}
		if err := s.Record(ctx, rec); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Recorder collects records in memory.
type Recorder struct {
	mu      sync.Mutex
	records []models.DiagnosticRecord
}

// Record appends rec.
func (r *Recorder) Record(_ context.Context, rec models.DiagnosticRecord) error {
	r.mu.Lock()
	r.records = append(r.records, rec)
	r.mu.Unlock()
	return nil
}

// Records returns a copy of everything recorded so far.
func (r *Recorder) Records() []models.DiagnosticRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.DiagnosticRecord(nil), r.records...)
}

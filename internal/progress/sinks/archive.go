package sinks

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path"
	"strconv"

	"go.uber.org/zap"

	"github.com/JakeFAU/sitegen-portal/internal/progress"
)

// BlobStore persists objects and returns a URI for them.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data io.Reader) (string, error)
}

// ArchiveSink writes the final record of every completed or failed run to a
// blob store as <prefix>/<client id>/<unix nanos>.json.
type ArchiveSink struct {
	blobs  BlobStore
	prefix string
	logger *zap.Logger
}

// NewArchiveSink builds an ArchiveSink.
func NewArchiveSink(blobs BlobStore, prefix string, logger *zap.Logger) (*ArchiveSink, error) {
	if blobs == nil {
		return nil, errors.New("blob store is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ArchiveSink{blobs: blobs, prefix: prefix, logger: logger}, nil
}

// ObjectPath returns the archive path for evt.
func (s *ArchiveSink) ObjectPath(evt progress.Event) string {
	name := strconv.FormatInt(evt.TS.UnixNano(), 10) + ".json"
	return path.Join(s.prefix, evt.ClientID, name)
}

// Consume archives terminal events and ignores the rest.
func (s *ArchiveSink) Consume(ctx context.Context, batch []progress.Event) error {
	var errs []error
	for _, evt := range batch {
		if !evt.Terminal() {
			continue
		}
		data, err := json.Marshal(evt.Record)
		if err != nil {
			errs = append(errs, fmt.Errorf("encode %s: %w", evt.ClientID, err))
			continue
		}
		uri, err := s.blobs.PutObject(ctx, s.ObjectPath(evt), "application/json", bytes.NewReader(data))
		if err != nil {
			errs = append(errs, fmt.Errorf("archive %s: %w", evt.ClientID, err))
			continue
		}
		s.logger.Info("generation record archived", zap.String("client_id", evt.ClientID), zap.String("uri", uri))
	}
	return errors.Join(errs...)
}

// Close implements the Sink interface; it performs no action.
func (s *ArchiveSink) Close(context.Context) error {
	return nil
}

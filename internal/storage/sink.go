// Package storage saves downloaded images to a local directory or an
// S3-compatible bucket.
package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("bing4-storage")

// Sink stores one image payload under name and returns where it went.
// Locate returns the location Save would report for name.
type Sink interface {
	Save(ctx context.Context, name string, data []byte, contentType string) (string, error)
	Locate(name string) string
}

// FileName is the download name of an image
func FileName(imageID string) string {
	return fmt.Sprintf("pixel_image_%s.png", imageID)
}

// DirSink writes images into a local directory
type DirSink struct {
	dir string
}

// NewDirSink creates a sink rooted at dir. The directory is created on first save.
func NewDirSink(dir string) *DirSink {
	return &DirSink{dir: dir}
}

func (s *DirSink) Dir() string {
	return s.dir
}

// Save writes data to dir/name via a temp file so readers never see a partial image
func (s *DirSink) Save(ctx context.Context, name string, data []byte, contentType string) (string, error) {
	_, span := tracer.Start(ctx, "dir_save")
	defer span.End()
	span.SetAttributes(
		attribute.String("storage.dir", s.dir),
		attribute.String("storage.name", name),
		attribute.Int("storage.size", len(data)),
	)

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fail(span, fmt.Errorf("create storage dir: %w", err))
	}

	tmp, err := os.CreateTemp(s.dir, ".partial-*")
	if err != nil {
		return "", fail(span, fmt.Errorf("create temp file: %w", err))
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return "", fail(span, fmt.Errorf("write image: %w", err))
	}
	if err := tmp.Close(); err != nil {
		return "", fail(span, fmt.Errorf("close image: %w", err))
	}

	dest := s.Locate(name)
	if err := os.Rename(tmp.Name(), dest); err != nil {
		return "", fail(span, fmt.Errorf("move image into place: %w", err))
	}
	return dest, nil
}

func (s *DirSink) Locate(name string) string {
	return filepath.Join(s.dir, filepath.Base(name))
}

func fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

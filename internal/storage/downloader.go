package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/vipguy/Bing4/internal/localstore"
	"github.com/vipguy/Bing4/internal/model"
)

// ImageFetcher downloads image bytes by id
type ImageFetcher interface {
	Image(ctx context.Context, id string) ([]byte, string, error)
}

// Ledger remembers saved images. Optional.
type Ledger interface {
	RecordDownload(imageID, sessionID, location string) error
	Downloaded(imageID string) (*localstore.Download, error)
}

// Result is the outcome for one image. Skipped is set when the ledger shows
// the image already saved at the same location.
type Result struct {
	ImageID  string
	Location string
	Skipped  bool
	Err      error
}

// Downloader saves the completed images of a session into a sink
type Downloader struct {
	images ImageFetcher
	sink   Sink
	ledger Ledger
	force  bool
	logger *slog.Logger
}

// NewDownloader creates a downloader. ledger may be nil.
func NewDownloader(images ImageFetcher, sink Sink, ledger Ledger, logger *slog.Logger) *Downloader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Downloader{
		images: images,
		sink:   sink,
		ledger: ledger,
		logger: logger.With("component", "downloader"),
	}
}

// SetForce makes DownloadSession re-save images the ledger already has
func (d *Downloader) SetForce(force bool) {
	d.force = force
}

// DownloadSession saves every completed image of sess. Failures are reported
// per image and do not stop the rest; the returned error joins them.
func (d *Downloader) DownloadSession(ctx context.Context, sess model.Session) ([]Result, error) {
	var results []Result
	var errs []error
	for _, img := range sess.Images {
		if !img.Downloadable() {
			continue
		}
		if err := ctx.Err(); err != nil {
			return results, err
		}
		if loc, ok := d.alreadySaved(img.ID); ok {
			results = append(results, Result{ImageID: img.ID, Location: loc, Skipped: true})
			continue
		}
		loc, err := d.DownloadImage(ctx, sess.ID, img.ID)
		if err != nil {
			errs = append(errs, err)
		}
		results = append(results, Result{ImageID: img.ID, Location: loc, Err: err})
	}
	return results, errors.Join(errs...)
}

// alreadySaved reports the recorded location when it matches where the sink
// would put the image now
func (d *Downloader) alreadySaved(imageID string) (string, bool) {
	if d.force || d.ledger == nil {
		return "", false
	}
	rec, err := d.ledger.Downloaded(imageID)
	if err != nil {
		d.logger.Warn("failed to read download ledger", "image_id", imageID, "error", err)
		return "", false
	}
	if rec == nil || rec.Location != d.sink.Locate(FileName(imageID)) {
		return "", false
	}
	return rec.Location, true
}

// DownloadImage fetches one image and stores it as pixel_image_{id}.png
func (d *Downloader) DownloadImage(ctx context.Context, sessionID, imageID string) (string, error) {
	data, contentType, err := d.images.Image(ctx, imageID)
	if err != nil {
		d.logger.Error("failed to download image", "image_id", imageID, "error", err)
		return "", fmt.Errorf("download image %s: %w", imageID, err)
	}
	loc, err := d.sink.Save(ctx, FileName(imageID), data, contentType)
	if err != nil {
		d.logger.Error("failed to save image", "image_id", imageID, "error", err)
		return "", fmt.Errorf("save image %s: %w", imageID, err)
	}
	if d.ledger != nil {
		if err := d.ledger.RecordDownload(imageID, sessionID, loc); err != nil {
			d.logger.Warn("failed to record download", "image_id", imageID, "error", err)
		}
	}
	d.logger.Info("image saved", "image_id", imageID, "location", loc)
	return loc, nil
}

package localstore

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Download records where an image was saved
type Download struct {
	ImageID   string
	SessionID string
	Location  string
	CreatedAt time.Time
}

// RecordDownload upserts the saved location of an image
func (db *DB) RecordDownload(imageID, sessionID, location string) error {
	_, err := db.Exec(`
		INSERT INTO downloads (image_id, session_id, location, created_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(image_id) DO UPDATE SET location = excluded.location, created_at = excluded.created_at
	`, imageID, sessionID, location, time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("record download: %w", err)
	}
	return nil
}

// Downloaded returns the record for imageID, or nil if it was never saved
func (db *DB) Downloaded(imageID string) (*Download, error) {
	var d Download
	var ts int64
	err := db.QueryRow(`SELECT image_id, session_id, location, created_at FROM downloads WHERE image_id = ?`, imageID).
		Scan(&d.ImageID, &d.SessionID, &d.Location, &ts)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get download: %w", err)
	}
	d.CreatedAt = time.UnixMilli(ts)
	return &d, nil
}

// SessionDownloads lists saved images of a session, oldest first
func (db *DB) SessionDownloads(sessionID string) ([]Download, error) {
	rows, err := db.Query(`
		SELECT image_id, session_id, location, created_at FROM downloads
		WHERE session_id = ? ORDER BY created_at, image_id
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list downloads: %w", err)
	}
	defer rows.Close()

	var out []Download
	for rows.Next() {
		var d Download
		var ts int64
		if err := rows.Scan(&d.ImageID, &d.SessionID, &d.Location, &ts); err != nil {
			return nil, fmt.Errorf("scan download: %w", err)
		}
		d.CreatedAt = time.UnixMilli(ts)
		out = append(out, d)
	}
	return out, rows.Err()
}

// Package video provides metadata and file validation rules for uploads.
package video

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// MaxFileSize is the platform ceiling for a single upload (256 GiB).
const MaxFileSize = 256 << 30

// Metadata validation limits.
const (
	MaxTitleLen = 100
	MaxTagsLen  = 500
)

// supportedExtensions lists the container formats the platform accepts.
var supportedExtensions = map[string]bool{
	".mp4": true, ".avi": true, ".mov": true, ".wmv": true,
	".flv": true, ".webm": true, ".mkv": true, ".ts": true,
	".mpeg": true, ".mpg": true, ".m4v": true, ".3gp": true,
}

// SupportedExtension reports whether a filename carries an accepted
// video extension.
func SupportedExtension(name string) bool {
	return supportedExtensions[strings.ToLower(filepath.Ext(name))]
}

// File validation failures. All are fatal to the file only and must be
// raised before any quota or throttle state is touched.
var (
	ErrFileNotFound      = errors.New("video file not found")
	ErrNotRegularFile    = errors.New("path is not a regular file")
	ErrUnsupportedFormat = errors.New("unsupported video format")
	ErrEmptyFile         = errors.New("video file is empty")
	ErrFileTooLarge      = errors.New("video file exceeds maximum size")
)

// CheckFile validates file attributes against upload rules. PURE: the
// caller stats the file and passes what it found.
func CheckFile(name string, size int64, regular bool) error {
	if !regular {
		return fmt.Errorf("%w: %s", ErrNotRegularFile, name)
	}
	if !SupportedExtension(name) {
		return fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(name))
	}
	if size == 0 {
		return fmt.Errorf("%w: %s", ErrEmptyFile, name)
	}
	if size > MaxFileSize {
		return fmt.Errorf("%w: %d bytes", ErrFileTooLarge, size)
	}
	return nil
}

// Privacy is the visibility of an uploaded video.
type Privacy string

const (
	PrivacyPublic   Privacy = "public"
	PrivacyPrivate  Privacy = "private"
	PrivacyUnlisted Privacy = "unlisted"
)

// Valid reports whether the privacy value is one the platform accepts.
func (p Privacy) Valid() bool {
	switch p {
	case PrivacyPublic, PrivacyPrivate, PrivacyUnlisted:
		return true
	}
	return false
}

// Metadata describes one video for upload (value type).
type Metadata struct {
	Title       string
	Description string
	Tags        []string
	CategoryID  string
	Privacy     Privacy
	Language    string
	Collection  string // optional collection (playlist) name
}

// Validate checks metadata against platform limits.
func (m Metadata) Validate() error {
	if m.Title == "" {
		return errors.New("title is required")
	}
	if len(m.Title) > MaxTitleLen {
		return fmt.Errorf("title exceeds %d characters", MaxTitleLen)
	}
	if !m.Privacy.Valid() {
		return fmt.Errorf("privacy must be public, private, or unlisted, got %q", m.Privacy)
	}
	total := 0
	for _, tag := range m.Tags {
		total += len(tag)
	}
	if total > MaxTagsLen {
		return fmt.Errorf("tags exceed %d total characters", MaxTagsLen)
	}
	return nil
}

// OutcomeStatus is the terminal result of processing one file.
type OutcomeStatus string

const (
	OutcomeSuccess OutcomeStatus = "success"
	OutcomeFailed  OutcomeStatus = "failed"
	OutcomeSkipped OutcomeStatus = "skipped"
)

// Outcome records what happened to one file in a batch.
type Outcome struct {
	Filename     string
	Title        string
	VideoID      string
	CollectionID string
	Status       OutcomeStatus
	Reason       string
	FinishedAt   time.Time
}

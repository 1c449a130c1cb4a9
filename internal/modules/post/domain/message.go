package domain

import (
	"strings"
	"time"
)

// RawMessage represents a channel message as delivered by the source
type RawMessage struct {
	ID           int64      `json:"id"`
	Text         string     `json:"text,omitempty"`
	Caption      string     `json:"caption,omitempty"`
	Photos       []Photo    `json:"photos,omitempty"`
	Video        *MediaFile `json:"video,omitempty"`
	Document     *MediaFile `json:"document,omitempty"`
	Date         time.Time  `json:"date"`
	ChatID       int64      `json:"chat_id"`
	ChatUsername string     `json:"chat_username,omitempty"`
}

// Photo is one resolution variant of a photo attachment
type Photo struct {
	FileID       string `json:"file_id"`
	FileUniqueID string `json:"file_unique_id"`
	Width        int    `json:"width"`
	Height       int    `json:"height"`
	FileSize     int    `json:"file_size,omitempty"`
}

// MediaFile is a video or document attachment
type MediaFile struct {
	FileID       string `json:"file_id"`
	FileUniqueID string `json:"file_unique_id"`
	MimeType     string `json:"mime_type,omitempty"`
	FileSize     int64  `json:"file_size,omitempty"`
}

// MediaRef identifies a downloadable file at the source.
type MediaRef struct {
	FileID   string
	UniqueID string
}

// Key returns the identifier stored media is named after.
func (r MediaRef) Key() string {
	if r.UniqueID != "" {
		return r.UniqueID
	}
	return r.FileID
}

// Body returns the message text, falling back to the caption.
func (m *RawMessage) Body() string {
	if m.Text != "" {
		return m.Text
	}
	return m.Caption
}

// IsVideoDocument reports whether the document attachment carries a video.
func (f *MediaFile) IsVideoDocument() bool {
	return f != nil && strings.HasPrefix(strings.ToLower(f.MimeType), "video/")
}

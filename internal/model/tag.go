package model

import "time"

// Tag is a printed QR sticker and, once claimed, its owner's contact binding.
type Tag struct {
	TagID          string    `json:"tag_id"`
	IsRegistered   bool      `json:"is_registered"`
	WhatsAppNumber *string   `json:"whatsapp_number"`
	PushEnabled    bool      `json:"push_enabled"`
	PushToken      *string   `json:"push_token"`
	CreatedAt      time.Time `json:"created_at"`
}

// RelayNumber returns the owner's message-relay address, or "" when absent.
func (t *Tag) RelayNumber() string {
	if t == nil || t.WhatsAppNumber == nil {
		return ""
	}
	return *t.WhatsAppNumber
}

// TagStats backs the admin dashboard.
type TagStats struct {
	Total      int   `json:"total"`
	Registered int   `json:"registered"`
	Recent     []Tag `json:"recent"`
}

// Package domain defines the persistence models for conversations and
// messages. These types are mapped with GORM and form the core data layer
// of the marketplace chat backend.
package domain

import (
	"time"
)

// Message types stored in Message.MessageType.
const (
	MessageTypeText  = "text"
	MessageTypeImage = "image"
	MessageTypeFile  = "file"
	MessageTypeVoice = "voice"
)

// Conversation is the durable record of two users talking. Exactly two
// participants, stored in canonical order (UserA < UserB lexicographically)
// so that the unordered pair maps to exactly one row; the composite unique
// index makes find-or-create safe under concurrent callers.
//
// Fields:
//   - ID: stable UUID primary key (char(36)).
//   - UserA / UserB: participant identities in canonical order.
//   - LastMessage: denormalized preview of the latest message. Derived data,
//     recomputed on every send; the Message table is the source of truth.
//   - CreatedAt / UpdatedAt: timestamps managed by GORM. UpdatedAt doubles as
//     the "last activity" ordering key for inbox listings.
type Conversation struct {
	ID          string    `json:"id"           gorm:"type:char(36);primaryKey"`
	UserA       string    `json:"user_a"       gorm:"type:varchar(64);not null;uniqueIndex:ux_conversation_pair,priority:1;index:idx_conv_user_a"`
	UserB       string    `json:"user_b"       gorm:"type:varchar(64);not null;uniqueIndex:ux_conversation_pair,priority:2;index:idx_conv_user_b"`
	LastMessage string    `json:"last_message" gorm:"type:varchar(512);not null;default:''"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"   gorm:"index"`
}

// TableName returns the database table name for Conversation.
func (Conversation) TableName() string { return "conversations" }

// Participants returns both participant identities.
func (c Conversation) Participants() [2]string { return [2]string{c.UserA, c.UserB} }

// Has reports whether userID is one of the two participants.
func (c Conversation) Has(userID string) bool { return c.UserA == userID || c.UserB == userID }

// Other returns the participant that is not userID, or "" when userID is not
// a participant at all.
func (c Conversation) Other(userID string) string {
	switch userID {
	case c.UserA:
		return c.UserB
	case c.UserB:
		return c.UserA
	default:
		return ""
	}
}

// Message is a single unit of chat content owned by one conversation.
// Sender and receiver are both recorded; the receiver is always derived
// server-side from the conversation, never trusted from the client.
//
// Fields:
//   - ID: UUID primary key (char(36)).
//   - ConversationID: foreign key to the owning conversation (indexed with
//     CreatedAt for history scans).
//   - SenderID / ReceiverID: the two participants for this message.
//   - Content: message text, or the attachment URL for pure file messages.
//     Cleared permanently on soft delete.
//   - MessageType: one of text, image, file, voice.
//   - FileURL / FileType / OriginalName: attachment metadata, empty for text.
//   - IsRead / ReadAt: read-receipt state, bulk-set by mark-read.
//   - Edited: set once the content has been rewritten by the sender.
//   - Deleted: soft-delete marker; the row survives to render a placeholder.
//   - IsInquiry / HasResponse / ResponseTime: response-rate bookkeeping.
//     HasResponse and ResponseTime transition false→true exactly once.
type Message struct {
	ID             string     `json:"id"              gorm:"type:char(36);primaryKey"`
	ConversationID string     `json:"conversation_id" gorm:"type:char(36);not null;index:idx_conv_msgs,priority:1"`
	SenderID       string     `json:"sender_id"       gorm:"type:varchar(64);not null;index:idx_msg_sender"`
	ReceiverID     string     `json:"receiver_id"     gorm:"type:varchar(64);not null;index:idx_msg_receiver"`
	Content        string     `json:"content"         gorm:"type:text;not null"`
	MessageType    string     `json:"message_type"    gorm:"type:varchar(16);not null;default:'text';check:message_type IN ('text','image','file','voice')"`
	FileURL        string     `json:"file_url,omitempty"      gorm:"type:varchar(512)"`
	FileType       string     `json:"file_type,omitempty"     gorm:"type:varchar(128)"`
	OriginalName   string     `json:"original_name,omitempty" gorm:"type:varchar(255)"`
	IsRead         bool       `json:"is_read"         gorm:"not null;default:false"`
	ReadAt         *time.Time `json:"read_at,omitempty"`
	Edited         bool       `json:"edited"          gorm:"not null;default:false"`
	Deleted        bool       `json:"deleted"         gorm:"not null;default:false"`
	IsInquiry      bool       `json:"is_inquiry"      gorm:"not null;default:false;index:idx_msg_inquiry,priority:1"`
	HasResponse    bool       `json:"has_response"    gorm:"not null;default:false;index:idx_msg_inquiry,priority:2"`
	ResponseTime   *float64   `json:"response_time,omitempty"` // hours, one decimal, set once
	CreatedAt      time.Time  `json:"created_at"      gorm:"index:idx_conv_msgs,priority:2"`
	UpdatedAt      time.Time  `json:"updated_at"`

	// Conversation is the parent record. Messages are cascade-deleted when
	// the conversation row is removed.
	Conversation Conversation `json:"-" gorm:"foreignKey:ConversationID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Message.
func (Message) TableName() string { return "messages" }

// HasAttachment reports whether the message carries a file reference.
func (m Message) HasAttachment() bool { return m.FileURL != "" }

package entity

import (
	"encoding/json"
	"slices"
	"time"
)

const DefaultLanguage = "en"

// VisibilityState is the tagged deletion state of a message. Per-user
// deletion lives in Message.DeletedBy and only matters while Active.
type VisibilityState string

const (
	VisibilityActive             VisibilityState = "active"
	VisibilityDeletedForEveryone VisibilityState = "deleted_for_everyone"
)

// Translations maps a language code to translated text.
type Translations map[string]string

// Normalize returns a non-nil copy without the entry for originalLanguage.
func (t Translations) Normalize(originalLanguage string) Translations {
	out := make(Translations, len(t))
	for lang, text := range t {
		if lang == "" || lang == originalLanguage || text == "" {
			continue
		}
		out[lang] = text
	}
	return out
}

type Message struct {
	Id               string          `bson:"_id" json:"id"`
	SenderId         string          `bson:"senderId" json:"senderId"`
	ReceiverId       string          `bson:"receiverId" json:"receiverId"`
	Text             string          `bson:"text,omitempty" json:"text,omitempty"`
	ImageUrl         string          `bson:"image,omitempty" json:"image,omitempty"`
	OriginalLanguage string          `bson:"originalLanguage" json:"originalLanguage"`
	Translations     Translations    `bson:"translations" json:"translations"`
	DeletedBy        []string        `bson:"deletedBy" json:"-"`
	State            VisibilityState `bson:"state" json:"state"`
	CreatedAt        time.Time       `bson:"createdAt" json:"createdAt"`
}

// MarshalJSON adds the derived isDeleted flag to the wire shape.
func (m Message) MarshalJSON() ([]byte, error) {
	type alias Message
	return json.Marshal(struct {
		alias
		IsDeleted bool `json:"isDeleted"`
	}{alias: alias(m), IsDeleted: m.IsDeleted()})
}

func (m Message) IsDeleted() bool {
	return m.State == VisibilityDeletedForEveryone
}

func (m Message) IsParticipant(userId string) bool {
	return m.SenderId == userId || m.ReceiverId == userId
}

// PeerOf returns the other side of the conversation for userId.
func (m Message) PeerOf(userId string) string {
	if m.SenderId == userId {
		return m.ReceiverId
	}
	return m.SenderId
}

// VisibleTo reports whether viewerId may see the message. Deletion for
// everyone dominates any per-user state.
func (m Message) VisibleTo(viewerId string) bool {
	if m.IsDeleted() {
		return false
	}
	return !slices.Contains(m.DeletedBy, viewerId)
}

// Normalize fills defaults so a decoded or freshly built message has a
// single representation of every field.
func (m *Message) Normalize() {
	if m.OriginalLanguage == "" {
		m.OriginalLanguage = DefaultLanguage
	}
	if m.State == "" {
		m.State = VisibilityActive
	}
	if m.DeletedBy == nil {
		m.DeletedBy = []string{}
	}
	m.Translations = m.Translations.Normalize(m.OriginalLanguage)
}

// MessageView is a message as rendered for one viewer.
type MessageView struct {
	Message
	DisplayText  string `json:"displayText,omitempty"`
	IsTranslated bool   `json:"isTranslated"`
}

// MarshalJSON keeps the embedded message's custom encoding and appends the
// view fields.
func (v MessageView) MarshalJSON() ([]byte, error) {
	base, err := json.Marshal(v.Message)
	if err != nil {
		return nil, err
	}
	var fields map[string]any
	if err := json.Unmarshal(base, &fields); err != nil {
		return nil, err
	}
	if v.DisplayText != "" {
		fields["displayText"] = v.DisplayText
	}
	fields["isTranslated"] = v.IsTranslated
	return json.Marshal(fields)
}

// ViewFor picks the text viewerId should see. Only the receiver is shown a
// translation, and only for the language they currently prefer.
func (m Message) ViewFor(viewerId, viewerLanguage string) MessageView {
	view := MessageView{Message: m, DisplayText: m.Text}
	if m.Text == "" || viewerId != m.ReceiverId {
		return view
	}
	if translated, ok := m.Translations[viewerLanguage]; ok && translated != "" {
		view.DisplayText = translated
		view.IsTranslated = true
	}
	return view
}

type SendMessageRequest struct {
	Text  string `json:"text"`
	Image string `json:"image"`
}

type DeleteMessageRequest struct {
	DeleteForEveryone any `json:"deleteForEveryone"`
}

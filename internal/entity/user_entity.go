package entity

import "time"

type User struct {
	Id                string    `bson:"_id" json:"id"`
	Username          string    `bson:"username" json:"username"`
	Email             string    `bson:"email" json:"email"`
	Password          string    `bson:"password" json:"-"`
	Name              string    `bson:"name" json:"name"`
	ProfilePic        string    `bson:"profilePic,omitempty" json:"profilePic,omitempty"`
	PreferredLanguage string    `bson:"preferredLanguage" json:"preferredLanguage"`
	CreatedAt         time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt         time.Time `bson:"updatedAt" json:"updatedAt"`
}

// Language returns the user's preferred language, falling back to the
// default when none was chosen.
func (u User) Language() string {
	if u.PreferredLanguage == "" {
		return DefaultLanguage
	}
	return u.PreferredLanguage
}

type UserIndexFilter struct {
	Ids        []string
	ExcludeIds []string
}

type UpdateLanguageRequest struct {
	PreferredLanguage string `json:"preferredLanguage"`
}

// UpdateProfilePicRequest carries the new picture as a base64 data URL.
type UpdateProfilePicRequest struct {
	ProfilePic string `json:"profilePic"`
}

package entity

import "time"

type UnreadSummary struct {
	Counts map[string]int `json:"counts"`
	Total  int            `json:"total"`
}

type UserSummary struct {
	User
	LastMessageAt *time.Time `json:"lastMessageAt"`
	IsOnline      bool       `json:"isOnline"`
	UnreadCount   int        `json:"unreadCount"`
}

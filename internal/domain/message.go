// Package domain holds the message entity shown in a conversation.
package domain

import "sort"

const (
	MessageTypeText         = "TEXT"
	ConversationTypePrivate = "PRIVATE"
)

// DisplayMessage is one entry of a conversation as the UI renders it. It is
// created on local send, on receipt of a chat message, or from history, and
// is never mutated afterwards.
type DisplayMessage struct {
	ID               int64   `json:"id"`
	AppointmentID    *int64  `json:"appointmentId"`
	SenderType       string  `json:"senderType"`
	MessageType      string  `json:"messageType"`
	Content          string  `json:"content"`
	MediaURL         *string `json:"mediaUrl"`
	DurationSeconds  *int    `json:"durationSeconds"`
	SentTime         string  `json:"sentTime"`
	ReadStatus       bool    `json:"readStatus"`
	UserID           int64   `json:"userId"`
	CounselorID      int64   `json:"counselorId"`
	ConversationType string  `json:"conversationType"`
}

// SortBySentTime orders msgs by SentTime ascending, keeping arrival order
// between equal times. SentTime is compared as text, which is chronological
// for the backend's fixed-width ISO format.
func SortBySentTime(msgs []DisplayMessage) {
	sort.SliceStable(msgs, func(i, j int) bool {
		return msgs[i].SentTime < msgs[j].SentTime
	})
}

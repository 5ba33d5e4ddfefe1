package client

import (
	"fmt"

	"github.com/omochice/counsel-chat/pkg/stomp"
)

// Subscription pairs a client-chosen subscription id with a destination.
type Subscription struct {
	ID          string
	Destination string
}

// Subscriptions returns the four subscriptions of a conversation in the order
// they are issued: user messages, counselor messages, user errors, counselor errors.
func Subscriptions(userID, counselorID int64) []Subscription {
	return []Subscription{
		{ID: fmt.Sprintf("sub-user-%d-messages", userID), Destination: stomp.MessageQueue(stomp.SenderUser, userID)},
		{ID: fmt.Sprintf("sub-counselor-%d-messages", counselorID), Destination: stomp.MessageQueue(stomp.SenderCounselor, counselorID)},
		{ID: fmt.Sprintf("sub-user-%d-errors", userID), Destination: stomp.ErrorQueue(stomp.SenderUser, userID)},
		{ID: fmt.Sprintf("sub-counselor-%d-errors", counselorID), Destination: stomp.ErrorQueue(stomp.SenderCounselor, counselorID)},
	}
}

package stomp

import (
	"fmt"
	"strings"
)

// PrivateChatDestination is the application destination for outbound chat messages.
const PrivateChatDestination = "/app/chat.private"

const (
	messageQueuePrefix = "/queue/messages/"
	errorQueuePrefix   = "/queue/errors/"
)

// MessageQueue returns the inbound message queue of the given role and id,
// e.g. /queue/messages/user/7.
func MessageQueue(role SenderType, id int64) string {
	return fmt.Sprintf("%s%s/%d", messageQueuePrefix, role.path(), id)
}

// ErrorQueue returns the inbound error queue of the given role and id,
// e.g. /queue/errors/counselor/3.
func ErrorQueue(role SenderType, id int64) string {
	return fmt.Sprintf("%s%s/%d", errorQueuePrefix, role.path(), id)
}

// IsErrorQueue reports whether destination is one of the error queues.
func IsErrorQueue(destination string) bool {
	return strings.HasPrefix(destination, errorQueuePrefix)
}

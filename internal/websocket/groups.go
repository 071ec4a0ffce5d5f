package websocket

import (
	"strconv"

	"github.com/google/uuid"
)

// ChatGroup returns the group name for a conversation room.
func ChatGroup(conversationID int64) string {
	return "chat_" + strconv.FormatInt(conversationID, 10)
}

// NotificationGroup returns the personal notification group of a user.
func NotificationGroup(userID uuid.UUID) string {
	return "notifications_" + userID.String()
}

package chat

import (
	"fmt"
	"sort"
	"strings"

	"tasktango/internal/models"
)

// ChannelKey is the chat id of a channel conversation.
func ChannelKey(channelID string) string {
	return "channel_" + channelID
}

// DMKey is the chat id of a direct conversation; it does not depend on argument order.
func DMKey(u1, u2 string) string {
	ids := []string{u1, u2}
	sort.Strings(ids)
	return fmt.Sprintf("dm_%s_%s", ids[0], ids[1])
}

// KeyFor returns the chat a message belongs to as seen by currentUserID.
// For a direct message the peer is the sender, or recipientID when the current user sent it.
func KeyFor(msg models.ChatMessage, currentUserID, recipientID string) string {
	if !msg.IsDirect() {
		return ChannelKey(msg.ChannelID)
	}
	peer := msg.SenderIDString()
	if peer == currentUserID && recipientID != "" {
		peer = recipientID
	}
	return DMKey(currentUserID, peer)
}

// IsDMKey reports whether key names a direct conversation that includes userID.
func IsDMKey(userID, key string) bool {
	if !strings.HasPrefix(key, "dm_") {
		return false
	}
	parts := strings.Split(key[3:], "_")
	if len(parts) != 2 {
		return false
	}
	return parts[0] == userID || parts[1] == userID
}

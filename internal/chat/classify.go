package chat

import "tasktango/internal/models"

// IsMine reports whether msg was sent by the session user identified by currentUserID.
// A sender without a stable id is never the current user.
func IsMine(msg models.ChatMessage, currentUserID string) bool {
	if currentUserID == "" || !msg.Sender.HasStableID() {
		return false
	}
	return msg.SenderIDString() == currentUserID
}

// Classify returns msg with Sender.IsCurrentUser set for the given session user.
func Classify(msg models.ChatMessage, currentUserID string) models.ChatMessage {
	msg.Sender.IsCurrentUser = IsMine(msg, currentUserID)
	return msg
}

func ClassifyAll(msgs []models.ChatMessage, currentUserID string) []models.ChatMessage {
	out := make([]models.ChatMessage, len(msgs))
	for i, msg := range msgs {
		out[i] = Classify(msg, currentUserID)
	}
	return out
}

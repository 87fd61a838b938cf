package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"tasktango/internal/chat"
	"tasktango/internal/content"
	"tasktango/internal/models"
)

// Target is the conversation a command works on: a channel id or a peer's stringId.
type Target struct {
	ChannelID string
	PeerID    string
}

func (t Target) Validate() error {
	switch {
	case t.ChannelID != "" && t.PeerID != "":
		return errors.New("choose either a channel or a recipient, not both")
	case t.ChannelID == "" && t.PeerID == "":
		return errors.New("a channel or a recipient is required")
	}
	return nil
}

// Key returns the chat key of the target as seen by currentUserID.
func (t Target) Key(currentUserID string) string {
	if t.ChannelID != "" {
		return chat.ChannelKey(t.ChannelID)
	}
	return chat.DMKey(currentUserID, t.PeerID)
}

// Outgoing builds the websocket message for text sent to the target.
func (t Target) Outgoing(senderID, text string) models.Outgoing {
	if t.ChannelID != "" {
		return models.ChannelMessage{Content: text, SenderID: senderID, ChannelID: t.ChannelID}
	}
	return models.PrivateMessage{Content: text, SenderID: senderID, RecipientID: t.PeerID}
}

type historyClient interface {
	ChannelHistory(ctx context.Context, token, channelID string, limit int) ([]models.ChatMessage, error)
	DirectHistory(ctx context.Context, token, peerStringID string, limit int) ([]models.ChatMessage, error)
	Channels(ctx context.Context, token string) ([]models.ChatChannel, error)
}

type session interface {
	Token() (string, error)
	CurrentUserID() string
}

type chatHub interface {
	LoadHistory(key string, msgs []models.ChatMessage) []models.ChatMessage
	Records(key string) []models.ChatMessage
	Subscribe(fn func(chatID string, msg models.ChatMessage)) func()
	ExpectEcho(msg models.PrivateMessage)
	ChatIDs() []string
	LastRecords(key string, count int) ([]models.ChatMessage, int)
}

type channelStore interface {
	UpsertChannels(channels []models.ChatChannel) error
}

type sender interface {
	Send(ctx context.Context, msg models.Outgoing) error
}

// Env carries what the commands need. Out defaults to nothing being printed.
type Env struct {
	API          historyClient
	Session      session
	Hub          chatHub
	Channels     channelStore
	Out          io.Writer
	HistoryLimit int
}

func (e *Env) out() io.Writer {
	if e.Out == nil {
		return io.Discard
	}
	return e.Out
}

// PrintUser writes the profile of the logged in user.
func PrintUser(w io.Writer, user models.User) {
	profile := user.Profile()
	fmt.Fprintf(w, "Logged in as %s (%s)\n", content.PlainText(profile.Username), profile.ID)
	if profile.Email != "" {
		fmt.Fprintf(w, "Email:       %s\n", profile.Email)
	}
	if avatar, ok := user.Avatar(); ok {
		fmt.Fprintf(w, "Avatar:      %s\n", avatar)
	}
	if profile.Bio != nil && *profile.Bio != "" {
		fmt.Fprintf(w, "Bio:         %s\n", content.PlainText(*profile.Bio))
	}
	if profile.Contact != nil && *profile.Contact != "" {
		fmt.Fprintf(w, "Contact:     %s\n", content.PlainText(*profile.Contact))
	}
}

// ListChats prints every chat known locally with its size and newest message.
func ListChats(env *Env) {
	currentUserID := env.Session.CurrentUserID()
	for _, key := range env.Hub.ChatIDs() {
		kind := "channel"
		if chat.IsDMKey(currentUserID, key) {
			kind = "direct"
		}
		last, size := env.Hub.LastRecords(key, 1)
		fmt.Fprintf(env.out(), "%-32s %-7s %5d  ", key, kind, size)
		if len(last) == 0 {
			fmt.Fprintln(env.out())
			continue
		}
		PrintMessage(env.out(), last[0])
	}
}

// ListChannels prints the channels the user can see and caches them locally.
func ListChannels(ctx context.Context, env *Env) error {
	token, err := env.Session.Token()
	if err != nil {
		return err
	}
	channels, err := env.API.Channels(ctx, token)
	if err != nil {
		return fmt.Errorf("failed to fetch channels: %w", err)
	}
	if env.Channels != nil {
		if err := env.Channels.UpsertChannels(channels); err != nil {
			return fmt.Errorf("failed to store channels: %w", err)
		}
	}
	for _, channel := range channels {
		visibility := "public"
		if channel.IsPrivate {
			visibility = "private"
		}
		fmt.Fprintf(env.out(), "%-6d %-24s %s\n", channel.ID, content.PlainText(channel.Name), visibility)
	}
	return nil
}

// History fetches the target's history, merges it with what is already known and prints it.
func History(ctx context.Context, env *Env, target Target) error {
	if err := target.Validate(); err != nil {
		return err
	}
	token, err := env.Session.Token()
	if err != nil {
		return err
	}

	var msgs []models.ChatMessage
	if target.ChannelID != "" {
		msgs, err = env.API.ChannelHistory(ctx, token, target.ChannelID, env.HistoryLimit)
	} else {
		msgs, err = env.API.DirectHistory(ctx, token, target.PeerID, env.HistoryLimit)
	}
	if err != nil {
		return fmt.Errorf("failed to fetch history: %w", err)
	}

	key := target.Key(env.Session.CurrentUserID())
	env.Hub.LoadHistory(key, msgs)
	for _, msg := range env.Hub.Records(key) {
		PrintMessage(env.out(), msg)
	}
	return nil
}

// Send sends text to the target and waits until the server's copy arrives or timeout passes.
func Send(ctx context.Context, env *Env, conn sender, target Target, text string, timeout time.Duration) error {
	if err := target.Validate(); err != nil {
		return err
	}
	currentUserID := env.Session.CurrentUserID()
	if currentUserID == "" {
		return errors.New("not logged in")
	}
	msg := target.Outgoing(currentUserID, text)

	key := target.Key(currentUserID)
	delivered := make(chan models.ChatMessage, 1)
	unsubscribe := env.Hub.Subscribe(func(chatID string, record models.ChatMessage) {
		if chatID == key && record.Sender.IsCurrentUser && record.Content == text {
			select {
			case delivered <- record:
			default:
			}
		}
	})
	defer unsubscribe()

	if private, ok := msg.(models.PrivateMessage); ok {
		env.Hub.ExpectEcho(private)
	}
	if err := conn.Send(ctx, msg); err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}

	select {
	case record := <-delivered:
		PrintMessage(env.out(), record)
		return nil
	case <-time.After(timeout):
		fmt.Fprintln(env.out(), "Message sent, no confirmation from the server yet.")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Listen prints every new message until ctx is done.
func Listen(ctx context.Context, env *Env) error {
	unsubscribe := env.Hub.Subscribe(func(chatID string, msg models.ChatMessage) {
		fmt.Fprintf(env.out(), "[%s] ", chatID)
		PrintMessage(env.out(), msg)
	})
	defer unsubscribe()

	<-ctx.Done()
	return nil
}

// PrintMessage writes one message as "time name: text". Own messages are marked with "me".
func PrintMessage(w io.Writer, msg models.ChatMessage) {
	name := msg.Sender.Name
	if name == "" {
		name = msg.Sender.Username
	}
	if msg.Sender.IsCurrentUser {
		name = "me"
	}
	fmt.Fprintf(w, "%s %s: %s\n", msg.Timestamp.Local().Format(time.DateTime), content.PlainText(name), content.PlainText(msg.Content))
}

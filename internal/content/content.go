package content

import (
	"bytes"
	"errors"
	"html"
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

var (
	policy   = bluemonday.UGCPolicy()
	stripAll = bluemonday.StrictPolicy()
	markdown = goldmark.New(goldmark.WithExtensions(extension.Strikethrough, extension.Linkify))

	usernameRegex = regexp.MustCompile(`^[a-zA-Z0-9._-]+$`)
	blankLines    = regexp.MustCompile(`\n{3,}`)
)

// Sanitize removes unsafe HTML from message content and display names.
func Sanitize(input string) string {
	return policy.Sanitize(input)
}

// Render converts message markdown to sanitized HTML.
func Render(input string) (string, error) {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(input), &buf); err != nil {
		return "", err
	}
	return policy.Sanitize(buf.String()), nil
}

// PlainText renders message markdown for a terminal: markup is dropped, text and line breaks stay.
func PlainText(input string) string {
	rendered, err := Render(input)
	if err != nil {
		return stripAll.Sanitize(input)
	}
	text := html.UnescapeString(stripAll.Sanitize(rendered))
	return strings.TrimSpace(blankLines.ReplaceAllString(text, "\n\n"))
}

// ValidateUsername rejects usernames the server would refuse before a register request is sent.
func ValidateUsername(username string) error {
	if username == "" {
		return errors.New("username cannot be empty")
	}
	if !usernameRegex.MatchString(username) {
		return errors.New("username may only contain letters, digits, dot, dash and underscore")
	}
	return nil
}

package main

import (
	"bufio"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"tasktango/internal/chat"
	"tasktango/internal/codec"
	"tasktango/internal/models"
)

// wiredump decodes captured TaskTango frames or response bodies, one per line,
// and prints what the client would make of them.
func main() {
	kind := flag.String("kind", "incoming", "incoming, outgoing, message, user, channel-history, direct-history or legacy-history")
	me := flag.String("me", "", "stringId of the current user, used to classify messages")
	flag.Parse()

	if failed := dump(os.Stdin, os.Stdout, *kind, *me); failed > 0 {
		os.Exit(1)
	}
}

func dump(r io.Reader, w io.Writer, kind, me string) int {
	failed := 0
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4<<20)
	for line := 1; scanner.Scan(); line++ {
		data := scanner.Bytes()
		if len(data) == 0 {
			continue
		}
		out, err := decode(data, kind, me)
		if err != nil {
			failed++
			fmt.Fprintf(w, "%d: error: %v\n", line, describe(err))
			continue
		}
		fmt.Fprintf(w, "%d: %s\n", line, out)
	}
	if err := scanner.Err(); err != nil {
		fmt.Fprintf(w, "read error: %v\n", err)
		failed++
	}
	return failed
}

// decode re-encodes what the client decoded, so the output shows the canonical wire form.
func decode(data []byte, kind, me string) ([]byte, error) {
	switch kind {
	case "incoming":
		in, err := codec.DecodeIncoming(data)
		if err != nil {
			return nil, err
		}
		in.Message = chat.Classify(in.Message, me)
		return codec.EncodeIncoming(in)
	case "outgoing":
		out, err := codec.DecodeOutgoing(data)
		if err != nil {
			return nil, err
		}
		return codec.EncodeOutgoing(out)
	case "message":
		msg, err := codec.DecodeMessage(data, codec.SenderFull)
		if err != nil {
			return nil, err
		}
		return codec.EncodeMessage(chat.Classify(msg, me))
	case "user":
		user, err := codec.DecodeUser(data, codec.SenderFull)
		if err != nil {
			return nil, err
		}
		user.IsCurrentUser = me != "" && user.StringID == me
		return codec.EncodeUser(user)
	case "channel-history":
		msgs, err := codec.DecodeHistory(data, codec.ChannelHistory)
		return encodeHistory(msgs, me, err)
	case "direct-history":
		msgs, err := codec.DecodeHistory(data, codec.DirectHistory)
		return encodeHistory(msgs, me, err)
	case "legacy-history":
		msgs, err := codec.DecodeLegacyHistory(data)
		if err != nil {
			return nil, err
		}
		return json.Marshal(msgs)
	default:
		return nil, fmt.Errorf("unknown kind %q", kind)
	}
}

func encodeHistory(msgs []models.ChatMessage, me string, err error) ([]byte, error) {
	if err != nil {
		return nil, err
	}
	page := make([]json.RawMessage, 0, len(msgs))
	for _, msg := range chat.ClassifyAll(msgs, me) {
		raw, err := codec.EncodeMessage(msg)
		if err != nil {
			return nil, err
		}
		page = append(page, raw)
	}
	return json.Marshal(page)
}

func describe(err error) string {
	var decErr *codec.DecodeError
	var protoErr *codec.ProtocolError
	switch {
	case errors.As(err, &decErr):
		return fmt.Sprintf("%v [field=%s]", err, decErr.Field)
	case errors.As(err, &protoErr):
		return fmt.Sprintf("unsupported type %q", protoErr.Type)
	default:
		return err.Error()
	}
}

package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"golang.org/x/term"

	"github.com/AltairaLabs/sydney/chathub"
	"github.com/AltairaLabs/sydney/protocol"
)

// Values of --color.
const (
	colorAuto   = "auto"
	colorAlways = "always"
	colorNever  = "never"
)

var (
	cyan   = color.New(color.FgCyan)
	green  = color.New(color.FgGreen)
	yellow = color.New(color.FgYellow)
	gray   = color.New(color.FgHiBlack)
)

// configureColor applies --color. In auto mode colour is used only when out
// is a terminal.
func configureColor(mode string, out *os.File) error {
	switch mode {
	case colorAuto, "":
		color.NoColor = !term.IsTerminal(int(out.Fd()))
	case colorAlways:
		color.NoColor = false
	case colorNever:
		color.NoColor = true
	default:
		return fmt.Errorf("--color must be auto, always or never, got %q", mode)
	}
	return nil
}

// renderOptions select what is printed besides the answer text.
type renderOptions struct {
	suggestions bool
	raw         bool
	query       string // JMESPath applied to raw frames
}

func renderResponse(w io.Writer, resp *chathub.Response, opts renderOptions) error {
	if opts.raw {
		if resp.Frame == nil {
			return fmt.Errorf("no frame received")
		}
		return renderFrame(w, resp.Frame, opts.query)
	}
	if resp.Empty {
		gray.Fprintln(w, "(no answer)")
		return nil
	}
	fmt.Fprintln(w, resp.Text)
	if opts.suggestions {
		renderSuggestions(w, resp.Suggestions)
	}
	return nil
}

// renderStream prints chunks as they arrive and returns the error of a failed turn.
func renderStream(w io.Writer, chunks <-chan chathub.StreamChunk, opts renderOptions) error {
	for chunk := range chunks {
		if chunk.Error != nil {
			if !opts.raw {
				fmt.Fprintln(w)
			}
			return chunk.Error
		}
		if opts.raw {
			if chunk.Frame != nil {
				if err := renderFrame(w, chunk.Frame, opts.query); err != nil {
					return err
				}
			}
			continue
		}

		fmt.Fprint(w, chunk.Delta)
		switch chunk.FinishReason {
		case chathub.FinishComplete:
			fmt.Fprintln(w)
			if opts.suggestions {
				renderSuggestions(w, chunk.Suggestions)
			}
		case chathub.FinishEmpty:
			gray.Fprintln(w, "(no answer)")
		}
	}
	return nil
}

// renderFrame prints a frame as indented JSON, or the result of query over it.
func renderFrame(w io.Writer, f *protocol.ResponseFrame, query string) error {
	if query == "" {
		var buf bytes.Buffer
		if err := json.Indent(&buf, f.Raw(), "", "  "); err != nil {
			return fmt.Errorf("failed to format frame: %w", err)
		}
		buf.WriteByte('\n')
		_, err := w.Write(buf.Bytes())
		return err
	}

	result, err := f.Select(query)
	if err != nil {
		return err
	}
	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to format query result: %w", err)
	}
	fmt.Fprintln(w, string(out))
	return nil
}

func renderSuggestions(w io.Writer, suggestions []string) {
	if len(suggestions) == 0 {
		return
	}
	fmt.Fprintln(w)
	yellow.Fprintln(w, "Suggestions:")
	for i, s := range suggestions {
		fmt.Fprintf(w, "  %d. %s\n", i+1, s)
	}
}

// chatSummary is the part of a listed chat the CLI shows.
type chatSummary struct {
	ConversationID string `json:"conversationId"`
	ChatName       string `json:"chatName"`
	UpdateTime     string `json:"updateTimeUtc"`
}

func renderConversations(w io.Writer, list *chathub.ConversationList) error {
	if len(list.Chats) == 0 {
		gray.Fprintln(w, "No conversations")
		return nil
	}
	cyan.Fprintf(w, "%d conversations\n", len(list.Chats))
	for _, raw := range list.Chats {
		var chat chatSummary
		if err := json.Unmarshal(raw, &chat); err != nil {
			return fmt.Errorf("failed to decode chat entry: %w", err)
		}
		name := chat.ChatName
		if name == "" {
			name = "(untitled)"
		}
		green.Fprintf(w, "  %s", chat.ConversationID)
		fmt.Fprintf(w, "  %s", name)
		if chat.UpdateTime != "" {
			gray.Fprintf(w, "  %s", chat.UpdateTime)
		}
		fmt.Fprintln(w)
	}
	return nil
}

package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/AltairaLabs/sydney/chathub"
	"github.com/AltairaLabs/sydney/protocol"
)

var askCmd = &cobra.Command{
	Use:   "ask [prompt]",
	Short: "Ask a question in a new conversation",
	Long: `Ask opens a conversation, sends one chat turn and prints the answer.

The image given with --image may be an http(s) URL or a local file. Local
files are uploaded as raw bytes before the turn is sent.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		style, err := styleFlag(cmd)
		if err != nil {
			return err
		}
		opts, render, stream, err := askFlags(cmd)
		if err != nil {
			return err
		}

		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.close()

		conv, err := a.client.StartConversation(cmd.Context(), style)
		if err != nil {
			return err
		}
		defer conv.Close()

		return ask(cmd.Context(), conv, args[0], opts, render, stream)
	},
}

func init() {
	rootCmd.AddCommand(askCmd)

	flags := askCmd.Flags()
	flags.StringP("style", "s", "", "Conversation style: creative, balanced or precise (defaults to the configured style)")
	flags.Bool("stream", false, "Print the answer as it is generated")
	flags.Bool("citations", false, "Print the answer annotated with source references")
	flags.Bool("suggestions", false, "Print suggested follow-up prompts")
	flags.Bool("no-search", false, "Answer without running web searches")
	flags.String("image", "", "Image to ask about, as a URL or a local file path")
	flags.String("context", "", "Web page text to send along with the prompt")
	flags.Bool("raw", false, "Print the decoded response frames as JSON")
	flags.String("query", "", "JMESPath expression applied to raw frames (implies --raw)")
}

func ask(ctx context.Context, conv *chathub.Conversation, prompt string,
	opts chathub.AskOptions, render renderOptions, stream bool) error {
	if stream {
		chunks, err := conv.AskStream(ctx, prompt, opts)
		if err != nil {
			return err
		}
		return renderStream(os.Stdout, chunks, render)
	}

	resp, err := conv.Ask(ctx, prompt, opts)
	if err != nil {
		return err
	}
	return renderResponse(os.Stdout, resp, render)
}

// styleFlag returns the --style value, or zero to use the configured style.
func styleFlag(cmd *cobra.Command) (protocol.ConversationStyle, error) {
	flags := readFlags(cmd)
	name := flags.String("style")
	if err := flags.Err(); err != nil {
		return 0, err
	}
	if name == "" {
		return 0, nil
	}
	return protocol.ParseStyle(name)
}

func askFlags(cmd *cobra.Command) (chathub.AskOptions, renderOptions, bool, error) {
	flags := readFlags(cmd)
	var opts chathub.AskOptions
	var render renderOptions

	stream := flags.Bool("stream")
	opts.Citations = flags.Bool("citations")
	opts.Suggestions = flags.Bool("suggestions")
	opts.NoSearch = flags.Bool("no-search")
	opts.Context = flags.String("context")
	opts.Raw = flags.Bool("raw")
	render.query = flags.String("query")
	image := flags.String("image")
	if err := flags.Err(); err != nil {
		return opts, render, false, err
	}

	if render.query != "" {
		opts.Raw = true
	}
	render.raw = opts.Raw
	render.suggestions = opts.Suggestions

	attachment, err := loadAttachment(image)
	if err != nil {
		return opts, render, false, err
	}
	opts.Attachment = attachment
	return opts, render, stream, nil
}

// loadAttachment turns an --image value into an attachment. URLs are passed
// through; anything else is read from disk.
func loadAttachment(image string) (*chathub.Attachment, error) {
	if image == "" {
		return nil, nil
	}
	if strings.HasPrefix(image, "http://") || strings.HasPrefix(image, "https://") {
		return &chathub.Attachment{URL: image}, nil
	}
	data, err := os.ReadFile(image)
	if err != nil {
		return nil, fmt.Errorf("failed to read image %s: %w", image, err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("image %s is empty", image)
	}
	return &chathub.Attachment{Data: data}, nil
}

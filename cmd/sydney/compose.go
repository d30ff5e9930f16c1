package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/AltairaLabs/sydney/chathub"
	"github.com/AltairaLabs/sydney/protocol"
)

var composeCmd = &cobra.Command{
	Use:   "compose [prompt]",
	Short: "Write a text in a given tone, format and length",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts, err := composeFlags(cmd)
		if err != nil {
			return err
		}
		flags := readFlags(cmd)
		stream := flags.Bool("stream")
		if err := flags.Err(); err != nil {
			return err
		}

		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.close()

		conv, err := a.client.StartConversation(cmd.Context(), 0)
		if err != nil {
			return err
		}
		defer conv.Close()

		render := renderOptions{suggestions: opts.Suggestions}
		if stream {
			chunks, err := conv.ComposeStream(cmd.Context(), args[0], opts)
			if err != nil {
				return err
			}
			return renderStream(os.Stdout, chunks, render)
		}
		resp, err := conv.Compose(cmd.Context(), args[0], opts)
		if err != nil {
			return err
		}
		return renderResponse(os.Stdout, resp, render)
	},
}

func init() {
	rootCmd.AddCommand(composeCmd)

	flags := composeCmd.Flags()
	flags.String("tone", "professional", "Tone: professional, casual, enthusiastic, informational, funny, or any custom word")
	flags.String("format", "paragraph", "Format: paragraph, email, blogpost or ideas")
	flags.String("length", "short", "Length: short, medium or long")
	flags.Bool("stream", false, "Print the text as it is generated")
	flags.Bool("suggestions", false, "Print suggested follow-up prompts")
}

func composeFlags(cmd *cobra.Command) (chathub.ComposeOptions, error) {
	flags := readFlags(cmd)
	var opts chathub.ComposeOptions

	tone := flags.String("tone")
	format := flags.String("format")
	length := flags.String("length")
	opts.Suggestions = flags.Bool("suggestions")
	if err := flags.Err(); err != nil {
		return opts, err
	}

	opts.Tone = protocol.ParseTone(tone)

	f, err := protocol.ParseFormat(format)
	if err != nil {
		return opts, fmt.Errorf("--format: %w", err)
	}
	opts.Format = f

	l, err := protocol.ParseLength(length)
	if err != nil {
		return opts, fmt.Errorf("--length: %w", err)
	}
	opts.Length = l
	return opts, nil
}

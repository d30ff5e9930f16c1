package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/AltairaLabs/sydney/chathub"
	"github.com/AltairaLabs/sydney/logger"
	"github.com/AltairaLabs/sydney/protocol"
)

const defaultBatchParallel = 4

var batchCmd = &cobra.Command{
	Use:   "batch [prompt...]",
	Short: "Ask several questions, each in its own conversation",
	Long: `Batch asks every prompt in a separate conversation, running up to --parallel
conversations at a time. Answers are printed in prompt order once all are done.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		style, err := styleFlag(cmd)
		if err != nil {
			return err
		}
		flags := readFlags(cmd)
		parallel := flags.Int("parallel")
		failFast := flags.Bool("fail-fast")
		if err := flags.Err(); err != nil {
			return err
		}
		if parallel < 1 {
			return fmt.Errorf("--parallel must be at least 1, got %d", parallel)
		}

		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.close()

		results := runBatch(cmd.Context(), a.client, style, args, parallel, failFast)
		return printBatch(os.Stdout, results)
	},
}

func init() {
	rootCmd.AddCommand(batchCmd)

	flags := batchCmd.Flags()
	flags.StringP("style", "s", "", "Conversation style: creative, balanced or precise")
	flags.IntP("parallel", "p", defaultBatchParallel, "Maximum number of conversations in flight")
	flags.Bool("fail-fast", false, "Cancel the remaining prompts after the first failure")
}

// batchResult is the outcome of one prompt.
type batchResult struct {
	prompt string
	text   string
	err    error
}

// conversationStarter is the part of chathub.Client batch needs.
type conversationStarter interface {
	StartConversation(ctx context.Context, style protocol.ConversationStyle) (*chathub.Conversation, error)
}

func runBatch(ctx context.Context, client conversationStarter, style protocol.ConversationStyle,
	prompts []string, parallel int, failFast bool) []batchResult {
	results := make([]batchResult, len(prompts))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(parallel)
	for i, prompt := range prompts {
		results[i].prompt = prompt
		g.Go(func() error {
			text, err := askOnce(gctx, client, style, prompt)
			results[i].text, results[i].err = text, err
			if err != nil {
				logger.Warn("Batch prompt failed", "index", i, "error", err)
				if failFast {
					return err
				}
			}
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func askOnce(ctx context.Context, client conversationStarter, style protocol.ConversationStyle, prompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	conv, err := client.StartConversation(ctx, style)
	if err != nil {
		return "", err
	}
	defer conv.Close()

	resp, err := conv.Ask(ctx, prompt, chathub.AskOptions{})
	if err != nil {
		return "", err
	}
	return resp.Text, nil
}

// printBatch writes every result and reports how many prompts failed.
func printBatch(w io.Writer, results []batchResult) error {
	failed := 0
	for i, r := range results {
		cyan.Fprintf(w, "[%d] %s\n", i+1, r.prompt)
		if r.err != nil {
			failed++
			yellow.Fprintf(w, "error: %v\n\n", r.err)
			continue
		}
		fmt.Fprintf(w, "%s\n\n", r.text)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d prompts failed", failed, len(results))
	}
	return nil
}

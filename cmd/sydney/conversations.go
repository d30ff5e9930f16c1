package main

import (
	"os"

	"github.com/spf13/cobra"
)

var conversationsCmd = &cobra.Command{
	Use:     "conversations",
	Aliases: []string{"list"},
	Short:   "List the conversations of the signed-in account",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.close()

		list, err := a.client.ListConversations(cmd.Context())
		if err != nil {
			return err
		}
		return renderConversations(os.Stdout, list)
	},
}

func init() {
	rootCmd.AddCommand(conversationsCmd)
}

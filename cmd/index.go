package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Build the document index and report its state",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEngine(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		if env.idx.Empty() {
			zap.L().Warn("index is empty",
				zap.String("dir", cfg.Documents.Dir))
			cmd.Println("index: empty")
			return nil
		}

		cmd.Printf("index: built (provenance: %s)\n", env.idx.Provenance())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(indexCmd)
}

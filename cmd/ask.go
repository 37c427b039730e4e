package main

import (
	"encoding/json"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/integration-desk/internal/model"
)

var askHistoryFile string

var askCmd = &cobra.Command{
	Use:   "ask [inquiry text]",
	Short: "Answer a single inquiry",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEngine(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		var history []model.ConversationTurn
		if askHistoryFile != "" {
			data, err := os.ReadFile(askHistoryFile)
			if err != nil {
				return eris.Wrap(err, "read history file")
			}
			if err := json.Unmarshal(data, &history); err != nil {
				return eris.Wrap(err, "parse history file")
			}
		}

		result := env.eng.ProcessInquiry(ctx, strings.Join(args, " "), history)

		out, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return eris.Wrap(err, "marshal result")
		}
		cmd.Println(string(out))

		zap.L().Info("inquiry processed",
			zap.String("run_id", result.RunID),
			zap.String("action", string(result.Action)),
			zap.Bool("context_found", result.ContextFound),
		)
		return nil
	},
}

func init() {
	askCmd.Flags().StringVar(&askHistoryFile, "history", "", "JSON file with prior conversation turns")
	rootCmd.AddCommand(askCmd)
}

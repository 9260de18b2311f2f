package main

import (
	"encoding/json"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/scanvoice/review-engine/internal/jobstatus"
)

var statusCmd = &cobra.Command{
	Use:   "status <task-id>...",
	Short: "Fetch normalized status for OCR extraction tasks",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.Engine.BaseURL == "" {
			return eris.New("engine base URL is required (REVIEW_ENGINE_BASE_URL)")
		}
		engine := jobstatus.NewHTTPEngine(
			cfg.Engine.BaseURL,
			cfg.Engine.PollPerSecond,
			time.Duration(cfg.Engine.TimeoutSecs)*time.Second,
		)

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")

		for _, taskID := range args {
			status, err := jobstatus.Fetch(cmd.Context(), engine, taskID)
			if err != nil {
				if jobstatus.IsNotFound(err) {
					enc.Encode(map[string]string{"task_id": taskID, "error": "task not found"})
					continue
				}
				return err
			}
			if err := enc.Encode(status); err != nil {
				return eris.Wrap(err, "encode status")
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

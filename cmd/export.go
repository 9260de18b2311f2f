package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/scanvoice/review-engine/internal/export"
)

var (
	exportOut   string
	exportLimit int
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the validation audit trail to XLSX",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		limit := exportLimit
		if limit == 0 {
			limit = cfg.Export.MaxRecords
		}

		n, err := export.WriteAuditXLSX(cmd.Context(), env.Store, exportOut, limit)
		if err != nil {
			return err
		}

		zap.L().Info("export complete", zap.String("path", exportOut), zap.Int("records", n))
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportOut, "out", "validations.xlsx", "output file path")
	exportCmd.Flags().IntVar(&exportLimit, "limit", 0, "max records to export (default from config)")
	rootCmd.AddCommand(exportCmd)
}

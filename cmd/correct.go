package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/scanvoice/review-engine/internal/model"
)

var correctConcurrency int

// correctionFile is one correction submission on disk.
type correctionFile struct {
	ResultID      string         `json:"result_id"`
	Corrections   map[string]any `json:"corrections"`
	CreateInvoice bool           `json:"create_invoice"`
	Notes         string         `json:"notes"`
	ValidatedBy   string         `json:"validated_by"`
}

var correctCmd = &cobra.Command{
	Use:   "correct <file.json>...",
	Short: "Apply correction files to extraction results",
	Long:  "Each file holds one submission: result_id, corrections (field path to value), optional create_invoice, notes and validated_by.",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		g, ctx := errgroup.WithContext(cmd.Context())
		g.SetLimit(correctConcurrency)

		for _, path := range args {
			path := path
			g.Go(func() error {
				data, err := os.ReadFile(path)
				if err != nil {
					return eris.Wrapf(err, "read %s", path)
				}
				var cf correctionFile
				if err := json.Unmarshal(data, &cf); err != nil {
					return eris.Wrapf(err, "parse %s", path)
				}
				if cf.ResultID == "" {
					return eris.Errorf("%s: result_id is required", path)
				}

				resp, err := env.Service.ApplyCorrection(ctx, cf.ResultID, &model.CorrectionSet{
					Corrections:   cf.Corrections,
					CreateInvoice: cf.CreateInvoice,
					Notes:         cf.Notes,
				}, cf.ValidatedBy)
				if err != nil {
					return eris.Wrapf(err, "apply %s", path)
				}

				zap.L().Info("correction file applied",
					zap.String("file", path),
					zap.String("result_id", cf.ResultID),
					zap.Strings("updated_fields", resp.UpdatedFields),
					zap.Float64("overall_confidence", resp.OverallConfidence),
					zap.Bool("invoice_created", resp.InvoiceCreated),
				)
				if resp.InvoiceError != "" {
					zap.L().Warn("invoice creation failed",
						zap.String("result_id", cf.ResultID),
						zap.String("error", resp.InvoiceError),
					)
				}
				return nil
			})
		}

		return g.Wait()
	},
}

func init() {
	correctCmd.Flags().IntVar(&correctConcurrency, "concurrency", 4, "max correction files applied in parallel")
	rootCmd.AddCommand(correctCmd)
}

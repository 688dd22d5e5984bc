package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"callouts/internal/logger"
	"callouts/internal/sheets"
	"callouts/pkg/models"
)

var processCmd = &cobra.Command{
	Use:   "process",
	Short: "Extract callouts from a PDF URL or page images",
	Long: `Run one extraction job in this process and print the job response.

The document is either a PDF URL (--pdf-url) or a list of page images
(--images), given as http(s) URLs or local paths. Pages are split into
chunks of --chunk-size and processed by --workers parallel workers.
Page images, per-page JSON and the final search index are uploaded to
the backend selected by STORAGE_BACKEND unless --no-upload is set.

Required environment variables depend on OCR_ENGINE and STORAGE_BACKEND;
see the README.`,
	Example: `  # Process a drawing set by URL
  callouts process --pdf-url https://files.example.com/set.pdf --project tower-a

  # Process local page scans without uploading, saving the index locally
  callouts process --images p1.png,p2.png --no-upload -o index.json

  # Also export the aggregated callouts to a Google Sheet
  callouts process --pdf-url https://files.example.com/set.pdf --sheet`,
	Args: cobra.NoArgs,
	RunE: runProcess,
}

func init() {
	rootCmd.AddCommand(processCmd)

	processCmd.Flags().String("pdf-url", "", "URL of the PDF to process")
	processCmd.Flags().StringSlice("images", nil, "Page image URLs or paths, in page order")
	processCmd.Flags().String("project", "", "Project ID (default: \"default\")")
	processCmd.Flags().String("file", "", "File ID (default: generated)")
	processCmd.Flags().Int("chunk-size", 0, "Pages per chunk, 1-15 (default: DEFAULT_CHUNK_SIZE)")
	processCmd.Flags().Int("workers", 0, "Parallel workers, 1-50 (default: PARALLEL_WORKERS)")
	processCmd.Flags().String("webhook", "", "URL to notify when the job finishes")
	processCmd.Flags().Bool("no-upload", false, "Do not upload artifacts")
	processCmd.Flags().StringP("output", "o", "", "Write the final document JSON to this file")
	processCmd.Flags().Bool("sheet", false, "Export aggregated callouts to GOOGLE_SHEET_URL")
	processCmd.Flags().Int("timeout", 1800, "Job timeout in seconds")
}

func runProcess(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("process")

	pdfURL, _ := cmd.Flags().GetString("pdf-url")
	images, _ := cmd.Flags().GetStringSlice("images")
	projectID, _ := cmd.Flags().GetString("project")
	fileID, _ := cmd.Flags().GetString("file")
	chunkSize, _ := cmd.Flags().GetInt("chunk-size")
	workers, _ := cmd.Flags().GetInt("workers")
	webhook, _ := cmd.Flags().GetString("webhook")
	noUpload, _ := cmd.Flags().GetBool("no-upload")
	outputPath, _ := cmd.Flags().GetString("output")
	toSheet, _ := cmd.Flags().GetBool("sheet")
	timeoutSecs, _ := cmd.Flags().GetInt("timeout")

	cfg, err := loadConfig(log)
	if err != nil {
		return err
	}
	if chunkSize == 0 {
		chunkSize = cfg.DefaultChunkSize
	}
	if workers == 0 {
		workers = cfg.ParallelWorkers
	}
	if toSheet && cfg.GoogleSheetURL == "" {
		return fmt.Errorf("--sheet requires GOOGLE_SHEET_URL")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(timeoutSecs)*time.Second)
	defer cancel()
	ctx, stop := signalContext(ctx, log)
	defer stop()

	svc, err := buildServices(ctx, cfg, !noUpload, log)
	if err != nil {
		return err
	}
	defer svc.close(log)
	svc.allowLocalPaths()

	req := models.ProcessRequest{
		PDFURL:          pdfURL,
		Images:          images,
		ProjectID:       projectID,
		FileID:          fileID,
		ChunkSize:       chunkSize,
		ParallelWorkers: workers,
		Webhook:         webhook,
	}

	out, err := svc.runner.Run(ctx, req)
	if err != nil {
		return handleProcessError(err, log)
	}

	if outputPath != "" {
		data, err := json.MarshalIndent(out.Document, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode document: %w", err)
		}
		if err := os.WriteFile(outputPath, data, 0o644); err != nil {
			log.Error().Err(err).Str("output_file", outputPath).Msg("Failed to write output file")
			return fmt.Errorf("failed to write output file: %w", err)
		}
		log.Info().Str("output_file", outputPath).Int("bytes", len(data)).Msg("Document written to file")
	}

	if toSheet {
		sheet, err := sheets.NewSheetsService(ctx, cfg.GoogleSheetURL)
		if err != nil {
			return fmt.Errorf("failed to connect to Google Sheets: %w", err)
		}
		if err := sheet.WriteItems(ctx, &out.Document, cfg.GoogleSheetWorksheet); err != nil {
			return fmt.Errorf("failed to export to Google Sheets: %w", err)
		}
	}

	data, err := json.MarshalIndent(out.Response, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode response: %w", err)
	}
	fmt.Println(string(data))
	return nil
}

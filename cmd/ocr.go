package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"callouts/internal/extract"
	"callouts/internal/logger"
	"callouts/internal/ocr"
	"callouts/internal/pages"
)

var ocrCmd = &cobra.Command{
	Use:   "ocr [image-or-pdf]",
	Short: "OCR a single page and show the callouts found on it",
	Long: `Run the configured OCR engine (OCR_ENGINE) on one page image, or on one
page of a local PDF, and print the recognized tokens and the callout
candidates extracted from them.

Useful for tuning a vocabulary file (VOCABULARY_FILE) against a real scan
before running a whole document.`,
	Example: `  # Show candidates found on a scan
  callouts ocr sheet-A101.png

  # Page 3 of a PDF, with tokens, as JSON
  callouts ocr set.pdf --page 3 --tokens --json -o page3.json`,
	Args: cobra.ExactArgs(1),
	RunE: runOCR,
}

// OCROutput represents the JSON output structure when --json flag is used
type OCROutput struct {
	FileName           string              `json:"file_name"`
	Page               int                 `json:"page"`
	Engine             string              `json:"engine"`
	TokenCount         int                 `json:"token_count"`
	Tokens             []ocr.Token         `json:"tokens,omitempty"`
	Candidates         []extract.Candidate `json:"candidates"`
	ProcessedAt        time.Time           `json:"processed_at"`
	ProcessingDuration string              `json:"processing_duration"`
}

func init() {
	rootCmd.AddCommand(ocrCmd)

	ocrCmd.Flags().StringP("output", "o", "", "Output file path (default: stdout)")
	ocrCmd.Flags().Int("page", 1, "Page number when the input is a PDF")
	ocrCmd.Flags().Bool("tokens", false, "Include raw OCR tokens in output")
	ocrCmd.Flags().Bool("json", false, "Output as JSON")
	ocrCmd.Flags().Int("timeout", 120, "Processing timeout in seconds")
}

func runOCR(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("ocr")

	outputPath, _ := cmd.Flags().GetString("output")
	pageNum, _ := cmd.Flags().GetInt("page")
	includeTokens, _ := cmd.Flags().GetBool("tokens")
	jsonOutput, _ := cmd.Flags().GetBool("json")
	timeoutSecs, _ := cmd.Flags().GetInt("timeout")

	path := args[0]

	log.Info().
		Str("file", path).
		Int("page", pageNum).
		Bool("json", jsonOutput).
		Int("timeout", timeoutSecs).
		Msg("Starting OCR")

	if err := validateInputFile(path, log); err != nil {
		return err
	}

	cfg, err := loadConfig(log)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(timeoutSecs)*time.Second)
	defer cancel()
	ctx, stop := signalContext(ctx, log)
	defer stop()

	page, err := loadPage(ctx, path, pageNum)
	if err != nil {
		return err
	}

	svc, err := buildServices(ctx, cfg, false, log)
	if err != nil {
		return err
	}
	defer svc.close(log)

	start := time.Now()
	text, err := svc.runner.OCR.DetectText(ctx, page.Input())
	if err != nil {
		return handleOCRError(err, log)
	}
	cands := svc.runner.Extractor.Extract(pageNum, text)
	if cands == nil {
		cands = []extract.Candidate{}
	}

	result := OCROutput{
		FileName:           filepath.Base(path),
		Page:               pageNum,
		Engine:             svc.runner.OCR.Name(),
		TokenCount:         len(text.Tokens),
		Candidates:         cands,
		ProcessedAt:        time.Now(),
		ProcessingDuration: time.Since(start).String(),
	}
	if includeTokens {
		result.Tokens = text.Tokens
	}

	log.Info().
		Int("tokens", result.TokenCount).
		Int("candidates", len(cands)).
		Str("duration", result.ProcessingDuration).
		Msg("OCR completed successfully")

	return outputResults(result, outputPath, jsonOutput, log)
}

// validateInputFile checks that path is a readable, non-empty regular file
func validateInputFile(path string, log zerolog.Logger) error {
	fileInfo, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			log.Error().Str("file", path).Msg("File not found")
			return fmt.Errorf("file not found: %s", path)
		}
		if os.IsPermission(err) {
			log.Error().Str("file", path).Msg("Permission denied accessing file")
			return fmt.Errorf("permission denied accessing file: %s", path)
		}
		return fmt.Errorf("error accessing file: %w", err)
	}

	if !fileInfo.Mode().IsRegular() {
		return fmt.Errorf("path is not a regular file: %s", path)
	}
	if fileInfo.Size() == 0 {
		return fmt.Errorf("file is empty: %s", path)
	}
	if fileInfo.Size() > ocr.MaxContentBytes {
		log.Error().
			Str("file", path).
			Int64("size", fileInfo.Size()).
			Int64("max_size", ocr.MaxContentBytes).
			Msg("File exceeds maximum size limit")
		return fmt.Errorf("file too large (%d bytes). Maximum size is %d bytes (20MB)", fileInfo.Size(), ocr.MaxContentBytes)
	}
	return nil
}

// loadPage reads an image file, or page n of a PDF file.
func loadPage(ctx context.Context, path string, n int) (pages.Page, error) {
	if !strings.EqualFold(filepath.Ext(path), ".pdf") {
		src, err := pages.NewFileSource([]string{path})
		if err != nil {
			return pages.Page{}, err
		}
		return src.Page(ctx, 1)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return pages.Page{}, fmt.Errorf("failed to read PDF: %w", err)
	}
	src, err := pages.NewPDFSource(path, data)
	if err != nil {
		return pages.Page{}, fmt.Errorf("failed to open PDF: %w", err)
	}
	page, err := src.Page(ctx, n)
	if err != nil {
		return pages.Page{}, fmt.Errorf("PDF has %d page(s): %w", src.Count(), err)
	}
	return page, nil
}

// outputResults formats and outputs the OCR results
func outputResults(result OCROutput, outputPath string, jsonOutput bool, log zerolog.Logger) error {
	var outputData []byte

	if jsonOutput {
		data, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			log.Error().Err(err).Msg("Failed to marshal JSON output")
			return fmt.Errorf("failed to create JSON output: %w", err)
		}
		outputData = append(data, '\n')
	} else {
		var output strings.Builder
		fmt.Fprintf(&output, "=== %s, page %d (%s) ===\n", result.FileName, result.Page, result.Engine)
		fmt.Fprintf(&output, "Tokens: %d\n", result.TokenCount)
		fmt.Fprintf(&output, "Processing time: %s\n\n", result.ProcessingDuration)

		if len(result.Candidates) == 0 {
			output.WriteString("No callouts found.\n")
		}
		for _, c := range result.Candidates {
			fmt.Fprintf(&output, "%-12s %-8s %-22s %-14s %.2f\n", c.Key, c.Type, c.Category, c.Source, c.Confidence)
		}

		if len(result.Tokens) > 0 {
			output.WriteString("\n=== Tokens ===\n")
			for _, t := range result.Tokens {
				c := t.BBox.Center()
				fmt.Fprintf(&output, "%-20q (%.0f, %.0f) %.2f\n", t.Text, c.X, c.Y, t.Confidence)
			}
		}
		outputData = []byte(output.String())
	}

	if outputPath != "" {
		if err := os.WriteFile(outputPath, outputData, 0o644); err != nil {
			log.Error().
				Err(err).
				Str("output_file", outputPath).
				Msg("Failed to write output file")
			return fmt.Errorf("failed to write output file: %w", err)
		}

		log.Info().
			Str("output_file", outputPath).
			Int("bytes", len(outputData)).
			Msg("OCR results written to file")
		return nil
	}

	if _, err := os.Stdout.Write(outputData); err != nil {
		log.Error().Err(err).Msg("Failed to write to stdout")
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

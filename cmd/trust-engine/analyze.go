// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/trust-engine/internal/pipeline"
	"github.com/pdiddy/trust-engine/pkg/types"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze [content]",
	Short: "Score one study given as a URL, DOI, PDF, or text",
	Long: `Analyze runs a single study through the trust-scoring pipeline and prints
the result. The study is given as an argument (URL, DOI, or text) or read
from --file; use --file - to read standard input. PDF input always comes
from --file.`,
	Example: `  trust-engine analyze --type url https://journals.example.org/article/123
  trust-engine analyze --type doi 10.1056/NEJMoa2034577
  trust-engine analyze --type pdf --file study.pdf --format yaml`,
	Args: cobra.MaximumNArgs(1),
	RunE: runAnalyze,
}

func init() {
	analyzeCmd.Flags().String("type", "", "input type: url, pdf, doi, or text (required)")
	analyzeCmd.Flags().String("file", "", "read the study from this file (- for stdin)")
	analyzeCmd.Flags().String("format", "json", "output format: json or yaml")
	_ = analyzeCmd.MarkFlagRequired("type")

	rootCmd.AddCommand(analyzeCmd)
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	typeFlag, _ := cmd.Flags().GetString("type")
	file, _ := cmd.Flags().GetString("file")
	format, _ := cmd.Flags().GetString("format")

	inputType := types.InputType(strings.ToLower(typeFlag))
	if !inputType.Valid() {
		return fmt.Errorf("--type must be one of url, pdf, doi, text; got %q", typeFlag)
	}
	if format != "json" && format != "yaml" {
		return fmt.Errorf("--format must be json or yaml; got %q", format)
	}

	content, err := readInput(inputType, file, args, cmd.InOrStdin())
	if err != nil {
		return err
	}

	metrics, _ := newMetrics()
	p, err := newPipeline(metrics)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	result, err := p.AnalyzeStudy(ctx, types.AnalysisRequest{InputType: inputType, Content: content})
	if err != nil {
		var pe *pipeline.Error
		if errors.As(err, &pe) {
			return errors.New(pe.Message)
		}
		return err
	}
	return renderResult(cmd.OutOrStdout(), result, format)
}

// readInput returns request content. PDF files are base64-encoded the way
// the HTTP API receives them.
func readInput(inputType types.InputType, file string, args []string, stdin io.Reader) (string, error) {
	if file == "" {
		if inputType == types.InputPDF {
			return "", fmt.Errorf("PDF input requires --file")
		}
		if len(args) == 0 {
			return "", fmt.Errorf("provide the study as an argument or with --file")
		}
		return args[0], nil
	}
	if len(args) > 0 {
		return "", fmt.Errorf("give either an argument or --file, not both")
	}

	var data []byte
	var err error
	if file == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(file)
	}
	if err != nil {
		return "", fmt.Errorf("reading input: %w", err)
	}

	if inputType == types.InputPDF {
		return base64.StdEncoding.EncodeToString(data), nil
	}
	return string(data), nil
}

func renderResult(w io.Writer, result *types.AnalysisResult, format string) error {
	if format == "yaml" {
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(result); err != nil {
			return fmt.Errorf("encoding YAML: %w", err)
		}
		return enc.Close()
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

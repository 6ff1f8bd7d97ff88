package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/feichai0017/resume-extractor/config"
	"github.com/feichai0017/resume-extractor/internal/models"
	"github.com/feichai0017/resume-extractor/internal/service/extraction"
	"github.com/feichai0017/resume-extractor/pkg/logger"
)

// errExtractionFailed marks a run whose result was already printed.
var errExtractionFailed = errors.New("extraction failed")

type options struct {
	context    string
	server     string
	configPath string
	parse      bool
	asJSON     bool
	verbose    bool
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:   "extract <file.pdf>",
		Short: "Extract the text of a resume PDF",
		Long: `Extract text from a resume PDF: the PDF text layer first, then remote OCR,
then (browser context) the first-party OCR service.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			err := run(cmd, opts, args[0])
			if err != nil && !errors.Is(err, errExtractionFailed) {
				fmt.Fprintln(cmd.ErrOrStderr(), "Error:", err)
			}
			return err
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.context, "context", "", "execution context: browser or server (default from config)")
	f.StringVar(&opts.server, "server", "", "base URL of the first-party OCR service, browser context only")
	f.StringVar(&opts.configPath, "config", os.Getenv("CONFIG_PATH"), "path to a YAML config file")
	f.BoolVar(&opts.parse, "parse", false, "also run the structured resume parser")
	f.BoolVar(&opts.asJSON, "json", false, "print the full result as JSON")
	f.BoolVarP(&opts.verbose, "verbose", "v", false, "log cascade steps to stderr")
	return cmd
}

func run(cmd *cobra.Command, opts *options, path string) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}

	level := "warn"
	if opts.verbose {
		level = "debug"
	}
	log, err := logger.NewLogger(
		logger.WithLevel(level),
		logger.WithEncoding("console"),
		logger.WithOutputPaths([]string{"stderr"}),
		logger.WithErrorPaths([]string{}),
	)
	if err != nil {
		return err
	}
	defer log.Sync()

	ctx := cmd.Context()
	orch, err := extraction.FromConfig(ctx, cfg, log)
	if err != nil {
		return err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	file := models.NewFile(filepath.Base(path), detectMimeType(path, data), data)

	var out models.ParseOutcome
	if opts.parse {
		out = orch.ExtractAndParse(ctx, file)
	} else {
		out.Extraction = orch.ExtractText(ctx, file)
	}
	return printOutcome(cmd.OutOrStdout(), cmd.ErrOrStderr(), out, opts)
}

func loadConfig(opts *options) (*config.Config, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, err
	}
	if opts.context != "" {
		cfg.Extraction.Context = strings.ToLower(opts.context)
	}
	if opts.server != "" {
		cfg.OCR.LocalServiceURL = strings.TrimRight(opts.server, "/") + "/api/v1/ocr"
	}
	if opts.parse {
		cfg.Parser.Enabled = true
	}
	if cfg.Extraction.Context == "browser" {
		// an untrusted client never holds the OCR key
		cfg.OCR.APIKey = ""
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func detectMimeType(path string, data []byte) string {
	if t := mime.TypeByExtension(strings.ToLower(filepath.Ext(path))); t != "" {
		return t
	}
	return http.DetectContentType(data)
}

func printOutcome(stdout, stderr io.Writer, out models.ParseOutcome, opts *options) error {
	res := out.Extraction
	if opts.asJSON {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		var v interface{} = res
		if opts.parse {
			v = out
		}
		if err := enc.Encode(v); err != nil {
			return err
		}
	} else if res.Success {
		fmt.Fprintln(stdout, res.Text)
		if out.Resume != nil {
			data, _ := json.MarshalIndent(out.Resume, "", "  ")
			fmt.Fprintln(stdout, string(data))
		}
		if out.ParseError != "" {
			fmt.Fprintln(stderr, "parse:", out.ParseError)
		}
	} else {
		fmt.Fprintln(stderr, res.UserMessage())
		fmt.Fprintln(stderr, "error:", res.Error)
	}

	if !res.Success {
		return errExtractionFailed
	}
	return nil
}

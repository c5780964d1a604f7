package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/tendant/simple-upload/pkg/simpleupload"
	"github.com/tendant/simple-upload/pkg/simpleupload/client"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	// Load .env file if it exists (silently ignore if not found)
	_ = godotenv.Load()

	if err := NewRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

type uploadFlags struct {
	endpoint      string
	route         string
	metadata      string
	headers       []string
	batchSize     int
	partBatchSize int
	retries       int
	retryDelay    time.Duration
	bandwidth     int
	abortOnError  bool
	verbose       bool
}

// NewRootCommand creates the upload command
func NewRootCommand() *cobra.Command {
	var f uploadFlags

	cmd := &cobra.Command{
		Use:   "upload [flags] <file>...",
		Short: "Upload files through a simple-upload endpoint",
		Long: `Upload local files through a simple-upload endpoint.

The endpoint signs each file and the bytes go straight to object storage.
Large files on multipart routes are sent in parts.`,
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUpload(cmd, f, args)
		},
	}

	cmd.Flags().StringVarP(&f.endpoint, "endpoint", "e", getEnv("UPLOAD_ENDPOINT", "http://localhost:8080/api/upload"), "upload endpoint URL")
	cmd.Flags().StringVarP(&f.route, "route", "r", "", "upload route name")
	cmd.Flags().StringVarP(&f.metadata, "metadata", "m", "", "client metadata as JSON")
	cmd.Flags().StringArrayVarP(&f.headers, "header", "H", nil, "extra endpoint header as 'Name: value' (repeatable)")
	cmd.Flags().IntVar(&f.batchSize, "batch", 0, "files uploaded at once (0 = all, 1 = sequential)")
	cmd.Flags().IntVar(&f.partBatchSize, "part-batch", 4, "parts uploaded at once per file (0 = all)")
	cmd.Flags().IntVar(&f.retries, "retries", 3, "attempts per request")
	cmd.Flags().DurationVar(&f.retryDelay, "retry-delay", time.Second, "delay between attempts")
	cmd.Flags().IntVar(&f.bandwidth, "limit", 0, "bandwidth limit in bytes per second (0 = unlimited)")
	cmd.Flags().BoolVar(&f.abortOnError, "abort-on-error", false, "stop remaining files after the first failure")
	cmd.Flags().BoolVarP(&f.verbose, "verbose", "v", false, "verbose output")
	_ = cmd.MarkFlagRequired("route")

	return cmd
}

func runUpload(cmd *cobra.Command, f uploadFlags, paths []string) error {
	level := slog.LevelWarn
	if f.verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	opts := []client.Option{
		client.WithRetry(f.retries, f.retryDelay),
		client.WithBandwidthLimit(f.bandwidth),
		client.WithLogger(logger),
	}
	for _, h := range f.headers {
		name, value, ok := strings.Cut(h, ":")
		if !ok {
			return fmt.Errorf("invalid header %q, expected 'Name: value'", h)
		}
		opts = append(opts, client.WithHeader(strings.TrimSpace(name), strings.TrimSpace(value)))
	}

	var metadata any
	if f.metadata != "" {
		var raw json.RawMessage
		if err := json.Unmarshal([]byte(f.metadata), &raw); err != nil {
			return fmt.Errorf("invalid --metadata: %w", err)
		}
		metadata = raw
	}

	files := make([]client.File, 0, len(paths))
	defer func() {
		for _, file := range files {
			file.Close()
		}
	}()
	for _, p := range paths {
		file, err := client.OpenFile(p)
		if err != nil {
			return err
		}
		files = append(files, file)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	out := cmd.OutOrStdout()
	lastPercent := map[string]int{}
	res, err := client.New(f.endpoint, opts...).Upload(ctx, files, client.UploadOptions{
		Route:         f.route,
		Metadata:      metadata,
		BatchSize:     f.batchSize,
		PartBatchSize: f.partBatchSize,
		AbortOnError:  f.abortOnError,
		OnUploadBegin: func(files []client.Snapshot) {
			fmt.Fprintf(cmd.ErrOrStderr(), "Uploading %d file(s) to route %q\n", len(files), f.route)
		},
		OnProgress: func(s client.Snapshot) {
			percent := int(s.Progress * 100)
			if percent/10 == lastPercent[s.File.ID]/10 && s.Status == client.StatusUploading {
				return
			}
			lastPercent[s.File.ID] = percent
			fmt.Fprintf(cmd.ErrOrStderr(), "  %-40s %-9s %3d%%\n", s.File.Name, s.Status, percent)
		},
	})
	if err != nil {
		var ue *simpleupload.UploadError
		if errors.As(err, &ue) && ue.Message != "" {
			return fmt.Errorf("%s: %s", ue.Type, ue.Message)
		}
		return err
	}

	for _, up := range res.Files {
		fmt.Fprintf(out, "OK     %s -> %s\n", up.File.Name, up.ObjectInfo.Key)
	}
	for _, failed := range res.Failed {
		fmt.Fprintf(out, "FAILED %s: %v\n", failed.File.Name, failed.Err)
	}
	if len(res.Metadata) > 0 && string(res.Metadata) != "{}" {
		fmt.Fprintf(out, "Metadata: %s\n", res.Metadata)
	}

	if len(res.Failed) > 0 {
		return fmt.Errorf("%d of %d file(s) failed", len(res.Failed), len(files))
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

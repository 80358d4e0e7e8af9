package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/rezonia/faktura-processor/internal/aifallback"
	"github.com/rezonia/faktura-processor/internal/apiserver"
	"github.com/rezonia/faktura-processor/internal/calibration"
	"github.com/rezonia/faktura-processor/internal/patternstore"
	"github.com/rezonia/faktura-processor/internal/pipeline"
)

var (
	serverAddr   string
	serverDebug  bool
	readTimeout  time.Duration
	writeTimeout time.Duration
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	Long: `Start an HTTP API server for submitting and polling batch runs.

The API provides:
  POST   /api/v1/runs           - submit a batch run, returns a run id
  GET    /api/v1/runs/:id       - poll a run's status and, once done, its report
  GET    /api/v1/runs/:id/queue - read a finished run's validation queue
  GET    /health                - health check

Examples:
  faktura-processor serve
  faktura-processor serve --address :8080 --api-key <key>
  faktura-processor serve --debug`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serverAddr, "address", ":8080", "Server listen address")
	serveCmd.Flags().BoolVar(&serverDebug, "debug", false, "Enable debug mode")
	serveCmd.Flags().DurationVar(&readTimeout, "read-timeout", 30*time.Second, "HTTP read timeout")
	serveCmd.Flags().DurationVar(&writeTimeout, "write-timeout", 5*time.Minute, "HTTP write timeout")
}

func runServe(cmd *cobra.Command, args []string) error {
	var opts []pipeline.Option

	if resolved.AiAPIKey != "" {
		var clientOpts []aifallback.ClientOption
		if resolved.AiBaseURL != "" {
			clientOpts = append(clientOpts, aifallback.WithBaseURL(resolved.AiBaseURL))
		}
		if resolved.AiTextModel != "" {
			clientOpts = append(clientOpts, aifallback.WithTextModel(resolved.AiTextModel))
		}
		if resolved.AiVisionModel != "" {
			clientOpts = append(clientOpts, aifallback.WithVisionModel(resolved.AiVisionModel))
		}
		opts = append(opts, pipeline.WithAIFallback(aifallback.NewClient(resolved.AiAPIKey, clientOpts...)))
	}

	if resolved.PatternStorePath != "" {
		store, err := patternstore.Open(resolved.PatternStorePath)
		if err != nil {
			return fmt.Errorf("failed to open pattern store: %w", err)
		}
		defer store.Close()
		opts = append(opts, pipeline.WithPatternStore(store))
	}

	if calibrationTotal != "" {
		m, err := calibration.Load(calibrationTotal)
		if err != nil {
			return fmt.Errorf("failed to load total calibration model: %w", err)
		}
		opts = append(opts, pipeline.WithTotalCalibration(m))
	}
	if calibrationNumber != "" {
		m, err := calibration.Load(calibrationNumber)
		if err != nil {
			return fmt.Errorf("failed to load invoice-number calibration model: %w", err)
		}
		opts = append(opts, pipeline.WithInvoiceNumberCalibration(m))
	}

	if resolved.Workers > 0 {
		opts = append(opts, pipeline.WithWorkers(resolved.Workers))
	}

	p := pipeline.NewPipeline(opts...)

	config := &apiserver.Config{
		Address:      serverAddr,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		Debug:        serverDebug,
	}

	srv := apiserver.NewServer(config, p)

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		fmt.Println("\nShutting down server...")
		os.Exit(0)
	}()

	fmt.Printf("Starting server on %s\n", serverAddr)
	if resolved.AiAPIKey != "" {
		fmt.Println("AI fallback enabled")
	} else {
		fmt.Println("AI fallback disabled (no API key)")
	}

	return srv.Run()
}

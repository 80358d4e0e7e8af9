package invoicelib

import (
	"context"
	"runtime"

	"github.com/rezonia/faktura-processor/internal/aifallback"
	"github.com/rezonia/faktura-processor/internal/calibration"
	"github.com/rezonia/faktura-processor/internal/patternstore"
	"github.com/rezonia/faktura-processor/internal/pipeline"
)

// Processor wraps internal/pipeline.Pipeline behind the public API. Callers
// needing a concrete PDF renderer, OCR engine or embedded-text extractor pass
// them in as extra pipeline.Option values — this package only owns the
// collaborators it can build from PipelineOptions alone (AI client, pattern
// store, calibration models).
type Processor struct {
	pipeline *pipeline.Pipeline
	options  PipelineOptions
}

// NewProcessor builds a Processor from the given options, opening the
// pattern store and loading calibration models eagerly so construction
// failures surface immediately rather than mid-batch.
func NewProcessor(opts PipelineOptions, extra ...pipeline.Option) (*Processor, error) {
	var built []pipeline.Option

	if opts.AiAPIKey != "" {
		var clientOpts []aifallback.ClientOption
		if opts.AiBaseURL != "" {
			clientOpts = append(clientOpts, aifallback.WithBaseURL(opts.AiBaseURL))
		}
		if opts.AiTextModel != "" {
			clientOpts = append(clientOpts, aifallback.WithTextModel(opts.AiTextModel))
		}
		if opts.AiVisionModel != "" {
			clientOpts = append(clientOpts, aifallback.WithVisionModel(opts.AiVisionModel))
		}
		client := aifallback.NewClient(opts.AiAPIKey, clientOpts...)
		built = append(built, pipeline.WithAIFallback(client))
	}

	if opts.PatternStorePath != "" {
		store, err := patternstore.Open(opts.PatternStorePath)
		if err != nil {
			return nil, err
		}
		built = append(built, pipeline.WithPatternStore(store))
	}

	if opts.InvoiceNumberCalibrationPath != "" {
		m, err := calibration.Load(opts.InvoiceNumberCalibrationPath)
		if err != nil {
			return nil, err
		}
		built = append(built, pipeline.WithInvoiceNumberCalibration(m))
	}

	if opts.TotalCalibrationPath != "" {
		m, err := calibration.Load(opts.TotalCalibrationPath)
		if err != nil {
			return nil, err
		}
		built = append(built, pipeline.WithTotalCalibration(m))
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	built = append(built, pipeline.WithWorkers(workers))

	built = append(built, extra...)

	return &Processor{
		pipeline: pipeline.NewPipeline(built...),
		options:  opts,
	}, nil
}

// NewDefaultProcessor builds a Processor with DefaultPipelineOptions and the
// given infrastructure collaborators (renderer, OCR engine, text extractor).
func NewDefaultProcessor(extra ...pipeline.Option) (*Processor, error) {
	return NewProcessor(DefaultPipelineOptions(), extra...)
}

// Process runs the pipeline over a single file.
func (p *Processor) Process(ctx context.Context, path string) FileResult {
	return p.pipeline.ProcessFile(ctx, path)
}

// ProcessBatch runs the pipeline over every path with a bounded worker pool,
// returning the combined run report.
func (p *Processor) ProcessBatch(ctx context.Context, paths []string) *RunReport {
	return p.pipeline.ProcessBatch(ctx, paths)
}

// DetectFormat sniffs a file's format from its leading bytes.
func DetectFormat(data []byte) pipeline.Format {
	return pipeline.DetectFormat(data)
}

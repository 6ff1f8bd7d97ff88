package extraction

import (
	"context"
	"fmt"

	"github.com/feichai0017/resume-extractor/config"
	"github.com/feichai0017/resume-extractor/internal/agent"
	"github.com/feichai0017/resume-extractor/pkg/logger"
)

// FromConfig wires the strategies and the optional parser for cfg.
func FromConfig(ctx context.Context, cfg *config.Config, log logger.Logger, opts ...agent.FactoryOption) (*Orchestrator, error) {
	factory := agent.NewProcessorFactory(cfg, log, opts...)

	strategies, err := factory.Build(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to build extraction strategies: %w", err)
	}

	var orchOpts []Option
	parser, err := factory.Parser(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to build resume parser: %w", err)
	}
	if parser != nil {
		orchOpts = append(orchOpts, WithParser(parser))
	}

	return New(Config{
		ExecutionContext: factory.ExecutionContext(),
		MaxFileSize:      cfg.Extraction.MaxFileSize,
	}, strategies.Native, strategies.Remote, strategies.Local, log, orchOpts...), nil
}

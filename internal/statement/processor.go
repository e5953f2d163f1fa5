package statement

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// Processor periodically retries confirmed statement lines whose
// residual is still unexplained. A line that found no matching payment
// group on confirmation gets another pass once more payments or ledger
// lines have accumulated.
type Processor struct {
	service      *Service
	processDelay time.Duration
}

func NewProcessor(service *Service) *Processor {
	return &Processor{
		service:      service,
		processDelay: 5 * time.Minute,
	}
}

// Start begins the retry loop.
func (p *Processor) Start(ctx context.Context) {
	logger := log.With().Str("component", "statement_processor").Logger()
	logger.Info().Msg("starting statement retry processor")

	ticker := time.NewTicker(p.processDelay)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("shutting down statement retry processor")
			return
		case <-ticker.C:
			if err := p.processUnexplainedLines(); err != nil {
				logger.Error().Err(err).Msg("failed to process unexplained lines")
			}
		}
	}
}

func (p *Processor) processUnexplainedLines() error {
	logger := log.With().Str("component", "statement_processor").Logger()

	lines, err := p.service.DB().UnexplainedConfirmedLines()
	if err != nil {
		return err
	}
	logger.Info().Int("unexplained_count", len(lines)).Msg("retrying unexplained statement lines")

	for i := range lines {
		result, err := p.service.ReconcileLine(lines[i].LineID)
		if err != nil {
			logger.Error().
				Err(err).
				Str("line_id", lines[i].LineID).
				Msg("retry pass failed")
			continue
		}
		if result.Matched {
			logger.Info().
				Str("line_id", lines[i].LineID).
				Str("group_id", result.GroupID).
				Msg("retry pass matched a payment group")
		}
	}
	return nil
}

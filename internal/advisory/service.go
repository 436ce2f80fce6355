package advisory

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/skybrief/turbcast/internal/forecast"
	"github.com/skybrief/turbcast/pkg/logger"
)

const systemPrompt = `You are a flight briefing assistant. You receive a turbulence ` +
	`forecast for one flight and write a short plain-language advisory for a nervous ` +
	`passenger. Two or three sentences. Mention when in the flight bumps are expected ` +
	`and how strong, in everyday language. Do not invent details that are not in the ` +
	`forecast. Never give safety instructions beyond keeping the seatbelt fastened.`

// Service turns a forecast into a plain-language advisory via a chat model
type Service struct {
	provider ChatProvider
	config   ChatConfig
	logger   *logger.Logger
}

// NewService creates the advisory service
func NewService(provider ChatProvider, config ChatConfig, log *logger.Logger) *Service {
	return &Service{
		provider: provider,
		config:   config,
		logger:   log.Named("advisory"),
	}
}

// Advise produces a passenger-friendly summary of the forecast
func (s *Service) Advise(ctx context.Context, f *forecast.Forecast) (string, error) {
	start := time.Now()

	messages := []ChatMessage{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: describe(f)},
	}

	text, err := s.provider.ChatCompletion(ctx, messages, s.config)
	if err != nil {
		return "", fmt.Errorf("advisory generation failed: %w", err)
	}

	s.logger.Info("Generated advisory",
		logger.String("flight", f.FlightNumber),
		logger.String("elapsed", time.Since(start).String()))

	return strings.TrimSpace(text), nil
}

// describe renders the forecast as a compact text block for the model
func describe(f *forecast.Forecast) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Flight %s", f.FlightNumber)
	if f.Route != nil && f.Route.From.IATA != "" {
		fmt.Fprintf(&b, " from %s to %s", f.Route.From.IATA, f.Route.To.IATA)
	}
	fmt.Fprintf(&b, ".\nOverall: %s turbulence", f.OverallSeverity)
	if f.OverallProbability > 0 {
		fmt.Fprintf(&b, " (probability %.0f%%)", f.OverallProbability*100)
	}
	fmt.Fprintf(&b, ".\nEstimated duration: %d minutes.\n",
		int64(time.Duration(f.EstimatedDuration)/time.Minute))
	if f.IsPartial {
		b.WriteString("Note: preliminary forecast, no pilot reports correlated yet.\n")
	} else {
		fmt.Fprintf(&b, "Based on %d pilot reports.\n", f.ObservationCount)
	}

	b.WriteString("Segments:\n")
	for _, seg := range f.Segments {
		fmt.Fprintf(&b, "- %s (starts at minute %d, %.0f km, %d ft): %s",
			seg.Label,
			int64(time.Duration(seg.StartOffset)/time.Minute),
			seg.DistanceKm,
			seg.AltitudeFt,
			seg.Severity)
		if seg.Probability > 0 {
			fmt.Fprintf(&b, " (probability %.0f%%, %d reports)", seg.Probability*100, seg.ReportCount)
		}
		b.WriteString("\n")
	}

	return b.String()
}

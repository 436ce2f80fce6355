package websocket

import (
	"github.com/skybrief/turbcast/internal/forecast"
)

// ForecastNotifier bridges the forecast service to the hub: every finished
// full forecast becomes a forecast_complete event.
type ForecastNotifier struct {
	server *Server
}

// NewForecastNotifier creates a notifier over the given hub
func NewForecastNotifier(server *Server) *ForecastNotifier {
	return &ForecastNotifier{server: server}
}

// ForecastComplete implements forecast.Broadcaster
func (n *ForecastNotifier) ForecastComplete(f *forecast.Forecast) {
	n.server.Broadcast(&Message{
		Type: MessageTypeForecastComplete,
		Data: map[string]any{
			"flight_number":       f.FlightNumber,
			"overall_severity":    f.OverallSeverity.String(),
			"overall_probability": f.OverallProbability,
			"generated_at":        f.GeneratedAt,
			"forecast":            f,
		},
	})
}

package stream

import (
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/lexiqai/vad-gateway/internal/config"
	"github.com/lexiqai/vad-gateway/internal/observability"
)

var upgrader = websocket.Upgrader{
	// Origin checks belong to the fronting proxy
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
}

// HandleAudioWS returns the handler for /streams/audio. Each connection gets
// its own session; the handler returns once the session has drained.
// The caller's X-Correlation-ID, or a generated one, is echoed on the upgrade.
func HandleAudioWS(cfg *config.Config, factory RecognizerFactory) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		correlationID := r.Header.Get(observability.CorrelationIDHeader)
		if correlationID == "" {
			correlationID = observability.NewCorrelationID()
		}
		logger := observability.WithCorrelationID(correlationID)

		header := http.Header{}
		header.Set(observability.CorrelationIDHeader, correlationID)

		conn, err := upgrader.Upgrade(w, r, header)
		if err != nil {
			// Upgrade has already written the error response
			logger.Error().Err(err).Msg("Failed to upgrade connection to WebSocket")
			return
		}
		defer conn.Close()

		session, err := NewSession(conn, cfg, factory, correlationID)
		if err != nil {
			logger.Error().Err(err).Msg("Failed to create stream session")
			conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "session setup failed"))
			return
		}

		session.logger.Info().Msg("New audio stream connection established")
		session.Run(r.Context())

		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "stream ended"))
	}
}

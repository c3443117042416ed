package ws

import (
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/widyatma/wicara/domain/repositories"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Maximum message size allowed from peer.
	maxMessageSize = 64 * 1024
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// TODO: Implement proper origin checking
		return true
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
}

// StreamRequest is the first (and only) message the client sends: the text
// to synthesize and an optional voice.
type StreamRequest struct {
	Text    string `json:"text"`
	VoiceID string `json:"voice_id,omitempty"`
}

// StreamControl frames the binary audio stream with text messages
type StreamControl struct {
	Event   string `json:"event"` // "start", "end", "error"
	Message string `json:"message,omitempty"`
}

// StreamTTS upgrades the connection, reads one StreamRequest, and streams
// the synthesized audio back as binary frames, terminated by an "end"
// control message.
func StreamTTS(c echo.Context, tts repositories.TextToSpeech, logger *zap.Logger) error {
	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		logger.Error("Failed to upgrade websocket connection", zap.Error(err))
		return err
	}
	defer conn.Close()

	conn.SetReadLimit(maxMessageSize)

	var req StreamRequest
	if err := conn.ReadJSON(&req); err != nil {
		writeControl(conn, StreamControl{Event: "error", Message: "invalid request"})
		return nil
	}
	if strings.TrimSpace(req.Text) == "" {
		writeControl(conn, StreamControl{Event: "error", Message: "text is required"})
		return nil
	}

	ctx := c.Request().Context()
	chunks, err := tts.SynthesizeStream(ctx, req.Text, req.VoiceID)
	if err != nil {
		logger.Error("Failed to start synthesis stream", zap.Error(err))
		writeControl(conn, StreamControl{Event: "error", Message: "synthesis failed"})
		return nil
	}

	writeControl(conn, StreamControl{Event: "start"})

	var sent int
	for chunk := range chunks {
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteMessage(websocket.BinaryMessage, chunk); err != nil {
			logger.Warn("Client dropped during audio stream",
				zap.Int("chunksSent", sent),
				zap.Error(err))
			// Drain so the producer goroutine can exit.
			for range chunks {
			}
			return nil
		}
		sent++
	}

	writeControl(conn, StreamControl{Event: "end"})
	logger.Info("Audio stream completed",
		zap.Int("chunks", sent),
		zap.Int("textLength", len(req.Text)))
	return nil
}

func writeControl(conn *websocket.Conn, control StreamControl) {
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	conn.WriteJSON(control)
}

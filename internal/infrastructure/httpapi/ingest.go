package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"trafficlens/internal/domain"
)

// ingestHandler receives fully-formed transaction records from the external
// capture engine, either one-shot over POST or as a websocket stream.
// Records arrive in capture order; the store tolerates out-of-order
// timestamps, so no reordering happens here.
type ingestHandler struct {
	d        *Deps
	upgrader websocket.Upgrader
}

func newIngestHandler(d *Deps) *ingestHandler {
	return &ingestHandler{
		d:        d,
		upgrader: websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
	}
}

func (h *ingestHandler) handleAppend(w http.ResponseWriter, r *http.Request) {
	var tx domain.Transaction
	if err := json.NewDecoder(r.Body).Decode(&tx); err != nil {
		h.d.Metrics.IngestErrorsTotal.WithLabelValues("decode").Inc()
		writeError(w, http.StatusBadRequest, "DECODE_FAILED", err.Error(), nil)
		return
	}
	id, err := h.d.Svc.Append(r.Context(), tx)
	if err != nil {
		h.d.Metrics.IngestErrorsTotal.WithLabelValues("validation").Inc()
		writeDomainError(w, err)
		return
	}
	h.d.Metrics.TransactionsTotal.Inc()
	writeJSON(w, http.StatusCreated, map[string]any{"id": id})
}

// streamAck is sent back after every accepted record so the capture engine
// can detect a wedged ingest path.
type streamAck struct {
	ID    int64  `json:"id,omitempty"`
	Error string `json:"error,omitempty"`
}

func (h *ingestHandler) handleStream(w http.ResponseWriter, r *http.Request) {
	c, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer c.Close()

	logger := h.d.Logger.With().Str("remote", r.RemoteAddr).Logger()
	logger.Info().Msg("capture stream connected")

	for {
		_, data, err := c.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Debug().Err(err).Msg("capture stream closed")
			}
			return
		}
		var tx domain.Transaction
		if err := json.Unmarshal(data, &tx); err != nil {
			h.d.Metrics.IngestErrorsTotal.WithLabelValues("decode").Inc()
			h.writeAck(c, streamAck{Error: "decode: " + err.Error()})
			continue
		}
		id, err := h.d.Svc.Append(r.Context(), tx)
		if err != nil {
			var ve *domain.ValidationError
			if errors.As(err, &ve) {
				h.d.Metrics.IngestErrorsTotal.WithLabelValues("validation").Inc()
				h.writeAck(c, streamAck{Error: ve.Error()})
				continue
			}
			logger.Error().Err(err).Msg("append failed, dropping stream")
			h.writeAck(c, streamAck{Error: err.Error()})
			return
		}
		h.d.Metrics.TransactionsTotal.Inc()
		h.writeAck(c, streamAck{ID: id})
	}
}

func (h *ingestHandler) writeAck(c *websocket.Conn, ack streamAck) {
	_ = c.SetWriteDeadline(time.Now().Add(2 * time.Second))
	_ = c.WriteJSON(ack)
}

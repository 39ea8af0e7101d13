package http

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/nats-io/nats.go"
	"github.com/paulmach/orb"
)

const waterBodySubject = "aquaripple.waterbody.>"

// wsMessage is sent from client to narrow or clear the area it watches.
type wsMessage struct {
	Action string    `json:"action"` // "watch" | "clear"
	BBox   []float64 `json:"bbox"`   // [minLon, minLat, maxLon, maxLat]
}

// cachedPoint is the part of a water body event the relay filters on.
type cachedPoint struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// bboxFilter reports whether an event payload falls inside the watched area.
// A nil bound passes everything; undecodable payloads never pass.
func bboxFilter(bound *orb.Bound, data []byte) bool {
	if bound == nil {
		return true
	}
	var p cachedPoint
	if err := json.Unmarshal(data, &p); err != nil {
		return false
	}
	return bound.Contains(orb.Point{p.Longitude, p.Latitude})
}

// parseBBox validates a [minLon, minLat, maxLon, maxLat] box.
func parseBBox(b []float64) (*orb.Bound, bool) {
	if len(b) != 4 {
		return nil, false
	}
	if b[0] > b[2] || b[1] > b[3] {
		return nil, false
	}
	if b[0] < -180 || b[2] > 180 || b[1] < -90 || b[3] > 90 {
		return nil, false
	}
	bound := orb.Bound{Min: orb.Point{b[0], b[1]}, Max: orb.Point{b[2], b[3]}}
	return &bound, true
}

// WebSocketHandler relays newly cached water bodies to connected clients.
// Clients may send {"action":"watch","bbox":[minLon,minLat,maxLon,maxLat]}
// to receive only events inside the box, and {"action":"clear"} to go back
// to receiving everything.
func WebSocketHandler(nc *nats.Conn) func(*websocket.Conn) {
	return func(c *websocket.Conn) {
		defer c.Close()

		log := slog.With("remote_addr", c.RemoteAddr().String())
		if nc == nil {
			_ = c.WriteMessage(websocket.TextMessage, []byte(`{"error":"event stream not configured"}`))
			return
		}
		log.Info("ws client connected")

		var mu sync.Mutex
		var bound *orb.Bound

		writeJSON := func(v interface{}) error {
			data, err := json.Marshal(v)
			if err != nil {
				return err
			}
			mu.Lock()
			defer mu.Unlock()
			return c.WriteMessage(websocket.TextMessage, data)
		}

		sub, err := nc.Subscribe(waterBodySubject, func(msg *nats.Msg) {
			mu.Lock()
			b := bound
			mu.Unlock()
			if !bboxFilter(b, msg.Data) {
				return
			}
			_ = writeJSON(json.RawMessage(msg.Data))
		})
		if err != nil {
			log.Error("ws subscribe failed", "error", err)
			return
		}
		defer func() { _ = sub.Unsubscribe() }()

		// Keep-alive ping
		done := make(chan struct{})
		defer close(done)
		go func() {
			ticker := time.NewTicker(30 * time.Second)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					mu.Lock()
					err := c.WriteMessage(websocket.PingMessage, nil)
					mu.Unlock()
					if err != nil {
						return
					}
				case <-done:
					return
				}
			}
		}()

		for {
			_, raw, err := c.ReadMessage()
			if err != nil {
				break
			}

			var m wsMessage
			if err := json.Unmarshal(raw, &m); err != nil {
				_ = writeJSON(map[string]string{"error": "invalid JSON"})
				continue
			}

			switch m.Action {
			case "watch":
				b, ok := parseBBox(m.BBox)
				if !ok {
					_ = writeJSON(map[string]string{"error": "bbox must be [minLon, minLat, maxLon, maxLat]"})
					continue
				}
				mu.Lock()
				bound = b
				mu.Unlock()
				_ = writeJSON(map[string]interface{}{"status": "watching", "bbox": m.BBox})
			case "clear":
				mu.Lock()
				bound = nil
				mu.Unlock()
				_ = writeJSON(map[string]string{"status": "watching all"})
			default:
				_ = writeJSON(map[string]string{"error": "unknown action: " + m.Action})
			}
		}

		log.Info("ws client disconnected")
	}
}

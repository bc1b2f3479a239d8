// Narration Viewer - live view of what the narrator is saying
// Consumes the session and utterance topics and pushes them to the browser over WebSocket
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/segmentio/kafka-go"
)

// NarrationEvent covers both session and utterance events; fields that do
// not apply to an event type are left empty.
type NarrationEvent struct {
	EventType  string  `json:"eventType"`
	EventID    string  `json:"eventId"`
	SessionID  string  `json:"sessionId"`
	Feature    string  `json:"feature"`
	State      string  `json:"state,omitempty"`
	Reason     string  `json:"reason,omitempty"`
	Text       string  `json:"text,omitempty"`
	Language   string  `json:"language"`
	Rate       float64 `json:"rate,omitempty"`
	DurationMs int64   `json:"durationMs,omitempty"`
	Timestamp  int64   `json:"timestamp"`
}

// Hub fans events out to connected browsers
type Hub struct {
	mu      sync.Mutex
	clients map[*websocket.Conn]struct{}
}

func newHub() *Hub {
	return &Hub{clients: make(map[*websocket.Conn]struct{})}
}

func (h *Hub) add(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[conn] = struct{}{}
	log.Printf("Client connected. Total: %d", len(h.clients))
}

func (h *Hub) remove(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[conn]; ok {
		delete(h.clients, conn)
		conn.Close()
		log.Printf("Client disconnected. Total: %d", len(h.clients))
	}
}

func (h *Hub) broadcast(event NarrationEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.clients {
		_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
		if err := conn.WriteJSON(event); err != nil {
			log.Printf("Write error: %v", err)
			conn.Close()
			delete(h.clients, conn)
		}
	}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // local dev only
	},
}

func wsHandler(hub *Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("WebSocket upgrade error: %v", err)
			return
		}
		hub.add(conn)

		// Reads only detect the browser going away
		go func() {
			defer hub.remove(conn)
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()
	}
}

func consumeKafka(ctx context.Context, hub *Hub, brokers []string, topic string, since time.Duration) {
	// Partition reader without a consumer group so every viewer sees everything
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:   brokers,
		Topic:     topic,
		Partition: 0,
		MinBytes:  1,
		MaxBytes:  10e6,
	})
	defer reader.Close()

	if err := reader.SetOffsetAt(ctx, time.Now().Add(-since)); err != nil {
		log.Printf("Seek on %s failed, reading from the start: %v", topic, err)
	}
	log.Printf("Consuming %s partition 0 (last %s)", topic, since)

	for {
		msg, err := reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Printf("Kafka read error on %s: %v", topic, err)
			time.Sleep(time.Second)
			continue
		}

		var event NarrationEvent
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			log.Printf("JSON unmarshal error: %v", err)
			continue
		}
		log.Printf("%s session=%s feature=%s %s", event.EventType, event.SessionID, event.Feature, summary(event))
		hub.broadcast(event)
	}
}

func summary(e NarrationEvent) string {
	if e.Text != "" {
		if len(e.Text) > 40 {
			return e.Text[:40] + "..."
		}
		return e.Text
	}
	return e.State
}

const page = `<!doctype html>
<html><head><meta charset="utf-8"><title>Narration Viewer</title>
<style>body{font-family:sans-serif;margin:2em}li{margin:.3em 0}.session{color:#666}</style>
</head><body><h1>Narration</h1><ul id="log"></ul>
<script>
const log = document.getElementById("log");
const ws = new WebSocket("ws://" + location.host + "/ws");
ws.onmessage = (m) => {
  const e = JSON.parse(m.data);
  const li = document.createElement("li");
  if (e.text) {
    li.textContent = "[" + e.feature + "] " + e.text;
  } else {
    li.className = "session";
    li.textContent = e.feature + " " + e.state + (e.reason ? " (" + e.reason + ")" : "");
  }
  log.prepend(li);
};
</script></body></html>`

func main() {
	port := flag.String("port", "8081", "HTTP server port")
	brokers := flag.String("brokers", "localhost:9092", "Kafka brokers (comma-separated)")
	topicSessions := flag.String("topic-sessions", "narration.session", "Session lifecycle topic")
	topicUtterances := flag.String("topic-utterances", "narration.utterance", "Utterance topic")
	since := flag.Duration("since", time.Hour, "Replay events newer than this")
	flag.Parse()

	hub := newHub()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	brokerList := strings.Split(*brokers, ",")
	go consumeKafka(ctx, hub, brokerList, *topicSessions, *since)
	go consumeKafka(ctx, hub, brokerList, *topicUtterances, *since)

	http.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(page))
	})
	http.HandleFunc("/ws", wsHandler(hub))

	log.Printf("Narration Viewer starting on http://localhost:%s", *port)
	log.Printf("   Kafka brokers: %s", *brokers)
	log.Printf("   Topics: %s, %s", *topicSessions, *topicUtterances)

	if err := http.ListenAndServe(":"+*port, nil); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}

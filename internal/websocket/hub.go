package websocket

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gofiber/contrib/websocket"

	"github.com/realityworks/broadcast-app/internal/model"
	"github.com/realityworks/broadcast-app/pkg/logger"
)

const (
	sendBuffer   = 256
	pingInterval = 30 * time.Second
)

// Client is one websocket subscriber of a job
type Client struct {
	JobID string
	Conn  *websocket.Conn
	Send  chan []byte
}

// BroadcastMessage is a serialized message for the subscribers of a job
type BroadcastMessage struct {
	JobID   string
	Message []byte
}

// directMessage is addressed to a single client
type directMessage struct {
	client  *Client
	message []byte
}

// Hub fans upload snapshots out to the websocket clients watching a job.
// The client map is owned by the Run goroutine.
type Hub struct {
	clients    map[string]map[*Client]bool
	register   chan *Client
	unregister chan *Client
	broadcast  chan *BroadcastMessage
	direct     chan *directMessage
	done       chan struct{}
	log        *logger.Logger
}

func NewHub(log *logger.Logger) *Hub {
	if log == nil {
		log = logger.Discard()
	}
	return &Hub{
		clients:    make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *BroadcastMessage, sendBuffer),
		direct:     make(chan *directMessage, sendBuffer),
		done:       make(chan struct{}),
		log:        log.WithField("component", "ws"),
	}
}

// Run starts the hub's main loop and returns when ctx is done
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for _, clients := range h.clients {
				for client := range clients {
					close(client.Send)
				}
			}
			h.clients = make(map[string]map[*Client]bool)
			return

		case client := <-h.register:
			if h.clients[client.JobID] == nil {
				h.clients[client.JobID] = make(map[*Client]bool)
			}
			h.clients[client.JobID][client] = true
			h.log.Debug("client registered", "job_id", client.JobID)

		case client := <-h.unregister:
			h.remove(client)
			h.log.Debug("client unregistered", "job_id", client.JobID)

		case msg := <-h.broadcast:
			for client := range h.clients[msg.JobID] {
				select {
				case client.Send <- msg.Message:
				default:
					// slow consumer
					h.remove(client)
				}
			}

		case msg := <-h.direct:
			// the client may have been removed since the message was queued
			if !h.clients[msg.client.JobID][msg.client] {
				continue
			}
			select {
			case msg.client.Send <- msg.message:
			default:
			}
		}
	}
}

func (h *Hub) remove(client *Client) {
	clients, ok := h.clients[client.JobID]
	if !ok || !clients[client] {
		return
	}
	delete(clients, client)
	close(client.Send)
	if len(clients) == 0 {
		delete(h.clients, client.JobID)
	}
}

func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.done:
		close(client.Send)
	}
}

func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// BroadcastProgress sends a snapshot of a running upload
func (h *Hub) BroadcastProgress(jobID string, status model.JobStatus, snap model.UploadProgress) {
	h.send(jobID, model.WSProgressMessage{
		Type:     model.WSMessageTypeProgress,
		JobID:    jobID,
		Status:   status,
		Percent:  snap.Percent(),
		Text:     snap.ProgressText(),
		Progress: snap,
	})
}

// BroadcastComplete sends the terminal snapshot of a successful upload
func (h *Hub) BroadcastComplete(jobID string, snap model.UploadProgress) {
	h.send(jobID, model.WSCompleteMessage{
		Type:     model.WSMessageTypeComplete,
		JobID:    jobID,
		Progress: snap,
	})
}

// BroadcastError sends an error message, with the last snapshot if any
func (h *Hub) BroadcastError(jobID, code, message string, snap *model.UploadProgress) {
	msg := model.WSErrorMessage{
		Type:  model.WSMessageTypeError,
		JobID: jobID,
		Error: model.WSError{
			Code:    code,
			Message: message,
		},
		Progress: snap,
	}
	if snap != nil {
		msg.Error.Stage = string(snap.FailedStage)
	}
	h.send(jobID, msg)
}

func (h *Hub) send(jobID string, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		h.log.Error("failed to marshal message", "job_id", jobID, "error", err)
		return
	}
	select {
	case h.broadcast <- &BroadcastMessage{JobID: jobID, Message: data}:
	case <-h.done:
	}
}

// reply sends v to one client only
func (h *Hub) reply(client *Client, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		h.log.Error("failed to marshal message", "job_id", client.JobID, "error", err)
		return
	}
	select {
	case h.direct <- &directMessage{client: client, message: data}:
	case <-h.done:
	}
}

// HandleConnection serves one websocket until the peer goes away
func (h *Hub) HandleConnection(c *websocket.Conn, jobID string) {
	client := &Client{
		JobID: jobID,
		Conn:  c,
		Send:  make(chan []byte, sendBuffer),
	}

	h.Register(client)
	defer h.Unregister(client)

	go func() {
		ticker := time.NewTicker(pingInterval)
		defer ticker.Stop()

		for {
			select {
			case message, ok := <-client.Send:
				if !ok {
					_ = c.WriteMessage(websocket.CloseMessage, []byte{})
					return
				}
				if err := c.WriteMessage(websocket.TextMessage, message); err != nil {
					return
				}

			case <-ticker.C:
				if err := c.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}
	}()

	for {
		_, message, err := c.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.log.Warn("websocket error", "job_id", jobID, "error", err)
			}
			break
		}

		var msg model.WSMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			continue
		}

		if msg.Type == model.WSMessageTypePing {
			h.reply(client, model.WSMessage{Type: model.WSMessageTypePong})
		}
	}
}

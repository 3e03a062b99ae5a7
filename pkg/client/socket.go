package client

import (
	"encoding/json"
	"net/http"
	"net/url"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/mahaj/dupahar-dm/pkg/model"
)

// Socket is the websocket leg of the client: it decodes server frames into
// events and fans them out to subscribers. One read loop per connection;
// connection ordering is preserved per subscriber.
type Socket struct {
	conn *websocket.Conn
	log  zerolog.Logger

	mu       sync.Mutex
	handlers map[int]func(model.Event)
	nextID   int

	done chan struct{}
}

// Dial connects to the gateway at addr (host:port) authenticating with the
// bearer token, and starts the read loop.
func Dial(addr, token string, log zerolog.Logger) (*Socket, error) {
	u := url.URL{Scheme: "ws", Host: addr, Path: "/ws"}

	header := http.Header{}
	header.Add("Authorization", "Bearer "+token)

	conn, _, err := websocket.DefaultDialer.Dial(u.String(), header)
	if err != nil {
		return nil, err
	}

	s := &Socket{
		conn:     conn,
		log:      log,
		handlers: make(map[int]func(model.Event)),
		done:     make(chan struct{}),
	}
	go s.readLoop()
	return s, nil
}

// Subscribe registers a handler for every incoming event and returns its
// release. Releasing twice is safe.
func (s *Socket) Subscribe(fn func(model.Event)) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.handlers[id] = fn
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.handlers, id)
			s.mu.Unlock()
		})
	}
}

// Typing tells the server the user is typing to peer.
func (s *Socket) Typing(peer string) error {
	frame, err := json.Marshal(model.TypingData{To: peer})
	if err != nil {
		return err
	}
	return s.conn.WriteMessage(websocket.TextMessage, frame)
}

// Done is closed when the read loop exits (connection lost or closed).
func (s *Socket) Done() <-chan struct{} { return s.done }

// Close tears the connection down.
func (s *Socket) Close() error {
	_ = s.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	return s.conn.Close()
}

func (s *Socket) readLoop() {
	defer close(s.done)
	for {
		_, payload, err := s.conn.ReadMessage()
		if err != nil {
			s.log.Debug().Err(err).Msg("websocket read loop ended")
			return
		}

		var ev model.Event
		if err := json.Unmarshal(payload, &ev); err != nil {
			s.log.Warn().Err(err).Msg("undecodable server frame")
			continue
		}

		s.mu.Lock()
		fns := make([]func(model.Event), 0, len(s.handlers))
		for _, fn := range s.handlers {
			fns = append(fns, fn)
		}
		s.mu.Unlock()

		for _, fn := range fns {
			fn(ev)
		}
	}
}

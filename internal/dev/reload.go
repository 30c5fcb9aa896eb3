package dev

import (
	"bytes"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
)

// ReloadPath is the WebSocket endpoint the injected client script dials.
const ReloadPath = "/_slipway/reload"

// MessageType identifies a reload message.
type MessageType string

const (
	MessageReload MessageType = "reload"
	MessageCSS    MessageType = "css"
	MessageError  MessageType = "error"
	MessageClear  MessageType = "clear"
)

// Message is sent to connected browsers.
type Message struct {
	Type  MessageType `json:"type"`
	Error string      `json:"error,omitempty"`
	File  string      `json:"file,omitempty"`
}

// ReloadServer manages the WebSocket connections used for hot reload.
type ReloadServer struct {
	mu       sync.RWMutex
	clients  map[*websocket.Conn]bool
	upgrader websocket.Upgrader
}

func NewReloadServer() *ReloadServer {
	return &ReloadServer{
		clients: make(map[*websocket.Conn]bool),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Local development only; any origin may connect.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// ServeHTTP upgrades the connection and holds it until the browser leaves.
func (s *ReloadServer) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	conn, err := s.upgrader.Upgrade(w, req, nil)
	if err != nil {
		return
	}

	s.mu.Lock()
	s.clients[conn] = true
	s.mu.Unlock()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	s.mu.Lock()
	delete(s.clients, conn)
	s.mu.Unlock()
	conn.Close()
}

// NotifyReload asks all browsers to reload the page.
func (s *ReloadServer) NotifyReload() {
	s.broadcast(Message{Type: MessageReload})
}

// NotifyCSS asks all browsers to refresh stylesheets in place.
func (s *ReloadServer) NotifyCSS(file string) {
	s.broadcast(Message{Type: MessageCSS, File: file})
}

// NotifyError shows the build error overlay in all browsers.
func (s *ReloadServer) NotifyError(errMsg string) {
	s.broadcast(Message{Type: MessageError, Error: errMsg})
}

// ClearError removes the error overlay in all browsers.
func (s *ReloadServer) ClearError() {
	s.broadcast(Message{Type: MessageClear})
}

func (s *ReloadServer) broadcast(msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}

	s.mu.RLock()
	clients := make([]*websocket.Conn, 0, len(s.clients))
	for c := range s.clients {
		clients = append(clients, c)
	}
	s.mu.RUnlock()

	for _, c := range clients {
		if err := c.WriteMessage(websocket.TextMessage, data); err != nil {
			s.mu.Lock()
			delete(s.clients, c)
			s.mu.Unlock()
			c.Close()
		}
	}
}

// ClientCount returns the number of connected browsers.
func (s *ReloadServer) ClientCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

// Close drops all connections.
func (s *ReloadServer) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.clients {
		c.Close()
		delete(s.clients, c)
	}
}

// InjectReloadScript inserts the reload client into an HTML body, before
// </body> when present, appended otherwise.
func InjectReloadScript(body []byte) []byte {
	script := []byte(ClientScript)
	if i := bytes.LastIndex(body, []byte("</body>")); i != -1 {
		out := make([]byte, 0, len(body)+len(script))
		out = append(out, body[:i]...)
		out = append(out, script...)
		out = append(out, body[i:]...)
		return out
	}
	return append(append([]byte{}, body...), script...)
}

// ClientScript is the hot reload client injected into every HTML page
// served in development. Messages follow the Message type above.
const ClientScript = `
<script>
(() => {
    const endpoint = (location.protocol === 'https:' ? 'wss://' : 'ws://')
        + location.host + '/_slipway/reload';
    const overlayID = 'slipway-error-overlay';
    let delay = 1000;

    const dropOverlay = () => {
        const el = document.getElementById(overlayID);
        if (el) el.remove();
    };

    const raiseOverlay = (text) => {
        dropOverlay();
        const overlay = document.createElement('div');
        overlay.id = overlayID;
        Object.assign(overlay.style, {
            position: 'fixed', inset: '0', zIndex: '999999',
            background: 'rgba(0,0,0,0.9)', color: '#fff',
            font: '14px monospace', padding: '20px', overflow: 'auto',
        });

        const heading = document.createElement('h2');
        heading.textContent = 'Build Error';
        heading.style.color = '#ff5555';

        const trace = document.createElement('pre');
        trace.textContent = text;
        Object.assign(trace.style, {
            whiteSpace: 'pre-wrap', background: '#1a1a1a',
            padding: '20px', borderRadius: '8px', border: '1px solid #333',
        });

        const hint = document.createElement('p');
        hint.textContent = 'Fix the error and save to rebuild.';
        hint.style.color = '#888';

        const box = document.createElement('div');
        box.style.maxWidth = '800px';
        box.style.margin = '0 auto';
        box.append(heading, trace, hint);
        overlay.append(box);
        document.body.append(overlay);
    };

    const refreshStyles = () => {
        for (const link of document.querySelectorAll('link[rel="stylesheet"]')) {
            const url = new URL(link.href);
            url.searchParams.set('_reload', Date.now());
            link.href = url.toString();
        }
    };

    const handlers = {
        reload: () => location.reload(),
        css: refreshStyles,
        error: (msg) => {
            console.error('[slipway] build error:', msg.error);
            raiseOverlay(msg.error);
        },
        clear: dropOverlay,
    };

    const connect = () => {
        const ws = new WebSocket(endpoint);

        ws.addEventListener('open', () => {
            console.log('[slipway] reload connected');
            delay = 1000;
            dropOverlay();
        });

        ws.addEventListener('message', (e) => {
            let msg;
            try { msg = JSON.parse(e.data); } catch { return; }
            const handle = handlers[msg.type];
            if (handle) handle(msg);
        });

        ws.addEventListener('close', () => {
            setTimeout(connect, delay);
            delay = Math.min(delay * 2, 30000);
        });

        ws.addEventListener('error', () => ws.close());
    };

    if (document.readyState === 'loading') {
        document.addEventListener('DOMContentLoaded', connect);
    } else {
        connect();
    }
})();
</script>
`

package media

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
	"sync"

	"github.com/lectern-cli/lectern/log"
)

// observed are the properties mpv pushes to the listener.
var observed = []string{
	"time-pos",
	"pause",
	"duration",
	"eof-reached",
	"seeking",
	"demuxer-cache-time",
	"cache-speed",
}

type rawEvent struct {
	Event     string `json:"event"`
	Name      string `json:"name"`
	Data      any    `json:"data"`
	Reason    string `json:"reason"`
	FileError string `json:"file_error"`
}

// listener holds the connection mpv sends property changes to. mpv only
// notifies the client that asked to observe, so observing and reading
// share one connection.
type listener struct {
	conn     net.Conn
	handle   func(rawEvent)
	stopOnce sync.Once
	done     chan struct{}
}

func listen(socketPath string, handle func(rawEvent)) (*listener, error) {
	conn, err := net.Dial("unix", socketPath)
	if err != nil {
		return nil, fmt.Errorf("listener connect: %w", err)
	}

	enc := json.NewEncoder(conn)
	for i, name := range observed {
		if err := enc.Encode(ipcCommand{Command: []any{"observe_property", i + 1, name}}); err != nil {
			conn.Close()
			return nil, fmt.Errorf("observe %s: %w", name, err)
		}
	}

	l := &listener{conn: conn, handle: handle, done: make(chan struct{})}
	go l.read()
	return l, nil
}

func (l *listener) read() {
	defer close(l.done)

	scanner := bufio.NewScanner(l.conn)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		var ev rawEvent
		if err := json.Unmarshal(scanner.Bytes(), &ev); err != nil || ev.Event == "" {
			continue
		}
		l.handle(ev)
	}

	if err := scanner.Err(); err != nil {
		log.WithError(err).Debug("mpv listener stopped")
	}
}

func (l *listener) stop() {
	l.stopOnce.Do(func() {
		_ = l.conn.Close()
	})
	<-l.done
}

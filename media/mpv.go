package media

import (
	"crypto/rand"
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/lectern-cli/lectern/constant"
	"github.com/lectern-cli/lectern/log"
)

const (
	socketWaitRetries = 20
	socketWaitDelay   = 150 * time.Millisecond
	quitTimeout       = 3 * time.Second
)

// MPV is an Element backed by an mpv process controlled over JSON-IPC.
// The process starts on the first Load and lives until Close.
type MPV struct {
	binary    string
	nativeHLS bool
	title     string
	socketDir string

	socketPath string
	cmd        *exec.Cmd
	exited     chan struct{}
	listener   *listener

	ipcMu sync.Mutex

	startMu sync.Mutex
	started bool

	mu      sync.Mutex
	tr      *translator
	handler func(Event)
	closed  bool
}

// MPVOption configures an MPV element.
type MPVOption func(*MPV)

// WithNativeHLS lets mpv open HLS playlists itself.
func WithNativeHLS(on bool) MPVOption {
	return func(m *MPV) { m.nativeHLS = on }
}

// WithTitle sets the player window title.
func WithTitle(title string) MPVOption {
	return func(m *MPV) { m.title = sanitizeTitle(title) }
}

// WithSocketDir sets where the IPC socket is created.
func WithSocketDir(dir string) MPVOption {
	return func(m *MPV) { m.socketDir = dir }
}

// NewMPV returns an element driving the mpv binary. The process starts on the first Load.
func NewMPV(binary string, opts ...MPVOption) *MPV {
	if binary == "" {
		binary = "mpv"
	}

	m := &MPV{
		binary:    binary,
		title:     constant.Lectern,
		socketDir: os.TempDir(),
		exited:    make(chan struct{}),
		tr:        newTranslator(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *MPV) Subscribe(fn func(Event)) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}
	if m.handler != nil {
		return ErrElementInUse
	}
	m.handler = fn
	return nil
}

func (m *MPV) emit(events ...Event) {
	m.mu.Lock()
	fn := m.handler
	m.mu.Unlock()

	if fn == nil {
		return
	}
	for _, e := range events {
		fn(e)
	}
}

func (m *MPV) onRaw(ev rawEvent) {
	m.mu.Lock()
	events := m.tr.translate(ev)
	m.mu.Unlock()

	m.emit(events...)
}

func (m *MPV) args() []string {
	return []string{
		"--no-terminal",
		"--really-quiet",
		"--idle=yes",
		"--keep-open=yes",
		"--force-window=yes",
		"--pause=yes",
		"--input-ipc-server=" + m.socketPath,
		"--force-media-title=" + m.title,
		"--title=" + m.title,
	}
}

// start launches mpv if it is not running yet.
func (m *MPV) start() error {
	m.startMu.Lock()
	defer m.startMu.Unlock()

	if m.started {
		return nil
	}

	suffix := make([]byte, 4)
	if _, err := rand.Read(suffix); err != nil {
		return fmt.Errorf("generate socket name: %w", err)
	}
	m.socketPath = filepath.Join(m.socketDir, fmt.Sprintf("%s-%x.sock", constant.Lectern, suffix))

	cmd := exec.Command(m.binary, m.args()...)
	cmd.SysProcAttr = sysProcAttr()
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start %s: %w", m.binary, err)
	}
	m.cmd = cmd

	go func() {
		_ = cmd.Wait()
		close(m.exited)

		m.mu.Lock()
		closing := m.closed
		m.mu.Unlock()
		if !closing {
			log.Info("mpv exited")
			m.emit(Exited{})
		}
	}()

	if err := m.waitForSocket(); err != nil {
		_ = killProcess(cmd)
		return fmt.Errorf("mpv socket not ready: %w", err)
	}

	l, err := listen(m.socketPath, m.onRaw)
	if err != nil {
		_ = killProcess(cmd)
		return err
	}
	m.listener = l
	m.started = true
	return nil
}

func (m *MPV) running() bool {
	m.startMu.Lock()
	defer m.startMu.Unlock()
	return m.started
}

func (m *MPV) waitForSocket() error {
	for range socketWaitRetries {
		time.Sleep(socketWaitDelay)

		select {
		case <-m.exited:
			return errors.New("mpv exited before socket was ready")
		default:
		}

		if conn, err := net.Dial("unix", m.socketPath); err == nil {
			conn.Close()
			return nil
		}
	}
	return fmt.Errorf("socket %s not ready after %d attempts", m.socketPath, socketWaitRetries)
}

func (m *MPV) Load(rawURL string, startAt float64) error {
	target, err := sanitizeMediaTarget(rawURL)
	if err != nil {
		return fmt.Errorf("invalid media target: %w", err)
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	m.tr.reset(max(startAt, 0))
	m.mu.Unlock()

	if err := m.start(); err != nil {
		return err
	}

	start := "none"
	if startAt > 0 {
		start = strconv.FormatFloat(startAt, 'f', 3, 64)
	}
	if _, err := m.send("set_property", "start", start); err != nil {
		return err
	}
	_, err = m.send("loadfile", target, "replace")
	return err
}

func (m *MPV) Unload() error {
	if !m.running() {
		return nil
	}

	m.mu.Lock()
	m.tr.reset(0)
	m.mu.Unlock()

	_, err := m.send("stop")
	return err
}

func (m *MPV) Play() error {
	return m.set("pause", false)
}

func (m *MPV) Pause() error {
	return m.set("pause", true)
}

func (m *MPV) Seek(seconds float64) error {
	if !m.running() {
		return nil
	}
	_, err := m.send("seek", seconds, "absolute")
	return err
}

func (m *MPV) SetVolume(v float64) error {
	return m.set("volume", min(max(v, 0), 1)*100)
}

func (m *MPV) SetMuted(muted bool) error {
	return m.set("mute", muted)
}

func (m *MPV) SetRate(rate float64) error {
	return m.set("speed", rate)
}

func (m *MPV) SetFullscreen(on bool) error {
	return m.set("fullscreen", on)
}

func (m *MPV) set(property string, value any) error {
	if !m.running() {
		return nil
	}
	_, err := m.send("set_property", property, value)
	return err
}

func (m *MPV) CanPlayNatively(mime string) bool {
	switch mime {
	case constant.HLSMimeType:
		return m.nativeHLS
	case "video/mp4", "video/webm":
		return true
	default:
		return false
	}
}

// Close quits mpv, killing it if it does not exit in time.
func (m *MPV) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.handler = nil
	m.mu.Unlock()

	if !m.running() {
		return nil
	}

	_, _ = m.send("quit")
	select {
	case <-m.exited:
	case <-time.After(quitTimeout):
		log.Warn("mpv did not quit, killing it")
		_ = killProcess(m.cmd)
	}

	if m.listener != nil {
		m.listener.stop()
	}
	_ = os.Remove(m.socketPath)
	return nil
}

// sanitizeMediaTarget rejects anything mpv could read as a flag or a non-http protocol.
func sanitizeMediaTarget(link string) (string, error) {
	l := strings.TrimSpace(link)
	if l == "" {
		return "", errors.New("empty URL")
	}
	if strings.ContainsAny(l, "\x00\n\r") {
		return "", errors.New("invalid control characters in URL")
	}
	if strings.HasPrefix(l, "-") {
		return "", errors.New("url must not start with '-'")
	}

	if strings.Contains(l, "://") {
		u, err := url.Parse(l)
		if err != nil {
			return "", fmt.Errorf("invalid URL: %w", err)
		}
		switch strings.ToLower(u.Scheme) {
		case "http", "https":
			return l, nil
		default:
			return "", fmt.Errorf("unsupported URL scheme: %s", u.Scheme)
		}
	}

	return filepath.Clean(l), nil
}

func sanitizeTitle(title string) string {
	t := strings.NewReplacer("\n", " ", "\r", " ", "\t", " ", "\x00", "").Replace(title)
	return strings.TrimSpace(t)
}

package logstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/websocket"
)

// URL maps a backend base URL to the log socket of one device.
func URL(baseURL, deviceID string) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("parse backend url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/realtime/logs/" + url.PathEscape(deviceID)
	return u.String(), nil
}

// Stream is an open log socket for one device.
type Stream struct {
	conn   *websocket.Conn
	buf    Buffer
	log    *slog.Logger
	device string
}

// Dial opens the log socket of device. header typically carries the
// session cookie.
func Dial(ctx context.Context, baseURL, device string, header http.Header, log *slog.Logger) (*Stream, error) {
	if log == nil {
		log = slog.Default()
	}
	rawURL, err := URL(baseURL, device)
	if err != nil {
		return nil, err
	}
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, rawURL, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial log stream (status %d): %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("dial log stream: %w", err)
	}
	return &Stream{conn: conn, log: log.With("device", device), device: device}, nil
}

// Run reads events until the socket closes or ctx is cancelled, calling fn
// with the reconciled snapshot after each one. A normal close returns nil.
func (s *Stream) Run(ctx context.Context, fn func(Snapshot)) error {
	stop := context.AfterFunc(ctx, func() { s.conn.Close() })
	defer stop()

	for {
		var ev Event
		if err := s.conn.ReadJSON(&ev); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			if isDecodeError(err) {
				s.log.Warn("skipping malformed log event", "err", err)
				continue
			}
			return fmt.Errorf("read log event: %w", err)
		}
		fn(s.buf.Apply(ev))
	}
}

func isDecodeError(err error) bool {
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	return errors.As(err, &syntaxErr) || errors.As(err, &typeErr)
}

func (s *Stream) Device() string     { return s.device }
func (s *Stream) Snapshot() Snapshot { return s.buf.Snapshot() }

func (s *Stream) Close() error {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	s.conn.WriteMessage(websocket.CloseMessage, msg)
	return s.conn.Close()
}

package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/senyabanana/instant-call-service/internal/live"
	"github.com/senyabanana/instant-call-service/internal/models"
	"github.com/senyabanana/instant-call-service/internal/reconciler"

	"github.com/gorilla/websocket"
)

// Dial открывает живой канал пользователя.
func (c *Client) Dial(ctx context.Context) (reconciler.Stream, error) {
	endpoint, err := liveURL(c.BaseURL, c.Token)
	if err != nil {
		return nil, err
	}

	header := http.Header{}
	if c.Token != "" {
		header.Set("Authorization", "Bearer "+c.Token)
	}

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, endpoint, header)
	if err != nil {
		if resp != nil {
			defer resp.Body.Close()
			return nil, fmt.Errorf("dial live channel: %w", decodeError(resp))
		}
		return nil, fmt.Errorf("dial live channel: %w", err)
	}
	return &Stream{conn: conn}, nil
}

func liveURL(baseURL, token string) (string, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/") + "/api/live")
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	if token != "" {
		q := u.Query()
		q.Set("access_token", token)
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

// Stream читает события живого канала.
type Stream struct {
	conn *websocket.Conn
}

// Next блокируется до следующего события. Отмена ctx закрывает соединение.
func (s *Stream) Next(ctx context.Context) (models.Notification, error) {
	stop := context.AfterFunc(ctx, func() { s.conn.Close() })
	defer stop()

	var event live.Event
	if err := s.conn.ReadJSON(&event); err != nil {
		if ctx.Err() != nil {
			return models.Notification{}, ctx.Err()
		}
		return models.Notification{}, fmt.Errorf("read live event: %w", err)
	}
	return event.Notification, nil
}

// Close закрывает соединение.
func (s *Stream) Close() error {
	return s.conn.Close()
}

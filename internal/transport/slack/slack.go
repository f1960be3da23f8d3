// Package slack adapts the Slack Web API and RTM websocket stream to the
// interfaces used by the notifier, the realtime listener and the health
// probes.
package slack

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/slack-go/slack"

	"relaybot/internal/realtime"
	logx "relaybot/pkg/logx"
)

var ErrNotConnected = errors.New("slack: realtime stream not connected")

const (
	defaultHTTPTimeout = 15 * time.Second
	handshakeTimeout   = 10 * time.Second
	writeTimeout       = 10 * time.Second
)

type Config struct {
	Token   string
	APIURL  string // must end with "/"; empty uses slack.com
	Proxy   string
	Timeout time.Duration
}

// Client is safe for concurrent SendMessage/Ping calls. The realtime methods
// are driven by a single listener.
type Client struct {
	api    *slack.Client
	dialer *websocket.Dialer
	log    logx.Logger

	mu   sync.Mutex
	conn *websocket.Conn
}

func New(cfg Config, log logx.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("slack: token is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultHTTPTimeout
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	dialer := &websocket.Dialer{HandshakeTimeout: handshakeTimeout, Proxy: http.ProxyFromEnvironment}
	if p := strings.TrimSpace(cfg.Proxy); p != "" {
		u, err := url.Parse(p)
		if err != nil {
			return nil, fmt.Errorf("slack: invalid proxy: %w", err)
		}
		transport.Proxy = http.ProxyURL(u)
		dialer.Proxy = http.ProxyURL(u)
	}

	opts := []slack.Option{slack.OptionHTTPClient(&http.Client{Timeout: timeout, Transport: transport})}
	if u := strings.TrimSpace(cfg.APIURL); u != "" {
		if !strings.HasSuffix(u, "/") {
			u += "/"
		}
		opts = append(opts, slack.OptionAPIURL(u))
	}

	return &Client{
		api:    slack.New(cfg.Token, opts...),
		dialer: dialer,
		log:    log.With(logx.String("comp", "slack")),
	}, nil
}

// SendMessage posts text as the bot user.
func (c *Client) SendMessage(ctx context.Context, channel, text string) error {
	_, _, err := c.api.PostMessageContext(ctx, channel,
		slack.MsgOptionText(text, false),
		slack.MsgOptionAsUser(true),
	)
	if err != nil {
		return fmt.Errorf("chat.postMessage %s: %w", channel, err)
	}
	return nil
}

// BotID returns the user id of the token's bot via auth.test.
func (c *Client) BotID(ctx context.Context) (string, error) {
	resp, err := c.api.AuthTestContext(ctx)
	if err != nil {
		return "", fmt.Errorf("auth.test: %w", err)
	}
	return resp.UserID, nil
}

// Ping checks that the API is reachable and the token is valid.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.BotID(ctx)
	return err
}

// Connect calls rtm.connect and opens the websocket it returns.
func (c *Client) Connect(ctx context.Context) error {
	_, wsURL, err := c.api.ConnectRTMContext(ctx)
	if err != nil {
		return fmt.Errorf("rtm.connect: %w", err)
	}
	return c.dial(ctx, wsURL)
}

// Reconnect replaces the current stream with one opened at wsURL.
func (c *Client) Reconnect(ctx context.Context, wsURL string) error {
	return c.dial(ctx, wsURL)
}

func (c *Client) dial(ctx context.Context, wsURL string) error {
	conn, resp, err := c.dialer.DialContext(ctx, wsURL, nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return fmt.Errorf("websocket dial: %w", err)
	}

	c.mu.Lock()
	old := c.conn
	c.conn = conn
	c.mu.Unlock()
	if old != nil {
		_ = old.Close()
	}
	c.log.Debug("realtime stream connected")
	return nil
}

// Read blocks for the next frame. Slack sends one event per frame, so a
// batch always holds exactly one event.
func (c *Client) Read(ctx context.Context) ([]realtime.Event, error) {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return nil, ErrNotConnected
	}

	stop := context.AfterFunc(ctx, func() { _ = conn.SetReadDeadline(time.Now()) })
	defer stop()

	_, data, err := conn.ReadMessage()
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("websocket read: %w", err)
	}

	var ev realtime.Event
	if err := json.Unmarshal(data, &ev); err != nil {
		c.log.Debug("skipping undecodable frame", logx.Err(err))
		return nil, nil
	}
	return []realtime.Event{ev}, nil
}

// Close sends a close frame and drops the stream.
func (c *Client) Close() error {
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()
	if conn == nil {
		return nil
	}
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(writeTimeout))
	return conn.Close()
}

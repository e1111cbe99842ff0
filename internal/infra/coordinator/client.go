package coordinator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"solvency/internal/domain"
)

const DefaultTimeout = 10 * time.Second

var errClosed = errors.New("coordinator connection closed")

// Client is a request/response client for the coordinator websocket API.
// Responses are matched to requests by id.
type Client struct {
	conn     *websocket.Conn
	timeout  time.Duration
	validate *validator.Validate
	log      logrus.FieldLogger

	writeMu sync.Mutex

	mu      sync.Mutex
	pending map[string]chan response
	err     error
	done    chan struct{}
}

func Dial(ctx context.Context, url string, timeout time.Duration, log logrus.FieldLogger) (*Client, error) {
	if url == "" {
		return nil, errors.New("coordinator url is required")
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, &domain.TransientError{Op: "dial coordinator", Err: err}
	}
	return NewClient(conn, timeout, log), nil
}

func NewClient(conn *websocket.Conn, timeout time.Duration, log logrus.FieldLogger) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	c := &Client{
		conn:     conn,
		timeout:  timeout,
		validate: validator.New(),
		log:      log,
		pending:  make(map[string]chan response),
		done:     make(chan struct{}),
	}
	go c.readLoop()
	return c
}

func (c *Client) Close() error {
	c.writeMu.Lock()
	_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	c.writeMu.Unlock()
	err := c.conn.Close()
	<-c.done
	return err
}

func (c *Client) GetConfig(ctx context.Context) (Config, error) {
	var out Config
	err := c.call(ctx, MethodGetConfig, nil, &out)
	return out, err
}

func (c *Client) GetBalance(ctx context.Context, address string) ([]Balance, error) {
	var out []Balance
	if err := c.call(ctx, MethodGetBalance, balanceParams{Address: address}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetAppSession(ctx context.Context, sessionID string) (AppSession, error) {
	var out AppSession
	err := c.call(ctx, MethodGetAppSession, sessionParams{SessionID: sessionID}, &out)
	return out, err
}

func (c *Client) CloseAppSession(ctx context.Context, sessionID string) (CloseResult, error) {
	var out CloseResult
	err := c.call(ctx, MethodCloseAppSession, sessionParams{SessionID: sessionID}, &out)
	return out, err
}

func (c *Client) call(ctx context.Context, method Method, params any, out any) error {
	if _, ok := knownMethods[method]; !ok {
		return fmt.Errorf("method %q: %w", method, domain.ErrProtocol)
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	id := uuid.NewString()
	ch := make(chan response, 1)
	c.mu.Lock()
	if c.err != nil {
		err := c.err
		c.mu.Unlock()
		return &domain.TransientError{Op: string(method), Err: err}
	}
	c.pending[id] = ch
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
	}()

	payload, err := json.Marshal(request{ID: id, Method: method, Params: params})
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	if deadline, ok := ctx.Deadline(); ok {
		_ = c.conn.SetWriteDeadline(deadline)
	}
	err = c.conn.WriteMessage(websocket.TextMessage, payload)
	c.writeMu.Unlock()
	if err != nil {
		return &domain.TransientError{Op: string(method), Err: err}
	}

	var resp response
	select {
	case <-ctx.Done():
		return &domain.TransientError{Op: string(method), Err: ctx.Err()}
	case r, ok := <-ch:
		if !ok {
			return &domain.TransientError{Op: string(method), Err: c.closeErr()}
		}
		resp = r
	}

	switch {
	case resp.Error != nil && len(resp.Result) > 0:
		return fmt.Errorf("%s: response carries both result and error: %w", method, domain.ErrProtocol)
	case resp.Error != nil:
		return fmt.Errorf("%s: %w", method, resp.Error)
	case len(resp.Result) == 0 || string(resp.Result) == "null":
		return fmt.Errorf("%s: empty result: %w", method, domain.ErrProtocol)
	}
	if err := json.Unmarshal(resp.Result, out); err != nil {
		return fmt.Errorf("%s: decode result: %v: %w", method, err, domain.ErrProtocol)
	}
	if err := c.validateResult(out); err != nil {
		return fmt.Errorf("%s: %v: %w", method, err, domain.ErrProtocol)
	}
	return nil
}

func (c *Client) validateResult(out any) error {
	if balances, ok := out.(*[]Balance); ok {
		for i := range *balances {
			if err := c.validate.Struct((*balances)[i]); err != nil {
				return err
			}
		}
		return nil
	}
	return c.validate.Struct(out)
}

func (c *Client) readLoop() {
	defer close(c.done)
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			c.fail(err)
			return
		}
		var resp response
		if err := json.Unmarshal(data, &resp); err != nil {
			c.log.WithError(err).Warn("discarding malformed coordinator message")
			continue
		}
		c.mu.Lock()
		ch, ok := c.pending[resp.ID]
		if ok {
			delete(c.pending, resp.ID)
		}
		c.mu.Unlock()
		if !ok {
			c.log.WithField("id", resp.ID).Warn("discarding coordinator response with unknown id")
			continue
		}
		ch <- resp
	}
}

func (c *Client) fail(err error) {
	if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
		err = errClosed
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err == nil {
		c.err = err
	}
	for id, ch := range c.pending {
		close(ch)
		delete(c.pending, id)
	}
}

func (c *Client) closeErr() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	return errClosed
}

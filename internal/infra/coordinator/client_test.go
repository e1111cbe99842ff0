package coordinator

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/websocket"
	"github.com/holiman/uint256"
	"github.com/sirupsen/logrus"

	"solvency/internal/domain"
)

const (
	alice = "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
	bob   = "0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"
)

type incoming struct {
	ID     string          `json:"id"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params"`
}

// newCoordinatorServer answers like the coordinator. Sessions named "silent"
// never get a reply and "broken" gets a result of the wrong shape.
func newCoordinatorServer(t *testing.T) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var msg incoming
			if err := json.Unmarshal(data, &msg); err != nil {
				return
			}
			var params struct {
				SessionID string `json:"session_id"`
			}
			_ = json.Unmarshal(msg.Params, &params)

			var reply map[string]any
			switch {
			case msg.Method == "get_config":
				reply = map[string]any{"id": msg.ID, "result": map[string]any{
					"version":      "1.0.0",
					"capabilities": []string{"app_sessions"},
					"chains": []map[string]any{{
						"chainId":   "43113",
						"name":      "Avalanche Fuji",
						"contracts": map[string]string{"deposit": "0x1234567890abcdef1234567890abcdef12345678"},
					}},
				}}
			case msg.Method == "get_app_session" && params.SessionID == "s1":
				reply = map[string]any{"id": msg.ID, "result": map[string]any{
					"sessionId":    "s1",
					"participants": []string{bob, alice},
					"allocations":  map[string]string{alice: "1.5", bob: "0.25"},
					"round":        3,
					"status":       "active",
				}}
			case msg.Method == "get_app_session" && params.SessionID == "broken":
				reply = map[string]any{"id": msg.ID, "result": map[string]any{"status": "active"}}
			case params.SessionID == "silent":
				continue
			case msg.Method == "get_app_session":
				reply = map[string]any{"id": msg.ID, "error": map[string]any{"code": 404, "message": "Session not found"}}
			default:
				reply = map[string]any{"id": msg.ID, "error": map[string]any{"code": 400, "message": "Unknown method"}}
			}
			if err := conn.WriteJSON(reply); err != nil {
				return
			}
		}
	}))
}

func dialTest(t *testing.T, timeout time.Duration) *Client {
	t.Helper()
	srv := newCoordinatorServer(t)
	t.Cleanup(srv.Close)
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	client, err := Dial(context.Background(), url, timeout, logrus.New())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestClientGetConfig(t *testing.T) {
	client := dialTest(t, time.Second)
	cfg, err := client.GetConfig(context.Background())
	if err != nil {
		t.Fatalf("get config: %v", err)
	}
	if cfg.Version != "1.0.0" || len(cfg.Chains) != 1 || cfg.Chains[0].ChainID != "43113" {
		t.Fatalf("unexpected config %+v", cfg)
	}
}

func TestClientErrors(t *testing.T) {
	client := dialTest(t, 200*time.Millisecond)
	ctx := context.Background()

	if _, err := client.GetAppSession(ctx, "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := client.GetAppSession(ctx, "broken"); !errors.Is(err, domain.ErrProtocol) {
		t.Fatalf("expected ErrProtocol for invalid shape, got %v", err)
	}
	if _, err := client.GetAppSession(ctx, "silent"); !errors.Is(err, context.DeadlineExceeded) || !errors.Is(err, domain.ErrTransientIO) {
		t.Fatalf("expected transient timeout, got %v", err)
	}
	if err := client.call(ctx, Method("submit_app_state"), nil, &struct{}{}); !errors.Is(err, domain.ErrProtocol) {
		t.Fatalf("expected ErrProtocol for unknown method, got %v", err)
	}
	// the connection stays usable after a timed out call
	if _, err := client.GetConfig(ctx); err != nil {
		t.Fatalf("get config after timeout: %v", err)
	}
}

func TestSessionSourceLiabilities(t *testing.T) {
	client := dialTest(t, time.Second)
	source := NewSessionSource(client, "s1", 18)
	if source.Name() != "coordinator:s1" {
		t.Fatalf("unexpected name %q", source.Name())
	}
	set, err := source.Liabilities(context.Background())
	if err != nil {
		t.Fatalf("liabilities: %v", err)
	}
	if len(set) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(set))
	}
	if set[0].Address != common.HexToAddress(bob) || set[1].Address != common.HexToAddress(alice) {
		t.Fatalf("expected participant order, got %s %s", set[0].Address.Hex(), set[1].Address.Hex())
	}
	wantAlice, _ := uint256.FromDecimal("1500000000000000000")
	if !set[1].Balance.Eq(wantAlice) {
		t.Fatalf("unexpected alice balance %s", set[1].Balance.Dec())
	}
}

func TestLiabilitiesFromSessionRejectsBadAmounts(t *testing.T) {
	session := AppSession{
		SessionID:    "s",
		Participants: []string{alice},
		Allocations:  map[string]string{alice: "1.0000000000000000001"},
	}
	if _, err := LiabilitiesFromSession(session, 18); !errors.Is(err, domain.ErrInput) {
		t.Fatalf("expected ErrInput for excess decimals, got %v", err)
	}
	session.Allocations = map[string]string{}
	if _, err := LiabilitiesFromSession(session, 18); !errors.Is(err, domain.ErrInput) {
		t.Fatalf("expected empty liabilities error, got %v", err)
	}
}

func TestSessionSourceDialsPerRead(t *testing.T) {
	srv := newCoordinatorServer(t)
	defer srv.Close()
	source := &SessionSource{
		URL:       "ws" + strings.TrimPrefix(srv.URL, "http"),
		Timeout:   time.Second,
		SessionID: "s1",
		Decimals:  6,
		Log:       logrus.New(),
	}
	set, err := source.Liabilities(context.Background())
	if err != nil {
		t.Fatalf("liabilities: %v", err)
	}
	if !set[0].Balance.Eq(uint256.NewInt(250000)) {
		t.Fatalf("unexpected bob balance %s", set[0].Balance.Dec())
	}
}

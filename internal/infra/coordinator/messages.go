package coordinator

import (
	"encoding/json"
	"fmt"

	"solvency/internal/domain"
)

type Method string

const (
	MethodGetConfig       Method = "get_config"
	MethodGetBalance      Method = "get_balance"
	MethodGetAppSession   Method = "get_app_session"
	MethodCloseAppSession Method = "close_app_session"
)

var knownMethods = map[Method]struct{}{
	MethodGetConfig:       {},
	MethodGetBalance:      {},
	MethodGetAppSession:   {},
	MethodCloseAppSession: {},
}

type request struct {
	ID     string `json:"id"`
	Method Method `json:"method"`
	Params any    `json:"params,omitempty"`
}

type response struct {
	ID     string          `json:"id"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *RPCError       `json:"error,omitempty"`
}

type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("coordinator error %d: %s", e.Code, e.Message)
}

func (e *RPCError) Is(target error) bool {
	switch e.Code {
	case 404:
		return target == domain.ErrNotFound
	case 400:
		return target == domain.ErrInput
	}
	return false
}

type balanceParams struct {
	Address string `json:"address"`
}

type sessionParams struct {
	SessionID string `json:"session_id"`
}

type ChainInfo struct {
	ChainID   string            `json:"chainId" validate:"required"`
	Name      string            `json:"name"`
	Contracts map[string]string `json:"contracts" validate:"dive,eth_addr"`
}

type Config struct {
	Version      string      `json:"version" validate:"required"`
	Capabilities []string    `json:"capabilities"`
	Chains       []ChainInfo `json:"chains" validate:"dive"`
}

type Balance struct {
	Token     string `json:"token" validate:"required"`
	Amount    string `json:"amount" validate:"required,numeric"`
	Available string `json:"available" validate:"omitempty,numeric"`
	Locked    string `json:"locked" validate:"omitempty,numeric"`
}

type AppSession struct {
	SessionID    string            `json:"sessionId" validate:"required"`
	Participants []string          `json:"participants" validate:"required,min=1,dive,eth_addr"`
	Allocations  map[string]string `json:"allocations" validate:"required,dive,keys,eth_addr,endkeys,numeric"`
	Round        int               `json:"round" validate:"gte=0"`
	Status       string            `json:"status"`
	Token        string            `json:"token"`
}

type CloseResult struct {
	Success          bool              `json:"success"`
	SessionID        string            `json:"sessionId" validate:"required"`
	Status           string            `json:"status" validate:"required"`
	FinalAllocations map[string]string `json:"final_allocations" validate:"dive,keys,eth_addr,endkeys,numeric"`
}

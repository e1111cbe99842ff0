package evm

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/holiman/uint256"
)

type balanceStub struct {
	balance *big.Int
	err     error
}

func (b balanceStub) BalanceAt(context.Context, common.Address, *big.Int) (*big.Int, error) {
	return b.balance, b.err
}

func TestLedgerReaderConvertsBalance(t *testing.T) {
	reader := NewLedgerReader(balanceStub{balance: big.NewInt(200)})
	got, err := reader.BalanceAt(context.Background(), common.Address{})
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if !got.Eq(uint256.NewInt(200)) {
		t.Fatalf("unexpected balance %s", got.Dec())
	}

	huge := new(big.Int).Lsh(big.NewInt(1), 256)
	if _, err := NewLedgerReader(balanceStub{balance: huge}).BalanceAt(context.Background(), common.Address{}); err == nil {
		t.Fatalf("expected overflow error")
	}
	boom := errors.New("rpc down")
	if _, err := NewLedgerReader(balanceStub{err: boom}).BalanceAt(context.Background(), common.Address{}); !errors.Is(err, boom) {
		t.Fatalf("expected rpc error, got %v", err)
	}
}

func TestStaticReader(t *testing.T) {
	custody := common.HexToAddress("0x1000000000000000000000000000000000000001")
	reader := NewStaticReader(map[common.Address]*uint256.Int{custody: uint256.NewInt(150)})
	got, err := reader.BalanceAt(context.Background(), custody)
	if err != nil || !got.Eq(uint256.NewInt(150)) {
		t.Fatalf("unexpected balance %v err=%v", got, err)
	}
	got.SetUint64(1)
	again, _ := reader.BalanceAt(context.Background(), custody)
	if !again.Eq(uint256.NewInt(150)) {
		t.Fatalf("reader leaked internal balance")
	}
	unknown, _ := reader.BalanceAt(context.Background(), common.Address{})
	if !unknown.IsZero() {
		t.Fatalf("expected zero for unknown account")
	}
}

func TestKeySignerSignsForChain(t *testing.T) {
	// well known hardhat account #0
	signer, err := NewKeySigner("0xac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80", 31337)
	if err != nil {
		t.Fatalf("new signer: %v", err)
	}
	want := common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266")
	if signer.Address() != want {
		t.Fatalf("unexpected address %s", signer.Address().Hex())
	}
	to := common.HexToAddress("0x9999999999999999999999999999999999999999")
	tx := types.NewTx(&types.LegacyTx{Nonce: 1, GasPrice: big.NewInt(1), Gas: 21000, To: &to, Value: big.NewInt(0)})
	signed, err := signer.SignTx(context.Background(), tx)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	from, err := types.Sender(types.LatestSignerForChainID(big.NewInt(31337)), signed)
	if err != nil {
		t.Fatalf("recover sender: %v", err)
	}
	if from != want {
		t.Fatalf("unexpected sender %s", from.Hex())
	}
	if _, err := NewKeySigner("", 1); err == nil {
		t.Fatalf("expected missing key error")
	}
}

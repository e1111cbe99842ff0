package registry

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/sirupsen/logrus"

	"solvency/internal/domain"
)

const defaultPollInterval = 2 * time.Second

// Backend is the subset of *ethclient.Client the verifier contract needs.
type Backend interface {
	CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, call ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error)
}

// EVM talks to a deployed SolvencyVerifier contract.
type EVM struct {
	backend      Backend
	address      common.Address
	abi          abi.ABI
	PollInterval time.Duration
	Log          logrus.FieldLogger
}

func NewEVM(backend Backend, address common.Address) (*EVM, error) {
	if backend == nil {
		return nil, errors.New("evm backend is required")
	}
	if address == (common.Address{}) {
		return nil, errors.New("registry address is required")
	}
	parsed, err := parseVerifierABI()
	if err != nil {
		return nil, fmt.Errorf("parse verifier abi: %w", err)
	}
	return &EVM{
		backend:      backend,
		address:      address,
		abi:          parsed,
		PollInterval: defaultPollInterval,
		Log:          logrus.StandardLogger(),
	}, nil
}

func (r *EVM) Exists(ctx context.Context, key common.Hash) (bool, error) {
	out, err := r.call(ctx, "proofExists", [32]byte(key))
	if err != nil {
		return false, err
	}
	exists, ok := out[0].(bool)
	if !ok {
		return false, fmt.Errorf("proofExists: unexpected output %T", out[0])
	}
	return exists, nil
}

func (r *EVM) Get(ctx context.Context, key common.Hash) (*domain.PublishedRecord, error) {
	exists, err := r.Exists(ctx, key)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("epoch key %s: %w", key.Hex(), domain.ErrNotFound)
	}
	out, err := r.call(ctx, "getDetailedProof", [32]byte(key))
	if err != nil {
		return nil, err
	}
	detail := *abi.ConvertType(out[0], new(detailedProof)).(*detailedProof)
	record := &domain.PublishedRecord{
		EpochKey:              key,
		MerkleRoot:            common.Hash(detail.MerkleRoot),
		IsSolvent:             detail.IsSolvent,
		MasterCommitment:      common.Hash(detail.Commitment),
		WitnessHash:           common.Hash(detail.WitnessHash),
		ReservesCommitment:    common.Hash(detail.ReservesCommitment),
		LiabilitiesCommitment: common.Hash(detail.LiabilitiesCommitment),
		SolvencyAssertion:     common.Hash(detail.SolvencyAssertion),
		Publisher:             detail.Publisher,
		Verified:              detail.Verified,
	}
	if detail.Timestamp != nil {
		record.Timestamp = detail.Timestamp.Uint64()
	}
	if detail.BlockNumber != nil {
		record.BlockNumber = detail.BlockNumber.Uint64()
	}
	return record, nil
}

// Publish submits publishProof and waits for the receipt. A reverted
// transaction is an error; a context expiry while waiting leaves the outcome
// unknown to the caller.
func (r *EVM) Publish(ctx context.Context, payload domain.RegistryPayload, signer domain.Signer) (domain.WriteReceipt, error) {
	data, err := r.abi.Pack("publishProof",
		[32]byte(payload.EpochKey),
		[32]byte(payload.PublicSignals.MerkleRoot),
		new(big.Int).SetUint64(payload.PublicSignals.Timestamp),
		payload.PublicSignals.IsSolvent,
		[32]byte(payload.Commitments.MasterCommitment),
		[32]byte(payload.Commitments.WitnessHash),
		[32]byte(payload.Commitments.ReservesCommitment),
		[32]byte(payload.Commitments.LiabilitiesCommitment),
		[32]byte(payload.Commitments.SolvencyAssertion),
	)
	if err != nil {
		return domain.WriteReceipt{}, fmt.Errorf("pack publishProof: %w", err)
	}
	from := signer.Address()
	nonce, err := r.backend.PendingNonceAt(ctx, from)
	if err != nil {
		return domain.WriteReceipt{}, fmt.Errorf("pending nonce: %w", err)
	}
	gasPrice, err := r.backend.SuggestGasPrice(ctx)
	if err != nil {
		return domain.WriteReceipt{}, fmt.Errorf("suggest gas price: %w", err)
	}
	to := r.address
	gas, err := r.backend.EstimateGas(ctx, ethereum.CallMsg{From: from, To: &to, Data: data})
	if err != nil {
		return domain.WriteReceipt{}, fmt.Errorf("estimate gas: %w", err)
	}
	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		GasPrice: gasPrice,
		Gas:      gas,
		To:       &to,
		Value:    big.NewInt(0),
		Data:     data,
	})
	signed, err := signer.SignTx(ctx, tx)
	if err != nil {
		return domain.WriteReceipt{}, fmt.Errorf("sign tx: %w", err)
	}
	if err := r.backend.SendTransaction(ctx, signed); err != nil {
		return domain.WriteReceipt{}, fmt.Errorf("send tx: %w", err)
	}
	r.logger().WithFields(logrus.Fields{"tx": signed.Hash().Hex(), "epoch_key": payload.EpochKey.Hex()}).Info("publishProof submitted")

	receipt, err := r.waitReceipt(ctx, signed.Hash())
	if err != nil {
		return domain.WriteReceipt{}, err
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return domain.WriteReceipt{}, fmt.Errorf("publishProof tx %s reverted", signed.Hash().Hex())
	}
	out := domain.WriteReceipt{TxHash: receipt.TxHash, Publisher: from}
	if receipt.BlockNumber != nil {
		out.BlockNumber = receipt.BlockNumber.Uint64()
	}
	return out, nil
}

func (r *EVM) Latest(ctx context.Context) (*domain.PublishedRecord, error) {
	out, err := r.call(ctx, "getProofCount")
	if err != nil {
		return nil, err
	}
	count, ok := out[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("getProofCount: unexpected output %T", out[0])
	}
	if count.Sign() == 0 {
		return nil, fmt.Errorf("registry is empty: %w", domain.ErrNotFound)
	}
	out, err = r.call(ctx, "getLatestProof")
	if err != nil {
		return nil, err
	}
	key, ok := out[0].([32]byte)
	if !ok {
		return nil, fmt.Errorf("getLatestProof: unexpected output %T", out[0])
	}
	return r.Get(ctx, common.Hash(key))
}

func (r *EVM) PublishedEvents(ctx context.Context, fromBlock uint64) ([]domain.PublishedEvent, error) {
	event := r.abi.Events["ProofPublished"]
	logs, err := r.backend.FilterLogs(ctx, ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(fromBlock),
		Addresses: []common.Address{r.address},
		Topics:    [][]common.Hash{{event.ID}},
	})
	if err != nil {
		return nil, fmt.Errorf("filter ProofPublished logs: %w", err)
	}
	out := make([]domain.PublishedEvent, 0, len(logs))
	for _, lg := range logs {
		if len(lg.Topics) < 3 {
			return nil, fmt.Errorf("ProofPublished log %s: %w", lg.TxHash.Hex(), domain.ErrProtocol)
		}
		values, err := r.abi.Unpack("ProofPublished", lg.Data)
		if err != nil {
			return nil, fmt.Errorf("unpack ProofPublished: %w", err)
		}
		isSolvent, _ := values[0].(bool)
		publisher, _ := values[1].(common.Address)
		ts, _ := values[2].(*big.Int)
		ev := domain.PublishedEvent{
			EpochKey:    lg.Topics[1],
			MerkleRoot:  lg.Topics[2],
			IsSolvent:   isSolvent,
			Publisher:   publisher,
			TxHash:      lg.TxHash,
			BlockNumber: lg.BlockNumber,
		}
		if ts != nil {
			ev.Timestamp = ts.Uint64()
		}
		out = append(out, ev)
	}
	return out, nil
}

func (r *EVM) call(ctx context.Context, method string, args ...interface{}) ([]interface{}, error) {
	data, err := r.abi.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}
	to := r.address
	raw, err := r.backend.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", method, err)
	}
	out, err := r.abi.Unpack(method, raw)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", method, err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%s returned no values: %w", method, domain.ErrProtocol)
	}
	return out, nil
}

func (r *EVM) waitReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	interval := r.PollInterval
	if interval <= 0 {
		interval = defaultPollInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		receipt, err := r.backend.TransactionReceipt(ctx, hash)
		if err == nil {
			return receipt, nil
		}
		if !errors.Is(err, ethereum.NotFound) {
			return nil, fmt.Errorf("receipt %s: %w", hash.Hex(), err)
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("wait for receipt %s: %w", hash.Hex(), ctx.Err())
		case <-ticker.C:
		}
	}
}

func (r *EVM) logger() logrus.FieldLogger {
	if r.Log != nil {
		return r.Log
	}
	return logrus.StandardLogger()
}

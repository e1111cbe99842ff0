package registry

import (
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

const verifierABI = `[
 {"type":"function","name":"publishProof","stateMutability":"nonpayable","inputs":[
  {"name":"epochId","type":"bytes32"},{"name":"merkleRoot","type":"bytes32"},
  {"name":"timestamp","type":"uint256"},{"name":"isSolvent","type":"bool"},
  {"name":"commitment","type":"bytes32"},{"name":"witnessHash","type":"bytes32"},
  {"name":"reservesCommitment","type":"bytes32"},{"name":"liabilitiesCommitment","type":"bytes32"},
  {"name":"solvencyAssertion","type":"bytes32"}],"outputs":[]},
 {"type":"function","name":"proofExists","stateMutability":"view","inputs":[
  {"name":"epochId","type":"bytes32"}],"outputs":[{"name":"","type":"bool"}]},
 {"type":"function","name":"getProofCount","stateMutability":"view","inputs":[],
  "outputs":[{"name":"","type":"uint256"}]},
 {"type":"function","name":"getLatestProof","stateMutability":"view","inputs":[],"outputs":[
  {"name":"epochId","type":"bytes32"},{"name":"merkleRoot","type":"bytes32"},
  {"name":"timestamp","type":"uint256"},{"name":"isSolvent","type":"bool"},
  {"name":"commitment","type":"bytes32"}]},
 {"type":"function","name":"getDetailedProof","stateMutability":"view","inputs":[
  {"name":"epochId","type":"bytes32"}],"outputs":[{"name":"","type":"tuple","components":[
  {"name":"merkleRoot","type":"bytes32"},{"name":"timestamp","type":"uint256"},
  {"name":"isSolvent","type":"bool"},{"name":"commitment","type":"bytes32"},
  {"name":"witnessHash","type":"bytes32"},{"name":"reservesCommitment","type":"bytes32"},
  {"name":"liabilitiesCommitment","type":"bytes32"},{"name":"solvencyAssertion","type":"bytes32"},
  {"name":"publisher","type":"address"},{"name":"blockNumber","type":"uint256"},
  {"name":"verified","type":"bool"}]}]},
 {"type":"event","name":"ProofPublished","anonymous":false,"inputs":[
  {"name":"epochId","type":"bytes32","indexed":true},{"name":"merkleRoot","type":"bytes32","indexed":true},
  {"name":"isSolvent","type":"bool","indexed":false},{"name":"publisher","type":"address","indexed":false},
  {"name":"timestamp","type":"uint256","indexed":false}]}
]`

// detailedProof mirrors the tuple returned by getDetailedProof.
type detailedProof struct {
	MerkleRoot            [32]byte
	Timestamp             *big.Int
	IsSolvent             bool
	Commitment            [32]byte
	WitnessHash           [32]byte
	ReservesCommitment    [32]byte
	LiabilitiesCommitment [32]byte
	SolvencyAssertion     [32]byte
	Publisher             common.Address
	BlockNumber           *big.Int
	Verified              bool
}

func parseVerifierABI() (abi.ABI, error) {
	return abi.JSON(strings.NewReader(verifierABI))
}

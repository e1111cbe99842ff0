package crypto

import (
	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"

	"solvency/internal/domain"
)

// Fixed width encoding shared by leaves and commitments: uint256 values as 32
// big-endian bytes, booleans as one byte, hashes and addresses raw.

func encodeUint(v *uint256.Int) []byte {
	if v == nil {
		v = new(uint256.Int)
	}
	b := v.Bytes32()
	return b[:]
}

func encodeTimestamp(ts uint64) []byte {
	return encodeUint(uint256.NewInt(ts))
}

func encodeBool(v bool) []byte {
	if v {
		return []byte{1}
	}
	return []byte{0}
}

func LeafHash(address common.Address, balance *uint256.Int) common.Hash {
	return ethcrypto.Keccak256Hash(address.Bytes(), encodeUint(balance))
}

// EpochKey derives the registry key of an epoch: keccak256 of its UTF-8 id.
func EpochKey(epochID string) common.Hash {
	return ethcrypto.Keccak256Hash([]byte(epochID))
}

func ReservesCommitment(reserves *uint256.Int, root common.Hash, timestamp uint64) common.Hash {
	return ethcrypto.Keccak256Hash(encodeUint(reserves), root.Bytes(), encodeTimestamp(timestamp))
}

func LiabilitiesCommitment(liabilities *uint256.Int, root common.Hash, timestamp uint64) common.Hash {
	return ethcrypto.Keccak256Hash(encodeUint(liabilities), root.Bytes(), encodeTimestamp(timestamp))
}

func WitnessHash(w domain.Witness) common.Hash {
	return ethcrypto.Keccak256Hash(
		encodeUint(w.ReservesTotal),
		encodeUint(w.LiabilitiesSum),
		w.MerkleRoot.Bytes(),
		encodeTimestamp(w.Timestamp),
		encodeBool(w.IsSolvent),
	)
}

func SolvencyAssertion(reservesCommitment, liabilitiesCommitment common.Hash, isSolvent bool) common.Hash {
	return ethcrypto.Keccak256Hash(reservesCommitment.Bytes(), liabilitiesCommitment.Bytes(), encodeBool(isSolvent))
}

func MasterCommitment(witnessHash, solvencyAssertion, root common.Hash) common.Hash {
	return ethcrypto.Keccak256Hash(witnessHash.Bytes(), solvencyAssertion.Bytes(), root.Bytes())
}

// ComputeChain derives every commitment of a witness. The master commitment
// depends on the others and is computed last.
func ComputeChain(w domain.Witness) domain.CommitmentChain {
	var c domain.CommitmentChain
	c.ReservesCommitment = ReservesCommitment(w.ReservesTotal, w.MerkleRoot, w.Timestamp)
	c.LiabilitiesCommitment = LiabilitiesCommitment(w.LiabilitiesSum, w.MerkleRoot, w.Timestamp)
	c.WitnessHash = WitnessHash(w)
	c.SolvencyAssertion = SolvencyAssertion(c.ReservesCommitment, c.LiabilitiesCommitment, w.IsSolvent)
	c.MasterCommitment = MasterCommitment(c.WitnessHash, c.SolvencyAssertion, w.MerkleRoot)
	return c
}

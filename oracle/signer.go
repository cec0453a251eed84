package oracle

import (
	"crypto/ecdsa"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// personalSignPrefix is the EIP-191 prefix for a 32 byte message. The escrow
// contract recovers the oracle address from this exact prefixed digest, so it
// must never change independently of the contract.
const personalSignPrefix = "\x19Ethereum Signed Message:\n32"

// Attestation is the tuple of payment facts the escrow contract accepts as
// proof that a bill's fiat leg has been paid.
type Attestation struct {
	BillID           int64
	PayerAddress     common.Address
	MakerAddress     common.Address
	FiatAmount       int64 // smallest currency unit (cents)
	PaymentReference string
	Timestamp        int64 // unix seconds at signing time
}

// ReferenceHash returns keccak256 of the raw UTF-8 payment reference. The
// contract stores and compares this hash, never the free text.
func (a Attestation) ReferenceHash() [32]byte {
	var out [32]byte
	copy(out[:], ethcrypto.Keccak256([]byte(a.PaymentReference)))
	return out
}

// Hash computes the message hash over the tightly packed encoding
// (billId uint256, payer address, maker address, fiatAmount uint256,
// referenceHash bytes32, timestamp uint256), matching the contract's
// abi.encodePacked byte for byte.
func (a Attestation) Hash() ([]byte, error) {
	if a.BillID < 0 {
		return nil, fmt.Errorf("negative bill id %d", a.BillID)
	}
	if a.FiatAmount < 0 {
		return nil, fmt.Errorf("negative fiat amount %d", a.FiatAmount)
	}
	refHash := a.ReferenceHash()

	packed := make([]byte, 0, 32+20+20+32+32+32)
	packed = append(packed, common.LeftPadBytes(big.NewInt(a.BillID).Bytes(), 32)...)
	packed = append(packed, a.PayerAddress.Bytes()...)
	packed = append(packed, a.MakerAddress.Bytes()...)
	packed = append(packed, common.LeftPadBytes(big.NewInt(a.FiatAmount).Bytes(), 32)...)
	packed = append(packed, refHash[:]...)
	packed = append(packed, common.LeftPadBytes(big.NewInt(a.Timestamp).Bytes(), 32)...)

	return ethcrypto.Keccak256(packed), nil
}

// Signer holds the oracle private key and produces escrow-release
// attestation signatures. The key is loaded once at startup and is not
// reachable from any other component.
type Signer struct {
	key  *ecdsa.PrivateKey
	addr common.Address
}

// NewSigner parses a hex-encoded secp256k1 private key ("0x" prefix
// optional). An empty or malformed key is a startup error.
func NewSigner(privKeyHex string) (*Signer, error) {
	cleaned := strings.TrimPrefix(strings.TrimSpace(privKeyHex), "0x")
	if cleaned == "" {
		return nil, fmt.Errorf("oracle private key is empty")
	}
	key, err := ethcrypto.HexToECDSA(cleaned)
	if err != nil {
		return nil, fmt.Errorf("parse oracle private key: %w", err)
	}
	return &Signer{
		key:  key,
		addr: ethcrypto.PubkeyToAddress(key.PublicKey),
	}, nil
}

// Address returns the oracle's public address, the value the escrow contract
// is configured with. Safe to log.
func (s *Signer) Address() common.Address {
	return s.addr
}

// Sign produces the personal-sign signature over the attestation's message
// hash and returns it hex encoded with a 0x prefix. The recovery id is
// normalized to 27/28 as expected by the contract's ecrecover.
func (s *Signer) Sign(a Attestation) (string, error) {
	if s == nil || s.key == nil {
		return "", fmt.Errorf("oracle signer not initialized")
	}
	msgHash, err := a.Hash()
	if err != nil {
		return "", err
	}
	digest := ethcrypto.Keccak256([]byte(personalSignPrefix), msgHash)
	sig, err := ethcrypto.Sign(digest, s.key)
	if err != nil {
		return "", fmt.Errorf("sign attestation: %w", err)
	}
	sig[64] += 27
	return "0x" + hex.EncodeToString(sig), nil
}

// RecoverSigner returns the address that produced sigHex over the
// attestation. Used by the startup self-check and tests; it mirrors the
// contract-side recovery.
func RecoverSigner(a Attestation, sigHex string) (common.Address, error) {
	cleaned := strings.TrimPrefix(strings.TrimSpace(sigHex), "0x")
	sig, err := hex.DecodeString(cleaned)
	if err != nil {
		return common.Address{}, fmt.Errorf("decode signature: %w", err)
	}
	if len(sig) != 65 {
		return common.Address{}, fmt.Errorf("signature must be 65 bytes, got %d", len(sig))
	}
	if sig[64] >= 27 {
		sig[64] -= 27
	}
	msgHash, err := a.Hash()
	if err != nil {
		return common.Address{}, err
	}
	digest := ethcrypto.Keccak256([]byte(personalSignPrefix), msgHash)
	pub, err := ethcrypto.SigToPub(digest, sig)
	if err != nil {
		return common.Address{}, fmt.Errorf("recover pubkey: %w", err)
	}
	return ethcrypto.PubkeyToAddress(*pub), nil
}

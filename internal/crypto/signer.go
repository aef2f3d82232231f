package crypto

import (
	"crypto/ecdsa"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// Mutating API calls prove caller identity with an EIP-191 personal
// signature over a canonical message. The message binds the operation name,
// its arguments, and a caller-chosen nonce so a captured signature cannot be
// replayed against a different operation.
//
// Canonical message layout (newline-separated):
//
//	marketd
//	<operation>
//	<tokenID>
//	<amount>
//	<nonce>

// CanonicalMessage builds the message a caller must sign for the given
// operation.
func CanonicalMessage(operation string, tokenID, amount uint64, nonce string) string {
	return fmt.Sprintf("marketd\n%s\n%d\n%d\n%s", operation, tokenID, amount, nonce)
}

// personalHash applies the EIP-191 "Ethereum Signed Message" envelope and
// returns the keccak256 digest that wallets actually sign.
func personalHash(message string) []byte {
	prefixed := fmt.Sprintf("\x19Ethereum Signed Message:\n%d%s", len(message), message)
	return ethcrypto.Keccak256([]byte(prefixed))
}

// Signer signs canonical marketplace messages with a secp256k1 private key.
// The daemon itself only needs it for the operator identity; clients
// typically sign with their own wallets.
type Signer struct {
	privateKey *ecdsa.PrivateKey
	address    common.Address
}

// NewSigner creates a Signer from a hex-encoded secp256k1 private key (with
// or without 0x prefix).
func NewSigner(privateKeyHex string) (*Signer, error) {
	keyHex := strings.TrimPrefix(privateKeyHex, "0x")
	pk, err := ethcrypto.HexToECDSA(keyHex)
	if err != nil {
		return nil, fmt.Errorf("crypto/signer: invalid private key: %w", err)
	}
	return &Signer{
		privateKey: pk,
		address:    ethcrypto.PubkeyToAddress(pk.PublicKey),
	}, nil
}

// Address returns the address derived from the signer's private key.
func (s *Signer) Address() common.Address {
	return s.address
}

// Sign produces a hex-encoded 65-byte signature over the canonical message
// for the given operation.
func (s *Signer) Sign(operation string, tokenID, amount uint64, nonce string) (string, error) {
	digest := personalHash(CanonicalMessage(operation, tokenID, amount, nonce))
	sig, err := ethcrypto.Sign(digest, s.privateKey)
	if err != nil {
		return "", fmt.Errorf("crypto/signer: sign %s: %w", operation, err)
	}
	// Shift the recovery byte to the wallet convention (27/28).
	sig[64] += 27
	return "0x" + hex.EncodeToString(sig), nil
}

// RecoverCaller recovers the address that signed the canonical message for
// the given operation. It accepts recovery bytes in both the raw (0/1) and
// wallet (27/28) conventions.
func RecoverCaller(operation string, tokenID, amount uint64, nonce, signatureHex string) (common.Address, error) {
	sigHex := strings.TrimPrefix(signatureHex, "0x")
	sig, err := hex.DecodeString(sigHex)
	if err != nil {
		return common.Address{}, fmt.Errorf("crypto/signer: invalid signature hex: %w", err)
	}
	if len(sig) != 65 {
		return common.Address{}, fmt.Errorf("crypto/signer: expected 65-byte signature, got %d bytes", len(sig))
	}
	if sig[64] >= 27 {
		sig = append([]byte(nil), sig...)
		sig[64] -= 27
	}

	digest := personalHash(CanonicalMessage(operation, tokenID, amount, nonce))
	pub, err := ethcrypto.SigToPub(digest, sig)
	if err != nil {
		return common.Address{}, fmt.Errorf("crypto/signer: recover: %w", err)
	}
	return ethcrypto.PubkeyToAddress(*pub), nil
}

package handler

import (
	"errors"

	"github.com/ethereum/go-ethereum/common"

	"github.com/mintbay/marketd/internal/crypto"
)

// callerRequest is the identity portion every mutating request body embeds.
// In dev mode the caller field is trusted as-is; with signature enforcement
// on, the caller must also supply an EIP-191 signature over the operation
// fields and a client-chosen nonce.
type callerRequest struct {
	Caller    string `json:"caller"`
	Nonce     string `json:"nonce,omitempty"`
	Signature string `json:"signature,omitempty"`
}

var (
	errBadCaller    = errors.New("handler: missing or invalid caller address")
	errBadSignature = errors.New("handler: signature verification failed")
)

// CallerAuth resolves the acting party for mutating requests.
type CallerAuth struct {
	// RequireSignatures demands an EIP-191 signature on every mutating
	// request. Off by default for local development.
	RequireSignatures bool
}

// Resolve validates the caller address and, when enforcement is on, checks
// that the signature recovers to it for the given operation fields.
func (a CallerAuth) Resolve(op string, tokenID, amount uint64, req callerRequest) (common.Address, error) {
	caller, ok := parseAddress(req.Caller)
	if !ok {
		return common.Address{}, errBadCaller
	}

	if !a.RequireSignatures {
		return caller, nil
	}

	if req.Nonce == "" || req.Signature == "" {
		return common.Address{}, errBadSignature
	}
	recovered, err := crypto.RecoverCaller(op, tokenID, amount, req.Nonce, req.Signature)
	if err != nil || recovered != caller {
		return common.Address{}, errBadSignature
	}
	return caller, nil
}

package crypto

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/crypto"
)

// SignatureLength is the size of a recoverable secp256k1 signature.
const SignatureLength = 65

const requestDomain = "promo-rpc:"

var errSignatureLength = errors.New("crypto: signature must be 65 bytes")

// RequestDigest binds a JSON-RPC method name to the exact call payload the
// client signed.
func RequestDigest(method string, payload []byte) []byte {
	msg := make([]byte, 0, len(requestDomain)+len(method)+1+len(payload))
	msg = append(msg, requestDomain...)
	msg = append(msg, method...)
	msg = append(msg, ':')
	msg = append(msg, payload...)
	return crypto.Keccak256(msg)
}

// SignRequest produces a recoverable signature over RequestDigest.
func SignRequest(key *PrivateKey, method string, payload []byte) ([]byte, error) {
	if key == nil || key.PrivateKey == nil {
		return nil, errors.New("crypto: nil private key")
	}
	return crypto.Sign(RequestDigest(method, payload), key.PrivateKey)
}

// RecoverRequestSigner returns the participant address that signed payload
// for method. Both 0/1 and 27/28 recovery ids are accepted.
func RecoverRequestSigner(method string, payload, sig []byte) (Address, error) {
	if len(sig) != SignatureLength {
		return Address{}, errSignatureLength
	}
	normalized := make([]byte, SignatureLength)
	copy(normalized, sig)
	if normalized[64] >= 27 {
		normalized[64] -= 27
	}
	pub, err := crypto.SigToPub(RequestDigest(method, payload), normalized)
	if err != nil {
		return Address{}, fmt.Errorf("crypto: recover signer: %w", err)
	}
	return AddressFromRaw(crypto.PubkeyToAddress(*pub)), nil
}

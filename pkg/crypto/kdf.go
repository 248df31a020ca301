// kdf.go implements key derivation using SHAKE-256 (FIPS 202), an
// extendable-output function based on the Keccak sponge construction.
//
// The construction length-prefixes the domain separator, the input count and
// every input with 4-byte big-endian integers, so the encoding of
// (domain, inputs...) into the sponge is unambiguous: no two distinct input
// vectors absorb the same byte stream. This is what makes "missing input
// treated as zero-length" safe in hybrid derivation: an absent secret and an
// empty secret are the same thing, and neither can collide with a present one.
package crypto

import (
	"encoding/binary"

	"golang.org/x/crypto/sha3"

	qerrors "github.com/surya0830/quantum-safe-data-pipelines/internal/errors"
)

// maxKDFOutput bounds a single derivation request (1 MiB).
const maxKDFOutput = 1 << 20

// DeriveKey derives outputLen bytes from a single input under a domain
// separator:
//
//	output = SHAKE-256(len(domain) || domain || len(input) || input, outputLen)
func DeriveKey(domain string, input []byte, outputLen int) ([]byte, error) {
	return DeriveKeyMultiple(domain, [][]byte{input}, outputLen)
}

// DeriveKeyMultiple derives outputLen bytes from an ordered list of inputs
// under a domain separator. The input order is significant: callers that need
// a canonical combination (the hybrid deriver) fix the order themselves.
func DeriveKeyMultiple(domain string, inputs [][]byte, outputLen int) ([]byte, error) {
	if outputLen <= 0 || outputLen > maxKDFOutput {
		return nil, qerrors.NewPrimitiveError("kdf", "DeriveKeyMultiple", qerrors.ErrInvalidKeySize)
	}

	h := sha3.NewShake256()
	lenBuf := make([]byte, 4)

	domainBytes := []byte(domain)
	binary.BigEndian.PutUint32(lenBuf, uint32(len(domainBytes)))
	h.Write(lenBuf)
	h.Write(domainBytes)

	binary.BigEndian.PutUint32(lenBuf, uint32(len(inputs)))
	h.Write(lenBuf)

	for _, input := range inputs {
		binary.BigEndian.PutUint32(lenBuf, uint32(len(input)))
		h.Write(lenBuf)
		h.Write(input)
	}

	output := make([]byte, outputLen)
	_, _ = h.Read(output) // SHAKE256.Read never fails

	return output, nil
}

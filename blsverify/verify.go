// Package blsverify implements component B of spec.md: single-signature and
// fast-aggregate BLS verification. Both operations are total functions over
// their inputs — malformed pubkeys/signatures fail closed to `false` rather
// than panicking or returning an error, so a bad signature only ever turns
// into a rejected operation upstream, never a crashed transition.
package blsverify

import (
	"github.com/sirupsen/logrus"
	blst "github.com/supranational/blst/bindings/go"
)

var log = logrus.WithField("prefix", "blsverify")

// dst is the ciphersuite domain-separation tag for the min-pubkey-size BLS
// variant used on the beacon chain, matching the teacher's shared/bls/blst
// backend.
const dst = "BLS_SIG_BLS12381G2_XMD:SHA-256_SSWU_RO_POP_"

// Verify checks a single BLS signature over message under pubkey. It never
// panics: a malformed pubkey or signature is treated as a failed
// verification.
func Verify(pubkey, message, signature []byte) bool {
	defer func() {
		if r := recover(); r != nil {
			log.WithField("panic", r).Warn("recovered from malformed signature input")
		}
	}()
	pk := new(blst.P1Affine).Uncompress(pubkey)
	if pk == nil || !pk.KeyValidate() {
		return false
	}
	sig := new(blst.P2Affine).Uncompress(signature)
	if sig == nil {
		return false
	}
	return sig.Verify(true, pk, false, message, []byte(dst))
}

// FastAggregateVerify checks that signature is a valid aggregate of each
// pubkey in pubkeys signing the same message. Per the spec, an empty
// pubkeys list always fails.
func FastAggregateVerify(pubkeys [][]byte, message, signature []byte) bool {
	if len(pubkeys) == 0 {
		return false
	}
	defer func() {
		if r := recover(); r != nil {
			log.WithField("panic", r).Warn("recovered from malformed signature input")
		}
	}()
	pks := make([]*blst.P1Affine, len(pubkeys))
	for i, raw := range pubkeys {
		pk := new(blst.P1Affine).Uncompress(raw)
		if pk == nil {
			return false
		}
		pks[i] = pk
	}
	sig := new(blst.P2Affine).Uncompress(signature)
	if sig == nil {
		return false
	}
	return sig.FastAggregateVerify(true, pks, message, []byte(dst))
}

// VerifyMultipleSignatures batch-verifies independent (pubkey, message,
// signature) triples in one pairing computation, used by deposit processing
// to verify many deposit-signing-root signatures at once before falling
// back to per-deposit verification on failure (spec.md §4.G Deposit).
func VerifyMultipleSignatures(pubkeys [][]byte, messages [][32]byte, signatures [][]byte) bool {
	if len(pubkeys) != len(messages) || len(pubkeys) != len(signatures) {
		return false
	}
	if len(pubkeys) == 0 {
		return true
	}
	defer func() {
		if r := recover(); r != nil {
			log.WithField("panic", r).Warn("recovered from malformed signature input")
		}
	}()
	pks := make([]*blst.P1Affine, len(pubkeys))
	sigs := make([]*blst.P2Affine, len(signatures))
	msgs := make([][]byte, len(messages))
	for i := range pubkeys {
		pk := new(blst.P1Affine).Uncompress(pubkeys[i])
		if pk == nil {
			return false
		}
		pks[i] = pk
		sig := new(blst.P2Affine).Uncompress(signatures[i])
		if sig == nil {
			return false
		}
		sigs[i] = sig
		msgs[i] = messages[i][:]
	}
	randGen := blst.RandGenerator(nil)
	return blst.P2AffinesVerifyMultipleAggregateSignatures(msgs, nil, pks, false, sigs, false, []byte(dst), randGen, 64)
}

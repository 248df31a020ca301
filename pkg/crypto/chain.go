// chain.go implements the two-stage provider chain.
//
// Precedence rule: every operation is attempted on the native backend first;
// only if the native stage returns an error is the stub consulted. The chain
// never swallows the switch silently: each result increments a per-stage
// counter, the fallback path logs a warning through the optional logger, and
// Stats exposes which stage served how many requests.
//
// The two stages are not key-compatible: a key pair generated while the
// native stage was healthy cannot be used by the stub. The chain therefore
// reports both stage errors when the fallback also fails, so the caller can
// tell a degraded backend from incompatible key material.
package crypto

import (
	"fmt"
	"sync/atomic"

	qerrors "github.com/surya0830/quantum-safe-data-pipelines/internal/errors"
)

// Stage identifies which chain stage served a request.
type Stage uint8

const (
	// StageNative is the primary, real-implementation stage.
	StageNative Stage = iota

	// StageStub is the educational fallback stage.
	StageStub
)

// String returns a human-readable stage name.
func (s Stage) String() string {
	if s == StageNative {
		return "native"
	}
	return "stub"
}

// ChainStats counts requests served per stage.
type ChainStats struct {
	NativeServed uint64
	StubServed   uint64
	BothFailed   uint64
}

// FallbackObserver is notified whenever the chain falls back to the stub
// stage. Implementations must be safe for concurrent use.
type FallbackObserver func(op string, nativeErr error)

// ChainProvider is a native-first provider with stub fallback.
type ChainProvider struct {
	native   Provider
	stub     Provider
	observer FallbackObserver

	nativeServed atomic.Uint64
	stubServed   atomic.Uint64
	bothFailed   atomic.Uint64
}

var _ Provider = (*ChainProvider)(nil)

// OpenChain opens a native-first chain. The stub stage is seeded from
// opts.StubSeed so degraded-mode behavior stays reproducible.
func OpenChain(opts ProviderOptions) (*ChainProvider, error) {
	native, err := OpenNativeProvider(opts.suite())
	if err != nil {
		return nil, err
	}
	return &ChainProvider{
		native: native,
		stub:   OpenStubProvider(opts.StubSeed, opts.suite()),
	}, nil
}

// SetFallbackObserver installs the fallback notification hook. Call before
// sharing the chain across goroutines.
func (c *ChainProvider) SetFallbackObserver(fn FallbackObserver) {
	c.observer = fn
}

// Name identifies the backend.
func (c *ChainProvider) Name() string { return "chain" }

// Stats returns per-stage service counts.
func (c *ChainProvider) Stats() ChainStats {
	return ChainStats{
		NativeServed: c.nativeServed.Load(),
		StubServed:   c.stubServed.Load(),
		BothFailed:   c.bothFailed.Load(),
	}
}

// fallback runs op on the native stage and, on error, retries on the stub.
func fallback[T any](c *ChainProvider, op string, fn func(Provider) (T, error)) (T, error) {
	out, nativeErr := fn(c.native)
	if nativeErr == nil {
		c.nativeServed.Add(1)
		return out, nil
	}

	if c.observer != nil {
		c.observer(op, nativeErr)
	}

	out, stubErr := fn(c.stub)
	if stubErr == nil {
		c.stubServed.Add(1)
		return out, nil
	}

	c.bothFailed.Add(1)
	var zero T
	return zero, qerrors.NewPrimitiveError("chain", op,
		fmt.Errorf("%w: native: %v; stub: %v", qerrors.ErrProviderUnavailable, nativeErr, stubErr))
}

type kemPair struct{ pub, priv []byte }

type encapResult struct {
	ct []byte
	ss *SharedSecret
}

// ClassicalKeyExchange serves from the first healthy stage.
func (c *ChainProvider) ClassicalKeyExchange() (*SharedSecret, error) {
	return fallback(c, "ClassicalKeyExchange", func(p Provider) (*SharedSecret, error) {
		return p.ClassicalKeyExchange()
	})
}

// KEMGenerateKeyPair serves from the first healthy stage.
func (c *ChainProvider) KEMGenerateKeyPair() ([]byte, []byte, error) {
	pair, err := fallback(c, "KEMGenerateKeyPair", func(p Provider) (kemPair, error) {
		pub, priv, err := p.KEMGenerateKeyPair()
		return kemPair{pub, priv}, err
	})
	return pair.pub, pair.priv, err
}

// KEMEncapsulate serves from the first healthy stage.
func (c *ChainProvider) KEMEncapsulate(publicKey []byte) ([]byte, *SharedSecret, error) {
	res, err := fallback(c, "KEMEncapsulate", func(p Provider) (encapResult, error) {
		ct, ss, err := p.KEMEncapsulate(publicKey)
		return encapResult{ct, ss}, err
	})
	return res.ct, res.ss, err
}

// KEMDecapsulate serves from the first healthy stage.
func (c *ChainProvider) KEMDecapsulate(privateKey, ciphertext []byte) (*SharedSecret, error) {
	return fallback(c, "KEMDecapsulate", func(p Provider) (*SharedSecret, error) {
		return p.KEMDecapsulate(privateKey, ciphertext)
	})
}

// SignGenerateKeyPair serves from the first healthy stage.
func (c *ChainProvider) SignGenerateKeyPair() ([]byte, []byte, error) {
	pair, err := fallback(c, "SignGenerateKeyPair", func(p Provider) (kemPair, error) {
		pub, priv, err := p.SignGenerateKeyPair()
		return kemPair{pub, priv}, err
	})
	return pair.pub, pair.priv, err
}

// Sign serves from the first healthy stage.
func (c *ChainProvider) Sign(privateKey, message []byte) ([]byte, error) {
	return fallback(c, "Sign", func(p Provider) ([]byte, error) {
		return p.Sign(privateKey, message)
	})
}

// Verify serves from the first healthy stage.
func (c *ChainProvider) Verify(publicKey, message, signature []byte) (bool, error) {
	return fallback(c, "Verify", func(p Provider) (bool, error) {
		return p.Verify(publicKey, message, signature)
	})
}

// AEADEncrypt serves from the first healthy stage.
func (c *ChainProvider) AEADEncrypt(key, plaintext, associatedData []byte) ([]byte, error) {
	return fallback(c, "AEADEncrypt", func(p Provider) ([]byte, error) {
		return p.AEADEncrypt(key, plaintext, associatedData)
	})
}

// AEADDecrypt serves from the first healthy stage. An authentication failure
// does not fall back: a bad tag is a bad tag on every backend.
func (c *ChainProvider) AEADDecrypt(key, ciphertext, associatedData []byte) ([]byte, error) {
	out, err := c.native.AEADDecrypt(key, ciphertext, associatedData)
	if err == nil {
		c.nativeServed.Add(1)
		return out, nil
	}
	if qerrors.Is(err, qerrors.ErrAuthenticationFailed) {
		return nil, err
	}
	if c.observer != nil {
		c.observer("AEADDecrypt", err)
	}
	out, stubErr := c.stub.AEADDecrypt(key, ciphertext, associatedData)
	if stubErr == nil {
		c.stubServed.Add(1)
		return out, nil
	}
	c.bothFailed.Add(1)
	return nil, qerrors.NewPrimitiveError("chain", "AEADDecrypt",
		fmt.Errorf("%w: native: %v; stub: %v", qerrors.ErrProviderUnavailable, err, stubErr))
}

// Close releases both stages, reporting the first error encountered.
func (c *ChainProvider) Close() error {
	err := c.native.Close()
	if cerr := c.stub.Close(); err == nil {
		err = cerr
	}
	return err
}

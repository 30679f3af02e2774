package loginguard

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrEthical07/loginguard/password"
	"go.uber.org/zap"
)

// Verification is the outcome of comparing one secret.
type Verification struct {
	Matched    bool
	AccountRef string
	// Identity and Name are copied from the stored record on a match.
	Identity string
	Name     string
	// Compared is true when a full-cost hash comparison ran, against the
	// stored hash or the dummy. Only such durations are representative of a
	// real login.
	Compared bool
	// NeedsRehash is true when the stored hash uses a legacy scheme or weaker
	// parameters than the primary hasher.
	NeedsRehash bool
}

// CredentialVerifier compares a submitted secret with the stored credential.
//
// Unknown identities, unusable stored hashes and secrets a scheme refuses to
// compare are all charged a comparison against a dummy hash produced at
// construction with the primary scheme, so every rejection costs one full
// hash comparison. A CredentialVerifier holds no per-request
// state and is safe for concurrent use.
type CredentialVerifier struct {
	store  CredentialStore
	hasher password.Hasher
	dummy  string
	filler string
	logger *zap.Logger
}

// NewCredentialVerifier precomputes the dummy hash with hasher.
func NewCredentialVerifier(store CredentialStore, hasher password.Hasher, logger *zap.Logger) (*CredentialVerifier, error) {
	if store == nil {
		return nil, errors.New("credential store required")
	}
	if hasher == nil {
		return nil, errors.New("password hasher required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	dummy, err := password.DummyHash(hasher)
	if err != nil {
		return nil, fmt.Errorf("dummy hash: %w", err)
	}
	filler, err := password.RandomSecret()
	if err != nil {
		return nil, fmt.Errorf("filler secret: %w", err)
	}

	return &CredentialVerifier{
		store:  store,
		hasher: hasher,
		dummy:  dummy,
		filler: filler,
		logger: logger,
	}, nil
}

// Verify reports whether secret matches the credential stored for identity.
//
// The returned error is non-nil only for store failures other than
// ErrCredentialNotFound, and then wraps ErrStoreUnavailable; no comparison
// result is produced in that case.
func (v *CredentialVerifier) Verify(ctx context.Context, identity, secret string) (Verification, error) {
	rec, err := v.store.FindByIdentity(ctx, identity)
	switch {
	case errors.Is(err, ErrCredentialNotFound):
		return Verification{Compared: v.burn(secret)}, nil
	case err != nil:
		return Verification{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	case rec == nil:
		return Verification{Compared: v.burn(secret)}, nil
	}

	ok, err := v.hasher.Verify(secret, rec.SecretHash)
	if err != nil {
		// A scheme that refuses the secret returns before hashing anything.
		if !errors.Is(err, password.ErrSecretTooLong) {
			v.logger.Warn("stored credential hash unusable",
				zap.String("account_ref", rec.AccountRef),
				zap.Error(err),
			)
		}
		return Verification{Compared: v.burn(secret)}, nil
	}
	if !ok {
		return Verification{Compared: true}, nil
	}

	needsRehash, err := v.hasher.NeedsUpgrade(rec.SecretHash)
	if err != nil {
		needsRehash = false
	}

	return Verification{
		Matched:     true,
		AccountRef:  rec.AccountRef,
		Identity:    rec.Identity,
		Name:        rec.Name,
		NeedsRehash: needsRehash,
		Compared:    true,
	}, nil
}

// burn spends one comparison against the dummy hash. A secret the primary
// scheme will not hash is replaced by the filler so the comparison still
// runs. It reports whether a full comparison took place.
func (v *CredentialVerifier) burn(secret string) bool {
	_, err := v.hasher.Verify(secret, v.dummy)
	if errors.Is(err, password.ErrSecretTooLong) {
		_, err = v.hasher.Verify(v.filler, v.dummy)
	}
	return err == nil
}

package security

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/crypto/argon2"

	"github.com/jupiterclapton/agora/internal/core/ports"
)

var (
	ErrPasswordMismatch = errors.New("invalid password")
	ErrInvalidHash      = errors.New("invalid hash format")
	ErrIncompatible     = errors.New("incompatible argon2 version")
	ErrWeakParams       = errors.New("argon2 params below minimum")
)

const phcPrefix = "$argon2id$"

// PasswordCost regroupe le coût argon2id. Les champs à zéro prennent la valeur de DefaultCost.
type PasswordCost struct {
	MemoryKiB   uint32
	Iterations  uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// DefaultCost suit la recommandation OWASP pour argon2id (64 MiB, t=3).
var DefaultCost = PasswordCost{
	MemoryKiB:   64 * 1024,
	Iterations:  3,
	Parallelism: 2,
	SaltLength:  16,
	KeyLength:   32,
}

func (c PasswordCost) withDefaults() PasswordCost {
	if c.MemoryKiB == 0 {
		c.MemoryKiB = DefaultCost.MemoryKiB
	}
	if c.Iterations == 0 {
		c.Iterations = DefaultCost.Iterations
	}
	if c.Parallelism == 0 {
		c.Parallelism = DefaultCost.Parallelism
	}
	if c.SaltLength == 0 {
		c.SaltLength = DefaultCost.SaltLength
	}
	if c.KeyLength == 0 {
		c.KeyLength = DefaultCost.KeyLength
	}
	return c
}

// validate refuse ce que argon2 accepterait mais qui n'a plus de valeur de sécurité.
func (c PasswordCost) validate() error {
	switch {
	case c.MemoryKiB < 8*uint32(c.Parallelism):
		return fmt.Errorf("%w: memory must be at least 8 KiB per lane", ErrWeakParams)
	case c.SaltLength < 8:
		return fmt.Errorf("%w: salt must be at least 8 bytes", ErrWeakParams)
	case c.KeyLength < 16:
		return fmt.Errorf("%w: key must be at least 16 bytes", ErrWeakParams)
	}
	return nil
}

// Argon2Hasher hache les mots de passe des comptes au format PHC.
type Argon2Hasher struct {
	cost PasswordCost
}

var _ ports.PasswordHasher = (*Argon2Hasher)(nil)

func NewArgon2Hasher(cost PasswordCost) (*Argon2Hasher, error) {
	cost = cost.withDefaults()
	if err := cost.validate(); err != nil {
		return nil, err
	}
	return &Argon2Hasher{cost: cost}, nil
}

// Hash produit "$argon2id$v=19$m=<KiB>,t=<n>,p=<n>$<salt>$<key>" (base64 sans padding).
func (a *Argon2Hasher) Hash(password string) (string, error) {
	salt := make([]byte, a.cost.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("read salt: %w", err)
	}
	key := a.derive(password, salt, a.cost)

	var b strings.Builder
	b.WriteString(phcPrefix)
	b.WriteString("v=" + strconv.Itoa(argon2.Version))
	fmt.Fprintf(&b, "$m=%d,t=%d,p=%d$", a.cost.MemoryKiB, a.cost.Iterations, a.cost.Parallelism)
	b.WriteString(base64.RawStdEncoding.EncodeToString(salt))
	b.WriteByte('$')
	b.WriteString(base64.RawStdEncoding.EncodeToString(key))
	return b.String(), nil
}

// Compare dérive avec le coût inscrit dans le hash stocké, pas avec le coût courant.
func (a *Argon2Hasher) Compare(stored, password string) error {
	h, err := parsePHC(stored)
	if err != nil {
		return err
	}
	if subtle.ConstantTimeCompare(h.key, a.derive(password, h.salt, h.cost)) != 1 {
		return ErrPasswordMismatch
	}
	return nil
}

// NeedsRehash signale un hash produit avec un autre coût que celui configuré.
// Un hash illisible n'est pas à re-hacher : Compare l'aura déjà refusé.
func (a *Argon2Hasher) NeedsRehash(stored string) bool {
	h, err := parsePHC(stored)
	if err != nil {
		return false
	}
	return h.cost != a.cost
}

func (a *Argon2Hasher) derive(password string, salt []byte, c PasswordCost) []byte {
	return argon2.IDKey([]byte(password), salt, c.Iterations, c.MemoryKiB, c.Parallelism, c.KeyLength)
}

type phcHash struct {
	cost PasswordCost
	salt []byte
	key  []byte
}

func parsePHC(s string) (*phcHash, error) {
	rest, ok := strings.CutPrefix(s, phcPrefix)
	if !ok {
		return nil, ErrInvalidHash
	}
	// v=19 $ m=..,t=..,p=.. $ salt $ key
	parts := strings.SplitN(rest, "$", 4)
	if len(parts) != 4 {
		return nil, ErrInvalidHash
	}

	version, ok := strings.CutPrefix(parts[0], "v=")
	if !ok {
		return nil, ErrInvalidHash
	}
	if v, err := strconv.Atoi(version); err != nil {
		return nil, fmt.Errorf("%w: version %q", ErrInvalidHash, version)
	} else if v != argon2.Version {
		return nil, ErrIncompatible
	}

	var h phcHash
	if err := h.cost.parseParams(parts[1]); err != nil {
		return nil, err
	}

	var err error
	if h.salt, err = base64.RawStdEncoding.DecodeString(parts[2]); err != nil {
		return nil, fmt.Errorf("%w: salt: %v", ErrInvalidHash, err)
	}
	if h.key, err = base64.RawStdEncoding.DecodeString(parts[3]); err != nil {
		return nil, fmt.Errorf("%w: key: %v", ErrInvalidHash, err)
	}
	if len(h.salt) == 0 || len(h.key) == 0 {
		return nil, ErrInvalidHash
	}
	h.cost.SaltLength = uint32(len(h.salt))
	h.cost.KeyLength = uint32(len(h.key))
	return &h, nil
}

// parseParams lit "m=65536,t=3,p=2" ; les trois clés sont obligatoires.
func (c *PasswordCost) parseParams(s string) error {
	seen := 0
	for _, kv := range strings.Split(s, ",") {
		k, v, ok := strings.Cut(kv, "=")
		if !ok {
			return fmt.Errorf("%w: param %q", ErrInvalidHash, kv)
		}
		n, err := strconv.ParseUint(v, 10, 32)
		if err != nil || n == 0 {
			return fmt.Errorf("%w: param %q", ErrInvalidHash, kv)
		}
		switch k {
		case "m":
			c.MemoryKiB = uint32(n)
		case "t":
			c.Iterations = uint32(n)
		case "p":
			if n > 255 {
				return fmt.Errorf("%w: parallelism %d", ErrInvalidHash, n)
			}
			c.Parallelism = uint8(n)
		default:
			return fmt.Errorf("%w: unknown param %q", ErrInvalidHash, k)
		}
		seen++
	}
	if seen != 3 {
		return ErrInvalidHash
	}
	return nil
}

// Package services contains server-side business logic. UserService owns
// enrollment, PIN verification, PIN reset and face matching against the
// user store.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/dmitrijs2005/visionlock/internal/common"
	"github.com/dmitrijs2005/visionlock/internal/cryptox"
	"github.com/dmitrijs2005/visionlock/internal/dbx"
	"github.com/dmitrijs2005/visionlock/internal/face"
	"github.com/dmitrijs2005/visionlock/internal/logging"
	"github.com/dmitrijs2005/visionlock/internal/server/auth"
	"github.com/dmitrijs2005/visionlock/internal/server/config"
	"github.com/dmitrijs2005/visionlock/internal/server/models"
	"github.com/dmitrijs2005/visionlock/internal/server/repositories/repomanager"
	"github.com/google/uuid"
)

const maxIdentityLength = 64

// UserService is safe for concurrent use. Reads run in parallel; writes
// (register, reset) are serialized by writeMu on top of the unique
// constraint on identity.
type UserService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	matcher     *face.Matcher
	hasher      cryptox.Hasher
	log         logging.Logger

	jwtSecret             []byte
	tokenValidityDuration time.Duration
	minPinLength          int

	writeMu   sync.Mutex
	dummyOnce sync.Once
	dummyHash string
}

func NewUserService(db *sql.DB, m repomanager.RepositoryManager, cfg *config.Config, log logging.Logger) *UserService {
	return &UserService{
		db:                    db,
		repomanager:           m,
		matcher:               face.NewMatcher(cfg.MatchThresholds()),
		hasher:                cryptox.DefaultHasher,
		log:                   log.With("module", "users"),
		jwtSecret:             []byte(cfg.SecretKey),
		tokenValidityDuration: cfg.TokenValidityDuration,
		minPinLength:          max(cfg.MinPinLength, 1),
	}
}

// MatchFace compares emb against every stored user under policy.
func (s *UserService) MatchFace(ctx context.Context, emb face.Embedding, policy face.Policy) (face.Result, error) {
	return s.match(ctx, s.db, emb, policy)
}

func (s *UserService) match(ctx context.Context, db dbx.DBTX, emb face.Embedding, policy face.Policy) (face.Result, error) {
	if err := emb.Validate(); err != nil {
		return face.Result{}, err
	}

	users, err := s.repomanager.Users(db).List(ctx)
	if err != nil {
		s.log.Error(ctx, "list users", "error", err)
		return face.Result{}, common.ErrorInternal
	}

	candidates := make([]face.Candidate, len(users))
	for i, u := range users {
		candidates[i] = face.Candidate{Identity: u.Identity, Embedding: u.Embedding}
	}

	res, err := s.matcher.Match(emb, candidates, policy)
	if err != nil {
		return face.Result{}, err
	}
	for _, sk := range res.Skipped {
		s.log.Warn(ctx, "embedding skipped",
			"identity", sk.Identity, "reason", sk.Reason.String(), "len", sk.Len, "want_len", len(emb))
	}
	return res, nil
}

// Register enrolls a new user. The embedding and PIN hash are written in
// one row, inside one transaction that also checks for a duplicate face.
func (s *UserService) Register(ctx context.Context, identity, pin string, emb face.Embedding) (*models.User, error) {
	identity = strings.TrimSpace(identity)
	if err := validateIdentity(identity); err != nil {
		return nil, err
	}
	if err := s.validatePin(pin); err != nil {
		return nil, err
	}
	if err := emb.Validate(); err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash(pin)
	if err != nil {
		s.log.Error(ctx, "hash pin", "error", err)
		return nil, common.ErrorInternal
	}

	user := &models.User{
		ID:        uuid.NewString(),
		Identity:  identity,
		Embedding: emb,
		PinHash:   hash,
		CreatedAt: time.Now().UTC(),
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		res, err := s.match(ctx, tx, emb, face.Authenticate)
		if err != nil {
			return err
		}
		if res.Matched {
			s.log.Info(ctx, "enrollment rejected, face already enrolled", "identity", identity)
			return common.ErrDuplicateFace
		}

		inserted, err := s.repomanager.Users(tx).InsertIfAbsent(ctx, user)
		if err != nil {
			return err
		}
		if !inserted {
			return common.ErrDuplicateIdentity
		}
		return nil
	})
	if err != nil {
		return nil, s.collapse(ctx, "register", err,
			common.ErrDuplicateFace, common.ErrDuplicateIdentity, face.ErrInvalidEmbedding)
	}

	s.log.Info(ctx, "user enrolled", "identity", identity, "seq", user.Seq)
	return user, nil
}

// CheckPin reports whether pin is identity's PIN. An empty or unknown
// identity is verified against a throwaway hash so both paths cost the same.
func (s *UserService) CheckPin(ctx context.Context, identity, pin string) (bool, error) {
	if identity == "" {
		s.verifyDummy(pin)
		return false, nil
	}

	user, err := s.repomanager.Users(s.db).GetByIdentity(ctx, identity)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			s.verifyDummy(pin)
			return false, nil
		}
		s.log.Error(ctx, "get user", "error", err)
		return false, common.ErrorInternal
	}

	ok, err := cryptox.Verify(user.PinHash, pin)
	if err != nil {
		s.log.Error(ctx, "verify pin", "identity", identity, "error", err)
		return false, common.ErrorInternal
	}
	return ok, nil
}

// VerifyLogin checks identity and PIN and returns a signed login token.
// Unknown identities yield common.ErrorNotFound and wrong PINs
// common.ErrorUnauthorized.
func (s *UserService) VerifyLogin(ctx context.Context, identity, pin string) (string, error) {
	user, err := s.repomanager.Users(s.db).GetByIdentity(ctx, identity)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			s.verifyDummy(pin)
			return "", common.ErrorNotFound
		}
		s.log.Error(ctx, "get user", "error", err)
		return "", common.ErrorInternal
	}

	ok, err := cryptox.Verify(user.PinHash, pin)
	if err != nil {
		s.log.Error(ctx, "verify pin", "identity", identity, "error", err)
		return "", common.ErrorInternal
	}
	if !ok {
		return "", common.ErrorUnauthorized
	}
	return s.IssueToken(identity)
}

// ResetPin finds the user whose face is nearest to emb (Identify policy)
// and replaces their PIN hash. No match yields common.ErrorNotFound.
func (s *UserService) ResetPin(ctx context.Context, emb face.Embedding, newPin string) (string, error) {
	if err := s.validatePin(newPin); err != nil {
		return "", err
	}
	if err := emb.Validate(); err != nil {
		return "", err
	}

	hash, err := s.hasher.Hash(newPin)
	if err != nil {
		s.log.Error(ctx, "hash pin", "error", err)
		return "", common.ErrorInternal
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	var identity string
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		res, err := s.match(ctx, tx, emb, face.Identify)
		if err != nil {
			return err
		}
		if !res.Matched {
			return common.ErrorNotFound
		}
		identity = res.Identity
		return s.repomanager.Users(tx).UpdatePinHash(ctx, identity, hash)
	})
	if err != nil {
		return "", s.collapse(ctx, "reset pin", err, common.ErrorNotFound, face.ErrInvalidEmbedding)
	}

	s.log.Info(ctx, "pin reset", "identity", identity)
	return identity, nil
}

// List returns every enrolled user in registration order.
func (s *UserService) List(ctx context.Context) ([]models.User, error) {
	users, err := s.repomanager.Users(s.db).List(ctx)
	if err != nil {
		s.log.Error(ctx, "list users", "error", err)
		return nil, common.ErrorInternal
	}
	return users, nil
}

func (s *UserService) IssueToken(identity string) (string, error) {
	tok, err := auth.GenerateToken(identity, s.jwtSecret, s.tokenValidityDuration)
	if err != nil {
		return "", common.ErrorInternal
	}
	return tok, nil
}

// IdentityFromToken validates a login token.
func (s *UserService) IdentityFromToken(token string) (string, error) {
	return auth.GetIdentityFromToken(token, s.jwtSecret)
}

// --- helpers below ---

// collapse passes through the listed domain errors and reduces everything
// else to common.ErrorInternal after logging it.
func (s *UserService) collapse(ctx context.Context, op string, err error, keep ...error) error {
	for _, k := range keep {
		if errors.Is(err, k) {
			return k
		}
	}
	if errors.Is(err, common.ErrorInternal) {
		return common.ErrorInternal
	}
	s.log.Error(ctx, op, "error", err)
	return common.ErrorInternal
}

func (s *UserService) verifyDummy(pin string) {
	s.dummyOnce.Do(func() {
		seed, err := common.MakeRandHexString(16)
		if err != nil {
			return
		}
		if h, err := s.hasher.Hash(seed); err == nil {
			s.dummyHash = h
		}
	})
	if s.dummyHash != "" {
		_, _ = cryptox.Verify(s.dummyHash, pin)
	}
}

func validateIdentity(identity string) error {
	if identity == "" {
		return fmt.Errorf("%w: identity is required", common.ErrorValidation)
	}
	if utf8.RuneCountInString(identity) > maxIdentityLength {
		return fmt.Errorf("%w: identity longer than %d characters", common.ErrorValidation, maxIdentityLength)
	}
	return nil
}

func (s *UserService) validatePin(pin string) error {
	if len(pin) < s.minPinLength {
		return fmt.Errorf("%w: pin must have at least %d digits", common.ErrorValidation, s.minPinLength)
	}
	for _, r := range pin {
		if r < '0' || r > '9' {
			return fmt.Errorf("%w: pin must be digits only", common.ErrorValidation)
		}
	}
	return nil
}

package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"

	"github.com/shandysiswandi/finadvise/internal/pkg/goerror"
	"github.com/shandysiswandi/finadvise/internal/pkg/jwt"
)

type ExchangeSessionInput struct {
	TokenHash string `validate:"required,max=256"`
}

type SessionIdentity struct {
	ID          int64
	LoginAlias  string
	PhoneNumber string
	Role        string
}

type ExchangeSessionOutput struct {
	AccessToken string
	TokenType   string
	ExpiresIn   int64
	Identity    SessionIdentity
}

// ExchangeSession trades a login token for an access token. A login token
// works once.
func (s *Usecase) ExchangeSession(ctx context.Context, in ExchangeSessionInput) (*ExchangeSessionOutput, error) {
	ctx, span := s.startSpan(ctx, "ExchangeSession")
	defer span.End()

	in.TokenHash = strings.TrimSpace(in.TokenHash)

	if err := s.validator.Validate(in); err != nil {
		return nil, goerror.NewInvalidInput(err)
	}

	digest, err := s.digest(in.TokenHash)
	if err != nil {
		slog.ErrorContext(ctx, "failed to hash login token", "error", err)
		return nil, goerror.NewServer(err)
	}

	identity, err := s.repoDirectory.ConsumeLoginToken(ctx, digest, s.clock.Now())
	if errors.Is(err, goerror.ErrNotFound) {
		return nil, goerror.NewBusiness("Invalid or expired login token", goerror.CodeUnauthorized)
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to repo consume login token", "error", err)
		return nil, goerror.NewServer(err)
	}

	role := identity.Role
	if role == "" {
		role = s.settings.DefaultRole
	}

	accessToken, err := s.jwt.Generate(jwt.Subject{
		IdentityID: identity.ID,
		LoginAlias: identity.LoginAlias,
		Phone:      identity.PhoneKey,
		Role:       role,
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to generate access token", "identity_id", identity.ID, "error", err)
		return nil, goerror.NewServer(err)
	}

	return &ExchangeSessionOutput{
		AccessToken: accessToken,
		TokenType:   "Bearer",
		ExpiresIn:   int64(s.jwt.TTL().Seconds()),
		Identity: SessionIdentity{
			ID:          identity.ID,
			LoginAlias:  identity.LoginAlias,
			PhoneNumber: identity.PhoneKey,
			Role:        role,
		},
	}, nil
}

// SessionInfo returns the identity carried by the authenticated request.
func (s *Usecase) SessionInfo(ctx context.Context) (*SessionIdentity, error) {
	_, span := s.startSpan(ctx, "SessionInfo")
	defer span.End()

	clm := jwt.GetAuth(ctx)
	if clm == nil {
		return nil, goerror.NewBusiness("Authentication required", goerror.CodeUnauthorized)
	}

	id := clm.IdentityID
	if id == 0 && clm.Subject != "" {
		id, _ = strconv.ParseInt(clm.Subject, 10, 64)
	}

	return &SessionIdentity{
		ID:          id,
		LoginAlias:  clm.LoginAlias,
		PhoneNumber: clm.Phone,
		Role:        clm.Role,
	}, nil
}

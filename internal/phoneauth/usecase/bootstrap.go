package usecase

import (
	"context"
	"errors"
	"log/slog"
	"net/url"

	"github.com/shandysiswandi/finadvise/internal/phoneauth/entity"
	"github.com/shandysiswandi/finadvise/internal/pkg/goerror"
	"github.com/shandysiswandi/finadvise/internal/pkg/valueobject"
)

// ErrEmptyLoginToken is returned when the directory accepts a provisioning
// request but no usable token comes out of it.
var ErrEmptyLoginToken = errors.New("phoneauth: login token is empty")

// bootstrap turns a verified phone into a single-use login credential. The
// code is already consumed at this point, so every failure here is final for
// that code.
func (s *Usecase) bootstrap(ctx context.Context, phoneKey string) (*entity.LoginSession, error) {
	ctx, span := s.startSpan(ctx, "bootstrap")
	defer span.End()

	existing, err := s.repoDirectory.FindIdentityByPhone(ctx, phoneKey)
	if err != nil && !errors.Is(err, goerror.ErrNotFound) {
		slog.ErrorContext(ctx, "failed to repo find identity by phone", "phone", phoneKey, "error", err)
		return nil, goerror.NewServerMsg(err, "Failed to create login session")
	}

	in := entity.ProvisionLoginToken{
		PhoneKey:   phoneKey,
		Role:       s.settings.DefaultRole,
		Provenance: s.settings.Provenance,
		TokenID:    s.uid.Generate(),
		ExpiresAt:  s.clock.Now().Add(s.settings.TokenTTL),
	}

	if existing != nil {
		in.IdentityID = existing.ID
		in.LoginAlias = existing.LoginAlias
	} else {
		alias, err := s.loginAlias(phoneKey)
		if err != nil {
			slog.ErrorContext(ctx, "failed to derive login alias", "phone", phoneKey, "error", err)
			return nil, goerror.NewServerMsg(err, "Failed to create login session")
		}
		in.IdentityID = s.uid.Generate()
		in.LoginAlias = alias
		in.Metadata = valueobject.JSONMap{
			"phone":    phoneKey,
			"role":     s.settings.DefaultRole,
			"provider": s.settings.Provenance,
		}
	}

	token := s.token.Generate()
	if token == "" {
		slog.ErrorContext(ctx, "login token generator returned empty token", "phone", phoneKey)
		return nil, goerror.NewServerMsg(ErrEmptyLoginToken, "Failed to create login session")
	}

	in.TokenDigest, err = s.digest(token)
	if err != nil {
		slog.ErrorContext(ctx, "failed to hash login token", "error", err)
		return nil, goerror.NewServerMsg(err, "Failed to create login session")
	}

	identity, created, err := s.repoDirectory.ProvisionLoginToken(ctx, in)
	if err != nil {
		slog.ErrorContext(ctx, "failed to repo provision login token", "login_alias", in.LoginAlias, "error", err)
		return nil, goerror.NewServerMsg(err, "Failed to create login session")
	}

	slog.InfoContext(ctx, "login session provisioned", "identity_id", identity.ID, "user_created", created)

	return &entity.LoginSession{
		TokenHash:      token,
		ActionLink:     s.actionLink(token),
		LoginAlias:     identity.LoginAlias,
		IsExistingUser: existing != nil,
		UserCreated:    created,
	}, nil
}

// loginAlias derives the synthetic login email of a phone.
func (s *Usecase) loginAlias(phoneKey string) (string, error) {
	sum, err := s.aliasHash.Hash(phoneKey)
	if err != nil {
		return "", err
	}
	if len(sum) > aliasDigestLength {
		sum = sum[:aliasDigestLength]
	}
	return "p" + string(sum) + "@" + s.settings.AliasDomain, nil
}

func (s *Usecase) actionLink(token string) string {
	if s.settings.ActionLinkURL == "" {
		return ""
	}

	q := url.Values{}
	q.Set("token_hash", token)
	q.Set("type", "magiclink")

	return s.settings.ActionLinkURL + "?" + q.Encode()
}

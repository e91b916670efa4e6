package relay

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var ErrInvalidToken = errors.New("invalid invitation token")

// Invitations and access tokens are signed with the same secret; the
// audience keeps one from being used as the other.
const (
	audienceInvite = "invite"
	audienceAccess = "access"
)

// inviteClaims binds an invitation to a relationship. The subject is the
// inviter's install id, so the relay can resolve who invited.
type inviteClaims struct {
	RelID string `json:"rel"`
	jwt.RegisteredClaims
}

// Tokens signs and verifies invitation and access tokens.
type Tokens struct {
	secret []byte
	expiry time.Duration
	now    func() time.Time
}

func NewTokens(secret string, expiry time.Duration) *Tokens {
	return &Tokens{
		secret: []byte(secret),
		expiry: expiry,
		now:    time.Now,
	}
}

func (t *Tokens) Issue(relID, inviterID string) (string, error) {
	now := t.now()
	claims := inviteClaims{
		RelID: relID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			Subject:   inviterID,
			Audience:  jwt.ClaimStrings{audienceInvite},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.expiry)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(t.secret)
}

// Parse returns the relationship id and inviter of a valid token.
func (t *Tokens) Parse(tokenString string) (relID, inviterID string, err error) {
	claims := &inviteClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, t.key,
		jwt.WithTimeFunc(t.now),
		jwt.WithExpirationRequired(),
		jwt.WithAudience(audienceInvite),
	)
	if err != nil {
		return "", "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	if !token.Valid || claims.RelID == "" || claims.Subject == "" {
		return "", "", ErrInvalidToken
	}
	return claims.RelID, claims.Subject, nil
}

// IssueAccess signs the credential an installation presents on every
// later call. It does not expire: the relay hands it out only once.
func (t *Tokens) IssueAccess(installID string) (string, error) {
	claims := jwt.RegisteredClaims{
		ID:       uuid.New().String(),
		Subject:  installID,
		Audience: jwt.ClaimStrings{audienceAccess},
		IssuedAt: jwt.NewNumericDate(t.now()),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(t.secret)
}

// ParseAccess returns the install id an access token was issued to.
func (t *Tokens) ParseAccess(tokenString string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, t.key,
		jwt.WithTimeFunc(t.now),
		jwt.WithAudience(audienceAccess),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}

	if !token.Valid || claims.Subject == "" {
		return "", ErrUnauthorized
	}
	return claims.Subject, nil
}

func (t *Tokens) key(token *jwt.Token) (any, error) {
	if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
		return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
	}
	return t.secret, nil
}

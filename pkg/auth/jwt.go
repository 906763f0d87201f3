package auth

import (
	stderrors "errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/jwalitptl/medvault-api/internal/model"
)

var ErrInvalidToken = stderrors.New("invalid token")

// Claims are the bearer token claims issued by the portal's login service.
type Claims struct {
	Name       string `json:"name"`
	Email      string `json:"email"`
	Role       string `json:"role"`
	HospitalID string `json:"hospital_id,omitempty"`
	jwt.RegisteredClaims
}

// TokenVerifier turns a bearer token into the caller's identity.
type TokenVerifier interface {
	Verify(token string) (*model.Principal, error)
}

type hmacVerifier struct {
	secret []byte
	issuer string
}

// NewVerifier checks HS256 tokens signed with secret. issuer is enforced when
// non-empty.
func NewVerifier(secret, issuer string) TokenVerifier {
	return &hmacVerifier{secret: []byte(secret), issuer: issuer}
}

func (v *hmacVerifier) Verify(tokenString string) (*model.Principal, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	var claims Claims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(t *jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, fmt.Errorf("%w: bad subject", ErrInvalidToken)
	}

	role := model.Role(claims.Role)
	switch role {
	case model.RolePatient, model.RoleDoctor, model.RoleAdmin, model.RoleMasterAdmin:
	default:
		return nil, fmt.Errorf("%w: unknown role %q", ErrInvalidToken, claims.Role)
	}

	principal := &model.Principal{
		UserID: userID,
		Name:   claims.Name,
		Email:  claims.Email,
		Role:   role,
	}
	if claims.HospitalID != "" {
		hospitalID, err := uuid.Parse(claims.HospitalID)
		if err != nil {
			return nil, fmt.Errorf("%w: bad hospital_id", ErrInvalidToken)
		}
		principal.HospitalID = hospitalID
	}
	return principal, nil
}

// IssueToken signs a token for p. The API never issues tokens itself; this
// is used by tests and local tooling.
func IssueToken(secret, issuer string, p *model.Principal, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Name:  p.Name,
		Email: p.Email,
		Role:  string(p.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.UserID.String(),
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	if p.HospitalID != uuid.Nil {
		claims.HospitalID = p.HospitalID.String()
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

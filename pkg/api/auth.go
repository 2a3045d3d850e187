package api

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/waqedi/platform/pkg/config"
	"github.com/waqedi/platform/pkg/faults"
)

// Claims are the verified bearer-token claims. The identity system issues
// the tokens; this service only checks the signature, issuer, audience and
// expiry. The tenant in the claims overrides any tenant identifier a client
// supplies in a request body.
type Claims struct {
	TenantID     string   `json:"tenant_id"`
	Roles        []string `json:"roles"`
	Permissions  []string `json:"permissions"`
	DepartmentID string   `json:"dept_id,omitempty"`
	jwt.RegisteredClaims
}

// Identity is the authenticated caller attached to the request context.
type Identity struct {
	UserID       uuid.UUID
	TenantID     uuid.UUID
	DepartmentID *uuid.UUID
	Roles        []string
	Permissions  []string
}

const identityKey = "waqedi.identity"

// Verifier validates bearer tokens.
type Verifier struct {
	cfg config.AuthConfig
}

func NewVerifier(cfg config.AuthConfig) *Verifier {
	return &Verifier{cfg: cfg}
}

// Verify parses and validates a compact token and resolves its identity.
func (v *Verifier) Verify(token string) (*Identity, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, faults.New(faults.KindAuthorization, "TOKEN_INVALID",
				"unexpected signing method "+t.Method.Alg())
		}
		return []byte(v.cfg.SigningKey), nil
	},
		jwt.WithIssuer(v.cfg.Issuer),
		jwt.WithAudience(v.cfg.Audience),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, faults.Wrap(faults.KindAuthorization, "TOKEN_INVALID", "verify bearer token", err)
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, faults.New(faults.KindAuthorization, "TOKEN_INVALID", "subject is not a UUID")
	}
	tenantID, err := uuid.Parse(claims.TenantID)
	if err != nil {
		return nil, faults.New(faults.KindAuthorization, "TOKEN_INVALID", "tenant_id is not a UUID")
	}

	ident := &Identity{
		UserID:      userID,
		TenantID:    tenantID,
		Roles:       claims.Roles,
		Permissions: claims.Permissions,
	}
	if claims.DepartmentID != "" {
		deptID, err := uuid.Parse(claims.DepartmentID)
		if err != nil {
			return nil, faults.New(faults.KindAuthorization, "TOKEN_INVALID", "dept_id is not a UUID")
		}
		ident.DepartmentID = &deptID
	}
	return ident, nil
}

// requireAuth rejects requests without a valid bearer token and attaches
// the caller identity to the gin context.
func (s *Server) requireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			s.writeProblem(c, faults.New(faults.KindAuthorization, "TOKEN_MISSING",
				"a bearer token is required"))
			return
		}

		ident, err := s.verifier.Verify(token)
		if err != nil {
			s.writeProblem(c, err)
			return
		}
		c.Set(identityKey, ident)
		c.Next()
	}
}

// identity returns the authenticated caller. Panics outside requireAuth.
func identity(c *gin.Context) *Identity {
	return c.MustGet(identityKey).(*Identity)
}

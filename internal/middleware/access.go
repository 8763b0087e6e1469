package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"eshop_back_end/internal/logger"
	"eshop_back_end/internal/utils"
)

const (
	claimsKey = "claims"

	unauthorizedMessage = "The user is not authorized"
)

// Gate enforces the policy in two stages: Authenticate verifies the bearer token and
// Authorize checks the verified claims against the capability's access level.
type Gate struct {
	secret []byte
	policy *Policy
	log    *zap.Logger
}

func NewGate(secret []byte, policy *Policy, log *zap.Logger) *Gate {
	if policy == nil {
		policy = NewPolicy()
	}
	return &Gate{secret: secret, policy: policy, log: logger.OrNop(log)}
}

// Guard returns both stages for a route, in order.
func (g *Gate) Guard(c Capability) []gin.HandlerFunc {
	return []gin.HandlerFunc{g.Authenticate(c), g.Authorize(c)}
}

// Authenticate lets public capabilities through untouched. For anything else a valid
// bearer token is required and its claims are stored on the context.
func (g *Gate) Authenticate(capability Capability) gin.HandlerFunc {
	access := g.policy.Access(capability)
	return func(c *gin.Context) {
		if access == AccessPublic {
			c.Next()
			return
		}

		token, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			g.reject(c, capability, "missing bearer token")
			return
		}
		claims, err := utils.ParseJWT(g.secret, token)
		if err != nil {
			g.reject(c, capability, err.Error())
			return
		}

		c.Set(claimsKey, claims)
		c.Next()
	}
}

// Authorize requires isAdmin on the verified claims for admin capabilities.
func (g *Gate) Authorize(capability Capability) gin.HandlerFunc {
	access := g.policy.Access(capability)
	return func(c *gin.Context) {
		if access == AccessPublic {
			c.Next()
			return
		}

		claims, ok := ClaimsFrom(c)
		if !ok {
			g.reject(c, capability, "no verified claims")
			return
		}
		if !claims.IsAdmin {
			g.reject(c, capability, "admin required")
			return
		}
		c.Next()
	}
}

// ClaimsFrom returns the claims stored by Authenticate.
func ClaimsFrom(c *gin.Context) (*utils.Claims, bool) {
	v, ok := c.Get(claimsKey)
	if !ok {
		return nil, false
	}
	claims, ok := v.(*utils.Claims)
	return claims, ok && claims != nil
}

// reject writes the same body for every cause so callers cannot tell why they were refused.
func (g *Gate) reject(c *gin.Context, capability Capability, reason string) {
	g.log.Debug("access denied",
		zap.String("capability", capability.String()),
		zap.String("reason", reason),
		zap.String("path", c.Request.URL.Path),
	)
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "message": unauthorizedMessage})
}

func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

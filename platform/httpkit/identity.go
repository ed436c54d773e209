// Package httpkit provides HTTP utilities including actor resolution.
package httpkit

import (
	"context"
	"net/http"

	"marketplace_backend/platform/apperr"
	"marketplace_backend/platform/logger"

	"github.com/gin-gonic/gin"
)

// Role is the marketplace role of an authenticated actor.
type Role string

const (
	RoleCustomer     Role = "customer"
	RoleProfessional Role = "professional"
	RoleAdmin        Role = "admin"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleCustomer, RoleProfessional, RoleAdmin:
		return true
	}
	return false
}

// Actor is the verified caller of a request. The zero value is anonymous.
type Actor struct {
	ID    string `json:"id"`
	Role  Role   `json:"role"`
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
}

// SystemActor authors system messages and scheduled transitions.
var SystemActor = Actor{ID: "system", Role: RoleAdmin}

// IsAnonymous returns true when no identity was resolved.
func (a Actor) IsAnonymous() bool { return a.ID == "" }

// IsAdmin returns true for administrators.
func (a Actor) IsAdmin() bool { return a.Role == RoleAdmin }

// IsProfessional returns true for professionals.
func (a Actor) IsProfessional() bool { return a.Role == RoleProfessional }

// ActorResolver turns request credentials into an Actor.
// ok is false for anonymous requests and for credentials that fail verification.
type ActorResolver interface {
	Resolve(r *http.Request) (actor Actor, ok bool)
}

const contextActorKey = "actor"

// ResolveActor stores the resolved actor on the gin context without
// rejecting anonymous requests.
func ResolveActor(resolver ActorResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		if actor, ok := resolver.Resolve(c.Request); ok {
			c.Set(contextActorKey, actor)
			ctx := context.WithValue(c.Request.Context(), logger.ActorIDKey, actor.ID)
			c.Request = c.Request.WithContext(ctx)
		}
		c.Next()
	}
}

// RequireActor aborts with 401 when no actor was resolved.
func RequireActor() gin.HandlerFunc {
	return func(c *gin.Context) {
		if GetActor(c).IsAnonymous() {
			abortWithError(c, apperr.Unauthorized("authentication required"))
			return
		}
		c.Next()
	}
}

// RequireRole returns middleware that checks the actor has one of roles.
func RequireRole(roles ...Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor := GetActor(c)
		if actor.IsAnonymous() {
			abortWithError(c, apperr.Unauthorized("authentication required"))
			return
		}
		for _, role := range roles {
			if actor.Role == role {
				c.Next()
				return
			}
		}
		abortWithError(c, apperr.Forbidden("forbidden"))
	}
}

// GetActor extracts the Actor from a gin context.
// Returns the anonymous actor if none was resolved.
func GetActor(c *gin.Context) Actor {
	value, ok := c.Get(contextActorKey)
	if !ok {
		return Actor{}
	}
	actor, _ := value.(Actor)
	return actor
}

// MustGetActor extracts the Actor from a gin context.
// If the request is anonymous it aborts with 401 and returns false.
func MustGetActor(c *gin.Context) (Actor, bool) {
	actor := GetActor(c)
	if actor.IsAnonymous() {
		abortWithError(c, apperr.Unauthorized("authentication required"))
		return Actor{}, false
	}
	return actor, true
}

func abortWithError(c *gin.Context, err *apperr.Error) {
	c.AbortWithStatusJSON(err.HTTPStatus(), ErrorResponse{Error: err.Message, Code: err.Kind.String()})
}

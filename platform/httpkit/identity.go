package httpkit

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Identity is the authenticated caller. It only carries the user id: roles
// are resolved by authz against the users table, never read from the token.
type Identity struct {
	userID uuid.UUID
}

func (i *Identity) UserID() uuid.UUID { return i.userID }

// GetIdentity returns the caller set by AuthRequired, if any.
func GetIdentity(c *gin.Context) (*Identity, bool) {
	raw, ok := c.Get(ContextUserIDKey)
	if !ok {
		return nil, false
	}
	userID, ok := raw.(uuid.UUID)
	if !ok || userID == uuid.Nil {
		return nil, false
	}
	return &Identity{userID: userID}, true
}

// MustGetIdentity returns the caller or aborts with 401 and returns nil.
func MustGetIdentity(c *gin.Context) *Identity {
	id, ok := GetIdentity(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized", Code: "unauthorized"})
		return nil
	}
	return id
}

// ParseUUIDParam parses the named path parameter, answering 400 on failure.
func ParseUUIDParam(c *gin.Context, name, message string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		Error(c, http.StatusBadRequest, message, gin.H{"param": name})
		return uuid.Nil, false
	}
	return id, true
}

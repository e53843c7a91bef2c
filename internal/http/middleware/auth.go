package middleware

import (
	"crypto/subtle"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
)

// is returned when the admin user or password don't match.
var ErrInvalidCredentials = errors.New("invalid user or password")

// uses bcrypt to hash a plaintext password.
func HashPassword(plain string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	return string(bytes), err
}

// compares a bcrypt hash with the plaintext.
func CheckPassword(hash, plain string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain))
	return err == nil
}

// CheckAdmin validates a user/password pair against the configured admin.
func CheckAdmin(user, passwordHash, gotUser, gotPassword string) error {
	if passwordHash == "" {
		return ErrInvalidCredentials
	}
	userOK := subtle.ConstantTimeCompare([]byte(user), []byte(gotUser)) == 1
	if !CheckPassword(passwordHash, gotPassword) || !userOK {
		return ErrInvalidCredentials
	}
	return nil
}

// AdminAuth guards admin routes with HTTP basic auth. With no password hash
// configured every request is refused.
func AdminAuth(user, passwordHash string) gin.HandlerFunc {
	return func(c *gin.Context) {
		gotUser, gotPassword, ok := c.Request.BasicAuth()
		if !ok {
			c.Header("WWW-Authenticate", `Basic realm="admin"`)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing credentials"})
			return
		}
		if err := CheckAdmin(user, passwordHash, gotUser, gotPassword); err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}
		c.Set("admin", gotUser)
		c.Next()
	}
}

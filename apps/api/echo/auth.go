package echoapi

import (
	"crypto/subtle"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"
	"golang.org/x/crypto/bcrypt"

	"github.com/trezcool/schoolbond/core"
)

const adminAudience = "admin"

// Claims represents the authorization claims transmitted via a JWT.
type Claims struct {
	jwt.StandardClaims
	IsAdmin bool `json:"is_admin,omitempty"`
}

// adminAuth checks admin access codes and issues the tokens guarding the admin routes.
type adminAuth struct {
	conf      *core.Config
	jwtConfig middleware.JWTConfig
}

func newAdminAuth(conf *core.Config) *adminAuth {
	return &adminAuth{
		conf: conf,
		jwtConfig: middleware.JWTConfig{
			SigningKey:    []byte(conf.SecretKey),
			SigningMethod: middleware.AlgorithmHS256,
			ContextKey:    "adminToken",
			Claims:        new(Claims),
		},
	}
}

// checkCode compares `code` with the configured bcrypt hash, or with the static code when no hash is set.
func (auth *adminAuth) checkCode(code string) bool {
	if hash := auth.conf.Admin.AccessCodeHash; hash != "" {
		return bcrypt.CompareHashAndPassword([]byte(hash), []byte(code)) == nil
	}
	expected := auth.conf.Admin.AccessCode
	return expected != "" && subtle.ConstantTimeCompare([]byte(code), []byte(expected)) == 1
}

func (auth *adminAuth) newClaims() *Claims {
	now := time.Now()
	return &Claims{
		StandardClaims: jwt.StandardClaims{
			Issuer:    auth.conf.AppName,
			Subject:   adminAudience,
			Audience:  adminAudience,
			ExpiresAt: now.Add(auth.conf.Server.JWTExpirationDelta).Unix(),
			IssuedAt:  now.Unix(),
		},
		IsAdmin: true,
	}
}

// GenerateToken generates a signed JWT token string representing the Claims.
func (auth *adminAuth) GenerateToken(claims *Claims) (string, error) {
	method := jwt.GetSigningMethod(auth.jwtConfig.SigningMethod)
	token := jwt.NewWithClaims(method, claims)

	ss, err := token.SignedString(auth.jwtConfig.SigningKey)
	if err != nil {
		return "", errors.New("signing token")
	}
	return ss, nil
}

// GenerateAdminToken issues an admin token signed with the configured secret key.
func GenerateAdminToken(conf *core.Config) (string, error) {
	auth := newAdminAuth(conf)
	return auth.GenerateToken(auth.newClaims())
}

func (auth *adminAuth) jwtMiddleware() echo.MiddlewareFunc {
	return middleware.JWTWithConfig(auth.jwtConfig)
}

func (auth *adminAuth) contextClaims(ctx echo.Context) (Claims, error) {
	if token, ok := ctx.Get(auth.jwtConfig.ContextKey).(*jwt.Token); ok {
		if claims, ok := token.Claims.(*Claims); ok {
			return *claims, nil
		}
	}
	return Claims{}, errHttpForbidden
}

func (auth *adminAuth) adminMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, err := auth.contextClaims(ctx)
			if err != nil {
				return errors.Wrap(err, "getting context claims")
			}
			if claims.IsAdmin && claims.Audience == adminAudience {
				return next(ctx)
			}
			return errHttpForbidden
		}
	}
}

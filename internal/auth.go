package internal

import (
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

func Register(store UnitOfWork, audit *AuditLog) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Nickname        string `json:"nickname"`
			Email           string `json:"email"`
			Password        string `json:"password"`
			PasswordConfirm string `json:"password_confirm"`
			Country         string `json:"country"`
		}
		if err := c.BindJSON(&req); err != nil {
			c.JSON(400, gin.H{"error": "bad json"})
			return
		}
		if req.Nickname == "" || req.Email == "" || req.Password == "" || req.Country == "" {
			c.JSON(400, gin.H{"error": "fill all fields"})
			return
		}
		if len(req.Nickname) < 3 || len(req.Nickname) > 20 {
			c.JSON(400, gin.H{"error": "nickname must be between 3 and 20 characters"})
			return
		}
		if req.Password != req.PasswordConfirm {
			c.JSON(400, gin.H{"error": "passwords do not match"})
			return
		}
		if len(req.Password) < 8 {
			c.JSON(400, gin.H{"error": "password must be at least 8 characters"})
			return
		}

		hash, _ := bcrypt.GenerateFromPassword([]byte(req.Password), 10)

		u := &User{Nickname: req.Nickname, Email: req.Email, Country: req.Country}
		if err := store.Users().Insert(c.Request.Context(), u, string(hash)); err != nil {
			fail(c, err)
			return
		}
		audit.Record(c.Request.Context(), &u.ID, "register", "user registered")
		c.JSON(201, gin.H{"user": u})
	}
}

func Login(store UnitOfWork, secret string, audit *AuditLog) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Nickname string `json:"nickname"`
			Password string `json:"password"`
		}
		if err := c.BindJSON(&req); err != nil {
			c.JSON(400, gin.H{"error": "bad json"})
			return
		}

		id, hash, err := store.Users().PassHash(c.Request.Context(), req.Nickname)
		if err != nil {
			c.JSON(401, gin.H{"error": "invalid credentials"})
			return
		}
		if bcrypt.CompareHashAndPassword([]byte(hash), []byte(req.Password)) != nil {
			c.JSON(401, gin.H{"error": "invalid credentials"})
			return
		}
		u, err := store.Users().Get(c.Request.Context(), id)
		if err != nil {
			fail(c, err)
			return
		}

		tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
			UserID: u.ID,
			Role:   u.Role,
			RegisteredClaims: jwt.RegisteredClaims{
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(24 * time.Hour)),
				IssuedAt:  jwt.NewNumericDate(time.Now()),
				Issuer:    "fishing-platform",
			},
		})
		s, _ := tok.SignedString([]byte(secret))

		secure := os.Getenv("COOKIE_SECURE") == "1"
		c.SetCookie(cookieName, s, 86400, "/", "", secure, true)

		audit.Record(c.Request.Context(), &u.ID, "login", "success")
		c.JSON(200, gin.H{"ok": true})
	}
}

func Logout() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.SetCookie(cookieName, "", -1, "/", "", false, true)
		c.JSON(http.StatusOK, gin.H{"ok": true})
	}
}

package models

import (
	"github.com/golang-jwt/jwt/v5"
)

type JWTClaims struct {
	Subject string `json:"sub_id"`
	Role    string `json:"role"` // editor, admin
	jwt.RegisteredClaims
}

type QuotaInfo struct {
	Source    string `json:"source"`
	Limit     int    `json:"limit"`
	Remaining int    `json:"remaining"`
}

package models

import "github.com/golang-jwt/jwt/v5"

// JWTClaims carries the authenticated service-account identity.
type JWTClaims struct {
	Login string `json:"login"`
	jwt.RegisteredClaims
}

// Pagination reports list slicing metadata in response envelopes.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}

package models

import "github.com/golang-jwt/jwt/v5"

// UserRole represents the roles recognised by the RBAC middleware.
type UserRole string

const (
	RoleSuperAdmin UserRole = "SUPERADMIN"
	RoleAdmin      UserRole = "ADMIN"
	RoleTeacher    UserRole = "TEACHER"
)

// JWTClaims represents the JWT payload for access tokens issued by the school portal.
type JWTClaims struct {
	UserID   string   `json:"user_id"`
	Role     UserRole `json:"role"`
	Email    string   `json:"email"`
	FullName string   `json:"full_name"`
	jwt.RegisteredClaims
}

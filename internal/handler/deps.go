package handler

import (
	"groupnav/internal/app/presence"
	"groupnav/internal/app/profile"
	"groupnav/internal/app/storage"
	"groupnav/internal/app/user"
	"groupnav/internal/configs"
	"groupnav/internal/pkg/auth/jwt"
	"groupnav/internal/pkg/limiter"
)

// AppDeps is everything the HTTP layer needs.
type AppDeps struct {
	Config   *configs.AppConfig
	Store    profile.Store
	Gate     *user.Gate
	Tokens   *jwt.Issuer
	Presence *presence.Service

	// Storage is nil when object storage is not configured.
	Storage storage.StorageService

	SocketLimiter *limiter.IPRateLimiter
}

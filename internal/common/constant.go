package common

// RefreshTokenCookieName is the cookie carrying the opaque refresh token.
const RefreshTokenCookieName = "refreshToken"

// RefreshTokenPrefix marks refresh tokens minted by this service.
const RefreshTokenPrefix = "token-"

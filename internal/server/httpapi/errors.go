package httpapi

import (
	"net/http"

	"github.com/dmitrijs2005/sessionkeeper/internal/common"
	"github.com/gin-gonic/gin"
)

const (
	msgInvalidCredentials  = "invalid credentials"
	msgInvalidRefreshToken = "invalid refresh token"
	msgInvalidAccessToken  = "invalid access token"
	msgRateLimited         = "too many failed attempts, try again later"
	msgInternal            = "request failed"
)

// writeError maps the error kind to a status. Authentication reasons are
// collapsed into authMsg so clients cannot tell them apart.
func writeError(c *gin.Context, err error, authMsg string) {
	status, msg := http.StatusInternalServerError, msgInternal

	switch common.KindOf(err) {
	case common.KindValidation:
		status, msg = http.StatusBadRequest, common.ReasonOf(err)
		if msg == "" {
			msg = "invalid request"
		}
	case common.KindAuthentication:
		status, msg = http.StatusUnauthorized, authMsg
	case common.KindRateLimit:
		status, msg = http.StatusTooManyRequests, msgRateLimited
	}

	c.AbortWithStatusJSON(status, ErrorResponse{Success: false, Error: msg})
}

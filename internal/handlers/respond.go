package handlers

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/tullo/trust/internal/apperr"
)

// ErrorResponse sends a standardized error response and logs at caller if needed
func ErrorResponse(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"error": message})
}

// RespondError maps err to its HTTP status. Unclassified errors become 500
// and are logged; their text never reaches the client.
func RespondError(c *gin.Context, logger *slog.Logger, err error) {
	if ae, ok := apperr.As(err); ok {
		if ae.Status >= http.StatusInternalServerError {
			logger.Error("request failed", "path", c.FullPath(), "code", ae.Code, "err", err)
		}
		c.JSON(ae.Status, gin.H{"error": ae.Message, "code": ae.Code})
		return
	}
	logger.Error("request failed", "path", c.FullPath(), "err", err)
	ErrorResponse(c, http.StatusInternalServerError, "Internal server error")
}

func paramUUID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		ErrorResponse(c, http.StatusBadRequest, "Invalid "+name)
		return uuid.Nil, false
	}
	return id, true
}

func queryInt(c *gin.Context, name string, def int) (int, bool) {
	s := c.Query(name)
	if s == "" {
		return def, true
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		ErrorResponse(c, http.StatusBadRequest, "Invalid "+name)
		return 0, false
	}
	return n, true
}

package handler

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/coursepulse/internal/locale"
	"github.com/gin-gonic/gin"
)

func respondError(c *gin.Context, status int, code string) {
	respondErrorWith(c, status, code, nil)
}

func respondErrorWith(c *gin.Context, status int, code string, extra gin.H) {
	payload := gin.H{
		"error": locale.Message(requestLanguage(c), code),
		"code":  code,
	}
	for key, value := range extra {
		payload[key] = value
	}
	c.AbortWithStatusJSON(status, payload)
}

func bindJSON(c *gin.Context, dst interface{}) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		respondError(c, http.StatusBadRequest, "invalid_request")
		return false
	}
	return true
}

func parseUintParam(c *gin.Context, key string) (uint, error) {
	return parseUint(c.Param(key), key)
}

func parseUintQuery(c *gin.Context, key string) (uint, error) {
	return parseUint(c.Query(key), key)
}

func parseUint(raw, key string) (uint, error) {
	id, err := strconv.ParseUint(strings.TrimSpace(raw), 10, 32)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return uint(id), nil
}

package api

import (
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"brasa/internal/errs"
)

// respondError maps the error taxonomy onto HTTP statuses. Policy denials
// are checked first because a lost waste-log race is both a denial and a
// conflict.
func respondError(c *gin.Context, err error) {
	var denied *errs.PolicyDenied
	var invalid *errs.ValidationError
	switch {
	case errors.As(err, &denied):
		c.JSON(http.StatusForbidden, gin.H{"error": denied.Message, "reason": denied.Reason})
	case errors.As(err, &invalid):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "field": invalid.Field})
	case errors.Is(err, errs.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, errs.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	default:
		log.Printf("[api] %s %s failed: %v", c.Request.Method, c.Request.URL.Path, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

// storeID parses the :id path parameter.
func storeID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid store id"})
		return 0, false
	}
	return uint(id), true
}

// optionalInt parses an optional integer query parameter.
func optionalInt(c *gin.Context, name string) (*int, bool) {
	raw := c.Query(name)
	if raw == "" {
		return nil, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name, "field": name})
		return nil, false
	}
	return &n, true
}

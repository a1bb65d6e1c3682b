// Package handler holds helpers shared by the resource handlers.
package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	apperrors "github.com/jwalitptl/capd-api/pkg/errors"
	"github.com/jwalitptl/capd-api/pkg/validator"
)

// ParamID reads a positive integer path parameter.
func ParamID(c *gin.Context, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperrors.NewValidation("invalid "+name, map[string]string{
			name: "must be a positive integer",
		})
	}
	return id, nil
}

// BindJSON binds the request body; failures become a 400 ValidationError.
func BindJSON(c *gin.Context, obj interface{}) error {
	if err := c.ShouldBindJSON(obj); err != nil {
		return validator.BindError(err)
	}
	return nil
}

// BindQuery binds query parameters; failures become a 400 ValidationError.
func BindQuery(c *gin.Context, obj interface{}) error {
	if err := c.ShouldBindQuery(obj); err != nil {
		return validator.BindError(err)
	}
	return nil
}

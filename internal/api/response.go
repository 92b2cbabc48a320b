package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"storefront-backend/internal/middleware"
	"storefront-backend/internal/models"
	"storefront-backend/internal/services"
	"storefront-backend/internal/utils"
)

// responder carries what every handler group needs to write errors
type responder struct {
	log   *logrus.Logger
	debug bool
}

// fail writes the error envelope. AppErrors keep their status and code;
// anything else is a 500 whose details only appear in debug mode.
func (r responder) fail(c *gin.Context, err error) {
	if appErr, ok := services.AsAppError(err); ok {
		body := gin.H{
			"success": false,
			"error":   appErr.Message,
			"code":    appErr.Code,
		}
		if appErr.Status >= http.StatusInternalServerError {
			r.log.WithFields(logrus.Fields{
				"path":  c.FullPath(),
				"error": err.Error(),
			}).Error("Request failed")
		}
		c.AbortWithStatusJSON(appErr.Status, body)
		return
	}

	err = pkgerrors.WithStack(err)
	_ = c.Error(err)
	r.log.WithFields(logrus.Fields{
		"path":  c.FullPath(),
		"error": err.Error(),
	}).Error("Unhandled error")

	body := gin.H{
		"success": false,
		"error":   "Internal server error",
	}
	if r.debug {
		body["stack"] = fmt.Sprintf("%+v", err)
	}
	c.AbortWithStatusJSON(http.StatusInternalServerError, body)
}

// bindJSON binds with gin and reports binding failures as 400s.
func (r responder) bindJSON(c *gin.Context, dst interface{}) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		r.fail(c, validationFailure(err))
		return false
	}
	return true
}

// decodeStrict decodes a JSON body rejecting unknown fields, then runs the
// binding validator. Used where legacy field aliases must not slip through.
func (r responder) decodeStrict(c *gin.Context, dst interface{}) bool {
	dec := json.NewDecoder(c.Request.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		r.fail(c, validationFailure(err))
		return false
	}
	if err := binding.Validator.ValidateStruct(dst); err != nil {
		r.fail(c, validationFailure(err))
		return false
	}
	return true
}

func validationFailure(err error) error {
	if errors.Is(err, io.EOF) {
		return services.NewValidationError("Request body is required")
	}
	if fields, ok := utils.DescribeValidation(err); ok {
		return services.NewValidationError("Validation failed: %s", fields.Error())
	}
	msg := strings.TrimPrefix(err.Error(), "json: ")
	return services.NewValidationError("Invalid request data: %s", msg)
}

// identity returns the caller resolved by the auth middleware.
func identity(c *gin.Context) *models.Identity {
	if id := middleware.GetIdentity(c); id != nil {
		return id
	}
	return &models.Identity{Kind: models.IdentityGuest}
}

// pagination reads page and limit query parameters; zero means default.
func pagination(c *gin.Context) (int, int) {
	page, _ := strconv.Atoi(c.Query("page"))
	limit, _ := strconv.Atoi(c.Query("limit"))
	return page, limit
}

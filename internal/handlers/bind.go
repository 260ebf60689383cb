package handlers

import (
	"errors"
	"reflect"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	apierrors "github.com/stwalsh4118/parcela/internal/errors"
	"github.com/stwalsh4118/parcela/internal/middleware"
)

func init() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterTagNameFunc(wireName)
	}
}

// wireName reports a field by the name clients send it under.
func wireName(f reflect.StructField) string {
	for _, tag := range []string{"json", "form", "uri"} {
		name := strings.SplitN(f.Tag.Get(tag), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name != "" {
			return name
		}
	}
	return f.Name
}

// bindFailed writes the envelope for a ShouldBind error.
func bindFailed(c *gin.Context, err error, message string) {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		apierrors.ValidationError(c, validationErrors)
		return
	}
	apierrors.BadRequest(c, message, nil)
}

// callerID returns the authenticated user id. Routes using it sit behind
// RequireAuth, so the identity is always present there.
func callerID(c *gin.Context) string {
	id, _ := middleware.IdentityFrom(c)
	return id.UserID
}

// logInfo logs through the request-scoped logger when present.
func logInfo(c *gin.Context, msg string, fields map[string]interface{}) {
	if log := middleware.GetLogger(c); log != nil {
		log.Info(msg, fields)
	}
}

package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/chachabrian/wheelster-backend/internal/booking"
)

func init() {
	// report json field names in validation errors
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
			if name == "-" {
				return ""
			}
			return name
		})
	}
}

var kindStatus = map[booking.Kind]int{
	booking.KindInvalidInput:  http.StatusBadRequest,
	booking.KindNotFound:      http.StatusNotFound,
	booking.KindConflict:      http.StatusBadRequest,
	booking.KindUnauthorized:  http.StatusForbidden,
	booking.KindPaymentFailed: http.StatusBadRequest,
	booking.KindRefundFailed:  http.StatusBadGateway,
	booking.KindInternal:      http.StatusInternalServerError,
}

// respondError writes err as {"error", "kind"} and records it on the
// context for the request logger.
func respondError(c *gin.Context, err error) {
	_ = c.Error(err)

	if errors.Is(err, booking.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found", "kind": booking.KindNotFound})
		return
	}

	kind := booking.KindOf(err)
	status, ok := kindStatus[kind]
	if !ok {
		status = http.StatusInternalServerError
	}
	c.JSON(status, gin.H{"error": booking.MessageOf(err), "kind": kind})
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": msg, "kind": booking.KindInvalidInput})
}

// bindError renders a binding failure. Validation failures list one
// message per field.
func bindError(c *gin.Context, err error) {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		fields := make(map[string]string, len(verrs))
		msgs := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			name := fe.Field()
			fields[name] = fieldMessage(name, fe)
			msgs = append(msgs, fields[name])
		}
		c.JSON(http.StatusBadRequest, gin.H{
			"error":  strings.Join(msgs, "; "),
			"kind":   booking.KindInvalidInput,
			"fields": fields,
		})
		return
	}

	var syntax *json.SyntaxError
	var typ *json.UnmarshalTypeError
	switch {
	case errors.As(err, &syntax):
		badRequest(c, "Malformed JSON body")
	case errors.As(err, &typ):
		badRequest(c, fmt.Sprintf("%s has the wrong type", typ.Field))
	default:
		badRequest(c, err.Error())
	}
}

func fieldMessage(name string, fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return name + " is required"
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", name, fe.Param())
	case "gte":
		return fmt.Sprintf("%s must be at least %s", name, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", name, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", name, fe.Param())
	}
	return fmt.Sprintf("%s is invalid", name)
}

func paramID(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		badRequest(c, "Invalid "+name)
		return 0, false
	}
	return uint(id), true
}

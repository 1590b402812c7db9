package api

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

// fieldError 校验失败的字段明细
type fieldError struct {
	Field string `json:"field"`
	Rule  string `json:"rule"`
}

// errorJSON 统一错误响应；校验错误附带字段明细
func errorJSON(c *gin.Context, status int, message string, err error) {
	body := gin.H{"error": message}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		details := make([]fieldError, 0, len(verrs))
		for _, fe := range verrs {
			details = append(details, fieldError{Field: fe.Namespace(), Rule: fe.Tag()})
		}
		body["details"] = details
	} else if err != nil && err.Error() != message {
		body["detail"] = err.Error()
	}

	c.JSON(status, body)
}

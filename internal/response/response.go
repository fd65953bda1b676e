package response

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Response is the envelope of every attempt API reply.
type Response struct {
	Data  any        `json:"data"`
	Error *ErrorBody `json:"error,omitempty"`
	Meta  Meta       `json:"meta"`
}

// ErrorBody describes a failed request.
type ErrorBody struct {
	Code    ErrCode           `json:"code"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
	Detail  string            `json:"detail,omitempty"`
}

// Meta ties a reply to its request log line.
type Meta struct {
	RequestID string    `json:"request_id"`
	ServedAt  time.Time `json:"served_at"`
}

// Success writes data with status.
func Success(c *gin.Context, status int, data any) {
	c.JSON(status, Response{Data: data, Meta: meta(c)})
}

// Fail writes the error code with its default message.
func Fail(c *gin.Context, status int, code ErrCode) {
	c.JSON(status, failure(c, ErrorBody{Code: code}))
}

// FailWithFields reports per-field validation errors.
func FailWithFields(c *gin.Context, status int, code ErrCode, fields map[string]string) {
	c.JSON(status, failure(c, ErrorBody{Code: code, Fields: fields}))
}

// FailWithDetail carries the upstream cause, e.g. the backend's own message.
func FailWithDetail(c *gin.Context, status int, code ErrCode, detail string) {
	c.JSON(status, failure(c, ErrorBody{Code: code, Detail: detail}))
}

// AbortFail is Fail for middleware: the handler chain stops here.
func AbortFail(c *gin.Context, status int, code ErrCode) {
	c.AbortWithStatusJSON(status, failure(c, ErrorBody{Code: code}))
}

func failure(c *gin.Context, body ErrorBody) Response {
	body.Message = GetMessage(body.Code)
	return Response{Error: &body, Meta: meta(c)}
}

func meta(c *gin.Context) Meta {
	id := c.GetString(ContextKeyRequestID)
	if id == "" {
		id = uuid.NewString()
	}
	return Meta{RequestID: id, ServedAt: time.Now().UTC().Truncate(time.Second)}
}

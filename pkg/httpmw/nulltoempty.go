package httpmw

import (
	"bytes"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
)

// NullToEmptyArray rewrites a 2xx JSON response whose entire body is `null`
// to `[]`, since AWS API clients generally expect an empty collection rather
// than null. Only a top-level null is rewritten: a null nested inside an
// object (such as ListTagsForResource's `{"Tags":null}` for an untagged
// pipe) is left as is.
func NullToEmptyArray() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			captured := &responseCapture{ResponseWriter: c.Response().Writer, buf: &bytes.Buffer{}}
			c.Response().Writer = captured

			if err := next(c); err != nil {
				return err
			}

			body := captured.buf.Bytes()
			if shouldRewrite(c.Response().Header().Get(echo.HeaderContentType), c.Response().Status, body) {
				body = []byte("[]")
				c.Response().Header().Set(echo.HeaderContentLength, strconv.Itoa(len(body)))
			}

			captured.ResponseWriter.WriteHeader(c.Response().Status)
			_, err := captured.ResponseWriter.Write(body)
			return err
		}
	}
}

func shouldRewrite(contentType string, status int, body []byte) bool {
	isJSON := len(contentType) >= 16 && contentType[:16] == "application/json"
	isSuccess := status >= 200 && status < 300
	isNull := bytes.Equal(bytes.TrimSpace(body), []byte("null"))
	return isJSON && isSuccess && isNull
}

// responseCapture buffers the handler's output so NullToEmptyArray can
// inspect the full body before it reaches the client.
type responseCapture struct {
	http.ResponseWriter
	buf *bytes.Buffer
}

func (r *responseCapture) Write(data []byte) (int, error) {
	return r.buf.Write(data)
}

func (r *responseCapture) WriteHeader(int) {
	// Suppressed: the real status is written once, after inspection, by the
	// caller in NullToEmptyArray.
}

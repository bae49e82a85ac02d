package log

import (
	"github.com/golang/glog"
	"github.com/hashicorp/go-retryablehttp"
)

var _ retryablehttp.LeveledLogger = retryableHTTPLogger{}

// retryableHTTPLogger routes retryablehttp's own logging through our logfmt
// logger, tagged with the client it belongs to and gated on glog verbosity.
type retryableHTTPLogger struct {
	client string
}

func NewRetryableHTTPLogger(client string) retryablehttp.LeveledLogger {
	return retryableHTTPLogger{client: client}
}

func (r retryableHTTPLogger) log(level glog.Level, msg string, keysAndValues ...interface{}) {
	if glog.V(level) {
		LogNoRequestID(msg, append([]interface{}{"http_client", r.client}, keysAndValues...)...)
	}
}

func (r retryableHTTPLogger) Error(msg string, keysAndValues ...interface{}) {
	r.log(3, msg, keysAndValues...)
}

func (r retryableHTTPLogger) Warn(msg string, keysAndValues ...interface{}) {
	r.log(4, msg, keysAndValues...)
}

func (r retryableHTTPLogger) Info(msg string, keysAndValues ...interface{}) {
	r.log(5, msg, keysAndValues...)
}

func (r retryableHTTPLogger) Debug(msg string, keysAndValues ...interface{}) {
	r.log(6, msg, keysAndValues...)
}

package log

import (
	"io"
	"net/url"
	"os"
	"strings"
	"time"

	kitlog "github.com/go-kit/log"
	"github.com/patrickmn/go-cache"
)

var loggerCache *cache.Cache
var defaultLoggerCacheExpiry = 6 * time.Hour

// Swapped out in tests to capture output
var logDestination io.Writer = os.Stderr

func init() {
	loggerCache = cache.New(defaultLoggerCacheExpiry, 10*time.Minute)
}

// Permanently add context to the logger. Any future logging for this Request ID will include this context
func AddContext(requestID string, keyvals ...interface{}) {
	loggerCache.Set(requestID, kitlog.With(getLogger(requestID), redactKeyvals(keyvals...)...), defaultLoggerCacheExpiry)
}

func Log(requestID string, message string, keyvals ...interface{}) {
	_ = kitlog.With(getLogger(requestID), "msg", message).Log(redactKeyvals(keyvals...)...)
}

// Log in situations where we don't have access to the Request ID.
// Should be used sparingly and with as much context inserted into the message as possible
func LogNoRequestID(message string, keyvals ...interface{}) {
	_ = kitlog.With(newLogger(), "msg", message).Log(redactKeyvals(keyvals...)...)
}

func LogError(requestID string, message string, err error, keyvals ...interface{}) {
	logError(getLogger(requestID), message, err, keyvals...)
}

func LogErrorNoRequestID(message string, err error, keyvals ...interface{}) {
	logError(newLogger(), message, err, keyvals...)
}

func logError(logger kitlog.Logger, message string, err error, keyvals ...interface{}) {
	msgLogger := kitlog.With(logger, "msg", message)
	errLogger := kitlog.With(msgLogger, "err", RedactLogs(err.Error(), "\n"))
	_ = errLogger.Log(redactKeyvals(keyvals...)...)
}

func getLogger(requestID string) kitlog.Logger {
	logger, found := loggerCache.Get(requestID)
	if found {
		return logger.(kitlog.Logger)
	}

	newLogger := kitlog.With(newLogger(), "request_id", requestID)
	err := loggerCache.Add(requestID, newLogger, defaultLoggerCacheExpiry)
	if err != nil {
		_ = newLogger.Log("msg", "error adding logger to cache", "request_id", requestID)
	}
	return newLogger
}

func newLogger() kitlog.Logger {
	newLogger := kitlog.NewLogfmtLogger(kitlog.NewSyncWriter(logDestination))
	return kitlog.With(newLogger, "ts", kitlog.DefaultTimestampUTC)
}

func redactKeyvals(keyvals ...interface{}) []interface{} {
	res := make([]interface{}, len(keyvals))
	for i, v := range keyvals {
		if s, ok := v.(string); ok && i%2 == 1 {
			res[i] = RedactURL(s)
		} else {
			res[i] = v
		}
	}
	return res
}

// RedactURL masks the password of any credentials embedded in a URL, e.g. object store URLs
func RedactURL(str string) string {
	if !strings.Contains(str, "://") {
		return str
	}
	u, err := url.Parse(str)
	if err != nil {
		return "REDACTED"
	}
	return u.Redacted()
}

// RedactLogs applies RedactURL to each delimited line of a multi-line string, such as subprocess output
func RedactLogs(str, delim string) string {
	if !strings.Contains(str, "://") {
		return str
	}
	lines := strings.Split(str, delim)
	for i, line := range lines {
		lines[i] = RedactURL(line)
	}
	return strings.Join(lines, delim)
}

// AccessLogger is the logger HTTP access lines are written with
func AccessLogger() kitlog.Logger {
	return kitlog.With(newLogger(), "component", "http")
}

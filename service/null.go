package service

import (
	"context"
	"time"

	"github.com/go-lynx/vectorium/log"
)

// ServiceNotAvailable is the message carried by the null RestClient's errors.
const ServiceNotAvailable = "Service not available"

func init() {
	RegisterNull[Logger](NullLogger{})
	RegisterNull[RestClient](NullRestClient{})
}

// NullLogger discards everything.
type NullLogger struct{}

func (NullLogger) Log(log.Level, string)          {}
func (NullLogger) Logf(log.Level, string, ...any) {}
func (NullLogger) EnableDebugLogging()            {}
func (NullLogger) DisableDebugLogging()           {}
func (NullLogger) IsDebugLoggingEnabled() bool    { return false }
func (NullLogger) SetPluginName(string)           {}

// NullRestClient answers every request with a RestError.
type NullRestClient struct{}

func (NullRestClient) SetDefaultHeaders(map[string]string) {}
func (NullRestClient) SetTimeout(time.Duration)            {}
func (NullRestClient) SetBearerToken(string)               {}
func (NullRestClient) SetBaseURL(string)                   {}

func (NullRestClient) Get(context.Context, string, map[string]string) (*RestResponse, error) {
	return nil, &RestError{Message: ServiceNotAvailable}
}

func (NullRestClient) Post(context.Context, string, []byte, string) (*RestResponse, error) {
	return nil, &RestError{Message: ServiceNotAvailable}
}

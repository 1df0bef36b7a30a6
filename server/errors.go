package server

import (
	"fmt"
)

// ConfigError reports an invalid configuration detected at load time.
type ConfigError struct {
	Location string
	Msg      string
}

func (self *ConfigError) Error() string {
	return fmt.Sprintf("config error at %s: %s", self.Location, self.Msg)
}

func NewConfigError(location string, format string, args ...any) *ConfigError {
	return &ConfigError{
		Location: location,
		Msg:      fmt.Sprintf(format, args...),
	}
}

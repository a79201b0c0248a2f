package master

import "github.com/pkg/errors"

// ConfigurationError marks a failure that requires operator
// intervention rather than a retry: a table missing CDC, a malformed
// TTL, or (in the concrete scyllaport implementation) both
// streams-description table layouts being absent.
type ConfigurationError struct {
	msg string
}

func (e *ConfigurationError) Error() string { return e.msg }

// NewConfigurationError wraps msg as a *ConfigurationError.
func NewConfigurationError(msg string) error {
	return &ConfigurationError{msg: msg}
}

// IsConfigurationError reports whether err is (or wraps) a
// *ConfigurationError.
func IsConfigurationError(err error) bool {
	var ce *ConfigurationError
	return errors.As(err, &ce)
}

// ErrNoGeneration marks resolveStart's polling wait for the first CDC
// generation to appear; it is an expected condition, not a failure,
// and the master loop retries after a sleep.
var ErrNoGeneration = errors.New("no cdc generation observed yet")

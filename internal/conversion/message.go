package conversion

import (
	"errors"
	"fmt"
)

// MessageConversionError reports a failure converting one bus message.
type MessageConversionError struct {
	Topic string
	Err   error
}

func (e *MessageConversionError) Error() string {
	return fmt.Sprintf("failed to convert a message on topic '%s': %v", e.Topic, e.Err)
}

func (e *MessageConversionError) Unwrap() error {
	return e.Err
}

// Wrap annotates err with the topic it was raised for.
// Returns nil for a nil err and leaves an existing MessageConversionError untouched.
func Wrap(topic string, err error) error {
	if err == nil {
		return nil
	}
	var existing *MessageConversionError
	if errors.As(err, &existing) {
		return err
	}
	return &MessageConversionError{Topic: topic, Err: err}
}

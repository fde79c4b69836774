package custom_errors

import (
	"errors"
	"strings"
)

// ValidationError collects every config option failure so callers see them all at once.
type ValidationError struct {
	Errors []error `json:"errors"`
}

// Add records err. Nested ValidationErrors are flattened; nil is ignored.
func (c *ValidationError) Add(err error) {
	if err == nil {
		return
	}
	var nested *ValidationError
	if errors.As(err, &nested) && nested != c {
		c.Errors = append(c.Errors, nested.Errors...)
		return
	}
	c.Errors = append(c.Errors, err)
}

func (c *ValidationError) HasError() bool {
	return len(c.Errors) > 0
}

// Err returns c when it holds at least one failure, nil otherwise.
func (c *ValidationError) Err() error {
	if !c.HasError() {
		return nil
	}
	return c
}

func (c *ValidationError) Unwrap() []error {
	return c.Errors
}

func (c *ValidationError) Error() string {
	if len(c.Errors) == 0 {
		return ""
	}
	msgs := make([]string, 0, len(c.Errors))
	for _, err := range c.Errors {
		msgs = append(msgs, err.Error())
	}
	return "invalid configuration: " + strings.Join(msgs, "; ")
}

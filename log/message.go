package log

import (
	"fmt"

	"github.com/condaops/conda-mirror/strutil"
)

// Message is an interface to print structured logs.
type Message interface {
	fmt.Stringer
	JSON() string
}

// InfoMessage is a generic message structure for successful operations.
type InfoMessage struct {
	Operation string `json:"operation"`
	Subdir    string `json:"subdir,omitempty"`
	Object    string `json:"object,omitempty"`
	Success   bool   `json:"success"`
}

// String is the string representation of InfoMessage.
func (i InfoMessage) String() string {
	if i.Object == "" {
		return fmt.Sprintf("%v %v", i.Operation, i.Subdir)
	}
	return fmt.Sprintf("%v %v/%v", i.Operation, i.Subdir, i.Object)
}

// JSON is the JSON representation of InfoMessage.
func (i InfoMessage) JSON() string {
	i.Success = true
	return strutil.JSON(i)
}

// ErrorMessage is a generic message structure for unsuccessful operations.
type ErrorMessage struct {
	Operation string `json:"operation,omitempty"`
	Command   string `json:"command,omitempty"`
	Err       string `json:"error"`
}

// String is the string representation of ErrorMessage.
func (e ErrorMessage) String() string {
	if e.Command == "" {
		return e.Err
	}
	return fmt.Sprintf("%q: %v", e.Command, e.Err)
}

// JSON is the JSON representation of ErrorMessage.
func (e ErrorMessage) JSON() string {
	return strutil.JSON(e)
}

// DebugMessage is a generic message structure for diagnostics.
type DebugMessage struct {
	Operation string `json:"operation,omitempty"`
	Subdir    string `json:"subdir,omitempty"`
	Err       string `json:"error,omitempty"`
	Msg       string `json:"message,omitempty"`
}

// String is the string representation of DebugMessage.
func (d DebugMessage) String() string {
	if d.Msg == "" {
		return d.Err
	}
	return d.Msg
}

// JSON is the JSON representation of DebugMessage.
func (d DebugMessage) JSON() string {
	return strutil.JSON(d)
}

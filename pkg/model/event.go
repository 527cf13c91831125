package model

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Action is the kind of change reported for a single path. The numeric
// values match the FILE_ACTION_* codes delivered by ReadDirectoryChangesW.
type Action uint32

const (
	Added Action = iota + 1
	Removed
	Modified
	RenamedFrom
	RenamedTo
)

func (a Action) String() string {
	switch a {
	case Added:
		return "ADDED"
	case Removed:
		return "REMOVED"
	case Modified:
		return "MODIFIED"
	case RenamedFrom:
		return "RENAMED_FROM"
	case RenamedTo:
		return "RENAMED_TO"
	}
	return fmt.Sprintf("ACTION(%d)", uint32(a))
}

// Valid reports whether a is one of the known actions.
func (a Action) Valid() bool { return a >= Added && a <= RenamedTo }

// ParseAction is the inverse of Action.String.
func ParseAction(s string) (Action, error) {
	switch strings.ToUpper(s) {
	case "ADDED":
		return Added, nil
	case "REMOVED":
		return Removed, nil
	case "MODIFIED":
		return Modified, nil
	case "RENAMED_FROM":
		return RenamedFrom, nil
	case "RENAMED_TO":
		return RenamedTo, nil
	}
	return 0, fmt.Errorf("unknown action %q", s)
}

func (a Action) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.String())
}

func (a *Action) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	v, err := ParseAction(s)
	if err != nil {
		return err
	}
	*a = v
	return nil
}

// Status is the lifecycle notification emitted per watched path.
type Status int

const (
	Started Status = iota
	Paused
	Stopped
)

func (s Status) String() string {
	switch s {
	case Started:
		return "STARTED"
	case Paused:
		return "PAUSED"
	case Stopped:
		return "STOPPED"
	}
	return fmt.Sprintf("STATUS(%d)", int(s))
}

// ParseStatus is the inverse of Status.String.
func ParseStatus(s string) (Status, error) {
	switch strings.ToUpper(s) {
	case "STARTED":
		return Started, nil
	case "PAUSED":
		return Paused, nil
	case "STOPPED":
		return Stopped, nil
	}
	return 0, fmt.Errorf("unknown status %q", s)
}

func (s Status) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *Status) UnmarshalJSON(b []byte) error {
	var v string
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	st, err := ParseStatus(v)
	if err != nil {
		return err
	}
	*s = st
	return nil
}

// ChangeEvent is one delivered change: an action on an absolute path.
type ChangeEvent struct {
	Action Action `json:"action"`
	Path   string `json:"path"`
}

func (e ChangeEvent) String() string {
	return fmt.Sprintf("%-13s %q", e.Action.String(), e.Path)
}

// StatusEvent is a lifecycle transition of one watched path.
type StatusEvent struct {
	Status   Status `json:"status"`
	WorkerID uint64 `json:"worker"`
	Path     string `json:"path"`
}

func (e StatusEvent) String() string {
	return fmt.Sprintf("%-13s worker=%d %q", e.Status.String(), e.WorkerID, e.Path)
}

// ErrorEvent is a runtime failure of one watched path's worker.
type ErrorEvent struct {
	Code uint32 `json:"code"`
	Path string `json:"path"`
}

func (e ErrorEvent) String() string {
	return fmt.Sprintf("%-13s code=%d %q", "ERROR", e.Code, e.Path)
}

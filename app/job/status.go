package job

import (
	"database/sql/driver"
	"fmt"
	"strings"
)

// Status of the job as reported by the dashboard
type Status int

// enum of job statuses, StatusUnknown is the zero value for missing or unexpected input
const (
	StatusUnknown Status = iota
	StatusPending
	StatusInProgress
	StatusSuccess
	StatusFailed
	StatusAborted
)

var statusNames = map[Status]string{
	StatusUnknown:    "unknown",
	StatusPending:    "pending",
	StatusInProgress: "in_progress",
	StatusSuccess:    "success",
	StatusFailed:     "failed",
	StatusAborted:    "aborted",
}

// ParseStatus converts string to Status. The server spells statuses as "Pending", "InProgress" etc.,
// so matching ignores case, underscores and dashes.
func ParseStatus(s string) (Status, error) {
	norm := strings.NewReplacer("_", "", "-", "", " ", "").Replace(strings.ToLower(strings.TrimSpace(s)))
	for st, name := range statusNames {
		if st == StatusUnknown {
			continue
		}
		if strings.ReplaceAll(name, "_", "") == norm {
			return st, nil
		}
	}
	return StatusUnknown, fmt.Errorf("invalid job status %q", s)
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return statusNames[StatusUnknown]
}

// Terminal reports whether the job can't change its status anymore
func (s Status) Terminal() bool {
	return s == StatusSuccess || s == StatusFailed || s == StatusAborted
}

// MarshalText implements encoding.TextMarshaler
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. Unexpected values become StatusUnknown
// instead of failing the whole response.
func (s *Status) UnmarshalText(text []byte) error {
	st, err := ParseStatus(string(text))
	if err != nil {
		*s = StatusUnknown
		return nil
	}
	*s = st
	return nil
}

// Value implements driver.Valuer, statuses stored as strings
func (s Status) Value() (driver.Value, error) {
	return s.String(), nil
}

// Scan implements sql.Scanner
func (s *Status) Scan(value any) error {
	switch v := value.(type) {
	case nil:
		*s = StatusUnknown
		return nil
	case string:
		return s.UnmarshalText([]byte(v))
	case []byte:
		return s.UnmarshalText(v)
	default:
		return fmt.Errorf("can't scan %T into job status", value)
	}
}

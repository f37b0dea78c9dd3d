package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// SubmissionID is an opaque submission identity. The judge may send it as a
// JSON number or a JSON string.
type SubmissionID string

func (id SubmissionID) String() string {
	return string(id)
}

// Empty reports whether the id is blank.
func (id SubmissionID) Empty() bool {
	return strings.TrimSpace(string(id)) == ""
}

// UnmarshalJSON accepts numbers and strings.
func (id *SubmissionID) UnmarshalJSON(data []byte) error {
	s, err := decodeIdentity(data)
	if err != nil {
		return fmt.Errorf("decode submission id: %w", err)
	}
	*id = SubmissionID(s)
	return nil
}

// MarshalJSON writes numeric ids as numbers so the judge sees its own type back.
func (id SubmissionID) MarshalJSON() ([]byte, error) {
	return encodeIdentity(string(id))
}

// ProblemID identifies a problem.
type ProblemID string

func (id ProblemID) String() string {
	return string(id)
}

// Empty reports whether the id is blank.
func (id ProblemID) Empty() bool {
	return strings.TrimSpace(string(id)) == ""
}

// UnmarshalJSON accepts numbers and strings.
func (id *ProblemID) UnmarshalJSON(data []byte) error {
	s, err := decodeIdentity(data)
	if err != nil {
		return fmt.Errorf("decode problem id: %w", err)
	}
	*id = ProblemID(s)
	return nil
}

// MarshalJSON writes numeric ids as numbers.
func (id ProblemID) MarshalJSON() ([]byte, error) {
	return encodeIdentity(string(id))
}

func decodeIdentity(data []byte) (string, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		return "", nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return "", err
		}
		return s, nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return "", err
	}
	return n.String(), nil
}

func encodeIdentity(s string) ([]byte, error) {
	if _, err := strconv.ParseInt(s, 10, 64); err == nil {
		return []byte(s), nil
	}
	return json.Marshal(s)
}

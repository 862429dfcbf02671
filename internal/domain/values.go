package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// PK is a backend primary key. The backend sends integers; the dashboard
// treats them as opaque strings.
type PK string

func (p PK) String() string { return string(p) }

// UnmarshalJSON accepts a JSON number or string. null leaves the key empty.
func (p *PK) UnmarshalJSON(b []byte) error {
	s, err := scalarText(b)
	if err != nil {
		return fmt.Errorf("pk: %w", err)
	}
	*p = PK(s)
	return nil
}

// Text is a display value that the backend may send as a string, number or bool.
type Text string

func (t Text) String() string { return string(t) }

func (t *Text) UnmarshalJSON(b []byte) error {
	s, err := scalarText(b)
	if err != nil {
		return fmt.Errorf("text: %w", err)
	}
	*t = Text(s)
	return nil
}

func scalarText(b []byte) (string, error) {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return "", nil
	}
	switch b[0] {
	case '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return "", err
		}
		return s, nil
	case 't', 'f':
		var v bool
		if err := json.Unmarshal(b, &v); err != nil {
			return "", err
		}
		return strconv.FormatBool(v), nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return "", fmt.Errorf("not a scalar: %s", b)
	}
	return n.String(), nil
}

// Timestamp is the {datetime, formatted} pair the backend sends for every
// point in time it exposes.
type Timestamp struct {
	Datetime  string `json:"datetime"`
	Formatted string `json:"formatted"`
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02 15:04:05.999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// Set reports whether the backend sent a datetime.
func (t *Timestamp) Set() bool { return t != nil && t.Datetime != "" }

// Time parses Datetime. Values without a zone are read as local time.
func (t Timestamp) Time() (time.Time, error) {
	for _, layout := range timestampLayouts {
		if v, err := time.ParseInLocation(layout, t.Datetime, time.Local); err == nil {
			return v, nil
		}
	}
	return time.Time{}, fmt.Errorf("parse timestamp %q: unrecognized layout", t.Datetime)
}

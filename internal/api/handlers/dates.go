package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

const dateLayout = "2006-01-02"

// Date is a calendar day that travels as "YYYY-MM-DD"
type Date time.Time

type dateError struct {
	value string
}

func (e *dateError) Error() string {
	return fmt.Sprintf("invalid date %q, expected YYYY-MM-DD", e.value)
}

// MarshalJSON implements json.Marshaler
func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Time(d).Format(dateLayout))
}

// UnmarshalJSON implements json.Unmarshaler
func (d *Date) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return &dateError{value: string(data)}
	}
	t, err := time.Parse(dateLayout, raw)
	if err != nil {
		return &dateError{value: raw}
	}
	*d = Date(t)
	return nil
}

// Time returns d as midnight UTC
func (d *Date) Time() *time.Time {
	if d == nil {
		return nil
	}
	t := time.Time(*d)
	return &t
}

func dateOf(t *time.Time) *Date {
	if t == nil || t.IsZero() {
		return nil
	}
	d := Date(*t)
	return &d
}

package config

import (
	"bytes"
	"encoding/json"
	"io"
	"math"
	"os"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
)

var (
	ErrMalformedInput = errors.New("malformed job input")
	ErrMissingField   = errors.New("missing field")
	ErrInvalidField   = errors.New("invalid field")
)

// MissingFieldError reports a required job field that was absent.
type MissingFieldError struct {
	Field string
}

func (e *MissingFieldError) Error() string { return "missing field " + e.Field + " in job config" }
func (e *MissingFieldError) Unwrap() error { return ErrMissingField }

// InvalidFieldError reports a job field that was present but unusable.
type InvalidFieldError struct {
	Field  string
	Reason string
}

func (e *InvalidFieldError) Error() string {
	return "invalid field " + e.Field + ": " + e.Reason
}
func (e *InvalidFieldError) Unwrap() error { return ErrInvalidField }

// StartPolicy decides what happens when the start time has already passed.
type StartPolicy string

const (
	// StartToday compares time-of-day only; a passed start time opens the gate at once.
	StartToday StartPolicy = "today"
	// StartNext waits for the next occurrence of the start time, which may be tomorrow.
	StartNext StartPolicy = "next"
)

// JobSpec is a validated dispatch job. Build it with ParseJob.
type JobSpec struct {
	Payload         string
	StartTime       TimeOfDay
	RepeatCount     int
	Interval        time.Duration
	PreferClipboard bool
	StartPolicy     StartPolicy
}

// Required job keys, in the order they are checked.
var requiredFields = []string{"message", "startTime", "repeatCount", "interval"}

// ParseJob validates one JSON job object.
//
// Accepted keys:
//   - message (alias: payload): text to deliver
//   - startTime: "HH:MM:SS", 24h
//   - repeatCount: integer >= 1
//   - interval: seconds between deliveries, integer or float >= 0
//   - useClipboard: optional bool, default true
//   - startPolicy: optional "today" (default) or "next"
func ParseJob(raw []byte) (JobSpec, error) {
	var m map[string]json.RawMessage
	dec := json.NewDecoder(bytes.NewReader(raw))
	if err := dec.Decode(&m); err != nil {
		return JobSpec{}, errors.Wrapf(ErrMalformedInput, "%v", err)
	}
	if m == nil {
		return JobSpec{}, errors.Wrap(ErrMalformedInput, "job must be a JSON object")
	}
	// reject trailing tokens (e.g. concatenated JSON)
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return JobSpec{}, errors.Wrap(ErrMalformedInput, "trailing data after job object")
	}

	if _, ok := m["message"]; !ok {
		if p, ok := m["payload"]; ok {
			m["message"] = p
		}
	}
	for _, f := range requiredFields {
		if _, ok := m[f]; !ok {
			return JobSpec{}, &MissingFieldError{Field: f}
		}
	}

	job := JobSpec{PreferClipboard: true, StartPolicy: StartToday}

	var err error
	if job.Payload, err = stringField(m, "message"); err != nil {
		return JobSpec{}, err
	}

	start, err := stringField(m, "startTime")
	if err != nil {
		return JobSpec{}, err
	}
	if job.StartTime, err = ParseTimeOfDay(start); err != nil {
		return JobSpec{}, &InvalidFieldError{Field: "startTime", Reason: err.Error()}
	}

	count, err := numberField(m, "repeatCount")
	if err != nil {
		return JobSpec{}, err
	}
	if count != math.Trunc(count) {
		return JobSpec{}, &InvalidFieldError{Field: "repeatCount", Reason: "must be an integer"}
	}
	if count < 1 {
		return JobSpec{}, &InvalidFieldError{Field: "repeatCount", Reason: "must be >= 1"}
	}
	if count > math.MaxInt32 {
		return JobSpec{}, &InvalidFieldError{Field: "repeatCount", Reason: "too large"}
	}
	job.RepeatCount = int(count)

	secs, err := numberField(m, "interval")
	if err != nil {
		return JobSpec{}, err
	}
	if secs < 0 {
		return JobSpec{}, &InvalidFieldError{Field: "interval", Reason: "must be >= 0"}
	}
	if secs > math.MaxInt64/float64(time.Second) {
		return JobSpec{}, &InvalidFieldError{Field: "interval", Reason: "too large"}
	}
	job.Interval = time.Duration(secs * float64(time.Second))

	if rawUse, ok := m["useClipboard"]; ok && !isNull(rawUse) {
		if err := json.Unmarshal(rawUse, &job.PreferClipboard); err != nil {
			return JobSpec{}, &InvalidFieldError{Field: "useClipboard", Reason: "must be a boolean"}
		}
	}

	if rawPolicy, ok := m["startPolicy"]; ok && !isNull(rawPolicy) {
		p, err := stringField(m, "startPolicy")
		if err != nil {
			return JobSpec{}, err
		}
		switch StartPolicy(strings.ToLower(strings.TrimSpace(p))) {
		case "", StartToday:
			job.StartPolicy = StartToday
		case StartNext:
			job.StartPolicy = StartNext
		default:
			return JobSpec{}, &InvalidFieldError{Field: "startPolicy", Reason: "must be \"today\" or \"next\""}
		}
	}

	return job, nil
}

// ParseJobFile reads a job from a JSON or YAML file (by extension).
func ParseJobFile(path string) (JobSpec, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return JobSpec{}, errors.Wrap(err, "read job file")
	}
	jb, _, err := coerceToJSONBytes(path, b)
	if err != nil {
		return JobSpec{}, errors.Wrapf(ErrMalformedInput, "%v", err)
	}
	return ParseJob(jb)
}

func stringField(m map[string]json.RawMessage, name string) (string, error) {
	var s string
	if err := json.Unmarshal(m[name], &s); err != nil || isNull(m[name]) {
		return "", &InvalidFieldError{Field: name, Reason: "must be a string"}
	}
	return s, nil
}

func numberField(m map[string]json.RawMessage, name string) (float64, error) {
	var v any
	if err := json.Unmarshal(m[name], &v); err != nil {
		return 0, &InvalidFieldError{Field: name, Reason: "must be a number"}
	}
	f, ok := v.(float64)
	if !ok {
		return 0, &InvalidFieldError{Field: name, Reason: "must be a number"}
	}
	return f, nil
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

package config

import (
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseJobValid(t *testing.T) {
	t.Parallel()
	job, err := ParseJob([]byte(`{"message":"hi","startTime":"09:30:00","repeatCount":3,"interval":1.5}`))
	require.NoError(t, err)

	assert.Equal(t, "hi", job.Payload)
	assert.Equal(t, TimeOfDay{Hour: 9, Minute: 30}, job.StartTime)
	assert.Equal(t, 3, job.RepeatCount)
	assert.Equal(t, 1500*time.Millisecond, job.Interval)
	assert.True(t, job.PreferClipboard, "useClipboard defaults to true")
	assert.Equal(t, StartToday, job.StartPolicy)
}

func TestParseJobOptionalFields(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name      string
		raw       string
		clipboard bool
		policy    StartPolicy
		payload   string
	}{
		{name: "typing", raw: `{"message":"a","startTime":"00:00:00","repeatCount":1,"interval":0,"useClipboard":false}`, clipboard: false, policy: StartToday, payload: "a"},
		{name: "null clipboard keeps default", raw: `{"message":"a","startTime":"00:00:00","repeatCount":1,"interval":0,"useClipboard":null}`, clipboard: true, policy: StartToday, payload: "a"},
		{name: "next policy", raw: `{"message":"a","startTime":"00:00:00","repeatCount":1,"interval":0,"startPolicy":"NEXT"}`, clipboard: true, policy: StartNext, payload: "a"},
		{name: "payload alias", raw: `{"payload":"b","startTime":"00:00:00","repeatCount":1,"interval":0}`, clipboard: true, policy: StartToday, payload: "b"},
		{name: "message wins over payload", raw: `{"message":"m","payload":"p","startTime":"00:00:00","repeatCount":1,"interval":0}`, clipboard: true, policy: StartToday, payload: "m"},
		{name: "empty message allowed", raw: `{"message":"","startTime":"00:00:00","repeatCount":1,"interval":0}`, clipboard: true, policy: StartToday, payload: ""},
		{name: "unicode", raw: `{"message":"привет 👋","startTime":"23:59:59","repeatCount":1,"interval":0}`, clipboard: true, policy: StartToday, payload: "привет 👋"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			job, err := ParseJob([]byte(tt.raw))
			require.NoError(t, err)
			assert.Equal(t, tt.clipboard, job.PreferClipboard)
			assert.Equal(t, tt.policy, job.StartPolicy)
			assert.Equal(t, tt.payload, job.Payload)
		})
	}
}

func TestParseJobMissingField(t *testing.T) {
	t.Parallel()
	tests := []struct {
		raw   string
		field string
	}{
		{raw: `{}`, field: "message"},
		{raw: `{"message":"x"}`, field: "startTime"},
		{raw: `{"message":"x","startTime":"10:00:00"}`, field: "repeatCount"},
		{raw: `{"message":"x","startTime":"10:00:00","repeatCount":2}`, field: "interval"},
		{raw: `{"startTime":"10:00:00","repeatCount":2,"interval":1}`, field: "message"},
	}
	for _, tt := range tests {
		_, err := ParseJob([]byte(tt.raw))
		require.Error(t, err, tt.raw)

		var missing *MissingFieldError
		require.True(t, errors.As(err, &missing), "want MissingFieldError for %s, got %v", tt.raw, err)
		assert.Equal(t, tt.field, missing.Field)
		assert.True(t, errors.Is(err, ErrMissingField))
		assert.Equal(t, "missing field "+tt.field+" in job config", err.Error())
	}
}

func TestParseJobMalformed(t *testing.T) {
	t.Parallel()
	for _, raw := range []string{``, `not json`, `{"message":`, `null`, `[1,2]`, `"str"`, `{"a":1} {"b":2}`} {
		_, err := ParseJob([]byte(raw))
		require.Error(t, err, raw)
		assert.True(t, errors.Is(err, ErrMalformedInput), "input %q: %v", raw, err)
	}
}

func TestParseJobInvalidField(t *testing.T) {
	t.Parallel()
	base := `"message":"x","startTime":"10:00:00","repeatCount":2,"interval":1`
	tests := []struct {
		name  string
		raw   string
		field string
	}{
		{name: "message not string", raw: `{"message":5,"startTime":"10:00:00","repeatCount":1,"interval":1}`, field: "message"},
		{name: "message null", raw: `{"message":null,"startTime":"10:00:00","repeatCount":1,"interval":1}`, field: "message"},
		{name: "bad clock", raw: `{"message":"x","startTime":"25:00:00","repeatCount":1,"interval":1}`, field: "startTime"},
		{name: "short clock", raw: `{"message":"x","startTime":"10:00","repeatCount":1,"interval":1}`, field: "startTime"},
		{name: "count zero", raw: `{"message":"x","startTime":"10:00:00","repeatCount":0,"interval":1}`, field: "repeatCount"},
		{name: "count fraction", raw: `{"message":"x","startTime":"10:00:00","repeatCount":1.5,"interval":1}`, field: "repeatCount"},
		{name: "count string", raw: `{"message":"x","startTime":"10:00:00","repeatCount":"3","interval":1}`, field: "repeatCount"},
		{name: "negative interval", raw: `{"message":"x","startTime":"10:00:00","repeatCount":1,"interval":-1}`, field: "interval"},
		{name: "clipboard string", raw: `{` + base + `,"useClipboard":"yes"}`, field: "useClipboard"},
		{name: "unknown policy", raw: `{` + base + `,"startPolicy":"tomorrow"}`, field: "startPolicy"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := ParseJob([]byte(tt.raw))
			require.Error(t, err)
			var invalid *InvalidFieldError
			require.True(t, errors.As(err, &invalid), "got %v", err)
			assert.Equal(t, tt.field, invalid.Field)
			assert.True(t, errors.Is(err, ErrInvalidField))
		})
	}
}

func TestParseJobFileYAML(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := filepath.Join(dir, "job.yaml")
	body := "message: hello\nstartTime: \"08:15:00\"\nrepeatCount: 2\ninterval: 0.25\nuseClipboard: false\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	job, err := ParseJobFile(path)
	require.NoError(t, err)
	assert.Equal(t, "hello", job.Payload)
	assert.Equal(t, "08:15:00", job.StartTime.String())
	assert.Equal(t, 2, job.RepeatCount)
	assert.Equal(t, 250*time.Millisecond, job.Interval)
	assert.False(t, job.PreferClipboard)
}

func TestParseJobFileBrokenYAML(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "job.yml")
	require.NoError(t, os.WriteFile(path, []byte("message: [unterminated\n"), 0o600))

	_, err := ParseJobFile(path)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMalformedInput))
}

func TestTimeOfDay(t *testing.T) {
	t.Parallel()
	tod, err := ParseTimeOfDay("07:05:09")
	require.NoError(t, err)
	assert.Equal(t, 7*3600+5*60+9, tod.SecondsOfDay())
	assert.Equal(t, "07:05:09", tod.String())

	day := time.Date(2026, 3, 14, 22, 0, 0, 123, time.UTC)
	assert.Equal(t, time.Date(2026, 3, 14, 7, 5, 9, 0, time.UTC), tod.On(day))
	assert.True(t, tod.Before(TimeOfDayOf(day)))
	assert.False(t, TimeOfDayOf(day).Before(tod))

	_, err = ParseTimeOfDay("7:5")
	assert.Error(t, err)
}

func TestParseJobRepeatCountBounds(t *testing.T) {
	t.Parallel()
	tests := []struct {
		count  string
		reason string
	}{
		{count: "0", reason: "must be >= 1"},
		{count: "-3", reason: "must be >= 1"},
		{count: "1e12", reason: "too large"},
		{count: "2147483648", reason: "too large"},
	}
	for _, tt := range tests {
		_, err := ParseJob([]byte(`{"message":"x","startTime":"10:00:00","repeatCount":` + tt.count + `,"interval":1}`))
		var invalid *InvalidFieldError
		require.True(t, errors.As(err, &invalid), "repeatCount %s: %v", tt.count, err)
		assert.Equal(t, "repeatCount", invalid.Field)
		assert.Equal(t, tt.reason, invalid.Reason, "repeatCount %s", tt.count)
	}

	job, err := ParseJob([]byte(`{"message":"x","startTime":"10:00:00","repeatCount":2147483647,"interval":1}`))
	require.NoError(t, err)
	assert.Equal(t, math.MaxInt32, job.RepeatCount)
}

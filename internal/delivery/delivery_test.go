package delivery

import (
	"context"
	"strings"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"autosend/internal/inject"
)

func newStrategy(rec *inject.Recorder, platform string) (*Strategy, *[]string) {
	var notes []string
	s := New(rec, Options{Platform: platform, Notify: func(m string) { notes = append(notes, m) }})
	return s, &notes
}

func TestDeliverClipboardPath(t *testing.T) {
	t.Parallel()
	rec := inject.NewRecorder()
	s, _ := newStrategy(rec, "linux")
	ctx := context.Background()

	require.True(t, s.SelfTest(ctx, "hello"))
	rec.Reset()

	out := s.Deliver(ctx, "hello", true)
	require.NoError(t, out.Err)
	assert.True(t, out.Succeeded)
	assert.Equal(t, Clipboard, out.Method)
	assert.Equal(t, []inject.Call{
		{Op: inject.OpSetClipboard, Arg: "hello"},
		{Op: inject.OpGetClipboard},
		{Op: inject.OpHotkey, Arg: "ctrl+v"},
		{Op: inject.OpPress, Arg: inject.KeyEnter},
	}, rec.Calls())
	assert.Zero(t, rec.Count(inject.OpType))
}

func TestDeliverMismatchFallsBackToTyping(t *testing.T) {
	t.Parallel()
	rec := inject.NewRecorder()
	s, notes := newStrategy(rec, "linux")
	ctx := context.Background()
	require.True(t, s.SelfTest(ctx, "hello"))

	// the clipboard starts mangling after the self-test
	rec.ReadBack = func(stored string) string { return strings.TrimSuffix(stored, "o") }
	rec.Reset()

	out := s.Deliver(ctx, "hello", true)
	require.NoError(t, out.Err)
	assert.True(t, out.Succeeded)
	assert.Equal(t, DirectEmission, out.Method)
	assert.Zero(t, rec.Count(inject.OpHotkey), "no paste after failed verification")
	assert.Equal(t, 1, rec.Count(inject.OpType))
	assert.Equal(t, 1, rec.Count(inject.OpPress), "confirm key pressed exactly once")

	joined := strings.Join(*notes, "\n")
	assert.Contains(t, joined, "clipboard failed")
	assert.Contains(t, joined, "length mismatch: expected 5, got 4")
}

func TestDeliverPasteErrorStillConfirmsOnce(t *testing.T) {
	t.Parallel()
	rec := inject.NewRecorder()
	s, _ := newStrategy(rec, "linux")
	ctx := context.Background()
	require.True(t, s.SelfTest(ctx, "x"))

	rec.Fail = map[string]error{inject.OpHotkey: errors.New("xdotool crashed")}
	rec.Reset()

	out := s.Deliver(ctx, "x", true)
	assert.True(t, out.Succeeded)
	assert.Equal(t, DirectEmission, out.Method)
	assert.Equal(t, 1, rec.Count(inject.OpPress))
}

func TestDeliverTypingWhenNotPreferred(t *testing.T) {
	t.Parallel()
	rec := inject.NewRecorder()
	s, _ := newStrategy(rec, "linux")
	ctx := context.Background()
	require.True(t, s.SelfTest(ctx, "x"))
	rec.Reset()

	out := s.Deliver(ctx, "x", false)
	assert.True(t, out.Succeeded)
	assert.Equal(t, DirectEmission, out.Method)
	assert.Equal(t, []inject.Call{
		{Op: inject.OpType, Arg: "x"},
		{Op: inject.OpPress, Arg: inject.KeyEnter},
	}, rec.Calls())
}

func TestSelfTestFailureDisablesClipboard(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		rec  func() *inject.Recorder
	}{
		{name: "mismatch", rec: func() *inject.Recorder {
			r := inject.NewRecorder()
			r.ReadBack = func(string) string { return "hellO" }
			return r
		}},
		{name: "set error", rec: func() *inject.Recorder {
			r := inject.NewRecorder()
			r.Fail = map[string]error{inject.OpSetClipboard: errors.New("no display")}
			return r
		}},
		{name: "get error", rec: func() *inject.Recorder {
			r := inject.NewRecorder()
			r.Fail = map[string]error{inject.OpGetClipboard: errors.New("no display")}
			return r
		}},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			rec := tt.rec()
			s, _ := newStrategy(rec, "linux")
			ctx := context.Background()
			assert.False(t, s.SelfTest(ctx, "hello"))
			assert.False(t, s.ClipboardUsable())

			rec.Reset()
			rec.Fail = nil
			out := s.Deliver(ctx, "hello", true)
			assert.True(t, out.Succeeded)
			assert.Equal(t, DirectEmission, out.Method)
			assert.Zero(t, rec.Count(inject.OpSetClipboard), "clipboard skipped for the rest of the job")
		})
	}
}

func TestDeliverErrors(t *testing.T) {
	t.Parallel()
	boom := errors.New("boom")

	rec := inject.NewRecorder()
	rec.Fail = map[string]error{inject.OpType: boom}
	s, _ := newStrategy(rec, "linux")
	out := s.Deliver(context.Background(), "x", false)
	assert.False(t, out.Succeeded)
	assert.ErrorIs(t, out.Err, boom)
	assert.Zero(t, rec.Count(inject.OpPress), "no confirm after typing failed")

	rec = inject.NewRecorder()
	rec.Fail = map[string]error{inject.OpPress: inject.ErrUnavailable}
	s, _ = newStrategy(rec, "linux")
	out = s.Deliver(context.Background(), "x", false)
	assert.False(t, out.Succeeded)
	assert.True(t, errors.Is(out.Err, inject.ErrUnavailable))
	assert.Contains(t, out.Err.Error(), "confirm")
}

func TestPasteKeysDarwin(t *testing.T) {
	t.Parallel()
	rec := inject.NewRecorder()
	s, _ := newStrategy(rec, "darwin")
	ctx := context.Background()
	require.True(t, s.SelfTest(ctx, "x"))
	rec.Reset()
	s.Deliver(ctx, "x", true)
	assert.Contains(t, rec.Calls(), inject.Call{Op: inject.OpHotkey, Arg: "cmd+v"})
	assert.Equal(t, []string{inject.KeyCtrl, inject.KeyV}, PasteKeys("windows"))
}

func TestDescribeMismatch(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "identical", DescribeMismatch("ab", "ab"))
	assert.Equal(t, "length mismatch: expected 2, got 3", DescribeMismatch("ab", "abc"))
	assert.Equal(t, `diff at pos 1: expected 'é', got 'e'`, DescribeMismatch("hé", "he"))
}

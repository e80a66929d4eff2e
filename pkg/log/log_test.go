package log

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCtx(t *testing.T) {
	ctx := context.Background()

	l := Ctx(ctx)
	require.NotNil(t, l)
	assert.Equal(t, defaultLogger, l, "bare context should yield the default logger")

	custom := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	require.NotEqual(t, defaultLogger, custom)

	got := Ctx(With(ctx, custom))
	assert.Equal(t, custom, got)
}

func TestWithAttrs(t *testing.T) {
	var buf bytes.Buffer
	base := slog.New(slog.NewJSONHandler(&buf, nil))

	ctx := With(context.Background(), base)
	ctx = WithAttrs(ctx, slog.Int("round", 7))

	Ctx(ctx).InfoContext(ctx, "hello")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "hello", rec["msg"])
	assert.Equal(t, float64(7), rec["round"])
}

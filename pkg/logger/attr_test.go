package logger_test

import (
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Niklasbrock/leoshare-notify/pkg/logger"
)

func TestGroup(t *testing.T) {
	attr := logger.Group("job", slog.String("id", "1"), slog.Int("n", 2))
	require.Equal(t, "job", attr.Key)
	require.Equal(t, slog.KindGroup, attr.Value.Kind())
	g := attr.Value.Group()
	require.Len(t, g, 2)
	assert.Equal(t, "id", g[0].Key)
	assert.Equal(t, "n", g[1].Key)
}

func TestErrors(t *testing.T) {
	err1 := errors.New("first")
	err2 := errors.New("second")

	attr := logger.Errors(err1, nil, err2)
	require.Equal(t, "errors", attr.Key)
	require.Equal(t, slog.KindGroup, attr.Value.Kind())
	g := attr.Value.Group()
	require.Len(t, g, 2)
	assert.Equal(t, err1, g[0].Value.Any())
	assert.Equal(t, err2, g[1].Value.Any())

	empty := logger.Errors(nil)
	assert.True(t, empty.Equal(slog.Attr{}))
}

func TestError(t *testing.T) {
	err := errors.New("boom")
	attr := logger.Error(err)
	require.Equal(t, "error", attr.Key)
	assert.Equal(t, err, attr.Value.Any())

	empty := logger.Error(nil)
	assert.True(t, empty.Equal(slog.Attr{}))
}

func TestJobID(t *testing.T) {
	id := uuid.New()
	attr := logger.JobID(id)
	require.Equal(t, "job_id", attr.Key)
	assert.Equal(t, id, attr.Value.Any())

	empty := logger.JobID(nil)
	assert.True(t, empty.Equal(slog.Attr{}))
}

func TestDomainAttrs(t *testing.T) {
	assert.Equal(t, "kind", logger.Kind("upload_receipt").Key)
	assert.Equal(t, "upload_receipt", logger.Kind("upload_receipt").Value.String())

	assert.Equal(t, "recipient", logger.Recipient("a@example.com").Key)
	assert.Equal(t, "a@example.com", logger.Recipient("a@example.com").Value.String())

	assert.Equal(t, "attempts", logger.Attempts(2).Key)
	assert.Equal(t, int64(2), logger.Attempts(2).Value.Int64())

	assert.Equal(t, "duration", logger.Duration(time.Second).Key)
	assert.Equal(t, time.Second, logger.Duration(time.Second).Value.Duration())

	assert.Equal(t, "component", logger.Component("scheduler").Key)
	assert.Equal(t, "scheduler", logger.Component("scheduler").Value.String())
}

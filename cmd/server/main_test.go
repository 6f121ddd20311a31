package main

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/quhie/Coding-Challenge-Skipli/internal/config"
)

func TestRunFlushesReportsWhenInitFails(t *testing.T) {
	var flushed int
	orig := flushReports
	flushReports = func(time.Duration) bool {
		flushed++
		return true
	}
	t.Cleanup(func() { flushReports = orig })

	cfg := config.Defaults()
	cfg.StoreBackend = config.StorePostgres
	cfg.DatabaseURL = ""

	assert.Equal(t, 1, run(context.Background(), cfg))
	assert.Equal(t, 1, flushed, "deferred flush must run before exit")
}

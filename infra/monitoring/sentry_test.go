package monitoring

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coremon "github.com/kilianp07/fillcast/core/monitoring"
)

func TestNewSentryMonitorWithoutDSN(t *testing.T) {
	m, err := NewSentryMonitor(SentryOptions{})
	require.NoError(t, err)
	assert.IsType(t, coremon.NopMonitor{}, m)
}

func TestNewSentryMonitorRejectsBadDSN(t *testing.T) {
	_, err := NewSentryMonitor(SentryOptions{DSN: "not a dsn"})
	assert.Error(t, err)
}

func TestSentryMonitorCapture(t *testing.T) {
	// a syntactically valid DSN; nothing is sent before Flush
	m, err := NewSentryMonitor(SentryOptions{DSN: "https://public@127.0.0.1:1/1", Environment: "test"})
	require.NoError(t, err)
	m.CaptureException(nil, nil)
	m.CaptureException(errors.New("boom"), map[string]string{"module": "test"})
	m.Flush(10 * time.Millisecond)
}

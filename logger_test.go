package mockldap

import (
	"bytes"
	"errors"
	"testing"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlattenFields(t *testing.T) {
	assert.Nil(t, flattenFields(nil))
	assert.Nil(t, flattenFields(map[string]any{}))

	// Keys come out sorted so log lines are stable.
	got := flattenFields(map[string]any{"uri": "ldap://x", "conn_id": "abc", "entries": 5})
	assert.Equal(t, []any{"conn_id", "abc", "entries", 5, "uri", "ldap://x"}, got)
}

func TestSanitizeFields(t *testing.T) {
	fields := map[string]any{
		"dn":       "cn=alice,o=test",
		"password": "hunter2",
		"Token":    "abc123",
		"secret":   "xyz",
	}

	sanitized := sanitizeFields(fields)

	assert.Equal(t, "cn=alice,o=test", sanitized["dn"])
	assert.Equal(t, "[REDACTED]", sanitized["password"])
	assert.Equal(t, "[REDACTED]", sanitized["Token"])
	assert.Equal(t, "[REDACTED]", sanitized["secret"])

	// The input map is left alone.
	assert.Equal(t, "hunter2", fields["password"])
}

func TestHCLoggerWritesThrough(t *testing.T) {
	var buf bytes.Buffer
	log := NewHCLogger(hclog.New(&hclog.LoggerOptions{
		Output: &buf,
		Level:  hclog.Trace,
	}))

	log.Info("registry activated", map[string]any{"directories": 2})

	out := buf.String()
	assert.Contains(t, out, "registry activated")
	assert.Contains(t, out, "directories")
}

func TestBindNeverLogsPasswords(t *testing.T) {
	var buf bytes.Buffer
	cfg := DefaultConfig()
	cfg.Logger = NewHCLogger(hclog.New(&hclog.LoggerOptions{
		Output: &buf,
		Level:  hclog.Trace,
	}))

	conn, err := newConn("ldap://directory.test", testContent(), cfg)
	require.NoError(t, err)

	require.NoError(t, conn.Bind("cn=alice,ou=people,o=test", "alicepw"))

	assert.NotContains(t, buf.String(), "alicepw")
	assert.Contains(t, buf.String(), "[REDACTED]")
}

func TestLogOperationReturnsHandlerError(t *testing.T) {
	sentinel := errors.New("boom")

	err := logOperation(NewNopLogger(), OpBind, nil, func() error { return sentinel })
	assert.Same(t, sentinel, err)

	err = logOperation(NewNopLogger(), OpBind, nil, func() error { return nil })
	assert.NoError(t, err)
}

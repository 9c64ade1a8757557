package logging

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected Level
		wantErr  bool
	}{
		{"DEBUG", Debug, false},
		{"info", Info, false},
		{"WARN", Warn, false},
		{"WARNING", Warn, false},
		{"ERROR", Error, false},
		{"bogus", Info, true},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.input)
		if tt.wantErr {
			assert.Error(t, err)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, tt.expected, got)
	}
}

func TestLogger_RespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithConfig(Config{Level: Warn, Output: &buf})

	l.Info("should not appear")
	l.Warn("should appear")

	out := buf.String()
	assert.NotContains(t, out, "should not appear")
	assert.Contains(t, out, "should appear")
	assert.Contains(t, out, "[WARN]")
}

func TestLogger_WithFieldIncludesContext(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithConfig(Config{Level: Debug, Output: &buf})

	l.WithField("destination", "cloudwatch").Info("sent batch", "count", 3)

	out := buf.String()
	assert.True(t, strings.Contains(out, "destination=cloudwatch"))
	assert.True(t, strings.Contains(out, "count=3"))
}

func TestLogger_WithFieldsIsIndependentPerDerivation(t *testing.T) {
	var buf bytes.Buffer
	base := NewWithConfig(Config{Level: Debug, Output: &buf})
	a := base.WithField("writer", "kinesis")
	b := base.WithField("writer", "sns")

	a.Info("a")
	b.Info("b")

	out := buf.String()
	assert.Contains(t, out, "writer=kinesis")
	assert.Contains(t, out, "writer=sns")
}

// Atlasgate - Geospatial Catalog Access Control
// Copyright 2026 The Atlasgate Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/atlasgate/atlasgate

package logging

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestSanitizeField(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input    string
		expected string
	}{
		{"", ""},
		{"plain value", "plain value"},
		{"line\nbreak", "line�break"},
		{"tab\there", "tab�here"},
		{"carriage\rreturn", "carriage�return"},
		{"del\x7fchar", "del�char"},
		{"unicode is fine ñé", "unicode is fine ñé"},
	}

	for _, tt := range tests {
		result := sanitizeField(tt.input)
		if result != tt.expected {
			t.Errorf("sanitizeField(%q) = %q, want %q", tt.input, result, tt.expected)
		}
	}
}

func TestTruncateString(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input    string
		max      int
		expected string
	}{
		{"short", 10, "short"},
		{"exact", 5, "exact"},
		{"toolongvalue", 4, "tool..."},
		{"ñññññ", 3, "ñññ..."},
	}

	for _, tt := range tests {
		result := truncateString(tt.input, tt.max)
		if result != tt.expected {
			t.Errorf("truncateString(%q, %d) = %q, want %q", tt.input, tt.max, result, tt.expected)
		}
	}
}

func TestLogLoginFailure(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	secLog := NewSecurityLoggerWithLogger(logger)

	secLog.LogLoginFailure("mallory", "203.0.113.9", "curl/8.0", "bad password or inactive")

	out := buf.String()
	for _, want := range []string{
		`"event":"login_failed"`,
		`"status":"failed"`,
		`"username":"mallory"`,
		`"ip":"203.0.113.9"`,
		`"error":"bad password or inactive"`,
		`"component":"security"`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("log output missing %s: %s", want, out)
		}
	}
}

// Attacker-controlled usernames must not forge additional log lines.
func TestLogLoginFailure_ForgedUsername(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	secLog := NewSecurityLoggerWithLogger(logger)

	secLog.LogLoginFailure("eve\n{\"event\":\"login_success\"}", "203.0.113.9", "", "unknown username")

	out := buf.String()
	if strings.Count(out, "\n") != 1 {
		t.Errorf("forged username produced multiple log lines: %q", out)
	}
	if !strings.Contains(out, "eve�") {
		t.Errorf("control characters not replaced: %q", out)
	}
}

func TestLogRoleDenied(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	secLog := NewSecurityLoggerWithLogger(logger)

	secLog.LogRoleDenied("p-1", "/api/v1/groups", "POST", []string{"admin"}, "user")

	out := buf.String()
	for _, want := range []string{
		`"event":"role_denied"`,
		`"required_roles":"admin"`,
		`"actual_role":"user"`,
		`"path":"/api/v1/groups"`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("log output missing %s: %s", want, out)
		}
	}
}

func TestLogKeyRotated(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	secLog := NewSecurityLoggerWithLogger(logger)

	secLog.LogKeyRotated("p-1", "p-admin", "203.0.113.9")

	out := buf.String()
	if !strings.Contains(out, `"event":"key_rotated"`) || !strings.Contains(out, `"rotated_by":"p-admin"`) {
		t.Errorf("log output = %s", out)
	}
	if !strings.Contains(out, `"status":"success"`) {
		t.Errorf("rotation not logged as success: %s", out)
	}
}

func TestLogAuthFailure(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	secLog := NewSecurityLoggerWithLogger(logger)

	secLog.LogAuthFailure("api_key", "203.0.113.9", "", "unknown key")

	out := buf.String()
	if !strings.Contains(out, `"event":"auth_failed"`) || !strings.Contains(out, `"method":"api_key"`) {
		t.Errorf("log output = %s", out)
	}
}

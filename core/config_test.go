package core

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfig_defaults(t *testing.T) {
	t.Setenv("ENV", "")
	t.Setenv("ENV_FILE", filepath.Join(t.TempDir(), "missing.env"))

	conf := NewConfig()
	assert.Equal(t, "DEV", conf.Env)
	assert.False(t, conf.TestMode)
	assert.Equal(t, "Masomo", conf.AppName)
	assert.Equal(t, "console", conf.Mail.Transport)
	assert.Equal(t, NotificationConfig{
		BatchSize:         50,
		ListLimit:         50,
		DedupWindow:       48 * time.Hour,
		ReminderLookahead: 24 * time.Hour,
		SendTimeout:       30 * time.Second,
		TimeZone:          "UTC",
	}, conf.Notification)
	assert.Equal(t, "noreply@localhost", conf.DefaultFromEmail().Address)
	assert.Equal(t, "Masomo", conf.DefaultFromEmail().Name)
}

func TestNewConfig_overrides(t *testing.T) {
	dotEnv := filepath.Join(t.TempDir(), ".env.test")
	content := "TEST_FRONTENDBASEURL=https://masomo.example/\nTEST_NOTIFICATIONDEDUPWINDOW=12h\n"
	require.NoError(t, os.WriteFile(dotEnv, []byte(content), 0o600))

	t.Setenv("ENV", "test")
	t.Setenv("ENV_FILE", dotEnv)
	t.Setenv("TEST_NOTIFICATIONBATCHSIZE", "10")
	t.Setenv("TEST_MAILTRANSPORT", "SMTP")
	// godotenv sets variables that t.Setenv does not know about
	t.Cleanup(func() {
		_ = os.Unsetenv("TEST_FRONTENDBASEURL")
		_ = os.Unsetenv("TEST_NOTIFICATIONDEDUPWINDOW")
	})

	conf := NewConfig()
	assert.Equal(t, "TEST", conf.Env)
	assert.True(t, conf.TestMode)
	assert.Equal(t, "https://masomo.example", conf.FrontendBaseURL)
	assert.Equal(t, 10, conf.Notification.BatchSize)
	assert.Equal(t, 12*time.Hour, conf.Notification.DedupWindow)
	assert.Equal(t, "smtp", conf.Mail.Transport)
}

func TestNotificationConfig_Location(t *testing.T) {
	tests := []struct {
		tz   string
		want string
	}{
		{tz: "", want: "UTC"},
		{tz: "UTC", want: "UTC"},
		{tz: "Africa/Kinshasa", want: "Africa/Kinshasa"},
		{tz: "Mars/Olympus", want: "UTC"},
	}
	for _, tt := range tests {
		t.Run(tt.tz, func(t *testing.T) {
			assert.Equal(t, tt.want, NotificationConfig{TimeZone: tt.tz}.Location().String())
		})
	}
}

func TestCleanStrings(t *testing.T) {
	assert.Equal(t, []string{"a", "b c", "a"}, CleanStrings([]string{" a", "", "b c ", "   ", "a"}))
	assert.Empty(t, CleanStrings(nil))
	assert.Equal(t, "hello", CleanString("  HeLLo ", true))
}

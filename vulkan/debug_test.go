package vulkan

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	vk "github.com/vulkan-go/vulkan"

	"vulkan-renderer/logging"
)

func TestDebugLevel(t *testing.T) {
	tests := []struct {
		flags vk.DebugReportFlagBits
		level slog.Level
	}{
		{vk.DebugReportDebugBit, slog.LevelDebug},
		{vk.DebugReportInformationBit, slog.LevelInfo},
		{vk.DebugReportWarningBit, slog.LevelWarn},
		{vk.DebugReportPerformanceWarningBit, slog.LevelWarn},
		{vk.DebugReportErrorBit, slog.LevelError},
		{vk.DebugReportErrorBit | vk.DebugReportInformationBit, slog.LevelError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.level, debugLevel(vk.DebugReportFlags(tt.flags)), "flags %#x", tt.flags)
	}
}

func TestDebugCategory(t *testing.T) {
	perf := vk.DebugReportFlags(vk.DebugReportPerformanceWarningBit)
	warn := vk.DebugReportFlags(vk.DebugReportWarningBit)

	assert.Equal(t, "PERF", debugCategory(perf, "Validation"))
	assert.Equal(t, "VALI", debugCategory(warn, "Validation"))
	assert.Equal(t, "VALI", debugCategory(warn, "VK_LAYER_KHRONOS_validation"))
	assert.Equal(t, "GNRL", debugCategory(warn, "Loader Message"))
}

func TestDebugCallbackLogs(t *testing.T) {
	var buf bytes.Buffer
	callback := newDebugCallback(logging.New(&buf, slog.LevelDebug))

	ret := callback(vk.DebugReportFlags(vk.DebugReportErrorBit), 0, 42, 0, 7,
		"Validation", "image layout mismatch", nil)

	assert.Equal(t, vk.Bool32(vk.False), ret)
	out := buf.String()
	assert.Contains(t, out, "level=ERROR")
	assert.Contains(t, out, `msg="image layout mismatch"`)
	assert.Contains(t, out, "category=VALI")
	assert.Contains(t, out, "code=7")
	assert.Contains(t, out, "object=42")
}

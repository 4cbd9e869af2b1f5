package vulkan

import (
	"context"
	"log/slog"
	"strings"
	"unsafe"

	vk "github.com/vulkan-go/vulkan"
)

// debugReportFlags are the report kinds the callback subscribes to.
const debugReportFlags = vk.DebugReportErrorBit | vk.DebugReportWarningBit |
	vk.DebugReportPerformanceWarningBit | vk.DebugReportInformationBit | vk.DebugReportDebugBit

// debugLevel maps report flags to a log level. The most severe bit wins.
func debugLevel(flags vk.DebugReportFlags) slog.Level {
	switch {
	case flags&vk.DebugReportFlags(vk.DebugReportErrorBit) != 0:
		return slog.LevelError
	case flags&vk.DebugReportFlags(vk.DebugReportWarningBit|vk.DebugReportPerformanceWarningBit) != 0:
		return slog.LevelWarn
	case flags&vk.DebugReportFlags(vk.DebugReportInformationBit) != 0:
		return slog.LevelInfo
	}
	return slog.LevelDebug
}

// debugCategory tags a message with where it came from.
func debugCategory(flags vk.DebugReportFlags, layerPrefix string) string {
	switch {
	case flags&vk.DebugReportFlags(vk.DebugReportPerformanceWarningBit) != 0:
		return "PERF"
	case strings.Contains(strings.ToLower(layerPrefix), "validation"):
		return "VALI"
	}
	return "GNRL"
}

// newDebugCallback returns a report callback which writes every message to log.
func newDebugCallback(log *slog.Logger) vk.DebugReportCallbackFunc {
	return func(
		flags vk.DebugReportFlags,
		objectType vk.DebugReportObjectType,
		object uint64,
		location uint,
		messageCode int32,
		pLayerPrefix string,
		pMessage string,
		pUserData unsafe.Pointer,
	) vk.Bool32 {
		log.LogAttrs(context.Background(), debugLevel(flags), pMessage,
			slog.String("category", debugCategory(flags, pLayerPrefix)),
			slog.String("layer", pLayerPrefix),
			slog.Int("code", int(messageCode)),
			slog.Uint64("object", object),
		)
		return vk.Bool32(vk.False)
	}
}

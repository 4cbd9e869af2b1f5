package vulkan

import (
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
	vk "github.com/vulkan-go/vulkan"

	"vulkan-renderer/queues"
)

// Candidate describes a physical device as far as device selection cares.
type Candidate struct {
	Name       string
	Discrete   bool
	APIVersion uint32
	Features   Features
	Extensions []string
	Families   []queues.Family

	SurfaceFormats int
	PresentModes   int
}

// requiredExtensions are the device extensions the renderer cannot run without.
var requiredExtensions = []string{
	vk.KhrSwapchainExtensionName,
}

// minAPIVersion is the lowest Vulkan version a device has to support.
var minAPIVersion = vk.MakeVersion(1, 3, 0)

// Unsuitable returns why the device cannot be used, or an empty string when it
// can.
func (c Candidate) Unsuitable() string {
	if c.APIVersion < minAPIVersion {
		return fmt.Sprintf("api version %s is below 1.3", versionString(c.APIVersion))
	}

	var missing []string
	if !c.Features.DynamicRendering {
		missing = append(missing, "dynamicRendering")
	}
	if !c.Features.Synchronization2 {
		missing = append(missing, "synchronization2")
	}
	if !c.Features.BufferDeviceAddress {
		missing = append(missing, "bufferDeviceAddress")
	}
	if !c.Features.DescriptorIndexing {
		missing = append(missing, "descriptorIndexing")
	}
	if len(missing) > 0 {
		return "missing features: " + strings.Join(missing, ", ")
	}

	available := make(map[string]struct{}, len(c.Extensions))
	for _, ext := range c.Extensions {
		available[strings.TrimRight(ext, "\x00")] = struct{}{}
	}
	for _, ext := range requiredExtensions {
		ext = strings.TrimRight(ext, "\x00")
		if _, ok := available[ext]; !ok {
			missing = append(missing, ext)
		}
	}
	if len(missing) > 0 {
		return "missing extensions: " + strings.Join(missing, ", ")
	}

	indices := queues.Find(c.Families)
	if _, ok := indices.Unified(); !ok {
		return "no queue family supports both graphics and presentation"
	}

	if c.SurfaceFormats == 0 || c.PresentModes == 0 {
		return "surface has no formats or present modes"
	}

	return ""
}

// Score returns how suitable the device is. Bigger is better, zero means the
// device cannot be used.
func (c Candidate) Score() uint32 {
	if c.Unsuitable() != "" {
		return 0
	}
	if c.Discrete {
		return 1000
	}
	return 1
}

// Select returns the index of the best suitable candidate. Ties go to the one
// enumerated first.
func Select(candidates []Candidate) (int, error) {
	if len(candidates) == 0 {
		return 0, errors.New("failed to find GPUs with Vulkan support")
	}

	var (
		selected = -1
		score    uint32
		reasons  []string
	)
	for i, c := range candidates {
		s := c.Score()
		if s == 0 {
			reasons = append(reasons, fmt.Sprintf("%s: %s", c.Name, c.Unsuitable()))
			continue
		}
		if s > score {
			selected, score = i, s
		}
	}

	if selected < 0 {
		return 0, errors.Newf("failed to find a suitable physical device (%s)",
			strings.Join(reasons, "; "))
	}
	return selected, nil
}

func versionString(v uint32) string {
	return fmt.Sprintf("%d.%d.%d", v>>22, (v>>12)&0x3ff, v&0xfff)
}

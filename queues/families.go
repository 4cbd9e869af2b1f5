package queues

import (
	"vulkan-renderer/optional"
)

// Family describes the capabilities of one queue family of a physical device.
type Family struct {
	// Graphics is true when the family supports graphics (and so transfer) work.
	Graphics bool

	// Present is true when the family can present to the drawing surface.
	Present bool
}

// FamilyIndices holds the indexes of Vulkan queue families needed by the renderer.
type FamilyIndices struct {

	// Graphics is the index of the graphics queue family.
	Graphics optional.Optional[uint32]

	// Present is the index of the queue family used for presenting to the drawing
	// surface.
	Present optional.Optional[uint32]
}

// IsComplete returns true if all families have been set.
func (f *FamilyIndices) IsComplete() bool {
	return f.Graphics.HasValue() && f.Present.HasValue()
}

// Unified returns the index of a family used for graphics, transfer and
// presentation at once. The renderer submits everything to a single queue, so a
// device without such a family is not usable.
func (f *FamilyIndices) Unified() (uint32, bool) {
	if !f.IsComplete() || f.Graphics.Get() != f.Present.Get() {
		return 0, false
	}
	return f.Graphics.Get(), true
}

// Find returns the family indices for the given families. A family which supports
// both graphics and presentation is preferred over two separate ones.
func Find(families []Family) FamilyIndices {
	indices := FamilyIndices{}

	for i, family := range families {
		if family.Graphics && family.Present {
			indices.Graphics.Set(uint32(i))
			indices.Present.Set(uint32(i))
			return indices
		}
	}

	for i, family := range families {
		if family.Graphics && !indices.Graphics.HasValue() {
			indices.Graphics.Set(uint32(i))
		}
		if family.Present && !indices.Present.HasValue() {
			indices.Present.Set(uint32(i))
		}

		if indices.IsComplete() {
			break
		}
	}

	return indices
}

package render

import (
	"github.com/irfansharif/stipple/internal/encoding"
	"github.com/irfansharif/stipple/internal/tiles"
)

// MaxAttributeSlots is the number of per-vertex attribute slots a draw can
// bind. Slot 0 always carries the row index.
const MaxAttributeSlots = 16

// Unassigned marks a (channel, phase) pair without a slot.
const Unassigned = -1

// SlotMap records which attribute slot carries each bound field.
type SlotMap struct {
	channels [encoding.NumChannels][2]int
	fields   []string // slot → field
	slots    map[string]int
}

// Slot returns the slot carrying the given channel phase, or Unassigned.
func (m SlotMap) Slot(c encoding.Channel, p encoding.Phase) int {
	return m.channels[c][p]
}

// Field returns the field in the given slot.
func (m SlotMap) Field(slot int) (string, bool) {
	if slot < 0 || slot >= len(m.fields) {
		return "", false
	}
	return m.fields[slot], true
}

// FieldSlot returns the slot a field is bound to.
func (m SlotMap) FieldSlot(field string) (int, bool) {
	s, ok := m.slots[field]
	return s, ok
}

// Len returns the number of slots in use, including the row index.
func (m SlotMap) Len() int { return len(m.fields) }

// AllocateSlots assigns attribute slots to every bound (channel, phase) pair.
// Current phases are placed before last phases, each in channel priority
// order, and pairs sharing a field share a slot. Once the slots run out a
// last phase falls back to its channel's current slot, which drops that
// channel's transition for the frame.
func AllocateSlots(enc *encoding.Encoding) SlotMap {
	m := SlotMap{
		fields: []string{tiles.RowIndexKey},
		slots:  map[string]int{tiles.RowIndexKey: 0},
	}
	for _, c := range encoding.Channels {
		m.channels[c] = [2]int{Unassigned, Unassigned}
	}

	next := 1
	for _, p := range encoding.Phases {
		for _, c := range encoding.Channels {
			field := enc.Binding(c, p).Field
			if field == "" {
				continue
			}
			if slot, ok := m.slots[field]; ok {
				m.channels[c][p] = slot
				continue
			}
			if next < MaxAttributeSlots {
				m.channels[c][p] = next
				m.slots[field] = next
				m.fields = append(m.fields, field)
				next++
				continue
			}
			m.channels[c][p] = m.channels[c][encoding.Current]
			renderLogger.Printf("out of attribute slots: %s/%s (%q) falls back to slot %d",
				c, p, field, m.channels[c][p])
		}
	}
	return m
}

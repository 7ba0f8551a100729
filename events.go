// events.go: Block-relative event lists exchanged with processors
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package clapreload

// EventType discriminates Event payloads.
type EventType uint8

const (
	EventNoteOn EventType = iota
	EventNoteOff
	EventNoteChoke
	EventNoteEnd
	EventNoteExpression
	EventParamValue
	EventParamMod
	EventParamGestureBegin
	EventParamGestureEnd
	EventMIDI
	EventTransport
)

// String returns the event type name.
func (t EventType) String() string {
	switch t {
	case EventNoteOn:
		return "note_on"
	case EventNoteOff:
		return "note_off"
	case EventNoteChoke:
		return "note_choke"
	case EventNoteEnd:
		return "note_end"
	case EventNoteExpression:
		return "note_expression"
	case EventParamValue:
		return "param_value"
	case EventParamMod:
		return "param_mod"
	case EventParamGestureBegin:
		return "param_gesture_begin"
	case EventParamGestureEnd:
		return "param_gesture_end"
	case EventMIDI:
		return "midi"
	case EventTransport:
		return "transport"
	default:
		return "unknown"
	}
}

// Wildcard value for Port, Channel, Key and NoteID matching.
const Wildcard = -1

// Event is a timestamped, block-relative event.
//
// Note events use Port, Channel, Key, NoteID and Velocity. Parameter events
// use ParamID, Value and the note addressing fields for polyphonic targets.
// MIDI events carry a raw three byte message in MIDI and the port in Port.
type Event struct {
	Time     uint32
	Type     EventType
	Port     int16
	Channel  int16
	Key      int16
	NoteID   int32
	Velocity float64
	ParamID  uint32
	Value    float64
	Cookie   uintptr
	MIDI     [3]byte
}

// NoteOnEvent builds a note-on event. noteID may be Wildcard.
func NoteOnEvent(time uint32, port, channel, key int16, noteID int32, velocity float64) Event {
	return Event{Time: time, Type: EventNoteOn, Port: port, Channel: channel, Key: key, NoteID: noteID, Velocity: velocity}
}

// NoteOffEvent builds a note-off event. Any addressing field may be Wildcard.
func NoteOffEvent(time uint32, port, channel, key int16, noteID int32, velocity float64) Event {
	return Event{Time: time, Type: EventNoteOff, Port: port, Channel: channel, Key: key, NoteID: noteID, Velocity: velocity}
}

// ParamValueEvent builds a monophonic parameter change.
func ParamValueEvent(time uint32, paramID uint32, value float64) Event {
	return Event{Time: time, Type: EventParamValue, ParamID: paramID, Value: value,
		Port: Wildcard, Channel: Wildcard, Key: Wildcard, NoteID: Wildcard}
}

// MIDIEvent builds a raw MIDI 1.0 event.
func MIDIEvent(time uint32, port int16, data [3]byte) Event {
	return Event{Time: time, Type: EventMIDI, Port: port, MIDI: data, NoteID: Wildcard}
}

// InputEvents is a read-only, time-ordered event list.
type InputEvents interface {
	Len() int
	Get(index int) Event
}

// OutputEvents receives events produced by a processor.
type OutputEvents interface {
	TryPush(event Event) bool
}

// EventBuffer is a fixed-capacity event list usable as both input and output.
//
// Push never allocates once the buffer is created, which makes it usable on
// the audio thread.
type EventBuffer struct {
	events []Event
}

// NewEventBuffer creates a buffer holding up to capacity events.
func NewEventBuffer(capacity int) *EventBuffer {
	return &EventBuffer{events: make([]Event, 0, capacity)}
}

// Len implements InputEvents.
func (b *EventBuffer) Len() int { return len(b.events) }

// Get implements InputEvents.
func (b *EventBuffer) Get(index int) Event { return b.events[index] }

// TryPush implements OutputEvents. It fails when the buffer is full.
func (b *EventBuffer) TryPush(event Event) bool {
	if len(b.events) == cap(b.events) {
		return false
	}
	b.events = append(b.events, event)
	return true
}

// Cap returns the buffer capacity.
func (b *EventBuffer) Cap() int { return cap(b.events) }

// Clear empties the buffer without releasing its storage.
func (b *EventBuffer) Clear() { b.events = b.events[:0] }

// Events returns the buffered events. The slice is only valid until the next
// mutation.
func (b *EventBuffer) Events() []Event { return b.events }

// MergeSorted fills b with the stable time-ordered merge of first and second.
// Both inputs must already be sorted by time; on equal timestamps events from
// first come before events from second. Events that do not fit are dropped
// and counted in the return value.
func (b *EventBuffer) MergeSorted(first, second InputEvents) (dropped int) {
	b.Clear()
	i, j := 0, 0
	for i < first.Len() || j < second.Len() {
		var ev Event
		switch {
		case j >= second.Len():
			ev = first.Get(i)
			i++
		case i >= first.Len():
			ev = second.Get(j)
			j++
		case first.Get(i).Time <= second.Get(j).Time:
			ev = first.Get(i)
			i++
		default:
			ev = second.Get(j)
			j++
		}
		if !b.TryPush(ev) {
			dropped++
		}
	}
	return dropped
}

// emptyEvents is an InputEvents with no events.
type emptyEvents struct{}

func (emptyEvents) Len() int { return 0 }

func (emptyEvents) Get(int) Event { return Event{} }

func (emptyEvents) TryPush(Event) bool { return true }

// discardEvents drops every pushed event. Used for the output of a processor
// that is fading out so its events never reach the host twice.
type discardEvents struct{}

func (discardEvents) TryPush(Event) bool { return true }

// eventsOrEmpty substitutes an empty list for nil.
func eventsOrEmpty(in InputEvents) InputEvents {
	if in == nil {
		return emptyEvents{}
	}
	return in
}

// note_tracker.go: Held-note bookkeeping for processor swaps
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package clapreload

import (
	"gitlab.com/gomidi/midi/v2"
)

// DefaultMaxTrackedNotes bounds the number of held notes remembered.
const DefaultMaxTrackedNotes = 128

type activeNote struct {
	port     int16
	channel  int16
	key      int16
	noteID   int32
	velocity float64
	midi     bool
}

// matches reports whether a note-off or choke addressed at ev releases n.
// Wildcard fields match anything. MIDI releases only reach notes started
// by MIDI, and note events only reach notes started by note events.
func (n *activeNote) matches(ev *Event, fromMIDI bool) bool {
	if n.midi != fromMIDI {
		return false
	}
	if ev.NoteID >= 0 && n.noteID >= 0 && ev.NoteID != n.noteID {
		return false
	}
	if ev.Port >= 0 && ev.Port != n.port {
		return false
	}
	if ev.Channel >= 0 && ev.Channel != n.channel {
		return false
	}
	if ev.Key >= 0 && ev.Key != n.key {
		return false
	}
	return true
}

// midiNoteOn is the status nibble of a MIDI 1.0 note-on.
const midiNoteOn = 0x90

func (n *activeNote) onEvent() Event {
	if n.midi {
		vel := uint8(n.velocity*127 + 0.5) // #nosec G115 -- velocity is in [0, 1]
		if vel == 0 {
			vel = 1
		}
		data := [3]byte{
			midiNoteOn | byte(n.channel)&0x0F, // #nosec G115 -- decoded from MIDI
			byte(n.key) & 0x7F,                // #nosec G115 -- decoded from MIDI
			vel & 0x7F,
		}
		return MIDIEvent(0, n.port, data)
	}
	return NoteOnEvent(0, n.port, n.channel, n.key, n.noteID, n.velocity)
}

// NoteTracker remembers which notes the host is holding so they can be
// replayed into a freshly swapped processor. It runs on the audio thread and
// never allocates after creation.
type NoteTracker struct {
	notes   []activeNote
	dropped int
}

// NewNoteTracker creates a tracker holding up to capacity notes.
func NewNoteTracker(capacity int) *NoteTracker {
	if capacity <= 0 {
		capacity = DefaultMaxTrackedNotes
	}
	return &NoteTracker{notes: make([]activeNote, 0, capacity)}
}

// HandleEvents observes a block of host input events.
func (t *NoteTracker) HandleEvents(events InputEvents) {
	if events == nil {
		return
	}
	for i := 0; i < events.Len(); i++ {
		ev := events.Get(i)
		switch ev.Type {
		case EventNoteOn:
			// A note-on with a wildcard address cannot be replayed.
			if ev.Port < 0 || ev.Channel < 0 || ev.Key < 0 {
				continue
			}
			t.press(activeNote{
				port:     ev.Port,
				channel:  ev.Channel,
				key:      ev.Key,
				noteID:   ev.NoteID,
				velocity: ev.Velocity,
			})
		case EventNoteOff, EventNoteChoke:
			t.release(&ev, false)
		case EventMIDI:
			t.handleMIDI(&ev)
		}
	}
}

func (t *NoteTracker) handleMIDI(ev *Event) {
	msg := midi.Message(ev.MIDI[:])
	var ch, key, vel uint8
	if msg.GetNoteStart(&ch, &key, &vel) {
		t.press(activeNote{
			port:     ev.Port,
			channel:  int16(ch),
			key:      int16(key),
			noteID:   Wildcard,
			velocity: float64(vel) / 127,
			midi:     true,
		})
		return
	}
	if msg.GetNoteEnd(&ch, &key) {
		off := Event{Port: ev.Port, Channel: int16(ch), Key: int16(key), NoteID: Wildcard}
		t.release(&off, true)
	}
}

func (t *NoteTracker) press(n activeNote) {
	// Retriggering a held key replaces it.
	for i := range t.notes {
		if t.notes[i].port == n.port && t.notes[i].channel == n.channel &&
			t.notes[i].key == n.key && t.notes[i].midi == n.midi {
			t.notes[i] = n
			return
		}
	}
	if len(t.notes) == cap(t.notes) {
		t.dropped++
		return
	}
	t.notes = append(t.notes, n)
}

func (t *NoteTracker) release(ev *Event, fromMIDI bool) {
	kept := t.notes[:0]
	for _, n := range t.notes {
		if !n.matches(ev, fromMIDI) {
			kept = append(kept, n)
		}
	}
	t.notes = kept
}

// RecoverNotes pushes a note-on at time 0 for every held note, in the order
// they were pressed. It returns how many events did not fit.
func (t *NoteTracker) RecoverNotes(into OutputEvents) int {
	failed := 0
	for i := range t.notes {
		if !into.TryPush(t.notes[i].onEvent()) {
			failed++
		}
	}
	return failed
}

// Len returns the number of held notes.
func (t *NoteTracker) Len() int { return len(t.notes) }

// Dropped returns how many note-ons were ignored because the tracker was full.
func (t *NoteTracker) Dropped() int { return t.dropped }

// Clear forgets every held note.
func (t *NoteTracker) Clear() {
	t.notes = t.notes[:0]
}

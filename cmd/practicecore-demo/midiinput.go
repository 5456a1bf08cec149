package main

import (
	"fmt"
	"sync"

	"gitlab.com/gomidi/midi/v2"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv"

	"github.com/cadenzapiano/practicecore/pkg/ports"
)

// gomidiInput is the reference ports.MidiInputPort backend: it lists and
// opens real hardware/virtual ports through gomidi's rtmidi driver,
// forwarding each message's raw status bytes to the callback untouched —
// decoding into a core.MidiLikeEvent is the coordinator's job via
// ports.DecodeStatusBytes.
type gomidiInput struct {
	mu   sync.Mutex
	stop func()
}

func newGomidiInput() *gomidiInput {
	return &gomidiInput{}
}

func (g *gomidiInput) ListInputs() ([]ports.MidiInputDevice, error) {
	inPorts := midi.GetInPorts()
	devices := make([]ports.MidiInputDevice, 0, len(inPorts))
	for _, in := range inPorts {
		devices = append(devices, ports.MidiInputDevice{
			ID:          ports.DeviceID(fmt.Sprintf("%d", in.Number())),
			Name:        in.String(),
			IsAvailable: true,
		})
	}
	return devices, nil
}

func (g *gomidiInput) OpenInput(id ports.DeviceID, callback ports.MidiInputCallback) (ports.StreamHandle, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	in, err := midi.FindInPort(string(id))
	if err != nil {
		return nil, fmt.Errorf("find midi input %q: %w", id, err)
	}

	stop, err := midi.ListenTo(in, func(msg midi.Message, _ int32) {
		callback(msg.Bytes())
	})
	if err != nil {
		return nil, fmt.Errorf("listen to midi input %q: %w", id, err)
	}
	g.stop = stop

	return &gomidiStreamHandle{stop: stop}, nil
}

type gomidiStreamHandle struct {
	stop func()
}

func (h *gomidiStreamHandle) Close() error {
	if h.stop != nil {
		h.stop()
	}
	return nil
}

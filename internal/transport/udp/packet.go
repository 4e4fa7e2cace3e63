// SPDX-License-Identifier: MIT
package udp

import (
	"bytes"
	"encoding/binary"

	applog "spectro/internal/log"
	"spectro/internal/pipeline"
)

// Packet layout (BigEndian):
//
//	sequence  uint32     monotonically increasing per sender
//	timestamp int64      snapshot time, nanoseconds since epoch
//	barCount  uint16     number of bars (N)
//	values    N*float32  smoothed bar values, [0,1]
//	peaks     N*float32  peak-hold values, [0,1]

// SnapshotSender packs snapshots into binary packets and sends them
// through a Sender. Buffers are reused across sends.
type SnapshotSender struct {
	sender *Sender
	seq    uint32
	f32    []float32
	packet bytes.Buffer
}

// NewSnapshotSender wraps sender. The sender is owned: Close closes it.
func NewSnapshotSender(sender *Sender) *SnapshotSender {
	return &SnapshotSender{sender: sender}
}

// Send encodes snap and transmits it as one datagram.
func (t *SnapshotSender) Send(snap *pipeline.Snapshot) error {
	t.seq++

	n := len(snap.Bars)
	if cap(t.f32) < n {
		t.f32 = make([]float32, n)
	}
	t.f32 = t.f32[:n]

	t.packet.Reset()
	err := binary.Write(&t.packet, binary.BigEndian, t.seq)
	if err == nil {
		err = binary.Write(&t.packet, binary.BigEndian, snap.Timestamp.UnixNano())
	}
	if err == nil {
		err = binary.Write(&t.packet, binary.BigEndian, uint16(n))
	}
	if err == nil {
		for i, bar := range snap.Bars {
			t.f32[i] = float32(bar.Value)
		}
		err = binary.Write(&t.packet, binary.BigEndian, t.f32)
	}
	if err == nil {
		for i, bar := range snap.Bars {
			t.f32[i] = float32(bar.Peak)
		}
		err = binary.Write(&t.packet, binary.BigEndian, t.f32)
	}
	if err != nil {
		applog.Errorf("UDP: packing snapshot failed: %v", err)
		return err
	}

	return t.sender.Send(t.packet.Bytes())
}

// Close closes the underlying sender.
func (t *SnapshotSender) Close() error {
	return t.sender.Close()
}

// Package tstest builds synthetic MPEG-TS streams for tests.
package tstest

const (
	PacketSize = 188
	PCRPID     = 0x100
	DataPID    = 0x101
)

// PCRPacket returns an adaptation-only packet carrying a PCR with the given
// 90kHz base.
func PCRPacket(pid uint16, base int64) []byte {
	b := make([]byte, PacketSize)
	b[0] = 0x47
	b[1] = byte(pid>>8) & 0x1f
	b[2] = byte(pid)
	b[3] = 0x20
	b[4] = PacketSize - 5
	b[5] = 0x10
	b[6] = byte(base >> 25)
	b[7] = byte(base >> 17)
	b[8] = byte(base >> 9)
	b[9] = byte(base >> 1)
	b[10] = byte(base<<7) | 0x7e
	b[11] = 0
	for i := 12; i < PacketSize; i++ {
		b[i] = 0xff
	}
	return b
}

// DataPacket returns a payload-only packet filled with fill.
func DataPacket(pid uint16, cc byte, fill byte) []byte {
	b := make([]byte, PacketSize)
	b[0] = 0x47
	b[1] = byte(pid>>8) & 0x1f
	b[2] = byte(pid)
	b[3] = 0x10 | (cc & 0x0f)
	for i := 4; i < PacketSize; i++ {
		b[i] = fill
	}
	return b
}

// Stream returns seconds*perSecond PCR packets, evenly spaced in time and
// starting at startBase, each followed by dataPackets payload packets.
func Stream(startBase int64, seconds, perSecond, dataPackets int) []byte {
	var out []byte
	var cc byte

	step := int64(90000 / perSecond)
	for i := 0; i < seconds*perSecond; i++ {
		out = append(out, PCRPacket(PCRPID, startBase+int64(i)*step)...)
		for j := 0; j < dataPackets; j++ {
			out = append(out, DataPacket(DataPID, cc, byte(i))...)
			cc++
		}
	}
	return out
}

// Package protocol implements the framed serial protocol spoken between the
// timer firmware and its host tools. It follows the Klipper wire format:
// VLQ encoded integers inside CRC16 protected frames.
package protocol

// Version is reported in the data dictionary.
const Version = "0.1.0"

// Frame layout: len seq payload... crc_hi crc_lo sync
const (
	HeaderSize  = 2
	TrailerSize = 3
	FrameMin    = HeaderSize + TrailerSize
	FrameMax    = 64
	PayloadMax  = FrameMax - FrameMin

	posLen = 0
	posSeq = 1

	SyncByte = 0x7E
	DestBit  = 0x10
	SeqMask  = 0x0F
)

// NextSeq returns the sequence byte following seq.
func NextSeq(seq uint8) uint8 {
	return ((seq + 1) & SeqMask) | DestBit
}

package netutil

import (
	"encoding/binary"
	"fmt"
	"net"

	"github.com/pkg/errors"

	"github.com/brickhost/brickd/engine/bhioutil"
	"github.com/brickhost/brickd/engine/bhlog"
	"github.com/brickhost/brickd/engine/consts"
	"github.com/brickhost/brickd/engine/netutil/compress"
)

// Framing errors are fatal for the connection they occur on
var (
	ErrFrameTooLarge   = errors.New("frame exceeds maximum payload length")
	ErrBadLengthPrefix = errors.New("corrupt frame length prefix")
)

// PacketConnection reassembles length-prefixed frames from a stream
// connection and writes assembled packets back with the same framing.
// Frame format: [uvarint length][kind tag][fields...], length counted after
// optional compression. It holds no state shared across connections.
type PacketConnection struct {
	conn       Connection
	compressor compress.Compressor
}

// NewPacketConnection creates a packet connection based on a network connection
func NewPacketConnection(conn Connection) *PacketConnection {
	return &PacketConnection{
		conn:       conn,
		compressor: compress.NewSnappyCompressor(),
	}
}

// NewPacket allocates a new packet (usually for sending)
func (pc *PacketConnection) NewPacket() *Packet {
	return NewPacket()
}

// SendPacket writes one framed packet to the connection.
// The packet is not released; the caller owns its reference.
func (pc *PacketConnection) SendPacket(packet *Packet) error {
	packet.compress(pc.compressor)

	var prefix [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(prefix[:], uint64(packet.GetPayloadLen()))

	if consts.DEBUG_PACKETS {
		bhlog.Debugf("%s SEND PACKET len=%d: %v", pc, packet.GetPayloadLen(), packet.Payload())
	}

	if err := bhioutil.WriteAll(pc.conn, prefix[:n]); err != nil {
		return err
	}
	if err := bhioutil.WriteAll(pc.conn, packet.Payload()); err != nil {
		return err
	}
	return pc.conn.Flush()
}

// RecvPacket receives the next packet, blocking until its declared bytes
// have all arrived. A length prefix that cannot be decoded, or one claiming
// more than the configured maximum, fails before any payload is buffered.
func (pc *PacketConnection) RecvPacket() (*Packet, error) {
	payloadLen, err := pc.recvLengthPrefix()
	if err != nil {
		return nil, err
	}

	packet := allocPacket()
	packet.SetPayloadLen(payloadLen)
	if err := bhioutil.ReadAll(pc.conn, packet.Payload()); err != nil {
		packet.Release()
		return nil, err
	}

	if packet.isCompressed() {
		if err := packet.decompress(pc.compressor); err != nil {
			packet.Release()
			return nil, err
		}
	}

	if consts.DEBUG_PACKETS {
		bhlog.Debugf("%s RECV PACKET len=%d: %v", pc, packet.GetPayloadLen(), packet.Payload())
	}
	return packet, nil
}

// recvLengthPrefix decodes the uvarint length prefix one byte at a time so
// that no payload bytes are consumed before the length is validated
func (pc *PacketConnection) recvLengthPrefix() (uint32, error) {
	var v uint64
	var shift uint
	var buf [1]byte

	for i := 0; i < consts.MAX_FRAME_PREFIX_LENGTH; i++ {
		if err := bhioutil.ReadAll(pc.conn, buf[:]); err != nil {
			return 0, err
		}

		b := buf[0]
		v |= uint64(b&0x7f) << shift
		if b < 0x80 {
			if v > consts.MAX_FRAME_PAYLOAD_LENGTH {
				return 0, errors.Wrapf(ErrFrameTooLarge, "frame declares %d bytes", v)
			}
			return uint32(v), nil
		}
		shift += 7
	}
	return 0, ErrBadLengthPrefix
}

// Close the connection
func (pc *PacketConnection) Close() error {
	return pc.conn.Close()
}

// RemoteAddr returns the remote address
func (pc *PacketConnection) RemoteAddr() net.Addr {
	return pc.conn.RemoteAddr()
}

// LocalAddr returns the local address
func (pc *PacketConnection) LocalAddr() net.Addr {
	return pc.conn.LocalAddr()
}

func (pc *PacketConnection) String() string {
	return fmt.Sprintf("[%s >>> %s]", pc.LocalAddr(), pc.RemoteAddr())
}

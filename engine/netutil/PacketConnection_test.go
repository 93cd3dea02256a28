package netutil

import (
	"bytes"
	"encoding/binary"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bmizerany/assert"
	"github.com/pkg/errors"
)

// testConn is an in-memory Connection: reads come from a fed buffer in chunks
// of at most chunkSize bytes, blocking while the buffer is empty; writes are
// collected in sentBuf
type testConn struct {
	mu        sync.Mutex
	recvBuf   bytes.Buffer
	sentBuf   bytes.Buffer
	chunkSize int
}

func newTestConn(chunkSize int) *testConn {
	return &testConn{chunkSize: chunkSize}
}

func (c *testConn) feed(b []byte) {
	c.mu.Lock()
	c.recvBuf.Write(b)
	c.mu.Unlock()
}

func (c *testConn) pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.recvBuf.Len()
}

func (c *testConn) Read(b []byte) (int, error) {
	for {
		c.mu.Lock()
		if c.recvBuf.Len() > 0 {
			if c.chunkSize > 0 && len(b) > c.chunkSize {
				b = b[:c.chunkSize]
			}
			n, err := c.recvBuf.Read(b)
			c.mu.Unlock()
			return n, err
		}
		c.mu.Unlock()
		time.Sleep(time.Millisecond)
	}
}

func (c *testConn) Write(b []byte) (int, error) {
	return c.sentBuf.Write(b)
}

func (c *testConn) Flush() error                       { return nil }
func (c *testConn) Close() error                       { return nil }
func (c *testConn) LocalAddr() net.Addr                { return nil }
func (c *testConn) RemoteAddr() net.Addr               { return nil }
func (c *testConn) SetDeadline(t time.Time) error      { return nil }
func (c *testConn) SetReadDeadline(t time.Time) error  { return nil }
func (c *testConn) SetWriteDeadline(t time.Time) error { return nil }

func encodePackets(t *testing.T, build ...func(*Packet)) []byte {
	conn := newTestConn(0)
	pc := NewPacketConnection(conn)
	for _, f := range build {
		pkt := pc.NewPacket()
		f(pkt)
		if err := pc.SendPacket(pkt); err != nil {
			t.Fatalf("send failed: %v", err)
		}
		pkt.Release()
	}
	return conn.sentBuf.Bytes()
}

func TestFrameRoundTripAnyFragmentation(t *testing.T) {
	wire := encodePackets(t,
		func(p *Packet) {
			p.AppendByte(17)
			p.AppendUint32(1000)
			p.AppendFloat32(1.5)
			p.AppendVarStr("hello world")
		},
		func(p *Packet) {
			p.AppendByte(6)
			p.AppendUint32(42)
			p.AppendVarStr("second")
		},
		func(p *Packet) {
			p.AppendByte(25)
			p.AppendBool(true)
			p.AppendUint16(7)
		},
	)

	for chunkSize := 1; chunkSize <= len(wire); chunkSize++ {
		conn := newTestConn(chunkSize)
		conn.feed(wire)
		pc := NewPacketConnection(conn)

		pkt, err := pc.RecvPacket()
		if err != nil {
			t.Fatalf("chunk %d: recv failed: %v", chunkSize, err)
		}
		assert.Equal(t, byte(17), pkt.ReadOneByte())
		assert.Equal(t, uint32(1000), pkt.ReadUint32())
		assert.Equal(t, float32(1.5), pkt.ReadFloat32())
		assert.Equal(t, "hello world", pkt.ReadVarStr())
		pkt.Release()

		pkt, err = pc.RecvPacket()
		if err != nil {
			t.Fatalf("chunk %d: recv failed: %v", chunkSize, err)
		}
		assert.Equal(t, byte(6), pkt.ReadOneByte())
		assert.Equal(t, uint32(42), pkt.ReadUint32())
		assert.Equal(t, "second", pkt.ReadVarStr())
		pkt.Release()

		pkt, err = pc.RecvPacket()
		if err != nil {
			t.Fatalf("chunk %d: recv failed: %v", chunkSize, err)
		}
		assert.Equal(t, byte(25), pkt.ReadOneByte())
		assert.Equal(t, true, pkt.ReadBool())
		assert.Equal(t, uint16(7), pkt.ReadUint16())
		pkt.Release()
	}
}

// the concrete protocol scenario: chat packet kind=6 with (42, "hello"),
// verified at every possible two-part split of the wire bytes
func TestChatPacketEverySplitPoint(t *testing.T) {
	wire := encodePackets(t, func(p *Packet) {
		p.AppendByte(6)
		p.AppendUint32(42)
		p.AppendVarStr("hello")
	})

	for split := 0; split <= len(wire); split++ {
		conn := newTestConn(0)
		conn.feed(wire[:split])
		pc := NewPacketConnection(conn)

		type result struct {
			pkt *Packet
			err error
		}
		done := make(chan result, 1)
		go func() {
			pkt, err := pc.RecvPacket()
			done <- result{pkt, err}
		}()

		// second fragment arrives after an arbitrary delay
		time.Sleep(time.Millisecond)
		conn.feed(wire[split:])

		select {
		case r := <-done:
			if r.err != nil {
				t.Fatalf("split %d: recv failed: %v", split, r.err)
			}
			assert.Equal(t, byte(6), r.pkt.ReadOneByte())
			assert.Equal(t, uint32(42), r.pkt.ReadUint32())
			assert.Equal(t, "hello", r.pkt.ReadVarStr())
			r.pkt.Release()
		case <-time.After(time.Second):
			t.Fatalf("split %d: recv timed out", split)
		}
	}
}

func TestLengthBoundRejectedBeforePayload(t *testing.T) {
	conn := newTestConn(0)
	// uvarint for a length far beyond MAX_FRAME_PAYLOAD_LENGTH, followed by
	// garbage that must never be buffered
	conn.feed([]byte{0xff, 0xff, 0xff, 0xff, 0x7f})
	garbage := bytes.Repeat([]byte{0xaa}, 64)
	conn.feed(garbage)

	pc := NewPacketConnection(conn)
	_, err := pc.RecvPacket()
	if err == nil {
		t.Fatal("oversized frame was accepted")
	}
	assert.Equal(t, ErrFrameTooLarge, errors.Cause(err))
	assert.Equal(t, len(garbage), conn.pending()) // nothing past the prefix consumed
}

func TestCorruptLengthPrefix(t *testing.T) {
	conn := newTestConn(0)
	conn.feed(bytes.Repeat([]byte{0x80}, 16)) // varint that never terminates

	pc := NewPacketConnection(conn)
	_, err := pc.RecvPacket()
	assert.Equal(t, ErrBadLengthPrefix, errors.Cause(err))
}

func TestCompressedPacketRoundTrip(t *testing.T) {
	long := strings.Repeat("brick hill brick hill ", 200)

	wire := encodePackets(t, func(p *Packet) {
		p.AppendByte(2)
		p.AppendUint32(9)
		p.AppendVarStr(long)
		p.SetCompressHint()
	})

	// the frame on the wire must actually be shorter than the raw fields
	if len(wire) >= len(long) {
		t.Fatalf("frame was not compressed: %d bytes on wire for %d field bytes", len(wire), len(long))
	}

	conn := newTestConn(3) // fragmented on top of compression
	conn.feed(wire)
	pc := NewPacketConnection(conn)

	pkt, err := pc.RecvPacket()
	if err != nil {
		t.Fatalf("recv failed: %v", err)
	}
	assert.Equal(t, byte(2), pkt.ReadOneByte())
	assert.Equal(t, uint32(9), pkt.ReadUint32())
	assert.Equal(t, long, pkt.ReadVarStr())
	pkt.Release()
}

func TestCompressedFrameWithZeroLengthTrailer(t *testing.T) {
	// kind tag with the compressed bit, a snappy block decoding to zero
	// bytes, and a trailer declaring zero original bytes
	payload := []byte{byte(2) | CompressedKindBit, 0x00, 0, 0, 0, 0}
	var prefix [10]byte
	n := binary.PutUvarint(prefix[:], uint64(len(payload)))
	wire := append(prefix[:n], payload...)

	conn := newTestConn(0)
	conn.feed(wire)
	pc := NewPacketConnection(conn)

	if _, err := pc.RecvPacket(); err == nil {
		t.Fatal("crafted zero-length trailer was accepted")
	}
}

func TestSmallPacketNotCompressed(t *testing.T) {
	wire := encodePackets(t, func(p *Packet) {
		p.AppendByte(2)
		p.AppendVarStr("tiny")
		p.SetCompressHint()
	})

	// length prefix is one byte here; kind tag must not carry the compressed bit
	assert.Equal(t, byte(2), wire[1])
}

package netutil

import (
	"math"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"

	"github.com/brickhost/brickd/engine/bhlog"
	"github.com/brickhost/brickd/engine/consts"
	"github.com/brickhost/brickd/engine/netutil/compress"
)

const (
	_MIN_PAYLOAD_CAP = 128

	// CompressedKindBit is set on the kind tag byte when the fields that
	// follow it are compressed
	CompressedKindBit = byte(0x80)
)

var (
	packetPool = sync.Pool{
		New: func() interface{} {
			return &Packet{
				payload: make([]byte, 0, _MIN_PAYLOAD_CAP),
			}
		},
	}
)

// Packet is one protocol message under assembly or decode: a kind tag byte
// followed by typed fields in declaration order. The varint length prefix is
// written by PacketConnection when the packet hits the wire.
type Packet struct {
	readCursor   uint32
	refcount     int64
	compressHint bool
	payload      []byte
}

func allocPacket() *Packet {
	pkt := packetPool.Get().(*Packet)
	if pkt.refcount != 0 {
		bhlog.Panicf("packet must be released when allocated from pool, but refcount=%d", pkt.refcount)
	}
	pkt.refcount = 1
	return pkt
}

// NewPacket allocates a new packet from the packet pool
func NewPacket() *Packet {
	return allocPacket()
}

// AddRefCount adds reference count of packet
func (p *Packet) AddRefCount(add int64) {
	atomic.AddInt64(&p.refcount, add)
}

// Release releases the packet to the packet pool
func (p *Packet) Release() {
	refcount := atomic.AddInt64(&p.refcount, -1)
	if refcount == 0 {
		p.readCursor = 0
		p.compressHint = false
		p.payload = p.payload[:0]
		packetPool.Put(p)
	} else if refcount < 0 {
		bhlog.Panicf("releasing packet with refcount=%d", p.refcount)
	}
}

// GetPayloadLen returns the payload length
func (p *Packet) GetPayloadLen() uint32 {
	return uint32(len(p.payload))
}

// Payload returns the total payload of packet
func (p *Packet) Payload() []byte {
	return p.payload
}

// UnreadPayload returns the unread payload
func (p *Packet) UnreadPayload() []byte {
	return p.payload[p.readCursor:]
}

// HasUnreadPayload returns if all payload is read
func (p *Packet) HasUnreadPayload() bool {
	return p.readCursor < uint32(len(p.payload))
}

// ClearPayload clears packet payload
func (p *Packet) ClearPayload() {
	p.readCursor = 0
	p.payload = p.payload[:0]
}

// SetPayloadLen resizes the payload to plen bytes for direct filling
func (p *Packet) SetPayloadLen(plen uint32) {
	if plen > consts.MAX_FRAME_PAYLOAD_LENGTH {
		bhlog.Panicf("payload length too long: %d", plen)
	}

	if uint32(cap(p.payload)) >= plen {
		p.payload = p.payload[:plen]
	} else {
		p.payload = make([]byte, plen)
	}
}

// SetCompressHint marks the packet as worth compressing before send;
// whether it actually is depends on the payload size threshold
func (p *Packet) SetCompressHint() {
	p.compressHint = true
}

// AppendByte appends one byte to the end of payload
func (p *Packet) AppendByte(b byte) {
	p.payload = append(p.payload, b)
}

// ReadOneByte reads one byte from the beginning of unread payload
func (p *Packet) ReadOneByte() (v byte) {
	p.assureUnread(1)
	v = p.payload[p.readCursor]
	p.readCursor += 1
	return
}

// AppendBool appends one byte 1/0 to the end of payload
func (p *Packet) AppendBool(b bool) {
	if b {
		p.AppendByte(1)
	} else {
		p.AppendByte(0)
	}
}

// ReadBool reads one byte 1/0 from the beginning of unread payload
func (p *Packet) ReadBool() (v bool) {
	return p.ReadOneByte() != 0
}

// AppendUint16 appends one uint16 to the end of payload
func (p *Packet) AppendUint16(v uint16) {
	var b [2]byte
	NETWORK_ENDIAN.PutUint16(b[:], v)
	p.payload = append(p.payload, b[:]...)
}

// ReadUint16 reads one uint16 from the beginning of unread payload
func (p *Packet) ReadUint16() (v uint16) {
	p.assureUnread(2)
	v = NETWORK_ENDIAN.Uint16(p.payload[p.readCursor:])
	p.readCursor += 2
	return
}

// AppendUint32 appends one uint32 to the end of payload
func (p *Packet) AppendUint32(v uint32) {
	var b [4]byte
	NETWORK_ENDIAN.PutUint32(b[:], v)
	p.payload = append(p.payload, b[:]...)
}

// ReadUint32 reads one uint32 from the beginning of unread payload
func (p *Packet) ReadUint32() (v uint32) {
	p.assureUnread(4)
	v = NETWORK_ENDIAN.Uint32(p.payload[p.readCursor:])
	p.readCursor += 4
	return
}

// PopUint32 pops one uint32 from the end of payload
func (p *Packet) PopUint32() (v uint32) {
	plen := len(p.payload)
	if plen < 4 {
		bhlog.Panicf("PopUint32: payload is only %d bytes", plen)
	}
	v = NETWORK_ENDIAN.Uint32(p.payload[plen-4:])
	p.payload = p.payload[:plen-4]
	return
}

// AppendUint64 appends one uint64 to the end of payload
func (p *Packet) AppendUint64(v uint64) {
	var b [8]byte
	NETWORK_ENDIAN.PutUint64(b[:], v)
	p.payload = append(p.payload, b[:]...)
}

// ReadUint64 reads one uint64 from the beginning of unread payload
func (p *Packet) ReadUint64() (v uint64) {
	p.assureUnread(8)
	v = NETWORK_ENDIAN.Uint64(p.payload[p.readCursor:])
	p.readCursor += 8
	return
}

// AppendInt32 appends one int32 to the end of payload
func (p *Packet) AppendInt32(v int32) {
	p.AppendUint32(uint32(v))
}

// ReadInt32 reads one int32 from the beginning of unread payload
func (p *Packet) ReadInt32() int32 {
	return int32(p.ReadUint32())
}

// AppendFloat32 appends one float32 to the end of payload
func (p *Packet) AppendFloat32(f float32) {
	p.AppendUint32(math.Float32bits(f))
}

// ReadFloat32 reads one float32 from the beginning of unread payload
func (p *Packet) ReadFloat32() float32 {
	return math.Float32frombits(p.ReadUint32())
}

// AppendFloat64 appends one float64 to the end of payload
func (p *Packet) AppendFloat64(f float64) {
	p.AppendUint64(math.Float64bits(f))
}

// ReadFloat64 reads one float64 from the beginning of unread payload
func (p *Packet) ReadFloat64() float64 {
	return math.Float64frombits(p.ReadUint64())
}

// AppendBytes appends a slice of bytes to the end of payload
func (p *Packet) AppendBytes(v []byte) {
	p.payload = append(p.payload, v...)
}

// ReadBytes reads bytes from the beginning of unread payload
//
// The bytes are not copied: they alias the packet payload and are only valid
// until the packet is released
func (p *Packet) ReadBytes(size uint32) []byte {
	p.assureUnread(size)
	b := p.payload[p.readCursor : p.readCursor+size]
	p.readCursor += size
	return b
}

// AppendVarStr appends a varsize string to the end of payload
func (p *Packet) AppendVarStr(s string) {
	p.AppendVarBytes([]byte(s))
}

// AppendVarBytes appends varsize bytes to the end of payload
func (p *Packet) AppendVarBytes(v []byte) {
	p.AppendUint32(uint32(len(v)))
	p.AppendBytes(v)
}

// ReadVarStr reads a varsize string from the beginning of unread payload
func (p *Packet) ReadVarStr() string {
	return string(p.ReadVarBytes())
}

// ReadVarBytes reads varsize bytes from the beginning of unread payload
func (p *Packet) ReadVarBytes() []byte {
	blen := p.ReadUint32()
	return p.ReadBytes(blen)
}

// AppendStringList appends a list of strings to the end of payload
func (p *Packet) AppendStringList(list []string) {
	p.AppendUint16(uint16(len(list)))
	for _, s := range list {
		p.AppendVarStr(s)
	}
}

// ReadStringList reads a list of strings from the beginning of unread payload
func (p *Packet) ReadStringList() []string {
	listlen := int(p.ReadUint16())
	list := make([]string, listlen)
	for i := 0; i < listlen; i++ {
		list[i] = p.ReadVarStr()
	}
	return list
}

// AppendData appends one data of any type to the end of payload
func (p *Packet) AppendData(msg interface{}) {
	dataBytes, err := MSG_PACKER.PackMsg(msg, nil)
	if err != nil {
		bhlog.Panic(err)
	}

	p.AppendVarBytes(dataBytes)
}

// ReadData reads one data of any type from the beginning of unread payload
func (p *Packet) ReadData(msg interface{}) {
	b := p.ReadVarBytes()
	err := MSG_PACKER.UnpackMsg(b, msg)
	if err != nil {
		bhlog.Panic(err)
	}
}

func (p *Packet) assureUnread(size uint32) {
	if p.readCursor+size > uint32(len(p.payload)) {
		bhlog.Panicf("Packet %p: payload is %d bytes, but reading %d+%d", p, len(p.payload), p.readCursor, size)
	}
}

var defaultCompressor = compress.NewSnappyCompressor()

// PrepareSend settles compression before a packet fans out to several
// connections, so that concurrent writers never mutate the payload.
// SendPacket compresses lazily for packets sent to a single connection.
func (p *Packet) PrepareSend() {
	p.compress(defaultCompressor)
}

func (p *Packet) isCompressed() bool {
	return len(p.payload) > 0 && p.payload[0]&CompressedKindBit != 0
}

func (p *Packet) requireCompress() bool {
	return p.compressHint && !p.isCompressed() &&
		len(p.payload) >= consts.PACKET_PAYLOAD_LEN_COMPRESS_THRESHOLD
}

// compress replaces the field bytes after the kind tag with their compressed
// form and flags the kind tag; the original field length is carried in a
// trailing uint32 so the receiver can size its buffer
func (p *Packet) compress(compressor compress.Compressor) {
	if !p.requireCompress() {
		return
	}

	fields := p.payload[1:]
	c, err := compressor.Compress(fields, nil)
	if err != nil {
		bhlog.Panic(errors.Wrap(err, "compress failed"))
	}

	if len(c) >= len(fields)-4 { // leave 4 bytes for the length trailer
		p.compressHint = false // compress not useful enough, throw away
		return
	}

	newPayload := make([]byte, 0, 1+len(c)+4)
	newPayload = append(newPayload, p.payload[0]|CompressedKindBit)
	newPayload = append(newPayload, c...)
	var lenbuf [4]byte
	NETWORK_ENDIAN.PutUint32(lenbuf[:], uint32(len(fields)))
	newPayload = append(newPayload, lenbuf[:]...)
	p.payload = newPayload
}

// decompress restores the original field bytes of a compressed packet.
// The packet comes off the wire, so a bad trailer is an error, not a panic.
func (p *Packet) decompress(compressor compress.Compressor) error {
	if !p.isCompressed() {
		return nil
	}
	if len(p.payload) < 1+4 {
		return errors.Errorf("compressed packet too short: %d bytes", len(p.payload))
	}

	n := len(p.payload)
	origLen := NETWORK_ENDIAN.Uint32(p.payload[n-4:])
	// compression never engages on an empty field section, so a zero
	// original length can only be a crafted frame
	if origLen == 0 || origLen > consts.MAX_FRAME_PAYLOAD_LENGTH {
		return errors.Errorf("compressed packet declares %d field bytes", origLen)
	}

	fields := make([]byte, origLen)
	if err := compressor.Decompress(p.payload[1:n-4], fields); err != nil {
		return errors.Wrap(err, "decompress failed")
	}

	newPayload := make([]byte, 0, 1+len(fields))
	newPayload = append(newPayload, p.payload[0]&^CompressedKindBit)
	newPayload = append(newPayload, fields...)
	p.payload = newPayload
	return nil
}

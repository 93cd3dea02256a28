package netutil

// MsgPacker is the interface of message packer / unpackers
type MsgPacker interface {
	PackMsg(msg interface{}, buf []byte) ([]byte, error)
	UnpackMsg(data []byte, msg interface{}) error
}

// MSG_PACKER is the message packer used for all structured data fields
var MSG_PACKER MsgPacker = MessagePackMsgPacker{}

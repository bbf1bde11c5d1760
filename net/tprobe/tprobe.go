package tprobe

import (
	"encoding/binary"
	"errors"
	"math"
)

const (
	Magic = "LSLT"

	Version = 1

	TypeRequest = 1
	TypeReply   = 2

	HdrLen     = 8
	RequestLen = HdrLen + 16
	ReplyLen   = HdrLen + 32

	// DefaultPort is the port time responders listen on unless configured
	// otherwise.
	DefaultPort = 16573
)

// Request is sent by a receiver for each packet of a wave. T0 is the local
// transmit time of the receiver.
type Request struct {
	WaveID    uint32
	PacketNum uint32
	T0        float64
}

// Reply echoes the request identifiers and T0. T1 and T2 are the remote
// receive and transmit times.
type Reply struct {
	WaveID    uint32
	PacketNum uint32
	T0        float64
	T1        float64
	T2        float64
}

var (
	errUnexpectedPacketSize    = errors.New("unexpected packet size")
	errUnexpectedPacketMagic   = errors.New("unexpected packet magic")
	errUnexpectedPacketVersion = errors.New("unexpected packet version")
	errUnexpectedPacketType    = errors.New("unexpected packet type")
)

func encodeHdr(b []byte, typ uint8) {
	_ = b[HdrLen-1]
	copy(b[0:4], Magic)
	b[4] = Version
	b[5] = typ
	b[6] = 0
	b[7] = 0
}

// PacketType validates the common header of b and returns the packet type.
func PacketType(b []byte) (uint8, error) {
	if len(b) < HdrLen {
		return 0, errUnexpectedPacketSize
	}
	if string(b[0:4]) != Magic {
		return 0, errUnexpectedPacketMagic
	}
	if b[4] != Version {
		return 0, errUnexpectedPacketVersion
	}
	typ := b[5]
	if typ != TypeRequest && typ != TypeReply {
		return 0, errUnexpectedPacketType
	}
	return typ, nil
}

func EncodeRequest(b *[]byte, req *Request) {
	if cap(*b) < RequestLen {
		*b = make([]byte, RequestLen)
	} else {
		*b = (*b)[:RequestLen]
	}

	buf := *b
	encodeHdr(buf, TypeRequest)
	binary.BigEndian.PutUint32(buf[8:], req.WaveID)
	binary.BigEndian.PutUint32(buf[12:], req.PacketNum)
	binary.BigEndian.PutUint64(buf[16:], math.Float64bits(req.T0))
}

func DecodeRequest(req *Request, b []byte) error {
	typ, err := PacketType(b)
	if err != nil {
		return err
	}
	if typ != TypeRequest {
		return errUnexpectedPacketType
	}
	if len(b) < RequestLen {
		return errUnexpectedPacketSize
	}

	req.WaveID = binary.BigEndian.Uint32(b[8:])
	req.PacketNum = binary.BigEndian.Uint32(b[12:])
	req.T0 = math.Float64frombits(binary.BigEndian.Uint64(b[16:]))

	return nil
}

func EncodeReply(b *[]byte, resp *Reply) {
	if cap(*b) < ReplyLen {
		*b = make([]byte, ReplyLen)
	} else {
		*b = (*b)[:ReplyLen]
	}

	buf := *b
	encodeHdr(buf, TypeReply)
	binary.BigEndian.PutUint32(buf[8:], resp.WaveID)
	binary.BigEndian.PutUint32(buf[12:], resp.PacketNum)
	binary.BigEndian.PutUint64(buf[16:], math.Float64bits(resp.T0))
	binary.BigEndian.PutUint64(buf[24:], math.Float64bits(resp.T1))
	binary.BigEndian.PutUint64(buf[32:], math.Float64bits(resp.T2))
}

func DecodeReply(resp *Reply, b []byte) error {
	typ, err := PacketType(b)
	if err != nil {
		return err
	}
	if typ != TypeReply {
		return errUnexpectedPacketType
	}
	if len(b) < ReplyLen {
		return errUnexpectedPacketSize
	}

	resp.WaveID = binary.BigEndian.Uint32(b[8:])
	resp.PacketNum = binary.BigEndian.Uint32(b[12:])
	resp.T0 = math.Float64frombits(binary.BigEndian.Uint64(b[16:]))
	resp.T1 = math.Float64frombits(binary.BigEndian.Uint64(b[24:]))
	resp.T2 = math.Float64frombits(binary.BigEndian.Uint64(b[32:]))

	return nil
}

// NewReply builds the reply to req for remote receive time rxt and remote
// transmit time txt.
func NewReply(req *Request, rxt, txt float64) Reply {
	return Reply{
		WaveID:    req.WaveID,
		PacketNum: req.PacketNum,
		T0:        req.T0,
		T1:        rxt,
		T2:        txt,
	}
}

// ClockOffset returns the offset of the remote clock relative to the local
// clock (remote minus local) with the round trip delay averaged out.
func ClockOffset(t0, t1, t2, t3 float64) float64 {
	return ((t1 - t0) + (t2 - t3)) / 2
}

// RoundTripDelay excludes the time the request spent at the remote side.
func RoundTripDelay(t0, t1, t2, t3 float64) float64 {
	return (t3 - t0) - (t2 - t1)
}

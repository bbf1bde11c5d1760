package tprobe

import (
	"github.com/google/gopacket"
)

var LayerTypeTimeProbe = gopacket.RegisterLayerType(
	1573,
	gopacket.LayerTypeMetadata{
		Name:    "TimeProbe",
		Decoder: gopacket.DecodeFunc(decodeTimeProbe),
	},
)

// Layer exposes time probe packets to gopacket based tooling. Type selects
// which of Request and Reply is valid.
type Layer struct {
	Contents []byte

	Type    uint8
	Request Request
	Reply   Reply
}

var (
	_ gopacket.ApplicationLayer = (*Layer)(nil)
	_ gopacket.DecodingLayer    = (*Layer)(nil)
)

func (l *Layer) LayerType() gopacket.LayerType { return LayerTypeTimeProbe }

func (l *Layer) LayerContents() []byte { return l.Contents }

func (l *Layer) LayerPayload() []byte { return nil }

func (l *Layer) Payload() []byte { return nil }

func (l *Layer) CanDecode() gopacket.LayerClass { return LayerTypeTimeProbe }

func (l *Layer) NextLayerType() gopacket.LayerType { return gopacket.LayerTypeZero }

func decodeTimeProbe(data []byte, p gopacket.PacketBuilder) error {
	l := &Layer{}
	err := l.DecodeFromBytes(data, p)
	if err != nil {
		return err
	}
	p.AddLayer(l)
	p.SetApplicationLayer(l)
	return nil
}

func (l *Layer) DecodeFromBytes(data []byte, df gopacket.DecodeFeedback) error {
	typ, err := PacketType(data)
	if err != nil {
		if err == errUnexpectedPacketSize {
			df.SetTruncated()
		}
		return err
	}
	switch typ {
	case TypeRequest:
		err = DecodeRequest(&l.Request, data)
	case TypeReply:
		err = DecodeReply(&l.Reply, data)
	}
	if err != nil {
		if err == errUnexpectedPacketSize {
			df.SetTruncated()
		}
		return err
	}
	l.Type = typ
	l.Contents = data
	return nil
}

func (l *Layer) SerializeTo(b gopacket.SerializeBuffer, opts gopacket.SerializeOptions) error {
	var buf []byte
	switch l.Type {
	case TypeRequest:
		EncodeRequest(&buf, &l.Request)
	case TypeReply:
		EncodeReply(&buf, &l.Reply)
	default:
		return errUnexpectedPacketType
	}
	data, err := b.PrependBytes(len(buf))
	if err != nil {
		return err
	}
	copy(data, buf)
	return nil
}

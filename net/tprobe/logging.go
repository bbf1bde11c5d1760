package tprobe

import (
	"go.uber.org/zap/zapcore"
)

type RequestMarshaler struct {
	Req *Request
}

func (m RequestMarshaler) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddUint32("WaveID", m.Req.WaveID)
	enc.AddUint32("PacketNum", m.Req.PacketNum)
	enc.AddFloat64("T0", m.Req.T0)
	return nil
}

type ReplyMarshaler struct {
	Resp *Reply
}

func (m ReplyMarshaler) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddUint32("WaveID", m.Resp.WaveID)
	enc.AddUint32("PacketNum", m.Resp.PacketNum)
	enc.AddFloat64("T0", m.Resp.T0)
	enc.AddFloat64("T1", m.Resp.T1)
	enc.AddFloat64("T2", m.Resp.T2)
	return nil
}

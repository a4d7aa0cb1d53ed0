package realtime

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseFrame(t *testing.T) {
	raw := []byte(`{"type":"typing","timestamp":1700000000123,"targetUserId":"bob","isTyping":true}`)
	f, err := ParseFrame(raw)
	require.NoError(t, err)
	require.Equal(t, FrameTyping, f.Type)
	require.EqualValues(t, 1700000000123, f.Timestamp)

	// 判别标签和时间戳不留在 Fields 里
	require.NotContains(t, f.Fields, "type")
	require.NotContains(t, f.Fields, "timestamp")
	require.Equal(t, "bob", f.Fields["targetUserId"])
	require.Equal(t, true, f.Fields["isTyping"])
}

func TestParseFrameUnknownType(t *testing.T) {
	_, err := ParseFrame([]byte(`{"type":"fileTransfer","name":"a.txt"}`))
	require.Error(t, err)
	var unknown *ErrUnknownFrameType
	require.ErrorAs(t, err, &unknown)
	require.Equal(t, "fileTransfer", unknown.Type)

	// type 缺失同样按未知处理
	_, err = ParseFrame([]byte(`{"payload":1}`))
	require.ErrorAs(t, err, &unknown)
}

func TestParseFrameBadJSON(t *testing.T) {
	_, err := ParseFrame([]byte(`{"type":"ping"`))
	require.Error(t, err)
}

func TestMarshalRoundTrip(t *testing.T) {
	in := &Frame{
		Type:      FrameOffer,
		Timestamp: 42,
		Fields: map[string]any{
			"targetUserId": "bob",
			"sdp":          map[string]any{"type": "offer", "sdp": "v=0..."},
			"callId":       "c1",
		},
	}
	data, err := in.Marshal()
	require.NoError(t, err)

	out, err := ParseFrame(data)
	require.NoError(t, err)
	require.Equal(t, in.Type, out.Type)
	require.EqualValues(t, 42, out.Timestamp)
	require.Equal(t, "bob", out.Fields["targetUserId"])
	// 嵌套字段原样存活
	sdp, ok := out.Fields["sdp"].(map[string]any)
	require.True(t, ok)
	require.Equal(t, "v=0...", sdp["sdp"])
}

func TestMarshalDefaultsTimestamp(t *testing.T) {
	data := MustMarshal(FramePong, nil)
	var m map[string]any
	require.NoError(t, json.Unmarshal(data, &m))
	require.Equal(t, "pong", m["type"])
	ts, ok := m["timestamp"].(float64)
	require.True(t, ok)
	require.Greater(t, ts, float64(0))
}

func TestPayloadDecode(t *testing.T) {
	f, err := ParseFrame([]byte(`{"type":"statusUpdate","status":"away"}`))
	require.NoError(t, err)
	p, err := Payload[StatusPayload](f)
	require.NoError(t, err)
	require.Equal(t, "away", p.Status)
}

func TestFrameTypeIsRelay(t *testing.T) {
	for _, ft := range []FrameType{FrameOffer, FrameAnswer, FrameICECandidate, FrameEndCall} {
		require.True(t, ft.IsRelay(), "%s", ft)
	}
	require.False(t, FrameTyping.IsRelay())
	require.False(t, FramePing.IsRelay())
}

package media

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/troikatech/collections-agent/pkg/audio"
)

func fastStreamer(out FrameSender) *Streamer {
	return NewStreamer(out, 8000, zap.NewNop(), WithPacing(time.Millisecond, 1))
}

func TestStreamer_FramesAndMark(t *testing.T) {
	ws := &fakeSocket{}
	c := NewConn(ws)

	pcm := make([]byte, 320*4+100)
	pb := fastStreamer(c).Stream(context.Background(), pcm, "utt-1")

	assert.Equal(t, Playback{Sent: 5, Total: 5}, pb)
	ev := ws.events(t)
	require.Len(t, ev, 6)
	for _, e := range ev[:5] {
		payload := e["media"].(map[string]interface{})["payload"].(string)
		frame, err := audio.DecodeFrame(payload)
		require.NoError(t, err)
		assert.Len(t, frame, 320, "every frame has the protocol size")
	}
	assert.Equal(t, "mark", ev[5]["event"])
}

func TestStreamer_EmptyPayload(t *testing.T) {
	ws := &fakeSocket{}
	pb := fastStreamer(NewConn(ws)).Stream(context.Background(), nil, "utt-1")
	assert.Equal(t, Playback{}, pb)
	assert.Empty(t, ws.writes)
}

func TestStreamer_SocketClosedMidStream(t *testing.T) {
	ws := &fakeSocket{failAfter: 3}
	pb := fastStreamer(NewConn(ws)).Stream(context.Background(), make([]byte, 320*10), "utt-1")

	assert.True(t, pb.Truncated)
	assert.Equal(t, 3, pb.Sent)
	assert.Equal(t, 10, pb.Total)
	assert.Len(t, ws.writes, 3, "no mark after truncation")
}

func TestStreamer_Cancelled(t *testing.T) {
	ws := &fakeSocket{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	pb := fastStreamer(NewConn(ws)).Stream(ctx, make([]byte, 320*10), "utt-1")
	assert.True(t, pb.Truncated)
	assert.Zero(t, pb.Sent)
}

func TestStreamer_Paced(t *testing.T) {
	ws := &fakeSocket{}
	s := NewStreamer(NewConn(ws), 8000, zap.NewNop(), WithPacing(5*time.Millisecond, 1))

	start := time.Now()
	pb := s.Stream(context.Background(), make([]byte, 320*10), "")
	elapsed := time.Since(start)

	assert.Equal(t, 10, pb.Sent)
	assert.GreaterOrEqual(t, elapsed, 40*time.Millisecond, "frames must not be flooded")
}

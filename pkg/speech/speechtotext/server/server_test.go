package server

import (
	"context"
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/whisperstream/pkg/audio/pcm"
	"github.com/xaionaro-go/whisperstream/pkg/speech"
	"github.com/xaionaro-go/whisperstream/pkg/speech/speechtotext/client"
	"github.com/xaionaro-go/whisperstream/pkg/speech/speechtotext/engine"
	"github.com/xaionaro-go/whisperstream/pkg/speech/speechtotext/server/goconv"
	"github.com/xaionaro-go/whisperstream/pkg/speech/speechtotext/server/rpc"
	"github.com/xaionaro-go/whisperstream/pkg/speech/speechtotext/streaming"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const bufnetTarget = "passthrough:///bufnet"

func startServer(t *testing.T, contextsLimit uint, cacheSize uint) (*Server, grpc.DialOption) {
	t.Helper()
	lis := bufconn.Listen(1024 * 1024)
	srv := NewServer(nil, contextsLimit, cacheSize, OptionEngine(engine.Config{Kind: engine.KindDummy}))
	go func() {
		_ = srv.Serve(context.Background(), lis)
	}()
	t.Cleanup(func() {
		_ = srv.Close()
	})
	return srv, grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
		return lis.DialContext(ctx)
	})
}

func testRequest() goconv.NewContextRequest {
	params := streaming.DefaultParams()
	params.BufferSize = time.Second
	params.StepSize = 10 * time.Millisecond
	params.UseVAD = false
	return goconv.NewContextRequest{
		Params: params,
		Engine: engine.KindDummy,
	}
}

func receive(t *testing.T, ch <-chan *speech.Transcript) *speech.Transcript {
	t.Helper()
	select {
	case tr, ok := <-ch:
		require.True(t, ok, "the channel is closed")
		return tr
	case <-time.After(5 * time.Second):
		require.FailNow(t, "timeout waiting for a transcript")
	}
	return nil
}

func TestServerTranscribe(t *testing.T) {
	ctx, cancelFn := context.WithCancel(context.Background())
	defer cancelFn()
	srv, dialer := startServer(t, 2, 1)

	c, err := client.New(ctx, bufnetTarget, testRequest(), dialer)
	require.NoError(t, err)

	payload, err := c.Ping(ctx, "hello")
	require.NoError(t, err)
	assert.Equal(t, "hello", payload)

	enc, err := c.AudioEncoding(ctx)
	require.NoError(t, err)
	assert.Equal(t, pcm.EncodingFloat32(16000), enc)

	ch, err := c.OutputChan(ctx)
	require.NoError(t, err)

	samples := make([]float32, 16000)
	for i := range samples {
		samples[i] = 0.5
	}
	require.NoError(t, c.WriteSamples(ctx, samples))

	tr := receive(t, ch)
	assert.Equal(t, speech.Text("1s of audio, mean level 0.500"), tr.Text)
	assert.Equal(t, float32(1), tr.Progress)
	assert.True(t, tr.HasVoice)
	assert.Equal(t, time.Second, tr.WindowEnd)

	require.NoError(t, c.Close())
	require.Eventually(t, func() bool {
		return srv.countContexts() == 0
	}, 5*time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool {
		return srv.EngineCache.Len() == 1
	}, 5*time.Second, 10*time.Millisecond)

	c2, err := client.New(ctx, bufnetTarget, testRequest(), dialer)
	require.NoError(t, err)
	defer c2.Close()
	require.Eventually(t, func() bool {
		return srv.EngineCache.Len() == 0
	}, 5*time.Second, 10*time.Millisecond)
}

func TestServerContextsLimit(t *testing.T) {
	ctx, cancelFn := context.WithCancel(context.Background())
	defer cancelFn()
	_, dialer := startServer(t, 1, 0)

	c, err := client.New(ctx, bufnetTarget, testRequest(), dialer)
	require.NoError(t, err)
	defer c.Close()

	_, err = client.New(ctx, bufnetTarget, testRequest(), dialer)
	require.Error(t, err)
	assert.Contains(t, err.Error(), codes.ResourceExhausted.String())
}

func TestServerReserveContextConcurrently(t *testing.T) {
	srv := NewServer(nil, 3, 0)
	defer srv.Close()

	var (
		wg       sync.WaitGroup
		reserved atomic.Int64
	)
	for range 64 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if srv.reserveContext() {
				reserved.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int64(3), reserved.Load())
	assert.Equal(t, 3, srv.countContexts())
	assert.False(t, srv.reserveContext())

	srv.releaseContext()
	assert.True(t, srv.reserveContext())
}

func TestServerInvalidRequests(t *testing.T) {
	ctx, cancelFn := context.WithCancel(context.Background())
	defer cancelFn()
	_, dialer := startServer(t, 2, 0)

	conn, err := grpc.NewClient(bufnetTarget, grpc.WithTransportCredentials(insecure.NewCredentials()), dialer)
	require.NoError(t, err)
	defer conn.Close()
	stt := rpc.NewSpeechToTextClient(conn)

	t.Run("unknown context", func(t *testing.T) {
		stream, err := stt.OutputChan(ctx, wrapperspb.UInt64(12345))
		require.NoError(t, err)
		_, err = stream.Recv()
		assert.Equal(t, codes.NotFound, status.Code(err))
	})

	t.Run("missing context id", func(t *testing.T) {
		stream, err := stt.WriteAudio(ctx)
		require.NoError(t, err)
		_, err = stream.CloseAndRecv()
		assert.Equal(t, codes.InvalidArgument, status.Code(err))
	})

	t.Run("invalid params", func(t *testing.T) {
		req := testRequest()
		req.Params.StepSize = 0
		stream, err := stt.NewContext(ctx, goconv.NewContextRequestToGRPC(req))
		require.NoError(t, err)
		_, err = stream.Recv()
		assert.Equal(t, codes.InvalidArgument, status.Code(err))
	})

	t.Run("unknown engine", func(t *testing.T) {
		req := testRequest()
		req.Engine = "vosk"
		stream, err := stt.NewContext(ctx, goconv.NewContextRequestToGRPC(req))
		require.NoError(t, err)
		_, err = stream.Recv()
		assert.Equal(t, codes.InvalidArgument, status.Code(err))
	})
}

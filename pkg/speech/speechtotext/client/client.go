package client

import (
	"context"
	"fmt"
	"strconv"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/hashicorp/go-multierror"
	"github.com/xaionaro-go/audio/pkg/audio"
	"github.com/xaionaro-go/observability"
	"github.com/xaionaro-go/whisperstream/pkg/audio/pcm"
	"github.com/xaionaro-go/whisperstream/pkg/speech"
	"github.com/xaionaro-go/whisperstream/pkg/speech/speechtotext/server/consts"
	"github.com/xaionaro-go/whisperstream/pkg/speech/speechtotext/server/goconv"
	"github.com/xaionaro-go/whisperstream/pkg/speech/speechtotext/server/rpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

type Client struct {
	RemoteAddr    string
	STTClient     *rpc.SpeechToTextClient
	Connection    *grpc.ClientConn
	ContextID     uint64
	ContextHolder grpc.ServerStreamingClient[wrapperspb.UInt64Value]
	AudioWriter   grpc.ClientStreamingClient[wrapperspb.BytesValue, emptypb.Empty]
	SampleRate    audio.SampleRate

	cancelFunc context.CancelFunc
}

var _ speech.ToText = (*Client)(nil)

// New opens a context on the server at addr. The context lives until Close;
// extra dial options are appended to the defaults.
func New(
	ctx context.Context,
	addr string,
	req goconv.NewContextRequest,
	dialOpts ...grpc.DialOption,
) (_ret *Client, _err error) {
	logger.Tracef(ctx, "New(ctx, '%s', %s)", addr, req.Params)
	defer func() { logger.Tracef(ctx, "/New: %v", _err) }()

	c := &Client{
		RemoteAddr: addr,
		SampleRate: req.Params.SampleRate,
	}
	conn, err := c.grpcClient(dialOpts...)
	if err != nil {
		return nil, err
	}
	c.Connection = conn
	c.STTClient = rpc.NewSpeechToTextClient(conn)

	ctx, cancelFn := context.WithCancel(ctx)
	c.cancelFunc = cancelFn

	ctxClient, err := c.STTClient.NewContext(ctx, goconv.NewContextRequestToGRPC(req))
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("unable to get a new context: %w", err)
	}
	ctxReply, err := ctxClient.Recv()
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("unable to receive the context ID: %w", err)
	}
	c.ContextID = ctxReply.GetValue()
	c.ContextHolder = ctxClient

	writerCtx := metadata.AppendToOutgoingContext(ctx, consts.MetadataKeyContextID, strconv.FormatUint(c.ContextID, 10))
	audioWriter, err := c.STTClient.WriteAudio(writerCtx)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("unable to initialize audio writer: %w", err)
	}
	c.AudioWriter = audioWriter
	return c, nil
}

func (c *Client) grpcClient(extraOpts ...grpc.DialOption) (*grpc.ClientConn, error) {
	opts := []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.MaxCallSendMsgSize(consts.MaxMessageSize), grpc.MaxCallRecvMsgSize(consts.MaxMessageSize)),
	}
	opts = append(opts, extraOpts...)
	conn, err := grpc.NewClient(c.RemoteAddr, opts...)
	if err != nil {
		return nil, fmt.Errorf("unable to initialize a gRPC client: %w", err)
	}
	return conn, nil
}

func (c *Client) Ping(ctx context.Context, payload string) (string, error) {
	reply, err := c.STTClient.Ping(ctx, wrapperspb.String(payload))
	if err != nil {
		return "", err
	}
	return reply.GetValue(), nil
}

// Close releases the remote context.
func (c *Client) Close() error {
	var mErr *multierror.Error
	if c.AudioWriter != nil {
		if _, err := c.AudioWriter.CloseAndRecv(); err != nil {
			logger.Debugf(context.TODO(), "closing the audio writer: %v", err)
		}
	}
	if c.cancelFunc != nil {
		c.cancelFunc()
	}
	if err := c.Connection.Close(); err != nil {
		mErr = multierror.Append(mErr, fmt.Errorf("unable to close the connection: %w", err))
	}
	return mErr.ErrorOrNil()
}

func (c *Client) AudioEncoding(context.Context) (audio.Encoding, error) {
	return pcm.EncodingFloat32(c.SampleRate), nil
}

func (c *Client) AudioChannels(context.Context) (audio.Channel, error) {
	return pcm.Channels, nil
}

// WriteAudio sends float32le frames; see AudioEncoding.
func (c *Client) WriteAudio(
	ctx context.Context,
	b []byte,
) error {
	return c.AudioWriter.Send(wrapperspb.Bytes(b))
}

func (c *Client) WriteSamples(
	ctx context.Context,
	samples []float32,
) error {
	return c.WriteAudio(ctx, pcm.Float32ToBytes(samples))
}

func (c *Client) OutputChan(ctx context.Context) (<-chan *speech.Transcript, error) {
	client, err := c.STTClient.OutputChan(ctx, wrapperspb.UInt64(c.ContextID))
	if err != nil {
		return nil, fmt.Errorf("unable to request a channel: %w", err)
	}

	result := make(chan *speech.Transcript, 1)

	observability.Go(ctx, func() {
		defer close(result)
		for {
			msg, err := client.Recv()
			if err != nil {
				logger.Debugf(ctx, "unable to receive a message from the server: %v", err)
				return
			}

			select {
			case result <- goconv.TranscriptFromGRPC(msg):
			case <-ctx.Done():
				return
			}
		}
	})
	return result, nil
}

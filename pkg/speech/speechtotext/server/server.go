package server

import (
	"context"
	"crypto/sha1"
	"crypto/sha512"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/facebookincubator/go-belt"
	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/hashicorp/go-multierror"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/xaionaro-go/object"
	"github.com/xaionaro-go/whisperstream/pkg/speech"
	"github.com/xaionaro-go/whisperstream/pkg/speech/speechtotext/engine"
	"github.com/xaionaro-go/whisperstream/pkg/speech/speechtotext/server/consts"
	"github.com/xaionaro-go/whisperstream/pkg/speech/speechtotext/server/goconv"
	"github.com/xaionaro-go/whisperstream/pkg/speech/speechtotext/server/rpc"
	"github.com/xaionaro-go/whisperstream/pkg/speech/speechtotext/streaming"
	"github.com/xaionaro-go/whisperstream/pkg/vad"
	"github.com/xaionaro-go/whisperstream/pkg/vad/vadengine"
	"github.com/xaionaro-go/xcontext"
	"github.com/xaionaro-go/xsync"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

type Server struct {
	GRPCServer *grpc.Server
	IsStarted  bool

	BeltLocker xsync.Mutex
	Belt       *belt.Belt

	NextContextID  atomic.Uint64
	ContextMap     sync.Map
	ActiveContexts atomic.Int64

	ContextsLimit uint
	Options       Options

	EngineCacheSize   uint
	EngineCacheLocker xsync.Mutex
	EngineCache       *lru.Cache[objectHash, speech.Transcriber]

	DefaultModel []byte
}

var _ rpc.SpeechToTextServer = (*Server)(nil)

type objectHash [64 + sha512.Size]byte

// engineKey is what identifies an initialized engine in the cache.
type engineKey struct {
	Kind                  engine.Kind
	ModelPath             string
	SamplingStrategy      string
	AlignmentAheadsPreset string
	SampleRate            uint64
}

func NewServer(
	defaultModel []byte,
	contextsLimit uint,
	cacheSize uint,
	opts ...Option,
) *Server {
	cfg := Options(opts).config()
	maxRecvMsgSize := cfg.MaxRecvMsgSize
	if maxRecvMsgSize <= 0 {
		maxRecvMsgSize = consts.MaxMessageSize
	}
	srv := &Server{
		GRPCServer:    grpc.NewServer(grpc.MaxRecvMsgSize(maxRecvMsgSize)),
		ContextsLimit: contextsLimit,
		Options:       opts,

		DefaultModel: defaultModel,

		EngineCacheSize: cacheSize,
	}
	rpc.RegisterSpeechToTextServer(srv.GRPCServer, srv)
	if cacheSize > 0 {
		cache, err := lru.New[objectHash, speech.Transcriber](int(cacheSize))
		if err != nil {
			panic(err)
		}
		srv.EngineCache = cache
	}
	return srv
}

func (srv *Server) Serve(
	ctx context.Context,
	listener net.Listener,
) error {
	if srv.IsStarted {
		panic("this GRPC server was already started at least once")
	}
	srv.IsStarted = true
	srv.BeltLocker.Do(xsync.WithNoLogging(ctx, true), func() {
		srv.Belt = belt.CtxBelt(ctx)
	})
	return srv.GRPCServer.Serve(listener)
}

// Close stops the gRPC server and releases the cached engines.
func (srv *Server) Close() error {
	srv.GRPCServer.Stop()
	if srv.EngineCache == nil {
		return nil
	}
	var mErr *multierror.Error
	srv.EngineCacheLocker.Do(context.Background(), func() {
		for _, key := range srv.EngineCache.Keys() {
			t, ok := srv.EngineCache.Peek(key)
			if !ok {
				continue
			}
			if err := t.Close(); err != nil {
				mErr = multierror.Append(mErr, err)
			}
		}
		srv.EngineCache.Purge()
	})
	return mErr.ErrorOrNil()
}

func (srv *Server) belt() *belt.Belt {
	ctx := context.TODO()
	return xsync.DoR1(xsync.WithNoLogging(ctx, true), &srv.BeltLocker, func() *belt.Belt {
		return srv.Belt
	})
}

func (srv *Server) ctx(ctx context.Context) context.Context {
	b := srv.belt()
	if b == nil {
		return ctx
	}
	return belt.CtxWithBelt(ctx, b)
}

func (srv *Server) Ping(
	ctx context.Context,
	req *wrapperspb.StringValue,
) (*wrapperspb.StringValue, error) {
	if len(req.GetValue()) > 65535 {
		return nil, status.Errorf(codes.InvalidArgument, "requested a too big payload")
	}
	return wrapperspb.String(req.GetValue()), nil
}

func (srv *Server) countContexts() int {
	return int(srv.ActiveContexts.Load())
}

// reserveContext takes one of ContextsLimit slots; the caller must release
// it with releaseContext.
func (srv *Server) reserveContext() bool {
	for {
		cur := srv.ActiveContexts.Load()
		if cur >= int64(srv.ContextsLimit) {
			return false
		}
		if srv.ActiveContexts.CompareAndSwap(cur, cur+1) {
			return true
		}
	}
}

func (srv *Server) releaseContext() {
	srv.ActiveContexts.Add(-1)
}

func (srv *Server) engineConfig(req goconv.NewContextRequest) engine.Config {
	cfg := srv.Options.config().Engine
	if req.Engine != engine.KindUndefined {
		cfg.Kind = req.Engine
	}
	if req.SamplingStrategy != "" {
		cfg.SamplingStrategy = req.SamplingStrategy
	}
	if req.AlignmentAheadsPreset != "" {
		cfg.AlignmentAheadsPreset = req.AlignmentAheadsPreset
	}
	if len(srv.DefaultModel) > 0 {
		cfg.ModelBytes = srv.DefaultModel
	}
	cfg.SampleRate = req.Params.SampleRate
	return cfg
}

func (srv *Server) engineHash(
	ctx context.Context,
	cfg engine.Config,
) objectHash {
	var requestHash objectHash
	if srv.EngineCacheSize == 0 {
		return requestHash
	}
	logger.Debugf(ctx, "calculating the hash of the request")
	key := engineKey{
		Kind:                  engine.Kind(cfg.Kind.String()),
		ModelPath:             cfg.ModelPath,
		SamplingStrategy:      cfg.SamplingStrategy,
		AlignmentAheadsPreset: cfg.AlignmentAheadsPreset,
		SampleRate:            uint64(cfg.SampleRate),
	}
	requestHashValue, err := object.CalcCryptoHash(key, sha1.Sum(cfg.ModelBytes))
	if err != nil {
		logger.Errorf(ctx, "unable to calculate the hash of the request: %v", err)
		return objectHash{}
	}
	copy(requestHash[:], requestHashValue)
	logger.Debugf(ctx, "request hash is %X", requestHash)
	return requestHash
}

func (srv *Server) takeEngine(
	ctx context.Context,
	requestHash objectHash,
) speech.Transcriber {
	return xsync.DoR1(ctx, &srv.EngineCacheLocker, func() speech.Transcriber {
		if srv.EngineCacheSize == 0 || requestHash == (objectHash{}) {
			return nil
		}
		v, ok := srv.EngineCache.Peek(requestHash)
		if !ok {
			return nil
		}
		srv.EngineCache.Remove(requestHash)
		return v
	})
}

func (srv *Server) releaseEngine(
	ctx context.Context,
	requestHash objectHash,
	t speech.Transcriber,
) {
	if srv.EngineCacheSize == 0 || requestHash == (objectHash{}) {
		logger.Debugf(ctx, "closing the engine")
		if err := t.Close(); err != nil {
			logger.Errorf(ctx, "unable to close the engine: %v", err)
		}
		return
	}

	srv.EngineCacheLocker.Do(ctx, func() {
		if old, ok := srv.EngineCache.Peek(requestHash); ok {
			// another context with the same engine got released earlier
			logger.Debugf(ctx, "closing a duplicate engine")
			if err := old.Close(); err != nil {
				logger.Errorf(ctx, "unable to close the engine: %v", err)
			}
			srv.EngineCache.Remove(requestHash)
		}
		if srv.EngineCache.Len() >= int(srv.EngineCacheSize) {
			key, oldest, ok := srv.EngineCache.GetOldest()
			if !ok {
				panic("impossible happened")
			}
			logger.Debugf(ctx, "closing an old engine")
			if err := oldest.Close(); err != nil {
				logger.Errorf(ctx, "unable to close the engine: %v", err)
			}
			srv.EngineCache.Remove(key)
		}

		srv.EngineCache.Add(requestHash, t)
	})
}

func (srv *Server) NewContext(
	reqMsg *structpb.Struct,
	respSrv grpc.ServerStreamingServer[wrapperspb.UInt64Value],
) (_err error) {
	ctx := srv.ctx(respSrv.Context())
	logger.Tracef(ctx, "NewContext")
	defer func() { logger.Tracef(ctx, "/NewContext: %v", _err) }()

	if !srv.reserveContext() {
		return status.Errorf(codes.ResourceExhausted, "too many contexts already created, please close previous contexts first")
	}
	defer srv.releaseContext()

	req, err := goconv.NewContextRequestFromGRPC(reqMsg)
	if err != nil {
		return status.Errorf(codes.InvalidArgument, "unable to parse the request: %v", err)
	}
	if err := req.Params.Validate(); err != nil {
		return status.Errorf(codes.InvalidArgument, "invalid stream parameters: %v", err)
	}

	cfg := srv.Options.config()
	engineCfg := srv.engineConfig(req)
	requestHash := srv.engineHash(ctx, engineCfg)

	transcriber := srv.takeEngine(ctx, requestHash)
	if transcriber != nil {
		logger.Debugf(ctx, "reuse a previously already initialized engine")
	} else {
		logger.Debugf(ctx, "initializing an engine from scratch")
		transcriber, err = engine.New(xcontext.DetachDone(ctx), engineCfg)
		switch {
		case err == nil:
		case errors.As(err, &engine.ErrUnknownKind{}):
			return status.Errorf(codes.InvalidArgument, "%v", err)
		case errors.As(err, &engine.ErrNotCompiledIn{}):
			return status.Errorf(codes.Unimplemented, "%v", err)
		default:
			return status.Errorf(codes.Unknown, "unable to initialize the engine: %v", err)
		}
	}
	defer srv.releaseEngine(ctx, requestHash, transcriber)

	sessionOpts := streaming.Options{
		streaming.OptionParams(req.Params),
	}
	if cfg.Metrics != nil {
		sessionOpts = append(sessionOpts, streaming.OptionMetrics{Metrics: cfg.Metrics})
	}
	if cfg.QueueSize > 0 {
		sessionOpts = append(sessionOpts, streaming.OptionQueueSize(cfg.QueueSize))
	}
	if cfg.VAD != nil {
		vadCfg := *cfg.VAD
		vadCfg.Params = req.Params.VADParams()
		var detector vad.VAD
		detector, err = vadengine.New(ctx, vadCfg)
		if err != nil {
			return status.Errorf(codes.Unknown, "unable to initialize the VAD: %v", err)
		}
		defer detector.Close()
		sessionOpts = append(sessionOpts, streaming.OptionVAD{VAD: detector})
	}

	session, err := streaming.New(ctx, transcriber, sessionOpts...)
	if err != nil {
		return status.Errorf(codes.InvalidArgument, "unable to start a session: %v", err)
	}
	// results are queued until OutputChan is called
	session.OutputChanNoErr()

	contextID := srv.NextContextID.Add(1)
	srv.ContextMap.Store(contextID, session)
	defer func() {
		logger.Debugf(ctx, "closing context %d", contextID)
		srv.ContextMap.Delete(contextID)
		if err := session.Close(); err != nil {
			logger.Errorf(ctx, "unable to close the session of context %d: %v", contextID, err)
		}
	}()

	err = respSrv.Send(wrapperspb.UInt64(contextID))
	if err != nil {
		return status.Errorf(codes.Aborted, "unable to send the context ID back to the client: %v", err)
	}

	logger.Debugf(ctx, "initialized context %d", contextID)
	<-ctx.Done()
	return ctx.Err()
}

func (srv *Server) getSession(contextID uint64) (*streaming.Session, error) {
	sessionI, ok := srv.ContextMap.Load(contextID)
	if !ok {
		return nil, status.Errorf(codes.NotFound, "there is no open context with ID %d", contextID)
	}
	return sessionI.(*streaming.Session), nil
}

func contextIDFromMetadata(ctx context.Context) (uint64, error) {
	md, _ := metadata.FromIncomingContext(ctx)
	values := md.Get(consts.MetadataKeyContextID)
	if len(values) != 1 {
		return 0, status.Errorf(codes.InvalidArgument, "expected exactly one '%s' metadata value, got %d", consts.MetadataKeyContextID, len(values))
	}
	contextID, err := strconv.ParseUint(values[0], 10, 64)
	if err != nil {
		return 0, status.Errorf(codes.InvalidArgument, "unable to parse the context ID '%s': %v", values[0], err)
	}
	return contextID, nil
}

func (srv *Server) WriteAudio(
	reqSrv grpc.ClientStreamingServer[wrapperspb.BytesValue, emptypb.Empty],
) error {
	ctx := srv.ctx(reqSrv.Context())

	contextID, err := contextIDFromMetadata(ctx)
	if err != nil {
		return err
	}
	session, err := srv.getSession(contextID)
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		req, err := reqSrv.Recv()
		if errors.Is(err, io.EOF) {
			return reqSrv.SendAndClose(&emptypb.Empty{})
		}
		if err != nil {
			return status.Errorf(codes.Aborted, "unable to receive the audio frame from the client: %v", err)
		}

		frame := req.GetValue()
		err = session.WriteAudio(ctx, frame)
		switch {
		case err == nil:
		case errors.As(err, &streaming.ErrSessionClosed{}):
			return status.Errorf(codes.FailedPrecondition, "context %d is closed", contextID)
		default:
			return status.Errorf(codes.Unknown, "unable to write audio of length %d to context %d: %v", len(frame), contextID, err)
		}
	}
}

func (srv *Server) OutputChan(
	req *wrapperspb.UInt64Value,
	replySrv grpc.ServerStreamingServer[structpb.Struct],
) error {
	ctx := srv.ctx(replySrv.Context())

	contextID := req.GetValue()
	session, err := srv.getSession(contextID)
	if err != nil {
		return err
	}

	ch := session.OutputChanNoErr()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case t, ok := <-ch:
			if !ok {
				if err := session.Err(); err != nil {
					return status.Errorf(codes.Unknown, "the session of context %d failed: %v", contextID, err)
				}
				return nil
			}
			err := replySrv.Send(goconv.TranscriptToGRPC(t))
			if err != nil {
				return status.Errorf(codes.Aborted, "unable to send the transcript to the client: %v", err)
			}
		}
	}
}

func (srv *Server) String() string {
	return fmt.Sprintf("speech-to-text server (contexts limit: %d, engine cache: %d)", srv.ContextsLimit, srv.EngineCacheSize)
}

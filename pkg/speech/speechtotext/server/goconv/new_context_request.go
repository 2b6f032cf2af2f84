package goconv

import (
	"fmt"
	"time"

	"github.com/xaionaro-go/audio/pkg/audio"
	"github.com/xaionaro-go/whisperstream/pkg/speech"
	"github.com/xaionaro-go/whisperstream/pkg/speech/speechtotext/engine"
	"github.com/xaionaro-go/whisperstream/pkg/speech/speechtotext/streaming"
	"google.golang.org/protobuf/types/known/structpb"
)

// NewContextRequest is what a client asks for when opening a context.
// Engine settings left empty fall back to the server defaults.
type NewContextRequest struct {
	Params streaming.Params

	Engine                engine.Kind
	SamplingStrategy      string
	AlignmentAheadsPreset string
}

const (
	fieldBufferMS              = "buffer_ms"
	fieldStepMS                = "step_ms"
	fieldThreads               = "threads"
	fieldTranslate             = "translate"
	fieldUseVAD                = "use_vad"
	fieldVADThreshold          = "vad_threshold"
	fieldVADFrequencyThreshold = "vad_frequency_threshold"
	fieldSampleRate            = "sample_rate"
	fieldEngine                = "engine"
	fieldSamplingStrategy      = "sampling_strategy"
	fieldAlignmentAheadsPreset = "alignment_aheads_preset"
)

func NewContextRequestToGRPC(req NewContextRequest) *structpb.Struct {
	p := req.Params
	return &structpb.Struct{
		Fields: map[string]*structpb.Value{
			fieldBufferMS:              structpb.NewNumberValue(float64(p.BufferSize.Milliseconds())),
			fieldStepMS:                structpb.NewNumberValue(float64(p.StepSize.Milliseconds())),
			fieldThreads:               structpb.NewNumberValue(float64(p.Threads)),
			fieldTranslate:             structpb.NewBoolValue(p.Translate),
			fieldLanguage:              structpb.NewStringValue(string(p.Language)),
			fieldUseVAD:                structpb.NewBoolValue(p.UseVAD),
			fieldVADThreshold:          structpb.NewNumberValue(float64(p.VADThreshold)),
			fieldVADFrequencyThreshold: structpb.NewNumberValue(float64(p.VADFrequencyThreshold)),
			fieldSampleRate:            structpb.NewNumberValue(float64(p.SampleRate)),
			fieldEngine:                structpb.NewStringValue(string(req.Engine)),
			fieldSamplingStrategy:      structpb.NewStringValue(req.SamplingStrategy),
			fieldAlignmentAheadsPreset: structpb.NewStringValue(req.AlignmentAheadsPreset),
		},
	}
}

// NewContextRequestFromGRPC fills missing fields with streaming.DefaultParams.
func NewContextRequestFromGRPC(s *structpb.Struct) (NewContextRequest, error) {
	req := NewContextRequest{
		Params: streaming.DefaultParams(),
	}
	for key, value := range s.GetFields() {
		var err error
		switch key {
		case fieldBufferMS:
			var ms uint64
			ms, err = getUint(value)
			req.Params.BufferSize = time.Duration(ms) * time.Millisecond
		case fieldStepMS:
			var ms uint64
			ms, err = getUint(value)
			req.Params.StepSize = time.Duration(ms) * time.Millisecond
		case fieldThreads:
			var n uint64
			n, err = getUint(value)
			req.Params.Threads = uint(n)
		case fieldTranslate:
			req.Params.Translate, err = getBool(value)
		case fieldLanguage:
			var lang string
			lang, err = getString(value)
			req.Params.Language = speech.Language(lang)
		case fieldUseVAD:
			req.Params.UseVAD, err = getBool(value)
		case fieldVADThreshold:
			var v float64
			v, err = getNumber(value)
			req.Params.VADThreshold = float32(v)
		case fieldVADFrequencyThreshold:
			var v float64
			v, err = getNumber(value)
			req.Params.VADFrequencyThreshold = float32(v)
		case fieldSampleRate:
			var v uint64
			v, err = getUint(value)
			req.Params.SampleRate = audio.SampleRate(v)
		case fieldEngine:
			var v string
			v, err = getString(value)
			req.Engine = engine.Kind(v)
		case fieldSamplingStrategy:
			req.SamplingStrategy, err = getString(value)
		case fieldAlignmentAheadsPreset:
			req.AlignmentAheadsPreset, err = getString(value)
		default:
			err = fmt.Errorf("unknown field")
		}
		if err != nil {
			return NewContextRequest{}, fmt.Errorf("field '%s': %w", key, err)
		}
	}
	return req, nil
}

func getNumber(v *structpb.Value) (float64, error) {
	n, ok := v.GetKind().(*structpb.Value_NumberValue)
	if !ok {
		return 0, fmt.Errorf("expected a number, got %T", v.GetKind())
	}
	return n.NumberValue, nil
}

func getUint(v *structpb.Value) (uint64, error) {
	n, err := getNumber(v)
	if err != nil {
		return 0, err
	}
	if n < 0 || n != float64(uint64(n)) {
		return 0, fmt.Errorf("expected a non-negative integer, got %v", n)
	}
	return uint64(n), nil
}

func getBool(v *structpb.Value) (bool, error) {
	b, ok := v.GetKind().(*structpb.Value_BoolValue)
	if !ok {
		return false, fmt.Errorf("expected a bool, got %T", v.GetKind())
	}
	return b.BoolValue, nil
}

func getString(v *structpb.Value) (string, error) {
	s, ok := v.GetKind().(*structpb.Value_StringValue)
	if !ok {
		return "", fmt.Errorf("expected a string, got %T", v.GetKind())
	}
	return s.StringValue, nil
}

// Package goconv converts between Go values and the protobuf messages of
// the whisperstream.SpeechToText service.
package goconv

import (
	"time"

	"github.com/xaionaro-go/whisperstream/pkg/speech"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	fieldText                = "text"
	fieldProgress            = "progress"
	fieldLanguage            = "language"
	fieldNoSpeechProbability = "no_speech_probability"
	fieldHasVoice            = "has_voice"
	fieldIsFinal             = "is_final"
	fieldWindowEndNS         = "window_end_ns"
)

func TranscriptToGRPC(t *speech.Transcript) *structpb.Struct {
	return &structpb.Struct{
		Fields: map[string]*structpb.Value{
			fieldText:                structpb.NewStringValue(string(t.Text)),
			fieldProgress:            structpb.NewNumberValue(float64(t.Progress)),
			fieldLanguage:            structpb.NewStringValue(string(t.Language)),
			fieldNoSpeechProbability: structpb.NewNumberValue(float64(t.NoSpeechProbability)),
			fieldHasVoice:            structpb.NewBoolValue(t.HasVoice),
			fieldIsFinal:             structpb.NewBoolValue(t.IsFinal),
			fieldWindowEndNS:         structpb.NewNumberValue(float64(t.WindowEnd.Nanoseconds())),
		},
	}
}

func TranscriptFromGRPC(s *structpb.Struct) *speech.Transcript {
	f := s.GetFields()
	return &speech.Transcript{
		Text:                speech.Text(f[fieldText].GetStringValue()),
		Progress:            float32(f[fieldProgress].GetNumberValue()),
		Language:            speech.Language(f[fieldLanguage].GetStringValue()),
		NoSpeechProbability: float32(f[fieldNoSpeechProbability].GetNumberValue()),
		HasVoice:            f[fieldHasVoice].GetBoolValue(),
		IsFinal:             f[fieldIsFinal].GetBoolValue(),
		WindowEnd:           time.Duration(f[fieldWindowEndNS].GetNumberValue()),
	}
}

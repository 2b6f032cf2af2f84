package whisper

import (
	"fmt"
	"strings"

	"github.com/mutablelogic/go-whisper/sys/whisper"
)

type SamplingStrategy int

const (
	SamplingStrategyUndefined = SamplingStrategy(iota)
	SamplingStrategyGreedy
	SamplingStrategyBeamSearch
)

func (ss SamplingStrategy) ToWhisper() whisper.SamplingStrategy {
	switch ss {
	case SamplingStrategyGreedy:
		return whisper.SAMPLING_GREEDY
	case SamplingStrategyBeamSearch:
		return whisper.SAMPLING_BEAM_SEARCH
	}
	panic(fmt.Errorf("unknown sampling strategy: %d", ss))
}

// String implements fmt.Stringer, flag.Value and pflag.Value.
func (ss SamplingStrategy) String() string {
	switch ss {
	case SamplingStrategyUndefined:
		return "undefined"
	case SamplingStrategyGreedy:
		return "greedy"
	case SamplingStrategyBeamSearch:
		return "beam_search"
	}
	return fmt.Sprintf("unknown_%d", int(ss))
}

func (ss *SamplingStrategy) Set(value string) error {
	switch strings.ToLower(value) {
	case "greedy":
		*ss = SamplingStrategyGreedy
	case "beam_search", "beam-search":
		*ss = SamplingStrategyBeamSearch
	default:
		return fmt.Errorf("unknown sampling strategy '%s', known values are: greedy, beam_search", value)
	}
	return nil
}

func (ss *SamplingStrategy) Type() string {
	return "SamplingStrategy"
}

// Package hallucination recognizes whisper output that does not correspond
// to the audio: sound annotations, hanging output and phrases known to be
// produced by specific models on silence or noise.
package hallucination

import (
	"context"
	"strings"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/lazybeaver/entropy"
)

const (
	EntropyMin            = 3.63
	EntropyDetectorLenMin = 80
)

// IsAnnotation reports texts like "[music]" or "(door opens)".
func IsAnnotation(text string) bool {
	trimmedText := strings.ToLower(strings.Trim(text, " "))
	switch {
	case strings.HasPrefix(trimmedText, "[") && strings.HasSuffix(trimmedText, "]"):
		// e.g.: [silence], [typing], [click], [music], [blank_audio], [ pause ]
		return true
	case strings.HasPrefix(trimmedText, "(") && strings.HasSuffix(trimmedText, ")"):
		// e.g.: (clicking), (faint clicking), (door opens)
		return true
	case strings.HasPrefix(trimmedText, "*") && strings.HasSuffix(trimmedText, "*"):
		// e.g.: *thump*
		return true
	case strings.HasPrefix(trimmedText, "♪") && strings.HasSuffix(trimmedText, "♪"):
		// e.g.: ♪ ♪
		return true
	}
	return false
}

// IsHanging reports a segment consisting of exclamation marks only, which
// is what whisper emits when it gets stuck on a specific audio.
func IsHanging(tokens []string) bool {
	for _, token := range tokens {
		if token != "!" {
			return false
		}
	}
	return true
}

func IsLikely(
	ctx context.Context,
	model ModelHash,
	text string,
) bool {
	t0 := strings.Trim(text, " ")
	t1 := strings.ReplaceAll(t0, "!", "")
	t1 = strings.ReplaceAll(t1, ".", "")
	t1 = strings.ReplaceAll(t1, "-", "")
	t1 = strings.Trim(t1, " ")
	switch model {
	case ModelHashMedium:
		logger.Tracef(ctx, "hallucination check for medium")
		switch t1 {
		case "Thank you for watching", "Thanks for watching",
			"Thank you for watching Please subscribe to my channel",
			"Thank you",
			"Bye":
			return true
		}

	case ModelHashLargeV3:
		logger.Tracef(ctx, "hallucination check for large-v3")
		switch t0 {
		case "0.", "0.5.", "0.001.",
			"you",
			"Oh!",
			"Hello everyone, welcome to my channel.",
			"The next day",
			"I'll be right back.",
			"I'll be back in a minute.",
			"So, let's do this.",
			"So, let's do that.",
			"So, let's go ahead and do that.",
			"So, we have the following.",
			"I don't know what to do.",
			"We have 15 minutes left.",
			"I'm going to bed.",
			"I'm going to sleep.",
			"All right.",
			"I love you.",
			"You're welcome.",
			"Amen.",
			"I'm sorry. I'm sorry.",
			"I'm sorry, I'm sorry.":
			return true
		}
		switch t1 {
		case "Thank you for watching", "Thanks for watching",
			"Thank you for watching Please subscribe to my channel",
			"Thank you",
			"I'm sorry",
			"Bye",
			"Subtitles by the Amaraorg community",
			"Okay",
			"The end",
			"The End",
			"THE END",
			"":
			return true
		}

		switch {
		case strings.HasPrefix(t0, `"`) && strings.HasSuffix(t0, `"`):
			return true
		case strings.HasPrefix(t0, "End of"):
			return true
		}

		if len(t0) > EntropyDetectorLenMin {
			e, err := entropy.Shannon(text)
			if err != nil {
				logger.Errorf(ctx, "unable to calculate shannon entropy: %v", err)
				return false
			}

			if e < EntropyMin {
				logger.Tracef(ctx, "entropy is too low, assuming a hallucination: %f < %f", e, EntropyMin)
				return true
			}
		}
	}

	return false
}

// Normalize drops punctuation and case, so that repeated segments can be
// compared.
func Normalize(in string) string {
	in = strings.ReplaceAll(in, "!", "")
	in = strings.ReplaceAll(in, "?", "")
	in = strings.ReplaceAll(in, ".", "")
	return strings.ToLower(strings.Trim(in, " "))
}

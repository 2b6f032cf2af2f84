package whisper

import (
	"github.com/xaionaro-go/whisperstream/pkg/speech"
)

func LanguageToWhisper(language speech.Language) string {
	if language.IsAuto() {
		return "auto"
	}
	return string(language.Family())
}

package ports

import (
	"fmt"

	"github.com/cadenzapiano/practicecore/pkg/score"
)

// scoreLoadf builds a ScoreLoadError from a formatted message, with no
// underlying cause (the failure is a rejection, not a wrapped error).
func scoreLoadf(format string, args ...interface{}) error {
	return &ScoreLoadError{Message: fmt.Sprintf(format, args...)}
}

// SMFScoreImporter adapts score.SMFImporter to the ScoreImporter
// contract. MusicXmlFile sources are accepted by the contract's type but
// rejected here, since this adapter only understands Standard MIDI Files;
// it reports a ScoreLoad error rather than silently mis-parsing.
type SMFScoreImporter struct {
	inner score.SMFImporter
}

func NewSMFScoreImporter() SMFScoreImporter {
	return SMFScoreImporter{inner: score.NewSMFImporter()}
}

func (a SMFScoreImporter) Import(source ScoreSource) (score.Score, error) {
	switch source.Kind {
	case ScoreSourceMidiFile:
		loaded, err := a.inner.ImportFile(source.Path)
		if err != nil {
			return score.Score{}, &ScoreLoadError{Message: err.Error(), Cause: err}
		}
		return loaded, nil
	case ScoreSourceMusicXmlFile:
		return score.Score{}, scoreLoadf("MusicXML import not implemented: %s", source.Path)
	default:
		return score.Score{}, scoreLoadf("unsupported score source kind %d", source.Kind)
	}
}

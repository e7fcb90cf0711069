package submission

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"briefboard/internal/models"
	"briefboard/internal/util"
)

// DefaultMaxBytes is the per-input size limit.
const DefaultMaxBytes int64 = 10 << 20

var SupportedExtensions = []string{".txt", ".pdf", ".docx"}

// Input is one file of a submission, already read into memory.
type Input struct {
	Filename  string
	Content   []byte
	Synthetic bool
}

func (in Input) Size() int64 { return int64(len(in.Content)) }

// ClipboardFilename names the synthetic text input after t so that repeated
// submissions never collide.
func ClipboardFilename(t time.Time) string {
	ts := t.UTC().Format("2006-01-02T15:04:05.000Z")
	ts = strings.NewReplacer(":", "-", ".", "-").Replace(ts)
	return "clipboard-" + ts + ".txt"
}

// Assemble builds the ordered input list. Non-blank text becomes one
// synthetic text file placed before the selected files.
func Assemble(text string, files []Input, now time.Time) ([]Input, error) {
	text = util.SanitizeText(text)
	if text == "" && len(files) == 0 {
		return nil, util.ErrEmptySubmission
	}
	out := make([]Input, 0, len(files)+1)
	if text != "" {
		out = append(out, Input{Filename: ClipboardFilename(now), Content: []byte(text), Synthetic: true})
	}
	return append(out, files...), nil
}

// Validate drops inputs with an unsupported extension or over maxBytes.
// Each rejection is reported on its own; the accepted inputs keep their
// relative order.
func Validate(inputs []Input, maxBytes int64) ([]Input, []models.ValidationRejection) {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	accepted := make([]Input, 0, len(inputs))
	rejected := make([]models.ValidationRejection, 0)
	for _, in := range inputs {
		if err := check(in, maxBytes); err != nil {
			rejected = append(rejected, models.ValidationRejection{Filename: in.Filename, Reason: err.Error()})
			continue
		}
		accepted = append(accepted, in)
	}
	return accepted, rejected
}

func check(in Input, maxBytes int64) error {
	if !Supported(in.Filename) {
		return fmt.Errorf("%s: %w", in.Filename, util.ErrUnsupportedType)
	}
	if in.Size() > maxBytes {
		return fmt.Errorf("%s: %w (%d > %d bytes)", in.Filename, util.ErrTooLarge, in.Size(), maxBytes)
	}
	return nil
}

func Supported(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	for _, s := range SupportedExtensions {
		if ext == s {
			return true
		}
	}
	return false
}

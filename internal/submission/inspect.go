package submission

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"briefboard/internal/util"

	"github.com/ledongthuc/pdf"
)

// Inspection is a local preview of one input before it is submitted.
type Inspection struct {
	Filename  string `json:"filename" yaml:"filename"`
	Extension string `json:"extension" yaml:"extension"`
	Bytes     int64  `json:"bytes" yaml:"bytes"`
	SHA256    string `json:"sha256" yaml:"sha256"`
	Pages     int    `json:"pages,omitempty" yaml:"pages,omitempty"`
	Words     int    `json:"words" yaml:"words"`
	Accepted  bool   `json:"accepted" yaml:"accepted"`
	Reason    string `json:"reason,omitempty" yaml:"reason,omitempty"`
}

// Inspect reports size, word count and, for PDFs, page count. Extraction
// problems are reported in Reason; they do not reject the input, since the
// summarization service does its own extraction.
func Inspect(in Input, maxBytes int64) Inspection {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	out := Inspection{
		Filename:  in.Filename,
		Extension: strings.ToLower(filepath.Ext(in.Filename)),
		Bytes:     in.Size(),
		SHA256:    util.SHA256Hex(in.Content),
		Accepted:  true,
	}
	if err := check(in, maxBytes); err != nil {
		out.Accepted = false
		out.Reason = err.Error()
		return out
	}

	var (
		text string
		err  error
	)
	switch out.Extension {
	case ".pdf":
		text, out.Pages, err = pdfText(in.Content)
	case ".docx":
		text, err = docxText(in.Content)
	default:
		if !utf8.Valid(in.Content) {
			err = errors.New("text file is not valid UTF-8")
		}
		text = string(in.Content)
	}
	if err != nil {
		out.Reason = err.Error()
		return out
	}
	out.Words = util.WordCount(util.SanitizeText(text))
	return out
}

func pdfText(content []byte) (string, int, error) {
	r, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", 0, fmt.Errorf("open pdf: %w", err)
	}
	pages := r.NumPage()
	reader, err := r.GetPlainText()
	if err != nil {
		return "", pages, fmt.Errorf("extract pdf text: %w", err)
	}
	buf := new(strings.Builder)
	if _, err := io.Copy(buf, reader); err != nil {
		return "", pages, fmt.Errorf("read extracted text: %w", err)
	}
	return buf.String(), pages, nil
}

// docxText pulls the character data out of word/document.xml, adding a
// space after each paragraph.
func docxText(content []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", fmt.Errorf("open docx: %w", err)
	}
	for _, f := range zr.File {
		if f.Name != "word/document.xml" {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return "", fmt.Errorf("open document.xml: %w", err)
		}
		defer rc.Close()

		var sb strings.Builder
		dec := xml.NewDecoder(rc)
		for {
			tok, err := dec.Token()
			if err == io.EOF {
				break
			}
			if err != nil {
				return "", fmt.Errorf("parse document.xml: %w", err)
			}
			switch t := tok.(type) {
			case xml.CharData:
				sb.Write(t)
			case xml.EndElement:
				if t.Name.Local == "p" {
					sb.WriteByte(' ')
				}
			}
		}
		return sb.String(), nil
	}
	return "", errors.New("docx has no word/document.xml")
}

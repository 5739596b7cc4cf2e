package diag

import (
	"io"

	"gopkg.in/yaml.v3"

	"github.com/weave-lang/weave/internal/token"
)

// bundleYAML is the stable serialized shape of a Bundle, decoupled from
// the in-memory structs so renaming a field in Diagnostic cannot
// silently invalidate every golden snapshot on disk.
type bundleYAML struct {
	Diagnostics []diagnosticYAML `yaml:"diagnostics"`
}

type diagnosticYAML struct {
	Severity  string      `yaml:"severity"`
	Code      string      `yaml:"code"`
	File      string      `yaml:"file,omitempty"`
	Line      int         `yaml:"line"`
	Col       int         `yaml:"col"`
	Message   string      `yaml:"message"`
	Help      string      `yaml:"help,omitempty"`
	Secondary []labelYAML `yaml:"secondary,omitempty"`
}

type labelYAML struct {
	Line    int    `yaml:"line"`
	Col     int    `yaml:"col"`
	Message string `yaml:"message"`
}

// EncodeYAML writes the bundle as YAML, the golden-snapshot format
// internal/compile's tests compare against txtar fixture sections.
func (b *Bundle) EncodeYAML(w io.Writer) error {
	out := bundleYAML{Diagnostics: make([]diagnosticYAML, 0, len(b.Diagnostics))}
	for _, d := range b.Diagnostics {
		dy := diagnosticYAML{
			Severity: d.Severity.String(),
			Code:     string(d.Code),
			File:     d.File,
			Line:     d.Primary.Line,
			Col:      d.Primary.Col,
			Message:  d.Message,
			Help:     d.Help,
		}
		for _, l := range d.Secondary {
			dy.Secondary = append(dy.Secondary, labelYAML{Line: l.Span.Line, Col: l.Span.Col, Message: l.Message})
		}
		out.Diagnostics = append(out.Diagnostics, dy)
	}
	enc := yaml.NewEncoder(w)
	defer enc.Close()
	return enc.Encode(out)
}

// DecodeYAML reads a bundle previously written by EncodeYAML. Only the
// fields the YAML shape carries survive the round trip: byte offsets are
// not serialized, so decoded spans hold line/col positions only.
func DecodeYAML(r io.Reader) (*Bundle, error) {
	var in bundleYAML
	if err := yaml.NewDecoder(r).Decode(&in); err != nil {
		return nil, err
	}
	b := &Bundle{}
	for _, dy := range in.Diagnostics {
		d := &Diagnostic{
			Severity: severityFromString(dy.Severity),
			Code:     Code(dy.Code),
			File:     dy.File,
			Primary:  token.Span{Line: dy.Line, Col: dy.Col},
			Message:  dy.Message,
			Help:     dy.Help,
		}
		for _, l := range dy.Secondary {
			d.Secondary = append(d.Secondary, Label{Span: token.Span{Line: l.Line, Col: l.Col}, Message: l.Message})
		}
		b.Add(d)
	}
	return b, nil
}

func severityFromString(s string) Severity {
	if s == "warning" {
		return Warning
	}
	return Error
}

package config

import (
	"fmt"
	"io"
	"strings"
)

// Encoder writes config files in the "key = value" / "[section]" text
// format, preserving section, subsection and option order so
// round-tripping a parsed file reproduces it byte-for-byte modulo
// whitespace normalisation.
type Encoder struct {
	w io.Writer
}

func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{w}
}

// Encode writes cfg to the underlying writer.
func (e *Encoder) Encode(cfg *Config) error {
	for _, s := range cfg.Sections {
		if err := e.encodeSection(s); err != nil {
			return err
		}
	}
	return nil
}

func (e *Encoder) encodeSection(s *Section) error {
	if len(s.Options) > 0 {
		if err := e.printf("[%s]\n", s.Name); err != nil {
			return err
		}
		if err := e.encodeOptions(s.Options); err != nil {
			return err
		}
	}

	for _, ss := range s.Subsections {
		if err := e.printf("[%s %s]\n", s.Name, quoteSubsection(ss.Name)); err != nil {
			return err
		}
		if err := e.encodeOptions(ss.Options); err != nil {
			return err
		}
	}

	if len(s.Options) == 0 && len(s.Subsections) == 0 {
		return e.printf("[%s]\n", s.Name)
	}
	return nil
}

func (e *Encoder) encodeOptions(opts Options) error {
	for _, o := range opts {
		if err := e.printf("\t%s = %s\n", o.Key, escapeValue(o.Value)); err != nil {
			return err
		}
	}
	return nil
}

func (e *Encoder) printf(format string, args ...interface{}) error {
	_, err := fmt.Fprintf(e.w, format, args...)
	return err
}

func quoteSubsection(name string) string {
	name = strings.ReplaceAll(name, `\`, `\\`)
	name = strings.ReplaceAll(name, `"`, `\"`)
	return `"` + name + `"`
}

func escapeValue(v string) string {
	if !strings.ContainsAny(v, "#;\"\n") && v == strings.TrimSpace(v) {
		return v
	}
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, `"`, `\"`)
	v = strings.ReplaceAll(v, "\n", `\n`)
	return `"` + v + `"`
}

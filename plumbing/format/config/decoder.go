package config

import (
	"io"

	"github.com/go-git/gcfg"
)

// Decoder reads and decodes config files from an input stream.
type Decoder struct {
	io.Reader
}

func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{r}
}

// Decode reads the whole config from its input and stores it in config.
func (d *Decoder) Decode(config *Config) error {
	cb := func(s, ss, k, v string, _ bool) error {
		if ss == "" && k == "" {
			config.Section(s)
			return nil
		}
		if ss != "" && k == "" {
			config.Section(s).Subsection(ss)
			return nil
		}
		config.AddOption(s, ss, k, v)
		return nil
	}
	return gcfg.ReadWithCallback(d, cb)
}

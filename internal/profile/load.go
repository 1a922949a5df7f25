package profile

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Document is the YAML file layout accepted by the CLI.
type Document struct {
	Concerns []string `yaml:"concerns"`
	Profile  Profile  `yaml:"profile"`
}

// LoadFile reads a profile document from disk. Fields missing from the file
// keep their documented defaults.
func LoadFile(path string) (Profile, Selection, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Profile{}, nil, fmt.Errorf("failed to read profile %s: %w", path, err)
	}
	return Load(bytes.NewReader(data))
}

// Load decodes a profile document from r.
func Load(r io.Reader) (Profile, Selection, error) {
	doc := Document{Profile: Default()}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil && err != io.EOF {
		return Profile{}, nil, fmt.Errorf("failed to parse profile: %w", err)
	}

	selection, err := ParseSelection(doc.Concerns)
	if err != nil {
		return Profile{}, nil, err
	}
	return doc.Profile, selection, nil
}

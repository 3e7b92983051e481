package form

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"medbook/internal/models"

	"gopkg.in/yaml.v3"
)

// Static serves fixed field values. Unknown keys read as "".
type Static map[string]string

func (s Static) Value(_ context.Context, key string) (string, error) {
	return s[key], nil
}

// Document is the YAML shape of one booking form.
type Document struct {
	Patient string `yaml:"patient"`
	Doctor  string `yaml:"doctor"`
	Date    string `yaml:"date"`
	Time    string `yaml:"time"`
}

// Values returns the document as a field source.
func (d Document) Values() Static {
	return Static{
		models.FieldPatient: d.Patient,
		models.FieldDoctor:  d.Doctor,
		models.FieldDate:    d.Date,
		models.FieldTime:    d.Time,
	}
}

// BatchDocument is the YAML shape of a batch file.
type BatchDocument struct {
	Forms []Document `yaml:"forms"`
}

// LoadFile reads one form from a YAML file.
func LoadFile(path string) (Static, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse form %s: %w", path, err)
	}
	return doc.Values(), nil
}

// LoadBatch reads the forms of a batch file in file order.
func LoadBatch(path string) ([]Static, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var doc BatchDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse batch %s: %w", path, err)
	}
	forms := make([]Static, 0, len(doc.Forms))
	for _, d := range doc.Forms {
		forms = append(forms, d.Values())
	}
	return forms, nil
}

var promptLabels = map[string]string{
	models.FieldPatient: "Patient name",
	models.FieldDoctor:  "Doctor",
	models.FieldDate:    "Date (YYYY-MM-DD)",
	models.FieldTime:    "Time (HH:MM)",
}

// Prompt asks for each field on out and reads one line from in.
// Only the line terminator is removed from the answer.
type Prompt struct {
	mu  sync.Mutex
	in  *bufio.Reader
	out io.Writer
}

// NewPrompt constructs a terminal prompt source.
func NewPrompt(in io.Reader, out io.Writer) *Prompt {
	return &Prompt{in: bufio.NewReader(in), out: out}
}

func (p *Prompt) Value(ctx context.Context, key string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	label, ok := promptLabels[key]
	if !ok {
		label = key
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if _, err := fmt.Fprintf(p.out, "%s: ", label); err != nil {
		return "", err
	}
	line, err := p.in.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	line = strings.TrimSuffix(line, "\n")
	line = strings.TrimSuffix(line, "\r")
	return line, nil
}

package pipeline

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/ruslano69/tdtp-stepflow/pkg/steps"
)

// Definition - YAML описание конвейера
type Definition struct {
	Name  string    `yaml:"name,omitempty"`
	Steps []StepDef `yaml:"steps"`
}

// StepDef - описание шага: вид и поля в терминах yaml-тегов шага
type StepDef struct {
	Kind   string    `yaml:"kind"`
	Fields yaml.Node `yaml:"fields,omitempty"`
}

// LoadDefinition читает описание конвейера из файла
func LoadDefinition(path string) (*Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read pipeline file: %w", err)
	}
	var def Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("failed to parse pipeline YAML: %w", err)
	}
	return &def, nil
}

// Build создает шаги по описанию
func (d *Definition) Build(opts ...Option) (*Pipeline, error) {
	p := New(opts...)
	p.Name = d.Name
	for i, sd := range d.Steps {
		s, err := sd.Step()
		if err != nil {
			return nil, fmt.Errorf("step %d: %w", i+1, err)
		}
		p.Add(s)
	}
	return p, nil
}

// Step создает шаг по описанию
func (sd *StepDef) Step() (steps.Step, error) {
	kind, err := steps.ParseKind(sd.Kind)
	if err != nil {
		return nil, err
	}
	s, err := steps.New(kind)
	if err != nil {
		return nil, err
	}
	if sd.Fields.Kind != 0 {
		if err := sd.Fields.Decode(s); err != nil {
			return nil, fmt.Errorf("%s fields: %w", kind, err)
		}
	}
	return s, nil
}

// FromPipeline строит описание по текущему состоянию конвейера
func FromPipeline(p *Pipeline) (*Definition, error) {
	def := &Definition{Name: p.Name}
	for i, e := range p.entries {
		sd := StepDef{Kind: string(e.Step.Kind())}
		if err := sd.Fields.Encode(e.Step); err != nil {
			return nil, fmt.Errorf("step %d: %w", i+1, err)
		}
		def.Steps = append(def.Steps, sd)
	}
	return def, nil
}

// Marshal возвращает описание в YAML
func (d *Definition) Marshal() ([]byte, error) {
	return yaml.Marshal(d)
}

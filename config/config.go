// Package config reads planning parameters from a YAML file.
//
// Example:
//
//	arenas: 2
//	alignment: 64
//	capacities: [1048576]
//	subgraphs: [0]
//	tensors:
//	  - subgraph: 0
//	    tensor: 12
//	    arenas: [1]
//	  - subgraph: 0
//	    tensor: 3
//	    size: 4096
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math/bits"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/hupe1980/tflplan"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("pow2", func(fl validator.FieldLevel) bool {
		n := fl.Field().Int()
		return n > 0 && bits.OnesCount64(uint64(n)) == 1
	})
	return v
}

// Config holds planning parameters. Zero values leave the planner defaults
// in place.
type Config struct {
	Arenas      int      `yaml:"arenas" validate:"gte=0,lte=256"`
	Alignment   int64    `yaml:"alignment" validate:"omitempty,pow2,lte=65536"`
	Capacities  []int64  `yaml:"capacities" validate:"omitempty,dive,gte=0"`
	Subgraphs   []int    `yaml:"subgraphs" validate:"omitempty,dive,gte=0"`
	Parallelism int      `yaml:"parallelism" validate:"gte=0"`
	Tensors     []Tensor `yaml:"tensors" validate:"omitempty,dive"`
}

// Tensor holds per-tensor settings.
type Tensor struct {
	Subgraph int    `yaml:"subgraph" validate:"gte=0"`
	Tensor   int    `yaml:"tensor" validate:"gte=0"`
	Arenas   []int  `yaml:"arenas" validate:"omitempty,dive,gte=0"`
	Size     *int64 `yaml:"size" validate:"omitempty,gte=0"`
}

// Load reads and validates the file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a YAML document. Unknown keys are rejected.
// Validation failures wrap tflplan.ErrInvalidArgument.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: config: %w", tflplan.ErrInvalidArgument, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks field ranges and cross references between fields.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: config: %w", tflplan.ErrInvalidArgument, err)
	}
	arenas := max(c.Arenas, 1)
	if len(c.Capacities) > arenas {
		return fmt.Errorf("%w: config: %d capacities for %d arenas", tflplan.ErrInvalidArgument, len(c.Capacities), arenas)
	}
	for i, t := range c.Tensors {
		for _, a := range t.Arenas {
			if a >= arenas {
				return fmt.Errorf("%w: config: tensors[%d] uses arena %d of %d", tflplan.ErrInvalidArgument, i, a, arenas)
			}
		}
		if len(t.Arenas) == 0 && t.Size == nil {
			return fmt.Errorf("%w: config: tensors[%d] sets neither arenas nor size", tflplan.ErrInvalidArgument, i)
		}
	}
	return nil
}

// Options converts the file into planner options.
func (c *Config) Options() []tflplan.Option {
	var opts []tflplan.Option
	if c.Arenas > 0 {
		opts = append(opts, tflplan.WithArenaCount(c.Arenas))
	}
	if c.Alignment > 0 {
		opts = append(opts, tflplan.WithAlignment(c.Alignment))
	}
	for arena, limit := range c.Capacities {
		if limit > 0 {
			opts = append(opts, tflplan.WithArenaCapacity(arena, limit))
		}
	}
	if len(c.Subgraphs) > 0 {
		opts = append(opts, tflplan.WithSubgraphs(c.Subgraphs...))
	}
	if c.Parallelism > 0 {
		opts = append(opts, tflplan.WithParallelism(c.Parallelism))
	}
	for _, t := range c.Tensors {
		if len(t.Arenas) > 0 {
			opts = append(opts, tflplan.WithAffinity(t.Subgraph, t.Tensor, t.Arenas...))
		}
		if t.Size != nil {
			opts = append(opts, tflplan.WithSizeOverride(t.Subgraph, t.Tensor, *t.Size))
		}
	}
	return opts
}

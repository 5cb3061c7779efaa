package cmd

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Strategies accepted by the replay command.
const (
	strategyWindowed = "windowed"
	strategyDouble   = "double"
	strategyManual   = "manual"
	strategyNaive    = "naive"
)

// A scenario describes one replay.
type scenario struct {
	Strategy     string `yaml:"strategy"`
	Capacity     int    `yaml:"capacity"`
	Events       int    `yaml:"events"`
	Jitter       int    `yaml:"jitter"`
	Seed         int64  `yaml:"seed"`
	ReplaceEvery int    `yaml:"replace_every"`
	CompactEvery int    `yaml:"compact_every"`
}

func defaultScenario() scenario {
	return scenario{
		Strategy:     strategyWindowed,
		Capacity:     64,
		Events:       10000,
		Jitter:       8,
		Seed:         1,
		ReplaceEvery: 4,
		CompactEvery: 256,
	}
}

func (s scenario) validate() error {
	switch s.Strategy {
	case strategyWindowed, strategyDouble, strategyManual, strategyNaive:
	default:
		return fmt.Errorf("unknown strategy %q", s.Strategy)
	}

	if s.Capacity <= 0 {
		return fmt.Errorf("capacity must be positive, got %d", s.Capacity)
	}

	if s.Events < 0 {
		return fmt.Errorf("number of events must not be negative, got %d", s.Events)
	}

	if s.Jitter < 0 {
		return fmt.Errorf("jitter must not be negative, got %d", s.Jitter)
	}

	if s.ReplaceEvery < 0 || s.CompactEvery < 0 {
		return errors.New("replace and compact periods must not be negative")
	}

	return nil
}

// applyEnv loads envFile, if it exists, and overrides the scenario with the
// LAGBUFFER_* variables. Variables already set in the environment win over
// the file.
func (s *scenario) applyEnv(envFile string) error {
	if envFile != "" {
		err := godotenv.Load(envFile)
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("loading %s: %w", envFile, err)
		}
	}

	if v, ok := os.LookupEnv("LAGBUFFER_STRATEGY"); ok {
		s.Strategy = v
	}

	ints := []struct {
		name string
		dst  *int
	}{
		{"LAGBUFFER_CAPACITY", &s.Capacity},
		{"LAGBUFFER_EVENTS", &s.Events},
		{"LAGBUFFER_JITTER", &s.Jitter},
		{"LAGBUFFER_REPLACE_EVERY", &s.ReplaceEvery},
		{"LAGBUFFER_COMPACT_EVERY", &s.CompactEvery},
	}

	for _, i := range ints {
		v, ok := os.LookupEnv(i.name)
		if !ok {
			continue
		}

		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parsing %s: %w", i.name, err)
		}

		*i.dst = n
	}

	if v, ok := os.LookupEnv("LAGBUFFER_SEED"); ok {
		seed, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("parsing LAGBUFFER_SEED: %w", err)
		}

		s.Seed = seed
	}

	return nil
}

// applyFile overrides the scenario with the fields set in a YAML file.
func (s *scenario) applyFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)

	err = dec.Decode(s)
	if err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("decoding %s: %w", path, err)
	}

	return nil
}

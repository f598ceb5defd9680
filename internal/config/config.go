// Package config loads the typewriter configuration file.
//
// The file is YAML. Before it is decoded, the document is unified with an
// embedded CUE schema, so a malformed file fails with the position of the
// offending value. Omitted settings take the values of Default.
package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
	cueyaml "cuelang.org/go/encoding/yaml"
	"github.com/lmittmann/tint"
	"gopkg.in/yaml.v3"

	"github.com/roach88/typewriter/internal/codec"
	"github.com/roach88/typewriter/internal/field"
	"github.com/roach88/typewriter/internal/pool"
	"github.com/roach88/typewriter/internal/queryir"
)

//go:embed schema.cue
var schemaSource string

// Backend kinds.
const (
	KindSQL    = "sql"
	KindMongo  = "mongo"
	KindMemory = "memory"
)

// Config is the decoded configuration file.
type Config struct {
	Logger   Logger             `yaml:"logger"`
	Pool     Pool               `yaml:"pool"`
	Backends map[string]Backend `yaml:"backends"`
	Models   map[string]Model   `yaml:"models"`
}

// Logger selects the log handler.
type Logger struct {
	Format string `yaml:"format"`
	Level  string `yaml:"level"`
}

// Pool holds connection pool bounds.
type Pool struct {
	MaxSize        int      `yaml:"max_size"`
	MinIdle        int      `yaml:"min_idle"`
	AcquireTimeout Duration `yaml:"acquire_timeout"`
	ProbeTimeout   Duration `yaml:"probe_timeout"`
}

// Backend is one named database.
type Backend struct {
	Kind     string `yaml:"kind"`
	Dialect  string `yaml:"dialect"`
	DSN      string `yaml:"dsn"`
	Database string `yaml:"database"`

	// Pool overrides the top-level pool bounds for this backend.
	Pool *Pool `yaml:"pool"`
}

// Model declares a record type.
type Model struct {
	Source   string       `yaml:"source"`
	Identity string       `yaml:"identity"`
	Fields   []FieldEntry `yaml:"fields"`
}

// FieldEntry is one field of a model; Type is parsed by field.Parse.
type FieldEntry struct {
	Name string `yaml:"name"`
	Type string `yaml:"type"`
}

// Duration is a time.Duration written as a Go duration string.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(n *yaml.Node) error {
	var s string
	if err := n.Decode(&s); err != nil {
		return err
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("line %d: %w", n.Line, err)
	}
	*d = Duration(v)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Default returns the configuration used for omitted settings.
func Default() Config {
	def := pool.DefaultConfig("")
	return Config{
		Logger: Logger{Format: "text", Level: "info"},
		Pool: Pool{
			MaxSize:        def.MaxSize,
			MinIdle:        def.MinIdle,
			AcquireTimeout: Duration(def.AcquireTimeout),
			ProbeTimeout:   Duration(def.ProbeTimeout),
		},
	}
}

// Error is a configuration error with its source position.
type Error struct {
	Message string
	Pos     token.Pos
}

func (e *Error) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Message)
	}
	return e.Message
}

// Load reads and validates the file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(path, data)
}

// Parse validates and decodes data; filename is used in error positions.
func Parse(filename string, data []byte) (*Config, error) {
	if err := validate(filename, data); err != nil {
		return nil, err
	}

	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode %s: %w", filename, err)
	}
	for name, b := range cfg.Backends {
		if b.Pool == nil {
			continue
		}
		if err := cfg.PoolConfig(name).Validate(); err != nil {
			return nil, err
		}
	}
	if err := cfg.PoolConfig("default").Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func validate(filename string, data []byte) error {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile config schema: %w", err)
	}

	file, err := cueyaml.Extract(filename, data)
	if err != nil {
		return positioned(filename, err)
	}
	doc := ctx.BuildFile(file)
	if err := doc.Err(); err != nil {
		return positioned(filename, err)
	}

	v := schema.LookupPath(cue.ParsePath("#Config")).Unify(doc)
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return positioned(filename, err)
	}
	return nil
}

// positioned converts a CUE error, preferring a position in the config
// file over one in the schema.
func positioned(filename string, err error) error {
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return &Error{Message: err.Error()}
	}
	first := errs[0]
	out := &Error{Message: first.Error()}
	for _, pos := range cueerrors.Positions(first) {
		if pos.Filename() == filename {
			out.Pos = pos
			return out
		}
		if !out.Pos.IsValid() {
			out.Pos = pos
		}
	}
	return out
}

// PoolConfig returns the pool bounds of the named backend: its override
// when it has one, the top-level bounds otherwise.
func (c *Config) PoolConfig(backend string) pool.Config {
	p := c.Pool
	if b, ok := c.Backends[backend]; ok && b.Pool != nil {
		p = mergePool(p, *b.Pool)
	}
	return pool.Config{
		Name:           backend,
		MaxSize:        p.MaxSize,
		MinIdle:        p.MinIdle,
		AcquireTimeout: time.Duration(p.AcquireTimeout),
		ProbeTimeout:   time.Duration(p.ProbeTimeout),
	}
}

func mergePool(base, over Pool) Pool {
	if over.MaxSize != 0 {
		base.MaxSize = over.MaxSize
	}
	if over.MinIdle != 0 {
		base.MinIdle = over.MinIdle
	}
	if over.AcquireTimeout != 0 {
		base.AcquireTimeout = over.AcquireTimeout
	}
	if over.ProbeTimeout != 0 {
		base.ProbeTimeout = over.ProbeTimeout
	}
	return base
}

// BuildModel declares the named model with reg's codecs.
func (c *Config) BuildModel(name string, reg *codec.Registry) (*field.Model, error) {
	m, ok := c.Models[name]
	if !ok {
		return nil, fmt.Errorf("unknown model %q", name)
	}
	var id queryir.Field
	fields := make([]queryir.FieldRef, 0, len(m.Fields))
	for _, e := range m.Fields {
		f, err := field.Parse(e.Name, e.Type)
		if err != nil {
			return nil, fmt.Errorf("model %s: %w", name, err)
		}
		if f.Name == m.Identity {
			id = f
		}
		fields = append(fields, f)
	}
	if id.Name == "" {
		return nil, fmt.Errorf("model %s: identity %q is not one of its fields", name, m.Identity)
	}
	return field.NewModel(reg, m.Source, id, fields...)
}

// NewLogger builds the configured logger writing to w.
func (l Logger) NewLogger(w io.Writer) (*slog.Logger, error) {
	level := slog.LevelInfo
	if l.Level != "" {
		if err := level.UnmarshalText([]byte(l.Level)); err != nil {
			return nil, fmt.Errorf("logger level: %w", err)
		}
	}
	switch l.Format {
	case "", "text":
		return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})), nil
	case "tint":
		return slog.New(tint.NewHandler(w, &tint.Options{Level: level, TimeFormat: time.Kitchen})), nil
	default:
		return nil, fmt.Errorf("unknown logger format %q", l.Format)
	}
}

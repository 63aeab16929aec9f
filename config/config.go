// Package config loads renderer settings from TOML or YAML files and
// turns them into configured queues, resource policies and backend
// options.
//
// A TOML file:
//
//	backend = "native"
//	log_level = "debug"
//
//	[queue]
//	kind = "state"
//	priority = ["shader", "texture", "material"]
//	capacity = 512
//
//	[resources]
//	update_policy = "on-demand"
//
//	[render]
//	max_lights = 4
//
//	[native]
//	width = 1280
//	height = 720
//	pipeline_cache_limit = 128
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/gogpu/scenestate/backend"
	"github.com/gogpu/scenestate/backend/native"
	"github.com/gogpu/scenestate/queue"
	"github.com/gogpu/scenestate/render"
	"github.com/gogpu/scenestate/resource"
	"github.com/gogpu/scenestate/state"
)

// Queue kinds.
const (
	QueueBasic = "basic"
	QueueDepth = "depth"
	QueueState = "state"
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("config: invalid")

// Config is the file form of the renderer settings. The zero value of a
// field means the default from [Default].
type Config struct {
	// Backend names a registered backend. Empty selects the best one.
	Backend  string `toml:"backend" yaml:"backend"`
	LogLevel string `toml:"log_level" yaml:"log_level"`

	Queue     QueueConfig    `toml:"queue" yaml:"queue"`
	Resources ResourceConfig `toml:"resources" yaml:"resources"`
	Render    RenderConfig   `toml:"render" yaml:"render"`
	Native    NativeConfig   `toml:"native" yaml:"native"`
}

// QueueConfig selects the render queue.
type QueueConfig struct {
	Kind        string   `toml:"kind" yaml:"kind"`
	FrontToBack bool     `toml:"front_to_back" yaml:"front_to_back"`
	Priority    []string `toml:"priority" yaml:"priority"`
	Capacity    int      `toml:"capacity" yaml:"capacity"`
}

// ResourceConfig holds resource defaults.
type ResourceConfig struct {
	UpdatePolicy string `toml:"update_policy" yaml:"update_policy"`
}

// RenderConfig configures the renderer.
type RenderConfig struct {
	MaxLights int `toml:"max_lights" yaml:"max_lights"`
}

// NativeConfig configures the native backend. It is ignored by others.
type NativeConfig struct {
	Width              uint32 `toml:"width" yaml:"width"`
	Height             uint32 `toml:"height" yaml:"height"`
	PipelineCacheLimit int    `toml:"pipeline_cache_limit" yaml:"pipeline_cache_limit"`
	MaxTextureSize     int    `toml:"max_texture_size" yaml:"max_texture_size"`
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		LogLevel: "warn",
		Queue: QueueConfig{
			Kind:     QueueState,
			Capacity: 256,
		},
		Resources: ResourceConfig{UpdatePolicy: "on-demand"},
		Render:    RenderConfig{MaxLights: render.DefaultMaxLights},
		Native: NativeConfig{
			Width:              800,
			Height:             600,
			PipelineCacheLimit: 64,
			MaxTextureSize:     2048,
		},
	}
}

// Load reads path over the defaults and validates the result. The format
// follows the extension: .toml, .yaml or .yml.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	var c *Config
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".toml":
		c, err = DecodeTOML(bytes.NewReader(data))
	case ".yaml", ".yml":
		c, err = DecodeYAML(bytes.NewReader(data))
	default:
		return nil, fmt.Errorf("config: unsupported format %q", ext)
	}
	if err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	return c, nil
}

// DecodeTOML reads TOML over the defaults. Unknown keys are errors.
func DecodeTOML(r io.Reader) (*Config, error) {
	c := Default()
	if err := toml.NewDecoder(r).DisallowUnknownFields().Decode(c); err != nil {
		var strict *toml.StrictMissingError
		if errors.As(err, &strict) {
			return nil, fmt.Errorf("%w: %s", ErrInvalid, strict.String())
		}
		return nil, err
	}
	return c, c.Validate()
}

// DecodeYAML reads YAML over the defaults. Unknown keys are errors.
func DecodeYAML(r io.Reader) (*Config, error) {
	c := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	return c, c.Validate()
}

// Validate reports every invalid setting.
func (c *Config) Validate() error {
	var errs []error
	bad := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...)))
	}

	if c.Backend != "" && !backend.IsRegistered(c.Backend) {
		bad("backend %q is not registered (have %v)", c.Backend, backend.Available())
	}
	if _, err := c.Level(); err != nil {
		bad("log_level: %v", err)
	}
	switch c.Queue.Kind {
	case QueueBasic, QueueDepth, QueueState:
	default:
		bad("queue.kind %q", c.Queue.Kind)
	}
	if _, err := c.Priority(); err != nil {
		bad("queue.priority: %v", err)
	}
	if c.Queue.Capacity < 0 {
		bad("queue.capacity %d is negative", c.Queue.Capacity)
	}
	if _, err := resource.ParseUpdatePolicy(c.Resources.UpdatePolicy); err != nil {
		bad("resources.update_policy: %v", err)
	}
	if c.Render.MaxLights < 0 {
		bad("render.max_lights %d is negative", c.Render.MaxLights)
	}
	if c.Native.PipelineCacheLimit < 0 {
		bad("native.pipeline_cache_limit %d is negative", c.Native.PipelineCacheLimit)
	}
	if c.Native.MaxTextureSize < 0 {
		bad("native.max_texture_size %d is negative", c.Native.MaxTextureSize)
	}
	return errors.Join(errs...)
}

// Level parses the log level. Accepted names are those of slog.Level.
func (c *Config) Level() (slog.Level, error) {
	var l slog.Level
	if c.LogLevel == "" {
		return slog.LevelWarn, nil
	}
	err := l.UnmarshalText([]byte(c.LogLevel))
	return l, err
}

// Priority resolves the sort priority names. An empty list yields
// state.DefaultPriority.
func (c *Config) Priority() ([]state.DynamicType, error) {
	if len(c.Queue.Priority) == 0 {
		return state.DefaultPriority, nil
	}
	out := make([]state.DynamicType, 0, len(c.Queue.Priority))
	for _, name := range c.Queue.Priority {
		t, ok := state.TypeByName(name)
		if !ok {
			return nil, fmt.Errorf("unknown category %q", name)
		}
		out = append(out, t)
	}
	return out, nil
}

// UpdatePolicy returns the default policy for new resources.
func (c *Config) UpdatePolicy() resource.UpdatePolicy {
	p, _ := resource.ParseUpdatePolicy(c.Resources.UpdatePolicy)
	return p
}

// NewQueue builds the configured render queue.
func (c *Config) NewQueue() (queue.RenderQueue, error) {
	var q interface {
		queue.RenderQueue
		Grow(int)
	}
	switch c.Queue.Kind {
	case QueueBasic:
		q = queue.NewBasic()
	case QueueDepth:
		q = queue.NewDepthSorting(c.Queue.FrontToBack)
	case QueueState, "":
		p, err := c.Priority()
		if err != nil {
			return nil, fmt.Errorf("%w: queue.priority: %w", ErrInvalid, err)
		}
		q = queue.NewStateSorting(queue.WithPriority(p...))
	default:
		return nil, fmt.Errorf("%w: queue.kind %q", ErrInvalid, c.Queue.Kind)
	}
	q.Grow(c.Queue.Capacity)
	return q, nil
}

// RenderOptions returns the renderer and driver options.
func (c *Config) RenderOptions() []render.Option {
	return []render.Option{render.WithMaxLights(c.Render.MaxLights)}
}

// NativeOptions returns the options of the native backend.
func (c *Config) NativeOptions() []native.Option {
	return []native.Option{
		native.WithTargetSize(c.Native.Width, c.Native.Height),
		native.WithPipelineCacheLimit(c.Native.PipelineCacheLimit),
		native.WithMaxTextureSize(c.Native.MaxTextureSize),
	}
}

// OpenBackend opens and initializes the configured backend. The native
// backend is built with [Config.NativeOptions].
func (c *Config) OpenBackend() (backend.Backend, error) {
	if c.Backend != backend.BackendNative {
		return backend.Open(c.Backend)
	}
	b := native.New(c.NativeOptions()...)
	if err := b.Init(); err != nil {
		return nil, fmt.Errorf("config: init %s: %w", b.Name(), err)
	}
	return b, nil
}

// Command scenedemo renders a scene through the state sorting pipeline
// and logs per-frame statistics.
//
// Usage:
//
//	scenedemo -config renderer.toml -scene crates.yaml -frames 120 -v
package main

import (
	"flag"
	"fmt"
	"log"
	"log/slog"
	"math"
	"os"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/gogpu/gputypes"

	"github.com/gogpu/scenestate"
	"github.com/gogpu/scenestate/config"
	"github.com/gogpu/scenestate/queue"
	"github.com/gogpu/scenestate/recording"
	"github.com/gogpu/scenestate/render"
	"github.com/gogpu/scenestate/resource"
	"github.com/gogpu/scenestate/scene"
	"github.com/gogpu/scenestate/state"
)

func main() {
	var (
		configPath  = flag.String("config", "", "renderer config (.toml, .yaml)")
		scenePath   = flag.String("scene", "", "scene description (.yaml); a built-in scene is used when empty")
		frames      = flag.Int("frames", 60, "number of frames to render")
		backendName = flag.String("backend", "", "backend name, overrides the config")
		verbose     = flag.Bool("v", false, "log debug output")
	)
	flag.Parse()

	if err := run(*configPath, *scenePath, *backendName, *frames, *verbose); err != nil {
		log.Fatal(err)
	}
}

func run(configPath, scenePath, backendName string, frames int, verbose bool) error {
	cfg := config.Default()
	if configPath != "" {
		var err error
		if cfg, err = config.Load(configPath); err != nil {
			return err
		}
	}
	if backendName != "" {
		cfg.Backend = backendName
		if err := cfg.Validate(); err != nil {
			return err
		}
	}

	level, _ := cfg.Level()
	if verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	scenestate.SetLogger(logger)
	defer scenestate.SetLogger(nil)

	s, err := loadScene(scenePath)
	if err != nil {
		return err
	}

	b, err := cfg.OpenBackend()
	if err != nil {
		return err
	}
	defer b.Close()

	q, err := cfg.NewQueue()
	if err != nil {
		return err
	}
	resources := resource.NewDefaultManager()
	defer resources.Destroy(b.Resources())

	ctx := state.NewContext(
		state.WithPeerProvider(b),
		state.WithLabel("scenedemo"),
		state.WithOSThreadLock(true),
	)
	defer func() {
		if cur, err := ctx.MakeCurrent(); err == nil {
			_ = ctx.Destroy(cur)
		}
	}()

	driver := render.NewDriver(ctx, b, q, resources, cfg.RenderOptions()...)

	// Merged state, and with it the full resource set, is known after
	// the first tree update.
	s.Update()
	if policy := cfg.UpdatePolicy(); policy == resource.Manual {
		s.SetUpdatePolicy(policy)
		for _, r := range s.Resources() {
			resources.Update(r, true)
		}
	}

	aspect := float32(cfg.Native.Width) / float32(max(cfg.Native.Height, 1))
	var total render.FrameStats
	for i := range frames {
		view := orbit(float32(i)/float32(max(frames, 1)), aspect)
		stats, err := driver.RenderFrame(s, view)
		if err != nil {
			logger.Warn("scenedemo: frame failed", "frame", stats.Frame, "err", err)
		}
		logger.Info("scenedemo: frame",
			"frame", stats.Frame,
			"atoms", stats.Atoms,
			"polygons", stats.Polygons,
			"applies", stats.Applies,
			"restores", stats.Restores,
			"realizations", stats.Realizations,
			"resource_actions", stats.ResourceActions,
			"duration", stats.Duration)
		total.Atoms += stats.Atoms
		total.Applies += stats.Applies
		total.Duration += stats.Duration
	}

	fmt.Printf("scenestate %s on %s: %d frames, %d atoms, %d state applies, %v\n",
		scenestate.Version, b.Name(), driver.Frames(), total.Atoms, total.Applies, total.Duration)

	if rec, ok := b.(*recording.Recorder); ok {
		r := rec.FinishRecording()
		fmt.Printf("recorded %d commands: %d applies, %d restores, %d draws\n",
			r.Len(), r.Count(recording.CmdApply), r.Count(recording.CmdRestore), r.Count(recording.CmdDraw))
	}
	return nil
}

func loadScene(path string) (*scene.Scene, error) {
	if path == "" {
		return builtinScene()
	}
	desc, err := scene.Load(path)
	if err != nil {
		return nil, err
	}
	return desc.Build()
}

// orbit places the eye on a circle around the origin; t in [0, 1) is one
// revolution.
func orbit(t, aspect float32) queue.View {
	angle := float64(t) * 2 * math.Pi
	eye := mgl32.Vec3{float32(math.Sin(angle)) * 12, 4, float32(math.Cos(angle)) * 12}
	return queue.View{
		Position:   eye,
		Matrix:     mgl32.LookAtV(eye, mgl32.Vec3{}, mgl32.Vec3{0, 1, 0}),
		Projection: mgl32.Perspective(mgl32.DegToRad(60), aspect, 0.1, 100),
	}
}

const builtinShader = `
struct Uniforms { mvp: mat4x4<f32> }
@group(0) @binding(0) var<uniform> u: Uniforms;

struct VertexOut {
    @builtin(position) position: vec4<f32>,
    @location(0) normal: vec3<f32>,
}

@vertex
fn vs_main(@location(0) position: vec3<f32>, @location(1) normal: vec3<f32>, @location(2) uv: vec2<f32>) -> VertexOut {
    var out: VertexOut;
    out.position = u.mvp * vec4<f32>(position, 1.0);
    out.normal = normal;
    return out;
}

@fragment
fn fs_main(in: VertexOut) -> @location(0) vec4<f32> {
    let l = max(dot(normalize(in.normal), vec3<f32>(0.3, 0.8, 0.5)), 0.1);
    return vec4<f32>(l, l, l, 1.0);
}
`

// builtinScene is a grid of boxes in three materials under one shader,
// with a translucent floor.
func builtinScene() (*scene.Scene, error) {
	s := scene.New(nil)

	shader := state.NewAtom(state.Shader{
		Program:       resource.NewShader("builtin", builtinShader),
		VertexEntry:   "vs_main",
		FragmentEntry: "fs_main",
	})
	depth := state.NewAtom(state.DepthTest{Enabled: true, Compare: gputypes.CompareFunctionLess, Write: true})
	cull := state.NewAtom(state.PolygonStyle{Cull: gputypes.CullModeBack, FrontFace: gputypes.FrontFaceCCW})
	for _, a := range []*state.Atom{shader, depth, cull} {
		if err := s.Root().AddManager(state.NewAtomManager(a)); err != nil {
			return nil, err
		}
	}

	colors := []mgl32.Vec4{{0.8, 0.2, 0.2, 1}, {0.2, 0.8, 0.2, 1}, {0.2, 0.2, 0.8, 1}}
	var groups []*state.Node
	for _, c := range colors {
		g, err := s.AddBranch(nil, state.NewAtomManager(state.NewAtom(state.Material{Diffuse: c, Shininess: 8})))
		if err != nil {
			return nil, err
		}
		groups = append(groups, g)
	}

	box, err := scene.NewBox(mgl32.Vec3{0.5, 0.5, 0.5})
	if err != nil {
		return nil, err
	}
	for x := -3; x <= 3; x++ {
		for z := -3; z <= 3; z++ {
			g := groups[(x+z+6)%len(groups)]
			d, err := s.AddMesh(g, box, mgl32.Translate3D(float32(x)*1.5, 0.5, float32(z)*1.5))
			if err != nil {
				return nil, err
			}
			d.Name = fmt.Sprintf("box %d,%d", x, z)
		}
	}

	floor, err := scene.NewQuad(14, 14)
	if err != nil {
		return nil, err
	}
	blend := state.NewAtomManager(state.NewAtom(state.Blend{Enabled: true, State: gputypes.BlendStateAlpha()}))
	material := state.NewAtomManager(state.NewAtom(state.Material{Diffuse: mgl32.Vec4{0.5, 0.5, 0.5, 0.6}}))
	if _, err := s.AddMesh(nil, floor, mgl32.HomogRotate3DX(-math.Pi/2), blend, material); err != nil {
		return nil, err
	}

	s.AddLight(render.NewLight(state.NewAtom(state.Light{
		Color:       mgl32.Vec4{1, 1, 1, 1},
		Direction:   mgl32.Vec3{-0.3, -1, -0.5},
		Directional: true,
	})))
	s.AddLight(render.NewLight(state.NewAtom(state.Light{
		Color:    mgl32.Vec4{1, 0.8, 0.5, 1},
		Position: mgl32.Vec3{0, 3, 0},
		Range:    6,
	})))
	return s, nil
}

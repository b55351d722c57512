// Command framering renders a small scene through the frame-resource ring
// and prints how often the CPU had to wait for the GPU.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/framering"
	"github.com/gogpu/framering/camera"
	"github.com/gogpu/framering/clock"
	"github.com/gogpu/framering/internal/halgpu"
	"github.com/gogpu/framering/internal/softgpu"
)

func main() {
	var (
		configPath = flag.String("config", "", "TOML configuration file")
		frames     = flag.Int("frames", 300, "frames to render, 0 runs until interrupted")
		ringSize   = flag.Int("ring", 0, "frame resources, overrides the config")
		backend    = flag.String("backend", "soft", "device backend: soft, noop or vulkan")
		latency    = flag.Duration("latency", 8*time.Millisecond, "simulated GPU latency per frame (soft backend)")
		fps        = flag.Int("fps", 60, "frame rate limit, 0 disables pacing")
		wireframe  = flag.Bool("wireframe", false, "draw opaque items as wireframe")
		debug      = flag.Bool("debug", false, "enable debug logging")
	)
	flag.Parse()

	level := slog.LevelInfo
	if *debug {
		level = slog.LevelDebug
	}
	framering.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	cfg := framering.DefaultConfig()
	if *configPath != "" {
		var err error
		if cfg, err = framering.LoadConfig(*configPath); err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
	}
	if *ringSize > 0 {
		cfg.RingSize = *ringSize
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, cfg, *backend, *latency, *frames, *fps, *wireframe); err != nil {
		log.Fatalf("framering: %v", err)
	}
}

type device interface {
	framering.Device
	Close()
}

func openDevice(name string, cfg framering.Config, latency time.Duration) (device, error) {
	w, h := uint32(cfg.Viewport.Width), uint32(cfg.Viewport.Height)
	switch name {
	case "soft":
		return softgpu.New(softgpu.WithLatency(latency)), nil
	case "noop":
		return halgpu.OpenNoop(halgpu.WithSurfaceSize(w, h))
	case "vulkan":
		return halgpu.Open(gputypes.BackendVulkan, halgpu.WithSurfaceSize(w, h))
	default:
		return nil, fmt.Errorf("unknown backend %q", name)
	}
}

func run(ctx context.Context, cfg framering.Config, backend string, latency time.Duration, frames, fps int, wireframe bool) error {
	dev, err := openDevice(backend, cfg, latency)
	if err != nil {
		return err
	}
	defer dev.Close()

	scene, err := buildScene(dev)
	if err != nil {
		return err
	}
	drv, err := framering.NewDriver(dev, scene, framering.WithConfig(cfg))
	if err != nil {
		return err
	}
	defer func() {
		if cerr := drv.Close(); cerr != nil {
			framering.Logger().Error("close driver", "err", cerr)
		}
	}()

	orbit := camera.NewOrbit()
	timer := clock.NewTimer()
	limiter := clock.NewLimiter(fps)
	defer limiter.Stop()

	// Drag the camera around the scene at a constant rate.
	orbit.MouseDown(0, 0)
	x := 0

	start := time.Now()
	for n := 0; frames == 0 || n < frames; n++ {
		if err := limiter.Wait(ctx); err != nil {
			if errors.Is(err, context.Canceled) {
				break
			}
			return err
		}
		timer.Tick()
		x += 2
		orbit.MouseMove(camera.ButtonLeft, x, 0)

		in := framering.FrameInput{
			Camera:    orbit.State(),
			Timing:    timer.Timing(),
			Wireframe: wireframe,
		}
		if err := drv.Frame(in); err != nil {
			return err
		}
	}

	elapsed := time.Since(start)
	st := drv.Stats()
	fmt.Printf("%s in %v (%.1f fps)\n", st, elapsed.Round(time.Millisecond), float64(st.Frames)/elapsed.Seconds())
	return nil
}

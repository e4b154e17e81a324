package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/npillmayer/schuko/schukonf/testconfig"
	"github.com/npillmayer/schuko/tracing"
	"github.com/npillmayer/schuko/tracing/gologadapter"
	"github.com/npillmayer/schuko/tracing/trace2go"
	"github.com/pterm/pterm"

	"github.com/ivlev/kinema/internal/analyzer"
	"github.com/ivlev/kinema/internal/config"
	"github.com/ivlev/kinema/internal/director"
	"github.com/ivlev/kinema/internal/document"
	"github.com/ivlev/kinema/internal/engine"
	"github.com/ivlev/kinema/internal/system"
	"github.com/ivlev/kinema/internal/video"
)

// tracer traces with key 'kinema.cli'
func tracer() tracing.Trace {
	return tracing.Select("kinema.cli")
}

// traceKeys are the tracers the -trace level applies to.
var traceKeys = []string{
	"kinema.cli", "kinema.analyzer", "kinema.clip", "kinema.director", "kinema.document",
	"kinema.effects", "kinema.engine", "kinema.renderer", "kinema.source", "kinema.timemap",
	"kinema.variable", "kinema.video",
}

func main() {
	initDisplay()

	cfg, err := parseFlags(os.Args[1:])
	if err != nil {
		pterm.Error.Println(err)
		os.Exit(2)
	}

	// set up logging
	tracing.RegisterTraceAdapter("go", gologadapter.GetAdapter(), false)
	conf := testconfig.Conf{"tracing.adapter": "go"}
	for _, key := range traceKeys {
		conf["trace."+key] = cfg.TraceLevel
	}
	if err := trace2go.ConfigureRoot(conf, "trace", trace2go.ReplaceTracers(true)); err != nil {
		fmt.Printf("error configuring tracing")
		os.Exit(1)
	}
	tracing.SetTraceSelector(trace2go.Selector())
	if err := setTraceLevel(cfg.TraceLevel); err != nil {
		pterm.Error.Println(err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := run(ctx, cfg); err != nil {
		pterm.Error.Printf("[-] %v\n", err)
		os.Exit(1)
	}
}

// We use pterm for moderately fancy output.
func initDisplay() {
	pterm.Info.Prefix = pterm.Prefix{
		Text:  " *  ",
		Style: pterm.NewStyle(pterm.BgCyan, pterm.FgBlack),
	}
	pterm.Error.Prefix = pterm.Prefix{
		Text:  " Error",
		Style: pterm.NewStyle(pterm.BgRed, pterm.FgBlack),
	}
}

func setTraceLevel(name string) error {
	level := tracing.LevelInfo
	switch name {
	case "Debug":
		level = tracing.LevelDebug
	case "Info":
	case "Error":
		level = tracing.LevelError
	default:
		return fmt.Errorf("invalid trace level: %s", name)
	}
	for _, key := range traceKeys {
		tracing.Select(key).SetTraceLevel(level)
	}
	if level == tracing.LevelDebug {
		pterm.EnableDebugMessages()
	}
	return nil
}

func run(ctx context.Context, cfg *config.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	system.InitResourceLimits()

	p, err := loadProject(cfg)
	if err != nil {
		return err
	}
	if cfg.TotalDuration > 0 && cfg.ProjectPath != "" {
		p.Target = cfg.TotalDuration
	}
	p.Workers = cfg.Workers

	if cfg.SavePath != "" {
		if err := document.SaveFile(cfg.SavePath, p); err != nil {
			return err
		}
		pterm.Info.Printf("[+++] Project saved: %s\n", cfg.SavePath)
	}

	stills := false
	if cfg.FrameOut != "" {
		stills = true
		img, err := p.Frame(cfg.FrameTime)
		if err != nil {
			return err
		}
		if err := video.WritePNG(cfg.FrameOut, img, nil); err != nil {
			return err
		}
		pterm.Info.Printf("[+++] Frame at %.2fs: %s\n", cfg.FrameTime, cfg.FrameOut)
	}
	if cfg.WallOut != "" {
		stills = true
		wall, err := p.FrameWall(nil, engine.WallOptions{Width: cfg.WallWidth, Cols: cfg.WallCols, Rows: cfg.WallRows})
		if err != nil {
			return err
		}
		if err := video.WritePNG(cfg.WallOut, wall, nil); err != nil {
			return err
		}
		pterm.Info.Printf("[+++] Frame wall: %s\n", cfg.WallOut)
	}
	if stills && cfg.OutputVideo == "" && cfg.PNGDir == "" {
		return nil
	}
	return render(ctx, cfg, p)
}

// loadProject reads the project document or builds a slideshow. Without
// either, the most recent PDF in input/pdf is shown.
func loadProject(cfg *config.Config) (*engine.Project, error) {
	if cfg.ProjectPath != "" {
		p, err := document.LoadFile(cfg.ProjectPath)
		if err != nil {
			return nil, err
		}
		pterm.Info.Printf("[*] Project: %s (%dx%d @ %.2f fps)\n", cfg.ProjectPath, p.Width, p.Height, p.FPS)
		return p, nil
	}

	input := cfg.InputPath
	if input == "" {
		latest, err := system.FindLatest(filepath.Join("input", "pdf"), system.PDFExtensions)
		if err != nil {
			return nil, fmt.Errorf("%v. Pass -project or -input, or put a PDF in input/pdf/", err)
		}
		input = latest
		pterm.Info.Printf("[*] Selected file: %s\n", input)
	}
	cfg.InputPath = input

	pages, err := director.Pages(input, cfg.DPI)
	if err != nil {
		return nil, err
	}
	d := director.NewDirector(cfg.Width, cfg.Height)
	d.FPS = cfg.FPS
	d.TotalDuration = cfg.TotalDuration
	d.PageDuration = cfg.PageDuration
	d.FadeDuration = cfg.FadeDuration
	if cfg.Ease != "" {
		d.Ease = cfg.Ease
	}
	if cfg.Seed != 0 {
		d.Seed(cfg.Seed)
	}
	if cfg.Zoom {
		if d.Detector, err = analyzer.NewDetector(cfg.Detector); err != nil {
			return nil, err
		}
	}
	p, err := d.Build(pages)
	if err != nil {
		return nil, err
	}
	pterm.Info.Printf("[*] Slideshow: %d pages from %s\n", len(pages), input)
	return p, nil
}

func render(ctx context.Context, cfg *config.Config, p *engine.Project) error {
	var sink video.Sink
	var target string
	if cfg.PNGDir != "" {
		seq, err := video.NewPNGSequence(cfg.PNGDir)
		if err != nil {
			return err
		}
		sink, target = seq, cfg.PNGDir
	} else {
		target = cfg.OutputVideo
		if target == "" && cfg.ProjectPath != "" {
			target = p.Filename
		}
		if target == "" {
			target = outputName(cfg)
		}
		if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
			return err
		}
		encoder := cfg.VideoEncoder
		if encoder == "" {
			encoder = system.GetBestH264Encoder()
			if encoder != "libx264" {
				pterm.Info.Printf("[*] Hardware acceleration: %s\n", encoder)
			}
		}
		w, err := video.NewWriter(ctx, target, p.Width, p.Height, p.FPS, video.WriterOptions{
			Encoder: encoder,
			Quality: cfg.Quality,
		})
		if err != nil {
			return err
		}
		sink = w
	}

	stats, err := p.Write(ctx, sink)
	if closeErr := sink.Close(); err == nil {
		err = closeErr
	} else if closeErr != nil {
		tracer().Errorf("closing %s: %v", target, closeErr)
	}
	if err != nil {
		return err
	}
	if cfg.ShowStats {
		if err := pterm.DefaultTable.WithHasHeader().WithData(stats.Report()).Render(); err != nil {
			tracer().Errorf("stats: %v", err)
		}
	}
	pterm.Info.Printf("[+++] Done! Result: %s\n", target)
	return nil
}

// outputName derives output/<input>_<timestamp>.mp4.
func outputName(cfg *config.Config) string {
	name := cfg.InputPath
	if name == "" {
		name = cfg.ProjectPath
	}
	if name == "" {
		name = engine.DefaultFilename
	}
	base := filepath.Base(name)
	clean := strings.ReplaceAll(strings.TrimSuffix(base, filepath.Ext(base)), " ", "_")
	timestamp := time.Now().Format("2006-01-02_15-04-05")
	return filepath.Join("output", fmt.Sprintf("%s_%s.mp4", clean, timestamp))
}

// parseFlags parses args over the defaults, or over the -config file when
// one is named, so flags given on the command line win over the file.
func parseFlags(args []string) (*config.Config, error) {
	cfg := config.Default()
	fs, path := newFlagSet(cfg)
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if *path == "" {
		return cfg, nil
	}
	fromFile, err := config.LoadFile(*path)
	if err != nil {
		return nil, err
	}
	fs, _ = newFlagSet(fromFile)
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	return fromFile, nil
}

func newFlagSet(cfg *config.Config) (*flag.FlagSet, *string) {
	fs := flag.NewFlagSet("kinema", flag.ContinueOnError)
	path := fs.String("config", "", "YAML file with default settings")
	fs.StringVar(&cfg.ProjectPath, "project", cfg.ProjectPath, "Project document to render")
	fs.StringVar(&cfg.InputPath, "input", cfg.InputPath, "PDF or image directory for a slideshow (default: newest file in input/pdf/)")
	fs.StringVar(&cfg.OutputVideo, "output", cfg.OutputVideo, "Output video (default: generated in output/)")
	fs.StringVar(&cfg.PNGDir, "png-dir", cfg.PNGDir, "Write a PNG sequence into this directory instead of a video")
	fs.StringVar(&cfg.SavePath, "save", cfg.SavePath, "Save the project document to this file")
	fs.IntVar(&cfg.Width, "width", cfg.Width, "Width")
	fs.IntVar(&cfg.Height, "height", cfg.Height, "Height")
	fs.Float64Var(&cfg.FPS, "fps", cfg.FPS, "FPS")
	fs.Float64Var(&cfg.TotalDuration, "duration", cfg.TotalDuration, "Total duration in seconds (0: derived)")
	fs.IntVar(&cfg.Workers, "workers", cfg.Workers, "Render workers (0: one per logical core)")
	fs.Float64Var(&cfg.FrameTime, "frame", cfg.FrameTime, "Time of the frame written by -frame-out")
	fs.StringVar(&cfg.FrameOut, "frame-out", cfg.FrameOut, "Write the frame at -frame to this PNG")
	fs.StringVar(&cfg.WallOut, "wall", cfg.WallOut, "Write a contact sheet to this PNG")
	fs.IntVar(&cfg.WallCols, "wall-cols", cfg.WallCols, "Contact sheet columns")
	fs.IntVar(&cfg.WallRows, "wall-rows", cfg.WallRows, "Contact sheet rows")
	fs.IntVar(&cfg.WallWidth, "wall-width", cfg.WallWidth, "Contact sheet width")
	fs.Float64Var(&cfg.PageDuration, "page-duration", cfg.PageDuration, "Seconds per page when -duration is 0")
	fs.Float64Var(&cfg.FadeDuration, "fade", cfg.FadeDuration, "Fade between pages (seconds)")
	fs.IntVar(&cfg.DPI, "dpi", cfg.DPI, "DPI for PDF pages")
	fs.BoolVar(&cfg.Zoom, "zoom", cfg.Zoom, "Zoom onto detected regions of each page")
	fs.StringVar(&cfg.Detector, "detector", cfg.Detector, "Region detector for -zoom")
	fs.StringVar(&cfg.Ease, "ease", cfg.Ease, "Easing curve for zoom moves")
	fs.Int64Var(&cfg.Seed, "seed", cfg.Seed, "Seed for page duration jitter (0: random)")
	fs.StringVar(&cfg.VideoEncoder, "encoder", cfg.VideoEncoder, "ffmpeg encoder (default: best H.264 available)")
	fs.IntVar(&cfg.Quality, "quality", cfg.Quality, "Video quality (0: auto, x264: CRF 1-51, VideoToolbox: bitrate = Q*100kbit/s)")
	fs.BoolVar(&cfg.ShowStats, "stats", cfg.ShowStats, "Print a performance report")
	fs.StringVar(&cfg.TraceLevel, "trace", cfg.TraceLevel, "Trace level [Debug|Info|Error]")
	return fs, path
}

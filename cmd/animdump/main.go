// Command animdump inspects animated WebP and APNG files and exports their
// composited frames.
//
// Usage:
//
//	animdump [global options] info <file>     Display header and frame table
//	animdump [global options] plan <file>     Display the blend-from chain
//	animdump [global options] frames [options] <file>
//	                                          Write every resolved frame as PNG
//
// Use "-" as file to read from stdin.
package main

import (
	"errors"
	"flag"
	"fmt"
	"image"
	"image/png"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/nfnt/resize"

	"github.com/deepteams/animimage"
	"github.com/deepteams/animimage/animation"
	"github.com/deepteams/animimage/pixbuf"
)

var errUsage = errors.New("usage")

func main() {
	err := run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	if errors.Is(err, errUsage) || errors.Is(err, flag.ErrHelp) {
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "animdump: %v\n", err)
		os.Exit(1)
	}
}

// env carries what every subcommand needs.
type env struct {
	cfg    *Config
	stdin  io.Reader
	stdout io.Writer
	log    *slog.Logger
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("animdump", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "YAML config file")
	verbose := fs.Bool("v", false, "debug logging")
	verifyCRC := fs.Bool("verify-crc", false, "verify PNG chunk CRCs")
	strict := fs.Bool("strict", false, "reject containers that are usually tolerated")
	fs.Usage = func() { printUsage(stderr) }

	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg := defaultConfig()
	if *configPath != "" {
		loaded, err := Load(*configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "v":
			if *verbose {
				cfg.LogLevel = "debug"
			}
		case "verify-crc":
			cfg.VerifyCRC = *verifyCRC
		case "strict":
			cfg.Strict = *strict
		}
	})
	level, err := parseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}

	e := &env{
		cfg:    cfg,
		stdin:  stdin,
		stdout: stdout,
		log:    slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level})),
	}

	if fs.NArg() < 1 {
		printUsage(stderr)
		return errUsage
	}
	rest := fs.Args()[1:]
	switch fs.Arg(0) {
	case "info":
		return e.runInfo(rest)
	case "plan":
		return e.runPlan(rest)
	case "frames":
		return e.runFrames(rest, stderr)
	case "help":
		printUsage(stderr)
		return nil
	default:
		fmt.Fprintf(stderr, "animdump: unknown command %q\n\n", fs.Arg(0))
		printUsage(stderr)
		return errUsage
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintf(w, `Usage:
  animdump [global options] info <file>              Display header and frame table
  animdump [global options] plan <file>              Display the blend-from chain
  animdump [global options] frames [options] <file>  Write resolved frames as PNG

Global options:
  -config file.yaml   load defaults from a YAML file
  -v                  debug logging
  -verify-crc         verify PNG chunk CRCs
  -strict             reject containers that are usually tolerated

Use "-" as file to read from stdin.
Run "animdump frames -h" for export options.
`)
}

// openInput returns an io.ReadCloser for the given path.
// If path is "-", stdin is returned.
func (e *env) openInput(path string) (io.ReadCloser, error) {
	if path == "-" {
		return io.NopCloser(e.stdin), nil
	}
	return os.Open(path)
}

func (e *env) options() *animimage.Options {
	format, _ := pixbuf.ParseFormat(e.cfg.Format)
	return &animimage.Options{
		VerifyChecksums: e.cfg.VerifyCRC,
		Strict:          e.cfg.Strict,
		PixelFormat:     format,
		MaxCanvasArea:   e.cfg.MaxCanvasArea,
		MaxFrames:       e.cfg.MaxFrames,
		Logger:          e.log,
	}
}

func (e *env) open(path string) (*animimage.Decoder, error) {
	r, err := e.openInput(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	d, err := animimage.OpenReader(r, e.options())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return d, nil
}

// singleFile parses a subcommand's flags and returns its one file argument.
func singleFile(fs *flag.FlagSet, args []string) (string, error) {
	if err := fs.Parse(args); err != nil {
		return "", err
	}
	if fs.NArg() != 1 {
		return "", fmt.Errorf("%s: want exactly one input file: %w", fs.Name(), errUsage)
	}
	return fs.Arg(0), nil
}

var heading = color.New(color.Bold, color.FgCyan)

// --- info ---

func (e *env) runInfo(args []string) error {
	fs := flag.NewFlagSet("info", flag.ContinueOnError)
	path, err := singleFile(fs, args)
	if err != nil {
		return err
	}
	d, err := e.open(path)
	if err != nil {
		return err
	}

	h := d.Header()
	w := e.stdout
	loop := "infinite"
	if h.LoopCount > 0 {
		loop = fmt.Sprintf("%d", h.LoopCount)
	}
	heading.Fprintf(w, "%s\n", filepath.Base(path))
	fmt.Fprintf(w, "Format:     %s\n", h.Format)
	fmt.Fprintf(w, "Canvas:     %d x %d\n", h.CanvasWidth, h.CanvasHeight)
	fmt.Fprintf(w, "Frames:     %d\n", d.FrameCount())
	fmt.Fprintf(w, "Loop count: %s\n", loop)
	fmt.Fprintf(w, "Background: 0x%08x\n", h.BackgroundColor)
	fmt.Fprintf(w, "Alpha:      %v\n", h.HasAlpha)
	fmt.Fprintf(w, "Blending:   %v\n", d.NeedsBlending())
	fmt.Fprintln(w)

	heading.Fprintf(w, "%4s  %-19s  %8s  %-10s  %-5s  %-5s  %4s\n",
		"#", "rect", "duration", "dispose", "blend", "alpha", "from")
	for _, f := range d.Frames() {
		rect := fmt.Sprintf("%dx%d+%d+%d", f.Width, f.Height, f.OffsetX, f.OffsetY)
		fmt.Fprintf(w, "%4d  %-19s  %8s  %-10s  %-5s  %-5v  %4d\n",
			f.Index, rect, f.Duration, f.Dispose, f.Blend, f.HasAlpha, f.BlendFrom)
	}
	return nil
}

// --- plan ---

func (e *env) runPlan(args []string) error {
	fs := flag.NewFlagSet("plan", flag.ContinueOnError)
	path, err := singleFile(fs, args)
	if err != nil {
		return err
	}
	d, err := e.open(path)
	if err != nil {
		return err
	}

	w := e.stdout
	heading.Fprintf(w, "needs blending: %v\n", d.NeedsBlending())
	for _, chain := range chains(d.Frames()) {
		parts := make([]string, len(chain))
		for i, idx := range chain {
			parts[i] = fmt.Sprintf("%d", idx)
		}
		fmt.Fprintf(w, "%s\n", strings.Join(parts, " -> "))
	}
	return nil
}

// chains groups frame indexes by BlendFrom, in stream order.
func chains(frames []animation.Descriptor) [][]int {
	var out [][]int
	pos := map[int]int{}
	for _, f := range frames {
		i, ok := pos[f.BlendFrom]
		if !ok {
			i = len(out)
			pos[f.BlendFrom] = i
			out = append(out, nil)
		}
		out[i] = append(out[i], f.Index)
	}
	return out
}

// --- frames ---

func (e *env) runFrames(args []string, stderr io.Writer) error {
	fs := flag.NewFlagSet("frames", flag.ContinueOnError)
	fs.SetOutput(stderr)
	outDir := fs.String("o", e.cfg.OutputDir, "output directory")
	thumb := fs.Int("thumb", e.cfg.Thumb, "scale frames to fit N x N pixels (0 = full size)")
	format := fs.String("format", e.cfg.Format, "buffer pixel format: bgra or rgba")
	path, err := singleFile(fs, args)
	if err != nil {
		return err
	}
	if _, ok := pixbuf.ParseFormat(*format); !ok {
		return fmt.Errorf("frames: format %q: want bgra or rgba", *format)
	}
	if *thumb < 0 {
		return fmt.Errorf("frames: thumb must be >= 0, got %d", *thumb)
	}
	e.cfg.Format = *format

	d, err := e.open(path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		return err
	}

	n := d.FrameCount()
	partial := 0
	for i := 0; i < n; i++ {
		f, err := d.Frame(i)
		if err != nil {
			return err
		}
		if f.Partial {
			partial++
		}
		var img image.Image = f.Buffer.ToRGBA()
		if *thumb > 0 {
			img = resize.Thumbnail(uint(*thumb), uint(*thumb), img, resize.Bilinear)
		}
		name := filepath.Join(*outDir, fmt.Sprintf("frame_%03d.png", i))
		if err := writePNG(name, img); err != nil {
			return err
		}
	}

	fmt.Fprintf(e.stdout, "wrote %d frames to %s (%s)\n", n, *outDir, *format)
	if partial > 0 {
		color.New(color.FgYellow).Fprintf(e.stdout, "%d frames decoded from truncated data\n", partial)
	}
	return nil
}

func writePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

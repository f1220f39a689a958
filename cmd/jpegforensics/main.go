package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"

	"github.com/YannKr/jpegforensics/internal/codec"
	"github.com/YannKr/jpegforensics/internal/forensics"
	"github.com/YannKr/jpegforensics/internal/mapfile"
	"github.com/YannKr/jpegforensics/internal/render"
)

var (
	infoColor    = color.New(color.FgBlue).SprintFunc()
	successColor = color.New(color.FgGreen).SprintFunc()
	warningColor = color.New(color.FgYellow).SprintFunc()
	errorColor   = color.New(color.FgRed).SprintFunc()
)

func printInfo(format string, args ...interface{}) {
	fmt.Printf("%s %s\n", infoColor("[*]"), fmt.Sprintf(format, args...))
}

func printSuccess(format string, args ...interface{}) {
	fmt.Printf("%s %s\n", successColor("[+]"), fmt.Sprintf(format, args...))
}

func printWarning(format string, args ...interface{}) {
	fmt.Printf("%s %s\n", warningColor("[!]"), fmt.Sprintf(format, args...))
}

func printError(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "%s %s\n", errorColor("[-]"), fmt.Sprintf(format, args...))
}

func algorithmNames() string {
	names := make([]string, len(forensics.Algorithms))
	for i, a := range forensics.Algorithms {
		names[i] = string(a)
	}
	return strings.Join(names, ", ")
}

func main() {
	var (
		filePath  = flag.String("file", "", "JPEG file to analyse")
		algo      = flag.String("algo", "all", "analysis to run: "+algorithmNames())
		quality   = flag.Int("quality", 0, "re-encode quality for ghost (required) and ela (default 90)")
		blockSize = flag.Int("block", 0, "ghost block size or noise window, 0 for the default")
		start     = flag.Int("start", forensics.DefaultSweepStart, "first ghost sweep quality")
		steps     = flag.Int("steps", forensics.DefaultSweepSteps, "number of ghost sweep layers")
		step      = flag.Int("step", forensics.DefaultSweepStep, "quality increment between sweep layers")
		outDir    = flag.String("outdir", "jpegforensics_output", "directory for rendered maps and artifacts")
		codecName = flag.String("codec", "go", "JPEG codec for re-encoding: go or magick")
		magick    = flag.String("magick", "magick", "ImageMagick binary for -codec magick")
		width     = flag.Int("width", 0, "rendered map width in pixels, 0 keeps map resolution")
		raw       = flag.Bool("raw", false, "also write raw map values as "+mapfile.Ext)
		logLevel  = flag.String("log-level", "warn", "log level: debug, info, warn or error")
	)
	flag.Parse()

	level := slog.LevelWarn
	switch *logLevel {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "error":
		level = slog.LevelError
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	if *filePath == "" {
		fmt.Println("Usage:")
		fmt.Println("  jpegforensics -file <image.jpg> [-algo all]")
		flag.PrintDefaults()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	os.Exit(run(ctx, options{
		file:      *filePath,
		algorithm: *algo,
		quality:   *quality,
		blockSize: *blockSize,
		sweep:     forensics.SweepOptions{Start: *start, Steps: *steps, Step: *step, BlockSize: *blockSize},
		outDir:    *outDir,
		codec:     *codecName,
		magick:    *magick,
		width:     *width,
		raw:       *raw,
	}))
}

type options struct {
	file      string
	algorithm string
	quality   int
	blockSize int
	sweep     forensics.SweepOptions
	outDir    string
	codec     string
	magick    string
	width     int
	raw       bool
}

// run returns the process exit code. An input that is not a readable JPEG
// is reported and skipped, not treated as a failure.
func run(ctx context.Context, opts options) int {
	img, err := forensics.LoadImage(opts.file)
	if err != nil {
		var invalid *forensics.InvalidInputError
		if errors.As(err, &invalid) {
			printWarning("Skipping %s: %s", opts.file, invalid.Reason)
			return 0
		}
		printError("Failed to load %s: %v", opts.file, err)
		return 1
	}
	printInfo("Loaded %s (%dx%d, %d channel(s))", opts.file, img.Width, img.Height, img.Channels)

	c, err := codec.New(opts.codec, opts.magick)
	if err != nil {
		printError("%v", err)
		return 2
	}
	if err := os.MkdirAll(opts.outDir, 0755); err != nil {
		printError("Failed to create output directory: %v", err)
		return 1
	}

	req := forensics.Request{
		Image:     img,
		Algorithm: forensics.Algorithm(opts.algorithm),
		Quality:   opts.quality,
		BlockSize: opts.blockSize,
		Sweep:     opts.sweep,
		OutDir:    opts.outDir,
		Progress: func(p forensics.Progress) {
			printInfo("[%d/%d] %s", p.Done, p.Total, p.Stage)
		},
	}
	if err := req.Validate(); err != nil {
		printError("%v", err)
		return 2
	}

	analyzer := forensics.NewAnalyzer(c, "")
	began := time.Now()
	rep, err := analyzer.Run(ctx, req)
	if err != nil {
		printError("Analysis failed: %v", err)
		return 1
	}

	stem := img.Stem()
	for _, m := range rep.Maps {
		heat := render.Heatmap(m.Data, opts.width)
		if rep.ELA != nil && m.Label == rep.ELA.Map().Label {
			heat = render.Scale(render.Amplify(rep.ELA.Diff).ToImage(), opts.width)
		}
		path := heatmapPath(opts.outDir, stem, m.Label)
		if err := render.WritePNG(path, heat); err != nil {
			printError("Failed to write %s: %v", path, err)
			return 1
		}
		st := m.Stats()
		rows, cols := m.Data.Dims()
		printSuccess("%-14s %4dx%-4d min %-10.4g max %-10.4g mean %-10.4g std %-10.4g -> %s",
			m.Label, cols, rows, st.Min, st.Max, st.Mean, st.StdDev, path)

		if opts.raw {
			rawPath := filepath.Join(opts.outDir, fmt.Sprintf("%s_%s%s", stem, m.Label, mapfile.Ext))
			if err := mapfile.WriteFile(rawPath, m.Data); err != nil {
				printError("Failed to write %s: %v", rawPath, err)
				return 1
			}
		}
	}
	if rep.ELA != nil {
		printSuccess("ELA difference image: %s", rep.ELA.ArtifactPath)
	}
	printInfo("%d map(s) in %s. Suspicion maps are exploratory; inspect them, they are not verdicts.",
		len(rep.Maps), time.Since(began).Round(time.Millisecond))
	return 0
}

// heatmapPath names the rendered form of a map. The _map suffix keeps it
// apart from the ELA difference artifact, which shares the label.
func heatmapPath(outDir, stem, label string) string {
	return filepath.Join(outDir, fmt.Sprintf("%s_%s_map.png", stem, label))
}

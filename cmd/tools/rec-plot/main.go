// Command rec-plot renders channel traces from a sealed recording to an
// HTML chart. Expression channels plot their scalar value; bone channels
// plot the W component of their rotation as a cheap stability trace.
//
//	rec-plot -recording recordings/<id> -channels eyeBlink_L,jawOpen -out traces.html
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"sort"
	"strings"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/vrmcast/vrmcast/internal/mocap"
	"github.com/vrmcast/vrmcast/internal/mocap/recorder"
)

var (
	recordingPath = flag.String("recording", "", "Path to recording directory (required)")
	channels      = flag.String("channels", "", "Comma-separated channel names (default: all expressions)")
	output        = flag.String("out", "traces.html", "Output HTML file")
)

func main() {
	flag.Parse()
	if *recordingPath == "" {
		flag.Usage()
		os.Exit(1)
	}

	rep, err := recorder.NewReplayer(*recordingPath)
	if err != nil {
		log.Fatalf("failed to open recording: %v", err)
	}

	var frames []mocap.Frame
	for {
		frame, ok := rep.ReadFrame()
		if !ok {
			break
		}
		frames = append(frames, frame)
	}
	if len(frames) == 0 {
		log.Fatal("recording contains no frames")
	}

	names := selectChannels(frames, *channels)
	if len(names) == 0 {
		log.Fatal("no matching channels in recording")
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			PageTitle: "Recording Traces",
			Width:     "1200px",
			Height:    "600px",
		}),
		charts.WithTitleOpts(opts.Title{
			Title:    "Channel traces",
			Subtitle: fmt.Sprintf("recording=%s frames=%d duration=%s", rep.Header().RecordingID, len(frames), rep.Duration()),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "t (ms)"}),
	)

	xAxis := make([]string, len(frames))
	for i, f := range frames {
		xAxis[i] = fmt.Sprintf("%.0f", float64(f.TimestampNanos)/1e6)
	}
	line.SetXAxis(xAxis)

	for _, name := range names {
		data := make([]opts.LineData, len(frames))
		for i, f := range frames {
			data[i] = opts.LineData{Value: channelValue(f, name)}
		}
		line.AddSeries(name, data)
	}

	f, err := os.Create(*output)
	if err != nil {
		log.Fatalf("failed to create output file: %v", err)
	}
	defer f.Close()
	if err := line.Render(io.Writer(f)); err != nil {
		log.Fatalf("failed to render chart: %v", err)
	}
	fmt.Printf("wrote %s (%d channels, %d frames)\n", *output, len(names), len(frames))
}

// selectChannels returns the requested channel names, or every expression
// channel present in the recording when none were requested.
func selectChannels(frames []mocap.Frame, requested string) []string {
	if requested != "" {
		return strings.Split(requested, ",")
	}
	seen := make(map[string]bool)
	for _, f := range frames {
		for name, ch := range f.Channels {
			if ch.Kind == mocap.KindExpression {
				seen[name] = true
			}
		}
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func channelValue(f mocap.Frame, name string) float64 {
	ch, ok := f.Channels[name]
	if !ok {
		return 0
	}
	if ch.Kind == mocap.KindBone {
		return ch.Rotation.W
	}
	return ch.Value
}

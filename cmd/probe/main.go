package main

import (
	"fmt"
	"log"
	"os"
	"text/tabwriter"

	"github.com/spf13/pflag"

	"github.com/Azunyan1111/go-frame-extractor/internal"
)

func main() {
	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "probe - List the elementary streams of a media file\n\n")
		fmt.Fprintf(os.Stderr, "Usage:\n")
		fmt.Fprintf(os.Stderr, "  %s <input-media-path>\n", os.Args[0])
	}
	pflag.Parse()

	args := pflag.Args()
	if len(args) < 1 {
		pflag.Usage()
		os.Exit(1)
	}

	if err := run(args[0]); err != nil {
		log.Fatal(err)
	}
}

func run(path string) error {
	src, err := internal.OpenSource(path)
	if err != nil {
		return fmt.Errorf("could not open %s: %w", path, err)
	}
	defer src.Close()

	streams := src.Streams()
	if len(streams) == 0 {
		fmt.Fprintf(os.Stderr, "%s does not contain any stream\n", path)
		return nil
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "INDEX\tKIND\tCODEC\tSIZE\tTIME BASE")
	for _, s := range streams {
		size := "-"
		if s.Width > 0 && s.Height > 0 {
			size = fmt.Sprintf("%dx%d", s.Width, s.Height)
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", s.Index, s.Kind, s.Codec, size, s.TimeBase)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if stream, ok := internal.SelectVideoStream(streams, internal.StreamPolicyFirst); ok {
		fmt.Fprintf(os.Stderr, "extract would decode stream %d (%s)\n", stream.Index, stream.Codec)
	} else {
		fmt.Fprintf(os.Stderr, "%s does not contain a video stream\n", path)
	}
	return nil
}

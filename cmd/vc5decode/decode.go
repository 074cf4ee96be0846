package main

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rcarmo/go-vc5/internal/codec"
	"github.com/rcarmo/go-vc5/internal/codec/vc5"
	"github.com/rcarmo/go-vc5/internal/logging"
)

type decodeOptions struct {
	output   string
	bits     int
	workers  int
	codebook string
}

func newDecodeCmd() *cobra.Command {
	var opts decodeOptions

	cmd := &cobra.Command{
		Use:   "decode <payload>",
		Short: "Decode a payload to a 16-bit PNG or PGM image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDecode(cmd.OutOrStdout(), args[0], opts)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.output, "output", "o", "", "output file (.png or .pgm)")
	f.IntVar(&opts.bits, "bits", 0, "destination bit depth (default: the payload's)")
	f.IntVar(&opts.workers, "workers", vc5.MaxChannels, "channels decoded in parallel")
	f.StringVar(&opts.codebook, "codebook", "", "YAML entropy codebook replacing the built-in table")
	_ = cmd.MarkFlagRequired("output")

	return cmd
}

func runDecode(stdout io.Writer, path string, opts decodeOptions) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	c, err := codec.Get(vc5.Name)
	if err != nil {
		return err
	}
	info, err := c.Probe(data)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	if opts.bits != 0 {
		info.BitDepth = opts.bits
	}

	img, err := codec.NewRawImage(info.Width, info.Height, info.BitDepth)
	if err != nil {
		return err
	}
	dec, err := c.NewDecompressor(data, img, codec.Options{
		Workers:  opts.workers,
		Codebook: opts.codebook,
		Logger:   logging.Default(),
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(0, 0); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}

	if err := writeImage(opts.output, img); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "%s: %dx%d, %d bits -> %s\n", path, img.Width(), img.Height(), img.BitDepth(), opts.output)
	return nil
}

func writeImage(path string, img *codec.RawImage) (err error) {
	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".png" && ext != ".pgm" {
		return fmt.Errorf("unsupported output format %q (want .png or .pgm)", ext)
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()

	w := bufio.NewWriter(f)
	if ext == ".png" {
		err = png.Encode(w, img.Gray16())
	} else {
		err = writePGM(w, img)
	}
	if err != nil {
		return err
	}
	return w.Flush()
}

// writePGM writes a binary PGM with maxval 2^bits-1. Samples wider than
// eight bits are stored big-endian.
func writePGM(w io.Writer, img *codec.RawImage) error {
	maxval := 1<<uint(img.BitDepth()) - 1
	if _, err := fmt.Fprintf(w, "P5\n%d %d\n%d\n", img.Width(), img.Height(), maxval); err != nil {
		return err
	}

	wide := maxval > 0xFF
	row := make([]byte, 0, 2*img.Width())
	for y := 0; y < img.Height(); y++ {
		row = row[:0]
		for x := 0; x < img.Width(); x++ {
			v := img.At(x, y)
			if wide {
				row = binary.BigEndian.AppendUint16(row, v)
			} else {
				row = append(row, byte(v))
			}
		}
		if _, err := w.Write(row); err != nil {
			return err
		}
	}
	return nil
}

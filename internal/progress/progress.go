// Package progress renders byte-count progress bars for long transfers when
// the context carries an output writer.
package progress

import (
	"context"
	"fmt"
	"io"
	"time"

	pb "github.com/schollz/progressbar/v3"
)

type writerKey struct{}

// Open enables progress bars on w for every transfer started with ctx.
func Open(ctx context.Context, w io.Writer) context.Context {
	return context.WithValue(ctx, writerKey{}, w)
}

// Bar tracks one transfer. A zero Bar is a silent no-op.
type Bar struct {
	bar *pb.ProgressBar
}

// Bytes starts a bar for total bytes, or returns a no-op bar if progress is off.
func Bytes(ctx context.Context, total int64, desc string) *Bar {
	w, ok := ctx.Value(writerKey{}).(io.Writer)
	if !ok || w == nil {
		return &Bar{}
	}

	bar := pb.NewOptions64(
		total,
		pb.OptionSetDescription(desc),
		pb.OptionSetWriter(w),
		pb.OptionSetWidth(20),
		pb.OptionThrottle(65*time.Millisecond),
		pb.OptionShowBytes(true),
		pb.OptionSetTheme(
			pb.Theme{Saucer: "=", SaucerPadding: " ", BarStart: "[", BarEnd: "]"},
		),
		pb.OptionOnCompletion(func() {
			_, _ = fmt.Fprint(w, "\n")
		}),
	)
	_ = bar.RenderBlank()

	return &Bar{bar: bar}
}

// Read advances the bar by len(p). It lets a Bar act as a progress hook for
// clients that report transferred chunks through an io.Reader.
func (b *Bar) Read(p []byte) (int, error) {
	if b.bar != nil {
		_ = b.bar.Add(len(p))
	}

	return len(p), nil
}

// Close finishes the bar.
func (b *Bar) Close() {
	if b.bar == nil {
		return
	}

	_ = b.bar.Finish()
}

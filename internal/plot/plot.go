// Package plot assembles sweep datasets into a labeled plot and serializes
// it as a gnuplot script and a rendered image.
package plot

import (
	"fmt"
	"os"
	"path/filepath"

	"cwsweep/internal/sweep"
)

// Axes holds axis labels.
type Axes struct {
	X string `json:"x"`
	Y string `json:"y"`
}

// Output is a complete plot description.
type Output struct {
	Title    string          `json:"title"`
	Axes     Axes            `json:"axes"`
	Datasets []sweep.Dataset `json:"datasets"`
	// Extra are additional gnuplot commands emitted after the axis labels.
	Extra []string `json:"extra,omitempty"`
}

// Assemble collects datasets into one plot. It copies the dataset slice.
func Assemble(datasets []sweep.Dataset, title string, axes Axes) Output {
	ds := make([]sweep.Dataset, len(datasets))
	copy(ds, datasets)
	return Output{
		Title:    title,
		Axes:     axes,
		Datasets: ds,
		Extra:    []string{"set key outside"},
	}
}

// Destination names the artifacts written by Serialize.
type Destination struct {
	// ScriptPath receives the gnuplot script. Required.
	ScriptPath string
	// Target is the file the gnuplot script renders to; its extension picks
	// the gnuplot terminal.
	Target string
	// ImagePath, if set, receives a PNG or SVG rendered directly.
	ImagePath string
}

// Serialize writes every artifact of dst. Each file is written to a
// temporary sibling and renamed into place, so a failure leaves no partial
// artifact behind. When the image has nothing to draw the script is still
// written and the returned error wraps ErrNothingToRender.
func Serialize(out Output, dst Destination) error {
	if dst.ScriptPath == "" {
		return fmt.Errorf("plot script path required")
	}
	if err := writeAtomic(dst.ScriptPath, func(f *os.File) error {
		return WriteScript(f, out, dst.Target)
	}); err != nil {
		return fmt.Errorf("write gnuplot script: %w", err)
	}
	if dst.ImagePath != "" {
		if err := writeAtomic(dst.ImagePath, func(f *os.File) error {
			return RenderImage(f, out, imageFormat(dst.ImagePath))
		}); err != nil {
			return fmt.Errorf("render plot image: %w", err)
		}
	}
	return nil
}

func writeAtomic(path string, fill func(*os.File) error) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if err := fill(tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// Command skewtplot renders a sounding profile as a skew-T PNG, optionally
// applying one drag edit first. It uses the same session and perturbation
// code as the service, so the output matches what an interactive edit would
// produce.
//
// Usage:
//
//	go run ./cmd/skewtplot \
//	  -profile testdata/sounding.json \
//	  -out diagram.png \
//	  -variable temperature -index 4 -delta 2.5 -rhlock
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/couchcryptid/sounding-edit-service/internal/domain"
	"github.com/couchcryptid/sounding-edit-service/internal/perturb"
	"github.com/couchcryptid/sounding-edit-service/internal/render"
	"github.com/couchcryptid/sounding-edit-service/internal/session"
	"github.com/couchcryptid/sounding-edit-service/internal/skewt"
)

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		log.Fatal(err)
	}
}

// summary is printed to stdout after rendering.
type summary struct {
	Profile      domain.Profile `json:"profile"`
	Edited       bool           `json:"edited"`
	Metrics      domain.Metrics `json:"metrics"`
	PositiveArea float64        `json:"positive_area"`
	NegativeArea float64        `json:"negative_area"`
}

func run(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("skewtplot", flag.ContinueOnError)
	profilePath := fs.String("profile", "", "path to a profile JSON file")
	outPath := fs.String("out", "", "output path for the PNG diagram")
	width := fs.Float64("width", 650, "drawable width in pixels")
	height := fs.Float64("height", 500, "drawable height in pixels")
	variable := fs.String("variable", "temperature", "series to edit: temperature or dewpoint")
	index := fs.Int("index", -1, "level index to drag; negative renders the profile unedited")
	delta := fs.Float64("delta", 0, "temperature change at the dragged level in °C")
	rhLock := fs.Bool("rhlock", false, "conserve relative humidity while editing")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *profilePath == "" || *outPath == "" {
		fs.Usage()
		return fmt.Errorf("missing required flags: -profile, -out")
	}

	profile, err := readProfile(*profilePath)
	if err != nil {
		return err
	}

	tr, err := skewt.NewTransform(skewt.DefaultConfig(*width, *height))
	if err != nil {
		return err
	}
	sess := session.New("skewtplot", tr, perturb.Default(), nil)
	if _, err := sess.Load(profile, nil, nil); err != nil {
		return fmt.Errorf("load profile: %w", err)
	}

	edited := false
	if *index >= 0 {
		if *index >= profile.Levels() {
			return fmt.Errorf("index %d out of range for %d levels", *index, profile.Levels())
		}
		v, err := domain.ParseVariable(*variable)
		if err != nil {
			return err
		}
		if err := applyDrag(sess, tr, v, *index, *delta, *rhLock); err != nil {
			return err
		}
		edited = true
	}

	current, err := sess.Profile()
	if err != nil {
		return err
	}

	f, err := os.Create(*outPath)
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	if err := render.Diagram(f, tr, &current); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close output: %w", err)
	}

	pos, neg := domain.BuoyancyAreas(current.Temperature)
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(summary{
		Profile:      current,
		Edited:       edited,
		Metrics:      domain.ComputeLayerMetrics(current.Temperature),
		PositiveArea: pos,
		NegativeArea: neg,
	})
}

func readProfile(path string) (domain.Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.Profile{}, fmt.Errorf("read profile: %w", err)
	}
	var p domain.Profile
	if err := json.Unmarshal(data, &p); err != nil {
		return domain.Profile{}, fmt.Errorf("parse profile: %w", err)
	}
	return p, nil
}

// applyDrag replays a drag that moves the handle by delta °C along its
// isobar.
func applyDrag(sess *session.Session, tr *skewt.Transform, v domain.Variable, index int, delta float64, rhLock bool) error {
	if err := sess.SetRHLock(rhLock); err != nil {
		return err
	}
	h, err := sess.DragStart(v, index)
	if err != nil {
		return fmt.Errorf("drag start: %w", err)
	}
	cfg := tr.Config()
	pxPerDegree := cfg.Width / (cfg.MaxTemperature - cfg.MinTemperature)
	if _, err := sess.DragEnd(skewt.Point{X: h.X + delta*pxPerDegree, Y: h.Y}); err != nil {
		return fmt.Errorf("drag end: %w", err)
	}
	return nil
}

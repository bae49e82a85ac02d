package separate

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/livepeer/audio-api/errors"
	"github.com/livepeer/audio-api/log"
	"github.com/livepeer/audio-api/metrics"
	"github.com/livepeer/audio-api/pcm"
	"github.com/livepeer/audio-api/subprocess"
	"github.com/livepeer/audio-api/workspace"
)

// Stem names one separated audio track
type Stem string

const (
	StemOriginal Stem = "original"
	StemDrums    Stem = "drums"
	StemBass     Stem = "bass"
	StemVocals   Stem = "vocals"
	StemOther    Stem = "other"
)

// ModelStems are the stems a Separator must produce, in upload order
var ModelStems = []Stem{StemDrums, StemBass, StemVocals, StemOther}

// AllStems is the track list recorded on a video once separation completes
var AllStems = append([]Stem{StemOriginal}, ModelStems...)

func StemNames() []string {
	names := make([]string, len(AllStems))
	for i, s := range AllStems {
		names[i] = string(s)
	}
	return names
}

type Separator interface {
	// Separate splits a mixed PCM buffer into exactly the ModelStems. It never returns StemOriginal.
	Separate(ctx context.Context, in *pcm.Buffer) (map[Stem]*pcm.Buffer, error)
}

// Command runs an external source-separation model. The command is invoked
// as `<Cmd...> <input.wav> <output dir>` and must write one <stem>.wav per
// model stem into the output directory.
type Command struct {
	Cmd           []string
	Runner        subprocess.Runner
	WorkspaceRoot string
}

func (c Command) Separate(ctx context.Context, in *pcm.Buffer) (map[Stem]*pcm.Buffer, error) {
	if err := in.Validate(); err != nil {
		return nil, errors.NewSeparationError("Invalid separation input", "", err)
	}
	if len(c.Cmd) == 0 {
		return nil, errors.NewSeparationError("Separation model is not configured", "", nil)
	}

	ws, err := workspace.Create(c.WorkspaceRoot, "separate")
	if err != nil {
		return nil, errors.NewSeparationError("Error preparing separation workspace", "", err)
	}
	defer ws.Cleanup()

	inPath := ws.Path("mix.wav")
	if err := pcm.WriteFile(inPath, in); err != nil {
		return nil, errors.NewSeparationError("Error writing separation input", "", err)
	}
	outDir, err := ws.Subdir("stems")
	if err != nil {
		return nil, errors.NewSeparationError("Error preparing separation workspace", "", err)
	}

	runner := c.Runner
	if runner == nil {
		runner = subprocess.ExecRunner{}
	}
	args := append(append([]string{}, c.Cmd[1:]...), inPath, outDir)

	start := time.Now()
	res, err := runner.Run(ctx, c.Cmd[0], args...)
	metrics.Metrics.ModelDurationSec.WithLabelValues("separation").Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, errors.NewSeparationError("Error separating audio", res.Stderr, err)
	}
	log.LogCtx(ctx, "separation model finished", "duration", time.Since(start), "frames", in.Frames())

	return readStems(outDir, in)
}

// readStems loads the model's output and checks it is exactly the expected stem set
func readStems(dir string, in *pcm.Buffer) (map[Stem]*pcm.Buffer, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.NewSeparationError("Error reading separation output", "", err)
	}
	var found []string
	for _, e := range entries {
		if !e.IsDir() && strings.EqualFold(filepath.Ext(e.Name()), ".wav") {
			found = append(found, strings.TrimSuffix(e.Name(), filepath.Ext(e.Name())))
		}
	}
	sort.Strings(found)

	stems := make(map[Stem]*pcm.Buffer, len(ModelStems))
	for _, name := range found {
		stem := Stem(name)
		if !isModelStem(stem) {
			return nil, errors.NewSeparationError(fmt.Sprintf("Separation produced unexpected stem %q", name), "", nil)
		}
		buf, err := pcm.ReadFile(filepath.Join(dir, name+".wav"))
		if err != nil {
			return nil, errors.NewSeparationError(fmt.Sprintf("Error reading %s stem", name), "", err)
		}
		if buf.SampleRate != in.SampleRate {
			return nil, errors.NewSeparationError(fmt.Sprintf("%s stem has sample rate %d, expected %d", name, buf.SampleRate, in.SampleRate), "", nil)
		}
		stems[stem] = buf
	}
	if err := CheckStems(stems); err != nil {
		return nil, err
	}
	return stems, nil
}

// CheckStems fails unless stems holds exactly the ModelStems, each non-empty
func CheckStems(stems map[Stem]*pcm.Buffer) error {
	var missing []string
	for _, s := range ModelStems {
		buf, ok := stems[s]
		if !ok || buf == nil || len(buf.Samples) == 0 {
			missing = append(missing, string(s))
		}
	}
	if len(missing) > 0 {
		return errors.NewSeparationError(fmt.Sprintf("Separation did not produce stems: %s", strings.Join(missing, ", ")), "", nil)
	}
	if len(stems) != len(ModelStems) {
		return errors.NewSeparationError(fmt.Sprintf("Separation produced %d stems, expected %d", len(stems), len(ModelStems)), "", nil)
	}
	return nil
}

func isModelStem(s Stem) bool {
	for _, m := range ModelStems {
		if m == s {
			return true
		}
	}
	return false
}
